package store

import (
	"context"
	"sync"

	"github.com/hitoshi/authgate/internal/model"
)

// MemoryUserStore はインメモリのユーザーストア。
// パスワードを平文で保持し直接比較するため、テスト・開発用途専用。
// 本番環境ではPostgresUserStoreを使用すること。
type MemoryUserStore struct {
	mu    sync.RWMutex
	users map[model.Email]memoryUser
}

type memoryUser struct {
	password    model.Password
	requires2FA bool
}

// NewMemoryUserStore はMemoryUserStoreを生成する。
func NewMemoryUserStore() *MemoryUserStore {
	return &MemoryUserStore{
		users: make(map[model.Email]memoryUser),
	}
}

// Create は新規アカウントを作成する。同一Emailが存在する場合はErrUserAlreadyExistsを返す。
func (s *MemoryUserStore) Create(ctx context.Context, email model.Email, pw model.Password, requires2FA bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.users[email]; exists {
		return ErrUserAlreadyExists
	}

	s.users[email] = memoryUser{
		password:    pw,
		requires2FA: requires2FA,
	}
	return nil
}

// Find は指定Emailのアカウントを取得する。見つからない場合はErrUserNotFoundを返す。
func (s *MemoryUserStore) Find(ctx context.Context, email model.Email) (*model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, exists := s.users[email]
	if !exists {
		return nil, ErrUserNotFound
	}

	return &model.User{
		Email:       email,
		Requires2FA: u.requires2FA,
	}, nil
}

// ValidateCredentials はパスワードを直接比較で照合する。
func (s *MemoryUserStore) ValidateCredentials(ctx context.Context, email model.Email, pw model.Password) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, exists := s.users[email]
	if !exists {
		return ErrUserNotFound
	}
	if u.password != pw {
		return ErrInvalidCredentials
	}
	return nil
}

// compile-time interface check
var _ UserStore = (*MemoryUserStore)(nil)
