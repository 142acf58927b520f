package store

import (
	"context"
	"sync"
	"time"
)

// MemoryBannedTokenStore はインメモリの失効済みトークンストア。
// エントリはトークン自体の有効期限とともに保持し、期限切れのエントリは
// Add時に遅延削除する。期限切れトークンは署名検証の時点でも拒否されるため、
// 削除によって失効の保証が緩むことはない。
type MemoryBannedTokenStore struct {
	mu     sync.RWMutex
	tokens map[string]time.Time // token -> トークンの有効期限
}

// NewMemoryBannedTokenStore はMemoryBannedTokenStoreを生成する。
func NewMemoryBannedTokenStore() *MemoryBannedTokenStore {
	return &MemoryBannedTokenStore{
		tokens: make(map[string]time.Time),
	}
}

// Add はトークンを失効済みとして記録する。
// 既に記録されている場合は状態を変更せずErrTokenAlreadyBannedを返す。
func (s *MemoryBannedTokenStore) Add(ctx context.Context, token string, expiresAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.pruneLocked(time.Now())

	if _, exists := s.tokens[token]; exists {
		return ErrTokenAlreadyBanned
	}

	s.tokens[token] = expiresAt
	return nil
}

// Contains はトークンが失効済みかを返す。このストアでは失敗しない。
func (s *MemoryBannedTokenStore) Contains(ctx context.Context, token string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, exists := s.tokens[token]
	return exists, nil
}

// Len は現在保持しているエントリ数を返す。テスト用。
func (s *MemoryBannedTokenStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.tokens)
}

// pruneLocked は有効期限を過ぎたエントリを削除する。呼び出し側がロックを保持する。
func (s *MemoryBannedTokenStore) pruneLocked(now time.Time) {
	for token, expiresAt := range s.tokens {
		if now.After(expiresAt) {
			delete(s.tokens, token)
		}
	}
}

// compile-time interface check
var _ BannedTokenStore = (*MemoryBannedTokenStore)(nil)
