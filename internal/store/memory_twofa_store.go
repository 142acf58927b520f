package store

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"sync"

	"github.com/google/uuid"

	"github.com/hitoshi/authgate/internal/model"
)

// MemoryTwoFACodeStore はインメモリの二要素認証チャレンジストア。
// Emailごとに保留中のチャレンジを最大1つ保持する。
// 上書き（Add）と消費（Consume）はそれぞれ単一のクリティカルセクションで行い、
// 並行する検証リクエストが同じコードで二重に成功することを防ぐ。
type MemoryTwoFACodeStore struct {
	mu         sync.Mutex
	challenges map[model.Email]model.TwoFAChallenge
}

// NewMemoryTwoFACodeStore はMemoryTwoFACodeStoreを生成する。
func NewMemoryTwoFACodeStore() *MemoryTwoFACodeStore {
	return &MemoryTwoFACodeStore{
		challenges: make(map[model.Email]model.TwoFAChallenge),
	}
}

// Add は新しいチャレンジを生成して保存する。
// AttemptIDはUUIDv4、Codeは6桁の数字列。既存のチャレンジは上書きされる。
func (s *MemoryTwoFACodeStore) Add(ctx context.Context, email model.Email) (*model.TwoFAChallenge, error) {
	code, err := generateTwoFACode()
	if err != nil {
		return nil, fmt.Errorf("failed to generate 2FA code: %w", err)
	}

	challenge := model.TwoFAChallenge{
		AttemptID: uuid.New().String(),
		Code:      code,
	}

	s.mu.Lock()
	s.challenges[email] = challenge
	s.mu.Unlock()

	return &challenge, nil
}

// Consume はチャレンジを検証し、成功時にアトミックに削除する。
// AttemptIDとCodeの両方の一致を要求する。コードのみの一致は、
// 並行する別チャレンジへの総当たりを防ぐため拒否する。
func (s *MemoryTwoFACodeStore) Consume(ctx context.Context, email model.Email, attemptID, code string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, exists := s.challenges[email]
	if !exists {
		return ErrChallengeNotFound
	}

	if stored.AttemptID != attemptID || stored.Code != code {
		return ErrChallengeMismatch
	}

	delete(s.challenges, email)
	return nil
}

// Get は保留中のチャレンジを取得する。見つからない場合はErrChallengeNotFoundを返す。
func (s *MemoryTwoFACodeStore) Get(ctx context.Context, email model.Email) (*model.TwoFAChallenge, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, exists := s.challenges[email]
	if !exists {
		return nil, ErrChallengeNotFound
	}
	return &stored, nil
}

// generateTwoFACode は既定の桁数の数字列を一様分布で生成する。
// 000000から999999までの範囲をゼロ埋めで表現する。
func generateTwoFACode() (string, error) {
	max := big.NewInt(1)
	for i := 0; i < model.TwoFACodeLength; i++ {
		max.Mul(max, big.NewInt(10))
	}

	n, err := rand.Int(rand.Reader, max)
	if err != nil {
		return "", err
	}

	return fmt.Sprintf("%0*d", model.TwoFACodeLength, n), nil
}

// compile-time interface check
var _ TwoFACodeStore = (*MemoryTwoFACodeStore)(nil)
