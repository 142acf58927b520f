package store

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Redisキーのプレフィックス。
const bannedTokenKeyPrefix = "banned_token:"

// RedisBannedTokenStore はRedisを使用した失効済みトークンストア。
// エントリにはトークンの残り有効期間をTTLとして設定するため、
// トークンの自然失効後にRedis側で自動的に破棄される。
// プロセス再起動をまたいで失効を維持したい場合に使用する。
type RedisBannedTokenStore struct {
	client *redis.Client
}

// NewRedisBannedTokenStore はRedisBannedTokenStoreを生成する。
func NewRedisBannedTokenStore(client *redis.Client) *RedisBannedTokenStore {
	return &RedisBannedTokenStore{client: client}
}

func (s *RedisBannedTokenStore) key(token string) string {
	return bannedTokenKeyPrefix + token
}

// Add はトークンを失効済みとして記録する。
// SET NXにより、既に記録されている場合は状態を変更せずErrTokenAlreadyBannedを返す。
func (s *RedisBannedTokenStore) Add(ctx context.Context, token string, expiresAt time.Time) error {
	ttl := time.Until(expiresAt)
	if ttl <= 0 {
		// 期限切れトークンの失効記録は署名検証で拒否されるため意味を持たないが、
		// AlreadyBannedの判定一貫性のため最小TTLで記録する
		ttl = time.Second
	}

	ok, err := s.client.SetNX(ctx, s.key(token), "", ttl).Result()
	if err != nil {
		return fmt.Errorf("failed to ban token: %w", err)
	}
	if !ok {
		return ErrTokenAlreadyBanned
	}
	return nil
}

// Contains はトークンが失効済みかを返す。
func (s *RedisBannedTokenStore) Contains(ctx context.Context, token string) (bool, error) {
	n, err := s.client.Exists(ctx, s.key(token)).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check banned token: %w", err)
	}
	return n > 0, nil
}

// compile-time interface check
var _ BannedTokenStore = (*RedisBannedTokenStore)(nil)
