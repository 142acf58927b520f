// Package token はセッショントークンの発行と検証を提供する。
package token

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/hitoshi/authgate/internal/model"
	"github.com/hitoshi/authgate/internal/store"
)

var (
	// ErrTokenRevoked はトークンが明示的に失効済みであることを示す。
	ErrTokenRevoked = errors.New("token revoked")
	// ErrTokenInvalid は署名不正・構造不正・期限切れのいずれかを示す。
	// 細かい原因はログにのみ記録し、呼び出し側の制御フローには使わせない。
	ErrTokenInvalid = errors.New("token invalid")
)

// Claims はセッショントークンのクレームセット。
// Subjectにプリンシパル（Email）、ExpiresAtに有効期限を保持する。
type Claims = jwt.RegisteredClaims

// Service はHMAC-SHA256で署名されたセッショントークンを発行・検証する。
// 署名鍵とTTLはプロセス全体の設定として起動時に1回だけ渡される。
// 鍵のローテーションは発行済みトークンをすべて無効化する（鍵バージョニングなし）。
type Service struct {
	secret []byte
	ttl    time.Duration
	banned store.BannedTokenStore
}

// NewService はServiceを生成する。
func NewService(secret []byte, ttl time.Duration, banned store.BannedTokenStore) *Service {
	return &Service{
		secret: secret,
		ttl:    ttl,
		banned: banned,
	}
}

// TTL はトークンの有効期間を返す。Cookieの有効期間の設定に使用する。
func (s *Service) TTL() time.Duration {
	return s.ttl
}

// Issue は指定プリンシパルのセッショントークンを発行する。
// クレームは {sub: email, exp: now + TTL}。署名・発行はCPU処理のみで、
// ストアへのアクセスは行わない。
func (s *Service) Issue(email model.Email) (string, error) {
	claims := Claims{
		Subject:   email.String(),
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(s.ttl)),
	}

	tokenString, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}

	return tokenString, nil
}

// Revoke はトークンを失効ストアに記録し、自然失効前に無効化する。
// 同一トークンの二重失効はstore.ErrTokenAlreadyBannedを返す。
// クレームの有効期限は失効エントリの破棄時期の決定に使われる。
func (s *Service) Revoke(ctx context.Context, tokenString string, claims *Claims) error {
	expiresAt := time.Now().Add(s.ttl)
	if claims != nil && claims.ExpiresAt != nil {
		expiresAt = claims.ExpiresAt.Time
	}

	if err := s.banned.Add(ctx, tokenString, expiresAt); err != nil {
		return err
	}
	return nil
}

// Validate はトークンを検証してクレームを返す。
// 最初に失効ストアを照会し、失効済みであれば署名検証を行わずに
// ErrTokenRevokedを返す（失効は信頼判定より優先される）。
// それ以外の失敗（署名・構造・期限）はすべてErrTokenInvalidに畳み込む。
func (s *Service) Validate(ctx context.Context, tokenString string) (*Claims, error) {
	banned, err := s.banned.Contains(ctx, tokenString)
	if err != nil {
		// 失効確認ができないトークンは信頼しない
		slog.Error("banned token store lookup failed", slog.String("error", err.Error()))
		return nil, fmt.Errorf("%w: revocation check failed", ErrTokenInvalid)
	}
	if banned {
		return nil, ErrTokenRevoked
	}

	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(tokenString, claims,
		func(t *jwt.Token) (interface{}, error) { return s.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		slog.Debug("token validation failed", slog.String("error", err.Error()))
		return nil, fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	}
	if !parsed.Valid {
		return nil, ErrTokenInvalid
	}

	return claims, nil
}
