// Package store は認証に関するデータストアのインターフェースを定義する。
// 各ストアはバックエンド（インメモリ、PostgreSQL、Redis）を起動時に選択でき、
// 呼び出し側はインターフェースのみに依存する。
package store

import (
	"context"
	"errors"
	"time"

	"github.com/hitoshi/authgate/internal/model"
)

// ストア共通のエラー。バックエンド固有のエラー（ドライバエラー等）は
// 各実装の境界でラップされ、これらのエラー以外はすべて想定外の障害として扱う。
var (
	// ErrUserAlreadyExists は同一Emailのアカウントが既に存在することを示す。
	ErrUserAlreadyExists = errors.New("user already exists")
	// ErrUserNotFound は指定Emailのアカウントが存在しないことを示す。
	ErrUserNotFound = errors.New("user not found")
	// ErrInvalidCredentials はパスワードが一致しないことを示す。
	// ハッシュ不正との区別は意図的に行わない。
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrTokenAlreadyBanned は同一トークンが既に失効済みであることを示す。
	ErrTokenAlreadyBanned = errors.New("token already banned")
	// ErrChallengeNotFound は保留中のチャレンジが存在しないことを示す。
	ErrChallengeNotFound = errors.New("challenge not found")
	// ErrChallengeMismatch はチャレンジは存在するがID・コードの組が一致しないことを示す。
	ErrChallengeMismatch = errors.New("challenge mismatch")
)

// UserStore はアカウントの永続化と認証情報の照合インターフェース。
type UserStore interface {
	// Create は新規アカウントを作成する。同一Emailが存在する場合は
	// ErrUserAlreadyExistsを返す。
	Create(ctx context.Context, email model.Email, password model.Password, requires2FA bool) error

	// Find は指定Emailのアカウントを取得する。見つからない場合は
	// ErrUserNotFoundを返す。
	Find(ctx context.Context, email model.Email) (*model.User, error)

	// ValidateCredentials はパスワードを照合する。アカウントが存在しない場合は
	// ErrUserNotFound、パスワード不一致の場合はErrInvalidCredentialsを返す。
	ValidateCredentials(ctx context.Context, email model.Email, password model.Password) error
}

// BannedTokenStore は失効済みトークンの集合インターフェース。
// トークンサービスは署名検証の前に必ずこのストアを照会する。
type BannedTokenStore interface {
	// Add はトークンを失効済みとして記録する。既に記録されている場合は
	// 状態を変更せずErrTokenAlreadyBannedを返す。
	// expiresAtはトークン自体の有効期限で、期限後のエントリ破棄に使用される。
	Add(ctx context.Context, token string, expiresAt time.Time) error

	// Contains はトークンが失効済みかを返す。
	Contains(ctx context.Context, token string) (bool, error)
}

// TwoFACodeStore は保留中の二要素認証チャレンジの管理インターフェース。
// 1つのEmailに対して同時に存在できるチャレンジは最大1つ。
type TwoFACodeStore interface {
	// Add は新しいチャレンジを生成して保存する。
	// 同一Emailの既存チャレンジは上書きされ、以後無効になる。
	Add(ctx context.Context, email model.Email) (*model.TwoFAChallenge, error)

	// Consume はチャレンジを検証し、成功時にアトミックに削除する。
	// AttemptIDとCodeの両方が一致した場合のみ成功する。
	// 保留中のチャレンジがない場合はErrChallengeNotFound、
	// 組が一致しない場合はErrChallengeMismatchを返す。
	Consume(ctx context.Context, email model.Email, attemptID, code string) error

	// Get は保留中のチャレンジを取得する。見つからない場合は
	// ErrChallengeNotFoundを返す。
	Get(ctx context.Context, email model.Email) (*model.TwoFAChallenge, error)
}
