package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/hitoshi/authgate/internal/model"
	"github.com/hitoshi/authgate/internal/password"
)

// PostgreSQLの一意制約違反のエラーコード。
const pgUniqueViolation = "23505"

// PostgresUserStore はPostgreSQLを使用したユーザーストア。
// パスワードはArgon2idでハッシュ化して保存し、平文は永続化しない。
type PostgresUserStore struct {
	db *sql.DB
}

// NewPostgresUserStore はPostgresUserStoreを生成する。
func NewPostgresUserStore(db *sql.DB) *PostgresUserStore {
	return &PostgresUserStore{db: db}
}

// Create は新規アカウントを作成する。パスワードはArgon2idでハッシュ化される。
// 同一Emailが存在する場合はErrUserAlreadyExistsを返す。
func (s *PostgresUserStore) Create(ctx context.Context, email model.Email, pw model.Password, requires2FA bool) error {
	hash, err := password.Hash(string(pw))
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO users (email, password_hash, requires_2fa, created_at)
		 VALUES ($1, $2, $3, $4)`,
		email.String(), hash, requires2FA, time.Now(),
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == pgUniqueViolation {
			return ErrUserAlreadyExists
		}
		return fmt.Errorf("failed to insert user: %w", err)
	}

	return nil
}

// Find は指定Emailのアカウントを取得する。見つからない場合はErrUserNotFoundを返す。
func (s *PostgresUserStore) Find(ctx context.Context, email model.Email) (*model.User, error) {
	user := &model.User{}
	var rawEmail string

	err := s.db.QueryRowContext(ctx,
		`SELECT email, password_hash, requires_2fa, created_at FROM users WHERE email = $1`,
		email.String(),
	).Scan(&rawEmail, &user.PasswordHash, &user.Requires2FA, &user.CreatedAt)

	if err == sql.ErrNoRows {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}

	user.Email = model.Email(rawEmail)
	return user, nil
}

// ValidateCredentials は保存済みハッシュに対してパスワードを照合する。
// 不一致・ハッシュ不正のいずれもErrInvalidCredentialsに畳み込み、原因は漏らさない。
func (s *PostgresUserStore) ValidateCredentials(ctx context.Context, email model.Email, pw model.Password) error {
	var storedHash string

	err := s.db.QueryRowContext(ctx,
		`SELECT password_hash FROM users WHERE email = $1`,
		email.String(),
	).Scan(&storedHash)

	if err == sql.ErrNoRows {
		return ErrUserNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to load password hash: %w", err)
	}

	if err := password.Verify(string(pw), storedHash); err != nil {
		return ErrInvalidCredentials
	}

	return nil
}

// compile-time interface check
var _ UserStore = (*PostgresUserStore)(nil)
