// Package auth はサインアップ、ログイン、二要素認証、ログアウト、
// トークン検証の各フローを編成するドメインロジックを提供する。
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/hitoshi/authgate/internal/email"
	"github.com/hitoshi/authgate/internal/model"
	"github.com/hitoshi/authgate/internal/store"
	"github.com/hitoshi/authgate/internal/token"
)

var (
	// ErrIncorrectCredentials は認証失敗を示す。
	// アカウント未登録・パスワード不一致・チャレンジ不一致のいずれも
	// アカウント列挙を防ぐためこのエラーに畳み込まれる。
	ErrIncorrectCredentials = errors.New("incorrect credentials")
	// ErrUserAlreadyExists は同一Emailのアカウントが既に存在することを示す。
	ErrUserAlreadyExists = errors.New("user already exists")
	// ErrInvalidToken はトークンが無効（期限切れ・署名不正・失効済み）であることを示す。
	ErrInvalidToken = errors.New("invalid token")
)

// MetricsRecorder は認証フローのメトリクス記録インターフェース。
// 未設定（nil）の場合は記録をスキップする。
type MetricsRecorder interface {
	RecordSignup()
	RecordLoginSuccess()
	RecordLoginFailure()
	RecordTwoFAIssued()
	RecordTwoFAVerified()
	RecordTokenRevoked()
}

// LoginResult はログイン試行の結果を表す。
// TwoFARequiredがtrueの場合、Tokenは空でLoginAttemptIDに応答すべきIDが入る。
type LoginResult struct {
	Token          string
	TwoFARequired  bool
	LoginAttemptID string
}

// Service は認証フローのサービス層。
// 4つのストアとトークンサービスを合成し、各フローを単方向のデータフローとして実装する。
// ストア間のアトミック性は提供しない（各ストア操作は独立したクリティカルセクション）。
type Service struct {
	users      store.UserStore
	challenges store.TwoFACodeStore
	tokens     *token.Service
	sender     email.Sender
	metrics    MetricsRecorder
}

// NewService はServiceを生成する。senderとmetricsはnilを許容する。
func NewService(
	users store.UserStore,
	challenges store.TwoFACodeStore,
	tokens *token.Service,
	sender email.Sender,
	metrics MetricsRecorder,
) *Service {
	return &Service{
		users:      users,
		challenges: challenges,
		tokens:     tokens,
		sender:     sender,
		metrics:    metrics,
	}
}

// SignUp は新規アカウントを登録する。
// 同一Emailが存在する場合はErrUserAlreadyExistsを返す。
func (s *Service) SignUp(ctx context.Context, em model.Email, pw model.Password, requires2FA bool) error {
	if err := s.users.Create(ctx, em, pw, requires2FA); err != nil {
		if errors.Is(err, store.ErrUserAlreadyExists) {
			return ErrUserAlreadyExists
		}
		return fmt.Errorf("failed to create account: %w", err)
	}

	if s.metrics != nil {
		s.metrics.RecordSignup()
	}

	slog.Info("account created",
		slog.String("email", em.String()),
		slog.Bool("requires_2fa", requires2FA),
	)
	return nil
}

// Login はパスワード認証を行い、セッショントークンまたは二要素認証チャレンジを返す。
// 認証失敗はすべてErrIncorrectCredentialsに畳み込む。
// 二要素認証が必要なアカウントの場合はチャレンジを生成し、コードをメール送信境界に渡す。
// 送信失敗はログインを失敗させない（コードはチャレンジストアに残る）。
func (s *Service) Login(ctx context.Context, em model.Email, pw model.Password) (*LoginResult, error) {
	if err := s.users.ValidateCredentials(ctx, em, pw); err != nil {
		if errors.Is(err, store.ErrUserNotFound) || errors.Is(err, store.ErrInvalidCredentials) {
			if s.metrics != nil {
				s.metrics.RecordLoginFailure()
			}
			return nil, ErrIncorrectCredentials
		}
		return nil, fmt.Errorf("failed to validate credentials: %w", err)
	}

	user, err := s.users.Find(ctx, em)
	if err != nil {
		return nil, fmt.Errorf("failed to load account: %w", err)
	}

	if user.Requires2FA {
		challenge, err := s.challenges.Add(ctx, em)
		if err != nil {
			return nil, fmt.Errorf("failed to create 2FA challenge: %w", err)
		}

		if s.sender != nil {
			if err := s.sender.SendTwoFACode(ctx, em, challenge.Code); err != nil {
				slog.Error("failed to send 2FA code",
					slog.String("email", em.String()),
					slog.String("error", err.Error()),
				)
			}
		}

		if s.metrics != nil {
			s.metrics.RecordTwoFAIssued()
		}

		slog.Info("2FA challenge issued", slog.String("email", em.String()))
		return &LoginResult{
			TwoFARequired:  true,
			LoginAttemptID: challenge.AttemptID,
		}, nil
	}

	tokenString, err := s.tokens.Issue(em)
	if err != nil {
		return nil, fmt.Errorf("failed to issue token: %w", err)
	}

	if s.metrics != nil {
		s.metrics.RecordLoginSuccess()
	}

	slog.Info("login succeeded", slog.String("email", em.String()))
	return &LoginResult{Token: tokenString}, nil
}

// VerifyTwoFA は二要素認証チャレンジを検証し、成功時にセッショントークンを発行する。
// チャレンジは成功時にアトミックに消費され、二度と使用できない。
// NotFound・Mismatchのいずれの失敗もErrIncorrectCredentialsに畳み込む。
func (s *Service) VerifyTwoFA(ctx context.Context, em model.Email, attemptID, code string) (string, error) {
	if err := s.challenges.Consume(ctx, em, attemptID, code); err != nil {
		if errors.Is(err, store.ErrChallengeNotFound) || errors.Is(err, store.ErrChallengeMismatch) {
			if s.metrics != nil {
				s.metrics.RecordLoginFailure()
			}
			slog.Warn("2FA verification failed", slog.String("email", em.String()))
			return "", ErrIncorrectCredentials
		}
		return "", fmt.Errorf("failed to consume 2FA challenge: %w", err)
	}

	tokenString, err := s.tokens.Issue(em)
	if err != nil {
		return "", fmt.Errorf("failed to issue token: %w", err)
	}

	if s.metrics != nil {
		s.metrics.RecordTwoFAVerified()
		s.metrics.RecordLoginSuccess()
	}

	slog.Info("2FA verification succeeded", slog.String("email", em.String()))
	return tokenString, nil
}

// Logout はセッショントークンを検証し、有効であれば失効させる。
// 無効なトークンはErrInvalidTokenを返し、何も失効させない。
// 並行するログアウトとの競合で既に失効済みの場合は成功として扱う。
func (s *Service) Logout(ctx context.Context, tokenString string) error {
	claims, err := s.tokens.Validate(ctx, tokenString)
	if err != nil {
		return ErrInvalidToken
	}

	if err := s.revoke(ctx, tokenString, claims); err != nil {
		return err
	}

	if s.metrics != nil {
		s.metrics.RecordTokenRevoked()
	}

	slog.Info("logout succeeded", slog.String("email", claims.Subject))
	return nil
}

// VerifyToken はトークンを検証してクレームを返す。副作用はない。
// 失効済み・無効のいずれもErrInvalidTokenに畳み込む。
func (s *Service) VerifyToken(ctx context.Context, tokenString string) (*token.Claims, error) {
	claims, err := s.tokens.Validate(ctx, tokenString)
	if err != nil {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// revoke はトークンを失効ストアに記録する。
func (s *Service) revoke(ctx context.Context, tokenString string, claims *token.Claims) error {
	err := s.tokens.Revoke(ctx, tokenString, claims)
	if err != nil {
		if errors.Is(err, store.ErrTokenAlreadyBanned) {
			slog.Warn("token was already revoked", slog.String("email", claims.Subject))
			return nil
		}
		return fmt.Errorf("failed to revoke token: %w", err)
	}
	return nil
}
