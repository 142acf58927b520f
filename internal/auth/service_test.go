package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/hitoshi/authgate/internal/model"
	"github.com/hitoshi/authgate/internal/store"
	"github.com/hitoshi/authgate/internal/token"
)

// --- モック定義 ---

type mockUserStore struct {
	createFn              func(ctx context.Context, email model.Email, password model.Password, requires2FA bool) error
	findFn                func(ctx context.Context, email model.Email) (*model.User, error)
	validateCredentialsFn func(ctx context.Context, email model.Email, password model.Password) error
}

func (m *mockUserStore) Create(ctx context.Context, email model.Email, password model.Password, requires2FA bool) error {
	if m.createFn != nil {
		return m.createFn(ctx, email, password, requires2FA)
	}
	return nil
}

func (m *mockUserStore) Find(ctx context.Context, email model.Email) (*model.User, error) {
	if m.findFn != nil {
		return m.findFn(ctx, email)
	}
	return &model.User{Email: email}, nil
}

func (m *mockUserStore) ValidateCredentials(ctx context.Context, email model.Email, password model.Password) error {
	if m.validateCredentialsFn != nil {
		return m.validateCredentialsFn(ctx, email, password)
	}
	return nil
}

type mockSender struct {
	sendFn func(ctx context.Context, to model.Email, code string) error
	sent   []string
}

func (m *mockSender) SendTwoFACode(ctx context.Context, to model.Email, code string) error {
	m.sent = append(m.sent, code)
	if m.sendFn != nil {
		return m.sendFn(ctx, to, code)
	}
	return nil
}

type mockMetrics struct {
	signups       int
	loginSuccess  int
	loginFailure  int
	twoFAIssued   int
	twoFAVerified int
	tokensRevoked int
}

func (m *mockMetrics) RecordSignup()        { m.signups++ }
func (m *mockMetrics) RecordLoginSuccess()  { m.loginSuccess++ }
func (m *mockMetrics) RecordLoginFailure()  { m.loginFailure++ }
func (m *mockMetrics) RecordTwoFAIssued()   { m.twoFAIssued++ }
func (m *mockMetrics) RecordTwoFAVerified() { m.twoFAVerified++ }
func (m *mockMetrics) RecordTokenRevoked()  { m.tokensRevoked++ }

func newTestTokenService() *token.Service {
	return token.NewService([]byte("test-secret"), 10*time.Minute, store.NewMemoryBannedTokenStore())
}

// インメモリストアをすべて使用したサービスを生成する
func newTestService() *Service {
	return NewService(
		store.NewMemoryUserStore(),
		store.NewMemoryTwoFACodeStore(),
		newTestTokenService(),
		nil,
		nil,
	)
}

// --- SignUp ---

// 新規アカウントの登録が成功することを検証
func TestService_SignUp_Success(t *testing.T) {
	svc := newTestService()

	if err := svc.SignUp(context.Background(), "user@example.com", "password123", false); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

// 重複登録がErrUserAlreadyExistsになることを検証
func TestService_SignUp_Duplicate(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	if err := svc.SignUp(ctx, "user@example.com", "password123", false); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	err := svc.SignUp(ctx, "user@example.com", "password456", false)
	if !errors.Is(err, ErrUserAlreadyExists) {
		t.Errorf("err = %v, want ErrUserAlreadyExists", err)
	}
}

// ストア障害がErrUserAlreadyExistsに化けないことを検証
func TestService_SignUp_StoreFailure(t *testing.T) {
	users := &mockUserStore{
		createFn: func(ctx context.Context, email model.Email, password model.Password, requires2FA bool) error {
			return errors.New("connection refused")
		},
	}
	svc := NewService(users, store.NewMemoryTwoFACodeStore(), newTestTokenService(), nil, nil)

	err := svc.SignUp(context.Background(), "user@example.com", "password123", false)
	if err == nil {
		t.Fatal("expected error")
	}
	if errors.Is(err, ErrUserAlreadyExists) {
		t.Error("store failure should not map to ErrUserAlreadyExists")
	}
}

// --- Login ---

// 二要素認証が不要なアカウントのログインがトークンを返すことを検証
func TestService_Login_Success_NoTwoFA(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	if err := svc.SignUp(ctx, "user@example.com", "password123", false); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	result, err := svc.Login(ctx, "user@example.com", "password123")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.TwoFARequired {
		t.Error("twoFARequired should be false")
	}
	if result.Token == "" {
		t.Error("expected non-empty token")
	}
}

// 未登録アカウントのログインがErrIncorrectCredentialsになることを検証
func TestService_Login_UnknownAccount(t *testing.T) {
	svc := newTestService()

	_, err := svc.Login(context.Background(), "nobody@example.com", "password123")
	if !errors.Is(err, ErrIncorrectCredentials) {
		t.Errorf("err = %v, want ErrIncorrectCredentials", err)
	}
}

// 誤ったパスワードがErrIncorrectCredentialsになることを検証
// （未登録との区別がつかないこと）
func TestService_Login_WrongPassword(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	if err := svc.SignUp(ctx, "user@example.com", "password123", false); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	_, err := svc.Login(ctx, "user@example.com", "password456")
	if !errors.Is(err, ErrIncorrectCredentials) {
		t.Errorf("err = %v, want ErrIncorrectCredentials", err)
	}
}

// 二要素認証が必要なアカウントのログインがチャレンジを返し、トークンを発行しないことを検証
func TestService_Login_TwoFARequired(t *testing.T) {
	sender := &mockSender{}
	challenges := store.NewMemoryTwoFACodeStore()
	users := store.NewMemoryUserStore()
	svc := NewService(users, challenges, newTestTokenService(), sender, nil)
	ctx := context.Background()

	if err := svc.SignUp(ctx, "user@example.com", "password123", true); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	result, err := svc.Login(ctx, "user@example.com", "password123")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.TwoFARequired {
		t.Fatal("twoFARequired should be true")
	}
	if result.Token != "" {
		t.Error("token should be empty when 2FA is required")
	}
	if result.LoginAttemptID == "" {
		t.Error("expected non-empty loginAttemptID")
	}

	// コードがメール送信境界に渡されること
	if len(sender.sent) != 1 {
		t.Fatalf("sent count = %d, want 1", len(sender.sent))
	}

	// ストアのチャレンジとAttemptIDが一致すること
	challenge, err := challenges.Get(ctx, "user@example.com")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if challenge.AttemptID != result.LoginAttemptID {
		t.Error("stored attemptID does not match login result")
	}
	if challenge.Code != sender.sent[0] {
		t.Error("sent code does not match stored challenge")
	}
}

// メール送信失敗がログインを失敗させないことを検証
func TestService_Login_SenderFailureIsNonFatal(t *testing.T) {
	sender := &mockSender{
		sendFn: func(ctx context.Context, to model.Email, code string) error {
			return errors.New("smtp unavailable")
		},
	}
	svc := NewService(store.NewMemoryUserStore(), store.NewMemoryTwoFACodeStore(), newTestTokenService(), sender, nil)
	ctx := context.Background()

	if err := svc.SignUp(ctx, "user@example.com", "password123", true); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	result, err := svc.Login(ctx, "user@example.com", "password123")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.TwoFARequired {
		t.Error("twoFARequired should be true")
	}
}

// 再ログインで古いチャレンジが無効になることを検証
func TestService_Login_SecondLoginInvalidatesPreviousChallenge(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	if err := svc.SignUp(ctx, "user@example.com", "password123", true); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	first, err := svc.Login(ctx, "user@example.com", "password123")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := svc.Login(ctx, "user@example.com", "password123"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// 古いAttemptIDでの検証は失敗する
	_, err = svc.VerifyTwoFA(ctx, "user@example.com", first.LoginAttemptID, "123456")
	if !errors.Is(err, ErrIncorrectCredentials) {
		t.Errorf("err = %v, want ErrIncorrectCredentials", err)
	}
}

// --- VerifyTwoFA ---

// 正しいチャレンジの検証がトークンを発行することを検証
func TestService_VerifyTwoFA_Success(t *testing.T) {
	challenges := store.NewMemoryTwoFACodeStore()
	svc := NewService(store.NewMemoryUserStore(), challenges, newTestTokenService(), nil, nil)
	ctx := context.Background()

	if err := svc.SignUp(ctx, "user@example.com", "password123", true); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	result, err := svc.Login(ctx, "user@example.com", "password123")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	challenge, err := challenges.Get(ctx, "user@example.com")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	tokenString, err := svc.VerifyTwoFA(ctx, "user@example.com", result.LoginAttemptID, challenge.Code)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tokenString == "" {
		t.Fatal("expected non-empty token")
	}

	// 発行されたトークンが検証を通ること
	claims, err := svc.VerifyToken(ctx, tokenString)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if claims.Subject != "user@example.com" {
		t.Errorf("subject = %q, want %q", claims.Subject, "user@example.com")
	}
}

// 同じチャレンジの二度目の検証が失敗することを検証（ワンタイム性）
func TestService_VerifyTwoFA_OneTimeUse(t *testing.T) {
	challenges := store.NewMemoryTwoFACodeStore()
	svc := NewService(store.NewMemoryUserStore(), challenges, newTestTokenService(), nil, nil)
	ctx := context.Background()

	if err := svc.SignUp(ctx, "user@example.com", "password123", true); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	result, err := svc.Login(ctx, "user@example.com", "password123")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	challenge, err := challenges.Get(ctx, "user@example.com")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, err := svc.VerifyTwoFA(ctx, "user@example.com", result.LoginAttemptID, challenge.Code); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	_, err = svc.VerifyTwoFA(ctx, "user@example.com", result.LoginAttemptID, challenge.Code)
	if !errors.Is(err, ErrIncorrectCredentials) {
		t.Errorf("err = %v, want ErrIncorrectCredentials", err)
	}
}

// 保留中チャレンジのないEmailの検証がErrIncorrectCredentialsになることを検証
func TestService_VerifyTwoFA_NoPendingChallenge(t *testing.T) {
	svc := newTestService()

	_, err := svc.VerifyTwoFA(context.Background(), "nobody@example.com", "attempt-id", "123456")
	if !errors.Is(err, ErrIncorrectCredentials) {
		t.Errorf("err = %v, want ErrIncorrectCredentials", err)
	}
}

// --- Logout / VerifyToken ---

// ログアウト後のトークンが無効になることを検証
func TestService_Logout_RevokesToken(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	if err := svc.SignUp(ctx, "user@example.com", "password123", false); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	result, err := svc.Login(ctx, "user@example.com", "password123")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := svc.Logout(ctx, result.Token); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, err := svc.VerifyToken(ctx, result.Token); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("err = %v, want ErrInvalidToken after logout", err)
	}
}

// 無効なトークンでのログアウトがErrInvalidTokenになることを検証
func TestService_Logout_InvalidToken(t *testing.T) {
	svc := newTestService()

	err := svc.Logout(context.Background(), "garbage")
	if !errors.Is(err, ErrInvalidToken) {
		t.Errorf("err = %v, want ErrInvalidToken", err)
	}
}

// 二度目のログアウトが成功扱いになることを検証
// （一度目のログアウトでトークンが失効済みのため、ErrInvalidTokenになる）
func TestService_Logout_Twice(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	if err := svc.SignUp(ctx, "user@example.com", "password123", false); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	result, err := svc.Login(ctx, "user@example.com", "password123")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := svc.Logout(ctx, result.Token); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// 二度目は検証の時点で失効済みとして拒否される
	err = svc.Logout(ctx, result.Token)
	if !errors.Is(err, ErrInvalidToken) {
		t.Errorf("err = %v, want ErrInvalidToken", err)
	}
}

// VerifyTokenが有効なトークンのクレームを返すことを検証
func TestService_VerifyToken_Success(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	if err := svc.SignUp(ctx, "user@example.com", "password123", false); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	result, err := svc.Login(ctx, "user@example.com", "password123")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	claims, err := svc.VerifyToken(ctx, result.Token)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if claims.Subject != "user@example.com" {
		t.Errorf("subject = %q, want %q", claims.Subject, "user@example.com")
	}
}

// --- メトリクス ---

// 各フローが対応するメトリクスを記録することを検証
func TestService_Metrics(t *testing.T) {
	m := &mockMetrics{}
	challenges := store.NewMemoryTwoFACodeStore()
	svc := NewService(store.NewMemoryUserStore(), challenges, newTestTokenService(), nil, m)
	ctx := context.Background()

	if err := svc.SignUp(ctx, "user@example.com", "password123", true); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if m.signups != 1 {
		t.Errorf("signups = %d, want 1", m.signups)
	}

	if _, err := svc.Login(ctx, "user@example.com", "wrongpassword"); !errors.Is(err, ErrIncorrectCredentials) {
		t.Fatalf("expected ErrIncorrectCredentials, got %v", err)
	}
	if m.loginFailure != 1 {
		t.Errorf("loginFailure = %d, want 1", m.loginFailure)
	}

	result, err := svc.Login(ctx, "user@example.com", "password123")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if m.twoFAIssued != 1 {
		t.Errorf("twoFAIssued = %d, want 1", m.twoFAIssued)
	}

	challenge, err := challenges.Get(ctx, "user@example.com")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	tokenString, err := svc.VerifyTwoFA(ctx, "user@example.com", result.LoginAttemptID, challenge.Code)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if m.twoFAVerified != 1 {
		t.Errorf("twoFAVerified = %d, want 1", m.twoFAVerified)
	}
	if m.loginSuccess != 1 {
		t.Errorf("loginSuccess = %d, want 1", m.loginSuccess)
	}

	if err := svc.Logout(ctx, tokenString); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if m.tokensRevoked != 1 {
		t.Errorf("tokensRevoked = %d, want 1", m.tokensRevoked)
	}
}
