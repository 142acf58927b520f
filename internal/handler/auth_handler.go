// Package handler はHTTPハンドラーを提供する。
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/hitoshi/authgate/internal/auth"
	"github.com/hitoshi/authgate/internal/middleware"
	"github.com/hitoshi/authgate/internal/model"
	"github.com/hitoshi/authgate/internal/token"
)

// セッションCookie名。既存クライアントとの互換のため固定。
const jwtCookieName = "jwt"

// AuthServiceInterface は認証ハンドラーが必要とするサービスインターフェース。
type AuthServiceInterface interface {
	SignUp(ctx context.Context, email model.Email, password model.Password, requires2FA bool) error
	Login(ctx context.Context, email model.Email, password model.Password) (*auth.LoginResult, error)
	VerifyTwoFA(ctx context.Context, email model.Email, attemptID, code string) (string, error)
	Logout(ctx context.Context, token string) error
	VerifyToken(ctx context.Context, token string) (*token.Claims, error)
}

// AuthHandlerConfig は認証ハンドラーの設定。
type AuthHandlerConfig struct {
	CookieDomain string
	CookieSecure bool
	TokenMaxAge  int // セッションCookieの有効期間（秒）。トークンTTLと揃える。
}

// AuthHandler は認証関連のHTTPハンドラー。
type AuthHandler struct {
	service AuthServiceInterface
	config  AuthHandlerConfig
}

// NewAuthHandler はAuthHandlerを生成する。
func NewAuthHandler(service AuthServiceInterface, config AuthHandlerConfig) *AuthHandler {
	return &AuthHandler{
		service: service,
		config:  config,
	}
}

type signupRequest struct {
	Email       string `json:"email"`
	Password    string `json:"password"`
	Requires2FA bool   `json:"requires2FA"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type verify2FARequest struct {
	Email          string `json:"email"`
	LoginAttemptID string `json:"loginAttemptId"`
	TwoFACode      string `json:"twoFACode"`
}

type verifyTokenRequest struct {
	Token string `json:"token"`
}

type messageResponse struct {
	Message string `json:"message"`
}

type twoFARequiredResponse struct {
	Message        string `json:"message"`
	LoginAttemptID string `json:"loginAttemptId"`
}

// Signup は新規アカウントを登録する。
// POST /signup
func (h *AuthHandler) Signup(w http.ResponseWriter, r *http.Request) {
	var req signupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewInvalidInputError("JSONとして解釈できません"))
		return
	}

	email, err := model.ParseEmail(req.Email)
	if err != nil {
		writeValidationError(w, err)
		return
	}
	pw, err := model.ParsePassword(req.Password)
	if err != nil {
		writeValidationError(w, err)
		return
	}

	if err := h.service.SignUp(r.Context(), email, pw, req.Requires2FA); err != nil {
		if errors.Is(err, auth.ErrUserAlreadyExists) {
			middleware.WriteErrorResponse(w, http.StatusConflict, model.NewUserAlreadyExistsError())
			return
		}
		slog.Error("signup failed", slog.String("error", err.Error()))
		middleware.WriteInternalServerError(w)
		return
	}

	writeJSON(w, http.StatusCreated, messageResponse{Message: "ユーザーを登録しました。"})
}

// Login はパスワード認証を行い、セッションCookieまたは二要素認証チャレンジを返す。
// 二要素認証が必要な場合は206でloginAttemptIdを返し、Cookieは設定しない。
// POST /login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewInvalidInputError("JSONとして解釈できません"))
		return
	}

	email, err := model.ParseEmail(req.Email)
	if err != nil {
		writeValidationError(w, err)
		return
	}
	pw, err := model.ParsePassword(req.Password)
	if err != nil {
		writeValidationError(w, err)
		return
	}

	result, err := h.service.Login(r.Context(), email, pw)
	if err != nil {
		if errors.Is(err, auth.ErrIncorrectCredentials) {
			middleware.WriteErrorResponse(w, http.StatusUnauthorized, model.NewIncorrectCredentialsError())
			return
		}
		slog.Error("login failed", slog.String("error", err.Error()))
		middleware.WriteInternalServerError(w)
		return
	}

	if result.TwoFARequired {
		// コードは応答に含めない（メール送信境界経由でのみ配布される）
		writeJSON(w, http.StatusPartialContent, twoFARequiredResponse{
			Message:        "二要素認証コードを送信しました。",
			LoginAttemptID: result.LoginAttemptID,
		})
		return
	}

	h.setAuthCookie(w, result.Token)
	w.WriteHeader(http.StatusOK)
}

// Verify2FA は二要素認証チャレンジを検証し、成功時にセッションCookieを設定する。
// POST /verify-2fa
func (h *AuthHandler) Verify2FA(w http.ResponseWriter, r *http.Request) {
	var req verify2FARequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewInvalidInputError("JSONとして解釈できません"))
		return
	}

	email, err := model.ParseEmail(req.Email)
	if err != nil {
		writeValidationError(w, err)
		return
	}
	// 形式不正なIDやコードはストアに問い合わせず400で弾く
	attemptID, err := model.ParseLoginAttemptID(req.LoginAttemptID)
	if err != nil {
		writeValidationError(w, err)
		return
	}
	code, err := model.ParseTwoFACode(req.TwoFACode)
	if err != nil {
		writeValidationError(w, err)
		return
	}

	tokenString, err := h.service.VerifyTwoFA(r.Context(), email, attemptID, code)
	if err != nil {
		if errors.Is(err, auth.ErrIncorrectCredentials) {
			middleware.WriteErrorResponse(w, http.StatusUnauthorized, model.NewIncorrectCredentialsError())
			return
		}
		slog.Error("2FA verification failed", slog.String("error", err.Error()))
		middleware.WriteInternalServerError(w)
		return
	}

	h.setAuthCookie(w, tokenString)
	w.WriteHeader(http.StatusOK)
}

// Logout はセッショントークンを失効させ、Cookieを削除する。
// Cookieが存在しない場合は400、トークンが無効な場合は401を返し、何も失効させない。
// POST /logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	cookie, err := r.Cookie(jwtCookieName)
	if err != nil || cookie.Value == "" {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewMissingTokenError())
		return
	}

	if err := h.service.Logout(r.Context(), cookie.Value); err != nil {
		if errors.Is(err, auth.ErrInvalidToken) {
			middleware.WriteErrorResponse(w, http.StatusUnauthorized, model.NewInvalidTokenError())
			return
		}
		slog.Error("logout failed", slog.String("error", err.Error()))
		middleware.WriteInternalServerError(w)
		return
	}

	h.clearAuthCookie(w)
	w.WriteHeader(http.StatusOK)
}

// VerifyToken はリクエストボディのトークンを検証する。副作用はない。
// POST /verify-token
func (h *AuthHandler) VerifyToken(w http.ResponseWriter, r *http.Request) {
	var req verifyTokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewInvalidInputError("JSONとして解釈できません"))
		return
	}

	if _, err := h.service.VerifyToken(r.Context(), req.Token); err != nil {
		middleware.WriteErrorResponse(w, http.StatusUnauthorized, model.NewInvalidTokenError())
		return
	}

	w.WriteHeader(http.StatusOK)
}

// setAuthCookie はセッショントークンをHTTP Only Cookieとして設定する。
func (h *AuthHandler) setAuthCookie(w http.ResponseWriter, tokenString string) {
	http.SetCookie(w, &http.Cookie{
		Name:     jwtCookieName,
		Value:    tokenString,
		Path:     "/",
		Domain:   h.config.CookieDomain,
		MaxAge:   h.config.TokenMaxAge,
		HttpOnly: true,
		Secure:   h.config.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}

// clearAuthCookie はセッションCookieを削除する。
func (h *AuthHandler) clearAuthCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     jwtCookieName,
		Value:    "",
		Path:     "/",
		Domain:   h.config.CookieDomain,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.config.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}

// writeValidationError はバリデーションエラーを400で書き込む。
// APIError以外のエラーは汎用の入力エラーに変換する。
func writeValidationError(w http.ResponseWriter, err error) {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, apiErr)
		return
	}
	middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewInvalidInputError(err.Error()))
}

// writeJSON はJSONレスポンスを書き込む。
func writeJSON(w http.ResponseWriter, statusCode int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(body)
}
