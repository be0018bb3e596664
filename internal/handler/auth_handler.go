package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/hitoshi/localbite/internal/auth"
	"github.com/hitoshi/localbite/internal/middleware"
)

// AuthServiceInterface は認証ハンドラーが必要とするサービスインターフェース。
type AuthServiceInterface interface {
	Signup(ctx context.Context, in auth.SignupInput) (*auth.Session, error)
	Signin(ctx context.Context, in auth.SigninInput) (*auth.Session, error)
}

// CookieConfig は認証Cookieの設定。
type CookieConfig struct {
	Secure bool
	MaxAge time.Duration // トークンの有効期間と揃える
}

// AuthHandler はサインアップ・サインイン・サインアウトのHTTPハンドラー。
type AuthHandler struct {
	service AuthServiceInterface
	cookie  CookieConfig
}

// NewAuthHandler はAuthHandlerを生成する。
func NewAuthHandler(service AuthServiceInterface, cookie CookieConfig) *AuthHandler {
	return &AuthHandler{
		service: service,
		cookie:  cookie,
	}
}

// Signup はユーザーを登録し、認証Cookieを設定する。
// POST /api/auth/signup
func (h *AuthHandler) Signup(w http.ResponseWriter, r *http.Request) {
	var in auth.SignupInput
	if !decodeJSON(w, r, &in) {
		return
	}

	session, err := h.service.Signup(r.Context(), in)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	setAuthCookie(w, session.Token, h.cookie)
	writeJSON(w, http.StatusCreated, toUserResponse(session.User))
}

// Signin はメールアドレスまたはユーザー名とパスワードで認証し、認証Cookieを設定する。
// POST /api/auth/signin
func (h *AuthHandler) Signin(w http.ResponseWriter, r *http.Request) {
	var in auth.SigninInput
	if !decodeJSON(w, r, &in) {
		return
	}

	session, err := h.service.Signin(r.Context(), in)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	setAuthCookie(w, session.Token, h.cookie)
	writeJSON(w, http.StatusOK, toUserResponse(session.User))
}

// Signout は認証Cookieを失効させる。トークン自体は期限まで有効なまま残る。
// POST /api/auth/signout
func (h *AuthHandler) Signout(w http.ResponseWriter, r *http.Request) {
	clearAuthCookie(w, h.cookie)
	writeJSON(w, http.StatusOK, map[string]string{"message": "ログアウトしました。"})
}

func setAuthCookie(w http.ResponseWriter, token string, cfg CookieConfig) {
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.AuthCookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(cfg.MaxAge / time.Second),
		HttpOnly: true,
		Secure:   cfg.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

func clearAuthCookie(w http.ResponseWriter, cfg CookieConfig) {
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.AuthCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   cfg.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}
