package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/localbite/internal/middleware"
	"github.com/hitoshi/localbite/internal/model"
	"github.com/hitoshi/localbite/internal/user"
)

// UserServiceInterface はユーザーハンドラーが必要とするサービスインターフェース。
type UserServiceInterface interface {
	Me(ctx context.Context, userID string) (*model.UserProfile, error)
	Profile(ctx context.Context, username string) (*model.UserProfile, error)
	UpdateProfile(ctx context.Context, userID string, in user.ProfileInput) (*model.UserProfile, error)
	UpdateProfilePic(ctx context.Context, userID, rawURL string) (*model.UserProfile, error)
	Delete(ctx context.Context, userID string) error
}

// UserHandler はプロフィール関連のHTTPハンドラー。
type UserHandler struct {
	service UserServiceInterface
	cookie  CookieConfig
}

// NewUserHandler はUserHandlerを生成する。
func NewUserHandler(service UserServiceInterface, cookie CookieConfig) *UserHandler {
	return &UserHandler{
		service: service,
		cookie:  cookie,
	}
}

// Me はログイン中のユーザーのプロフィールを返す。
// GET /api/auth/me
func (h *UserHandler) Me(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	p, err := h.service.Me(r.Context(), userID)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toProfileResponse(p, true))
}

// Profile はユーザー名で公開プロフィールを返す。
// GET /api/auth/profile/{username}
func (h *UserHandler) Profile(w http.ResponseWriter, r *http.Request) {
	p, err := h.service.Profile(r.Context(), chi.URLParam(r, "username"))
	if err != nil {
		handleServiceError(w, err)
		return
	}
	self := middleware.ViewerID(r.Context()) == p.ID
	writeJSON(w, http.StatusOK, toProfileResponse(p, self))
}

// UpdateProfile はプロフィールを部分更新する。
// PATCH /api/auth/update-profile
func (h *UserHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	var in user.ProfileInput
	if !decodeJSON(w, r, &in) {
		return
	}

	p, err := h.service.UpdateProfile(r.Context(), userID, in)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toProfileResponse(p, true))
}

type updateProfilePicRequest struct {
	ProfilePic string `json:"profilePic"`
}

// UpdateProfilePic はプロフィール画像のURLを更新する。
// PATCH /api/auth/update-profile-pic
func (h *UserHandler) UpdateProfilePic(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	var req updateProfilePicRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	p, err := h.service.UpdateProfilePic(r.Context(), userID, req.ProfilePic)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toProfileResponse(p, true))
}

// DeleteProfile はアカウントを削除し、認証Cookieを失効させる。
// DELETE /api/auth/delete-profile
func (h *UserHandler) DeleteProfile(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	if err := h.service.Delete(r.Context(), userID); err != nil {
		handleServiceError(w, err)
		return
	}

	clearAuthCookie(w, h.cookie)
	w.WriteHeader(http.StatusNoContent)
}
