package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/localbite/internal/middleware"
	"github.com/hitoshi/localbite/internal/model"
	"github.com/hitoshi/localbite/internal/recipe"
)

// RecipeServiceInterface はレシピハンドラーが必要とするサービスインターフェース。
type RecipeServiceInterface interface {
	Create(ctx context.Context, authorID string, in recipe.CreateInput) (*recipe.FeedItem, error)
	Get(ctx context.Context, id, viewerID string) (*recipe.FeedItem, error)
	Edit(ctx context.Context, userID, id string, in recipe.EditInput) (*recipe.FeedItem, error)
	Delete(ctx context.Context, userID, id string) error
	Query(ctx context.Context, p recipe.FeedParams, viewerID string) (*recipe.FeedPage, error)
	Like(ctx context.Context, userID, id string) (*model.LikeResult, error)
	Unlike(ctx context.Context, userID, id string) (*model.LikeResult, error)
}

// RecipeHandler はレシピ関連のHTTPハンドラー。
type RecipeHandler struct {
	service RecipeServiceInterface
}

// NewRecipeHandler はRecipeHandlerを生成する。
func NewRecipeHandler(service RecipeServiceInterface) *RecipeHandler {
	return &RecipeHandler{service: service}
}

// Feed は検索条件に一致するレシピの1ページを返す。
// 不正なクエリパラメータはエラーにせず既定値に置き換える。
// GET /api/recipes
func (h *RecipeHandler) Feed(w http.ResponseWriter, r *http.Request) {
	params := recipe.ParseFeedParams(r.URL.Query())

	page, err := h.service.Query(r.Context(), params, middleware.ViewerID(r.Context()))
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toFeedResponse(page))
}

// Create はレシピを作成する。
// POST /api/recipes
func (h *RecipeHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	var in recipe.CreateInput
	if !decodeJSON(w, r, &in) {
		return
	}

	item, err := h.service.Create(r.Context(), userID, in)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toRecipeResponse(item))
}

// Get はレシピを1件返す。
// GET /api/recipes/{id}
func (h *RecipeHandler) Get(w http.ResponseWriter, r *http.Request) {
	item, err := h.service.Get(r.Context(), chi.URLParam(r, "id"), middleware.ViewerID(r.Context()))
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toRecipeResponse(item))
}

// Edit はレシピを部分更新する。作成者本人のみ実行できる。
// PATCH /api/recipes/{id}
func (h *RecipeHandler) Edit(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	var in recipe.EditInput
	if !decodeJSON(w, r, &in) {
		return
	}

	item, err := h.service.Edit(r.Context(), userID, chi.URLParam(r, "id"), in)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toRecipeResponse(item))
}

// Delete はレシピを削除する。作成者本人のみ実行できる。
// DELETE /api/recipes/{id}
func (h *RecipeHandler) Delete(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	if err := h.service.Delete(r.Context(), userID, chi.URLParam(r, "id")); err != nil {
		handleServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Like はレシピをお気に入りに追加する。
// PATCH /api/recipes/{id}/like
func (h *RecipeHandler) Like(w http.ResponseWriter, r *http.Request) {
	h.toggleLike(w, r, true)
}

// Unlike はレシピをお気に入りから外す。
// PATCH /api/recipes/{id}/dislike
func (h *RecipeHandler) Unlike(w http.ResponseWriter, r *http.Request) {
	h.toggleLike(w, r, false)
}

func (h *RecipeHandler) toggleLike(w http.ResponseWriter, r *http.Request, like bool) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	id := chi.URLParam(r, "id")
	var (
		result *model.LikeResult
		err    error
	)
	if like {
		result, err = h.service.Like(r.Context(), userID, id)
	} else {
		result, err = h.service.Unlike(r.Context(), userID, id)
	}
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, likeResponse{LikeCount: result.LikeCount, Liked: result.Liked})
}
