// Package handler はHTTPハンドラーとルーティングを提供する。
package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/goccy/go-json"

	"github.com/hitoshi/localbite/internal/middleware"
	"github.com/hitoshi/localbite/internal/model"
	"github.com/hitoshi/localbite/internal/recipe"
)

// maxBodyBytes はリクエストボディの上限。
const maxBodyBytes = 1 << 20

// writeJSON はJSONレスポンスを書き込む。
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("レスポンスの書き込みに失敗しました", slog.String("error", err.Error()))
	}
}

// decodeJSON はリクエストボディをデコードする。失敗した場合は400を書き込んでfalseを返す。
func decodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewValidationError("JSONの形式が正しくありません"))
		return false
	}
	return true
}

// writeAPIErrorResponse は統一エラーフォーマットでエラーを書き込む。
func writeAPIErrorResponse(w http.ResponseWriter, statusCode int, apiErr *model.APIError) {
	middleware.WriteErrorResponse(w, statusCode, apiErr)
}

// requireUserID は認証済みユーザーIDを取り出す。取得できない場合は401を書き込む。
func requireUserID(w http.ResponseWriter, r *http.Request) (string, bool) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return "", false
	}
	return userID, true
}

// handleServiceError はサービス層から返されたエラーを適切なHTTPステータスコードに変換する。
func handleServiceError(w http.ResponseWriter, err error) {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		writeAPIErrorResponse(w, mapAPIErrorToHTTPStatus(apiErr), apiErr)
		return
	}

	// APIError以外のエラーは内部サーバーエラーとして扱う
	slog.Error("internal server error", slog.String("error", err.Error()))
	middleware.WriteInternalServerError(w)
}

// mapAPIErrorToHTTPStatus はAPIErrorコードからHTTPステータスコードにマッピングする。
func mapAPIErrorToHTTPStatus(apiErr *model.APIError) int {
	switch apiErr.Code {
	case model.ErrCodeValidation, model.ErrCodeUnknownCountry, model.ErrCodeInvalidURL:
		return http.StatusBadRequest
	case model.ErrCodeGeocodingFailed:
		return http.StatusBadGateway
	case model.ErrCodeRecipeNotFound, model.ErrCodeUserNotFound:
		return http.StatusNotFound
	case model.ErrCodeForbidden:
		return http.StatusForbidden
	case model.ErrCodeConflict:
		return http.StatusConflict
	case model.ErrCodeUnauthorized, model.ErrCodeInvalidCredentials:
		return http.StatusUnauthorized
	case model.ErrCodeRateLimited:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// --- レスポンス表現 ---

type locationResponse struct {
	ID          string     `json:"id"`
	Locality    string     `json:"locality"`
	Area        string     `json:"area"`
	Country     string     `json:"country"`
	CountryCode string     `json:"countryCode"`
	Formatted   string     `json:"formatted"`
	Coordinates [2]float64 `json:"coordinates"` // [lng, lat]
	CreatedAt   time.Time  `json:"createdAt"`
}

func toLocationResponse(loc *model.Location) *locationResponse {
	if loc == nil {
		return nil
	}
	return &locationResponse{
		ID:          loc.ID,
		Locality:    loc.Locality,
		Area:        loc.Area,
		Country:     loc.Country,
		CountryCode: loc.CountryCode,
		Formatted:   loc.Formatted,
		Coordinates: [2]float64{loc.Point.Lng, loc.Point.Lat},
		CreatedAt:   loc.CreatedAt,
	}
}

// userResponse はユーザーの公開表現。パスワードハッシュは含めない。
type userResponse struct {
	ID              string            `json:"id"`
	Fullname        string            `json:"fullname"`
	Username        string            `json:"username"`
	Email           string            `json:"email,omitempty"`
	Bio             string            `json:"bio"`
	ProfilePic      string            `json:"profilePic"`
	DefaultLocation *locationResponse `json:"defaultLocation"`
	Favs            []string          `json:"favs,omitempty"`
	RecipeCount     *int              `json:"recipeCount,omitempty"`
	CreatedAt       time.Time         `json:"createdAt"`
}

func toUserResponse(u *model.User) userResponse {
	return userResponse{
		ID:         u.ID,
		Fullname:   u.Fullname,
		Username:   u.Username,
		Email:      u.Email,
		Bio:        u.Bio,
		ProfilePic: u.ProfilePicURL,
		CreatedAt:  u.CreatedAt,
	}
}

// toProfileResponse はプロフィールを表現に変換する。
// 本人以外に返す場合はメールアドレスとお気に入りを含めない。
func toProfileResponse(p *model.UserProfile, self bool) userResponse {
	resp := toUserResponse(&p.User)
	resp.DefaultLocation = toLocationResponse(p.DefaultLocation)
	count := p.RecipeCount
	resp.RecipeCount = &count
	if self {
		resp.Favs = p.Favs
		if resp.Favs == nil {
			resp.Favs = []string{}
		}
	} else {
		resp.Email = ""
	}
	return resp
}

type authorResponse struct {
	ID       string `json:"id"`
	Fullname string `json:"fullname"`
	Username string `json:"username"`
}

type recipeLocationResponse struct {
	ID          string     `json:"id"`
	Locality    string     `json:"locality"`
	Area        string     `json:"area"`
	Country     string     `json:"country"`
	Coordinates [2]float64 `json:"coordinates"`
}

type recipeResponse struct {
	ID              string                 `json:"id"`
	Title           string                 `json:"title"`
	Description     string                 `json:"description"`
	Ingredients     []model.Ingredient     `json:"ingredients"`
	Instructions    []string               `json:"instructions"`
	DishTypes       []string               `json:"dishTypes"`
	Picture         string                 `json:"picture"`
	PicturePublicID string                 `json:"picturePublicId"`
	Location        recipeLocationResponse `json:"location"`
	LikeCount       int                    `json:"likeCount"`
	Author          authorResponse         `json:"author"`
	LikedByMe       *bool                  `json:"likedByMe,omitempty"`
	DistanceKm      *float64               `json:"distanceKm,omitempty"`
	CreatedAt       time.Time              `json:"createdAt"`
	UpdatedAt       time.Time              `json:"updatedAt"`
}

func toRecipeResponse(item *recipe.FeedItem) recipeResponse {
	rw := item.RecipeWithAuthor
	resp := recipeResponse{
		ID:              rw.ID,
		Title:           rw.Title,
		Description:     rw.Description,
		Ingredients:     rw.Ingredients,
		Instructions:    rw.Instructions,
		DishTypes:       rw.DishTypes,
		Picture:         rw.PictureURL,
		PicturePublicID: rw.PicturePublicID,
		Location: recipeLocationResponse{
			ID:          rw.LocationID,
			Locality:    rw.LocationSnapshot.Locality,
			Area:        rw.LocationSnapshot.Area,
			Country:     rw.LocationSnapshot.Country,
			Coordinates: [2]float64{rw.Point.Lng, rw.Point.Lat},
		},
		LikeCount: rw.LikeCount,
		Author: authorResponse{
			ID:       rw.Author.ID,
			Fullname: rw.Author.Fullname,
			Username: rw.Author.Username,
		},
		LikedByMe:  item.LikedByMe,
		DistanceKm: rw.DistanceKm,
		CreatedAt:  rw.CreatedAt,
		UpdatedAt:  rw.UpdatedAt,
	}
	if resp.Ingredients == nil {
		resp.Ingredients = []model.Ingredient{}
	}
	if resp.Instructions == nil {
		resp.Instructions = []string{}
	}
	if resp.DishTypes == nil {
		resp.DishTypes = []string{}
	}
	return resp
}

type feedResponse struct {
	Recipes     []recipeResponse `json:"recipes"`
	NextCursor  *string          `json:"nextCursor"`
	HasNextPage bool             `json:"hasNextPage"`
	PageSize    int              `json:"pageSize"`
	Count       int              `json:"count"`
}

func toFeedResponse(page *recipe.FeedPage) feedResponse {
	resp := feedResponse{
		Recipes:     make([]recipeResponse, len(page.Items)),
		HasNextPage: page.HasNextPage,
		PageSize:    page.PageSize,
		Count:       page.Count,
	}
	for i := range page.Items {
		resp.Recipes[i] = toRecipeResponse(&page.Items[i])
	}
	if page.NextCursor != "" {
		cursor := page.NextCursor
		resp.NextCursor = &cursor
	}
	return resp
}

type likeResponse struct {
	LikeCount int  `json:"likeCount"`
	Liked     bool `json:"liked"`
}
