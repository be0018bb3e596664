package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/hitoshi/localbite/internal/model"
	"github.com/hitoshi/localbite/internal/recipe"
	"github.com/hitoshi/localbite/internal/repository"
)

// --- モック定義 ---

type mockRecipeService struct {
	createFn func(ctx context.Context, authorID string, in recipe.CreateInput) (*recipe.FeedItem, error)
	getFn    func(ctx context.Context, id, viewerID string) (*recipe.FeedItem, error)
	editFn   func(ctx context.Context, userID, id string, in recipe.EditInput) (*recipe.FeedItem, error)
	deleteFn func(ctx context.Context, userID, id string) error
	queryFn  func(ctx context.Context, p recipe.FeedParams, viewerID string) (*recipe.FeedPage, error)
	likeFn   func(ctx context.Context, userID, id string) (*model.LikeResult, error)
	unlikeFn func(ctx context.Context, userID, id string) (*model.LikeResult, error)
}

func (m *mockRecipeService) Create(ctx context.Context, authorID string, in recipe.CreateInput) (*recipe.FeedItem, error) {
	if m.createFn != nil {
		return m.createFn(ctx, authorID, in)
	}
	return nil, nil
}

func (m *mockRecipeService) Get(ctx context.Context, id, viewerID string) (*recipe.FeedItem, error) {
	if m.getFn != nil {
		return m.getFn(ctx, id, viewerID)
	}
	return nil, nil
}

func (m *mockRecipeService) Edit(ctx context.Context, userID, id string, in recipe.EditInput) (*recipe.FeedItem, error) {
	if m.editFn != nil {
		return m.editFn(ctx, userID, id, in)
	}
	return nil, nil
}

func (m *mockRecipeService) Delete(ctx context.Context, userID, id string) error {
	if m.deleteFn != nil {
		return m.deleteFn(ctx, userID, id)
	}
	return nil
}

func (m *mockRecipeService) Query(ctx context.Context, p recipe.FeedParams, viewerID string) (*recipe.FeedPage, error) {
	if m.queryFn != nil {
		return m.queryFn(ctx, p, viewerID)
	}
	return &recipe.FeedPage{}, nil
}

func (m *mockRecipeService) Like(ctx context.Context, userID, id string) (*model.LikeResult, error) {
	if m.likeFn != nil {
		return m.likeFn(ctx, userID, id)
	}
	return nil, nil
}

func (m *mockRecipeService) Unlike(ctx context.Context, userID, id string) (*model.LikeResult, error) {
	if m.unlikeFn != nil {
		return m.unlikeFn(ctx, userID, id)
	}
	return nil, nil
}

const testRecipeID = "0190a1b2-c3d4-7e5f-8a9b-0c1d2e3f4a5b"

func testFeedItem(id string) *recipe.FeedItem {
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	return &recipe.FeedItem{
		RecipeWithAuthor: &model.RecipeWithAuthor{
			Recipe: model.Recipe{
				ID:               id,
				AuthorID:         "user-1",
				Title:            "Takoyaki",
				Instructions:     []string{"Mix", "Bake"},
				DishTypes:        []string{"Lunch"},
				LocationID:       "loc-1",
				LocationSnapshot: model.LocationSnapshot{Locality: "Namba", Area: "Osaka", Country: "Japan"},
				Point:            model.Point{Lng: 135.5, Lat: 34.6},
				LikeCount:        4,
				CreatedAt:        now,
				UpdatedAt:        now,
			},
			Author: model.Author{ID: "user-1", Fullname: "Hana", Username: "hana"},
		},
	}
}

// --- GET /api/recipes ---

func TestRecipeHandler_Feed_ParsesParamsAndViewer(t *testing.T) {
	liked := true
	item := testFeedItem(testRecipeID)
	item.LikedByMe = &liked
	dist := 1.25
	item.DistanceKm = &dist

	h := NewRecipeHandler(&mockRecipeService{
		queryFn: func(ctx context.Context, p recipe.FeedParams, viewerID string) (*recipe.FeedPage, error) {
			if viewerID != "user-2" {
				t.Errorf("viewerID = %q, want user-2", viewerID)
			}
			if p.Limit != 5 {
				t.Errorf("Limit = %d, want 5", p.Limit)
			}
			if p.Sort != repository.SortLikeCount || p.SortAsc {
				t.Errorf("Sort = %s asc=%v, want likeCount desc", p.Sort, p.SortAsc)
			}
			return &recipe.FeedPage{
				Items:       []recipe.FeedItem{*item},
				NextCursor:  testRecipeID,
				HasNextPage: true,
				PageSize:    5,
				Count:       1,
			}, nil
		},
	})

	req := httptest.NewRequest(http.MethodGet, "/api/recipes?limit=5&sort=likeCount:desc", nil)
	req = withUserID(req, "user-2")
	w := httptest.NewRecorder()
	h.Feed(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}

	var body feedResponse
	decodeBody(t, w, &body)
	if !body.HasNextPage || body.NextCursor == nil || *body.NextCursor != testRecipeID {
		t.Errorf("paging = %+v", body)
	}
	if body.Count != 1 || body.PageSize != 5 {
		t.Errorf("Count = %d, PageSize = %d", body.Count, body.PageSize)
	}
	got := body.Recipes[0]
	if got.Author.Username != "hana" {
		t.Errorf("Author = %+v", got.Author)
	}
	if got.LikedByMe == nil || !*got.LikedByMe {
		t.Errorf("LikedByMe = %v, want true", got.LikedByMe)
	}
	if got.DistanceKm == nil || *got.DistanceKm != 1.25 {
		t.Errorf("DistanceKm = %v, want 1.25", got.DistanceKm)
	}
	if got.Location.Coordinates != [2]float64{135.5, 34.6} {
		t.Errorf("Coordinates = %v", got.Location.Coordinates)
	}
}

// 最終ページではnextCursorをnullで返す
func TestRecipeHandler_Feed_LastPageHasNullCursor(t *testing.T) {
	h := NewRecipeHandler(&mockRecipeService{
		queryFn: func(ctx context.Context, p recipe.FeedParams, viewerID string) (*recipe.FeedPage, error) {
			if viewerID != "" {
				t.Errorf("viewerID = %q, want anonymous", viewerID)
			}
			return &recipe.FeedPage{PageSize: 20}, nil
		},
	})

	w := httptest.NewRecorder()
	h.Feed(w, httptest.NewRequest(http.MethodGet, "/api/recipes?limit=abc&cursor=bogus", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	var raw map[string]interface{}
	decodeBody(t, w, &raw)
	if v, ok := raw["nextCursor"]; !ok || v != nil {
		t.Errorf("nextCursor = %v, want null", v)
	}
	if recipes, ok := raw["recipes"].([]interface{}); !ok || len(recipes) != 0 {
		t.Errorf("recipes = %v, want empty array", raw["recipes"])
	}
}

// --- POST /api/recipes ---

func TestRecipeHandler_Create(t *testing.T) {
	h := NewRecipeHandler(&mockRecipeService{
		createFn: func(ctx context.Context, authorID string, in recipe.CreateInput) (*recipe.FeedItem, error) {
			if authorID != "user-1" {
				t.Errorf("authorID = %q, want user-1", authorID)
			}
			if in.Title != "Takoyaki" || in.Location == nil || in.Location.Locality != "Namba" {
				t.Errorf("input = %+v", in)
			}
			if len(in.DishTypes) != 1 || in.DishTypes[0] != "Lunch" {
				t.Errorf("DishTypes = %v", in.DishTypes)
			}
			return testFeedItem(testRecipeID), nil
		},
	})

	body := map[string]interface{}{
		"title":        "Takoyaki",
		"instructions": []string{"Mix", "Bake"},
		"dishTypes":    []string{"Lunch"},
		"location":     map[string]string{"locality": "Namba", "area": "Osaka", "country": "Japan"},
	}
	req := withUserID(httptest.NewRequest(http.MethodPost, "/api/recipes", jsonBody(t, body)), "user-1")
	w := httptest.NewRecorder()
	h.Create(w, req)

	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, want %d; body=%s", w.Code, http.StatusCreated, w.Body.String())
	}
	var got recipeResponse
	decodeBody(t, w, &got)
	if got.ID != testRecipeID || got.Location.Locality != "Namba" {
		t.Errorf("body = %+v", got)
	}
	if got.LikedByMe != nil {
		t.Errorf("LikedByMe = %v, want omitted", *got.LikedByMe)
	}
}

func TestRecipeHandler_Create_ErrorMapping(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"validation", model.NewValidationError("title"), http.StatusBadRequest, model.ErrCodeValidation},
		{"unknown country", model.NewUnknownCountryError("Atlantis"), http.StatusBadRequest, model.ErrCodeUnknownCountry},
		{"geocoding", model.NewGeocodingError("no result"), http.StatusBadGateway, model.ErrCodeGeocodingFailed},
		{"duplicate title", model.NewConflictError("このタイトル"), http.StatusConflict, model.ErrCodeConflict},
		{"picture url", model.NewInvalidURLError("scheme"), http.StatusBadRequest, model.ErrCodeInvalidURL},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewRecipeHandler(&mockRecipeService{
				createFn: func(ctx context.Context, authorID string, in recipe.CreateInput) (*recipe.FeedItem, error) {
					return nil, tt.err
				},
			})
			req := withUserID(httptest.NewRequest(http.MethodPost, "/api/recipes", jsonBody(t, map[string]string{})), "user-1")
			w := httptest.NewRecorder()
			h.Create(w, req)

			assertErrorCode(t, w, tt.status, tt.code)
		})
	}
}

// --- GET /api/recipes/{id} ---

func TestRecipeHandler_Get_NotFound(t *testing.T) {
	h := NewRecipeHandler(&mockRecipeService{
		getFn: func(ctx context.Context, id, viewerID string) (*recipe.FeedItem, error) {
			if id != "not-a-uuid" {
				t.Errorf("id = %q", id)
			}
			return nil, model.NewRecipeNotFoundError(id)
		},
	})

	req := withChiURLParam(httptest.NewRequest(http.MethodGet, "/api/recipes/not-a-uuid", nil), "id", "not-a-uuid")
	w := httptest.NewRecorder()
	h.Get(w, req)

	assertErrorCode(t, w, http.StatusNotFound, model.ErrCodeRecipeNotFound)
}

// --- PATCH /api/recipes/{id} ---

func TestRecipeHandler_Edit_Forbidden(t *testing.T) {
	h := NewRecipeHandler(&mockRecipeService{
		editFn: func(ctx context.Context, userID, id string, in recipe.EditInput) (*recipe.FeedItem, error) {
			if in.Title == nil || *in.Title != "New" {
				t.Errorf("Title = %v, want New", in.Title)
			}
			if in.Location != nil {
				t.Errorf("Location = %+v, want nil", in.Location)
			}
			return nil, model.NewForbiddenError()
		},
	})

	req := httptest.NewRequest(http.MethodPatch, "/api/recipes/"+testRecipeID, jsonBody(t, map[string]string{"title": "New"}))
	req = withChiURLParam(withUserID(req, "user-2"), "id", testRecipeID)
	w := httptest.NewRecorder()
	h.Edit(w, req)

	assertErrorCode(t, w, http.StatusForbidden, model.ErrCodeForbidden)
}

// --- DELETE /api/recipes/{id} ---

func TestRecipeHandler_Delete(t *testing.T) {
	var gotUser, gotID string
	h := NewRecipeHandler(&mockRecipeService{
		deleteFn: func(ctx context.Context, userID, id string) error {
			gotUser, gotID = userID, id
			return nil
		},
	})

	req := withChiURLParam(withUserID(httptest.NewRequest(http.MethodDelete, "/", nil), "user-1"), "id", testRecipeID)
	w := httptest.NewRecorder()
	h.Delete(w, req)

	if w.Code != http.StatusNoContent {
		t.Errorf("status = %d, want %d", w.Code, http.StatusNoContent)
	}
	if gotUser != "user-1" || gotID != testRecipeID {
		t.Errorf("Delete(%q, %q)", gotUser, gotID)
	}
}

func TestRecipeHandler_Delete_NoUserID_ReturnsUnauthorized(t *testing.T) {
	h := NewRecipeHandler(&mockRecipeService{})

	w := httptest.NewRecorder()
	h.Delete(w, httptest.NewRequest(http.MethodDelete, "/", nil))

	assertErrorCode(t, w, http.StatusUnauthorized, model.ErrCodeUnauthorized)
}

// --- PATCH /api/recipes/{id}/like, /dislike ---

func TestRecipeHandler_LikeAndUnlike(t *testing.T) {
	h := NewRecipeHandler(&mockRecipeService{
		likeFn: func(ctx context.Context, userID, id string) (*model.LikeResult, error) {
			return &model.LikeResult{LikeCount: 5, Liked: true}, nil
		},
		unlikeFn: func(ctx context.Context, userID, id string) (*model.LikeResult, error) {
			return &model.LikeResult{LikeCount: 4, Liked: false}, nil
		},
	})

	req := withChiURLParam(withUserID(httptest.NewRequest(http.MethodPatch, "/", nil), "user-1"), "id", testRecipeID)
	w := httptest.NewRecorder()
	h.Like(w, req)

	var liked likeResponse
	decodeBody(t, w, &liked)
	if liked.LikeCount != 5 || !liked.Liked {
		t.Errorf("like = %+v, want {5 true}", liked)
	}

	w = httptest.NewRecorder()
	h.Unlike(w, req)

	var unliked likeResponse
	decodeBody(t, w, &unliked)
	if unliked.LikeCount != 4 || unliked.Liked {
		t.Errorf("unlike = %+v, want {4 false}", unliked)
	}
}

func TestRecipeHandler_Like_NotFound(t *testing.T) {
	h := NewRecipeHandler(&mockRecipeService{
		likeFn: func(ctx context.Context, userID, id string) (*model.LikeResult, error) {
			return nil, model.NewRecipeNotFoundError(id)
		},
	})

	req := withChiURLParam(withUserID(httptest.NewRequest(http.MethodPatch, "/", nil), "user-1"), "id", testRecipeID)
	w := httptest.NewRecorder()
	h.Like(w, req)

	assertErrorCode(t, w, http.StatusNotFound, model.ErrCodeRecipeNotFound)
}
