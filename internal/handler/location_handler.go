package handler

import (
	"context"
	"fmt"
	"net/http"

	"github.com/hitoshi/localbite/internal/model"
)

// LocationLister は登録済みロケーションの一覧を返す。
type LocationLister interface {
	ListAll(ctx context.Context) ([]*model.Location, error)
}

// LocationHandler はロケーション一覧のHTTPハンドラー。
type LocationHandler struct {
	locations LocationLister
}

// NewLocationHandler はLocationHandlerを生成する。
func NewLocationHandler(locations LocationLister) *LocationHandler {
	return &LocationHandler{locations: locations}
}

type locationListResponse struct {
	Count     int                 `json:"count"`
	Locations []*locationResponse `json:"locations"`
}

// All は全ロケーションを返す。
// GET /api/loc/all
func (h *LocationHandler) All(w http.ResponseWriter, r *http.Request) {
	locs, err := h.locations.ListAll(r.Context())
	if err != nil {
		handleServiceError(w, fmt.Errorf("ロケーション一覧の取得に失敗しました: %w", err))
		return
	}

	resp := locationListResponse{
		Count:     len(locs),
		Locations: make([]*locationResponse, len(locs)),
	}
	for i, loc := range locs {
		resp.Locations[i] = toLocationResponse(loc)
	}
	writeJSON(w, http.StatusOK, resp)
}

type coordsResponse struct {
	Count  int          `json:"count"`
	Coords [][2]float64 `json:"coords"`
}

// Coords は全ロケーションの座標を[lng, lat]の組で返す。地図表示用。
// GET /api/loc/all/coords
func (h *LocationHandler) Coords(w http.ResponseWriter, r *http.Request) {
	locs, err := h.locations.ListAll(r.Context())
	if err != nil {
		handleServiceError(w, fmt.Errorf("ロケーション一覧の取得に失敗しました: %w", err))
		return
	}

	resp := coordsResponse{
		Count:  len(locs),
		Coords: make([][2]float64, len(locs)),
	}
	for i, loc := range locs {
		resp.Coords[i] = [2]float64{loc.Point.Lng, loc.Point.Lat}
	}
	writeJSON(w, http.StatusOK, resp)
}
