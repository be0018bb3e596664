package recipe

import (
	"math"
	"net/url"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/hitoshi/localbite/internal/repository"
)

// フィードのページングと近傍検索の既定値
const (
	DefaultLimit = 20
	MaxLimit     = 100
	DefaultMaxKm = 10.0
)

// countryAll は国による絞り込みを行わないことを表す値。
const countryAll = "all"

// FeedParams はフィード取得のクエリパラメータを検証・正規化したもの。
type FeedParams struct {
	AuthorID  string
	DishTypes []string
	Country   string
	Text      string
	Near      *repository.NearFilter
	Sort      repository.SortField
	SortAsc   bool
	Cursor    string
	Limit     int
}

// ParseFeedParams はURLクエリからフィード取得条件を組み立てる。
//
// 不正な値はエラーにせず既定値に置き換えるか無視する。
// authorIdとcursorはUUIDとして解釈できない場合は無視する。
// nearLngとnearLatの両方が範囲内の数値の場合のみ近傍検索を有効にする。
func ParseFeedParams(v url.Values) FeedParams {
	p := FeedParams{
		Sort:  repository.SortCreatedAt,
		Limit: DefaultLimit,
	}

	if id, ok := parseUUID(v.Get("authorId")); ok {
		p.AuthorID = id
	}

	for _, tag := range strings.Split(v.Get("dishTypes"), ",") {
		if tag = strings.TrimSpace(tag); tag != "" {
			p.DishTypes = append(p.DishTypes, tag)
		}
	}

	if country := strings.TrimSpace(v.Get("country")); !strings.EqualFold(country, countryAll) {
		p.Country = country
	}

	p.Text = strings.TrimSpace(v.Get("q"))

	lng, lngOK := parseCoordinate(v.Get("nearLng"), 180)
	lat, latOK := parseCoordinate(v.Get("nearLat"), 90)
	if lngOK && latOK {
		maxKm, err := strconv.ParseFloat(strings.TrimSpace(v.Get("maxKm")), 64)
		if err != nil || maxKm <= 0 || math.IsInf(maxKm, 0) || math.IsNaN(maxKm) {
			maxKm = DefaultMaxKm
		}
		p.Near = &repository.NearFilter{Lng: lng, Lat: lat, MaxKm: maxKm}
	}

	if raw := strings.TrimSpace(v.Get("sort")); raw != "" {
		field, dir, _ := strings.Cut(raw, ":")
		if f := repository.SortField(strings.TrimSpace(field)); f.Valid() {
			p.Sort = f
		}
		p.SortAsc = strings.EqualFold(strings.TrimSpace(dir), "asc")
	}

	if n, err := strconv.Atoi(strings.TrimSpace(v.Get("limit"))); err == nil {
		p.Limit = clamp(n, 1, MaxLimit)
	}

	if id, ok := parseUUID(v.Get("cursor")); ok {
		p.Cursor = id
	}

	return p
}

// query はリポジトリに渡す検索条件を返す。次ページ判定のため1件多く取得する。
func (p FeedParams) query() repository.FeedQuery {
	return repository.FeedQuery{
		AuthorID:  p.AuthorID,
		DishTypes: p.DishTypes,
		Country:   p.Country,
		Text:      p.Text,
		Near:      p.Near,
		Sort:      p.Sort,
		SortAsc:   p.SortAsc,
		Cursor:    p.Cursor,
		Limit:     p.Limit + 1,
	}
}

// parseUUID はUUIDとして解釈できる場合に正規形の文字列を返す。
func parseUUID(s string) (string, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", false
	}
	id, err := uuid.Parse(s)
	if err != nil {
		return "", false
	}
	return id.String(), true
}

func parseCoordinate(s string, bound float64) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || f < -bound || f > bound {
		return 0, false
	}
	return f, true
}

func clamp(n, lo, hi int) int {
	if n < lo {
		return lo
	}
	if n > hi {
		return hi
	}
	return n
}
