package repository

import (
	"strings"
	"testing"
)

func TestEscapeLike(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"ramen", "ramen"},
		{"a.*b", "a.*b"},
		{"100%", `100\%`},
		{"snake_case", `snake\_case`},
		{`back\slash`, `back\\slash`},
		{`%_\`, `\%\_\\`},
	}

	for _, tt := range tests {
		if got := EscapeLike(tt.in); got != tt.want {
			t.Errorf("EscapeLike(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

// 条件なしの場合はcreatedAt降順 + id降順のタイブレークになることを検証
func TestBuildFeedQuery_DefaultSortWithTieBreak(t *testing.T) {
	query, args := BuildFeedQuery(FeedQuery{Sort: SortCreatedAt, Limit: 21})

	if !strings.Contains(query, "ORDER BY r.created_at DESC, r.id DESC") {
		t.Errorf("query should order by created_at desc with id tie-break: %s", query)
	}
	if strings.Contains(query, "WHERE") {
		t.Errorf("query should have no WHERE clause: %s", query)
	}
	if len(args) != 1 || args[0] != 21 {
		t.Errorf("args = %v, want [21]", args)
	}
}

// 未知の並び替えキーはcreatedAtにフォールバックし、昇順指定が反映されることを検証
func TestBuildFeedQuery_SortFields(t *testing.T) {
	tests := []struct {
		name string
		sort SortField
		asc  bool
		want string
	}{
		{"title asc", SortTitle, true, `ORDER BY lower(r.title) COLLATE "und-x-icu" ASC, r.id DESC`},
		{"likeCount desc", SortLikeCount, false, "ORDER BY r.like_count DESC, r.id DESC"},
		{"updatedAt asc", SortUpdatedAt, true, "ORDER BY r.updated_at ASC, r.id DESC"},
		{"unknown", SortField("password"), false, "ORDER BY r.created_at DESC, r.id DESC"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			query, _ := BuildFeedQuery(FeedQuery{Sort: tt.sort, SortAsc: tt.asc, Limit: 21})
			if !strings.Contains(query, tt.want) {
				t.Errorf("query should contain %q: %s", tt.want, query)
			}
		})
	}
}

// カーソルはcreatedAt降順かつ近傍検索なしの場合のみ適用されることを検証
func TestBuildFeedQuery_CursorOnlyForCreatedAtDesc(t *testing.T) {
	const cursor = "0190a5c4-0000-7000-8000-000000000000"

	tests := []struct {
		name  string
		q     FeedQuery
		apply bool
	}{
		{"createdAt desc", FeedQuery{Sort: SortCreatedAt, Cursor: cursor, Limit: 21}, true},
		{"createdAt asc", FeedQuery{Sort: SortCreatedAt, SortAsc: true, Cursor: cursor, Limit: 21}, false},
		{"title desc", FeedQuery{Sort: SortTitle, Cursor: cursor, Limit: 21}, false},
		{"near", FeedQuery{Sort: SortCreatedAt, Cursor: cursor, Near: &NearFilter{Lng: 1, Lat: 2, MaxKm: 10}, Limit: 21}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.q.CursorApplies(); got != tt.apply {
				t.Errorf("CursorApplies() = %v, want %v", got, tt.apply)
			}

			query, args := BuildFeedQuery(tt.q)
			hasCursor := strings.Contains(query, "r.id < $")
			if hasCursor != tt.apply {
				t.Errorf("cursor condition present = %v, want %v: %s", hasCursor, tt.apply, query)
			}
			found := false
			for _, a := range args {
				if a == cursor {
					found = true
				}
			}
			if found != tt.apply {
				t.Errorf("cursor arg present = %v, want %v", found, tt.apply)
			}
		})
	}
}

// 絞り込み条件がプレースホルダ付きで連結されることを検証
func TestBuildFeedQuery_Filters(t *testing.T) {
	query, args := BuildFeedQuery(FeedQuery{
		AuthorID:  "0190a5c4-0000-7000-8000-000000000001",
		DishTypes: []string{"Soup", "Vegan"},
		Country:   "Japan",
		Text:      "a.*b%",
		Sort:      SortCreatedAt,
		Limit:     21,
	})

	for _, want := range []string{
		"r.author_id = $1",
		"r.dish_types && $2::text[]",
		"r.loc_country = $3",
		`r.title ILIKE $4 ESCAPE '\'`,
		`r.description ILIKE $4 ESCAPE '\'`,
		`ing->>'ingredient' ILIKE $4 ESCAPE '\'`,
		"LIMIT $5",
	} {
		if !strings.Contains(query, want) {
			t.Errorf("query should contain %q: %s", want, query)
		}
	}

	if len(args) != 5 {
		t.Fatalf("len(args) = %d, want 5", len(args))
	}
	if args[3] != `%a.*b\%%` {
		t.Errorf("text pattern = %v, want %q", args[3], `%a.*b\%%`)
	}
}

// 近傍検索は距離順となり、並び替え指定を上書きすることを検証
func TestBuildFeedQuery_NearOverridesSort(t *testing.T) {
	query, args := BuildFeedQuery(FeedQuery{
		Country: "France",
		Near:    &NearFilter{Lng: 2.35, Lat: 48.85, MaxKm: 5},
		Sort:    SortTitle,
		SortAsc: true,
		Limit:   11,
	})

	if !strings.Contains(query, "ORDER BY distance_km ASC, id DESC") {
		t.Errorf("query should order by distance: %s", query)
	}
	if strings.Contains(query, "lower(r.title)") {
		t.Errorf("near query should ignore requested sort: %s", query)
	}
	if !strings.Contains(query, "r.loc_country = $1") {
		t.Errorf("other filters should apply inside near query: %s", query)
	}
	if !strings.Contains(query, "WHERE distance_km <= $5") {
		t.Errorf("query should bound distance by maxKm: %s", query)
	}

	// Country, lat, lng, 緯度方向の幅, maxKm, limit
	if len(args) != 6 {
		t.Fatalf("len(args) = %d, want 6: %v", len(args), args)
	}
	if args[1] != 48.85 || args[2] != 2.35 {
		t.Errorf("lat/lng args = %v, %v", args[1], args[2])
	}
	if args[4] != 5.0 || args[5] != 11 {
		t.Errorf("maxKm/limit args = %v, %v", args[4], args[5])
	}
}
