package repository

import (
	"fmt"
	"strings"

	"github.com/lib/pq"
)

// SortField はフィードの並び替えキー。
type SortField string

// 並び替え可能なフィールド
const (
	SortCreatedAt SortField = "createdAt"
	SortUpdatedAt SortField = "updatedAt"
	SortTitle     SortField = "title"
	SortLikeCount SortField = "likeCount"
)

// sortExpressions は並び替えキーとSQL式の対応。
// titleはICUのルートロケール照合順序で大文字小文字を無視して比較する。
var sortExpressions = map[SortField]string{
	SortCreatedAt: "r.created_at",
	SortUpdatedAt: "r.updated_at",
	SortTitle:     `lower(r.title) COLLATE "und-x-icu"`,
	SortLikeCount: "r.like_count",
}

// Valid は並び替え可能なフィールドかどうかを返す。
func (f SortField) Valid() bool {
	_, ok := sortExpressions[f]
	return ok
}

// earthRadiusKm は球面距離の計算に使う地球半径（km）。
const earthRadiusKm = 6371.0

// kmPerDegreeLat は緯度1度あたりの距離（km）。近傍検索の範囲絞り込みに使う。
const kmPerDegreeLat = 111.045

// NearFilter は近傍検索条件を表す。
type NearFilter struct {
	Lng   float64
	Lat   float64
	MaxKm float64
}

// FeedQuery はフィード検索条件を表す。値は呼び出し側で検証・正規化済みであること。
type FeedQuery struct {
	AuthorID  string   // 空の場合は絞り込まない
	DishTypes []string // いずれかを含むレシピに一致
	Country   string   // 空の場合は絞り込まない
	Text      string   // タイトル・説明・材料名に対する部分一致
	Near      *NearFilter
	Sort      SortField
	SortAsc   bool
	Cursor    string // 最後に取得したレシピID
	Limit     int    // 取得件数（次ページ判定用の1件を含む）
}

// CursorApplies はカーソルを条件に含めるかどうかを返す。
// IDの順序が作成日時の降順と一致するため、createdAt降順かつ近傍検索なしの場合のみ有効。
func (q FeedQuery) CursorApplies() bool {
	return q.Cursor != "" && q.Near == nil && q.Sort == SortCreatedAt && !q.SortAsc
}

const feedSelectColumns = `r.id, r.author_id, r.title, r.description, r.ingredients, r.instructions, r.dish_types,
		       r.picture_url, r.picture_public_id, r.location_id, r.loc_locality, r.loc_area, r.loc_country,
		       r.lng, r.lat, r.like_count, r.created_at, r.updated_at,
		       u.fullname, u.username`

const feedOuterColumns = `id, author_id, title, description, ingredients, instructions, dish_types,
		       picture_url, picture_public_id, location_id, loc_locality, loc_area, loc_country,
		       lng, lat, like_count, created_at, updated_at,
		       fullname, username, distance_km`

// BuildFeedQuery はフィード検索のSQLと引数を組み立てる。
//
// 近傍検索が指定されていない場合は「絞り込み→並び替え→カーソル」の形でクエリを組み、
// 並び替えキーの後ろに id DESC を付けて同値時の順序を安定させる。
// 近傍検索が指定された場合は距離順の検索が主となり、
// その他の条件は副次的な絞り込みとして内側のクエリに適用する。並び替え指定は無視する。
func BuildFeedQuery(q FeedQuery) (string, []interface{}) {
	var (
		conds    []string
		args     []interface{}
		argIndex = 1
	)
	next := func(v interface{}) string {
		args = append(args, v)
		p := fmt.Sprintf("$%d", argIndex)
		argIndex++
		return p
	}

	if q.AuthorID != "" {
		conds = append(conds, "r.author_id = "+next(q.AuthorID))
	}
	if len(q.DishTypes) > 0 {
		conds = append(conds, "r.dish_types && "+next(pq.Array(q.DishTypes))+"::text[]")
	}
	if q.Country != "" {
		conds = append(conds, "r.loc_country = "+next(q.Country))
	}
	if q.Text != "" {
		p := next("%" + EscapeLike(q.Text) + "%")
		conds = append(conds, fmt.Sprintf(
			`(r.title ILIKE %[1]s ESCAPE '\' OR r.description ILIKE %[1]s ESCAPE '\'`+
				` OR EXISTS (SELECT 1 FROM jsonb_array_elements(r.ingredients) AS ing WHERE ing->>'ingredient' ILIKE %[1]s ESCAPE '\'))`,
			p,
		))
	}

	if q.Near != nil {
		lat := next(q.Near.Lat)
		lng := next(q.Near.Lng)
		delta := next(q.Near.MaxKm / kmPerDegreeLat)
		// 緯度方向の範囲でインデックスを使って候補を絞る
		conds = append(conds, fmt.Sprintf("r.lat BETWEEN %[1]s::double precision - %[2]s::double precision AND %[1]s::double precision + %[2]s::double precision", lat, delta))

		distance := fmt.Sprintf(
			`%[3]g * 2 * ASIN(SQRT(POWER(SIN(RADIANS(r.lat - %[1]s::double precision) / 2), 2)`+
				` + COS(RADIANS(%[1]s::double precision)) * COS(RADIANS(r.lat)) * POWER(SIN(RADIANS(r.lng - %[2]s::double precision) / 2), 2)))`,
			lat, lng, earthRadiusKm,
		)

		inner := "SELECT " + feedSelectColumns + ",\n\t\t       " + distance + " AS distance_km\n" +
			"\t\tFROM recipes r\n\t\tJOIN users u ON u.id = r.author_id" + whereClause(conds)

		query := "SELECT " + feedOuterColumns + "\n\t\tFROM (" + inner + ") AS feed\n" +
			"\t\tWHERE distance_km <= " + next(q.Near.MaxKm) +
			"\n\t\tORDER BY distance_km ASC, id DESC\n\t\tLIMIT " + next(q.Limit)
		return query, args
	}

	if q.CursorApplies() {
		conds = append(conds, "r.id < "+next(q.Cursor))
	}

	sortExpr, ok := sortExpressions[q.Sort]
	if !ok {
		sortExpr = sortExpressions[SortCreatedAt]
	}
	dir := "DESC"
	if q.SortAsc {
		dir = "ASC"
	}

	query := "SELECT " + feedSelectColumns + ",\n\t\t       NULL::double precision AS distance_km\n" +
		"\t\tFROM recipes r\n\t\tJOIN users u ON u.id = r.author_id" + whereClause(conds) +
		fmt.Sprintf("\n\t\tORDER BY %s %s, r.id DESC\n\t\tLIMIT %s", sortExpr, dir, next(q.Limit))
	return query, args
}

func whereClause(conds []string) string {
	if len(conds) == 0 {
		return ""
	}
	return "\n\t\tWHERE " + strings.Join(conds, "\n\t\t  AND ")
}

// likeEscaper はLIKEパターンのメタ文字をエスケープする。
var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// EscapeLike はLIKE/ILIKEのメタ文字（\ % _）をエスケープし、入力をリテラルとして扱えるようにする。
func EscapeLike(s string) string {
	return likeEscaper.Replace(s)
}
