package model

import "time"

// DishType はレシピの料理種別タグ。
type DishType string

// 定義済みの料理種別
const (
	DishTypeBreakfast DishType = "Breakfast"
	DishTypeLunch     DishType = "Lunch"
	DishTypeDinner    DishType = "Dinner"
	DishTypeDessert   DishType = "Dessert"
	DishTypeVegan     DishType = "Vegan"
	DishTypeBBQ       DishType = "BBQ"
	DishTypeSoup      DishType = "Soup"
	DishTypeSalad     DishType = "Salad"
	DishTypeDrink     DishType = "Drink"
)

// AllDishTypes は有効な料理種別の一覧。
var AllDishTypes = []DishType{
	DishTypeBreakfast, DishTypeLunch, DishTypeDinner, DishTypeDessert, DishTypeVegan,
	DishTypeBBQ, DishTypeSoup, DishTypeSalad, DishTypeDrink,
}

// IsValidDishType は料理種別が定義済みかどうかを返す。
func IsValidDishType(s string) bool {
	for _, d := range AllDishTypes {
		if string(d) == s {
			return true
		}
	}
	return false
}

// Ingredient はレシピの材料1行を表す。
type Ingredient struct {
	Ingredient string   `json:"ingredient"`
	Amount     *float64 `json:"amount,omitempty"`
	Measure    string   `json:"measure,omitempty"`
}

// LocationSnapshot はレシピ作成・編集時点のロケーション表示名のコピー。
type LocationSnapshot struct {
	Locality string
	Area     string
	Country  string
}

// Recipe は共有されたレシピを表す。
// LocationSnapshotとPointは参照先Locationのキャッシュであり、
// LocationIDの変更と同時に書き換えられる。
type Recipe struct {
	ID               string
	AuthorID         string
	Title            string
	Description      string
	Ingredients      []Ingredient
	Instructions     []string
	DishTypes        []string
	PictureURL       string
	PicturePublicID  string
	LocationID       string
	LocationSnapshot LocationSnapshot
	Point            Point
	LikeCount        int
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// Author はレシピ作成者の公開情報。
type Author struct {
	ID       string
	Fullname string
	Username string
}

// RecipeWithAuthor はレシピに作成者情報を結合したモデル。
type RecipeWithAuthor struct {
	Recipe
	Author     Author
	DistanceKm *float64 // 近傍検索時のみ設定される
}

// RecipeUpdate はレシピの部分更新内容を表す。
// Locationを変更する場合は LocationID・LocationSnapshot・Point を必ず揃えて設定する。
type RecipeUpdate struct {
	Title           *string
	Description     *string
	Ingredients     []Ingredient
	Instructions    []string
	DishTypes       []string
	PictureURL      *string
	PicturePublicID *string
	Location        *Location
}

// LikeResult はいいね操作後の状態を表す。
type LikeResult struct {
	LikeCount int
	Liked     bool
}
