package recipe

import (
	"strings"

	"github.com/hitoshi/localbite/internal/model"
	"github.com/hitoshi/localbite/internal/security"
)

// LocationInput はリクエストに含まれる自由記述のロケーション。
// 必須項目の確認はロケーション解決時に行う。
type LocationInput struct {
	Locality string `json:"locality" validate:"max=100"`
	Area     string `json:"area" validate:"max=100"`
	Country  string `json:"country" validate:"max=100"`
}

// IngredientInput は材料1行の入力。
type IngredientInput struct {
	Ingredient string   `json:"ingredient" validate:"notblank,max=100"`
	Amount     *float64 `json:"amount" validate:"omitempty,gte=0"`
	Measure    string   `json:"measure" validate:"max=20"`
}

// CreateInput はレシピ作成の入力。
type CreateInput struct {
	Title           string            `json:"title" validate:"notblank,max=100"`
	Description     string            `json:"description" validate:"max=500"`
	Ingredients     []IngredientInput `json:"ingredients" validate:"min=1,max=100,dive"`
	Instructions    []string          `json:"instructions" validate:"min=1,max=100,dive,notblank,max=200"`
	DishTypes       []string          `json:"dishTypes" validate:"unique,dive,dishtype"`
	PictureURL      string            `json:"picture" validate:"max=2048"`
	PicturePublicID string            `json:"picturePublicId" validate:"max=200"`
	Location        *LocationInput    `json:"location" validate:"required"`
}

// EditInput はレシピ編集の入力。nilのフィールドは変更しない。
type EditInput struct {
	Title           *string           `json:"title" validate:"omitempty,notblank,max=100"`
	Description     *string           `json:"description" validate:"omitempty,max=500"`
	Ingredients     []IngredientInput `json:"ingredients" validate:"omitempty,min=1,max=100,dive"`
	Instructions    []string          `json:"instructions" validate:"omitempty,min=1,max=100,dive,notblank,max=200"`
	DishTypes       []string          `json:"dishTypes" validate:"omitempty,unique,dive,dishtype"`
	PictureURL      *string           `json:"picture" validate:"omitempty,max=2048"`
	PicturePublicID *string           `json:"picturePublicId" validate:"omitempty,max=200"`
	Location        *LocationInput    `json:"location"`
}

// sanitize はテキスト項目からHTMLを取り除く。
func (in *CreateInput) sanitize(s security.TextSanitizer) {
	in.Title = s.Sanitize(in.Title)
	in.Description = s.Sanitize(in.Description)
	in.Instructions = security.SanitizeAll(s, in.Instructions)
	sanitizeIngredients(s, in.Ingredients)
	in.PictureURL = strings.TrimSpace(in.PictureURL)
}

func (in *EditInput) sanitize(s security.TextSanitizer) {
	if in.Title != nil {
		v := s.Sanitize(*in.Title)
		in.Title = &v
	}
	if in.Description != nil {
		v := s.Sanitize(*in.Description)
		in.Description = &v
	}
	in.Instructions = security.SanitizeAll(s, in.Instructions)
	sanitizeIngredients(s, in.Ingredients)
	if in.PictureURL != nil {
		v := strings.TrimSpace(*in.PictureURL)
		in.PictureURL = &v
	}
}

func sanitizeIngredients(s security.TextSanitizer, ings []IngredientInput) {
	for i := range ings {
		ings[i].Ingredient = s.Sanitize(ings[i].Ingredient)
		ings[i].Measure = s.Sanitize(ings[i].Measure)
	}
}

func toIngredients(in []IngredientInput) []model.Ingredient {
	if in == nil {
		return nil
	}
	out := make([]model.Ingredient, len(in))
	for i, ing := range in {
		out[i] = model.Ingredient{
			Ingredient: ing.Ingredient,
			Amount:     ing.Amount,
			Measure:    ing.Measure,
		}
	}
	return out
}
