// Package validation はgo-playground/validatorによるリクエスト構造体の検証を提供する。
// 検証エラーはmodel.APIError（VALIDATION_ERROR）に変換して返す。
package validation

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/go-playground/validator/v10/non-standard/validators"

	"github.com/hitoshi/localbite/internal/model"
)

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

// Validator はシングルトンのバリデータを返す。構造体情報はキャッシュされ、並行利用できる。
func Validator() *validator.Validate {
	validateOnce.Do(func() {
		v := validator.New(validator.WithRequiredStructEnabled())

		// エラーメッセージのフィールド名はJSONのキー名を使う
		v.RegisterTagNameFunc(func(f reflect.StructField) string {
			name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
			if name == "-" {
				return ""
			}
			if name == "" {
				return f.Name
			}
			return name
		})

		// 空白のみの文字列を未入力として扱う
		if err := v.RegisterValidation("notblank", validators.NotBlank); err != nil {
			panic(fmt.Sprintf("notblankバリデータの登録に失敗しました: %v", err))
		}

		if err := v.RegisterValidation("dishtype", func(fl validator.FieldLevel) bool {
			return model.IsValidDishType(fl.Field().String())
		}); err != nil {
			panic(fmt.Sprintf("dishtypeバリデータの登録に失敗しました: %v", err))
		}

		validate = v
	})
	return validate
}

// Struct は構造体を検証する。違反がある場合は全フィールド分をまとめた*model.APIErrorを返す。
func Struct(s interface{}) error {
	err := Validator().Struct(s)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return model.NewValidationError(err.Error())
	}

	messages := make([]string, len(fieldErrs))
	for i, fe := range fieldErrs {
		messages[i] = translate(fe)
	}
	return model.NewValidationError(strings.Join(messages, "; "))
}

// fieldPath は先頭の構造体名を除いたフィールドの位置を返す（例: ingredients[0].amount）。
func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if _, rest, ok := strings.Cut(ns, "."); ok {
		return rest
	}
	return fe.Field()
}

func translate(fe validator.FieldError) string {
	field := fieldPath(fe)
	param := fe.Param()

	switch fe.Tag() {
	case "required", "notblank":
		return fmt.Sprintf("%sは必須です", field)
	case "email":
		return fmt.Sprintf("%sは有効なメールアドレスではありません", field)
	case "dishtype":
		return fmt.Sprintf("%sは未定義の料理種別です: %v", field, fe.Value())
	case "unique":
		return fmt.Sprintf("%sに重複した値があります", field)
	case "alphanum":
		return fmt.Sprintf("%sは英数字のみ使用できます", field)
	case "gte":
		return fmt.Sprintf("%sは%s以上である必要があります", field, param)
	case "min", "max":
		return translateMinMax(fe, field, param)
	default:
		return fmt.Sprintf("%sが%s制約を満たしていません", field, fe.Tag())
	}
}

// translateMinMax は型に応じたmin/maxのメッセージを返す。
func translateMinMax(fe validator.FieldError, field, param string) string {
	var unit string
	switch fe.Kind() {
	case reflect.String:
		unit = "文字"
	case reflect.Slice, reflect.Array, reflect.Map:
		unit = "件"
	}
	if fe.Tag() == "min" {
		return fmt.Sprintf("%sは%s%s以上である必要があります", field, param, unit)
	}
	return fmt.Sprintf("%sは%s%s以下である必要があります", field, param, unit)
}
