// Package model はドメインモデルを定義する。
package model

import (
	"fmt"
	"strings"
)

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, validation, location, recipe, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeValidation         = "VALIDATION_ERROR"
	ErrCodeUnknownCountry     = "UNKNOWN_COUNTRY"
	ErrCodeGeocodingFailed    = "GEOCODING_FAILED"
	ErrCodeRecipeNotFound     = "RECIPE_NOT_FOUND"
	ErrCodeUserNotFound       = "USER_NOT_FOUND"
	ErrCodeForbidden          = "FORBIDDEN"
	ErrCodeConflict           = "CONFLICT"
	ErrCodeUnauthorized       = "UNAUTHORIZED"
	ErrCodeInvalidCredentials = "INVALID_CREDENTIALS"
	ErrCodeInvalidURL         = "INVALID_URL"
	ErrCodeRateLimited        = "RATE_LIMITED"
	ErrCodeInternal           = "INTERNAL_ERROR"
)

// NewValidationError は入力値エラーを生成する。
func NewValidationError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeValidation,
		Message:  fmt.Sprintf("入力値が不正です: %s", reason),
		Category: "validation",
		Action:   "入力内容を確認してください。",
	}
}

// NewMissingLocationFieldsError はロケーションの必須項目が欠けている場合のエラーを生成する。
func NewMissingLocationFieldsError(fields []string) *APIError {
	return &APIError{
		Code:     ErrCodeValidation,
		Message:  fmt.Sprintf("ロケーションの必須項目が不足しています: %s", strings.Join(fields, ", ")),
		Category: "validation",
		Action:   "locality、area、countryをすべて入力してください。",
	}
}

// NewUnknownCountryError は国名から国コードを導出できない場合のエラーを生成する。
func NewUnknownCountryError(country string) *APIError {
	return &APIError{
		Code:     ErrCodeUnknownCountry,
		Message:  fmt.Sprintf("国名を認識できません: %s", country),
		Category: "location",
		Action:   "正式な国名またはISOコード（例: JP、JPN、Japan）を入力してください。",
	}
}

// NewGeocodingError はジオコーディング失敗エラーを生成する。
// 一時的な障害の可能性があるため、再試行を案内する。
func NewGeocodingError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeGeocodingFailed,
		Message:  fmt.Sprintf("位置情報の取得に失敗しました: %s", reason),
		Category: "location",
		Action:   "住所の表記を確認し、しばらく待ってから再度お試しください。",
	}
}

// NewRecipeNotFoundError はレシピ未検出エラーを生成する。
func NewRecipeNotFoundError(recipeID string) *APIError {
	return &APIError{
		Code:     ErrCodeRecipeNotFound,
		Message:  fmt.Sprintf("指定されたレシピが見つかりません: %s", recipeID),
		Category: "recipe",
		Action:   "レシピIDを確認してください。",
	}
}

// NewUserNotFoundError はユーザーが見つからない場合のエラーを生成する。
func NewUserNotFoundError() *APIError {
	return &APIError{
		Code:     ErrCodeUserNotFound,
		Message:  "ユーザーが見つかりません。",
		Category: "auth",
		Action:   "ユーザー名を確認するか、ログインし直してください。",
	}
}

// NewForbiddenError は所有者以外の操作を拒否するエラーを生成する。
func NewForbiddenError() *APIError {
	return &APIError{
		Code:     ErrCodeForbidden,
		Message:  "このリソースを操作する権限がありません。",
		Category: "auth",
		Action:   "自分が作成したレシピのみ編集・削除できます。",
	}
}

// NewConflictError は一意制約に違反する登録・更新のエラーを生成する。
func NewConflictError(what string) *APIError {
	return &APIError{
		Code:     ErrCodeConflict,
		Message:  fmt.Sprintf("%sは既に使用されています。", what),
		Category: "validation",
		Action:   "別の値を指定してください。",
	}
}

// NewUnauthorizedError は未認証エラーを生成する。
func NewUnauthorizedError() *APIError {
	return &APIError{
		Code:     ErrCodeUnauthorized,
		Message:  "認証が必要です。",
		Category: "auth",
		Action:   "ログインしてください。",
	}
}

// NewInvalidCredentialsError はログイン情報の不一致エラーを生成する。
// ユーザーの存在有無は区別しない。
func NewInvalidCredentialsError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidCredentials,
		Message:  "ログイン情報が正しくありません。",
		Category: "auth",
		Action:   "メールアドレスまたはユーザー名とパスワードを確認してください。",
	}
}

// NewInvalidURLError は無効なURLエラーを生成する。
func NewInvalidURLError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidURL,
		Message:  fmt.Sprintf("無効なURLです: %s", reason),
		Category: "validation",
		Action:   "公開されている画像のURL（http:// または https://）を指定してください。",
	}
}

// NewRateLimitedError はレート制限超過エラーを生成する。
func NewRateLimitedError() *APIError {
	return &APIError{
		Code:     ErrCodeRateLimited,
		Message:  "リクエストが多すぎます。",
		Category: "system",
		Action:   "Retry-Afterヘッダーの秒数だけ待ってから再度お試しください。",
	}
}

// NewInternalError は内部エラーを生成する。内部の詳細は含めない。
func NewInternalError() *APIError {
	return &APIError{
		Code:     ErrCodeInternal,
		Message:  "内部エラーが発生しました。",
		Category: "system",
		Action:   "しばらく待ってから再度お試しください。",
	}
}
