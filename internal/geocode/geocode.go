// Package geocode は自由記述の住所を座標へ変換する外部ジオコーディングの呼び出しを提供する。
// MapTilerクライアントに再試行・サーキットブレーカー・キャッシュを重ねて使用する。
package geocode

import (
	"context"
	"errors"
	"fmt"

	"github.com/hitoshi/localbite/internal/model"
)

// Geocoder は住所文字列から座標を1件取得する。
type Geocoder interface {
	Geocode(ctx context.Context, query string) (model.Point, error)
}

// ErrNoResult は一致する地点が見つからなかったことを表す。再試行しても結果は変わらない。
var ErrNoResult = errors.New("geocode: no matching feature")

// StatusError はジオコーディングAPIが2xx以外のステータスを返したことを表す。
type StatusError struct {
	StatusCode int
}

// Error はerrorインターフェースを実装する。
func (e *StatusError) Error() string {
	return fmt.Sprintf("geocode: provider returned status %d", e.StatusCode)
}

// StatusClass はHTTPステータスコードに基づく失敗の分類。
type StatusClass int

const (
	// StatusClassOK は成功（2xx）。
	StatusClassOK StatusClass = iota
	// StatusClassPermanent は再試行しても解決しない失敗（400/401/403/404など）。
	StatusClassPermanent
	// StatusClassRetryable は時間をおけば解決しうる失敗（408/429/5xx）。
	StatusClassRetryable
)

// ClassifyStatus はHTTPステータスコードを再試行可否で分類する。
func ClassifyStatus(statusCode int) StatusClass {
	switch {
	case statusCode >= 200 && statusCode < 300:
		return StatusClassOK
	case statusCode == 408 || statusCode == 429:
		return StatusClassRetryable
	case statusCode >= 500:
		return StatusClassRetryable
	default:
		return StatusClassPermanent
	}
}

// IsRetryable はエラーが再試行で解決しうるかを返す。
// 一致なしと恒久的なステータスエラーは再試行しない。
func IsRetryable(err error) bool {
	if err == nil || errors.Is(err, ErrNoResult) {
		return false
	}
	var se *StatusError
	if errors.As(err, &se) {
		return ClassifyStatus(se.StatusCode) == StatusClassRetryable
	}
	return true
}
