package geocode

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/sony/gobreaker/v2"

	"github.com/hitoshi/localbite/internal/model"
)

// ErrUnavailable はサーキットが開いていて呼び出しを行わなかったことを表す。
var ErrUnavailable = errors.New("geocode: provider temporarily unavailable")

// BreakerSettings はサーキットブレーカーの設定。
type BreakerSettings struct {
	Name             string
	MaxRequests      uint32        // 半開状態で許可する同時リクエスト数
	Interval         time.Duration // 閉状態でのカウンタのリセット間隔
	Timeout          time.Duration // 開状態から半開状態に移るまでの待ち時間
	FailureThreshold uint32        // この回数連続で失敗したら開く
}

// DefaultBreakerSettings はデフォルトのサーキットブレーカー設定を返す。
func DefaultBreakerSettings() BreakerSettings {
	return BreakerSettings{
		Name:             "maptiler-geocoding",
		MaxRequests:      1,
		Interval:         time.Minute,
		Timeout:          30 * time.Second,
		FailureThreshold: 5,
	}
}

// BreakerGeocoder は連続した失敗でプロバイダへの呼び出しを一時停止する。
// 一致なし（ErrNoResult）はプロバイダの障害ではないため成功として数える。
type BreakerGeocoder struct {
	next Geocoder
	cb   *gobreaker.CircuitBreaker[model.Point]
}

// NewBreakerGeocoder はBreakerGeocoderを生成する。
func NewBreakerGeocoder(next Geocoder, st BreakerSettings, logger *slog.Logger) *BreakerGeocoder {
	threshold := st.FailureThreshold
	if threshold == 0 {
		threshold = 1
	}
	cb := gobreaker.NewCircuitBreaker[model.Point](gobreaker.Settings{
		Name:        st.Name,
		MaxRequests: st.MaxRequests,
		Interval:    st.Interval,
		Timeout:     st.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("ジオコーディングのサーキット状態が変化しました",
				slog.String("breaker", name),
				slog.String("from", from.String()),
				slog.String("to", to.String()),
			)
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, ErrNoResult) || errors.Is(err, context.Canceled)
		},
	})
	return &BreakerGeocoder{next: next, cb: cb}
}

// Geocode はサーキットが閉じている場合のみ下位のGeocoderを呼び出す。
// 開いている場合はErrUnavailableを返す。
func (g *BreakerGeocoder) Geocode(ctx context.Context, query string) (model.Point, error) {
	p, err := g.cb.Execute(func() (model.Point, error) {
		return g.next.Geocode(ctx, query)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return model.Point{}, ErrUnavailable
	}
	return p, err
}

// State はサーキットの現在の状態を返す。
func (g *BreakerGeocoder) State() gobreaker.State {
	return g.cb.State()
}

// compile-time interface check
var _ Geocoder = (*BreakerGeocoder)(nil)
