package geocode

import (
	"context"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/hitoshi/localbite/internal/model"
)

// RetryGeocoder は一時的な失敗（接続エラー、408/429/5xx）を指数バックオフで再試行する。
// 一致なしと恒久的なステータスエラーは即座に返す。
type RetryGeocoder struct {
	next       Geocoder
	maxTries   uint
	newBackOff func() backoff.BackOff
	logger     *slog.Logger
}

// NewRetryGeocoder はRetryGeocoderを生成する。maxTriesは初回を含む試行回数。
func NewRetryGeocoder(next Geocoder, maxTries uint, logger *slog.Logger) *RetryGeocoder {
	if maxTries == 0 {
		maxTries = 1
	}
	return &RetryGeocoder{
		next:     next,
		maxTries: maxTries,
		newBackOff: func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.InitialInterval = 200 * time.Millisecond
			b.MaxInterval = 2 * time.Second
			return b
		},
		logger: logger,
	}
}

// Geocode は下位のGeocoderを再試行付きで呼び出す。
func (g *RetryGeocoder) Geocode(ctx context.Context, query string) (model.Point, error) {
	attempt := 0
	op := func() (model.Point, error) {
		attempt++
		p, err := g.next.Geocode(ctx, query)
		if err != nil && (ctx.Err() != nil || !IsRetryable(err)) {
			return model.Point{}, backoff.Permanent(err)
		}
		return p, err
	}

	return backoff.Retry(ctx, op,
		backoff.WithBackOff(g.newBackOff()),
		backoff.WithMaxTries(g.maxTries),
		backoff.WithNotify(func(err error, wait time.Duration) {
			g.logger.Warn("ジオコーディングを再試行します",
				slog.String("error", err.Error()),
				slog.Int("attempt", attempt),
				slog.Duration("wait", wait),
			)
		}),
	)
}

// compile-time interface check
var _ Geocoder = (*RetryGeocoder)(nil)
