// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// ジオコーディング結果の分類
const (
	GeocodeOutcomeSuccess  = "success"
	GeocodeOutcomeNoResult = "no_result"
	GeocodeOutcomeError    = "error"
	GeocodeOutcomeCached   = "cached"
)

// MetricsCollector はメトリクス収集のインターフェース。
// サービス層・ミドルウェア・ワーカーから利用する。
type MetricsCollector interface {
	RecordLocationCacheHit()
	RecordLocationCacheMiss()
	RecordLocationConflictRetried()
	RecordGeocode(outcome string, duration time.Duration)
	RecordLikeToggle(liked bool)
	RecordHTTPStatus(statusCode int)
	RecordHTTPLatency(duration time.Duration)
	RecordLikesReconciled(count int)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	locationLookups *prometheus.CounterVec
	conflictRetried prometheus.Counter
	geocodeRequests *prometheus.CounterVec
	geocodeLatency  prometheus.Histogram
	likeToggles     *prometheus.CounterVec
	httpStatus      *prometheus.CounterVec
	httpLatency     prometheus.Histogram
	likesReconciled prometheus.Counter
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		locationLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "localbite_location_lookups_total",
			Help: "ロケーション解決時のキャッシュ参照結果（hit/miss）",
		}, []string{"result"}),
		conflictRetried: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "localbite_location_conflict_retried_total",
			Help: "ロケーション作成競合を再読み込みで解決した回数",
		}),
		geocodeRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "localbite_geocode_requests_total",
			Help: "結果別のジオコーディング要求数",
		}, []string{"outcome"}),
		geocodeLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "localbite_geocode_latency_seconds",
			Help:    "ジオコーディングのレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}),
		likeToggles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "localbite_like_toggles_total",
			Help: "いいね・いいね解除の操作数",
		}, []string{"action"}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "localbite_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
		httpLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "localbite_http_latency_seconds",
			Help:    "HTTPリクエストの処理時間（秒）",
			Buckets: prometheus.DefBuckets,
		}),
		likesReconciled: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "localbite_likes_reconciled_total",
			Help: "整合性ジョブで補正したlike_countの行数",
		}),
	}

	reg.MustRegister(
		c.locationLookups,
		c.conflictRetried,
		c.geocodeRequests,
		c.geocodeLatency,
		c.likeToggles,
		c.httpStatus,
		c.httpLatency,
		c.likesReconciled,
	)

	return c
}

// RecordLocationCacheHit は既存ロケーションの再利用を記録する。
func (c *Collector) RecordLocationCacheHit() {
	c.locationLookups.WithLabelValues("hit").Inc()
}

// RecordLocationCacheMiss はロケーション未登録（ジオコーディング実行）を記録する。
func (c *Collector) RecordLocationCacheMiss() {
	c.locationLookups.WithLabelValues("miss").Inc()
}

// RecordLocationConflictRetried は作成競合の再読み込みによる解決を記録する。
func (c *Collector) RecordLocationConflictRetried() {
	c.conflictRetried.Inc()
}

// RecordGeocode はジオコーディングの結果とレイテンシを記録する。
func (c *Collector) RecordGeocode(outcome string, duration time.Duration) {
	c.geocodeRequests.WithLabelValues(outcome).Inc()
	if outcome != GeocodeOutcomeCached {
		c.geocodeLatency.Observe(duration.Seconds())
	}
}

// RecordLikeToggle はいいね・いいね解除の操作を記録する。
func (c *Collector) RecordLikeToggle(liked bool) {
	action := "unlike"
	if liked {
		action = "like"
	}
	c.likeToggles.WithLabelValues(action).Inc()
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// RecordHTTPLatency はHTTPリクエストの処理時間を記録する。
func (c *Collector) RecordHTTPLatency(duration time.Duration) {
	c.httpLatency.Observe(duration.Seconds())
}

// RecordLikesReconciled は整合性ジョブで補正した行数を記録する。
func (c *Collector) RecordLikesReconciled(count int) {
	c.likesReconciled.Add(float64(count))
}

// NopCollector は何も記録しないMetricsCollector。
// メトリクスを必要としないテストやコマンドで使用する。
type NopCollector struct{}

func (NopCollector) RecordLocationCacheHit() {}
func (NopCollector) RecordLocationCacheMiss() {}
func (NopCollector) RecordLocationConflictRetried() {}
func (NopCollector) RecordGeocode(string, time.Duration) {}
func (NopCollector) RecordLikeToggle(bool) {}
func (NopCollector) RecordHTTPStatus(int) {}
func (NopCollector) RecordHTTPLatency(time.Duration) {}
func (NopCollector) RecordLikesReconciled(int) {}

var (
	_ MetricsCollector = (*Collector)(nil)
	_ MetricsCollector = NopCollector{}
)

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
