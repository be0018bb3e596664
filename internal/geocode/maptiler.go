package geocode

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/hitoshi/localbite/internal/metrics"
	"github.com/hitoshi/localbite/internal/model"
)

const (
	// DefaultBaseURL はMapTiler APIのベースURL。
	DefaultBaseURL = "https://api.maptiler.com"
	// ProviderMapTiler はロケーションに記録するプロバイダ名。
	ProviderMapTiler = "maptiler"
	// maxResponseSize はレスポンスボディの読み取り上限（1MB）。
	maxResponseSize = 1 << 20
)

// MapTilerClient はMapTiler Geocoding APIのクライアント。
// 最良の1件のみを英語で要求する。
type MapTilerClient struct {
	httpClient *http.Client
	logger     *slog.Logger
	metrics    metrics.MetricsCollector
	baseURL    string // テスト用に差し替え可能
	apiKey     string
}

// NewMapTilerClient はMapTilerClientを生成する。baseURLが空の場合はDefaultBaseURLを使用する。
func NewMapTilerClient(httpClient *http.Client, apiKey, baseURL string, logger *slog.Logger, mc metrics.MetricsCollector) *MapTilerClient {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if mc == nil {
		mc = metrics.NopCollector{}
	}
	return &MapTilerClient{
		httpClient: httpClient,
		logger:     logger,
		metrics:    mc,
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
	}
}

// featureCollection はGeoJSONレスポンスのうち座標の取得に必要な部分。
type featureCollection struct {
	Features []struct {
		Center   []float64 `json:"center"`
		Geometry struct {
			Type        string          `json:"type"`
			Coordinates json.RawMessage `json:"coordinates"`
		} `json:"geometry"`
	} `json:"features"`
}

// Geocode は住所文字列を座標に変換する。
// 一致する地点がない場合はErrNoResult、2xx以外のステータスの場合は*StatusErrorを返す。
func (c *MapTilerClient) Geocode(ctx context.Context, query string) (model.Point, error) {
	start := time.Now()
	point, err := c.geocode(ctx, query)

	outcome := metrics.GeocodeOutcomeSuccess
	switch {
	case err == nil:
	case errors.Is(err, ErrNoResult):
		outcome = metrics.GeocodeOutcomeNoResult
	default:
		outcome = metrics.GeocodeOutcomeError
	}
	c.metrics.RecordGeocode(outcome, time.Since(start))

	return point, err
}

func (c *MapTilerClient) geocode(ctx context.Context, query string) (model.Point, error) {
	reqURL, err := url.Parse(c.baseURL + "/geocoding/" + url.PathEscape(query) + ".json")
	if err != nil {
		return model.Point{}, fmt.Errorf("リクエストURLの組み立てに失敗しました: %w", err)
	}
	q := reqURL.Query()
	q.Set("key", c.apiKey)
	q.Set("limit", "1")
	q.Set("language", "en")
	reqURL.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL.String(), nil)
	if err != nil {
		return model.Point{}, fmt.Errorf("HTTPリクエストの作成に失敗しました: %w", err)
	}
	req.Header.Set("User-Agent", "LocalBite/1.0")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("ジオコーディングAPIの呼び出しに失敗しました",
			slog.String("error", err.Error()),
			slog.String("query", query),
		)
		return model.Point{}, err
	}
	defer resp.Body.Close()

	if ClassifyStatus(resp.StatusCode) != StatusClassOK {
		c.logger.Error("ジオコーディングAPIがエラーステータスを返しました",
			slog.Int("http_status", resp.StatusCode),
			slog.String("query", query),
		)
		return model.Point{}, &StatusError{StatusCode: resp.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return model.Point{}, fmt.Errorf("レスポンスボディの読み取りに失敗しました: %w", err)
	}

	var fc featureCollection
	if err := json.Unmarshal(body, &fc); err != nil {
		c.logger.Error("ジオコーディングAPIのレスポンスのパースに失敗しました",
			slog.String("error", err.Error()),
		)
		return model.Point{}, fmt.Errorf("レスポンスJSONのパースに失敗しました: %w", err)
	}

	if len(fc.Features) == 0 {
		c.logger.Info("ジオコーディングの結果が0件でした", slog.String("query", query))
		return model.Point{}, ErrNoResult
	}

	// Point型のgeometryを優先し、なければcenterを使う
	f := fc.Features[0]
	var coords []float64
	if f.Geometry.Type == "Point" {
		if err := json.Unmarshal(f.Geometry.Coordinates, &coords); err != nil {
			c.logger.Debug("Point座標のパースに失敗したためcenterを使います",
				slog.String("query", query),
				slog.String("error", err.Error()),
			)
			coords = nil
		}
	}
	if len(coords) != 2 {
		coords = f.Center
	}
	if len(coords) != 2 {
		c.logger.Warn("ジオコーディング結果に座標の組が含まれていません", slog.String("query", query))
		return model.Point{}, ErrNoResult
	}

	p := model.Point{Lng: coords[0], Lat: coords[1]}
	if !validPoint(p) {
		c.logger.Warn("ジオコーディング結果の座標が範囲外です",
			slog.String("query", query),
			slog.Float64("lng", p.Lng),
			slog.Float64("lat", p.Lat),
		)
		return model.Point{}, ErrNoResult
	}
	return p, nil
}

// validPoint は経度・緯度が有限かつ有効範囲内かどうかを返す。
func validPoint(p model.Point) bool {
	if math.IsNaN(p.Lng) || math.IsNaN(p.Lat) || math.IsInf(p.Lng, 0) || math.IsInf(p.Lat, 0) {
		return false
	}
	return p.Lng >= -180 && p.Lng <= 180 && p.Lat >= -90 && p.Lat <= 90
}

// compile-time interface check
var _ Geocoder = (*MapTilerClient)(nil)
