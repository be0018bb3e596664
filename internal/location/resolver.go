package location

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/localbite/internal/metrics"
	"github.com/hitoshi/localbite/internal/model"
	"github.com/hitoshi/localbite/internal/repository"
)

// Geocoder は住所文字列から座標を1件取得する外部サービス。
type Geocoder interface {
	Geocode(ctx context.Context, query string) (model.Point, error)
}

// Resolver は自由記述のロケーションを重複のないLocationへ解決する。
// 同じキーに対する同時呼び出しでも、保存されるLocationは常に1件になる。
type Resolver struct {
	repo     repository.LocationRepository
	geocoder Geocoder
	provider string
	metrics  metrics.MetricsCollector
	logger   *slog.Logger
}

// NewResolver はResolverを生成する。providerは新規作成するLocationに記録するプロバイダ名。
func NewResolver(repo repository.LocationRepository, geocoder Geocoder, provider string, logger *slog.Logger, mc metrics.MetricsCollector) *Resolver {
	if mc == nil {
		mc = metrics.NopCollector{}
	}
	return &Resolver{
		repo:     repo,
		geocoder: geocoder,
		provider: provider,
		metrics:  mc,
		logger:   logger,
	}
}

// ResolveOrCreate は locality/area/country を既存のLocationへ解決し、なければ作成する。
//
// キーが既に存在する場合は外部のジオコーダーを呼ばずに返す。
// 作成時に一意制約違反となった場合は、先に作成されたLocationを読み直して返す。
// ジオコーダーの呼び出し中はロックを保持しない。
func (r *Resolver) ResolveOrCreate(ctx context.Context, locality, area, country string) (*model.Location, error) {
	locality = strings.TrimSpace(locality)
	area = strings.TrimSpace(area)
	country = strings.TrimSpace(country)

	var missing []string
	if locality == "" {
		missing = append(missing, "locality")
	}
	if area == "" {
		missing = append(missing, "area")
	}
	if country == "" {
		missing = append(missing, "country")
	}
	if len(missing) > 0 {
		return nil, model.NewMissingLocationFieldsError(missing)
	}

	code, ok := DeriveISO2(country)
	if !ok {
		return nil, model.NewUnknownCountryError(country)
	}
	key := MakeKey(locality, area, code)

	existing, err := r.repo.FindByKey(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("ロケーションの検索に失敗しました: %w", err)
	}
	if existing != nil {
		r.metrics.RecordLocationCacheHit()
		return existing, nil
	}
	r.metrics.RecordLocationCacheMiss()

	query := joinNonEmpty(locality, area, country)
	point, err := r.geocoder.Geocode(ctx, query)
	if err != nil {
		r.logger.Warn("ジオコーディングに失敗しました",
			slog.String("query", query),
			slog.String("error", err.Error()),
		)
		return nil, model.NewGeocodingError(query)
	}

	id, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("ロケーションIDの生成に失敗しました: %w", err)
	}
	loc := &model.Location{
		ID:          id.String(),
		Key:         key,
		Locality:    locality,
		Area:        area,
		Country:     country,
		CountryCode: code,
		Formatted:   query,
		Point:       point,
		Provider:    r.provider,
		CreatedAt:   time.Now(),
	}

	err = r.repo.Create(ctx, loc)
	if err == nil {
		r.logger.Info("ロケーションを作成しました",
			slog.String("location_id", loc.ID),
			slog.String("key", key),
		)
		return loc, nil
	}
	if !errors.Is(err, repository.ErrDuplicateKey) {
		return nil, fmt.Errorf("ロケーションの作成に失敗しました: %w", err)
	}

	// 同じキーを先に作成した呼び出しがある。そのレコードを返す
	winner, err := r.repo.FindByKey(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("競合後のロケーションの再取得に失敗しました: %w", err)
	}
	if winner == nil {
		return nil, fmt.Errorf("一意制約違反後にロケーションが見つかりません: %s", key)
	}
	r.metrics.RecordLocationConflictRetried()
	r.logger.Debug("ロケーション作成の競合を解決しました",
		slog.String("location_id", winner.ID),
		slog.String("key", key),
	)
	return winner, nil
}

// joinNonEmpty は空でない要素を ", " で連結する。
func joinNonEmpty(parts ...string) string {
	nonEmpty := make([]string, 0, len(parts))
	for _, p := range parts {
		if p != "" {
			nonEmpty = append(nonEmpty, p)
		}
	}
	return strings.Join(nonEmpty, ", ")
}
