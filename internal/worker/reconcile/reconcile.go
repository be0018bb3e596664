// Package reconcile はいいね数の整合性を回復する定期ジョブを提供する。
// recipes.like_countをuser_favsの件数から再計算し、ずれている行だけを更新する。
package reconcile

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/hitoshi/localbite/internal/metrics"
)

// Executor はSQLのExecContextを抽象化するインターフェース。
// *sql.DB や *sql.Tx を受け付けることができる。
type Executor interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

// reconcileQuery はお気に入りが0件のレシピも含めて件数を再計算する。
// 値が一致している行は更新しないため、何度実行しても結果は変わらない。
const reconcileQuery = `
UPDATE recipes r
SET like_count = f.cnt
FROM (
	SELECT rc.id, COUNT(uf.recipe_id)::int AS cnt
	FROM recipes rc
	LEFT JOIN user_favs uf ON uf.recipe_id = rc.id
	GROUP BY rc.id
) f
WHERE r.id = f.id AND r.like_count <> f.cnt`

// Job はいいね数の再計算ジョブ。
type Job struct {
	db      Executor
	logger  *slog.Logger
	metrics metrics.MetricsCollector
}

// NewJob は新しいJobを生成する。mcがnilの場合はメトリクスを記録しない。
func NewJob(db Executor, logger *slog.Logger, mc metrics.MetricsCollector) *Job {
	if mc == nil {
		mc = metrics.NopCollector{}
	}
	return &Job{
		db:      db,
		logger:  logger,
		metrics: mc,
	}
}

// Run はいいね数を1回再計算し、修復した行数を返す。
func (j *Job) Run(ctx context.Context) (int64, error) {
	start := time.Now()

	result, err := j.db.ExecContext(ctx, reconcileQuery)
	if err != nil {
		j.logger.Error("いいね数の再計算に失敗しました",
			slog.String("error", err.Error()),
		)
		return 0, fmt.Errorf("いいね数の再計算に失敗しました: %w", err)
	}

	repaired, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("更新件数の取得に失敗しました: %w", err)
	}

	j.metrics.RecordLikesReconciled(int(repaired))

	level := slog.LevelInfo
	if repaired > 0 {
		level = slog.LevelWarn
	}
	j.logger.Log(ctx, level, "いいね数の再計算が完了しました",
		slog.Int64("repaired_count", repaired),
		slog.Float64("duration_ms", float64(time.Since(start).Milliseconds())),
	)

	return repaired, nil
}

// Start は起動直後に1回、その後intervalごとにRunを実行する。
// ctxがキャンセルされるまでブロックする。
func (j *Job) Start(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	j.logger.Info("いいね数の再計算ジョブを開始しました",
		slog.Duration("interval", interval),
	)

	// 起動直後に1回実行
	_, _ = j.Run(ctx)

	for {
		select {
		case <-ctx.Done():
			j.logger.Info("いいね数の再計算ジョブを停止しました")
			return
		case <-ticker.C:
			_, _ = j.Run(ctx)
		}
	}
}
