package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"

	"github.com/hitoshi/localbite/internal/model"
)

// PostgresFavRepo はPostgreSQLを使用したお気に入りリポジトリ。
// user_favsの行とrecipes.like_countは同一トランザクションで更新する。
type PostgresFavRepo struct {
	db *sql.DB
}

// NewPostgresFavRepo はPostgresFavRepoを生成する。
func NewPostgresFavRepo(db *sql.DB) *PostgresFavRepo {
	return &PostgresFavRepo{db: db}
}

// Like はお気に入りに追加し、新規追加時のみlike_countを1増やす。
// 既にお気に入り済みの場合はlike_countを変更しない。
func (r *PostgresFavRepo) Like(ctx context.Context, userID, recipeID string) (*model.LikeResult, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	count, found, err := currentLikeCount(ctx, tx, recipeID)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, nil
	}

	result, err := tx.ExecContext(ctx,
		`INSERT INTO user_favs (user_id, recipe_id, created_at)
		 VALUES ($1, $2, now())
		 ON CONFLICT (user_id, recipe_id) DO NOTHING`,
		userID, recipeID,
	)
	if err != nil {
		// 存在確認後にレシピが削除された場合
		if isForeignKeyViolation(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("お気に入りの追加に失敗しました: %w", err)
	}
	inserted, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("failed to get rows affected: %w", err)
	}

	if inserted == 1 {
		// 加算はカウンタ列に対する単一のUPDATEで行い、読み取り→書き込みの競合を避ける
		err = tx.QueryRowContext(ctx,
			`UPDATE recipes SET like_count = like_count + 1 WHERE id = $1 RETURNING like_count`,
			recipeID,
		).Scan(&count)
		if err != nil {
			return nil, fmt.Errorf("いいね数の更新に失敗しました: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return &model.LikeResult{LikeCount: count, Liked: true}, nil
}

// Unlike はお気に入りから削除し、削除できた場合のみlike_countを1減らす。
// like_countが既に0の場合は減算しない。
func (r *PostgresFavRepo) Unlike(ctx context.Context, userID, recipeID string) (*model.LikeResult, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	count, found, err := currentLikeCount(ctx, tx, recipeID)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, nil
	}

	result, err := tx.ExecContext(ctx,
		`DELETE FROM user_favs WHERE user_id = $1 AND recipe_id = $2`,
		userID, recipeID,
	)
	if err != nil {
		return nil, fmt.Errorf("お気に入りの削除に失敗しました: %w", err)
	}
	deleted, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("failed to get rows affected: %w", err)
	}

	if deleted == 1 {
		err = tx.QueryRowContext(ctx,
			`UPDATE recipes SET like_count = like_count - 1
			 WHERE id = $1 AND like_count > 0
			 RETURNING like_count`,
			recipeID,
		).Scan(&count)
		if err == sql.ErrNoRows {
			// 既に0の場合はカウンタを変更しない
			count = 0
		} else if err != nil {
			return nil, fmt.Errorf("いいね数の更新に失敗しました: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return &model.LikeResult{LikeCount: count, Liked: false}, nil
}

func currentLikeCount(ctx context.Context, tx *sql.Tx, recipeID string) (int, bool, error) {
	var count int
	err := tx.QueryRowContext(ctx,
		`SELECT like_count FROM recipes WHERE id = $1`,
		recipeID,
	).Scan(&count)
	if err == sql.ErrNoRows {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("レシピの取得に失敗しました: %w", err)
	}
	return count, true, nil
}

// LikedAmong は指定レシピIDのうちユーザーがお気に入り済みのものを1回のクエリで返す。
func (r *PostgresFavRepo) LikedAmong(ctx context.Context, userID string, recipeIDs []string) (map[string]bool, error) {
	liked := make(map[string]bool)
	if len(recipeIDs) == 0 {
		return liked, nil
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT recipe_id FROM user_favs WHERE user_id = $1 AND recipe_id = ANY($2::uuid[])`,
		userID, pq.Array(recipeIDs),
	)
	if err != nil {
		return nil, fmt.Errorf("お気に入りの取得に失敗しました: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("お気に入り行の読み取りに失敗しました: %w", err)
		}
		liked[id] = true
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("お気に入りの走査に失敗しました: %w", err)
	}
	return liked, nil
}

// ListByUser はユーザーのお気に入りレシピIDを追加日時の新しい順に返す。
func (r *PostgresFavRepo) ListByUser(ctx context.Context, userID string) ([]string, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT recipe_id FROM user_favs WHERE user_id = $1 ORDER BY created_at DESC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("お気に入りの取得に失敗しました: %w", err)
	}
	defer rows.Close()

	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("お気に入り行の読み取りに失敗しました: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("お気に入りの走査に失敗しました: %w", err)
	}
	return ids, nil
}

// compile-time interface check
var _ FavRepository = (*PostgresFavRepo)(nil)
