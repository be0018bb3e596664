package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/goccy/go-json"
	"github.com/lib/pq"

	"github.com/hitoshi/localbite/internal/model"
)

// PostgresRecipeRepo はPostgreSQLを使用したレシピリポジトリ。
type PostgresRecipeRepo struct {
	db *sql.DB
}

// NewPostgresRecipeRepo はPostgresRecipeRepoを生成する。
func NewPostgresRecipeRepo(db *sql.DB) *PostgresRecipeRepo {
	return &PostgresRecipeRepo{db: db}
}

// FindByID は指定IDのレシピを作成者情報付きで取得する。見つからない場合はnilを返す。
func (r *PostgresRecipeRepo) FindByID(ctx context.Context, id string) (*model.RecipeWithAuthor, error) {
	recipe, err := scanRecipe(r.db.QueryRowContext(ctx,
		`SELECT `+feedSelectColumns+`, NULL::double precision AS distance_km
		 FROM recipes r
		 JOIN users u ON u.id = r.author_id
		 WHERE r.id = $1`,
		id,
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("レシピの取得に失敗しました: %w", err)
	}
	return recipe, nil
}

// Create はレシピを作成する。
func (r *PostgresRecipeRepo) Create(ctx context.Context, recipe *model.Recipe) error {
	ingredients, err := json.Marshal(recipe.Ingredients)
	if err != nil {
		return fmt.Errorf("材料のエンコードに失敗しました: %w", err)
	}

	_, err = r.db.ExecContext(ctx,
		`INSERT INTO recipes (
		     id, author_id, title, description, ingredients, instructions, dish_types,
		     picture_url, picture_public_id, location_id, loc_locality, loc_area, loc_country,
		     lng, lat, like_count, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, 0, $16, $17)`,
		recipe.ID, recipe.AuthorID, recipe.Title, recipe.Description, string(ingredients),
		pq.Array(recipe.Instructions), pq.Array(nonNilStrings(recipe.DishTypes)),
		nullString(recipe.PictureURL), nullString(recipe.PicturePublicID),
		recipe.LocationID, recipe.LocationSnapshot.Locality, recipe.LocationSnapshot.Area, recipe.LocationSnapshot.Country,
		recipe.Point.Lng, recipe.Point.Lat, recipe.CreatedAt, recipe.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("レシピの作成に失敗しました: %w", translateError(err))
	}
	return nil
}

// Update はレシピを部分更新する。
func (r *PostgresRecipeRepo) Update(ctx context.Context, id string, upd model.RecipeUpdate) error {
	query, args, err := buildRecipeUpdate(id, upd)
	if err != nil {
		return err
	}

	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("レシピの更新に失敗しました: %w", translateError(err))
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("recipe not found: %s", id)
	}
	return nil
}

// buildRecipeUpdate は部分更新のUPDATE文を組み立てる。
// Locationが指定された場合、location_id・スナップショット・座標を同じSET句に含める。
func buildRecipeUpdate(id string, upd model.RecipeUpdate) (string, []interface{}, error) {
	var (
		sets     []string
		args     []interface{}
		argIndex = 1
	)
	set := func(column string, v interface{}) {
		sets = append(sets, fmt.Sprintf("%s = $%d", column, argIndex))
		args = append(args, v)
		argIndex++
	}

	if upd.Title != nil {
		set("title", *upd.Title)
	}
	if upd.Description != nil {
		set("description", *upd.Description)
	}
	if upd.Ingredients != nil {
		data, err := json.Marshal(upd.Ingredients)
		if err != nil {
			return "", nil, fmt.Errorf("材料のエンコードに失敗しました: %w", err)
		}
		set("ingredients", string(data))
	}
	if upd.Instructions != nil {
		set("instructions", pq.Array(upd.Instructions))
	}
	if upd.DishTypes != nil {
		set("dish_types", pq.Array(upd.DishTypes))
	}
	if upd.PictureURL != nil {
		set("picture_url", nullString(*upd.PictureURL))
	}
	if upd.PicturePublicID != nil {
		set("picture_public_id", nullString(*upd.PicturePublicID))
	}
	if loc := upd.Location; loc != nil {
		set("location_id", loc.ID)
		set("loc_locality", loc.Locality)
		set("loc_area", loc.Area)
		set("loc_country", loc.Country)
		set("lng", loc.Point.Lng)
		set("lat", loc.Point.Lat)
	}

	sets = append(sets, "updated_at = now()")
	query := fmt.Sprintf("UPDATE recipes SET %s WHERE id = $%d", strings.Join(sets, ", "), argIndex)
	args = append(args, id)
	return query, args, nil
}

// DeleteByID は指定IDのレシピを削除する。
func (r *PostgresRecipeRepo) DeleteByID(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM recipes WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("レシピの削除に失敗しました: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("recipe not found: %s", id)
	}
	return nil
}

// Query はフィード検索条件に一致するレシピを取得する。
func (r *PostgresRecipeRepo) Query(ctx context.Context, q FeedQuery) ([]*model.RecipeWithAuthor, error) {
	query, args := BuildFeedQuery(q)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("レシピ一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	recipes := make([]*model.RecipeWithAuthor, 0, q.Limit)
	for rows.Next() {
		recipe, err := scanRecipe(rows)
		if err != nil {
			return nil, fmt.Errorf("レシピ行の読み取りに失敗しました: %w", err)
		}
		recipes = append(recipes, recipe)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("レシピ一覧の走査に失敗しました: %w", err)
	}
	return recipes, nil
}

// CountByAuthor は作成者ごとのレシピ件数を返す。
func (r *PostgresRecipeRepo) CountByAuthor(ctx context.Context, authorID string) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM recipes WHERE author_id = $1`,
		authorID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("レシピ件数の取得に失敗しました: %w", err)
	}
	return count, nil
}

// scanRecipe はfeedSelectColumnsの並びで1行を読み取る。
func scanRecipe(row rowScanner) (*model.RecipeWithAuthor, error) {
	rw := &model.RecipeWithAuthor{}
	var (
		ingredients              []byte
		pictureURL, picturePubID sql.NullString
		distance                 sql.NullFloat64
	)

	err := row.Scan(
		&rw.ID, &rw.AuthorID, &rw.Title, &rw.Description, &ingredients,
		pq.Array(&rw.Instructions), pq.Array(&rw.DishTypes),
		&pictureURL, &picturePubID, &rw.LocationID,
		&rw.LocationSnapshot.Locality, &rw.LocationSnapshot.Area, &rw.LocationSnapshot.Country,
		&rw.Point.Lng, &rw.Point.Lat, &rw.LikeCount, &rw.CreatedAt, &rw.UpdatedAt,
		&rw.Author.Fullname, &rw.Author.Username, &distance,
	)
	if err != nil {
		return nil, err
	}

	if len(ingredients) > 0 {
		if err := json.Unmarshal(ingredients, &rw.Ingredients); err != nil {
			return nil, fmt.Errorf("材料のデコードに失敗しました: %w", err)
		}
	}
	rw.PictureURL = nullStringValue(pictureURL)
	rw.PicturePublicID = nullStringValue(picturePubID)
	rw.Author.ID = rw.AuthorID
	if distance.Valid {
		d := distance.Float64
		rw.DistanceKm = &d
	}
	return rw, nil
}

func nonNilStrings(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

// compile-time interface check
var _ RecipeRepository = (*PostgresRecipeRepo)(nil)
