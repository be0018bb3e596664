package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/localbite/internal/model"
)

const locationColumns = `id, key, locality, area, country, country_code, formatted, lng, lat, provider, created_at`

// PostgresLocationRepo はPostgreSQLを使用したロケーションリポジトリ。
type PostgresLocationRepo struct {
	db *sql.DB
}

// NewPostgresLocationRepo はPostgresLocationRepoを生成する。
func NewPostgresLocationRepo(db *sql.DB) *PostgresLocationRepo {
	return &PostgresLocationRepo{db: db}
}

// FindByKey は重複排除キーでロケーションを取得する。見つからない場合はnilを返す。
func (r *PostgresLocationRepo) FindByKey(ctx context.Context, key string) (*model.Location, error) {
	loc, err := scanLocation(r.db.QueryRowContext(ctx,
		`SELECT `+locationColumns+` FROM locations WHERE key = $1`,
		key,
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("ロケーションの取得に失敗しました: %w", err)
	}
	return loc, nil
}

// FindByID は指定IDのロケーションを取得する。見つからない場合はnilを返す。
func (r *PostgresLocationRepo) FindByID(ctx context.Context, id string) (*model.Location, error) {
	loc, err := scanLocation(r.db.QueryRowContext(ctx,
		`SELECT `+locationColumns+` FROM locations WHERE id = $1`,
		id,
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("ロケーションの取得に失敗しました: %w", err)
	}
	return loc, nil
}

// Create はロケーションを作成する。
// 事前の存在確認は行わず、keyの一意制約違反はErrDuplicateKeyとして返す。
func (r *PostgresLocationRepo) Create(ctx context.Context, loc *model.Location) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO locations (id, key, locality, area, country, country_code, formatted, lng, lat, provider, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		loc.ID, loc.Key, loc.Locality, loc.Area, loc.Country, loc.CountryCode,
		nullString(loc.Formatted), loc.Point.Lng, loc.Point.Lat, loc.Provider, loc.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("ロケーションの作成に失敗しました: %w", translateError(err))
	}
	return nil
}

// ListAll は全ロケーションを作成日時順に返す。
func (r *PostgresLocationRepo) ListAll(ctx context.Context) ([]*model.Location, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+locationColumns+` FROM locations ORDER BY created_at, id`,
	)
	if err != nil {
		return nil, fmt.Errorf("ロケーション一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var locations []*model.Location
	for rows.Next() {
		loc, err := scanLocation(rows)
		if err != nil {
			return nil, fmt.Errorf("ロケーション行の読み取りに失敗しました: %w", err)
		}
		locations = append(locations, loc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ロケーション一覧の走査に失敗しました: %w", err)
	}
	return locations, nil
}

// rowScanner は*sql.Rowと*sql.Rowsの共通インターフェース。
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanLocation(row rowScanner) (*model.Location, error) {
	loc := &model.Location{}
	var formatted sql.NullString
	err := row.Scan(
		&loc.ID, &loc.Key, &loc.Locality, &loc.Area, &loc.Country, &loc.CountryCode,
		&formatted, &loc.Point.Lng, &loc.Point.Lat, &loc.Provider, &loc.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	loc.Formatted = nullStringValue(formatted)
	return loc, nil
}

// compile-time interface check
var _ LocationRepository = (*PostgresLocationRepo)(nil)
