package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/hitoshi/localbite/internal/model"
)

const userColumns = `id, email, username, fullname, password_hash, bio, profile_pic_url, default_location_id, created_at, updated_at`

// PostgresUserRepo はPostgreSQLを使用したユーザーリポジトリ。
type PostgresUserRepo struct {
	db *sql.DB
}

// NewPostgresUserRepo はPostgresUserRepoを生成する。
func NewPostgresUserRepo(db *sql.DB) *PostgresUserRepo {
	return &PostgresUserRepo{db: db}
}

// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
func (r *PostgresUserRepo) FindByID(ctx context.Context, id string) (*model.User, error) {
	return r.findOne(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
}

// FindByEmail は小文字化済みメールアドレスでユーザーを取得する。見つからない場合はnilを返す。
func (r *PostgresUserRepo) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	return r.findOne(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, email)
}

// FindByUsername は大文字小文字を区別せずユーザー名で取得する。見つからない場合はnilを返す。
func (r *PostgresUserRepo) FindByUsername(ctx context.Context, username string) (*model.User, error) {
	return r.findOne(ctx, `SELECT `+userColumns+` FROM users WHERE lower(username) = lower($1)`, username)
}

func (r *PostgresUserRepo) findOne(ctx context.Context, query string, arg string) (*model.User, error) {
	user := &model.User{}
	var bio, pic, defaultLoc sql.NullString
	err := r.db.QueryRowContext(ctx, query, arg).Scan(
		&user.ID, &user.Email, &user.Username, &user.Fullname, &user.PasswordHash,
		&bio, &pic, &defaultLoc, &user.CreatedAt, &user.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("ユーザーの取得に失敗しました: %w", err)
	}
	user.Bio = nullStringValue(bio)
	user.ProfilePicURL = nullStringValue(pic)
	user.DefaultLocationID = nullStringValue(defaultLoc)
	return user, nil
}

// Create はユーザーを作成する。
func (r *PostgresUserRepo) Create(ctx context.Context, user *model.User) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO users (`+userColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		user.ID, user.Email, user.Username, user.Fullname, user.PasswordHash,
		nullString(user.Bio), nullString(user.ProfilePicURL), nullString(user.DefaultLocationID),
		user.CreatedAt, user.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("ユーザーの作成に失敗しました: %w", translateError(err))
	}
	return nil
}

// Update はユーザーを部分更新する。
func (r *PostgresUserRepo) Update(ctx context.Context, id string, upd model.UserUpdate) error {
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

	if upd.Fullname != nil {
		set("fullname", *upd.Fullname)
	}
	if upd.Username != nil {
		set("username", *upd.Username)
	}
	if upd.Email != nil {
		set("email", *upd.Email)
	}
	if upd.Bio != nil {
		set("bio", nullString(*upd.Bio))
	}
	if upd.ProfilePicURL != nil {
		set("profile_pic_url", nullString(*upd.ProfilePicURL))
	}
	if upd.DefaultLocationID != nil {
		set("default_location_id", nullString(*upd.DefaultLocationID))
	}
	sets = append(sets, "updated_at = now()")
	args = append(args, id)

	result, err := r.db.ExecContext(ctx,
		fmt.Sprintf("UPDATE users SET %s WHERE id = $%d", strings.Join(sets, ", "), argIndex),
		args...,
	)
	if err != nil {
		return fmt.Errorf("ユーザーの更新に失敗しました: %w", translateError(err))
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("user not found: %s", id)
	}
	return nil
}

// DeleteWithFavs はお気に入り済みレシピのlike_countを減らしてからユーザーを削除する。
func (r *PostgresUserRepo) DeleteWithFavs(ctx context.Context, id string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	// 1. お気に入りに含まれていたレシピのいいね数を戻す
	_, err = tx.ExecContext(ctx,
		`UPDATE recipes SET like_count = like_count - 1
		 WHERE like_count > 0
		   AND id IN (SELECT recipe_id FROM user_favs WHERE user_id = $1)`,
		id,
	)
	if err != nil {
		return fmt.Errorf("いいね数の更新に失敗しました: %w", err)
	}

	// 2. ユーザーを削除（recipes、user_favsはCASCADE削除される）
	result, err := tx.ExecContext(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("user not found: %s", id)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// compile-time interface check
var _ UserRepository = (*PostgresUserRepo)(nil)
