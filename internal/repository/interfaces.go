// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"

	"github.com/hitoshi/localbite/internal/model"
)

// LocationRepository はロケーションの永続化インターフェース。
// ロケーションは追記専用であり、更新・削除の操作は持たない。
type LocationRepository interface {
	// FindByKey は重複排除キーでロケーションを取得する。見つからない場合はnilを返す。
	FindByKey(ctx context.Context, key string) (*model.Location, error)

	// FindByID は指定IDのロケーションを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Location, error)

	// Create はロケーションを作成する。
	// keyが既に存在する場合はErrDuplicateKeyを満たすエラーを返す。
	Create(ctx context.Context, loc *model.Location) error

	// ListAll は全ロケーションを作成日時順に返す。
	ListAll(ctx context.Context) ([]*model.Location, error)
}

// RecipeRepository はレシピの永続化インターフェース。
type RecipeRepository interface {
	// FindByID は指定IDのレシピを作成者情報付きで取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.RecipeWithAuthor, error)

	// Create はレシピを作成する。
	// 同一作成者で同じタイトルが存在する場合はErrDuplicateKeyを満たすエラーを返す。
	Create(ctx context.Context, recipe *model.Recipe) error

	// Update はレシピを部分更新する。
	// ロケーションを変更する場合はlocation_id・スナップショット・座標を1文で更新する。
	Update(ctx context.Context, id string, upd model.RecipeUpdate) error

	// DeleteByID は指定IDのレシピを削除する。user_favsはCASCADE削除される。
	DeleteByID(ctx context.Context, id string) error

	// Query はフィード検索条件に一致するレシピを取得する。
	Query(ctx context.Context, q FeedQuery) ([]*model.RecipeWithAuthor, error)

	// CountByAuthor は作成者ごとのレシピ件数を返す。
	CountByAuthor(ctx context.Context, authorID string) (int, error)
}

// FavRepository はユーザーのお気に入り集合といいね数の永続化インターフェース。
// お気に入り集合とlike_countは常に同一トランザクションで更新する。
type FavRepository interface {
	// Like はお気に入りに追加し、新規追加時のみlike_countを1増やす。
	// レシピが存在しない場合はnilを返す。
	Like(ctx context.Context, userID, recipeID string) (*model.LikeResult, error)

	// Unlike はお気に入りから削除し、削除できた場合のみlike_countを1減らす。
	// like_countは0未満にならない。レシピが存在しない場合はnilを返す。
	Unlike(ctx context.Context, userID, recipeID string) (*model.LikeResult, error)

	// LikedAmong は指定レシピIDのうちユーザーがお気に入り済みのものを1回のクエリで返す。
	LikedAmong(ctx context.Context, userID string, recipeIDs []string) (map[string]bool, error)

	// ListByUser はユーザーのお気に入りレシピIDを返す。
	ListByUser(ctx context.Context, userID string) ([]string, error)
}

// UserRepository はユーザーデータの永続化インターフェース。
type UserRepository interface {
	// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.User, error)

	// FindByEmail は小文字化済みメールアドレスでユーザーを取得する。見つからない場合はnilを返す。
	FindByEmail(ctx context.Context, email string) (*model.User, error)

	// FindByUsername は大文字小文字を区別せずユーザー名で取得する。見つからない場合はnilを返す。
	FindByUsername(ctx context.Context, username string) (*model.User, error)

	// Create はユーザーを作成する。
	// メールアドレスまたはユーザー名が重複する場合はErrDuplicateKeyを満たすエラーを返す。
	Create(ctx context.Context, user *model.User) error

	// Update はユーザーを部分更新する。
	Update(ctx context.Context, id string, upd model.UserUpdate) error

	// DeleteWithFavs はお気に入り済みレシピのlike_countを減らしてからユーザーを削除する。
	// 同一トランザクションで実行する。作成したレシピとお気に入りはCASCADE削除される。
	DeleteWithFavs(ctx context.Context, id string) error
}
