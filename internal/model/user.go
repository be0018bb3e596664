package model

import "time"

// User はサービス利用ユーザーを表す。
// PasswordHashはレスポンスに含めてはならない。
type User struct {
	ID                string
	Email             string
	Username          string
	Fullname          string
	PasswordHash      string
	Bio               string
	ProfilePicURL     string
	DefaultLocationID string // 未設定の場合は空文字
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// UserProfile はユーザー情報にデフォルトロケーションを結合したモデル。
type UserProfile struct {
	User
	DefaultLocation *Location
	Favs            []string
	RecipeCount     int
}

// UserUpdate はプロフィールの部分更新内容を表す。
// nilのフィールドは変更しない。
type UserUpdate struct {
	Fullname          *string
	Username          *string
	Email             *string
	Bio               *string
	ProfilePicURL     *string
	DefaultLocationID *string
}
