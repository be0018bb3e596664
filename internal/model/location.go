package model

import "time"

// Location は正規化・重複排除された地点を表す。
// 一度作成されたら更新も削除もされない。
type Location struct {
	ID          string
	Key         string // locality|area|country_code の正規化済み複合キー（一意）
	Locality    string
	Area        string
	Country     string
	CountryCode string // ISO 3166-1 alpha-2
	Formatted   string
	Point       Point
	Provider    string
	CreatedAt   time.Time
}

// Point は経度・緯度の組を表す。
type Point struct {
	Lng float64
	Lat float64
}

// LocationInput はクライアントから受け取る自由記述のロケーション。
type LocationInput struct {
	Locality string
	Area     string
	Country  string
}
