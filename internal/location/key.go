package location

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Normalize は前後の空白を除去し、連続する空白を1つにまとめ、小文字化する。
func Normalize(s string) string {
	return cases.Lower(language.Und).String(strings.Join(strings.Fields(s), " "))
}

// MakeKey はロケーションの重複排除キーを生成する。
// 正規化後の値が等しい入力は常に同じキーになる。
func MakeKey(locality, area, countryCode string) string {
	return Normalize(locality) + "|" + Normalize(area) + "|" + Normalize(countryCode)
}
