// Package location は自由記述の地名を正規化し、重複のないロケーションへ解決する。
package location

import (
	"bytes"
	_ "embed"
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

//go:embed countries.csv
var countriesCSV []byte

// Country はISO 3166-1の国コード表の1行を表す。
type Country struct {
	Alpha2 string
	Alpha3 string
	Name   string // 代表名
}

// countryTable は起動時に一度だけ構築される読み取り専用の国コード表。
type countryTable struct {
	byAlpha2 map[string]Country
	byAlpha3 map[string]string // alpha3 -> alpha2
	byName   map[string]string // 名称（表記そのまま） -> alpha2
	byFolded map[string]string // 小文字化した名称 -> alpha2
}

var countries = mustLoadCountries(countriesCSV)

// aliases は非公式な略称を国コード表の名称に対応付ける。
// キーは小文字化・空白圧縮・末尾ピリオド除去済みの形式。
var aliases = map[string]string{
	"u.s":                      "United States",
	"u.s.a":                    "United States",
	"usa":                      "United States",
	"us":                       "United States",
	"america":                  "United States",
	"united states of america": "United States",
	"u.k":                      "United Kingdom",
	"uk":                       "United Kingdom",
	"great britain":            "United Kingdom",
	"britain":                  "United Kingdom",
	"england":                  "United Kingdom",
	"uae":                      "United Arab Emirates",
	"u.a.e":                    "United Arab Emirates",
	"r.o.c":                    "Taiwan",
	"south korea":              "Korea, Republic of",
	"russia":                   "Russian Federation",
}

func mustLoadCountries(data []byte) *countryTable {
	t, err := loadCountries(bytes.NewReader(data))
	if err != nil {
		panic(fmt.Sprintf("国コード表の読み込みに失敗しました: %v", err))
	}
	return t
}

func loadCountries(r io.Reader) (*countryTable, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	records, err := reader.ReadAll()
	if err != nil {
		return nil, err
	}
	if len(records) < 2 {
		return nil, fmt.Errorf("国コード表が空です")
	}

	t := &countryTable{
		byAlpha2: make(map[string]Country, len(records)),
		byAlpha3: make(map[string]string, len(records)),
		byName:   make(map[string]string, len(records)*2),
		byFolded: make(map[string]string, len(records)*2),
	}
	lower := cases.Lower(language.Und)

	// 1行目はヘッダー
	for i, rec := range records[1:] {
		if len(rec) < 3 {
			return nil, fmt.Errorf("line %d: 列数が不足しています", i+2)
		}
		alpha2 := strings.ToUpper(strings.TrimSpace(rec[0]))
		alpha3 := strings.ToUpper(strings.TrimSpace(rec[1]))
		if len(alpha2) != 2 || len(alpha3) != 3 {
			return nil, fmt.Errorf("line %d: 不正な国コードです: %s/%s", i+2, alpha2, alpha3)
		}

		t.byAlpha2[alpha2] = Country{Alpha2: alpha2, Alpha3: alpha3, Name: strings.TrimSpace(rec[2])}
		t.byAlpha3[alpha3] = alpha2
		for _, name := range rec[2:] {
			name = strings.TrimSpace(name)
			if name == "" {
				continue
			}
			t.byName[name] = alpha2
			t.byFolded[lower.String(name)] = alpha2
		}
	}

	return t, nil
}

// LookupAlpha2 は国コードに対応する国情報を返す。
func LookupAlpha2(code string) (Country, bool) {
	c, ok := countries.byAlpha2[strings.ToUpper(code)]
	return c, ok
}
