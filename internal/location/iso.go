package location

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// DeriveISO2 は自由記述の国名からISO 3166-1 alpha-2コードを導出する。
//
// 判定順序（最初に一致したものを採用）:
//  1. 略称テーブル（USA, U.S., UK など）
//  2. 2文字コード（国コード表に存在するもののみ。未知のコードはそこで不一致とする）
//  3. 3文字コード（alpha-3からの逆引き）
//  4. 入力どおりの名称
//  5. タイトルケース化した名称、次いで大文字小文字を無視した名称
//
// 導出できない場合は ("", false) を返す。
func DeriveISO2(input string) (string, bool) {
	trimmed := strings.Join(strings.Fields(input), " ")
	if trimmed == "" {
		return "", false
	}

	lowered := cases.Lower(language.Und).String(trimmed)
	if name, ok := aliases[strings.TrimRight(lowered, ".")]; ok {
		if code, ok := countries.byName[name]; ok {
			return code, true
		}
	}

	if isASCIILetters(trimmed) {
		switch len(trimmed) {
		case 2:
			code := strings.ToUpper(trimmed)
			if _, ok := countries.byAlpha2[code]; ok {
				return code, true
			}
			return "", false
		case 3:
			if code, ok := countries.byAlpha3[strings.ToUpper(trimmed)]; ok {
				return code, true
			}
		}
	}

	if code, ok := countries.byName[trimmed]; ok {
		return code, true
	}

	titled := cases.Title(language.English).String(lowered)
	if code, ok := countries.byName[titled]; ok {
		return code, true
	}
	if code, ok := countries.byFolded[lowered]; ok {
		return code, true
	}

	return "", false
}

func isASCIILetters(s string) bool {
	for i := 0; i < len(s); i++ {
		c := s[i]
		if (c < 'a' || c > 'z') && (c < 'A' || c > 'Z') {
			return false
		}
	}
	return true
}
