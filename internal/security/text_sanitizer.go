// Package security は入力の無害化と外部URLの安全性検証を提供する。
package security

import (
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// TextSanitizer はユーザー入力のテキストからHTMLを取り除く。
// レシピのタイトル・説明・材料・手順、プロフィールの自己紹介の保存前に使用する。
type TextSanitizer interface {
	// Sanitize はすべてのタグを除去し、前後の空白を取り除いたテキストを返す。
	// HTMLの特殊文字はエンティティとして残る。
	Sanitize(s string) string
}

// textSanitizer はbluemondayのStrictPolicyによるTextSanitizerの実装。
// Policyは生成後に変更しなければ並行して使用できる。
type textSanitizer struct {
	policy *bluemonday.Policy
}

// NewTextSanitizer はTextSanitizerを生成する。
func NewTextSanitizer() *textSanitizer {
	return &textSanitizer{policy: bluemonday.StrictPolicy()}
}

// Sanitize はタグを除去したテキストを返す。
func (s *textSanitizer) Sanitize(in string) string {
	if in == "" {
		return ""
	}
	return strings.TrimSpace(s.policy.Sanitize(in))
}

// SanitizeAll はスライスの各要素をサニタイズした新しいスライスを返す。
func SanitizeAll(s TextSanitizer, in []string) []string {
	if in == nil {
		return nil
	}
	out := make([]string, len(in))
	for i, v := range in {
		out[i] = s.Sanitize(v)
	}
	return out
}
