package security

import (
	"strings"
	"testing"
)

func TestTextSanitizer_StripsTags(t *testing.T) {
	s := NewTextSanitizer()

	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain", "Miso soup", "Miso soup"},
		{"empty", "", ""},
		{"trim", "  Ramen  ", "Ramen"},
		{"bold", "<b>Spicy</b> noodles", "Spicy noodles"},
		{"script", `Curry<script>alert("x")</script>`, "Curry"},
		{"event attribute", `<img src=x onerror=alert(1)>Tofu`, "Tofu"},
		{"link", `<a href="javascript:alert(1)">click</a>`, "click"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := s.Sanitize(tt.in); got != tt.want {
				t.Errorf("Sanitize(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

// タグとして解釈されない特殊文字はエンティティとして残る
func TestTextSanitizer_EscapesSpecialChars(t *testing.T) {
	s := NewTextSanitizer()

	got := s.Sanitize("Salt & pepper")
	if got != "Salt &amp; pepper" {
		t.Errorf("Sanitize = %q, want %q", got, "Salt &amp; pepper")
	}
	if strings.Contains(s.Sanitize("<<script>>"), "<script>") {
		t.Error("scriptタグが残っている")
	}
}

func TestSanitizeAll(t *testing.T) {
	s := NewTextSanitizer()

	if got := SanitizeAll(s, nil); got != nil {
		t.Errorf("SanitizeAll(nil) = %v, want nil", got)
	}

	in := []string{"<i>Boil</i> water", " Add noodles "}
	got := SanitizeAll(s, in)
	if len(got) != 2 || got[0] != "Boil water" || got[1] != "Add noodles" {
		t.Errorf("SanitizeAll = %q", got)
	}
	// 元のスライスは変更しない
	if in[0] != "<i>Boil</i> water" {
		t.Errorf("input modified: %q", in[0])
	}
}

func TestTextSanitizerInterface(t *testing.T) {
	var _ TextSanitizer = NewTextSanitizer()
}
