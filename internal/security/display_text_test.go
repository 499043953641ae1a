package security

import "testing"

// TestDisplayTextSanitizer_StripsMarkup はタグが除去されテキストだけが残ることを検証する。
func TestDisplayTextSanitizer_StripsMarkup(t *testing.T) {
	s := NewDisplayTextSanitizer()

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"プレーンテキスト", "my project", "my project"},
		{"scriptタグ", `<script>alert("x")</script>scene`, "scene"},
		{"装飾タグ", "<b>bold</b> name", "bold name"},
		{"イベント属性付きタグ", `<img src=x onerror=alert(1)>cube`, "cube"},
		{"前後の空白", "  padded  ", "padded"},
		{"空文字列", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := s.Sanitize(tt.input); got != tt.want {
				t.Errorf("Sanitize(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

// TestDisplayTextSanitizer_Idempotent は二重適用が結果を変えないことを検証する。
func TestDisplayTextSanitizer_Idempotent(t *testing.T) {
	s := NewDisplayTextSanitizer()

	input := `<a href="javascript:x">link</a> title`
	once := s.Sanitize(input)
	twice := s.Sanitize(once)
	if once != twice {
		t.Errorf("Sanitize not idempotent: %q != %q", once, twice)
	}
}
