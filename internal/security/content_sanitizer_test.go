package security

import (
	"strings"
	"testing"
)

// TestSanitize_StripsTags はタグが除去されテキストが残ることを検証する。
func TestSanitize_StripsTags(t *testing.T) {
	sanitizer := NewTextSanitizer()

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "プレーンテキストはそのまま",
			input: "部屋の予約について質問です",
			want:  "部屋の予約について質問です",
		},
		{
			name:  "太字タグが除去される",
			input: "<b>hello</b> world",
			want:  "hello world",
		},
		{
			name:  "リンクタグが除去されテキストが残る",
			input: `<a href="https://example.com">link</a>`,
			want:  "link",
		},
		{
			name:  "比較記号はエスケープされない",
			input: "price < 10000 & qty > 1",
			want:  "price < 10000 & qty > 1",
		},
		{
			name:  "空文字列",
			input: "",
			want:  "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := sanitizer.Sanitize(tt.input)
			if got != tt.want {
				t.Errorf("Sanitize(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

// TestSanitize_RemovesScriptContent はscriptタグの中身ごと除去されることを検証する。
func TestSanitize_RemovesScriptContent(t *testing.T) {
	sanitizer := NewTextSanitizer()

	got := sanitizer.Sanitize(`<script>alert("xss")</script>こんにちは`)
	if strings.Contains(got, "alert") {
		t.Errorf("script content should be removed, got %q", got)
	}
	if !strings.Contains(got, "こんにちは") {
		t.Errorf("text should remain, got %q", got)
	}
}

// TestSanitize_EventAttributes はイベント属性を含むタグが除去されることを検証する。
func TestSanitize_EventAttributes(t *testing.T) {
	sanitizer := NewTextSanitizer()

	got := sanitizer.Sanitize(`<img src="x" onerror="alert(1)">ok`)
	if strings.Contains(got, "onerror") || strings.Contains(got, "<img") {
		t.Errorf("img tag should be removed, got %q", got)
	}
	if got != "ok" {
		t.Errorf("got %q, want %q", got, "ok")
	}
}

// TestSanitize_Idempotent は同一入力に対して同一出力を返すことを検証する。
func TestSanitize_Idempotent(t *testing.T) {
	sanitizer := NewTextSanitizer()

	input := "<p>チェックイン時間は？</p>"
	first := sanitizer.Sanitize(input)
	second := sanitizer.Sanitize(first)
	if first != second {
		t.Errorf("not idempotent: %q vs %q", first, second)
	}
}
