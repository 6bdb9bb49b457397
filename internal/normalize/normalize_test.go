package normalize

import (
	"strings"
	"testing"
	"unicode/utf8"

	"forum-watch/internal/config"
)

func TestCleanCell(t *testing.T) {
	normalizer := NewNormalizer(config.NormalizeConfig{
		TrimNBSP:       true,
		CollapseSpaces: true,
	})

	tests := []struct {
		input    string
		expected string
	}{
		{"\n\t\t  麥卡倫 18年\n  ", "麥卡倫 18年"},
		{"Glen  Farclas", "Glen Farclas"},
		{"\u3000回覆\u3000", "回覆"},
		{"a\r\nb", "ab"},
		{"", ""},
	}

	for _, tt := range tests {
		result := normalizer.CleanCell(tt.input)
		if result != tt.expected {
			t.Errorf("CleanCell(%q) = %q, want %q", tt.input, result, tt.expected)
		}
	}
}

func TestCleanCellKeepsSpacesWhenDisabled(t *testing.T) {
	normalizer := NewNormalizer(config.NormalizeConfig{})

	result := normalizer.CleanCell("  a   b\n ")
	if result != "a   b" {
		t.Errorf("CleanCell = %q, want %q", result, "a   b")
	}
}

func TestTruncateTitle(t *testing.T) {
	normalizer := NewNormalizer(config.NormalizeConfig{MaxTitleChars: 20})

	input := "這是一個非常長的標題這是一個非常長的標題這是一個非常長的標題"
	result := normalizer.TruncateTitle(input)

	if utf8.RuneCountInString(result) > 21 {
		t.Errorf("TruncateTitle result too long: %d runes", utf8.RuneCountInString(result))
	}
	if !strings.HasSuffix(result, "…") {
		t.Errorf("TruncateTitle should end with …")
	}
	if !utf8.ValidString(result) {
		t.Errorf("TruncateTitle broke a multibyte rune: %q", result)
	}

	short := "短標題"
	if got := normalizer.TruncateTitle(short); got != short {
		t.Errorf("TruncateTitle(%q) = %q", short, got)
	}
}

func TestTruncateTitleUnlimited(t *testing.T) {
	normalizer := NewNormalizer(config.NormalizeConfig{})

	input := strings.Repeat("x", 500)
	if got := normalizer.TruncateTitle(input); got != input {
		t.Errorf("TruncateTitle with no limit changed input")
	}
}

func TestNormalizeURL(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"https://example.com/page#anchor", "https://example.com/page"},
		{"  https://example.com  ", "https://example.com"},
	}

	for _, tt := range tests {
		result := NormalizeURL(tt.input)
		if result != tt.expected {
			t.Errorf("NormalizeURL(%q) = %q, want %q", tt.input, result, tt.expected)
		}
	}
}
