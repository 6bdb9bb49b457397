package normalize

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"forum-watch/internal/config"
)

var spacesRe = regexp.MustCompile(`\s+`)

type Normalizer struct {
	cfg config.NormalizeConfig
}

func NewNormalizer(cfg config.NormalizeConfig) *Normalizer {
	return &Normalizer{cfg: cfg}
}

// CleanCell приводит текст ячейки таблицы к одной строке
func (n *Normalizer) CleanCell(text string) string {
	// Переводы строк внутри <td> приходят из разметки, а не из контента
	text = strings.ReplaceAll(text, "\r", "")
	text = strings.ReplaceAll(text, "\n", "")

	if n.cfg.TrimNBSP {
		// Заменяем NBSP и полноширинный пробел на обычный
		text = strings.ReplaceAll(text, "\u00A0", " ")
		text = strings.ReplaceAll(text, "\u3000", " ")
	}

	if n.cfg.CollapseSpaces {
		text = spacesRe.ReplaceAllString(text, " ")
	}

	return strings.TrimSpace(text)
}

// TruncateTitle обрезает заголовок до MaxTitleChars символов (рун)
func (n *Normalizer) TruncateTitle(text string) string {
	limit := n.cfg.MaxTitleChars
	if limit <= 0 || utf8.RuneCountInString(text) <= limit {
		return text
	}

	runes := []rune(text)
	truncated := string(runes[:limit])

	// Находим последний пробел перед лимитом
	lastSpace := strings.LastIndex(truncated, " ")
	if lastSpace > len(truncated)/2 {
		return truncated[:lastSpace] + "…"
	}

	return truncated + "…"
}

// NormalizeURL убирает якорь
func NormalizeURL(urlStr string) string {
	urlStr = strings.TrimSpace(urlStr)
	if idx := strings.Index(urlStr, "#"); idx > -1 {
		urlStr = urlStr[:idx]
	}
	return urlStr
}
