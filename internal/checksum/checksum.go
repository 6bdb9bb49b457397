package checksum

import (
	"crypto/sha256"
	"fmt"
	"strings"

	"forum-watch/internal/listing"
)

type Generator struct{}

func NewGenerator() *Generator {
	return &Generator{}
}

// GenerateRowHash SHA256 от содержимого строки
// Формула: SHA256(link|original_title|author|time)
// Счётчики ответов и просмотров не входят: они меняются без изменения темы.
func (g *Generator) GenerateRowHash(row listing.Row) string {
	content := strings.Join([]string{
		row.ID(),
		row.Title(),
		row.Author(),
		row.Time(),
	}, "|")

	hash := sha256.Sum256([]byte(content))

	return fmt.Sprintf("%x", hash)
}
