package storage

import (
	"context"
	"strconv"
	"strings"
	"time"

	"forum-watch/internal/listing"
)

// PostRecord новая тема для сохранения в архив
type PostRecord struct {
	URL          string // идентификатор строки
	Section      string // ключ раздела (whisky, brandy)
	Title        string
	Author       string
	PostedRaw    string // колонка time как на странице
	ReplyCount   int
	Views        int
	CheckSum     string // SHA256 содержимого
	DiscoveredAt time.Time
}

// NewPostRecord собирает запись из строки списка
func NewPostRecord(row listing.Row, section, checkSum string, discoveredAt time.Time) *PostRecord {
	return &PostRecord{
		URL:          row.ID(),
		Section:      section,
		Title:        row.Title(),
		Author:       row.Author(),
		PostedRaw:    row.Time(),
		ReplyCount:   parseCount(row.Field(listing.FieldReplyCount)),
		Views:        parseCount(row.Field(listing.FieldViews)),
		CheckSum:     checkSum,
		DiscoveredAt: discoveredAt.UTC(),
	}
}

// Repository архив обнаруженных тем. Контрольная точка здесь не хранится.
type Repository interface {
	// SavePost сохраняет или обновляет запись, возвращает isNew
	SavePost(ctx context.Context, post *PostRecord) (isNew bool, err error)

	Close() error
}

// parseCount "1,234" -> 1234, нечисловое -> 0
func parseCount(s string) int {
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", "")
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0
	}
	return n
}
