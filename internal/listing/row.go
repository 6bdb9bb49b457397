package listing

import "strings"

// Имена колонок таблицы раздела в порядке следования <td>
const (
	FieldTime          = "time"
	FieldOriginalTitle = "original_title"
	FieldAuthor        = "author"
	FieldReplyCount    = "reply_count"
	FieldViews         = "views"
	FieldTitle1        = "title1"
	FieldTitle2        = "title2"
	FieldLink          = "link"
)

// FieldNames порядок колонок строки
var FieldNames = [...]string{
	FieldTime,
	FieldOriginalTitle,
	FieldAuthor,
	FieldReplyCount,
	FieldViews,
	FieldTitle1,
	FieldTitle2,
	FieldLink,
}

// Row одна строка списка тем. После создания не изменяется.
type Row struct {
	fields    map[string]string
	populated int
	id        string
	pinned    bool
}

// NewRow собирает строку из текстов ячеек (в порядке FieldNames) и
// разрешённой ссылки на тему. Лишние ячейки отбрасываются. Поле link
// всегда содержит идентификатор.
func NewRow(cells []string, id, pinTag string) Row {
	fields := make(map[string]string, len(FieldNames))
	populated := 0
	for i, value := range cells {
		if i >= len(FieldNames) {
			break
		}
		fields[FieldNames[i]] = value
		if strings.TrimSpace(value) != "" {
			populated++
		}
	}
	fields[FieldLink] = id

	title := fields[FieldOriginalTitle]
	return Row{
		fields:    fields,
		populated: populated,
		id:        id,
		pinned:    pinTag != "" && strings.Contains(title, pinTag),
	}
}

// ID абсолютная ссылка на тему
func (r Row) ID() string { return r.id }

// Title исходный заголовок
func (r Row) Title() string { return r.fields[FieldOriginalTitle] }

func (r Row) Author() string { return r.fields[FieldAuthor] }

func (r Row) Time() string { return r.fields[FieldTime] }

// Pinned признак закреплённой темы
func (r Row) Pinned() bool { return r.pinned }

// Populated количество непустых ячеек
func (r Row) Populated() int { return r.populated }

func (r Row) Field(name string) string { return r.fields[name] }

// Fields возвращает копию полей
func (r Row) Fields() map[string]string {
	out := make(map[string]string, len(r.fields))
	for k, v := range r.fields {
		out[k] = v
	}
	return out
}

// Page строки без закреплённых и битых, новые сверху
type Page []Row

// IDs идентификаторы строк в порядке страницы
func (p Page) IDs() []string {
	ids := make([]string, len(p))
	for i, r := range p {
		ids[i] = r.id
	}
	return ids
}
