package listing

// DefaultPinTag метка закреплённой темы в заголовке
const DefaultPinTag = "【頂】"

// DefaultMinFields минимальное число заполненных ячеек
const DefaultMinFields = 5

// Filter отбрасывает битые и закреплённые строки
type Filter struct {
	MinFields int
}

// FilterStats счётчики отброшенных строк, только для логов
type FilterStats struct {
	Malformed int
	Pinned    int
}

func NewFilter(minFields int) Filter {
	if minFields <= 0 {
		minFields = DefaultMinFields
	}
	return Filter{MinFields: minFields}
}

// Apply возвращает страницу в исходном порядке. Строки без ссылки или с
// недостаточным числом ячеек отбрасываются до проверки на закрепление.
func (f Filter) Apply(rows []Row) (Page, FilterStats) {
	var stats FilterStats
	page := make(Page, 0, len(rows))

	for _, r := range rows {
		if f.malformed(r) {
			stats.Malformed++
			continue
		}
		if r.pinned {
			stats.Pinned++
			continue
		}
		page = append(page, r)
	}

	return page, stats
}

func (f Filter) malformed(r Row) bool {
	return r.id == "" || r.populated < f.MinFields
}
