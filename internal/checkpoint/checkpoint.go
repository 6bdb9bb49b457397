package checkpoint

import "forum-watch/internal/listing"

// Checkpoint идентификатор самой новой строки на конец предыдущего опроса
type Checkpoint string

// Unset начальное значение. Строки без идентификатора не попадают на
// страницу, поэтому Unset не совпадает ни с одной реальной строкой.
const Unset Checkpoint = ""

func (c Checkpoint) IsUnset() bool { return c == Unset }

func (c Checkpoint) String() string {
	if c.IsUnset() {
		return "<unset>"
	}
	return string(c)
}

// Result итог сканирования одной страницы
type Result struct {
	// New новые строки в порядке страницы, самые свежие первыми
	New []listing.Row
	// Prev контрольная точка, от которой считали
	Prev Checkpoint
	// Next контрольная точка для следующего опроса
	Next Checkpoint
	// FirstRun сканирование без предыдущей точки
	FirstRun bool
	// Matched предыдущая точка найдена на странице
	Matched bool
}

// Overflow: точка не найдена, часть строк могла уйти за пределы страницы
func (r Result) Overflow() bool {
	return !r.FirstRun && !r.Matched && len(r.New) > 0
}

// Scan делит страницу на новые и уже виденные строки и вычисляет
// следующую контрольную точку.
//
// При первом запуске новых строк нет, точкой становится первая строка.
// Иначе строки собираются до строки с идентификатором cp (она сама не
// входит в результат). Следующая точка всегда первая строка страницы.
// Пустая страница точку не меняет.
func Scan(page listing.Page, cp Checkpoint) Result {
	res := Result{
		New:      []listing.Row{},
		Prev:     cp,
		Next:     cp,
		FirstRun: cp.IsUnset(),
	}
	if len(page) == 0 {
		return res
	}

	res.Next = Checkpoint(page[0].ID())
	if res.FirstRun {
		return res
	}

	for _, r := range page {
		if Checkpoint(r.ID()) == cp {
			res.Matched = true
			break
		}
		res.New = append(res.New, r)
	}

	return res
}

// Tracker хранит текущую точку между опросами. Не для конкурентного
// использования: опросы идут строго последовательно.
type Tracker struct {
	current Checkpoint
}

func NewTracker() *Tracker {
	return &Tracker{current: Unset}
}

func (t *Tracker) Current() Checkpoint { return t.current }

// Scan считает результат от текущей точки, не меняя её
func (t *Tracker) Scan(page listing.Page) Result {
	return Scan(page, t.current)
}

// Commit переводит трекер на res.Next. Результат, посчитанный от другой
// точки, отклоняется.
func (t *Tracker) Commit(res Result) bool {
	if res.Prev != t.current {
		return false
	}
	t.current = res.Next
	return true
}

// Advance Scan + Commit за один вызов
func (t *Tracker) Advance(page listing.Page) Result {
	res := t.Scan(page)
	t.Commit(res)
	return res
}
