package scraper

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var (
	// Маркеры до/после полудня в формате zh-TW: "2025/1/2 下午 03:04:05"
	amMarkers = []string{"上午", "AM", "am"}
	pmMarkers = []string{"下午", "PM", "pm"}

	dateTimeRe = regexp.MustCompile(`(\d{4})[/\-.](\d{1,2})[/\-.](\d{1,2})(?:\s+(\d{1,2}):(\d{2})(?::(\d{2}))?)?`)
	// "01/02 15:04" без года
	shortDateRe = regexp.MustCompile(`^(\d{1,2})[/\-](\d{1,2})(?:\s+(\d{1,2}):(\d{2}))?$`)
)

// DateParser разбирает время публикации из колонки time. Только для
// отображения: новые строки определяются без опоры на время.
type DateParser struct {
	loc *time.Location
	now func() time.Time
}

func NewDateParser(loc *time.Location) *DateParser {
	if loc == nil {
		loc = time.Local
	}
	return &DateParser{loc: loc, now: time.Now}
}

// Parse возвращает время в зоне парсера
func (dp *DateParser) Parse(dateStr string) (time.Time, error) {
	dateStr = strings.TrimSpace(dateStr)
	if dateStr == "" {
		return time.Time{}, fmt.Errorf("empty date string")
	}

	pm := containsAny(dateStr, pmMarkers)
	am := containsAny(dateStr, amMarkers)
	cleaned := dateStr
	for _, m := range append(append([]string{}, amMarkers...), pmMarkers...) {
		cleaned = strings.ReplaceAll(cleaned, m, " ")
	}
	cleaned = strings.Join(strings.Fields(cleaned), " ")

	if matches := dateTimeRe.FindStringSubmatch(cleaned); matches != nil {
		year, _ := strconv.Atoi(matches[1])
		month, _ := strconv.Atoi(matches[2])
		day, _ := strconv.Atoi(matches[3])
		hour, minute, sec, err := parseClock(matches[4], matches[5], matches[6])
		if err != nil {
			return time.Time{}, err
		}
		return dp.build(year, month, day, adjustHour(hour, am, pm), minute, sec)
	}

	// Формат без года: текущий год, или прошлый если дата в будущем
	if matches := shortDateRe.FindStringSubmatch(cleaned); matches != nil {
		month, _ := strconv.Atoi(matches[1])
		day, _ := strconv.Atoi(matches[2])
		hour, minute, _, err := parseClock(matches[3], matches[4], "")
		if err != nil {
			return time.Time{}, err
		}
		now := dp.now().In(dp.loc)
		t, err := dp.build(now.Year(), month, day, adjustHour(hour, am, pm), minute, 0)
		if err != nil {
			return time.Time{}, err
		}
		if t.After(now.Add(24 * time.Hour)) {
			t = t.AddDate(-1, 0, 0)
		}
		return t, nil
	}

	return time.Time{}, fmt.Errorf("unable to parse date: %s", dateStr)
}

func (dp *DateParser) build(year, month, day, hour, minute, sec int) (time.Time, error) {
	if month < 1 || month > 12 {
		return time.Time{}, fmt.Errorf("invalid month: %d", month)
	}
	if day < 1 || day > 31 {
		return time.Time{}, fmt.Errorf("invalid day: %d", day)
	}
	if hour > 23 || minute > 59 || sec > 59 {
		return time.Time{}, fmt.Errorf("invalid clock: %02d:%02d:%02d", hour, minute, sec)
	}

	t := time.Date(year, time.Month(month), day, hour, minute, sec, 0, dp.loc)
	// time.Date нормализует 31 февраля в март
	if t.Day() != day {
		return time.Time{}, fmt.Errorf("invalid day %d for month %d", day, month)
	}
	return t, nil
}

func parseClock(h, m, s string) (hour, minute, sec int, err error) {
	if h == "" {
		return 0, 0, 0, nil
	}
	if hour, err = strconv.Atoi(h); err != nil {
		return 0, 0, 0, fmt.Errorf("invalid hour: %q: %w", h, err)
	}
	if minute, err = strconv.Atoi(m); err != nil {
		return 0, 0, 0, fmt.Errorf("invalid minute: %q: %w", m, err)
	}
	if s != "" {
		if sec, err = strconv.Atoi(s); err != nil {
			return 0, 0, 0, fmt.Errorf("invalid second: %q: %w", s, err)
		}
	}
	return hour, minute, sec, nil
}

func adjustHour(hour int, am, pm bool) int {
	switch {
	case pm && hour < 12:
		return hour + 12
	case am && hour == 12:
		return 0
	}
	return hour
}

func containsAny(s string, subs []string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
