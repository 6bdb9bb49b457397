package forum

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

// DefaultBaseURL адрес страницы раздела форума
const DefaultBaseURL = "https://www.p9.com.tw/Forum/ForumSection.aspx"

// UnknownLabelError возвращается, если метка не соответствует ни одному варианту
type UnknownLabelError struct {
	Kind  string
	Label string
}

func (e *UnknownLabelError) Error() string {
	return fmt.Sprintf("unknown %s: %q", e.Kind, e.Label)
}

// Section раздел форума
type Section int

const (
	Whisky Section = iota + 1
	Brandy
)

type sectionInfo struct {
	key   string
	label string
	id    int
}

var sections = map[Section]sectionInfo{
	Whisky: {key: "whisky", label: "威士忌", id: 1},
	Brandy: {key: "brandy", label: "白蘭地", id: 3},
}

// Sections возвращает все разделы в порядке меню
func Sections() []Section {
	return []Section{Whisky, Brandy}
}

func (s Section) Key() string   { return sections[s].key }
func (s Section) Label() string { return sections[s].label }
func (s Section) ID() int       { return sections[s].id }

func (s Section) String() string {
	if info, ok := sections[s]; ok {
		return info.label
	}
	return "Section(" + strconv.Itoa(int(s)) + ")"
}

// ParseSection принимает ключ ("whisky") или отображаемую метку ("威士忌")
func ParseSection(label string) (Section, error) {
	label = strings.TrimSpace(label)
	for _, s := range Sections() {
		info := sections[s]
		if strings.EqualFold(label, info.key) || label == info.label {
			return s, nil
		}
	}
	return 0, &UnknownLabelError{Kind: "section", Label: label}
}

// Sort порядок сортировки списка тем
type Sort int

const (
	LastReplyTime Sort = iota + 1
	PostTime
)

type sortInfo struct {
	key   string
	label string
	query string
}

var sorts = map[Sort]sortInfo{
	LastReplyTime: {key: "last_reply", label: "最後回應時間", query: "Last_Reply_Time"},
	PostTime:      {key: "post_time", label: "發文時間", query: "Post_Time"},
}

func Sorts() []Sort {
	return []Sort{LastReplyTime, PostTime}
}

func (s Sort) Key() string        { return sorts[s].key }
func (s Sort) Label() string      { return sorts[s].label }
func (s Sort) QueryValue() string { return sorts[s].query }

func (s Sort) String() string {
	if info, ok := sorts[s]; ok {
		return info.label
	}
	return "Sort(" + strconv.Itoa(int(s)) + ")"
}

// ParseSort принимает ключ, метку или значение параметра запроса
func ParseSort(label string) (Sort, error) {
	label = strings.TrimSpace(label)
	for _, s := range Sorts() {
		info := sorts[s]
		if strings.EqualFold(label, info.key) || label == info.label || label == info.query {
			return s, nil
		}
	}
	return 0, &UnknownLabelError{Kind: "sort", Label: label}
}

// ListingURL строит адрес списка тем: <base>?Id=<id>&Sort=<sort>
func ListingURL(baseURL string, section Section, sort Sort) (string, error) {
	if _, ok := sections[section]; !ok {
		return "", fmt.Errorf("invalid section: %d", int(section))
	}
	if _, ok := sorts[sort]; !ok {
		return "", fmt.Errorf("invalid sort: %d", int(sort))
	}

	u, err := url.Parse(baseURL)
	if err != nil {
		return "", fmt.Errorf("invalid base URL: %w", err)
	}
	if !u.IsAbs() {
		return "", fmt.Errorf("base URL must be absolute: %s", baseURL)
	}

	q := u.Query()
	q.Set("Id", strconv.Itoa(section.ID()))
	q.Set("Sort", sort.QueryValue())
	u.RawQuery = q.Encode()

	return u.String(), nil
}
