package render

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"forum-watch/internal/config"
	"forum-watch/internal/listing"
	"forum-watch/internal/normalize"
	"forum-watch/internal/scraper"
)

var styles = map[string]table.Style{
	"default": table.StyleDefault,
	"light":   table.StyleLight,
	"rounded": table.StyleRounded,
	"bold":    table.StyleBold,
	"double":  table.StyleDouble,
}

// Renderer печатает новые темы одного опроса таблицей в консоль
type Renderer struct {
	out        io.Writer
	cfg        config.RenderConfig
	normalizer *normalize.Normalizer
	dates      *scraper.DateParser
	now        func() time.Time
}

func NewRenderer(out io.Writer, cfg config.RenderConfig, normalizer *normalize.Normalizer, dates *scraper.DateParser) *Renderer {
	return &Renderer{
		out:        out,
		cfg:        cfg,
		normalizer: normalizer,
		dates:      dates,
		now:        time.Now,
	}
}

// Render выводит таблицу даже при нуле новых тем: итоговая строка
// служит отметкой, что опрос прошёл
func (r *Renderer) Render(rows []listing.Row) error {
	t := table.NewWriter()
	t.SetStyle(styleByName(r.cfg.Style))
	t.Style().Title.Align = text.AlignCenter
	t.SetTitle("%s", r.now().Format(r.timeLayout()))

	t.AppendHeader(table.Row{"原始標題", "作者", "發文時間", "連結"})
	for _, row := range rows {
		t.AppendRow(table.Row{
			r.normalizer.TruncateTitle(row.Title()),
			row.Author(),
			r.formatTime(row.Time()),
			row.ID(),
		})
	}

	footer := fmt.Sprintf("本次計有 %d 篇新文章", len(rows))
	t.AppendFooter(table.Row{footer, footer, footer, footer}, table.RowConfig{AutoMerge: true})

	if r.cfg.MaxColumnWidth > 0 {
		t.SetColumnConfigs([]table.ColumnConfig{
			{Number: 1, WidthMax: r.cfg.MaxColumnWidth},
			{Number: 4, WidthMax: r.cfg.MaxColumnWidth},
		})
	}

	_, err := fmt.Fprintln(r.out, t.Render())
	return err
}

// formatTime приводит время к общему формату, нераспознанное оставляет как есть
func (r *Renderer) formatTime(raw string) string {
	if r.dates == nil || strings.TrimSpace(raw) == "" {
		return raw
	}
	parsed, err := r.dates.Parse(raw)
	if err != nil {
		return raw
	}
	return parsed.Format(r.timeLayout())
}

func (r *Renderer) timeLayout() string {
	if r.cfg.TimeLayout == "" {
		return "2006/01/02 15:04:05"
	}
	return r.cfg.TimeLayout
}

func styleByName(name string) table.Style {
	if s, ok := styles[strings.ToLower(name)]; ok {
		return s
	}
	return table.StyleLight
}

