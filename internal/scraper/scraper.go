package scraper

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"forum-watch/internal/config"
	"forum-watch/internal/listing"
	"forum-watch/internal/normalize"
)

// ErrListingNotFound таблица раздела не найдена по селектору
var ErrListingNotFound = errors.New("listing table not found")

type Scraper struct {
	selectors  *config.Selectors
	normalizer *normalize.Normalizer
	pinTag     string
}

func NewScraper(selectors *config.Selectors, normalizer *normalize.Normalizer, pinTag string) *Scraper {
	return &Scraper{
		selectors:  selectors,
		normalizer: normalizer,
		pinTag:     pinTag,
	}
}

// ParseListing парсит таблицу раздела и возвращает строки в порядке страницы.
// Ссылки разрешаются относительно baseURL. Строки не фильтруются.
func (s *Scraper) ParseListing(html string, baseURL *url.URL) ([]listing.Row, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}

	body := doc.Find(s.selectors.TableBody).First()
	if body.Length() == 0 {
		return nil, fmt.Errorf("%w: %s", ErrListingNotFound, s.selectors.TableBody)
	}

	var rows []listing.Row

	body.Find(s.selectors.Row).Each(func(i int, tr *goquery.Selection) {
		// Первые строки: заголовок таблицы
		if i < s.selectors.SkipRows {
			return
		}

		var cells []string
		tr.Find(s.selectors.Cell).Each(func(_ int, td *goquery.Selection) {
			cells = append(cells, s.normalizer.CleanCell(td.Text()))
		})

		// Берём последнюю ссылку строки: у темы с ответами их несколько
		href, _ := tr.Find(s.selectors.Link).Last().Attr("href")
		rows = append(rows, listing.NewRow(cells, resolveLink(baseURL, href), s.pinTag))
	})

	return rows, nil
}

// resolveLink возвращает абсолютную ссылку без якоря или "" если её нет
func resolveLink(base *url.URL, href string) string {
	href = strings.TrimSpace(href)
	if href == "" {
		return ""
	}

	ref, err := url.Parse(href)
	if err != nil {
		return ""
	}

	resolved := base.ResolveReference(ref)
	if resolved.Scheme != "http" && resolved.Scheme != "https" {
		return ""
	}

	return normalize.NormalizeURL(resolved.String())
}
