package app

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"forum-watch/internal/checkpoint"
	"forum-watch/internal/checksum"
	"forum-watch/internal/config"
	"forum-watch/internal/fetcher"
	"forum-watch/internal/forum"
	"forum-watch/internal/listing"
	"forum-watch/internal/observability"
	"forum-watch/internal/scraper"
	"forum-watch/internal/storage"
)

// Source отдаёт HTML страницы раздела: HTTP-клиент или headless браузер
type Source interface {
	Fetch(ctx context.Context, url string) (*fetcher.FetchResponse, error)
}

// Renderer выводит новые темы одного опроса
type Renderer interface {
	Render(rows []listing.Row) error
}

type Poller struct {
	cfg        *config.Config
	logger     *observability.Logger
	source     Source
	scraper    *scraper.Scraper
	filter     listing.Filter
	tracker    *checkpoint.Tracker
	renderer   Renderer
	repo       storage.Repository
	checksum   *checksum.Generator
	section    forum.Section
	listingURL string
	now        func() time.Time
}

// PollStats итог одного опроса, только для логов
type PollStats struct {
	Rows       int
	Malformed  int
	Pinned     int
	New        int
	Inserted   int
	FirstRun   bool
	Overflow   bool
	Checkpoint checkpoint.Checkpoint
	Duration   time.Duration
}

// NewPoller собирает драйвер опроса. repo может быть nil, тогда архив
// не ведётся.
func NewPoller(
	cfg *config.Config,
	logger *observability.Logger,
	source Source,
	s *scraper.Scraper,
	renderer Renderer,
	repo storage.Repository,
	section forum.Section,
	sort forum.Sort,
) (*Poller, error) {
	listingURL, err := forum.ListingURL(cfg.Listing.BaseURL, section, sort)
	if err != nil {
		return nil, err
	}

	return &Poller{
		cfg:        cfg,
		logger:     logger,
		source:     source,
		scraper:    s,
		filter:     listing.NewFilter(cfg.Filter.MinFields),
		tracker:    checkpoint.NewTracker(),
		renderer:   renderer,
		repo:       repo,
		checksum:   checksum.NewGenerator(),
		section:    section,
		listingURL: listingURL,
		now:        time.Now,
	}, nil
}

// ListingURL адрес опрашиваемой страницы
func (p *Poller) ListingURL() string { return p.listingURL }

// Checkpoint текущая контрольная точка
func (p *Poller) Checkpoint() checkpoint.Checkpoint { return p.tracker.Current() }

// PollOnce выполняет один опрос. Точка сдвигается только если загрузка,
// разбор и архив прошли без ошибок.
func (p *Poller) PollOnce(ctx context.Context) (*PollStats, error) {
	start := p.now()
	stats := &PollStats{Checkpoint: p.tracker.Current()}

	resp, err := p.source.Fetch(ctx, p.listingURL)
	if err != nil {
		return stats, fmt.Errorf("fetch listing: %w", err)
	}

	p.logger.Info("Listing fetched", "url", resp.URL, "bytes", len(resp.Body))

	base, err := url.Parse(resp.URL)
	if err != nil || resp.URL == "" {
		base, _ = url.Parse(p.listingURL)
	}

	rows, err := p.scraper.ParseListing(string(resp.Body), base)
	if err != nil {
		return stats, fmt.Errorf("parse listing: %w", err)
	}

	page, filterStats := p.filter.Apply(rows)
	stats.Rows = len(rows)
	stats.Malformed = filterStats.Malformed
	stats.Pinned = filterStats.Pinned

	res := p.tracker.Scan(page)
	stats.New = len(res.New)
	stats.FirstRun = res.FirstRun
	stats.Overflow = res.Overflow()

	if res.Overflow() {
		p.logger.Warn("Checkpoint not found on page, older new posts may be missed",
			"checkpoint", res.Prev.String(),
			"page_rows", len(page),
		)
	}

	inserted, err := p.archive(ctx, res.New)
	if err != nil {
		return stats, err
	}
	stats.Inserted = inserted

	if !p.tracker.Commit(res) {
		return stats, fmt.Errorf("checkpoint moved during poll: expected %s, have %s", res.Prev, p.tracker.Current())
	}
	stats.Checkpoint = p.tracker.Current()

	if res.FirstRun {
		p.logger.Info("Initial checkpoint set", "checkpoint", res.Next.String())
	}

	// Ошибка вывода не отменяет уже принятую точку
	if err := p.renderer.Render(res.New); err != nil {
		p.logger.Warn("Failed to render new posts", "error", err.Error())
	}

	stats.Duration = p.now().Sub(start)

	p.logger.Info("Poll completed",
		"rows", stats.Rows,
		"malformed", stats.Malformed,
		"pinned", stats.Pinned,
		"new", stats.New,
		"inserted", stats.Inserted,
		"first_run", stats.FirstRun,
		"overflow", stats.Overflow,
		"checkpoint", stats.Checkpoint.String(),
		"duration", stats.Duration.String(),
	)

	return stats, nil
}

func (p *Poller) archive(ctx context.Context, rows []listing.Row) (int, error) {
	if p.repo == nil || len(rows) == 0 {
		return 0, nil
	}

	discoveredAt := p.now()
	inserted := 0
	for _, row := range rows {
		record := storage.NewPostRecord(row, p.section.Key(), p.checksum.GenerateRowHash(row), discoveredAt)
		isNew, err := p.repo.SavePost(ctx, record)
		if err != nil {
			return inserted, fmt.Errorf("archive post %s: %w", row.ID(), err)
		}
		if isNew {
			inserted++
		} else {
			p.logger.Debug("Post already archived", "url", row.ID())
		}
	}

	return inserted, nil
}

// Run опрашивает раздел до отмены ctx. Новые темы появляются начиная со
// второго опроса: первый только ставит точку.
func (p *Poller) Run(ctx context.Context) error {
	interval := p.cfg.GetPollInterval()

	p.logger.Info("Starting poller",
		"url", p.listingURL,
		"interval", interval.String(),
	)

	for {
		_, err := p.PollOnce(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			p.logger.Error("Poll failed", "error", err.Error(), "checkpoint", p.tracker.Current().String())
			if p.cfg.Poll.ExitOnError {
				return err
			}
		}

		timer := time.NewTimer(interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			p.logger.Info("Poller stopped", "checkpoint", p.tracker.Current().String())
			return nil
		case <-timer.C:
		}
	}
}
