package app

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"forum-watch/internal/checkpoint"
	"forum-watch/internal/config"
	"forum-watch/internal/fetcher"
	"forum-watch/internal/forum"
	"forum-watch/internal/listing"
	"forum-watch/internal/normalize"
	"forum-watch/internal/observability"
	"forum-watch/internal/scraper"
	"forum-watch/internal/storage"
	"forum-watch/internal/storage/mssql"
)

const testBase = "https://www.p9.com.tw/Forum/ForumSection.aspx"

var testSelectors = &config.Selectors{
	TableBody: "table#list > tbody",
	Row:       "tr",
	Cell:      "td",
	Link:      "td a",
	SkipRows:  1,
}

type topic struct {
	id     int
	title  string
	broken bool
}

// listingHTML страница раздела; первая строка таблицы заголовок
func listingHTML(topics ...topic) string {
	var b strings.Builder
	b.WriteString(`<html><body><table id="list"><tbody><tr><td>時間</td><td>標題</td></tr>`)
	for _, tp := range topics {
		if tp.broken {
			fmt.Fprintf(&b, `<tr><td colspan="8">%s</td></tr>`, tp.title)
			continue
		}
		fmt.Fprintf(&b,
			`<tr><td>2025/1/2 10:00</td><td>%s</td><td>alice</td><td>3</td><td>40</td><td><a href="ForumDetail.aspx?Id=%d">%s</a></td></tr>`,
			tp.title, tp.id, tp.title)
	}
	b.WriteString(`</tbody></table></body></html>`)
	return b.String()
}

func topicURL(id int) string {
	return fmt.Sprintf("https://www.p9.com.tw/Forum/ForumDetail.aspx?Id=%d", id)
}

type fakeSource struct {
	pages []string
	errs  []error
	calls int
	urls  []string
}

func (f *fakeSource) Fetch(_ context.Context, u string) (*fetcher.FetchResponse, error) {
	i := f.calls
	f.calls++
	f.urls = append(f.urls, u)
	if i < len(f.errs) && f.errs[i] != nil {
		return nil, f.errs[i]
	}
	body := f.pages[len(f.pages)-1]
	if i < len(f.pages) {
		body = f.pages[i]
	}
	return &fetcher.FetchResponse{StatusCode: 200, Body: []byte(body), URL: u}, nil
}

type recordingRenderer struct {
	batches [][]string
	err     error
}

func (r *recordingRenderer) Render(rows []listing.Row) error {
	ids := make([]string, len(rows))
	for i, row := range rows {
		ids[i] = row.ID()
	}
	r.batches = append(r.batches, ids)
	return r.err
}

type fakeRepo struct {
	saved []*storage.PostRecord
	seen  map[string]bool
	err   error
}

func (f *fakeRepo) SavePost(_ context.Context, post *storage.PostRecord) (bool, error) {
	if f.err != nil {
		return false, f.err
	}
	if f.seen == nil {
		f.seen = map[string]bool{}
	}
	f.saved = append(f.saved, post)
	isNew := !f.seen[post.URL]
	f.seen[post.URL] = true
	return isNew, nil
}

func (f *fakeRepo) Close() error { return nil }

func newTestPoller(t *testing.T, src Source, rnd Renderer, repo storage.Repository, logger *observability.Logger) *Poller {
	t.Helper()
	cfg := config.Default()
	cfg.Listing.BaseURL = testBase
	s := scraper.NewScraper(testSelectors, normalize.NewNormalizer(cfg.Normalize), listing.DefaultPinTag)

	if logger == nil {
		logger = observability.NewNopLogger()
	}
	p, err := NewPoller(cfg, logger, src, s, rnd, repo, forum.Whisky, forum.PostTime)
	require.NoError(t, err)
	return p
}

func TestPollerSequence(t *testing.T) {
	src := &fakeSource{pages: []string{
		listingHTML(topic{id: 1, title: "【頂】版規"}, topic{id: 100, title: "a"}, topic{id: 99, title: "b"}),
		listingHTML(topic{id: 1, title: "【頂】版規"}, topic{id: 102, title: "d"}, topic{id: 101, title: "c"}, topic{id: 100, title: "a"}),
		listingHTML(topic{id: 1, title: "【頂】版規"}, topic{id: 102, title: "d"}, topic{id: 101, title: "c"}),
	}}
	rnd := &recordingRenderer{}
	p := newTestPoller(t, src, rnd, nil, nil)

	assert.Equal(t, testBase+"?Id=1&Sort=Post_Time", p.ListingURL())

	stats, err := p.PollOnce(context.Background())
	require.NoError(t, err)
	assert.True(t, stats.FirstRun)
	assert.Equal(t, 0, stats.New)
	assert.Equal(t, 1, stats.Pinned)
	assert.Equal(t, checkpoint.Checkpoint(topicURL(100)), p.Checkpoint())

	stats, err = p.PollOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, stats.New)
	assert.False(t, stats.Overflow)
	assert.Equal(t, checkpoint.Checkpoint(topicURL(102)), p.Checkpoint())

	stats, err = p.PollOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, stats.New)
	assert.Equal(t, checkpoint.Checkpoint(topicURL(102)), p.Checkpoint())

	want := [][]string{{}, {topicURL(102), topicURL(101)}, {}}
	if diff := cmp.Diff(want, rnd.batches); diff != "" {
		t.Errorf("rendered batches mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, []string{p.ListingURL(), p.ListingURL(), p.ListingURL()}, src.urls)
}

func TestPollerDropsMalformedRows(t *testing.T) {
	src := &fakeSource{pages: []string{
		listingHTML(topic{id: 10, title: "x"}),
		listingHTML(topic{title: "廣告", broken: true}, topic{id: 11, title: "y"}, topic{id: 10, title: "x"}),
	}}
	rnd := &recordingRenderer{}
	p := newTestPoller(t, src, rnd, nil, nil)

	_, err := p.PollOnce(context.Background())
	require.NoError(t, err)

	stats, err := p.PollOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Malformed)
	assert.Equal(t, 1, stats.New)
	assert.Equal(t, []string{topicURL(11)}, rnd.batches[1])
}

func TestPollerFetchErrorKeepsCheckpoint(t *testing.T) {
	src := &fakeSource{
		pages: []string{
			listingHTML(topic{id: 5, title: "a"}),
			"",
			listingHTML(topic{id: 6, title: "b"}, topic{id: 5, title: "a"}),
		},
		errs: []error{nil, errors.New("connection reset")},
	}
	rnd := &recordingRenderer{}
	p := newTestPoller(t, src, rnd, nil, nil)

	_, err := p.PollOnce(context.Background())
	require.NoError(t, err)

	_, err = p.PollOnce(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection reset")
	assert.Equal(t, checkpoint.Checkpoint(topicURL(5)), p.Checkpoint())

	stats, err := p.PollOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, stats.New)
	assert.Len(t, rnd.batches, 2)
}

func TestPollerParseErrorKeepsCheckpoint(t *testing.T) {
	src := &fakeSource{pages: []string{
		listingHTML(topic{id: 5, title: "a"}),
		"<html><body>maintenance</body></html>",
	}}
	p := newTestPoller(t, src, &recordingRenderer{}, nil, nil)

	_, err := p.PollOnce(context.Background())
	require.NoError(t, err)

	_, err = p.PollOnce(context.Background())
	require.ErrorIs(t, err, scraper.ErrListingNotFound)
	assert.Equal(t, checkpoint.Checkpoint(topicURL(5)), p.Checkpoint())
}

func TestPollerArchiveErrorKeepsCheckpoint(t *testing.T) {
	src := &fakeSource{pages: []string{
		listingHTML(topic{id: 5, title: "a"}),
		listingHTML(topic{id: 6, title: "b"}, topic{id: 5, title: "a"}),
	}}
	repo := &fakeRepo{}
	rnd := &recordingRenderer{}
	p := newTestPoller(t, src, rnd, repo, nil)

	_, err := p.PollOnce(context.Background())
	require.NoError(t, err)

	repo.err = errors.New("deadlock victim")
	_, err = p.PollOnce(context.Background())
	require.Error(t, err)
	assert.Equal(t, checkpoint.Checkpoint(topicURL(5)), p.Checkpoint())
	assert.Len(t, rnd.batches, 1)

	repo.err = nil
	stats, err := p.PollOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Inserted)
	require.Len(t, repo.saved, 1)
	assert.Equal(t, topicURL(6), repo.saved[0].URL)
	assert.Equal(t, "whisky", repo.saved[0].Section)
	assert.Equal(t, 3, repo.saved[0].ReplyCount)
	assert.Len(t, repo.saved[0].CheckSum, 64)
}

func TestPollerRenderErrorStillCommits(t *testing.T) {
	src := &fakeSource{pages: []string{
		listingHTML(topic{id: 5, title: "a"}),
		listingHTML(topic{id: 6, title: "b"}, topic{id: 5, title: "a"}),
	}}
	rnd := &recordingRenderer{err: errors.New("broken pipe")}
	p := newTestPoller(t, src, rnd, nil, nil)

	_, err := p.PollOnce(context.Background())
	require.NoError(t, err)
	_, err = p.PollOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, checkpoint.Checkpoint(topicURL(6)), p.Checkpoint())
}

func TestPollerWarnsOnOverflow(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	logger := observability.NewLoggerFromZap(zap.New(core))

	src := &fakeSource{pages: []string{
		listingHTML(topic{id: 5, title: "a"}),
		listingHTML(topic{id: 9, title: "d"}, topic{id: 8, title: "c"}),
	}}
	p := newTestPoller(t, src, &recordingRenderer{}, nil, logger)

	_, err := p.PollOnce(context.Background())
	require.NoError(t, err)

	stats, err := p.PollOnce(context.Background())
	require.NoError(t, err)
	assert.True(t, stats.Overflow)
	assert.Equal(t, 2, stats.New)
	assert.Equal(t, checkpoint.Checkpoint(topicURL(9)), p.Checkpoint())

	warnings := logs.FilterMessageSnippet("Checkpoint not found").All()
	require.Len(t, warnings, 1)
	assert.Equal(t, topicURL(5), warnings[0].ContextMap()["checkpoint"])
}

func TestPollerArchivesThroughMSSQL(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := mssql.NewRepositoryFromDB(db, time.Second, observability.NewNopLogger())

	src := &fakeSource{pages: []string{
		listingHTML(topic{id: 5, title: "a"}),
		listingHTML(topic{id: 6, title: "b"}, topic{id: 5, title: "a"}),
	}}
	p := newTestPoller(t, src, &recordingRenderer{}, repo, nil)

	mock.ExpectPrepare(regexp.QuoteMeta("MERGE INTO TblForumPosts")).
		ExpectQuery().
		WillReturnRows(sqlmock.NewRows([]string{"action"}).AddRow("INSERT"))

	_, err = p.PollOnce(context.Background())
	require.NoError(t, err)

	stats, err := p.PollOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Inserted)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRunExitOnError(t *testing.T) {
	src := &fakeSource{
		pages: []string{""},
		errs:  []error{errors.New("timeout")},
	}
	p := newTestPoller(t, src, &recordingRenderer{}, nil, nil)
	p.cfg.Poll.ExitOnError = true

	err := p.Run(context.Background())
	require.Error(t, err)
	assert.Equal(t, 1, src.calls)
}

// cancellingSource отменяет ctx после заданного числа запросов
type cancellingSource struct {
	fakeSource
	after  int
	cancel context.CancelFunc
}

func (c *cancellingSource) Fetch(ctx context.Context, u string) (*fetcher.FetchResponse, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	resp, err := c.fakeSource.Fetch(ctx, u)
	if c.fakeSource.calls >= c.after {
		c.cancel()
	}
	return resp, err
}

func TestRunContinuesAfterErrorUntilCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	src := &cancellingSource{
		fakeSource: fakeSource{
			pages: []string{"", listingHTML(topic{id: 5, title: "a"})},
			errs:  []error{errors.New("timeout")},
		},
		after:  2,
		cancel: cancel,
	}
	p := newTestPoller(t, src, &recordingRenderer{}, nil, nil)
	p.cfg.Poll.IntervalS = 0

	require.NoError(t, p.Run(ctx))
	assert.Equal(t, 2, src.calls)
	assert.Equal(t, checkpoint.Checkpoint(topicURL(5)), p.Checkpoint())
}

func TestRunReportsPostsFromSecondPoll(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	src := &cancellingSource{
		fakeSource: fakeSource{pages: []string{
			listingHTML(topic{id: 5, title: "a"}),
			listingHTML(topic{id: 7, title: "c"}, topic{id: 6, title: "b"}, topic{id: 5, title: "a"}),
		}},
		after:  2,
		cancel: cancel,
	}
	rnd := &recordingRenderer{}
	p := newTestPoller(t, src, rnd, nil, nil)
	p.cfg.Poll.IntervalS = 0

	require.NoError(t, p.Run(ctx))

	want := [][]string{{}, {topicURL(7), topicURL(6)}}
	if diff := cmp.Diff(want, rnd.batches); diff != "" {
		t.Errorf("rendered batches mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, checkpoint.Checkpoint(topicURL(7)), p.Checkpoint())
}
