package digest

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deusflow/dailyletter/internal/metrics"
	"github.com/deusflow/dailyletter/internal/outcome"
	"github.com/deusflow/dailyletter/internal/rss"
)

var now = time.Date(2024, 5, 20, 8, 0, 0, 0, time.UTC)

func at(d time.Duration) *time.Time {
	t := now.Add(-d)
	return &t
}

type fakeFeeds struct {
	items map[string][]rss.Item
	fail  map[string]error
}

func (f *fakeFeeds) FetchFeed(_ context.Context, url string) ([]rss.Item, error) {
	if err := f.fail[url]; err != nil {
		return nil, err
	}
	return f.items[url], nil
}

type fakeReader struct {
	text map[string]string
}

func (r *fakeReader) ReadArticle(_ context.Context, link string) outcome.Result {
	if t, ok := r.text[link]; ok {
		return outcome.Success(t)
	}
	return outcome.Fail(outcome.BadStatus, errors.New("status 500"))
}

type fakeSummarizer struct {
	fail bool
}

func (s *fakeSummarizer) Summarize(_ context.Context, title, _ string, _ int) outcome.Result {
	if s.fail {
		return outcome.Fail(outcome.BadStatus, errors.New("status 503"))
	}
	return outcome.Success("总结 " + title)
}

type countingPacer struct {
	calls atomic.Int32
	err   error
}

func (p *countingPacer) Wait(context.Context) error {
	p.calls.Add(1)
	return p.err
}

func sources(names ...string) []rss.Source {
	out := make([]rss.Source, len(names))
	for i, n := range names {
		out[i] = rss.Source{Name: n, URL: "https://" + n + "/feed"}
	}
	return out
}

func titles(doc *Document) []string {
	var out []string
	for _, e := range doc.Entries {
		out = append(out, e.Title)
	}
	return out
}

func TestAssembleWindowBoundary(t *testing.T) {
	feeds := &fakeFeeds{items: map[string][]rss.Item{
		"https://a/feed": {
			{Title: "fresh", Link: "https://a/1", PublishedAt: at(time.Hour)},
			{Title: "at cutoff", Link: "https://a/2", PublishedAt: at(24 * time.Hour)},
			{Title: "too old", Link: "https://a/3", PublishedAt: at(24*time.Hour + time.Second)},
			{Title: "undated", Link: "https://a/4"},
		},
	}}
	m := metrics.New()
	doc, err := New(feeds, nil, nil, nil, Options{LookbackHours: 24}).
		WithClock(func() time.Time { return now }).
		WithMetrics(m).
		Assemble(context.Background(), sources("a"))
	require.NoError(t, err)

	assert.Equal(t, []string{"fresh", "at cutoff"}, titles(doc))
	assert.Equal(t, 2, doc.Count)
	assert.Equal(t, 24, doc.LookbackHours)
	assert.Equal(t, now, doc.GeneratedAt)
	assert.EqualValues(t, 1, m.Count(metrics.ItemUndated))
	assert.EqualValues(t, 1, m.Count(metrics.ItemOutOfWindow))
}

func TestAssembleDedupAcrossSources(t *testing.T) {
	feeds := &fakeFeeds{items: map[string][]rss.Item{
		"https://a/feed": {{Title: "Big  News", Link: "https://a/1", PublishedAt: at(time.Hour)}},
		"https://b/feed": {{Title: "<b>big news</b>", Link: "https://b/1", PublishedAt: at(time.Minute)}},
		"https://c/feed": {{Title: " BIG NEWS ", Link: "https://c/1", PublishedAt: at(time.Minute)}},
	}}
	m := metrics.New()
	doc, err := New(feeds, nil, nil, nil, Options{LookbackHours: 24, Workers: 3}).
		WithClock(func() time.Time { return now }).
		WithMetrics(m).
		Assemble(context.Background(), sources("a", "b", "c"))
	require.NoError(t, err)

	require.Len(t, doc.Entries, 1)
	assert.Equal(t, "a", doc.Entries[0].Source)
	assert.Equal(t, "Big News", doc.Entries[0].Title)
	assert.EqualValues(t, 2, m.Count(metrics.DuplicateFiltered))
}

func TestAssembleTruncatesInSourceOrder(t *testing.T) {
	feeds := &fakeFeeds{items: map[string][]rss.Item{
		"https://a/feed": {
			{Title: "a1", PublishedAt: at(time.Hour)},
			{Title: "a2", PublishedAt: at(time.Hour)},
		},
		"https://b/feed": {
			{Title: "b1", PublishedAt: at(time.Minute)},
			{Title: "b2", PublishedAt: at(time.Minute)},
		},
	}}
	doc, err := New(feeds, nil, nil, nil, Options{LookbackHours: 24, MaxEntries: 3}).
		WithClock(func() time.Time { return now }).
		Assemble(context.Background(), sources("a", "b"))
	require.NoError(t, err)

	assert.Equal(t, []string{"a1", "a2", "b1"}, titles(doc))
	assert.Equal(t, 3, doc.Count)
}

func TestAssembleIsolatesFailingSource(t *testing.T) {
	feeds := &fakeFeeds{
		items: map[string][]rss.Item{
			"https://b/feed": {{Title: "b1", PublishedAt: at(time.Hour)}},
		},
		fail: map[string]error{"https://a/feed": errors.New("status 404")},
	}
	m := metrics.New()
	doc, err := New(feeds, nil, nil, nil, Options{LookbackHours: 24}).
		WithClock(func() time.Time { return now }).
		WithMetrics(m).
		Assemble(context.Background(), sources("a", "b"))
	require.NoError(t, err)

	assert.Equal(t, []string{"b1"}, titles(doc))
	assert.EqualValues(t, 1, m.Count(metrics.SourceFailed))
	assert.EqualValues(t, 1, m.Count(metrics.SourceFetched))
}

func TestAssembleAllSourcesFailing(t *testing.T) {
	feeds := &fakeFeeds{fail: map[string]error{
		"https://a/feed": errors.New("timeout"),
		"https://b/feed": errors.New("bad xml"),
	}}
	doc, err := New(feeds, nil, nil, nil, Options{LookbackHours: 24}).
		WithClock(func() time.Time { return now }).
		Assemble(context.Background(), sources("a", "b"))
	require.NoError(t, err)
	assert.Empty(t, doc.Entries)
	assert.Equal(t, 0, doc.Count)
}

func TestAssembleSummaries(t *testing.T) {
	long := strings.Repeat("字", 150)
	feeds := &fakeFeeds{items: map[string][]rss.Item{
		"https://a/feed": {
			{Title: "readable", Link: "https://a/1", PublishedAt: at(time.Hour), RawSummary: "raw"},
			{Title: "unreadable", Link: "https://a/2", PublishedAt: at(time.Hour), RawSummary: "<p>short &amp; sweet</p>"},
			{Title: "long snippet", Link: "https://a/3", PublishedAt: at(time.Hour), RawSummary: long},
			{Title: "no snippet", Link: "https://a/4", PublishedAt: at(time.Hour)},
		},
	}}
	reader := &fakeReader{text: map[string]string{"https://a/1": "article body"}}
	pacer := &countingPacer{}

	doc, err := New(feeds, reader, &fakeSummarizer{}, pacer, Options{LookbackHours: 24}).
		WithClock(func() time.Time { return now }).
		Assemble(context.Background(), sources("a"))
	require.NoError(t, err)
	require.Len(t, doc.Entries, 4)

	assert.Equal(t, "总结 readable", doc.Entries[0].Summary)
	assert.Equal(t, "short & sweet...", doc.Entries[1].Summary)
	assert.Equal(t, strings.Repeat("字", 100)+"...", doc.Entries[2].Summary)
	assert.Equal(t, DefaultPlaceholder, doc.Entries[3].Summary)
	assert.EqualValues(t, 1, pacer.calls.Load())
}

func TestAssembleSummaryFailureFallsBack(t *testing.T) {
	feeds := &fakeFeeds{items: map[string][]rss.Item{
		"https://a/feed": {{Title: "t", Link: "https://a/1", PublishedAt: at(time.Hour), RawSummary: "snippet"}},
	}}
	reader := &fakeReader{text: map[string]string{"https://a/1": "body"}}
	m := metrics.New()

	doc, err := New(feeds, reader, &fakeSummarizer{fail: true}, nil, Options{LookbackHours: 24}).
		WithClock(func() time.Time { return now }).
		WithMetrics(m).
		Assemble(context.Background(), sources("a"))
	require.NoError(t, err)
	assert.Equal(t, "snippet...", doc.Entries[0].Summary)
	assert.EqualValues(t, 1, m.Count(metrics.SummaryFailure))
	assert.EqualValues(t, 1, m.Count(metrics.FallbackSummary))
}

func TestAssembleExhaustedBudgetFallsBack(t *testing.T) {
	feeds := &fakeFeeds{items: map[string][]rss.Item{
		"https://a/feed": {{Title: "t", Link: "https://a/1", PublishedAt: at(time.Hour), RawSummary: "snippet"}},
	}}
	reader := &fakeReader{text: map[string]string{"https://a/1": "body"}}
	pacer := &countingPacer{err: errors.New("budget exhausted")}

	doc, err := New(feeds, reader, &fakeSummarizer{}, pacer, Options{LookbackHours: 24}).
		WithClock(func() time.Time { return now }).
		Assemble(context.Background(), sources("a"))
	require.NoError(t, err)
	assert.Equal(t, "snippet...", doc.Entries[0].Summary)
}

func TestAssembleParallelMatchesSequential(t *testing.T) {
	items := map[string][]rss.Item{}
	text := map[string]string{}
	for _, src := range []string{"a", "b", "c"} {
		for i := 0; i < 6; i++ {
			link := fmt.Sprintf("https://%s/%d", src, i)
			items["https://"+src+"/feed"] = append(items["https://"+src+"/feed"], rss.Item{
				Title:       fmt.Sprintf("story %d", i%4),
				Link:        link,
				PublishedAt: at(time.Duration(i) * time.Hour),
			})
			text[link] = "body"
		}
	}
	feeds := &fakeFeeds{items: items}
	reader := &fakeReader{text: text}

	run := func(workers int) (*Document, int32) {
		pacer := &countingPacer{}
		doc, err := New(feeds, reader, &fakeSummarizer{}, pacer, Options{LookbackHours: 24, MaxEntries: 10, Workers: workers}).
			WithClock(func() time.Time { return now }).
			Assemble(context.Background(), sources("a", "b", "c"))
		require.NoError(t, err)
		return doc, pacer.calls.Load()
	}

	seq, seqCalls := run(1)
	par, parCalls := run(8)
	assert.Equal(t, seq.Entries, par.Entries)
	assert.Len(t, seq.Entries, 4)
	assert.Equal(t, seqCalls, parCalls)
}

type blockingReader struct {
	once    sync.Once
	started chan struct{}
}

func (r *blockingReader) ReadArticle(ctx context.Context, _ string) outcome.Result {
	r.once.Do(func() { close(r.started) })
	<-ctx.Done()
	return outcome.FromError(ctx.Err())
}

func TestAssembleCancelled(t *testing.T) {
	feeds := &fakeFeeds{items: map[string][]rss.Item{
		"https://a/feed": {{Title: "t", Link: "https://a/1", PublishedAt: at(time.Hour)}},
	}}
	reader := &blockingReader{started: make(chan struct{})}
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		<-reader.started
		cancel()
	}()

	doc, err := New(feeds, reader, &fakeSummarizer{}, nil, Options{LookbackHours: 24}).
		WithClock(func() time.Time { return now }).
		Assemble(ctx, sources("a"))
	assert.ErrorIs(t, err, context.Canceled)
	assert.Nil(t, doc)
}

func TestFallback(t *testing.T) {
	assert.Equal(t, "点击查看详情", Fallback("  <br/> ", 100, DefaultPlaceholder))
	assert.Equal(t, "abc...", Fallback("abc", 3, DefaultPlaceholder))
	assert.Equal(t, "ab...", Fallback("abcd", 2, DefaultPlaceholder))
	assert.Equal(t, "short snippet...", Fallback("<p>short snippet</p>", 100, DefaultPlaceholder))
}

func TestAssembleShortSnippetGetsEllipsis(t *testing.T) {
	feeds := &fakeFeeds{items: map[string][]rss.Item{
		"https://a/feed": {{Title: "t", Link: "https://a/1", PublishedAt: at(time.Hour), RawSummary: "<p>short snippet</p>"}},
	}}
	doc, err := New(feeds, nil, nil, nil, Options{LookbackHours: 24}).
		WithClock(func() time.Time { return now }).
		Assemble(context.Background(), sources("a"))
	require.NoError(t, err)
	require.Len(t, doc.Entries, 1)
	assert.Equal(t, "short snippet...", doc.Entries[0].Summary)
}
