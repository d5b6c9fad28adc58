package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"productreel/internal/adapter/memstore"
	"productreel/internal/domain"
	"productreel/internal/events"
	"productreel/internal/providers/scrape"
)

type fakeScraper struct {
	result  *scrape.Result
	err     error
	panics  bool
	release chan struct{}
	calls   int
}

func (f *fakeScraper) ScrapeProducts(ctx context.Context, url string) (*scrape.Result, error) {
	f.calls++
	if f.release != nil {
		<-f.release
	}
	if f.panics {
		panic("scraper exploded")
	}
	return f.result, f.err
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []events.Event
}

func (r *recordingNotifier) Notify(_ context.Context, ev events.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recordingNotifier) statuses() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.events))
	for _, ev := range r.events {
		out = append(out, ev.Status)
	}
	return out
}

type memArchive struct {
	mu   sync.Mutex
	keys []string
}

func (m *memArchive) Write(_ context.Context, key string, _ []byte) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.keys = append(m.keys, key)
	return key, nil
}

func newPipeline(t *testing.T, scraper scrape.Scraper) (*Pipeline, *memstore.Store, *recordingNotifier, *memArchive) {
	t.Helper()
	store := memstore.New()
	notifier := &recordingNotifier{}
	archive := &memArchive{}
	p := New(Options{
		Domains:  store.Domains(),
		Products: store.Products(),
		Scraper:  scraper,
		Archive:  archive,
		Notifier: notifier,
		Logger:   zerolog.Nop(),
	})
	return p, store, notifier, archive
}

func rawResult(products ...scrape.RawProduct) *scrape.Result {
	raw, _ := json.Marshal(map[string]any{"products": products})
	return &scrape.Result{Products: products, RequestID: "req-1", Status: "completed", Raw: raw}
}

func TestSubmitReturnsPendingBeforeRunCompletes(t *testing.T) {
	scraper := &fakeScraper{result: rawResult(), release: make(chan struct{})}
	p, store, _, _ := newPipeline(t, scraper)

	d, err := p.Submit(context.Background(), " https://shop.example ")
	require.NoError(t, err)
	assert.Equal(t, domain.DomainStatusPending, d.Status)
	assert.Equal(t, "https://shop.example", d.URL)

	close(scraper.release)
	p.Wait()

	got, err := store.Domains().GetByID(context.Background(), d.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.DomainStatusComplete, got.Status)
}

func TestSubmitRejectsInvalidURL(t *testing.T) {
	p, _, _, _ := newPipeline(t, &fakeScraper{})
	for _, raw := range []string{"", "ftp://shop.example", "shop.example", "https://"} {
		_, err := p.Submit(context.Background(), raw)
		assert.ErrorIs(t, err, domain.ErrInvalidInput, raw)
	}
}

func TestRunDropsInvalidRecords(t *testing.T) {
	scraper := &fakeScraper{result: rawResult(
		scrape.RawProduct{"title": "Mug", "url": "https://shop.example/mug", "image": []any{"https://img.example/mug.jpg"}},
		scrape.RawProduct{"title": "Cap", "url": "https://shop.example/cap", "image": []any{}},
	)}
	p, store, notifier, archive := newPipeline(t, scraper)
	ctx := context.Background()

	d, err := p.Submit(ctx, "https://shop.example")
	require.NoError(t, err)
	p.Wait()

	got, err := store.Domains().GetByID(ctx, d.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.DomainStatusComplete, got.Status)

	products, err := store.Products().ListByDomain(ctx, d.ID)
	require.NoError(t, err)
	require.Len(t, products, 1)
	assert.Equal(t, "Mug", products[0].Title)
	assert.Equal(t, "Mug", products[0].Description)
	assert.Equal(t, domain.VideoStatusUnavailable, products[0].VideoStatus)
	assert.Equal(t, domain.PublishStatusNotPublished, products[0].PublishStatus)

	assert.Equal(t, []string{"pending", "processing", "generating", "complete"}, notifier.statuses())
	assert.Len(t, archive.keys, 1)
}

func TestRunWithNoValidProductsCompletes(t *testing.T) {
	p, store, _, _ := newPipeline(t, &fakeScraper{result: rawResult()})
	ctx := context.Background()
	d, err := store.Domains().Create(ctx, "https://shop.example")
	require.NoError(t, err)

	assert.Equal(t, domain.DomainStatusComplete, p.Run(ctx, d))
	products, err := store.Products().ListByDomain(ctx, d.ID)
	require.NoError(t, err)
	assert.Empty(t, products)
}

func TestRunScrapeFailureMarksError(t *testing.T) {
	scraper := &fakeScraper{err: domain.NewProviderError("scrapegraph", "site unreachable", nil)}
	p, store, notifier, archive := newPipeline(t, scraper)
	ctx := context.Background()
	d, err := store.Domains().Create(ctx, "https://shop.example")
	require.NoError(t, err)

	assert.Equal(t, domain.DomainStatusError, p.Run(ctx, d))
	products, err := store.Products().ListByDomain(ctx, d.ID)
	require.NoError(t, err)
	assert.Empty(t, products)
	assert.Equal(t, []string{"processing", "error"}, notifier.statuses())
	assert.Empty(t, archive.keys)
}

func TestRunRecoversPanic(t *testing.T) {
	p, store, _, _ := newPipeline(t, &fakeScraper{panics: true})
	ctx := context.Background()
	d, err := p.Submit(ctx, "https://shop.example")
	require.NoError(t, err)
	p.Wait()

	got, err := store.Domains().GetByID(ctx, d.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.DomainStatusError, got.Status)
}

type failingProducts struct {
	domain.ProductRepository
}

func (failingProducts) InsertMany(context.Context, int64, []domain.NewProduct) ([]domain.Product, error) {
	return nil, errors.New("disk full")
}

func TestRunInsertFailureMarksError(t *testing.T) {
	store := memstore.New()
	scraper := &fakeScraper{result: rawResult(
		scrape.RawProduct{"title": "Mug", "url": "https://shop.example/mug", "image": []any{"https://img.example/mug.jpg"}},
	)}
	p := New(Options{
		Domains:  store.Domains(),
		Products: failingProducts{store.Products()},
		Scraper:  scraper,
		Logger:   zerolog.Nop(),
	})
	ctx := context.Background()
	d, err := store.Domains().Create(ctx, "https://shop.example")
	require.NoError(t, err)

	assert.Equal(t, domain.DomainStatusError, p.Run(ctx, d))
}

func TestResubmit(t *testing.T) {
	scraper := &fakeScraper{err: errors.New("boom")}
	p, store, _, _ := newPipeline(t, scraper)
	ctx := context.Background()
	d, err := store.Domains().Create(ctx, "https://shop.example")
	require.NoError(t, err)
	require.Equal(t, domain.DomainStatusError, p.Run(ctx, d))

	scraper.err = nil
	scraper.result = rawResult(
		scrape.RawProduct{"title": "Mug", "url": "https://shop.example/mug", "image": []any{"https://img.example/mug.jpg"}},
	)
	final, err := p.Resubmit(ctx, d.ID, time.Hour)
	require.NoError(t, err)
	assert.Equal(t, domain.DomainStatusComplete, final)

	_, err = p.Resubmit(ctx, d.ID, 0)
	assert.ErrorIs(t, err, domain.ErrConflict)

	_, err = p.Resubmit(ctx, 999, 0)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func seedGenerating(t *testing.T, store *memstore.Store) *domain.Domain {
	t.Helper()
	ctx := context.Background()
	d, err := store.Domains().Create(ctx, "https://shop.example")
	require.NoError(t, err)
	_, err = store.Domains().TransitionStatus(ctx, d.ID, domain.DomainStatusPending, domain.DomainStatusProcessing)
	require.NoError(t, err)
	d, err = store.Domains().TransitionStatus(ctx, d.ID, domain.DomainStatusProcessing, domain.DomainStatusGenerating)
	require.NoError(t, err)
	_, err = store.Products().InsertMany(ctx, d.ID, []domain.NewProduct{
		{Title: "Mug", Description: "Mug", URL: "https://shop.example/mug", Images: []string{"https://img.example/mug.jpg"}},
	})
	require.NoError(t, err)
	return d
}

func TestResubmitRefusesRecentlyActiveDomain(t *testing.T) {
	p, store, _, _ := newPipeline(t, &fakeScraper{result: rawResult()})
	ctx := context.Background()
	d := seedGenerating(t, store)

	_, err := p.Resubmit(ctx, d.ID, 15*time.Minute)
	assert.ErrorIs(t, err, domain.ErrConflict)

	got, err := store.Domains().GetByID(ctx, d.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.DomainStatusGenerating, got.Status)
	products, err := store.Products().ListByDomain(ctx, d.ID)
	require.NoError(t, err)
	assert.Len(t, products, 1)
}

// advancingDomains lets the live run move the domain right after Resubmit
// has read it.
type advancingDomains struct {
	domain.DomainRepository
	afterRead func()
}

func (a advancingDomains) GetByID(ctx context.Context, id int64) (*domain.Domain, error) {
	d, err := a.DomainRepository.GetByID(ctx, id)
	if a.afterRead != nil {
		a.afterRead()
	}
	return d, err
}

func TestResubmitKeepsProductsWhenRunAdvances(t *testing.T) {
	store := memstore.New()
	ctx := context.Background()
	d := seedGenerating(t, store)
	scraper := &fakeScraper{result: rawResult()}
	p := New(Options{
		Domains: advancingDomains{DomainRepository: store.Domains(), afterRead: func() {
			_, err := store.Domains().TransitionStatus(ctx, d.ID, domain.DomainStatusGenerating, domain.DomainStatusComplete)
			require.NoError(t, err)
		}},
		Products: store.Products(),
		Scraper:  scraper,
		Logger:   zerolog.Nop(),
	})
	p.now = func() time.Time { return time.Now().Add(time.Hour) }

	_, err := p.Resubmit(ctx, d.ID, 15*time.Minute)
	assert.ErrorIs(t, err, domain.ErrConflict)

	got, err := store.Domains().GetByID(ctx, d.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.DomainStatusComplete, got.Status)
	products, err := store.Products().ListByDomain(ctx, d.ID)
	require.NoError(t, err)
	assert.Len(t, products, 1, "a rejected reset must not drop products")
	assert.Zero(t, scraper.calls)
}

func TestResubmitRecoversStaleDomains(t *testing.T) {
	scraper := &fakeScraper{result: rawResult(
		scrape.RawProduct{"title": "Cap", "url": "https://shop.example/cap", "image": []any{"https://img.example/cap.jpg"}},
	)}
	p, store, _, _ := newPipeline(t, scraper)
	p.now = func() time.Time { return time.Now().Add(time.Hour) }
	ctx := context.Background()

	stuck := seedGenerating(t, store)
	final, err := p.Resubmit(ctx, stuck.ID, 15*time.Minute)
	require.NoError(t, err)
	assert.Equal(t, domain.DomainStatusComplete, final)
	products, err := store.Products().ListByDomain(ctx, stuck.ID)
	require.NoError(t, err)
	require.Len(t, products, 1)
	assert.Equal(t, "Cap", products[0].Title)

	orphan, err := store.Domains().Create(ctx, "https://orphan.example")
	require.NoError(t, err)
	final, err = p.Resubmit(ctx, orphan.ID, 15*time.Minute)
	require.NoError(t, err)
	assert.Equal(t, domain.DomainStatusComplete, final)
}
