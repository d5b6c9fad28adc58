package publishjob

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"productreel/internal/adapter/memstore"
	"productreel/internal/domain"
	"productreel/internal/providers/publish"
)

type fakeProvider struct {
	mu         sync.Mutex
	authCalls  int
	authErr    error
	video      publish.PublishedVideo
	publishErr error
	requests   []publish.Request
	tokens     []string
}

func (f *fakeProvider) Authenticate(context.Context) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.authCalls++
	if f.authErr != nil {
		return "", f.authErr
	}
	return "tok-" + string(rune('0'+f.authCalls)), nil
}

func (f *fakeProvider) PublishVideo(_ context.Context, token string, req publish.Request) (*publish.PublishedVideo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tokens = append(f.tokens, token)
	f.requests = append(f.requests, req)
	if f.publishErr != nil {
		return nil, f.publishErr
	}
	v := f.video
	return &v, nil
}

func (f *fakeProvider) WatchURL(id string) string {
	return "https://www.dailymotion.com/video/" + id
}

func setup(t *testing.T, finished bool) (*Controller, *memstore.Store, *fakeProvider, int64) {
	t.Helper()
	store := memstore.New()
	ctx := context.Background()
	d, err := store.Domains().Create(ctx, "https://shop.example")
	require.NoError(t, err)
	products, err := store.Products().InsertMany(ctx, d.ID, []domain.NewProduct{
		{Title: "Mug", Description: "Blue mug", URL: "https://shop.example/mug", Images: []string{"https://img.example/mug.jpg"}},
	})
	require.NoError(t, err)
	id := products[0].ID
	if finished {
		_, err = store.Products().UpdateVideo(ctx, id, domain.VideoUpdate{
			Status: domain.Ptr(domain.VideoStatusFinish),
			URL:    domain.Ptr("https://cdn.example/v1.mp4"),
		})
		require.NoError(t, err)
	}
	provider := &fakeProvider{video: publish.PublishedVideo{ID: "x9abc", Status: "processing"}}
	c := New(Options{Products: store.Products(), Provider: provider, Logger: zerolog.Nop()})
	return c, store, provider, id
}

func TestStartPublishSucceeds(t *testing.T) {
	c, _, provider, id := setup(t, true)

	p, err := c.StartPublish(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, domain.PublishStatusPublished, p.PublishStatus)
	assert.Equal(t, "x9abc", domain.Deref(p.PublishID))
	assert.Equal(t, "https://www.dailymotion.com/video/x9abc", domain.Deref(p.PublishURL))
	assert.Equal(t, domain.VideoStatusFinish, p.VideoStatus)

	require.Len(t, provider.requests, 1)
	assert.Equal(t, publish.Request{
		VideoURL:     "https://cdn.example/v1.mp4",
		Title:        "Mug",
		Description:  "Blue mug",
		ThumbnailURL: "https://img.example/mug.jpg",
	}, provider.requests[0])

	_, err = c.StartPublish(context.Background(), id)
	assert.ErrorIs(t, err, domain.ErrConflict)
	assert.Equal(t, 1, provider.authCalls)
}

func TestStartPublishConcurrentCallsUploadOnce(t *testing.T) {
	c, store, provider, id := setup(t, true)

	var (
		wg        sync.WaitGroup
		conflicts atomic.Int32
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := c.StartPublish(context.Background(), id); errors.Is(err, domain.ErrConflict) {
				conflicts.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, provider.authCalls)
	assert.Len(t, provider.requests, 1)
	assert.EqualValues(t, 7, conflicts.Load())

	p, err := store.Products().GetByID(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, domain.PublishStatusPublished, p.PublishStatus)
}

func TestStartPublishRequiresFinishedVideo(t *testing.T) {
	c, store, provider, id := setup(t, false)
	before, err := store.Products().GetByID(context.Background(), id)
	require.NoError(t, err)

	_, err = c.StartPublish(context.Background(), id)
	assert.ErrorIs(t, err, domain.ErrPreconditionFailed)
	assert.Equal(t, 0, provider.authCalls)

	after, err := store.Products().GetByID(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, before, after, "rejected publish must not mutate the product")
}

func TestStartPublishWithoutIDMarksErrorAndAllowsRetry(t *testing.T) {
	c, store, provider, id := setup(t, true)
	provider.video = publish.PublishedVideo{Status: "processing"}

	_, err := c.StartPublish(context.Background(), id)
	require.ErrorIs(t, err, domain.ErrProviderFailure)

	p, err := store.Products().GetByID(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, domain.PublishStatusError, p.PublishStatus)
	assert.Nil(t, p.PublishID)
	assert.Nil(t, p.PublishURL)

	provider.video = publish.PublishedVideo{ID: "x9abc"}
	p, err = c.StartPublish(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, domain.PublishStatusPublished, p.PublishStatus)
	assert.Equal(t, []string{"tok-1", "tok-2"}, provider.tokens, "tokens are fetched per call")
}

func TestStartPublishAuthFailure(t *testing.T) {
	c, store, provider, id := setup(t, true)
	provider.authErr = domain.NewProviderError("dailymotion", "authentication failed: bad secret", nil)

	_, err := c.StartPublish(context.Background(), id)
	require.ErrorIs(t, err, domain.ErrProviderFailure)
	assert.Equal(t, "authentication failed: bad secret", domain.ProviderMessage(err, ""))

	p, err := store.Products().GetByID(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, domain.PublishStatusError, p.PublishStatus)
}

func TestStartPublishWrapsUnexpectedErrors(t *testing.T) {
	c, _, provider, id := setup(t, true)
	provider.publishErr = errors.New("connection reset")

	_, err := c.StartPublish(context.Background(), id)
	require.ErrorIs(t, err, domain.ErrProviderFailure)
	assert.Equal(t, genericPublishFailed, domain.ProviderMessage(err, ""))
}

func TestGetStatus(t *testing.T) {
	c, _, provider, id := setup(t, true)

	p, err := c.GetStatus(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, domain.PublishStatusNotPublished, p.PublishStatus)
	assert.Equal(t, 0, provider.authCalls)

	_, err = c.GetStatus(context.Background(), 404)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
