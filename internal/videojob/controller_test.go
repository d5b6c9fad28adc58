package videojob

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
	"productreel/internal/providers/video"
)

type fakeProvider struct {
	mu        sync.Mutex
	submits   atomic.Int32
	polls     atomic.Int32
	submitErr error
	submitted []video.SubmitRequest
	task      video.Task
	pollErr   error
}

func (f *fakeProvider) Submit(ctx context.Context, req video.SubmitRequest) (*video.Task, error) {
	f.submits.Add(1)
	f.mu.Lock()
	f.submitted = append(f.submitted, req)
	f.mu.Unlock()
	if f.submitErr != nil {
		return nil, f.submitErr
	}
	return &video.Task{ID: "task-1", Status: video.TaskSubmitted}, nil
}

func (f *fakeProvider) Poll(ctx context.Context, taskID string) (*video.Task, error) {
	f.polls.Add(1)
	if f.pollErr != nil {
		return nil, f.pollErr
	}
	task := f.task
	task.ID = taskID
	return &task, nil
}

func setup(t *testing.T, images []string) (*Controller, *memstore.Store, *fakeProvider, int64) {
	t.Helper()
	store := memstore.New()
	ctx := context.Background()
	d, err := store.Domains().Create(ctx, "https://shop.example")
	require.NoError(t, err)
	products, err := store.Products().InsertMany(ctx, d.ID, []domain.NewProduct{
		{Title: "Mug", Description: "Blue mug", URL: "https://shop.example/mug", Images: images},
	})
	require.NoError(t, err)
	provider := &fakeProvider{}
	c := New(Options{Products: store.Products(), Provider: provider, Logger: zerolog.Nop()})
	return c, store, provider, products[0].ID
}

func TestStartGenerationPersistsTask(t *testing.T) {
	c, store, provider, id := setup(t, []string{"https://img.example/mug.jpg", "https://img.example/mug-2.jpg"})

	res, err := c.StartGeneration(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, "task-1", res.TaskID)
	assert.Equal(t, video.TaskSubmitted, res.TaskStatus)
	require.Len(t, provider.submitted, 1)
	assert.Equal(t, "https://img.example/mug.jpg", provider.submitted[0].ImageURL)
	assert.Equal(t, Prompt, provider.submitted[0].Prompt)

	p, err := store.Products().GetByID(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, domain.VideoStatusProcessing, p.VideoStatus)
	assert.Equal(t, "task-1", domain.Deref(p.VideoTaskID))
}

func TestStartGenerationConcurrentCallsSubmitOnce(t *testing.T) {
	c, _, provider, id := setup(t, []string{"https://img.example/mug.jpg"})

	var (
		wg        sync.WaitGroup
		conflicts atomic.Int32
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := c.StartGeneration(context.Background(), id); errors.Is(err, domain.ErrConflict) {
				conflicts.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.EqualValues(t, 1, provider.submits.Load())
	assert.EqualValues(t, 7, conflicts.Load())
}

func TestStartGenerationWithoutImage(t *testing.T) {
	c, _, provider, id := setup(t, []string{})

	_, err := c.StartGeneration(context.Background(), id)
	assert.ErrorIs(t, err, domain.ErrPreconditionFailed)
	assert.EqualValues(t, 0, provider.submits.Load())
}

func TestStartGenerationUnknownProduct(t *testing.T) {
	c, _, _, _ := setup(t, []string{"https://img.example/mug.jpg"})
	_, err := c.StartGeneration(context.Background(), 404)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestStartGenerationProviderRejection(t *testing.T) {
	c, store, provider, id := setup(t, []string{"https://img.example/mug.jpg"})
	provider.submitErr = domain.NewProviderError("kling", "Account balance not enough", nil)

	_, err := c.StartGeneration(context.Background(), id)
	require.ErrorIs(t, err, domain.ErrProviderFailure)
	assert.Equal(t, "Account balance not enough", domain.ProviderMessage(err, ""))

	p, err := store.Products().GetByID(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, domain.VideoStatusError, p.VideoStatus)

	provider.submitErr = nil
	_, err = c.StartGeneration(context.Background(), id)
	assert.NoError(t, err, "error status must be retryable")
}

func TestStartGenerationWrapsUnexpectedErrors(t *testing.T) {
	c, _, provider, id := setup(t, []string{"https://img.example/mug.jpg"})
	provider.submitErr = errors.New("socket closed")

	_, err := c.StartGeneration(context.Background(), id)
	require.ErrorIs(t, err, domain.ErrProviderFailure)
	assert.Equal(t, genericSubmitFailure, domain.ProviderMessage(err, ""))
}

func TestStartGenerationBlockedByPublish(t *testing.T) {
	c, store, provider, id := setup(t, []string{"https://img.example/mug.jpg"})
	ctx := context.Background()
	_, err := store.Products().UpdateVideo(ctx, id, domain.VideoUpdate{
		Status: domain.Ptr(domain.VideoStatusFinish),
		URL:    domain.Ptr("https://cdn.example/v1.mp4"),
	})
	require.NoError(t, err)
	_, err = store.Products().UpdatePublish(ctx, id, domain.PublishUpdate{
		Status: domain.Ptr(domain.PublishStatusPublished),
		ID:     domain.Ptr("x9abc"),
	})
	require.NoError(t, err)

	_, err = c.StartGeneration(ctx, id)
	assert.ErrorIs(t, err, domain.ErrConflict)
	assert.EqualValues(t, 0, provider.submits.Load())
}

func TestReconcileWithoutTaskReturnsCached(t *testing.T) {
	c, _, provider, id := setup(t, []string{"https://img.example/mug.jpg"})

	res, err := c.ReconcileStatus(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, domain.VideoStatusUnavailable, res.Product.VideoStatus)
	assert.False(t, res.Stale)
	assert.EqualValues(t, 0, provider.polls.Load())
}

func TestReconcileSucceedAdoptsURLThenStopsPolling(t *testing.T) {
	c, _, provider, id := setup(t, []string{"https://img.example/mug.jpg"})
	ctx := context.Background()
	_, err := c.StartGeneration(ctx, id)
	require.NoError(t, err)

	provider.task = video.Task{Status: video.TaskSucceed, VideoURL: "https://cdn.example/v1.mp4"}
	res, err := c.ReconcileStatus(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, domain.VideoStatusFinish, res.Product.VideoStatus)
	assert.Equal(t, "https://cdn.example/v1.mp4", domain.Deref(res.Product.VideoURL))
	assert.EqualValues(t, 1, provider.polls.Load())

	res, err = c.ReconcileStatus(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, domain.VideoStatusFinish, res.Product.VideoStatus)
	assert.EqualValues(t, 1, provider.polls.Load(), "terminal status must not poll again")
}

func TestReconcileMapsStatuses(t *testing.T) {
	tests := []struct {
		provider video.TaskStatus
		want     domain.VideoStatus
	}{
		{video.TaskSubmitted, domain.VideoStatusProcessing},
		{video.TaskProcessing, domain.VideoStatusProcessing},
		{video.TaskFailed, domain.VideoStatusError},
		{video.TaskStatus("paused"), domain.VideoStatusProcessing},
	}
	for _, tt := range tests {
		t.Run(string(tt.provider), func(t *testing.T) {
			c, _, provider, id := setup(t, []string{"https://img.example/mug.jpg"})
			ctx := context.Background()
			_, err := c.StartGeneration(ctx, id)
			require.NoError(t, err)

			provider.task = video.Task{Status: tt.provider}
			res, err := c.ReconcileStatus(ctx, id)
			require.NoError(t, err)
			assert.Equal(t, tt.want, res.Product.VideoStatus)
		})
	}
}

func TestReconcilePollFailureIsNonFatal(t *testing.T) {
	c, store, provider, id := setup(t, []string{"https://img.example/mug.jpg"})
	ctx := context.Background()
	_, err := c.StartGeneration(ctx, id)
	require.NoError(t, err)
	before, err := store.Products().GetByID(ctx, id)
	require.NoError(t, err)

	provider.pollErr = domain.NewProviderError("kling", "rate limited", nil)
	res, err := c.ReconcileStatus(ctx, id)
	require.NoError(t, err)
	assert.True(t, res.Stale)
	assert.Equal(t, "rate limited", res.RefreshError)
	assert.Equal(t, domain.VideoStatusProcessing, res.Product.VideoStatus)

	after, err := store.Products().GetByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, before.UpdatedAt, after.UpdatedAt, "poll failure must not write")
}
