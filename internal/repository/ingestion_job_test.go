//go:build integration

package repository

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/cloo-solutions/docqa/internal/domain"
	"github.com/cloo-solutions/docqa/internal/testutil"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIngestionJobRepository_Lifecycle(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc)
	defer pool.Close()

	docs := NewDocumentRepository(pool)
	jobs := NewIngestionJobRepository(pool)
	doc := newTestDocument(t, ctx, docs, time.Now())

	job := domain.NewIngestionJob(uuid.NewString(), doc.ID, time.Now().UTC().Truncate(time.Microsecond))
	require.NoError(t, jobs.Create(ctx, job))

	active, err := jobs.HasActiveJob(ctx, doc.ID)
	require.NoError(t, err)
	assert.True(t, active)

	second := domain.NewIngestionJob(uuid.NewString(), doc.ID, time.Now().UTC())
	assert.ErrorIs(t, jobs.Create(ctx, second), domain.ErrDocumentBusy)

	claimed, err := jobs.ClaimPending(ctx, 10)
	require.NoError(t, err)
	require.Len(t, claimed, 1)
	assert.Equal(t, job.ID, claimed[0].ID)
	assert.Equal(t, domain.IngestionJobStatusProcessing, claimed[0].Status)

	require.NoError(t, jobs.IncrementRetries(ctx, job.ID))
	require.NoError(t, jobs.UpdateStatus(ctx, job.ID, domain.IngestionJobStatusFailed, "embedding failed"))

	got, err := jobs.GetByID(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.IngestionJobStatusFailed, got.Status)
	assert.Equal(t, int32(1), got.Retries)
	assert.Equal(t, "embedding failed", got.Error)
	assert.NotNil(t, got.ProcessedAt)

	active, err = jobs.HasActiveJob(ctx, doc.ID)
	require.NoError(t, err)
	assert.False(t, active)

	require.NoError(t, jobs.Create(ctx, second))
	latest, err := jobs.LatestForDocument(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, second.ID, latest.ID)

	_, err = jobs.GetByID(ctx, uuid.NewString())
	assert.ErrorIs(t, err, ErrIngestionJobNotFound)
	assert.ErrorIs(t, jobs.UpdateStatus(ctx, uuid.NewString(), domain.IngestionJobStatusCompleted, ""), ErrIngestionJobNotFound)
}

func TestIngestionJobRepository_ClaimPendingIsExclusive(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc)
	defer pool.Close()

	docs := NewDocumentRepository(pool)
	jobs := NewIngestionJobRepository(pool)

	const total = 12
	for i := 0; i < total; i++ {
		doc := newTestDocument(t, ctx, docs, time.Now())
		require.NoError(t, jobs.Create(ctx, domain.NewIngestionJob(uuid.NewString(), doc.ID, time.Now().UTC())))
	}

	var mu sync.Mutex
	seen := map[string]int{}
	var wg sync.WaitGroup
	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				claimed, err := jobs.ClaimPending(ctx, 2)
				if !assert.NoError(t, err) || len(claimed) == 0 {
					return
				}
				mu.Lock()
				for _, j := range claimed {
					seen[j.ID]++
				}
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Len(t, seen, total)
	for id, n := range seen {
		assert.Equal(t, 1, n, "job %s claimed more than once", id)
	}

	requeued, err := jobs.RequeueStale(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(total), requeued)
}
