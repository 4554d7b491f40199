//go:build integration

package storage

import (
	"context"
	"testing"

	"github.com/cloo-solutions/docqa/internal/domain"
	"github.com/cloo-solutions/docqa/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(ctx context.Context, t *testing.T) *S3Client {
	t.Helper()
	rc := testutil.NewRustFSContainer(ctx, t)
	t.Cleanup(func() { rc.Terminate(context.Background()) })

	client, err := NewS3Client(ctx, S3ClientConfig{
		Endpoint:        rc.Endpoint(),
		Region:          "us-east-1",
		AccessKeyID:     testutil.RustFSAccessKey,
		SecretAccessKey: testutil.RustFSSecretKey,
		Bucket:          "docqa-test",
		UsePathStyle:    true,
	})
	require.NoError(t, err)
	require.NoError(t, client.EnsureBucket(ctx))
	return client
}

func TestS3Client_PutGetDelete(t *testing.T) {
	ctx := context.Background()
	client := newTestClient(ctx, t)

	key := domain.DocumentStorageKey("4b8f0c1e-1111-4222-8333-944455556666")
	payload := []byte("# Runbook\n\nRestart the service.")

	require.NoError(t, client.Put(ctx, key, payload, "text/markdown"))

	got, err := client.Get(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, payload, got)

	require.NoError(t, client.Delete(ctx, key))
	_, err = client.Get(ctx, key)
	assert.ErrorIs(t, err, domain.ErrBlobNotFound)

	require.NoError(t, client.Delete(ctx, key))
}

func TestS3Client_EnsureBucketIsIdempotent(t *testing.T) {
	ctx := context.Background()
	client := newTestClient(ctx, t)

	require.NoError(t, client.EnsureBucket(ctx))
	assert.NoError(t, client.Ping(ctx))
}
