package gcs

import (
	"context"
	"testing"

	"cloud.google.com/go/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"
)

func TestNewValidation(t *testing.T) {
	t.Parallel()

	_, err := New(nil, Config{Bucket: "b"})
	assert.Error(t, err)

	client, err := storage.NewClient(context.Background(), option.WithoutAuthentication())
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	_, err = New(client, Config{})
	assert.Error(t, err)

	store, err := New(client, Config{Bucket: "b", Prefix: "/docs/"})
	require.NoError(t, err)
	assert.Equal(t, "docs/example-com.txt", store.ObjectName("example-com.txt"))

	_, err = store.PutObject(context.Background(), " ", "text/plain", nil)
	assert.Error(t, err)
}

func TestObjectNameWithoutPrefix(t *testing.T) {
	t.Parallel()

	store := &BlobStore{bucket: "b"}
	assert.Equal(t, "example-com.txt", store.ObjectName("example-com.txt"))
}
