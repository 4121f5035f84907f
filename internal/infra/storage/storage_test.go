package storage

import (
	"context"
	"io"
	"io/fs"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMemoryStorageRoundTrip(t *testing.T) {
	s := NewMemoryStorage()
	ctx := context.Background()
	obj, err := s.Put(ctx, "sessions/1/a.txt", []byte("hello"), "text/plain")
	require.NoError(t, err)
	require.Equal(t, int64(5), obj.Size)
	require.Equal(t, "5d41402abc4b2a76b9719d911017c592", obj.ETag)

	rc, err := s.Get(ctx, "sessions/1/a.txt")
	require.NoError(t, err)
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.Equal(t, "hello", string(data))

	_, err = s.Get(ctx, "missing")
	require.ErrorIs(t, err, fs.ErrNotExist)
}

func TestMemoryStorageDeletePrefix(t *testing.T) {
	s := NewMemoryStorage()
	ctx := context.Background()
	for _, key := range []string{"sessions/1/a", "sessions/1/b", "sessions/2/a"} {
		_, err := s.Put(ctx, key, []byte("x"), "text/plain")
		require.NoError(t, err)
	}
	require.NoError(t, s.DeletePrefix(ctx, "sessions/1/"))
	require.Equal(t, 1, s.Len())
	require.NoError(t, s.Delete(ctx, "sessions/2/a"))
	require.Zero(t, s.Len())
}

func TestSanitizeEndpoint(t *testing.T) {
	tests := map[string]string{
		"https://acct.r2.cloudflarestorage.com/bucket": "acct.r2.cloudflarestorage.com",
		"http://localhost:9000":                        "localhost:9000",
		"  minio:9000 ":                                "minio:9000",
		"":                                             "",
	}
	for in, want := range tests {
		require.Equal(t, want, sanitizeEndpoint(in), in)
	}
}

func TestNewR2StorageRequiresEndpoint(t *testing.T) {
	_, err := NewR2Storage("", "k", "s", "b", "auto", nil)
	require.Error(t, err)

	s, err := NewR2Storage("http://localhost:9000", "k", "s", "b", "auto", nil)
	require.NoError(t, err)
	require.NotNil(t, s)
}
