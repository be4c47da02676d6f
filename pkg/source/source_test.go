package source

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRouter_File(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "grants.csv")
	require.NoError(t, os.WriteFile(path, []byte("email,expiry\n"), 0o600))

	r := NewDefaultRouter(Options{})
	ctx := context.Background()

	data, err := r.Fetch(ctx, path)
	require.NoError(t, err)
	assert.Equal(t, "email,expiry\n", string(data))

	data, err = r.Fetch(ctx, "file://"+path)
	require.NoError(t, err)
	assert.Equal(t, "email,expiry\n", string(data))

	_, err = r.Fetch(ctx, filepath.Join(dir, "missing.csv"))
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRouter_HTTP(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/sheet.csv":
			_, _ = w.Write([]byte("email,expiry\na@example.com,01-01-2030\n"))
		case "/big":
			_, _ = w.Write([]byte(strings.Repeat("x", MaxBytes+1)))
		case "/boom":
			w.WriteHeader(http.StatusInternalServerError)
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	r := NewDefaultRouter(Options{})
	ctx := context.Background()

	data, err := r.Fetch(ctx, srv.URL+"/sheet.csv")
	require.NoError(t, err)
	assert.Contains(t, string(data), "a@example.com")

	_, err = r.Fetch(ctx, srv.URL+"/nope")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = r.Fetch(ctx, srv.URL+"/big")
	assert.ErrorIs(t, err, ErrTooLarge)

	_, err = r.Fetch(ctx, srv.URL+"/boom")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 500")
}

func TestRouter_UnsupportedScheme(t *testing.T) {
	r := NewDefaultRouter(Options{})
	_, err := r.Fetch(context.Background(), "ftp://example.com/grants.csv")
	assert.ErrorIs(t, err, ErrUnsupportedScheme)

	// azblob is only served when a connection string is configured.
	_, err = r.Fetch(context.Background(), "azblob://container/grants.csv")
	assert.ErrorIs(t, err, ErrUnsupportedScheme)
}

func TestRouter_FactoryBuiltOnce(t *testing.T) {
	r := NewRouter()
	builds := 0
	r.RegisterFactory("mem", func(context.Context) (Fetcher, error) {
		builds++
		return FetcherFunc(func(_ context.Context, uri string) ([]byte, error) {
			return []byte(uri), nil
		}), nil
	})

	for i := 0; i < 3; i++ {
		data, err := r.Fetch(context.Background(), "mem://a/b")
		require.NoError(t, err)
		assert.Equal(t, "mem://a/b", string(data))
	}
	assert.Equal(t, 1, builds)
}

func TestRouter_FactoryError(t *testing.T) {
	r := NewRouter()
	boom := errors.New("no credentials")
	r.RegisterFactory("mem", func(context.Context) (Fetcher, error) { return nil, boom })

	_, err := r.Fetch(context.Background(), "mem://a/b")
	assert.ErrorIs(t, err, boom)
}

func TestBucketKey(t *testing.T) {
	bucket, key, err := bucketKey("s3://registry/access/grants.csv")
	require.NoError(t, err)
	assert.Equal(t, "registry", bucket)
	assert.Equal(t, "access/grants.csv", key)

	for _, bad := range []string{"s3://registry", "s3:///grants.csv", "s3://registry/../etc"} {
		_, _, err := bucketKey(bad)
		assert.ErrorIs(t, err, ErrInvalidURI, bad)
	}
}

func TestS3Fetcher_PathStyleEndpoint(t *testing.T) {
	t.Setenv("AWS_ACCESS_KEY_ID", "test")
	t.Setenv("AWS_SECRET_ACCESS_KEY", "test")
	t.Setenv("AWS_EC2_METADATA_DISABLED", "true")

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet && r.URL.Path == "/registry/grants.csv" {
			_, _ = w.Write([]byte("email,expiry\n"))
			return
		}
		http.NotFound(w, r)
	}))
	defer srv.Close()

	f, err := NewS3Fetcher(context.Background(), S3Config{Region: "us-east-1", Endpoint: srv.URL})
	require.NoError(t, err)

	data, err := f.Fetch(context.Background(), "s3://registry/grants.csv")
	require.NoError(t, err)
	assert.Equal(t, "email,expiry\n", string(data))
}
