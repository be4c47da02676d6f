// Package source fetches small documents (access registries, advisory
// packs, config overlays) by URI from local disk, HTTP or object storage.
package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"strings"
	"sync"
)

// MaxBytes caps the size of a fetched document.
const MaxBytes = 4 << 20

var (
	ErrNotFound          = errors.New("source: document not found")
	ErrUnsupportedScheme = errors.New("source: unsupported scheme")
	ErrTooLarge          = errors.New("source: document exceeds size limit")
	ErrInvalidURI        = errors.New("source: invalid uri")
)

// Fetcher reads the document at uri.
type Fetcher interface {
	Fetch(ctx context.Context, uri string) ([]byte, error)
}

// FetcherFunc adapts a function to Fetcher.
type FetcherFunc func(ctx context.Context, uri string) ([]byte, error)

func (f FetcherFunc) Fetch(ctx context.Context, uri string) ([]byte, error) {
	return f(ctx, uri)
}

// Factory builds a Fetcher on first use of its scheme.
type Factory func(ctx context.Context) (Fetcher, error)

// Router dispatches on the URI scheme. A URI with no scheme is a local path.
type Router struct {
	mu        sync.Mutex
	fetchers  map[string]Fetcher
	factories map[string]Factory
}

func NewRouter() *Router {
	return &Router{
		fetchers:  make(map[string]Fetcher),
		factories: make(map[string]Factory),
	}
}

// Register binds scheme to f.
func (r *Router) Register(scheme string, f Fetcher) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fetchers[strings.ToLower(scheme)] = f
}

// RegisterFactory binds scheme to a lazily constructed fetcher, so cloud
// clients are only created when a document actually lives there.
func (r *Router) RegisterFactory(scheme string, f Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[strings.ToLower(scheme)] = f
}

// Schemes lists the schemes the router can serve.
func (r *Router) Schemes() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.fetchers)+len(r.factories))
	for s := range r.fetchers {
		out = append(out, s)
	}
	for s := range r.factories {
		if _, ok := r.fetchers[s]; !ok {
			out = append(out, s)
		}
	}
	return out
}

func (r *Router) fetcher(ctx context.Context, scheme string) (Fetcher, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if f, ok := r.fetchers[scheme]; ok {
		return f, nil
	}
	build, ok := r.factories[scheme]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedScheme, scheme)
	}
	f, err := build(ctx)
	if err != nil {
		return nil, fmt.Errorf("source: init %s fetcher: %w", scheme, err)
	}
	r.fetchers[scheme] = f
	return f, nil
}

func (r *Router) Fetch(ctx context.Context, uri string) ([]byte, error) {
	scheme := "file"
	if u, err := url.Parse(uri); err == nil && len(u.Scheme) > 1 {
		// Single-letter schemes are Windows drive letters.
		scheme = strings.ToLower(u.Scheme)
	}
	f, err := r.fetcher(ctx, scheme)
	if err != nil {
		return nil, err
	}
	return f.Fetch(ctx, uri)
}

// Options configures the cloud fetchers of a default router.
type Options struct {
	S3                    S3Config
	AzureConnectionString string
}

// NewDefaultRouter serves file, http, https, s3 and azblob URIs, plus gs
// when built with the gcp tag.
func NewDefaultRouter(opts Options) *Router {
	r := NewRouter()
	r.Register("file", FileFetcher{})
	h := NewHTTPFetcher(nil)
	r.Register("http", h)
	r.Register("https", h)
	r.RegisterFactory("s3", func(ctx context.Context) (Fetcher, error) {
		return NewS3Fetcher(ctx, opts.S3)
	})
	if opts.AzureConnectionString != "" {
		r.RegisterFactory("azblob", func(context.Context) (Fetcher, error) {
			return NewAzureFetcher(opts.AzureConnectionString)
		})
	}
	for scheme, f := range extraFactories {
		r.RegisterFactory(scheme, f)
	}
	return r
}

// extraFactories holds fetchers contributed by optional build tags.
var extraFactories = map[string]Factory{}

// FileFetcher reads local files given as a path or a file:// URI.
type FileFetcher struct{}

func (FileFetcher) Fetch(_ context.Context, uri string) ([]byte, error) {
	path := uri
	if strings.HasPrefix(uri, "file://") {
		u, err := url.Parse(uri)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidURI, err)
		}
		path = u.Path
	}
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return nil, fmt.Errorf("source: open %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()
	return readLimited(f)
}

func readLimited(r io.Reader) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, MaxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("source: read: %w", err)
	}
	if len(data) > MaxBytes {
		return nil, ErrTooLarge
	}
	return data, nil
}

// bucketKey splits scheme://bucket/key/path into bucket and key.
func bucketKey(uri string) (string, string, error) {
	u, err := url.Parse(uri)
	if err != nil {
		return "", "", fmt.Errorf("%w: %v", ErrInvalidURI, err)
	}
	key := strings.TrimPrefix(u.Path, "/")
	if u.Host == "" || key == "" {
		return "", "", fmt.Errorf("%w: %q needs a bucket and a key", ErrInvalidURI, uri)
	}
	if strings.Contains(key, "..") {
		return "", "", fmt.Errorf("%w: %q", ErrInvalidURI, uri)
	}
	return u.Host, key, nil
}
