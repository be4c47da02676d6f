package advisory

import (
	"context"
	"fmt"

	"github.com/focusforward/caseguard/pkg/source"
)

// Load fetches and parses a pack from uri.
func Load(ctx context.Context, f source.Fetcher, uri string) (*Pack, error) {
	data, err := f.Fetch(ctx, uri)
	if err != nil {
		return nil, fmt.Errorf("advisory: load %s: %w", uri, err)
	}
	return Parse(data)
}
