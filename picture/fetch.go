package picture

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"
)

// MaxImageBytes bounds the size of a fetched image.
const MaxImageBytes = 20 << 20

// Fetcher downloads images over HTTP.
type Fetcher struct {
	httpClient *http.Client
	logger     zerolog.Logger
}

// NewFetcher creates a fetcher. A zero timeout leaves requests bounded only
// by the context.
func NewFetcher(timeout time.Duration, logger zerolog.Logger) *Fetcher {
	return &Fetcher{
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger.With().Str("component", "fetch").Logger(),
	}
}

// Fetch returns the raw bytes at url.
func (f *Fetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrImageProcessing, err)
	}
	req.Header.Set("Accept", "image/*")

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: fetch: %w", ErrImageProcessing, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: fetch %s: status %d", ErrImageProcessing, url, resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, MaxImageBytes+1))
	if err != nil {
		return nil, fmt.Errorf("%w: read: %w", ErrImageProcessing, err)
	}
	if len(data) > MaxImageBytes {
		return nil, fmt.Errorf("%w: image larger than %d bytes", ErrImageProcessing, MaxImageBytes)
	}

	f.logger.Debug().Str("url", url).Int("bytes", len(data)).Msg("image fetched")
	return data, nil
}
