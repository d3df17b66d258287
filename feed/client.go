package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

const defaultTimeout = 30 * time.Second

// Client implements Source and Authors against the feed's REST API:
//
//	GET {base}/items?order=last_updated.desc&limit=N
//	GET {base}/authors/{ref}
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	logger     zerolog.Logger
}

// NewClient creates a feed API client. A zero timeout uses 30s.
func NewClient(baseURL, token string, timeout time.Duration, logger zerolog.Logger) *Client {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		logger: logger.With().Str("component", "feed").Logger(),
	}
}

// doRequest performs an authenticated GET and returns the status code and
// body.
func (c *Client) doRequest(ctx context.Context, path string, query url.Values) (int, []byte, error) {
	reqURL := c.baseURL + path
	if query != nil {
		reqURL += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	c.logger.Debug().Str("url", reqURL).Msg("feed request")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, fmt.Errorf("failed to read response: %w", err)
	}
	return resp.StatusCode, body, nil
}

// Recent returns up to limit records ordered by last update, newest first.
func (c *Client) Recent(ctx context.Context, limit int) ([]Record, error) {
	query := url.Values{}
	query.Set("order", "last_updated.desc")
	query.Set("limit", strconv.Itoa(limit))

	status, body, err := c.doRequest(ctx, "/items", query)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSourceQuery, err)
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("%w: status %d: %s", ErrSourceQuery, status, snippet(body))
	}

	var records []Record
	if err := json.Unmarshal(body, &records); err != nil {
		return nil, fmt.Errorf("%w: decode: %w", ErrSourceQuery, err)
	}
	if limit > 0 && len(records) > limit {
		records = records[:limit]
	}
	return records, nil
}

// Lookup resolves an author reference.
func (c *Client) Lookup(ctx context.Context, ref string) (Author, error) {
	if ref == "" {
		return Author{}, fmt.Errorf("%w: empty reference", ErrAuthorNotFound)
	}

	status, body, err := c.doRequest(ctx, "/authors/"+url.PathEscape(ref), nil)
	if err != nil {
		return Author{}, fmt.Errorf("%w: %w", ErrMetadataLookup, err)
	}
	switch {
	case status == http.StatusNotFound:
		return Author{}, fmt.Errorf("%w: %s", ErrAuthorNotFound, ref)
	case status != http.StatusOK:
		return Author{}, fmt.Errorf("%w: status %d: %s", ErrMetadataLookup, status, snippet(body))
	}

	var author Author
	if err := json.Unmarshal(body, &author); err != nil {
		return Author{}, fmt.Errorf("%w: decode: %w", ErrMetadataLookup, err)
	}
	if author.DisplayName == "" && author.Handle == "" {
		return Author{}, fmt.Errorf("%w: %s", ErrAuthorNotFound, ref)
	}
	return author, nil
}

func snippet(body []byte) string {
	const limit = 200
	s := strings.TrimSpace(string(body))
	if len(s) > limit {
		return s[:limit] + "..."
	}
	return s
}
