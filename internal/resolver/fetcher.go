package resolver

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/desertthunder/crowdq/internal/models"
	"github.com/desertthunder/crowdq/internal/shared"
)

// Fetcher executes a single download candidate, writing the media to dest.
type Fetcher interface {
	Fetch(ctx context.Context, c models.Candidate, dest string) error
}

// HTTPFetcher downloads candidates over HTTP.
type HTTPFetcher struct {
	httpClient *http.Client
}

// NewHTTPFetcher creates an [HTTPFetcher]. A nil client uses [http.DefaultClient].
func NewHTTPFetcher(client *http.Client) *HTTPFetcher {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPFetcher{httpClient: client}
}

// Fetch downloads c.URL into dest.
func (f *HTTPFetcher) Fetch(ctx context.Context, c models.Candidate, dest string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.URL, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%w: %s returned %d", shared.ErrAPIRequest, c.Label(), resp.StatusCode)
	}

	file, err := os.Create(dest)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}

	if _, err := io.Copy(file, resp.Body); err != nil {
		file.Close()
		return fmt.Errorf("failed to write download: %w", err)
	}

	return file.Close()
}
