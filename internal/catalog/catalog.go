package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"sort"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/crowdq/internal/models"
	"github.com/desertthunder/crowdq/internal/shared"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
	"golang.org/x/time/rate"
)

// ErrTrackUnavailable is returned for tracks the catalog knows but cannot serve.
var ErrTrackUnavailable = fmt.Errorf("%w: unavailable", shared.ErrTrackNotFound)

// Provider looks up a catalog id and returns a fresh queue entry for it.
type Provider interface {
	Lookup(ctx context.Context, id string) (*models.Track, error)
}

type artist struct {
	Name string `json:"name"`
}

// TrackInfo is the metadata returned by the proxy.
type TrackInfo struct {
	ID        string   `json:"id"`
	Title     string   `json:"title"`
	Available bool     `json:"available"`
	Artists   []artist `json:"artists"`
}

// DisplayName formats the track as "artist1,artist2 - title".
func (i TrackInfo) DisplayName() string {
	names := make([]string, len(i.Artists))
	for n, a := range i.Artists {
		names[n] = a.Name
	}
	return strings.Join(names, ",") + " - " + i.Title
}

// DownloadInfo is one way of fetching the audio of a track.
type DownloadInfo struct {
	Codec      string `json:"codec"`
	Bitrate    int    `json:"bitrate_in_kbps"`
	DirectLink string `json:"direct_link"`
}

// Client implements [Provider] against the metadata proxy.
type Client struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     *log.Logger
}

// NewClient creates a catalog client from cfg.
//
// When client credentials and a token url are configured, requests are authenticated with the
// OAuth2 client credentials flow. A nil client uses [http.DefaultClient].
func NewClient(ctx context.Context, cfg shared.CatalogConfig, client *http.Client, logger *log.Logger) *Client {
	if client == nil {
		client = http.DefaultClient
	}
	if logger == nil {
		logger = shared.NewLogger(io.Discard)
	}

	if cfg.ClientID != "" && cfg.ClientSecret != "" && cfg.TokenURL != "" {
		cc := &clientcredentials.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			TokenURL:     cfg.TokenURL,
		}
		client = cc.Client(context.WithValue(ctx, oauth2.HTTPClient, client))
	}

	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}

	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = "http://localhost:8080"
	}

	return &Client{
		baseURL:    baseURL,
		httpClient: client,
		limiter:    rate.NewLimiter(limit, 1),
		logger:     shared.WithLogger(logger, "component", "catalog"),
	}
}

// Lookup fetches metadata and download infos for id and returns a new [models.Track] with its own entry id.
func (c *Client) Lookup(ctx context.Context, id string) (*models.Track, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, fmt.Errorf("%w: empty track id", shared.ErrInvalidInput)
	}

	info, err := c.Track(ctx, id)
	if err != nil {
		return nil, err
	}
	if !info.Available {
		return nil, fmt.Errorf("%w: %s", ErrTrackUnavailable, id)
	}

	downloads, err := c.DownloadInfo(ctx, id)
	if err != nil {
		return nil, err
	}

	candidates := make([]models.Candidate, 0, len(downloads))
	for _, d := range downloads {
		if d.DirectLink == "" {
			continue
		}
		candidates = append(candidates, models.Candidate{URL: d.DirectLink, Codec: d.Codec, Bitrate: d.Bitrate})
	}
	if len(candidates) == 0 {
		return nil, fmt.Errorf("%w: %s has no download links", ErrTrackUnavailable, id)
	}

	track := models.NewTrack(shared.GenerateID(), id, info.DisplayName(), candidates)
	c.logger.Debug("looked up track", "id", id, "name", track.Name, "candidates", len(candidates))
	return track, nil
}

// Track retrieves the metadata of a single track.
func (c *Client) Track(ctx context.Context, id string) (*TrackInfo, error) {
	var info TrackInfo
	if err := c.doRequest(ctx, "/tracks/"+url.PathEscape(id), &info); err != nil {
		return nil, err
	}
	if info.ID == "" {
		info.ID = id
	}
	return &info, nil
}

// DownloadInfo retrieves the download infos of a track sorted by bitrate, highest first.
func (c *Client) DownloadInfo(ctx context.Context, id string) ([]DownloadInfo, error) {
	var infos []DownloadInfo
	if err := c.doRequest(ctx, "/tracks/"+url.PathEscape(id)+"/download-info", &infos); err != nil {
		return nil, err
	}

	sort.SliceStable(infos, func(i, j int) bool {
		return infos[i].Bitrate > infos[j].Bitrate
	})
	return infos, nil
}

// doRequest performs a paced GET against the proxy and decodes the JSON body into result.
func (c *Client) doRequest(ctx context.Context, endpoint string, result any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+endpoint, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("%w: %s", shared.ErrTrackNotFound, endpoint)
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return fmt.Errorf("%w: status %d for %s", shared.ErrAPIRequest, resp.StatusCode, endpoint)
	}

	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

var trackURL = regexp.MustCompile(`/track/([0-9]+)/?`)

// ExtractIDs returns the catalog ids found in text, in order.
//
// Bare numeric words and links containing /track/<digits> are recognised. Words starting with
// "/" are commands and are skipped.
func ExtractIDs(text string) []string {
	var ids []string
	for _, word := range strings.Fields(text) {
		if strings.HasPrefix(word, "/") {
			continue
		}
		if isDigits(word) {
			ids = append(ids, word)
			continue
		}
		if m := trackURL.FindStringSubmatch(word); m != nil {
			ids = append(ids, m[1])
		}
	}
	return ids
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
