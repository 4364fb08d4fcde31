package platform

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"github.com/amaumene/geowatch/internal/config"
	"github.com/amaumene/geowatch/internal/models"
	"github.com/patrickmn/go-cache"
	"github.com/sirupsen/logrus"
	"golang.org/x/net/publicsuffix"
)

const (
	maxBodySize    = 16 << 20
	seriesCacheTTL = 10 * time.Minute
)

// HTTPClient implements Client for the platforms described by a Profile
type HTTPClient struct {
	profile       Profile
	baseURL       string
	credentials   config.PlatformCredentials
	language      string
	userAgent     string
	searchQueries []string
	httpClient    *http.Client
	series        *cache.Cache
	logger        *logrus.Logger
}

// NewClient creates a client for a registered platform name
func NewClient(name string, cfg *config.Config, logger *logrus.Logger) (*HTTPClient, error) {
	profile, err := LookupProfile(name)
	if err != nil {
		return nil, err
	}
	return NewHTTPClient(profile, cfg, logger)
}

// NewHTTPClient creates a client for an explicit profile
func NewHTTPClient(profile Profile, cfg *config.Config, logger *logrus.Logger) (*HTTPClient, error) {
	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, fmt.Errorf("failed to create cookie jar: %w", err)
	}

	creds := cfg.Credentials[profile.Name]
	baseURL := profile.BaseURL
	if creds.BaseURL != "" {
		baseURL = creds.BaseURL
	}

	timeout := cfg.HTTPTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return &HTTPClient{
		profile:       profile,
		baseURL:       strings.TrimRight(baseURL, "/"),
		credentials:   creds,
		language:      cfg.Language,
		userAgent:     cfg.UserAgent,
		searchQueries: cfg.SearchQueries,
		httpClient:    &http.Client{Timeout: timeout, Jar: jar},
		series:        cache.New(seriesCacheTTL, 2*seriesCacheTTL),
		logger:        logger,
	}, nil
}

// Name returns the platform name
func (c *HTTPClient) Name() string {
	return c.profile.Name
}

// Language returns the manifest language used for probes
func (c *HTTPClient) Language() string {
	return c.language
}

// Login opens a session. Platforms without a login path need none.
func (c *HTTPClient) Login(ctx context.Context) error {
	if c.profile.LoginPath == "" {
		return nil
	}
	if c.credentials.Email == "" || c.credentials.Password == "" {
		return fmt.Errorf("%s: missing credentials: %w", c.profile.Name, ErrAuthRequired)
	}

	payload, err := json.Marshal(map[string]string{
		"email":    c.credentials.Email,
		"password": c.credentials.Password,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal login body: %w", err)
	}

	resp, err := c.do(ctx, http.MethodPost, c.profile.LoginPath, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("login request failed: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%s login rejected with status %d: %w", c.profile.Name, resp.StatusCode, ErrAuthRequired)
	}

	c.logger.WithField("platform", c.profile.Name).Info("Logged in")
	return nil
}

// Sources returns the profile listings followed by one search listing per configured query
func (c *HTTPClient) Sources() []Source {
	sources := append([]Source(nil), c.profile.Sources...)
	if c.profile.SearchPath == "" {
		return sources
	}
	for _, query := range c.searchQueries {
		sources = append(sources, Source{
			Name: "search:" + query,
			Path: fmt.Sprintf(c.profile.SearchPath, url.QueryEscape(query)),
			Kind: models.KindVOD,
		})
	}
	return sources
}

// FetchItem fetches the metadata of a standalone item or episode
func (c *HTTPClient) FetchItem(ctx context.Context, slug string) (*Response, error) {
	return c.do(ctx, http.MethodGet, fmt.Sprintf(c.profile.ItemPath, url.PathEscape(slug)), nil)
}

// FetchChannel fetches the metadata of a live channel
func (c *HTTPClient) FetchChannel(ctx context.Context, slug string) (*Response, error) {
	return c.do(ctx, http.MethodGet, fmt.Sprintf(c.profile.ChannelPath, url.PathEscape(slug)), nil)
}

// FetchSeries fetches a series tree. Successful trees are cached for a few minutes.
func (c *HTTPClient) FetchSeries(ctx context.Context, slug string) (*Response, error) {
	if cached, found := c.series.Get(slug); found {
		c.logger.WithField("series", slug).Debug("Series tree served from cache")
		return cached.(*Response), nil
	}

	resp, err := c.do(ctx, http.MethodGet, fmt.Sprintf(c.profile.SeriesPath, url.PathEscape(slug)), nil)
	if err != nil {
		return nil, err
	}
	if resp.OK() {
		c.series.SetDefault(slug, resp)
	}
	return resp, nil
}

// FetchListing fetches a discovery listing; anything but 200 is an error
func (c *HTTPClient) FetchListing(ctx context.Context, source Source) ([]byte, error) {
	resp, err := c.do(ctx, http.MethodGet, source.Path, nil)
	if err != nil {
		return nil, err
	}
	if !resp.OK() {
		return nil, fmt.Errorf("listing %s failed with status %d", source.Name, resp.StatusCode)
	}
	return resp.Body, nil
}

// ProbeRestriction issues a HEAD request against the manifest, or the stream
// endpoint for live channels, and returns the status code
func (c *HTTPClient) ProbeRestriction(ctx context.Context, slug string, kind models.ContentKind, language string) (int, error) {
	path := fmt.Sprintf(c.profile.ManifestPath, url.PathEscape(slug), url.PathEscape(language))
	if kind == models.KindLiveChannel {
		path = fmt.Sprintf(c.profile.LiveProbePath, url.PathEscape(slug))
	}

	resp, err := c.do(ctx, http.MethodHead, path, nil)
	if err != nil {
		return 0, err
	}
	return resp.StatusCode, nil
}

// do performs a request against the platform and reads the body
func (c *HTTPClient) do(ctx context.Context, method, path string, body io.Reader) (*Response, error) {
	fullURL := c.baseURL + path
	c.logger.WithFields(logrus.Fields{
		"method": method,
		"url":    fullURL,
	}).Debug("Making platform request")

	req, err := http.NewRequestWithContext(ctx, method, fullURL, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	return &Response{StatusCode: resp.StatusCode, Body: data}, nil
}
