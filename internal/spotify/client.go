// Package spotify fetches the recently-played feed used for incremental sync.
package spotify

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	json "github.com/goccy/go-json"
	gobreaker "github.com/sony/gobreaker/v2"
	"golang.org/x/oauth2"
	spotifyauth "golang.org/x/oauth2/spotify"
	"golang.org/x/time/rate"

	"listentier/internal/models"
	"listentier/internal/providers"
	"listentier/internal/services"
	"listentier/internal/structures"
)

const (
	DefaultBaseURL     = "https://api.spotify.com/v1"
	defaultPageLimit   = 50
	maxPageLimit       = 50
	defaultTimeout     = 10 * time.Second
	breakerName        = "recently-played"
	breakerMaxFailures = 5
	maxPageBytes       = 8 << 20
)

type Client struct {
	baseURL     string
	httpClient  *http.Client
	limiter     *rate.Limiter
	breaker     *gobreaker.CircuitBreaker[*models.SyncPage]
	maxRetries  int
	baseBackoff time.Duration
	pageLimit   int
	logger      providers.Logger
}

type recentlyPlayedPage struct {
	Items   []json.RawMessage `json:"items"`
	Cursors *struct {
		After  string `json:"after"`
		Before string `json:"before"`
	} `json:"cursors"`
}

// NewClient picks the token source from config: a refresh token with client credentials refreshes
// through the provider's OAuth endpoint, a bare access token is sent as is, and no credentials
// sends unauthenticated requests.
func NewClient(conf *structures.Config, logger providers.Logger) *Client {
	sc := conf.Sync

	timeout := sc.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	baseURL := sc.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	pageLimit := sc.PageLimit
	if pageLimit <= 0 || pageLimit > maxPageLimit {
		pageLimit = defaultPageLimit
	}
	limit := rate.Inf
	if sc.RatePerSec > 0 {
		limit = rate.Limit(sc.RatePerSec)
	}

	c := &Client{
		baseURL:     baseURL,
		httpClient:  newHTTPClient(sc, timeout),
		limiter:     rate.NewLimiter(limit, 1),
		maxRetries:  sc.MaxRetries,
		baseBackoff: sc.RetryBackoff,
		pageLimit:   pageLimit,
		logger:      logger,
	}
	c.breaker = gobreaker.NewCircuitBreaker[*models.SyncPage](gobreaker.Settings{
		Name:        breakerName,
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     2 * time.Minute,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= breakerMaxFailures
		},
		// Credential problems and caller cancellation say nothing about provider health.
		IsSuccessful: func(err error) bool {
			return err == nil ||
				models.IsCode(err, models.CodeAuth) ||
				errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warnf(providers.TypeSync, "Circuit breaker %s: %s -> %s", name, from, to)
		},
	})
	return c
}

// NewPlaySource is the injector binding: nil when sync is disabled, so the service rejects Sync calls.
func NewPlaySource(conf *structures.Config, logger providers.Logger) services.PlaySource {
	if !conf.Sync.Enabled {
		return nil
	}
	c := NewClient(conf, logger)
	logger.Infof(providers.TypeSync, "Sync enabled against %s", c.baseURL)
	return c
}

func newHTTPClient(sc structures.SyncConfig, timeout time.Duration) *http.Client {
	base := &http.Client{Timeout: timeout}
	ctx := context.WithValue(context.Background(), oauth2.HTTPClient, base)

	var client *http.Client
	switch {
	case sc.RefreshToken != "" && sc.ClientID != "":
		endpoint := spotifyauth.Endpoint
		if sc.TokenURL != "" {
			endpoint.TokenURL = sc.TokenURL
		}
		oc := &oauth2.Config{
			ClientID:     sc.ClientID,
			ClientSecret: sc.ClientSecret,
			Endpoint:     endpoint,
			Scopes:       []string{"user-read-recently-played"},
		}
		client = oc.Client(ctx, &oauth2.Token{RefreshToken: sc.RefreshToken})
	case sc.AccessToken != "":
		client = oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{AccessToken: sc.AccessToken, TokenType: "Bearer"}))
	default:
		return base
	}
	client.Timeout = timeout
	return client
}

// RecentlyPlayed fetches one page of plays newer than after (unix milliseconds, 0 for the newest
// page). Failures are AuthError, TransientError, or a plain error for unexpected responses.
func (c *Client) RecentlyPlayed(ctx context.Context, after int64) (*models.SyncPage, error) {
	page, err := c.breaker.Execute(func() (*models.SyncPage, error) {
		return c.fetch(ctx, after)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, models.NewTransientError("provider temporarily unavailable", err)
	}
	return page, err
}

func (c *Client) fetch(ctx context.Context, after int64) (*models.SyncPage, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	q := url.Values{}
	q.Set("limit", strconv.Itoa(c.pageLimit))
	if after > 0 {
		q.Set("after", strconv.FormatInt(after, 10))
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/me/player/recently-played?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.doRequestWithRetry(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusForbidden {
		return nil, models.NewAuthError("missing user-read-recently-played scope", nil)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("recently played: unexpected status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxPageBytes))
	if err != nil {
		return nil, models.NewTransientError("read recently played page", err)
	}

	var page recentlyPlayedPage
	if err := json.Unmarshal(body, &page); err != nil {
		return nil, models.NewFormatError("recently played page is not valid JSON", err)
	}

	res := &models.SyncPage{Body: body, Count: len(page.Items)}
	if page.Cursors != nil && page.Cursors.After != "" {
		next, err := strconv.ParseInt(page.Cursors.After, 10, 64)
		if err == nil && next > after {
			res.Next = next
		}
	}
	c.logger.Debugf(providers.TypeSync, "Fetched %d plays after %d, next cursor %d", res.Count, after, res.Next)
	return res, nil
}
