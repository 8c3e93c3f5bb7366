// Package wikidata queries the public SPARQL endpoint for the NBA player
// roster.
package wikidata

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	json "github.com/goccy/go-json"
	"go.uber.org/zap"
)

const (
	DefaultEndpoint = "https://query.wikidata.org/sparql"
	defaultTimeout  = 60 * time.Second
)

var ErrExhausted = errors.New("wikidata query attempts exhausted")

type Options struct {
	Endpoint    string
	UserAgent   string
	MaxAttempts int
	Timeout     time.Duration
	HTTPClient  *http.Client
	Logger      *zap.Logger
}

type Client struct {
	endpoint    string
	userAgent   string
	maxAttempts int
	httpClient  *http.Client
	logger      *zap.Logger
	sleep       func(ctx context.Context, d time.Duration) error
}

func NewClient(opts Options) *Client {
	endpoint := strings.TrimSpace(opts.Endpoint)
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: timeout}
	}
	attempts := opts.MaxAttempts
	if attempts <= 0 {
		attempts = 3
	}
	return &Client{
		endpoint:    endpoint,
		userAgent:   opts.UserAgent,
		maxAttempts: attempts,
		httpClient:  httpClient,
		logger:      opts.Logger,
		sleep:       sleepCtx,
	}
}

type Results struct {
	Results struct {
		Bindings []Binding `json:"bindings"`
	} `json:"results"`
}

type Binding map[string]struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

func (b Binding) Value(key string) string {
	return strings.TrimSpace(b[key].Value)
}

// Query posts one SPARQL query. A 429 waits for Retry-After (5s when
// absent) before the next attempt; any other failure waits 2s plus one
// second per attempt already made.
func (c *Client) Query(ctx context.Context, sparql string) (*Results, error) {
	var lastErr error
	for attempt := 0; attempt < c.maxAttempts; attempt++ {
		out, retryAfter, err := c.do(ctx, sparql)
		if err == nil {
			return out, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		lastErr = err
		wait := time.Duration(2+attempt) * time.Second
		if retryAfter >= 0 {
			wait = retryAfter
		}
		if c.logger != nil {
			c.logger.Warn("wikidata query failed",
				zap.Int("attempt", attempt+1),
				zap.Duration("wait", wait),
				zap.Error(err),
			)
		}
		if attempt == c.maxAttempts-1 {
			break
		}
		if err := c.sleep(ctx, wait); err != nil {
			return nil, err
		}
	}
	return nil, fmt.Errorf("%w: %v", ErrExhausted, lastErr)
}

// do returns a non-negative retryAfter only for a 429 response.
func (c *Client) do(ctx context.Context, sparql string) (*Results, time.Duration, error) {
	form := url.Values{"query": {sparql}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, -1, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/sparql-results+json")
	req.Header.Set("Cache-Control", "max-age=3600")
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, -1, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, -1, err
	}
	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, retryAfter(resp.Header.Get("Retry-After")), fmt.Errorf("wikidata status 429")
	}
	if resp.StatusCode != http.StatusOK {
		msg := string(body)
		if len(msg) > 200 {
			msg = msg[:200]
		}
		return nil, -1, fmt.Errorf("wikidata status %d: %s", resp.StatusCode, msg)
	}
	var out Results
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, -1, fmt.Errorf("decode sparql results: %w", err)
	}
	return &out, -1, nil
}

func retryAfter(v string) time.Duration {
	secs, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil || secs < 0 {
		return 5 * time.Second
	}
	return time.Duration(secs) * time.Second
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
