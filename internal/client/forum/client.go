// Package forum is the HTML/RSS connector for XenForo-style boards: an RSS
// feed lists threads, thread pages are scraped newest page first.
package forum

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"fansapprove/internal/connector"
	"fansapprove/internal/models"
	"fansapprove/internal/ratelimit"
)

type Options struct {
	FeedURL    string
	Name       string
	UserAgent  string
	MaxPages   int
	MaxThreads int
	Timeout    time.Duration
	HTTPClient *http.Client
}

type Client struct {
	feedURL    string
	name       string
	userAgent  string
	maxPages   int
	maxThreads int
	httpClient *http.Client
	limiter    *ratelimit.Limiter
}

func NewClient(opts Options, limiter *ratelimit.Limiter) *Client {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = 20 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	name := strings.TrimSpace(opts.Name)
	if name == "" {
		name = SourceName(opts.FeedURL)
	}
	c := &Client{
		feedURL:    strings.TrimSpace(opts.FeedURL),
		name:       name,
		userAgent:  opts.UserAgent,
		maxPages:   opts.MaxPages,
		maxThreads: opts.MaxThreads,
		httpClient: httpClient,
		limiter:    limiter,
	}
	if c.userAgent == "" {
		c.userAgent = "fansapprove-pipeline/0.1"
	}
	if c.maxPages <= 0 {
		c.maxPages = 10
	}
	return c
}

func (c *Client) SourceType() string { return models.SourceTypeForum }
func (c *Client) SourceName() string { return c.name }

// ListRecentThreads returns feed threads created at or after since.
func (c *Client) ListRecentThreads(ctx context.Context, since time.Time) ([]connector.ThreadItem, error) {
	body, err := c.get(ctx, c.feedURL)
	if err != nil {
		return nil, err
	}
	items, err := ParseFeed(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse feed %s: %w", c.feedURL, err)
	}
	out := make([]connector.ThreadItem, 0, len(items))
	for _, it := range items {
		if !since.IsZero() && it.CreatedAt.Before(since) {
			continue
		}
		out = append(out, it)
		if c.maxThreads > 0 && len(out) >= c.maxThreads {
			break
		}
	}
	return out, nil
}

// ListPosts reads the first page to learn the page count, then walks back
// from the last page. The walk stops at the first page whose newest post is
// older than cutoff; earlier pages cannot hold anything newer.
func (c *Client) ListPosts(ctx context.Context, thread connector.ThreadItem, cutoff time.Time) ([]connector.PostItem, error) {
	if thread.URL == "" {
		return nil, fmt.Errorf("thread %s has no url", thread.ExternalID)
	}
	first, last, err := c.page(ctx, thread.URL, 1)
	if err != nil {
		return nil, err
	}
	if last <= 1 {
		return filterSince(first, cutoff, nil), nil
	}

	stop := last - c.maxPages + 1
	if stop < 1 {
		stop = 1
	}
	var out []connector.PostItem
	for p := last; p >= stop; p-- {
		posts := first
		if p > 1 {
			if posts, _, err = c.page(ctx, thread.URL, p); err != nil {
				return out, err
			}
		}
		if len(posts) == 0 {
			continue
		}
		if newest(posts).Before(cutoff) {
			break
		}
		out = filterSince(posts, cutoff, out)
	}
	return out, nil
}

func (c *Client) page(ctx context.Context, threadURL string, n int) ([]connector.PostItem, int, error) {
	body, err := c.get(ctx, PageURL(threadURL, n))
	if err != nil {
		return nil, 0, err
	}
	return ParseThreadHTML(bytes.NewReader(body), threadURL)
}

func (c *Client) get(ctx context.Context, target string) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &connector.FetchError{Source: c.name, URL: target, Status: resp.StatusCode, Body: string(body)}
	}
	return body, nil
}

func newest(posts []connector.PostItem) time.Time {
	var latest time.Time
	for _, p := range posts {
		if p.CreatedAt.After(latest) {
			latest = p.CreatedAt
		}
	}
	return latest
}

func filterSince(posts []connector.PostItem, cutoff time.Time, out []connector.PostItem) []connector.PostItem {
	for _, p := range posts {
		if p.CreatedAt.Before(cutoff) {
			continue
		}
		out = append(out, p)
	}
	return out
}
