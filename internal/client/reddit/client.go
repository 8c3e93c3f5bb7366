// Package reddit is the feed-API connector: recent submissions of one
// subreddit and their flattened comment trees.
package reddit

import (
	"context"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	json "github.com/goccy/go-json"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"

	"fansapprove/internal/connector"
	"fansapprove/internal/models"
	"fansapprove/internal/ratelimit"
)

const (
	defaultBaseURL      = "https://www.reddit.com"
	defaultOAuthBaseURL = "https://oauth.reddit.com"
	defaultTokenURL     = "https://www.reddit.com/api/v1/access_token"
	pageSize            = 100
)

type Options struct {
	BaseURL              string
	OAuthBaseURL         string
	TokenURL             string
	ClientID             string
	ClientSecret         string
	UserAgent            string
	Subreddit            string
	MaxThreads           int
	MaxCommentsPerThread int
	Timeout              time.Duration
	// HTTPClient overrides the transport; OAuth wraps it when credentials are set.
	HTTPClient *http.Client
}

type Client struct {
	host        string
	httpClient  *http.Client
	userAgent   string
	subreddit   string
	maxThreads  int
	maxComments int
	oauth       bool
	limiter     *ratelimit.Limiter
}

func NewClient(opts Options, limiter *ratelimit.Limiter) *Client {
	base := opts.HTTPClient
	if base == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = 20 * time.Second
		}
		base = &http.Client{Timeout: timeout}
	}
	c := &Client{
		host:        strings.TrimRight(firstNonEmpty(opts.BaseURL, defaultBaseURL), "/"),
		httpClient:  base,
		userAgent:   firstNonEmpty(opts.UserAgent, "fansapprove-pipeline/0.1"),
		subreddit:   strings.TrimPrefix(strings.TrimSpace(opts.Subreddit), "r/"),
		maxThreads:  opts.MaxThreads,
		maxComments: opts.MaxCommentsPerThread,
		limiter:     limiter,
	}
	if c.maxThreads <= 0 {
		c.maxThreads = 20
	}
	if c.maxComments <= 0 {
		c.maxComments = 100
	}
	if opts.ClientID != "" && opts.ClientSecret != "" {
		cc := clientcredentials.Config{
			ClientID:     opts.ClientID,
			ClientSecret: opts.ClientSecret,
			TokenURL:     firstNonEmpty(opts.TokenURL, defaultTokenURL),
			AuthStyle:    oauth2.AuthStyleInHeader,
		}
		tokenCtx := context.WithValue(context.Background(), oauth2.HTTPClient, base)
		c.httpClient = cc.Client(tokenCtx)
		c.host = strings.TrimRight(firstNonEmpty(opts.OAuthBaseURL, defaultOAuthBaseURL), "/")
		c.oauth = true
	}
	return c
}

func (c *Client) SourceType() string { return models.SourceTypeReddit }
func (c *Client) SourceName() string { return c.subreddit }

// ListRecentThreads pages /r/{sub}/new by the after cursor until maxThreads
// submissions are collected, the cursor runs out, or a submission predates since.
func (c *Client) ListRecentThreads(ctx context.Context, since time.Time) ([]connector.ThreadItem, error) {
	var out []connector.ThreadItem
	after := ""
	for len(out) < c.maxThreads {
		query := url.Values{}
		query.Set("limit", strconv.Itoa(min(pageSize, c.maxThreads-len(out))))
		query.Set("raw_json", "1")
		if after != "" {
			query.Set("after", after)
		}
		body, err := c.doRequest(ctx, "/r/"+url.PathEscape(c.subreddit)+"/new", query)
		if err != nil {
			return out, err
		}
		var page listing
		if err := json.Unmarshal(body, &page); err != nil {
			return out, fmt.Errorf("decode listing: %w", err)
		}
		if len(page.Data.Children) == 0 {
			break
		}
		for _, child := range page.Data.Children {
			if child.Kind != "t3" {
				continue
			}
			created := fromUnix(child.Data.CreatedUTC)
			if !since.IsZero() && !created.IsZero() && created.Before(since) {
				return out, nil
			}
			out = append(out, connector.ThreadItem{
				ExternalID: child.Data.ID,
				Title:      child.Data.Title,
				Body:       child.Data.SelfText,
				Author:     author(child.Data.Author),
				URL:        firstNonEmpty(child.Data.URL, c.permalink(child.Data.Permalink)),
				CreatedAt:  created,
				Score:      child.Data.Score,
			})
			if len(out) >= c.maxThreads {
				break
			}
		}
		after = page.Data.After
		if after == "" {
			break
		}
	}
	return out, nil
}

// ListPosts fetches the comment tree of one submission and flattens it depth
// first. "more" stubs are not expanded.
func (c *Client) ListPosts(ctx context.Context, thread connector.ThreadItem, cutoff time.Time) ([]connector.PostItem, error) {
	if strings.TrimSpace(thread.ExternalID) == "" {
		return nil, fmt.Errorf("thread external id is required")
	}
	query := url.Values{}
	query.Set("limit", strconv.Itoa(c.maxComments))
	query.Set("sort", "new")
	query.Set("raw_json", "1")
	body, err := c.doRequest(ctx, "/comments/"+url.PathEscape(thread.ExternalID), query)
	if err != nil {
		return nil, err
	}
	var pages []listing
	if err := json.Unmarshal(body, &pages); err != nil {
		return nil, fmt.Errorf("decode comments: %w", err)
	}
	if len(pages) < 2 {
		return nil, nil
	}
	out := make([]connector.PostItem, 0, len(pages[1].Data.Children))
	c.flatten(pages[1].Data.Children, cutoff, &out)
	return out, nil
}

func (c *Client) flatten(children []thing, cutoff time.Time, out *[]connector.PostItem) {
	for _, child := range children {
		if len(*out) >= c.maxComments {
			return
		}
		if child.Kind != "t1" {
			continue
		}
		created := fromUnix(child.Data.CreatedUTC)
		if cutoff.IsZero() || created.IsZero() || !created.Before(cutoff) {
			*out = append(*out, connector.PostItem{
				ExternalID:       child.Data.ID,
				ParentExternalID: child.Data.ParentID,
				Body:             child.Data.Body,
				Author:           author(child.Data.Author),
				URL:              c.permalink(child.Data.Permalink),
				CreatedAt:        created,
				Score:            child.Data.Score,
			})
		}
		replies, err := child.Data.replies()
		if err != nil || replies == nil {
			continue
		}
		c.flatten(replies.Data.Children, cutoff, out)
	}
}

func (c *Client) doRequest(ctx context.Context, path string, query url.Values) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	if !c.oauth {
		path += ".json"
	}
	fullURL := c.host + path
	if len(query) > 0 {
		fullURL += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
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
	if resp.StatusCode != http.StatusOK {
		return nil, &connector.FetchError{Source: c.subreddit, URL: fullURL, Status: resp.StatusCode, Body: string(body)}
	}
	return body, nil
}

func (c *Client) permalink(p string) string {
	if p == "" {
		return ""
	}
	if strings.HasPrefix(p, "http") {
		return p
	}
	return "https://reddit.com" + p
}

func fromUnix(v float64) time.Time {
	if v <= 0 || math.IsNaN(v) {
		return time.Time{}
	}
	sec, frac := math.Modf(v)
	return time.Unix(int64(sec), int64(frac*1e9)).UTC()
}

func author(name string) string {
	if name == "[deleted]" || name == "[removed]" {
		return ""
	}
	return name
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}
