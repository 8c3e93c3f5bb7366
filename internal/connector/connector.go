// Package connector defines the contract every upstream source implements
// and the error type the ingest loop uses to decide on retries.
package connector

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"syscall"
	"time"

	"golang.org/x/oauth2"
)

type ThreadItem struct {
	ExternalID string
	Title      string
	Body       string
	Author     string
	URL        string
	CreatedAt  time.Time
	Score      int
}

type PostItem struct {
	ExternalID       string
	ParentExternalID string
	Body             string
	Author           string
	URL              string
	CreatedAt        time.Time
	Score            int
}

// Connector fetches raw content from one upstream. Implementations issue
// requests sequentially and do not retry on their own.
type Connector interface {
	SourceType() string
	SourceName() string
	ListRecentThreads(ctx context.Context, since time.Time) ([]ThreadItem, error)
	ListPosts(ctx context.Context, thread ThreadItem, cutoff time.Time) ([]PostItem, error)
}

// FetchError reports a non-success HTTP status from an upstream.
type FetchError struct {
	Source string
	URL    string
	Status int
	Body   string
}

func (e *FetchError) Error() string {
	body := e.Body
	if len(body) > 200 {
		body = body[:200]
	}
	return fmt.Sprintf("fetch %s %s: status %d: %s", e.Source, e.URL, e.Status, body)
}

// IsTransient reports whether err is worth retrying at the crawl level:
// rate limiting, upstream 5xx, timeouts, dropped or refused connections,
// failed DNS lookups and an open circuit breaker. Token endpoint failures
// follow the same status rules as content fetches.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, ErrBreakerOpen) {
		return true
	}
	var fe *FetchError
	if errors.As(err, &fe) {
		return transientStatus(fe.Status)
	}
	var re *oauth2.RetrieveError
	if errors.As(err, &re) {
		return re.Response != nil && transientStatus(re.Response.StatusCode)
	}
	var dnsErr *net.DNSError
	if errors.Is(err, syscall.ECONNRESET) || errors.Is(err, syscall.ECONNREFUSED) || errors.As(err, &dnsErr) {
		return true
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return true
	}
	// Anything else the HTTP client reports happened on the wire.
	var ue *url.Error
	return errors.As(err, &ue)
}

func transientStatus(status int) bool {
	return status == http.StatusTooManyRequests || status == http.StatusRequestTimeout || status >= 500
}
