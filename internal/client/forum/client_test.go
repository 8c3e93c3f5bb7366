package forum

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"fansapprove/internal/connector"
)

// forumServer serves a five-page thread where page N holds posts from day N.
type forumServer struct {
	mu   sync.Mutex
	hits map[string]int
	base time.Time
}

func (f *forumServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	f.hits[r.URL.Path]++
	f.mu.Unlock()

	if r.URL.Path == "/forums/rockets.4/index.rss" {
		fmt.Fprintf(w, `<rss version="2.0"><channel>
<item><title>New</title><link>http://%s/threads/new-thread.100/</link><pubDate>%s</pubDate></item>
<item><title>Old</title><link>http://%s/threads/old-thread.99/</link><pubDate>%s</pubDate></item>
</channel></rss>`, r.Host, f.base.Add(4*24*time.Hour).Format(time.RFC1123Z), r.Host, f.base.Add(-30*24*time.Hour).Format(time.RFC1123Z))
		return
	}
	if !strings.HasPrefix(r.URL.Path, "/threads/new-thread.100/") {
		http.NotFound(w, r)
		return
	}
	page := 1
	if rest := strings.TrimPrefix(r.URL.Path, "/threads/new-thread.100/"); rest != "" {
		fmt.Sscanf(rest, "page-%d", &page)
	}
	var b strings.Builder
	b.WriteString(`<html><body><nav>`)
	for i := 1; i <= 5; i++ {
		fmt.Fprintf(&b, `<a class="pageNav-page">%d</a>`, i)
	}
	b.WriteString(`</nav>`)
	day := f.base.Add(time.Duration(page-1) * 24 * time.Hour)
	for i := 0; i < 2; i++ {
		ts := day.Add(time.Duration(i) * time.Hour)
		fmt.Fprintf(&b, `<article class="message" id="post-%d%d"><time data-time="%d"></time><div class="message-body"><div class="bbWrapper">page %d post %d</div></div></article>`,
			page, i, ts.Unix(), page, i)
	}
	b.WriteString(`</body></html>`)
	fmt.Fprint(w, b.String())
}

func TestListPostsWalksBackwardAndStopsAtCutoff(t *testing.T) {
	base := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	fs := &forumServer{hits: map[string]int{}, base: base}
	srv := httptest.NewServer(fs)
	defer srv.Close()

	c := NewClient(Options{FeedURL: srv.URL + "/forums/rockets.4/index.rss", MaxPages: 10}, nil)
	if c.SourceName() != "clutchfans-rockets.4" {
		t.Fatalf("name=%s", c.SourceName())
	}

	threads, err := c.ListRecentThreads(context.Background(), base)
	if err != nil {
		t.Fatalf("threads err=%v", err)
	}
	if len(threads) != 1 || threads[0].ExternalID != "100" {
		t.Fatalf("threads=%+v", threads)
	}

	// Day 4 at 00:30: page 4 keeps one post, page 3 is entirely older.
	cutoff := base.Add(3*24*time.Hour + 30*time.Minute)
	posts, err := c.ListPosts(context.Background(), threads[0], cutoff)
	if err != nil {
		t.Fatalf("posts err=%v", err)
	}
	var ids []string
	for _, p := range posts {
		ids = append(ids, p.ExternalID)
	}
	if strings.Join(ids, ",") != "50,51,41" {
		t.Fatalf("ids=%v want [50 51 41]", ids)
	}

	fs.mu.Lock()
	defer fs.mu.Unlock()
	for _, p := range []string{"page-5", "page-4", "page-3"} {
		if fs.hits["/threads/new-thread.100/"+p] != 1 {
			t.Fatalf("%s hits=%d want=1", p, fs.hits["/threads/new-thread.100/"+p])
		}
	}
	if n := fs.hits["/threads/new-thread.100/page-2"]; n != 0 {
		t.Fatalf("page-2 fetched %d times after stale page", n)
	}
	if n := fs.hits["/threads/new-thread.100/"]; n != 1 {
		t.Fatalf("first page hits=%d want=1", n)
	}
}

func TestListPostsHonoursMaxPages(t *testing.T) {
	base := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	fs := &forumServer{hits: map[string]int{}, base: base}
	srv := httptest.NewServer(fs)
	defer srv.Close()

	c := NewClient(Options{FeedURL: srv.URL + "/forums/rockets.4/index.rss", MaxPages: 2}, nil)
	thread := connector.ThreadItem{ExternalID: "100", URL: srv.URL + "/threads/new-thread.100/"}
	posts, err := c.ListPosts(context.Background(), thread, time.Time{})
	if err != nil {
		t.Fatalf("err=%v", err)
	}
	if len(posts) != 4 {
		t.Fatalf("posts=%d want=4", len(posts))
	}
	fs.mu.Lock()
	defer fs.mu.Unlock()
	if fs.hits["/threads/new-thread.100/page-3"] != 0 {
		t.Fatalf("page-3 fetched beyond max pages")
	}
}

func TestListPostsSinglePage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><body>
<article class="message" id="post-1"><time datetime="2026-02-08T12:00:00Z"></time><div class="message-body">new</div></article>
<article class="message" id="post-2"><time datetime="2020-01-01T00:00:00Z"></time><div class="message-body">old</div></article>
</body></html>`)
	}))
	defer srv.Close()

	c := NewClient(Options{FeedURL: srv.URL + "/f.rss"}, nil)
	posts, err := c.ListPosts(context.Background(), connector.ThreadItem{URL: srv.URL + "/threads/1/"}, time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("err=%v", err)
	}
	if len(posts) != 1 || posts[0].ExternalID != "1" {
		t.Fatalf("posts=%+v", posts)
	}
}

func TestListPostsFetchError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := NewClient(Options{FeedURL: srv.URL + "/f.rss"}, nil)
	_, err := c.ListPosts(context.Background(), connector.ThreadItem{URL: srv.URL + "/threads/1/"}, time.Time{})
	var fe *connector.FetchError
	if !errors.As(err, &fe) || fe.Status != http.StatusServiceUnavailable {
		t.Fatalf("err=%v want 503 FetchError", err)
	}
}

func TestListPostsFetchesFirstPageOnce(t *testing.T) {
	base := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	fs := &forumServer{hits: map[string]int{}, base: base}
	srv := httptest.NewServer(fs)
	defer srv.Close()

	c := NewClient(Options{FeedURL: srv.URL + "/forums/rockets.4/index.rss", MaxPages: 10}, nil)
	thread := connector.ThreadItem{ExternalID: "100", URL: srv.URL + "/threads/new-thread.100/"}
	posts, err := c.ListPosts(context.Background(), thread, time.Time{})
	if err != nil {
		t.Fatalf("err=%v", err)
	}
	if len(posts) != 10 {
		t.Fatalf("posts=%d want=10", len(posts))
	}
	if last := posts[len(posts)-1].ExternalID; last != "11" {
		t.Fatalf("last post=%s want=11", last)
	}
	fs.mu.Lock()
	defer fs.mu.Unlock()
	if n := fs.hits["/threads/new-thread.100/"]; n != 1 {
		t.Fatalf("first page hits=%d want=1", n)
	}
}
