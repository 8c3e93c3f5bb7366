package forum

import (
	"io"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/araddon/dateparse"
	"github.com/mmcdole/gofeed"
	"golang.org/x/net/html"

	"fansapprove/internal/connector"
)

var (
	threadIDRe    = regexp.MustCompile(`/threads/[^/]*\.(\d+)/`)
	threadIDAltRe = regexp.MustCompile(`/threads/(\d+)/`)
	postIDRe      = regexp.MustCompile(`post-(\d+)`)
	postURLRe     = regexp.MustCompile(`/posts/(\d+)/`)
	digitsRe      = regexp.MustCompile(`\d+`)
)

// Elements stripped from a post body before it reaches matching or scoring.
var bodyNoise = []string{".bbCodeBlock--quote", "blockquote", ".message-signature", ".message-lastEdit"}

// ExtractThreadID accepts /threads/<slug>.<id>/ and /threads/<id>/ URLs.
func ExtractThreadID(link string) string {
	if m := threadIDRe.FindStringSubmatch(link); m != nil {
		return m[1]
	}
	if m := threadIDAltRe.FindStringSubmatch(link); m != nil {
		return m[1]
	}
	return ""
}

// PageURL builds the URL of page n of a thread; page 1 is the thread URL itself.
func PageURL(threadURL string, page int) string {
	if page <= 1 {
		return threadURL
	}
	if strings.HasSuffix(threadURL, "/") {
		return threadURL + "page-" + strconv.Itoa(page)
	}
	return threadURL + "/page-" + strconv.Itoa(page)
}

// SourceName derives "clutchfans-<slug>" from a feed URL, using the parent
// segment when the feed is an index.rss.
func SourceName(feedURL string) string {
	slug := "forum"
	if u, err := url.Parse(feedURL); err == nil {
		var parts []string
		for _, p := range strings.Split(u.Path, "/") {
			if p != "" {
				parts = append(parts, p)
			}
		}
		if len(parts) > 0 {
			slug = parts[len(parts)-1]
			if slug == "index.rss" && len(parts) >= 2 {
				slug = parts[len(parts)-2]
			}
		}
	}
	return "clutchfans-" + slug
}

// ParseFeed reads an RSS or Atom feed. Items without a link, a publish time
// or a recognizable thread id are dropped.
func ParseFeed(r io.Reader) ([]connector.ThreadItem, error) {
	feed, err := gofeed.NewParser().Parse(r)
	if err != nil {
		return nil, err
	}
	items := make([]connector.ThreadItem, 0, len(feed.Items))
	for _, it := range feed.Items {
		link := strings.TrimSpace(it.Link)
		if link == "" {
			continue
		}
		published := it.PublishedParsed
		if published == nil {
			published = it.UpdatedParsed
		}
		if published == nil {
			continue
		}
		id := ExtractThreadID(link)
		if id == "" {
			continue
		}
		author := ""
		if it.Author != nil {
			author = it.Author.Name
		}
		items = append(items, connector.ThreadItem{
			ExternalID: id,
			Title:      strings.TrimSpace(it.Title),
			Author:     author,
			URL:        link,
			CreatedAt:  published.UTC(),
		})
	}
	return items, nil
}

// ParseThreadHTML extracts posts from one rendered thread page along with the
// thread's last page number (1 when no pagination is present). Posts missing
// an id or a timestamp are skipped.
func ParseThreadHTML(r io.Reader, threadURL string) ([]connector.PostItem, int, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, 0, err
	}
	var posts []connector.PostItem
	doc.Find("li.message, article.message").Each(func(_ int, msg *goquery.Selection) {
		id := postID(msg)
		if id == "" {
			return
		}
		created, ok := postTime(msg)
		if !ok {
			return
		}
		posts = append(posts, connector.PostItem{
			ExternalID: id,
			Author:     postAuthor(msg),
			CreatedAt:  created,
			Body:       postBody(msg),
			Score:      postScore(msg),
			URL:        threadURL + "#post-" + id,
		})
	})
	return posts, lastPage(doc), nil
}

func postID(msg *goquery.Selection) string {
	for _, attr := range []string{"id", "data-content"} {
		if v, ok := msg.Attr(attr); ok {
			if m := postIDRe.FindStringSubmatch(v); m != nil {
				return m[1]
			}
		}
	}
	if n := msg.Get(0); n != nil {
		for _, a := range n.Attr {
			if m := postIDRe.FindStringSubmatch(a.Val); m != nil {
				return m[1]
			}
		}
	}
	id := ""
	msg.Find("a[href]").EachWithBreak(func(_ int, a *goquery.Selection) bool {
		href, _ := a.Attr("href")
		if m := postURLRe.FindStringSubmatch(href); m != nil {
			id = m[1]
			return false
		}
		return true
	})
	return id
}

func postTime(msg *goquery.Selection) (time.Time, bool) {
	if abbr := msg.Find("abbr.DateTime").First(); abbr.Length() > 0 {
		if t, ok := unixAttr(abbr, "data-time"); ok {
			return t, true
		}
	}
	tag := msg.Find("time").First()
	if tag.Length() == 0 {
		return time.Time{}, false
	}
	if t, ok := unixAttr(tag, "data-time"); ok {
		return t, true
	}
	if v, ok := tag.Attr("datetime"); ok {
		if t, err := parseTime(v); err == nil {
			return t, true
		}
	}
	if text := strings.TrimSpace(tag.Text()); text != "" {
		if t, err := parseTime(text); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func unixAttr(sel *goquery.Selection, attr string) (time.Time, bool) {
	v, ok := sel.Attr(attr)
	if !ok {
		return time.Time{}, false
	}
	sec, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
	if err != nil {
		return time.Time{}, false
	}
	return time.Unix(sec, 0).UTC(), true
}

// parseTime treats values without a zone as UTC.
func parseTime(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t.UTC(), nil
	}
	t, err := dateparse.ParseIn(value, time.UTC)
	if err != nil {
		return time.Time{}, err
	}
	return t.UTC(), nil
}

func postAuthor(msg *goquery.Selection) string {
	return strings.TrimSpace(msg.Find(".message-name a, .message-name span, .username").First().Text())
}

func postScore(msg *goquery.Selection) int {
	for _, attr := range []string{"data-score", "data-reactionscore", "data-reaction-score"} {
		node := msg.Find("[" + attr + "]").First()
		if node.Length() == 0 {
			continue
		}
		v, _ := node.Attr(attr)
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			return n
		}
	}
	if summary := msg.Find(".reactionsBar-summary").First(); summary.Length() > 0 {
		if d := digitsRe.FindString(joinedText(summary.Get(0))); d != "" {
			if n, err := strconv.Atoi(d); err == nil {
				return n
			}
		}
	}
	return 0
}

func postBody(msg *goquery.Selection) string {
	body := msg.Find(".messageText").First()
	if body.Length() == 0 {
		body = msg.Find(".message-body .bbWrapper").First()
	}
	if body.Length() == 0 {
		body = msg.Find(".message-body").First()
	}
	if body.Length() == 0 {
		return ""
	}
	for _, sel := range bodyNoise {
		body.Find(sel).Remove()
	}
	return joinedText(body.Get(0))
}

// joinedText concatenates the trimmed, non-empty text nodes under n with
// single spaces.
func joinedText(n *html.Node) string {
	var parts []string
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			if s := strings.TrimSpace(n.Data); s != "" {
				parts = append(parts, s)
			}
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	if n != nil {
		walk(n)
	}
	return strings.Join(parts, " ")
}

func lastPage(doc *goquery.Document) int {
	maxPage := 0
	doc.Find(".pageNav-page").Each(func(_ int, s *goquery.Selection) {
		if n, err := strconv.Atoi(strings.TrimSpace(s.Text())); err == nil && n > maxPage {
			maxPage = n
		}
	})
	if maxPage > 0 {
		return maxPage
	}
	if v, ok := doc.Find(".PageNav").First().Attr("data-last"); ok {
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			return n
		}
	}
	if v, ok := doc.Find("[data-page-total]").First().Attr("data-page-total"); ok {
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			return n
		}
	}
	return 1
}
