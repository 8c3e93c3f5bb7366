package wikidata

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"fansapprove/internal/roster"
)

func testClient(url string, waits *[]time.Duration) *Client {
	c := NewClient(Options{Endpoint: url, UserAgent: "test-agent", MaxAttempts: 3})
	c.sleep = func(ctx context.Context, d time.Duration) error {
		*waits = append(*waits, d)
		return nil
	}
	return c
}

func TestQueryRetriesOn429(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.Header.Get("Accept") != "application/sparql-results+json" {
			t.Errorf("method=%s accept=%s", r.Method, r.Header.Get("Accept"))
		}
		if err := r.ParseForm(); err != nil || !strings.Contains(r.PostForm.Get("query"), "SELECT") {
			t.Errorf("query form missing: %v", err)
		}
		switch atomic.AddInt32(&calls, 1) {
		case 1:
			w.Header().Set("Retry-After", "7")
			w.WriteHeader(http.StatusTooManyRequests)
		case 2:
			w.WriteHeader(http.StatusTooManyRequests)
		default:
			_, _ = w.Write([]byte(`{"results":{"bindings":[{"player":{"type":"uri","value":"http://www.wikidata.org/entity/Q1"}}]}}`))
		}
	}))
	defer srv.Close()

	var waits []time.Duration
	res, err := testClient(srv.URL, &waits).Query(context.Background(), "SELECT ?x WHERE {}")
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(res.Results.Bindings) != 1 {
		t.Fatalf("bindings=%d", len(res.Results.Bindings))
	}
	if len(waits) != 2 || waits[0] != 7*time.Second || waits[1] != 5*time.Second {
		t.Fatalf("waits=%v want=[7s 5s]", waits)
	}
}

func TestQueryExhausted(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	var waits []time.Duration
	_, err := testClient(srv.URL, &waits).Query(context.Background(), "SELECT ?x WHERE {}")
	if !errors.Is(err, ErrExhausted) {
		t.Fatalf("err=%v want ErrExhausted", err)
	}
	if len(waits) != 2 || waits[0] != 2*time.Second || waits[1] != 3*time.Second {
		t.Fatalf("waits=%v want=[2s 3s]", waits)
	}
}

const pageOne = `{"results":{"bindings":[
 {"player":{"value":"http://www.wikidata.org/entity/Q2"},"playerLabel":{"value":"Jalen Green"},"alias":{"value":"JG"},"positionLabel":{"value":"shooting guard"},"birthDate":{"value":"2002-02-09T00:00:00Z"},"teamLabel":{"value":"Houston Rockets"},"nbaStart":{"value":"2021-10-20T00:00:00Z"}},
 {"player":{"value":"http://www.wikidata.org/entity/Q2"},"playerLabel":{"value":"Jalen Green"},"alias":{"value":"Jalen"},"positionLabel":{"value":"point guard"}},
 {"player":{"value":"http://www.wikidata.org/entity/Q1"},"playerLabel":{"value":"Yao Ming"},"teamLabel":{"value":"Houston Rockets"},"nbaStart":{"value":"2002-10-30T00:00:00Z"},"nbaEnd":{"value":"2011-07-20T00:00:00Z"}}
]}}`

const pageTwo = `{"results":{"bindings":[
 {"player":{"value":"http://www.wikidata.org/entity/Q3"},"playerLabel":{"value":"Q3"}},
 {"player":{"value":"http://www.wikidata.org/entity/Q2"},"playerLabel":{"value":"Jalen Green"},"positionLabel":{"value":"point guard"}}
]}}`

func TestFetchPlayersGroupsPages(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = r.ParseForm()
		q := r.PostForm.Get("query")
		switch {
		case strings.Contains(q, "OFFSET 0"):
			_, _ = w.Write([]byte(pageOne))
		case strings.Contains(q, "OFFSET 3"):
			_, _ = w.Write([]byte(pageTwo))
		default:
			_, _ = w.Write([]byte(`{"results":{"bindings":[]}}`))
		}
		atomic.AddInt32(&calls, 1)
	}))
	defer srv.Close()

	var waits []time.Duration
	c := testClient(srv.URL, &waits)
	players, err := c.FetchPlayers(context.Background(), FetchOptions{PageSize: 3, PageSleep: time.Second}, roster.DenylistSet([]string{"jalen"}))
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if calls != 3 {
		t.Fatalf("calls=%d want=3", calls)
	}
	if len(players) != 2 || players[0].WikidataQID != "Q1" || players[1].WikidataQID != "Q2" {
		t.Fatalf("players=%+v", players)
	}
	yao, green := players[0], players[1]
	if yao.Team == nil || *yao.Team != "Houston Rockets" || yao.Retired == nil || !*yao.Retired {
		t.Fatalf("yao=%+v", yao)
	}
	if green.Retired == nil || *green.Retired || green.BirthDate != "2002-02-09" || green.DebutYear == nil || *green.DebutYear != 2021 {
		t.Fatalf("green=%+v", green)
	}
	if strings.Join(green.Positions, ",") != "point guard,shooting guard" {
		t.Fatalf("positions=%v", green.Positions)
	}
	if strings.Join(green.Aliases, ",") != "Jalen Green" {
		t.Fatalf("aliases=%v", green.Aliases)
	}
	if green.NormalizedName != "jalen green" {
		t.Fatalf("normalized=%s", green.NormalizedName)
	}
}

func TestFetchPlayersStopsAtMaxRows(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		_, _ = w.Write([]byte(pageOne))
	}))
	defer srv.Close()

	var waits []time.Duration
	if _, err := testClient(srv.URL, &waits).FetchPlayers(context.Background(), FetchOptions{PageSize: 3, MaxRows: 5}, nil); err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if calls != 2 {
		t.Fatalf("calls=%d want=2", calls)
	}
}

func TestCurrentTeam(t *testing.T) {
	cases := []struct {
		name    string
		teams   []roster.Membership
		team    string
		retired *bool
	}{
		{"open stint wins", []roster.Membership{
			{Team: "A", Start: "2015-01-01", End: "2024-06-30"},
			{Team: "B", Start: "2024-07-01"},
		}, "B", boolPtr(false)},
		{"latest open start", []roster.Membership{
			{Team: "A", Start: "2019-01-01"},
			{Team: "B", Start: "2023-01-01"},
		}, "B", boolPtr(false)},
		{"latest end when none open", []roster.Membership{
			{Team: "A", Start: "2001-01-01", End: "2010-01-01"},
			{Team: "C", End: "2012-01-01"},
		}, "C", boolPtr(true)},
		{"undated", []roster.Membership{{Team: "A"}}, "", nil},
	}
	for _, tc := range cases {
		team, retired := CurrentTeam(tc.teams)
		got := ""
		if team != nil {
			got = *team
		}
		if got != tc.team {
			t.Fatalf("%s: team=%q want=%q", tc.name, got, tc.team)
		}
		if (retired == nil) != (tc.retired == nil) || (retired != nil && *retired != *tc.retired) {
			t.Fatalf("%s: retired=%v want=%v", tc.name, retired, tc.retired)
		}
	}
}

func boolPtr(v bool) *bool { return &v }
