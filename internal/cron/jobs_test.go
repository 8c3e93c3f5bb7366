package cronrunner

import (
	"context"
	"errors"
	"testing"
	"time"

	"fansapprove/internal/config"
	"fansapprove/internal/connector"
	"fansapprove/internal/service"
)

type flagSet map[string]bool

func (f flagSet) IsEnabled(ctx context.Context, key string, fallback bool) bool {
	if v, ok := f[key]; ok {
		return v
	}
	return fallback
}

type stubConn struct{ sourceType, name string }

func (c stubConn) SourceType() string { return c.sourceType }
func (c stubConn) SourceName() string { return c.name }
func (c stubConn) ListRecentThreads(ctx context.Context, since time.Time) ([]connector.ThreadItem, error) {
	return nil, nil
}
func (c stubConn) ListPosts(ctx context.Context, thread connector.ThreadItem, cutoff time.Time) ([]connector.PostItem, error) {
	return nil, nil
}

type countingRunner struct{ calls map[string]int }

func (r *countingRunner) RunSource(ctx context.Context, conn connector.Connector) (service.IngestResult, error) {
	r.calls[conn.SourceType()+":"+conn.SourceName()]++
	return service.IngestResult{Source: conn.SourceName()}, nil
}

type countingAggregator struct{ calls int }

func (a *countingAggregator) RecomputeRecent(ctx context.Context) ([]service.AggregateResult, error) {
	a.calls++
	return []service.AggregateResult{{Date: "2024-03-09"}}, nil
}

type failingRoster struct{ calls int }

func (r *failingRoster) Sync(ctx context.Context) (service.ReconcileResult, error) {
	r.calls++
	return service.ReconcileResult{}, errors.New("endpoint down")
}

func TestJobsRespectFeatureSwitches(t *testing.T) {
	ctx := context.Background()
	reddit := stubConn{"reddit", "nba"}
	forum := stubConn{"forum", "forum.example.com"}
	ingest := &countingRunner{calls: map[string]int{}}
	agg := &countingAggregator{}
	rost := &failingRoster{}
	jobs := &Jobs{
		Flags:      flagSet{service.FeatureIngestForum: false},
		Ingest:     ingest,
		Connectors: []connector.Connector{reddit, forum},
		Aggregate:  agg,
		Roster:     rost,
	}

	jobs.IngestJob(reddit)(ctx)
	jobs.IngestJob(forum)(ctx)
	if ingest.calls["reddit:nba"] != 1 || ingest.calls["forum:forum.example.com"] != 0 {
		t.Fatalf("ingest calls=%v", ingest.calls)
	}

	jobs.AggregateJob()(ctx)
	if agg.calls != 1 {
		t.Fatalf("aggregate calls=%d want=1", agg.calls)
	}

	// roster sync is off unless switched on
	jobs.RosterJob()(ctx)
	if rost.calls != 0 {
		t.Fatalf("roster calls=%d want=0", rost.calls)
	}
	jobs.Flags = flagSet{service.FeatureRosterSync: true}
	jobs.RosterJob()(ctx)
	if rost.calls != 1 {
		t.Fatalf("roster calls=%d want=1", rost.calls)
	}
}

func TestRegisterAddsEntryPerSource(t *testing.T) {
	jobs := &Jobs{
		Ingest:     &countingRunner{calls: map[string]int{}},
		Connectors: []connector.Connector{stubConn{"reddit", "nba"}, stubConn{"reddit", "rockets"}},
		Aggregate:  &countingAggregator{},
		Roster:     &failingRoster{},
	}
	r := New(nil, context.Background())
	err := jobs.Register(r, config.CronConfig{
		Ingest:     "0 */15 * * * *",
		Aggregate:  "0 10 * * * *",
		RosterSync: "",
	})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if r.Len() != 3 {
		t.Fatalf("entries=%d want=3", r.Len())
	}

	bad := New(nil, context.Background())
	if err := jobs.Register(bad, config.CronConfig{Aggregate: "every tuesday"}); err == nil {
		t.Fatalf("expected error for invalid spec")
	}
}
