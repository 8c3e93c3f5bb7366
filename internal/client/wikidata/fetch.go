package wikidata

import (
	"context"
	"sort"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"fansapprove/internal/roster"
	"fansapprove/internal/textnorm"
)

type FetchOptions struct {
	PageSize  int
	MaxRows   int
	PageSleep time.Duration
}

// FetchPlayers pages through the roster query until an empty page or
// MaxRows rows, then groups rows by QID and cleans the result. Players
// without a label are dropped; output is sorted by QID.
func (c *Client) FetchPlayers(ctx context.Context, opts FetchOptions, denylist map[string]struct{}) ([]roster.Entry, error) {
	pageSize := opts.PageSize
	if pageSize <= 0 {
		pageSize = 500
	}
	acc := newAccumulator()
	fetched := 0
	for offset := 0; ; offset += pageSize {
		res, err := c.Query(ctx, pageQuery(pageSize, offset))
		if err != nil {
			return nil, err
		}
		rows := res.Results.Bindings
		if len(rows) == 0 {
			break
		}
		for _, row := range rows {
			acc.add(row)
		}
		fetched += len(rows)
		if c.logger != nil {
			c.logger.Debug("wikidata page fetched", zap.Int("offset", offset), zap.Int("rows", len(rows)))
		}
		if opts.MaxRows > 0 && fetched >= opts.MaxRows {
			break
		}
		if err := c.sleep(ctx, opts.PageSleep); err != nil {
			return nil, err
		}
	}
	return acc.entries(denylist), nil
}

type accumulator struct {
	players map[string]*rawPlayer
}

type rawPlayer struct {
	qid       string
	fullName  string
	aliases   []string
	positions map[string]struct{}
	birthDate string
	debutYear int
	teams     []roster.Membership
	teamSeen  map[roster.Membership]struct{}
}

func newAccumulator() *accumulator {
	return &accumulator{players: map[string]*rawPlayer{}}
}

func (a *accumulator) add(row Binding) {
	qid := extractQID(row.Value("player"))
	if qid == "" {
		return
	}
	p := a.players[qid]
	if p == nil {
		p = &rawPlayer{
			qid:       qid,
			fullName:  row.Value("playerLabel"),
			positions: map[string]struct{}{},
			teamSeen:  map[roster.Membership]struct{}{},
		}
		a.players[qid] = p
	}
	if alias := row.Value("alias"); alias != "" {
		p.aliases = append(p.aliases, alias)
	}
	if pos := row.Value("positionLabel"); pos != "" {
		p.positions[pos] = struct{}{}
	}
	if bd := datePart(row.Value("birthDate")); bd != "" && p.birthDate == "" {
		p.birthDate = bd
	}
	start := datePart(row.Value("nbaStart"))
	if year := yearPart(start); year > 0 && (p.debutYear == 0 || year < p.debutYear) {
		p.debutYear = year
	}
	if team := row.Value("teamLabel"); team != "" {
		m := roster.Membership{Team: team, Start: start, End: datePart(row.Value("nbaEnd"))}
		if _, ok := p.teamSeen[m]; !ok {
			p.teamSeen[m] = struct{}{}
			p.teams = append(p.teams, m)
		}
	}
}

func (a *accumulator) entries(denylist map[string]struct{}) []roster.Entry {
	out := make([]roster.Entry, 0, len(a.players))
	for _, p := range a.players {
		if p.fullName == "" || p.fullName == p.qid {
			continue
		}
		entry := roster.Entry{
			WikidataQID:    p.qid,
			FullName:       p.fullName,
			NormalizedName: textnorm.Normalize(p.fullName),
			Aliases:        roster.BuildAliases(p.fullName, p.aliases, denylist),
			Positions:      sortedKeys(p.positions),
			BirthDate:      p.birthDate,
			Teams:          p.teams,
		}
		if p.debutYear > 0 {
			year := p.debutYear
			entry.DebutYear = &year
		}
		entry.Team, entry.Retired = CurrentTeam(p.teams)
		out = append(out, entry)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].WikidataQID < out[j].WikidataQID })
	return out
}

// CurrentTeam picks the current team from dated memberships: an open stint
// (start set, no end) wins, latest start first; otherwise the stint that
// ended last. retired is nil when no membership carries dates.
func CurrentTeam(teams []roster.Membership) (*string, *bool) {
	var open, closed *roster.Membership
	for i := range teams {
		m := &teams[i]
		switch {
		case m.End == "" && m.Start != "":
			if open == nil || m.Start > open.Start {
				open = m
			}
		case m.End != "":
			if closed == nil || m.End > closed.End {
				closed = m
			}
		}
	}
	if open != nil {
		team, retired := open.Team, false
		return &team, &retired
	}
	if closed != nil {
		team, retired := closed.Team, true
		return &team, &retired
	}
	return nil, nil
}

func extractQID(uri string) string {
	if i := strings.LastIndex(uri, "/"); i >= 0 {
		return uri[i+1:]
	}
	return uri
}

func datePart(v string) string {
	if i := strings.Index(v, "T"); i >= 0 {
		return v[:i]
	}
	return v
}

func yearPart(v string) int {
	if v == "" {
		return 0
	}
	year, err := strconv.Atoi(strings.SplitN(strings.TrimPrefix(v, "+"), "-", 2)[0])
	if err != nil {
		return 0
	}
	return year
}

func sortedKeys(m map[string]struct{}) []string {
	if len(m) == 0 {
		return nil
	}
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
