package service

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	json "github.com/goccy/go-json"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"fansapprove/internal/client/wikidata"
	"fansapprove/internal/metrics"
	"fansapprove/internal/models"
	"fansapprove/internal/repository"
	"fansapprove/internal/roster"
	"fansapprove/internal/textnorm"
)

const rosterScope = "roster:wikidata"

type RosterFetcher interface {
	FetchPlayers(ctx context.Context, opts wikidata.FetchOptions, denylist map[string]struct{}) ([]roster.Entry, error)
}

// RosterSyncService refreshes the player and alias tables from the
// knowledge base, going through a snapshot file on disk.
type RosterSyncService struct {
	Repo         repository.Repository
	Fetcher      RosterFetcher
	Logger       *zap.Logger
	Fetch        wikidata.FetchOptions
	SnapshotPath string
	DenylistPath string
	SeedPath     string
	// ActiveOnly drops retired players from a fetched roster before reconcile.
	ActiveOnly bool
}

type ReconcileResult struct {
	Players      int    `json:"players"`
	Created      int    `json:"created"`
	Updated      int    `json:"updated"`
	AliasesAdded int    `json:"aliases_added"`
	Skipped      int    `json:"skipped"`
	SnapshotPath string `json:"snapshot_path,omitempty"`
}

// Sync fetches the roster, writes the snapshot and reconciles it.
func (s *RosterSyncService) Sync(ctx context.Context) (ReconcileResult, error) {
	if s == nil || s.Fetcher == nil {
		return ReconcileResult{}, fmt.Errorf("roster fetcher not configured")
	}
	denylist, err := roster.LoadDenylist(s.DenylistPath)
	if err != nil {
		return ReconcileResult{}, fmt.Errorf("load alias denylist: %w", err)
	}
	players, err := s.fetch(ctx, denylist, s.SnapshotPath)
	if err != nil {
		writeSyncError(ctx, s.Repo, rosterScope, err)
		return ReconcileResult{}, err
	}
	result, err := s.apply(ctx, players, denylist)
	if err != nil {
		writeSyncError(ctx, s.Repo, rosterScope, err)
		return result, err
	}
	result.SnapshotPath = s.SnapshotPath
	s.writeSyncSuccess(ctx, result)
	return result, nil
}

// FetchSnapshot fetches the roster and writes it to path (the configured
// snapshot when empty) without touching the database.
func (s *RosterSyncService) FetchSnapshot(ctx context.Context, path string) (int, error) {
	if s == nil || s.Fetcher == nil {
		return 0, fmt.Errorf("roster fetcher not configured")
	}
	if strings.TrimSpace(path) == "" {
		path = s.SnapshotPath
	}
	if path == "" {
		return 0, fmt.Errorf("snapshot path not configured")
	}
	denylist, err := roster.LoadDenylist(s.DenylistPath)
	if err != nil {
		return 0, fmt.Errorf("load alias denylist: %w", err)
	}
	players, err := s.fetch(ctx, denylist, path)
	return len(players), err
}

func (s *RosterSyncService) fetch(ctx context.Context, denylist map[string]struct{}, path string) ([]roster.Entry, error) {
	players, err := s.Fetcher.FetchPlayers(ctx, s.Fetch, denylist)
	if err != nil {
		return nil, fmt.Errorf("fetch roster: %w", err)
	}
	if s.ActiveOnly {
		players = activeOnly(players)
	}
	if path != "" {
		snap := roster.Snapshot{GeneratedAt: time.Now().UTC(), Source: "wikidata", Players: players}
		if err := roster.WriteSnapshot(path, snap); err != nil {
			return nil, fmt.Errorf("write snapshot: %w", err)
		}
	}
	return players, nil
}

// Reconcile loads an existing snapshot (or the configured one when path is
// empty) into the database without fetching.
func (s *RosterSyncService) Reconcile(ctx context.Context, path string) (ReconcileResult, error) {
	if strings.TrimSpace(path) == "" {
		path = s.SnapshotPath
	}
	snap, err := roster.ReadSnapshot(path)
	if err != nil {
		return ReconcileResult{}, err
	}
	denylist, err := roster.LoadDenylist(s.DenylistPath)
	if err != nil {
		return ReconcileResult{}, fmt.Errorf("load alias denylist: %w", err)
	}
	result, err := s.apply(ctx, snap.Players, denylist)
	result.SnapshotPath = path
	return result, err
}

// Seed reconciles a hand-written player list, by default the configured
// seed file.
func (s *RosterSyncService) Seed(ctx context.Context, path string) (ReconcileResult, error) {
	if strings.TrimSpace(path) == "" {
		path = s.SeedPath
	}
	if path == "" {
		return ReconcileResult{}, fmt.Errorf("seed path not configured")
	}
	return s.Reconcile(ctx, path)
}

// SeedTeam reconciles a JSON array of player names, all tagged with team.
func (s *RosterSyncService) SeedTeam(ctx context.Context, path, team string) (ReconcileResult, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return ReconcileResult{}, fmt.Errorf("read team roster: %w", err)
	}
	var names []string
	if err := json.Unmarshal(raw, &names); err != nil {
		return ReconcileResult{}, fmt.Errorf("decode team roster: %w", err)
	}
	denylist, err := roster.LoadDenylist(s.DenylistPath)
	if err != nil {
		return ReconcileResult{}, fmt.Errorf("load alias denylist: %w", err)
	}
	result, err := s.apply(ctx, roster.TeamEntries(names, team), denylist)
	result.SnapshotPath = path
	return result, err
}

func (s *RosterSyncService) apply(ctx context.Context, players []roster.Entry, denylist map[string]struct{}) (ReconcileResult, error) {
	var result ReconcileResult
	if s.Repo == nil {
		return result, nil
	}
	err := s.Repo.InTx(ctx, func(tx *gorm.DB) error {
		var err error
		result, err = ReconcilePlayers(ctx, s.Repo, tx, players, denylist, s.Logger)
		return err
	})
	if err != nil {
		return ReconcileResult{}, fmt.Errorf("reconcile roster: %w", err)
	}
	metrics.RosterReconcileTotal.WithLabelValues("created").Add(float64(result.Created))
	metrics.RosterReconcileTotal.WithLabelValues("updated").Add(float64(result.Updated))
	metrics.RosterReconcileTotal.WithLabelValues("aliases_added").Add(float64(result.AliasesAdded))
	if s.Logger != nil {
		s.Logger.Info("roster reconciled",
			zap.Int("players", result.Players),
			zap.Int("created", result.Created),
			zap.Int("updated", result.Updated),
			zap.Int("aliases_added", result.AliasesAdded),
			zap.Int("skipped", result.Skipped),
		)
	}
	return result, nil
}

// ReconcilePlayers upserts players inside tx. A player is matched by QID,
// then by normalized name. Team is only overwritten when the entry carries
// one, and a QID is only backfilled, never replaced. Missing aliases are
// added; existing ones are kept.
func ReconcilePlayers(ctx context.Context, repo repository.PlayerRepository, tx *gorm.DB, players []roster.Entry, denylist map[string]struct{}, log *zap.Logger) (ReconcileResult, error) {
	if log == nil {
		log = zap.NewNop()
	}
	var result ReconcileResult
	for _, entry := range players {
		fullName := strings.TrimSpace(entry.FullName)
		if fullName == "" {
			result.Skipped++
			continue
		}
		result.Players++
		normalized := strings.TrimSpace(entry.NormalizedName)
		if normalized == "" {
			normalized = textnorm.Normalize(fullName)
		}
		qid := strings.TrimSpace(entry.WikidataQID)

		var player *models.Player
		var err error
		if qid != "" {
			if player, err = repo.FindPlayerByQIDTx(ctx, tx, qid); err != nil {
				return result, err
			}
		}
		if player == nil {
			if player, err = repo.FindPlayerByNormalizedNameTx(ctx, tx, normalized); err != nil {
				return result, err
			}
		}

		if player == nil {
			player = &models.Player{
				FullName:       fullName,
				NormalizedName: normalized,
				WikidataQID:    strPtr(qid),
				Team:           entry.Team,
				Active:         entry.IsActive(nil),
			}
			applyProfile(player, entry)
			if err := repo.CreatePlayerTx(ctx, tx, player); err != nil {
				return result, fmt.Errorf("create player %s: %w", fullName, err)
			}
			result.Created++
		} else {
			if player.NormalizedName != normalized {
				holder, err := repo.FindPlayerByNormalizedNameTx(ctx, tx, normalized)
				if err != nil {
					return result, err
				}
				if holder != nil && holder.ID != player.ID {
					log.Warn("roster rename collides with another player",
						zap.String("qid", qid),
						zap.String("normalized_name", normalized),
						zap.String("holder_id", holder.ID.String()),
					)
					result.Skipped++
					continue
				}
			}
			current := player.Active
			player.FullName = fullName
			player.NormalizedName = normalized
			if entry.Team != nil {
				player.Team = entry.Team
			}
			player.Active = entry.IsActive(&current)
			if qid != "" && player.WikidataQID == nil {
				player.WikidataQID = &qid
			}
			applyProfile(player, entry)
			player.UpdatedAt = time.Now().UTC()
			if err := repo.UpdatePlayerTx(ctx, tx, player); err != nil {
				return result, fmt.Errorf("update player %s: %w", fullName, err)
			}
			result.Updated++
		}

		existing, err := repo.ListAliasesByPlayerTx(ctx, tx, player.ID)
		if err != nil {
			return result, err
		}
		have := make(map[string]struct{}, len(existing))
		for _, a := range existing {
			have[a.NormalizedAlias] = struct{}{}
		}
		for _, text := range roster.BuildAliases(fullName, entry.Aliases, denylist) {
			norm := textnorm.Normalize(text)
			if _, ok := have[norm]; ok {
				continue
			}
			added, err := repo.InsertPlayerAliasTx(ctx, tx, &models.PlayerAlias{
				PlayerID:        player.ID,
				AliasText:       text,
				NormalizedAlias: norm,
			})
			if err != nil {
				return result, fmt.Errorf("add alias %q: %w", text, err)
			}
			have[norm] = struct{}{}
			if added {
				result.AliasesAdded++
			}
		}
	}
	return result, nil
}

// applyProfile copies optional profile fields, keeping stored values when
// the entry leaves them out.
func applyProfile(player *models.Player, entry roster.Entry) {
	if len(entry.Positions) > 0 {
		if raw, err := json.Marshal(entry.Positions); err == nil {
			player.Positions = datatypes.JSON(raw)
		}
	}
	if entry.BirthDate != "" {
		if bd, err := time.Parse(dayLayout, entry.BirthDate); err == nil {
			player.BirthDate = &bd
		}
	}
	if entry.DebutYear != nil {
		year := *entry.DebutYear
		player.DebutYear = &year
	}
}

func activeOnly(players []roster.Entry) []roster.Entry {
	out := players[:0:0]
	for _, p := range players {
		if p.IsActive(nil) {
			out = append(out, p)
		}
	}
	return out
}

func (s *RosterSyncService) writeSyncSuccess(ctx context.Context, result ReconcileResult) {
	if s.Repo == nil {
		return
	}
	now := time.Now().UTC()
	_ = s.Repo.InTx(ctx, func(tx *gorm.DB) error {
		return s.Repo.SaveSyncStateTx(ctx, tx, &models.SyncState{
			Scope:         rosterScope,
			LastSuccessAt: &now,
			LastAttemptAt: &now,
			StatsJSON: statsJSON(map[string]int{
				"players":       result.Players,
				"created":       result.Created,
				"updated":       result.Updated,
				"aliases_added": result.AliasesAdded,
			}),
		})
	})
}
