package service

import (
	"context"
	"strings"
	"time"

	json "github.com/goccy/go-json"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"fansapprove/internal/models"
	"fansapprove/internal/repository"
)

type syncStateStore interface {
	repository.Transactor
	GetSyncState(ctx context.Context, scope string) (*models.SyncState, error)
	SaveSyncStateTx(ctx context.Context, tx *gorm.DB, state *models.SyncState) error
}

// writeSyncError records a failed attempt and keeps the previous success
// timestamp and stats.
func writeSyncError(ctx context.Context, repo syncStateStore, scope string, err error) {
	if repo == nil || err == nil {
		return
	}
	now := time.Now().UTC()
	state := &models.SyncState{Scope: scope}
	if prev, getErr := repo.GetSyncState(ctx, scope); getErr == nil && prev != nil {
		state = prev
	}
	state.LastAttemptAt = &now
	state.LastError = strPtr(err.Error())
	_ = repo.InTx(ctx, func(tx *gorm.DB) error {
		return repo.SaveSyncStateTx(ctx, tx, state)
	})
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

func statsJSON(stats map[string]int) datatypes.JSON {
	if len(stats) == 0 {
		return datatypes.JSON([]byte("null"))
	}
	payload, err := json.Marshal(stats)
	if err != nil {
		return datatypes.JSON([]byte("null"))
	}
	return datatypes.JSON(payload)
}

func strPtr(s string) *string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	return &s
}

func timePtr(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	t = t.UTC()
	return &t
}
