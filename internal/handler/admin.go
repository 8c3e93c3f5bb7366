package handler

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"fansapprove/internal/repository"
	"fansapprove/internal/roster"
	"fansapprove/internal/service"
)

// AdminHandler exposes manual triggers for the scheduled jobs. Every
// trigger runs in the request and returns the job's result.
type AdminHandler struct {
	Repo      repository.IngestRepository
	Ingest    *service.IngestService
	Aggregate *service.AggregationService
	Roster    *service.RosterSyncService
	Logger    *zap.Logger
	Now       func() time.Time
}

func (h *AdminHandler) Register(r *gin.Engine) {
	group := r.Group(adminPrefix)
	group.GET("/crawl-state", h.crawlState)
	group.POST("/ingest", h.ingest)
	group.POST("/reprocess", h.reprocess)
	group.POST("/aggregate", h.aggregate)
	group.GET("/roster", h.rosterStatus)
	group.POST("/roster/sync", h.rosterSync)
	group.POST("/roster/reconcile", h.rosterReconcile)
	group.POST("/roster/seed", h.rosterSeed)
}

func (h *AdminHandler) crawlState(c *gin.Context) {
	if h.Repo == nil {
		Error(c, http.StatusInternalServerError, "repo unavailable", nil)
		return
	}
	states, err := h.Repo.ListSyncStates(c.Request.Context())
	if err != nil {
		h.warn("list sync state failed", err)
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	Ok(c, states, nil)
}

// @Summary Run ingestion
// @Tags admin
// @Param source query string false "source name or type:name; all sources when empty"
// @Router /api/admin/ingest [post]
func (h *AdminHandler) ingest(c *gin.Context) {
	if h.Ingest == nil {
		Error(c, http.StatusInternalServerError, "service unavailable", nil)
		return
	}
	ctx := c.Request.Context()
	if name := strings.TrimSpace(c.Query("source")); name != "" {
		result, err := h.Ingest.RunByName(ctx, name)
		if errors.Is(err, service.ErrUnknownSource) {
			Error(c, http.StatusNotFound, err.Error(), map[string]any{"sources": h.Ingest.SourceNames()})
			return
		}
		if err != nil {
			h.warn("ingest failed", err)
			Error(c, http.StatusBadGateway, err.Error(), map[string]any{"result": result})
			return
		}
		Ok(c, result, nil)
		return
	}
	results, err := h.Ingest.RunAll(ctx)
	if err != nil {
		h.warn("ingest failed", err)
		Error(c, http.StatusBadGateway, err.Error(), map[string]any{"results": results})
		return
	}
	Ok(c, results, nil)
}

type reprocessRequest struct {
	CommentIDs []uint64 `json:"comment_ids"`
}

func (h *AdminHandler) reprocess(c *gin.Context) {
	if h.Ingest == nil {
		Error(c, http.StatusInternalServerError, "service unavailable", nil)
		return
	}
	var req reprocessRequest
	if err := c.ShouldBindJSON(&req); err != nil || len(req.CommentIDs) == 0 {
		Error(c, http.StatusBadRequest, "comment_ids required", nil)
		return
	}
	result, err := h.Ingest.Reprocess(c.Request.Context(), req.CommentIDs)
	if err != nil {
		h.warn("reprocess failed", err)
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	Ok(c, result, nil)
}

// @Summary Recompute daily metrics
// @Tags admin
// @Param day query string false "today|yesterday|YYYY-MM-DD, default yesterday"
// @Param from query string false "range start, YYYY-MM-DD"
// @Param to query string false "range end, YYYY-MM-DD"
// @Router /api/admin/aggregate [post]
func (h *AdminHandler) aggregate(c *gin.Context) {
	if h.Aggregate == nil {
		Error(c, http.StatusInternalServerError, "service unavailable", nil)
		return
	}
	ctx := c.Request.Context()
	now := h.now()
	fromRaw, toRaw := strings.TrimSpace(c.Query("from")), strings.TrimSpace(c.Query("to"))
	if fromRaw != "" || toRaw != "" {
		from, err := service.ParseDay(defaultString(fromRaw, toRaw), now)
		if err != nil {
			Error(c, http.StatusBadRequest, err.Error(), nil)
			return
		}
		to, err := service.ParseDay(defaultString(toRaw, fromRaw), now)
		if err != nil {
			Error(c, http.StatusBadRequest, err.Error(), nil)
			return
		}
		results, err := h.Aggregate.RecomputeRange(ctx, from, to)
		if err != nil {
			h.warn("aggregate failed", err)
			Error(c, http.StatusBadGateway, err.Error(), map[string]any{"results": results})
			return
		}
		Ok(c, results, nil)
		return
	}
	day, err := service.ParseDay(c.Query("day"), now)
	if err != nil {
		Error(c, http.StatusBadRequest, err.Error(), nil)
		return
	}
	result, err := h.Aggregate.RecomputeDay(ctx, day)
	if err != nil {
		h.warn("aggregate failed", err, zap.String("day", result.Date))
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	Ok(c, result, nil)
}

func (h *AdminHandler) rosterStatus(c *gin.Context) {
	if h.Roster == nil {
		Error(c, http.StatusInternalServerError, "service unavailable", nil)
		return
	}
	status, err := roster.Status(h.Roster.SnapshotPath)
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	Ok(c, status, nil)
}

func (h *AdminHandler) rosterSync(c *gin.Context) {
	if h.Roster == nil {
		Error(c, http.StatusInternalServerError, "service unavailable", nil)
		return
	}
	result, err := h.Roster.Sync(c.Request.Context())
	if err != nil {
		h.warn("roster sync failed", err)
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	Ok(c, result, nil)
}

// @Summary Reconcile the configured roster snapshot into the database
// @Tags admin
// @Router /api/admin/roster/reconcile [post]
func (h *AdminHandler) rosterReconcile(c *gin.Context) {
	if h.Roster == nil {
		Error(c, http.StatusInternalServerError, "service unavailable", nil)
		return
	}
	// Only configured files are read over HTTP; other paths go through fanctl.
	result, err := h.Roster.Reconcile(c.Request.Context(), "")
	h.reconciled(c, result, err)
}

func (h *AdminHandler) rosterSeed(c *gin.Context) {
	if h.Roster == nil {
		Error(c, http.StatusInternalServerError, "service unavailable", nil)
		return
	}
	result, err := h.Roster.Seed(c.Request.Context(), "")
	h.reconciled(c, result, err)
}

func (h *AdminHandler) reconciled(c *gin.Context, result service.ReconcileResult, err error) {
	if errors.Is(err, roster.ErrSnapshotMissing) {
		Error(c, http.StatusNotFound, err.Error(), nil)
		return
	}
	if err != nil {
		h.warn("roster reconcile failed", err)
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	Ok(c, result, nil)
}

func (h *AdminHandler) now() time.Time {
	if h.Now != nil {
		return h.Now()
	}
	return time.Now().UTC()
}

func (h *AdminHandler) warn(msg string, err error, fields ...zap.Field) {
	if h.Logger != nil {
		h.Logger.Warn(msg, append(fields, zap.Error(err))...)
	}
}
