package handler

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/datatypes"

	"fansapprove/internal/repository"
	"fansapprove/internal/service"
	"fansapprove/internal/textnorm"
)

const (
	defaultMetricsWindowDays = 30
	narrativeTerms           = 5
)

var playerOrderColumns = map[string]string{
	"name":       "normalized_name",
	"team":       "team",
	"created_at": "created_at",
	"updated_at": "updated_at",
}

// PlayersHandler serves the read side: players, their daily metrics and a
// short narrative built from the day's top terms.
type PlayersHandler struct {
	Repo   repository.Repository
	Logger *zap.Logger
	Now    func() time.Time
}

func (h *PlayersHandler) Register(r *gin.Engine) {
	group := r.Group("/api/players")
	group.GET("", h.list)
	group.GET("/:id", h.get)
	group.GET("/:id/metrics", h.metrics)
	group.GET("/:id/narratives", h.narrative)
}

// @Summary List players
// @Tags players
// @Param query query string false "name fragment"
// @Param active query bool false "active only"
// @Param team query string false "team label"
// @Param order_by query string false "name|team|created_at|updated_at"
// @Param asc query bool false "ascending"
// @Router /api/players [get]
func (h *PlayersHandler) list(c *gin.Context) {
	if h.Repo == nil {
		Error(c, http.StatusInternalServerError, "repo unavailable", nil)
		return
	}
	params := repository.ListPlayersParams{
		Limit:   intQuery(c, "limit", 100),
		Offset:  intQuery(c, "offset", 0),
		Active:  boolQueryPtr(c, "active"),
		Team:    strQueryPtr(c, "team"),
		OrderBy: parseOrder(c.Query("order_by"), playerOrderColumns),
		Asc:     boolQueryPtr(c, "asc"),
	}
	if params.Asc == nil {
		params.Asc = boolPtr(true)
	}
	if q := textnorm.Normalize(c.Query("query")); q != "" {
		params.Name = &q
	}
	ctx := c.Request.Context()
	items, err := h.Repo.ListPlayers(ctx, params)
	if err != nil {
		h.warn("list players failed", err)
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	total, err := h.Repo.CountPlayers(ctx, params)
	if err != nil {
		h.warn("count players failed", err)
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	Ok(c, items, paginationMeta(params.Limit, params.Offset, total))
}

func (h *PlayersHandler) get(c *gin.Context) {
	id, ok := h.playerID(c)
	if !ok {
		return
	}
	item, err := h.Repo.GetPlayer(c.Request.Context(), id)
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	if item == nil {
		Error(c, http.StatusNotFound, "player not found", nil)
		return
	}
	Ok(c, item, nil)
}

// @Summary Daily metrics for a player
// @Tags players
// @Param from query string false "YYYY-MM-DD, default 30 days before to"
// @Param to query string false "YYYY-MM-DD, default today"
// @Router /api/players/{id}/metrics [get]
func (h *PlayersHandler) metrics(c *gin.Context) {
	id, ok := h.playerID(c)
	if !ok {
		return
	}
	now := h.now()
	to, err := service.ParseDay(defaultString(c.Query("to"), "today"), now)
	if err != nil {
		Error(c, http.StatusBadRequest, err.Error(), nil)
		return
	}
	from := to.AddDate(0, 0, -(defaultMetricsWindowDays - 1))
	if v := strings.TrimSpace(c.Query("from")); v != "" {
		if from, err = service.ParseDay(v, now); err != nil {
			Error(c, http.StatusBadRequest, err.Error(), nil)
			return
		}
	}
	if to.Before(from) {
		Error(c, http.StatusBadRequest, "to must not be before from", nil)
		return
	}
	items, err := h.Repo.ListPlayerDailyMetrics(c.Request.Context(), repository.ListDailyMetricsParams{
		PlayerID: id,
		From:     &from,
		To:       &to,
		Limit:    intQuery(c, "limit", 0),
	})
	if err != nil {
		h.warn("list player metrics failed", err)
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	Ok(c, items, map[string]any{
		"from": from.Format(time.DateOnly),
		"to":   to.Format(time.DateOnly),
	})
}

type narrativeResponse struct {
	PlayerID uuid.UUID      `json:"player_id"`
	Date     string         `json:"date"`
	TopTerms datatypes.JSON `json:"top_terms"`
	Summary  string         `json:"summary"`
}

func (h *PlayersHandler) narrative(c *gin.Context) {
	id, ok := h.playerID(c)
	if !ok {
		return
	}
	day, err := service.ParseDay(c.Query("date"), h.now())
	if err != nil {
		Error(c, http.StatusBadRequest, err.Error(), nil)
		return
	}
	metric, err := h.Repo.GetPlayerDailyMetric(c.Request.Context(), id, day)
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	if metric == nil {
		Error(c, http.StatusNotFound, "no metrics for player on date", map[string]any{"date": day.Format(time.DateOnly)})
		return
	}
	Ok(c, narrativeResponse{
		PlayerID: id,
		Date:     day.Format(time.DateOnly),
		TopTerms: metric.TopTerms,
		Summary:  NarrativeSummary(service.OrderedTerms(metric.TopTerms)),
	}, nil)
}

// NarrativeSummary renders the first few terms, most frequent first.
func NarrativeSummary(terms []string) string {
	if len(terms) > narrativeTerms {
		terms = terms[:narrativeTerms]
	}
	joined := strings.Join(terms, ", ")
	if joined == "" {
		joined = "n/a"
	}
	return "Top discussion terms include: " + joined
}

func (h *PlayersHandler) playerID(c *gin.Context) (uuid.UUID, bool) {
	if h.Repo == nil {
		Error(c, http.StatusInternalServerError, "repo unavailable", nil)
		return uuid.Nil, false
	}
	id, err := uuid.Parse(strings.TrimSpace(c.Param("id")))
	if err != nil {
		Error(c, http.StatusBadRequest, "invalid player id", nil)
		return uuid.Nil, false
	}
	return id, true
}

func (h *PlayersHandler) now() time.Time {
	if h.Now != nil {
		return h.Now()
	}
	return time.Now().UTC()
}

func (h *PlayersHandler) warn(msg string, err error) {
	if h.Logger != nil {
		h.Logger.Warn(msg, zap.Error(err))
	}
}

func defaultString(v, def string) string {
	if strings.TrimSpace(v) == "" {
		return def
	}
	return v
}
