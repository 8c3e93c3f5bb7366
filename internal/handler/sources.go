package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"fansapprove/internal/connector"
	"fansapprove/internal/repository"
)

type SourcesHandler struct {
	Repo       repository.IngestRepository
	Connectors []connector.Connector
}

func (h *SourcesHandler) Register(r *gin.Engine) {
	r.GET("/api/sources", h.list)
}

type sourceView struct {
	Key        string `json:"key"`
	SourceType string `json:"source_type"`
	Name       string `json:"name"`
	ID         uint64 `json:"id,omitempty"`
	Configured bool   `json:"configured"`
	Breaker    string `json:"breaker,omitempty"`
}

// list merges the configured connectors with the sources already stored;
// a stored source that is no longer configured is reported with
// configured=false.
func (h *SourcesHandler) list(c *gin.Context) {
	if h.Repo == nil {
		Error(c, http.StatusInternalServerError, "repo unavailable", nil)
		return
	}
	stored, err := h.Repo.ListSources(c.Request.Context())
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	ids := make(map[string]uint64, len(stored))
	for _, s := range stored {
		ids[s.SourceType+":"+s.Name] = s.ID
	}

	out := make([]sourceView, 0, len(h.Connectors)+len(stored))
	seen := make(map[string]struct{}, len(h.Connectors))
	for _, conn := range h.Connectors {
		key := conn.SourceType() + ":" + conn.SourceName()
		view := sourceView{
			Key:        key,
			SourceType: conn.SourceType(),
			Name:       conn.SourceName(),
			ID:         ids[key],
			Configured: true,
		}
		if g, ok := conn.(interface{ State() string }); ok {
			view.Breaker = g.State()
		}
		seen[key] = struct{}{}
		out = append(out, view)
	}
	for _, s := range stored {
		key := s.SourceType + ":" + s.Name
		if _, ok := seen[key]; ok {
			continue
		}
		out = append(out, sourceView{Key: key, SourceType: s.SourceType, Name: s.Name, ID: s.ID})
	}
	Ok(c, out, nil)
}
