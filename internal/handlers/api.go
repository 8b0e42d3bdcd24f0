package handlers

import (
	"net/http"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/tadawul/internal/common"
	"github.com/ternarybob/tadawul/internal/models"
)

// StatusProvider reports market session and cache backend state for the health endpoint.
type StatusProvider interface {
	CurrentStatus() models.MarketStatus
}

type APIHandler struct {
	logger   arbor.ILogger
	status   StatusProvider
	backend  string
	sources  []string
	instance string
}

func NewAPIHandler(status StatusProvider, backend string, sources []string, instance string) *APIHandler {
	return &APIHandler{
		logger:   common.GetLogger(),
		status:   status,
		backend:  backend,
		sources:  sources,
		instance: instance,
	}
}

// VersionHandler returns version information
func (h *APIHandler) VersionHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	WriteData(w, map[string]string{
		"version":    common.GetVersion(),
		"build":      common.GetBuild(),
		"git_commit": common.GetGitCommit(),
	}, false, false)
}

// HealthHandler returns health check status
func (h *APIHandler) HealthHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	data := map[string]interface{}{
		"status":     "ok",
		"cache":      h.backend,
		"sources":    h.sources,
		"instanceId": h.instance,
	}
	if h.status != nil {
		data["market"] = h.status.CurrentStatus()
	}
	WriteData(w, data, false, false)
}

// NotFoundHandler handles 404 errors with JSON response
func (h *APIHandler) NotFoundHandler(w http.ResponseWriter, r *http.Request) {
	WriteErrorData(w, http.StatusNotFound, CodeNotFound, "The requested endpoint does not exist", map[string]string{
		"path": r.URL.Path,
	})
}
