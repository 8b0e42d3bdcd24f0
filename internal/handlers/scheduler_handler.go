package handlers

import (
	"net/http"
	"strings"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/tadawul/internal/interfaces"
)

// SchedulerHandler exposes background job status and manual triggers.
type SchedulerHandler struct {
	scheduler interfaces.SchedulerService
	logger    arbor.ILogger
}

func NewSchedulerHandler(scheduler interfaces.SchedulerService, logger arbor.ILogger) *SchedulerHandler {
	return &SchedulerHandler{
		scheduler: scheduler,
		logger:    logger,
	}
}

// JobsHandler handles GET /api/jobs (list) and POST /api/jobs?name=X (run now).
func (h *SchedulerHandler) JobsHandler(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		WriteData(w, h.scheduler.GetAllJobStatuses(), false, false)
	case http.MethodPost:
		name := strings.TrimSpace(r.URL.Query().Get("name"))
		if name == "" {
			WriteError(w, http.StatusBadRequest, CodeBadRequest, "missing required parameter: name")
			return
		}
		if err := h.scheduler.TriggerJob(name); err != nil {
			WriteError(w, http.StatusNotFound, CodeNotFound, err.Error())
			return
		}
		h.logger.Info().Str("job_name", name).Msg("Job triggered via API")
		WriteData(w, map[string]string{"job": name, "status": "started"}, false, false)
	default:
		w.Header().Set("Allow", "GET, POST, OPTIONS")
		WriteError(w, http.StatusMethodNotAllowed, CodeMethodNotAllowed, "Method not allowed")
	}
}
