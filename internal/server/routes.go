package server

import (
	"net/http"
)

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() *http.ServeMux {
	mux := http.NewServeMux()

	// Dashboard data: /api?action=... with /api/market as an alias
	mux.Handle("/api", s.app.MarketHandler)
	mux.Handle("/api/market", s.app.MarketHandler)

	// Service endpoints
	mux.HandleFunc("/api/health", s.app.APIHandler.HealthHandler)
	mux.HandleFunc("/api/version", s.app.APIHandler.VersionHandler)
	mux.HandleFunc("/api/jobs", s.app.SchedulerHandler.JobsHandler)

	if s.app.Config.Metrics.Enabled {
		mux.Handle(s.app.Config.Metrics.Path, s.app.Metrics.Handler())
	}

	if s.app.Config.WebSocket.Enabled {
		mux.HandleFunc("/ws", s.app.StreamHandler.HandleWebSocket)
	}

	// Everything else is a JSON 404
	mux.HandleFunc("/", s.app.APIHandler.NotFoundHandler)

	return mux
}
