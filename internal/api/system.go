package api

import (
	"net/http"
)

type healthResponse struct {
	Status  string `json:"status"`
	Records int    `json:"records"`
}

// handleHealthz reports whether the results database answers queries.
func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	stats, err := s.store.Stats(r.Context())
	if err != nil {
		s.logger.Error("healthz store check", "error", err)
		s.writeJSON(w, http.StatusServiceUnavailable, healthResponse{Status: "unavailable"})
		return
	}
	s.writeJSON(w, http.StatusOK, healthResponse{Status: "ok", Records: stats.Total})
}

func (s *Server) handleListBackends(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, s.registry.List())
}
