package api

import (
	"bytes"
	"net/http"

	"github.com/seantiz/benchkit/internal/report"
)

// reportLimit caps the number of records rendered by GET /v1/report.
const reportLimit = 1000

// statsResponse is the JSON response for GET /v1/stats.
type statsResponse struct {
	Total        int            `json:"total"`
	ByOutcome    map[string]int `json:"by_outcome"`
	AvgDurationS float64        `json:"avg_duration_s"`
}

func (s *Server) handleGetStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.store.Stats(r.Context())
	if err != nil {
		s.logger.Error("get record stats", "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to get stats")
		return
	}

	s.writeJSON(w, http.StatusOK, statsResponse{
		Total:        stats.Total,
		ByOutcome:    stats.CountByOutcome,
		AvgDurationS: stats.AvgDurationS,
	})
}

// handleGetReport renders the most recent records as a markdown table.
func (s *Server) handleGetReport(w http.ResponseWriter, r *http.Request) {
	records, _, err := s.store.ListRecords(r.Context(), reportLimit, 0)
	if err != nil {
		s.logger.Error("list records for report", "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to list records")
		return
	}
	if len(records) == 0 {
		s.writeError(w, http.StatusNotFound, "no records")
		return
	}

	var buf bytes.Buffer
	if err := report.Generate(&buf, records); err != nil {
		s.logger.Error("generate report", "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to generate report")
		return
	}

	w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(buf.Bytes()); err != nil {
		s.logger.Error("write report", "error", err)
	}
}
