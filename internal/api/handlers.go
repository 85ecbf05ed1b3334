package api

import (
	"net/http"
	"time"

	"github.com/samber/lo"

	"github.com/BTreeMap/LineConcierge/internal/models"
)

// FlowSummary describes one diagnosis flow for the /flows endpoint.
type FlowSummary struct {
	Keyword   models.DiagnosisKeyword `json:"keyword"`
	Questions int                     `json:"questions"`
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodGet, "Server.healthHandler") {
		return
	}
	writeJSONResponse(w, http.StatusOK, map[string]interface{}{
		"status":    "healthy",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) flowsHandler(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodGet, "Server.flowsHandler") {
		return
	}
	if s.table == nil {
		writeJSONResponse(w, http.StatusOK, models.Success([]FlowSummary{}))
		return
	}
	flows := lo.Map(s.table.Keywords(), func(k models.DiagnosisKeyword, _ int) FlowSummary {
		return FlowSummary{Keyword: k, Questions: s.table.TotalQuestions(k)}
	})
	writeJSONResponse(w, http.StatusOK, models.Success(flows))
}
