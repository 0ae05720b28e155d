package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"

	"github.com/turfscan/turfscan/internal/analyzer"
	"github.com/turfscan/turfscan/internal/engine"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"timestamp": s.now().UTC(),
	})
}

// handleRaces serves the merged race card. Partial adapter failure still
// returns 200 with the errors listed in the body; 503 only when every
// adapter failed and no stale day was cached.
func (s *Server) handleRaces(w http.ResponseWriter, r *http.Request) {
	date := r.URL.Query().Get("race_date")
	if date == "" {
		date = s.today()
	}
	source := r.URL.Query().Get("source")

	resp, err := s.engine.FetchAllOdds(r.Context(), date, source)
	if err != nil {
		if errors.Is(err, engine.ErrUnknownSource) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	s.observeResponse(resp)
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleQualified(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["analyzer"]
	an, err := s.analyzers.Get(name, queryParams(r))
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}

	date := r.URL.Query().Get("race_date")
	if date == "" {
		date = s.today()
	}
	resp, err := s.engine.FetchAllOdds(r.Context(), date, "")
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	s.observeResponse(resp)

	result := an.QualifyRaces(resp.Races)
	log.Info().Str("analyzer", name).Str("date", date).
		Int("qualified", len(result.Races)).Msg("Analyzer pass served")
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleAdapterStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.health.Statuses())
}

type overrideSubmission struct {
	RequestID   string `json:"request_id"`
	Content     string `json:"content"`
	ContentType string `json:"content_type"`
}

func (s *Server) handleOverrideSubmit(w http.ResponseWriter, r *http.Request) {
	var sub overrideSubmission
	if err := json.NewDecoder(r.Body).Decode(&sub); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if sub.RequestID == "" || sub.Content == "" {
		writeError(w, http.StatusBadRequest, "request_id and content are required")
		return
	}
	if err := s.overrides.Submit(sub.RequestID, sub.Content, sub.ContentType); err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	s.syncOverrideGauge()
	writeJSON(w, http.StatusOK, map[string]string{"status": "accepted"})
}

func (s *Server) handleOverridePending(w http.ResponseWriter, r *http.Request) {
	pending := s.overrides.List()
	s.syncOverrideGauge()
	writeJSON(w, http.StatusOK, pending)
}

// observeResponse feeds one engine response into the metric set.
func (s *Server) observeResponse(resp *engine.AggregatedResponse) {
	if s.metrics == nil {
		return
	}
	if freshness, ok := resp.Metadata["data_freshness"].(string); ok {
		s.metrics.EngineRequests.WithLabelValues(freshness).Inc()
	}
	s.metrics.ObserveReports(resp.SourceInfo)
}

func (s *Server) syncOverrideGauge() {
	if s.metrics != nil {
		s.metrics.OverridesPending.Set(float64(len(s.overrides.List())))
	}
}

// queryParams turns analyzer-specific query values into Params: numeric
// strings become float64, everything else stays a string. race_date is
// consumed by the handler itself.
func queryParams(r *http.Request) analyzer.Params {
	p := analyzer.Params{}
	for key, vals := range r.URL.Query() {
		if key == "race_date" || len(vals) == 0 {
			continue
		}
		if f, err := strconv.ParseFloat(vals[0], 64); err == nil {
			p[key] = f
			continue
		}
		p[key] = vals[0]
	}
	return p
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("Failed to encode response")
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, status, map[string]string{"error": msg})
}
