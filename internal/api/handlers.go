// internal/api/handlers.go
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	apperrors "github.com/valpere/AutoScrapexter/internal/errors"
	"github.com/valpere/AutoScrapexter/internal/listing"
	"github.com/valpere/AutoScrapexter/internal/search"
)

const defaultHistoryLimit = 50

func (s *Server) handleSearchPost(w http.ResponseWriter, r *http.Request) {
	var body SearchRequest
	if !s.decode(w, r, &body) {
		return
	}
	s.runSearch(w, r, body.toSearch())
}

func (s *Server) handleSearchGet(w http.ResponseWriter, r *http.Request) {
	req, err := searchFromQuery(r.URL.Query())
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	s.runSearch(w, r, req)
}

func (s *Server) runSearch(w http.ResponseWriter, r *http.Request, req listing.SearchRequest) {
	req.RequestID = RequestIDFrom(r.Context())
	res, err := s.searcher.Search(r.Context(), req)
	if err != nil {
		s.searchError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// handleSearchAdvanced always fetches live from the selected sources and
// returns one large page.
func (s *Server) handleSearchAdvanced(w http.ResponseWriter, r *http.Request) {
	var body AdvancedSearchRequest
	if !s.decode(w, r, &body) {
		return
	}

	start := time.Now()
	res, err := s.searcher.Search(r.Context(), listing.SearchRequest{
		Query:          body.text(),
		Filters:        body.Filters,
		Page:           1,
		Size:           s.maxSize,
		Mode:           string(search.ModeAlways),
		EnableScraping: true,
		Sources:        body.Sources,
		MaxPages:       body.MaxPages,
		RequestID:      RequestIDFrom(r.Context()),
	})
	if err != nil {
		s.searchError(w, err)
		return
	}

	applied := res.Applied
	if applied == nil {
		applied = []string{}
	}
	writeJSON(w, http.StatusOK, AdvancedSearchResponse{
		Success:        true,
		TotalResults:   res.Total,
		Results:        res.Results,
		SourcesStats:   res.Sources,
		FiltersApplied: applied,
		Duration:       time.Since(start).Seconds(),
		Timestamp:      time.Now().UTC(),
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.health != nil {
		s.health.HealthHandler()(w, r)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":    "healthy",
		"timestamp": time.Now().UTC(),
	})
}

func (s *Server) handleSources(w http.ResponseWriter, _ *http.Request) {
	list := s.sources
	if list == nil {
		list = []SourceInfo{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"sources": list,
		"total":   len(list),
	})
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	limit := defaultHistoryLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > 1000 {
			writeError(w, http.StatusBadRequest, "invalid_request", "limit must be between 1 and 1000")
			return
		}
		limit = n
	}

	entries, err := s.history.Recent(r.Context(), limit)
	if err != nil {
		s.logger.Errorf("history read failed: %v", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "history unavailable")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"entries": entries,
		"total":   len(entries),
	})
}

func (s *Server) handleJobs(w http.ResponseWriter, _ *http.Request) {
	jobs := s.jobs.Jobs()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"jobs":  jobs,
		"total": len(jobs),
	})
}

// decode reads a JSON body, answering 400 itself on failure.
func (s *Server) decode(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	body := http.MaxBytesReader(w, r.Body, s.config.MaxBodyBytes)
	dec := json.NewDecoder(body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		var tooLarge *http.MaxBytesError
		switch {
		case errors.Is(err, io.EOF):
			writeError(w, http.StatusBadRequest, "invalid_request", "request body is empty")
		case errors.As(err, &tooLarge):
			writeError(w, http.StatusRequestEntityTooLarge, "invalid_request", "request body too large")
		default:
			writeError(w, http.StatusBadRequest, "invalid_request", fmt.Sprintf("malformed JSON body: %v", err))
		}
		return false
	}
	return true
}

// searchError maps a search failure to a response. Only invalid input gets
// here in practice; collaborator failures degrade the result instead.
func (s *Server) searchError(w http.ResponseWriter, err error) {
	status := apperrors.HTTPStatus(err)
	switch {
	case apperrors.IsClientError(err):
		writeError(w, status, "policy_violation", err.Error())
	default:
		s.logger.Errorf("search failed: %v", err)
		writeError(w, status, "internal_error", "search failed")
	}
}
