package httpapi

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/RBarbieri13/decant/internal/core"
	"github.com/RBarbieri13/decant/internal/storage"
)

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	p := storage.Pagination{}
	if page, err := strconv.Atoi(q.Get("page")); err == nil {
		p.Page = page
	}
	if limit, err := strconv.Atoi(q.Get("limit")); err == nil {
		p.Limit = limit
	}
	results, err := s.Store.SearchNodes(r.Context(), q.Get("q"), p)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"results": results})
}

type searchFilteredRequest struct {
	Query   string   `json:"query"`
	Page    int      `json:"page"`
	Limit   int      `json:"limit"`
	Filters struct {
		Segments            []string   `json:"segments"`
		Categories          []string   `json:"categories"`
		ContentTypes        []string   `json:"contentTypes"`
		Organizations       []string   `json:"organizations"`
		DateRangeStart      *time.Time `json:"dateRangeStart"`
		DateRangeEnd        *time.Time `json:"dateRangeEnd"`
		HasCompleteMetadata *bool      `json:"hasCompleteMetadata"`
	} `json:"filters"`
}

func (s *Server) handleSearchFiltered(w http.ResponseWriter, r *http.Request) {
	var req searchFilteredRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, r, core.NewError("httpapi.handleSearchFiltered", core.KindValidationFailed, "invalid request body", err))
		return
	}

	filters := storage.SearchFilters{
		Segments: req.Filters.Segments, Categories: req.Filters.Categories,
		ContentTypes: req.Filters.ContentTypes, Organizations: req.Filters.Organizations,
		DateRangeStart: req.Filters.DateRangeStart, DateRangeEnd: req.Filters.DateRangeEnd,
		HasCompleteMetadata: req.Filters.HasCompleteMetadata,
	}

	resp, err := s.Store.SearchNodesAdvanced(r.Context(), req.Query, filters, storage.Pagination{Page: req.Page, Limit: req.Limit})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}
