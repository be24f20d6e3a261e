package web

import (
	"context"
	"io"
	"net/http"
	"strconv"

	"github.com/Jakar510/jakardb/internal/cache"
	"github.com/Jakar510/jakardb/internal/core"
	"github.com/Jakar510/jakardb/internal/logging"
	"github.com/go-chi/chi/v5"
)

// TableResponse describes one served table.
type TableResponse struct {
	core.TableInfo
	Stats cache.Stats `json:"stats"`
}

// StatsResponse is a table's cache statistics plus its row count in storage.
type StatsResponse struct {
	cache.Stats
	StoredRows int64 `json:"storedRows"`
}

// RecordsResponse is one page of a table's records.
type RecordsResponse struct {
	Table   string `json:"table"`
	Total   int    `json:"total"`
	Offset  int    `json:"offset"`
	Limit   int    `json:"limit"`
	Records []any  `json:"records"`
}

// DefaultPageSize applies when the limit query parameter is absent.
const DefaultPageSize = 100

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
	defer cancel()

	if err := s.service.Ping(ctx); err != nil {
		logging.FromContext(r.Context()).Warn("health check failed", "error", err)
		writeJSON(w, r, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; version=0.0.4")
	writeMetrics(w, s.service)
}

func (s *Server) handleListTables(w http.ResponseWriter, r *http.Request) {
	infos := s.service.Tables()
	stats := s.service.Stats()

	out := make([]TableResponse, len(infos))
	for i, info := range infos {
		out[i] = TableResponse{TableInfo: info}
		if i < len(stats) {
			out[i].Stats = stats[i]
		}
	}
	writeJSON(w, r, http.StatusOK, out)
}

func (s *Server) handleFlushAll(w http.ResponseWriter, r *http.Request) {
	if err := s.service.Flush(r.Context()); err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, s.service.Stats())
}

func (s *Server) handleTableStats(w http.ResponseWriter, r *http.Request) {
	h, ok := s.table(w, r)
	if !ok {
		return
	}
	stored, err := h.Count(r.Context())
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, StatsResponse{Stats: h.Stats(), StoredRows: stored})
}

func (s *Server) handleFlushTable(w http.ResponseWriter, r *http.Request) {
	h, ok := s.table(w, r)
	if !ok {
		return
	}
	if err := h.Flush(r.Context()); err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, h.Stats())
}

func (s *Server) handleListRecords(w http.ResponseWriter, r *http.Request) {
	h, ok := s.table(w, r)
	if !ok {
		return
	}

	var (
		recs []any
		err  error
	)
	// A column filter reads storage; otherwise the page comes from the cache.
	if column := r.URL.Query().Get("column"); column != "" {
		recs, err = h.Where(r.Context(), column, r.URL.Query().Get("value"))
	} else {
		recs, err = h.List(r.Context())
	}
	if err != nil {
		respondError(w, r, err)
		return
	}

	offset := parseIntParam(r, "offset", 0, 0)
	limit := parseIntParam(r, "limit", DefaultPageSize, 1)
	start := min(offset, len(recs))
	end := start + min(limit, len(recs)-start)

	writeJSON(w, r, http.StatusOK, RecordsResponse{
		Table:   h.Info().Key,
		Total:   len(recs),
		Offset:  offset,
		Limit:   limit,
		Records: recs[start:end],
	})
}

func (s *Server) handleGetRecord(w http.ResponseWriter, r *http.Request) {
	h, ok := s.table(w, r)
	if !ok {
		return
	}

	rec, err := h.Get(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, rec)
}

func (s *Server) handlePutRecord(w http.ResponseWriter, r *http.Request) {
	h, ok := s.table(w, r)
	if !ok {
		return
	}

	body, err := readBody(w, r)
	if err != nil {
		respondError(w, r, err)
		return
	}

	rec, err := h.Put(chi.URLParam(r, "id"), body)
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusAccepted, rec)
}

func (s *Server) handleCreateRecord(w http.ResponseWriter, r *http.Request) {
	h, ok := s.table(w, r)
	if !ok {
		return
	}

	body, err := readBody(w, r)
	if err != nil {
		respondError(w, r, err)
		return
	}

	rec, err := h.Create(r.Context(), body)
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusCreated, rec)
}

func (s *Server) handleDeleteRecord(w http.ResponseWriter, r *http.Request) {
	h, ok := s.table(w, r)
	if !ok {
		return
	}

	if err := h.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// table resolves the {table} URL parameter, writing a 404 when unknown.
func (s *Server) table(w http.ResponseWriter, r *http.Request) (core.Handle, bool) {
	h, err := s.service.Table(chi.URLParam(r, "table"))
	if err != nil {
		respondError(w, r, err)
		return nil, false
	}
	return h, true
}

// readBody reads at most MaxBodySize bytes of the request body.
func readBody(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	return io.ReadAll(http.MaxBytesReader(w, r.Body, MaxBodySize))
}

// parseIntParam parses an integer query parameter with a default value.
// Values below minVal fall back to the default.
func parseIntParam(r *http.Request, name string, defaultVal, minVal int) int {
	val := r.URL.Query().Get(name)
	if val == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(val)
	if err != nil || i < minVal {
		return defaultVal
	}
	return i
}
