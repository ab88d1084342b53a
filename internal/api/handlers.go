package api

import (
	"encoding/csv"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/territory-cli/internal/export"
	"github.com/sells-group/territory-cli/internal/model"
	"github.com/sells-group/territory-cli/internal/store"
	"github.com/sells-group/territory-cli/internal/zipcode"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	if err := s.store.Ping(r.Context()); err != nil {
		s.log.Warn("health check failed", zap.Error(err))
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) listAssignments(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := store.Filter{
		ZipPrefix: q.Get("zip_prefix"),
		City:      q.Get("city"),
		State:     q.Get("state"),
		Status:    model.AssignmentStatus(q.Get("status")),
	}
	var err error
	if f.Page, err = intParam(q.Get("page")); err != nil {
		writeError(w, http.StatusBadRequest, "page must be an integer")
		return
	}
	if f.Size, err = intParam(q.Get("size")); err != nil {
		writeError(w, http.StatusBadRequest, "size must be an integer")
		return
	}
	if f, err = f.Normalize(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	page, err := s.store.ListAssignments(r.Context(), f)
	if err != nil {
		s.internalError(w, "list assignments", err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func intParam(raw string) (int, error) {
	if raw == "" {
		return 0, nil
	}
	return strconv.Atoi(raw)
}

func (s *Server) getAssignment(w http.ResponseWriter, r *http.Request) {
	zip, reason := zipcode.Normalize(chi.URLParam(r, "zip"))
	if reason != zipcode.ReasonOK {
		writeError(w, http.StatusBadRequest, "zip must be a 5-digit ZIP code")
		return
	}

	a, err := s.store.GetAssignment(r.Context(), zip)
	if eris.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "no assignment for zip "+zip)
		return
	}
	if err != nil {
		s.internalError(w, "get assignment", err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

func (s *Server) zipActivity(w http.ResponseWriter, r *http.Request) {
	zip, reason := zipcode.Normalize(chi.URLParam(r, "zip"))
	if reason != zipcode.ReasonOK {
		writeError(w, http.StatusBadRequest, "zip must be a 5-digit ZIP code")
		return
	}

	recs, err := s.store.ZipActivity(r.Context(), zip)
	if err != nil {
		s.internalError(w, "zip activity", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"zip": zip, "activity": recs})
}

func (s *Server) stats(w http.ResponseWriter, r *http.Request) {
	st, err := s.store.Stats(r.Context())
	if err != nil {
		s.internalError(w, "stats", err)
		return
	}
	if s.metrics != nil {
		s.metrics.SetAssignmentCounts(st.ByStatus)
	}
	writeJSON(w, http.StatusOK, st)
}

func (s *Server) exportCSV(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="territory_assignments.csv"`)

	cw := csv.NewWriter(w)
	if err := cw.Write(export.Columns); err != nil {
		s.log.Warn("export.csv: write header", zap.Error(err))
		return
	}
	err := s.store.EachAssignment(r.Context(), func(a model.TerritoryAssignment) error {
		return cw.Write(export.Row(a))
	})
	cw.Flush()
	if err == nil {
		err = cw.Error()
	}
	if err != nil {
		// Headers are already sent; the client sees a truncated body.
		s.log.Error("export.csv: stream failed", zap.Error(err))
	}
}

func (s *Server) internalError(w http.ResponseWriter, action string, err error) {
	s.log.Error("api: "+action, zap.Error(err))
	writeError(w, http.StatusInternalServerError, "internal error")
}
