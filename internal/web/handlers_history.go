package web

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/JonMunkholm/xlcalc/internal/core"
)

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	version, err := versionParam(r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	records, _, err := s.service.History(r.Context(), r.FormValue("file_name"), version)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	if records == nil {
		records = []core.HistoryRecord{}
	}
	writeJSON(w, http.StatusOK, records)
}

// handleHistoryExport streams the history of a file version as parquet.
// The file is built in memory first so failures still produce a JSON error.
func (s *Server) handleHistoryExport(w http.ResponseWriter, r *http.Request) {
	version, err := versionParam(r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	name := r.FormValue("file_name")
	var buf bytes.Buffer
	n, err := s.service.ExportHistory(r.Context(), &buf, name, version)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	filename := strings.TrimSuffix(name, ".xlsx") + "-history.parquet"
	w.Header().Set("Content-Type", "application/vnd.apache.parquet")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.Header().Set("X-Record-Count", strconv.Itoa(n))
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
}
