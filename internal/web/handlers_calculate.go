package web

import (
	"net/http"

	"github.com/JonMunkholm/xlcalc/internal/core"
)

// handleCalculate evaluates a stored workbook with the request's inputs.
// A request with output_json gets the filled template as its body.
func (s *Server) handleCalculate(w http.ResponseWriter, r *http.Request) {
	version, err := versionParam(r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	resp, err := s.service.Calculate(r.Context(), core.CalculateRequest{
		FileName:    r.FormValue("file_name"),
		Version:     version,
		InputCells:  r.FormValue("input_cell"),
		OutputCells: r.FormValue("output_cell"),
		OutputExcel: r.FormValue("output_excel"),
		OutputDocx:  r.FormValue("output_docx"),
		OutputJSON:  r.FormValue("output_json"),
	})
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	if resp.Rendered != nil {
		writeJSON(w, http.StatusOK, resp.Rendered)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}
