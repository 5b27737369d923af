package web

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/JonMunkholm/xlcalc/internal/core"
)

// uploadResponse is returned by the upload endpoint.
type uploadResponse struct {
	FileName string `json:"file name"`
	Version  int    `json:"version"`
}

// handleUpload stores a workbook given either as a server path in fpath or
// as a multipart file field.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	var (
		fv  core.FileVersion
		err error
	)

	if isMultipart(r) {
		r.Body = http.MaxBytesReader(w, r.Body, s.cfg.Upload.MaxFileSize)
		if err := r.ParseMultipartForm(32 << 20); err != nil {
			s.respondError(w, r, uploadError(err))
			return
		}
	}

	if fpath := r.FormValue("fpath"); fpath != "" {
		fv, err = s.service.Upload(r.Context(), fpath)
	} else {
		file, header, ferr := r.FormFile("file")
		if ferr != nil {
			s.respondError(w, r, uploadError(ferr))
			return
		}
		defer file.Close()
		fv, err = s.service.UploadReader(r.Context(), header.Filename, file)
	}
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, uploadResponse{FileName: fv.Name, Version: fv.Version})
}

// handleDelete removes every version of the named workbook.
func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	name := strings.TrimSpace(r.FormValue("name"))
	if name == "" {
		s.respondError(w, r, &core.Error{Kind: core.KindValidation, Code: "VAL002", Msg: "parameter name is required"})
		return
	}

	n, err := s.service.Delete(r.Context(), name)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"deleted": n,
		"message": fmt.Sprintf("%d number of excel files are deleted.", n),
	})
}

func (s *Server) handleFileList(w http.ResponseWriter, r *http.Request) {
	files, err := s.service.ListFiles(r.Context())
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	if files == nil {
		files = []core.FileVersion{}
	}
	writeJSON(w, http.StatusOK, files)
}

func (s *Server) handleFormulas(w http.ResponseWriter, r *http.Request) {
	version, err := versionParam(r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	formulas, fv, err := s.service.Formulas(r.Context(), r.FormValue("file_name"), version)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"file name": fv.Name,
		"version":   fv.Version,
		"formulas":  formulas,
	})
}

// versionParam reads the optional version parameter, 0 when absent.
func versionParam(r *http.Request) (int, error) {
	raw := strings.TrimSpace(r.FormValue("version"))
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, &core.Error{Kind: core.KindValidation, Code: "VAL006", Msg: "version should be a positive number", Err: err}
	}
	return v, nil
}

func isMultipart(r *http.Request) bool {
	return strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data")
}

// uploadError classifies failures reading the upload form.
func uploadError(err error) error {
	var maxBytes *http.MaxBytesError
	switch {
	case errors.As(err, &maxBytes):
		return &core.Error{Kind: core.KindValidation, Code: "FILE001", Msg: "workbook exceeds the maximum upload size", Err: err}
	case errors.Is(err, http.ErrMissingFile), errors.Is(err, http.ErrNotMultipart):
		return &core.Error{Kind: core.KindValidation, Code: "FILE004", Msg: "no file provided", Err: err}
	}
	return err
}
