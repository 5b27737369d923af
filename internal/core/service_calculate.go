package core

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/JonMunkholm/xlcalc/internal/docx"
	"github.com/JonMunkholm/xlcalc/internal/logging"
)

// CalculateRequest carries the raw parameters of a calculation.
type CalculateRequest struct {
	FileName string
	Version  int

	// InputCells and OutputCells are JSON lists of cell specifications.
	InputCells  string
	OutputCells string

	// OutputExcel is a server path for a copy of the workbook with the
	// inputs applied. An existing directory receives the file under its
	// stored name.
	OutputExcel string

	// OutputDocx is a JSON object {"input_path", "output_path"} naming a
	// document template and where to save the filled copy.
	OutputDocx string

	// OutputJSON is a JSON template for the response body.
	OutputJSON string
}

// CalculateResponse is the default response body. When the request had an
// output template, Rendered holds the filled template instead.
type CalculateResponse struct {
	Input    Inputs `json:"input"`
	Output   Result `json:"output"`
	FileName string `json:"file name"`
	Version  int    `json:"version"`

	Rendered json.RawMessage `json:"-"`
}

// DocxTarget names a document template and its output.
type DocxTarget struct {
	InputPath  string `json:"input_path"`
	OutputPath string `json:"output_path"`
}

// Calculate validates req in full, evaluates the model, records the
// calculation and produces every requested output.
func (s *Service) Calculate(ctx context.Context, req CalculateRequest) (*CalculateResponse, error) {
	start := time.Now()
	logger := logging.WithFields(ctx, "file", req.FileName, "version", req.Version)

	fv, err := s.ResolveFileVersion(ctx, req.FileName, req.Version)
	if err != nil {
		return nil, err
	}

	inputs, outputs, err := ParseInputOutput(req.FileName, []byte(req.InputCells), []byte(req.OutputCells))
	if err != nil {
		return nil, err
	}

	var excelPath string
	if req.OutputExcel != "" {
		if excelPath, err = s.checkPath(req.OutputExcel); err != nil {
			return nil, err
		}
		if info, statErr := os.Stat(excelPath); statErr == nil && info.IsDir() {
			excelPath = filepath.Join(excelPath, fv.Name)
		}
	}

	var target *DocxTarget
	if req.OutputDocx != "" {
		if target, err = s.parseDocxTarget(req.OutputDocx); err != nil {
			return nil, err
		}
	}

	var tmpl *Template
	requested := outputs
	if req.OutputJSON != "" {
		if tmpl, err = ParseTemplate(req.FileName, []byte(req.OutputJSON)); err != nil {
			return nil, err
		}
		requested = append(append(Outputs{}, outputs...), tmpl.Outputs()...)
	}

	model, err := s.Model(ctx, fv)
	if err != nil {
		return nil, err
	}

	res, err := Calculate(ctx, model, inputs, requested)
	if err != nil {
		return nil, err
	}

	ip, ua := ClientFromContext(ctx)
	if err := s.history.RecordCalculation(ctx, HistoryRecord{
		FileID:    fv.ID,
		Input:     req.InputCells,
		Output:    req.OutputCells,
		ClientIP:  ip,
		UserAgent: ua,
	}); err != nil {
		return nil, err
	}

	if excelPath != "" {
		if err := model.WriteFile(excelPath, inputs); err != nil {
			return nil, newError(KindIO, "IO001", err, "cannot write excel into %q", req.OutputExcel)
		}
	}

	if target != nil {
		report, err := docx.Render(target.InputPath, target.OutputPath, res)
		if err != nil {
			return nil, newError(KindIO, "IO002", err, "cannot render document")
		}
		logger.Debug("document rendered", "replaced", report.Replaced, "unresolved", len(report.Unresolved))
	}

	resp := &CalculateResponse{
		Input:    inputs,
		Output:   res,
		FileName: req.FileName,
		Version:  fv.Version,
	}
	if tmpl != nil {
		if resp.Rendered, err = tmpl.Render(res); err != nil {
			return nil, err
		}
	}

	logger.Info("calculation completed",
		"resolved_version", fv.Version,
		"inputs", len(inputs),
		"outputs", len(outputs),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return resp, nil
}

func (s *Service) parseDocxTarget(raw string) (*DocxTarget, error) {
	var t DocxTarget
	if err := json.Unmarshal([]byte(raw), &t); err != nil {
		return nil, newError(KindValidation, "VAL008", err, "parameter output_docx should be in JSON format")
	}
	if t.InputPath == "" || t.OutputPath == "" {
		return nil, validationf("VAL008", "parameter output_docx needs input_path and output_path")
	}

	var err error
	if t.InputPath, err = s.checkPath(t.InputPath); err != nil {
		return nil, err
	}
	if t.OutputPath, err = s.checkPath(t.OutputPath); err != nil {
		return nil, err
	}
	return &t, nil
}
