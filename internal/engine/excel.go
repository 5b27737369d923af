package engine

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/JonMunkholm/xlcalc/internal/cellref"
	"github.com/xuri/efp"
	"github.com/xuri/excelize/v2"
)

// Excel evaluates workbooks with excelize.
type Excel struct{}

// NewExcel returns an excelize-backed Engine.
func NewExcel() *Excel {
	return &Excel{}
}

// Load opens the workbook at path.
func (e *Excel) Load(ctx context.Context, path string) (Model, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open workbook %q: %w", path, err)
	}
	return newExcelModel(filepath.Base(path), f), nil
}

// Read opens a workbook from r.
func (e *Excel) Read(ctx context.Context, name string, r io.Reader) (Model, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("read workbook %q: %w", name, err)
	}
	return newExcelModel(name, f), nil
}

// excelModel serializes every operation on the underlying file: inputs are
// written into the workbook for the duration of a call and restored after.
type excelModel struct {
	name string

	mu     sync.Mutex
	file   *excelize.File
	sheets map[string]string // upper-cased name -> workbook name
}

func newExcelModel(name string, f *excelize.File) *excelModel {
	sheets := make(map[string]string)
	for _, s := range f.GetSheetList() {
		sheets[strings.ToUpper(s)] = s
	}
	return &excelModel{name: name, file: f, sheets: sheets}
}

func (m *excelModel) Name() string {
	return m.name
}

// locate maps an identifier onto a workbook sheet and cell.
func (m *excelModel) locate(id string) (sheet, cell string, ok bool) {
	book, upper, cell, err := cellref.ParseID(id)
	if err != nil || !strings.EqualFold(book, m.name) {
		return "", "", false
	}
	sheet, ok = m.sheets[strings.ToUpper(upper)]
	return sheet, cell, ok
}

func (m *excelModel) Calculate(ctx context.Context, inputs map[string]float64, outputs []string) (Solution, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	restore, err := m.apply(inputs)
	defer restore()
	if err != nil {
		return nil, err
	}

	sol := make(Solution, len(outputs))
	for _, id := range outputs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if _, done := sol[id]; done {
			continue
		}
		sheet, cell, ok := m.locate(id)
		if !ok {
			continue
		}
		if v, ok := m.value(sheet, cell); ok {
			sol[id] = [][]float64{{v}}
		}
	}
	return sol, nil
}

// value evaluates one cell. Empty, textual and failing cells have no value.
func (m *excelModel) value(sheet, cell string) (float64, bool) {
	raw, err := m.file.CalcCellValue(sheet, cell, excelize.Options{RawCellValue: true})
	if err != nil {
		slog.Debug("cell evaluation failed", "book", m.name, "sheet", sheet, "cell", cell, "error", err)
		return 0, false
	}

	raw = strings.TrimSpace(raw)
	switch strings.ToUpper(raw) {
	case "":
		return 0, false
	case "TRUE":
		return 1, true
	case "FALSE":
		return 0, true
	}
	// ParseFloat also accepts text such as "Infinity" and "nan".
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

type savedCell struct {
	sheet, cell string
	formula     string
	raw         string
	cellType    excelize.CellType
}

// apply writes inputs into the workbook and returns a function that puts
// the previous contents back. The restore function is valid even when apply
// fails part way.
func (m *excelModel) apply(inputs map[string]float64) (func(), error) {
	ids := make([]string, 0, len(inputs))
	for id := range inputs {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var saved []savedCell
	restore := func() {
		for i := len(saved) - 1; i >= 0; i-- {
			if err := m.restoreCell(saved[i]); err != nil {
				slog.Warn("restore input cell", "book", m.name, "sheet", saved[i].sheet, "cell", saved[i].cell, "error", err)
			}
		}
	}

	for _, id := range ids {
		sheet, cell, ok := m.locate(id)
		if !ok {
			return restore, fmt.Errorf("input %s: %w in %q", id, ErrUnknownSheet, m.name)
		}

		prev := savedCell{sheet: sheet, cell: cell}
		var err error
		if prev.formula, err = m.file.GetCellFormula(sheet, cell); err != nil {
			return restore, fmt.Errorf("input %s: %w", id, err)
		}
		if prev.raw, err = m.file.GetCellValue(sheet, cell, excelize.Options{RawCellValue: true}); err != nil {
			return restore, fmt.Errorf("input %s: %w", id, err)
		}
		if prev.cellType, err = m.file.GetCellType(sheet, cell); err != nil {
			return restore, fmt.Errorf("input %s: %w", id, err)
		}

		if err := m.file.SetCellFloat(sheet, cell, inputs[id], -1, 64); err != nil {
			return restore, fmt.Errorf("input %s: %w", id, err)
		}
		saved = append(saved, prev)
	}
	return restore, nil
}

func (m *excelModel) restoreCell(c savedCell) error {
	switch {
	case c.formula != "":
		return m.file.SetCellFormula(c.sheet, c.cell, c.formula)
	case c.raw == "":
		return m.file.SetCellValue(c.sheet, c.cell, nil)
	case c.cellType == excelize.CellTypeBool:
		return m.file.SetCellBool(c.sheet, c.cell, strings.EqualFold(c.raw, "TRUE") || c.raw == "1")
	case c.cellType == excelize.CellTypeSharedString || c.cellType == excelize.CellTypeInlineString:
		return m.file.SetCellStr(c.sheet, c.cell, c.raw)
	}
	if v, err := strconv.ParseFloat(c.raw, 64); err == nil {
		return m.file.SetCellFloat(c.sheet, c.cell, v, -1, 64)
	}
	return m.file.SetCellStr(c.sheet, c.cell, c.raw)
}

func (m *excelModel) Serialize() ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	buf, err := m.file.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("serialize %q: %w", m.name, err)
	}
	return buf.Bytes(), nil
}

func (m *excelModel) WriteFile(path string, inputs map[string]float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	restore, err := m.apply(inputs)
	defer restore()
	if err != nil {
		return err
	}

	// Cached formula results are stale once inputs change.
	if err := m.file.UpdateLinkedValue(); err != nil {
		return fmt.Errorf("clear cached values: %w", err)
	}
	fullCalc := true
	if err := m.file.SetCalcProps(&excelize.CalcPropsOptions{FullCalcOnLoad: &fullCalc}); err != nil {
		return fmt.Errorf("set calc properties: %w", err)
	}

	out, err := os.Create(path)
	if err != nil {
		return err
	}
	if _, err := m.file.WriteTo(out); err != nil {
		out.Close()
		return fmt.Errorf("write workbook %q: %w", path, err)
	}
	return out.Close()
}

// Formulas scans the populated rows of every sheet. GetRows reports formula
// cells even when no cached value is stored, so the sheet's <dimension>
// element, which writers often leave stale, is never consulted.
func (m *excelModel) Formulas() ([]Formula, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var formulas []Formula
	for _, sheet := range m.file.GetSheetList() {
		rows, err := m.file.GetRows(sheet, excelize.Options{RawCellValue: true})
		if err != nil {
			return nil, fmt.Errorf("read rows of %q: %w", sheet, err)
		}
		for r, row := range rows {
			for c := range row {
				cell, err := excelize.CoordinatesToCellName(c+1, r+1)
				if err != nil {
					return nil, err
				}
				text, err := m.file.GetCellFormula(sheet, cell)
				if err != nil {
					return nil, fmt.Errorf("read formula %s!%s: %w", sheet, cell, err)
				}
				if text == "" {
					continue
				}
				formulas = append(formulas, Formula{
					Sheet:      sheet,
					Cell:       cell,
					Formula:    text,
					Precedents: precedents(text, sheet),
				})
			}
		}
	}
	return formulas, nil
}

// precedents lists the range operands of a formula, qualified with sheet
// when the reference has none.
func precedents(formula, sheet string) []string {
	ps := efp.ExcelParser()
	tokens := ps.Parse(formula)

	seen := make(map[string]bool)
	refs := []string{}
	for _, token := range tokens {
		if token.TType != efp.TokenTypeOperand || token.TSubType != efp.TokenSubTypeRange {
			continue
		}
		ref := strings.ReplaceAll(token.TValue, "$", "")
		if !strings.Contains(ref, "!") {
			ref = sheet + "!" + ref
		}
		if !seen[ref] {
			seen[ref] = true
			refs = append(refs, ref)
		}
	}
	return refs
}
