// Package engine defines the formula-evaluation boundary of the service and
// provides an implementation backed by excelize.
//
// Cells are addressed with the fully-qualified identifiers produced by
// package cellref ("'[book.xlsx]SHEET1'!B2").
package engine

import (
	"context"
	"errors"
	"io"
)

// ErrUnknownSheet is returned when an input targets a sheet the workbook
// does not contain.
var ErrUnknownSheet = errors.New("unknown sheet")

// Solution maps a cell identifier to its computed value. Values are
// array-shaped; single cells are 1x1.
type Solution map[string][][]float64

// Formula describes one formula cell of a model.
type Formula struct {
	Sheet      string   `json:"sheet"`
	Cell       string   `json:"cell"`
	Formula    string   `json:"formula"`
	Precedents []string `json:"precedents"`
}

// Engine loads evaluatable models.
type Engine interface {
	// Load opens the workbook at path. The model is named after the base
	// name of the path.
	Load(ctx context.Context, path string) (Model, error)

	// Read opens a workbook from r and names the model name.
	Read(ctx context.Context, name string, r io.Reader) (Model, error)
}

// Model is a loaded workbook that can be evaluated repeatedly.
// Implementations must be safe for concurrent use.
type Model interface {
	// Name is the book name used in cell identifiers.
	Name() string

	// Calculate applies inputs, evaluates outputs and returns the values it
	// could compute. Identifiers without a value are absent from the
	// solution. The model is left as it was before the call.
	Calculate(ctx context.Context, inputs map[string]float64, outputs []string) (Solution, error)

	// Serialize returns the workbook bytes accepted by Engine.Read.
	Serialize() ([]byte, error)

	// WriteFile saves a copy of the workbook with inputs applied to path.
	WriteFile(path string, inputs map[string]float64) error

	// Formulas lists every formula cell with the ranges it references.
	Formulas() ([]Formula, error)
}
