// Package cellref converts between spreadsheet notation ("B2", "A1:C3",
// "A1,B2:B4") and the fully-qualified cell identifiers used by the
// calculation engine ("'[book.xlsx]SHEET1'!B2").
//
// Column and cell arithmetic is delegated to excelize; this package adds
// the identifier format, range expansion and typed errors.
package cellref

import (
	"strings"

	"github.com/xuri/excelize/v2"
)

// Sheet limits of the xlsx format.
const (
	MaxColumns = excelize.MaxColumns
	MaxRows    = excelize.TotalRows
)

// Ref is a parsed cell reference. Col and Row are 1-based.
type Ref struct {
	Col int
	Row int
}

// String renders the reference in A1 notation, "" when it is out of range.
func (r Ref) String() string {
	name, err := excelize.CoordinatesToCellName(r.Col, r.Row)
	if err != nil {
		return ""
	}
	return name
}

// ColumnToLetters encodes a 1-based column number as column letters
// (1 -> "A", 26 -> "Z", 27 -> "AA"). It returns "" outside 1..MaxColumns.
func ColumnToLetters(n int) string {
	name, err := excelize.ColumnNumberToName(n)
	if err != nil {
		return ""
	}
	return name
}

// LettersToColumn decodes column letters into a 1-based column number.
// Letters are case-insensitive.
func LettersToColumn(s string) (int, error) {
	n, err := excelize.ColumnNameToNumber(s)
	if err != nil {
		return 0, newParseError(s, err)
	}
	return n, nil
}

// ParseCell parses a reference such as "B2", "aa10" or "$C$3". The input
// must be a run of letters followed by a row number and nothing else.
func ParseCell(cell string) (Ref, error) {
	col, row, err := excelize.CellNameToCoordinates(strings.TrimSpace(cell))
	if err != nil {
		return Ref{}, newParseError(cell, err)
	}
	return Ref{Col: col, Row: row}, nil
}
