package cellref

import (
	"errors"
	"fmt"
	"strings"
)

// MaxRangeCells bounds the number of identifiers a single rectangle may
// expand to.
const MaxRangeCells = 1 << 20

var (
	errEmptySheet = errors.New("sheet name is empty")
	errEmptyCell  = errors.New("cell expression is empty")
	errTooLarge   = fmt.Errorf("range exceeds %d cells", MaxRangeCells)
)

// ID builds the fully-qualified identifier of ref on sheet of file.
// The sheet name is upper-cased, the file name is kept verbatim.
func ID(file, sheet string, ref Ref) string {
	return "'[" + file + "]" + strings.ToUpper(sheet) + "'!" + ref.String()
}

// ParseID splits an identifier built by ID into its parts.
func ParseID(id string) (file, sheet, cell string, err error) {
	if !strings.HasPrefix(id, "'[") {
		return "", "", "", fmt.Errorf("invalid cell identifier %q", id)
	}
	rest := id[2:]
	end := strings.Index(rest, "]")
	bang := strings.LastIndex(rest, "'!")
	if end < 0 || bang < end {
		return "", "", "", fmt.Errorf("invalid cell identifier %q", id)
	}
	return rest[:end], rest[end+1 : bang], rest[bang+2:], nil
}

// Expand resolves a cell expression on sheet of file into the ordered list
// of identifiers it denotes. The expression is a single cell ("B2"), a
// rectangle ("A1:C3", corners in any order) or a comma-joined list of
// those. Rectangles are emitted row by row, columns ascending within a row.
// Comma lists are concatenated left to right without removing duplicates.
func Expand(file, sheet, expr string) ([]string, error) {
	if strings.TrimSpace(sheet) == "" {
		return nil, &AddressError{Sheet: sheet, Expr: expr, Err: errEmptySheet}
	}

	if strings.Contains(expr, ",") {
		var ids []string
		for _, part := range strings.Split(expr, ",") {
			sub, err := Expand(file, sheet, part)
			if err != nil {
				return nil, err
			}
			ids = append(ids, sub...)
		}
		return ids, nil
	}

	expr = strings.TrimSpace(expr)
	if expr == "" {
		return nil, &AddressError{Sheet: sheet, Expr: expr, Err: errEmptyCell}
	}

	start, end, isRange := strings.Cut(expr, ":")
	from, err := ParseCell(start)
	if err != nil {
		return nil, &AddressError{Sheet: sheet, Expr: expr, Err: err}
	}
	if !isRange {
		return []string{ID(file, sheet, from)}, nil
	}
	to, err := ParseCell(end)
	if err != nil {
		return nil, &AddressError{Sheet: sheet, Expr: expr, Err: err}
	}

	minCol, maxCol := order(from.Col, to.Col)
	minRow, maxRow := order(from.Row, to.Row)

	count := (maxCol - minCol + 1) * (maxRow - minRow + 1)
	if count > MaxRangeCells {
		return nil, &AddressError{Sheet: sheet, Expr: expr, Err: errTooLarge}
	}

	ids := make([]string, 0, count)
	for row := minRow; row <= maxRow; row++ {
		for col := minCol; col <= maxCol; col++ {
			ids = append(ids, ID(file, sheet, Ref{Col: col, Row: row}))
		}
	}
	return ids, nil
}

func order(a, b int) (int, int) {
	if a > b {
		return b, a
	}
	return a, b
}
