package cellref

import "fmt"

// ParseError reports a malformed cell reference.
type ParseError struct {
	Input string
	Err   error
}

func newParseError(input string, err error) *ParseError {
	return &ParseError{Input: input, Err: err}
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("invalid cell reference %q: %v", e.Input, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// AddressError reports a range expression that cannot be expanded.
type AddressError struct {
	Sheet string
	Expr  string
	Err   error
}

func (e *AddressError) Error() string {
	return fmt.Sprintf("invalid address %q on sheet %q: %v", e.Expr, e.Sheet, e.Err)
}

func (e *AddressError) Unwrap() error {
	return e.Err
}
