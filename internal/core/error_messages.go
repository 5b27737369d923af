package core

// # Error Codes Reference
//
// Every user-visible failure carries a code that can be quoted to support.
// Typed errors (*Error) carry their code directly; untyped errors coming from
// the database or the network are matched against errorPatterns.
//
// # Validation (VAL002-VAL008)
//
//	VAL002 - Missing parameter in an input or output element
//	VAL003 - Input value is not a number
//	VAL004 - input_cells / output_cells are not JSON lists
//	VAL005 - Cell identifier cannot be parsed
//	VAL006 - Version is negative
//	VAL007 - output_json is not JSON
//	VAL008 - output_docx is not a valid descriptor
//
// # Not Found (NF001-NF002)
//
//	NF001 - File was never uploaded
//	NF002 - Requested version does not exist
//
// # File (FILE001-FILE006)
//
//	FILE001 - Upload exceeds the configured size
//	FILE004 - No file or path given
//	FILE006 - Path outside the files root
//
// # Engine (ENG001-ENG003)
//
//	ENG001 - Workbook cannot be loaded or serialized
//	ENG002 - Calculation failed
//	ENG003 - Formulas cannot be listed
//
// # Output (IO001-IO003)
//
//	IO001 - Spreadsheet output cannot be written
//	IO002 - Document output cannot be rendered
//	IO003 - History export failed
//
// # Transport (UPL002-UPL005, DB004-DB006, RATE001)
//
//	UPL002  - Too many workbooks loading at once
//	UPL004  - Request cancelled
//	UPL005  - Request timed out
//	DB004   - Database unreachable
//	DB005   - Database connection reset
//	DB006   - Database timeout
//	RATE001 - Too many requests
//
// ERR000 is the fallback; check the logs for the technical error.

import (
	"errors"
	"fmt"
	"strings"
)

// UserMessage provides user-friendly error information with actionable guidance.
type UserMessage struct {
	Message string // What happened
	Action  string // What to do about it
	Code    string // Error code for support reference
}

// codeActions holds the suggested action for each typed error code.
var codeActions = map[string]string{
	"VAL002":  "Give sheet and cell (and value for inputs) in every element",
	"VAL003":  "Send input values as numbers",
	"VAL004":  "Send input_cells and output_cells as JSON lists",
	"VAL005":  "Use references like A1, A1:B3 or A1,C2 on an existing sheet",
	"VAL006":  "Use 0 for the latest version or a positive version number",
	"VAL007":  "Send output_json as valid JSON",
	"VAL008":  `Send output_docx as {"input_path": ..., "output_path": ...}`,
	"NF001":   "Upload the workbook before calculating",
	"NF002":   "List the uploaded versions and pick an existing one",
	"FILE001": "Upload a smaller workbook",
	"FILE004": "Give a file path or attach a workbook",
	"FILE006": "Use a path inside the configured files directory",
	"ENG001":  "Check that the file is a valid xlsx workbook",
	"ENG002":  "Check that the referenced sheets exist in the workbook",
	"ENG003":  "Check that the file is a valid xlsx workbook",
	"IO001":   "Check that the output directory exists and is writable",
	"IO002":   "Check the document template path and the output directory",
	"IO003":   "Please try again",
	"UPL002":  "Please wait a moment and try again",
}

// errorPattern defines a pattern to match and its corresponding user message.
type errorPattern struct {
	pattern string
	msg     UserMessage
}

// errorPatterns maps untyped technical errors (case-insensitive) to user
// messages. The first matching pattern wins, so specific patterns go first.
var errorPatterns = []errorPattern{
	{
		pattern: "connection refused",
		msg: UserMessage{
			Message: "Unable to connect to database",
			Action:  "Please try again in a few moments",
			Code:    "DB004",
		},
	},
	{
		pattern: "connection reset",
		msg: UserMessage{
			Message: "Database connection was interrupted",
			Action:  "Please try again",
			Code:    "DB005",
		},
	},
	{
		pattern: "context canceled",
		msg: UserMessage{
			Message: "Request was cancelled",
			Action:  "Please try again",
			Code:    "UPL004",
		},
	},
	{
		pattern: "context deadline exceeded",
		msg: UserMessage{
			Message: "Request timed out",
			Action:  "Try a smaller workbook or check your connection",
			Code:    "UPL005",
		},
	},
	{
		pattern: "timeout",
		msg: UserMessage{
			Message: "Operation timed out",
			Action:  "Please try again later",
			Code:    "DB006",
		},
	},
	{
		pattern: "request body too large",
		msg: UserMessage{
			Message: "Workbook exceeds the maximum upload size",
			Action:  "Upload a smaller workbook",
			Code:    "FILE001",
		},
	},
	{
		pattern: "rate limit",
		msg: UserMessage{
			Message: "Too many requests",
			Action:  "Please wait a moment before trying again",
			Code:    "RATE001",
		},
	},
}

// defaultMessage is returned when nothing matches (ERR000).
var defaultMessage = UserMessage{
	Message: "An unexpected error occurred",
	Action:  "Please try again or contact support",
	Code:    "ERR000",
}

// MapError converts an error to a user-facing message. Typed errors keep
// their descriptive message and code; other errors are matched against
// known patterns, falling back to ERR000.
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}

	var e *Error
	if errors.As(err, &e) && e.Code != "" {
		action, ok := codeActions[e.Code]
		if !ok {
			action = defaultMessage.Action
		}
		return UserMessage{Message: e.Msg, Action: action, Code: e.Code}
	}

	errStr := strings.ToLower(err.Error())
	for _, ep := range errorPatterns {
		if strings.Contains(errStr, ep.pattern) {
			return ep.msg
		}
	}

	return defaultMessage
}

// FormatUserError formats err as "Message (Code: XXX). Action".
func FormatUserError(err error) string {
	msg := MapError(err)
	if msg.Message == "" {
		return ""
	}
	return fmt.Sprintf("%s (Code: %s). %s", msg.Message, msg.Code, msg.Action)
}

// IsUserFacing reports whether err maps to something more specific than
// ERR000.
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}
	return MapError(err).Code != defaultMessage.Code
}
