package core

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

func TestMapError(t *testing.T) {
	tests := []struct {
		name        string
		err         error
		wantCode    string
		wantMessage string
	}{
		{
			name:        "nil error returns empty",
			err:         nil,
			wantCode:    "",
			wantMessage: "",
		},
		{
			name:        "typed error keeps its message",
			err:         notFoundf("NF001", "please upload %q first", "book.xlsx"),
			wantCode:    "NF001",
			wantMessage: `please upload "book.xlsx" first`,
		},
		{
			name:        "wrapped typed error",
			err:         fmt.Errorf("handler: %w", validationf("VAL006", "version should be a positive number")),
			wantCode:    "VAL006",
			wantMessage: "version should be a positive number",
		},
		{
			name:        "connection refused maps correctly",
			err:         errors.New("dial tcp: connection refused"),
			wantCode:    "DB004",
			wantMessage: "Unable to connect to database",
		},
		{
			name:        "context deadline before generic timeout",
			err:         fmt.Errorf("find versions: %w", context.DeadlineExceeded),
			wantCode:    "UPL005",
			wantMessage: "Request timed out",
		},
		{
			name:        "timeout maps correctly",
			err:         errors.New("i/o timeout"),
			wantCode:    "DB006",
			wantMessage: "Operation timed out",
		},
		{
			name:        "body limit maps correctly",
			err:         errors.New("http: request body too large"),
			wantCode:    "FILE001",
			wantMessage: "Workbook exceeds the maximum upload size",
		},
		{
			name:        "unknown error returns default",
			err:         errors.New("some random internal error"),
			wantCode:    "ERR000",
			wantMessage: "An unexpected error occurred",
		},
		{
			name:        "case insensitive matching",
			err:         errors.New("CONNECTION RESET by peer"),
			wantCode:    "DB005",
			wantMessage: "Database connection was interrupted",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := MapError(tt.err)
			if got.Code != tt.wantCode {
				t.Errorf("MapError() code = %q, want %q", got.Code, tt.wantCode)
			}
			if got.Message != tt.wantMessage {
				t.Errorf("MapError() message = %q, want %q", got.Message, tt.wantMessage)
			}
		})
	}
}

func TestMapErrorActions(t *testing.T) {
	for code := range codeActions {
		got := MapError(validationf(code, "x"))
		if got.Action != codeActions[code] {
			t.Errorf("MapError(%s) action = %q, want %q", code, got.Action, codeActions[code])
		}
	}

	got := MapError(newError(KindInternal, "XYZ999", nil, "odd"))
	if got.Action != defaultMessage.Action {
		t.Errorf("unknown code action = %q, want default", got.Action)
	}
}

func TestFormatUserError(t *testing.T) {
	result := FormatUserError(notFoundf("NF002", "no such version %d for %q", 3, "a.xlsx"))

	expected := `no such version 3 for "a.xlsx" (Code: NF002). List the uploaded versions and pick an existing one`
	if result != expected {
		t.Errorf("FormatUserError() = %q, want %q", result, expected)
	}
}

func TestIsUserFacing(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{
			name: "nil error is not user facing",
			err:  nil,
			want: false,
		},
		{
			name: "typed error is user facing",
			err:  validationf("VAL004", "input and output should be lists"),
			want: true,
		},
		{
			name: "unknown error is not user facing",
			err:  errors.New("random internal error xyz"),
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := IsUserFacing(tt.err)
			if got != tt.want {
				t.Errorf("IsUserFacing() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestKindOf(t *testing.T) {
	tests := []struct {
		err  error
		want Kind
	}{
		{validationf("VAL002", "x"), KindValidation},
		{fmt.Errorf("wrap: %w", notFoundf("NF001", "x")), KindNotFound},
		{newError(KindBusy, "UPL002", ErrTooManyLoads, "busy"), KindBusy},
		{errors.New("plain"), KindInternal},
	}
	for _, tt := range tests {
		if got := KindOf(tt.err); got != tt.want {
			t.Errorf("KindOf(%v) = %v, want %v", tt.err, got, tt.want)
		}
	}
}

func TestErrorMessage(t *testing.T) {
	cause := errors.New("zip: not a valid zip file")
	err := newError(KindEngine, "ENG001", cause, "fail to load %q", "a.xlsx")

	if got, want := err.Error(), `fail to load "a.xlsx": zip: not a valid zip file`; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
	if !errors.Is(err, cause) {
		t.Error("Unwrap() should return the cause")
	}
}
