package core

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// FileVersion is one uploaded version of a workbook.
type FileVersion struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Version   int       `json:"version"`
	CreatedAt time.Time `json:"created_at"`
}

// HistoryRecord is one calculation performed against a file version.
// Input and Output hold the raw cell specifications sent by the caller.
type HistoryRecord struct {
	ID        uuid.UUID `json:"id"`
	FileID    uuid.UUID `json:"file_id"`
	Input     string    `json:"input"`
	Output    string    `json:"output"`
	ClientIP  string    `json:"client_ip,omitempty"`
	UserAgent string    `json:"user_agent,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// ErrModelNotFound is returned by LoadModel when no version has the id.
var ErrModelNotFound = errors.New("model not found")

// ModelStore persists serialized workbooks by name and version.
type ModelStore interface {
	// FindVersions returns every version of name, newest first.
	FindVersions(ctx context.Context, name string) ([]FileVersion, error)

	// LoadModel returns the serialized model of the version with id.
	LoadModel(ctx context.Context, id uuid.UUID) ([]byte, error)

	// CreateVersion stores model as the next version of name.
	CreateVersion(ctx context.Context, name string, model []byte) (FileVersion, error)

	// DeleteAll removes every version of name and its history.
	DeleteAll(ctx context.Context, name string) (int64, error)

	// ListFiles returns all versions of all files.
	ListFiles(ctx context.Context) ([]FileVersion, error)
}

// HistoryStore records calculations.
type HistoryStore interface {
	RecordCalculation(ctx context.Context, rec HistoryRecord) error

	// ListHistory returns the calculations of a file version, oldest first.
	ListHistory(ctx context.Context, fileID uuid.UUID) ([]HistoryRecord, error)

	// PruneHistory deletes calculations recorded before cutoff.
	PruneHistory(ctx context.Context, cutoff time.Time) (int64, error)
}
