package core

import (
	"context"
	"fmt"
	"io"

	"github.com/parquet-go/parquet-go"
	"github.com/parquet-go/parquet-go/compress/zstd"
)

// History returns the calculations recorded against a file version, oldest
// first. Version 0 selects the newest version.
func (s *Service) History(ctx context.Context, name string, version int) ([]HistoryRecord, FileVersion, error) {
	fv, err := s.ResolveFileVersion(ctx, name, version)
	if err != nil {
		return nil, FileVersion{}, err
	}
	records, err := s.history.ListHistory(ctx, fv.ID)
	if err != nil {
		return nil, FileVersion{}, fmt.Errorf("list history of %q version %d: %w", fv.Name, fv.Version, err)
	}
	return records, fv, nil
}

// historyRow is the parquet layout of a HistoryRecord.
type historyRow struct {
	ID        string `parquet:"id"`
	FileName  string `parquet:"file_name"`
	Version   int32  `parquet:"version"`
	Input     string `parquet:"input"`
	Output    string `parquet:"output"`
	ClientIP  string `parquet:"client_ip,optional"`
	UserAgent string `parquet:"user_agent,optional"`
	CreatedAt int64  `parquet:"created_at,timestamp(millisecond)"`
}

// ExportHistory writes the history of a file version to w as a zstd
// compressed parquet file and returns the number of rows written.
func (s *Service) ExportHistory(ctx context.Context, w io.Writer, name string, version int) (int, error) {
	records, fv, err := s.History(ctx, name, version)
	if err != nil {
		return 0, err
	}

	rows := make([]historyRow, len(records))
	for i, r := range records {
		rows[i] = historyRow{
			ID:        r.ID.String(),
			FileName:  fv.Name,
			Version:   int32(fv.Version),
			Input:     r.Input,
			Output:    r.Output,
			ClientIP:  r.ClientIP,
			UserAgent: r.UserAgent,
			CreatedAt: r.CreatedAt.UnixMilli(),
		}
	}

	writer := parquet.NewGenericWriter[historyRow](w,
		parquet.Compression(&zstd.Codec{Level: zstd.SpeedDefault}),
	)
	if _, err := writer.Write(rows); err != nil {
		return 0, newError(KindIO, "IO003", err, "cannot export history of %q", fv.Name)
	}
	if err := writer.Close(); err != nil {
		return 0, newError(KindIO, "IO003", err, "cannot export history of %q", fv.Name)
	}
	return len(rows), nil
}
