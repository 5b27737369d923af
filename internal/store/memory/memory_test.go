package memory

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/JonMunkholm/xlcalc/internal/core"
	"github.com/google/go-cmp/cmp"
)

func TestStore_Versions(t *testing.T) {
	ctx := context.Background()
	s := New()

	for i := 1; i <= 3; i++ {
		fv, err := s.CreateVersion(ctx, "book.xlsx", []byte{byte(i)})
		if err != nil {
			t.Fatalf("CreateVersion: %v", err)
		}
		if fv.Version != i {
			t.Errorf("Version = %d, want %d", fv.Version, i)
		}
	}
	if _, err := s.CreateVersion(ctx, "other.xlsx", []byte("x")); err != nil {
		t.Fatalf("CreateVersion: %v", err)
	}

	versions, _ := s.FindVersions(ctx, "book.xlsx")
	if len(versions) != 3 {
		t.Fatalf("FindVersions len = %d, want 3", len(versions))
	}
	for i, want := range []int{3, 2, 1} {
		if versions[i].Version != want {
			t.Errorf("versions[%d] = %d, want %d", i, versions[i].Version, want)
		}
	}
	for i, want := range []byte{3, 2, 1} {
		model, err := s.LoadModel(ctx, versions[i].ID)
		if err != nil {
			t.Fatalf("LoadModel(%d) error = %v", versions[i].Version, err)
		}
		if diff := cmp.Diff([]byte{want}, model); diff != "" {
			t.Errorf("LoadModel(%d) mismatch (-want +got):\n%s", versions[i].Version, diff)
		}
	}

	files, _ := s.ListFiles(ctx)
	if len(files) != 4 {
		t.Fatalf("ListFiles len = %d, want 4", len(files))
	}
	if files[0].Name != "book.xlsx" || files[3].Name != "other.xlsx" {
		t.Errorf("ListFiles order = %s..%s", files[0].Name, files[3].Name)
	}
}

func TestStore_DeleteCascadesHistory(t *testing.T) {
	ctx := context.Background()
	s := New()

	fv, _ := s.CreateVersion(ctx, "book.xlsx", nil)
	if err := s.RecordCalculation(ctx, core.HistoryRecord{FileID: fv.ID, Input: "[]", Output: "[]"}); err != nil {
		t.Fatalf("RecordCalculation: %v", err)
	}

	hist, _ := s.ListHistory(ctx, fv.ID)
	if len(hist) != 1 || hist[0].ID.String() == "" || hist[0].CreatedAt.IsZero() {
		t.Fatalf("ListHistory = %+v", hist)
	}

	n, err := s.DeleteAll(ctx, "book.xlsx")
	if err != nil || n != 1 {
		t.Fatalf("DeleteAll = %d, %v; want 1, nil", n, err)
	}
	if hist, _ := s.ListHistory(ctx, fv.ID); len(hist) != 0 {
		t.Errorf("history survived delete: %d records", len(hist))
	}
	if versions, _ := s.FindVersions(ctx, "book.xlsx"); len(versions) != 0 {
		t.Errorf("versions survived delete: %d", len(versions))
	}
	if _, err := s.LoadModel(ctx, fv.ID); !errors.Is(err, core.ErrModelNotFound) {
		t.Errorf("LoadModel after delete error = %v, want %v", err, core.ErrModelNotFound)
	}

	fv2, _ := s.CreateVersion(ctx, "book.xlsx", nil)
	if fv2.Version != 1 {
		t.Errorf("version after delete = %d, want 1", fv2.Version)
	}
}

func TestStore_ConcurrentCreate(t *testing.T) {
	ctx := context.Background()
	s := New()

	const n = 20
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := s.CreateVersion(ctx, "book.xlsx", nil); err != nil {
				t.Errorf("CreateVersion: %v", err)
			}
		}()
	}
	wg.Wait()

	versions, _ := s.FindVersions(ctx, "book.xlsx")
	seen := make(map[int]bool)
	for _, v := range versions {
		if seen[v.Version] {
			t.Errorf("duplicate version %d", v.Version)
		}
		seen[v.Version] = true
	}
	if len(seen) != n {
		t.Errorf("distinct versions = %d, want %d", len(seen), n)
	}
}

func TestStore_PruneHistory(t *testing.T) {
	ctx := context.Background()
	s := New()
	fv, _ := s.CreateVersion(ctx, "book.xlsx", nil)

	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		rec := core.HistoryRecord{FileID: fv.ID, CreatedAt: base.Add(time.Duration(i) * time.Hour)}
		if err := s.RecordCalculation(ctx, rec); err != nil {
			t.Fatalf("RecordCalculation: %v", err)
		}
	}

	n, err := s.PruneHistory(ctx, base.Add(90*time.Minute))
	if err != nil || n != 2 {
		t.Fatalf("PruneHistory = %d, %v; want 2, nil", n, err)
	}
	hist, _ := s.ListHistory(ctx, fv.ID)
	if len(hist) != 1 || !hist[0].CreatedAt.Equal(base.Add(2*time.Hour)) {
		t.Errorf("remaining history = %+v, want the 02:00 record", hist)
	}
}
