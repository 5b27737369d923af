package core

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/JonMunkholm/xlcalc/internal/engine"
	"github.com/JonMunkholm/xlcalc/internal/logging"
)

// Options tunes a Service.
type Options struct {
	// CacheSize is the number of models kept in memory.
	CacheSize int

	// MaxConcurrentLoads bounds parallel workbook parsing.
	MaxConcurrentLoads int

	// MaxLoadWait is how long a load waits for a free slot.
	MaxLoadWait time.Duration

	// FilesRoot, when set, confines every server-side path a caller names
	// (uploads, spreadsheet and document outputs) to this directory.
	FilesRoot string
}

// Service runs uploads and calculations against stored workbooks.
type Service struct {
	models  ModelStore
	history HistoryStore
	engine  engine.Engine
	cache   *ModelCache
	limiter *LoadLimiter
	root    string
}

// NewService wires a Service. The model cache is created here and lives as
// long as the Service.
func NewService(models ModelStore, history HistoryStore, eng engine.Engine, opts Options) (*Service, error) {
	cache, err := NewModelCache(opts.CacheSize)
	if err != nil {
		return nil, err
	}

	root := ""
	if opts.FilesRoot != "" {
		if root, err = filepath.Abs(opts.FilesRoot); err != nil {
			return nil, fmt.Errorf("resolve files root: %w", err)
		}
	}

	return &Service{
		models:  models,
		history: history,
		engine:  eng,
		cache:   cache,
		limiter: NewLoadLimiter(opts.MaxConcurrentLoads, opts.MaxLoadWait),
		root:    root,
	}, nil
}

// Upload loads the workbook at path and stores it as the next version of
// its base name.
func (s *Service) Upload(ctx context.Context, path string) (FileVersion, error) {
	path, err := s.checkPath(path)
	if err != nil {
		return FileVersion{}, err
	}

	model, err := s.load(ctx, func(ctx context.Context) (engine.Model, error) {
		return s.engine.Load(ctx, path)
	})
	if err != nil {
		return FileVersion{}, s.loadError(err, "fail to load %q", path)
	}
	return s.store(ctx, model)
}

// UploadReader stores the workbook read from r under name.
func (s *Service) UploadReader(ctx context.Context, name string, r io.Reader) (FileVersion, error) {
	name = filepath.Base(strings.TrimSpace(name))
	if name == "" || name == "." || name == string(filepath.Separator) {
		return FileVersion{}, validationf("FILE004", "no file provided")
	}

	model, err := s.load(ctx, func(ctx context.Context) (engine.Model, error) {
		return s.engine.Read(ctx, name, r)
	})
	if err != nil {
		return FileVersion{}, s.loadError(err, "fail to load %q", name)
	}
	return s.store(ctx, model)
}

func (s *Service) store(ctx context.Context, model engine.Model) (FileVersion, error) {
	data, err := model.Serialize()
	if err != nil {
		return FileVersion{}, newError(KindEngine, "ENG001", err, "fail to serialize %q", model.Name())
	}

	fv, err := s.models.CreateVersion(ctx, model.Name(), data)
	if err != nil {
		return FileVersion{}, fmt.Errorf("store %q: %w", model.Name(), err)
	}

	logging.WithFields(ctx, "file", fv.Name, "version", fv.Version, "file_id", fv.ID).
		Info("workbook uploaded", "bytes", len(data))
	return fv, nil
}

// Delete removes every version of name and drops them from the cache.
func (s *Service) Delete(ctx context.Context, name string) (int64, error) {
	versions, err := s.models.FindVersions(ctx, name)
	if err != nil {
		return 0, fmt.Errorf("find versions of %q: %w", name, err)
	}

	n, err := s.models.DeleteAll(ctx, name)
	if err != nil {
		return 0, fmt.Errorf("delete %q: %w", name, err)
	}
	for _, v := range versions {
		s.cache.Evict(v.ID)
	}

	logging.FromContext(ctx).Info("workbook deleted", "file", name, "versions", n)
	return n, nil
}

// ListFiles returns every stored version without model bytes.
func (s *Service) ListFiles(ctx context.Context) ([]FileVersion, error) {
	files, err := s.models.ListFiles(ctx)
	if err != nil {
		return nil, fmt.Errorf("list files: %w", err)
	}
	return files, nil
}

// Formulas lists the formula cells of a stored version.
func (s *Service) Formulas(ctx context.Context, name string, version int) ([]engine.Formula, FileVersion, error) {
	fv, err := s.ResolveFileVersion(ctx, name, version)
	if err != nil {
		return nil, FileVersion{}, err
	}
	model, err := s.Model(ctx, fv)
	if err != nil {
		return nil, FileVersion{}, err
	}
	formulas, err := model.Formulas()
	if err != nil {
		return nil, FileVersion{}, newError(KindEngine, "ENG003", err, "cannot read formulas of %q", fv.Name)
	}
	return formulas, fv, nil
}

// Model returns the cached model of fv. On first use the serialized bytes
// are fetched from the store and deserialized.
func (s *Service) Model(ctx context.Context, fv FileVersion) (engine.Model, error) {
	return s.cache.Resolve(ctx, fv.ID, func(ctx context.Context) (engine.Model, error) {
		data, err := s.models.LoadModel(ctx, fv.ID)
		if errors.Is(err, ErrModelNotFound) {
			return nil, notFoundf("NF002", "no such version %d for %q", fv.Version, fv.Name)
		}
		if err != nil {
			return nil, fmt.Errorf("load model of %q version %d: %w", fv.Name, fv.Version, err)
		}

		model, err := s.load(ctx, func(ctx context.Context) (engine.Model, error) {
			return s.engine.Read(ctx, fv.Name, bytes.NewReader(data))
		})
		if err != nil {
			return nil, s.loadError(err, "fail to load model of %q version %d", fv.Name, fv.Version)
		}
		return model, nil
	})
}

// CachedModels reports how many models are in memory.
func (s *Service) CachedModels() int {
	return s.cache.Len()
}

// WaitForLoads blocks until no workbook is being parsed.
func (s *Service) WaitForLoads(ctx context.Context) error {
	return s.limiter.WaitForDrain(ctx)
}

// ActiveLoads reports how many workbooks are being parsed.
func (s *Service) ActiveLoads() int {
	return s.limiter.ActiveCount()
}

// FreeLoadSlots reports how many more workbooks could start parsing now.
func (s *Service) FreeLoadSlots() int {
	return s.limiter.Available()
}

func (s *Service) load(ctx context.Context, fn func(context.Context) (engine.Model, error)) (engine.Model, error) {
	if err := s.limiter.Acquire(ctx); err != nil {
		return nil, err
	}
	defer s.limiter.Release()

	start := time.Now()
	model, err := fn(ctx)
	if err != nil {
		return nil, err
	}
	slog.Debug("workbook parsed", "book", model.Name(), "duration_ms", time.Since(start).Milliseconds())
	return model, nil
}

func (s *Service) loadError(err error, format string, args ...any) error {
	switch {
	case errors.Is(err, ErrTooManyLoads):
		return newError(KindBusy, "UPL002", err, "server is busy loading workbooks")
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return err
	}
	return newError(KindEngine, "ENG001", err, format, args...)
}

// checkPath cleans a caller-supplied server path and, when a files root is
// configured, rejects paths outside it.
func (s *Service) checkPath(path string) (string, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return "", validationf("FILE004", "no file provided")
	}
	if s.root == "" {
		return filepath.Clean(path), nil
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return "", newError(KindValidation, "FILE006", err, "invalid path %q", path)
	}
	rel, err := filepath.Rel(s.root, abs)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", validationf("FILE006", "path %q is outside the files root", path)
	}
	return abs, nil
}
