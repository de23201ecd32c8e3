package core

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/JonMunkholm/bomtool/internal/bom"
	"github.com/JonMunkholm/bomtool/internal/logging"
	"github.com/JonMunkholm/bomtool/internal/source"
	"github.com/JonMunkholm/bomtool/internal/store"
)

var (
	// ErrNoValidRows is returned when an upload yields no BOM entries at all.
	ErrNoValidRows = errors.New("no valid bom rows found")

	// ErrHistoryDisabled is returned by run queries when no store is configured.
	ErrHistoryDisabled = errors.New("run history disabled")
)

// DefaultProcessTimeout bounds one Process call.
const DefaultProcessTimeout = 2 * time.Minute

// DefaultSheetWorkers is how many worksheets are extracted in parallel.
const DefaultSheetWorkers = 4

// RunStore persists processed runs. *store.Store implements it.
type RunStore interface {
	SaveRun(ctx context.Context, run *store.Run) error
	ListRuns(ctx context.Context, limit int) ([]store.RunSummary, error)
	GetRun(ctx context.Context, id uuid.UUID) (*store.Run, error)
	DeleteRunsBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// Config tunes a Service. Zero values select the defaults.
type Config struct {
	MaxConcurrent  int
	MaxWait        time.Duration
	SheetWorkers   int
	ProcessTimeout time.Duration
	Extract        bom.Options
}

// Service runs uploads through the format readers and the BOM engine.
type Service struct {
	limiter      *UploadLimiter
	runs         RunStore
	opts         bom.Options
	sheetWorkers int
	timeout      time.Duration
}

// NewService creates a Service. runs may be nil, which disables run history.
func NewService(cfg Config, runs RunStore) *Service {
	if cfg.SheetWorkers <= 0 {
		cfg.SheetWorkers = DefaultSheetWorkers
	}
	if cfg.ProcessTimeout <= 0 {
		cfg.ProcessTimeout = DefaultProcessTimeout
	}

	return &Service{
		limiter:      NewUploadLimiter(cfg.MaxConcurrent, cfg.MaxWait),
		runs:         runs,
		opts:         cfg.Extract,
		sheetWorkers: cfg.SheetWorkers,
		timeout:      cfg.ProcessTimeout,
	}
}

// Limiter exposes the upload limiter for status reporting and shutdown.
func (s *Service) Limiter() *UploadLimiter {
	return s.limiter
}

// HistoryEnabled reports whether runs are persisted.
func (s *Service) HistoryEnabled() bool {
	return s.runs != nil
}

// Upload is one file submitted for processing.
type Upload struct {
	FileName string
	Data     []byte
	Sheets   []string // worksheet selection for workbook formats
}

// Outcome is the result of processing an upload.
type Outcome struct {
	RunID    uuid.UUID // uuid.Nil when the run was not stored
	FileName string
	Format   string
	Workbook bool
	Result   bom.Result
}

// ListSheets returns the worksheet names of a workbook upload. Formats
// without worksheets return an empty list.
func (s *Service) ListSheets(ctx context.Context, fileName string, data []byte) ([]string, error) {
	f, ok := source.ForFile(fileName)
	if !ok {
		return nil, fmt.Errorf("%w: %s", source.ErrUnsupportedFormat, filepath.Ext(fileName))
	}
	if len(data) == 0 {
		return nil, source.ErrEmptyFile
	}
	if !f.Workbook {
		return []string{}, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return source.ListSheets(data)
}

// Process reads an upload, extracts every table and combines the results.
//
// For single-table formats a header failure is returned as the error. For
// workbooks failed sheets are reported in Outcome.Result.Individual and only
// an upload without any entries fails, with ErrNoValidRows.
func (s *Service) Process(ctx context.Context, up Upload) (*Outcome, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	if err := s.limiter.Acquire(ctx); err != nil {
		return nil, err
	}
	defer s.limiter.Release()

	logger := logging.WithFields(ctx, "file", up.FileName)
	start := time.Now()

	doc, err := source.Read(ctx, up.FileName, up.Data, source.Options{Sheets: up.Sheets})
	if err != nil {
		return nil, err
	}

	results, err := s.extractSheets(ctx, doc.Sheets)
	if err != nil {
		return nil, err
	}

	if !doc.Workbook && len(results) == 1 && !results[0].OK() {
		return nil, results[0].Err
	}

	result := bom.Combine(results)
	if len(result.Combined) == 0 {
		return nil, ErrNoValidRows
	}

	out := &Outcome{
		FileName: up.FileName,
		Format:   doc.Format,
		Workbook: doc.Workbook,
		Result:   result,
	}

	if s.runs != nil {
		run := newRun(out)
		if err := s.runs.SaveRun(ctx, run); err != nil {
			logger.Error("failed to save run", "error", err)
		} else {
			out.RunID = run.ID
		}
	}

	logger.Info("bom processed",
		"format", doc.Format,
		"tables", len(results),
		"entries", len(result.Combined),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return out, nil
}

// extractSheets runs the engine on every sheet concurrently. Each sheet gets
// its own interpreter state; results keep sheet order.
func (s *Service) extractSheets(ctx context.Context, sheets []source.Sheet) ([]bom.TableResult, error) {
	results := make([]bom.TableResult, len(sheets))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.sheetWorkers)

	for i, sheet := range sheets {
		g.Go(func() error {
			defer func() {
				if r := recover(); r != nil {
					logging.FromContext(gctx).Error("panic in sheet extraction",
						"sheet", sheet.Name,
						"panic", r,
					)
					results[i] = bom.TableResult{Name: sheet.Name, Err: fmt.Errorf("internal error: %v", r)}
				}
			}()

			if err := gctx.Err(); err != nil {
				return err
			}
			if sheet.Err != nil {
				results[i] = bom.TableResult{Name: sheet.Name, Err: sheet.Err}
				return nil
			}
			results[i] = bom.ExtractTable(sheet.Table(), s.opts)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// ListRuns returns recent runs.
func (s *Service) ListRuns(ctx context.Context, limit int) ([]store.RunSummary, error) {
	if s.runs == nil {
		return nil, ErrHistoryDisabled
	}
	return s.runs.ListRuns(ctx, limit)
}

// GetRun returns one stored run.
func (s *Service) GetRun(ctx context.Context, id uuid.UUID) (*store.Run, error) {
	if s.runs == nil {
		return nil, ErrHistoryDisabled
	}
	return s.runs.GetRun(ctx, id)
}

func newRun(out *Outcome) *store.Run {
	run := &store.Run{
		FileName: out.FileName,
		Format:   out.Format,
		Combined: out.Result.Combined,
	}
	for _, r := range out.Result.Individual {
		sr := store.SheetResult{Name: r.Name, Entries: r.Entries}
		if r.Err != nil {
			sr.Error = r.Err.Error()
		}
		run.Sheets = append(run.Sheets, sr)
	}
	return run
}
