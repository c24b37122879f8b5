package pipeline

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/nao1215/sitecrawler/internal/model"
	"github.com/nao1215/sitecrawler/internal/report"
)

// RunStore persists finished site maps.
type RunStore interface {
	SaveRun(ctx context.Context, sm *model.SiteMap) (int64, error)
}

// PersistStep saves the site map as a run that can be exported later
// without crawling again.
type PersistStep struct {
	store   RunStore
	onSaved func(id int64, sm *model.SiteMap)
	logger  *slog.Logger
}

// PersistStepOption configures a PersistStep.
type PersistStepOption func(*PersistStep)

// WithOnSaved sets a function called with the ID of every saved run.
func WithOnSaved(fn func(id int64, sm *model.SiteMap)) PersistStepOption {
	return func(s *PersistStep) {
		s.onSaved = fn
	}
}

// WithPersistLogger sets a custom logger for the persist step.
func WithPersistLogger(logger *slog.Logger) PersistStepOption {
	return func(s *PersistStep) {
		s.logger = logger
	}
}

// NewPersistStep creates a step that saves runs to store.
func NewPersistStep(store RunStore, opts ...PersistStepOption) *PersistStep {
	s := &PersistStep{
		store:  store,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Name returns the step name.
func (s *PersistStep) Name() string {
	return "persist"
}

// Do saves the site map.
func (s *PersistStep) Do(ctx context.Context, sm *model.SiteMap) error {
	id, err := s.store.SaveRun(ctx, sm)
	if err != nil {
		return fmt.Errorf("failed to save run: %w", err)
	}
	s.logger.Info("run saved", "id", id, "site", sm.Domain, "pages", len(sm.Pages))
	if s.onSaved != nil {
		s.onSaved(id, sm)
	}
	return nil
}

// ReportStep writes the site map with a report writer.
// Writes are serialized so that concurrent crawls sharing one output do not
// interleave.
type ReportStep struct {
	writer report.Writer
	mu     *sync.Mutex
}

// NewReportStep creates a step that writes reports with w.
func NewReportStep(w report.Writer) *ReportStep {
	return &ReportStep{writer: w, mu: &sync.Mutex{}}
}

// Name returns the step name.
func (s *ReportStep) Name() string {
	return "report"
}

// Do writes the report.
func (s *ReportStep) Do(_ context.Context, sm *model.SiteMap) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.writer.Write(sm); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	return nil
}

// DomainPlaceholder in an export path is replaced with the site's domain so
// that multi-seed runs write one file per site.
const DomainPlaceholder = "{domain}"

// ExportStep writes one projection of the site map to a file.
type ExportStep struct {
	name      string
	path      string
	newWriter func(io.Writer) report.Writer
}

// NewExportStep creates a step that writes to path using the writer returned
// by newWriter.
func NewExportStep(name, path string, newWriter func(io.Writer) report.Writer) *ExportStep {
	return &ExportStep{name: name, path: path, newWriter: newWriter}
}

// NewCSVExportStep creates a step that writes the resource inventory as CSV.
func NewCSVExportStep(path string) *ExportStep {
	return NewExportStep("csv_export", path, func(w io.Writer) report.Writer {
		return report.NewCSVWriter(w)
	})
}

// NewSitemapExportStep creates a step that writes an XML sitemap.
func NewSitemapExportStep(path string) *ExportStep {
	return NewExportStep("sitemap_export", path, func(w io.Writer) report.Writer {
		return report.NewSitemapWriter(w)
	})
}

// Name returns the step name.
func (s *ExportStep) Name() string {
	return s.name
}

// Path returns the output path for sm.
func (s *ExportStep) Path(sm *model.SiteMap) string {
	return strings.ReplaceAll(s.path, DomainPlaceholder, sm.Domain)
}

// Do writes the export file, replacing any existing file.
func (s *ExportStep) Do(_ context.Context, sm *model.SiteMap) (err error) {
	path := s.Path(sm)
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return fmt.Errorf("failed to create export directory: %w", err)
		}
	}

	f, err := os.Create(filepath.Clean(path))
	if err != nil {
		return fmt.Errorf("failed to create export file: %w", err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	if _, err := s.newWriter(f).Write(sm); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

// ContentAnalyzer consumes a finished site map, for example to tag pages by
// topic or to generate question and answer pairs from page content.
// Implementations live outside this module.
type ContentAnalyzer interface {
	Analyze(ctx context.Context, sm *model.SiteMap) error
}

// ContentAnalyzerFunc adapts a function to ContentAnalyzer.
type ContentAnalyzerFunc func(ctx context.Context, sm *model.SiteMap) error

// Analyze calls f.
func (f ContentAnalyzerFunc) Analyze(ctx context.Context, sm *model.SiteMap) error {
	return f(ctx, sm)
}

// AnalyzeStep hands the site map to a ContentAnalyzer.
// Sites without any successful page are skipped.
type AnalyzeStep struct {
	analyzer ContentAnalyzer
	logger   *slog.Logger
}

// NewAnalyzeStep creates a step for analyzer.
func NewAnalyzeStep(analyzer ContentAnalyzer, logger *slog.Logger) *AnalyzeStep {
	if logger == nil {
		logger = slog.Default()
	}
	return &AnalyzeStep{analyzer: analyzer, logger: logger}
}

// Name returns the step name.
func (s *AnalyzeStep) Name() string {
	return "analyze"
}

// Do runs the analyzer.
func (s *AnalyzeStep) Do(ctx context.Context, sm *model.SiteMap) error {
	if sm.Statistics.PagesCrawled == 0 {
		s.logger.Debug("no pages to analyze", "site", sm.Domain)
		return nil
	}
	if err := s.analyzer.Analyze(ctx, sm); err != nil {
		return fmt.Errorf("content analysis failed: %w", err)
	}
	return nil
}
