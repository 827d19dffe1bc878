package export

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"

	"git.home.luguber.info/inful/docstream/internal/config"
	derrors "git.home.luguber.info/inful/docstream/internal/foundation/errors"
	"git.home.luguber.info/inful/docstream/internal/logfields"
	"git.home.luguber.info/inful/docstream/internal/metrics"
	"git.home.luguber.info/inful/docstream/internal/render"
	"git.home.luguber.info/inful/docstream/internal/storage"
)

// Result describes one exported file.
type Result struct {
	Format   string        `json:"format"`
	Filename string        `json:"filename"`
	Path     string        `json:"path"`
	Size     int64         `json:"size"`
	Checksum string        `json:"checksum,omitempty"`
	Pages    int           `json:"pages,omitempty"`
	Duration time.Duration `json:"duration"`
	Quality  string        `json:"quality"`
}

// Failure records why one format could not be exported.
type Failure struct {
	Format string
	Err    error
}

// Report lists the outcome of every requested format in request order.
type Report struct {
	Results  []Result
	Failures []Failure
}

// Callbacks observe and transform a single ExportAll call. Every field is optional.
// A non-nil error from OnStart, Prepare, Transform or OnComplete fails that
// format only.
type Callbacks struct {
	OnStart    func(format string) error
	Prepare    func(format string, art *render.Artifact) (*render.Artifact, error)
	Transform  func(format string, data []byte) ([]byte, error)
	OnComplete func(result Result) error
	OnError    func(format string, err error)
}

// Exporter runs backends and writes their output to a store.
type Exporter struct {
	registry *Registry
	store    storage.Store
	logger   *slog.Logger
	recorder metrics.Recorder
}

// Option configures an Exporter.
type Option func(*Exporter)

// WithRegistry replaces the default backends.
func WithRegistry(r *Registry) Option { return func(e *Exporter) { e.registry = r } }

// WithStore pins the output store. Without it each call opens the store
// named by its ExportConfig.
func WithStore(s storage.Store) Option { return func(e *Exporter) { e.store = s } }

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option { return func(e *Exporter) { e.logger = l } }

// WithRecorder sets the metrics recorder.
func WithRecorder(r metrics.Recorder) Option { return func(e *Exporter) { e.recorder = r } }

// NewExporter creates an exporter.
func NewExporter(opts ...Option) *Exporter {
	e := &Exporter{logger: slog.Default()}
	for _, o := range opts {
		o(e)
	}
	e.recorder = metrics.OrNoop(e.recorder)
	return e
}

// ExportAll exports art to every format. Formats are independent: a failing
// format is reported through cb.OnError and listed in Report.Failures while
// the others complete. Only when every format fails does the call return
// ExportFailedError, which joins all causes. Formats run concurrently when
// the artifact's performance config enables parallel processing.
func (e *Exporter) ExportAll(ctx context.Context, art *render.Artifact, formats []string, cfg config.ExportConfig, cb Callbacks) (*Report, error) {
	if art == nil {
		return nil, derrors.DataValidationError("nothing to export").WithPhase("export").Build()
	}
	if len(formats) == 0 {
		formats = cfg.Formats
	}
	formats = dedupe(formats)
	if len(formats) == 0 {
		return nil, derrors.ConfigValidationError("no export formats requested").WithPhase("export").Build()
	}
	if cfg.Filename == "" {
		cfg.Filename = config.DefaultFilename
	}

	store := e.store
	if store == nil {
		s, err := storage.Open(cfg.Store, cfg.OutputDir)
		if err != nil {
			return nil, derrors.ConfigValidationError("cannot open export store").
				WithCause(err).
				WithContext("store", cfg.Store.Kind).
				WithPhase("export").Build()
		}
		defer func() {
			if cerr := s.Close(); cerr != nil {
				e.logger.Warn("Failed to close export store", logfields.Error(cerr))
			}
		}()
		store = s
	}
	registry := e.registry
	if registry == nil {
		registry = DefaultRegistry(cfg.Commands)
	}

	workers := 1
	if art.Config.Performance.ParallelProcessing {
		workers = max(art.Config.Performance.MaxWorkers, 1)
	}

	type outcome struct {
		result Result
		err    error
	}
	outcomes := runOrdered(formats, workers, func(_ int, format string) outcome {
		r, err := e.exportOne(ctx, registry, store, art, format, cfg, cb)
		return outcome{result: r, err: err}
	})

	report := &Report{}
	var causes []error
	for i, o := range outcomes {
		if o.err != nil {
			report.Failures = append(report.Failures, Failure{Format: formats[i], Err: o.err})
			causes = append(causes, o.err)
			continue
		}
		report.Results = append(report.Results, o.result)
	}
	if len(report.Results) == 0 {
		return report, derrors.ExportFailedError(fmt.Sprintf("all %d export formats failed", len(formats))).
			WithCause(errors.Join(causes...)).
			WithContext("formats", strings.Join(formats, ",")).
			WithPhase("export").Build()
	}
	return report, nil
}

func (e *Exporter) exportOne(ctx context.Context, registry *Registry, store storage.Store, art *render.Artifact, format string, cfg config.ExportConfig, cb Callbacks) (Result, error) {
	start := time.Now()
	log := e.logger.With(logfields.Format(format))

	res, err := e.encodeAndStore(ctx, registry, store, art, format, cfg, cb)
	elapsed := time.Since(start)
	e.recorder.ObserveExportDuration(format, elapsed)
	if err != nil {
		err = derrors.WrapError(err, derrors.CategoryExport, "export "+format+" failed").
			WithContext(derrors.ContextFormat, format).
			WithPhase("export:" + format).Build()
		e.recorder.IncExportResult(format, metrics.ResultFailed)
		log.Warn("Export failed", logfields.Error(err))
		if cb.OnError != nil {
			cb.OnError(format, err)
		}
		return Result{}, err
	}
	e.recorder.IncExportResult(format, metrics.ResultSuccess)
	log.Info("Export complete", logfields.Path(res.Path), slog.Int64("size", res.Size), logfields.DurationMS(float64(res.Duration.Milliseconds())))
	return res, nil
}

func (e *Exporter) encodeAndStore(ctx context.Context, registry *Registry, store storage.Store, art *render.Artifact, format string, cfg config.ExportConfig, cb Callbacks) (Result, error) {
	start := time.Now()
	if cb.OnStart != nil {
		if err := cb.OnStart(format); err != nil {
			return Result{}, err
		}
	}
	backend, err := registry.Lookup(format)
	if err != nil {
		return Result{}, err
	}
	if cb.Prepare != nil {
		if art, err = cb.Prepare(format, art); err != nil {
			return Result{}, err
		}
	}
	opts := Options{Format: format, Quality: cfg.Quality, Metadata: cfg.Metadata}
	if opts.Metadata.Title == "" {
		opts.Metadata.Title = art.Title
	}
	data, err := backend.Encode(ctx, art, opts)
	if err != nil {
		return Result{}, err
	}
	if cb.Transform != nil {
		if data, err = cb.Transform(format, data); err != nil {
			return Result{}, err
		}
	}

	var pages int
	if format == FormatPDF {
		if pages, err = pdfPages(data); err != nil {
			return Result{}, err
		}
	}

	sum := sha256.Sum256(data)
	checksum := hex.EncodeToString(sum[:])
	filename := cfg.Filename + Extension(format)
	location, err := store.Put(ctx, filename, data, storage.Metadata{
		ContentType: MIMEType(format),
		Checksum:    checksum,
		Size:        int64(len(data)),
		CreatedAt:   time.Now().UTC(),
		Custom:      map[string]string{"format": format, "quality": cfg.Quality, "title": art.Title},
	})
	if err != nil {
		return Result{}, fmt.Errorf("store %s: %w", filename, err)
	}

	res := Result{
		Format:   format,
		Filename: filename,
		Path:     location,
		Size:     int64(len(data)),
		Checksum: checksum,
		Pages:    pages,
		Quality:  cfg.Quality,
		Duration: time.Since(start),
	}
	if cb.OnComplete != nil {
		if err := cb.OnComplete(res); err != nil {
			// a rejected format leaves nothing behind in the store
			if derr := store.Delete(context.WithoutCancel(ctx), filename); derr != nil {
				err = errors.Join(err, fmt.Errorf("remove %s: %w", filename, derr))
			}
			return Result{}, err
		}
	}
	return res, nil
}

// pdfPages reads the page count from the encoded bytes.
func pdfPages(data []byte) (int, error) {
	conf := model.NewDefaultConfiguration()
	ctx, err := api.ReadValidateAndOptimize(bytes.NewReader(data), conf)
	if err != nil {
		return 0, fmt.Errorf("pdfcpu read: %w", err)
	}
	return ctx.PageCount, nil
}

// dedupe normalizes names and drops repeats, keeping first occurrences.
func dedupe(formats []string) []string {
	seen := make(map[string]bool, len(formats))
	out := make([]string, 0, len(formats))
	for _, f := range formats {
		n := Normalize(f)
		if n == "" || seen[n] {
			continue
		}
		seen[n] = true
		out = append(out, n)
	}
	return out
}
