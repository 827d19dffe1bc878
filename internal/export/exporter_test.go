package export

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/docstream/internal/config"
	"git.home.luguber.info/inful/docstream/internal/docmodel"
	derrors "git.home.luguber.info/inful/docstream/internal/foundation/errors"
	"git.home.luguber.info/inful/docstream/internal/render"
	"git.home.luguber.info/inful/docstream/internal/storage"
)

func testArtifact(t *testing.T) *render.Artifact {
	t.Helper()
	doc := &docmodel.Document{
		Cover: docmodel.Cover{Title: "Q3 Review", Subtitle: "Operations", Meta: []docmodel.MetaItem{{Label: "Owner", Value: "R&D"}}},
		Sections: []docmodel.Section{
			&docmodel.ContentSection{Title: "Summary", Content: "Costs fell by 5%.\n\n- fewer incidents\n- faster deploys"},
			&docmodel.TableSection{Title: "Numbers", Headers: []string{"Metric", "Value"}, Rows: [][]docmodel.Scalar{{"uptime", "99.9"}}},
			&docmodel.SignatureSection{Left: "Prepared by", Right: "Approved by"},
		},
	}
	cfg := config.RunConfig{}.Defaults()
	r := render.NewHTMLRenderer()
	ctx := context.Background()
	cover, err := r.RenderCover(ctx, doc, cfg)
	require.NoError(t, err)
	var frags []render.Fragment
	for i, s := range doc.Sections {
		f, err := r.RenderSection(ctx, s, i, cfg)
		require.NoError(t, err)
		frags = append(frags, f)
	}
	art, err := r.Assemble(ctx, doc, cover, frags, cfg)
	require.NoError(t, err)
	return art
}

func exportConfig() config.ExportConfig {
	return config.ExportConfig{Filename: "report", Quality: "print", Store: config.StoreConfig{Kind: "memory"}}
}

func failing(msg string) Backend {
	return BackendFunc(func(context.Context, *render.Artifact, Options) ([]byte, error) {
		return nil, errors.New(msg)
	})
}

func TestExportAllPartialFailure(t *testing.T) {
	store := storage.NewMemoryStore()
	reg := DefaultRegistry(nil)
	reg.Register("bogus-format", failing("always broken"))

	var mu sync.Mutex
	var started []string
	var errored []string
	cb := Callbacks{
		OnStart: func(f string) error {
			mu.Lock()
			defer mu.Unlock()
			started = append(started, f)
			return nil
		},
		OnError: func(f string, err error) {
			mu.Lock()
			defer mu.Unlock()
			errored = append(errored, f)
		},
	}
	e := NewExporter(WithStore(store), WithRegistry(reg))
	report, err := e.ExportAll(context.Background(), testArtifact(t), []string{"html", "bogus-format"}, exportConfig(), cb)
	require.NoError(t, err)
	require.Len(t, report.Results, 1)
	require.Equal(t, "html", report.Results[0].Format)
	require.Len(t, report.Failures, 1)
	require.Equal(t, "bogus-format", report.Failures[0].Format)
	require.ErrorContains(t, report.Failures[0].Err, "always broken")
	require.ElementsMatch(t, []string{"html", "bogus-format"}, started)
	require.Equal(t, []string{"bogus-format"}, errored)
}

func TestExportAllEveryFormatFails(t *testing.T) {
	reg := NewRegistry()
	reg.Register("bogus-format", failing("nope"))
	e := NewExporter(WithStore(storage.NewMemoryStore()), WithRegistry(reg))

	report, err := e.ExportAll(context.Background(), testArtifact(t), []string{"bogus-format", "unknown"}, exportConfig(), Callbacks{})
	require.True(t, derrors.IsKind(err, derrors.KindExportFailed))
	require.ErrorContains(t, err, "nope")
	require.ErrorContains(t, err, "unsupported export format")
	require.Len(t, report.Failures, 2)
	require.Empty(t, report.Results)
}

func TestExportRejectedByOnCompleteRemovesFile(t *testing.T) {
	store := storage.NewMemoryStore()
	cb := Callbacks{OnComplete: func(r Result) error {
		if r.Format == "md" {
			return errors.New("quota exceeded")
		}
		return nil
	}}
	e := NewExporter(WithStore(store))
	report, err := e.ExportAll(context.Background(), testArtifact(t), []string{"html", "md"}, exportConfig(), cb)
	require.NoError(t, err)
	require.Len(t, report.Results, 1)
	require.Len(t, report.Failures, 1)
	require.ErrorContains(t, report.Failures[0].Err, "quota exceeded")

	ok, err := store.Exists(context.Background(), "report.md")
	require.NoError(t, err)
	require.False(t, ok)
	ok, err = store.Exists(context.Background(), "report.html")
	require.NoError(t, err)
	require.True(t, ok)
}

func TestExportChecksumMatchesStoredBytes(t *testing.T) {
	store := storage.NewMemoryStore()
	e := NewExporter(WithStore(store))
	report, err := e.ExportAll(context.Background(), testArtifact(t), []string{"html", "md", "latex"}, exportConfig(), Callbacks{})
	require.NoError(t, err)
	require.Len(t, report.Results, 3)

	for _, r := range report.Results {
		data, err := store.Get(context.Background(), r.Filename)
		require.NoError(t, err)
		sum := sha256.Sum256(data)
		require.Equal(t, hex.EncodeToString(sum[:]), r.Checksum, r.Format)
		require.Equal(t, int64(len(data)), r.Size)
		require.Equal(t, "mem://"+r.Filename, r.Path)
		meta, ok := store.Metadata(r.Filename)
		require.True(t, ok)
		require.Equal(t, MIMEType(r.Format), meta.ContentType)
	}
	require.Equal(t, []string{"report.html", "report.md", "report.tex"},
		[]string{report.Results[0].Filename, report.Results[1].Filename, report.Results[2].Filename})
}

func TestExportTransformAffectsChecksum(t *testing.T) {
	store := storage.NewMemoryStore()
	e := NewExporter(WithStore(store))
	cb := Callbacks{Transform: func(_ string, data []byte) ([]byte, error) {
		return append(data, []byte("<!-- signed -->")...), nil
	}}
	report, err := e.ExportAll(context.Background(), testArtifact(t), []string{"html"}, exportConfig(), cb)
	require.NoError(t, err)
	data, err := store.Get(context.Background(), "report.html")
	require.NoError(t, err)
	require.True(t, strings.HasSuffix(string(data), "<!-- signed -->"))
	sum := sha256.Sum256(data)
	require.Equal(t, hex.EncodeToString(sum[:]), report.Results[0].Checksum)
}

func TestExportOnCompleteErrorFailsFormat(t *testing.T) {
	e := NewExporter(WithStore(storage.NewMemoryStore()))
	cb := Callbacks{OnComplete: func(r Result) error {
		if r.Format == FormatMarkdown {
			return errors.New("hook refused")
		}
		return nil
	}}
	report, err := e.ExportAll(context.Background(), testArtifact(t), []string{"html", "markdown"}, exportConfig(), cb)
	require.NoError(t, err)
	require.Len(t, report.Results, 1)
	require.Equal(t, FormatMarkdown, report.Failures[0].Format)
}

func TestExportParallelKeepsRequestOrder(t *testing.T) {
	reg := NewRegistry()
	var running, peak atomic.Int32
	slow := func(d time.Duration) Backend {
		return BackendFunc(func(context.Context, *render.Artifact, Options) ([]byte, error) {
			n := running.Add(1)
			for {
				p := peak.Load()
				if n <= p || peak.CompareAndSwap(p, n) {
					break
				}
			}
			time.Sleep(d)
			running.Add(-1)
			return []byte("ok"), nil
		})
	}
	reg.Register("a", slow(40*time.Millisecond))
	reg.Register("b", slow(5*time.Millisecond))
	reg.Register("c", slow(20*time.Millisecond))

	art := testArtifact(t)
	art.Config.Performance = config.PerformanceConfig{ParallelProcessing: true, MaxWorkers: 3}
	e := NewExporter(WithStore(storage.NewMemoryStore()), WithRegistry(reg))
	report, err := e.ExportAll(context.Background(), art, []string{"a", "b", "c"}, exportConfig(), Callbacks{})
	require.NoError(t, err)
	require.Equal(t, "a", report.Results[0].Format)
	require.Equal(t, "b", report.Results[1].Format)
	require.Equal(t, "c", report.Results[2].Format)
	require.Greater(t, peak.Load(), int32(1))
}

func TestExportSequentialByDefault(t *testing.T) {
	reg := NewRegistry()
	var running, peak atomic.Int32
	b := BackendFunc(func(context.Context, *render.Artifact, Options) ([]byte, error) {
		n := running.Add(1)
		if n > peak.Load() {
			peak.Store(n)
		}
		time.Sleep(5 * time.Millisecond)
		running.Add(-1)
		return []byte("ok"), nil
	})
	reg.Register("a", b)
	reg.Register("b", b)
	e := NewExporter(WithStore(storage.NewMemoryStore()), WithRegistry(reg))
	_, err := e.ExportAll(context.Background(), testArtifact(t), []string{"a", "b"}, exportConfig(), Callbacks{})
	require.NoError(t, err)
	require.Equal(t, int32(1), peak.Load())
}

func TestExportInvalidPDFFails(t *testing.T) {
	reg := NewRegistry()
	reg.Register(FormatPDF, BackendFunc(func(context.Context, *render.Artifact, Options) ([]byte, error) {
		return []byte("not a pdf"), nil
	}))
	reg.Register(FormatHTML, HTMLBackend{})
	e := NewExporter(WithStore(storage.NewMemoryStore()), WithRegistry(reg))
	report, err := e.ExportAll(context.Background(), testArtifact(t), []string{"pdf", "html"}, exportConfig(), Callbacks{})
	require.NoError(t, err)
	require.Equal(t, FormatPDF, report.Failures[0].Format)
	require.ErrorContains(t, report.Failures[0].Err, "pdfcpu")
}

func TestExportDeduplicatesFormats(t *testing.T) {
	e := NewExporter(WithStore(storage.NewMemoryStore()))
	report, err := e.ExportAll(context.Background(), testArtifact(t), []string{"md", "markdown", "HTML"}, exportConfig(), Callbacks{})
	require.NoError(t, err)
	require.Len(t, report.Results, 2)
	require.Equal(t, FormatMarkdown, report.Results[0].Format)
	require.Equal(t, FormatHTML, report.Results[1].Format)
}

func TestExportNoFormats(t *testing.T) {
	e := NewExporter(WithStore(storage.NewMemoryStore()))
	_, err := e.ExportAll(context.Background(), testArtifact(t), nil, exportConfig(), Callbacks{})
	require.True(t, derrors.IsKind(err, derrors.KindConfigValidation))
}

func TestExportOpensLocalStore(t *testing.T) {
	dir := t.TempDir()
	cfg := exportConfig()
	cfg.Store = config.StoreConfig{Kind: "local"}
	cfg.OutputDir = dir
	report, err := NewExporter().ExportAll(context.Background(), testArtifact(t), []string{"html"}, cfg, Callbacks{})
	require.NoError(t, err)
	data, err := os.ReadFile(filepath.Join(dir, "report.html"))
	require.NoError(t, err)
	require.Equal(t, int64(len(data)), report.Results[0].Size)
}

func TestCommandBackend(t *testing.T) {
	if _, err := os.Stat("/bin/cat"); err != nil {
		t.Skip("cat not available")
	}
	art := &render.Artifact{HTML: "<p>hi</p>"}
	out, err := CommandBackend{Command: "/bin/cat"}.Encode(context.Background(), art, Options{Format: FormatPDF})
	require.NoError(t, err)
	require.Equal(t, "<p>hi</p>", string(out))

	_, err = CommandBackend{}.Encode(context.Background(), art, Options{Format: FormatPDF})
	require.Error(t, err)
}
