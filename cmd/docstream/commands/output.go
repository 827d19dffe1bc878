package commands

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"git.home.luguber.info/inful/docstream/internal/export"
	"git.home.luguber.info/inful/docstream/internal/pipeline"
)

var (
	headingStyle = lipgloss.NewStyle().Bold(true)
	labelStyle   = lipgloss.NewStyle().Faint(true).Width(14)
	okStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	failStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("1"))
)

func field(w io.Writer, label string, value any) {
	fmt.Fprintf(w, "  %s %v\n", labelStyle.Render(label), value)
}

// printOutcome writes the human summary of a run.
func printOutcome(w io.Writer, out *pipeline.Outcome) {
	fmt.Fprintln(w, headingStyle.Render("Run "+out.RunID))
	if e := out.Enhancement; e != nil {
		cached := ""
		if e.Metadata.Cached {
			cached = " (cached)"
		}
		field(w, "AI", fmt.Sprintf("%s/%s, %d tokens%s", e.Metadata.Provider, e.Metadata.Model, e.Metadata.TokensUsed, cached))
	}
	if g := out.Generation; g != nil {
		s := g.Stats
		field(w, "Sections", s.SectionsProcessed)
		field(w, "Characters", s.CharactersWritten)
		field(w, "Pages", s.PagesGenerated)
		field(w, "Duration", s.Duration.Round(time.Millisecond))
		if g.StreamID != "" {
			field(w, "Stream", g.StreamID)
		}
	}
	if out.Export != nil {
		exportLines(w, out.Export)
	}
}

// printReport writes the summary of a standalone export.
func printReport(w io.Writer, title string, r *export.Report) {
	if title == "" {
		title = "untitled page"
	}
	fmt.Fprintln(w, headingStyle.Render("Export "+title))
	exportLines(w, r)
}

func exportLines(w io.Writer, r *export.Report) {
	for _, res := range r.Results {
		field(w, strings.ToUpper(res.Format), okStyle.Render(res.Path)+fmt.Sprintf(" (%d bytes)", res.Size))
	}
	for _, f := range r.Failures {
		field(w, strings.ToUpper(f.Format), failStyle.Render(f.Err.Error()))
	}
}
