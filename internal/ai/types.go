// Package ai rewrites documents through a language model. It owns the
// coordination around a provider call: per-attempt timeouts, retries with
// backoff, a response cache and validation of what comes back.
package ai

import (
	"context"
	"time"

	"git.home.luguber.info/inful/docstream/internal/docmodel"
)

// Tone steers the register of generated prose.
type Tone string

const (
	ToneProfessional Tone = "professional"
	ToneCasual       Tone = "casual"
	ToneTechnical    Tone = "technical"
	ToneExecutive    Tone = "executive"
	ToneAcademic     Tone = "academic"
	ToneCreative     Tone = "creative"
)

// Length steers how much text the model writes.
type Length string

const (
	LengthBrief         Length = "brief"
	LengthNormal        Length = "normal"
	LengthDetailed      Length = "detailed"
	LengthComprehensive Length = "comprehensive"
)

// Prompt is a structured enhancement request.
type Prompt struct {
	Text     string `json:"prompt" yaml:"prompt"`
	Tone     Tone   `json:"tone,omitempty" yaml:"tone,omitempty"`
	Length   Length `json:"length,omitempty" yaml:"length,omitempty"`
	Language string `json:"language,omitempty" yaml:"language,omitempty"`
	// Sections is the minimum number of sections the result must have.
	Sections int `json:"sections,omitempty" yaml:"sections,omitempty"`
	// SectionTypes must each appear at least once in the result.
	SectionTypes      []docmodel.SectionType `json:"sectionTypes,omitempty" yaml:"section_types,omitempty"`
	IncludeHighlights bool                   `json:"includeHighlights,omitempty" yaml:"include_highlights,omitempty"`
	IncludeCharts     bool                   `json:"includeCharts,omitempty" yaml:"include_charts,omitempty"`
	IncludeTables     bool                   `json:"includeTables,omitempty" yaml:"include_tables,omitempty"`
}

// Request is what a provider receives for one attempt.
type Request struct {
	System      string
	Prompt      string
	Context     *docmodel.Document
	Model       string
	Temperature float64
	MaxTokens   int
	// Required lists section types the answer must contain.
	Required []docmodel.SectionType
}

// Reply is the raw provider answer.
type Reply struct {
	Text       string
	Model      string
	TokensUsed int
}

// Provider executes one completion. Implementations must honor ctx.
type Provider interface {
	Name() string
	Complete(ctx context.Context, req Request) (Reply, error)
}

// Metadata describes how a Response was produced.
type Metadata struct {
	Provider       string        `json:"provider"`
	Model          string        `json:"model"`
	TokensUsed     int           `json:"tokensUsed"`
	GenerationTime time.Duration `json:"generationTime"`
	Attempts       int           `json:"attempts"`
	Cached         bool          `json:"cached"`
}

// Response carries the enhanced document.
type Response struct {
	Document *docmodel.Document
	Metadata Metadata
}
