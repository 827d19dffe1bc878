// Package config defines the run configuration of docstream: every sub-config is optional,
// defaults are filled per domain and validation reports ConfigValidationError.
package config

import (
	"maps"
	"slices"
	"time"

	"git.home.luguber.info/inful/docstream/internal/theme"
)

// RunConfig is the complete configuration of a generation run. It is copied at the start of
// a run and never mutated afterwards.
type RunConfig struct {
	Theme       ThemeConfig       `yaml:"theme"`
	Animation   AnimationConfig   `yaml:"animation"`
	Layout      LayoutConfig      `yaml:"layout"`
	Export      ExportConfig      `yaml:"export"`
	AI          AIConfig          `yaml:"ai"`
	Streaming   StreamingConfig   `yaml:"streaming"`
	Watermark   WatermarkConfig   `yaml:"watermark"`
	Security    SecurityConfig    `yaml:"security"`
	Performance PerformanceConfig `yaml:"performance"`
	SEO         SEOConfig         `yaml:"seo"`
	Locale      LocaleConfig      `yaml:"locale"`
}

// ThemeConfig selects a built-in theme and optional overrides.
type ThemeConfig struct {
	Name      string          `yaml:"name"`
	Overrides theme.Overrides `yaml:"overrides,omitempty"`
}

// AnimationType controls how fragments appear in the viewer.
type AnimationType string

const (
	AnimationTypewriter AnimationType = "typewriter"
	AnimationFadeIn     AnimationType = "fadeIn"
	AnimationSlideIn    AnimationType = "slideIn"
	AnimationReveal     AnimationType = "reveal"
	AnimationNone       AnimationType = "none"
)

// AnimationConfig controls viewer animations.
type AnimationConfig struct {
	Speed    time.Duration `yaml:"speed"` // per character
	Type     AnimationType `yaml:"type"`
	Sequence string        `yaml:"sequence"` // sequential | parallel | staggered
	Stagger  time.Duration `yaml:"stagger,omitempty"`
	Cursor   bool          `yaml:"cursor,omitempty"`
}

// Margins in millimetres.
type Margins struct {
	Top    int `yaml:"top"`
	Right  int `yaml:"right"`
	Bottom int `yaml:"bottom"`
	Left   int `yaml:"left"`
}

// LayoutConfig describes the page geometry.
type LayoutConfig struct {
	Orientation string  `yaml:"orientation"` // portrait | landscape | auto
	PageSize    string  `yaml:"page_size"`   // A3 | A4 | A5 | letter | legal
	Margins     Margins `yaml:"margins"`
	MaxPages    int     `yaml:"max_pages,omitempty"` // 0 = unlimited
	Columns     int     `yaml:"columns,omitempty"`
}

// ExportMetadata is embedded into exported files where the format supports it.
type ExportMetadata struct {
	Title    string   `yaml:"title,omitempty"`
	Author   string   `yaml:"author,omitempty"`
	Subject  string   `yaml:"subject,omitempty"`
	Keywords []string `yaml:"keywords,omitempty"`
	Creator  string   `yaml:"creator,omitempty"`
}

// StoreConfig selects where export outputs are written.
type StoreConfig struct {
	Kind     string `yaml:"kind"` // local | s3 | memory
	Bucket   string `yaml:"bucket,omitempty"`
	Prefix   string `yaml:"prefix,omitempty"`
	Region   string `yaml:"region,omitempty"`
	Endpoint string `yaml:"endpoint,omitempty"`
}

// ExportConfig controls the export pipeline.
type ExportConfig struct {
	Formats   []string       `yaml:"formats"`
	Quality   string         `yaml:"quality"` // draft | screen | print | press
	Filename  string         `yaml:"filename"`
	OutputDir string         `yaml:"output_dir"`
	Metadata  ExportMetadata `yaml:"metadata,omitempty"`
	Store     StoreConfig    `yaml:"store"`
	// Commands maps a binary format (pdf, pptx, docx) to an external converter that reads
	// HTML on stdin and writes the encoded file to stdout.
	Commands map[string]string `yaml:"commands,omitempty"`
}

// RetryBackoffMode selects how retry delays grow.
type RetryBackoffMode string

const (
	RetryBackoffFixed       RetryBackoffMode = "fixed"
	RetryBackoffLinear      RetryBackoffMode = "linear"
	RetryBackoffExponential RetryBackoffMode = "exponential"
)

// RetryConfig controls retries of AI provider calls.
type RetryConfig struct {
	Attempts int              `yaml:"attempts"`
	Delay    time.Duration    `yaml:"delay"`
	MaxDelay time.Duration    `yaml:"max_delay,omitempty"`
	Mode     RetryBackoffMode `yaml:"mode"`
}

// CacheConfig controls the AI response cache.
type CacheConfig struct {
	Enabled *bool         `yaml:"enabled,omitempty"`
	TTL     time.Duration `yaml:"ttl"`
	Backend string        `yaml:"backend"` // memory | badger
	Dir     string        `yaml:"dir,omitempty"`
}

// IsEnabled reports whether caching is on; unset means on.
func (c CacheConfig) IsEnabled() bool {
	return c.Enabled == nil || *c.Enabled
}

// AIConfig configures the enhancement service.
type AIConfig struct {
	Provider     string        `yaml:"provider"`
	Model        string        `yaml:"model,omitempty"`
	APIKey       string        `yaml:"api_key,omitempty"`
	BaseURL      string        `yaml:"base_url,omitempty"`
	SystemPrompt string        `yaml:"system_prompt,omitempty"`
	Temperature  *float64      `yaml:"temperature,omitempty"`
	MaxTokens    int           `yaml:"max_tokens"`
	Timeout      time.Duration `yaml:"timeout"`
	Retry        RetryConfig   `yaml:"retry"`
	Cache        CacheConfig   `yaml:"cache"`
}

// TemperatureValue returns the configured sampling temperature.
func (a AIConfig) TemperatureValue() float64 {
	if a.Temperature == nil {
		return DefaultTemperature
	}
	return *a.Temperature
}

// StreamMode selects the live-viewer transport.
type StreamMode string

const (
	StreamModeNone      StreamMode = "none"
	StreamModeWebSocket StreamMode = "websocket"
	StreamModeSSE       StreamMode = "sse"
	StreamModeNATS      StreamMode = "nats"
)

// CORSConfig controls cross-origin headers on the viewer endpoints.
type CORSConfig struct {
	Enabled bool     `yaml:"enabled"`
	Origins []string `yaml:"origins,omitempty"`
}

// StreamAuthConfig is the shared-token check for viewers.
type StreamAuthConfig struct {
	Enabled bool   `yaml:"enabled"`
	Token   string `yaml:"token,omitempty"`
}

// NATSConfig configures the NATS mirror transport.
type NATSConfig struct {
	URL           string `yaml:"url,omitempty"`
	SubjectPrefix string `yaml:"subject_prefix,omitempty"`
}

// StreamingConfig configures the broadcast hub and its HTTP surface.
type StreamingConfig struct {
	Mode             StreamMode       `yaml:"mode"`
	Host             string           `yaml:"host"`
	Port             int              `yaml:"port"`
	CORS             CORSConfig       `yaml:"cors"`
	Auth             StreamAuthConfig `yaml:"auth"`
	BufferSize       int              `yaml:"buffer_size"`
	Heartbeat        time.Duration    `yaml:"heartbeat"`
	HeartbeatTimeout time.Duration    `yaml:"heartbeat_timeout"`
	MaxClients       int              `yaml:"max_clients"`
	StreamID         string           `yaml:"stream_id,omitempty"`
	NATS             NATSConfig       `yaml:"nats,omitempty"`
}

// Enabled reports whether generation publishes to the hub.
func (s StreamingConfig) Enabled() bool {
	return s.Mode != "" && s.Mode != StreamModeNone
}

// WatermarkConfig draws a watermark over every page.
type WatermarkConfig struct {
	Text     string  `yaml:"text,omitempty"`
	Opacity  float64 `yaml:"opacity"`
	Angle    int     `yaml:"angle,omitempty"`
	FontSize int     `yaml:"font_size,omitempty"`
	Color    string  `yaml:"color,omitempty"`
	Position string  `yaml:"position"` // center | diagonal | header | footer
}

// Enabled reports whether a watermark is drawn.
func (w WatermarkConfig) Enabled() bool { return w.Text != "" }

// RateLimitConfig is a fixed-window limit per remote address.
type RateLimitConfig struct {
	Enabled bool          `yaml:"enabled"`
	Window  time.Duration `yaml:"window"`
	Max     int           `yaml:"max"`
}

// SecurityConfig controls input sanitizing and request limits.
type SecurityConfig struct {
	SanitizeInput *bool           `yaml:"sanitize_input,omitempty"`
	RateLimit     RateLimitConfig `yaml:"rate_limit"`
	// TrustForwarded takes the client address from X-Forwarded-For and
	// X-Real-IP. Only set it behind a proxy that overwrites those headers.
	TrustForwarded bool `yaml:"trust_forwarded"`
}

// Sanitize reports whether rendered HTML is sanitized; unset means on.
func (s SecurityConfig) Sanitize() bool {
	return s.SanitizeInput == nil || *s.SanitizeInput
}

// PerformanceConfig tunes concurrency.
type PerformanceConfig struct {
	ParallelProcessing bool `yaml:"parallel_processing"`
	MaxWorkers         int  `yaml:"max_workers,omitempty"`
}

// SEOConfig adds meta tags to the HTML head.
type SEOConfig struct {
	Title        string   `yaml:"title,omitempty"`
	Description  string   `yaml:"description,omitempty"`
	Author       string   `yaml:"author,omitempty"`
	Keywords     []string `yaml:"keywords,omitempty"`
	CanonicalURL string   `yaml:"canonical_url,omitempty"`
}

// LocaleConfig sets the document language and direction.
type LocaleConfig struct {
	Language   string `yaml:"language"`
	Direction  string `yaml:"direction"` // ltr | rtl
	DateFormat string `yaml:"date_format,omitempty"`
}

// Clone returns a deep copy so a run can hold its configuration without aliasing the caller's.
func (c RunConfig) Clone() RunConfig {
	out := c
	out.Export.Formats = slices.Clone(c.Export.Formats)
	out.Export.Metadata.Keywords = slices.Clone(c.Export.Metadata.Keywords)
	out.Export.Commands = maps.Clone(c.Export.Commands)
	out.Streaming.CORS.Origins = slices.Clone(c.Streaming.CORS.Origins)
	out.SEO.Keywords = slices.Clone(c.SEO.Keywords)
	if c.AI.Temperature != nil {
		v := *c.AI.Temperature
		out.AI.Temperature = &v
	}
	if c.AI.Cache.Enabled != nil {
		v := *c.AI.Cache.Enabled
		out.AI.Cache.Enabled = &v
	}
	if c.Security.SanitizeInput != nil {
		v := *c.Security.SanitizeInput
		out.Security.SanitizeInput = &v
	}
	return out
}
