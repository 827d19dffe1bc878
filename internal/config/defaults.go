package config

import (
	"os"
	"time"
)

// Documented defaults.
const (
	DefaultTheme            = "golden"
	DefaultAnimationSpeed   = 25 * time.Millisecond
	DefaultMargin           = 20
	DefaultFilename         = "document"
	DefaultOutputDir        = "./output"
	DefaultQuality          = "print"
	DefaultProvider         = "openai"
	DefaultTemperature      = 0.7
	DefaultMaxTokens        = 4000
	DefaultAITimeout        = 30 * time.Second
	DefaultRetryAttempts    = 3
	DefaultRetryDelay       = time.Second
	DefaultCacheTTL         = time.Hour
	DefaultHost             = "localhost"
	DefaultPort             = 3000
	DefaultBufferSize       = 256
	DefaultHeartbeat        = 30 * time.Second
	DefaultHeartbeatTimeout = 90 * time.Second
	DefaultMaxClients       = 100
	DefaultNATSPrefix       = "docstream"
	DefaultOpacity          = 0.1
	DefaultRateLimitMax     = 100
	DefaultRateLimitWindow  = time.Minute
)

// providerDefaults holds per-provider model, endpoint and API key variable.
var providerDefaults = map[string]struct {
	model   string
	baseURL string
	envKey  string
}{
	"openai":    {model: "gpt-4o-mini", envKey: "OPENAI_API_KEY"},
	"deepseek":  {model: "deepseek-chat", baseURL: "https://api.deepseek.com/v1", envKey: "DEEPSEEK_API_KEY"},
	"anthropic": {model: "claude-3-5-haiku-latest", baseURL: "https://api.anthropic.com/v1/", envKey: "ANTHROPIC_API_KEY"},
	"claude":    {model: "claude-3-5-haiku-latest", baseURL: "https://api.anthropic.com/v1/", envKey: "ANTHROPIC_API_KEY"},
	"gemini":    {model: "gemini-2.0-flash", envKey: "GEMINI_API_KEY"},
	"mock":      {model: "mock-1"},
}

// DefaultApplier applies defaults for a specific configuration domain.
type DefaultApplier interface {
	ApplyDefaults(cfg *RunConfig)
	Domain() string
}

type themeDefaults struct{}

func (themeDefaults) Domain() string { return "theme" }

func (themeDefaults) ApplyDefaults(cfg *RunConfig) {
	if cfg.Theme.Name == "" {
		cfg.Theme.Name = DefaultTheme
	}
}

type animationDefaults struct{}

func (animationDefaults) Domain() string { return "animation" }

func (animationDefaults) ApplyDefaults(cfg *RunConfig) {
	a := &cfg.Animation
	if a.Speed == 0 {
		a.Speed = DefaultAnimationSpeed
	}
	if a.Type == "" {
		a.Type = AnimationTypewriter
	}
	if a.Sequence == "" {
		a.Sequence = "sequential"
	}
}

type layoutDefaults struct{}

func (layoutDefaults) Domain() string { return "layout" }

func (layoutDefaults) ApplyDefaults(cfg *RunConfig) {
	l := &cfg.Layout
	if l.Orientation == "" {
		l.Orientation = "portrait"
	}
	if l.PageSize == "" {
		l.PageSize = "A4"
	}
	if l.Margins == (Margins{}) {
		l.Margins = Margins{Top: DefaultMargin, Right: DefaultMargin, Bottom: DefaultMargin, Left: DefaultMargin}
	}
	if l.Columns == 0 {
		l.Columns = 1
	}
}

type exportDefaults struct{}

func (exportDefaults) Domain() string { return "export" }

func (exportDefaults) ApplyDefaults(cfg *RunConfig) {
	e := &cfg.Export
	if len(e.Formats) == 0 {
		e.Formats = []string{"html"}
	}
	if e.Quality == "" {
		e.Quality = DefaultQuality
	}
	if e.Filename == "" {
		e.Filename = DefaultFilename
	}
	if e.OutputDir == "" {
		e.OutputDir = DefaultOutputDir
	}
	if e.Store.Kind == "" {
		e.Store.Kind = "local"
	}
	if e.Metadata.Creator == "" {
		e.Metadata.Creator = "docstream"
	}
}

type aiDefaults struct{}

func (aiDefaults) Domain() string { return "ai" }

func (aiDefaults) ApplyDefaults(cfg *RunConfig) {
	a := &cfg.AI
	if a.Provider == "" {
		a.Provider = DefaultProvider
	}
	if pd, ok := providerDefaults[a.Provider]; ok {
		if a.Model == "" {
			a.Model = pd.model
		}
		if a.BaseURL == "" {
			a.BaseURL = pd.baseURL
		}
		if a.APIKey == "" && pd.envKey != "" {
			a.APIKey = os.Getenv(pd.envKey)
		}
	}
	if a.Temperature == nil {
		t := DefaultTemperature
		a.Temperature = &t
	}
	if a.MaxTokens == 0 {
		a.MaxTokens = DefaultMaxTokens
	}
	if a.Timeout == 0 {
		a.Timeout = DefaultAITimeout
	}
	if a.Retry.Attempts == 0 {
		a.Retry.Attempts = DefaultRetryAttempts
	}
	if a.Retry.Delay == 0 {
		a.Retry.Delay = DefaultRetryDelay
	}
	if a.Retry.Mode == "" {
		a.Retry.Mode = RetryBackoffExponential
	}
	if a.Retry.MaxDelay == 0 {
		a.Retry.MaxDelay = 30 * time.Second
	}
	if a.Cache.TTL == 0 {
		a.Cache.TTL = DefaultCacheTTL
	}
	if a.Cache.Backend == "" {
		a.Cache.Backend = "memory"
	}
}

type streamingDefaults struct{}

func (streamingDefaults) Domain() string { return "streaming" }

func (streamingDefaults) ApplyDefaults(cfg *RunConfig) {
	s := &cfg.Streaming
	if s.Mode == "" {
		s.Mode = StreamModeNone
	}
	if s.Host == "" {
		s.Host = DefaultHost
	}
	if s.Port == 0 {
		s.Port = DefaultPort
	}
	if s.BufferSize == 0 {
		s.BufferSize = DefaultBufferSize
	}
	if s.Heartbeat == 0 {
		s.Heartbeat = DefaultHeartbeat
	}
	if s.HeartbeatTimeout == 0 {
		s.HeartbeatTimeout = DefaultHeartbeatTimeout
	}
	if s.MaxClients == 0 {
		s.MaxClients = DefaultMaxClients
	}
	if s.NATS.SubjectPrefix == "" {
		s.NATS.SubjectPrefix = DefaultNATSPrefix
	}
	if s.Auth.Enabled && s.Auth.Token == "" {
		s.Auth.Token = os.Getenv("DOCSTREAM_TOKEN")
	}
}

type watermarkDefaults struct{}

func (watermarkDefaults) Domain() string { return "watermark" }

func (watermarkDefaults) ApplyDefaults(cfg *RunConfig) {
	w := &cfg.Watermark
	if w.Opacity == 0 {
		w.Opacity = DefaultOpacity
	}
	if w.Position == "" {
		w.Position = "diagonal"
	}
	if w.Angle == 0 && w.Position == "diagonal" {
		w.Angle = -45
	}
	if w.FontSize == 0 {
		w.FontSize = 72
	}
	if w.Color == "" {
		w.Color = "#000000"
	}
}

type securityDefaults struct{}

func (securityDefaults) Domain() string { return "security" }

func (securityDefaults) ApplyDefaults(cfg *RunConfig) {
	s := &cfg.Security
	if s.SanitizeInput == nil {
		on := true
		s.SanitizeInput = &on
	}
	if s.RateLimit.Window == 0 {
		s.RateLimit.Window = DefaultRateLimitWindow
	}
	if s.RateLimit.Max == 0 {
		s.RateLimit.Max = DefaultRateLimitMax
	}
}

type miscDefaults struct{}

func (miscDefaults) Domain() string { return "performance/locale" }

func (miscDefaults) ApplyDefaults(cfg *RunConfig) {
	if cfg.Performance.MaxWorkers == 0 {
		cfg.Performance.MaxWorkers = 4
	}
	if cfg.Locale.Language == "" {
		cfg.Locale.Language = "en"
	}
	if cfg.Locale.Direction == "" {
		cfg.Locale.Direction = "ltr"
	}
	if cfg.Locale.DateFormat == "" {
		cfg.Locale.DateFormat = "2006-01-02"
	}
}

var appliers = []DefaultApplier{
	enumDefaults{},
	themeDefaults{},
	animationDefaults{},
	layoutDefaults{},
	exportDefaults{},
	aiDefaults{},
	streamingDefaults{},
	watermarkDefaults{},
	securityDefaults{},
	miscDefaults{},
}

// ApplyDefaults fills every unset field of cfg in place.
func ApplyDefaults(cfg *RunConfig) {
	for _, a := range appliers {
		a.ApplyDefaults(cfg)
	}
}

// Defaults returns a copy of cfg with documented defaults filled in.
func (c RunConfig) Defaults() RunConfig {
	out := c.Clone()
	ApplyDefaults(&out)
	return out
}

// Default returns a fully defaulted configuration.
func Default() RunConfig {
	return RunConfig{}.Defaults()
}
