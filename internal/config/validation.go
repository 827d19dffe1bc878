package config

import (
	"fmt"
	"slices"
	"strings"

	"git.home.luguber.info/inful/docstream/internal/foundation/errors"
	"git.home.luguber.info/inful/docstream/internal/theme"
)

var (
	animationTypes = []AnimationType{AnimationTypewriter, AnimationFadeIn, AnimationSlideIn, AnimationReveal, AnimationNone}
	sequences      = []string{"sequential", "parallel", "staggered"}
	orientations   = []string{"portrait", "landscape", "auto"}
	pageSizes      = []string{"A3", "A4", "A5", "letter", "legal"}
	qualities      = []string{"draft", "screen", "print", "press"}
	storeKinds     = []string{"local", "s3", "memory"}
	cacheBackends  = []string{"memory", "badger"}
	streamModes    = []StreamMode{StreamModeNone, StreamModeWebSocket, StreamModeSSE, StreamModeNATS}
	wmPositions    = []string{"center", "diagonal", "header", "footer"}
	directions     = []string{"ltr", "rtl"}
	backoffModes   = []RetryBackoffMode{RetryBackoffFixed, RetryBackoffLinear, RetryBackoffExponential}
)

// Providers lists the AI provider names understood by the enhancement service.
var Providers = []string{"openai", "deepseek", "anthropic", "claude", "gemini", "mock"}

// Validate checks a defaulted configuration and returns the first problem as a
// ConfigValidationError carrying the offending field.
func (c RunConfig) Validate() error {
	v := &configurationValidator{cfg: &c}
	return v.validate()
}

type configurationValidator struct {
	cfg *RunConfig
}

func (cv *configurationValidator) validate() error {
	for _, step := range []func() error{
		cv.validateTheme,
		cv.validateAnimation,
		cv.validateLayout,
		cv.validateExport,
		cv.validateAI,
		cv.validateStreaming,
		cv.validateWatermark,
		cv.validateSecurity,
		cv.validateLocale,
	} {
		if err := step(); err != nil {
			return err
		}
	}
	return nil
}

func invalid(field, format string, args ...any) error {
	return errors.ConfigValidationError(fmt.Sprintf(format, args...)).
		WithContext("field", field).
		Build()
}

func (cv *configurationValidator) validateTheme() error {
	t := cv.cfg.Theme
	if !theme.Known(t.Name) {
		return invalid("theme.name", "unknown theme %q", t.Name)
	}
	if _, err := theme.Resolve(t.Name, t.Overrides); err != nil {
		return invalid("theme.overrides", "%v", err)
	}
	return nil
}

func (cv *configurationValidator) validateAnimation() error {
	a := cv.cfg.Animation
	if a.Speed < 0 {
		return invalid("animation.speed", "animation speed must not be negative")
	}
	if !slices.Contains(animationTypes, a.Type) {
		return invalid("animation.type", "unsupported animation type %q", a.Type)
	}
	if !slices.Contains(sequences, a.Sequence) {
		return invalid("animation.sequence", "unsupported animation sequence %q", a.Sequence)
	}
	return nil
}

func (cv *configurationValidator) validateLayout() error {
	l := cv.cfg.Layout
	if !slices.Contains(orientations, l.Orientation) {
		return invalid("layout.orientation", "unsupported orientation %q", l.Orientation)
	}
	if !slices.Contains(pageSizes, l.PageSize) {
		return invalid("layout.page_size", "unsupported page size %q", l.PageSize)
	}
	m := l.Margins
	if m.Top < 0 || m.Right < 0 || m.Bottom < 0 || m.Left < 0 {
		return invalid("layout.margins", "margins must not be negative")
	}
	if l.MaxPages < 0 {
		return invalid("layout.max_pages", "max pages must not be negative")
	}
	return nil
}

func (cv *configurationValidator) validateExport() error {
	e := cv.cfg.Export
	for i, f := range e.Formats {
		if strings.TrimSpace(f) == "" {
			return invalid(fmt.Sprintf("export.formats[%d]", i), "empty export format")
		}
	}
	if !slices.Contains(qualities, e.Quality) {
		return invalid("export.quality", "unsupported quality %q", e.Quality)
	}
	if strings.ContainsAny(e.Filename, `/\`) || e.Filename == "." || e.Filename == ".." {
		return invalid("export.filename", "filename %q must not contain path separators", e.Filename)
	}
	if !slices.Contains(storeKinds, e.Store.Kind) {
		return invalid("export.store.kind", "unsupported store %q", e.Store.Kind)
	}
	if e.Store.Kind == "s3" && e.Store.Bucket == "" {
		return invalid("export.store.bucket", "s3 store requires a bucket")
	}
	return nil
}

func (cv *configurationValidator) validateAI() error {
	a := cv.cfg.AI
	if !slices.Contains(Providers, a.Provider) {
		return invalid("ai.provider", "unsupported AI provider %q", a.Provider)
	}
	if t := a.TemperatureValue(); t < 0 || t > 2 {
		return invalid("ai.temperature", "temperature %.2f outside [0,2]", t)
	}
	if a.MaxTokens <= 0 {
		return invalid("ai.max_tokens", "max tokens must be positive")
	}
	if a.Timeout <= 0 {
		return invalid("ai.timeout", "timeout must be positive")
	}
	if a.Retry.Attempts < 1 {
		return invalid("ai.retry.attempts", "retry attempts must be at least 1")
	}
	if a.Retry.Delay < 0 {
		return invalid("ai.retry.delay", "retry delay must not be negative")
	}
	if !slices.Contains(backoffModes, a.Retry.Mode) {
		return invalid("ai.retry.mode", "unsupported backoff mode %q", a.Retry.Mode)
	}
	if !slices.Contains(cacheBackends, a.Cache.Backend) {
		return invalid("ai.cache.backend", "unsupported cache backend %q", a.Cache.Backend)
	}
	if a.Cache.TTL < 0 {
		return invalid("ai.cache.ttl", "cache ttl must not be negative")
	}
	return nil
}

func (cv *configurationValidator) validateStreaming() error {
	s := cv.cfg.Streaming
	if !slices.Contains(streamModes, s.Mode) {
		return invalid("streaming.mode", "unsupported stream mode %q", s.Mode)
	}
	if s.Port < 1 || s.Port > 65535 {
		return invalid("streaming.port", "port %d out of range", s.Port)
	}
	if s.BufferSize < 1 {
		return invalid("streaming.buffer_size", "buffer size must be at least 1")
	}
	if s.Heartbeat <= 0 {
		return invalid("streaming.heartbeat", "heartbeat interval must be positive")
	}
	if s.HeartbeatTimeout < s.Heartbeat {
		return invalid("streaming.heartbeat_timeout", "heartbeat timeout %s shorter than interval %s", s.HeartbeatTimeout, s.Heartbeat)
	}
	if s.MaxClients < 1 {
		return invalid("streaming.max_clients", "max clients must be at least 1")
	}
	if s.Auth.Enabled && s.Auth.Token == "" {
		return invalid("streaming.auth.token", "authentication enabled without a token")
	}
	if s.Mode == StreamModeNATS && s.NATS.URL == "" {
		return invalid("streaming.nats.url", "nats mode requires a server url")
	}
	return nil
}

func (cv *configurationValidator) validateWatermark() error {
	w := cv.cfg.Watermark
	if w.Opacity < 0 || w.Opacity > 1 {
		return invalid("watermark.opacity", "opacity %.2f outside [0,1]", w.Opacity)
	}
	if !slices.Contains(wmPositions, w.Position) {
		return invalid("watermark.position", "unsupported watermark position %q", w.Position)
	}
	return nil
}

func (cv *configurationValidator) validateSecurity() error {
	r := cv.cfg.Security.RateLimit
	if r.Enabled && (r.Max < 1 || r.Window <= 0) {
		return invalid("security.rate_limit", "rate limit requires a positive max and window")
	}
	return nil
}

func (cv *configurationValidator) validateLocale() error {
	if !slices.Contains(directions, cv.cfg.Locale.Direction) {
		return invalid("locale.direction", "unsupported text direction %q", cv.cfg.Locale.Direction)
	}
	return nil
}
