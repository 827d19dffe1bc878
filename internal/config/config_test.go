package config

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/docstream/internal/foundation/errors"
)

func TestDefaults(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")
	cfg := Default()

	require.Equal(t, "golden", cfg.Theme.Name)
	require.Equal(t, 25*time.Millisecond, cfg.Animation.Speed)
	require.Equal(t, "portrait", cfg.Layout.Orientation)
	require.Equal(t, "A4", cfg.Layout.PageSize)
	require.Equal(t, Margins{20, 20, 20, 20}, cfg.Layout.Margins)
	require.Equal(t, []string{"html"}, cfg.Export.Formats)
	require.Equal(t, "print", cfg.Export.Quality)
	require.Equal(t, "document", cfg.Export.Filename)
	require.Equal(t, "./output", cfg.Export.OutputDir)
	require.Equal(t, "openai", cfg.AI.Provider)
	require.InDelta(t, 0.7, cfg.AI.TemperatureValue(), 1e-9)
	require.Equal(t, 4000, cfg.AI.MaxTokens)
	require.Equal(t, 30*time.Second, cfg.AI.Timeout)
	require.Equal(t, 3, cfg.AI.Retry.Attempts)
	require.Equal(t, time.Second, cfg.AI.Retry.Delay)
	require.True(t, cfg.AI.Cache.IsEnabled())
	require.Equal(t, time.Hour, cfg.AI.Cache.TTL)
	require.Equal(t, StreamModeNone, cfg.Streaming.Mode)
	require.False(t, cfg.Streaming.Enabled())
	require.Equal(t, "localhost", cfg.Streaming.Host)
	require.Equal(t, 3000, cfg.Streaming.Port)
	require.Equal(t, 256, cfg.Streaming.BufferSize)
	require.Equal(t, 30*time.Second, cfg.Streaming.Heartbeat)
	require.Equal(t, 90*time.Second, cfg.Streaming.HeartbeatTimeout)
	require.Equal(t, 100, cfg.Streaming.MaxClients)
	require.InDelta(t, 0.1, cfg.Watermark.Opacity, 1e-9)
	require.Equal(t, "diagonal", cfg.Watermark.Position)
	require.True(t, cfg.Security.Sanitize())
	require.Equal(t, 100, cfg.Security.RateLimit.Max)
	require.Equal(t, time.Minute, cfg.Security.RateLimit.Window)

	require.NoError(t, cfg.Validate())
}

func TestDefaultsDoNotMutateInput(t *testing.T) {
	in := RunConfig{Export: ExportConfig{Formats: []string{"pdf"}}}
	out := in.Defaults()
	out.Export.Formats[0] = "docx"

	require.Equal(t, "pdf", in.Export.Formats[0])
	require.Empty(t, in.Theme.Name)
}

func TestExplicitZeroTemperatureKept(t *testing.T) {
	zero := 0.0
	cfg := RunConfig{AI: AIConfig{Temperature: &zero}}.Defaults()
	require.Zero(t, cfg.AI.TemperatureValue())
}

func TestProviderDefaults(t *testing.T) {
	t.Setenv("DEEPSEEK_API_KEY", "sk-deep")
	cfg := RunConfig{AI: AIConfig{Provider: "deepseek"}}.Defaults()
	require.Equal(t, "deepseek-chat", cfg.AI.Model)
	require.Equal(t, "https://api.deepseek.com/v1", cfg.AI.BaseURL)
	require.Equal(t, "sk-deep", cfg.AI.APIKey)
}

func TestDefaultsCanonicalizeEnums(t *testing.T) {
	cfg := RunConfig{
		Streaming: StreamingConfig{Mode: "WebSocket"},
		Animation: AnimationConfig{Type: "FADEIN"},
		AI:        AIConfig{Provider: " DeepSeek "},
		Export:    ExportConfig{Store: StoreConfig{Kind: "fs"}},
	}.Defaults()
	require.Equal(t, StreamModeWebSocket, cfg.Streaming.Mode)
	require.Equal(t, AnimationFadeIn, cfg.Animation.Type)
	require.Equal(t, "deepseek", cfg.AI.Provider)
	require.Equal(t, "deepseek-chat", cfg.AI.Model)
	require.Equal(t, "local", cfg.Export.Store.Kind)
	require.NoError(t, cfg.Validate())

	bad := RunConfig{Streaming: StreamingConfig{Mode: "pigeon"}}.Defaults()
	require.Equal(t, StreamMode("pigeon"), bad.Streaming.Mode)
	require.Error(t, bad.Validate())
}

func TestValidateRejects(t *testing.T) {
	tests := []struct {
		name  string
		mut   func(*RunConfig)
		field string
	}{
		{"unknown theme", func(c *RunConfig) { c.Theme.Name = "neon" }, "theme.name"},
		{"bad animation", func(c *RunConfig) { c.Animation.Type = "spin" }, "animation.type"},
		{"bad page size", func(c *RunConfig) { c.Layout.PageSize = "B5" }, "layout.page_size"},
		{"filename with slash", func(c *RunConfig) { c.Export.Filename = "a/b" }, "export.filename"},
		{"s3 without bucket", func(c *RunConfig) { c.Export.Store.Kind = "s3" }, "export.store.bucket"},
		{"unknown provider", func(c *RunConfig) { c.AI.Provider = "skynet" }, "ai.provider"},
		{"hot temperature", func(c *RunConfig) { v := 3.0; c.AI.Temperature = &v }, "ai.temperature"},
		{"negative attempts", func(c *RunConfig) { c.AI.Retry.Attempts = -1 }, "ai.retry.attempts"},
		{"bad port", func(c *RunConfig) { c.Streaming.Port = 70000 }, "streaming.port"},
		{"auth without token", func(c *RunConfig) { c.Streaming.Auth = StreamAuthConfig{Enabled: true} }, "streaming.auth.token"},
		{"nats without url", func(c *RunConfig) { c.Streaming.Mode = StreamModeNATS }, "streaming.nats.url"},
		{"short heartbeat timeout", func(c *RunConfig) { c.Streaming.HeartbeatTimeout = time.Second }, "streaming.heartbeat_timeout"},
		{"opaque watermark", func(c *RunConfig) { c.Watermark.Opacity = 2 }, "watermark.opacity"},
		{"bad direction", func(c *RunConfig) { c.Locale.Direction = "ttb" }, "locale.direction"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("DOCSTREAM_TOKEN", "")
			cfg := Default()
			tt.mut(&cfg)
			err := cfg.Validate()
			require.Error(t, err)
			require.True(t, errors.IsKind(err, errors.KindConfigValidation))

			ce, ok := errors.AsClassified(err)
			require.True(t, ok)
			field, _ := ce.Context().GetString("field")
			require.Equal(t, tt.field, field)
		})
	}
}

func TestParseExpandsEnv(t *testing.T) {
	t.Setenv("DS_TEST_TOKEN", "s3cret")
	raw := `
theme:
  name: dark
ai:
  provider: mock
  timeout: 5s
  retry:
    attempts: 2
    delay: 10ms
streaming:
  mode: websocket
  auth:
    enabled: true
    token: ${DS_TEST_TOKEN}
export:
  formats: [html, markdown]
`
	cfg, err := Parse([]byte(raw))
	require.NoError(t, err)
	require.Equal(t, "dark", cfg.Theme.Name)
	require.Equal(t, 5*time.Second, cfg.AI.Timeout)
	require.Equal(t, 10*time.Millisecond, cfg.AI.Retry.Delay)
	require.Equal(t, "s3cret", cfg.Streaming.Auth.Token)
	require.True(t, cfg.Streaming.Enabled())
	require.Equal(t, []string{"html", "markdown"}, cfg.Export.Formats)
}

func TestParseRejectsUnknownKeys(t *testing.T) {
	_, err := Parse([]byte("themes:\n  name: dark\n"))
	require.Error(t, err)
}

func TestParseEmptyYieldsDefaults(t *testing.T) {
	cfg, err := Parse(nil)
	require.NoError(t, err)
	require.Equal(t, "golden", cfg.Theme.Name)
}

func TestInitRoundTrip(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-test")
	path := filepath.Join(t.TempDir(), "docstream.yaml")

	require.NoError(t, Init(path, false))
	require.Error(t, Init(path, false))
	require.NoError(t, Init(path, true))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "sk-test", cfg.AI.APIKey)
	require.Equal(t, DefaultBufferSize, cfg.Streaming.BufferSize)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.ErrorContains(t, err, "configuration file not found")
}

func TestCloneIsDeep(t *testing.T) {
	cfg := Default()
	cfg.Export.Commands = map[string]string{"pdf": "wkhtmltopdf - -"}
	cp := cfg.Clone()
	cp.Export.Commands["pdf"] = "other"
	*cp.AI.Temperature = 1.5

	require.Equal(t, "wkhtmltopdf - -", cfg.Export.Commands["pdf"])
	require.InDelta(t, 0.7, cfg.AI.TemperatureValue(), 1e-9)
}
