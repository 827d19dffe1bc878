package config

import "git.home.luguber.info/inful/docstream/internal/foundation/normalization"

var (
	streamModeNames = normalization.New(streamModes...).
			Alias("ws", StreamModeWebSocket).
			Alias("off", StreamModeNone)
	animationNames = normalization.New(animationTypes...).
			Alias("fade", AnimationFadeIn).
			Alias("slide", AnimationSlideIn)
	backoffNames  = normalization.New(backoffModes...)
	providerNames = normalization.New(Providers...)
	storeNames    = normalization.New(storeKinds...).Alias("fs", "local")
	backendNames  = normalization.New(cacheBackends...)
	qualityNames  = normalization.New(qualities...)
	sequenceNames = normalization.New(sequences...)
	directionName = normalization.New(directions...)
)

// enumDefaults canonicalizes hand-written enum spellings ("WebSocket", "S3")
// before the other appliers look at them. Unknown values pass through for
// Validate to reject.
type enumDefaults struct{}

func (enumDefaults) Domain() string { return "enums" }

func (enumDefaults) ApplyDefaults(cfg *RunConfig) {
	streamModeNames.Apply(&cfg.Streaming.Mode)
	animationNames.Apply(&cfg.Animation.Type)
	sequenceNames.Apply(&cfg.Animation.Sequence)
	backoffNames.Apply(&cfg.AI.Retry.Mode)
	providerNames.Apply(&cfg.AI.Provider)
	backendNames.Apply(&cfg.AI.Cache.Backend)
	storeNames.Apply(&cfg.Export.Store.Kind)
	qualityNames.Apply(&cfg.Export.Quality)
	directionName.Apply(&cfg.Locale.Direction)
}
