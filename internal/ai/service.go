package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"git.home.luguber.info/inful/docstream/internal/config"
	"git.home.luguber.info/inful/docstream/internal/docmodel"
	derrors "git.home.luguber.info/inful/docstream/internal/foundation/errors"
	"git.home.luguber.info/inful/docstream/internal/logfields"
	"git.home.luguber.info/inful/docstream/internal/metrics"
	"git.home.luguber.info/inful/docstream/internal/retry"
)

// ProviderFactory builds a provider for a configuration.
type ProviderFactory func(ctx context.Context, cfg config.AIConfig) (Provider, error)

// Service coordinates enhancement requests.
type Service struct {
	provider Provider
	factory  ProviderFactory
	cache    Cache
	logger   *slog.Logger
	recorder metrics.Recorder
}

// Option configures a Service.
type Option func(*Service)

// WithProvider pins the provider instead of building one from the config.
func WithProvider(p Provider) Option { return func(s *Service) { s.provider = p } }

// WithProviderFactory replaces NewProvider.
func WithProviderFactory(f ProviderFactory) Option { return func(s *Service) { s.factory = f } }

// WithCache enables response caching.
func WithCache(c Cache) Option { return func(s *Service) { s.cache = c } }

// WithLogger sets the logger; slog.Default is used otherwise.
func WithLogger(l *slog.Logger) Option { return func(s *Service) { s.logger = l } }

// WithRecorder sets the metrics recorder.
func WithRecorder(r metrics.Recorder) Option { return func(s *Service) { s.recorder = r } }

// NewService creates a service.
func NewService(opts ...Option) *Service {
	s := &Service{factory: NewProvider, logger: slog.Default(), recorder: metrics.NoopRecorder{}}
	for _, o := range opts {
		o(s)
	}
	s.recorder = metrics.OrNoop(s.recorder)
	return s
}

// Close releases the cache.
func (s *Service) Close() error {
	if s.cache != nil {
		return s.cache.Close()
	}
	return nil
}

// Enhance asks the provider to rewrite doc according to p. Each attempt runs
// under cfg.Timeout; timeouts and provider failures are retried with backoff
// up to cfg.Retry.Attempts, after which AIRequestFailedError wraps the last
// cause. Output that does not decode or does not satisfy the prompt's
// structural constraints fails with AIResponseValidationError and is not
// retried. The input document is never modified.
func (s *Service) Enhance(ctx context.Context, doc *docmodel.Document, p Prompt, cfg config.AIConfig) (*Response, error) {
	cfg = config.RunConfig{AI: cfg}.Defaults().AI
	if err := doc.Validate(); err != nil {
		return nil, err
	}
	if strings.TrimSpace(p.Text) == "" {
		return nil, derrors.DataValidationError("prompt is required").WithPhase("ai").Build()
	}

	provider := s.provider
	if provider == nil {
		var err error
		provider, err = s.factory(ctx, cfg)
		if err != nil {
			return nil, derrors.ConfigValidationError("cannot create AI provider").
				WithCause(err).
				WithContext("provider", cfg.Provider).
				WithPhase("ai").Build()
		}
	}
	log := s.logger.With(logfields.Provider(provider.Name()), logfields.Model(cfg.Model))
	start := time.Now()

	var key string
	if s.cache != nil && cfg.Cache.IsEnabled() {
		k, err := CacheKey(p, doc, provider.Name(), cfg.Model)
		if err != nil {
			return nil, derrors.InternalError("cannot compute cache key").WithCause(err).Build()
		}
		key = k
		if resp, ok := s.lookup(ctx, key, provider.Name(), log); ok {
			resp.Metadata.GenerationTime = time.Since(start)
			s.recorder.IncAIRequest(provider.Name(), metrics.ResultCached)
			log.Info("AI enhancement served from cache", logfields.Since(start))
			return resp, nil
		}
	}

	req, err := buildRequest(doc, p, cfg.SystemPrompt)
	if err != nil {
		return nil, derrors.InternalError("cannot encode document").WithCause(err).Build()
	}
	req.Model = cfg.Model
	req.Temperature = cfg.TemperatureValue()
	req.MaxTokens = cfg.MaxTokens

	policy := retry.FromConfig(cfg.Retry)
	var lastErr error
	for attempt := 1; attempt <= policy.MaxAttempts; attempt++ {
		reply, err := s.attempt(ctx, provider, req, cfg.Timeout)
		if err == nil {
			resp, verr := s.accept(reply, p, provider.Name(), cfg.Model, attempt)
			if verr != nil {
				s.recorder.IncAIRequest(provider.Name(), metrics.ResultRejected)
				log.Warn("AI response rejected", logfields.Attempt(attempt), logfields.Error(verr))
				return nil, verr
			}
			resp.Metadata.GenerationTime = time.Since(start)
			s.recorder.IncAIRequest(provider.Name(), metrics.ResultSuccess)
			s.recorder.ObserveAIDuration(provider.Name(), resp.Metadata.GenerationTime)
			if key != "" {
				s.store(ctx, key, resp, cfg.Cache.TTL, log)
			}
			log.Info("AI enhancement complete",
				logfields.Attempt(attempt), logfields.Count(len(resp.Document.Sections)), logfields.Since(start))
			return resp, nil
		}

		if ctx.Err() != nil {
			s.recorder.IncAIRequest(provider.Name(), metrics.ResultCanceled)
			return nil, derrors.WrapError(ctx.Err(), derrors.CategoryAI, "AI enhancement canceled").
				WithKind(derrors.KindAIRequestFailed).
				WithContext(derrors.ContextPhase, "ai").
				WithContext("attempts", attempt).Build()
		}
		lastErr = err
		if derrors.IsKind(err, derrors.KindAITimeout) {
			s.recorder.IncAIRequest(provider.Name(), metrics.ResultTimeout)
		} else {
			s.recorder.IncAIRequest(provider.Name(), metrics.ResultFailed)
		}
		log.Warn("AI attempt failed", logfields.Attempt(attempt), logfields.Error(err))

		if attempt < policy.MaxAttempts {
			if werr := retry.Wait(ctx, policy.Delay(attempt)); werr != nil {
				break
			}
		}
	}

	if ctx.Err() != nil {
		lastErr = errors.Join(lastErr, ctx.Err())
	}
	return nil, derrors.AIRequestFailedError(fmt.Sprintf("AI provider failed after %d attempts", policy.MaxAttempts)).
		WithCause(lastErr).
		WithContext("provider", provider.Name()).
		WithContext("attempts", policy.MaxAttempts).
		WithPhase("ai").Build()
}

// attempt runs one provider call under its own deadline.
// attempt runs one provider call under timeout. The deadline holds even for
// providers that ignore ctx: their late answer is discarded.
func (s *Service) attempt(ctx context.Context, provider Provider, req Request, timeout time.Duration) (Reply, error) {
	actx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type answer struct {
		reply Reply
		err   error
	}
	done := make(chan answer, 1)
	go func() {
		reply, err := provider.Complete(actx, req)
		done <- answer{reply, err}
	}()

	var a answer
	select {
	case a = <-done:
		if a.err == nil {
			return a.reply, nil
		}
	case <-actx.Done():
		a.err = actx.Err()
	}
	if ctx.Err() == nil && errors.Is(actx.Err(), context.DeadlineExceeded) {
		return Reply{}, derrors.AITimeoutError(fmt.Sprintf("provider did not answer within %s", timeout)).
			WithCause(a.err).
			WithContext("provider", provider.Name()).
			WithPhase("ai").Build()
	}
	return Reply{}, a.err
}

func (s *Service) accept(reply Reply, p Prompt, provider, model string, attempt int) (*Response, error) {
	doc, err := decodeDocument(reply.Text)
	if err == nil {
		err = checkShape(doc, p)
	}
	if err != nil {
		return nil, derrors.AIResponseValidationError("provider returned an unusable document").
			WithCause(err).
			WithContext("provider", provider).
			WithPhase("ai").Build()
	}
	if reply.Model != "" {
		model = reply.Model
	}
	return &Response{
		Document: doc,
		Metadata: Metadata{Provider: provider, Model: model, TokensUsed: reply.TokensUsed, Attempts: attempt},
	}, nil
}

func (s *Service) lookup(ctx context.Context, key, provider string, log *slog.Logger) (*Response, bool) {
	raw, ok, err := s.cache.Get(ctx, key)
	if err != nil {
		log.Warn("AI cache read failed", logfields.Error(err))
		return nil, false
	}
	if !ok {
		return nil, false
	}
	var entry cachedReply
	if err := json.Unmarshal(raw, &entry); err != nil {
		log.Warn("AI cache entry unreadable", logfields.Error(err))
		return nil, false
	}
	doc, err := docmodel.Decode(entry.Document)
	if err != nil {
		log.Warn("AI cache entry invalid", logfields.Error(err))
		return nil, false
	}
	return &Response{
		Document: doc,
		Metadata: Metadata{Provider: provider, Model: entry.Model, TokensUsed: entry.TokensUsed, Cached: true},
	}, true
}

func (s *Service) store(ctx context.Context, key string, resp *Response, ttl time.Duration, log *slog.Logger) {
	body, err := resp.Document.Canonical()
	if err != nil {
		log.Warn("AI cache encode failed", logfields.Error(err))
		return
	}
	raw, err := json.Marshal(cachedReply{Document: body, Model: resp.Metadata.Model, TokensUsed: resp.Metadata.TokensUsed})
	if err != nil {
		log.Warn("AI cache encode failed", logfields.Error(err))
		return
	}
	if err := s.cache.Set(ctx, key, raw, ttl); err != nil {
		log.Warn("AI cache write failed", logfields.Error(err))
	}
}
