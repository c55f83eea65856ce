package llms

import (
	"fmt"

	"github.com/conclave-ai/conclave/meeting"
	"github.com/conclave-ai/conclave/registry"
)

// Factory builds and caches Provider instances by model_config, keyed by
// provider tag, model name, and credential so distinct agents sharing all
// three share one underlying client.
type Factory struct {
	cache *registry.BaseRegistry[Provider]
}

// NewFactory creates an empty provider factory.
func NewFactory() *Factory {
	return &Factory{cache: registry.NewBaseRegistry[Provider]()}
}

func cacheKey(cfg meeting.ModelConfig) string {
	return fmt.Sprintf("%s|%s|%s", cfg.Provider, cfg.ModelName, cfg.Credential)
}

// For returns (constructing and caching if needed) the Provider for cfg.
func (f *Factory) For(cfg meeting.ModelConfig) (Provider, error) {
	key := cacheKey(cfg)
	if p, ok := f.cache.Get(key); ok {
		return p, nil
	}

	p, err := newProvider(cfg)
	if err != nil {
		return nil, err
	}

	// Registration races are benign: last writer loses the race but both
	// constructed providers are equivalent and stateless beyond the
	// underlying SDK client, so ignore a lost-race "already registered".
	_ = f.cache.Register(key, p)
	if cached, ok := f.cache.Get(key); ok {
		return cached, nil
	}
	return p, nil
}

func newProvider(cfg meeting.ModelConfig) (Provider, error) {
	switch cfg.Provider {
	case meeting.ProviderOpenAI:
		return NewOpenAIProvider(cfg)
	case meeting.ProviderAnthropic:
		return NewAnthropicProvider(cfg)
	case meeting.ProviderGoogle:
		return NewGoogleProvider(cfg)
	case meeting.ProviderGLM:
		return NewGLMProvider(cfg)
	default:
		return nil, fmt.Errorf("unsupported model provider %q", cfg.Provider)
	}
}
