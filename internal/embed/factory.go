package embed

import (
	"context"
	"fmt"
	"os"
	"strings"
)

// ProviderType selects which Embedder implementation NewEmbedder builds.
type ProviderType string

const (
	// ProviderRemote calls out to an external embedding model runtime over
	// HTTP (see RemoteConfig).
	ProviderRemote ProviderType = "remote"

	// ProviderStatic uses the dependency-free hash-based embedder. Useful
	// offline, in tests, and as an explicit fallback.
	ProviderStatic ProviderType = "static"
)

// String returns the provider's string form.
func (p ProviderType) String() string {
	return string(p)
}

// ParseProvider parses a provider name, returning an error for anything
// other than "remote" or "static".
func ParseProvider(s string) (ProviderType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "remote":
		return ProviderRemote, nil
	case "static":
		return ProviderStatic, nil
	default:
		return "", fmt.Errorf("unknown embedding provider %q (want remote or static)", s)
	}
}

// NewEmbedder builds an Embedder for the given provider and model name (an
// empty model name uses the provider's default). The CQS_EMBEDDER
// environment variable, when set, overrides provider. Unless CQS_EMBED_CACHE
// disables it, the result is wrapped with an LRU query cache.
func NewEmbedder(_ context.Context, provider ProviderType, model string) (Embedder, error) {
	if env := os.Getenv("CQS_EMBEDDER"); env != "" {
		parsed, err := ParseProvider(env)
		if err != nil {
			return nil, fmt.Errorf("CQS_EMBEDDER: %w", err)
		}
		provider = parsed
	}

	var embedder Embedder
	switch provider {
	case ProviderStatic:
		embedder = NewStaticEmbedder()

	case ProviderRemote:
		cfg := DefaultRemoteConfig()
		if model != "" {
			cfg.Model = model
		}
		if host := os.Getenv("CQS_EMBED_HOST"); host != "" {
			cfg.Host = host
		}
		embedder = NewRemoteEmbedder(cfg)

	default:
		return nil, fmt.Errorf("unknown embedding provider %q", provider)
	}

	if !isCacheDisabled() {
		embedder = NewCachedEmbedderWithDefaults(embedder)
	}

	return embedder, nil
}

// isCacheDisabled reports whether CQS_EMBED_CACHE turns off the query cache.
func isCacheDisabled() bool {
	v := strings.ToLower(os.Getenv("CQS_EMBED_CACHE"))
	return v == "false" || v == "0" || v == "off" || v == "disabled"
}
