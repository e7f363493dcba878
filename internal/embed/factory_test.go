package embed

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseProvider_RecognizesKnownNames(t *testing.T) {
	p, err := ParseProvider("static")
	require.NoError(t, err)
	assert.Equal(t, ProviderStatic, p)

	p, err = ParseProvider(" Remote ")
	require.NoError(t, err)
	assert.Equal(t, ProviderRemote, p)
}

func TestParseProvider_RejectsUnknownName(t *testing.T) {
	_, err := ParseProvider("ollama")
	assert.Error(t, err)
}

func TestNewEmbedder_StaticProvider(t *testing.T) {
	e, err := NewEmbedder(context.Background(), ProviderStatic, "")
	require.NoError(t, err)
	defer e.Close()

	// Default config wraps with a cache; unwrap to confirm the provider.
	cached, ok := e.(*CachedEmbedder)
	require.True(t, ok)
	_, ok = cached.Inner().(*StaticEmbedder)
	assert.True(t, ok)
}

func TestNewEmbedder_CacheDisabledViaEnv(t *testing.T) {
	t.Setenv("CQS_EMBED_CACHE", "off")

	e, err := NewEmbedder(context.Background(), ProviderStatic, "")
	require.NoError(t, err)
	defer e.Close()

	_, ok := e.(*CachedEmbedder)
	assert.False(t, ok, "CQS_EMBED_CACHE=off should skip the cache wrapper")
}

func TestNewEmbedder_EnvOverridesProviderArgument(t *testing.T) {
	t.Setenv("CQS_EMBEDDER", "static")

	e, err := NewEmbedder(context.Background(), ProviderRemote, "")
	require.NoError(t, err)
	defer e.Close()

	cached := e.(*CachedEmbedder)
	_, ok := cached.Inner().(*StaticEmbedder)
	assert.True(t, ok, "CQS_EMBEDDER should override the provider passed in")
}

func TestNewEmbedder_InvalidEnvProviderReturnsError(t *testing.T) {
	t.Setenv("CQS_EMBEDDER", "bogus")

	_, err := NewEmbedder(context.Background(), ProviderStatic, "")
	assert.Error(t, err)
}
