package telemetry

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_ObserveAndScrape(t *testing.T) {
	m := NewMetrics()

	m.Observe("search", nil, 0.01)
	m.Observe("search", errors.New("boom"), 0.2)
	m.SearchResults.Observe(7)
	m.IndexBatch.Observe(1.5)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "cqs_mcp_tool_calls_total")
	assert.Contains(t, body, `tool="search"`)
	assert.Contains(t, body, "cqs_mcp_tool_errors_total")
	assert.Contains(t, body, "cqs_search_result_count")
	assert.True(t, strings.Contains(body, "cqs_index_batch_duration_seconds"))
}

func TestMetrics_IndependentRegistries(t *testing.T) {
	a := NewMetrics()
	b := NewMetrics()

	a.Observe("callers", nil, 0.01)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	b.Handler().ServeHTTP(rec, req)

	assert.NotContains(t, rec.Body.String(), `tool="callers"`)
}
