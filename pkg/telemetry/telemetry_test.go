package telemetry

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"heapstore/pkg/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDisabledIsNoop(t *testing.T) {
	tel, shutdown, err := New(config.MetricsConfig{Enabled: false})
	require.NoError(t, err)
	defer shutdown(context.Background())

	assert.Nil(t, tel.Registry)
	c, err := tel.MeterProvider.Meter("test").Int64Counter("x")
	require.NoError(t, err)
	c.Add(context.Background(), 1)

	rec := httptest.NewRecorder()
	tel.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestEnabledExportsCounters(t *testing.T) {
	tel, shutdown, err := New(config.MetricsConfig{Enabled: true})
	require.NoError(t, err)
	defer func() { require.NoError(t, shutdown(context.Background())) }()

	c, err := tel.MeterProvider.Meter("test").Int64Counter("heapstore.test.events")
	require.NoError(t, err)
	c.Add(context.Background(), 3)

	srv := httptest.NewServer(tel.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "heapstore_test_events")
	assert.Contains(t, string(body), "go_goroutines")
}
