package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_IndependentRegistries(t *testing.T) {
	a := New()
	b := New()

	a.Lookup("ok")
	a.Lookup("ok")
	b.Lookup("not_found")

	assert.Equal(t, 2.0, testutil.ToFloat64(a.LookupsTotal.WithLabelValues("ok")))
	assert.Equal(t, 0.0, testutil.ToFloat64(b.LookupsTotal.WithLabelValues("ok")))
}

func TestHelpers(t *testing.T) {
	r := New()
	r.CacheResult("metar", true)
	r.CacheResult("metar", false)
	r.CacheResult("metar", false)
	r.Upstream("checkwx", "ok", 0.2)
	r.Search("success")

	assert.Equal(t, 1.0, testutil.ToFloat64(r.CacheLookupsTotal.WithLabelValues("metar", "hit")))
	assert.Equal(t, 2.0, testutil.ToFloat64(r.CacheLookupsTotal.WithLabelValues("metar", "miss")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.UpstreamRequests.WithLabelValues("checkwx", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.SearchesTotal.WithLabelValues("success")))
}

func TestNilRegistryIsSafe(t *testing.T) {
	var r *Registry
	assert.NotPanics(t, func() {
		r.Lookup("ok")
		r.CacheResult("flight", true)
		r.Upstream("aviationstack", "error", 1)
		r.Search("success")
	})
}

func TestHandler(t *testing.T) {
	r := New()
	r.Lookup("ok")

	srv := httptest.NewServer(r.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), `aeris_flight_lookups_total{outcome="ok"} 1`)
	assert.Contains(t, string(body), "go_goroutines")
}
