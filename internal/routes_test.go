package internal

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	json "github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"listentier/internal/controllers"
	"listentier/internal/models"
	"listentier/internal/normalizer"
	"listentier/internal/providers"
	"listentier/internal/services"
	"listentier/internal/storage"
	"listentier/internal/structures"
	"listentier/internal/testutil"
	"listentier/internal/tier"
)

func newTestHandler(t *testing.T) (http.Handler, providers.RouterProviderInterface) {
	t.Helper()
	return newTestHandlerWithCache(t, testutil.NewMockCache())
}

func newTestHandlerWithCache(t *testing.T, cache *testutil.MockCache) (http.Handler, providers.RouterProviderInterface) {
	t.Helper()
	conf := &structures.Config{
		Aggregation: structures.AggregationConfig{MinPlayMs: 5000},
		Tier:        structures.DefaultTierConfig(),
	}
	calc, err := tier.NewCalculator(conf.Tier)
	require.NoError(t, err)

	logger := &testutil.MockLogger{}
	metrics := &testutil.MockMetrics{}
	svc := services.NewHistoryService(conf, storage.NewHistoryRepository(storage.NewMemoryStore()), normalizer.New(), calc,
		nil, &testutil.MockMintSink{TxID: "0x1"}, cache, metrics, logger)

	router := InitRoutes(controllers.NewApiController(conf, logger, svc, cache))
	return NewHandler(controllers.NewHealthController(svc), conf, router, metrics), router
}

func TestInitRoutes_RegistersApiRoutes(t *testing.T) {
	_, router := newTestHandler(t)
	routes := router.GetRoutes()

	require.Len(t, routes, 9)

	urls := make([]string, len(routes))
	for i, r := range routes {
		urls[i] = r.Url
	}

	for _, u := range []string{"/import", "/sync", "/stats", "/top/artists", "/top/tracks", "/tier", "/reward", "/mint", "/history"} {
		assert.Contains(t, urls, u)
	}
}

func TestInitRoutes_MethodEnforcement(t *testing.T) {
	handler, _ := newTestHandler(t)

	tests := []struct {
		method, path string
	}{
		{http.MethodPost, "/stats"},
		{http.MethodGet, "/import"},
		{http.MethodGet, "/history"},
		{http.MethodDelete, "/mint"},
	}
	for _, tt := range tests {
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, httptest.NewRequest(tt.method, tt.path, nil))
		assert.Equal(t, http.StatusMethodNotAllowed, rr.Code, tt.method+" "+tt.path)
	}
}

func TestHandler_StatsComputedBeforeImportAreNotCached(t *testing.T) {
	cache := testutil.NewMockCache()
	handler, _ := newTestHandlerWithCache(t, cache)

	computed := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once
	cache.BeforeSet = func(key string) {
		if strings.HasPrefix(key, "/stats") {
			once.Do(func() {
				close(computed)
				<-release
			})
		}
	}

	first := make(chan *httptest.ResponseRecorder, 1)
	go func() {
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/stats", nil))
		first <- rr
	}()
	<-computed

	doc := `[{"ts":"2024-07-01T18:00:00Z","ms_played":60000,"master_metadata_track_name":"One","master_metadata_album_artist_name":"A"}]`
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/import", strings.NewReader(doc)))
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	close(release)
	var stats models.StreamingStats
	require.NoError(t, json.Unmarshal((<-first).Body.Bytes(), &stats))
	assert.Equal(t, int64(0), stats.TotalPlays)

	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/stats", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &stats))
	assert.Equal(t, int64(1), stats.TotalPlays)
}

func TestHandler_ImportThenQuery(t *testing.T) {
	handler, _ := newTestHandler(t)
	doc := `[{"ts":"2024-07-01T18:00:00Z","ms_played":7200000,"master_metadata_track_name":"One","master_metadata_album_artist_name":"A"}]`

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/import", strings.NewReader(doc)))
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.Contains(t, rr.Body.String(), `"added":1`)

	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/reward", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"reward":2.5`)

	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/mint", strings.NewReader(`{"address":"0xabc"}`)))
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.Contains(t, rr.Body.String(), "0x1")

	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/sync", nil))
	assert.Equal(t, http.StatusBadRequest, rr.Code, "sync is not configured")

	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodDelete, "/history", nil))
	assert.Equal(t, http.StatusNoContent, rr.Code)

	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"records":0`)
}

func TestHandler_MetricsOnlyWhenEnabled(t *testing.T) {
	handler, _ := newTestHandler(t)

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusNotFound, rr.Code)
}
