package server

import (
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/gavv/httpexpect/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unkn0wn-root/assetcache/internal/config"
	"github.com/unkn0wn-root/assetcache/internal/host"
	"github.com/unkn0wn-root/assetcache/internal/metrics"
	"github.com/unkn0wn-root/assetcache/store"
)

type fixture struct {
	origin *httptest.Server
	front  *httptest.Server
	host   *host.Host
	expect *httpexpect.Expect

	mu   sync.Mutex
	hits map[string]int
}

func newFixture(t *testing.T, gen string, manifest ...string) *fixture {
	t.Helper()
	f := &fixture{hits: map[string]int{}}
	f.origin = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		f.hits[r.Method+" "+r.URL.RequestURI()]++
		f.mu.Unlock()
		switch r.URL.Path {
		case "/", "/index.html":
			w.Header().Set("Content-Type", "text/html")
			_, _ = io.WriteString(w, "<html>index</html>")
		case "/style.css":
			w.Header().Set("Content-Type", "text/css")
			_, _ = io.WriteString(w, "body{}")
		case "/api/checkout":
			w.WriteHeader(http.StatusCreated)
			_, _ = io.WriteString(w, "ordered")
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(f.origin.Close)

	rec := metrics.NewRecorder(nil)
	h, err := host.New(host.Options{
		Store:      store.NewMemory(),
		Fetcher:    f.origin.Client(),
		Hooks:      rec,
		OnActivate: rec.SetActive,
	}, config.CacheConfig{Generation: gen, Origin: f.origin.URL, Manifest: manifest})
	require.NoError(t, err)
	f.host = h

	f.front = httptest.NewServer(NewRouter(h, rec.Handler(), nil))
	t.Cleanup(f.front.Close)

	f.expect = httpexpect.WithConfig(httpexpect.Config{
		BaseURL:  f.front.URL,
		Reporter: httpexpect.NewRequireReporter(t),
		Client:   f.front.Client(),
	})
	return f
}

func (f *fixture) count(key string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.hits[key]
}

func TestDeployThenServeFromCache(t *testing.T) {
	f := newFixture(t, "reinmax-creative-cache-v1", "/", "/style.css")

	f.expect.GET("/_/healthz").Expect().
		Status(http.StatusOK).
		JSON().Object().Value("active").String().IsEqual("")

	f.expect.POST("/_/deploy").Expect().
		Status(http.StatusOK).
		JSON().Object().Value("retained").String().IsEqual("reinmax-creative-cache-v1")

	res := f.expect.GET("/style.css").Expect().Status(http.StatusOK)
	res.Body().IsEqual("body{}")
	res.Header("Content-Type").IsEqual("text/css")
	res = f.expect.GET("/style.css").Expect().Status(http.StatusOK)
	res.Body().IsEqual("body{}")
	assert.Equal(t, 1, f.count("GET /style.css"), "only the install fetch reaches the origin")

	gens := f.expect.GET("/_/generations").Expect().Status(http.StatusOK).JSON().Object()
	gens.Value("active").String().IsEqual("reinmax-creative-cache-v1")
	gens.Value("generations").Array().IsEqual([]string{"reinmax-creative-cache-v1"})
}

func TestProxyPassesThroughMissesAndWrites(t *testing.T) {
	f := newFixture(t, "v1", "/")
	f.expect.POST("/_/deploy").Expect().Status(http.StatusOK)

	f.expect.POST("/api/checkout").WithText("cart").Expect().
		Status(http.StatusCreated).
		Body().IsEqual("ordered")
	assert.Equal(t, 1, f.count("POST /api/checkout"))

	f.expect.GET("/portfolio.html").Expect().Status(http.StatusNotFound)
	f.expect.GET("/portfolio.html").Expect().Status(http.StatusNotFound)
	assert.Equal(t, 2, f.count("GET /portfolio.html"))

	f.expect.GET("/index.html").WithQuery("utm", "mail").Expect().Status(http.StatusOK)
	assert.Equal(t, 1, f.count("GET /index.html?utm=mail"))
}

func TestManualLifecycleEndpoints(t *testing.T) {
	f := newFixture(t, "v1", "/index.html")

	f.expect.POST("/_/activate").Expect().
		Status(http.StatusConflict).
		JSON().Object().ContainsKey("error")

	f.expect.POST("/_/install").Expect().
		Status(http.StatusOK).
		JSON().Object().Value("installed").String().IsEqual("v1")
	f.expect.GET("/_/generations").Expect().
		JSON().Object().Value("active").String().IsEqual("")

	f.expect.POST("/_/activate").Expect().
		Status(http.StatusOK).
		JSON().Object().Value("deleted").Array().IsEmpty()
	f.expect.GET("/_/healthz").Expect().
		JSON().Object().Value("active").String().IsEqual("v1")
}

func TestFailedInstallReportsBadGateway(t *testing.T) {
	f := newFixture(t, "v1", "/", "/mp4/HD.mp4")
	f.expect.POST("/_/deploy").Expect().
		Status(http.StatusBadGateway).
		JSON().Object().Value("error").String().Contains("/mp4/HD.mp4")
	f.expect.GET("/_/generations").Expect().
		JSON().Object().Value("generations").Array().IsEmpty()
}

func TestMetricsEndpoint(t *testing.T) {
	f := newFixture(t, "v1", "/")
	f.expect.POST("/_/deploy").Expect().Status(http.StatusOK)
	f.expect.GET("/").Expect().Status(http.StatusOK)

	body := f.expect.GET("/_/metrics").Expect().Status(http.StatusOK).Body()
	body.Contains(`assetcache_resolve_requests_total{result="hit"} 1`)
	body.Contains(`assetcache_active_generation_info{generation="v1"} 1`)
}

func TestOutboundRewritesOntoOrigin(t *testing.T) {
	in := httptest.NewRequest(http.MethodGet, "http://front.test/jpg/hero-fallback.jpg?w=2", nil)
	in.Header.Set("Connection", "keep-alive")
	in.Header.Set("Accept", "image/*")

	out, err := outbound(in, "https://reinmax.test/")
	require.NoError(t, err)
	assert.Equal(t, "https://reinmax.test/jpg/hero-fallback.jpg?w=2", out.URL.String())
	assert.Equal(t, "image/*", out.Header.Get("Accept"))
	assert.Empty(t, out.Header.Get("Connection"))
}
