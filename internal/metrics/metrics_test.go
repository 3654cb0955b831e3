package metrics

import (
	"errors"
	"math"
	"net/http/httptest"
	"testing"
	"time"

	dto "github.com/prometheus/client_model/go"
)

func TestRecorderInstallOutcomes(t *testing.T) {
	rec := NewRecorder(nil)
	rec.InstallCompleted("v1", 12, 250*time.Millisecond)
	rec.InstallFailed("v2", "https://site.test/mp4/HD.mp4", errors.New("404"))

	families := gather(t, rec, "assetcache_install_total", "assetcache_install_duration_seconds", "assetcache_install_entries")

	for _, outcome := range []string{"success", "failure"} {
		m := findMetric(t, families["assetcache_install_total"], map[string]string{"outcome": outcome})
		if got := m.GetCounter().GetValue(); got != 1 {
			t.Fatalf("expected %s counter 1, got %v", outcome, got)
		}
	}

	hist := families["assetcache_install_duration_seconds"][0].GetHistogram()
	if hist == nil || hist.GetSampleCount() != 1 {
		t.Fatalf("expected one install latency sample")
	}
	if diff := math.Abs(hist.GetSampleSum() - 0.25); diff > 0.001 {
		t.Fatalf("expected histogram sum near 0.25, got %v", hist.GetSampleSum())
	}
	if got := families["assetcache_install_entries"][0].GetGauge().GetValue(); got != 12 {
		t.Fatalf("expected entries gauge 12, got %v", got)
	}
}

func TestRecorderResolveAndDeletions(t *testing.T) {
	rec := NewRecorder(nil)
	rec.ResolveHit("a")
	rec.ResolveHit("b")
	rec.ResolveMiss("c")
	rec.StaleDeleted("v0")
	rec.StaleDeleteFailed("old", errors.New("down"))
	rec.SelfHeal("entry:site:v1:abc", "corrupt")

	families := gather(t, rec,
		"assetcache_resolve_requests_total",
		"assetcache_activate_stale_deletions_total",
		"assetcache_store_self_heals_total")

	if got := findMetric(t, families["assetcache_resolve_requests_total"], map[string]string{"result": "hit"}).GetCounter().GetValue(); got != 2 {
		t.Fatalf("expected 2 hits, got %v", got)
	}
	if got := findMetric(t, families["assetcache_resolve_requests_total"], map[string]string{"result": "miss"}).GetCounter().GetValue(); got != 1 {
		t.Fatalf("expected 1 miss, got %v", got)
	}
	if got := findMetric(t, families["assetcache_activate_stale_deletions_total"], map[string]string{"result": "failed"}).GetCounter().GetValue(); got != 1 {
		t.Fatalf("expected 1 failed deletion, got %v", got)
	}
	findMetric(t, families["assetcache_store_self_heals_total"], map[string]string{"reason": "corrupt"})
}

func TestRecorderActiveGeneration(t *testing.T) {
	rec := NewRecorder(nil)
	rec.SetActive("v0")
	rec.SetActive("v1")

	families := gather(t, rec, "assetcache_active_generation_info")
	metrics := families["assetcache_active_generation_info"]
	if len(metrics) != 1 {
		t.Fatalf("expected a single active generation series, got %d", len(metrics))
	}
	findMetric(t, metrics, map[string]string{"generation": "v1"})
}

func TestNilRecorderIsSafe(t *testing.T) {
	var rec *Recorder
	rec.ResolveHit("x")
	rec.InstallCompleted("v1", 1, time.Second)
	rec.SetActive("v1")
	rr := httptest.NewRecorder()
	rec.Handler().ServeHTTP(rr, httptest.NewRequest("GET", "/metrics", nil))
	if rr.Code != 503 {
		t.Fatalf("expected 503 from nil recorder, got %d", rr.Code)
	}
}

func TestRecorderHandler(t *testing.T) {
	rec := NewRecorder(nil)
	rr := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/metrics", nil)

	rec.Handler().ServeHTTP(rr, req)

	if rr.Code != 200 {
		t.Fatalf("expected 200 response, got %d", rr.Code)
	}
	if rr.Body.Len() == 0 {
		t.Fatalf("expected response body")
	}
}

func gather(t *testing.T, rec *Recorder, names ...string) map[string][]*dto.Metric {
	t.Helper()
	wanted := make(map[string]bool, len(names))
	for _, name := range names {
		wanted[name] = true
	}
	families, err := rec.Gatherer().Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}
	collected := make(map[string][]*dto.Metric, len(names))
	for _, mf := range families {
		if !wanted[mf.GetName()] {
			continue
		}
		collected[mf.GetName()] = append(collected[mf.GetName()], mf.GetMetric()...)
	}
	for _, name := range names {
		if len(collected[name]) == 0 {
			t.Fatalf("metric %q not collected", name)
		}
	}
	return collected
}

func findMetric(t *testing.T, metrics []*dto.Metric, labels map[string]string) *dto.Metric {
	t.Helper()
	for _, metric := range metrics {
		if matchLabels(metric, labels) {
			return metric
		}
	}
	t.Fatalf("metric with labels %v not found", labels)
	return nil
}

func matchLabels(metric *dto.Metric, labels map[string]string) bool {
	for key, expected := range labels {
		found := false
		for _, label := range metric.GetLabel() {
			if label.GetName() == key && label.GetValue() == expected {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}
