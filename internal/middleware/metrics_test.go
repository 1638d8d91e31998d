package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/hitoshi/securenotes/internal/metrics"
)

// counterValue はレジストリから指定名のメトリクスの値を合計して返す。
func counterValue(t *testing.T, reg *prometheus.Registry, name string) float64 {
	t.Helper()
	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather() error: %v", err)
	}
	var total float64
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.GetMetric() {
			total += m.GetCounter().GetValue()
		}
	}
	return total
}

func TestMetricsMiddleware_RecordsStatusCode(t *testing.T) {
	reg := prometheus.NewRegistry()
	collector := metrics.NewCollector(reg)

	handler := NewMetricsMiddleware(collector)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))

	req := httptest.NewRequest(http.MethodGet, "/notes/999", nil)
	handler.ServeHTTP(httptest.NewRecorder(), req)

	families, _ := reg.Gather()
	found := false
	for _, mf := range families {
		if mf.GetName() != "securenotes_http_requests_total" {
			continue
		}
		for _, m := range mf.GetMetric() {
			labels := map[string]string{}
			for _, lp := range m.GetLabel() {
				labels[lp.GetName()] = lp.GetValue()
			}
			if labels["method"] == "GET" && labels["status_code"] == "404" {
				found = true
				if m.GetCounter().GetValue() != 1 {
					t.Errorf("count = %v, want 1", m.GetCounter().GetValue())
				}
			}
		}
	}
	if !found {
		t.Error("securenotes_http_requests_total{method=GET,status_code=404} not recorded")
	}
}

func TestMetricsMiddleware_NilCollector_DoesNotPanic(t *testing.T) {
	handler := NewMetricsMiddleware(nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	}))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", w.Code, http.StatusOK)
	}
}
