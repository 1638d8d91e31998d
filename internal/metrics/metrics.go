// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsCollector はメトリクス収集のインターフェース。
// ミドルウェア、ハンドラー、ワーカーから利用する。
type MetricsCollector interface {
	RecordHTTPRequest(method string, statusCode int, duration time.Duration)
	RecordLogin(success bool)
	RecordRegistration()
	RecordForbidden()
	RecordRateLimited(scope string)
	RecordCSRFFailure()
	RecordSessionsCleaned(count int64)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	httpRequests    *prometheus.CounterVec
	httpLatency     prometheus.Histogram
	logins          *prometheus.CounterVec
	registrations   prometheus.Counter
	forbidden       prometheus.Counter
	rateLimited     *prometheus.CounterVec
	csrfFailures    prometheus.Counter
	sessionsCleaned prometheus.Counter
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "securenotes_http_requests_total",
			Help: "メソッド・ステータスコード別のHTTPリクエスト数",
		}, []string{"method", "status_code"}),
		httpLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "securenotes_http_request_duration_seconds",
			Help:    "HTTPリクエストの処理時間（秒）",
			Buckets: prometheus.DefBuckets,
		}),
		logins: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "securenotes_login_total",
			Help: "結果別のログイン試行数",
		}, []string{"result"}),
		registrations: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "securenotes_registrations_total",
			Help: "ユーザー登録の合計数",
		}),
		forbidden: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "securenotes_forbidden_total",
			Help: "アクセス拒否されたメモ操作の合計数",
		}),
		rateLimited: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "securenotes_rate_limited_total",
			Help: "スコープ別のレート制限超過数",
		}, []string{"scope"}),
		csrfFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "securenotes_csrf_failures_total",
			Help: "CSRFトークン検証失敗の合計数",
		}),
		sessionsCleaned: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "securenotes_sessions_cleaned_total",
			Help: "削除された期限切れセッションの合計数",
		}),
	}

	reg.MustRegister(
		c.httpRequests,
		c.httpLatency,
		c.logins,
		c.registrations,
		c.forbidden,
		c.rateLimited,
		c.csrfFailures,
		c.sessionsCleaned,
	)

	return c
}

// RecordHTTPRequest はHTTPリクエストのステータスと処理時間を記録する。
func (c *Collector) RecordHTTPRequest(method string, statusCode int, duration time.Duration) {
	c.httpRequests.WithLabelValues(method, strconv.Itoa(statusCode)).Inc()
	c.httpLatency.Observe(duration.Seconds())
}

// RecordLogin はログイン試行の結果を記録する。
func (c *Collector) RecordLogin(success bool) {
	result := "failure"
	if success {
		result = "success"
	}
	c.logins.WithLabelValues(result).Inc()
}

// RecordRegistration はユーザー登録を記録する。
func (c *Collector) RecordRegistration() {
	c.registrations.Inc()
}

// RecordForbidden はアクセス拒否を記録する。
func (c *Collector) RecordForbidden() {
	c.forbidden.Inc()
}

// RecordRateLimited はレート制限超過を記録する。scopeは "auth" または "general"。
func (c *Collector) RecordRateLimited(scope string) {
	c.rateLimited.WithLabelValues(scope).Inc()
}

// RecordCSRFFailure はCSRF検証失敗を記録する。
func (c *Collector) RecordCSRFFailure() {
	c.csrfFailures.Inc()
}

// RecordSessionsCleaned は削除された期限切れセッション数を記録する。
func (c *Collector) RecordSessionsCleaned(count int64) {
	c.sessionsCleaned.Add(float64(count))
}

// Nop は何も記録しないMetricsCollector。
type Nop struct{}

func (Nop) RecordHTTPRequest(string, int, time.Duration) {}
func (Nop) RecordLogin(bool)                             {}
func (Nop) RecordRegistration()                          {}
func (Nop) RecordForbidden()                             {}
func (Nop) RecordRateLimited(string)                     {}
func (Nop) RecordCSRFFailure()                           {}
func (Nop) RecordSessionsCleaned(int64)                  {}

var (
	_ MetricsCollector = (*Collector)(nil)
	_ MetricsCollector = Nop{}
)

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// SetupMetricsRoute は/metricsエンドポイントを提供するHTTPハンドラーを返す。
// workerプロセスが単独でメトリクスを公開する際に使用する。
func SetupMetricsRoute(gatherer prometheus.Gatherer) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler(gatherer))
	return mux
}
