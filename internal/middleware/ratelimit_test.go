package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/hitoshi/securenotes/internal/metrics"
	"github.com/hitoshi/securenotes/internal/model"
)

// newAuthedRequest は認証済みPrincipalを注入したリクエストを生成する。
func newAuthedRequest(method, path string, userID int64) *http.Request {
	req := httptest.NewRequest(method, path, nil)
	return req.WithContext(ContextWithPrincipal(req.Context(), model.Authenticated{UserID: userID}))
}

// --- GeneralMiddleware (API全般) のテスト ---

func TestRateLimitMiddleware_AllowsRequestsWithinLimit(t *testing.T) {
	rl := NewRateLimiter(RateLimiterConfig{
		GeneralRate:     2, // 2 req/sec
		GeneralBurst:    5, // バースト5
		AuthRate:        1,
		AuthBurst:       10,
		CleanupInterval: 1 * time.Minute,
	})
	defer rl.Stop()

	handlerCallCount := 0
	handler := rl.GeneralMiddleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handlerCallCount++
		w.WriteHeader(http.StatusOK)
	}))

	// バースト内の5リクエストは全て通る
	for i := 0; i < 5; i++ {
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, newAuthedRequest(http.MethodGet, "/notes", 1))

		if w.Code != http.StatusOK {
			t.Errorf("request %d: status = %d, want %d", i, w.Code, http.StatusOK)
		}
	}

	if handlerCallCount != 5 {
		t.Errorf("handler call count = %d, want 5", handlerCallCount)
	}
}

func TestRateLimitMiddleware_Returns429WithRetryAfter(t *testing.T) {
	rl := NewRateLimiter(RateLimiterConfig{
		GeneralRate:     1, // 1 req/sec
		GeneralBurst:    2,
		AuthRate:        1,
		AuthBurst:       10,
		CleanupInterval: 1 * time.Minute,
	})
	defer rl.Stop()

	handler := rl.GeneralMiddleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	// バースト分（2回）は通る
	for i := 0; i < 2; i++ {
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, newAuthedRequest(http.MethodGet, "/notes", 7))
		if w.Code != http.StatusOK {
			t.Errorf("request %d: status = %d, want %d", i, w.Code, http.StatusOK)
		}
	}

	// 3回目はレート制限に引っかかる
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, newAuthedRequest(http.MethodGet, "/notes", 7))

	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusTooManyRequests)
	}

	retryAfter := w.Header().Get("Retry-After")
	sec, err := strconv.Atoi(retryAfter)
	if err != nil || sec < 1 {
		t.Errorf("Retry-After = %q, want positive integer", retryAfter)
	}

	var body ErrorResponseBody
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if body.Code != model.ErrCodeRateLimited {
		t.Errorf("code = %q, want %q", body.Code, model.ErrCodeRateLimited)
	}
}

// ユーザーごとに独立した枠を持つこと
func TestRateLimitMiddleware_IndependentPerUser(t *testing.T) {
	rl := NewRateLimiter(RateLimiterConfig{
		GeneralRate:     1,
		GeneralBurst:    1,
		AuthRate:        1,
		AuthBurst:       1,
		CleanupInterval: 1 * time.Minute,
	})
	defer rl.Stop()

	handler := rl.GeneralMiddleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, newAuthedRequest(http.MethodGet, "/notes", 1))
	if w.Code != http.StatusOK {
		t.Fatalf("user 1 first request: status = %d, want %d", w.Code, http.StatusOK)
	}

	w = httptest.NewRecorder()
	handler.ServeHTTP(w, newAuthedRequest(http.MethodGet, "/notes", 1))
	if w.Code != http.StatusTooManyRequests {
		t.Errorf("user 1 second request: status = %d, want %d", w.Code, http.StatusTooManyRequests)
	}

	w = httptest.NewRecorder()
	handler.ServeHTTP(w, newAuthedRequest(http.MethodGet, "/notes", 2))
	if w.Code != http.StatusOK {
		t.Errorf("user 2 should not be limited: status = %d, want %d", w.Code, http.StatusOK)
	}

	if got := rl.GeneralLimiterCount(); got != 2 {
		t.Errorf("GeneralLimiterCount = %d, want 2", got)
	}
}

// 未認証のリクエストはIP単位で制限されること
func TestRateLimitMiddleware_AnonymousKeyedByIP(t *testing.T) {
	rl := NewRateLimiter(RateLimiterConfig{
		GeneralRate:     1,
		GeneralBurst:    1,
		AuthRate:        1,
		AuthBurst:       1,
		CleanupInterval: 1 * time.Minute,
	})
	defer rl.Stop()

	handler := rl.GeneralMiddleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	send := func(addr string) int {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = addr
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		return w.Code
	}

	if code := send("192.0.2.1:1000"); code != http.StatusOK {
		t.Errorf("first request: status = %d, want %d", code, http.StatusOK)
	}
	// ポートが異なっても同一IPとして扱う
	if code := send("192.0.2.1:2000"); code != http.StatusTooManyRequests {
		t.Errorf("same IP: status = %d, want %d", code, http.StatusTooManyRequests)
	}
	if code := send("192.0.2.2:1000"); code != http.StatusOK {
		t.Errorf("other IP: status = %d, want %d", code, http.StatusOK)
	}
}

// --- AuthMiddleware のテスト ---

func TestAuthRateLimit_BlocksAfterBurstAndRecordsMetric(t *testing.T) {
	reg := prometheus.NewRegistry()
	collector := metrics.NewCollector(reg)

	cfg := RateLimiterConfigPerMinute(3, 120)
	cfg.Metrics = collector
	rl := NewRateLimiter(cfg)
	defer rl.Stop()

	handler := rl.AuthMiddleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodPost, "/login", nil)
		req.RemoteAddr = "198.51.100.7:5555"
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		if w.Code != http.StatusOK {
			t.Errorf("request %d: status = %d, want %d", i, w.Code, http.StatusOK)
		}
	}

	req := httptest.NewRequest(http.MethodPost, "/login", nil)
	req.RemoteAddr = "198.51.100.7:5555"
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Code != http.StatusTooManyRequests {
		t.Errorf("status = %d, want %d", w.Code, http.StatusTooManyRequests)
	}
	// 10/60 req/sec -> 1トークンの補充に20秒
	if got := w.Header().Get("Retry-After"); got != "20" {
		t.Errorf("Retry-After = %q, want %q", got, "20")
	}
	if got := counterValue(t, reg, "securenotes_rate_limited_total"); got != 1 {
		t.Errorf("rate_limited_total = %v, want 1", got)
	}
	if got := rl.AuthLimiterCount(); got != 1 {
		t.Errorf("AuthLimiterCount = %d, want 1", got)
	}
}

func TestRateLimiterConfigPerMinute(t *testing.T) {
	cfg := RateLimiterConfigPerMinute(10, 120)

	if cfg.AuthBurst != 10 {
		t.Errorf("AuthBurst = %d, want 10", cfg.AuthBurst)
	}
	if cfg.GeneralBurst != 120 {
		t.Errorf("GeneralBurst = %d, want 120", cfg.GeneralBurst)
	}
	if float64(cfg.GeneralRate) != 2 {
		t.Errorf("GeneralRate = %v, want 2", cfg.GeneralRate)
	}
}

// --- クリーンアップのテスト ---

func TestRateLimiter_CleanupRemovesStaleEntries(t *testing.T) {
	rl := NewRateLimiter(RateLimiterConfig{
		GeneralRate:     1,
		GeneralBurst:    1,
		AuthRate:        1,
		AuthBurst:       1,
		CleanupInterval: 1 * time.Hour,
	})
	defer rl.Stop()

	rl.general.get("user:1")
	rl.auth.get("192.0.2.1")

	// 最終アクセスを古くしてからクリーンアップ
	rl.general.mu.Lock()
	rl.general.limiters["user:1"].lastAccess = time.Now().Add(-3 * time.Hour)
	rl.general.mu.Unlock()

	rl.cleanup()

	if got := rl.GeneralLimiterCount(); got != 0 {
		t.Errorf("GeneralLimiterCount = %d, want 0", got)
	}
	if got := rl.AuthLimiterCount(); got != 1 {
		t.Errorf("AuthLimiterCount = %d, want 1 (recent entry kept)", got)
	}
}

func TestRateLimiter_StopIsIdempotent(t *testing.T) {
	rl := NewRateLimiter(DefaultRateLimiterConfig())
	rl.Stop()
	rl.Stop()
}
