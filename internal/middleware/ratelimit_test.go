package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/hitoshi/menudigital/internal/model"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func tenantRequest(tenantID string) *http.Request {
	req := httptest.NewRequest(http.MethodGet, "/api/dishes", nil)
	return req.WithContext(ContextWithTenant(req.Context(), &model.Tenant{ID: tenantID}))
}

func testConfig() RateLimiterConfig {
	return RateLimiterConfig{
		GeneralRate:     1,
		GeneralBurst:    2,
		AuthRate:        1,
		AuthBurst:       1,
		PaymentRate:     1,
		PaymentBurst:    1,
		CleanupInterval: time.Minute,
	}
}

// --- GeneralMiddleware のテスト ---

func TestGeneralMiddleware_AllowsRequestsWithinBurst(t *testing.T) {
	rl := NewRateLimiter(testConfig())
	defer rl.Stop()

	handler := rl.GeneralMiddleware()(okHandler())

	for i := 0; i < 2; i++ {
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, tenantRequest("tenant-1"))
		if w.Code != http.StatusOK {
			t.Errorf("request %d: status = %d, want %d", i, w.Code, http.StatusOK)
		}
	}
}

func TestGeneralMiddleware_Returns429WhenLimitExceeded(t *testing.T) {
	rl := NewRateLimiter(testConfig())
	defer rl.Stop()

	handler := rl.GeneralMiddleware()(okHandler())

	for i := 0; i < 2; i++ {
		handler.ServeHTTP(httptest.NewRecorder(), tenantRequest("tenant-1"))
	}

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, tenantRequest("tenant-1"))

	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusTooManyRequests)
	}
	if ra, err := strconv.Atoi(w.Header().Get("Retry-After")); err != nil || ra < 1 {
		t.Errorf("Retry-After = %q, want positive integer", w.Header().Get("Retry-After"))
	}

	var body ErrorResponseBody
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode: %v", err)
	}
	if body.Code != model.ErrCodeRateLimited {
		t.Errorf("code = %q, want %q", body.Code, model.ErrCodeRateLimited)
	}
}

// テナントごとに独立したリミッターを持つ。
func TestGeneralMiddleware_IsolatedPerTenant(t *testing.T) {
	rl := NewRateLimiter(testConfig())
	defer rl.Stop()

	handler := rl.GeneralMiddleware()(okHandler())

	for i := 0; i < 3; i++ {
		handler.ServeHTTP(httptest.NewRecorder(), tenantRequest("tenant-1"))
	}

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, tenantRequest("tenant-2"))
	if w.Code != http.StatusOK {
		t.Errorf("tenant-2 status = %d, want %d", w.Code, http.StatusOK)
	}
	if got := rl.GeneralLimiterCount(); got != 2 {
		t.Errorf("GeneralLimiterCount = %d, want 2", got)
	}
}

// ゲート未通過（テナントなし）のリクエストは制限対象外。
func TestGeneralMiddleware_NoTenantPassesThrough(t *testing.T) {
	rl := NewRateLimiter(testConfig())
	defer rl.Stop()

	handler := rl.GeneralMiddleware()(okHandler())

	for i := 0; i < 5; i++ {
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/menus/x", nil))
		if w.Code != http.StatusOK {
			t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
		}
	}
	if rl.GeneralLimiterCount() != 0 {
		t.Error("no limiter should be created without a tenant")
	}
}

// --- AuthMiddleware のテスト ---

func TestAuthMiddleware_LimitsPerIP(t *testing.T) {
	rl := NewRateLimiter(testConfig())
	defer rl.Stop()

	handler := rl.AuthMiddleware()(okHandler())

	newReq := func(addr string) *http.Request {
		req := httptest.NewRequest(http.MethodPost, "/api/auth/login", nil)
		req.RemoteAddr = addr
		return req
	}

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, newReq("203.0.113.5:40000"))
	if w.Code != http.StatusOK {
		t.Fatalf("first request status = %d", w.Code)
	}

	// ポートが違っても同じIPアドレスとして扱う
	w = httptest.NewRecorder()
	handler.ServeHTTP(w, newReq("203.0.113.5:40001"))
	if w.Code != http.StatusTooManyRequests {
		t.Errorf("second request status = %d, want %d", w.Code, http.StatusTooManyRequests)
	}

	w = httptest.NewRecorder()
	handler.ServeHTTP(w, newReq("198.51.100.7:40000"))
	if w.Code != http.StatusOK {
		t.Errorf("other IP status = %d, want %d", w.Code, http.StatusOK)
	}
	if got := rl.AuthLimiterCount(); got != 2 {
		t.Errorf("AuthLimiterCount = %d, want 2", got)
	}
}

// --- PaymentMiddleware のテスト ---

// 決済検証の制限はAPI全般の制限とは独立している。
func TestPaymentMiddleware_IndependentFromGeneral(t *testing.T) {
	rl := NewRateLimiter(testConfig())
	defer rl.Stop()

	handler := rl.GeneralMiddleware()(rl.PaymentMiddleware()(okHandler()))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, tenantRequest("tenant-1"))
	if w.Code != http.StatusOK {
		t.Fatalf("first request status = %d", w.Code)
	}

	w = httptest.NewRecorder()
	handler.ServeHTTP(w, tenantRequest("tenant-1"))
	if w.Code != http.StatusTooManyRequests {
		t.Errorf("second payment status = %d, want %d", w.Code, http.StatusTooManyRequests)
	}

	w = httptest.NewRecorder()
	rl.GeneralMiddleware()(okHandler()).ServeHTTP(w, tenantRequest("tenant-1"))
	if w.Code != http.StatusTooManyRequests {
		t.Errorf("general limiter should have consumed its burst of 2, status = %d", w.Code)
	}
	if rl.PaymentLimiterCount() != 1 {
		t.Errorf("PaymentLimiterCount = %d, want 1", rl.PaymentLimiterCount())
	}
}

// --- クリーンアップのテスト ---

func TestRateLimiter_CleanupEvictsIdleEntries(t *testing.T) {
	cfg := testConfig()
	cfg.CleanupInterval = time.Hour
	rl := NewRateLimiter(cfg)
	defer rl.Stop()

	rl.GeneralMiddleware()(okHandler()).ServeHTTP(httptest.NewRecorder(), tenantRequest("tenant-1"))
	if rl.GeneralLimiterCount() != 1 {
		t.Fatalf("GeneralLimiterCount = %d, want 1", rl.GeneralLimiterCount())
	}

	rl.general.mu.Lock()
	rl.general.limiters["tenant-1"].lastAccess = time.Now().Add(-3 * time.Hour)
	rl.general.mu.Unlock()

	rl.cleanup()

	if rl.GeneralLimiterCount() != 0 {
		t.Errorf("GeneralLimiterCount after cleanup = %d, want 0", rl.GeneralLimiterCount())
	}
}

func TestRateLimiter_StopIsIdempotent(t *testing.T) {
	rl := NewRateLimiter(testConfig())
	rl.Stop()
	rl.Stop()
}

func TestRateLimiterConfigPerMinute(t *testing.T) {
	cfg := RateLimiterConfigPerMinute(120, 10, 6)
	if cfg.GeneralRate != 2 || cfg.GeneralBurst != 120 {
		t.Errorf("general = %v/%d", cfg.GeneralRate, cfg.GeneralBurst)
	}
	if cfg.AuthBurst != 10 || cfg.PaymentBurst != 6 {
		t.Errorf("auth/payment burst = %d/%d", cfg.AuthBurst, cfg.PaymentBurst)
	}
	if cfg.PaymentRate != 0.1 {
		t.Errorf("PaymentRate = %v, want 0.1", cfg.PaymentRate)
	}
}
