package api

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
)

func TestRateGateDisabled(t *testing.T) {
	g := NewRateGate(0, 0)
	if g.Enabled() {
		t.Fatalf("zero limit should disable the gate")
	}
	for i := 0; i < 100; i++ {
		if !g.Allow("1.2.3.4") {
			t.Fatalf("disabled gate must always allow")
		}
	}
}

func TestRateGateExhaustsBurst(t *testing.T) {
	g := NewRateGate(1, 2)
	if !g.Allow("1.2.3.4") || !g.Allow("1.2.3.4") {
		t.Fatalf("expected burst of 2 to be allowed")
	}
	if g.Allow("1.2.3.4") {
		t.Fatalf("expected third immediate request to be throttled")
	}
}

func TestRateGatePerSourceIsolation(t *testing.T) {
	g := NewRateGate(1, 1)
	if !g.Allow("1.2.3.4") {
		t.Fatalf("expected first request allowed")
	}
	if g.Allow("1.2.3.4") {
		t.Fatalf("expected source exhausted")
	}
	if !g.Allow("5.6.7.8") {
		t.Fatalf("another source must not share the limiter")
	}
}

func TestRateGateMiddlewareRejectsWith429(t *testing.T) {
	g := NewRateGate(1, 1)
	e := echo.New()
	e.POST("/hook", func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	}, g.Middleware())

	do := func() int {
		req := httptest.NewRequest(http.MethodPost, "/hook", nil)
		req.RemoteAddr = "1.2.3.4:5678"
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)
		return rec.Code
	}
	if got := do(); got != http.StatusOK {
		t.Fatalf("expected first request to pass, got %d", got)
	}
	if got := do(); got != http.StatusTooManyRequests {
		t.Fatalf("expected 429 after burst, got %d", got)
	}
}
