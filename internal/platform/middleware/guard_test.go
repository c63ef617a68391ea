package middleware

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/odonto/odonto/internal/platform/auth"
)

func httpCode(t *testing.T, err error) int {
	t.Helper()
	he, ok := err.(*echo.HTTPError)
	if !ok {
		t.Fatalf("expected *echo.HTTPError, got %T (%v)", err, err)
	}
	return he.Code
}

func readBody(c echo.Context) error {
	if _, err := io.ReadAll(c.Request().Body); err != nil {
		return err
	}
	return c.NoContent(http.StatusOK)
}

func TestParseSize(t *testing.T) {
	tests := []struct {
		in   string
		want int64
	}{
		{"512", 512},
		{"512K", 512 << 10},
		{"8M", 8 << 20},
		{"8mb", 8 << 20},
		{"1G", 1 << 30},
		{"", 1 << 20},
		{"lots", 1 << 20},
		{"-5K", 1 << 20},
	}
	for _, tt := range tests {
		if got := ParseSize(tt.in); got != tt.want {
			t.Errorf("ParseSize(%q) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestBodyLimit_ContentLength(t *testing.T) {
	e := echo.New()
	mw := BodyLimit("16", "64")

	req := httptest.NewRequest(http.MethodPost, "/api/v1/patients", strings.NewReader(strings.Repeat("x", 32)))
	err := mw(readBody)(e.NewContext(req, httptest.NewRecorder()))
	if code := httpCode(t, err); code != http.StatusRequestEntityTooLarge {
		t.Errorf("expected 413, got %d", code)
	}

	// Roster uploads get the larger limit.
	req = httptest.NewRequest(http.MethodPost, "/api/v1/matches", strings.NewReader(strings.Repeat("x", 32)))
	if err := mw(readBody)(e.NewContext(req, httptest.NewRecorder())); err != nil {
		t.Errorf("expected roster body within limit, got %v", err)
	}
}

func TestBodyLimit_EnforcedDuringRead(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/patients", strings.NewReader(strings.Repeat("x", 32)))
	req.ContentLength = -1

	err := BodyLimit("16", "16")(readBody)(e.NewContext(req, httptest.NewRecorder()))
	if code := httpCode(t, err); code != http.StatusRequestEntityTooLarge {
		t.Errorf("expected 413, got %d", code)
	}
}

func TestSecurityHeaders(t *testing.T) {
	e := echo.New()
	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/api/v1/patients", nil), rec)

	if err := SecurityHeaders()(okHandler)(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for h, want := range map[string]string{
		"X-Content-Type-Options": "nosniff",
		"X-Frame-Options":        "DENY",
		"Cache-Control":          "no-store",
		"Referrer-Policy":        "no-referrer",
	} {
		if got := rec.Header().Get(h); got != want {
			t.Errorf("%s = %q, want %q", h, got, want)
		}
	}
}

func TestRequestTimeout(t *testing.T) {
	e := echo.New()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/api/v1/cases/c1/matches", nil), httptest.NewRecorder())

	slow := func(c echo.Context) error {
		<-c.Request().Context().Done()
		return c.Request().Context().Err()
	}
	err := RequestTimeout(10 * time.Millisecond)(slow)(c)
	if code := httpCode(t, err); code != http.StatusGatewayTimeout {
		t.Errorf("expected 504, got %d", code)
	}
}

func TestRequestTimeout_PassesOtherErrors(t *testing.T) {
	e := echo.New()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), httptest.NewRecorder())
	boom := errors.New("boom")

	err := RequestTimeout(time.Second)(func(echo.Context) error { return boom })(c)
	if !errors.Is(err, boom) {
		t.Errorf("expected boom, got %v", err)
	}
}

func TestRateLimit(t *testing.T) {
	e := echo.New()
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	h := rateLimit(RateLimitConfig{RequestsPerSecond: 1, BurstSize: 2}, func() time.Time { return now })(okHandler)

	call := func(user string) error {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/patients", nil)
		if user != "" {
			req = req.WithContext(context.WithValue(req.Context(), auth.UserIDKey, user))
		}
		return h(e.NewContext(req, httptest.NewRecorder()))
	}

	for i := 0; i < 2; i++ {
		if err := call("alice"); err != nil {
			t.Fatalf("request %d: unexpected error %v", i, err)
		}
	}
	if code := httpCode(t, call("alice")); code != http.StatusTooManyRequests {
		t.Errorf("expected 429, got %d", code)
	}

	// Separate bucket per caller.
	if err := call("bob"); err != nil {
		t.Errorf("bob should not be throttled: %v", err)
	}

	now = now.Add(time.Second)
	if err := call("alice"); err != nil {
		t.Errorf("expected refill after one second, got %v", err)
	}
}

func TestTokenBucket_RetryAfterZeroRate(t *testing.T) {
	now := time.Now()
	b := newTokenBucket(0, 0, now)
	ok, retry := b.take(now)
	if ok || retry != 1 {
		t.Errorf("expected denial with retry 1, got ok=%v retry=%d", ok, retry)
	}
}
