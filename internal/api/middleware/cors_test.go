package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"conduzauto/backend/config"
)

func newCORSRouter(origins ...string) *gin.Engine {
	r := gin.New()
	r.Use(SecurityHeaders())
	r.Use(CORS(&config.CORSConfig{AllowOrigins: origins, MaxAge: time.Hour}))
	r.GET("/ping", func(c *gin.Context) { c.String(http.StatusOK, "pong") })
	return r
}

func corsRequest(r *gin.Engine, method, origin string, preflight bool) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, "/ping", nil)
	if origin != "" {
		req.Header.Set("Origin", origin)
	}
	if preflight {
		req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	}
	r.ServeHTTP(w, req)
	return w
}

func TestCORS_AllowedOrigin(t *testing.T) {
	r := newCORSRouter("http://localhost:3000/")

	w := corsRequest(r, http.MethodGet, "http://LOCALHOST:3000", false)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "http://LOCALHOST:3000" {
		t.Errorf("expected origin echoed, got %q", got)
	}
	if w.Header().Get("Access-Control-Allow-Credentials") != "true" {
		t.Error("expected credentials allowed for listed origin")
	}
	if w.Header().Get("Access-Control-Expose-Headers") == "" {
		t.Error("expected exposed headers for downloads")
	}
	if w.Header().Get("Access-Control-Allow-Methods") != "" {
		t.Error("simple requests should not carry preflight headers")
	}
	if w.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Error("expected security headers")
	}
}

func TestCORS_UnknownOrigin(t *testing.T) {
	r := newCORSRouter("http://localhost:3000")

	w := corsRequest(r, http.MethodGet, "https://evil.example", false)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Errorf("expected no CORS header, got %q", got)
	}
	if w.Header().Get("Vary") != "Origin" {
		t.Error("expected Vary: Origin")
	}

	w = corsRequest(r, http.MethodOptions, "https://evil.example", true)
	if w.Code != http.StatusForbidden {
		t.Errorf("preflight from unknown origin: expected 403, got %d", w.Code)
	}
}

func TestCORS_Preflight(t *testing.T) {
	r := newCORSRouter("http://localhost:3000")

	w := corsRequest(r, http.MethodOptions, "http://localhost:3000", true)
	if w.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", w.Code)
	}
	if w.Header().Get("Access-Control-Allow-Methods") == "" || w.Header().Get("Access-Control-Allow-Headers") == "" {
		t.Error("expected preflight headers")
	}
	if got := w.Header().Get("Access-Control-Max-Age"); got != "3600" {
		t.Errorf("expected max age 3600, got %q", got)
	}
}

func TestCORS_Wildcard(t *testing.T) {
	r := newCORSRouter("*")

	w := corsRequest(r, http.MethodGet, "https://any.example", false)
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Errorf("expected wildcard origin, got %q", got)
	}
	if w.Header().Get("Access-Control-Allow-Credentials") != "" {
		t.Error("wildcard origin must not allow credentials")
	}
}
