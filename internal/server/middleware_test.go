package server

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"quoteflow/internal/auth"
	"quoteflow/internal/models"
)

func TestGzipMiddleware(t *testing.T) {
	handler := GzipMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		w.Write([]byte("Hello World"))
	}))

	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set("Accept-Encoding", "gzip")
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	if w.Header().Get("Content-Encoding") != "gzip" {
		t.Error("Expected Content-Encoding: gzip")
	}

	gr, err := gzip.NewReader(w.Body)
	if err != nil {
		t.Fatalf("Failed to create gzip reader: %v", err)
	}
	defer gr.Close()

	body, err := io.ReadAll(gr)
	if err != nil {
		t.Fatalf("Failed to read gzip body: %v", err)
	}
	if string(body) != "Hello World" {
		t.Errorf("Expected 'Hello World', got '%s'", string(body))
	}
}

func TestGzipMiddleware_NoGzipAccept(t *testing.T) {
	handler := GzipMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("Hello World"))
	}))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest("GET", "/", nil))

	if w.Header().Get("Content-Encoding") == "gzip" {
		t.Error("Expected no Content-Encoding: gzip")
	}
	if w.Body.String() != "Hello World" {
		t.Errorf("Expected 'Hello World', got '%s'", w.Body.String())
	}
}

func TestGzipMiddleware_SkipsWebsocketUpgrade(t *testing.T) {
	handler := GzipMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := w.(GzipResponseWriter); ok {
			t.Error("Expected upgrade request to bypass gzip")
		}
	}))
	req := httptest.NewRequest("GET", "/api/v1/ws", nil)
	req.Header.Set("Accept-Encoding", "gzip")
	req.Header.Set("Upgrade", "websocket")
	handler.ServeHTTP(httptest.NewRecorder(), req)
}

type fakeAuthn map[string]*models.Principal

func (f fakeAuthn) Authenticate(_ context.Context, token string) (*models.Principal, error) {
	p, ok := f[token]
	if !ok {
		return nil, errors.New("bad token")
	}
	return p, nil
}

func TestRequireAuth(t *testing.T) {
	ada := &models.Principal{UserID: "u1", Username: "ada", Role: models.RoleAdmin}
	var seen *models.Principal
	handler := RequireAuth(fakeAuthn{"good": ada}, "/api/v1/health")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = auth.PrincipalFrom(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	tests := []struct {
		name   string
		path   string
		header string
		want   int
		user   *models.Principal
	}{
		{"no header", "/api/v1/rfqs", "", 401, nil},
		{"not bearer", "/api/v1/rfqs", "Basic abc", 401, nil},
		{"bad token", "/api/v1/rfqs", "Bearer nope", 401, nil},
		{"good token", "/api/v1/rfqs", "Bearer good", 204, ada},
		{"public path", "/api/v1/health", "", 204, nil},
		{"outside api", "/index.html", "", 204, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			seen = nil
			req := httptest.NewRequest("GET", tt.path, nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)
			if w.Code != tt.want {
				t.Fatalf("Expected %d, got %d", tt.want, w.Code)
			}
			if seen != tt.user {
				t.Errorf("Expected principal %v, got %v", tt.user, seen)
			}
			if tt.want == 401 {
				var body map[string]string
				json.Unmarshal(w.Body.Bytes(), &body)
				if body["code"] != "UNAUTHORIZED" {
					t.Errorf("Expected UNAUTHORIZED code, got %v", body)
				}
			}
		})
	}
}

func TestRequireAuth_QueryTokenOnlyForUpgrade(t *testing.T) {
	ada := &models.Principal{UserID: "u1", Username: "ada", Role: models.RoleAdmin}
	handler := RequireAuth(fakeAuthn{"good": ada})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if auth.PrincipalFrom(r.Context()) != ada {
			t.Error("Expected principal from query token")
		}
		w.WriteHeader(http.StatusNoContent)
	}))

	tests := []struct {
		name    string
		upgrade bool
		query   string
		want    int
	}{
		{"upgrade with token", true, "?token=good", 204},
		{"upgrade with bad token", true, "?token=nope", 401},
		{"upgrade without token", true, "", 401},
		{"plain request with token", false, "?token=good", 401},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/api/v1/ws"+tt.query, nil)
			if tt.upgrade {
				req.Header.Set("Upgrade", "websocket")
			}
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)
			if w.Code != tt.want {
				t.Errorf("Expected %d, got %d", tt.want, w.Code)
			}
		})
	}
}

func TestRateLimiter(t *testing.T) {
	rl := NewRateLimiter()
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return now }

	for i := 0; i < 3; i++ {
		exceeded, remaining, _ := rl.CheckRateLimit("k", 3, time.Minute)
		if exceeded || remaining != 2-i {
			t.Fatalf("Request %d: exceeded=%v remaining=%d", i, exceeded, remaining)
		}
	}
	if exceeded, _, _ := rl.CheckRateLimit("k", 3, time.Minute); !exceeded {
		t.Error("Expected fourth request to be limited")
	}

	now = now.Add(61 * time.Second)
	if exceeded, _, _ := rl.CheckRateLimit("k", 3, time.Minute); exceeded {
		t.Error("Expected window to have expired")
	}
}

func TestRateLimitMiddleware_Login(t *testing.T) {
	rl := NewRateLimiter()
	handler := RateLimitMiddleware(rl, "/api/v1/auth/login")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	var last *httptest.ResponseRecorder
	for i := 0; i < 6; i++ {
		req := httptest.NewRequest("POST", "/api/v1/auth/login", nil)
		req.RemoteAddr = "198.51.100.7:5555"
		last = httptest.NewRecorder()
		handler.ServeHTTP(last, req)
	}
	if last.Code != http.StatusTooManyRequests {
		t.Errorf("Expected 429 on sixth login, got %d", last.Code)
	}
	if last.Header().Get("Retry-After") == "" {
		t.Error("Expected Retry-After header")
	}

	req := httptest.NewRequest("POST", "/api/v1/auth/login", nil)
	req.RemoteAddr = "198.51.100.8:5555"
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("Expected another client to be unaffected, got %d", w.Code)
	}
}

func TestRecovererAndLogging(t *testing.T) {
	var buf bytes.Buffer
	log := zerolog.New(&buf)
	handler := LoggingMiddleware(log)(Recoverer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	})))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest("GET", "/api/v1/rfqs", nil))

	if w.Code != http.StatusInternalServerError {
		t.Errorf("Expected 500, got %d", w.Code)
	}
	if w.Header().Get("X-Request-ID") == "" {
		t.Error("Expected a request id")
	}
	if !bytes.Contains(buf.Bytes(), []byte(`"panic":"boom"`)) || !bytes.Contains(buf.Bytes(), []byte(`"status":500`)) {
		t.Errorf("Expected panic and request lines in log, got %s", buf.String())
	}
}

func TestSecurityHeaders(t *testing.T) {
	handler := SecurityHeaders(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest("GET", "/", nil))
	for _, h := range []string{"X-Frame-Options", "X-Content-Type-Options", "Content-Security-Policy"} {
		if w.Header().Get(h) == "" {
			t.Errorf("Expected %s header", h)
		}
	}
}
