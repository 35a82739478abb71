package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestNormalizePath(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"/devices", "/devices"},
		{"/devices/42", "/devices/:id"},
		{"/users/17", "/users/:id"},
		{"/users/roles/3", "/users/roles/:id"},
		{"/users/login", "/users/login"},
		{"/speech/abc-123", "/speech/:task_id"},
		{"/chat/latest", "/chat/latest"},
		{"/health", "/health"},
	}

	for _, tt := range tests {
		if got := normalizePath(tt.path); got != tt.want {
			t.Errorf("normalizePath(%q) = %q, want %q", tt.path, got, tt.want)
		}
	}
}

func TestContainsSuspiciousPatterns(t *testing.T) {
	suspicious := []string{
		"/devices/../etc/passwd",
		"/chat//latest",
		"q=<script>alert(1)</script>",
		"q=JavaScript:void(0)",
	}
	for _, input := range suspicious {
		if !containsSuspiciousPatterns(input) {
			t.Errorf("%q should be flagged", input)
		}
	}

	clean := []string{"", "/devices/42", "user_ids=1,2,3"}
	for _, input := range clean {
		if containsSuspiciousPatterns(input) {
			t.Errorf("%q should not be flagged", input)
		}
	}
}

func TestValidateRequestContentType(t *testing.T) {
	handler := ValidateRequest(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest("POST", "/devices", strings.NewReader(`{}`))
	req.Header.Set("Content-Type", "text/plain")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	if w.Code != http.StatusUnsupportedMediaType {
		t.Errorf("text/plain status = %d, want 415", w.Code)
	}

	req = httptest.NewRequest("POST", "/speech", strings.NewReader("audio"))
	req.Header.Set("Content-Type", "multipart/form-data; boundary=x")
	w = httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("multipart status = %d, want 200", w.Code)
	}
}

func TestMaxBodySize(t *testing.T) {
	handler := MaxBodySize(16)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest("POST", "/devices", strings.NewReader(strings.Repeat("a", 64)))
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	if w.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("status = %d, want 413", w.Code)
	}
}

func TestRealIP(t *testing.T) {
	req := httptest.NewRequest("GET", "/", nil)
	req.RemoteAddr = "10.0.0.1:4242"
	if got := RealIP(req); got != "10.0.0.1" {
		t.Errorf("RealIP = %q, want 10.0.0.1", got)
	}

	req.Header.Set("X-Forwarded-For", "203.0.113.9, 10.0.0.1")
	if got := RealIP(req); got != "203.0.113.9" {
		t.Errorf("RealIP = %q, want 203.0.113.9", got)
	}
}
