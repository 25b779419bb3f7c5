package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestDashboardAuthDisabled(t *testing.T) {
	handler := NewDashboardAuth("").Middleware()(okHandler())

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/summary", nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 with auth disabled, got %d", rr.Code)
	}
}

func TestDashboardAuth(t *testing.T) {
	handler := NewDashboardAuth("s3cret").Middleware()(okHandler())

	tests := []struct {
		name   string
		setup  func(r *http.Request)
		target string
		want   int
	}{
		{"missing", func(r *http.Request) {}, "/api/summary", http.StatusUnauthorized},
		{"header", func(r *http.Request) { r.Header.Set("X-Dashboard-Password", "s3cret") }, "/api/summary", http.StatusOK},
		{"wrong header", func(r *http.Request) { r.Header.Set("X-Dashboard-Password", "guess") }, "/api/summary", http.StatusUnauthorized},
		{"bearer", func(r *http.Request) { r.Header.Set("Authorization", "Bearer s3cret") }, "/api/summary", http.StatusOK},
		{"lowercase bearer", func(r *http.Request) { r.Header.Set("Authorization", "bearer s3cret") }, "/api/summary", http.StatusOK},
		{"basic scheme", func(r *http.Request) { r.Header.Set("Authorization", "Basic s3cret") }, "/api/summary", http.StatusUnauthorized},
		{"query", func(r *http.Request) {}, "/api/summary?pass=s3cret", http.StatusOK},
		{"wrong query", func(r *http.Request) {}, "/api/summary?pass=s3cre", http.StatusUnauthorized},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tc.target, nil)
			tc.setup(req)
			rr := httptest.NewRecorder()

			handler.ServeHTTP(rr, req)

			if rr.Code != tc.want {
				t.Fatalf("expected %d, got %d", tc.want, rr.Code)
			}
			if tc.want == http.StatusUnauthorized && rr.Header().Get("WWW-Authenticate") == "" {
				t.Fatal("expected WWW-Authenticate header on rejection")
			}
		})
	}
}
