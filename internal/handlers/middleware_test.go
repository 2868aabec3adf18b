package handlers

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestProtectedRoutesRequireAuthHeader(t *testing.T) {
	s, _, _, _, _ := testServices()
	r := newTestRouter(s)

	w := doRequest(r, http.MethodGet, "/api/v1/fireplaces", "", false)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}
}

func TestMalformedAuthHeaderRejected(t *testing.T) {
	s, _, _, _, _ := testServices()
	r := newTestRouter(s)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/fireplaces", nil)
	req.Header.Set("Authorization", "Basic dXNlcjpwdw==")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}
}

func TestInvalidTokenRejected(t *testing.T) {
	s, _, _, _, _ := testServices()
	s.Authorization.(*mockAuth).parseErr = errors.New("token expired")
	r := newTestRouter(s)

	w := doRequest(r, http.MethodGet, "/api/v1/fireplaces", "", true)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}
}
