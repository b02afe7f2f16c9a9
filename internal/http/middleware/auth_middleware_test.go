package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/hostbridge/hostbridge/internal/domain"
	"github.com/hostbridge/hostbridge/internal/service"
)

type stubAuthService struct {
	user *domain.User
}

func (s *stubAuthService) GoogleLoginURL(string) string { return "" }

func (s *stubAuthService) LoginWithGoogleCode(context.Context, string) (*domain.User, string, error) {
	return nil, "", nil
}

func (s *stubAuthService) Issue(*domain.User) (string, time.Time, error) {
	return "", time.Time{}, nil
}

func (s *stubAuthService) Verify(_ context.Context, raw string) (*domain.User, error) {
	switch raw {
	case "":
		return nil, service.ErrMissingCredential
	case "valid-token":
		return s.user, nil
	case "revoked-token":
		return nil, service.ErrExpiredOrRevoked
	default:
		return nil, service.ErrInvalidCredential
	}
}

func (s *stubAuthService) Revoke(string) error { return nil }

func newAuthTestHandler(t *testing.T) (http.Handler, *stubAuthService) {
	t.Helper()
	stub := &stubAuthService{user: &domain.User{ID: 7, Email: "host@example.com"}}
	h := AuthMiddleware(stub)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, ok := UserFromContext(r.Context())
		if !ok {
			t.Fatal("expected user in context")
		}
		if user.ID != 7 {
			t.Fatalf("wrong user in context: %+v", user)
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	return h, stub
}

func TestAuthMiddlewareMissingToken(t *testing.T) {
	h, _ := newAuthTestHandler(t)

	req := httptest.NewRequest(http.MethodGet, "/api/hosts", nil)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rr.Code)
	}
	var body map[string]string
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body["error"] != "no token provided" {
		t.Fatalf("unexpected error body: %v", body)
	}
}

func TestAuthMiddlewareInvalidToken(t *testing.T) {
	h, _ := newAuthTestHandler(t)

	req := httptest.NewRequest(http.MethodGet, "/api/hosts", nil)
	req.Header.Set("Authorization", "Bearer garbage")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rr.Code)
	}
	var body map[string]string
	_ = json.Unmarshal(rr.Body.Bytes(), &body)
	if body["error"] != "invalid token" {
		t.Fatalf("unexpected error body: %v", body)
	}
}

func TestAuthMiddlewareRevokedToken(t *testing.T) {
	h, _ := newAuthTestHandler(t)

	req := httptest.NewRequest(http.MethodGet, "/api/hosts", nil)
	req.Header.Set("Authorization", "Bearer revoked-token")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rr.Code)
	}
	var body map[string]string
	_ = json.Unmarshal(rr.Body.Bytes(), &body)
	if body["error"] != "invalid or expired session" {
		t.Fatalf("unexpected error body: %v", body)
	}
}

func TestAuthMiddlewarePassesUserThrough(t *testing.T) {
	h, _ := newAuthTestHandler(t)

	req := httptest.NewRequest(http.MethodGet, "/api/hosts", nil)
	req.Header.Set("Authorization", "Bearer valid-token")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	if rr.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rr.Code)
	}
}

func TestBearerTokenExtraction(t *testing.T) {
	cases := map[string]string{
		"Bearer abc":  "abc",
		"bearer abc":  "abc",
		"Bearer  abc": "abc",
		"Basic abc":   "",
		"":            "",
	}
	for header, want := range cases {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		if got := BearerToken(req); got != want {
			t.Fatalf("BearerToken(%q)=%q want %q", header, got, want)
		}
	}
}
