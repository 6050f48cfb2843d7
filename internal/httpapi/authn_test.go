package httpapi

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"exgate.org/internal/auth"
)

func TestExtractBearerToken(t *testing.T) {
	cases := []struct {
		name    string
		header  string
		want    string
		wantErr bool
	}{
		{name: "plain", header: "Bearer abc.def.ghi", want: "abc.def.ghi"},
		{name: "case insensitive scheme", header: "bearer tok", want: "tok"},
		{name: "missing header", header: "", wantErr: true},
		{name: "wrong scheme", header: "Basic dXNlcjpwYXNz", wantErr: true},
		{name: "empty token", header: "Bearer   ", wantErr: true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := extractBearerToken(tc.header)
			if tc.wantErr {
				if err == nil {
					t.Fatalf("expected error, got token %q", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tc.want {
				t.Fatalf("expected %q, got %q", tc.want, got)
			}
		})
	}
}

func TestRequireAdmin(t *testing.T) {
	a := &API{}

	req := httptest.NewRequest(http.MethodPost, "/v1/requests/x/approve", nil)
	if err := a.requireAdmin(req); err == nil {
		t.Fatal("expected error without principal")
	}

	asInstitution := req.WithContext(auth.ContextWithPrincipal(req.Context(),
		auth.Principal{UserID: "user-1", Role: auth.RoleInstitution}))
	if err := a.requireAdmin(asInstitution); err == nil {
		t.Fatal("expected error for non-admin role")
	}

	asAdmin := req.WithContext(auth.ContextWithPrincipal(req.Context(),
		auth.Principal{UserID: "admin-1", Role: auth.RoleAdmin}))
	if err := a.requireAdmin(asAdmin); err != nil {
		t.Fatalf("unexpected error for admin: %v", err)
	}
}

func TestWithAuthSkipsPublicPaths(t *testing.T) {
	a := &API{}
	handler := a.withAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	for _, path := range []string{"/healthz", "/readyz", "/v1/info", "/metrics", "/v1/auth/token"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)
		if rr.Code != http.StatusOK {
			t.Fatalf("%s: expected public access, got %d", path, rr.Code)
		}
	}

	req := httptest.NewRequest(http.MethodGet, "/v1/requests", nil)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", rr.Code)
	}
}

func TestWithAuthRejectsGarbageToken(t *testing.T) {
	t.Setenv("EXGATE_AUTH_SECRET", "test-secret")
	auth.ResetSecretForTests()

	a := &API{}
	handler := a.withAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/v1/requests", nil)
	req.Header.Set("Authorization", "Bearer not-a-jwt")
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for garbage token, got %d", rr.Code)
	}
}
