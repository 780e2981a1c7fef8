package server

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"

	"github.com/rhuss/workbridge/pkg/config"
)

func signToken(t *testing.T, secret string, claims jwtlib.RegisteredClaims) string {
	t.Helper()
	s, err := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func TestAuthChain(t *testing.T) {
	chain := NewAuthChain(config.ServerAuthConfig{
		APIKeys:   []string{"key-one"},
		JWTSecret: "s3cret",
		JWTIssuer: "designer",
	})
	valid := signToken(t, "s3cret", jwtlib.RegisteredClaims{
		Subject:   "alice",
		Issuer:    "designer",
		ExpiresAt: jwtlib.NewNumericDate(time.Now().Add(time.Hour)),
	})

	tests := []struct {
		name        string
		header      string
		wantOK      bool
		wantSubject string
	}{
		{name: "api key", header: "Bearer key-one", wantOK: true, wantSubject: "api-key-0"},
		{name: "jwt", header: "Bearer " + valid, wantOK: true, wantSubject: "alice"},
		{name: "unknown key", header: "Bearer nope"},
		{name: "no header"},
		{name: "basic auth", header: "Basic Zm9vOmJhcg=="},
		{
			name: "wrong issuer",
			header: "Bearer " + signToken(t, "s3cret", jwtlib.RegisteredClaims{
				Subject: "bob", Issuer: "other", ExpiresAt: jwtlib.NewNumericDate(time.Now().Add(time.Hour)),
			}),
		},
		{
			name: "expired",
			header: "Bearer " + signToken(t, "s3cret", jwtlib.RegisteredClaims{
				Subject: "bob", Issuer: "designer", ExpiresAt: jwtlib.NewNumericDate(time.Now().Add(-time.Hour)),
			}),
		},
		{
			name: "wrong secret",
			header: "Bearer " + signToken(t, "other", jwtlib.RegisteredClaims{
				Subject: "bob", Issuer: "designer", ExpiresAt: jwtlib.NewNumericDate(time.Now().Add(time.Hour)),
			}),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodPost, "/v1/workitems", nil)
			if tt.header != "" {
				r.Header.Set("Authorization", tt.header)
			}
			res := chain.Authenticate(context.Background(), r)
			if (res.Decision == Yes) != tt.wantOK {
				t.Fatalf("decision = %v, err = %v, want ok=%v", res.Decision, res.Err, tt.wantOK)
			}
			if tt.wantOK && res.Subject != tt.wantSubject {
				t.Errorf("subject = %q, want %q", res.Subject, tt.wantSubject)
			}
		})
	}
}

func TestNewAuthChain_Empty(t *testing.T) {
	if chain := NewAuthChain(config.ServerAuthConfig{}); chain != nil {
		t.Errorf("chain = %v, want nil", chain)
	}
}

func TestServer_RequiresCredentials(t *testing.T) {
	cfg := DefaultServerConfig()
	cfg.Auth = config.ServerAuthConfig{APIKeys: []string{"key-one"}}
	srv := NewServer(&recordingRunner{result: successResult()}, WithConfig(cfg))

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/workitems", jsonBody(t, validRequest())))
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("anonymous status = %d, want 401", rec.Code)
	}

	req := httptest.NewRequest(http.MethodPost, "/v1/workitems", jsonBody(t, validRequest()))
	req.Header.Set("Authorization", "Bearer key-one")
	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("authorized status = %d, want 200", rec.Code)
	}
	if rec.Header().Get(HeaderRequestID) == "" {
		t.Error("response lacks a request id")
	}

	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("healthz status = %d, want 200 without credentials", rec.Code)
	}
}

func TestServer_RateLimitsPerCaller(t *testing.T) {
	cfg := DefaultServerConfig()
	cfg.Auth = config.ServerAuthConfig{APIKeys: []string{"a", "b"}, RequestsPerMinute: 2}
	srv := NewServer(&recordingRunner{result: successResult()}, WithConfig(cfg))

	do := func(key string) int {
		req := httptest.NewRequest(http.MethodPost, "/v1/workitems", jsonBody(t, validRequest()))
		req.Header.Set("Authorization", "Bearer "+key)
		rec := httptest.NewRecorder()
		srv.Handler().ServeHTTP(rec, req)
		return rec.Code
	}

	for i := 0; i < 2; i++ {
		if code := do("a"); code != http.StatusOK {
			t.Fatalf("request %d status = %d", i, code)
		}
	}
	if code := do("a"); code != http.StatusTooManyRequests {
		t.Errorf("third request status = %d, want 429", code)
	}
	if code := do("b"); code != http.StatusOK {
		t.Errorf("other caller status = %d, want 200", code)
	}
}

func TestServer_RecoversFromPanic(t *testing.T) {
	srv := NewServer(runnerFunc(func() { panic("boom") }))

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/workitems", jsonBody(t, validRequest())))
	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", rec.Code)
	}

	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("server unusable after panic: %d", rec.Code)
	}
}
