package auth

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestStaticAPIKeyValidatorParsing(t *testing.T) {
	validator, err := NewStaticAPIKeyValidator("k1:analyst:schema_reader|query_reader, k2:bot:query_reader")
	if err != nil {
		t.Fatalf("NewStaticAPIKeyValidator() error = %v", err)
	}
	if validator.Len() != 2 {
		t.Fatalf("Len() = %d", validator.Len())
	}
	identity, ok := validator.Validate(context.Background(), "k1")
	if !ok {
		t.Fatal("expected key to be valid")
	}
	if identity.Subject != "analyst" {
		t.Fatalf("Subject = %q", identity.Subject)
	}
	if !identity.HasRole(RoleSchemaReader) || !identity.HasRole(RoleQueryReader) {
		t.Fatalf("Roles = %v", identity.Roles)
	}
	if _, ok := validator.Validate(context.Background(), "missing"); ok {
		t.Fatal("expected unknown key to be rejected")
	}
}

func TestStaticAPIKeyValidatorRejectsMalformedEntries(t *testing.T) {
	for _, keys := range []string{"invalid", "k1::query_reader", "k1:s:", "k1:a:query_reader,k1:b:query_reader"} {
		if _, err := NewStaticAPIKeyValidator(keys); err == nil {
			t.Fatalf("NewStaticAPIKeyValidator(%q) expected error", keys)
		}
	}
}

func TestMiddlewareRejectsCallers(t *testing.T) {
	validator, err := NewStaticAPIKeyValidator("k1:analyst:query_reader")
	if err != nil {
		t.Fatalf("validator setup: %v", err)
	}
	handler := Middleware(slog.New(slog.NewJSONHandler(io.Discard, nil)), validator)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("next handler must not run")
	}))

	cases := []struct {
		name    string
		headers map[string]string
		message string
	}{
		{name: "no key", message: "missing API key"},
		{name: "unknown bearer", headers: map[string]string{"Authorization": "Bearer wrong"}, message: "invalid API key"},
		{name: "basic scheme", headers: map[string]string{"Authorization": "Basic azE6"}, message: "unsupported authorization scheme"},
		{name: "conflicting keys", headers: map[string]string{"Authorization": "Bearer k1", "X-API-Key": "k2"}, message: "conflicting API keys in X-API-Key and Authorization"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/v1/ask", nil)
			for name, value := range tc.headers {
				req.Header.Set(name, value)
			}
			rr := httptest.NewRecorder()
			handler.ServeHTTP(rr, req)

			if rr.Code != http.StatusUnauthorized {
				t.Fatalf("status = %d, want %d", rr.Code, http.StatusUnauthorized)
			}
			if got := rr.Header().Get("WWW-Authenticate"); got != challenge {
				t.Fatalf("WWW-Authenticate = %q", got)
			}
			var body map[string]any
			if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
				t.Fatalf("decode body: %v", err)
			}
			if body["error_code"] != "UNAUTHORIZED" || body["message"] != tc.message {
				t.Fatalf("body = %v", body)
			}
		})
	}
}

func TestMiddlewareInjectsIdentity(t *testing.T) {
	validator, err := NewStaticAPIKeyValidator("k1:analyst:query_reader")
	if err != nil {
		t.Fatalf("validator setup: %v", err)
	}
	handler := Middleware(nil, validator)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		identity, ok := IdentityFromContext(r.Context())
		if !ok || identity.Subject != "analyst" {
			t.Fatalf("IdentityFromContext() = %v, %v", identity, ok)
		}
		w.WriteHeader(http.StatusNoContent)
	}))

	for _, headers := range []map[string]string{
		{"Authorization": "Bearer k1"},
		{"Authorization": "bearer k1"},
		{"X-API-Key": "k1"},
		{"X-API-Key": "k1", "Authorization": "Bearer k1"},
	} {
		req := httptest.NewRequest(http.MethodPost, "/v1/ask", nil)
		for name, value := range headers {
			req.Header.Set(name, value)
		}
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)
		if rr.Code != http.StatusNoContent {
			t.Fatalf("headers %v: status = %d", headers, rr.Code)
		}
	}
}
