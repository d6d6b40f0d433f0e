package auth

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/ledgerask/ledgerask/internal/observability"
)

const (
	apiKeyHeader = "X-API-Key"
	challenge    = `Bearer realm="ledgerask"`
)

var (
	errMissingKey   = errors.New("missing API key")
	errUnknownKey   = errors.New("invalid API key")
	errUnsupported  = errors.New("unsupported authorization scheme")
	errAmbiguousKey = errors.New("conflicting API keys in X-API-Key and Authorization")
)

type identityKey struct{}

func WithIdentity(ctx context.Context, identity Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, identity)
}

func IdentityFromContext(ctx context.Context) (Identity, bool) {
	identity, ok := ctx.Value(identityKey{}).(Identity)
	return identity, ok
}

// Middleware authenticates every request with the key from X-API-Key or a
// bearer Authorization header. Role checks are left to the handlers.
func Middleware(logger *slog.Logger, validator APIKeyValidator) func(http.Handler) http.Handler {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			apiKey, err := presentedKey(r)
			if err != nil {
				rejectCaller(w, r, err)
				return
			}
			identity, ok := validator.Validate(r.Context(), apiKey)
			if !ok {
				logger.WarnContext(r.Context(), "api key rejected", slog.String("path", r.URL.Path))
				rejectCaller(w, r, errUnknownKey)
				return
			}
			logger.DebugContext(r.Context(), "caller authenticated", slog.String("subject", identity.Subject))
			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), identity)))
		})
	}
}

func presentedKey(r *http.Request) (string, error) {
	headerKey := strings.TrimSpace(r.Header.Get(apiKeyHeader))

	var bearerKey string
	if authorization := strings.TrimSpace(r.Header.Get("Authorization")); authorization != "" {
		scheme, token, found := strings.Cut(authorization, " ")
		if !found || !strings.EqualFold(scheme, "Bearer") {
			return "", errUnsupported
		}
		bearerKey = strings.TrimSpace(token)
	}

	switch {
	case headerKey != "" && bearerKey != "" && headerKey != bearerKey:
		return "", errAmbiguousKey
	case headerKey != "":
		return headerKey, nil
	case bearerKey != "":
		return bearerKey, nil
	default:
		return "", errMissingKey
	}
}

func rejectCaller(w http.ResponseWriter, r *http.Request, reason error) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("WWW-Authenticate", challenge)
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"error_code": "UNAUTHORIZED",
		"message":    reason.Error(),
		"retryable":  false,
		"context":    nil,
		"trace_id":   observability.TraceIDFromContext(r.Context()),
	})
}
