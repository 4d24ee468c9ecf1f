package middleware

import (
	"encoding/json"
	"net/http"

	apperrors "phishguard/internal/errors"
	"phishguard/internal/security"
	"phishguard/internal/service"
	"phishguard/internal/tracing"

	"github.com/sirupsen/logrus"
)

// APIKeyMiddleware rejects requests without the configured X-API-Key.
// An empty expected key disables the check.
func APIKeyMiddleware(expected string, logger *logrus.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if expected == "" {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if security.VerifyAPIKey(r.Header.Get(security.APIKeyHeader), expected) {
				next.ServeHTTP(w, r)
				return
			}

			requestID := tracing.GetRequestID(r.Context())
			logger.WithFields(logrus.Fields{
				service.LogFieldRequestID: requestID,
				service.LogFieldRemoteIP:  ClientIP(r),
				service.LogFieldURL:       r.URL.Path,
			}).Warn("Rejected request with missing or invalid API key")

			err := apperrors.NewAuthError("invalid api key")
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			_ = json.NewEncoder(w).Encode(apperrors.ToHTTPResponse(err, requestID))
		})
	}
}
