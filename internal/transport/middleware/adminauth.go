package middleware

import (
	"crypto/rsa"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/jotpay/payment-service/internal"
)

// AdminClaims is what the ops identity provider signs into admin
// tokens.
type AdminClaims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// AdminAuth verifies an RS256 bearer token and requires the admin
// role before letting a request through. The admin's subject is
// placed on the context for the handler to attribute the override.
func AdminAuth(publicKey *rsa.PublicKey, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := extractBearer(r)
			if raw == "" {
				writeAuthError(w, internal.ErrInvalidToken)
				return
			}

			claims := &AdminClaims{}
			token, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
				if _, ok := t.Method.(*jwt.SigningMethodRSA); !ok {
					return nil, jwt.ErrSignatureInvalid
				}
				return publicKey, nil
			})
			if err != nil || !token.Valid {
				logger.Warn("admin token rejected", "error", err, "path", r.URL.Path)
				writeAuthError(w, internal.ErrInvalidToken)
				return
			}

			if claims.Role != "admin" {
				logger.Warn("non-admin token on admin endpoint",
					"subject", claims.Subject,
					"role", claims.Role,
					"path", r.URL.Path)
				writeAuthError(w, internal.ErrNotAdmin)
				return
			}

			ctx := internal.ContextWithAdmin(r.Context(), claims.Subject)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func extractBearer(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return parts[1]
}

func writeAuthError(w http.ResponseWriter, appErr *internal.AppError) {
	status, body := appErr.ToHTTPResponse()
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}
