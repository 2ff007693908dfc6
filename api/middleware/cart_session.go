package middleware

import (
	"net/http"
	"strings"

	"github.com/livrinho/backend/api/responses"
	pkgerrors "github.com/livrinho/backend/pkg/errors"
	"github.com/livrinho/backend/pkg/logger"
)

const cartSessionHeader = "X-Cart-Session"

// CartSession requires the storefront's cart session token and seeds it
// into the request context. The token is an opaque client-generated id; the
// server only uses it as the redis cart key.
func CartSession(logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := strings.TrimSpace(r.Header.Get(cartSessionHeader))
			if token == "" {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "X-Cart-Session header required"))
				return
			}
			next.ServeHTTP(w, r.WithContext(WithCartSession(r.Context(), token)))
		})
	}
}
