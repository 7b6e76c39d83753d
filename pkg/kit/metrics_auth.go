package kit

import (
	"net/http"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// MetricsAuth guards the metrics endpoint with a bearer token verified
// against a bcrypt hash. An empty hash denies every request.
func MetricsAuth(tokenHash string) func(http.Handler) http.Handler {
	hash := []byte(tokenHash)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if len(hash) == 0 {
				WriteError(w, r, http.StatusForbidden, "forbidden", nil)
				return
			}

			authz := r.Header.Get("Authorization")
			token, ok := strings.CutPrefix(authz, "Bearer ")
			if !ok || token == "" {
				WriteError(w, r, http.StatusForbidden, "forbidden", nil)
				return
			}
			if bcrypt.CompareHashAndPassword(hash, []byte(token)) != nil {
				WriteError(w, r, http.StatusForbidden, "forbidden", nil)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func HashToken(token string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(token), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
