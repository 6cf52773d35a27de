package middleware

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"golang.org/x/crypto/bcrypt"
)

// PassphraseHeader carries the admin passphrase on gated requests.
const PassphraseHeader = "X-Admin-Passphrase"

// HashPassphrase hashes the configured passphrase once at startup so the
// plaintext does not stay in memory for comparisons.
func HashPassphrase(passphrase string, cost int) ([]byte, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(passphrase), cost)
	if err != nil {
		return nil, fmt.Errorf("hash passphrase: %w", err)
	}
	return hash, nil
}

// RequirePassphrase rejects requests whose passphrase header does not match
// hash with 401.
func RequirePassphrase(hash []byte, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			given := r.Header.Get(PassphraseHeader)
			if given == "" {
				writeError(w, http.StatusUnauthorized, "admin passphrase required", "unauthorized")
				return
			}
			if err := bcrypt.CompareHashAndPassword(hash, []byte(given)); err != nil {
				logger.WarnContext(r.Context(), "admin passphrase rejected", "path", r.URL.Path, "remote", RemoteIP(r))
				writeError(w, http.StatusUnauthorized, "invalid admin passphrase", "unauthorized")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func writeError(w http.ResponseWriter, status int, msg, code string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg, "code": code})
}
