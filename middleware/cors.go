package middleware

import (
	"net/http"
	"os"
	"strconv"
	"strings"
)

const defaultCORSMaxAge = "86400"

// corsPolicy holds the cross-origin settings for the admin and broker
// dashboards
type corsPolicy struct {
	allowedOrigins []string
	maxAge         string
}

// NewCORSMiddleware builds the CORS middleware from the environment.
// CORS_ALLOWED_ORIGINS is a comma-separated origin list; unset means any
// origin, which suits local development only.
func NewCORSMiddleware() func(http.Handler) http.Handler {
	policy := corsPolicy{maxAge: defaultCORSMaxAge}

	if raw := os.Getenv("CORS_ALLOWED_ORIGINS"); raw != "" {
		for _, origin := range strings.Split(raw, ",") {
			if origin = strings.TrimSpace(origin); origin != "" {
				policy.allowedOrigins = append(policy.allowedOrigins, origin)
			}
		}
	}
	if raw := os.Getenv("CORS_MAX_AGE"); raw != "" {
		if _, err := strconv.Atoi(raw); err == nil {
			policy.maxAge = raw
		}
	}

	return policy.wrap
}

func (p corsPolicy) wrap(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if allowed := p.resolveOrigin(origin); allowed != "" {
			w.Header().Set("Access-Control-Allow-Origin", allowed)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, Accept, Origin")
			w.Header().Set("Access-Control-Max-Age", p.maxAge)
			w.Header().Add("Vary", "Origin")
			// Credentials are only meaningful against a concrete origin
			if allowed != "*" {
				w.Header().Set("Access-Control-Allow-Credentials", "true")
			}
		}

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// resolveOrigin returns the origin value to echo back, or empty when the
// request origin is not allowed
func (p corsPolicy) resolveOrigin(origin string) string {
	if len(p.allowedOrigins) == 0 {
		return "*"
	}
	for _, allowed := range p.allowedOrigins {
		if strings.EqualFold(allowed, origin) {
			return origin
		}
	}
	return ""
}
