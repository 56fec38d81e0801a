package middleware

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/golang-jwt/jwt/v5"
	"github.com/terrahaven/api-server-go/models"
	"github.com/terrahaven/api-server-go/utils"
)

// JWTAuthConfig contains configuration for JWT authentication
type JWTAuthConfig struct {
	// SigningSecret is the shared HMAC secret the hosted auth service signs
	// session tokens with
	SigningSecret    string
	ExpectedIssuer   string
	ExpectedAudience string
}

// JWTAuthMiddleware validates bearer tokens issued by the hosted auth
// service and injects the authenticated actor into the request context
type JWTAuthMiddleware struct {
	secret           []byte
	expectedIssuer   string
	expectedAudience string
}

// NewJWTAuthMiddleware creates a new JWT authentication middleware
func NewJWTAuthMiddleware(config JWTAuthConfig) *JWTAuthMiddleware {
	return &JWTAuthMiddleware{
		secret:           []byte(config.SigningSecret),
		expectedIssuer:   config.ExpectedIssuer,
		expectedAudience: config.ExpectedAudience,
	}
}

// AuthenticateJWT returns a middleware function that validates JWT tokens
func (j *JWTAuthMiddleware) AuthenticateJWT(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if j.shouldSkipAuth(r) {
			next.ServeHTTP(w, r)
			return
		}

		tokenString, err := utils.ExtractBearerToken(r)
		if err != nil {
			slog.Warn("Failed to extract bearer token", "error", err, "path", r.URL.Path, "method", r.Method)
			utils.RespondWithError(w, http.StatusUnauthorized, "Invalid or missing authorization header")
			return
		}

		user, err := j.validateToken(tokenString)
		if err != nil {
			slog.Warn("Token validation failed", "error", err, "path", r.URL.Path, "method", r.Method)
			utils.RespondWithError(w, http.StatusUnauthorized, "Invalid access token")
			return
		}

		ctx := utils.SetAuthenticatedUser(r.Context(), user)

		slog.Info("User authenticated successfully",
			"user_id", user.UserID,
			"email", user.Email,
			"groups", user.Groups,
			"path", r.URL.Path,
			"method", r.Method)

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// shouldSkipAuth reports whether the request needs no authentication.
// Applicant submissions are public; everything else behind /api requires a
// token.
func (j *JWTAuthMiddleware) shouldSkipAuth(r *http.Request) bool {
	switch r.URL.Path {
	case "/health", "/metrics":
		return true
	case "/api/v1/access-requests":
		return r.Method == http.MethodPost
	}
	return false
}

// validateToken validates a JWT token and returns the authenticated user.
// An empty signing secret never validates anything; a token signed with an
// empty HMAC key must not pass.
func (j *JWTAuthMiddleware) validateToken(tokenString string) (*models.AuthenticatedUser, error) {
	if len(j.secret) == 0 {
		return nil, fmt.Errorf("jwt signing secret is not configured")
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Name}),
		jwt.WithExpirationRequired(),
	}
	if j.expectedIssuer != "" {
		opts = append(opts, jwt.WithIssuer(j.expectedIssuer))
	}
	if j.expectedAudience != "" {
		opts = append(opts, jwt.WithAudience(j.expectedAudience))
	}

	claims := jwt.MapClaims{}
	_, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		return j.secret, nil
	}, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to parse token: %w", err)
	}

	sub, err := claims.GetSubject()
	if err != nil || sub == "" {
		return nil, fmt.Errorf("token has no subject claim")
	}

	user := &models.AuthenticatedUser{UserID: sub}
	if email, ok := claims["email"].(string); ok {
		user.Email = email
	}
	if name, ok := claims["name"].(string); ok {
		user.Name = name
	}
	if rawGroups, ok := claims["groups"].([]interface{}); ok {
		for _, g := range rawGroups {
			if group, ok := g.(string); ok {
				user.Groups = append(user.Groups, models.UserGroup(group))
			}
		}
	}

	return user, nil
}
