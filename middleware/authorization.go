package middleware

import (
	"log/slog"
	"net/http"

	"github.com/terrahaven/api-server-go/models"
	"github.com/terrahaven/api-server-go/utils"
)

// RequireGroup wraps a handler and refuses requests from users outside any
// of the given groups. The JWT middleware must run first.
func RequireGroup(next http.HandlerFunc, groups ...models.UserGroup) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, err := utils.GetAuthenticatedUser(r.Context())
		if err != nil {
			slog.Warn("Authorization failed: user not authenticated", "path", r.URL.Path, "method", r.Method, "error", err)
			utils.RespondWithError(w, http.StatusUnauthorized, "Authentication required")
			return
		}

		for _, group := range groups {
			if user.HasGroup(group) {
				next(w, r)
				return
			}
		}

		slog.Warn("Access denied: insufficient permissions",
			"user", user.Email,
			"groups", user.Groups,
			"path", r.URL.Path,
			"method", r.Method)
		utils.RespondWithError(w, http.StatusForbidden, "Insufficient permissions")
	}
}

// RequireAdmin refuses requests from non-administrators
func RequireAdmin(next http.HandlerFunc) http.HandlerFunc {
	return RequireGroup(next, models.UserGroupAdmin)
}
