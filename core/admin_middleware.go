package core

import "github.com/gin-gonic/gin"

// AdminOnly requires a bearer token of a user holding at least the admin role.
func AdminOnly(cfg Config, auth *Authenticator, rec OutcomeRecorder) gin.HandlerFunc {
	return RequireAuth(auth, rec, SchemeBearer, cfg.AdminRole)
}
