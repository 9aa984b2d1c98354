package core

import (
	"context"
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
)

const authManagerKey = "auth_manager"

// ginTransport adapts a gin request to the Transport the AuthManager needs.
type ginTransport struct {
	c *gin.Context
}

func (t ginTransport) AuthorizationHeader() string {
	return t.c.GetHeader("Authorization")
}

func (t ginTransport) Challenge(wwwAuthenticate string) {
	t.c.Header("WWW-Authenticate", wwwAuthenticate)
	t.c.Status(http.StatusUnauthorized)
}

// OutcomeRecorder counts authentication outcomes; AuthMetrics implements it.
type OutcomeRecorder interface {
	RecordOutcome(ctx context.Context, outcome string)
}

// authManager returns the request's manager, creating it on first use.
func authManager(c *gin.Context, auth *Authenticator) *AuthManager {
	if v, ok := c.Get(authManagerKey); ok {
		if m, ok := v.(*AuthManager); ok {
			return m
		}
	}
	m := auth.NewManager(ginTransport{c: c})
	c.Set(authManagerKey, m)
	return m
}

// currentUser returns the user authenticated by RequireAuth.
func currentUser(c *gin.Context) *User {
	v, ok := c.Get(authManagerKey)
	if !ok {
		return nil
	}
	m, _ := v.(*AuthManager)
	if m == nil || !m.IsAuthenticated() {
		return nil
	}
	return m.CurrentUser()
}

// runAuthentication performs one Authenticate call and answers the request on
// failure. It returns true when the handler may continue.
func runAuthentication(c *gin.Context, auth *Authenticator, rec OutcomeRecorder, desired Scheme, minRole int, preferred Scheme) bool {
	m := authManager(c, auth)
	err := m.Authenticate(c.Request.Context(), desired, minRole, preferred)
	if err == nil {
		if rec != nil {
			rec.RecordOutcome(c.Request.Context(), OutcomeSuccess)
		}
		return true
	}

	var authErr AuthError
	if !errors.As(err, &authErr) {
		log.Printf("[auth] req=%s scheme=%s store error: %v", requestID(c), m.Scheme(), err)
		respondError(c, http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "authentication unavailable")
		c.Abort()
		return false
	}

	name := ""
	if u := m.CurrentUser(); u != nil {
		name = u.Name
	}
	log.Printf("[auth] req=%s scheme=%s user=%q code=%s", requestID(c), m.Scheme(), name, authErr.Code())
	if rec != nil {
		rec.RecordOutcome(c.Request.Context(), authErr.Code())
	}
	// The challenge already set 401 and WWW-Authenticate.
	respondError(c, http.StatusUnauthorized, authErr.Code(), authErr.Error())
	c.Abort()
	return false
}

// RequireAuth authenticates the request before the handler runs.
func RequireAuth(auth *Authenticator, rec OutcomeRecorder, desired Scheme, minRole int) gin.HandlerFunc {
	desired.mustBeKnown()
	return func(c *gin.Context) {
		if !runAuthentication(c, auth, rec, desired, minRole, SchemeBasic) {
			return
		}
		c.Next()
	}
}
