package core

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"
)

// originPolicy is the set of browser origins allowed to call the API.
type originPolicy map[string]struct{}

func newOriginPolicy(origins []string) originPolicy {
	p := originPolicy{}
	for _, o := range origins {
		p[strings.ToLower(strings.TrimRight(o, "/"))] = struct{}{}
	}
	return p
}

// allows accepts an empty origin: curl, server-side clients and same-origin
// navigation send none.
func (p originPolicy) allows(origin string) bool {
	if origin == "" {
		return true
	}
	_, ok := p[strings.ToLower(origin)]
	return ok
}

// requestOrigin is the Origin header, else scheme://host of the Referer.
func requestOrigin(r *http.Request) string {
	if o := r.Header.Get("Origin"); o != "" {
		return o
	}
	if ref := r.Header.Get("Referer"); ref != "" {
		if u, err := url.Parse(ref); err == nil && u.Host != "" {
			return u.Scheme + "://" + u.Host
		}
	}
	return ""
}

// OriginRefererMiddleware rejects requests from origins outside
// cfg.AllowedOrigins, sets CORS headers for allowed ones and answers preflights.
func OriginRefererMiddleware(cfg Config) gin.HandlerFunc {
	policy := newOriginPolicy(cfg.AllowedOrigins)
	return func(c *gin.Context) {
		origin := requestOrigin(c.Request)
		if !policy.allows(origin) {
			respondError(c, http.StatusForbidden, "FORBIDDEN", "origin not allowed")
			c.Abort()
			return
		}
		if origin == "" {
			c.Next()
			return
		}
		setCORSHeaders(c, origin)
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

// setCORSHeaders lets browser clients send credentials in Authorization and
// read the WWW-Authenticate challenge of a 401.
func setCORSHeaders(c *gin.Context, origin string) {
	h := c.Writer.Header()
	h.Set("Access-Control-Allow-Origin", origin)
	h.Add("Vary", "Origin")
	h.Set("Access-Control-Allow-Headers", "Authorization, Content-Type, X-Request-ID")
	h.Set("Access-Control-Expose-Headers", "WWW-Authenticate, X-Request-ID")
	h.Set("Access-Control-Allow-Methods", "GET, POST, PATCH, DELETE, OPTIONS")
	h.Set("Access-Control-Max-Age", "600")
}
