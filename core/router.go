package core

import (
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
)

const (
	defaultPerPage = 20
	maxPerPage     = 100
)

// RouterDeps are the services behind the HTTP API.
type RouterDeps struct {
	Auth    *Authenticator
	Users   *UserService
	Marks   LogoutMarks  // optional; admin forced logout is unavailable without it
	Metrics *AuthMetrics // optional
}

// NewRouter constructs the Gin engine with routes wired.
func NewRouter(cfg Config, deps RouterDeps) *gin.Engine {
	if deps.Auth == nil || deps.Users == nil {
		panic("core: router needs an authenticator and a user service")
	}
	auth, users := deps.Auth, deps.Users
	var rec OutcomeRecorder
	if deps.Metrics != nil {
		rec = deps.Metrics
	}

	r := gin.New()
	r.Use(gin.Logger(), gin.Recovery())
	r.Use(RequestIDMiddleware())
	r.Use(OriginRefererMiddleware(cfg))

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := r.Group("/api/v1")
	{
		api.POST("/users", func(c *gin.Context) {
			var req struct {
				Name     string `json:"name"`
				Password string `json:"password"`
			}
			if err := c.ShouldBindJSON(&req); err != nil {
				respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", "invalid json")
				return
			}
			u, err := users.Register(c.Request.Context(), req.Name, req.Password, 0)
			if err != nil {
				respondUserError(c, err)
				return
			}
			log.Printf("[users] req=%s registered user=%q id=%d", requestID(c), u.Name, u.ID)
			c.JSON(http.StatusCreated, gin.H{"user": userJSON(u)})
		})

		// Basic login; the only way to obtain a bearer token.
		api.GET("/auth/token", RequireAuth(auth, rec, SchemeBasic, 0), func(c *gin.Context) {
			m := authManager(c, auth)
			c.JSON(http.StatusOK, gin.H{"token": m.CurrentToken(), "user": userJSON(m.CurrentUser())})
		})

		// Logout authenticates once more with whatever the client holds, resets
		// the token and answers with a fresh challenge.
		api.POST("/auth/logout", func(c *gin.Context) {
			m := authManager(c, auth)
			m.Logout()
			if !runAuthentication(c, auth, rec, SchemeAny, 0, SchemeBasic) {
				return
			}
			c.Status(http.StatusNoContent)
		})

		api.GET("/users/me", RequireAuth(auth, rec, SchemeBearer, 0), func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{"user": userJSON(currentUser(c))})
		})

		api.PATCH("/users/me/password", RequireAuth(auth, rec, SchemeBasic, 0), func(c *gin.Context) {
			var req struct {
				Password string `json:"password"`
			}
			if err := c.ShouldBindJSON(&req); err != nil {
				respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", "invalid json")
				return
			}
			u := currentUser(c)
			if err := users.ChangePassword(c.Request.Context(), u, req.Password); err != nil {
				respondUserError(c, err)
				return
			}
			log.Printf("[users] req=%s password changed user=%q", requestID(c), u.Name)
			c.Status(http.StatusNoContent)
		})

		api.DELETE("/users/me", RequireAuth(auth, rec, SchemeBasic, 0), func(c *gin.Context) {
			u := currentUser(c)
			if err := users.Remove(c.Request.Context(), u); err != nil {
				respondUserError(c, err)
				return
			}
			log.Printf("[users] req=%s removed user=%q id=%d", requestID(c), u.Name, u.ID)
			c.Status(http.StatusNoContent)
		})

		admin := api.Group("/admin")
		admin.Use(AdminOnly(cfg, auth, rec))

		admin.GET("/users", func(c *gin.Context) {
			page, perPage, err := parsePagination(c.Query("page"), c.Query("per_page"))
			if err != nil {
				respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
				return
			}
			items, total, err := users.List(c.Request.Context(), page, perPage)
			if err != nil {
				respondError(c, http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "failed to fetch users")
				return
			}
			c.JSON(http.StatusOK, gin.H{
				"items":       items,
				"page":        page,
				"per_page":    perPage,
				"total_items": total,
				"total_pages": calcTotalPages(total, perPage),
			})
		})

		admin.PATCH("/users/:name/role", func(c *gin.Context) {
			var req struct {
				Role *int `json:"role"`
			}
			if err := c.ShouldBindJSON(&req); err != nil || req.Role == nil {
				respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", "role is required")
				return
			}
			u, err := users.ChangeRole(c.Request.Context(), c.Param("name"), *req.Role)
			if err != nil {
				respondUserError(c, err)
				return
			}
			log.Printf("[users] req=%s role changed user=%q role=%d by=%q", requestID(c), u.Name, u.Role, currentUser(c).Name)
			c.JSON(http.StatusOK, gin.H{"user": userJSON(u)})
		})

		admin.POST("/users/:name/logout", func(c *gin.Context) {
			if deps.Marks == nil {
				respondError(c, http.StatusServiceUnavailable, "UNAVAILABLE", "forced logout is not configured")
				return
			}
			ctx := c.Request.Context()
			u, err := users.Lookup(ctx, c.Param("name"))
			if err != nil {
				respondUserError(c, err)
				return
			}
			if err := deps.Marks.Mark(ctx, u.ID); err != nil {
				respondError(c, http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "failed to mark logout")
				return
			}
			log.Printf("[users] req=%s logout pending user=%q by=%q", requestID(c), u.Name, currentUser(c).Name)
			c.Status(http.StatusAccepted)
		})

		admin.GET("/metrics/auth", func(c *gin.Context) {
			if deps.Metrics == nil {
				respondError(c, http.StatusServiceUnavailable, "UNAVAILABLE", "metrics are not configured")
				return
			}
			counts, err := deps.Metrics.Overview(c.Request.Context())
			if err != nil {
				respondError(c, http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "failed to load metrics")
				return
			}
			c.JSON(http.StatusOK, gin.H{"outcomes": counts})
		})
	}

	return r
}

func userJSON(u *User) gin.H {
	if u == nil {
		return nil
	}
	return gin.H{"id": u.ID, "name": u.Name, "role": u.Role, "created_at": u.CreatedAt}
}

func respondUserError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ErrEmptyCredentials), errors.Is(err, ErrInvalidCharacters), errors.Is(err, ErrInvalidRole):
		respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
	case errors.Is(err, ErrAlreadyExisting):
		respondError(c, http.StatusConflict, "ALREADY_EXISTING", err.Error())
	case errors.Is(err, ErrUserNotFound):
		respondError(c, http.StatusNotFound, "NOT_FOUND", err.Error())
	default:
		log.Printf("[users] req=%s error: %v", requestID(c), err)
		respondError(c, http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "internal error")
	}
}

func parsePagination(pageStr, perPageStr string) (int, int, error) {
	page := 1
	perPage := defaultPerPage
	if strings.TrimSpace(pageStr) != "" {
		p, err := strconv.Atoi(pageStr)
		if err != nil || p <= 0 {
			return 0, 0, errors.New("page must be a positive integer")
		}
		page = p
	}
	if strings.TrimSpace(perPageStr) != "" {
		p, err := strconv.Atoi(perPageStr)
		if err != nil || p <= 0 {
			return 0, 0, errors.New("per_page must be a positive integer")
		}
		if p > maxPerPage {
			p = maxPerPage
		}
		perPage = p
	}
	return page, perPage, nil
}

func calcTotalPages(total, perPage int) int {
	if perPage <= 0 {
		return 0
	}
	return (total + perPage - 1) / perPage
}
