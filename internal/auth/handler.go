package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"schoolsite/internal/cmsclient"
	"schoolsite/internal/web"
	"schoolsite/pkg/cms"
	"schoolsite/pkg/logger"
)

// Handler serves login, logout and me for one portal role.
type Handler struct {
	Repo          *Repo
	Tokens        TokenService
	CMS           *cmsclient.Client
	Role          string
	SecureCookies bool
}

func NewHandler(repo *Repo, tokens TokenService, client *cmsclient.Client, role string, secureCookies bool) *Handler {
	return &Handler{Repo: repo, Tokens: tokens, CMS: client, Role: role, SecureCookies: secureCookies}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/login", h.login)
	rg.POST("/logout", h.Require(), h.logout)
	rg.GET("/me", h.Require(), h.me)
}

// Require is RequireRole bound to this handler's role.
func (h *Handler) Require() gin.HandlerFunc {
	return RequireRole(h.Tokens, h.Repo, h.Role)
}

// ProfileCollection is the CMS collection holding the role's profiles.
func ProfileCollection(role string) string {
	if role == RoleStudent {
		return "students"
	}
	return "parents"
}

type loginReq struct {
	Identifier string `json:"identifier"`
	Email      string `json:"email"`
	Password   string `json:"password"`
}

func (h *Handler) login(c *gin.Context) {
	var req loginReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	ident := strings.TrimSpace(req.Identifier)
	if ident == "" {
		ident = strings.TrimSpace(req.Email)
	}
	ident = strings.ToLower(ident)
	if ident == "" || req.Password == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "email and password required"})
		return
	}

	ctx := c.Request.Context()
	res, err := h.CMS.Login(ctx, ident, req.Password)
	if err != nil {
		var apiErr *cmsclient.APIError
		if errors.As(err, &apiErr) && apiErr.Status < 500 {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
			return
		}
		web.Fail(c, err, "login failed")
		return
	}

	email := strings.ToLower(res.User.String("email"))
	if email == "" {
		email = ident
	}
	profile, err := h.findProfile(ctx, email, res.JWT)
	if errors.Is(err, cmsclient.ErrNotFound) {
		c.JSON(http.StatusForbidden, gin.H{"error": "account has no " + h.Role + " profile"})
		return
	}
	if err != nil {
		web.Fail(c, err, "profile lookup failed")
		return
	}

	if n, err := h.Repo.DeleteExpired(ctx, time.Now()); err == nil && n > 0 {
		logger.FromContext(ctx).Debug("expired sessions removed", "count", n)
	}

	s := &Session{
		ID:        uuid.NewString(),
		Role:      h.Role,
		CMSUserID: res.User.ID(),
		ProfileID: profile.ID(),
		Email:     email,
		CMSToken:  res.JWT,
		ExpiresAt: time.Now().Add(h.Tokens.Duration),
	}
	if err := h.Repo.Create(ctx, s); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "session failed"})
		return
	}
	token, err := h.Tokens.Sign(s)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "token failed"})
		return
	}

	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(CookieName(h.Role), token, int(h.Tokens.Duration.Seconds()), "/", "", h.SecureCookies, true)
	c.JSON(http.StatusOK, gin.H{
		"user":       userJSON(s, profile),
		"token":      token,
		"expires_at": s.ExpiresAt.UTC().Format(time.RFC3339),
	})
}

func (h *Handler) findProfile(ctx context.Context, email, token string) (cms.Row, error) {
	q := cmsclient.NewQuery().Filter("$eqi", email, "email")
	return h.CMS.First(ctx, ProfileCollection(h.Role), q, token)
}

func (h *Handler) logout(c *gin.Context) {
	s := MustGetSession(c)
	if s == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "not authenticated"})
		return
	}
	if err := h.Repo.Delete(c.Request.Context(), s.ID); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "logout failed"})
		return
	}
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(CookieName(h.Role), "", -1, "/", "", h.SecureCookies, true)
	c.JSON(http.StatusOK, gin.H{"status": "logged out"})
}

func (h *Handler) me(c *gin.Context) {
	s := MustGetSession(c)
	if s == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "not authenticated"})
		return
	}
	profile, err := h.CMS.First(c.Request.Context(), ProfileCollection(h.Role), cmsclient.NewQuery().Eq(s.ProfileID, "id"), s.CMSToken)
	if err != nil {
		web.Fail(c, err, "profile lookup failed")
		return
	}
	c.JSON(http.StatusOK, userJSON(s, profile))
}

func userJSON(s *Session, profile cms.Row) gin.H {
	return gin.H{
		"id":        s.CMSUserID,
		"profileId": s.ProfileID,
		"email":     s.Email,
		"role":      s.Role,
		"firstName": profile.String("firstName"),
		"lastName":  profile.String("lastName"),
	}
}
