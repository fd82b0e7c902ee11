package middleware

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/securecookie"

	"github.com/Skillial/CSSECDV-Case-Study/internal/core/domain"
	"github.com/Skillial/CSSECDV-Case-Study/internal/usecase"
)

const (
	identityKey     = "session_identity"
	sessionTokenKey = "session_token"
)

// SessionCookie encodes the opaque session token into an authenticated,
// encrypted cookie and reads it back.
type SessionCookie struct {
	codec  *securecookie.SecureCookie
	name   string
	domain string
	secure bool
	maxAge int
}

// NewSessionCookie constructs the cookie codec. hashKey authenticates the
// cookie, blockKey encrypts it; both must stay stable across restarts.
func NewSessionCookie(name, domain string, secure bool, hashKey, blockKey []byte, ttl time.Duration) *SessionCookie {
	codec := securecookie.New(hashKey, blockKey)
	codec.MaxAge(int(ttl.Seconds()))
	return &SessionCookie{
		codec:  codec,
		name:   name,
		domain: domain,
		secure: secure,
		maxAge: int(ttl.Seconds()),
	}
}

// Write sets the session cookie on the response.
func (sc *SessionCookie) Write(c *gin.Context, token string) error {
	encoded, err := sc.codec.Encode(sc.name, token)
	if err != nil {
		return err
	}

	http.SetCookie(c.Writer, &http.Cookie{
		Name:     sc.name,
		Value:    encoded,
		Path:     "/",
		Domain:   sc.domain,
		MaxAge:   sc.maxAge,
		Secure:   sc.secure,
		HttpOnly: true,
		SameSite: http.SameSiteStrictMode,
	})
	return nil
}

// Clear expires the session cookie.
func (sc *SessionCookie) Clear(c *gin.Context) {
	http.SetCookie(c.Writer, &http.Cookie{
		Name:     sc.name,
		Value:    "",
		Path:     "/",
		Domain:   sc.domain,
		MaxAge:   -1,
		Secure:   sc.secure,
		HttpOnly: true,
		SameSite: http.SameSiteStrictMode,
	})
}

// Token decodes the session token from the request cookie.
func (sc *SessionCookie) Token(c *gin.Context) (string, bool) {
	raw, err := c.Cookie(sc.name)
	if err != nil || raw == "" {
		return "", false
	}

	var token string
	if err := sc.codec.Decode(sc.name, raw, &token); err != nil {
		return "", false
	}
	return token, token != ""
}

// ResolveSession resolves the caller's session from the cookie, when present,
// and stores the identity in the gin context. It never rejects: route gates
// decide what an absent identity means.
func ResolveSession(sessions *usecase.SessionService, cookie *SessionCookie) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := cookie.Token(c)
		if !ok {
			c.Next()
			return
		}

		identity, err := sessions.Resolve(c.Request.Context(), token)
		if err != nil {
			// An expired or forged token reads as no session at all.
			c.Next()
			return
		}

		c.Set(identityKey, identity)
		c.Set(sessionTokenKey, token)
		c.Next()
	}
}

// Identity returns the resolved session for the request, or nil.
func Identity(c *gin.Context) *domain.Session {
	if value, exists := c.Get(identityKey); exists {
		if session, ok := value.(*domain.Session); ok {
			return session
		}
	}
	return nil
}

// SessionToken returns the raw session token for the request, or "".
func SessionToken(c *gin.Context) string {
	if value, exists := c.Get(sessionTokenKey); exists {
		if token, ok := value.(string); ok {
			return token
		}
	}
	return ""
}

// RequireRole gates a route on an exact role match.
func RequireRole(access *usecase.AccessService, role domain.Role) gin.HandlerFunc {
	return requirementGate(access, usecase.RequireRole(role))
}

// RequireAuthenticated gates a route on any active session.
func RequireAuthenticated(access *usecase.AccessService) gin.HandlerFunc {
	return requirementGate(access, usecase.RequireAuthenticated())
}

// RequireUnauthenticated gates a route on the absence of a session.
func RequireUnauthenticated(access *usecase.AccessService) gin.HandlerFunc {
	return requirementGate(access, usecase.RequireUnauthenticated())
}

func requirementGate(access *usecase.AccessService, requirement usecase.Requirement) gin.HandlerFunc {
	return func(c *gin.Context) {
		identity := Identity(c)
		operation := c.FullPath()
		if operation == "" {
			operation = c.Request.URL.Path
		}

		decision := access.Authorize(c.Request.Context(), identity, requirement, operation, c.ClientIP())
		if !decision.Allowed {
			// Every denial answers identically so the response cannot reveal
			// whether a session exists. The reason stays in the audit trail.
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "You are not authorized to perform this action"})
			return
		}

		c.Next()
	}
}
