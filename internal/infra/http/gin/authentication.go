package ginserver

import (
	"log/slog"
	"net/http"
	"strings"

	gin "github.com/gin-gonic/gin"

	"communityeats/internal/domain/identity"
	"communityeats/internal/infra/auth"
)

const principalContextKey = "communityeats.principal"

type principal struct {
	ID    string
	Email string
	Name  string
	Admin bool
	Token string
}

// AuthMiddleware attaches the verified identity to the request when a valid
// bearer token is present. Requests without a token pass through anonymously;
// individual routes decide whether authentication is required.
type AuthMiddleware struct {
	Verifier *auth.Verifier
	Gate     *auth.AdminGate
	Logger   *slog.Logger
}

func (m AuthMiddleware) Handle(c *gin.Context) {
	token := auth.ExtractBearerToken(c.GetHeader("Authorization"))
	if token == "" || m.Verifier == nil {
		c.Next()
		return
	}
	id, err := m.Verifier.Verify(token)
	if err != nil {
		if m.Logger != nil {
			m.Logger.Debug("token validation failed", "error", err)
		}
		c.Next()
		return
	}
	setPrincipal(c, principal{
		ID:    id.Subject,
		Email: id.Email,
		Name:  id.DisplayName,
		Admin: m.isAdmin(id),
		Token: token,
	})
	c.Next()
}

func (m AuthMiddleware) isAdmin(id identity.Identity) bool {
	if m.Gate != nil {
		return m.Gate.Grants(id)
	}
	return id.IsAdmin()
}

func setPrincipal(c *gin.Context, p principal) {
	c.Set(principalContextKey, p)
}

func currentPrincipal(c *gin.Context) (principal, bool) {
	val, exists := c.Get(principalContextKey)
	if !exists {
		return principal{}, false
	}
	p, ok := val.(principal)
	return p, ok
}

func requireAuth(c *gin.Context) (principal, bool) {
	p, ok := currentPrincipal(c)
	if !ok || strings.TrimSpace(p.ID) == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "auth required"})
		return principal{}, false
	}
	return p, true
}

func requireAdmin(c *gin.Context) (principal, bool) {
	p, ok := requireAuth(c)
	if !ok {
		return principal{}, false
	}
	if !p.Admin {
		c.JSON(http.StatusForbidden, gin.H{"error": "insufficient permissions"})
		return principal{}, false
	}
	return p, true
}
