package auth

import (
	"errors"
	"strings"

	"communityeats/internal/domain/identity"
)

var ErrNotAdmin = errors.New("auth: admin privilege required")

// AdminGate authorizes elevated operations: an admin claim, an admin role, or
// membership in the configured email allow-list all grant access. It is
// independent of the general request authentication.
type AdminGate struct {
	verifier *Verifier
	allowed  map[string]struct{}
}

func NewAdminGate(verifier *Verifier, allowEmails []string) *AdminGate {
	allowed := make(map[string]struct{}, len(allowEmails))
	for _, email := range allowEmails {
		email = strings.ToLower(strings.TrimSpace(email))
		if email != "" {
			allowed[email] = struct{}{}
		}
	}
	return &AdminGate{verifier: verifier, allowed: allowed}
}

// Authorize verifies the bearer token and checks admin privilege. Callers
// must map ErrTokenRequired/ErrTokenInvalid to 401 and ErrNotAdmin to 403.
func (g *AdminGate) Authorize(token string) (identity.Identity, error) {
	id, err := g.verifier.Verify(token)
	if err != nil {
		return identity.Identity{}, err
	}
	if !g.Grants(id) {
		return identity.Identity{}, ErrNotAdmin
	}
	return id, nil
}

// Grants reports whether the verified identity carries admin privilege.
func (g *AdminGate) Grants(id identity.Identity) bool {
	if id.IsAdmin() {
		return true
	}
	if id.Email == "" {
		return false
	}
	_, ok := g.allowed[strings.ToLower(id.Email)]
	return ok
}
