package identity

import (
	"context"
	"errors"
	"strings"
	"time"
)

var ErrProfileNotFound = errors.New("identity: profile not found")

// Identity is the verified subject attached to a request by the token
// verifier. Claims beyond the named fields are not retained.
type Identity struct {
	Subject     string
	Email       string
	DisplayName string
	Admin       bool
	Role        string
}

func (i Identity) IsAdmin() bool {
	return i.Admin || strings.EqualFold(strings.TrimSpace(i.Role), "admin")
}

// Profile is the locally cached projection of a user kept for display-name
// resolution; the identity provider stays authoritative.
type Profile struct {
	Subject     string
	Email       string
	DisplayName string
	UpdatedAt   time.Time
}

type ProfileRepository interface {
	// DisplayNames resolves current display names for the given subjects.
	// Unknown subjects are simply absent from the result.
	DisplayNames(ctx context.Context, subjects []string) (map[string]string, error)
	Save(ctx context.Context, profile *Profile) error
}
