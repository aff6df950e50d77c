package auth

import (
	"strings"

	"storefront/internal/models"
)

// Areas and redirect targets of the storefront
const (
	AdminArea    = "/admin"
	CustomerArea = "/customer"
	LoginPath    = "/auth/login"
)

// Reasons a request was not allowed
const (
	ReasonNoSession = "no_session"
	ReasonNoProfile = "no_profile"
	ReasonWrongRole = "wrong_role"
)

// Decision is the outcome of an access check
type Decision struct {
	Allow      bool
	RedirectTo string
	Reason     string
}

func inArea(path, area string) bool {
	return path == area || strings.HasPrefix(path, area+"/")
}

// Decide applies the area rules to a request path.
// An empty role means the session has no profile.
func Decide(path string, hasSession bool, role models.Role) Decision {
	if !hasSession {
		return Decision{RedirectTo: LoginPath, Reason: ReasonNoSession}
	}
	if role == "" {
		return Decision{RedirectTo: LoginPath, Reason: ReasonNoProfile}
	}
	if inArea(path, AdminArea) && role != models.RoleAdmin {
		return Decision{RedirectTo: CustomerArea, Reason: ReasonWrongRole}
	}
	if inArea(path, CustomerArea) && role != models.RoleClient {
		return Decision{RedirectTo: AdminArea, Reason: ReasonWrongRole}
	}
	return Decision{Allow: true}
}
