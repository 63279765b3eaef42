package rbac

import (
	"fmt"

	"github.com/sportsbet-ev/sportsbet-api/internal/shared"
)

// Decision is the outcome of an authorization check.
type Decision struct {
	Allowed bool
	Reason  string
}

var allow = Decision{Allowed: true}

// Err converts a denial into an error suitable for httpx.RespondError.
func (d Decision) Err() error {
	if d.Allowed {
		return nil
	}
	if d.Reason == reasonAnonymous {
		return shared.ErrUnauthenticated
	}
	return fmt.Errorf("%w: %s", shared.ErrForbidden, d.Reason)
}

const reasonAnonymous = "authentication required"

// RequireSuperuser allows only identities carrying the superuser flag.
func RequireSuperuser(id *Identity) Decision {
	if id == nil {
		return Decision{Reason: reasonAnonymous}
	}
	if id.IsSuperuser {
		return allow
	}
	return Decision{Reason: "superuser privileges required"}
}

// RequirePermission allows superusers and identities whose roles grant name.
// The effective set is recomputed on every call.
func RequirePermission(id *Identity, name string) Decision {
	if id == nil {
		return Decision{Reason: reasonAnonymous}
	}
	if id.IsSuperuser {
		return allow
	}
	if _, ok := id.EffectivePermissions()[name]; ok {
		return allow
	}
	return Decision{Reason: fmt.Sprintf("missing permission %s", name)}
}
