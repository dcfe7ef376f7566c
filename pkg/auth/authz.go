package auth

import "fmt"

// RequireScope returns a typed 403 failure when the identity lacks the
// scope. Authorization failures are distinct from authentication failures
// and are always 403.
func RequireScope(id *Identity, scope string) error {
	if id == nil || !id.HasScope(scope) {
		return NewError(KindInsufficientScope, fmt.Sprintf("missing required scope: %s", scope))
	}
	return nil
}

// RequireScopeGrant returns a typed 403 failure when the identity tries
// to grant scopes it does not itself hold. Only admins may grant "admin";
// holding "all" is not enough, so a tenant cannot mint itself an admin key.
func RequireScopeGrant(id *Identity, scopes []string) error {
	if id == nil {
		return NewError(KindInsufficientScope, "missing identity")
	}
	if id.IsAdmin() {
		return nil
	}
	for _, s := range scopes {
		if s == ScopeAdmin || !id.HasScope(s) {
			return NewError(KindInsufficientScope, fmt.Sprintf("cannot grant scope: %s", s))
		}
	}
	return nil
}

// RequireClientAccess returns a typed 403 failure when the identity may
// not access the target client's resources.
func RequireClientAccess(id *Identity, targetClientID string) error {
	if id == nil || !id.CanAccessClient(targetClientID) {
		return NewError(KindCrossTenantAccessDenied, "access denied to this client's resources")
	}
	return nil
}
