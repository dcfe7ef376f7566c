package auth

import (
	"errors"
	"testing"
)

func TestRequireScopeGrant(t *testing.T) {
	admin := &Identity{ClientID: "cli_ops", Scopes: []string{"admin"}}
	tenant := &Identity{ClientID: "cli_a", Scopes: []string{"all"}}
	reader := &Identity{ClientID: "cli_b", Scopes: []string{"read"}}

	tests := []struct {
		name   string
		id     *Identity
		scopes []string
		wantOK bool
	}{
		{"admin grants admin", admin, []string{"admin"}, true},
		{"admin grants anything", admin, []string{"read", "custom"}, true},
		{"tenant grants held scopes", tenant, []string{"read", "write"}, true},
		{"tenant cannot grant admin", tenant, []string{"admin"}, false},
		{"tenant cannot sneak admin in a list", tenant, []string{"read", "admin"}, false},
		{"reader grants read", reader, []string{"read"}, true},
		{"reader cannot grant write", reader, []string{"write"}, false},
		{"empty scope list is fine", reader, nil, true},
		{"nil identity", nil, nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := RequireScopeGrant(tt.id, tt.scopes)
			if tt.wantOK {
				if err != nil {
					t.Fatalf("RequireScopeGrant() = %v, want nil", err)
				}
				return
			}
			var authErr *Error
			if !errors.As(err, &authErr) {
				t.Fatalf("RequireScopeGrant() = %v, want *Error", err)
			}
			if authErr.Kind != KindInsufficientScope {
				t.Errorf("kind = %q, want %q", authErr.Kind, KindInsufficientScope)
			}
		})
	}
}
