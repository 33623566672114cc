//go:build go1.18

package domain

import (
	"testing"

	"github.com/google/uuid"
)

// FuzzParsePrincipal verifies that parsing never panics on arbitrary input and
// always returns either a valid principal or an error, never both. Principals
// arrive from token claims and URL parameters, so this is a trust boundary.
func FuzzParsePrincipal(f *testing.F) {
	f.Add("")
	f.Add("550e8400-e29b-41d4-a716-446655440000")
	f.Add("00000000-0000-0000-0000-000000000000")
	f.Add("not-a-uuid")
	f.Add("'; DROP TABLE vault_transfers;--")
	f.Add(string([]byte{0x00, 0x01, 0x02}))
	f.Add("550e8400-e29b-41d4-a716-446655440000\x00suffix")

	f.Fuzz(func(t *testing.T, input string) {
		principal, err := ParsePrincipal(input)

		if err == nil {
			if principal.IsNil() {
				t.Errorf("ParsePrincipal(%q) returned nil principal without error", input)
			}
			// A successful parse must round-trip through the canonical form.
			again, err := ParsePrincipal(principal.String())
			if err != nil {
				t.Errorf("round-trip of %q failed: %v", input, err)
			}
			if again != principal {
				t.Errorf("round-trip of %q changed the principal", input)
			}
		} else {
			if principal != Principal(uuid.Nil) {
				t.Errorf("ParsePrincipal(%q) returned non-nil principal with error", input)
			}
		}
	})
}
