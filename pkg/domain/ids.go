// Package domain defines typed identifiers shared across the custodia services.
//
// Principals are opaque, already-authenticated identities: the engine never
// verifies who is behind one, it only compares them. Wrapping uuid.UUID in a
// defined type keeps different identifier kinds from being mixed up at compile
// time.
package domain

import (
	"github.com/google/uuid"

	dErrors "custodia/pkg/domain-errors"
)

// Principal identifies a signer or a transfer recipient. The zero value is the
// null principal and is never a valid signer or recipient.
type Principal uuid.UUID

// NilPrincipal is the null principal.
var NilPrincipal = Principal(uuid.Nil)

// NewPrincipal returns a fresh random principal. Used by tests and dev seeding;
// production principals arrive from the authentication layer.
func NewPrincipal() Principal {
	return Principal(uuid.New())
}

// ParsePrincipal parses a principal from its string form. It rejects empty
// strings, malformed UUIDs, and the nil UUID.
func ParsePrincipal(s string) (Principal, error) {
	if s == "" {
		return NilPrincipal, dErrors.New(dErrors.CodeInvalidInput, "principal cannot be empty")
	}
	u, err := uuid.Parse(s)
	if err != nil {
		return NilPrincipal, dErrors.Wrap(err, dErrors.CodeInvalidInput, "principal must be a valid UUID")
	}
	if u == uuid.Nil {
		return NilPrincipal, dErrors.New(dErrors.CodeInvalidInput, "principal cannot be the nil UUID")
	}
	return Principal(u), nil
}

// IsNil reports whether p is the null principal.
func (p Principal) IsNil() bool {
	return uuid.UUID(p) == uuid.Nil
}

func (p Principal) String() string {
	return uuid.UUID(p).String()
}

// MarshalText implements encoding.TextMarshaler so principals serialize as
// their UUID string in JSON payloads.
func (p Principal) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler. Unlike ParsePrincipal it
// accepts the nil UUID: payload-level null checks belong to request validation,
// which reports the domain-specific error for the field.
func (p *Principal) UnmarshalText(text []byte) error {
	u, err := uuid.Parse(string(text))
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInvalidInput, "principal must be a valid UUID")
	}
	*p = Principal(u)
	return nil
}
