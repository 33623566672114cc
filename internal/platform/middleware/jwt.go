package middleware

import (
	"fmt"

	"github.com/golang-jwt/jwt/v5"

	"custodia/pkg/domain"
)

// HS256Validator validates HMAC-signed tokens whose subject claim carries the
// caller principal. It is the default TokenValidator wired in main.
type HS256Validator struct {
	signingKey []byte
}

func NewHS256Validator(signingKey string) *HS256Validator {
	return &HS256Validator{signingKey: []byte(signingKey)}
}

func (v *HS256Validator) ValidateToken(tokenString string) (domain.Principal, error) {
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return v.signingKey, nil
	}, jwt.WithValidMethods([]string{"HS256"}))
	if err != nil {
		return domain.NilPrincipal, fmt.Errorf("parse token: %w", err)
	}

	subject, err := token.Claims.GetSubject()
	if err != nil {
		return domain.NilPrincipal, fmt.Errorf("missing subject claim: %w", err)
	}

	principal, err := domain.ParsePrincipal(subject)
	if err != nil {
		return domain.NilPrincipal, fmt.Errorf("subject is not a principal: %w", err)
	}
	return principal, nil
}

// IssueToken mints a token for the given principal. Used by dev tooling and
// tests; production tokens come from the upstream identity provider.
func (v *HS256Validator) IssueToken(p domain.Principal) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": p.String(),
	})
	return token.SignedString(v.signingKey)
}
