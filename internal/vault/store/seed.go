package store

import (
	"fmt"

	"custodia/pkg/domain"
)

// SeedSigners resolves the bootstrap signer set for dev mode. Configured
// principals are parsed as UUIDs; with none configured, three fresh signers
// are generated. A zero quorum defaults to a simple majority of the set.
func SeedSigners(raw []string, quorum int) ([]domain.Principal, int, error) {
	var signers []domain.Principal
	if len(raw) == 0 {
		for range 3 {
			signers = append(signers, domain.NewPrincipal())
		}
	} else {
		for _, entry := range raw {
			p, err := domain.ParsePrincipal(entry)
			if err != nil {
				return nil, 0, fmt.Errorf("parse dev signer %q: %w", entry, err)
			}
			signers = append(signers, p)
		}
	}

	if quorum == 0 {
		quorum = len(signers)/2 + 1
	}
	return signers, quorum, nil
}
