// Package treasury holds the value-release collaborator of the vault engine.
//
// The engine only ever asks two things of it: how much is available, and to
// release an amount to a recipient. Everything else about how value actually
// moves is out of the engine's scope.
package treasury

import (
	"context"
	"errors"

	"custodia/pkg/domain"
)

// ErrReleaseFailed is returned when a release is refused or fails downstream.
// The engine maps it onto its execution-failed error and leaves the transfer
// re-attemptable.
var ErrReleaseFailed = errors.New("treasury release failed")

// Treasury is the single boundary the vault engine touches to move value.
// AvailableBalance is queried once per execution attempt, immediately before
// Release. Release is treated as atomic and synchronous: it either moved the
// funds or it did not.
type Treasury interface {
	AvailableBalance(ctx context.Context) (int64, error)
	Release(ctx context.Context, recipient domain.Principal, amount int64) error
}
