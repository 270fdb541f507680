package policy

import (
	"context"
	"errors"
)

// ErrVersionNotFound is returned when a historical version does not exist.
var ErrVersionNotFound = errors.New("policy: version not found")

// Provider is the read side used by decision components. They only ever
// need the active policy.
type Provider interface {
	Active(ctx context.Context) (*Policy, error)
}

// Store persists policy versions. Validation and version numbering live
// in Manager; stores persist exactly what they are given.
type Store interface {
	Provider
	// Install makes p the active policy and records it in the history.
	Install(ctx context.Context, p *Policy) error
	// Version returns a specific historical version.
	Version(ctx context.Context, version int) (*Policy, error)
}
