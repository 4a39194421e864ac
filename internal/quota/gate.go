// Package quota decides whether an owner may have another conversion job
// admitted. Limits are per role; enforcement happens atomically inside the
// record store, the gate supplies the limit and serves advisory pre-checks
// so a submission can fail fast before its input artifact is stored.
package quota

import (
	"context"

	"ppt2video/internal/entity"
)

// Unlimited disables the limit for a role.
const Unlimited = -1

// Counter reports how many of an owner's jobs still occupy quota slots.
type Counter interface {
	CountActive(ctx context.Context, owner string) (int, error)
}

type Gate struct {
	limits   map[string]int
	fallback int
	counter  Counter
}

// NewGate builds a gate from a role -> limit map. Roles absent from the
// map get fallback. A limit of 0 disables submissions for the role.
func NewGate(limits map[string]int, fallback int, counter Counter) *Gate {
	return &Gate{limits: limits, fallback: fallback, counter: counter}
}

func (g *Gate) LimitFor(role string) int {
	if l, ok := g.limits[role]; ok {
		return l
	}
	return g.fallback
}

type Decision struct {
	Allowed bool
	Role    string
	Limit   int
	Count   int
}

// Err returns the error a refused decision surfaces to callers, nil when
// the decision allowed admission.
func (d Decision) Err() error {
	if d.Allowed {
		return nil
	}
	return &entity.QuotaError{Role: d.Role, Limit: d.Limit, Count: d.Count}
}

// CanAdmit checks the owner's current active count against the role limit.
// Unlimited roles skip the count entirely.
func (g *Gate) CanAdmit(ctx context.Context, owner, role string) (Decision, error) {
	limit := g.LimitFor(role)
	if limit == Unlimited {
		return Decision{Allowed: true, Role: role, Limit: limit}, nil
	}
	count, err := g.counter.CountActive(ctx, owner)
	if err != nil {
		return Decision{}, err
	}
	return Decision{Allowed: count < limit, Role: role, Limit: limit, Count: count}, nil
}
