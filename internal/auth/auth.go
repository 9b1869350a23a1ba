// Package auth decides whether a caller may perform a sensitive action.
//
// The Gate checks the blacklist first, against live store state, so a
// blacklist write is visible to the very next authorization check. Only then
// is the caller's role compared against the required role under the total
// order member < admin < owner. Decisions are atomic: callers never observe
// a partially evaluated result.
package auth

import (
	"context"

	"github.com/dresos/duckbot/internal/blacklist"
	"github.com/dresos/duckbot/internal/logging"
	"github.com/dresos/duckbot/internal/metrics"
)

// Role is a totally ordered privilege level.
type Role int

const (
	// RoleMember — a regular chat participant.
	RoleMember Role = iota
	// RoleAdmin — a platform-reported chat administrator.
	RoleAdmin
	// RoleOwner — the single configured bot owner.
	RoleOwner
)

// String implements fmt.Stringer.
func (r Role) String() string {
	switch r {
	case RoleOwner:
		return "owner"
	case RoleAdmin:
		return "admin"
	default:
		return "member"
	}
}

// AtLeast reports whether r grants the privileges of required.
func (r Role) AtLeast(required Role) bool { return r >= required }

// Caller identifies the user invoking a command. Immutable once built.
type Caller struct {
	ID   int64
	Role Role
}

// Reason classifies a decision for audit clarity.
type Reason string

const (
	// ReasonOK — the action is allowed.
	ReasonOK Reason = "ok"
	// ReasonBlacklisted — the caller id is blacklisted. Checked before any
	// role logic and short-circuits it.
	ReasonBlacklisted Reason = "blacklisted"
	// ReasonInsufficientRole — the caller's role is below the required role.
	ReasonInsufficientRole Reason = "insufficient_role"
	// ReasonStoreUnavailable — the blacklist store failed; the gate fails
	// closed rather than guessing.
	ReasonStoreUnavailable Reason = "store_unavailable"
)

// Decision is the atomic outcome of an authorization check.
type Decision struct {
	Allow  bool
	Reason Reason
}

// Gate performs authorization checks against an injected blacklist store.
// It holds no mutable state of its own and is safe for concurrent use.
type Gate struct {
	store blacklist.Store
	audit Recorder
}

// NewGate creates a Gate over the given store. recorder may be nil to
// disable auditing.
func NewGate(store blacklist.Store, recorder Recorder) *Gate {
	return &Gate{store: store, audit: recorder}
}

// Authorize decides whether caller may perform an action requiring the given
// role. The blacklist check always runs first and reads the current store
// state; a store failure denies. The decision is recorded with coarse facts
// only — never command payloads.
func (g *Gate) Authorize(ctx context.Context, caller Caller, required Role) Decision {
	decision := g.decide(ctx, caller, required)
	if !decision.Allow {
		metrics.AuthzDenials.WithLabelValues(string(decision.Reason)).Inc()
	}
	if g.audit != nil {
		g.audit.Record(ctx, newAuditEntry(caller, required, decision))
	}
	return decision
}

func (g *Gate) decide(ctx context.Context, caller Caller, required Role) Decision {
	banned, err := g.store.Contains(caller.ID)
	if err != nil {
		logging.FromContext(ctx).Error("blacklist check failed", "error", err.Error())
		return Decision{Allow: false, Reason: ReasonStoreUnavailable}
	}
	if banned {
		return Decision{Allow: false, Reason: ReasonBlacklisted}
	}
	if !caller.Role.AtLeast(required) {
		return Decision{Allow: false, Reason: ReasonInsufficientRole}
	}
	return Decision{Allow: true, Reason: ReasonOK}
}
