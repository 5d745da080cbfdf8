// Copyright 2024-2026 Aiku AI

package connector

// AccessReason explains an admission decision.
type AccessReason string

const (
	ReasonAllowed AccessReason = "allowed"
	ReasonPending AccessReason = "pending"
	// ReasonDenied is reserved: no current policy produces it. It exists
	// so hosts can handle a hard-denial variant without a contract change.
	ReasonDenied AccessReason = "denied"
)

// AccessDecision is the result of gating one direct-message sender.
type AccessDecision struct {
	Allowed bool
	Reason  AccessReason
}

// PairingState holds per-session admission state. The allowlist is seeded
// once from configuration at session start and never mutated afterward;
// pending and paired are mutated only by evaluate and Pair, which the
// session calls from its single event-processing path.
type PairingState struct {
	pending   map[string]struct{}
	paired    map[string]struct{}
	allowlist map[string]struct{}
}

// newPairingState seeds the allowlist from configuration.
func newPairingState(allowFrom []string) *PairingState {
	st := &PairingState{
		pending:   make(map[string]struct{}),
		paired:    make(map[string]struct{}),
		allowlist: make(map[string]struct{}, len(allowFrom)),
	}
	for _, id := range allowFrom {
		st.allowlist[id] = struct{}{}
	}
	return st
}

// Pair marks a user as operator-approved, clearing any pending entry.
func (st *PairingState) Pair(userID string) {
	delete(st.pending, userID)
	st.paired[userID] = struct{}{}
}

// IsPending reports whether a user is awaiting approval.
func (st *PairingState) IsPending(userID string) bool {
	_, ok := st.pending[userID]
	return ok
}

// evaluate decides admission for one direct-message sender under the given
// policy. It is pure with respect to its state parameter: all mutation is on
// st, and it performs no I/O. Sending the operator prompt on a pending
// decision is the caller's responsibility.
func evaluate(userID string, policy Policy, st *PairingState) AccessDecision {
	switch policy {
	case PolicyAllowlist:
		if _, ok := st.allowlist[userID]; ok {
			return AccessDecision{Allowed: true, Reason: ReasonAllowed}
		}
		if _, ok := st.paired[userID]; ok {
			return AccessDecision{Allowed: true, Reason: ReasonAllowed}
		}
		return AccessDecision{Allowed: false, Reason: ReasonPending}

	case PolicyPairing:
		if _, ok := st.paired[userID]; ok {
			return AccessDecision{Allowed: true, Reason: ReasonAllowed}
		}
		if _, ok := st.allowlist[userID]; ok {
			// One-time promotion; subsequent calls hit the paired set.
			st.Pair(userID)
			return AccessDecision{Allowed: true, Reason: ReasonAllowed}
		}
		// Idempotent: a repeat call for a still-unapproved user neither
		// duplicates state nor changes the decision.
		if _, ok := st.pending[userID]; !ok {
			st.pending[userID] = struct{}{}
		}
		return AccessDecision{Allowed: false, Reason: ReasonPending}

	default: // PolicyOpen
		return AccessDecision{Allowed: true, Reason: ReasonAllowed}
	}
}
