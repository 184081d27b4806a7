// Package session holds the authoritative connection state for every user
// talking to the operator. A user with no stored entry is in the Unrequested
// state; that convention is part of the contract, not an implementation
// accident, and transitions back to Unrequested remove the entry again.
package session

import "sync"

// State is the lifecycle position of a single user's relay connection.
type State uint8

const (
	// Unrequested means the user has no open request and no session.
	Unrequested State = iota
	// Pending means the user applied and waits for the operator's decision.
	Pending
	// Active means messages are being relayed between the user and the operator.
	Active
)

// String returns the lowercase state name used in logs and the audit journal.
func (s State) String() string {
	switch s {
	case Pending:
		return "pending"
	case Active:
		return "active"
	default:
		return "unrequested"
	}
}

// Outcome is the closed set of results a registry operation can produce.
// Operations never fail beyond these variants; they are total over the
// state space.
type Outcome uint8

const (
	// Accepted: Unrequested -> Pending.
	Accepted Outcome = iota
	// AlreadyPending: request repeated while Pending, no state change.
	AlreadyPending
	// AlreadyActive: request while Active, no state change.
	AlreadyActive
	// Cancelled: Pending -> Unrequested by the user.
	Cancelled
	// Approved: Pending -> Active by the operator.
	Approved
	// Rejected: Pending -> Unrequested by the operator.
	Rejected
	// Connected: any state -> Active via the operator override.
	Connected
	// Ended: Active -> Unrequested by either party.
	Ended
	// NotPending: the operation required Pending but the user was not.
	NotPending
	// NotActive: the operation required Active but the user was not.
	NotActive
)

// String returns the lowercase outcome name used in logs.
func (o Outcome) String() string {
	switch o {
	case Accepted:
		return "accepted"
	case AlreadyPending:
		return "already_pending"
	case AlreadyActive:
		return "already_active"
	case Cancelled:
		return "cancelled"
	case Approved:
		return "approved"
	case Rejected:
		return "rejected"
	case Connected:
		return "connected"
	case Ended:
		return "ended"
	case NotPending:
		return "not_pending"
	case NotActive:
		return "not_active"
	default:
		return "unknown"
	}
}

// Cause labels what triggered a state transition, for observers.
type Cause string

const (
	CauseRequest     Cause = "request"
	CauseCancel      Cause = "cancel"
	CauseApprove     Cause = "approve"
	CauseReject      Cause = "reject"
	CauseConnect     Cause = "connect"
	CauseUserEnd     Cause = "user_end"
	CauseOperatorEnd Cause = "operator_end"
)

// Observer is invoked after every completed state transition, outside the
// registry locks. Implementations must not call back into the registry for
// the same user synchronously if they want a consistent view.
type Observer func(userID int64, from, to State, cause Cause)

const shardCount = 16

type shard struct {
	mu     sync.RWMutex
	states map[int64]State
}

// Registry is a sharded in-memory store of per-user session states.
// Mutations of a single user's state are atomic; distinct users map to
// independent shards so their transitions do not serialize each other.
type Registry struct {
	shards   [shardCount]shard
	observer Observer
}

// NewRegistry returns an empty registry. The observer may be nil.
func NewRegistry(observer Observer) *Registry {
	r := &Registry{observer: observer}
	for i := range r.shards {
		r.shards[i].states = make(map[int64]State)
	}
	return r
}

func (r *Registry) shardFor(userID int64) *shard {
	return &r.shards[uint64(userID)%shardCount]
}

// StateOf reports the current state of a user. Missing entries read as
// Unrequested.
func (r *Registry) StateOf(userID int64) State {
	s := r.shardFor(userID)
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.states[userID]
}

// transition applies fn under the user's shard lock and notifies the
// observer after the lock is released.
func (r *Registry) transition(userID int64, cause Cause, fn func(current State) (State, Outcome, bool)) Outcome {
	s := r.shardFor(userID)

	s.mu.Lock()
	from := s.states[userID]
	to, outcome, changed := fn(from)
	if changed {
		if to == Unrequested {
			delete(s.states, userID)
		} else {
			s.states[userID] = to
		}
	}
	s.mu.Unlock()

	if changed && r.observer != nil {
		r.observer(userID, from, to, cause)
	}
	return outcome
}

// RequestConnection moves an Unrequested user to Pending. Repeating the
// request while Pending is idempotent.
func (r *Registry) RequestConnection(userID int64) Outcome {
	return r.transition(userID, CauseRequest, func(current State) (State, Outcome, bool) {
		switch current {
		case Active:
			return current, AlreadyActive, false
		case Pending:
			return current, AlreadyPending, false
		default:
			return Pending, Accepted, true
		}
	})
}

// CancelRequest withdraws a Pending request.
func (r *Registry) CancelRequest(userID int64) Outcome {
	return r.transition(userID, CauseCancel, func(current State) (State, Outcome, bool) {
		if current != Pending {
			return current, NotPending, false
		}
		return Unrequested, Cancelled, true
	})
}

// Approve turns a Pending request into an Active session.
func (r *Registry) Approve(userID int64) Outcome {
	return r.transition(userID, CauseApprove, func(current State) (State, Outcome, bool) {
		if current != Pending {
			return current, NotPending, false
		}
		return Active, Approved, true
	})
}

// Reject declines a Pending request.
func (r *Registry) Reject(userID int64) Outcome {
	return r.transition(userID, CauseReject, func(current State) (State, Outcome, bool) {
		if current != Pending {
			return current, NotPending, false
		}
		return Unrequested, Rejected, true
	})
}

// ForceConnect unconditionally makes the session Active. It is the
// operator's privileged override and succeeds from any prior state.
func (r *Registry) ForceConnect(userID int64) Outcome {
	return r.transition(userID, CauseConnect, func(current State) (State, Outcome, bool) {
		return Active, Connected, current != Active
	})
}

// EndByUser closes an Active session on the user's initiative.
func (r *Registry) EndByUser(userID int64) Outcome {
	return r.end(userID, CauseUserEnd)
}

// EndByOperator closes an Active session on the operator's initiative.
// The transition is identical to EndByUser; the cause only steers who is
// notified afterwards.
func (r *Registry) EndByOperator(userID int64) Outcome {
	return r.end(userID, CauseOperatorEnd)
}

func (r *Registry) end(userID int64, cause Cause) Outcome {
	return r.transition(userID, cause, func(current State) (State, Outcome, bool) {
		if current != Active {
			return current, NotActive, false
		}
		return Unrequested, Ended, true
	})
}

// ListPending returns a snapshot of users currently Pending. Order is
// unspecified.
func (r *Registry) ListPending() []int64 {
	return r.list(Pending)
}

// ListActive returns a snapshot of users currently Active.
func (r *Registry) ListActive() []int64 {
	return r.list(Active)
}

func (r *Registry) list(want State) []int64 {
	var out []int64
	for i := range r.shards {
		s := &r.shards[i]
		s.mu.RLock()
		for userID, st := range s.states {
			if st == want {
				out = append(out, userID)
			}
		}
		s.mu.RUnlock()
	}
	return out
}

// Counts reports how many users are Pending and Active right now.
func (r *Registry) Counts() (pending, active int) {
	for i := range r.shards {
		s := &r.shards[i]
		s.mu.RLock()
		for _, st := range s.states {
			switch st {
			case Pending:
				pending++
			case Active:
				active++
			}
		}
		s.mu.RUnlock()
	}
	return pending, active
}
