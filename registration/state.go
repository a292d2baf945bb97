package registration

import (
	"errors"
	"fmt"
)

// ErrInvalidTransition signals a decision that the state machine forbids.
var ErrInvalidTransition = errors.New("registration: invalid status transition")

// State is the lifecycle position of one submission: Pending, Approved or
// Rejected. Only Pending has transition methods.
type State interface {
	Status() Status
	Registration() Registration
	sealed()
}

type Pending struct{ reg Registration }

type Approved struct{ reg Registration }

type Rejected struct{ reg Registration }

func (p Pending) Status() Status  { return StatusPending }
func (a Approved) Status() Status { return StatusApproved }
func (r Rejected) Status() Status { return StatusRejected }

func (p Pending) Registration() Registration  { return p.reg.Clone() }
func (a Approved) Registration() Registration { return a.reg.Clone() }
func (r Rejected) Registration() Registration { return r.reg.Clone() }

func (Pending) sealed()  {}
func (Approved) sealed() {}
func (Rejected) sealed() {}

// Approve moves a pending submission to approved. Only the status changes.
func (p Pending) Approve() Approved {
	reg := p.reg.Clone()
	reg.Status = StatusApproved
	return Approved{reg: reg}
}

// Reject moves a pending submission to rejected. Only the status changes.
func (p Pending) Reject() Rejected {
	reg := p.reg.Clone()
	reg.Status = StatusRejected
	return Rejected{reg: reg}
}

// StateOf lifts a persisted record into its state variant.
func StateOf(reg Registration) (State, error) {
	switch reg.Status {
	case StatusPending:
		return Pending{reg: reg.Clone()}, nil
	case StatusApproved:
		return Approved{reg: reg.Clone()}, nil
	case StatusRejected:
		return Rejected{reg: reg.Clone()}, nil
	default:
		return nil, fmt.Errorf("registration: unknown status %q on %s", reg.Status, reg.ID)
	}
}

// Policy decides whether decided submissions may be decided again.
type Policy int

const (
	// PolicyTerminal treats approved and rejected as final.
	PolicyTerminal Policy = iota
	// PolicyAllowRedecision lets an administrator flip a decision.
	PolicyAllowRedecision
)

// Decide applies an administrator decision. Re-applying the current status
// returns the state unchanged.
func Decide(s State, to Status, policy Policy) (State, error) {
	if to != StatusApproved && to != StatusRejected {
		return nil, fmt.Errorf("%w: cannot move to %q", ErrInvalidTransition, to)
	}
	if s.Status() == to {
		return s, nil
	}

	switch cur := s.(type) {
	case Pending:
		if to == StatusApproved {
			return cur.Approve(), nil
		}
		return cur.Reject(), nil
	case Approved, Rejected:
		if policy != PolicyAllowRedecision {
			return nil, fmt.Errorf("%w: %s is final", ErrInvalidTransition, cur.Status())
		}
		return redecide(cur.Registration(), to), nil
	default:
		return nil, fmt.Errorf("%w: unknown state %T", ErrInvalidTransition, s)
	}
}

func redecide(reg Registration, to Status) State {
	reg.Status = to
	if to == StatusApproved {
		return Approved{reg: reg}
	}
	return Rejected{reg: reg}
}
