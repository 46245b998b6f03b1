// Package workflow holds the status transition rules of purchase requests,
// purchase orders and stock items, and the approval chain that moves a
// purchase request from Pending to its final status.
package workflow

import (
	"errors"
	"fmt"

	"ims/internal/model"
)

var (
	ErrInvalidStatus     = errors.New("invalid status")
	ErrInvalidTransition = errors.New("invalid status transition")
)

// TransitionError reports a move between two valid statuses that the
// machine does not allow.
type TransitionError struct {
	Entity string
	From   string
	To     string
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("cannot mark %s %s as %s", e.From, e.Entity, e.To)
}

func (e *TransitionError) Is(target error) bool {
	return target == ErrInvalidTransition
}

// Machine is a status domain plus the transitions allowed inside it.
// A nil edges map means any status may be set directly.
type Machine struct {
	entity   string
	statuses []string
	edges    map[string][]string
}

var (
	// Requests: Pending may be decided once, every decided status is final.
	Requests = &Machine{
		entity: "request",
		statuses: []string{
			model.RequestStatusPending,
			model.RequestStatusApproved,
			model.RequestStatusRejected,
			model.RequestStatusPartiallyApproved,
		},
		edges: map[string][]string{
			model.RequestStatusPending: {
				model.RequestStatusApproved,
				model.RequestStatusRejected,
				model.RequestStatusPartiallyApproved,
			},
		},
	}

	// Orders must be Placed before they are Received.
	Orders = &Machine{
		entity: "order",
		statuses: []string{
			model.OrderStatusPending,
			model.OrderStatusPlaced,
			model.OrderStatusReceived,
			model.OrderStatusCancelled,
		},
		edges: map[string][]string{
			model.OrderStatusPending: {model.OrderStatusPlaced, model.OrderStatusCancelled},
			model.OrderStatusPlaced:  {model.OrderStatusReceived, model.OrderStatusCancelled},
		},
	}

	Payments = &Machine{
		entity: "payment",
		statuses: []string{
			model.PaymentStatusUnpaid,
			model.PaymentStatusPaid,
			model.PaymentStatusPartial,
		},
	}

	Stock = &Machine{
		entity: "stock item",
		statuses: []string{
			model.StockStatusInStock,
			model.StockStatusAllocated,
			model.StockStatusInService,
			model.StockStatusTrash,
		},
	}
)

// Statuses returns the status domain in declaration order.
func (m *Machine) Statuses() []string {
	out := make([]string, len(m.statuses))
	copy(out, m.statuses)
	return out
}

// Valid reports whether status belongs to the machine's domain.
func (m *Machine) Valid(status string) bool {
	for _, s := range m.statuses {
		if s == status {
			return true
		}
	}
	return false
}

// CheckStatus returns ErrInvalidStatus when status is outside the domain.
func (m *Machine) CheckStatus(status string) error {
	if !m.Valid(status) {
		return fmt.Errorf("%w: %q is not a valid %s status", ErrInvalidStatus, status, m.entity)
	}
	return nil
}

// Transition validates moving from one status to another. It reports
// changed=false when both are equal, which callers treat as a no-op.
func (m *Machine) Transition(from, to string) (changed bool, err error) {
	if err := m.CheckStatus(to); err != nil {
		return false, err
	}
	if from == to {
		return false, nil
	}
	if m.edges == nil {
		return true, nil
	}
	for _, next := range m.edges[from] {
		if next == to {
			return true, nil
		}
	}
	return false, &TransitionError{Entity: m.entity, From: from, To: to}
}

// Terminal reports whether no further transition leaves status.
func (m *Machine) Terminal(status string) bool {
	return m.edges != nil && len(m.edges[status]) == 0
}
