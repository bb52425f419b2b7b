package statemachine

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"restaurant-order-engine/apperror"
	"restaurant-order-engine/models"
)

// Transition defines a valid state change and who can perform it
type Transition struct {
	From  models.OrderStatus `json:"from"`
	To    models.OrderStatus `json:"to"`
	Actor models.Role        `json:"actor"`
}

// cancellers may cancel any order that is not final
var cancellers = []models.Role{models.RoleCook, models.RoleCashier, models.RoleWaiter, models.RoleAdmin}

// payers may settle a Ready order
var payers = []models.Role{models.RoleCashier, models.RoleAdmin}

// validTransitions is the authoritative state machine definition
var validTransitions = func() []Transition {
	ts := []Transition{
		// Cook starts and finishes preparation
		{From: models.StatusPending, To: models.StatusPreparing, Actor: models.RoleCook},
		{From: models.StatusPreparing, To: models.StatusReady, Actor: models.RoleCook},
	}
	for _, from := range []models.OrderStatus{models.StatusPending, models.StatusPreparing, models.StatusReady} {
		for _, actor := range cancellers {
			ts = append(ts, Transition{From: from, To: models.StatusCancelled, Actor: actor})
		}
	}
	return ts
}()

type edge struct {
	From models.OrderStatus
	To   models.OrderStatus
}

// Build lookup maps for O(1) validation
var (
	transitionMap = func() map[Transition]bool {
		m := make(map[Transition]bool)
		for _, t := range validTransitions {
			m[t] = true
		}
		return m
	}()
	edgeMap = func() map[edge]bool {
		m := make(map[edge]bool)
		for _, t := range validTransitions {
			m[edge{t.From, t.To}] = true
		}
		return m
	}()
)

// ValidTransitionsFrom returns all valid next states from a given state
func ValidTransitionsFrom(status models.OrderStatus) []models.OrderStatus {
	var nexts []models.OrderStatus
	seen := map[models.OrderStatus]bool{}
	for _, t := range validTransitions {
		if t.From == status && !seen[t.To] {
			nexts = append(nexts, t.To)
			seen[t.To] = true
		}
	}
	return nexts
}

// CanTransition checks if a given actor can move from one state to another.
// An edge missing from the table is a Conflict; an edge the actor may not
// take is Forbidden.
func CanTransition(from, to models.OrderStatus, actor models.Role) error {
	if transitionMap[Transition{From: from, To: to, Actor: actor}] {
		return nil
	}
	if edgeMap[edge{from, to}] {
		return apperror.Forbiddenf("role %q may not move an order %s → %s", actor, from, to)
	}
	return apperror.Conflictf("invalid transition: %s → %s. Valid transitions from %s are: %s",
		from, to, from, describeValidFrom(from))
}

func describeValidFrom(status models.OrderStatus) string {
	nexts := ValidTransitionsFrom(status)
	if len(nexts) == 0 {
		return "none (terminal state)"
	}
	names := make([]string, len(nexts))
	for i, s := range nexts {
		names[i] = string(s)
	}
	return strings.Join(names, ", ")
}

// GetAllTransitions returns the full state machine for documentation
func GetAllTransitions() []Transition {
	return append([]Transition(nil), validTransitions...)
}

// PaymentRoles returns the roles allowed to apply payment.
func PaymentRoles() []models.Role {
	return append([]models.Role(nil), payers...)
}

// Advance computes the order as it would be after moving to target. The
// caller commits the result.
func Advance(o models.Order, target models.OrderStatus, actor models.Role) (models.Order, error) {
	if o.Terminal() {
		return models.Order{}, apperror.Conflictf("order %d is final (status %s, paid %t); cannot move to %s",
			o.ID, o.Status, o.IsPaid, target)
	}
	if err := CanTransition(o.Status, target, actor); err != nil {
		return models.Order{}, err
	}
	next := o.Clone()
	next.Status = target
	return next, nil
}

// ApplyPayment computes the paid order and the amount settled. Only a Ready,
// unpaid order can be paid.
func ApplyPayment(o models.Order, actor models.Role, at time.Time) (models.Order, decimal.Decimal, error) {
	if !actor.In(payers...) {
		return models.Order{}, decimal.Decimal{}, apperror.Forbiddenf("role %q may not apply payment", actor)
	}
	if o.IsPaid {
		return models.Order{}, decimal.Decimal{}, apperror.Conflictf("order %d already paid", o.ID)
	}
	if o.Status != models.StatusReady {
		return models.Order{}, decimal.Decimal{}, apperror.Conflictf("order %d is %s; must be %s before payment",
			o.ID, o.Status, models.StatusReady)
	}
	next := o.Clone()
	next.IsPaid = true
	paidAt := at.UTC()
	next.PaidAt = &paidAt
	return next, next.TotalAmount, nil
}
