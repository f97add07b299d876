package dealroom

import (
	"fmt"
	"time"

	"github.com/NaveedAfraz/swapsphere-sync/internal/domain"
	"github.com/NaveedAfraz/swapsphere-sync/pkg/apperrors"
)

// allowedEdges is the deal-room lifecycle graph. Disputed is additionally
// reachable from every non-terminal state as an escape hatch; that edge is
// handled in Transition rather than listed per state.
var allowedEdges = map[domain.RoomState][]domain.RoomState{
	domain.RoomNegotiation:      {domain.RoomPaymentPending, domain.RoomCancelled},
	domain.RoomPaymentPending:   {domain.RoomPaymentCompleted, domain.RoomCancelled},
	domain.RoomPaymentCompleted: {domain.RoomShipping},
	domain.RoomShipping:         {domain.RoomDelivered},
	domain.RoomDelivered:        {domain.RoomCompleted, domain.RoomDisputed},
	domain.RoomDisputed:         {},
	domain.RoomCompleted:        {},
	domain.RoomCancelled:        {},
}

// TransitionError identifies why a requested transition was rejected.
type TransitionError struct {
	From   domain.RoomState
	To     domain.RoomState
	Reason string // "invalid-edge" or "terminal-state"
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("deal room transition %s -> %s rejected: %s", e.From, e.To, e.Reason)
}

func (e *TransitionError) Is(target error) bool {
	switch e.Reason {
	case "terminal-state":
		return target == apperrors.ErrTerminalState
	default:
		return target == apperrors.ErrValidation
	}
}

// CanTransition reports whether the edge from -> to exists in the lifecycle
// graph, including the disputed escape hatch.
func CanTransition(from, to domain.RoomState) bool {
	if from.IsTerminal() {
		return false
	}
	if to == domain.RoomDisputed {
		return true
	}
	for _, next := range allowedEdges[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Transition validates the edge and returns a new room with the target state
// applied, metadata shallow-merged (new keys win) and UpdatedAt refreshed.
// The input room is never mutated.
func Transition(room *domain.DealRoom, target domain.RoomState, metadata map[string]interface{}, now time.Time) (*domain.DealRoom, error) {
	if room == nil {
		return nil, apperrors.ErrNotFound
	}
	if room.State.IsTerminal() {
		return nil, &TransitionError{From: room.State, To: target, Reason: "terminal-state"}
	}
	if !CanTransition(room.State, target) {
		return nil, &TransitionError{From: room.State, To: target, Reason: "invalid-edge"}
	}

	next := room.Clone()
	next.State = target
	if len(metadata) > 0 {
		if next.Metadata == nil {
			next.Metadata = make(map[string]interface{}, len(metadata))
		}
		for k, v := range metadata {
			next.Metadata[k] = v
		}
	}
	next.UpdatedAt = now
	return next, nil
}

// DisplayLabel is the human-facing name of a room state for list rendering.
func DisplayLabel(state domain.RoomState) string {
	switch state {
	case domain.RoomNegotiation:
		return "Negotiating"
	case domain.RoomPaymentPending:
		return "Awaiting payment"
	case domain.RoomPaymentCompleted:
		return "Payment received"
	case domain.RoomShipping:
		return "Shipping"
	case domain.RoomDelivered:
		return "Delivered"
	case domain.RoomCompleted:
		return "Completed"
	case domain.RoomCancelled:
		return "Cancelled"
	case domain.RoomDisputed:
		return "In dispute"
	}
	return string(state)
}
