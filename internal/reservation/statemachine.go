package reservation

// Action is an event applied to a reservation's state machine.
type Action string

const (
	ActionCreate  Action = "create"
	ActionConfirm Action = "confirm"
	ActionCancel  Action = "cancel"
	ActionUpdate  Action = "update"
	ActionDelete  Action = "delete"
)

// noState is the "from" state of a reservation that does not exist yet.
const noState State = ""

// Transition applies action to from. changed is false when the action is a legal no-op
// (cancelling a cancelled reservation). Time changes on a confirmed reservation send it
// back to pending; deletion is only legal while pending.
func Transition(from State, action Action) (to State, changed bool, err error) {
	switch action {
	case ActionCreate:
		if from == noState {
			return StatePending, true, nil
		}
	case ActionConfirm:
		if from == StatePending {
			return StateConfirmed, true, nil
		}
	case ActionCancel:
		switch from {
		case StatePending, StateConfirmed:
			return StateCancelled, true, nil
		case StateCancelled:
			return StateCancelled, false, nil
		}
	case ActionUpdate:
		if from.Active() {
			return StatePending, true, nil
		}
	case ActionDelete:
		if from == StatePending {
			return noState, true, nil
		}
	}
	return from, false, &InvalidTransitionError{From: from, Action: action}
}
