package lifecycle

import "errors"

var (
	// ErrInvalidEnum is returned when a requested value is not a member of
	// the target axis's enum.
	ErrInvalidEnum = errors.New("invalid enum value")

	// ErrIllegalTransition is returned for out-of-order moves, including any
	// attempt to leave a terminal state.
	ErrIllegalTransition = errors.New("illegal transition")

	// ErrNotApplicable is returned when the axis does not exist on the
	// order, e.g. shipping status on a digital product.
	ErrNotApplicable = errors.New("axis not applicable to this order")

	// ErrPrecondition is returned when an operation's entry conditions on
	// the order state are not met.
	ErrPrecondition = errors.New("precondition not met")

	// ErrInvalidAmount is returned for refund amounts outside [0, totalPrice].
	ErrInvalidAmount = errors.New("invalid refund amount")

	// ErrDelivery wraps failures of the invoice delivery collaborator.
	// The order state is never altered on delivery failure.
	ErrDelivery = errors.New("invoice delivery failed")
)
