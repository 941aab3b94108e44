package common

import "errors"

// Error classes. Every revert carries exactly one of them so callers can
// branch with errors.Is without knowing the concrete reason.
var (
	ErrValidation = errors.New("validation error")
	ErrCollateral = errors.New("collateral error")
	ErrLiquidity  = errors.New("liquidity error")
	ErrSlippage   = errors.New("slippage error")
	ErrArithmetic = errors.New("arithmetic error")
)

var (
	ErrOverflow  = NewRevert(ErrArithmetic, "arithmetic overflow")
	ErrUnderflow = NewRevert(ErrArithmetic, "arithmetic underflow")
	ErrDivByZero = NewRevert(ErrArithmetic, "division by zero")
	ErrNotOwner  = NewRevert(ErrValidation, "caller is not the owner")
)

// Revert is an aborting failure whose message is the canonical revert reason.
type Revert struct {
	class  error
	reason string
}

// NewRevert builds a revert reason belonging to class.
func NewRevert(class error, reason string) *Revert {
	return &Revert{class: class, reason: reason}
}

func (r *Revert) Error() string { return r.reason }

// Is matches the revert's class in addition to the revert itself.
func (r *Revert) Is(target error) bool {
	return target != nil && target == r.class
}

// Class returns the error class of the revert.
func (r *Revert) Class() error { return r.class }

// ReasonOf extracts the canonical revert reason from err, or "" when err does
// not wrap a Revert.
func ReasonOf(err error) string {
	var r *Revert
	if errors.As(err, &r) {
		return r.reason
	}
	return ""
}
