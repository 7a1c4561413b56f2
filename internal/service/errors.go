package service

import "fmt"

// Denial codes returned to handlers. Protocol denials are expected outcomes,
// not server faults, so they carry a user-facing message and map to 4xx.
const (
	DenialIllegalTransition    = "ILLEGAL_TRANSITION"
	DenialUnsupportedCondition = "UNSUPPORTED_CONDITION"
	DenialCooldownActive       = "COOLDOWN_ACTIVE"
	DenialInvalidInput         = "INVALID_INPUT"
	DenialNoActiveSession      = "NO_ACTIVE_SESSION"
)

// DeniedError is a protocol-level refusal: the requested action is not
// allowed right now and the message explains why. Retryability depends on
// the code (a cooldown clears with time, an unsupported condition never does).
type DeniedError struct {
	Code    string
	Message string
}

func (e *DeniedError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func denied(code, format string, args ...any) *DeniedError {
	return &DeniedError{Code: code, Message: fmt.Sprintf(format, args...)}
}
