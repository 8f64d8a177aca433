package dives

import "fmt"

// ServiceError tags gateway and controller failures with an operation.reason
// code so call sites can log and surface them uniformly.
type ServiceError struct {
	code string
	err  error
}

func (e *ServiceError) Error() string {
	if e.err == nil {
		return e.code
	}
	return fmt.Sprintf("%s: %v", e.code, e.err)
}

func (e *ServiceError) Unwrap() error {
	return e.err
}

func (e *ServiceError) Code() string {
	return e.code
}

const (
	opStartSession   = "dives.start_session"
	opLogEvent       = "dives.log_event"
	opStopSession    = "dives.stop_session"
	opCompleteManual = "dives.complete_manual"
	opRehydrate      = "dives.rehydrate"
	opListHistory    = "dives.list_history"
	opDeleteDive     = "dives.delete_dive"
)

func newServiceError(operation, reason string, cause error) error {
	code := fmt.Sprintf("%s.%s", operation, reason)
	return &ServiceError{code: code, err: cause}
}
