package connector

import "fmt"

// ConnectionError reports that a plugin's Initialize failed: the remote
// endpoint is unreachable or the credentials were rejected.
type ConnectionError struct {
	Integration string
	Err         error
}

func (e *ConnectionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("connect %s: %v", e.Integration, e.Err)
	}
	return fmt.Sprintf("connect %s failed", e.Integration)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// NotConnectedError reports an action attempted on an instance that is not
// in the connected state.
type NotConnectedError struct {
	InstanceID string
	Status     string
}

func (e *NotConnectedError) Error() string {
	return fmt.Sprintf("connector instance %s is %s, not connected", e.InstanceID, e.Status)
}

// UnknownActionError reports an action id absent from the connector's
// action set.
type UnknownActionError struct {
	InstanceID string
	Action     string
}

func (e *UnknownActionError) Error() string {
	return fmt.Sprintf("connector instance %s has no action %q", e.InstanceID, e.Action)
}

// ExecutionError wraps a failure from a plugin's execute function. The
// original message is preserved; the instance moves to the error state.
type ExecutionError struct {
	InstanceID string
	Action     string
	Err        error
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("execute %s on instance %s: %v", e.Action, e.InstanceID, e.Err)
}

func (e *ExecutionError) Unwrap() error { return e.Err }
