package device

import (
	"errors"
	"fmt"
)

// ConnectionState represents the specific kind of connection state failure
type ConnectionState string

const (
	NotConnected     ConnectionState = "not_connected"
	AlreadyConnected ConnectionState = "already_connected"
)

// ConnectionError represents a device that is in the wrong connection state
// for the requested operation.
type ConnectionError struct {
	State ConnectionState
	Msg   string
}

func (e *ConnectionError) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Msg == "" {
		return string(e.State)
	}
	return fmt.Sprintf("%s: %s", e.State, e.Msg)
}

// Is allows errors.Is to compare ConnectionError values by State
func (e *ConnectionError) Is(target error) bool {
	if e == nil {
		return false
	}
	t, ok := target.(*ConnectionError)
	if !ok {
		return false
	}
	return e.State == t.State
}

var (
	ErrNotConnected     = &ConnectionError{State: NotConnected}
	ErrAlreadyConnected = &ConnectionError{State: AlreadyConnected}
)

// Lifecycle errors. Everything except ErrAdapterUnavailable is scoped to a
// single device session and never affects other devices.
var (
	// ErrAdapterUnavailable blocks every new connection until the radio handle
	// is invalidated and acquired again.
	ErrAdapterUnavailable = errors.New("bluetooth adapter unavailable")

	// ErrScanTimeout means the scan budget ran out. Callers may retry.
	ErrScanTimeout = errors.New("scan timed out")
	ErrScanFailed  = errors.New("scan failed")

	ErrDeviceNotFound  = errors.New("device not found")
	ErrConnectFailed   = errors.New("connect failed")
	ErrNoNotifyChannel = errors.New("no notify characteristic")
	ErrSubscribeFailed = errors.New("subscribe failed")
	ErrStreamEnded     = errors.New("notification stream ended")
	ErrStreamError     = errors.New("notification stream error")
)

// IsConnectionState reports whether err is a ConnectionError with the given state
func IsConnectionState(err error, state ConnectionState) bool {
	var cerr *ConnectionError
	if errors.As(err, &cerr) {
		return cerr.State == state
	}
	return false
}

// SessionState is a step of a device session.
type SessionState string

const (
	StateResolving          SessionState = "resolving"
	StateConnecting         SessionState = "connecting"
	StateDiscoveringService SessionState = "discovering_service"
	StateSubscribing        SessionState = "subscribing"
	StateStreaming          SessionState = "streaming"
	StateTerminated         SessionState = "terminated"
)

// SessionError reports the session step at which a device failed.
type SessionError struct {
	Device string
	State  SessionState
	Err    error
}

func (e *SessionError) Error() string {
	return fmt.Sprintf("device %s: %s: %v", e.Device, e.State, e.Err)
}

func (e *SessionError) Unwrap() error { return e.Err }
