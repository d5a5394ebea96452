package servo

import "errors"

var (
	// ErrConfigNil indicates that a nil SessionConfig was provided.
	ErrConfigNil = errors.New("servo: session config is nil")

	// ErrUnsupported indicates that the host has no serial capability.
	// Retrying will not help.
	ErrUnsupported = errors.New("servo: serial ports are not supported on this host")

	// ErrSelectionCancelled indicates that device selection was dismissed.
	ErrSelectionCancelled = errors.New("servo: device selection cancelled")

	// ErrNoDevice indicates that no serial device matched the port filter.
	ErrNoDevice = errors.New("servo: no matching serial device")

	// ErrOpenFailed indicates that the selected device could not be opened (busy, gone, denied).
	ErrOpenFailed = errors.New("servo: failed to open serial device")
)

var (
	// ErrNotConnected is returned by MoveTo when the session is not connected.
	// The call is a no-op.
	ErrNotConnected = errors.New("servo: session is not connected")

	// ErrConnectInProgress is returned when Connect is called while another Connect is running.
	ErrConnectInProgress = errors.New("servo: connect already in progress")

	// ErrWriteFailed indicates that a command frame could not be written; the transport is presumed dead.
	ErrWriteFailed = errors.New("servo: command write failed")

	// ErrHandleReleased indicates a write through a transport handle that was already released.
	ErrHandleReleased = errors.New("servo: transport handle released")
)

// ErrConnectAborted indicates that Reset was called while Connect was still selecting or opening.
var ErrConnectAborted = errors.New("servo: connect aborted by reset")

// Describe converts a session error into a message for the person running the quiz.
func Describe(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrUnsupported):
		return "Serial ports are not supported on this host."
	case errors.Is(err, ErrSelectionCancelled):
		return "Device selection cancelled."
	case errors.Is(err, ErrNoDevice):
		return "No matching serial device found."
	case errors.Is(err, ErrConnectAborted):
		return "Connection attempt aborted by reset."
	case errors.Is(err, ErrWriteFailed):
		return "Failed to send command: " + err.Error()
	default:
		return "Connection error: " + err.Error()
	}
}
