package ipc

// Reason describes why an endpoint was closed. The first reason observed by
// an endpoint is the one delivered to OnConnectionLost subscribers.
type Reason int

const (
	// ReasonUnspecified means the cause could not be determined.
	ReasonUnspecified Reason = iota + 1

	// ReasonConnectionLost means the remote end closed the connection.
	ReasonConnectionLost

	// ReasonUserClosed means the user requested a graceful close.
	ReasonUserClosed

	// ReasonUserAborted means the user aborted the endpoint.
	ReasonUserAborted

	// ReasonStreamIntegrityViolation means the byte stream failed framing
	// validation and the connection was abandoned.
	ReasonStreamIntegrityViolation

	// ReasonWriteFailure means an unrecoverable write failure occurred.
	ReasonWriteFailure

	// ReasonReadFailure means an unrecoverable read failure occurred.
	ReasonReadFailure

	// ReasonTeardown means the endpoint was released while operations were
	// still referencing it.
	ReasonTeardown
)

func (r Reason) String() string {
	switch r {
	case ReasonUnspecified:
		return "unspecified"
	case ReasonConnectionLost:
		return "connection lost"
	case ReasonUserClosed:
		return "user closed"
	case ReasonUserAborted:
		return "user aborted"
	case ReasonStreamIntegrityViolation:
		return "stream integrity violation"
	case ReasonWriteFailure:
		return "write failure"
	case ReasonReadFailure:
		return "read failure"
	case ReasonTeardown:
		return "teardown"
	default:
		return "unknown"
	}
}
