package device

// Status is the lifecycle position of a Worker.
type Status int32

const (
	Disconnected Status = iota
	Connecting
	Connected
	AwaitingInitialStatus
	Serving
	ShuttingDown
	Terminated
)

func (s Status) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	case AwaitingInitialStatus:
		return "awaiting_initial_status"
	case Serving:
		return "serving"
	case ShuttingDown:
		return "shutting_down"
	case Terminated:
		return "terminated"
	default:
		return "unknown"
	}
}

func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}
