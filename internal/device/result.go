package device

const (
	ResultSuccess = "success"
	ResultError   = "error"
)

// Result is the outcome of a set or get, shaped for JSON clients:
// {"result":"success","state":...,"name":...} or
// {"result":"error","reason":...,"name":...}.
type Result[S any] struct {
	Result string `json:"result"`
	State  *S     `json:"state,omitempty"`
	Reason string `json:"reason,omitempty"`
	Name   string `json:"name"`

	err error
}

func Success[S any](name string, state S) Result[S] {
	return Result[S]{Result: ResultSuccess, State: &state, Name: name}
}

// Reject builds an error result. cause is the sentinel the rejection wraps.
func Reject[S any](name, reason string, cause error) Result[S] {
	return Result[S]{
		Result: ResultError,
		Reason: reason,
		Name:   name,
		err:    &ValidationError{Name: name, Reason: reason, Err: cause},
	}
}

func (r Result[S]) OK() bool {
	return r.Result == ResultSuccess
}

// Err returns the *ValidationError behind an error result, or nil.
func (r Result[S]) Err() error {
	if r.err == nil {
		return nil
	}
	return r.err
}

// Value returns the state, or the zero value for an error result.
func (r Result[S]) Value() S {
	if r.State == nil {
		var zero S
		return zero
	}
	return *r.State
}
