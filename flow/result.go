// Package flow defines the result of pushing data through the pipeline.
package flow

type Result int

const (
	OK Result = iota
	Flushing
	EOS
	NotNegotiated
	Error
)

func (r Result) String() string {
	switch r {
	case OK:
		return "OK"
	case Flushing:
		return "FLUSHING"
	case EOS:
		return "EOS"
	case NotNegotiated:
		return "NOT_NEGOTIATED"
	case Error:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

func (r Result) IsOK() bool {
	return r == OK
}

// IsFatal reports whether the pipeline cannot proceed without
// reconfiguration.
func (r Result) IsFatal() bool {
	return r == Error || r == NotNegotiated
}
