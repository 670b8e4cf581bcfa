package protocol

import "fmt"

// ValidationKind classifies a pre-flight validation failure so callers can
// render specific diagnostics instead of a single generic failure.
type ValidationKind int

const (
	KindMissingColumn ValidationKind = iota
	KindBadCoordinate
	KindBadTray
	KindCapacityExceeded
	KindOutOfRange
	KindBadTubeClass
	KindBadBool
	KindBadValue
)

// String returns a short token for the kind, used in logs.
func (k ValidationKind) String() string {
	switch k {
	case KindMissingColumn:
		return "missing-column"
	case KindBadCoordinate:
		return "bad-coordinate"
	case KindBadTray:
		return "bad-tray"
	case KindCapacityExceeded:
		return "capacity-exceeded"
	case KindOutOfRange:
		return "out-of-range"
	case KindBadTubeClass:
		return "bad-tube-class"
	case KindBadBool:
		return "bad-bool"
	case KindBadValue:
		return "bad-value"
	}
	return "unknown"
}

// ValidationError is a planning-time failure. The run must not have issued
// any instrument calls by the time one of these is returned.
type ValidationError struct {
	Kind ValidationKind
	Msg  string
}

func (e *ValidationError) Error() string { return e.Msg }

// validationErrorf builds a ValidationError with a formatted diagnostic.
func validationErrorf(kind ValidationKind, format string, args ...any) *ValidationError {
	return &ValidationError{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}
