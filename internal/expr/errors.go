package expr

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a FormatError.
type ErrorKind int

const (
	// UnresolvablePath: a reference segment is not a property of its collection.
	UnresolvablePath ErrorKind = iota + 1
	// UnsupportedFunction: a call matches no mapping and no built-in form.
	UnsupportedFunction
	// InvalidQueryOption: a custom query option uses an operator other than
	// And or Equal, or a command combines a function with an action.
	InvalidQueryOption
	// ConversionFailure: a strict value conversion failed.
	ConversionFailure
	// UnsupportedLiteral: a value has no URI literal form.
	UnsupportedLiteral
)

var (
	ErrUnresolvablePath    = errors.New("unresolvable property path")
	ErrUnsupportedFunction = errors.New("unsupported function")
	ErrInvalidQueryOption  = errors.New("invalid custom query option")
	ErrConversionFailure   = errors.New("conversion failure")
	ErrUnsupportedLiteral  = errors.New("unsupported literal")
)

func (k ErrorKind) sentinel() error {
	switch k {
	case UnresolvablePath:
		return ErrUnresolvablePath
	case UnsupportedFunction:
		return ErrUnsupportedFunction
	case InvalidQueryOption:
		return ErrInvalidQueryOption
	case ConversionFailure:
		return ErrConversionFailure
	case UnsupportedLiteral:
		return ErrUnsupportedLiteral
	}
	return nil
}

func (k ErrorKind) String() string {
	switch k {
	case UnresolvablePath:
		return "UnresolvablePath"
	case UnsupportedFunction:
		return "UnsupportedFunction"
	case InvalidQueryOption:
		return "InvalidQueryOption"
	case ConversionFailure:
		return "ConversionFailure"
	case UnsupportedLiteral:
		return "UnsupportedLiteral"
	}
	return fmt.Sprintf("ErrorKind(%d)", int(k))
}

// FormatError is returned by Format and FormatQueryOption. errors.Is matches
// it against the sentinel of its Kind and against the wrapped Err.
type FormatError struct {
	Kind ErrorKind
	// Name is the function name for UnsupportedFunction and the operator
	// for InvalidQueryOption.
	Name  string
	Arity int
	// Segment is the path segment that could not be resolved.
	Segment string
	Err     error
}

func (e *FormatError) Error() string {
	var msg string
	switch e.Kind {
	case UnresolvablePath:
		msg = fmt.Sprintf("property path segment [%s] cannot be resolved", e.Segment)
	case UnsupportedFunction:
		msg = fmt.Sprintf("function %s with %d argument(s) is not supported", e.Name, e.Arity)
	case InvalidQueryOption:
		if e.Name != "" {
			msg = fmt.Sprintf("invalid custom query option: operator %s is not allowed", e.Name)
		} else {
			msg = "invalid custom query option"
		}
	case ConversionFailure:
		msg = "value conversion failed"
	case UnsupportedLiteral:
		msg = "value has no URI literal form"
	default:
		msg = "format error"
	}
	if e.Err != nil {
		return msg + ": " + e.Err.Error()
	}
	return msg
}

func (e *FormatError) Unwrap() error {
	return e.Err
}

// Is reports whether target is the sentinel of e.Kind.
func (e *FormatError) Is(target error) bool {
	return target != nil && target == e.Kind.sentinel()
}

func unresolvable(segment string, err error) error {
	return &FormatError{Kind: UnresolvablePath, Segment: segment, Err: err}
}

func unsupportedFunction(call *FunctionCall, err error) error {
	return &FormatError{Kind: UnsupportedFunction, Name: call.Name, Arity: len(call.Args), Err: err}
}

func unsupportedLiteral(format string, args ...any) error {
	return &FormatError{Kind: UnsupportedLiteral, Err: fmt.Errorf(format, args...)}
}
