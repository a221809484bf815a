package odata

import (
	"github.com/nlstn/go-odata-client/internal/expr"
	"github.com/nlstn/go-odata-client/internal/metadata"
)

// FormatError is returned by Format and FormatQueryOption. Use errors.As to
// inspect the kind and the offending name or segment.
type FormatError = expr.FormatError

// ErrorKind classifies a FormatError.
type ErrorKind = expr.ErrorKind

// Error kinds.
const (
	UnresolvablePath    = expr.UnresolvablePath
	UnsupportedFunction = expr.UnsupportedFunction
	InvalidQueryOption  = expr.InvalidQueryOption
	ConversionFailure   = expr.ConversionFailure
	UnsupportedLiteral  = expr.UnsupportedLiteral
)

// Sentinel errors matched by errors.Is.
var (
	ErrUnresolvablePath    = expr.ErrUnresolvablePath
	ErrUnsupportedFunction = expr.ErrUnsupportedFunction
	ErrInvalidQueryOption  = expr.ErrInvalidQueryOption
	ErrConversionFailure   = expr.ErrConversionFailure
	ErrUnsupportedLiteral  = expr.ErrUnsupportedLiteral

	// ErrUnresolvableObject is returned by schema lookups for unknown
	// collections, types and properties.
	ErrUnresolvableObject = metadata.ErrUnresolvable
)
