package expr

import (
	"fmt"
	"reflect"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/nlstn/go-odata-client/internal/typecache"
)

// foldFunc converts the literal argument of a conversion call.
type foldFunc func(types *typecache.Cache, value any) (any, error)

func foldTo[T any]() foldFunc {
	target := reflect.TypeOf((*T)(nil)).Elem()
	return func(types *typecache.Cache, value any) (any, error) {
		return types.Convert(value, target)
	}
}

// conversionFolds are the single argument conversion calls that are
// evaluated at format time instead of being sent to the service.
var conversionFolds = map[string]foldFunc{
	"ToBoolean":  foldTo[bool](),
	"ToByte":     foldTo[uint8](),
	"ToChar":     foldChar,
	"ToDateTime": foldTo[time.Time](),
	"ToDecimal":  foldTo[decimal.Decimal](),
	"ToDouble":   foldTo[float64](),
	"ToGuid":     foldTo[uuid.UUID](),
	"ToInt16":    foldTo[int16](),
	"ToInt32":    foldTo[int32](),
	"ToInt64":    foldTo[int64](),
	"ToSByte":    foldTo[int8](),
	"ToSingle":   foldTo[float32](),
	"ToString":   foldTo[string](),
	"ToUInt16":   foldTo[uint16](),
	"ToUInt32":   foldTo[uint32](),
	"ToUInt64":   foldTo[uint64](),
}

// foldChar keeps the first character as a one character string, since a
// rune literal would otherwise render as a number.
func foldChar(_ *typecache.Cache, value any) (any, error) {
	switch v := value.(type) {
	case rune:
		return string(v), nil
	case string:
		if r, size := utf8.DecodeRuneInString(v); size > 0 && size == len(v) {
			return string(r), nil
		}
	}
	return nil, fmt.Errorf("%w: %T(%v) is not a single character", typecache.ErrConversion, value, value)
}

// IsConversionFunction reports whether name is folded at format time.
func IsConversionFunction(name string) bool {
	_, ok := conversionFolds[name]
	return ok
}

// ConvertValue converts value to target with the converters of session and
// reports failures as ConversionFailure. Format itself never fails on a
// conversion; it formats the unconverted value instead.
func ConvertValue(session Session, value any, target reflect.Type) (any, error) {
	out, err := session.TypeCache().Convert(value, target)
	if err != nil {
		return nil, &FormatError{Kind: ConversionFailure, Err: err}
	}
	return out, nil
}
