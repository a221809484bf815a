package typecache

import (
	"errors"
	"fmt"
	"math"
	"math/big"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/araddon/dateparse"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/nlstn/go-odata-client/internal/edm"
)

// ErrConversion is returned when a value cannot be represented in the target type.
var ErrConversion = errors.New("value conversion failed")

var (
	uuidType           = reflect.TypeOf(uuid.UUID{})
	dateTimeOffsetType = reflect.TypeOf(edm.DateTimeOffset{})
	dateType           = reflect.TypeOf(edm.Date{})
	durationType       = reflect.TypeOf(time.Duration(0))
)

// TryConvert converts value to target, reporting false instead of an error.
func (c *Cache) TryConvert(value any, target reflect.Type) (any, bool) {
	out, err := c.Convert(value, target)
	return out, err == nil
}

// Convert converts value to target using the converters registered on this
// cache first and the built-in conversions otherwise.
func (c *Cache) Convert(value any, target reflect.Type) (any, error) {
	if target == nil {
		return nil, fmt.Errorf("%w: no target type", ErrConversion)
	}
	if conv, ok := c.converter(target); ok {
		out, err := conv(value)
		if err != nil {
			return nil, fmt.Errorf("%w: %s to %s: %w", ErrConversion, describeValue(value), target, err)
		}
		return out, nil
	}
	return ConvertValue(value, target)
}

// ConvertValue performs the built-in conversions between Go scalars, decimal,
// uuid and time values. Pointer targets convert to their element type.
func ConvertValue(value any, target reflect.Type) (any, error) {
	for target.Kind() == reflect.Ptr {
		target = target.Elem()
	}
	if value == nil {
		return nil, fmt.Errorf("%w: nil to %s", ErrConversion, target)
	}
	v := reflect.ValueOf(value)
	for v.Kind() == reflect.Ptr {
		if v.IsNil() {
			return nil, fmt.Errorf("%w: nil to %s", ErrConversion, target)
		}
		v = v.Elem()
	}
	if v.Type() == target {
		return v.Interface(), nil
	}

	out, err := convertSpecial(v, target)
	if err != nil {
		return nil, fmt.Errorf("%w: %s to %s: %w", ErrConversion, describeValue(value), target, err)
	}
	if out != nil {
		return out, nil
	}

	out, err = convertKind(v, target)
	if err != nil {
		return nil, fmt.Errorf("%w: %s to %s: %w", ErrConversion, describeValue(value), target, err)
	}
	return out, nil
}

// convertSpecial handles the struct and array targets. It returns nil, nil
// when target is not one of them.
func convertSpecial(v reflect.Value, target reflect.Type) (any, error) {
	switch target {
	case decimalType:
		return toDecimal(v)
	case uuidType:
		switch v.Kind() {
		case reflect.String:
			return uuid.Parse(v.String())
		case reflect.Slice:
			if b, ok := v.Interface().([]byte); ok {
				return uuid.FromBytes(b)
			}
		}
		return nil, errors.New("unsupported source")
	case timeType:
		return toTime(v)
	case dateTimeOffsetType:
		t, err := toTime(v)
		if err != nil {
			return nil, err
		}
		return edm.DateTimeOffset{Time: t}, nil
	case dateType:
		t, err := toTime(v)
		if err != nil {
			return nil, err
		}
		return edm.DateOf(t), nil
	case durationType:
		if v.Kind() == reflect.String {
			return time.ParseDuration(v.String())
		}
	}
	return nil, nil
}

func convertKind(v reflect.Value, target reflect.Type) (any, error) {
	switch target.Kind() {
	case reflect.String:
		return reflect.ValueOf(formatScalar(v)).Convert(target).Interface(), nil

	case reflect.Bool:
		switch {
		case v.Kind() == reflect.Bool:
			return v.Convert(target).Interface(), nil
		case v.Kind() == reflect.String:
			b, err := strconv.ParseBool(strings.TrimSpace(v.String()))
			if err != nil {
				return nil, err
			}
			return reflect.ValueOf(b).Convert(target).Interface(), nil
		case isNumericKind(v.Kind()):
			return reflect.ValueOf(v.Convert(reflect.TypeOf(float64(0))).Float() != 0).Convert(target).Interface(), nil
		}

	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		n, err := toInt64(v)
		if err != nil {
			return nil, err
		}
		out := reflect.New(target).Elem()
		if out.OverflowInt(n) {
			return nil, fmt.Errorf("%d overflows %s", n, target)
		}
		out.SetInt(n)
		return out.Interface(), nil

	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		n, err := toInt64(v)
		if err != nil {
			return nil, err
		}
		if n < 0 {
			return nil, fmt.Errorf("%d is negative", n)
		}
		out := reflect.New(target).Elem()
		if out.OverflowUint(uint64(n)) {
			return nil, fmt.Errorf("%d overflows %s", n, target)
		}
		out.SetUint(uint64(n))
		return out.Interface(), nil

	case reflect.Float32, reflect.Float64:
		f, err := toFloat64(v)
		if err != nil {
			return nil, err
		}
		out := reflect.New(target).Elem()
		out.SetFloat(f)
		return out.Interface(), nil
	}
	return nil, errors.New("unsupported conversion")
}

func toInt64(v reflect.Value) (int64, error) {
	switch v.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return v.Int(), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		u := v.Uint()
		if u > math.MaxInt64 {
			return 0, fmt.Errorf("%d overflows int64", u)
		}
		return int64(u), nil
	case reflect.Float32, reflect.Float64:
		f := v.Float()
		if f != math.Trunc(f) || f > math.MaxInt64 || f < math.MinInt64 {
			return 0, fmt.Errorf("%v is not an integer", f)
		}
		return int64(f), nil
	case reflect.Bool:
		if v.Bool() {
			return 1, nil
		}
		return 0, nil
	case reflect.String:
		return strconv.ParseInt(strings.TrimSpace(v.String()), 10, 64)
	}
	if d, ok := v.Interface().(decimal.Decimal); ok {
		if !d.IsInteger() {
			return 0, fmt.Errorf("%s is not an integer", d)
		}
		return d.IntPart(), nil
	}
	return 0, errors.New("not a number")
}

func toFloat64(v reflect.Value) (float64, error) {
	switch v.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return float64(v.Int()), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return float64(v.Uint()), nil
	case reflect.Float32, reflect.Float64:
		return v.Float(), nil
	case reflect.String:
		return strconv.ParseFloat(strings.TrimSpace(v.String()), 64)
	}
	if d, ok := v.Interface().(decimal.Decimal); ok {
		f, _ := d.Float64()
		return f, nil
	}
	return 0, errors.New("not a number")
}

func toDecimal(v reflect.Value) (any, error) {
	switch v.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return decimal.NewFromInt(v.Int()), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return decimal.NewFromBigInt(new(big.Int).SetUint64(v.Uint()), 0), nil
	case reflect.Float32:
		return decimal.NewFromFloat32(float32(v.Float())), nil
	case reflect.Float64:
		return decimal.NewFromFloat(v.Float()), nil
	case reflect.String:
		return decimal.NewFromString(strings.TrimSpace(v.String()))
	}
	return nil, errors.New("not a number")
}

func toTime(v reflect.Value) (time.Time, error) {
	switch x := v.Interface().(type) {
	case time.Time:
		return x, nil
	case edm.DateTimeOffset:
		return x.Time, nil
	case edm.Date:
		return time.Date(x.Year, x.Month, x.Day, 0, 0, 0, 0, time.UTC), nil
	}
	if v.Kind() == reflect.String {
		return dateparse.ParseIn(strings.TrimSpace(v.String()), time.UTC)
	}
	return time.Time{}, errors.New("not a date")
}

// formatScalar renders v the way a string conversion would.
func formatScalar(v reflect.Value) string {
	if s, ok := v.Interface().(fmt.Stringer); ok {
		return s.String()
	}
	switch v.Kind() {
	case reflect.String:
		return v.String()
	case reflect.Bool:
		return strconv.FormatBool(v.Bool())
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return strconv.FormatInt(v.Int(), 10)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return strconv.FormatUint(v.Uint(), 10)
	case reflect.Float32:
		return strconv.FormatFloat(v.Float(), 'g', -1, 32)
	case reflect.Float64:
		return strconv.FormatFloat(v.Float(), 'g', -1, 64)
	}
	return fmt.Sprint(v.Interface())
}

func isNumericKind(k reflect.Kind) bool {
	return isIntegerKind(k) || k == reflect.Float32 || k == reflect.Float64
}

func describeValue(value any) string {
	return fmt.Sprintf("%T(%v)", value, value)
}
