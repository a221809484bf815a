package expr

import (
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"math"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/nlstn/go-odata-client/internal/edm"
)

const (
	legacyDateTimeLayout = "2006-01-02T15:04:05.9999999"
	dateTimeLayout       = time.RFC3339Nano
)

// formatLiteral renders value as a URI literal for the session version.
func (c *Context) formatLiteral(value any) (string, error) {
	if value == nil {
		return "null", nil
	}
	if node, ok := value.(Node); ok {
		return c.format(node)
	}
	settings := c.settings()
	v4 := settings.Version.AtLeastV4()

	if t, ok := value.(reflect.Type); ok {
		return quote(c.Session.TypeCache().QualifiedTypeName(t)), nil
	}
	if rv := reflect.ValueOf(value); rv.Kind() == reflect.Ptr {
		if rv.IsNil() {
			return "null", nil
		}
		return c.formatLiteral(rv.Elem().Interface())
	}
	if typeName, member, ok := c.Session.TypeCache().EnumLiteral(value); ok {
		return formatEnum(typeName, member, v4 && !settings.EnumPrefixFree), nil
	}

	switch v := value.(type) {
	case bool:
		return strconv.FormatBool(v), nil
	case string:
		return quote(v), nil
	case int:
		return strconv.Itoa(v), nil
	case int8, int16, int32, uint8, uint16:
		return fmt.Sprint(v), nil
	case int64:
		return longLiteral(strconv.FormatInt(v, 10), v4), nil
	case uint:
		return longLiteral(strconv.FormatUint(uint64(v), 10), v4), nil
	case uint32:
		return longLiteral(strconv.FormatUint(uint64(v), 10), v4), nil
	case uint64:
		return longLiteral(strconv.FormatUint(v, 10), v4), nil
	case float64:
		return floatLiteral(v, 64, "d", v4), nil
	case float32:
		return floatLiteral(float64(v), 32, "f", v4), nil
	case decimal.Decimal:
		return withSuffix(v.String(), "M", v4), nil
	case time.Time:
		if v4 {
			return v.Format(dateTimeLayout), nil
		}
		return "datetime'" + v.Format(legacyDateTimeLayout) + "'", nil
	case edm.DateTimeOffset:
		if v4 {
			return v.Format(dateTimeLayout), nil
		}
		return "datetimeoffset'" + v.Format(dateTimeLayout) + "'", nil
	case edm.Date:
		if v4 {
			return v.String(), nil
		}
		return "datetime'" + v.String() + "T00:00:00'", nil
	case time.Duration:
		if v4 {
			return "duration'" + FormatDuration(v) + "'", nil
		}
		return "time'" + FormatDuration(v) + "'", nil
	case uuid.UUID:
		if v4 {
			return v.String(), nil
		}
		return "guid'" + v.String() + "'", nil
	case []byte:
		if v4 {
			return "binary'" + base64.URLEncoding.EncodeToString(v) + "'", nil
		}
		return "X'" + strings.ToUpper(hex.EncodeToString(v)) + "'", nil
	case edm.TypeName:
		return quote(string(v)), nil
	case edm.GeographyPoint:
		return formatGeographyPoint(v), nil
	}
	return c.formatKind(reflect.ValueOf(value), v4)
}

// formatKind handles named types whose underlying type is a scalar.
func (c *Context) formatKind(rv reflect.Value, v4 bool) (string, error) {
	switch rv.Kind() {
	case reflect.Bool:
		return strconv.FormatBool(rv.Bool()), nil
	case reflect.String:
		return quote(rv.String()), nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32:
		return strconv.FormatInt(rv.Int(), 10), nil
	case reflect.Int64:
		return longLiteral(strconv.FormatInt(rv.Int(), 10), v4), nil
	case reflect.Uint8, reflect.Uint16:
		return strconv.FormatUint(rv.Uint(), 10), nil
	case reflect.Uint, reflect.Uint32, reflect.Uint64:
		return longLiteral(strconv.FormatUint(rv.Uint(), 10), v4), nil
	case reflect.Float32:
		return floatLiteral(rv.Float(), 32, "f", v4), nil
	case reflect.Float64:
		return floatLiteral(rv.Float(), 64, "d", v4), nil
	case reflect.Slice, reflect.Array:
		return "", unsupportedLiteral("collection value %s is only valid as the caller of Contains", rv.Type())
	}
	return "", unsupportedLiteral("type %s has no URI literal form", rv.Type())
}

func formatEnum(typeName, member string, prefixed bool) string {
	if prefixed && typeName != "" {
		return typeName + quote(member)
	}
	return quote(member)
}

func quote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

func longLiteral(digits string, v4 bool) string {
	return withSuffix(digits, "L", v4)
}

// withSuffix appends the type suffix that literals carry before V4.
func withSuffix(s, suffix string, v4 bool) string {
	if v4 {
		return s
	}
	return s + suffix
}

// floatLiteral keeps a decimal point on integral values. Exponent notation is
// used only outside [1E-05, 1E+15) for float64 and [1E-05, 1E+07) for
// float32. INF, -INF and NaN never carry a suffix.
func floatLiteral(f float64, bitSize int, suffix string, v4 bool) string {
	switch {
	case math.IsInf(f, 1):
		return "INF"
	case math.IsInf(f, -1):
		return "-INF"
	case math.IsNaN(f):
		return "NaN"
	}
	maxExp := 15
	if bitSize == 32 {
		maxExp = 7
	}
	format := byte('f')
	if exp := floatExponent(f, bitSize); exp < -5 || exp >= maxExp {
		format = 'E'
	}
	s := strconv.FormatFloat(f, format, -1, bitSize)
	if !strings.ContainsAny(s, ".E") {
		s += ".0"
	}
	return withSuffix(s, suffix, v4)
}

// floatExponent returns the decimal exponent of the shortest representation
// of f. Zero has exponent 0.
func floatExponent(f float64, bitSize int) int {
	if f == 0 {
		return 0
	}
	s := strconv.FormatFloat(f, 'e', -1, bitSize)
	exp, err := strconv.Atoi(s[strings.IndexByte(s, 'e')+1:])
	if err != nil {
		return 0
	}
	return exp
}

// FormatDuration renders d as an ISO 8601 duration such as PT1H2M3S.
func FormatDuration(d time.Duration) string {
	var b strings.Builder
	if d < 0 {
		b.WriteByte('-')
		d = -d
	}
	b.WriteByte('P')

	day := 24 * time.Hour
	days := d / day
	d -= days * day
	if days > 0 {
		b.WriteString(strconv.FormatInt(int64(days), 10))
		b.WriteByte('D')
	}
	if d == 0 {
		if days == 0 {
			b.WriteString("T0S")
		}
		return b.String()
	}

	b.WriteByte('T')
	hours := d / time.Hour
	d -= hours * time.Hour
	minutes := d / time.Minute
	d -= minutes * time.Minute
	if hours > 0 {
		b.WriteString(strconv.FormatInt(int64(hours), 10))
		b.WriteByte('H')
	}
	if minutes > 0 {
		b.WriteString(strconv.FormatInt(int64(minutes), 10))
		b.WriteByte('M')
	}
	if d > 0 {
		b.WriteString(strconv.FormatFloat(d.Seconds(), 'f', -1, 64))
		b.WriteByte('S')
	}
	return b.String()
}

func formatGeographyPoint(p edm.GeographyPoint) string {
	srid := p.SRID
	if srid == 0 {
		srid = edm.SRIDWGS84
	}
	return fmt.Sprintf("geography'SRID=%d;POINT(%s %s)'", srid,
		strconv.FormatFloat(p.Longitude, 'f', -1, 64),
		strconv.FormatFloat(p.Latitude, 'f', -1, 64))
}

// EscapeDataString percent-encodes every byte outside the unreserved set
// A-Z a-z 0-9 - _ . ~ for embedding a literal as a raw query string segment.
func EscapeDataString(s string) string {
	const upperhex = "0123456789ABCDEF"
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		ch := s[i]
		if isUnreserved(ch) {
			b.WriteByte(ch)
			continue
		}
		b.WriteByte('%')
		b.WriteByte(upperhex[ch>>4])
		b.WriteByte(upperhex[ch&15])
	}
	return b.String()
}

func isUnreserved(ch byte) bool {
	switch {
	case 'a' <= ch && ch <= 'z', 'A' <= ch && ch <= 'Z', '0' <= ch && ch <= '9':
		return true
	}
	return ch == '-' || ch == '_' || ch == '.' || ch == '~'
}
