// Package edm defines the OData primitive values that have no direct Go
// equivalent, plus the protocol version they are formatted for.
package edm

import (
	"fmt"
	"time"
)

// Version is an OData protocol version.
type Version int

const (
	V1 Version = 1
	V2 Version = 2
	V3 Version = 3
	V4 Version = 4
	// V401 is OData 4.01.
	V401 Version = 5
)

func (v Version) String() string {
	switch v {
	case V1, V2, V3, V4:
		return fmt.Sprintf("%d.0", int(v))
	case V401:
		return "4.01"
	}
	return fmt.Sprintf("Version(%d)", int(v))
}

// AtLeastV4 reports whether v uses the V4 URI conventions.
func (v Version) AtLeastV4() bool {
	return v >= V4
}

// ParseVersion accepts "1".."4", "1.0".."4.0" and "4.01".
func ParseVersion(s string) (Version, error) {
	switch s {
	case "1", "1.0":
		return V1, nil
	case "2", "2.0":
		return V2, nil
	case "3", "3.0":
		return V3, nil
	case "4", "4.0", "":
		return V4, nil
	case "4.01":
		return V401, nil
	}
	return 0, fmt.Errorf("unknown OData protocol version %q", s)
}

// DateTimeOffset is a point in time whose offset is part of the value.
// Before V4 it renders as datetimeoffset'...' rather than datetime'...'.
type DateTimeOffset struct {
	time.Time
}

// Date is a calendar date without time of day.
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

// DateOf returns the calendar date of t in t's location.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return Date{Year: y, Month: m, Day: d}
}

func (d Date) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, int(d.Month), d.Day)
}

// EnumValue is an enum member that is not backed by a registered Go type.
type EnumValue struct {
	// TypeName is the namespace-qualified enum type name.
	TypeName string
	// Member is the member name, or a comma separated list for flags.
	Member string
}

// TypeName is a namespace-qualified type name used by isof and cast.
type TypeName string

// SRIDWGS84 is the default spatial reference system for geography values.
const SRIDWGS84 = 4326

// GeographyPoint is a geography point in longitude/latitude order.
type GeographyPoint struct {
	Longitude float64
	Latitude  float64
	// SRID defaults to SRIDWGS84 when zero.
	SRID int
}
