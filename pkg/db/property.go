package db

import (
	"database/sql/driver"
	"fmt"
)

// PropertyValue is a tagged union of {int64, double, string}, matching the
// query catalog's assumption of three typed columns plus a tag rather than
// one stringly-typed column.
type PropertyValue struct {
	Type        PropertyType
	IntValue    int64
	DoubleValue float64
	StringValue string
}

func IntValue(v int64) PropertyValue {
	return PropertyValue{Type: PropertyTypeInt, IntValue: v}
}

func DoubleValue(v float64) PropertyValue {
	return PropertyValue{Type: PropertyTypeDouble, DoubleValue: v}
}

func StringValue(v string) PropertyValue {
	return PropertyValue{Type: PropertyTypeString, StringValue: v}
}

func (v PropertyValue) Equal(other PropertyValue) bool {
	if v.Type != other.Type {
		return false
	}
	switch v.Type {
	case PropertyTypeInt:
		return v.IntValue == other.IntValue
	case PropertyTypeDouble:
		return v.DoubleValue == other.DoubleValue
	case PropertyTypeString:
		return v.StringValue == other.StringValue
	default:
		return true
	}
}

func (v PropertyValue) String() string {
	switch v.Type {
	case PropertyTypeInt:
		return fmt.Sprintf("%d", v.IntValue)
	case PropertyTypeDouble:
		return fmt.Sprintf("%v", v.DoubleValue)
	case PropertyTypeString:
		return v.StringValue
	default:
		return "<unknown property value>"
	}
}

// Value implements driver.Valuer for the case a column genuinely stores the
// tagged value as a single opaque text cell; the typed three-column layout
// of the properties tables is the norm elsewhere.
func (v PropertyValue) Value() (driver.Value, error) {
	return v.String(), nil
}

var _ driver.Valuer = PropertyValue{}
