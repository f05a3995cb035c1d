package types

import (
	"fmt"
	"strings"
)

// Type is the on-disk type of a field. The set is closed: every Type has a
// fixed serialized width.
type Type int

const (
	IntType Type = iota
	StringType
)

// StringMaxSize is the number of payload bytes reserved for every string
// field. Longer values are truncated.
const StringMaxSize = 128

// Size returns the serialized width of the type in bytes, or 0 for an
// unknown type.
func (t Type) Size() uint32 {
	switch t {
	case IntType:
		return 4
	case StringType:
		return 4 + StringMaxSize
	default:
		return 0
	}
}

// String returns a string representation of the type
func (t Type) String() string {
	switch t {
	case IntType:
		return "INT_TYPE"
	case StringType:
		return "STRING_TYPE"
	default:
		return "UNKNOWN_TYPE"
	}
}

// ParseType maps a schema keyword ("int", "string", or the String form) to a
// Type.
func ParseType(name string) (Type, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "int", "int_type":
		return IntType, nil
	case "string", "string_type":
		return StringType, nil
	default:
		return 0, fmt.Errorf("unknown field type %q", name)
	}
}
