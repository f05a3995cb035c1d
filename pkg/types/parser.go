package types

import (
	"encoding/binary"
	"fmt"
	"io"
	"strconv"
)

// ParseField reads one serialized field of the given type from r. It always
// consumes exactly fieldType.Size() bytes on success.
func ParseField(r io.Reader, fieldType Type) (Field, error) {
	switch fieldType {
	case IntType:
		return parseIntField(r)
	case StringType:
		return parseStringField(r)
	default:
		return nil, fmt.Errorf("unsupported field type: %v", fieldType)
	}
}

func parseIntField(r io.Reader) (*IntField, error) {
	bytes := make([]byte, 4)
	if _, err := io.ReadFull(r, bytes); err != nil {
		return nil, err
	}
	return NewIntField(int32(binary.BigEndian.Uint32(bytes))), nil // #nosec G115
}

// parseStringField rejects a length prefix larger than StringMaxSize; such
// bytes cannot have been produced by Serialize.
func parseStringField(r io.Reader) (*StringField, error) {
	buf := make([]byte, 4+StringMaxSize)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, err
	}

	length := binary.BigEndian.Uint32(buf[:4])
	if length > StringMaxSize {
		return nil, fmt.Errorf("string length %d exceeds maximum %d", length, StringMaxSize)
	}

	return &StringField{Value: string(buf[4 : 4+length])}, nil
}

// FieldFromString builds a field of type t from its textual form.
func FieldFromString(t Type, text string) (Field, error) {
	switch t {
	case IntType:
		v, err := strconv.ParseInt(text, 10, 32)
		if err != nil {
			return nil, fmt.Errorf("invalid int %q: %w", text, err)
		}
		return NewIntField(int32(v)), nil
	case StringType:
		return NewStringField(text), nil
	default:
		return nil, fmt.Errorf("unsupported field type: %v", t)
	}
}
