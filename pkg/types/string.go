package types

import (
	"encoding/binary"
	"hash/fnv"
	"io"

	"heapstore/pkg/primitives"
)

// StringField is a string stored as a 4-byte big-endian length followed by
// StringMaxSize bytes of payload, zero padded.
type StringField struct {
	Value string
}

// NewStringField creates a StringField, truncating value to StringMaxSize
// bytes.
func NewStringField(value string) *StringField {
	if len(value) > StringMaxSize {
		value = value[:StringMaxSize]
	}
	return &StringField{Value: value}
}

// Serialize writes the length prefix, the string bytes and the padding.
func (s *StringField) Serialize(w io.Writer) error {
	length := min(len(s.Value), StringMaxSize)

	buf := make([]byte, 4+StringMaxSize)
	binary.BigEndian.PutUint32(buf[:4], uint32(length)) // #nosec G115
	copy(buf[4:], s.Value[:length])

	_, err := w.Write(buf)
	return err
}

func (s *StringField) Type() Type {
	return StringType
}

func (s *StringField) String() string {
	return s.Value
}

// Equals compares values only.
func (s *StringField) Equals(other Field) bool {
	otherStringField, ok := other.(*StringField)
	if !ok {
		return false
	}
	return s.Value == otherStringField.Value
}

func (s *StringField) Hash() (primitives.HashCode, error) {
	h := fnv.New32a()
	_, _ = h.Write([]byte(s.Value))
	return primitives.HashCode(h.Sum32()), nil
}
