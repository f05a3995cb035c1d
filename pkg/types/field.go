package types

import (
	"io"

	"heapstore/pkg/primitives"
)

// Field is one typed value inside a tuple.
type Field interface {
	// Serialize writes exactly Type().Size() bytes.
	Serialize(w io.Writer) error

	Type() Type

	String() string

	Equals(other Field) bool

	Hash() (primitives.HashCode, error)
}
