package tuple

import (
	"fmt"
	"strings"

	"heapstore/pkg/types"
)

// TupleDescription describes the schema of a tuple: the type and optional
// name of each field, in order.
type TupleDescription struct {
	// Types contains the data type of each field in order
	Types []types.Type
	// FieldNames contains the name of each field (optional, may be nil)
	FieldNames []string
}

// NewTupleDesc creates a new TupleDescription given field types and optional field names.
//
// Parameters:
//   - fieldTypes: slice of field types (must contain at least one element)
//   - fieldNames: optional slice of field names (must match fieldTypes length if provided)
//
// Returns:
//   - *TupleDescription: newly created tuple descriptor
//   - error: if fieldTypes is empty, contains an unknown type, or fieldNames length doesn't match
func NewTupleDesc(fieldTypes []types.Type, fieldNames []string) (*TupleDescription, error) {
	if len(fieldTypes) < 1 {
		return nil, fmt.Errorf("must provide at least one field type")
	}

	for i, ft := range fieldTypes {
		if ft.Size() == 0 {
			return nil, fmt.Errorf("field %d has unknown type %v", i, ft)
		}
	}

	typesCopy := make([]types.Type, len(fieldTypes))
	copy(typesCopy, fieldTypes)

	var namesCopy []string
	if fieldNames != nil {
		if len(fieldNames) != len(fieldTypes) {
			return nil, fmt.Errorf("field names length (%d) must match field types length (%d)",
				len(fieldNames), len(fieldTypes))
		}
		namesCopy = make([]string, len(fieldNames))
		copy(namesCopy, fieldNames)
	}

	return &TupleDescription{
		Types:      typesCopy,
		FieldNames: namesCopy,
	}, nil
}

// ParseTupleDesc builds a schema from a comma separated list of
// "name:type" or bare "type" entries, e.g. "id:int,name:string".
func ParseTupleDesc(schema string) (*TupleDescription, error) {
	parts := strings.Split(schema, ",")
	fieldTypes := make([]types.Type, 0, len(parts))
	names := make([]string, 0, len(parts))
	named := false

	for _, part := range parts {
		name, typ, found := strings.Cut(strings.TrimSpace(part), ":")
		if !found {
			name, typ = "", name
		} else {
			named = true
		}

		t, err := types.ParseType(typ)
		if err != nil {
			return nil, err
		}
		fieldTypes = append(fieldTypes, t)
		names = append(names, strings.TrimSpace(name))
	}

	if !named {
		names = nil
	}
	return NewTupleDesc(fieldTypes, names)
}

// NumFields returns the number of fields in this tuple descriptor.
func (td *TupleDescription) NumFields() int {
	return len(td.Types)
}

// GetFieldName returns the name of the ith field, or "" when the schema has
// no names.
func (td *TupleDescription) GetFieldName(i int) (string, error) {
	if i < 0 || i >= len(td.Types) {
		return "", fmt.Errorf("field index %d out of bounds [0, %d)", i, len(td.Types))
	}

	if td.FieldNames == nil {
		return "", nil
	}

	return td.FieldNames[i], nil
}

// TypeAtIndex returns the type of the ith field.
func (td *TupleDescription) TypeAtIndex(i int) (types.Type, error) {
	if i < 0 || i >= len(td.Types) {
		return 0, fmt.Errorf("field index %d out of bounds [0, %d)", i, len(td.Types))
	}
	return td.Types[i], nil
}

// GetSize returns the size in bytes of tuples corresponding to this TupleDescription.
// This is the sum of all field type sizes.
func (td *TupleDescription) GetSize() uint32 {
	var size uint32
	for _, fieldType := range td.Types {
		size += fieldType.Size()
	}
	return size
}

// Equals checks if two TupleDescriptions have the same field types in the
// same order. Field names are not compared.
func (td *TupleDescription) Equals(other *TupleDescription) bool {
	if other == nil {
		return false
	}

	if len(td.Types) != len(other.Types) {
		return false
	}

	for i, fieldType := range td.Types {
		if fieldType != other.Types[i] {
			return false
		}
	}
	return true
}

// String returns "Type1(fieldName1),Type2(fieldName2),...". Unnamed fields
// print as "null".
func (td *TupleDescription) String() string {
	parts := make([]string, 0, len(td.Types))

	for i, fieldType := range td.Types {
		fieldName := "null"
		if td.FieldNames != nil && i < len(td.FieldNames) {
			fieldName = td.FieldNames[i]
		}
		parts = append(parts, fmt.Sprintf("%s(%s)", fieldType.String(), fieldName))
	}

	return strings.Join(parts, ",")
}
