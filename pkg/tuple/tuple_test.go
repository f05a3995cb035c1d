package tuple

import (
	"testing"

	"heapstore/pkg/primitives"
	"heapstore/pkg/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustCreateTupleDesc(t *testing.T, fieldTypes []types.Type, names []string) *TupleDescription {
	t.Helper()
	td, err := NewTupleDesc(fieldTypes, names)
	require.NoError(t, err)
	return td
}

func TestNewTupleDesc(t *testing.T) {
	tests := []struct {
		name    string
		types   []types.Type
		names   []string
		wantErr bool
	}{
		{"ints", []types.Type{types.IntType, types.IntType}, nil, false},
		{"named", []types.Type{types.IntType, types.StringType}, []string{"id", "name"}, false},
		{"empty", nil, nil, true},
		{"name count mismatch", []types.Type{types.IntType}, []string{"a", "b"}, true},
		{"unknown type", []types.Type{types.Type(9)}, nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			td, err := NewTupleDesc(tt.types, tt.names)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, len(tt.types), td.NumFields())
		})
	}
}

func TestTupleDescSizeAndString(t *testing.T) {
	td := mustCreateTupleDesc(t, []types.Type{types.IntType, types.StringType}, []string{"id", "name"})

	assert.Equal(t, uint32(136), td.GetSize())
	assert.Equal(t, "INT_TYPE(id),STRING_TYPE(name)", td.String())

	unnamed := mustCreateTupleDesc(t, []types.Type{types.IntType, types.StringType}, nil)
	assert.True(t, td.Equals(unnamed))
	assert.Equal(t, "INT_TYPE(null),STRING_TYPE(null)", unnamed.String())

	name, err := unnamed.GetFieldName(1)
	require.NoError(t, err)
	assert.Empty(t, name)

	_, err = td.TypeAtIndex(5)
	assert.Error(t, err)
}

func TestParseTupleDesc(t *testing.T) {
	td, err := ParseTupleDesc("id:int, name:string")
	require.NoError(t, err)
	assert.Equal(t, []types.Type{types.IntType, types.StringType}, td.Types)
	assert.Equal(t, []string{"id", "name"}, td.FieldNames)

	td, err = ParseTupleDesc("int,int,int")
	require.NoError(t, err)
	assert.Equal(t, 3, td.NumFields())
	assert.Nil(t, td.FieldNames)

	_, err = ParseTupleDesc("id:float")
	assert.Error(t, err)
}

func TestTupleSetField(t *testing.T) {
	td := mustCreateTupleDesc(t, []types.Type{types.IntType, types.StringType}, []string{"id", "name"})
	tup := NewTuple(td)

	assert.Nil(t, tup.RecordID)
	assert.False(t, tup.IsComplete())

	require.NoError(t, tup.SetField(0, types.NewIntField(42)))
	require.NoError(t, tup.SetField(1, types.NewStringField("test")))
	assert.True(t, tup.IsComplete())

	assert.Error(t, tup.SetField(-1, types.NewIntField(1)))
	assert.Error(t, tup.SetField(2, types.NewIntField(1)))
	assert.Error(t, tup.SetField(0, types.NewStringField("x")))

	f, err := tup.GetField(1)
	require.NoError(t, err)
	assert.Equal(t, "test", f.String())
	assert.Equal(t, "42\ttest\n", tup.String())
}

func TestFromFieldsAndEquality(t *testing.T) {
	td := mustCreateTupleDesc(t, []types.Type{types.IntType, types.IntType}, nil)

	a, err := FromFields(td, types.NewIntField(1), types.NewIntField(2))
	require.NoError(t, err)
	b, err := FromFields(td, types.NewIntField(1), types.NewIntField(2))
	require.NoError(t, err)
	c, err := FromFields(td, types.NewIntField(1), types.NewIntField(3))
	require.NoError(t, err)

	b.RecordID = NewRecordID(primitives.NewPageID(1, 0), 4)

	assert.True(t, a.FieldsEqual(b))
	assert.False(t, a.FieldsEqual(c))
	assert.False(t, a.FieldsEqual(nil))

	_, err = FromFields(td, types.NewIntField(1))
	assert.Error(t, err)

	clone := b.Clone()
	assert.True(t, clone.FieldsEqual(b))
	assert.Nil(t, clone.RecordID)
}

func TestRecordID(t *testing.T) {
	a := NewRecordID(primitives.NewPageID(3, 1), 7)
	b := NewRecordID(primitives.NewPageID(3, 1), 7)

	assert.True(t, a.Equals(b))
	assert.False(t, a.Equals(NewRecordID(primitives.NewPageID(3, 2), 7)))
	assert.False(t, a.Equals(nil))
	assert.Equal(t, "RecordID(page=3:1, tuple=7)", a.String())
}
