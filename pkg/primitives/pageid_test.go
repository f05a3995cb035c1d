package primitives

import (
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPageIDOrdering(t *testing.T) {
	tests := []struct {
		name string
		a, b PageID
		want int
	}{
		{"same", NewPageID(1, 4), NewPageID(1, 4), 0},
		{"page number breaks tie", NewPageID(1, 3), NewPageID(1, 4), -1},
		{"table dominates", NewPageID(2, 0), NewPageID(1, 9), 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.a.Compare(tt.b))
			assert.Equal(t, -tt.want, tt.b.Compare(tt.a))
			assert.Equal(t, tt.want < 0, tt.a.Less(tt.b))
		})
	}
}

func TestPageIDSortIsDeterministic(t *testing.T) {
	ids := []PageID{NewPageID(2, 1), NewPageID(1, 2), NewPageID(1, 0), NewPageID(2, 0)}
	slices.SortFunc(ids, PageID.Compare)

	assert.Equal(t, []PageID{
		NewPageID(1, 0), NewPageID(1, 2), NewPageID(2, 0), NewPageID(2, 1),
	}, ids)
}

func TestPageIDAsMapKey(t *testing.T) {
	m := map[PageID]int{NewPageID(5, 1): 1}
	m[NewPageID(5, 1)]++

	assert.Len(t, m, 1)
	assert.Equal(t, 2, m[PageID{Table: 5, PageNo: 1}])
	assert.Equal(t, NewPageID(5, 1).HashCode(), PageID{Table: 5, PageNo: 1}.HashCode())
	assert.Equal(t, "5:1", NewPageID(5, 1).String())
	assert.Len(t, NewPageID(5, 1).Serialize(), 16)
}

func TestFilepathHash(t *testing.T) {
	a := Filepath("/data/users.dat")
	b := Filepath("/data/orders.dat")

	assert.Equal(t, a.Hash(), Filepath("/data/users.dat").Hash())
	assert.NotEqual(t, a.Hash(), b.Hash())
	assert.True(t, a.Hash().IsValid())
	assert.Equal(t, "users.dat", a.Base())
	assert.Equal(t, Filepath("/data/x/y.dat"), Filepath("/data").Join("x", "y.dat"))
	assert.False(t, Filepath("/definitely/not/here").Exists())
}
