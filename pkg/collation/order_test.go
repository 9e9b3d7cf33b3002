package collation

import (
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOrder_Permutation(t *testing.T) {
	tests := []struct {
		order Order
		want  [3]int
	}{
		{SPO, [3]int{Subject, Predicate, Object}},
		{SOP, [3]int{Subject, Object, Predicate}},
		{PSO, [3]int{Predicate, Subject, Object}},
		{POS, [3]int{Predicate, Object, Subject}},
		{OSP, [3]int{Object, Subject, Predicate}},
		{OPS, [3]int{Object, Predicate, Subject}},
	}

	for _, tt := range tests {
		t.Run(tt.order.String(), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.order.Permutation())
			for slot := 0; slot < 3; slot++ {
				assert.Equal(t, tt.want[slot], tt.order.Slot(slot))
				assert.Equal(t, slot, tt.order.Inverse(tt.order.Slot(slot)))
			}
		})
	}
}

func TestParse(t *testing.T) {
	for _, o := range All() {
		got, err := Parse(o.String())
		require.NoError(t, err)
		assert.Equal(t, o, got)
	}

	got, err := Parse(" pos ")
	require.NoError(t, err)
	assert.Equal(t, POS, got)

	_, err = Parse("SPOG")
	assert.ErrorIs(t, err, ErrUnknownOrder)
}

func TestCompare(t *testing.T) {
	keys := [][3]int32{
		{2, 1, 1},
		{1, 2, 3},
		{1, 1, 9},
		{1, 2, 1},
	}

	sorted := slices.Clone(keys)
	slices.SortFunc(sorted, func(a, b [3]int32) int { return Compare(SPO, a, b) })
	assert.Equal(t, [][3]int32{{1, 1, 9}, {1, 2, 1}, {1, 2, 3}, {2, 1, 1}}, sorted)

	slices.SortFunc(sorted, func(a, b [3]int32) int { return Compare(OPS, a, b) })
	assert.Equal(t, [][3]int32{{2, 1, 1}, {1, 2, 1}, {1, 2, 3}, {1, 1, 9}}, sorted)

	assert.Zero(t, Compare(PSO, [3]string{"a", "b", "c"}, [3]string{"a", "b", "c"}))
}

func TestOrder_Valid(t *testing.T) {
	assert.True(t, OPS.Valid())
	assert.False(t, OrderCount.Valid())
	assert.Equal(t, "unknown", OrderCount.String())
}
