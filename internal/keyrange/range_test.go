package keyrange

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRangeIsEmpty(t *testing.T) {
	r := Between([]byte{10}, []byte{9})
	require.True(t, r.IsEmpty(Bytewise))

	r = Range{Start: []byte{10}, End: []byte{10}}
	require.True(t, r.IsEmpty(Bytewise))

	r = Between([]byte{10}, []byte{10})
	require.False(t, r.IsEmpty(Bytewise))

	require.False(t, All().IsEmpty(Bytewise))
}

func TestRangeIntersect(t *testing.T) {
	r1 := Between([]byte{10}, []byte{100})
	r2 := Between([]byte{20}, []byte{90})
	require.Equal(t, r2, r1.Intersect(Bytewise, r2))
	require.Equal(t, r2, r2.Intersect(Bytewise, r1))

	r1 = Between([]byte{10}, []byte{60})
	r2 = Between([]byte{50}, []byte{100})
	require.Equal(t, Between([]byte{50}, []byte{60}), r1.Intersect(Bytewise, r2))
	require.Equal(t, Between([]byte{50}, []byte{60}), r2.Intersect(Bytewise, r1))

	open := Range{Start: []byte{50}}
	require.Equal(t, Range{Start: []byte{50}, End: []byte{60}, EndIncluded: true}, open.Intersect(Bytewise, Range{End: []byte{60}, EndIncluded: true}))
}

func TestRangeBounds(t *testing.T) {
	r := Range{Start: []byte{10}, End: []byte{20}, StartIncluded: false, EndIncluded: true}

	require.True(t, r.BeforeStart(Bytewise, []byte{9}))
	require.True(t, r.BeforeStart(Bytewise, []byte{10}))
	require.False(t, r.BeforeStart(Bytewise, []byte{11}))

	require.False(t, r.AfterEnd(Bytewise, []byte{20}))
	require.True(t, r.AfterEnd(Bytewise, []byte{21}))
}
