package stream_test

import (
	"errors"
	"testing"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/ostafen/ordkv/stream"
	"github.com/stretchr/testify/require"
)

func rangeInts(from, to int) []int {
	items := make([]int, 0, to-from+1)
	for i := from; i <= to; i++ {
		items = append(items, i)
	}
	return items
}

// countingSource records how many elements were pulled and whether it was closed.
type countingSource struct {
	items  []int
	pulled int
	closed int
}

func (s *countingSource) Next() (int, bool, error) {
	if s.pulled >= len(s.items) {
		return 0, false, nil
	}
	s.pulled++
	return s.items[s.pulled-1], true, nil
}

func (s *countingSource) Close() error {
	s.closed++
	return nil
}

func TestLaziness(t *testing.T) {
	src := &countingSource{items: rangeInts(1, 10)}

	mapped, tested := 0, 0
	s := stream.FromSource[int](src).
		Map(func(v int) (int, error) {
			mapped++
			return v * 2, nil
		}).
		Filter(func(v int) bool {
			tested++
			return v%4 == 0
		})

	require.Zero(t, mapped)
	require.Zero(t, tested)
	require.Zero(t, src.pulled)

	items, err := s.Materialize()
	require.NoError(t, err)
	require.Equal(t, []int{4, 8, 12, 16, 20}, items)
	require.Equal(t, 10, mapped)
	require.Equal(t, 10, tested)
	require.Equal(t, 1, src.closed)
}

func TestCompositionMatchesEagerEvaluation(t *testing.T) {
	items := make([]int, 200)
	for i := range items {
		items[i] = gofakeit.Number(-1000, 1000)
	}

	f := func(v int) (int, error) { return v*3 + 1, nil }
	p := func(v int) bool { return v%2 == 0 }

	var expected []int
	for _, v := range items {
		r, _ := f(v)
		if p(r) {
			expected = append(expected, r)
		}
	}

	actual, err := stream.FromSlice(items).Map(f).Filter(p).Materialize()
	require.NoError(t, err)
	require.Equal(t, len(expected), len(actual))
	for i := range expected {
		require.Equal(t, expected[i], actual[i])
	}
}

func TestTakeWhileDropWhile(t *testing.T) {
	items := []int{1, 2, 3, 10, 4, 5}
	small := func(v int) bool { return v < 5 }

	taken, err := stream.FromSlice(items).TakeWhile(small).Materialize()
	require.NoError(t, err)
	require.Equal(t, []int{1, 2, 3}, taken)

	dropped, err := stream.FromSlice(items).DropWhile(small).Materialize()
	require.NoError(t, err)
	require.Equal(t, []int{10, 4, 5}, dropped)

	filtered, err := stream.FromSlice(items).Filter(small).Materialize()
	require.NoError(t, err)
	require.Equal(t, []int{1, 2, 3, 4}, filtered)
}

func TestTakeStopsPulling(t *testing.T) {
	src := &countingSource{items: rangeInts(1, 100)}

	items, err := stream.FromSource[int](src).Drop(5).Take(3).Materialize()
	require.NoError(t, err)
	require.Equal(t, []int{6, 7, 8}, items)
	require.Equal(t, 8, src.pulled)
	require.Equal(t, 1, src.closed)
}

func TestErrorShortCircuits(t *testing.T) {
	errBoom := errors.New("boom")
	src := &countingSource{items: rangeInts(1, 10)}

	visited := 0
	err := stream.FromSource[int](src).
		Map(func(v int) (int, error) {
			if v == 4 {
				return 0, errBoom
			}
			return v, nil
		}).
		ForEach(func(int) error {
			visited++
			return nil
		})

	require.ErrorIs(t, err, errBoom)
	require.Equal(t, 3, visited)
	require.Equal(t, 4, src.pulled)
	require.Equal(t, 1, src.closed)
}

func TestSourceErrorSurfaces(t *testing.T) {
	errRead := errors.New("read failed")
	n := 0
	src := stream.SourceFunc(func() (int, bool, error) {
		n++
		if n == 3 {
			return 0, false, errRead
		}
		return n, true, nil
	}, nil)

	items, err := stream.FromSource(src).Materialize()
	require.ErrorIs(t, err, errRead)
	require.Nil(t, items)
}

func TestSingleConsumption(t *testing.T) {
	s := stream.Of(1, 2, 3)
	mapped := s.Map(func(v int) (int, error) { return v + 1, nil })

	n, err := mapped.Count()
	require.NoError(t, err)
	require.Equal(t, 3, n)

	_, err = mapped.Materialize()
	require.ErrorIs(t, err, stream.ErrConsumed)

	_, err = s.Materialize()
	require.ErrorIs(t, err, stream.ErrConsumed)
}

func TestFirstAndFold(t *testing.T) {
	src := &countingSource{items: rangeInts(1, 10)}

	v, ok, err := stream.FromSource[int](src).DropWhile(func(v int) bool { return v < 7 }).First()
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, 7, v)
	require.Equal(t, 7, src.pulled)

	_, ok, err = stream.Of[int]().First()
	require.NoError(t, err)
	require.False(t, ok)

	sum, err := stream.Fold(stream.FromSlice(rangeInts(1, 100)), 0, func(acc, v int) (int, error) {
		return acc + v, nil
	})
	require.NoError(t, err)
	require.Equal(t, 5050, sum)
}

func TestMapTo(t *testing.T) {
	strs, err := stream.MapTo(stream.Of(1, 2, 3), func(v int) (string, error) {
		return string(rune('a' + v - 1)), nil
	}).Materialize()
	require.NoError(t, err)
	require.Equal(t, []string{"a", "b", "c"}, strs)
}

func TestForEachStop(t *testing.T) {
	seen := []int{}
	err := stream.FromSlice(rangeInts(1, 10)).ForEach(func(v int) error {
		seen = append(seen, v)
		if v == 3 {
			return stream.ErrStop
		}
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, []int{1, 2, 3}, seen)
}
