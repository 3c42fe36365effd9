package ordkv

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestSet(t *testing.T) {
	clock := newFakeClock()
	s, err := OpenMemorySet[string](MemoryConfig{SweepInterval: -1}, WithClock(clock))
	require.NoError(t, err)
	defer s.Close()

	for _, k := range []string{"pear", "apple", "fig", "kiwi"} {
		added, err := s.Add(k)
		require.NoError(t, err)
		require.True(t, added)
	}

	added, err := s.Add("fig")
	require.NoError(t, err)
	require.False(t, added)

	keys, err := s.Stream().Materialize()
	require.NoError(t, err)
	require.Equal(t, []string{"apple", "fig", "kiwi", "pear"}, keys)

	keys, err = s.From("g").Materialize()
	require.NoError(t, err)
	require.Equal(t, []string{"kiwi", "pear"}, keys)

	head, err := s.Head()
	require.NoError(t, err)
	require.Equal(t, Some("apple"), head)

	last, err := s.Last()
	require.NoError(t, err)
	require.Equal(t, Some("pear"), last)

	_, err = s.AddWithExpiry("plum", ExpireAfter(time.Second))
	require.NoError(t, err)
	ok, err := s.Contains("plum")
	require.NoError(t, err)
	require.True(t, ok)

	clock.Advance(time.Second)
	ok, err = s.Contains("plum")
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, s.RemoveRange("apple", "fig"))
	n, err := s.Size()
	require.NoError(t, err)
	require.Equal(t, 2, n)

	ok, err = s.MightContain("kiwi")
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, s.Clear())
	head, err = s.Head()
	require.NoError(t, err)
	require.True(t, head.IsNone())
}

func TestPersistentSet(t *testing.T) {
	s, err := OpenPersistentSet[int64](PersistentConfig{Dir: t.TempDir(), Engine: EngineBbolt})
	require.NoError(t, err)
	defer s.Close()

	for _, k := range []int64{5, -3, 12, 0} {
		_, err := s.Add(k)
		require.NoError(t, err)
	}

	keys, err := s.Stream().Materialize()
	require.NoError(t, err)
	require.Equal(t, []int64{-3, 0, 5, 12}, keys)

	require.NoError(t, s.Expire(12, ExpireAfter(time.Hour)))
	exp, err := s.ExpiresAt(12)
	require.NoError(t, err)
	require.True(t, exp.IsSome())

	require.NoError(t, s.Remove(-3))
	head, err := s.Head()
	require.NoError(t, err)
	require.Equal(t, Some(int64(0)), head)
}

func TestSetAddAfterClose(t *testing.T) {
	s, err := OpenMemorySet[string](MemoryConfig{SweepInterval: -1})
	require.NoError(t, err)
	require.NoError(t, s.Close())

	added, err := s.Add("fig")
	require.ErrorIs(t, err, ErrClosed)
	require.False(t, added)

	added, err = s.AddWithExpiry("fig", ExpireAfter(time.Second))
	require.ErrorIs(t, err, ErrClosed)
	require.False(t, added)
}
