package serial

import (
	"bytes"
	"math"
	"sort"
	"testing"
	"time"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/stretchr/testify/require"
)

type profile struct {
	Name  string
	Age   int
	Tags  []string
	Attrs map[string]interface{}
}

func TestMsgpackRoundTrip(t *testing.T) {
	s := Msgpack[profile]()

	for i := 0; i < 50; i++ {
		p := profile{
			Name:  gofakeit.Name(),
			Age:   gofakeit.Number(0, 120),
			Tags:  []string{gofakeit.Word(), gofakeit.Word()},
			Attrs: map[string]interface{}{"city": gofakeit.City(), "zip": gofakeit.Zip()},
		}

		data, err := s.Write(p)
		require.NoError(t, err)

		decoded, err := s.Read(data)
		require.NoError(t, err)
		require.Equal(t, p, decoded)
	}
}

func TestMsgpackDeterministic(t *testing.T) {
	s := Msgpack[map[string]int]()

	m := make(map[string]int)
	for i := 0; i < 100; i++ {
		m[gofakeit.UUID()] = i
	}

	first, err := s.Write(m)
	require.NoError(t, err)

	for i := 0; i < 10; i++ {
		data, err := s.Write(m)
		require.NoError(t, err)
		require.Equal(t, first, data)
	}
}

func TestInt64PreservesOrder(t *testing.T) {
	values := []int64{math.MinInt64, -1000, -1, 0, 1, 2, 255, 256, 1 << 40, math.MaxInt64}
	for i := 0; i < 100; i++ {
		values = append(values, gofakeit.Int64())
	}

	s := Int64()
	encoded := make([][]byte, len(values))
	for i, v := range values {
		data, err := s.Write(v)
		require.NoError(t, err)
		encoded[i] = data

		decoded, err := s.Read(data)
		require.NoError(t, err)
		require.Equal(t, v, decoded)
	}

	sort.Slice(values, func(i, j int) bool { return values[i] < values[j] })
	sort.Slice(encoded, func(i, j int) bool { return bytes.Compare(encoded[i], encoded[j]) < 0 })

	for i, v := range values {
		decoded, err := s.Read(encoded[i])
		require.NoError(t, err)
		require.Equal(t, v, decoded)
	}
}

func TestFloatAndUintOrder(t *testing.T) {
	f := Float64()
	a, err := f.Write(-1.5)
	require.NoError(t, err)
	b, err := f.Write(0.25)
	require.NoError(t, err)
	require.Negative(t, bytes.Compare(a, b))

	u := Uint64()
	c, err := u.Write(9)
	require.NoError(t, err)
	d, err := u.Write(10)
	require.NoError(t, err)
	require.Negative(t, bytes.Compare(c, d))

	v, err := u.Read(d)
	require.NoError(t, err)
	require.Equal(t, uint64(10), v)
}

func TestTimeRoundTrip(t *testing.T) {
	now := time.Now()

	s := Time()
	data, err := s.Write(now)
	require.NoError(t, err)

	decoded, err := s.Read(data)
	require.NoError(t, err)
	require.True(t, now.Equal(decoded))
}

func TestTrailingBytes(t *testing.T) {
	data, err := Ordered(nil, int64(1), "extra")
	require.NoError(t, err)

	_, err = Int64().Read(data)
	require.ErrorIs(t, err, ErrTrailingBytes)
}

func TestDefault(t *testing.T) {
	require.IsType(t, stringSerializer{}, Default[string]())
	require.IsType(t, int64Serializer{}, Default[int64]())
	require.IsType(t, unitSerializer{}, Default[struct{}]())
	require.IsType(t, msgpackSerializer[profile]{}, Default[profile]())

	ints := Default[int]()
	data, err := ints.Write(-42)
	require.NoError(t, err)
	v, err := ints.Read(data)
	require.NoError(t, err)
	require.Equal(t, -42, v)
}

// requireOrdered checks that the default encoding of ascending values is
// bytewise ascending and round-trips.
func requireOrdered[T comparable](t *testing.T, values ...T) {
	t.Helper()

	s := Default[T]()
	var prev []byte
	for _, v := range values {
		data, err := s.Write(v)
		require.NoError(t, err)
		if prev != nil {
			require.Negative(t, bytes.Compare(prev, data), "%v", v)
		}
		prev = data

		decoded, err := s.Read(data)
		require.NoError(t, err)
		require.Equal(t, v, decoded)
	}
}

func TestDefaultNumericKeysPreserveOrder(t *testing.T) {
	requireOrdered[int8](t, math.MinInt8, -1, 0, 1, 100, math.MaxInt8)
	requireOrdered[int16](t, math.MinInt16, -200, -1, 0, 1, 200, math.MaxInt16)
	requireOrdered[int32](t, math.MinInt32, -200, -1, 0, 1, 200, math.MaxInt32)
	requireOrdered[uint](t, 0, 1, 255, 256, math.MaxUint32)
	requireOrdered[uint8](t, 0, 1, 127, 128, math.MaxUint8)
	requireOrdered[uint16](t, 0, 1, 255, 256, math.MaxUint16)
	requireOrdered[uint32](t, 0, 1, 65535, 65536, math.MaxUint32)
	requireOrdered[float32](t, float32(math.Inf(-1)), -1e10, -1.5, 0, 0.25, 1e10, float32(math.Inf(1)))
}

func TestSignedOutOfRange(t *testing.T) {
	data, err := Int64().Write(math.MaxInt8 + 1)
	require.NoError(t, err)

	_, err = Default[int8]().Read(data)
	require.ErrorIs(t, err, ErrOutOfRange)

	data, err = Uint64().Write(math.MaxUint16 + 1)
	require.NoError(t, err)

	_, err = Default[uint16]().Read(data)
	require.ErrorIs(t, err, ErrOutOfRange)
}

type userKey struct {
	ID   int64
	Name string
}

func TestProjected(t *testing.T) {
	full := Func(
		func(k userKey) ([]byte, error) { return Ordered(nil, k.ID, k.Name) },
		func(data []byte) (userKey, error) {
			var k userKey
			_, err := ParseOrdered(data, &k.ID, &k.Name)
			return k, err
		},
	)
	s := Projected(full, func(k userKey) ([]byte, error) { return Ordered(nil, k.ID) })

	p, ok := s.(Projector[userKey])
	require.True(t, ok)

	a, err := p.Project(userKey{ID: 1, Name: "a"})
	require.NoError(t, err)
	b, err := p.Project(userKey{ID: 1, Name: "b"})
	require.NoError(t, err)
	require.Equal(t, a, b)

	data, err := s.Write(userKey{ID: 7, Name: "seven"})
	require.NoError(t, err)
	k, err := s.Read(data)
	require.NoError(t, err)
	require.Equal(t, userKey{ID: 7, Name: "seven"}, k)
}
