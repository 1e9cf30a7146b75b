package ring

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/derMihai/condalf/pkg/cderrors"
	"github.com/derMihai/condalf/pkg/record"
)

func TestNewRejectsNonPowerOfTwo(t *testing.T) {
	_, err := New(3)
	assert.ErrorIs(t, err, cderrors.Invalid)
}

func TestPutAndGetRoundTrip(t *testing.T) {
	r, err := New(4)
	require.NoError(t, err)

	n := r.Put([]record.Record{{Name: "a"}, {Name: "b"}})
	assert.Equal(t, 2, n)
	assert.Equal(t, 2, r.Fill())

	out := make([]record.Record, 2)
	got := r.Get(out)
	assert.Equal(t, 2, got)
	assert.Equal(t, "a", out[0].Name)
	assert.Equal(t, "b", out[1].Name)
	assert.Equal(t, 0, r.Fill())
}

func TestPutStopsAtCapacity(t *testing.T) {
	r, err := New(2)
	require.NoError(t, err)

	n := r.Put([]record.Record{{Name: "a"}, {Name: "b"}, {Name: "c"}})
	assert.Equal(t, 2, n)
	assert.Equal(t, 2, r.Fill())
}

func TestGetOneReturnsNoEntryWhenEmpty(t *testing.T) {
	r, err := New(2)
	require.NoError(t, err)

	_, err = r.GetOne()
	assert.ErrorIs(t, err, cderrors.NoEntry)
}

func TestPeekDoesNotConsume(t *testing.T) {
	r, err := New(2)
	require.NoError(t, err)
	r.PutOne(record.Record{Name: "a"})

	rec, it, err := r.Peek()
	require.NoError(t, err)
	assert.Equal(t, "a", rec.Name)
	assert.Equal(t, 1, r.Fill())

	_, _, err = r.Next(it)
	assert.ErrorIs(t, err, cderrors.NoEntry)
}

func TestNextWalksWithoutConsuming(t *testing.T) {
	r, err := New(4)
	require.NoError(t, err)
	r.Put([]record.Record{{Name: "a"}, {Name: "b"}, {Name: "c"}})

	rec, it, err := r.Peek()
	require.NoError(t, err)
	assert.Equal(t, "a", rec.Name)

	rec, it, err = r.Next(it)
	require.NoError(t, err)
	assert.Equal(t, "b", rec.Name)

	rec, _, err = r.Next(it)
	require.NoError(t, err)
	assert.Equal(t, "c", rec.Name)

	assert.Equal(t, 3, r.Fill())
}

func TestWrapAroundAfterConsumption(t *testing.T) {
	r, err := New(2)
	require.NoError(t, err)

	r.Put([]record.Record{{Name: "a"}, {Name: "b"}})
	r.GetOne()
	r.PutOne(record.Record{Name: "c"})

	assert.Equal(t, 2, r.Fill())
	rec, _ := r.GetOne()
	assert.Equal(t, "b", rec.Name)
	rec, _ = r.GetOne()
	assert.Equal(t, "c", rec.Name)
}
