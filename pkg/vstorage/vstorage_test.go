package vstorage

import (
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteThenReadRoundTrip(t *testing.T) {
	f := Open(make([]byte, 16), true, false)

	n, err := f.Write([]byte("hello"))
	require.NoError(t, err)
	assert.Equal(t, 5, n)
	assert.Equal(t, 5, f.Len())

	_, err = f.Seek(0, io.SeekStart)
	require.NoError(t, err)

	buf := make([]byte, 5)
	n, err = f.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(buf[:n]))
}

func TestReadReturnsEOFAtLogicalEnd(t *testing.T) {
	f := Open([]byte("data"), false, true)

	buf := make([]byte, 4)
	n, err := f.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, 4, n)

	_, err = f.Read(buf)
	assert.ErrorIs(t, err, io.EOF)
}

func TestWriteShortWhenOverCapacity(t *testing.T) {
	f := Open(make([]byte, 4), true, false)

	n, err := f.Write([]byte("toolong"))
	assert.ErrorIs(t, err, io.ErrShortWrite)
	assert.Equal(t, 4, n)
}

func TestSeekVariants(t *testing.T) {
	f := Open([]byte("0123456789"), false, true)

	pos, err := f.Seek(3, io.SeekStart)
	require.NoError(t, err)
	assert.Equal(t, int64(3), pos)

	pos, err = f.Seek(2, io.SeekCurrent)
	require.NoError(t, err)
	assert.Equal(t, int64(5), pos)

	pos, err = f.Seek(-1, io.SeekEnd)
	require.NoError(t, err)
	assert.Equal(t, int64(9), pos)

	_, err = f.Seek(1000, io.SeekStart)
	assert.Error(t, err)
}

func TestOperationsFailAfterClose(t *testing.T) {
	f := Open(make([]byte, 4), true, false)
	require.NoError(t, f.Close())

	_, err := f.Write([]byte("x"))
	assert.Error(t, err)
	_, err = f.Read(make([]byte, 1))
	assert.Error(t, err)
	_, err = f.Seek(0, io.SeekStart)
	assert.Error(t, err)
}

func TestCloseIsIdempotent(t *testing.T) {
	f := Open(make([]byte, 4), true, false)
	require.NoError(t, f.Close())
	require.NoError(t, f.Close())
}
