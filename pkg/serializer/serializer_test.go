package serializer

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/derMihai/condalf/pkg/cderrors"
	"github.com/derMihai/condalf/pkg/record"
	"github.com/derMihai/condalf/pkg/senml"
)

func numberRecord(name string, n uint32) *record.Record {
	return &record.Record{Name: name, Type: record.U32, U32: n}
}

func TestInitRejectsNilBuffer(t *testing.T) {
	_, err := Init(nil, 4, record.Base{})
	assert.ErrorIs(t, err, cderrors.Invalid)
}

func TestInitRejectsBufferSmallerThanArrayOverhead(t *testing.T) {
	_, err := Init(make([]byte, 1), 4, record.Base{})
	assert.ErrorIs(t, err, cderrors.NoSpace)
}

func TestPutAcceptsRecordsAndAdvancesFitCount(t *testing.T) {
	s, err := Init(make([]byte, 256), 4, record.Base{Name: "sensors"})
	require.NoError(t, err)

	require.NoError(t, s.Put(numberRecord("a", 1)))
	require.NoError(t, s.Put(numberRecord("b", 2)))

	assert.Equal(t, 2, s.Fill())
	assert.Equal(t, 2, s.FitCount())
}

func TestPutLeavesRecordUntouchedOnRingFull(t *testing.T) {
	s, err := Init(make([]byte, 256), 1, record.Base{})
	require.NoError(t, err)

	require.NoError(t, s.Put(numberRecord("a", 1)))

	rec := numberRecord("b", 2)
	err = s.Put(rec)
	assert.ErrorIs(t, err, cderrors.NoSpace)
	assert.Equal(t, "b", rec.Name)
	assert.Equal(t, uint32(2), rec.U32)
}

func TestPutReturnsNoBuffersWhenSingleRecordNeverFits(t *testing.T) {
	s, err := Init(make([]byte, senml.ArrayMaxBytes+2), 4, record.Base{})
	require.NoError(t, err)

	rec := numberRecord("too-big-for-buffer-to-hold", 1)
	err = s.Put(rec)
	assert.ErrorIs(t, err, cderrors.NoBuffers)
	assert.Equal(t, "too-big-for-buffer-to-hold", rec.Name)
}

func TestSwapProducesSelfContainedEnvelope(t *testing.T) {
	s, err := Init(make([]byte, 256), 4, record.Base{Name: "sensors"})
	require.NoError(t, err)

	require.NoError(t, s.Put(numberRecord("a", 1)))
	require.NoError(t, s.Put(numberRecord("b", 2)))

	out, err := s.Swap(make([]byte, 256))
	require.NoError(t, err)
	assert.True(t, len(out) > 0)
	assert.Equal(t, byte(0x9f), out[0])
	assert.Equal(t, byte(0xff), out[len(out)-1])
	assert.Equal(t, 0, s.FitCount())
}

func TestSwapWithNilInvalidatesSerializer(t *testing.T) {
	s, err := Init(make([]byte, 256), 4, record.Base{})
	require.NoError(t, err)
	require.NoError(t, s.Put(numberRecord("a", 1)))

	_, err = s.Swap(nil)
	require.NoError(t, err)

	err = s.Put(numberRecord("b", 2))
	assert.ErrorIs(t, err, cderrors.Invalid)

	_, err = s.Swap(make([]byte, 256))
	assert.ErrorIs(t, err, cderrors.Invalid)
}

func TestSwapReportsTryAgainWhenBacklogRemains(t *testing.T) {
	small := make([]byte, 40)
	s, err := Init(small, 8, record.Base{})
	require.NoError(t, err)

	for i := 0; i < 8; i++ {
		err := s.Put(numberRecord("sensor-reading", uint32(i)))
		if errors.Is(err, cderrors.TryAgain) || errors.Is(err, cderrors.NoSpace) {
			break
		}
		require.NoError(t, err)
	}

	_, err = s.Swap(make([]byte, 40))
	assert.ErrorIs(t, err, cderrors.TryAgain)
}
