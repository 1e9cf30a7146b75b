package hexsink

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/derMihai/condalf/pkg/cderrors"
	"github.com/derMihai/condalf/pkg/transfer"
	"github.com/derMihai/condalf/pkg/vstorage"
)

func file(data []byte) *vstorage.File {
	buf := make([]byte, len(data))
	copy(buf, data)
	return vstorage.Open(buf, true, true)
}

func TestSendDumpsBytesAsHex(t *testing.T) {
	var buf bytes.Buffer
	sink := New("probe", &buf)

	err := sink.Send(&transfer.Job{File: file([]byte{0x00, 0xFF, 0x10})})
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, "======== probe begin ========")
	assert.Contains(t, out, "0x00, ")
	assert.Contains(t, out, "0xFF, ")
	assert.Contains(t, out, "0x10, ")
	assert.Contains(t, out, "======== probe end ==========")
}

func TestSendDefaultLabel(t *testing.T) {
	var buf bytes.Buffer
	sink := New("", &buf)

	require.NoError(t, sink.Send(&transfer.Job{File: file(nil)}))

	assert.Contains(t, buf.String(), "Hexout begin")
}

func TestSendCallbackFiresOnSuccess(t *testing.T) {
	var buf bytes.Buffer
	sink := New("probe", &buf)

	called := false
	var callbackErr error
	job := &transfer.Job{
		File: file([]byte{0x01}),
		Callback: func(err error) {
			called = true
			callbackErr = err
		},
	}

	require.NoError(t, sink.Send(job))
	assert.True(t, called)
	assert.NoError(t, callbackErr)
}

func TestTrySendAlwaysAcceptsAndReportsViaCallback(t *testing.T) {
	var buf bytes.Buffer
	sink := New("probe", &buf)

	result := make(chan error, 1)
	job := &transfer.Job{
		File:     file([]byte{0x02}),
		Callback: func(err error) { result <- err },
	}

	require.NoError(t, sink.TrySend(job))
	assert.NoError(t, <-result)
}

func TestWrapsAfterSixteenColumns(t *testing.T) {
	var buf bytes.Buffer
	sink := New("probe", &buf)

	data := make([]byte, columnsPerLine+1)
	require.NoError(t, sink.Send(&transfer.Job{File: file(data)}))

	lines := strings.Split(buf.String(), "\n")
	var dataLine string
	for _, l := range lines {
		if strings.HasPrefix(l, "0x00, ") && strings.Count(l, "0x") == columnsPerLine {
			dataLine = l
			break
		}
	}
	require.NotEmpty(t, dataLine, "expected one full 16-byte line before the wrap")
}

func TestRecvIsInvalid(t *testing.T) {
	sink := New("probe", &bytes.Buffer{})
	err := sink.Recv(&transfer.Job{})
	assert.ErrorIs(t, err, cderrors.Invalid)
}

func TestDeleteIsNoop(t *testing.T) {
	sink := New("probe", &bytes.Buffer{})
	assert.NoError(t, sink.Delete())
}
