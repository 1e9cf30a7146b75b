package transport

import (
	"bytes"
	"net"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/derMihai/condalf/pkg/transfer"
)

func TestSendFramesDataAsDatagrams(t *testing.T) {
	conn, err := net.ListenPacket("udp", "127.0.0.1:0")
	require.NoError(t, err)
	defer conn.Close()

	host, portStr, err := net.SplitHostPort(conn.LocalAddr().String())
	require.NoError(t, err)
	port, err := strconv.Atoi(portStr)
	require.NoError(t, err)

	payload := bytes.Repeat([]byte("x"), blockSize+10) // forces two blocks
	errCh := make(chan error, 1)
	go func() {
		u := UDP{DialTimeout: time.Second}
		errCh <- u.Send(transfer.RemoteResource{Address: host, Port: port}, bytes.NewReader(payload))
	}()

	buf := make([]byte, 2048)
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))

	n, _, err := conn.ReadFrom(buf)
	require.NoError(t, err)
	require.GreaterOrEqual(t, n, 4)
	assert.Equal(t, []byte{0, 0, 0, 0}, buf[:4]) // first block's sequence prefix

	n, _, err = conn.ReadFrom(buf)
	require.NoError(t, err)
	require.GreaterOrEqual(t, n, 4)
	assert.Equal(t, []byte{0, 0, 0, 1}, buf[:4]) // second block's sequence prefix

	require.NoError(t, <-errCh)
}

func TestSendFailsOnUnreachableHost(t *testing.T) {
	u := UDP{DialTimeout: 50 * time.Millisecond}
	err := u.Send(transfer.RemoteResource{Address: "", Port: -1}, strings.NewReader("x"))
	assert.Error(t, err)
}
