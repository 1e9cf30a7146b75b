// Package transport provides a minimal reference implementation of
// publisher.Transport. The actual wire protocol — blockwise upload
// negotiation, acknowledgment, retransmission — is an external
// collaborator (spec.md §1's "wire protocol client", explicitly out of
// scope). This package exists so the composition root has something
// real to plug into the Publisher driver for a standalone run; a
// production deployment is expected to supply its own Transport.
package transport

import (
	"fmt"
	"io"
	"net"
	"time"

	"github.com/derMihai/condalf/pkg/transfer"
)

// blockSize bounds each datagram's payload, keeping well under the
// common 1500-byte path MTU once headers are accounted for.
const blockSize = 1024

// UDP sends an envelope as a sequence of UDP datagrams, one per block,
// each prefixed with a 4-byte big-endian sequence number, to the resource's address:port. It
// carries no acknowledgment or retransmission of its own — that is
// the "blockwise transfer" layer callers are expected to bring, this
// is just enough to exercise the Publisher driver end to end.
type UDP struct {
	DialTimeout time.Duration
}

// Send implements publisher.Transport.
func (u UDP) Send(res transfer.RemoteResource, r io.Reader) error {
	addr := fmt.Sprintf("%s:%d", res.Address, res.Port)

	timeout := u.DialTimeout
	if timeout == 0 {
		timeout = 5 * time.Second
	}

	conn, err := net.DialTimeout("udp", addr, timeout)
	if err != nil {
		return err
	}
	defer conn.Close()

	buf := make([]byte, blockSize)
	seq := uint32(0)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			block := make([]byte, 4+n)
			block[0] = byte(seq >> 24)
			block[1] = byte(seq >> 16)
			block[2] = byte(seq >> 8)
			block[3] = byte(seq)
			copy(block[4:], buf[:n])

			if _, werr := conn.Write(block); werr != nil {
				return werr
			}
			seq++
		}
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
	}
}
