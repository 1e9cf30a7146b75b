// Package hexsink implements a debug transfer.Driver that dumps every
// envelope it receives as a hex byte listing instead of sending it
// anywhere — the Go counterpart of the C original's hexout virtual
// file, useful for bench setups and local inspection where no real
// transport is configured.
package hexsink

import (
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/derMihai/condalf/pkg/cderrors"
	"github.com/derMihai/condalf/pkg/transfer"
)

// columnsPerLine matches the original's 16-bytes-per-line wrap (the
// low nibble of a running byte counter rolling over).
const columnsPerLine = 16

// Sink writes hex dumps to W, guarded by a mutex so concurrent
// TrySend/Send calls don't interleave their output.
type Sink struct {
	Name string
	W    io.Writer

	mu sync.Mutex
}

// New builds a Sink labeled name, writing to w (os.Stdout if nil).
func New(name string, w io.Writer) *Sink {
	if w == nil {
		w = os.Stdout
	}
	return &Sink{Name: name, W: w}
}

func (s *Sink) label() string {
	if s.Name == "" {
		return "Hexout"
	}
	return s.Name
}

func (s *Sink) dump(r io.Reader) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	fmt.Fprintf(s.W, "\n======== %s begin ========\n", s.label())

	buf := make([]byte, 4096)
	col := 0
	for {
		n, err := r.Read(buf)
		for i := 0; i < n; i++ {
			fmt.Fprintf(s.W, "0x%02X, ", buf[i])
			col++
			if col%columnsPerLine == 0 {
				fmt.Fprintln(s.W)
			}
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return cderrors.Wrap(cderrors.Invalid, err)
		}
	}

	fmt.Fprintf(s.W, "\n======== %s end ==========\n", s.label())
	return nil
}

// TrySend dumps job.File immediately and reports the result via
// job.Callback, matching the async contract even though the work here
// never actually blocks.
func (s *Sink) TrySend(job *transfer.Job) error {
	err := s.dump(job.File)
	if job.Callback != nil {
		job.Callback(err)
	}
	return nil
}

// Send dumps job.File synchronously.
func (s *Sink) Send(job *transfer.Job) error {
	err := s.dump(job.File)
	if err == nil && job.Callback != nil {
		job.Callback(nil)
	}
	return err
}

// Recv is not meaningful for a write-only debug sink.
func (s *Sink) Recv(job *transfer.Job) error { return cderrors.Invalid }

// Delete is a no-op: the sink owns no resources beyond its writer.
func (s *Sink) Delete() error { return nil }
