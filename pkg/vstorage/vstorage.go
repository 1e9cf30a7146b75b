// Package vstorage implements the Virtual Storage File (spec.md
// §4.F): an in-memory byte buffer presented through the same
// read/write/seek/close capability set a filesystem file offers, so a
// transfer driver never needs to distinguish an envelope that came
// from RAM from one that came from disk.
package vstorage

import (
	"io"

	"github.com/derMihai/condalf/pkg/cderrors"
)

// File is a byte buffer addressed like a file descriptor. It
// implements io.Reader, io.Writer, io.Seeker and io.Closer.
type File struct {
	buf     []byte
	pos     int
	fend    int // logical end of written data
	ownsBuf bool
	closed  bool
}

// Open binds buf as a virtual storage file. ownsBuf marks that Close
// should release the buffer (the owning-holder discipline from
// spec.md §5); hasData marks that buf already holds fend == len(buf)
// bytes of committed content (as opposed to an empty buffer being
// opened for writing).
func Open(buf []byte, ownsBuf, hasData bool) *File {
	fend := 0
	if hasData {
		fend = len(buf)
	}
	return &File{buf: buf, ownsBuf: ownsBuf, fend: fend}
}

// Read implements io.Reader, bounded by the logical end of data.
func (f *File) Read(p []byte) (int, error) {
	if f.closed {
		return 0, cderrors.Invalid
	}
	if f.pos >= f.fend {
		return 0, io.EOF
	}
	n := copy(p, f.buf[f.pos:f.fend])
	f.pos += n
	return n, nil
}

// Write implements io.Writer, bounded by the buffer's fixed capacity
// (the virtual file does not grow). A write that would overrun the
// capacity is short, matching the original's bufsiz-bounded _write;
// Go's io.Writer contract requires signalling that with an error.
func (f *File) Write(p []byte) (int, error) {
	if f.closed {
		return 0, cderrors.Invalid
	}
	avail := len(f.buf) - f.pos
	n := len(p)
	if n > avail {
		n = avail
	}
	copy(f.buf[f.pos:f.pos+n], p[:n])
	f.pos += n
	if f.pos > f.fend {
		f.fend = f.pos
	}
	if n < len(p) {
		return n, io.ErrShortWrite
	}
	return n, nil
}

// Seek implements io.Seeker. Seeking past the current logical end
// extends it (a sparse-write convenience the original grants too),
// but never past the buffer's fixed capacity.
func (f *File) Seek(offset int64, whence int) (int64, error) {
	if f.closed {
		return 0, cderrors.Invalid
	}

	var newPos int64
	switch whence {
	case io.SeekStart:
		newPos = offset
	case io.SeekCurrent:
		newPos = int64(f.pos) + offset
	case io.SeekEnd:
		newPos = int64(f.fend) + offset
	default:
		return 0, cderrors.Invalid
	}

	if newPos < 0 || newPos > int64(len(f.buf)) {
		return 0, cderrors.Invalid
	}

	f.pos = int(newPos)
	if f.pos > f.fend {
		f.fend = f.pos
	}

	return int64(f.pos), nil
}

// Len returns the logical amount of committed data.
func (f *File) Len() int { return f.fend }

// Close releases the buffer if this File owns it.
func (f *File) Close() error {
	if f.closed {
		return nil
	}
	if f.ownsBuf {
		f.buf = nil
	}
	f.closed = true
	return nil
}
