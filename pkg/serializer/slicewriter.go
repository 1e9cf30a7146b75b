package serializer

import "io"

// sliceWriter writes sequentially into a pre-allocated byte slice. It
// is the real (non-simulating) sink the encoder writes into during
// Swap, once fitCount has already proven everything written will fit.
type sliceWriter struct {
	buf []byte
	n   int
}

func (w *sliceWriter) Write(p []byte) (int, error) {
	if w.n+len(p) > len(w.buf) {
		return 0, io.ErrShortBuffer
	}
	copy(w.buf[w.n:], p)
	w.n += len(p)
	return len(p), nil
}
