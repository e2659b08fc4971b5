package gpu

import "fmt"

// rowStride describes rows in a buffer that is copied to or from a
// texture. Devices require bytes-per-row to be a multiple of their copy
// pitch; unpadded is what the pixels actually occupy.
type rowStride struct {
	unpadded uint32
	padded   uint32
	rows     uint32
}

// newRowStride returns the stride for rows of width texels of bpp bytes,
// padded to a multiple of pitch. pitch must be a power of two.
func newRowStride(width, height, bpp, pitch uint32) rowStride {
	unpadded := width * bpp
	return rowStride{
		unpadded: unpadded,
		padded:   (unpadded + pitch - 1) &^ (pitch - 1),
		rows:     height,
	}
}

// size returns the byte size of the padded buffer.
func (s rowStride) size() uint64 {
	return uint64(s.padded) * uint64(s.rows)
}

// strip copies padded rows from src into a tightly packed slice.
func (s rowStride) strip(src []byte) ([]byte, error) {
	if uint64(len(src)) < s.size() {
		return nil, fmt.Errorf("%w: got %d bytes, want %d", ErrReadbackSize, len(src), s.size())
	}
	out := make([]byte, int(s.unpadded)*int(s.rows))
	if s.padded == s.unpadded {
		copy(out, src)
		return out, nil
	}
	for row := range int(s.rows) {
		srcOff := row * int(s.padded)
		dstOff := row * int(s.unpadded)
		copy(out[dstOff:dstOff+int(s.unpadded)], src[srcOff:srcOff+int(s.unpadded)])
	}
	return out, nil
}

// pad lays tightly packed rows out at the padded stride.
func (s rowStride) pad(src []byte) []byte {
	if s.padded == s.unpadded {
		return src
	}
	out := make([]byte, s.size())
	for row := range int(s.rows) {
		srcOff := row * int(s.unpadded)
		dstOff := row * int(s.padded)
		copy(out[dstOff:dstOff+int(s.unpadded)], src[srcOff:srcOff+int(s.unpadded)])
	}
	return out
}
