// Package trk reads TrackVis .trk tractograms as a stream of streamlines.
package trk

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strings"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/gogpu/slicer/fibers"
)

// Errors returned while reading.
var (
	// ErrBadMagic is returned when the file does not start with "TRACK".
	ErrBadMagic = errors.New("trk: missing TRACK magic")

	// ErrBadHeader is returned for an inconsistent header.
	ErrBadHeader = errors.New("trk: invalid header")
)

const headerSize = 1000

// maxTrackBytes bounds the record of a single streamline. A point count
// past it means a corrupt file, not a real track.
const maxTrackBytes = 1 << 28

type rawHeader struct {
	IDString                [6]byte
	Dim                     [3]int16
	VoxelSize               [3]float32
	Origin                  [3]float32
	NScalars                int16
	ScalarName              [10][20]byte
	NProperties             int16
	PropertyName            [10][20]byte
	VoxToRAS                [4][4]float32
	Reserved                [444]byte
	VoxelOrder              [4]byte
	Pad2                    [4]byte
	ImageOrientationPatient [6]float32
	Pad1                    [2]byte
	InvertX                 byte
	InvertY                 byte
	InvertZ                 byte
	SwapXY                  byte
	SwapYZ                  byte
	SwapZX                  byte
	NCount                  int32
	Version                 int32
	HdrSize                 int32
}

// Header describes a tractogram.
type Header struct {
	Dim         [3]int
	VoxelSize   [3]float32
	NScalars    int
	NProperties int

	// Count is the number of streamlines, or 0 when the writer did not
	// record it.
	Count int

	Version    int
	VoxelOrder string
	VoxToRAS   mgl32.Mat4
	ByteOrder  binary.ByteOrder
}

// Reader yields streamlines in voxel coordinates of the reference volume.
// It implements fibers.Source.
type Reader struct {
	r      *bufio.Reader
	closer io.Closer
	hdr    Header
	read   int
	buf    []byte
}

var _ fibers.Source = (*Reader)(nil)

// NewReader reads the header from r.
func NewReader(r io.Reader) (*Reader, error) {
	br := bufio.NewReader(r)
	hdr, err := readHeader(br)
	if err != nil {
		return nil, err
	}
	return &Reader{r: br, hdr: *hdr}, nil
}

// Open opens a .trk file. Close releases it.
func Open(path string) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open tractogram: %w", err)
	}
	r, err := NewReader(f)
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	r.closer = f
	return r, nil
}

// Header returns the decoded header.
func (r *Reader) Header() Header { return r.hdr }

// Close closes the file opened by Open. It is a no-op for NewReader.
func (r *Reader) Close() error {
	if r.closer == nil {
		return nil
	}
	err := r.closer.Close()
	r.closer = nil
	return err
}

// Next returns the next streamline, or io.EOF after the last one.
//
// TrackVis stores points in voxmm, millimetres from the corner of the
// first voxel. They are converted to voxel indices, so the centre of
// voxel (i, j, k) is the point (i, j, k).
func (r *Reader) Next() (fibers.Streamline, error) {
	if r.hdr.Count > 0 && r.read >= r.hdr.Count {
		return nil, io.EOF
	}

	var countBuf [4]byte
	if _, err := io.ReadFull(r.r, countBuf[:]); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, io.EOF
		}
		return nil, fmt.Errorf("read streamline %d: %w", r.read, err)
	}
	n := int(int32(r.hdr.ByteOrder.Uint32(countBuf[:])))
	if n < 0 {
		return nil, fmt.Errorf("%w: streamline %d has %d points", ErrBadHeader, r.read, n)
	}

	stride := 3 + r.hdr.NScalars
	if int64(n)*int64(stride)*4 > maxTrackBytes {
		return nil, fmt.Errorf("%w: streamline %d has %d points", ErrBadHeader, r.read, n)
	}
	size := 4 * (n*stride + r.hdr.NProperties)
	if cap(r.buf) < size {
		r.buf = make([]byte, size)
	}
	buf := r.buf[:size]
	if _, err := io.ReadFull(r.r, buf); err != nil {
		return nil, fmt.Errorf("read streamline %d: %w", r.read, io.ErrUnexpectedEOF)
	}

	line := make(fibers.Streamline, n)
	for i := range n {
		off := 4 * i * stride
		for k := range 3 {
			v := math.Float32frombits(r.hdr.ByteOrder.Uint32(buf[off+4*k:]))
			line[i][k] = v/r.hdr.VoxelSize[k] - 0.5
		}
	}
	r.read++
	return line, nil
}

func readHeader(r io.Reader) (*Header, error) {
	buf := make([]byte, headerSize)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrBadHeader, err)
	}
	if !bytes.HasPrefix(buf, []byte("TRACK")) {
		return nil, ErrBadMagic
	}

	var order binary.ByteOrder
	switch {
	case binary.LittleEndian.Uint32(buf[996:]) == headerSize:
		order = binary.LittleEndian
	case binary.BigEndian.Uint32(buf[996:]) == headerSize:
		order = binary.BigEndian
	default:
		return nil, fmt.Errorf("%w: hdr_size is not %d", ErrBadHeader, headerSize)
	}

	var raw rawHeader
	if err := binary.Read(bytes.NewReader(buf), order, &raw); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrBadHeader, err)
	}
	if raw.NScalars < 0 || raw.NProperties < 0 || raw.NCount < 0 {
		return nil, fmt.Errorf("%w: negative count", ErrBadHeader)
	}

	hdr := &Header{
		NScalars:    int(raw.NScalars),
		NProperties: int(raw.NProperties),
		Count:       int(raw.NCount),
		Version:     int(raw.Version),
		VoxelOrder:  strings.TrimRight(string(raw.VoxelOrder[:]), "\x00 "),
		ByteOrder:   order,
	}
	for i := range 3 {
		hdr.Dim[i] = int(raw.Dim[i])
		hdr.VoxelSize[i] = raw.VoxelSize[i]
		if !(hdr.VoxelSize[i] > 0) {
			hdr.VoxelSize[i] = 1
		}
	}
	// vox_to_ras is stored row-major; mgl32 is column-major.
	for row := range 4 {
		for col := range 4 {
			hdr.VoxToRAS.Set(row, col, raw.VoxToRAS[row][col])
		}
	}
	return hdr, nil
}
