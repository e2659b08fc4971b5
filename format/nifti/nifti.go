// Package nifti decodes single-file NIfTI-1 volumes (.nii and .nii.gz).
//
// Only 3D scalar images are accepted. Samples are converted to float32
// with the header's scl_slope and scl_inter applied.
package nifti

import (
	"bufio"
	"bytes"
	"compress/gzip"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strings"

	"github.com/chewxy/math32"
	"github.com/h2non/filetype"

	"github.com/gogpu/slicer/internal/parallel"
	"github.com/gogpu/slicer/volume"
)

// Errors returned while decoding.
var (
	// ErrNotNIfTI is returned when the header size or magic is wrong.
	ErrNotNIfTI = errors.New("nifti: not a NIfTI-1 file")

	// ErrPairNotSupported is returned for .hdr/.img pairs.
	ErrPairNotSupported = errors.New("nifti: header/image pairs are not supported")

	// ErrDatatype is returned for sample types that cannot be converted.
	ErrDatatype = errors.New("nifti: unsupported datatype")
)

const headerSize = 348

// Datatype is the NIfTI datatype code.
type Datatype int16

const (
	Uint8   Datatype = 2
	Int16   Datatype = 4
	Int32   Datatype = 8
	Float32 Datatype = 16
	Float64 Datatype = 64
	Int8    Datatype = 256
	Uint16  Datatype = 512
	Uint32  Datatype = 768
)

// Size returns the byte size of one sample, or 0 if unsupported.
func (d Datatype) Size() int {
	switch d {
	case Uint8, Int8:
		return 1
	case Int16, Uint16:
		return 2
	case Int32, Uint32, Float32:
		return 4
	case Float64:
		return 8
	default:
		return 0
	}
}

// rawHeader mirrors the on-disk NIfTI-1 header.
type rawHeader struct {
	SizeofHdr     int32
	DataType      [10]byte
	DBName        [18]byte
	Extents       int32
	SessionError  int16
	Regular       byte
	DimInfo       byte
	Dim           [8]int16
	IntentP1      float32
	IntentP2      float32
	IntentP3      float32
	IntentCode    int16
	Datatype      int16
	Bitpix        int16
	SliceStart    int16
	Pixdim        [8]float32
	VoxOffset     float32
	SclSlope      float32
	SclInter      float32
	SliceEnd      int16
	SliceCode     byte
	XYZTUnits     byte
	CalMax        float32
	CalMin        float32
	SliceDuration float32
	TOffset       float32
	GLMax         int32
	GLMin         int32
	Descrip       [80]byte
	AuxFile       [24]byte
	QformCode     int16
	SformCode     int16
	QuaternB      float32
	QuaternC      float32
	QuaternD      float32
	QOffsetX      float32
	QOffsetY      float32
	QOffsetZ      float32
	SRowX         [4]float32
	SRowY         [4]float32
	SRowZ         [4]float32
	IntentName    [16]byte
	Magic         [4]byte
}

// Header is the subset of the NIfTI-1 header the slicer uses.
type Header struct {
	Dims     [3]int
	Spacing  [3]float32
	Datatype Datatype

	SclSlope  float32
	SclInter  float32
	VoxOffset int64

	Description string
	SformCode   int16
	SRow        [3][4]float32

	ByteOrder binary.ByteOrder
}

// ReadFile decodes the volume at path. Gzip compression is detected from
// the content, not the extension.
func ReadFile(path string) (*volume.Volume, *Header, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("open volume: %w", err)
	}
	defer f.Close()

	vol, hdr, err := Read(f)
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", path, err)
	}
	return vol, hdr, nil
}

// Read decodes a NIfTI-1 stream, gzip compressed or not.
func Read(r io.Reader) (*volume.Volume, *Header, error) {
	br := bufio.NewReader(r)
	head, _ := br.Peek(262)
	if filetype.Is(head, "gz") {
		zr, err := gzip.NewReader(br)
		if err != nil {
			return nil, nil, fmt.Errorf("open gzip stream: %w", err)
		}
		defer zr.Close()
		br = bufio.NewReader(zr)
	}

	hdr, err := readHeader(br)
	if err != nil {
		return nil, nil, err
	}

	// Skip extensions between the header and vox_offset.
	if skip := hdr.VoxOffset - headerSize; skip > 0 {
		if _, err := io.CopyN(io.Discard, br, skip); err != nil {
			return nil, nil, fmt.Errorf("skip to voxel data: %w", err)
		}
	}

	n := hdr.Dims[0] * hdr.Dims[1] * hdr.Dims[2]
	raw := make([]byte, n*hdr.Datatype.Size())
	if _, err := io.ReadFull(br, raw); err != nil {
		return nil, nil, fmt.Errorf("read voxel data: %w", err)
	}

	data := decodeSamples(raw, hdr)
	vol, err := volume.New(hdr.Dims, hdr.Spacing, volume.OrderFortran, data)
	if err != nil {
		return nil, nil, err
	}
	return vol, hdr, nil
}

func readHeader(r io.Reader) (*Header, error) {
	buf := make([]byte, headerSize)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, fmt.Errorf("%w: short header: %w", ErrNotNIfTI, err)
	}

	// sizeof_hdr is 348 in the file's byte order.
	var order binary.ByteOrder
	switch {
	case binary.LittleEndian.Uint32(buf) == headerSize:
		order = binary.LittleEndian
	case binary.BigEndian.Uint32(buf) == headerSize:
		order = binary.BigEndian
	default:
		return nil, fmt.Errorf("%w: sizeof_hdr is not %d", ErrNotNIfTI, headerSize)
	}

	var raw rawHeader
	if err := binary.Read(bytes.NewReader(buf), order, &raw); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNotNIfTI, err)
	}

	switch string(raw.Magic[:3]) {
	case "n+1":
	case "ni1":
		return nil, ErrPairNotSupported
	default:
		return nil, fmt.Errorf("%w: magic %q", ErrNotNIfTI, raw.Magic[:3])
	}

	if raw.Dim[0] != 3 {
		return nil, fmt.Errorf("%w: got %d dimensions", volume.ErrNotVolume, raw.Dim[0])
	}

	dt := Datatype(raw.Datatype)
	if dt.Size() == 0 {
		return nil, fmt.Errorf("%w: code %d", ErrDatatype, raw.Datatype)
	}

	hdr := &Header{
		Datatype:    dt,
		SclSlope:    raw.SclSlope,
		SclInter:    raw.SclInter,
		VoxOffset:   int64(raw.VoxOffset),
		Description: strings.TrimRight(string(raw.Descrip[:]), "\x00 "),
		SformCode:   raw.SformCode,
		SRow:        [3][4]float32{raw.SRowX, raw.SRowY, raw.SRowZ},
		ByteOrder:   order,
	}
	for i := range 3 {
		hdr.Dims[i] = int(raw.Dim[i+1])
		hdr.Spacing[i] = math32.Abs(raw.Pixdim[i+1])
		if hdr.Dims[i] <= 0 {
			return nil, fmt.Errorf("%w: dim[%d] is %d", volume.ErrNotVolume, i+1, hdr.Dims[i])
		}
	}
	if hdr.VoxOffset < headerSize {
		hdr.VoxOffset = headerSize
	}
	return hdr, nil
}

// decodeChunk is the smallest share of samples decoded by one goroutine.
const decodeChunk = 1 << 16

// decodeSamples converts raw samples to float32 and applies the scaling.
// A zero or non-finite slope means no scaling.
func decodeSamples(raw []byte, hdr *Header) []float32 {
	size := hdr.Datatype.Size()
	out := make([]float32, len(raw)/size)
	order := hdr.ByteOrder

	slope, inter := float64(hdr.SclSlope), float64(hdr.SclInter)
	scale := slope != 0 && !math.IsNaN(slope) && !math.IsInf(slope, 0)
	if math.IsNaN(inter) || math.IsInf(inter, 0) {
		inter = 0
	}

	parallel.For(len(out), decodeChunk, func(lo, hi int) {
		for i := lo; i < hi; i++ {
			b := raw[i*size:]
			var v float64
			switch hdr.Datatype {
			case Uint8:
				v = float64(b[0])
			case Int8:
				v = float64(int8(b[0]))
			case Int16:
				v = float64(int16(order.Uint16(b)))
			case Uint16:
				v = float64(order.Uint16(b))
			case Int32:
				v = float64(int32(order.Uint32(b)))
			case Uint32:
				v = float64(order.Uint32(b))
			case Float32:
				v = float64(math.Float32frombits(order.Uint32(b)))
			case Float64:
				v = math.Float64frombits(order.Uint64(b))
			}
			if scale {
				v = float64(float32(v))*slope + inter
			}
			out[i] = float32(v)
		}
	})
	return out
}
