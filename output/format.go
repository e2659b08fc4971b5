// Package output encodes rendered slices to image files.
package output

import (
	"errors"
	"fmt"
	"strings"

	"golang.org/x/text/cases"
)

// ErrUnknownFormat is returned for an image format name that is not supported.
var ErrUnknownFormat = errors.New("output: unknown image format")

// Format is an image file format.
type Format int

const (
	PNG Format = iota
	TIFF
	BMP
)

var formatNames = [...]string{PNG: "png", TIFF: "tiff", BMP: "bmp"}

var fold = cases.Fold()

// ParseFormat resolves a format name or file extension, ignoring case
// and a leading dot. "tif" is accepted for TIFF.
func ParseFormat(s string) (Format, error) {
	name := fold.String(strings.TrimPrefix(strings.TrimSpace(s), "."))
	if name == "tif" {
		return TIFF, nil
	}
	for f, n := range formatNames {
		if n == name {
			return Format(f), nil
		}
	}
	return PNG, fmt.Errorf("%w: %q", ErrUnknownFormat, s)
}

// String returns the lower-case format name.
func (f Format) String() string {
	if f < 0 || int(f) >= len(formatNames) {
		return fmt.Sprintf("Format(%d)", int(f))
	}
	return formatNames[f]
}

// Ext returns the file extension including the dot.
func (f Format) Ext() string { return "." + f.String() }

// MarshalText implements encoding.TextMarshaler.
func (f Format) MarshalText() ([]byte, error) { return []byte(f.String()), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (f *Format) UnmarshalText(b []byte) error {
	parsed, err := ParseFormat(string(b))
	if err != nil {
		return err
	}
	*f = parsed
	return nil
}
