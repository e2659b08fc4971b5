package main

import (
	"errors"
	"flag"
	"fmt"
	"strconv"
	"strings"

	"github.com/gogpu/slicer"
	"github.com/gogpu/slicer/output"
	"github.com/gogpu/slicer/volume"
)

var errUsage = errors.New("usage: slicer [flags] <volume.nii[.gz]> <output-dir>")

type cliFlags struct {
	config     string
	fibers     string
	verbose    bool
	white      bool
	software   bool
	batchSize  int
	slices     int
	coloring   string
	rgb        string
	outputSize string
	views      string
	sliceRange string
	format     string

	volume string
	outDir string
	set    map[string]bool
}

func parseFlags(args []string) (*cliFlags, error) {
	f := &cliFlags{set: make(map[string]bool)}
	fs := flag.NewFlagSet("slicer", flag.ContinueOnError)
	fs.StringVar(&f.config, "config", "", "YAML settings file")
	fs.StringVar(&f.fibers, "fibers", "", "TrackVis .trk tractogram to overlay")
	fs.BoolVar(&f.verbose, "v", false, "debug logging")
	fs.BoolVar(&f.white, "white", false, "white background")
	fs.BoolVar(&f.software, "software", false, "allow a software adapter")
	fs.IntVar(&f.batchSize, "batch-size", 0, "streamlines per draw batch")
	fs.IntVar(&f.slices, "slices", 0, "slices per view")
	fs.StringVar(&f.coloring, "coloring", "", "fiber coloring: local, endpoint or uniform")
	fs.StringVar(&f.rgb, "rgb", "", "uniform fiber color as R,G,B")
	fs.StringVar(&f.outputSize, "output-size", "", "image size as WxH")
	fs.StringVar(&f.views, "views", "", "comma separated views")
	fs.StringVar(&f.sliceRange, "range", "", "normalized slice range as lo,hi")
	fs.StringVar(&f.format, "format", "", "image format: png, tiff or bmp")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if fs.NArg() != 2 {
		return nil, errUsage
	}
	f.volume, f.outDir = fs.Arg(0), fs.Arg(1)
	fs.Visit(func(fl *flag.Flag) { f.set[fl.Name] = true })
	return f, nil
}

// apply overrides s with the flags given on the command line.
func (f *cliFlags) apply(s *slicer.Settings) error {
	if f.set["white"] {
		s.White = f.white
	}
	if f.set["software"] {
		s.Software = f.software
	}
	if f.set["batch-size"] {
		s.BatchSize = f.batchSize
	}
	if f.set["slices"] {
		s.Slices = f.slices
	}
	if f.set["coloring"] {
		s.Coloring = f.coloring
	}
	if f.set["rgb"] {
		rgb, err := parseInts(f.rgb, 3)
		if err != nil {
			return fmt.Errorf("-rgb: %w", err)
		}
		s.RGB = rgb
	}
	if f.set["output-size"] {
		size, err := parseSize(f.outputSize)
		if err != nil {
			return fmt.Errorf("-output-size: %w", err)
		}
		s.OutputSize = size
	}
	if f.set["views"] {
		views, err := parseViews(f.views)
		if err != nil {
			return fmt.Errorf("-views: %w", err)
		}
		s.Views = views
	}
	if f.set["range"] {
		r, err := parseRange(f.sliceRange)
		if err != nil {
			return fmt.Errorf("-range: %w", err)
		}
		s.Range = r
	}
	if f.set["format"] {
		format, err := output.ParseFormat(f.format)
		if err != nil {
			return err
		}
		s.Format = format
	}
	return nil
}

func parseInts(s string, n int) ([]int, error) {
	parts := strings.Split(s, ",")
	if len(parts) != n {
		return nil, fmt.Errorf("want %d comma separated values, got %q", n, s)
	}
	out := make([]int, n)
	for i, p := range parts {
		v, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func parseSize(s string) ([2]int, error) {
	w, h, ok := strings.Cut(strings.ToLower(s), "x")
	if !ok {
		return [2]int{}, fmt.Errorf("want WxH, got %q", s)
	}
	width, err := strconv.Atoi(strings.TrimSpace(w))
	if err != nil {
		return [2]int{}, err
	}
	height, err := strconv.Atoi(strings.TrimSpace(h))
	if err != nil {
		return [2]int{}, err
	}
	return [2]int{width, height}, nil
}

func parseViews(s string) ([]volume.View, error) {
	var views []volume.View
	for _, name := range strings.Split(s, ",") {
		v, err := volume.ParseView(strings.TrimSpace(name))
		if err != nil {
			return nil, err
		}
		views = append(views, v)
	}
	return views, nil
}

func parseRange(s string) ([2]float32, error) {
	lo, hi, ok := strings.Cut(s, ",")
	if !ok {
		return [2]float32{}, fmt.Errorf("want lo,hi, got %q", s)
	}
	a, err := strconv.ParseFloat(strings.TrimSpace(lo), 32)
	if err != nil {
		return [2]float32{}, err
	}
	b, err := strconv.ParseFloat(strings.TrimSpace(hi), 32)
	if err != nil {
		return [2]float32{}, err
	}
	return [2]float32{float32(a), float32(b)}, nil
}
