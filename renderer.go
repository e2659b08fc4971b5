package slicer

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/gogpu/slicer/fibers"
	"github.com/gogpu/slicer/internal/gpu"
	"github.com/gogpu/slicer/transform"
	"github.com/gogpu/slicer/volume"
)

// Image is one rendered slice.
type Image struct {
	View  volume.View
	Index int

	Width, Height int

	// Pix holds Width*Height RGBA pixels, top row first.
	Pix []byte
}

// RGBA wraps the pixels as an *image.RGBA without copying.
func (im Image) RGBA() *image.RGBA {
	return &image.RGBA{
		Pix:    im.Pix,
		Stride: im.Width * 4,
		Rect:   image.Rect(0, 0, im.Width, im.Height),
	}
}

// Renderer turns a volume, and optionally a set of streamlines, into one
// image per view and slice index.
type Renderer struct {
	settings Settings
	slicer   *volume.Slicer
	set      transform.Set
	gpu      *gpu.Context
	skipped  int
}

// New validates settings, prepares the slicing math, acquires a GPU
// device and uploads the streamlines of src once. src may be nil.
func New(settings Settings, vol *volume.Volume, src fibers.Source, opts ...Option) (*Renderer, error) {
	if err := settings.Validate(); err != nil {
		return nil, err
	}
	coloring, err := settings.FiberColoring()
	if err != nil {
		return nil, err
	}

	var o options
	for _, opt := range opts {
		opt(&o)
	}

	sl, err := volume.NewSlicer(vol, settings.Slices, settings.Range[0], settings.Range[1])
	if err != nil {
		return nil, err
	}
	for _, view := range settings.Views {
		if n := len(sl.Indices(view.Axis())); n < settings.Slices {
			Logger().Warn("slice count reduced, slices would be closer than one voxel",
				"view", view, "requested", settings.Slices, "rendered", n)
		}
	}

	g, err := openContext(settings, o)
	if err != nil {
		return nil, fmt.Errorf("acquire GPU: %w", err)
	}

	r := &Renderer{
		settings: settings,
		slicer:   sl,
		set:      transform.NewSet(mgl32.Vec2{float32(settings.OutputSize[0]), float32(settings.OutputSize[1])}, vol),
		gpu:      g,
	}

	if src != nil {
		if err := r.uploadFibers(src, coloring); err != nil {
			g.Destroy()
			return nil, err
		}
	}

	info := g.AdapterInfo()
	Logger().Info("renderer ready",
		"adapter", info.Name,
		"adapter_type", info.Type,
		"samples", g.SampleCount(),
		"images", r.Count(),
		"memory", g.MemoryStats().String())
	return r, nil
}

func openContext(s Settings, o options) (*gpu.Context, error) {
	gopts := gpu.Options{
		Width:          uint32(s.OutputSize[0]), //nolint:gosec // validated positive
		Height:         uint32(s.OutputSize[1]), //nolint:gosec // validated positive
		White:          s.White,
		AllowSoftware:  s.Software,
		MemoryBudgetMB: s.MemoryBudgetMB,
	}
	switch {
	case o.provider != nil:
		return gpu.NewContextFromProvider(o.provider, gopts)
	case o.device != nil:
		return gpu.NewContextWithDevice(o.device, o.queue, o.adapter, gopts)
	default:
		return gpu.NewContext(gopts)
	}
}

func (r *Renderer) uploadFibers(src fibers.Source, coloring fibers.Coloring) error {
	if err := r.gpu.ClearFibers(); err != nil {
		return err
	}
	b := fibers.NewBatcher(src, r.settings.BatchSize, coloring)
	n := 0
	for {
		batch, err := b.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			_ = r.gpu.ClearFibers()
			return fmt.Errorf("read streamlines: %w", err)
		}
		if err := r.gpu.AppendFibers(batch); err != nil {
			_ = r.gpu.ClearFibers()
			return err
		}
		n++
	}
	r.skipped = b.Skipped()
	if r.skipped > 0 {
		Logger().Warn("streamlines with fewer than two points skipped", "count", r.skipped)
	}
	Logger().Debug("streamlines uploaded", "batches", n, "coloring", coloring.Mode)
	return nil
}

// Count returns the number of images Run produces.
func (r *Renderer) Count() int {
	n := 0
	for _, view := range r.settings.Views {
		n += len(r.slicer.Indices(view.Axis()))
	}
	return n
}

// Skipped returns how many streamlines were dropped for having fewer
// than two points.
func (r *Renderer) Skipped() int { return r.skipped }

// Run renders every view and slice index in order and hands each image to
// sink. It stops at the first error, or between slices when ctx is done.
func (r *Renderer) Run(ctx context.Context, sink func(Image) error) error {
	if r.gpu == nil {
		return fmt.Errorf("slicer: renderer is closed")
	}
	for _, view := range r.settings.Views {
		for _, idx := range r.slicer.Indices(view.Axis()) {
			if err := ctx.Err(); err != nil {
				return err
			}
			img, err := r.render(ctx, view, idx)
			if err != nil {
				return fmt.Errorf("render %s slice %d: %w", view, idx, err)
			}
			if err := sink(img); err != nil {
				return err
			}
		}
	}
	return nil
}

func (r *Renderer) render(ctx context.Context, view volume.View, idx int) (Image, error) {
	sl := r.slicer.Slice(view, idx)
	pix, err := r.gpu.RenderSlice(ctx, gpu.SliceInput{
		Pixels:    sl.Pixels,
		Width:     uint32(sl.Width),  //nolint:gosec // volume dims are positive ints
		Height:    uint32(sl.Height), //nolint:gosec // volume dims are positive ints
		Quad:      r.set.Quad(&sl),
		Transform: r.set.ForView(view),
	})
	if err != nil {
		return Image{}, err
	}
	Logger().Debug("slice rendered", "view", view, "index", idx)
	return Image{
		View:   view,
		Index:  idx,
		Width:  r.settings.OutputSize[0],
		Height: r.settings.OutputSize[1],
		Pix:    pix,
	}, nil
}

// Close releases the GPU resources. Close is idempotent.
func (r *Renderer) Close() {
	if r.gpu != nil {
		r.gpu.Destroy()
		r.gpu = nil
	}
}
