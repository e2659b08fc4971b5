package gpu

import (
	"fmt"
	"sync/atomic"

	"github.com/gogpu/gpucontext"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/slicer/fibers"
)

// Options configures a Context.
type Options struct {
	// Width and Height are the output image size in pixels.
	Width, Height uint32

	// White clears to white instead of black.
	White bool

	// AllowSoftware lets the CPU rasterizer backend serve when no hardware
	// adapter is available. Sources are then uploaded as RGBA8 with
	// unpadded rows, the only layout that backend copies correctly.
	AllowSoftware bool

	// MemoryBudgetMB caps the GPU memory the Context allocates. 0 selects
	// DefaultMaxMemoryMB.
	MemoryBudgetMB int
}

// Context owns a device (or borrows one), the two render pipelines, the
// render targets and every buffer needed to render one slice at a time.
//
// A Context renders one slice at a time. RenderSlice returns ErrBusy when
// called while another slice is in flight.
type Context struct {
	dev   *device
	opts  Options
	state atomic.Int32

	pipes   pipelines
	targets renderTargets
	res     resources
	mem     *memoryTracker
}

var _ gpucontext.DeviceProvider = (*Context)(nil)

// NewContext opens a device on the best available backend and prepares
// it for slice rendering.
func NewContext(opts Options) (*Context, error) {
	if opts.Width == 0 || opts.Height == 0 {
		return nil, fmt.Errorf("%w: %dx%d", ErrInvalidSize, opts.Width, opts.Height)
	}
	dev, err := openDevice(opts.AllowSoftware)
	if err != nil {
		return nil, err
	}
	c, err := newContext(dev, opts)
	if err != nil {
		dev.destroy()
		return nil, err
	}
	return c, nil
}

// NewContextWithDevice renders on a device owned by the caller. adapter
// may be nil, in which case multisampling is disabled. A borrowed device
// is assumed to honor texture formats and copy pitch, which the hal
// software backend does not.
func NewContextWithDevice(dev hal.Device, queue hal.Queue, adapter hal.Adapter, opts Options) (*Context, error) {
	if opts.Width == 0 || opts.Height == 0 {
		return nil, fmt.Errorf("%w: %dx%d", ErrInvalidSize, opts.Width, opts.Height)
	}
	return newContext(borrowedDevice(dev, queue, adapter), opts)
}

// NewContextFromProvider renders on the device of a gpucontext provider,
// typically a host application that already owns one.
func NewContextFromProvider(p gpucontext.DeviceProvider, opts Options) (*Context, error) {
	if opts.Width == 0 || opts.Height == 0 {
		return nil, fmt.Errorf("%w: %dx%d", ErrInvalidSize, opts.Width, opts.Height)
	}
	dev, err := providerDevice(p)
	if err != nil {
		return nil, err
	}
	return newContext(dev, opts)
}

func newContext(dev *device, opts Options) (*Context, error) {
	c := &Context{dev: dev, opts: opts, mem: newMemoryTracker(opts.MemoryBudgetMB)}
	c.res.mem = c.mem
	c.res.rgbaSource = dev.software
	d := dev.device

	if err := c.mem.alloc("render targets", targetBytes(opts.Width, opts.Height, dev.sampleCount)); err != nil {
		return nil, err
	}
	if err := c.pipes.build(d, dev.sampleCount); err != nil {
		return nil, err
	}
	if err := c.targets.ensure(d, opts.Width, opts.Height, dev.sampleCount); err != nil {
		c.pipes.destroy(d)
		return nil, err
	}
	if err := c.res.ensureStatic(d, &c.pipes, opts.Width, opts.Height, dev.copyPitch); err != nil {
		c.targets.destroy(d)
		c.pipes.destroy(d)
		return nil, err
	}
	slogger().Debug("slice context ready",
		"width", opts.Width,
		"height", opts.Height,
		"samples", dev.sampleCount,
		"white", opts.White,
		"memory", c.mem.stats().String())
	return c, nil
}

// UploadFibers uploads fiber batches once; every following RenderSlice
// draws them over the slice. Calling it again replaces the previous set.
func (c *Context) UploadFibers(batches []*fibers.Batch) error {
	if !c.state.CompareAndSwap(int32(StateIdle), int32(StateRecording)) {
		return ErrBusy
	}
	defer c.state.Store(int32(StateIdle))

	c.res.destroyFibers(c.dev.device)
	if err := c.res.uploadFibers(c.dev.device, c.dev.queue, batches); err != nil {
		c.res.destroyFibers(c.dev.device)
		return fmt.Errorf("upload fibers: %w", err)
	}
	slogger().Debug("fibers uploaded", "batches", len(c.res.fibers), "memory", c.mem.stats().String())
	return nil
}

// AppendFibers uploads one more batch, keeping those already uploaded.
// It lets a caller stream batches from a fibers.Batcher without holding
// them all in host memory. On failure the resident set is unchanged.
func (c *Context) AppendFibers(batch *fibers.Batch) error {
	if !c.state.CompareAndSwap(int32(StateIdle), int32(StateRecording)) {
		return ErrBusy
	}
	defer c.state.Store(int32(StateIdle))

	if err := c.res.appendFibers(c.dev.device, c.dev.queue, batch); err != nil {
		return fmt.Errorf("append fibers: %w", err)
	}
	return nil
}

// ClearFibers releases every uploaded fiber batch.
func (c *Context) ClearFibers() error {
	if !c.state.CompareAndSwap(int32(StateIdle), int32(StateRecording)) {
		return ErrBusy
	}
	defer c.state.Store(int32(StateIdle))

	c.res.destroyFibers(c.dev.device)
	return nil
}

// FiberBatches returns the number of uploaded fiber batches.
func (c *Context) FiberBatches() int { return len(c.res.fibers) }

// MemoryStats reports the GPU memory allocated by the Context.
func (c *Context) MemoryStats() MemoryStats { return c.mem.stats() }

// Width returns the output width in pixels.
func (c *Context) Width() uint32 { return c.opts.Width }

// Height returns the output height in pixels.
func (c *Context) Height() uint32 { return c.opts.Height }

// SampleCount returns the MSAA sample count in use.
func (c *Context) SampleCount() uint32 { return c.dev.sampleCount }

// State reports what the context is doing.
func (c *Context) State() State { return State(c.state.Load()) }

// Device returns the hal.Device.
func (c *Context) Device() gpucontext.Device { return c.dev.device }

// Queue returns the hal.Queue.
func (c *Context) Queue() gpucontext.Queue { return c.dev.queue }

// Adapter returns the hal.Adapter, or nil for a borrowed device without one.
func (c *Context) Adapter() gpucontext.Adapter { return c.dev.adapter }

// SurfaceFormat returns Undefined: a Context renders offscreen only.
func (c *Context) SurfaceFormat() gputypes.TextureFormat {
	return gputypes.TextureFormatUndefined
}

// AdapterInfo describes the adapter in use.
func (c *Context) AdapterInfo() gpucontext.AdapterInfo {
	return gpucontext.AdapterInfo{
		Name: c.dev.info.Name,
		Type: adapterType(c.dev.info.DeviceType),
	}
}

// Destroy releases every GPU object. An owned device is closed as well.
func (c *Context) Destroy() {
	if c.dev == nil {
		return
	}
	d := c.dev.device
	c.res.destroy(d)
	c.targets.destroy(d)
	c.mem.free(targetBytes(c.opts.Width, c.opts.Height, c.dev.sampleCount))
	c.pipes.destroy(d)
	c.dev.destroy()
	c.dev = nil
}
