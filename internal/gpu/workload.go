package gpu

import (
	"context"
	"fmt"
	"unsafe"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/slicer/transform"
)

// State is the lifecycle position of a Context.
type State int32

const (
	// StateIdle accepts a new slice.
	StateIdle State = iota

	// StateRecording is uploading buffers and encoding commands.
	StateRecording

	// StateSubmitted is waiting for the GPU to finish.
	StateSubmitted

	// StateReading is copying the mapped transfer buffer to host memory.
	StateReading
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "Idle"
	case StateRecording:
		return "Recording"
	case StateSubmitted:
		return "Submitted"
	case StateReading:
		return "Reading"
	default:
		return fmt.Sprintf("State(%d)", int32(s))
	}
}

// SliceInput is everything RenderSlice needs for one image.
type SliceInput struct {
	// Pixels holds Width*Height 8-bit intensities, row 0 first.
	Pixels        []byte
	Width, Height uint32

	// Quad is the screen-space rectangle the slice is resampled onto.
	Quad [transform.QuadVertexCount]transform.QuadVertex

	// Transform maps fiber voxel coordinates to clip space for this view.
	Transform mgl32.Mat4
}

// RenderSlice draws one slice and any uploaded fibers, waits for the GPU
// and returns the image as tightly packed RGBA rows, top row first.
func (c *Context) RenderSlice(ctx context.Context, in SliceInput) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if c.dev == nil {
		return nil, fmt.Errorf("render slice: context destroyed")
	}
	if !c.state.CompareAndSwap(int32(StateIdle), int32(StateRecording)) {
		return nil, ErrBusy
	}
	defer c.state.Store(int32(StateIdle))

	d, q := c.dev.device, c.dev.queue

	if err := c.res.uploadSource(d, q, &c.pipes, in.Pixels, in.Width, in.Height, c.dev.copyPitch); err != nil {
		return nil, err
	}
	if err := q.WriteBuffer(c.res.quadBuf, 0, packQuad(in.Quad)); err != nil {
		return nil, fmt.Errorf("write quad: %w", err)
	}
	if len(c.res.fibers) > 0 {
		if err := q.WriteBuffer(c.res.transformBuf, 0, packMat4(in.Transform)); err != nil {
			return nil, fmt.Errorf("write transform: %w", err)
		}
	}

	cmdBuf, err := c.encode()
	if err != nil {
		return nil, err
	}
	defer d.FreeCommandBuffer(cmdBuf)

	c.state.Store(int32(StateSubmitted))
	if _, err := q.Submit([]hal.CommandBuffer{cmdBuf}); err != nil {
		return nil, fmt.Errorf("submit: %w", err)
	}
	if err := d.WaitIdle(); err != nil {
		return nil, fmt.Errorf("wait for GPU: %w", err)
	}

	c.state.Store(int32(StateReading))
	return c.readback()
}

// encode records the slice pass, then copies the resolved image into the
// transfer buffer.
func (c *Context) encode() (hal.CommandBuffer, error) {
	encoder, err := c.dev.device.CreateCommandEncoder(&hal.CommandEncoderDescriptor{
		Label: "slice_encoder",
	})
	if err != nil {
		return nil, fmt.Errorf("create command encoder: %w", err)
	}
	if err := encoder.BeginEncoding("slice"); err != nil {
		return nil, fmt.Errorf("begin encoding: %w", err)
	}

	clear := gputypes.Color{R: 0, G: 0, B: 0, A: 1}
	if c.opts.White {
		clear = gputypes.Color{R: 1, G: 1, B: 1, A: 1}
	}

	rp := encoder.BeginRenderPass(&hal.RenderPassDescriptor{
		Label:                  "slice_pass",
		ColorAttachments:       []hal.RenderPassColorAttachment{c.targets.colorAttachment(clear)},
		DepthStencilAttachment: c.targets.depthAttachment(),
	})

	rp.SetPipeline(c.pipes.resampling)
	rp.SetBindGroup(0, c.res.sourceBind, nil)
	rp.SetVertexBuffer(0, c.res.quadBuf, 0)
	rp.Draw(transform.QuadVertexCount, 1, 0, 0)

	if len(c.res.fibers) > 0 {
		rp.SetPipeline(c.pipes.streamline)
		rp.SetBindGroup(0, c.res.transformBind, nil)
		for _, fb := range c.res.fibers {
			rp.SetVertexBuffer(0, fb.vertices, 0)
			rp.SetIndexBuffer(fb.indices, gputypes.IndexFormatUint32, 0)
			rp.DrawIndexed(fb.indexCount, 1, 0, 0, 0)
		}
	}
	rp.End()

	// The resolve texture leaves the pass as a render attachment; the copy
	// needs it as a copy source, and the next pass needs it back.
	resolve := c.targets.resolveTex
	encoder.TransitionTextures([]hal.TextureBarrier{{
		Texture: resolve,
		Usage: hal.TextureUsageTransition{
			OldUsage: gputypes.TextureUsageRenderAttachment,
			NewUsage: gputypes.TextureUsageCopySrc,
		},
	}})
	encoder.CopyTextureToBuffer(resolve, c.res.transferBuf, []hal.BufferTextureCopy{{
		BufferLayout: hal.ImageDataLayout{
			Offset:       0,
			BytesPerRow:  c.res.transfer.padded,
			RowsPerImage: c.res.transfer.rows,
		},
		TextureBase: hal.ImageCopyTexture{Texture: resolve, MipLevel: 0},
		Size:        hal.Extent3D{Width: c.opts.Width, Height: c.opts.Height, DepthOrArrayLayers: 1},
	}})
	encoder.TransitionTextures([]hal.TextureBarrier{{
		Texture: resolve,
		Usage: hal.TextureUsageTransition{
			OldUsage: gputypes.TextureUsageCopySrc,
			NewUsage: gputypes.TextureUsageRenderAttachment,
		},
	}})

	cmdBuf, err := encoder.EndEncoding()
	if err != nil {
		return nil, fmt.Errorf("end encoding: %w", err)
	}
	return cmdBuf, nil
}

// readback maps the transfer buffer and strips the row padding. Clip-space
// y=+1 lands in texture row 0, so the rows come back top first.
func (c *Context) readback() ([]byte, error) {
	d := c.dev.device
	stride := c.res.transfer
	size := stride.size()

	mapping, err := d.MapBuffer(c.res.transferBuf, 0, size)
	if err != nil {
		return nil, fmt.Errorf("map transfer buffer: %w", err)
	}
	if !mapping.IsCoherent {
		slogger().Debug("transfer buffer mapping is not coherent")
	}
	padded := make([]byte, size)
	copy(padded, unsafe.Slice((*byte)(mapping.Ptr), size))
	if err := d.UnmapBuffer(c.res.transferBuf); err != nil {
		return nil, fmt.Errorf("unmap transfer buffer: %w", err)
	}

	pixels, err := stride.strip(padded)
	if err != nil {
		return nil, err
	}
	want := int(c.opts.Width) * int(c.opts.Height) * 4
	if len(pixels) != want {
		return nil, fmt.Errorf("%w: got %d bytes, want %d", ErrReadbackSize, len(pixels), want)
	}
	return pixels, nil
}
