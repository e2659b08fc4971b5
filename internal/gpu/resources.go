package gpu

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/slicer/fibers"
	"github.com/gogpu/slicer/transform"
)

// Source textures hold one 8-bit intensity per texel. On the software
// rasterizer the intensity is replicated into RGBA8 instead; the
// resampling shader reads only the red channel either way.
const (
	graySourceFormat = gputypes.TextureFormatR8Unorm
	rgbaSourceFormat = gputypes.TextureFormatRGBA8Unorm
)

// fiberBuffers is one uploaded fiber batch.
type fiberBuffers struct {
	vertices   hal.Buffer
	indices    hal.Buffer
	indexCount uint32
	bytes      uint64
}

// resources owns the buffers and textures rewritten for every slice, and
// the fiber buffers uploaded once.
type resources struct {
	sourceTex  hal.Texture
	sourceView hal.TextureView
	sourceBind hal.BindGroup
	sourceW    uint32
	sourceH    uint32

	quadBuf       hal.Buffer
	transformBuf  hal.Buffer
	transformBind hal.BindGroup

	transferBuf hal.Buffer
	transfer    rowStride

	fibers []fiberBuffers

	mem         *memoryTracker
	staticBytes uint64
	sourceBytes uint64
	rgbaSource  bool
}

// ensureStatic creates the quad, transform and transfer buffers. The
// transfer buffer is sized for w x h RGBA rows padded to pitch.
func (r *resources) ensureStatic(device hal.Device, p *pipelines, w, h, pitch uint32) error {
	stride := newRowStride(w, h, 4, pitch)
	if r.quadBuf != nil && r.transfer == stride {
		return nil
	}
	r.destroyStatic(device)

	bytes := transform.QuadVertexCount*quadVertexStride + transformUniformSize + stride.size()
	if err := r.mem.alloc("slice buffers", bytes); err != nil {
		return err
	}
	r.staticBytes = bytes

	var err error
	r.quadBuf, err = device.CreateBuffer(&hal.BufferDescriptor{
		Label: "quad_vertices",
		Size:  transform.QuadVertexCount * quadVertexStride,
		Usage: gputypes.BufferUsageVertex | gputypes.BufferUsageCopyDst,
	})
	if err != nil {
		return fmt.Errorf("create quad buffer: %w", err)
	}

	r.transformBuf, err = device.CreateBuffer(&hal.BufferDescriptor{
		Label: "transform_uniform",
		Size:  transformUniformSize,
		Usage: gputypes.BufferUsageUniform | gputypes.BufferUsageCopyDst,
	})
	if err != nil {
		r.destroyStatic(device)
		return fmt.Errorf("create transform buffer: %w", err)
	}

	r.transformBind, err = device.CreateBindGroup(&hal.BindGroupDescriptor{
		Label:  "transform_bind",
		Layout: p.transformLayout,
		Entries: []gputypes.BindGroupEntry{
			{Binding: 0, Resource: gputypes.BufferBinding{
				Buffer: r.transformBuf.NativeHandle(), Offset: 0, Size: transformUniformSize,
			}},
		},
	})
	if err != nil {
		r.destroyStatic(device)
		return fmt.Errorf("create transform bind group: %w", err)
	}

	r.transferBuf, err = device.CreateBuffer(&hal.BufferDescriptor{
		Label: "transfer",
		Size:  stride.size(),
		Usage: gputypes.BufferUsageMapRead | gputypes.BufferUsageCopyDst,
	})
	if err != nil {
		r.destroyStatic(device)
		return fmt.Errorf("create transfer buffer: %w", err)
	}
	r.transfer = stride

	slogger().Debug("static buffers created",
		"transfer_bytes", stride.size(),
		"row_bytes", stride.unpadded,
		"padded_row_bytes", stride.padded)
	return nil
}

// uploadSource writes a w x h 8-bit image into the source texture,
// recreating the texture and its bind group when the size changes.
func (r *resources) uploadSource(device hal.Device, queue hal.Queue, p *pipelines, pixels []byte, w, h, pitch uint32) error {
	if uint64(len(pixels)) != uint64(w)*uint64(h) {
		return fmt.Errorf("%w: source has %d bytes for %dx%d", ErrReadbackSize, len(pixels), w, h)
	}
	if r.sourceTex == nil || r.sourceW != w || r.sourceH != h {
		if err := r.createSource(device, p, w, h); err != nil {
			return err
		}
	}

	format, bpp := r.sourceTexel()
	if format == rgbaSourceFormat {
		pixels = expandGray(pixels)
	}
	stride := newRowStride(w, h, bpp, pitch)
	err := queue.WriteTexture(
		&hal.ImageCopyTexture{Texture: r.sourceTex, MipLevel: 0},
		stride.pad(pixels),
		&hal.ImageDataLayout{Offset: 0, BytesPerRow: stride.padded, RowsPerImage: h},
		&hal.Extent3D{Width: w, Height: h, DepthOrArrayLayers: 1},
	)
	if err != nil {
		return fmt.Errorf("upload source texture: %w", err)
	}
	return nil
}

// sourceTexel returns the source texture format and its bytes per texel.
func (r *resources) sourceTexel() (gputypes.TextureFormat, uint32) {
	if r.rgbaSource {
		return rgbaSourceFormat, 4
	}
	return graySourceFormat, 1
}

// expandGray replicates each intensity into an opaque RGBA texel.
func expandGray(gray []byte) []byte {
	out := make([]byte, 4*len(gray))
	for i, v := range gray {
		o := out[4*i : 4*i+4]
		o[0], o[1], o[2], o[3] = v, v, v, 0xff
	}
	return out
}

func (r *resources) createSource(device hal.Device, p *pipelines, w, h uint32) error {
	r.destroySource(device)

	format, bpp := r.sourceTexel()
	bytes := uint64(w) * uint64(h) * uint64(bpp)
	if err := r.mem.alloc("source texture", bytes); err != nil {
		return err
	}
	r.sourceBytes = bytes

	tex, err := device.CreateTexture(&hal.TextureDescriptor{
		Label:         "source",
		Size:          hal.Extent3D{Width: w, Height: h, DepthOrArrayLayers: 1},
		MipLevelCount: 1,
		SampleCount:   1,
		Dimension:     gputypes.TextureDimension2D,
		Format:        format,
		Usage:         gputypes.TextureUsageTextureBinding | gputypes.TextureUsageCopyDst,
	})
	if err != nil {
		return fmt.Errorf("create source texture: %w", err)
	}
	r.sourceTex = tex

	view, err := device.CreateTextureView(tex, &hal.TextureViewDescriptor{
		Label:     "source_view",
		Format:    format,
		Dimension: gputypes.TextureViewDimension2D,
		Aspect:    gputypes.TextureAspectAll,
	})
	if err != nil {
		r.destroySource(device)
		return fmt.Errorf("create source view: %w", err)
	}
	r.sourceView = view

	bind, err := device.CreateBindGroup(&hal.BindGroupDescriptor{
		Label:  "source_bind",
		Layout: p.sourceLayout,
		Entries: []gputypes.BindGroupEntry{
			{Binding: 0, Resource: gputypes.TextureViewBinding{TextureView: view.NativeHandle()}},
			{Binding: 1, Resource: gputypes.SamplerBinding{Sampler: p.sampler.NativeHandle()}},
		},
	})
	if err != nil {
		r.destroySource(device)
		return fmt.Errorf("create source bind group: %w", err)
	}
	r.sourceBind = bind
	r.sourceW, r.sourceH = w, h
	return nil
}

// uploadFibers creates one vertex/index buffer pair per batch. Fiber
// geometry does not change between slices, so this runs once.
func (r *resources) uploadFibers(device hal.Device, queue hal.Queue, batches []*fibers.Batch) error {
	for _, b := range batches {
		if err := r.appendFibers(device, queue, b); err != nil {
			return err
		}
	}
	return nil
}

// appendFibers uploads one batch after those already resident. Batches
// without segments are ignored.
func (r *resources) appendFibers(device hal.Device, queue hal.Queue, b *fibers.Batch) error {
	if len(b.Indices) == 0 {
		return nil
	}
	i := len(r.fibers)
	vb, ib := packFiberBatch(b)
	bytes := uint64(len(vb) + len(ib))
	if err := r.mem.alloc(fmt.Sprintf("fiber batch %d", i), bytes); err != nil {
		return err
	}

	vertices, err := createAndUploadBuffer(device, queue, fmt.Sprintf("fiber_vertices_%d", i), vb,
		gputypes.BufferUsageVertex|gputypes.BufferUsageCopyDst)
	if err != nil {
		r.mem.free(bytes)
		return err
	}
	indices, err := createAndUploadBuffer(device, queue, fmt.Sprintf("fiber_indices_%d", i), ib,
		gputypes.BufferUsageIndex|gputypes.BufferUsageCopyDst)
	if err != nil {
		device.DestroyBuffer(vertices)
		r.mem.free(bytes)
		return err
	}
	r.fibers = append(r.fibers, fiberBuffers{
		vertices:   vertices,
		indices:    indices,
		indexCount: uint32(len(b.Indices)), //nolint:gosec // bounded by batch size
		bytes:      bytes,
	})
	slogger().Debug("fiber batch uploaded", "batch", i, "vertices", len(b.Vertices), "segments", b.Segments())
	return nil
}

func createAndUploadBuffer(device hal.Device, queue hal.Queue, label string, data []byte, usage gputypes.BufferUsage) (hal.Buffer, error) {
	buf, err := device.CreateBuffer(&hal.BufferDescriptor{
		Label: label,
		Size:  uint64(len(data)),
		Usage: usage,
	})
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", label, err)
	}
	if err := queue.WriteBuffer(buf, 0, data); err != nil {
		device.DestroyBuffer(buf)
		return nil, fmt.Errorf("write %s: %w", label, err)
	}
	return buf, nil
}

func (r *resources) destroySource(device hal.Device) {
	if r.sourceBind != nil {
		device.DestroyBindGroup(r.sourceBind)
		r.sourceBind = nil
	}
	if r.sourceView != nil {
		device.DestroyTextureView(r.sourceView)
		r.sourceView = nil
	}
	if r.sourceTex != nil {
		device.DestroyTexture(r.sourceTex)
		r.sourceTex = nil
	}
	if r.sourceBytes > 0 {
		r.mem.free(r.sourceBytes)
		r.sourceBytes = 0
	}
	r.sourceW, r.sourceH = 0, 0
}

func (r *resources) destroyStatic(device hal.Device) {
	if r.transferBuf != nil {
		device.DestroyBuffer(r.transferBuf)
		r.transferBuf = nil
	}
	if r.transformBind != nil {
		device.DestroyBindGroup(r.transformBind)
		r.transformBind = nil
	}
	if r.transformBuf != nil {
		device.DestroyBuffer(r.transformBuf)
		r.transformBuf = nil
	}
	if r.quadBuf != nil {
		device.DestroyBuffer(r.quadBuf)
		r.quadBuf = nil
	}
	if r.staticBytes > 0 {
		r.mem.free(r.staticBytes)
		r.staticBytes = 0
	}
	r.transfer = rowStride{}
}

func (r *resources) destroyFibers(device hal.Device) {
	for _, f := range r.fibers {
		device.DestroyBuffer(f.indices)
		device.DestroyBuffer(f.vertices)
		r.mem.free(f.bytes)
	}
	r.fibers = nil
}

func (r *resources) destroy(device hal.Device) {
	r.destroyFibers(device)
	r.destroySource(device)
	r.destroyStatic(device)
}

func putFloat32(buf []byte, v float32) {
	binary.LittleEndian.PutUint32(buf, math.Float32bits(v))
}

// packQuad serializes the resampling quad for the vertex buffer.
func packQuad(quad [transform.QuadVertexCount]transform.QuadVertex) []byte {
	out := make([]byte, transform.QuadVertexCount*quadVertexStride)
	for i, v := range quad {
		o := out[i*quadVertexStride:]
		putFloat32(o[0:], v.Pos[0])
		putFloat32(o[4:], v.Pos[1])
		putFloat32(o[8:], v.UV[0])
		putFloat32(o[12:], v.UV[1])
	}
	return out
}

// packMat4 serializes a column-major matrix for a mat4x4<f32> uniform.
func packMat4(m mgl32.Mat4) []byte {
	out := make([]byte, transformUniformSize)
	for i, v := range m {
		putFloat32(out[i*4:], v)
	}
	return out
}

// packFiberBatch serializes a batch into vertex and index buffer bytes.
func packFiberBatch(b *fibers.Batch) (vertices, indices []byte) {
	vertices = make([]byte, len(b.Vertices)*fiberVertexStride)
	for i, v := range b.Vertices {
		o := vertices[i*fiberVertexStride:]
		for j := range 3 {
			putFloat32(o[j*4:], v.Position[j])
			putFloat32(o[12+j*4:], v.Color[j])
		}
	}
	indices = make([]byte, len(b.Indices)*4)
	for i, idx := range b.Indices {
		binary.LittleEndian.PutUint32(indices[i*4:], idx)
	}
	return vertices, indices
}
