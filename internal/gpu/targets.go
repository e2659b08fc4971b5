package gpu

import (
	"fmt"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
)

const (
	// colorFormat is the render and readback format. RGBA byte order
	// means the readback needs no channel swizzle.
	colorFormat = gputypes.TextureFormatRGBA8Unorm

	// depthFormat backs the depth test of the streamline pipeline.
	depthFormat = gputypes.TextureFormatDepth24PlusStencil8
)

// renderTargets holds the attachments of the slice render pass:
//   - MSAA color: sampleCount samples, RGBA8Unorm, RenderAttachment
//   - Depth: sampleCount samples, Depth24PlusStencil8, RenderAttachment
//   - Resolve: 1 sample, RGBA8Unorm, RenderAttachment | CopySrc
//
// With a sample count of 1 there is no MSAA texture and the pass draws
// straight into the resolve texture.
type renderTargets struct {
	msaaTex     hal.Texture
	msaaView    hal.TextureView
	depthTex    hal.Texture
	depthView   hal.TextureView
	resolveTex  hal.Texture
	resolveView hal.TextureView
	width       uint32
	height      uint32
	samples     uint32
}

// ensure creates the attachments if the size or sample count changed.
func (rt *renderTargets) ensure(device hal.Device, w, h, samples uint32) error {
	if rt.width == w && rt.height == h && rt.samples == samples && rt.resolveTex != nil {
		return nil
	}
	rt.destroy(device)

	size := hal.Extent3D{Width: w, Height: h, DepthOrArrayLayers: 1}

	resolveTex, err := device.CreateTexture(&hal.TextureDescriptor{
		Label:         "slice_resolve",
		Size:          size,
		MipLevelCount: 1,
		SampleCount:   1,
		Dimension:     gputypes.TextureDimension2D,
		Format:        colorFormat,
		Usage:         gputypes.TextureUsageRenderAttachment | gputypes.TextureUsageCopySrc,
	})
	if err != nil {
		return fmt.Errorf("create resolve texture: %w", err)
	}
	rt.resolveTex = resolveTex

	resolveView, err := device.CreateTextureView(resolveTex, &hal.TextureViewDescriptor{
		Label: "slice_resolve_view",
	})
	if err != nil {
		rt.destroy(device)
		return fmt.Errorf("create resolve view: %w", err)
	}
	rt.resolveView = resolveView

	if samples > 1 {
		msaaTex, err := device.CreateTexture(&hal.TextureDescriptor{
			Label:         "slice_msaa_color",
			Size:          size,
			MipLevelCount: 1,
			SampleCount:   samples,
			Dimension:     gputypes.TextureDimension2D,
			Format:        colorFormat,
			Usage:         gputypes.TextureUsageRenderAttachment,
		})
		if err != nil {
			rt.destroy(device)
			return fmt.Errorf("create MSAA color texture: %w", err)
		}
		rt.msaaTex = msaaTex

		msaaView, err := device.CreateTextureView(msaaTex, &hal.TextureViewDescriptor{
			Label: "slice_msaa_color_view",
		})
		if err != nil {
			rt.destroy(device)
			return fmt.Errorf("create MSAA color view: %w", err)
		}
		rt.msaaView = msaaView
	}

	depthTex, err := device.CreateTexture(&hal.TextureDescriptor{
		Label:         "slice_depth",
		Size:          size,
		MipLevelCount: 1,
		SampleCount:   samples,
		Dimension:     gputypes.TextureDimension2D,
		Format:        depthFormat,
		Usage:         gputypes.TextureUsageRenderAttachment,
	})
	if err != nil {
		rt.destroy(device)
		return fmt.Errorf("create depth texture: %w", err)
	}
	rt.depthTex = depthTex

	depthView, err := device.CreateTextureView(depthTex, &hal.TextureViewDescriptor{
		Label: "slice_depth_view",
	})
	if err != nil {
		rt.destroy(device)
		return fmt.Errorf("create depth view: %w", err)
	}
	rt.depthView = depthView

	rt.width = w
	rt.height = h
	rt.samples = samples
	return nil
}

// colorAttachment returns the pass color attachment, resolving into the
// readback texture when multisampled.
func (rt *renderTargets) colorAttachment(clear gputypes.Color) hal.RenderPassColorAttachment {
	a := hal.RenderPassColorAttachment{
		View:       rt.resolveView,
		LoadOp:     gputypes.LoadOpClear,
		StoreOp:    gputypes.StoreOpStore,
		ClearValue: clear,
	}
	if rt.msaaView != nil {
		a.View = rt.msaaView
		a.ResolveTarget = rt.resolveView
		a.StoreOp = gputypes.StoreOpDiscard
	}
	return a
}

func (rt *renderTargets) depthAttachment() *hal.RenderPassDepthStencilAttachment {
	return &hal.RenderPassDepthStencilAttachment{
		View:              rt.depthView,
		DepthLoadOp:       gputypes.LoadOpClear,
		DepthStoreOp:      gputypes.StoreOpDiscard,
		DepthClearValue:   1.0,
		StencilLoadOp:     gputypes.LoadOpClear,
		StencilStoreOp:    gputypes.StoreOpDiscard,
		StencilClearValue: 0,
	}
}

// destroy releases all attachments and resets the recorded size.
func (rt *renderTargets) destroy(device hal.Device) {
	if rt.depthView != nil {
		device.DestroyTextureView(rt.depthView)
		rt.depthView = nil
	}
	if rt.depthTex != nil {
		device.DestroyTexture(rt.depthTex)
		rt.depthTex = nil
	}
	if rt.msaaView != nil {
		device.DestroyTextureView(rt.msaaView)
		rt.msaaView = nil
	}
	if rt.msaaTex != nil {
		device.DestroyTexture(rt.msaaTex)
		rt.msaaTex = nil
	}
	if rt.resolveView != nil {
		device.DestroyTextureView(rt.resolveView)
		rt.resolveView = nil
	}
	if rt.resolveTex != nil {
		device.DestroyTexture(rt.resolveTex)
		rt.resolveTex = nil
	}
	rt.width = 0
	rt.height = 0
	rt.samples = 0
}
