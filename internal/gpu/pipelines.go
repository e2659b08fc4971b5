package gpu

import (
	"fmt"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/slicer/fibers"
)

const (
	// quadVertexStride is vec2 position + vec2 uv.
	quadVertexStride = 16

	// fiberVertexStride is vec3 position + vec3 color.
	fiberVertexStride = fibers.VertexSize

	// transformUniformSize is one column-major mat4x4<f32>.
	transformUniformSize = 64
)

// pipelines holds the two render pipelines and everything they are
// built from. Built once per Context and immutable afterwards.
type pipelines struct {
	resamplingShader hal.ShaderModule
	streamlineShader hal.ShaderModule

	sourceLayout    hal.BindGroupLayout // texture + sampler
	transformLayout hal.BindGroupLayout // mat4 uniform

	resamplingPipeLayout hal.PipelineLayout
	streamlinePipeLayout hal.PipelineLayout

	resampling hal.RenderPipeline
	streamline hal.RenderPipeline

	sampler hal.Sampler
}

// build compiles both shaders and creates the layouts, the sampler and
// the pipelines for the given sample count.
func (p *pipelines) build(device hal.Device, samples uint32) error {
	var err error
	if p.resamplingShader, err = createShaderModule(device, "resampling", resamplingShaderSource); err != nil {
		return err
	}
	if p.streamlineShader, err = createShaderModule(device, "streamline", streamlineShaderSource); err != nil {
		p.destroy(device)
		return err
	}

	p.sourceLayout, err = device.CreateBindGroupLayout(&hal.BindGroupLayoutDescriptor{
		Label: "source_layout",
		Entries: []gputypes.BindGroupLayoutEntry{
			{
				Binding:    0,
				Visibility: gputypes.ShaderStageFragment,
				Texture: &gputypes.TextureBindingLayout{
					SampleType:    gputypes.TextureSampleTypeFloat,
					ViewDimension: gputypes.TextureViewDimension2D,
				},
			},
			{
				Binding:    1,
				Visibility: gputypes.ShaderStageFragment,
				Sampler:    &gputypes.SamplerBindingLayout{Type: gputypes.SamplerBindingTypeFiltering},
			},
		},
	})
	if err != nil {
		p.destroy(device)
		return fmt.Errorf("create source bind group layout: %w", err)
	}

	p.transformLayout, err = device.CreateBindGroupLayout(&hal.BindGroupLayoutDescriptor{
		Label: "transform_layout",
		Entries: []gputypes.BindGroupLayoutEntry{
			{
				Binding:    0,
				Visibility: gputypes.ShaderStageVertex,
				Buffer:     &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeUniform},
			},
		},
	})
	if err != nil {
		p.destroy(device)
		return fmt.Errorf("create transform bind group layout: %w", err)
	}

	p.resamplingPipeLayout, err = device.CreatePipelineLayout(&hal.PipelineLayoutDescriptor{
		Label:            "resampling_pipe_layout",
		BindGroupLayouts: []hal.BindGroupLayout{p.sourceLayout},
	})
	if err != nil {
		p.destroy(device)
		return fmt.Errorf("create resampling pipeline layout: %w", err)
	}

	p.streamlinePipeLayout, err = device.CreatePipelineLayout(&hal.PipelineLayoutDescriptor{
		Label:            "streamline_pipe_layout",
		BindGroupLayouts: []hal.BindGroupLayout{p.transformLayout},
	})
	if err != nil {
		p.destroy(device)
		return fmt.Errorf("create streamline pipeline layout: %w", err)
	}

	p.sampler, err = device.CreateSampler(&hal.SamplerDescriptor{
		Label:        "source_sampler",
		AddressModeU: gputypes.AddressModeClampToEdge,
		AddressModeV: gputypes.AddressModeClampToEdge,
		AddressModeW: gputypes.AddressModeClampToEdge,
		MagFilter:    gputypes.FilterModeLinear,
		MinFilter:    gputypes.FilterModeLinear,
		MipmapFilter: gputypes.FilterModeLinear,
	})
	if err != nil {
		p.destroy(device)
		return fmt.Errorf("create source sampler: %w", err)
	}

	if p.resampling, err = p.createResamplingPipeline(device, samples); err != nil {
		p.destroy(device)
		return err
	}
	if p.streamline, err = p.createStreamlinePipeline(device, samples); err != nil {
		p.destroy(device)
		return err
	}
	slogger().Debug("pipelines built", "samples", samples)
	return nil
}

// createResamplingPipeline draws the slice quad. The pass always carries
// a depth attachment, so the pipeline declares one with an Always test
// and no writes.
func (p *pipelines) createResamplingPipeline(device hal.Device, samples uint32) (hal.RenderPipeline, error) {
	pipeline, err := device.CreateRenderPipeline(&hal.RenderPipelineDescriptor{
		Label:  "resampling_pipeline",
		Layout: p.resamplingPipeLayout,
		Vertex: hal.VertexState{
			Module:     p.resamplingShader,
			EntryPoint: "vs_main",
			Buffers:    quadVertexLayout(),
		},
		Fragment: &hal.FragmentState{
			Module:     p.resamplingShader,
			EntryPoint: "fs_main",
			Targets: []gputypes.ColorTargetState{
				{Format: colorFormat, WriteMask: gputypes.ColorWriteMaskAll},
			},
		},
		Primitive: gputypes.PrimitiveState{
			Topology:  gputypes.PrimitiveTopologyTriangleList,
			FrontFace: gputypes.FrontFaceCCW,
			CullMode:  gputypes.CullModeFront,
		},
		DepthStencil: depthState(false, gputypes.CompareFunctionAlways),
		Multisample: gputypes.MultisampleState{
			Count:                  samples,
			Mask:                   0xFFFFFFFF,
			AlphaToCoverageEnabled: samples > 1,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("create resampling pipeline: %w", err)
	}
	return pipeline, nil
}

func (p *pipelines) createStreamlinePipeline(device hal.Device, samples uint32) (hal.RenderPipeline, error) {
	pipeline, err := device.CreateRenderPipeline(&hal.RenderPipelineDescriptor{
		Label:  "streamline_pipeline",
		Layout: p.streamlinePipeLayout,
		Vertex: hal.VertexState{
			Module:     p.streamlineShader,
			EntryPoint: "vs_main",
			Buffers:    fiberVertexLayout(),
		},
		Fragment: &hal.FragmentState{
			Module:     p.streamlineShader,
			EntryPoint: "fs_main",
			Targets: []gputypes.ColorTargetState{
				{Format: colorFormat, WriteMask: gputypes.ColorWriteMaskAll},
			},
		},
		Primitive: gputypes.PrimitiveState{
			Topology:  gputypes.PrimitiveTopologyLineList,
			FrontFace: gputypes.FrontFaceCCW,
			CullMode:  gputypes.CullModeNone,
		},
		DepthStencil: depthState(true, gputypes.CompareFunctionLessEqual),
		Multisample: gputypes.MultisampleState{
			Count: samples,
			Mask:  0xFFFFFFFF,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("create streamline pipeline: %w", err)
	}
	return pipeline, nil
}

func depthState(write bool, compare gputypes.CompareFunction) *hal.DepthStencilState {
	keep := hal.StencilFaceState{
		Compare:     gputypes.CompareFunctionAlways,
		FailOp:      hal.StencilOperationKeep,
		DepthFailOp: hal.StencilOperationKeep,
		PassOp:      hal.StencilOperationKeep,
	}
	return &hal.DepthStencilState{
		Format:            depthFormat,
		DepthWriteEnabled: write,
		DepthCompare:      compare,
		StencilFront:      keep,
		StencilBack:       keep,
		StencilReadMask:   0xFF,
		StencilWriteMask:  0,
	}
}

func quadVertexLayout() []gputypes.VertexBufferLayout {
	return []gputypes.VertexBufferLayout{
		{
			ArrayStride: quadVertexStride,
			StepMode:    gputypes.VertexStepModeVertex,
			Attributes: []gputypes.VertexAttribute{
				{Format: gputypes.VertexFormatFloat32x2, Offset: 0, ShaderLocation: 0}, // position
				{Format: gputypes.VertexFormatFloat32x2, Offset: 8, ShaderLocation: 1}, // uv
			},
		},
	}
}

func fiberVertexLayout() []gputypes.VertexBufferLayout {
	return []gputypes.VertexBufferLayout{
		{
			ArrayStride: fiberVertexStride,
			StepMode:    gputypes.VertexStepModeVertex,
			Attributes: []gputypes.VertexAttribute{
				{Format: gputypes.VertexFormatFloat32x3, Offset: 0, ShaderLocation: 0},  // position
				{Format: gputypes.VertexFormatFloat32x3, Offset: 12, ShaderLocation: 1}, // color
			},
		},
	}
}

// destroy releases everything in reverse creation order. Safe on a
// partially built set.
func (p *pipelines) destroy(device hal.Device) {
	if p.streamline != nil {
		device.DestroyRenderPipeline(p.streamline)
		p.streamline = nil
	}
	if p.resampling != nil {
		device.DestroyRenderPipeline(p.resampling)
		p.resampling = nil
	}
	if p.sampler != nil {
		device.DestroySampler(p.sampler)
		p.sampler = nil
	}
	if p.streamlinePipeLayout != nil {
		device.DestroyPipelineLayout(p.streamlinePipeLayout)
		p.streamlinePipeLayout = nil
	}
	if p.resamplingPipeLayout != nil {
		device.DestroyPipelineLayout(p.resamplingPipeLayout)
		p.resamplingPipeLayout = nil
	}
	if p.transformLayout != nil {
		device.DestroyBindGroupLayout(p.transformLayout)
		p.transformLayout = nil
	}
	if p.sourceLayout != nil {
		device.DestroyBindGroupLayout(p.sourceLayout)
		p.sourceLayout = nil
	}
	if p.streamlineShader != nil {
		device.DestroyShaderModule(p.streamlineShader)
		p.streamlineShader = nil
	}
	if p.resamplingShader != nil {
		device.DestroyShaderModule(p.resamplingShader)
		p.resamplingShader = nil
	}
}
