// Package gpu renders volume slices and streamline overlays offscreen.
//
// It drives the gogpu/wgpu HAL directly (Vulkan, Metal, DX12 or GLES,
// with a CPU rasterizer as an opt-in fallback) and reads every finished
// image back into host memory.
//
// # Architecture Overview
//
//	SliceInput -> upload source texture -> resampling pass -> streamline pass -> resolve -> copy -> readback
//
// Key components:
//
//   - Context: owns or borrows a device and every GPU object below
//   - renderTargets: MSAA color, depth and single-sample resolve textures
//   - resources: source texture, quad/transform/transfer buffers, fiber buffers
//   - pipelines: the resampling and streamline render pipelines
//   - memoryTracker: accounts allocations against a memory budget
//
// # Workload
//
// RenderSlice moves through a small state machine:
//
//	Idle -> Recording -> Submitted -> Reading -> Idle
//
// A second call while a slice is in flight fails with ErrBusy. After
// submission the device is waited on with WaitIdle, the transfer buffer
// is mapped, and row padding required by the copy pitch is stripped.
//
// # Shaders
//
// WGSL sources under shaders/ are embedded and compiled to SPIR-V with
// gogpu/naga when the pipelines are built.
//
// # Multisampling
//
// The sample count is 4 when the adapter reports multisample support for
// RGBA8Unorm, otherwise 1. A Context built on a device without an
// adapter always uses 1.
package gpu
