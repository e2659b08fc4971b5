package gpu

import (
	"errors"
	"fmt"

	"github.com/gogpu/gpucontext"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
)

// Errors returned while acquiring or driving the device.
var (
	ErrNoBackend    = errors.New("gpu: no usable backend registered")
	ErrNoAdapter    = errors.New("gpu: no compatible adapter found")
	ErrNotHAL       = errors.New("gpu: provider does not expose a hal device")
	ErrInvalidSize  = errors.New("gpu: output size must be positive")
	ErrReadbackSize = errors.New("gpu: readback size mismatch")
	ErrBusy         = errors.New("gpu: a slice is already being rendered")
)

// backendPreference is the order backends are tried in. BackendEmpty is
// the CPU software rasterizer and is only used when explicitly allowed.
var backendPreference = []gputypes.Backend{
	gputypes.BackendVulkan,
	gputypes.BackendMetal,
	gputypes.BackendDX12,
	gputypes.BackendGL,
}

// minCopyPitch is the WebGPU bytes-per-row alignment for texture copies.
// Devices may require more, never less.
const minCopyPitch = 256

// device bundles what Adapter.Open returns with the adapter facts the
// resource manager needs.
type device struct {
	instance hal.Instance // nil when the device is borrowed
	adapter  hal.Adapter
	info     gputypes.AdapterInfo
	device   hal.Device
	queue    hal.Queue

	copyPitch   uint32
	sampleCount uint32

	// software is set for the hal CPU rasterizer, which copies textures
	// as tightly packed 4-byte texels whatever their format.
	software bool
}

// openDevice walks the registered backends, picks an adapter and opens a
// device on it. Hardware adapters win over virtual ones; CPU adapters are
// considered only when allowSoftware is set.
func openDevice(allowSoftware bool) (*device, error) {
	order := backendPreference
	if allowSoftware {
		order = append(order[:len(order):len(order)], gputypes.BackendEmpty)
	}

	var lastErr error = ErrNoBackend
	for _, variant := range order {
		backend, ok := hal.GetBackend(variant)
		if !ok {
			continue
		}
		d, err := openOnBackend(backend, allowSoftware)
		if err != nil {
			slogger().Debug("backend unusable", "backend", variant.String(), "err", err)
			lastErr = err
			continue
		}
		return d, nil
	}
	return nil, lastErr
}

func openOnBackend(backend hal.Backend, allowSoftware bool) (*device, error) {
	instance, err := backend.CreateInstance(&hal.InstanceDescriptor{Flags: 0})
	if err != nil {
		return nil, fmt.Errorf("create instance: %w", err)
	}

	adapters := instance.EnumerateAdapters(nil)
	selected := selectAdapter(adapters, allowSoftware)
	if selected == nil {
		instance.Destroy()
		return nil, fmt.Errorf("%w on %s (%d enumerated)", ErrNoAdapter, backend.Variant(), len(adapters))
	}

	openDev, err := selected.Adapter.Open(gputypes.Features(0), gputypes.DefaultLimits())
	if err != nil {
		instance.Destroy()
		return nil, fmt.Errorf("open device: %w", err)
	}

	d := &device{
		instance:    instance,
		adapter:     selected.Adapter,
		info:        selected.Info,
		device:      openDev.Device,
		queue:       openDev.Queue,
		copyPitch:   copyPitch(selected.Capabilities.AlignmentsMask.BufferCopyPitch),
		sampleCount: multisampleCount(selected.Adapter),
	}
	if isSoftware(selected.Info) {
		d.useSoftwareLayout()
	}
	slogger().Info("GPU adapter selected",
		"name", d.info.Name,
		"backend", backend.Variant().String(),
		"software", d.software,
		"samples", d.sampleCount,
		"copy_pitch", d.copyPitch)
	return d, nil
}

func selectAdapter(adapters []hal.ExposedAdapter, allowSoftware bool) *hal.ExposedAdapter {
	rank := func(t gputypes.DeviceType) int {
		switch t {
		case gputypes.DeviceTypeDiscreteGPU:
			return 4
		case gputypes.DeviceTypeIntegratedGPU:
			return 3
		case gputypes.DeviceTypeVirtualGPU, gputypes.DeviceTypeOther:
			return 2
		case gputypes.DeviceTypeCPU:
			if allowSoftware {
				return 1
			}
		}
		return 0
	}

	var best *hal.ExposedAdapter
	bestRank := 0
	for i := range adapters {
		if r := rank(adapters[i].Info.DeviceType); r > bestRank {
			best, bestRank = &adapters[i], r
		}
	}
	return best
}

// multisampleCount returns 4 when the color format supports
// multisampling on the adapter, 1 otherwise.
func multisampleCount(adapter hal.Adapter) uint32 {
	if adapter == nil {
		return 1
	}
	caps := adapter.TextureFormatCapabilities(colorFormat)
	if caps.Flags&hal.TextureFormatCapabilityMultisample != 0 &&
		caps.Flags&hal.TextureFormatCapabilityMultisampleResolve != 0 {
		return 4
	}
	return 1
}

// isSoftware reports whether info describes the hal software backend.
// The noop backend shares BackendEmpty but is not a CPU device.
func isSoftware(info gputypes.AdapterInfo) bool {
	return info.Backend == gputypes.BackendEmpty && info.DeviceType == gputypes.DeviceTypeCPU
}

// useSoftwareLayout switches to RGBA8 sources and unpadded copy rows.
func (d *device) useSoftwareLayout() {
	d.software = true
	d.copyPitch = 1
}

func copyPitch(p uint64) uint32 {
	if p < minCopyPitch {
		return minCopyPitch
	}
	return uint32(p) //nolint:gosec // copy pitch alignments are small powers of two
}

// borrowedDevice wraps a device owned by someone else. It is never
// destroyed by Context.Destroy.
func borrowedDevice(dev hal.Device, queue hal.Queue, adapter hal.Adapter) *device {
	return &device{
		adapter:     adapter,
		device:      dev,
		queue:       queue,
		copyPitch:   minCopyPitch,
		sampleCount: multisampleCount(adapter),
	}
}

// providerDevice extracts hal handles from a gpucontext.DeviceProvider.
func providerDevice(p gpucontext.DeviceProvider) (*device, error) {
	dev, ok := p.Device().(hal.Device)
	if !ok {
		return nil, fmt.Errorf("%w: device is %T", ErrNotHAL, p.Device())
	}
	queue, ok := p.Queue().(hal.Queue)
	if !ok {
		return nil, fmt.Errorf("%w: queue is %T", ErrNotHAL, p.Queue())
	}
	adapter, _ := p.Adapter().(hal.Adapter)
	d := borrowedDevice(dev, queue, adapter)
	d.info.Name = p.AdapterInfo().Name
	return d, nil
}

func (d *device) destroy() {
	if d.instance == nil {
		return
	}
	if d.device != nil {
		d.device.Destroy()
		d.device = nil
	}
	d.instance.Destroy()
	d.instance = nil
}

// adapterType maps a hal device type to the gpucontext classification.
func adapterType(t gputypes.DeviceType) gpucontext.AdapterType {
	switch t {
	case gputypes.DeviceTypeDiscreteGPU:
		return gpucontext.AdapterTypeDiscrete
	case gputypes.DeviceTypeIntegratedGPU:
		return gpucontext.AdapterTypeIntegrated
	case gputypes.DeviceTypeCPU:
		return gpucontext.AdapterTypeSoftware
	default:
		return gpucontext.AdapterTypeUnknown
	}
}
