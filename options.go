package slicer

import (
	"github.com/gogpu/gpucontext"
	"github.com/gogpu/wgpu/hal"
)

// Option configures a Renderer during creation.
//
// Example:
//
//	// Render on a device owned by a host application
//	r, err := slicer.New(settings, vol, nil, slicer.WithDeviceProvider(app))
type Option func(*options)

type options struct {
	provider gpucontext.DeviceProvider

	device  hal.Device
	queue   hal.Queue
	adapter hal.Adapter
}

// WithDeviceProvider renders on the device of p instead of opening one.
// The Renderer never destroys a provided device.
func WithDeviceProvider(p gpucontext.DeviceProvider) Option {
	return func(o *options) {
		o.provider = p
	}
}

// WithDevice renders on an already opened hal device. adapter may be nil,
// which disables multisampling. The Renderer never destroys the device.
func WithDevice(device hal.Device, queue hal.Queue, adapter hal.Adapter) Option {
	return func(o *options) {
		o.device = device
		o.queue = queue
		o.adapter = adapter
	}
}
