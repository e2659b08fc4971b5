package gpu

import (
	"testing"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
	"github.com/gogpu/wgpu/hal/noop"
)

// createNoopDevice opens a device on the noop backend for testing.
func createNoopDevice(t *testing.T) (hal.Device, hal.Queue, hal.Adapter, func()) {
	t.Helper()
	api := noop.API{}
	instance, err := api.CreateInstance(nil)
	if err != nil {
		t.Fatalf("CreateInstance failed: %v", err)
	}
	adapters := instance.EnumerateAdapters(nil)
	if len(adapters) == 0 {
		instance.Destroy()
		t.Fatal("noop backend enumerated no adapters")
	}
	openDev, err := adapters[0].Adapter.Open(0, gputypes.DefaultLimits())
	if err != nil {
		instance.Destroy()
		t.Fatalf("Open failed: %v", err)
	}
	cleanup := func() {
		openDev.Device.Destroy()
		instance.Destroy()
	}
	return openDev.Device, openDev.Queue, adapters[0].Adapter, cleanup
}

// newTestContext returns a Context on the noop device.
func newTestContext(t *testing.T, opts Options) *Context {
	t.Helper()
	dev, queue, adapter, cleanup := createNoopDevice(t)
	t.Cleanup(cleanup)

	c, err := NewContextWithDevice(dev, queue, adapter, opts)
	if err != nil {
		t.Fatalf("NewContextWithDevice: %v", err)
	}
	t.Cleanup(c.Destroy)
	return c
}
