//go:build !nogpu

package gpu

import (
	"fmt"

	"github.com/gogpu/gpucontext"
	"github.com/gogpu/wgpu/hal"
)

// FromGPUContext adapts a gpucontext.DeviceProvider — the handle a host
// application (e.g. one built on gogpu's own context package) hands to
// embedded GPU consumers it wants to share a device with — into the
// DeviceHandle this package's NewDeviceFromHandle accepts. It exists so a
// caller already holding a gpucontext.DeviceProvider never has to write
// its own HalDevice/HalQueue shim.
func FromGPUContext(p gpucontext.DeviceProvider) (DeviceHandle, error) {
	device, ok := any(p.Device()).(hal.Device)
	if !ok || device == nil {
		return nil, fmt.Errorf("%w: gpucontext provider's Device is not a hal.Device", ErrDeviceRequestFailed)
	}
	queue, ok := any(p.Queue()).(hal.Queue)
	if !ok || queue == nil {
		return nil, fmt.Errorf("%w: gpucontext provider's Queue is not a hal.Queue", ErrDeviceRequestFailed)
	}
	return halDeviceHandle{device: device, queue: queue}, nil
}
