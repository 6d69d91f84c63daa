//go:build !nogpu

package gpu

import (
	"errors"
	"fmt"
	"sync"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	// Registers the Vulkan backend via init() so hal.GetBackend finds it.
	_ "github.com/gogpu/wgpu/hal/vulkan"
)

// Device errors.
var (
	// ErrBackendUnavailable is returned when the Vulkan wgpu backend is not
	// registered on the current platform.
	ErrBackendUnavailable = errors.New("gpu: no compatible backend available")

	// ErrNoAdapter is returned when the backend exposes no adapters.
	ErrNoAdapter = errors.New("gpu: no GPU adapters found")

	// ErrDeviceRequestFailed is returned when opening a device on the
	// selected adapter fails.
	ErrDeviceRequestFailed = errors.New("gpu: device request failed")

	// ErrNotInitialized is returned when an operation requires a
	// Device that has not completed construction or has been closed.
	ErrNotInitialized = errors.New("gpu: device not initialized")

	// ErrNilHALDevice is returned when a hal.Device is required but nil.
	ErrNilHALDevice = errors.New("gpu: hal device is nil")
)

// Device owns the process-wide GPU instance, adapter, device and queue used
// by every compute operation. It is created once and shared by all
// ImageProcessor operations; construction is the only place that talks to
// the platform backend registry.
//
// Device is immutable once construction succeeds and is safe for concurrent reads
// from multiple goroutines; it carries no mutable operation state itself.
type Device struct {
	mu sync.RWMutex

	instance hal.Instance
	device   hal.Device
	queue    hal.Queue

	adapterName       string
	supportsTimestamp bool

	external    bool // true when device/queue came from a shared DeviceHandle
	initialized bool
}

// NewDevice acquires a high-performance GPU adapter and opens a device with
// the minimal feature set plus, when available, timestamp queries.
//
// Fails with ErrBackendUnavailable if no backend is registered for the
// current platform, ErrNoAdapter if the backend enumerates no adapters, or
// ErrDeviceRequestFailed if instance/device creation fails.
func NewDevice() (*Device, error) {
	backend, ok := hal.GetBackend(gputypes.BackendVulkan)
	if !ok {
		return nil, ErrBackendUnavailable
	}

	instance, err := backend.CreateInstance(&hal.InstanceDescriptor{Flags: 0})
	if err != nil {
		return nil, fmt.Errorf("%w: create instance: %w", ErrDeviceRequestFailed, err)
	}

	adapters := instance.EnumerateAdapters(nil)
	if len(adapters) == 0 {
		instance.Destroy()
		return nil, ErrNoAdapter
	}

	selected := pickHighPerformanceAdapter(adapters)

	features := gputypes.Features(0)
	if selected.Adapter.Features().Contains(gputypes.FeatureTimestampQuery) {
		features |= gputypes.FeatureTimestampQuery
	}

	opened, err := selected.Adapter.Open(features, gputypes.DefaultLimits())
	if err != nil {
		instance.Destroy()
		return nil, fmt.Errorf("%w: %w", ErrDeviceRequestFailed, err)
	}

	d := &Device{
		instance:          instance,
		device:            opened.Device,
		queue:             opened.Queue,
		adapterName:       selected.Info.Name,
		supportsTimestamp: features.Contains(gputypes.FeatureTimestampQuery),
		initialized:       true,
	}
	return d, nil
}

// NewDeviceFromHandle wraps an externally-owned device/queue pair (for
// example one shared by a host application via gpucontext.DeviceProvider)
// instead of creating a new instance. Close becomes a no-op for the
// device/queue/instance since this Device does not own them.
func NewDeviceFromHandle(h DeviceHandle) (*Device, error) {
	halDevice, ok := h.HalDevice().(hal.Device)
	if !ok || halDevice == nil {
		return nil, fmt.Errorf("%w: provider HalDevice is not a hal.Device", ErrDeviceRequestFailed)
	}
	halQueue, ok := h.HalQueue().(hal.Queue)
	if !ok || halQueue == nil {
		return nil, fmt.Errorf("%w: provider HalQueue is not a hal.Queue", ErrDeviceRequestFailed)
	}

	return &Device{
		device:      halDevice,
		queue:       halQueue,
		external:    true,
		initialized: true,
	}, nil
}

// pickHighPerformanceAdapter prefers a discrete GPU, then an integrated GPU,
// falling back to whatever the backend enumerated first.
func pickHighPerformanceAdapter(adapters []hal.ExposedAdapter) *hal.ExposedAdapter {
	for i := range adapters {
		if adapters[i].Info.DeviceType == gputypes.DeviceTypeDiscreteGPU {
			return &adapters[i]
		}
	}
	for i := range adapters {
		if adapters[i].Info.DeviceType == gputypes.DeviceTypeIntegratedGPU {
			return &adapters[i]
		}
	}
	return &adapters[0]
}

// HAL returns the underlying hal.Device. Used by resource constructors and
// compute modules inside this package and internal/quant.
func (d *Device) HAL() hal.Device {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.device
}

// Queue returns the underlying hal.Queue.
func (d *Device) Queue() hal.Queue {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.queue
}

// SupportsTimestamps reports whether the device was opened with the
// timestamp-query feature, enabling operation-level elapsed-time logging.
func (d *Device) SupportsTimestamps() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.supportsTimestamp
}

// AdapterName returns the selected adapter's driver-reported name, or "" for
// a device wrapping an externally-provided handle.
func (d *Device) AdapterName() string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.adapterName
}

// IsInitialized reports whether the device completed construction.
func (d *Device) IsInitialized() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.initialized
}

// Close releases the device, queue and instance. A Device built from
// NewDeviceFromHandle does not own these resources and Close is a no-op.
func (d *Device) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.initialized {
		return
	}
	if !d.external {
		if d.device != nil {
			d.device.Destroy()
		}
		if d.instance != nil {
			d.instance.Destroy()
		}
	}
	d.device = nil
	d.queue = nil
	d.instance = nil
	d.initialized = false
}

// DeviceHandle is implemented by callers that want the ImageProcessor to
// share a GPU device they already own (e.g. an embedding application using
// gpucontext.DeviceProvider) instead of opening a standalone one.
type DeviceHandle interface {
	HalDevice() any
	HalQueue() any
}

// halDeviceHandle is the DeviceHandle FromGPUContext (gpucontext_adapter.go)
// returns: it carries the hal.Device and hal.Queue unpacked from a
// gpucontext.DeviceProvider behind the two any-typed accessors.
type halDeviceHandle struct {
	device any
	queue  any
}

func (h halDeviceHandle) HalDevice() any { return h.device }
func (h halDeviceHandle) HalQueue() any  { return h.queue }

var _ DeviceHandle = halDeviceHandle{}
