package quant

import (
	"time"

	"github.com/gogpu/gpucontext"

	"github.com/gogpu/quant/internal/gpu"
)

// ImageProcessor is the engine's public entry point: one GPU device, one
// set of compiled compute pipelines, shared across every Palette/Find/
// Reduce call for the lifetime of the process.
type ImageProcessor struct {
	device  *gpu.Device
	modules *Modules

	// memory bounds the GPU texture working set (input and resized
	// textures) an operation accumulates, evicting the
	// least recently touched texture once the budget is exceeded. This
	// matters most for Reduce, which holds a source texture alive
	// alongside the resized working copy.
	memory *gpu.MemoryManager

	// defaultSpace is the working color space used when callers do not
	// need per-call control over it (every exported method below).
	defaultSpace ColorSpace

	// seed parameterizes k-means++ seeding. Zero means "derive from
	// nothing in particular" (an arbitrary fixed constant), which makes
	// repeated Palette calls against the same image deterministic -
	// useful for tests and for CLI runs a user wants to reproduce.
	seed uint32
}

// New acquires a GPU device and compiles every compute kernel the
// quantization engine needs. The returned ImageProcessor owns the device
// and must be closed with Close when no longer needed.
func New() (*ImageProcessor, error) {
	device, err := gpu.NewDevice()
	if err != nil {
		return nil, err
	}
	modules, err := NewModules(device)
	if err != nil {
		device.Close()
		return nil, err
	}
	return &ImageProcessor{
		device:       device,
		modules:      modules,
		memory:       gpu.NewMemoryManager(device, gpu.MemoryManagerConfig{}),
		defaultSpace: ColorSpaceLab,
	}, nil
}

// NewFromGPUContext builds an ImageProcessor on top of a device a host
// application already owns, instead of opening a standalone one. Close
// then leaves the shared device and its instance untouched.
func NewFromGPUContext(p gpucontext.DeviceProvider) (*ImageProcessor, error) {
	handle, err := gpu.FromGPUContext(p)
	if err != nil {
		return nil, err
	}
	device, err := gpu.NewDeviceFromHandle(handle)
	if err != nil {
		return nil, err
	}
	modules, err := NewModules(device)
	if err != nil {
		device.Close()
		return nil, err
	}
	return &ImageProcessor{
		device:       device,
		modules:      modules,
		memory:       gpu.NewMemoryManager(device, gpu.MemoryManagerConfig{}),
		defaultSpace: ColorSpaceLab,
	}, nil
}

// SetColorSpace changes the working space future Palette/Find/Reduce
// calls use. ColorSpaceLab is the default.
func (p *ImageProcessor) SetColorSpace(space ColorSpace) { p.defaultSpace = space }

// SetSeed fixes the k-means++ seeding PRNG's base seed, making Palette
// calls against the same image and k reproducible across runs.
func (p *ImageProcessor) SetSeed(seed uint32) { p.seed = seed }

// SetMemoryBudgetMB changes the GPU texture working-set budget future
// Palette/Find/Reduce calls are held to, evicting over-budget textures
// immediately if the new limit is below current usage.
func (p *ImageProcessor) SetMemoryBudgetMB(megabytes int) error {
	return p.memory.SetBudget(megabytes)
}

// MemoryStats reports current GPU texture working-set usage.
func (p *ImageProcessor) MemoryStats() gpu.MemoryStats { return p.memory.Stats() }

// SupportsTimestamps reports whether the acquired device exposes GPU
// timestamp queries, which a caller might use to instrument dispatch
// latency separately from host-side wall time.
func (p *ImageProcessor) SupportsTimestamps() bool { return p.device.SupportsTimestamps() }

// logElapsed records wall-clock duration for an operation at debug level
// when the device advertises timestamp-query support, mirroring the
// reference implementation's query_time-gated elapsed-time report without
// requiring an actual GPU timestamp-query readback for it.
func (p *ImageProcessor) logElapsed(op string, start time.Time) {
	if !p.SupportsTimestamps() {
		return
	}
	slogger().Debug("operation elapsed", "op", op, "duration", time.Since(start))
}

// Close releases the compiled pipelines, any textures still tracked by
// the memory manager, and the GPU device.
func (p *ImageProcessor) Close() {
	if p.memory != nil {
		p.memory.Close()
	}
	if p.modules != nil {
		p.modules.Close()
	}
	if p.device != nil {
		p.device.Close()
	}
}

// Palette extracts a k-entry color palette from img using algo
// (k-means++ seeded Lloyd iteration, or the CPU octree reducer).
func (p *ImageProcessor) Palette(k int, img *Image, algo Algorithm) ([]Pixel, error) {
	defer p.logElapsed("palette", time.Now())
	return palette(p.device, p.memory, p.modules, k, img, algo, p.defaultSpace, p.seed)
}

// Find reassigns every pixel of img to its nearest entry in colors,
// writing the result per mode (replace, dither, or meld).
func (p *ImageProcessor) Find(img *Image, colors []Pixel, mode ReduceMode) (*Image, error) {
	defer p.logElapsed("find", time.Now())
	return find(p.device, p.memory, p.modules, img, colors, mode, p.defaultSpace)
}

// Reduce extracts a k-entry palette from img via algo, then immediately
// reassigns img's pixels against it per mode. Returns both the quantized
// image and the palette used to produce it.
func (p *ImageProcessor) Reduce(k int, img *Image, algo Algorithm, mode ReduceMode) (*Image, []Pixel, error) {
	defer p.logElapsed("reduce", time.Now())
	return reduce(p.device, p.memory, p.modules, k, img, algo, mode, p.defaultSpace, p.seed)
}
