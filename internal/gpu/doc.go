//go:build !nogpu

// Package gpu provides the low-level GPU resource layer for the color
// quantization engine.
//
// It owns everything that talks directly to a GPU device: adapter and
// device acquisition, buffers, textures, compute dispatch, and shader
// compilation. It leverages gogpu/wgpu's hal package for hardware-accelerated
// compute via Vulkan, with zero CGO. Only the Vulkan backend is registered
// and requested; there is no Metal or DX12 path.
//
// # Architecture Overview
//
// Everything above this package (internal/quant) is expressed in terms of
// a small set of building blocks:
//
//	Device -> Texture / Buffer -> CommandEncoder -> ComputePass -> Submit -> Wait
//
// Key components:
//
//   - Device: acquires and owns the instance/adapter/device/queue quadruple
//   - Texture: a single 2D GPU texture plus its default view, with the
//     format set the quantization pipeline needs (RGBA8, RGBA32Float,
//     R32Uint, R32Float) rather than a renderer's MSAA/depth/resolve set
//   - Buffer: a lifecycle-managed GPU buffer handle; readback goes through
//     Dispatcher.ReadBuffer/Texture.Download's synchronous
//     staging-copy-and-wait instead of a mapped pointer on Buffer itself
//   - MemoryManager: GPU texture memory with LRU eviction (configurable
//     budget), used to bound the working-set size for large input images
//   - Dispatcher: records and submits compute passes, and performs
//     the staging-buffer round trip for synchronous readback
//
// # Usage
//
// Acquire a device and allocate a working texture:
//
//	d, err := gpu.NewDevice()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer d.Close()
//
//	tex, err := gpu.CreateTexture(d.HAL(), gpu.TextureConfig{
//	    Width: 256, Height: 256,
//	    Format: gpu.TextureFormatRGBA32Float,
//	    Usage:  gputypes.TextureUsageStorageBinding,
//	    Label:  "work-texture",
//	})
//
// # Memory Management
//
// The package exposes an LRU-based memory manager with configurable budget:
//
//	mgr := gpu.NewMemoryManager(d, gpu.MemoryManagerConfig{MaxMemoryMB: 256})
//
// When the memory budget is exceeded, least-recently-used textures are
// evicted before a new allocation is satisfied.
//
// # Requirements
//
//   - Go 1.25+
//   - gogpu/wgpu module (github.com/gogpu/wgpu)
//   - A GPU with a Vulkan driver
//
// # Thread Safety
//
// Device and MemoryManager are safe for concurrent use from multiple
// goroutines. Internal synchronization is handled via mutexes.
//
// # Related Packages
//
//   - github.com/gogpu/gputypes: format/usage/descriptor constants
//   - github.com/gogpu/wgpu: Pure Go WebGPU implementation
//   - github.com/gogpu/naga: WGSL to SPIR-V shader compilation
package gpu
