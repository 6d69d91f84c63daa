// Package gpu provides the GPU compute resource layer using gogpu/wgpu.
package gpu

import (
	"errors"
	"fmt"
	"sync"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
)

// Buffer errors.
var (
	// ErrBufferDestroyed is returned when operating on a destroyed buffer.
	ErrBufferDestroyed = errors.New("gpu: buffer has been destroyed")

	// ErrNilBuffer is returned when creating operations without a buffer.
	ErrNilBuffer = errors.New("gpu: buffer is nil")

	// ErrInvalidBufferSize is returned when buffer size is invalid.
	ErrInvalidBufferSize = errors.New("gpu: invalid buffer size")
)

// Buffer represents a GPU buffer resource: a thin, lifecycle-managed
// wrapper around a hal.Buffer.
//
// Readback in this package never goes through a mapped pointer on this
// type - Dispatcher.ReadBuffer and Texture.Download perform a
// synchronous copy-to-staging-buffer plus queue.ReadBuffer round trip
// instead, since every quantization kernel's result is small enough
// (palette entries, convergence flags, a bounded image buffer) that the
// asynchronous map-and-poll protocol buys nothing over a direct wait.
//
// Thread Safety:
// Buffer is safe for concurrent access. All state mutations are
// protected by a mutex.
//
// Lifecycle:
//  1. Create via CreateBuffer()
//  2. Pass Raw() to HAL-level operations (bind groups, WriteBuffer, ReadBuffer)
//  3. Call Destroy() when the buffer is no longer needed
type Buffer struct {
	// mu protects mutable state.
	mu sync.RWMutex

	// halBuffer is the underlying buffer handle.
	halBuffer hal.Buffer

	// device is the parent device.
	device hal.Device

	// descriptor holds the buffer configuration (immutable after creation).
	descriptor BufferDescriptor

	// destroyed indicates whether the buffer has been destroyed.
	destroyed bool
}

// BufferDescriptor describes a buffer to create.
type BufferDescriptor struct {
	// Label is an optional debug name.
	Label string

	// Size is the buffer size in bytes.
	Size uint64

	// Usage specifies how the buffer will be used.
	Usage gputypes.BufferUsage

	// MappedAtCreation creates the buffer pre-mapped for writing.
	MappedAtCreation bool
}

// NewBuffer creates a new Buffer from a buffer handle.
//
// This is typically called by CreateBuffer() after successfully
// creating the underlying buffer.
//
// Parameters:
//   - halBuffer: The underlying buffer (ownership transferred)
//   - device: The parent device (retained for operations)
//   - desc: The buffer descriptor (copied)
//
// Returns the new Buffer.
func NewBuffer(halBuffer hal.Buffer, device hal.Device, desc *BufferDescriptor) *Buffer {
	return &Buffer{
		halBuffer:  halBuffer,
		device:     device,
		descriptor: *desc,
	}
}

// Label returns the buffer's debug label.
func (b *Buffer) Label() string {
	return b.descriptor.Label
}

// Size returns the buffer size in bytes.
func (b *Buffer) Size() uint64 {
	return b.descriptor.Size
}

// Usage returns the buffer usage flags.
func (b *Buffer) Usage() gputypes.BufferUsage {
	return b.descriptor.Usage
}

// Descriptor returns a copy of the buffer descriptor.
func (b *Buffer) Descriptor() BufferDescriptor {
	return b.descriptor
}

// IsDestroyed returns true if the buffer has been destroyed.
func (b *Buffer) IsDestroyed() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.destroyed
}

// Raw returns the underlying buffer handle.
//
// Returns nil if the buffer has been destroyed.
// Use with caution - the caller should ensure the buffer is not destroyed
// while the handle is in use.
func (b *Buffer) Raw() hal.Buffer {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.destroyed {
		return nil
	}
	return b.halBuffer
}

// Destroy releases the buffer and any associated resources.
//
// After calling Destroy(), the buffer should not be used.
// This method is idempotent - calling it multiple times is safe.
func (b *Buffer) Destroy() {
	b.mu.Lock()
	if b.destroyed {
		b.mu.Unlock()
		return
	}
	b.destroyed = true
	device := b.device
	halBuf := b.halBuffer
	b.halBuffer = nil
	b.mu.Unlock()

	if device != nil && halBuf != nil {
		device.DestroyBuffer(halBuf)
	}
}

// =============================================================================
// Device Buffer Creation
// =============================================================================

// CreateBuffer creates a new buffer from a device.
//
// This is a helper function for creating buffers using the HAL API directly.
// It handles validation and wraps the buffer in a Buffer.
//
// Parameters:
//   - device: The device to create the buffer on.
//   - desc: The buffer descriptor.
//
// Returns the new Buffer and nil on success.
// Returns nil and an error if:
//   - The device is nil
//   - The descriptor is nil
//   - Buffer size is invalid
//   - Buffer creation fails
func CreateBuffer(device hal.Device, desc *BufferDescriptor) (*Buffer, error) {
	if device == nil {
		return nil, ErrNilHALDevice
	}

	if desc == nil {
		return nil, fmt.Errorf("buffer descriptor is nil")
	}

	// Validate size
	if desc.Size == 0 {
		return nil, fmt.Errorf("%w: size is 0", ErrInvalidBufferSize)
	}

	// Validate usage
	if desc.Usage == 0 {
		return nil, fmt.Errorf("buffer usage is empty")
	}

	// Validate MappedAtCreation requires MapWrite or CopyDst usage
	if desc.MappedAtCreation {
		if !desc.Usage.Contains(gputypes.BufferUsageMapWrite) &&
			!desc.Usage.Contains(gputypes.BufferUsageCopyDst) {
			return nil, fmt.Errorf("MappedAtCreation requires MapWrite or CopyDst usage")
		}
	}

	// Calculate aligned size (align to 4 bytes for copy operations)
	const copyBufferAlignment uint64 = 4
	alignedSize := (desc.Size + copyBufferAlignment - 1) &^ (copyBufferAlignment - 1)

	// Convert to descriptor
	halDesc := &hal.BufferDescriptor{
		Label:            desc.Label,
		Size:             alignedSize,
		Usage:            desc.Usage,
		MappedAtCreation: desc.MappedAtCreation,
	}

	// Create buffer
	halBuffer, err := device.CreateBuffer(halDesc)
	if err != nil {
		return nil, fmt.Errorf("buffer creation failed: %w", err)
	}

	// Update descriptor with aligned size
	resolvedDesc := *desc
	resolvedDesc.Size = alignedSize

	return NewBuffer(halBuffer, device, &resolvedDesc), nil
}
