//go:build !nogpu

package gpu

import (
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
)

// Texture errors.
var (
	// ErrTextureReleased is returned when operating on a released texture.
	ErrTextureReleased = errors.New("gpu: texture has been released")

	// ErrInvalidDimensions is returned when width or height is non-positive.
	ErrInvalidDimensions = errors.New("gpu: invalid texture dimensions")

	// ErrTextureDataSizeMismatch is returned when uploaded/downloaded data
	// does not match the texture's tightly-packed byte size.
	ErrTextureDataSizeMismatch = errors.New("gpu: texture data size mismatch")
)

// TextureFormat identifies the pixel format and element width of a GPU
// texture used in the quantization pipeline: the RGBA8 input format and the
// float/uint formats the compute pipeline's working textures require.
type TextureFormat uint8

const (
	// TextureFormatRGBA8 is sRGB-encoded 8-bit-per-channel color, used by
	// InputTexture and OutputTexture.
	TextureFormatRGBA8 TextureFormat = iota

	// TextureFormatRGBA32Float is four 32-bit floats per pixel, used by
	// WorkTexture to hold Lab or linear-RGB working-space values.
	TextureFormatRGBA32Float

	// TextureFormatR32Uint is one 32-bit unsigned integer per pixel, used
	// by ColorIndexTexture to hold the assigned centroid index.
	TextureFormatR32Uint

	// TextureFormatR32Float is one 32-bit float per pixel, used by
	// DistanceMapTexture to hold squared distance to the nearest chosen
	// centroid during k-means++ seeding.
	TextureFormatR32Float
)

// String returns a human-readable format name.
func (f TextureFormat) String() string {
	switch f {
	case TextureFormatRGBA8:
		return "RGBA8"
	case TextureFormatRGBA32Float:
		return "RGBA32Float"
	case TextureFormatR32Uint:
		return "R32Uint"
	case TextureFormatR32Float:
		return "R32Float"
	default:
		return fmt.Sprintf("Unknown(%d)", uint8(f))
	}
}

// BytesPerPixel returns the tightly-packed byte size of one pixel.
func (f TextureFormat) BytesPerPixel() uint32 {
	switch f {
	case TextureFormatRGBA8:
		return 4
	case TextureFormatRGBA32Float:
		return 16
	case TextureFormatR32Uint, TextureFormatR32Float:
		return 4
	default:
		return 4
	}
}

// ToWGPUFormat maps to the corresponding gputypes.TextureFormat constant.
func (f TextureFormat) ToWGPUFormat() gputypes.TextureFormat {
	switch f {
	case TextureFormatRGBA8:
		return gputypes.TextureFormatRGBA8Unorm
	case TextureFormatRGBA32Float:
		return gputypes.TextureFormatRGBA32Float
	case TextureFormatR32Uint:
		return gputypes.TextureFormatR32Uint
	case TextureFormatR32Float:
		return gputypes.TextureFormatR32Float
	default:
		return gputypes.TextureFormatRGBA8Unorm
	}
}

// BytesPerRowAligned pads a tightly-packed row size up to the next multiple
// of 256, the alignment wgpu requires for texture<->buffer copies.
func BytesPerRowAligned(tightBytesPerRow uint32) uint32 {
	const align = 256
	return (tightBytesPerRow + align - 1) &^ (align - 1)
}

// Texture wraps a single 2D GPU texture with a fixed format and usage set,
// along with its default view. It has no render-pass or MSAA concept: the
// quantization pipeline only ever binds whole textures to compute passes.
type Texture struct {
	device hal.Device

	tex  hal.Texture
	view hal.TextureView

	width, height uint32
	format        TextureFormat
	label         string

	released atomic.Bool
}

// TextureConfig configures a new Texture.
type TextureConfig struct {
	Width, Height uint32
	Format        TextureFormat
	Usage         gputypes.TextureUsage
	Label         string
}

// CreateTexture allocates a new uninitialized GPU texture.
func CreateTexture(device hal.Device, cfg TextureConfig) (*Texture, error) {
	if device == nil {
		return nil, ErrNilHALDevice
	}
	if cfg.Width == 0 || cfg.Height == 0 {
		return nil, ErrInvalidDimensions
	}

	halTex, err := device.CreateTexture(&hal.TextureDescriptor{
		Label:         cfg.Label,
		Size:          hal.Extent3D{Width: cfg.Width, Height: cfg.Height, DepthOrArrayLayers: 1},
		MipLevelCount: 1,
		SampleCount:   1,
		Dimension:     gputypes.TextureDimension2D,
		Format:        cfg.Format.ToWGPUFormat(),
		Usage:         cfg.Usage,
	})
	if err != nil {
		return nil, fmt.Errorf("create texture %q: %w", cfg.Label, err)
	}

	view, err := device.CreateTextureView(halTex, &hal.TextureViewDescriptor{Label: cfg.Label + "_view"})
	if err != nil {
		device.DestroyTexture(halTex)
		return nil, fmt.Errorf("create texture view %q: %w", cfg.Label, err)
	}

	return &Texture{
		device: device,
		tex:    halTex,
		view:   view,
		width:  cfg.Width,
		height: cfg.Height,
		format: cfg.Format,
		label:  cfg.Label,
	}, nil
}

// Width returns the texture width in pixels.
func (t *Texture) Width() uint32 { return t.width }

// Height returns the texture height in pixels.
func (t *Texture) Height() uint32 { return t.height }

// Format returns the texture's pixel format.
func (t *Texture) Format() TextureFormat { return t.format }

// Label returns the texture's debug label.
func (t *Texture) Label() string { return t.label }

// Raw returns the underlying hal.Texture, or nil if released.
func (t *Texture) Raw() hal.Texture {
	if t.released.Load() {
		return nil
	}
	return t.tex
}

// View returns the texture's default view, or nil if released.
func (t *Texture) View() hal.TextureView {
	if t.released.Load() {
		return nil
	}
	return t.view
}

// TightBytesPerRow returns the unpadded row size in bytes.
func (t *Texture) TightBytesPerRow() uint32 {
	return t.width * t.format.BytesPerPixel()
}

// PaddedBytesPerRow returns TightBytesPerRow rounded up to the next
// multiple of 256, as required by texture<->buffer copy commands.
func (t *Texture) PaddedBytesPerRow() uint32 {
	return BytesPerRowAligned(t.TightBytesPerRow())
}

// Upload writes tightly-packed pixel data into the texture via the queue,
// internally padding each row to the 256-byte alignment the copy requires.
func (t *Texture) Upload(queue hal.Queue, data []byte) error {
	if t.released.Load() {
		return ErrTextureReleased
	}
	want := int(t.TightBytesPerRow()) * int(t.height)
	if len(data) != want {
		return fmt.Errorf("%w: texture %q expects %d bytes, got %d", ErrTextureDataSizeMismatch, t.label, want, len(data))
	}

	padded := padRows(data, int(t.TightBytesPerRow()), int(t.PaddedBytesPerRow()), int(t.height))

	return queue.WriteTexture(
		hal.TextureCopyView{Texture: t.tex, MipLevel: 0, Origin: hal.Origin3D{}},
		padded,
		hal.TextureDataLayout{Offset: 0, BytesPerRow: t.PaddedBytesPerRow(), RowsPerImage: t.height},
		hal.Extent3D{Width: t.width, Height: t.height, DepthOrArrayLayers: 1},
	)
}

// Download reads the texture back into a tightly-packed byte slice via a
// staging buffer, stripping the 256-byte row padding wgpu requires for
// texture<->buffer copies. Blocks until the GPU signals completion or
// defaultWaitTimeout elapses.
func (t *Texture) Download(device hal.Device, queue hal.Queue) ([]byte, error) {
	if t.released.Load() {
		return nil, ErrTextureReleased
	}

	paddedSize := uint64(t.PaddedBytesPerRow()) * uint64(t.height)
	staging, err := device.CreateBuffer(&hal.BufferDescriptor{
		Label: t.label + "_download_staging",
		Size:  paddedSize,
		Usage: gputypes.BufferUsageMapRead | gputypes.BufferUsageCopyDst,
	})
	if err != nil {
		return nil, fmt.Errorf("gpu: create download staging buffer for %q: %w", t.label, err)
	}
	defer device.DestroyBuffer(staging)

	encoder, err := device.CreateCommandEncoder(&hal.CommandEncoderDescriptor{Label: "texture_download"})
	if err != nil {
		return nil, fmt.Errorf("gpu: create download encoder for %q: %w", t.label, err)
	}
	if err := encoder.BeginEncoding("texture_download"); err != nil {
		return nil, fmt.Errorf("gpu: begin download encoding for %q: %w", t.label, err)
	}
	encoder.CopyTextureToBuffer(
		hal.TextureCopyView{Texture: t.tex, MipLevel: 0, Origin: hal.Origin3D{}},
		hal.BufferCopyView{Buffer: staging, Layout: hal.TextureDataLayout{Offset: 0, BytesPerRow: t.PaddedBytesPerRow(), RowsPerImage: t.height}},
		hal.Extent3D{Width: t.width, Height: t.height, DepthOrArrayLayers: 1},
	)

	cmdBuf, err := encoder.EndEncoding()
	if err != nil {
		return nil, fmt.Errorf("gpu: end download encoding for %q: %w", t.label, err)
	}
	defer device.FreeCommandBuffer(cmdBuf)

	fence, err := device.CreateFence()
	if err != nil {
		return nil, fmt.Errorf("gpu: create download fence for %q: %w", t.label, err)
	}
	defer device.DestroyFence(fence)

	if err := queue.Submit([]hal.CommandBuffer{cmdBuf}, fence, 1); err != nil {
		return nil, fmt.Errorf("gpu: submit download for %q: %w", t.label, err)
	}
	ok, err := device.Wait(fence, 1, defaultWaitTimeout)
	if err != nil {
		return nil, fmt.Errorf("gpu: wait for download of %q: %w", t.label, err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: download of %q", ErrDispatchTimeout, t.label)
	}

	padded := make([]byte, paddedSize)
	if err := queue.ReadBuffer(staging, 0, padded); err != nil {
		return nil, fmt.Errorf("gpu: read download staging buffer for %q: %w", t.label, err)
	}
	return stripRowPadding(padded, int(t.TightBytesPerRow()), int(t.PaddedBytesPerRow()), int(t.height)), nil
}

// padRows expands tightly packed row-major data to the padded row stride
// the GPU copy requires, zero-filling the pad bytes.
func padRows(tight []byte, tightStride, paddedStride, rows int) []byte {
	if tightStride == paddedStride {
		return tight
	}
	out := make([]byte, paddedStride*rows)
	for row := 0; row < rows; row++ {
		copy(out[row*paddedStride:row*paddedStride+tightStride], tight[row*tightStride:(row+1)*tightStride])
	}
	return out
}

// stripRowPadding reverses padRows: extracts tightly packed data from a
// padded row-major buffer.
func stripRowPadding(padded []byte, tightStride, paddedStride, rows int) []byte {
	if tightStride == paddedStride {
		return padded
	}
	out := make([]byte, tightStride*rows)
	for row := 0; row < rows; row++ {
		copy(out[row*tightStride:(row+1)*tightStride], padded[row*paddedStride:row*paddedStride+tightStride])
	}
	return out
}

// Destroy releases the texture and its view. Idempotent.
func (t *Texture) Destroy() {
	if t.released.Swap(true) {
		return
	}
	if t.view != nil {
		t.device.DestroyTextureView(t.view)
	}
	if t.tex != nil {
		t.device.DestroyTexture(t.tex)
	}
}

// String renders a short debug description of the texture.
func (t *Texture) String() string {
	status := "active"
	if t.released.Load() {
		status = "released"
	}
	return fmt.Sprintf("Texture[%s %dx%d %s %s]", t.label, t.width, t.height, t.format, status)
}
