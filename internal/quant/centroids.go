package quant

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/quant/internal/color"
	"github.com/gogpu/quant/internal/gpu"
)

// centroidRecordSize is the byte size of one CentroidsBuffer record: four
// packed 32-bit floats (coordinate triple + the 1.0 sentinel WorkingPixel
// carries).
const centroidRecordSize = 16

// centroidHeaderSize is the byte size of the CentroidsBuffer header:
// { K: u32, pad, pad, pad }, 16-byte aligned per device layout rules.
const centroidHeaderSize = 16

// CentroidsBuffer is the GPU storage buffer of K centroids plus a header,
// shared read-write by PlusPlusInit, FindCentroid and ChooseCentroid
// within one command submission; only one module writes it per pass.
type CentroidsBuffer struct {
	buf *gpu.Buffer
	k   uint32
}

// emptyCentroidsData builds the header+zeroed-records byte layout for K
// centroids, used before seeding.
func emptyCentroidsData(k uint32) []byte {
	out := make([]byte, centroidHeaderSize+int(k)*centroidRecordSize)
	binary.LittleEndian.PutUint32(out[0:4], k)
	return out
}

// EmptyCentroids allocates a CentroidsBuffer with header {K,0,0,0} and K
// zeroed records, ready for PlusPlusInit to populate.
func EmptyCentroids(device *gpu.Device, k uint32) (*CentroidsBuffer, error) {
	if k == 0 {
		return nil, ErrInvalidK
	}
	data := emptyCentroidsData(k)
	buf, err := gpu.CreateBuffer(device.HAL(), &gpu.BufferDescriptor{
		Label: "centroids_buffer",
		Size:  uint64(len(data)),
		Usage: gputypes.BufferUsageStorage | gputypes.BufferUsageCopyDst | gputypes.BufferUsageCopySrc,
	})
	if err != nil {
		return nil, fmt.Errorf("quant: allocate centroids buffer: %w", err)
	}
	if err := device.Queue().WriteBuffer(buf.Raw(), 0, data); err != nil {
		return nil, fmt.Errorf("quant: upload empty centroids: %w", err)
	}
	return &CentroidsBuffer{buf: buf, k: k}, nil
}

// FixedCentroids converts caller-supplied RGB colors to the working space
// and uploads them as a fully populated CentroidsBuffer, used by find/
// replace modes and by the octree-to-kmeans handoff in reduce().
func FixedCentroids(device *gpu.Device, colors []Pixel, space ColorSpace) (*CentroidsBuffer, error) {
	if len(colors) == 0 {
		return nil, ErrEmptyPalette
	}
	k := uint32(len(colors))
	data := emptyCentroidsData(k)

	for i, c := range colors {
		wp := pixelToWorkingSpace(c, space)
		off := centroidHeaderSize + i*centroidRecordSize
		binary.LittleEndian.PutUint32(data[off+0:], math.Float32bits(wp.X))
		binary.LittleEndian.PutUint32(data[off+4:], math.Float32bits(wp.Y))
		binary.LittleEndian.PutUint32(data[off+8:], math.Float32bits(wp.Z))
		binary.LittleEndian.PutUint32(data[off+12:], math.Float32bits(wp.W))
	}

	buf, err := gpu.CreateBuffer(device.HAL(), &gpu.BufferDescriptor{
		Label: "centroids_buffer",
		Size:  uint64(len(data)),
		Usage: gputypes.BufferUsageStorage | gputypes.BufferUsageCopyDst | gputypes.BufferUsageCopySrc,
	})
	if err != nil {
		return nil, fmt.Errorf("quant: allocate fixed centroids buffer: %w", err)
	}
	if err := device.Queue().WriteBuffer(buf.Raw(), 0, data); err != nil {
		return nil, fmt.Errorf("quant: upload fixed centroids: %w", err)
	}
	return &CentroidsBuffer{buf: buf, k: k}, nil
}

// K returns the centroid count.
func (c *CentroidsBuffer) K() uint32 { return c.k }

// Raw returns the underlying hal.Buffer for binding into compute passes.
func (c *CentroidsBuffer) Raw() hal.Buffer { return c.buf.Raw() }

// ByteSize returns the total buffer size in bytes (header + K records).
func (c *CentroidsBuffer) ByteSize() uint64 {
	return uint64(centroidHeaderSize + int(c.k)*centroidRecordSize)
}

// Destroy releases the underlying GPU buffer.
func (c *CentroidsBuffer) Destroy() { c.buf.Destroy() }

// PullValues reads the K centroids back to the CPU and converts each
// record to 8-bit RGB. The returned header K must equal len(result),
// checked against ErrInternalInvariant; out-of-gamut coordinates are
// clamped silently, never surfaced as an error.
func (c *CentroidsBuffer) PullValues(disp *gpu.Dispatcher, space ColorSpace) ([]Pixel, error) {
	raw, err := disp.ReadBuffer(c.Raw(), c.ByteSize())
	if err != nil {
		return nil, fmt.Errorf("%w: pull centroids: %v", ErrMapFailed, err)
	}

	gotK := binary.LittleEndian.Uint32(raw[0:4])
	if gotK != c.k {
		return nil, fmt.Errorf("%w: centroids header K=%d does not match buffer K=%d", ErrInternalInvariant, gotK, c.k)
	}

	out := make([]Pixel, c.k)
	for i := uint32(0); i < c.k; i++ {
		off := centroidHeaderSize + int(i)*centroidRecordSize
		x := math.Float32frombits(binary.LittleEndian.Uint32(raw[off+0:]))
		y := math.Float32frombits(binary.LittleEndian.Uint32(raw[off+4:]))
		z := math.Float32frombits(binary.LittleEndian.Uint32(raw[off+8:]))
		out[i] = workingSpaceToPixel(WorkingPixel{X: x, Y: y, Z: z, W: 1.0}, space)
	}
	return out, nil
}

// pixelToWorkingSpace converts an 8-bit sRGB pixel to the working space's
// WorkingPixel representation (Lab or linear RGB), the same conversion
// ColorConverter performs on the GPU for InputTexture pixels and
// FixedCentroids performs on the CPU for caller-supplied palette colors.
func pixelToWorkingSpace(p Pixel, space ColorSpace) WorkingPixel {
	lr := color.SRGBToLinear(float32(p.R) / 255.0)
	lg := color.SRGBToLinear(float32(p.G) / 255.0)
	lb := color.SRGBToLinear(float32(p.B) / 255.0)

	if space == ColorSpaceRGB {
		return WorkingPixel{X: lr, Y: lg, Z: lb, W: 1.0}
	}
	lab := color.SRGBToLab(lr, lg, lb)
	return WorkingPixel{X: lab.L, Y: lab.A, Z: lab.B, W: 1.0}
}

// workingSpaceToPixel is the inverse of pixelToWorkingSpace, clamping any
// out-of-gamut linear RGB result into [0,255] rather than failing.
func workingSpaceToPixel(wp WorkingPixel, space ColorSpace) Pixel {
	var lr, lg, lb float32
	if space == ColorSpaceRGB {
		lr, lg, lb = wp.X, wp.Y, wp.Z
	} else {
		lr, lg, lb = color.LabToSRGB(color.Lab{L: wp.X, A: wp.Y, B: wp.Z})
	}

	toU8 := func(l float32) uint8 {
		s := color.LinearToSRGB(l)
		if s <= 0 {
			return 0
		}
		if s >= 1 {
			return 255
		}
		return uint8(s*255.0 + 0.5)
	}
	return Pixel{R: toU8(lr), G: toU8(lg), B: toU8(lb), A: 255}
}
