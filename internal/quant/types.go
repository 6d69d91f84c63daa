// Package quant implements GPU-accelerated perceptual color quantization:
// k-means++ seeded palette extraction, a CPU octree alternative, and the
// find/reduce pixel-remapping operations (replace, ordered dither, and
// neighborhood melding) built on top of them.
package quant

import "fmt"

// Pixel is one RGBA sample at 8 bits per channel. Alpha is preserved end to
// end but never participates in any distance computation.
type Pixel struct {
	R, G, B, A uint8
}

// Hex renders the pixel's RGB channels as "#RRGGBB" (alpha is dropped, as
// the CLI's hex palette format carries no alpha channel).
func (p Pixel) Hex() string {
	return fmt.Sprintf("#%02X%02X%02X", p.R, p.G, p.B)
}

// Image is a borrowed-or-owned contiguous row-major buffer of W*H pixels.
// len(Pixels) must equal W*H for the lifetime of the Image.
type Image struct {
	Width, Height int
	Pixels        []Pixel
}

// At returns the pixel at (x, y). Callers are expected to stay in bounds;
// no bounds check beyond the slice's own is made.
func (img *Image) At(x, y int) Pixel {
	return img.Pixels[y*img.Width+x]
}

// Len returns the pixel count, W*H.
func (img *Image) Len() int { return len(img.Pixels) }

// WorkingPixel is a pixel expressed in the chosen working color space: Lab
// (L, a, b, 1.0 sentinel) or linear Rgb (r, g, b, 1.0 sentinel). The fourth
// component is always the 1.0 sentinel CentroidsBuffer records carry
// alongside WorkingPixel, not an alpha channel.
type WorkingPixel struct {
	X, Y, Z, W float32
}

// ColorSpace selects the working space used for distance computation and
// the convergence epsilon that space implies.
type ColorSpace uint8

const (
	// ColorSpaceLab is the default: CIE L*a*b* (D65), convergence ε=1.0.
	ColorSpaceLab ColorSpace = iota
	// ColorSpaceRGB is linear RGB, convergence ε=0.01.
	ColorSpaceRGB
)

// Epsilon returns the per-space convergence threshold ChooseCentroid's pick
// step compares squared centroid displacement against.
func (c ColorSpace) Epsilon() float32 {
	if c == ColorSpaceRGB {
		return 0.01
	}
	return 1.0
}

// String renders the color space name ("lab" or "rgb").
func (c ColorSpace) String() string {
	if c == ColorSpaceRGB {
		return "rgb"
	}
	return "lab"
}

// Algorithm selects the palette-extraction strategy.
type Algorithm uint8

const (
	// AlgorithmKmeans runs k-means++ seeded Lloyd iteration in the working
	// space, pre-shrinking the input to MaxImageDimensionKmeans on its
	// longer side.
	AlgorithmKmeans Algorithm = iota
	// AlgorithmOctree runs the CPU octree reducer, pre-shrinking the input
	// to MaxImageDimensionOctree on its longer side.
	AlgorithmOctree
)

// String renders the algorithm name as used in default output filenames.
func (a Algorithm) String() string {
	if a == AlgorithmOctree {
		return "octree"
	}
	return "kmeans"
}

// ReduceMode selects how assigned centroids are written back to pixels.
type ReduceMode uint8

const (
	// ReduceModeReplace writes each pixel's assigned centroid directly
	// (the Swap module).
	ReduceModeReplace ReduceMode = iota
	// ReduceModeDither applies an 8x8 ordered-dither bias before argmin
	// reselection, approximating intermediate shades.
	ReduceModeDither
	// ReduceModeMeld blends each pixel's assigned centroid with an
	// edge-aware weighted average of its 3x3 neighbors' centroids.
	ReduceModeMeld
)

// String renders the mode name as used in default output filenames.
func (m ReduceMode) String() string {
	switch m {
	case ReduceModeDither:
		return "dither"
	case ReduceModeMeld:
		return "meld"
	default:
		return "replace"
	}
}

// RequiresMinimumTwoColors reports whether this mode needs at least two
// distinct palette entries to produce a meaningful blend (Dither and Meld
// both interpolate between at least two centroids; Replace does not).
func (m ReduceMode) RequiresMinimumTwoColors() bool {
	return m == ReduceModeDither || m == ReduceModeMeld
}

// Pre-shrink bounds for the two palette-extraction pipelines. Kept
// distinct: the octree ingest path is far more sensitive to pixel count
// than the GPU k-means path, so it gets a tighter bound.
const (
	// MaxImageDimensionKmeans bounds the longer side of the image fed to
	// the k-means pipeline.
	MaxImageDimensionKmeans = 256
	// MaxImageDimensionOctree bounds the longer side of the image fed to
	// the octree ingest pipeline.
	MaxImageDimensionOctree = 128
)

// K-means host-loop tuning constants.
const (
	// MaxIteration bounds the Lloyd loop's iteration count.
	MaxIteration = 128
	// NSeq is the number of pixels each ChooseCentroid reduction thread
	// accumulates sequentially before combining across the workgroup.
	NSeq = 20
	// SeedingBatchSize bounds how many PlusPlusInit centroid picks are
	// recorded into a single command buffer.
	SeedingBatchSize = 32
	// LloydBatchSize bounds how many ChooseCentroid dispatches are
	// recorded into a single command buffer.
	LloydBatchSize = 64
	// ConvergenceCheckInterval is how often (in iterations) the host reads
	// back the convergence vector.
	ConvergenceCheckInterval = 8
)
