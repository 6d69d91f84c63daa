package quant

import (
	"fmt"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/quant/internal/gpu"
)

// squaredEuclidean is the FindCentroid distance_mode every operation in
// this file uses: the working space (Lab or linear RGB) already encodes
// perceptual distance as plain squared Euclidean distance between its
// coordinates, so no separate CIE94/CIE2000 dispatch is needed on the hot
// assignment path.
const squaredEuclidean uint32 = 0

// palette extracts a k-entry palette from img using the requested
// algorithm, pre-shrinking the image to that algorithm's working
// resolution first.
func palette(device *gpu.Device, mem *gpu.MemoryManager, modules *Modules, k int, img *Image, algo Algorithm, space ColorSpace, seed uint32) ([]Pixel, error) {
	if k <= 0 {
		return nil, ErrInvalidK
	}
	if img.Len() == 0 {
		return nil, fmt.Errorf("quant: empty image")
	}

	if algo == AlgorithmOctree {
		return paletteOctree(device, mem, modules, k, img)
	}
	return paletteKMeans(device, mem, modules, k, img, space, seed)
}

func paletteOctree(device *gpu.Device, mem *gpu.MemoryManager, modules *Modules, k int, img *Image) ([]Pixel, error) {
	srcTex, err := uploadImage(device, mem, img)
	if err != nil {
		return nil, err
	}
	defer func() { _ = mem.FreeTexture(srcTex) }()

	sw, sh := shrinkDimensions(img.Width, img.Height, MaxImageDimensionOctree)
	workTex, err := resizeToTexture(device, mem, modules, srcTex, img.Width, img.Height, sw, sh)
	if err != nil {
		return nil, err
	}
	if workTex != srcTex {
		defer func() { _ = mem.FreeTexture(workTex) }()
	}

	mem.TouchTexture(workTex)
	raw, err := workTex.Download(device.HAL(), device.Queue())
	if err != nil {
		return nil, err
	}
	pixels := unpackRGBA8(raw, sw*sh)

	tree := NewOctree()
	for _, p := range pixels {
		tree.Insert(p)
	}
	colors := tree.Reduce(k)
	return SortAndDedupePalette(colors), nil
}

func paletteKMeans(device *gpu.Device, mem *gpu.MemoryManager, modules *Modules, k int, img *Image, space ColorSpace, seed uint32) ([]Pixel, error) {
	srcTex, err := uploadImage(device, mem, img)
	if err != nil {
		return nil, err
	}
	defer func() { _ = mem.FreeTexture(srcTex) }()

	sw, sh := shrinkDimensions(img.Width, img.Height, MaxImageDimensionKmeans)
	workTex, err := resizeToTexture(device, mem, modules, srcTex, img.Width, img.Height, sw, sh)
	if err != nil {
		return nil, err
	}
	if workTex != srcTex {
		defer func() { _ = mem.FreeTexture(workTex) }()
	}

	workBuf, err := device.HAL().CreateBuffer(&hal.BufferDescriptor{
		Label: "kmeans_work",
		Size:  uint64(sw) * uint64(sh) * 16,
		Usage: gputypes.BufferUsageStorage | gputypes.BufferUsageCopyDst | gputypes.BufferUsageCopySrc,
	})
	if err != nil {
		return nil, err
	}
	defer device.HAL().DestroyBuffer(workBuf)

	mem.TouchTexture(workTex)
	if err := modules.ColorConvert(workTex, workBuf, uint32(sw), uint32(sh), space, dirToWorking); err != nil {
		return nil, err
	}

	if k > sw*sh {
		return nil, fmt.Errorf("%w: k=%d exceeds pre-shrink pixel count %d", ErrInvalidK, k, sw*sh)
	}

	result, err := RunKMeans(device, modules, workBuf, sw, sh, k, space, squaredEuclidean, seed)
	if err != nil {
		return nil, err
	}
	defer result.Centroids.Destroy()
	defer device.HAL().DestroyBuffer(result.ColorIndex)

	colors, err := result.Centroids.PullValues(modules.disp, space)
	if err != nil {
		return nil, err
	}
	return SortAndDedupePalette(colors), nil
}

// find reassigns every pixel of img to its nearest entry in colors,
// writing the result according to mode (replace, dither, or meld). The
// output has the same resolution as img; colors is used exactly as given,
// with no pre-shrink or re-seeding.
func find(device *gpu.Device, mem *gpu.MemoryManager, modules *Modules, img *Image, colors []Pixel, mode ReduceMode, space ColorSpace) (*Image, error) {
	if len(colors) == 0 {
		return nil, ErrEmptyPalette
	}
	if mode.RequiresMinimumTwoColors() && len(colors) < 2 {
		return nil, fmt.Errorf("%w: mode %s requires at least two palette colors", ErrInvalidK, mode)
	}

	w, h := img.Width, img.Height

	srcTex, err := uploadImage(device, mem, img)
	if err != nil {
		return nil, err
	}
	defer func() { _ = mem.FreeTexture(srcTex) }()

	workBuf, err := device.HAL().CreateBuffer(&hal.BufferDescriptor{
		Label: "find_work",
		Size:  uint64(w) * uint64(h) * 16,
		Usage: gputypes.BufferUsageStorage | gputypes.BufferUsageCopyDst | gputypes.BufferUsageCopySrc,
	})
	if err != nil {
		return nil, err
	}
	defer device.HAL().DestroyBuffer(workBuf)

	mem.TouchTexture(srcTex)
	if err := modules.ColorConvert(srcTex, workBuf, uint32(w), uint32(h), space, dirToWorking); err != nil {
		return nil, err
	}

	centroids, err := FixedCentroids(device, colors, space)
	if err != nil {
		return nil, err
	}
	defer centroids.Destroy()

	colorIndex, err := allocScratchBuffer(device, "find_color_index", uint64(w)*uint64(h)*4)
	if err != nil {
		return nil, err
	}
	defer device.HAL().DestroyBuffer(colorIndex)

	if err := modules.FindCentroid(workBuf, centroids, colorIndex, uint32(w), uint32(h), squaredEuclidean); err != nil {
		return nil, err
	}

	outBuf, err := device.HAL().CreateBuffer(&hal.BufferDescriptor{
		Label: "find_out",
		Size:  uint64(w) * uint64(h) * 16,
		Usage: gputypes.BufferUsageStorage | gputypes.BufferUsageCopyDst | gputypes.BufferUsageCopySrc,
	})
	if err != nil {
		return nil, err
	}
	defer device.HAL().DestroyBuffer(outBuf)

	switch mode {
	case ReduceModeDither:
		err = modules.Dither(workBuf, colorIndex, centroids, outBuf, uint32(w), uint32(h))
	case ReduceModeMeld:
		err = modules.Meld(workBuf, colorIndex, centroids, outBuf, uint32(w), uint32(h))
	default:
		err = modules.Swap(colorIndex, centroids, workBuf, uint32(w), uint32(h))
		outBuf = workBuf
	}
	if err != nil {
		return nil, err
	}

	if err := modules.ColorConvert(srcTex, outBuf, uint32(w), uint32(h), space, dirToSRGB); err != nil {
		return nil, err
	}

	raw, err := modules.disp.ReadBuffer(outBuf, uint64(w)*uint64(h)*16)
	if err != nil {
		return nil, err
	}

	alpha := make([]uint8, len(img.Pixels))
	for i, p := range img.Pixels {
		alpha[i] = p.A
	}
	return &Image{Width: w, Height: h, Pixels: floatsToPixels(raw, w*h, alpha)}, nil
}

// reduce is palette extraction followed immediately by find against the
// extracted palette: the common case the CLI's "reduce" subcommand drives.
func reduce(device *gpu.Device, mem *gpu.MemoryManager, modules *Modules, k int, img *Image, algo Algorithm, mode ReduceMode, space ColorSpace, seed uint32) (*Image, []Pixel, error) {
	colors, err := palette(device, mem, modules, k, img, algo, space, seed)
	if err != nil {
		return nil, nil, err
	}
	out, err := find(device, mem, modules, img, colors, mode, space)
	if err != nil {
		return nil, nil, err
	}
	return out, colors, nil
}
