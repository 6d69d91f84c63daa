package quant

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/quant/internal/gpu"
)

// KMeansResult is the outcome of a seeded Lloyd run: the converged (or
// iteration-capped) centroids and the per-pixel assignment each pixel
// ended with.
type KMeansResult struct {
	Centroids  *CentroidsBuffer
	ColorIndex hal.Buffer // owned by caller; width*height u32 entries
	Iterations int
	Converged  bool
}

// kmeansScratch bundles the working buffers the seeding and Lloyd loops
// share for one RunKMeans call.
type kmeansScratch struct {
	distMap      hal.Buffer
	prefix       hal.Buffer
	partials     hal.Buffer
	accum        hal.Buffer
	convergence  hal.Buffer
	chooseWgSums hal.Buffer
}

func allocScratchBuffer(device *gpu.Device, label string, sizeBytes uint64) (hal.Buffer, error) {
	buf, err := device.HAL().CreateBuffer(&hal.BufferDescriptor{
		Label: label,
		Size:  sizeBytes,
		Usage: gputypes.BufferUsageStorage | gputypes.BufferUsageCopyDst | gputypes.BufferUsageCopySrc,
	})
	if err != nil {
		return nil, fmt.Errorf("quant: allocate %s: %w", label, err)
	}
	return buf, nil
}

func newKmeansScratch(device *gpu.Device, width, height, k uint32) (*kmeansScratch, error) {
	n := uint64(width) * uint64(height)
	numScanWorkgroups := uint64(gpu.WorkgroupCount1D(width*height, 256))

	s := &kmeansScratch{}
	var err error
	if s.distMap, err = allocScratchBuffer(device, "kmeans_dist_map", n*4); err != nil {
		return nil, err
	}
	if s.prefix, err = allocScratchBuffer(device, "kmeans_prefix", n*4); err != nil {
		return nil, err
	}
	if s.partials, err = allocScratchBuffer(device, "kmeans_partials", numScanWorkgroups*4); err != nil {
		return nil, err
	}
	if s.accum, err = allocScratchBuffer(device, "kmeans_accum", 16); err != nil {
		return nil, err
	}
	if s.convergence, err = allocScratchBuffer(device, "kmeans_convergence", uint64(k+1)*4); err != nil {
		return nil, err
	}
	chooseWorkgroups := uint64(ChooseCentroidUpdateWorkgroups(width, height))
	if s.chooseWgSums, err = allocScratchBuffer(device, "kmeans_choose_wg_sums", chooseWorkgroups*4*4); err != nil {
		return nil, err
	}

	// dist_map must start at +inf: calc_diff's min() would otherwise clamp
	// every pixel's distance to zero before the first centroid is folded in.
	inf := make([]byte, n*4)
	for i := uint64(0); i < n; i++ {
		binary.LittleEndian.PutUint32(inf[i*4:], math.Float32bits(3.4e38))
	}
	if err := device.Queue().WriteBuffer(s.distMap, 0, inf); err != nil {
		return nil, fmt.Errorf("quant: seed dist_map: %w", err)
	}
	return s, nil
}

func (s *kmeansScratch) destroy(device *gpu.Device) {
	for _, b := range []hal.Buffer{s.distMap, s.prefix, s.partials, s.accum, s.convergence, s.chooseWgSums} {
		device.HAL().DestroyBuffer(b)
	}
}

// seedPlusPlus runs k-means++'s D^2 seeding over work, producing an
// EmptyCentroids-allocated CentroidsBuffer populated with k centroids.
// seed parameterizes the PRNG each pick draws from, derived from the
// caller's RunKMeans seed plus the centroid index so repeated runs with
// the same seed reproduce the same initial centroids.
func seedPlusPlus(modules *Modules, scratch *kmeansScratch, work hal.Buffer, centroids *CentroidsBuffer, width, height, k, seed uint32) error {
	if err := modules.PlusPlusInitial(work, centroids, scratch.distMap, scratch.prefix, scratch.partials, width, height); err != nil {
		return fmt.Errorf("quant: plusplus initial: %w", err)
	}

	for start := uint32(1); start < k; start += SeedingBatchSize {
		end := start + SeedingBatchSize
		if end > k {
			end = k
		}
		js := make([]uint32, 0, end-start)
		seeds := make([]uint32, 0, end-start)
		for j := start; j < end; j++ {
			js = append(js, j)
			seeds = append(seeds, seed*2654435761+j)
		}
		if err := modules.PlusPlusPickBatch(work, centroids, scratch.distMap, scratch.prefix, scratch.partials, width, height, js, seeds); err != nil {
			return fmt.Errorf("quant: plusplus pick batch [%d,%d): %w", start, end, err)
		}
	}
	return nil
}

func readConvergence(modules *Modules, convergence hal.Buffer, k uint32) (allConverged bool, err error) {
	raw, err := modules.disp.ReadBuffer(convergence, uint64(k)*4)
	if err != nil {
		return false, err
	}
	for i := uint32(0); i < k; i++ {
		if binary.LittleEndian.Uint32(raw[i*4:]) == 0 {
			return false, nil
		}
	}
	return true, nil
}

// RunKMeans seeds k centroids via k-means++ and runs Lloyd iteration to
// convergence (or MaxIteration, whichever comes first) over work, a
// width*height buffer of working-space values. distanceMode selects the
// FindCentroid assignment metric (0 = squared Euclidean, 1 = CIE94).
//
// The caller owns work and is responsible for destroying the returned
// ColorIndex buffer and Centroids when done.
func RunKMeans(device *gpu.Device, modules *Modules, work hal.Buffer, width, height int, k int, space ColorSpace, distanceMode uint32, seed uint32) (*KMeansResult, error) {
	w, h, kk := uint32(width), uint32(height), uint32(k)

	centroids, err := EmptyCentroids(device, kk)
	if err != nil {
		return nil, err
	}

	scratch, err := newKmeansScratch(device, w, h, kk)
	if err != nil {
		centroids.Destroy()
		return nil, err
	}
	defer scratch.destroy(device)

	if err := seedPlusPlus(modules, scratch, work, centroids, w, h, kk, seed); err != nil {
		centroids.Destroy()
		return nil, err
	}

	colorIndex, err := allocScratchBuffer(device, "kmeans_color_index", uint64(w)*uint64(h)*4)
	if err != nil {
		centroids.Destroy()
		return nil, err
	}

	epsilonSq := space.Epsilon() * space.Epsilon()
	converged := false
	iter := 0
	for ; iter < MaxIteration; iter++ {
		if err := modules.FindCentroid(work, centroids, colorIndex, w, h, distanceMode); err != nil {
			centroids.Destroy()
			device.HAL().DestroyBuffer(colorIndex)
			return nil, fmt.Errorf("quant: find_centroid iteration %d: %w", iter, err)
		}

		for start := uint32(0); start < kk; start += LloydBatchSize {
			end := start + LloydBatchSize
			if end > kk {
				end = kk
			}
			ks := make([]uint32, 0, end-start)
			for c := start; c < end; c++ {
				ks = append(ks, c)
			}
			if err := modules.ChooseCentroidUpdateBatch(work, colorIndex, centroids, scratch.accum, scratch.convergence, scratch.chooseWgSums, w, h, ks, epsilonSq); err != nil {
				centroids.Destroy()
				device.HAL().DestroyBuffer(colorIndex)
				return nil, fmt.Errorf("quant: choose_centroid batch [%d,%d) iteration %d: %w", start, end, iter, err)
			}
		}

		if (iter+1)%ConvergenceCheckInterval == 0 || iter == MaxIteration-1 {
			allConverged, err := readConvergence(modules, scratch.convergence, kk)
			if err != nil {
				centroids.Destroy()
				device.HAL().DestroyBuffer(colorIndex)
				return nil, fmt.Errorf("quant: read convergence: %w", err)
			}
			if allConverged {
				converged = true
				iter++
				break
			}
		}
	}

	return &KMeansResult{
		Centroids:  centroids,
		ColorIndex: colorIndex,
		Iterations: iter,
		Converged:  converged,
	}, nil
}
