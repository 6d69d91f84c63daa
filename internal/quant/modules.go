package quant

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/quant/internal/gpu"
)

// Direction constants for ColorConverter/ColorReverter, matching
// color_convert.wgsl's params.direction field.
const (
	dirToWorking uint32 = 0
	dirToSRGB    uint32 = 1
)

// Modules owns one compiled gpu.Pipeline per compute kernel the
// quantization engine dispatches. It is built once per ImageProcessor and
// shared across every Palette/Find/Reduce call.
type Modules struct {
	device *gpu.Device
	disp   *gpu.Dispatcher

	colorConvert *gpu.Pipeline
	resize       *gpu.Pipeline

	ppInitial  *gpu.Pipeline
	ppCalcDiff *gpu.Pipeline
	ppScan     *gpu.Pipeline
	ppPick     *gpu.Pipeline

	findCentroid *gpu.Pipeline

	chooseAccumulate *gpu.Pipeline
	choosePick       *gpu.Pipeline

	swap   *gpu.Pipeline
	dither *gpu.Pipeline
	meld   *gpu.Pipeline
}

func uniformEntry(binding uint32) hal.BindGroupLayoutEntry {
	return hal.BindGroupLayoutEntry{
		Binding:    binding,
		Visibility: gputypes.ShaderStageCompute,
		Buffer:     &hal.BufferBindingLayout{Type: gputypes.BufferBindingTypeUniform},
	}
}

func storageROEntry(binding uint32) hal.BindGroupLayoutEntry {
	return hal.BindGroupLayoutEntry{
		Binding:    binding,
		Visibility: gputypes.ShaderStageCompute,
		Buffer:     &hal.BufferBindingLayout{Type: gputypes.BufferBindingTypeReadOnlyStorage},
	}
}

func storageRWEntry(binding uint32) hal.BindGroupLayoutEntry {
	return hal.BindGroupLayoutEntry{
		Binding:    binding,
		Visibility: gputypes.ShaderStageCompute,
		Buffer:     &hal.BufferBindingLayout{Type: gputypes.BufferBindingTypeStorage},
	}
}

func textureEntry(binding uint32) hal.BindGroupLayoutEntry {
	return hal.BindGroupLayoutEntry{
		Binding:    binding,
		Visibility: gputypes.ShaderStageCompute,
		Texture: &hal.TextureBindingLayout{
			SampleType:    gputypes.TextureSampleTypeFloat,
			ViewDimension: gputypes.TextureViewDimension2D,
		},
	}
}

// NewModules compiles every compute kernel the quantization engine needs
// against device. Compilation happens once; failures here mean a shader
// source is malformed, not that the operation's inputs are bad.
func NewModules(device *gpu.Device) (*Modules, error) {
	m := &Modules{
		device: device,
		disp:   gpu.NewDispatcher(device.HAL(), device.Queue()),
	}

	type spec struct {
		dst   **gpu.Pipeline
		label string
		wgsl  string
		entry string
		binds []hal.BindGroupLayoutEntry
	}

	specs := []spec{
		{&m.colorConvert, "color_convert", colorConvertWGSL, "main",
			[]hal.BindGroupLayoutEntry{uniformEntry(0), textureEntry(1), storageRWEntry(2)}},
		{&m.resize, "resize", resizeWGSL, "main",
			[]hal.BindGroupLayoutEntry{uniformEntry(0), textureEntry(1), storageRWEntry(2)}},
		{&m.ppInitial, "plusplus_initial", plusPlusInitWGSL, "initial",
			[]hal.BindGroupLayoutEntry{uniformEntry(0), storageROEntry(1), storageRWEntry(2), storageRWEntry(3), storageRWEntry(4), storageRWEntry(5)}},
		{&m.ppCalcDiff, "plusplus_calc_diff", plusPlusInitWGSL, "calc_diff",
			[]hal.BindGroupLayoutEntry{uniformEntry(0), storageROEntry(1), storageRWEntry(2), storageRWEntry(3), storageRWEntry(4), storageRWEntry(5)}},
		{&m.ppScan, "plusplus_scan", plusPlusInitWGSL, "main",
			[]hal.BindGroupLayoutEntry{uniformEntry(0), storageROEntry(1), storageRWEntry(2), storageRWEntry(3), storageRWEntry(4), storageRWEntry(5)}},
		{&m.ppPick, "plusplus_pick", plusPlusInitWGSL, "pick",
			[]hal.BindGroupLayoutEntry{uniformEntry(0), storageROEntry(1), storageRWEntry(2), storageRWEntry(3), storageRWEntry(4), storageRWEntry(5)}},
		{&m.findCentroid, "find_centroid", findCentroidWGSL, "main",
			[]hal.BindGroupLayoutEntry{uniformEntry(0), storageROEntry(1), storageROEntry(2), storageRWEntry(3)}},
		{&m.chooseAccumulate, "choose_centroid_accumulate", chooseCentroidWGSL, "main",
			[]hal.BindGroupLayoutEntry{uniformEntry(0), storageROEntry(1), storageROEntry(2), storageRWEntry(3), storageRWEntry(4), storageRWEntry(5), storageRWEntry(6)}},
		{&m.choosePick, "choose_centroid_pick", chooseCentroidWGSL, "pick",
			[]hal.BindGroupLayoutEntry{uniformEntry(0), storageROEntry(1), storageROEntry(2), storageRWEntry(3), storageRWEntry(4), storageRWEntry(5), storageRWEntry(6)}},
		{&m.swap, "swap", swapWGSL, "main",
			[]hal.BindGroupLayoutEntry{uniformEntry(0), storageROEntry(1), storageROEntry(2), storageRWEntry(3)}},
		{&m.dither, "mix_dither", mixColorsWGSL, "dither",
			[]hal.BindGroupLayoutEntry{uniformEntry(0), storageROEntry(1), storageROEntry(2), storageROEntry(3), storageRWEntry(4)}},
		{&m.meld, "mix_meld", mixColorsWGSL, "meld",
			[]hal.BindGroupLayoutEntry{uniformEntry(0), storageROEntry(1), storageROEntry(2), storageROEntry(3), storageRWEntry(4)}},
	}

	for _, s := range specs {
		p, err := gpu.CreatePipeline(device.HAL(), gpu.PipelineConfig{
			Label:      s.label,
			WGSL:       s.wgsl,
			EntryPoint: s.entry,
			Bindings:   s.binds,
		})
		if err != nil {
			m.Close()
			return nil, fmt.Errorf("quant: compile %s: %w", s.label, err)
		}
		*s.dst = p
	}

	return m, nil
}

// Close releases every compiled pipeline. Safe to call on a partially
// constructed Modules.
func (m *Modules) Close() {
	for _, p := range []*gpu.Pipeline{
		m.colorConvert, m.resize, m.ppInitial, m.ppCalcDiff, m.ppScan, m.ppPick,
		m.findCentroid, m.chooseAccumulate, m.choosePick, m.swap, m.dither, m.meld,
	} {
		if p != nil {
			p.Close()
		}
	}
}

func (m *Modules) uniformBuffer(label string, data []byte) (hal.Buffer, error) {
	buf, err := m.device.HAL().CreateBuffer(&hal.BufferDescriptor{
		Label: label,
		Size:  uint64(len(data)),
		Usage: gputypes.BufferUsageUniform | gputypes.BufferUsageCopyDst,
	})
	if err != nil {
		return nil, fmt.Errorf("quant: create uniform buffer %q: %w", label, err)
	}
	if err := m.device.Queue().WriteBuffer(buf, 0, data); err != nil {
		m.device.HAL().DestroyBuffer(buf)
		return nil, fmt.Errorf("quant: write uniform buffer %q: %w", label, err)
	}
	return buf, nil
}

func putU32(b []byte, off int, v uint32) { binary.LittleEndian.PutUint32(b[off:], v) }
func putF32(b []byte, off int, v float32) { binary.LittleEndian.PutUint32(b[off:], math.Float32bits(v)) }

// ColorConvert runs the ColorConverter/ColorReverter kernel over a
// width x height grid, converting InputTexture samples into work (when
// direction is dirToWorking) or work's working-space values back into
// sRGB floats in place (when direction is dirToSRGB).
func (m *Modules) ColorConvert(src *gpu.Texture, work hal.Buffer, width, height uint32, space ColorSpace, direction uint32) error {
	params := make([]byte, 16)
	putU32(params, 0, width)
	putU32(params, 4, height)
	putU32(params, 8, uint32(space))
	putU32(params, 12, direction)

	uniform, err := m.uniformBuffer("color_convert_params", params)
	if err != nil {
		return err
	}
	defer m.device.HAL().DestroyBuffer(uniform)

	wx, wy := gpu.WorkgroupCount2D(width, height, 16, 16)
	return m.disp.Submit("color_convert", []gpu.DispatchCall{{
		Pipeline: m.colorConvert,
		Label:    "color_convert",
		Entries: []hal.BindGroupEntry{
			{Binding: 0, Buffer: uniform},
			{Binding: 1, TextureView: src.View()},
			{Binding: 2, Buffer: work},
		},
		WorkgroupX: wx,
		WorkgroupY: wy,
	}})
}

// Resize runs the Resize kernel, bilinearly downsampling src into a
// dstWidth x dstHeight float buffer.
func (m *Modules) Resize(src *gpu.Texture, dst hal.Buffer, srcW, srcH, dstW, dstH uint32) error {
	params := make([]byte, 16)
	putU32(params, 0, srcW)
	putU32(params, 4, srcH)
	putU32(params, 8, dstW)
	putU32(params, 12, dstH)

	uniform, err := m.uniformBuffer("resize_params", params)
	if err != nil {
		return err
	}
	defer m.device.HAL().DestroyBuffer(uniform)

	wx, wy := gpu.WorkgroupCount2D(dstW, dstH, 16, 16)
	return m.disp.Submit("resize", []gpu.DispatchCall{{
		Pipeline: m.resize,
		Label:    "resize",
		Entries: []hal.BindGroupEntry{
			{Binding: 0, Buffer: uniform},
			{Binding: 1, TextureView: src.View()},
			{Binding: 2, Buffer: dst},
		},
		WorkgroupX: wx,
		WorkgroupY: wy,
	}})
}

// ppBindings returns the shared bind group entries PlusPlusInit's four
// entry points read and write, differing only by which uniform params
// buffer is bound.
func (m *Modules) ppBindings(uniform hal.Buffer, work, centroids, distMap, prefix, partials hal.Buffer) []hal.BindGroupEntry {
	return []hal.BindGroupEntry{
		{Binding: 0, Buffer: uniform},
		{Binding: 1, Buffer: work},
		{Binding: 2, Buffer: centroids},
		{Binding: 3, Buffer: distMap},
		{Binding: 4, Buffer: prefix},
		{Binding: 5, Buffer: partials},
	}
}

// PlusPlusInitial seeds centroid 0 with pixel 0's working-space value.
func (m *Modules) PlusPlusInitial(work hal.Buffer, centroids *CentroidsBuffer, distMap, prefix, partials hal.Buffer, width, height uint32) error {
	params := make([]byte, 16)
	putU32(params, 0, width)
	putU32(params, 4, height)
	uniform, err := m.uniformBuffer("pp_initial_params", params)
	if err != nil {
		return err
	}
	defer m.device.HAL().DestroyBuffer(uniform)

	return m.disp.Submit("plusplus_initial", []gpu.DispatchCall{{
		Pipeline:   m.ppInitial,
		Label:      "plusplus_initial",
		Entries:    m.ppBindings(uniform, work, centroids.Raw(), distMap, prefix, partials),
		WorkgroupX: 1,
		WorkgroupY: 1,
	}})
}

// PlusPlusCalcDiff folds the most recently chosen centroid k into the
// running per-pixel minimum squared distance map.
func (m *Modules) PlusPlusCalcDiff(work hal.Buffer, centroids *CentroidsBuffer, distMap, prefix, partials hal.Buffer, width, height, k uint32) error {
	calls, uniform, err := m.plusPlusCalcDiffCalls(work, centroids, distMap, prefix, partials, width, height, k)
	if err != nil {
		return err
	}
	defer m.device.HAL().DestroyBuffer(uniform)
	return m.disp.Submit("plusplus_calc_diff", calls)
}

func (m *Modules) plusPlusCalcDiffCalls(work hal.Buffer, centroids *CentroidsBuffer, distMap, prefix, partials hal.Buffer, width, height, k uint32) ([]gpu.DispatchCall, hal.Buffer, error) {
	params := make([]byte, 16)
	putU32(params, 0, width)
	putU32(params, 4, height)
	putU32(params, 8, k)
	uniform, err := m.uniformBuffer("pp_calc_diff_params", params)
	if err != nil {
		return nil, nil, err
	}

	n := width * height
	return []gpu.DispatchCall{{
		Pipeline:   m.ppCalcDiff,
		Label:      "plusplus_calc_diff",
		Entries:    m.ppBindings(uniform, work, centroids.Raw(), distMap, prefix, partials),
		WorkgroupX: gpu.WorkgroupCount1D(n, 256),
		WorkgroupY: 1,
	}}, uniform, nil
}

// PlusPlusScan runs the decoupled look-back prefix scan over distMap,
// producing an inclusive running total in prefix.
func (m *Modules) PlusPlusScan(work hal.Buffer, centroids *CentroidsBuffer, distMap, prefix, partials hal.Buffer, width, height uint32) error {
	calls, uniform, err := m.plusPlusScanCalls(work, centroids, distMap, prefix, partials, width, height)
	if err != nil {
		return err
	}
	defer m.device.HAL().DestroyBuffer(uniform)
	return m.disp.Submit("plusplus_scan", calls)
}

func (m *Modules) plusPlusScanCalls(work hal.Buffer, centroids *CentroidsBuffer, distMap, prefix, partials hal.Buffer, width, height uint32) ([]gpu.DispatchCall, hal.Buffer, error) {
	params := make([]byte, 16)
	putU32(params, 0, width)
	putU32(params, 4, height)
	uniform, err := m.uniformBuffer("pp_scan_params", params)
	if err != nil {
		return nil, nil, err
	}

	n := width * height
	return []gpu.DispatchCall{{
		Pipeline:   m.ppScan,
		Label:      "plusplus_scan",
		Entries:    m.ppBindings(uniform, work, centroids.Raw(), distMap, prefix, partials),
		WorkgroupX: gpu.WorkgroupCount1D(n, 256),
		WorkgroupY: 1,
	}}, uniform, nil
}

// PlusPlusPick draws a uniform sample against prefix's total and writes
// the chosen pixel's working-space value into centroid k.
func (m *Modules) PlusPlusPick(work hal.Buffer, centroids *CentroidsBuffer, distMap, prefix, partials hal.Buffer, width, height, k, seed uint32) error {
	calls, uniform, err := m.plusPlusPickCalls(work, centroids, distMap, prefix, partials, width, height, k, seed)
	if err != nil {
		return err
	}
	defer m.device.HAL().DestroyBuffer(uniform)
	return m.disp.Submit("plusplus_pick", calls)
}

func (m *Modules) plusPlusPickCalls(work hal.Buffer, centroids *CentroidsBuffer, distMap, prefix, partials hal.Buffer, width, height, k, seed uint32) ([]gpu.DispatchCall, hal.Buffer, error) {
	params := make([]byte, 16)
	putU32(params, 0, width)
	putU32(params, 4, height)
	putU32(params, 8, k)
	putU32(params, 12, seed)
	uniform, err := m.uniformBuffer("pp_pick_params", params)
	if err != nil {
		return nil, nil, err
	}

	return []gpu.DispatchCall{{
		Pipeline:   m.ppPick,
		Label:      "plusplus_pick",
		Entries:    m.ppBindings(uniform, work, centroids.Raw(), distMap, prefix, partials),
		WorkgroupX: 1,
		WorkgroupY: 1,
	}}, uniform, nil
}

// PlusPlusPickBatch records the calc_diff/scan/pick triad for each centroid
// index in js (in order) into a single command buffer and submits once,
// amortizing the submit/fence-wait cost across up to SeedingBatchSize
// iterations instead of paying it per centroid. Safe because each
// iteration's passes only ever depend on the previous iteration's GPU-side
// writes, never on a CPU-side readback mid-batch - exactly the ordering
// Dispatcher.Submit already guarantees between passes in one command
// buffer.
func (m *Modules) PlusPlusPickBatch(work hal.Buffer, centroids *CentroidsBuffer, distMap, prefix, partials hal.Buffer, width, height uint32, js, seeds []uint32) error {
	if len(js) != len(seeds) {
		return fmt.Errorf("quant: plusplus pick batch: %d indices but %d seeds", len(js), len(seeds))
	}
	if len(js) > SeedingBatchSize {
		return fmt.Errorf("quant: plusplus pick batch of %d exceeds SeedingBatchSize %d", len(js), SeedingBatchSize)
	}

	var calls []gpu.DispatchCall
	var uniforms []hal.Buffer
	defer func() {
		for _, u := range uniforms {
			m.device.HAL().DestroyBuffer(u)
		}
	}()

	for i, j := range js {
		diffCalls, diffUniform, err := m.plusPlusCalcDiffCalls(work, centroids, distMap, prefix, partials, width, height, j)
		if err != nil {
			return err
		}
		uniforms = append(uniforms, diffUniform)
		calls = append(calls, diffCalls...)

		scanCalls, scanUniform, err := m.plusPlusScanCalls(work, centroids, distMap, prefix, partials, width, height)
		if err != nil {
			return err
		}
		uniforms = append(uniforms, scanUniform)
		calls = append(calls, scanCalls...)

		pickCalls, pickUniform, err := m.plusPlusPickCalls(work, centroids, distMap, prefix, partials, width, height, j, seeds[i])
		if err != nil {
			return err
		}
		uniforms = append(uniforms, pickUniform)
		calls = append(calls, pickCalls...)
	}

	return m.disp.Submit("plusplus_pick_batch", calls)
}

// FindCentroid assigns every pixel to its nearest centroid under
// distanceMode (0 = squared Euclidean, 1 = CIE94), writing colorIndex.
func (m *Modules) FindCentroid(work hal.Buffer, centroids *CentroidsBuffer, colorIndex hal.Buffer, width, height uint32, distanceMode uint32) error {
	params := make([]byte, 16)
	putU32(params, 0, width)
	putU32(params, 4, height)
	putU32(params, 8, centroids.K())
	putU32(params, 12, distanceMode)
	uniform, err := m.uniformBuffer("find_centroid_params", params)
	if err != nil {
		return err
	}
	defer m.device.HAL().DestroyBuffer(uniform)

	wx, wy := gpu.WorkgroupCount2D(width, height, 16, 16)
	return m.disp.Submit("find_centroid", []gpu.DispatchCall{{
		Pipeline: m.findCentroid,
		Label:    "find_centroid",
		Entries: []hal.BindGroupEntry{
			{Binding: 0, Buffer: uniform},
			{Binding: 1, Buffer: work},
			{Binding: 2, Buffer: centroids.Raw()},
			{Binding: 3, Buffer: colorIndex},
		},
		WorkgroupX: wx,
		WorkgroupY: wy,
	}})
}

// ChooseCentroidUpdateWorkgroups returns the number of workgroups the
// accumulate pass of ChooseCentroidUpdate dispatches for a width*height
// image, i.e. the number of wgPartials slots its caller must allocate.
func ChooseCentroidUpdateWorkgroups(width, height uint32) uint32 {
	threadsNeeded := gpu.WorkgroupCount1D(width*height, NSeq)
	return gpu.WorkgroupCount1D(threadsNeeded, 256)
}

// ChooseCentroidUpdate accumulates pixels assigned to centroid k into
// accum (4 u32 slots: sumR, sumG, sumB, count bitcast as f32/u32) and
// finalizes the mean plus convergence flag in one submission. wgPartials
// is scratch space sized ChooseCentroidUpdateWorkgroups(width,height)*4
// u32 slots: each workgroup of the accumulate pass publishes its own
// partial sum there via a single atomicStore, and pick combines every
// workgroup's partial with ordinary float addition — the same decoupled
// look-back shape PlusPlusScan uses, so no two invocations ever add
// directly into the same atomic.
func (m *Modules) ChooseCentroidUpdate(work, colorIndex hal.Buffer, centroids *CentroidsBuffer, accum, convergence, wgPartials hal.Buffer, width, height, k uint32, epsilonSq float32) error {
	calls, uniform, err := m.chooseCentroidCalls(work, colorIndex, centroids, accum, convergence, wgPartials, width, height, k, epsilonSq)
	if err != nil {
		return err
	}
	defer m.device.HAL().DestroyBuffer(uniform)
	return m.disp.Submit("choose_centroid", calls)
}

func (m *Modules) chooseCentroidCalls(work, colorIndex hal.Buffer, centroids *CentroidsBuffer, accum, convergence, wgPartials hal.Buffer, width, height, k uint32, epsilonSq float32) ([]gpu.DispatchCall, hal.Buffer, error) {
	params := make([]byte, 20)
	putU32(params, 0, width)
	putU32(params, 4, height)
	putU32(params, 8, k)
	putU32(params, 12, NSeq)
	putF32(params, 16, epsilonSq)
	uniform, err := m.uniformBuffer("choose_centroid_params", params)
	if err != nil {
		return nil, nil, err
	}

	entries := []hal.BindGroupEntry{
		{Binding: 0, Buffer: uniform},
		{Binding: 1, Buffer: work},
		{Binding: 2, Buffer: colorIndex},
		{Binding: 3, Buffer: centroids.Raw()},
		{Binding: 4, Buffer: accum},
		{Binding: 5, Buffer: convergence},
		{Binding: 6, Buffer: wgPartials},
	}

	return []gpu.DispatchCall{
		{
			Pipeline:   m.chooseAccumulate,
			Label:      "choose_centroid_accumulate",
			Entries:    entries,
			WorkgroupX: ChooseCentroidUpdateWorkgroups(width, height),
			WorkgroupY: 1,
		},
		{
			Pipeline:   m.choosePick,
			Label:      "choose_centroid_pick",
			Entries:    entries,
			WorkgroupX: 1,
			WorkgroupY: 1,
		},
	}, uniform, nil
}

// ChooseCentroidUpdateBatch runs ChooseCentroidUpdate for every centroid
// index in ks, recording all of their accumulate/pick pass pairs into a
// single command buffer and submitting once. Each centroid's passes write
// only its own centroids/convergence slot; the accum and wgPartials scratch
// is shared, but each accumulate pass rewrites it before its own pick pass
// reads it, so batching changes nothing about correctness - it only amortizes the submit/fence-wait cost
// across up to LloydBatchSize centroids per Lloyd iteration instead of
// paying it once per centroid.
func (m *Modules) ChooseCentroidUpdateBatch(work, colorIndex hal.Buffer, centroids *CentroidsBuffer, accum, convergence, wgPartials hal.Buffer, width, height uint32, ks []uint32, epsilonSq float32) error {
	if len(ks) > LloydBatchSize {
		return fmt.Errorf("quant: choose_centroid batch of %d exceeds LloydBatchSize %d", len(ks), LloydBatchSize)
	}

	var calls []gpu.DispatchCall
	var uniforms []hal.Buffer
	defer func() {
		for _, u := range uniforms {
			m.device.HAL().DestroyBuffer(u)
		}
	}()

	for _, k := range ks {
		kCalls, uniform, err := m.chooseCentroidCalls(work, colorIndex, centroids, accum, convergence, wgPartials, width, height, k, epsilonSq)
		if err != nil {
			return err
		}
		uniforms = append(uniforms, uniform)
		calls = append(calls, kCalls...)
	}

	return m.disp.Submit("choose_centroid_batch", calls)
}

// Swap writes each pixel's assigned centroid color directly into work.
func (m *Modules) Swap(colorIndex hal.Buffer, centroids *CentroidsBuffer, work hal.Buffer, width, height uint32) error {
	params := make([]byte, 8)
	putU32(params, 0, width)
	putU32(params, 4, height)
	uniform, err := m.uniformBuffer("swap_params", params)
	if err != nil {
		return err
	}
	defer m.device.HAL().DestroyBuffer(uniform)

	wx, wy := gpu.WorkgroupCount2D(width, height, 16, 16)
	return m.disp.Submit("swap", []gpu.DispatchCall{{
		Pipeline: m.swap,
		Label:    "swap",
		Entries: []hal.BindGroupEntry{
			{Binding: 0, Buffer: uniform},
			{Binding: 1, Buffer: colorIndex},
			{Binding: 2, Buffer: centroids.Raw()},
			{Binding: 3, Buffer: work},
		},
		WorkgroupX: wx,
		WorkgroupY: wy,
	}})
}

func (m *Modules) mixDispatch(pipeline *gpu.Pipeline, label string, original, colorIndex hal.Buffer, centroids *CentroidsBuffer, outWork hal.Buffer, width, height uint32) error {
	params := make([]byte, 12)
	putU32(params, 0, width)
	putU32(params, 4, height)
	putU32(params, 8, centroids.K())
	uniform, err := m.uniformBuffer(label+"_params", params)
	if err != nil {
		return err
	}
	defer m.device.HAL().DestroyBuffer(uniform)

	wx, wy := gpu.WorkgroupCount2D(width, height, 16, 16)
	return m.disp.Submit(label, []gpu.DispatchCall{{
		Pipeline: pipeline,
		Label:    label,
		Entries: []hal.BindGroupEntry{
			{Binding: 0, Buffer: uniform},
			{Binding: 1, Buffer: original},
			{Binding: 2, Buffer: colorIndex},
			{Binding: 3, Buffer: centroids.Raw()},
			{Binding: 4, Buffer: outWork},
		},
		WorkgroupX: wx,
		WorkgroupY: wy,
	}})
}

// Dither applies 8x8 ordered-dither bias before argmin reselection.
func (m *Modules) Dither(original, colorIndex hal.Buffer, centroids *CentroidsBuffer, outWork hal.Buffer, width, height uint32) error {
	return m.mixDispatch(m.dither, "mix_dither", original, colorIndex, centroids, outWork, width, height)
}

// Meld blends each pixel's assigned centroid with an edge-aware weighted
// average of its 3x3 neighbors' assigned centroids.
func (m *Modules) Meld(original, colorIndex hal.Buffer, centroids *CentroidsBuffer, outWork hal.Buffer, width, height uint32) error {
	return m.mixDispatch(m.meld, "mix_meld", original, colorIndex, centroids, outWork, width, height)
}
