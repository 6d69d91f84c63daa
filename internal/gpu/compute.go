//go:build !nogpu

package gpu

import (
	"errors"
	"fmt"
	"time"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
)

// Compute dispatch errors.
var (
	// ErrPipelineClosed is returned when operating on a released Pipeline.
	ErrPipelineClosed = errors.New("gpu: pipeline has been closed")

	// ErrDispatchTimeout is returned when the GPU does not signal command
	// completion within the configured wait timeout.
	ErrDispatchTimeout = errors.New("gpu: dispatch timed out waiting for GPU")
)

// defaultWaitTimeout bounds how long a single Submit+Wait round trip blocks
// before returning ErrDispatchTimeout. Every quantization compute module
// dispatches well within this window; a real timeout indicates a lost
// device rather than a slow kernel.
const defaultWaitTimeout = 30 * time.Second

// Pipeline is a single compiled compute kernel: a shader module, its bind
// group layout, pipeline layout, and the resulting compute pipeline. Each
// WGSL entry point used by internal/quant gets its own Pipeline, so a shader
// with several entry points (ChooseCentroid's main/pick, PlusPlusInit's
// four, MixColors' dither/meld) yields one Pipeline per entry point.
type Pipeline struct {
	device hal.Device

	module         hal.ShaderModule
	bgLayout       hal.BindGroupLayout
	pipelineLayout hal.PipelineLayout
	pipeline       hal.ComputePipeline

	label  string
	closed bool
}

// PipelineConfig describes a compute kernel to compile.
type PipelineConfig struct {
	Label      string
	WGSL       string
	EntryPoint string // defaults to "main" when empty
	Bindings   []hal.BindGroupLayoutEntry
}

// CreatePipeline compiles a WGSL compute shader and builds its bind group
// layout, pipeline layout, and compute pipeline in one step. Each returned
// Pipeline owns its own bind group layout; callers create a fresh
// hal.BindGroup per Dispatch call against that layout.
func CreatePipeline(device hal.Device, cfg PipelineConfig) (*Pipeline, error) {
	if device == nil {
		return nil, ErrNilHALDevice
	}
	entry := cfg.EntryPoint
	if entry == "" {
		entry = "main"
	}

	module, err := newShaderModule(device, cfg.Label, cfg.WGSL)
	if err != nil {
		return nil, fmt.Errorf("gpu: compile shader %q: %w", cfg.Label, err)
	}

	bgLayout, err := device.CreateBindGroupLayout(&hal.BindGroupLayoutDescriptor{
		Label:   cfg.Label + "_bgl",
		Entries: cfg.Bindings,
	})
	if err != nil {
		device.DestroyShaderModule(module)
		return nil, fmt.Errorf("gpu: create bind group layout %q: %w", cfg.Label, err)
	}

	pipelineLayout, err := device.CreatePipelineLayout(&hal.PipelineLayoutDescriptor{
		Label:            cfg.Label + "_pl",
		BindGroupLayouts: []hal.BindGroupLayout{bgLayout},
	})
	if err != nil {
		device.DestroyBindGroupLayout(bgLayout)
		device.DestroyShaderModule(module)
		return nil, fmt.Errorf("gpu: create pipeline layout %q: %w", cfg.Label, err)
	}

	pipeline, err := device.CreateComputePipeline(&hal.ComputePipelineDescriptor{
		Label:  cfg.Label,
		Layout: pipelineLayout,
		Compute: hal.ComputeState{
			Module:     module,
			EntryPoint: entry,
		},
	})
	if err != nil {
		device.DestroyPipelineLayout(pipelineLayout)
		device.DestroyBindGroupLayout(bgLayout)
		device.DestroyShaderModule(module)
		return nil, fmt.Errorf("gpu: create compute pipeline %q: %w", cfg.Label, err)
	}

	slogger().Debug("gpu: compute pipeline created", "label", cfg.Label, "bindings", len(cfg.Bindings))

	return &Pipeline{
		device:         device,
		module:         module,
		bgLayout:       bgLayout,
		pipelineLayout: pipelineLayout,
		pipeline:       pipeline,
		label:          cfg.Label,
	}, nil
}

// BindGroupLayout returns the layout callers must build hal.BindGroupEntry
// slices against for Dispatch.
func (p *Pipeline) BindGroupLayout() hal.BindGroupLayout { return p.bgLayout }

// Label returns the pipeline's debug label.
func (p *Pipeline) Label() string { return p.label }

// Close releases the pipeline, its layouts, and its shader module.
// Idempotent.
func (p *Pipeline) Close() {
	if p.closed {
		return
	}
	p.device.DestroyComputePipeline(p.pipeline)
	p.device.DestroyPipelineLayout(p.pipelineLayout)
	p.device.DestroyBindGroupLayout(p.bgLayout)
	p.device.DestroyShaderModule(p.module)
	p.closed = true
}

// Dispatcher records and submits compute passes against a single device and
// queue. It has no render-pass concept: every quantization module dispatches
// one or more compute passes and waits synchronously for completion, which
// matches the Lloyd-iteration host loop's need to read back convergence
// state between batches.
type Dispatcher struct {
	device hal.Device
	queue  hal.Queue
}

// NewDispatcher creates a Dispatcher bound to the given device and queue.
func NewDispatcher(device hal.Device, queue hal.Queue) *Dispatcher {
	return &Dispatcher{device: device, queue: queue}
}

// DispatchCall is one compute-pass invocation within a command buffer:
// bind a Pipeline's bind group and dispatch a 3D workgroup grid.
type DispatchCall struct {
	Pipeline   *Pipeline
	Label      string
	Entries    []hal.BindGroupEntry
	WorkgroupX uint32
	WorkgroupY uint32
	WorkgroupZ uint32 // defaults to 1 when zero
}

// Submit records every call in order into a single command buffer, submits
// it, and blocks until the GPU signals completion or defaultWaitTimeout
// elapses. This is the synchronous dispatch shape every compute module in
// internal/quant uses: ColorConverter, Resize, PlusPlusInit's calc_diff/
// main/pick triad, FindCentroid, ChooseCentroid, Swap, and MixColors all
// reduce to one or more DispatchCall entries submitted together.
func (d *Dispatcher) Submit(label string, calls []DispatchCall) error {
	if len(calls) == 0 {
		return nil
	}

	encoder, err := d.device.CreateCommandEncoder(&hal.CommandEncoderDescriptor{Label: label})
	if err != nil {
		return fmt.Errorf("gpu: create command encoder %q: %w", label, err)
	}
	if err := encoder.BeginEncoding(label); err != nil {
		return fmt.Errorf("gpu: begin encoding %q: %w", label, err)
	}

	var bindGroups []hal.BindGroup
	defer func() {
		for _, bg := range bindGroups {
			d.device.DestroyBindGroup(bg)
		}
	}()

	for _, c := range calls {
		if c.Pipeline == nil || c.Pipeline.closed {
			encoder.DiscardEncoding()
			return ErrPipelineClosed
		}
		wgZ := c.WorkgroupZ
		if wgZ == 0 {
			wgZ = 1
		}

		bg, err := d.device.CreateBindGroup(&hal.BindGroupDescriptor{
			Label:   c.Label + "_bg",
			Layout:  c.Pipeline.bgLayout,
			Entries: c.Entries,
		})
		if err != nil {
			encoder.DiscardEncoding()
			return fmt.Errorf("gpu: create bind group %q: %w", c.Label, err)
		}
		bindGroups = append(bindGroups, bg)

		pass := encoder.BeginComputePass(&hal.ComputePassDescriptor{Label: c.Label})
		pass.SetPipeline(c.Pipeline.pipeline)
		pass.SetBindGroup(0, bg, nil)
		pass.Dispatch(c.WorkgroupX, c.WorkgroupY, wgZ)
		pass.End()
	}

	cmdBuf, err := encoder.EndEncoding()
	if err != nil {
		return fmt.Errorf("gpu: end encoding %q: %w", label, err)
	}
	defer d.device.FreeCommandBuffer(cmdBuf)

	fence, err := d.device.CreateFence()
	if err != nil {
		return fmt.Errorf("gpu: create fence for %q: %w", label, err)
	}
	defer d.device.DestroyFence(fence)

	if err := d.queue.Submit([]hal.CommandBuffer{cmdBuf}, fence, 1); err != nil {
		return fmt.Errorf("gpu: submit %q: %w", label, err)
	}

	ok, err := d.device.Wait(fence, 1, defaultWaitTimeout)
	if err != nil {
		return fmt.Errorf("gpu: wait for %q: %w", label, err)
	}
	if !ok {
		return fmt.Errorf("%w: %q after %v", ErrDispatchTimeout, label, defaultWaitTimeout)
	}

	slogger().Debug("gpu: dispatch complete", "label", label, "passes", len(calls))
	return nil
}

// ReadBuffer copies size bytes out of a GPU buffer via a staging buffer and
// returns the bytes. Used by the convergence check (ConvergenceVector
// readback every 8 iterations) and by the final centroid/index pull after a
// palette/find/reduce operation completes.
func (d *Dispatcher) ReadBuffer(src hal.Buffer, size uint64) ([]byte, error) {
	staging, err := d.device.CreateBuffer(&hal.BufferDescriptor{
		Label: "readback_staging",
		Size:  size,
		Usage: gputypes.BufferUsageMapRead | gputypes.BufferUsageCopyDst,
	})
	if err != nil {
		return nil, fmt.Errorf("gpu: create staging buffer: %w", err)
	}
	defer d.device.DestroyBuffer(staging)

	encoder, err := d.device.CreateCommandEncoder(&hal.CommandEncoderDescriptor{Label: "readback"})
	if err != nil {
		return nil, fmt.Errorf("gpu: create readback encoder: %w", err)
	}
	if err := encoder.BeginEncoding("readback"); err != nil {
		return nil, fmt.Errorf("gpu: begin readback encoding: %w", err)
	}
	encoder.CopyBufferToBuffer(src, staging, []hal.BufferCopy{{SrcOffset: 0, DstOffset: 0, Size: size}})

	cmdBuf, err := encoder.EndEncoding()
	if err != nil {
		return nil, fmt.Errorf("gpu: end readback encoding: %w", err)
	}
	defer d.device.FreeCommandBuffer(cmdBuf)

	fence, err := d.device.CreateFence()
	if err != nil {
		return nil, fmt.Errorf("gpu: create readback fence: %w", err)
	}
	defer d.device.DestroyFence(fence)

	if err := d.queue.Submit([]hal.CommandBuffer{cmdBuf}, fence, 1); err != nil {
		return nil, fmt.Errorf("gpu: submit readback: %w", err)
	}
	ok, err := d.device.Wait(fence, 1, defaultWaitTimeout)
	if err != nil {
		return nil, fmt.Errorf("gpu: wait for readback: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: readback after %v", ErrDispatchTimeout, defaultWaitTimeout)
	}

	out := make([]byte, size)
	if err := d.queue.ReadBuffer(staging, 0, out); err != nil {
		return nil, fmt.Errorf("gpu: read staging buffer: %w", err)
	}
	return out, nil
}

// WorkgroupCount1D returns the number of workgroups needed to cover
// elementCount items at the given per-workgroup size, rounding up.
func WorkgroupCount1D(elementCount, workgroupSize uint32) uint32 {
	if workgroupSize == 0 {
		return 0
	}
	return (elementCount + workgroupSize - 1) / workgroupSize
}

// WorkgroupCount2D returns the number of workgroups needed to cover a
// width x height grid at the given per-workgroup tile size, rounding up
// in each dimension.
func WorkgroupCount2D(width, height, tileW, tileH uint32) (uint32, uint32) {
	return WorkgroupCount1D(width, tileW), WorkgroupCount1D(height, tileH)
}
