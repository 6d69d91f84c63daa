//go:build !nogpu

package gpu

import (
	"encoding/binary"
	"testing"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
)

// doubleWGSL doubles every element of an input storage buffer into an
// output storage buffer of the same length. Used only to exercise the
// Pipeline/Dispatcher round trip end to end.
const doubleWGSL = `
@group(0) @binding(0) var<storage, read> input: array<u32>;
@group(0) @binding(1) var<storage, read_write> output: array<u32>;

@compute @workgroup_size(64)
fn main(@builtin(global_invocation_id) id: vec3<u32>) {
    if (id.x >= arrayLength(&input)) {
        return;
    }
    output[id.x] = input[id.x] * 2u;
}
`

func TestDispatcherSubmitAndReadBuffer(t *testing.T) {
	d := testDevice(t)
	defer d.Close()

	pipeline, err := CreatePipeline(d.HAL(), PipelineConfig{
		Label: "double",
		WGSL:  doubleWGSL,
		Bindings: []hal.BindGroupLayoutEntry{
			{Binding: 0, Visibility: gputypes.ShaderStageCompute, Buffer: &hal.BufferBindingLayout{Type: gputypes.BufferBindingTypeReadOnlyStorage}},
			{Binding: 1, Visibility: gputypes.ShaderStageCompute, Buffer: &hal.BufferBindingLayout{Type: gputypes.BufferBindingTypeStorage}},
		},
	})
	if err != nil {
		t.Fatalf("CreatePipeline: %v", err)
	}
	defer pipeline.Close()

	const n = 16
	in := make([]byte, n*4)
	for i := 0; i < n; i++ {
		binary.LittleEndian.PutUint32(in[i*4:], uint32(i))
	}

	inBuf, err := d.HAL().CreateBuffer(&hal.BufferDescriptor{
		Label: "in", Size: uint64(len(in)),
		Usage: gputypes.BufferUsageStorage | gputypes.BufferUsageCopyDst,
	})
	if err != nil {
		t.Fatalf("create input buffer: %v", err)
	}
	defer d.HAL().DestroyBuffer(inBuf)
	if err := d.Queue().WriteBuffer(inBuf, 0, in); err != nil {
		t.Fatalf("write input buffer: %v", err)
	}

	outBuf, err := d.HAL().CreateBuffer(&hal.BufferDescriptor{
		Label: "out", Size: uint64(len(in)),
		Usage: gputypes.BufferUsageStorage | gputypes.BufferUsageCopySrc,
	})
	if err != nil {
		t.Fatalf("create output buffer: %v", err)
	}
	defer d.HAL().DestroyBuffer(outBuf)

	disp := NewDispatcher(d.HAL(), d.Queue())
	err = disp.Submit("double_pass", []DispatchCall{{
		Pipeline: pipeline,
		Label:    "double_pass",
		Entries: []hal.BindGroupEntry{
			{Binding: 0, Buffer: inBuf},
			{Binding: 1, Buffer: outBuf},
		},
		WorkgroupX: WorkgroupCount1D(n, 64),
		WorkgroupY: 1,
	}})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}

	out, err := disp.ReadBuffer(outBuf, uint64(len(in)))
	if err != nil {
		t.Fatalf("ReadBuffer: %v", err)
	}
	for i := 0; i < n; i++ {
		got := binary.LittleEndian.Uint32(out[i*4:])
		want := uint32(i) * 2
		if got != want {
			t.Fatalf("element %d: got %d, want %d", i, got, want)
		}
	}
}
