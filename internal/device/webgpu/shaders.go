//go:build windows

package webgpu

import "github.com/born-ml/tilenet/internal/device"

// workgroupSize is the number of invocations per workgroup.
const workgroupSize = 64

// accumulateDotShader adds dot(input, weights[n]) into output[n].
const accumulateDotShader = `
@group(0) @binding(0) var<storage, read> input: array<f32>;
@group(0) @binding(1) var<storage, read> weights: array<f32>;
@group(0) @binding(2) var<storage, read_write> output: array<f32>;

struct Params {
    tile_size: u32,
    neurons: u32,
}
@group(0) @binding(3) var<uniform> params: Params;

@compute @workgroup_size(64)
fn main(@builtin(global_invocation_id) global_id: vec3<u32>) {
    let n = global_id.x;
    if (n >= params.neurons) {
        return;
    }
    let base = n * params.tile_size;
    var sum: f32 = 0.0;
    for (var i: u32 = 0u; i < params.tile_size; i = i + 1u) {
        sum = sum + input[i] * weights[base + i];
    }
    output[n] = output[n] + sum;
}
`

// shaderSpec describes a compiled kernel's argument layout.
type shaderSpec struct {
	code    string
	buffers int // Number of storage buffer arguments.
	scalars int // Number of int32 scalar arguments packed into the uniform.
	// order maps launch argument positions to buffer (>=0) or scalar (<0) slots:
	// buffer slot i is order value i, scalar slot j is -(j+1).
	order []int
}

var shaderSpecs = map[string]shaderSpec{
	device.AccumulateDot: {
		code:    accumulateDotShader,
		buffers: 3,
		scalars: 2,
		order:   []int{0, 1, -1, -2, 2},
	},
}
