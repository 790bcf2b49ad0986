//go:build cuda

package cuda

import "github.com/born-ml/tilenet/internal/device"

// blockSize is the number of threads per block for 1-D launches.
const blockSize = 64

// accumulateDotPTX adds dot(input, weights[n]) into output[n] for
// n = blockIdx.x*blockDim.x + threadIdx.x < neurons.
const accumulateDotPTX = `
.version 6.0
.target sm_50
.address_size 64

.visible .entry accumulate_dot(
	.param .u64 accumulate_dot_param_0,
	.param .u64 accumulate_dot_param_1,
	.param .u32 accumulate_dot_param_2,
	.param .u32 accumulate_dot_param_3,
	.param .u64 accumulate_dot_param_4
)
{
	.reg .pred 	%p<3>;
	.reg .b32 	%r<9>;
	.reg .f32 	%f<6>;
	.reg .b64 	%rd<12>;

	ld.param.u64 	%rd1, [accumulate_dot_param_0];
	ld.param.u64 	%rd2, [accumulate_dot_param_1];
	ld.param.u32 	%r1, [accumulate_dot_param_2];
	ld.param.u32 	%r2, [accumulate_dot_param_3];
	ld.param.u64 	%rd3, [accumulate_dot_param_4];

	mov.u32 	%r3, %ctaid.x;
	mov.u32 	%r4, %ntid.x;
	mov.u32 	%r5, %tid.x;
	mad.lo.s32 	%r6, %r3, %r4, %r5;
	setp.ge.u32 	%p1, %r6, %r2;
	@%p1 bra 	$L__done;

	cvta.to.global.u64 	%rd4, %rd1;
	cvta.to.global.u64 	%rd5, %rd2;
	cvta.to.global.u64 	%rd6, %rd3;

	mul.lo.s32 	%r7, %r6, %r1;
	mul.wide.u32 	%rd7, %r7, 4;
	add.s64 	%rd8, %rd5, %rd7;
	mov.u64 	%rd9, %rd4;
	mov.f32 	%f1, 0f00000000;
	mov.u32 	%r8, 0;
	setp.eq.u32 	%p2, %r1, 0;
	@%p2 bra 	$L__store;

$L__loop:
	ld.global.f32 	%f2, [%rd9];
	ld.global.f32 	%f3, [%rd8];
	fma.rn.f32 	%f1, %f2, %f3, %f1;
	add.s64 	%rd9, %rd9, 4;
	add.s64 	%rd8, %rd8, 4;
	add.s32 	%r8, %r8, 1;
	setp.lt.u32 	%p2, %r8, %r1;
	@%p2 bra 	$L__loop;

$L__store:
	mul.wide.u32 	%rd10, %r6, 4;
	add.s64 	%rd11, %rd6, %rd10;
	ld.global.f32 	%f4, [%rd11];
	add.f32 	%f5, %f4, %f1;
	st.global.f32 	[%rd11], %f5;

$L__done:
	ret;
}
`

// kernelArgs lists the argument kinds of each PTX entry, true for buffers.
var kernelArgs = map[string][]bool{
	device.AccumulateDot: {true, true, false, false, true},
}
