// Package simd provides the float32 kernels behind the distance package.
//
// The kernels are written in portable Go with manual unrolling so the
// compiler can keep four independent accumulators in registers. Function
// variables allow an architecture specific implementation to be swapped in.
package simd
