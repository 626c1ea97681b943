// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package la provides the matrix-free linear-algebra primitives the ADMM
// solver core is built on: dense vector kernels and a CSC sparse matrix
// type with the sparse-BLAS operations the rest of the module consumes as
// opaque building blocks (copy, axpy, scale, SpMV, norms).
package la

import "math"

// Copy copies src into dst. Panics if the slices differ in length.
func Copy(dst, src []float64) {
	if len(dst) != len(src) {
		panic("bound check error")
	}
	copy(dst, src)
}

// AXPY computes y ← alpha*x + y in place.
func AXPY(alpha float64, x, y []float64) {
	if len(x) != len(y) {
		panic("bound check error")
	}
	if alpha == 0 {
		return
	}
	n := len(x)
	m := n % 4
	for i := 0; i < m; i++ {
		y[i] += alpha * x[i]
	}
	for i := m; i < n; i += 4 {
		xi := x[i : i+4 : i+4]
		yi := y[i : i+4 : i+4]
		yi[0] += alpha * xi[0]
		yi[1] += alpha * xi[1]
		yi[2] += alpha * xi[2]
		yi[3] += alpha * xi[3]
	}
}

// Scale computes x ← alpha*x in place.
func Scale(alpha float64, x []float64) {
	if alpha == 1 {
		return
	}
	for i := range x {
		x[i] *= alpha
	}
}

// Zero fills x with zeros.
func Zero(x []float64) {
	for i := range x {
		x[i] = 0
	}
}

// Fill sets every element of x to v.
func Fill(x []float64, v float64) {
	for i := range x {
		x[i] = v
	}
}

// Dot computes the inner product of x and y.
func Dot(x, y []float64) float64 {
	if len(x) != len(y) {
		panic("bound check error")
	}
	var s float64
	for i := range x {
		s += x[i] * y[i]
	}
	return s
}

// EwiseMul computes dst ← x .* y elementwise. dst may alias x or y.
func EwiseMul(dst, x, y []float64) {
	if len(dst) != len(x) || len(x) != len(y) {
		panic("bound check error")
	}
	for i := range dst {
		dst[i] = x[i] * y[i]
	}
}

// EwiseDiv computes dst ← x ./ y elementwise. dst may alias x or y.
// A zero denominator yields zero rather than Inf/NaN.
func EwiseDiv(dst, x, y []float64) {
	if len(dst) != len(x) || len(x) != len(y) {
		panic("bound check error")
	}
	for i := range dst {
		if y[i] == 0 {
			dst[i] = 0
			continue
		}
		dst[i] = x[i] / y[i]
	}
}

// Reciprocal computes dst ← 1/x elementwise, mapping a zero entry to zero.
func Reciprocal(dst, x []float64) {
	if len(dst) != len(x) {
		panic("bound check error")
	}
	for i, v := range x {
		if v == 0 {
			dst[i] = 0
			continue
		}
		dst[i] = 1 / v
	}
}

// NormInf computes the infinity norm of x. An empty vector has norm 0.
func NormInf(x []float64) float64 {
	m := 0.0
	for _, v := range x {
		if a := math.Abs(v); a > m {
			m = a
		}
	}
	return m
}

// Norm2 computes the Euclidean norm of x using the scale-and-sum-of-squares
// technique to avoid premature overflow/underflow, matching the teacher's
// dnrm2 kernel.
func Norm2(x []float64) float64 {
	if len(x) == 0 {
		return 0
	}
	if len(x) == 1 {
		return math.Abs(x[0])
	}
	scale, ssq := 0.0, 1.0
	for _, v := range x {
		a := math.Abs(v)
		if a == 0 {
			continue
		}
		if scale < a {
			r := scale / a
			ssq = 1 + ssq*r*r
			scale = a
		} else {
			r := a / scale
			ssq += r * r
		}
	}
	return scale * math.Sqrt(ssq)
}

// Clip projects x elementwise onto [lo, hi], writing the result to dst.
// A lower bound of -Inf or upper bound of +Inf disables that side, so
// this doubles as the box projection Π_[lA,uA] onto the constraint set.
func Clip(dst, x, lo, hi []float64) {
	if len(dst) != len(x) || len(x) != len(lo) || len(lo) != len(hi) {
		panic("bound check error")
	}
	for i, v := range x {
		if v < lo[i] {
			v = lo[i]
		} else if v > hi[i] {
			v = hi[i]
		}
		dst[i] = v
	}
}

// AllFinite reports whether every element of x is finite.
func AllFinite(x []float64) bool {
	for _, v := range x {
		if math.IsInf(v, 0) || math.IsNaN(v) {
			return false
		}
	}
	return true
}
