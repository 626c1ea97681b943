// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package la

import (
	"math"
	"testing"
)

func almostEqual(a, b, tol float64) bool {
	return math.Abs(a-b) <= tol
}

func TestAXPY(t *testing.T) {
	x := []float64{1, 2, 3, 4, 5}
	y := []float64{5, 4, 3, 2, 1}
	AXPY(2, x, y)
	want := []float64{7, 8, 9, 10, 11}
	for i := range want {
		if !almostEqual(want[i], y[i], 1e-15) {
			t.Fatalf("AXPY[%d] = %v, want %v", i, y[i], want[i])
		}
	}
}

func TestDotNormInf(t *testing.T) {
	x := []float64{3, -4}
	if got := Dot(x, x); got != 25 {
		t.Fatalf("Dot = %v, want 25", got)
	}
	if got := NormInf(x); got != 4 {
		t.Fatalf("NormInf = %v, want 4", got)
	}
	if got := Norm2(x); !almostEqual(got, 5, 1e-12) {
		t.Fatalf("Norm2 = %v, want 5", got)
	}
}

func TestClip(t *testing.T) {
	x := []float64{-5, 0.5, 5}
	lo := []float64{0, math.Inf(-1), 0}
	hi := []float64{1, 1, math.Inf(1)}
	dst := make([]float64, 3)
	Clip(dst, x, lo, hi)
	want := []float64{0, 0.5, 5}
	for i := range want {
		if dst[i] != want[i] {
			t.Fatalf("Clip[%d] = %v, want %v", i, dst[i], want[i])
		}
	}
}

func TestEwiseDivZeroGuard(t *testing.T) {
	dst := make([]float64, 2)
	EwiseDiv(dst, []float64{1, 2}, []float64{0, 2})
	if dst[0] != 0 || dst[1] != 1 {
		t.Fatalf("EwiseDiv = %v, want [0 1]", dst)
	}
}
