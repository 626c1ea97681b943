// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package la

import "testing"

func TestSpMV(t *testing.T) {
	// A = [[1, 0, 2], [0, 3, 0]]  (2x3)
	a, err := FromTriplets(2, 3, []int{0, 0, 1}, []int{0, 2, 1}, []float64{1, 2, 3})
	if err != nil {
		t.Fatal(err)
	}
	y := make([]float64, 2)
	a.SpMV(1, []float64{1, 1, 1}, 0, y)
	if y[0] != 3 || y[1] != 3 {
		t.Fatalf("SpMV = %v, want [3 3]", y)
	}
	x := make([]float64, 3)
	a.SpMVTrans(1, []float64{1, 1}, 0, x)
	if x[0] != 1 || x[1] != 3 || x[2] != 2 {
		t.Fatalf("SpMVTrans = %v, want [1 3 2]", x)
	}
}

func TestSymSpMV(t *testing.T) {
	// Full P = [[2, 1], [1, 2]], stored upper-triangular.
	p, err := FromTriplets(2, 2, []int{0, 0, 1}, []int{0, 1, 1}, []float64{2, 1, 2})
	if err != nil {
		t.Fatal(err)
	}
	if !p.IsUpperTriangular() {
		t.Fatal("expected upper triangular")
	}
	y := make([]float64, 2)
	SymSpMV(p, 1, []float64{1, 1}, 0, y)
	if y[0] != 3 || y[1] != 3 {
		t.Fatalf("SymSpMV = %v, want [3 3]", y)
	}
}

func TestInvariantViolations(t *testing.T) {
	if _, err := NewCSC(2, 2, []int{0, 1, 1}, []int{0, 0}, []float64{1, 2}); err == nil {
		t.Fatal("expected nnz/colPtr mismatch error")
	}
	if _, err := NewCSC(2, 1, []int{0, 2}, []int{1, 0}, []float64{1, 2}); err == nil {
		t.Fatal("expected strictly-increasing row index error")
	}
}

func TestUpperTriOfSymmetrizes(t *testing.T) {
	// near-symmetric full matrix [[2, 1.0000001], [0.9999999, 2]]
	full, err := FromTriplets(2, 2,
		[]int{0, 0, 1, 1}, []int{0, 1, 0, 1},
		[]float64{2, 1.0000001, 0.9999999, 2})
	if err != nil {
		t.Fatal(err)
	}
	upper, err := UpperTriOf(full)
	if err != nil {
		t.Fatal(err)
	}
	if !upper.IsUpperTriangular() {
		t.Fatal("expected upper triangular result")
	}
	dense := upper.ToDense()
	if !almostEqual(dense[1], 1.0, 1e-6) {
		t.Fatalf("off-diagonal = %v, want ~1.0", dense[1])
	}
}

func TestColRowNormInf(t *testing.T) {
	a, err := FromTriplets(2, 2, []int{0, 1, 1}, []int{0, 0, 1}, []float64{-3, 4, 1})
	if err != nil {
		t.Fatal(err)
	}
	col := make([]float64, 2)
	a.ColNormInf(col)
	if col[0] != 4 || col[1] != 1 {
		t.Fatalf("ColNormInf = %v, want [4 1]", col)
	}
	row := make([]float64, 2)
	a.RowNormInf(row)
	if row[0] != 3 || row[1] != 4 {
		t.Fatalf("RowNormInf = %v, want [3 4]", row)
	}
}
