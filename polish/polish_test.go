// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package polish

import (
	"math"
	"testing"

	"github.com/embedqp/qpsolve/la"
)

func almostEqual(a, b, tol float64) bool {
	return math.Abs(a-b) <= tol
}

func TestIdentifyActiveSetBounds(t *testing.T) {
	y := []float64{-1, 1, 0}
	z := []float64{0, 2, 0.5}
	l := []float64{0, 0, 0}
	u := []float64{1, 2, 1}
	as := IdentifyActiveSet(y, z, l, u)
	if !as.LowerActive[0] {
		t.Fatal("row 0 should be lower-active (y < -eps)")
	}
	if !as.UpperActive[1] {
		t.Fatal("row 1 should be upper-active (y > eps)")
	}
	if as.LowerActive[2] || as.UpperActive[2] {
		t.Fatal("row 2 should be inactive")
	}
}

// TestRunSolvesEqualityConstrainedQP builds a trivial QP: minimize
// 0.5 x^2 subject to x = 3 (single active equality row), and checks the
// polish step recovers x* = 3, lambda* = -3 (from stationarity P x + q +
// A^T lambda = 0 with q = 0, P = 1 => lambda = -x = -3).
func TestRunSolvesEqualityConstrainedQP(t *testing.T) {
	p, err := la.FromTriplets(1, 1, []int{0}, []int{0}, []float64{1})
	if err != nil {
		t.Fatal(err)
	}
	a, err := la.FromTriplets(1, 1, []int{0}, []int{0}, []float64{1})
	if err != nil {
		t.Fatal(err)
	}
	q := []float64{0}
	l := []float64{3}
	u := []float64{3}
	y := []float64{-1} // lower-active per the trichotomy
	z := []float64{3}

	as := IdentifyActiveSet(y, z, l, u)
	if len(as.Rows) != 1 {
		t.Fatalf("expected 1 active row, got %d", len(as.Rows))
	}

	rs := BuildReduced(p, a, q, l, u, as, 1e-9)
	sol, ok := Run(rs, 1, 3)
	if !ok {
		t.Fatal("expected polish to succeed on a well-posed system")
	}
	if !almostEqual(sol.X[0], 3, 1e-6) {
		t.Fatalf("x* = %v, want 3", sol.X[0])
	}
	if !almostEqual(sol.Lambda[0], -3, 1e-6) {
		t.Fatalf("lambda* = %v, want -3", sol.Lambda[0])
	}
	if sol.Y[0] != sol.Lambda[0] {
		t.Fatal("expanded Y should carry lambda on the active row")
	}
}

func TestRunNoActiveRowsReducesToUnconstrained(t *testing.T) {
	p, _ := la.FromTriplets(2, 2, []int{0, 1}, []int{0, 1}, []float64{2, 2})
	a, _ := la.FromTriplets(0, 2, nil, nil, nil)
	q := []float64{-4, -6}
	as := &ActiveSet{LowerActive: make([]bool, 0), UpperActive: make([]bool, 0)}

	rs := BuildReduced(p, a, q, nil, nil, as, 1e-9)
	sol, ok := Run(rs, 0, 0)
	if !ok {
		t.Fatal("expected success")
	}
	// P x + q = 0 => x = [2, 3].
	if !almostEqual(sol.X[0], 2, 1e-6) || !almostEqual(sol.X[1], 3, 1e-6) {
		t.Fatalf("x* = %v, want [2 3]", sol.X)
	}
}
