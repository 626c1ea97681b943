// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package scaling

import (
	"math"
	"testing"

	"github.com/embedqp/qpsolve/la"
)

func TestRuizPositiveDiagonals(t *testing.T) {
	p, _ := la.FromTriplets(2, 2, []int{0, 0, 1}, []int{0, 1, 1}, []float64{1000, 1, 0.001})
	a, _ := la.FromTriplets(2, 2, []int{0, 1}, []int{0, 1}, []float64{500, 0.002})
	q := []float64{10, -10}
	l := []float64{-1, -1}
	u := []float64{1, 1}

	s := Ruiz(p, a, q, l, u, 10)

	if !s.Valid() {
		t.Fatal("expected a valid scaling (D, E, c > 0 and finite)")
	}
	for i, d := range s.D {
		if d*s.Dinv[i] < 0.999 || d*s.Dinv[i] > 1.001 {
			t.Fatalf("D[%d]*Dinv[%d] = %v, want ~1", i, i, d*s.Dinv[i])
		}
	}
}

func TestRuizZeroItersIsIdentity(t *testing.T) {
	p, _ := la.FromTriplets(1, 1, []int{0}, []int{0}, []float64{5})
	a, _ := la.FromTriplets(0, 1, nil, nil, nil)
	q := []float64{3}
	s := Ruiz(p, a, q, nil, nil, 0)
	if s.C != 1 || s.D[0] != 1 {
		t.Fatalf("expected identity scaling, got C=%v D=%v", s.C, s.D)
	}
	if q[0] != 3 {
		t.Fatal("q must be untouched when scaling is disabled")
	}
}

func TestApplyUnscaleRoundTrip(t *testing.T) {
	s := &Scaling{
		D: []float64{2, 4}, Dinv: []float64{0.5, 0.25},
		E: []float64{3}, Einv: []float64{1.0 / 3},
		C: 5,
	}
	x := []float64{1, 1}
	y := []float64{1}
	s.Apply(x, y)
	xOut := make([]float64, 2)
	yOut := make([]float64, 1)
	s.UnscaleX(xOut, x)
	s.UnscaleY(yOut, y)
	if math.Abs(xOut[0]-1) > 1e-12 || math.Abs(xOut[1]-1) > 1e-12 {
		t.Fatalf("UnscaleX(Apply(x)) = %v, want [1 1]", xOut)
	}
	if math.Abs(yOut[0]-1) > 1e-12 {
		t.Fatalf("UnscaleY(Apply(y)) = %v, want [1]", yOut)
	}
}
