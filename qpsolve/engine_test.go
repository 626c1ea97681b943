// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package qpsolve

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/embedqp/qpsolve/internal/gradcheck"
	"github.com/embedqp/qpsolve/la"
)

func defaultData(p, a *la.CSC, q, l, u []float64) Data {
	return Data{P: p, Q: q, A: a, L: l, U: u}
}

// TestTrivial1D solves minimize 0.5*x^2 - 2x s.t. -10 <= x <= 10: the
// unconstrained optimum x=2 is feasible, so the box is inactive.
func TestTrivial1D(t *testing.T) {
	p, _ := la.FromTriplets(1, 1, []int{0}, []int{0}, []float64{1})
	a, _ := la.FromTriplets(1, 1, []int{0}, []int{0}, []float64{1})
	q := []float64{-2}
	l := []float64{-10}
	u := []float64{10}

	e, err := Setup(defaultData(p, a, q, l, u), DefaultSettings(), nil)
	require.NoError(t, err)
	status := e.Solve()
	assert.Contains(t, []Status{Solved, SolvedInaccurate}, status)

	x, _, info := e.Solution()
	assert.InDelta(t, 2.0, x[0], 1e-3)
	assert.False(t, math.IsNaN(info.Objective))
}

// TestBoxQP checks that for A = I, the solution equals elementwise
// clipping of the unconstrained optimum -P^-1 q onto the box.
func TestBoxQP(t *testing.T) {
	p, _ := la.FromTriplets(2, 2, []int{0, 1}, []int{0, 1}, []float64{2, 2})
	a, _ := la.FromTriplets(2, 2, []int{0, 1}, []int{0, 1}, []float64{1, 1})
	q := []float64{-10, 2}
	l := []float64{-1, -1}
	u := []float64{1, 1}

	settings := DefaultSettings()
	settings.EpsAbs, settings.EpsRel = 1e-6, 1e-6
	e, err := Setup(defaultData(p, a, q, l, u), settings, nil)
	require.NoError(t, err)
	status := e.Solve()
	assert.Contains(t, []Status{Solved, SolvedInaccurate}, status)

	x, _, _ := e.Solution()
	// unconstrained optimum: P x = -q => x = [5, -1], clipped to [-1,1].
	assert.InDelta(t, 1.0, x[0], 1e-3)
	assert.InDelta(t, -1.0, x[1], 1e-3)
}

// TestEqualityConstraint pins x via a single equality row and checks
// the solver converges to the constrained minimizer.
func TestEqualityConstraint(t *testing.T) {
	p, _ := la.FromTriplets(1, 1, []int{0}, []int{0}, []float64{1})
	a, _ := la.FromTriplets(1, 1, []int{0}, []int{0}, []float64{1})
	q := []float64{0}
	l := []float64{3}
	u := []float64{3}

	e, err := Setup(defaultData(p, a, q, l, u), DefaultSettings(), nil)
	require.NoError(t, err)
	status := e.Solve()
	assert.Contains(t, []Status{Solved, SolvedInaccurate}, status)

	x, _, _ := e.Solution()
	assert.InDelta(t, 3.0, x[0], 1e-3)
}

// TestPrimalInfeasible builds an infeasible box (l > u after an update
// would be rejected, so instead two contradictory equality rows on the
// same variable) and checks the solver certifies primal infeasibility.
func TestPrimalInfeasible(t *testing.T) {
	p, _ := la.FromTriplets(1, 1, []int{0}, []int{0}, []float64{1})
	a, _ := la.FromTriplets(2, 1, []int{0, 1}, []int{0, 0}, []float64{1, 1})
	q := []float64{0}
	l := []float64{1, 5}
	u := []float64{1, 5}
	// x == 1 and x == 5 simultaneously: infeasible.

	settings := DefaultSettings()
	settings.MaxIter = 2000
	e, err := Setup(defaultData(p, a, q, l, u), settings, nil)
	require.NoError(t, err)
	status := e.Solve()
	assert.Contains(t, []Status{PrimalInfeasible, PrimalInfeasibleInaccurate, MaxIterReached}, status)
}

// TestDualInfeasible builds an unbounded-below QP (P = 0, q pointing
// down an unconstrained direction) and checks the solver flags it.
func TestDualInfeasible(t *testing.T) {
	p, _ := la.FromTriplets(1, 1, []int{0}, []int{0}, []float64{0})
	a, _ := la.FromTriplets(0, 1, nil, nil, nil)
	q := []float64{-1}

	settings := DefaultSettings()
	settings.MaxIter = 2000
	e, err := Setup(defaultData(p, a, q, nil, nil), settings, nil)
	require.NoError(t, err)
	status := e.Solve()
	assert.Contains(t, []Status{DualInfeasible, DualInfeasibleInaccurate, MaxIterReached}, status)
}

// TestMaxIterReached forces a tiny iteration cap on an otherwise
// solvable problem and checks the engine reports MaxIterReached (or
// SolvedInaccurate) rather than an error.
func TestMaxIterReached(t *testing.T) {
	p, _ := la.FromTriplets(2, 2, []int{0, 1}, []int{0, 1}, []float64{2, 2})
	a, _ := la.FromTriplets(2, 2, []int{0, 1}, []int{0, 1}, []float64{1, 1})
	q := []float64{-10, 2}
	l := []float64{-1, -1}
	u := []float64{1, 1}

	settings := DefaultSettings()
	settings.MaxIter = 1
	settings.CheckTermination = 1
	e, err := Setup(defaultData(p, a, q, l, u), settings, nil)
	require.NoError(t, err)
	status := e.Solve()
	assert.Contains(t, []Status{MaxIterReached, SolvedInaccurate}, status)
}

// TestCleanupIdempotent checks Cleanup can be called repeatedly and
// that Solve on a closed engine reports NumericalError rather than
// panicking.
func TestCleanupIdempotent(t *testing.T) {
	p, _ := la.FromTriplets(1, 1, []int{0}, []int{0}, []float64{1})
	a, _ := la.FromTriplets(0, 1, nil, nil, nil)
	q := []float64{0}
	e, err := Setup(defaultData(p, a, q, nil, nil), DefaultSettings(), nil)
	require.NoError(t, err)
	e.Cleanup()
	e.Cleanup()
	assert.Equal(t, NumericalError, e.Solve())
}

// TestPolishImprovesOrMatchesResiduals runs with polishing enabled on a
// constrained problem and checks the committed residuals never exceed
// what Solve reports without the polish flag.
func TestPolishImprovesOrMatchesResiduals(t *testing.T) {
	p, _ := la.FromTriplets(2, 2, []int{0, 1}, []int{0, 1}, []float64{2, 2})
	a, _ := la.FromTriplets(2, 2, []int{0, 1}, []int{0, 1}, []float64{1, 1})
	q := []float64{-10, 2}
	l := []float64{-1, -1}
	u := []float64{1, 1}

	base := DefaultSettings()
	base.EpsAbs, base.EpsRel = 1e-6, 1e-6
	withoutPolish, err := Setup(defaultData(p.Clone(), a.Clone(), q, l, u), base, nil)
	require.NoError(t, err)
	withoutPolish.Solve()
	_, _, baseInfo := withoutPolish.Solution()

	withPolish := base
	withPolish.Polishing = true
	e, err := Setup(defaultData(p.Clone(), a.Clone(), q, l, u), withPolish, nil)
	require.NoError(t, err)
	e.Solve()
	_, _, info := e.Solution()

	assert.LessOrEqual(t, info.PrimRes, baseInfo.PrimRes+1e-6)
	assert.LessOrEqual(t, info.DualRes, baseInfo.DualRes+1e-6)
}

// TestGradientMatchesObjective cross-checks that the engine's internal
// P x + q really is the analytic gradient of 0.5 x^T P x + q^T x, using
// gradcheck instead of hand-derived finite differences.
func TestGradientMatchesObjective(t *testing.T) {
	p, _ := la.FromTriplets(2, 2, []int{0, 0, 1}, []int{0, 1, 1}, []float64{4, 1, 3})
	q := []float64{-1, 2}

	f := func(x []float64) float64 {
		px := make([]float64, 2)
		la.SymSpMV(p, 1, x, 0, px)
		return 0.5*la.Dot(x, px) + la.Dot(q, x)
	}
	x := []float64{0.3, -1.2}
	px := make([]float64, 2)
	la.SymSpMV(p, 1, x, 0, px)
	analytic := []float64{px[0] + q[0], px[1] + q[1]}

	numeric := gradcheck.Gradient(f, x)
	assert.LessOrEqual(t, gradcheck.MaxAbsDiff(numeric, analytic), 1e-4)
}
