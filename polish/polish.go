// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package polish implements active-set refinement: given a solved ADMM
// iterate, it identifies the active constraints, assembles the small
// equality-constrained KKT system on that active set, solves it densely
// with gonum/mat, iteratively refines the solution, and reports whether
// that solve succeeded. The decision to commit the refined iterate (by
// comparing residuals) is left to the caller.
package polish

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/embedqp/qpsolve/la"
)

// ActiveSet records, per constraint row, whether it is pinned to its
// lower bound, upper bound, or left inactive.
type ActiveSet struct {
	LowerActive []bool
	UpperActive []bool
	Rows        []int // indices i where LowerActive[i] || UpperActive[i], ascending
}

// IdentifyActiveSet classifies each row of the constraint set from the
// current (y, z, lA, uA):
//
//	lower-active if y_i < -εAct (or z_i - lA_i < εAct)
//	upper-active if y_i > +εAct (or uA_i - z_i < εAct)
//	inactive otherwise
//
// εAct = max(1e-8, 1e-6*‖y‖∞).
func IdentifyActiveSet(y, z, l, u []float64) *ActiveSet {
	m := len(y)
	epsAct := math.Max(1e-8, 1e-6*la.NormInf(y))

	as := &ActiveSet{LowerActive: make([]bool, m), UpperActive: make([]bool, m)}
	for i := 0; i < m; i++ {
		lowerHit := y[i] < -epsAct || (z[i]-l[i]) < epsAct
		upperHit := y[i] > epsAct || (u[i]-z[i]) < epsAct
		switch {
		case lowerHit && !upperHit:
			as.LowerActive[i] = true
			as.Rows = append(as.Rows, i)
		case upperHit && !lowerHit:
			as.UpperActive[i] = true
			as.Rows = append(as.Rows, i)
		case lowerHit && upperHit:
			// Degenerate (equality-like) row: pin to whichever bound is
			// closer to z_i, preferring the lower bound on ties.
			if (u[i] - z[i]) < (z[i] - l[i]) {
				as.UpperActive[i] = true
			} else {
				as.LowerActive[i] = true
			}
			as.Rows = append(as.Rows, i)
		}
	}
	return as
}

// ReducedSystem is the dense, symmetric-indefinite KKT block built on
// the active rows of A:
//
//	[P + δI   AredT] [x*]   [-q    ]
//	[Ared     -δI  ] [λ*]   [bred  ]
type ReducedSystem struct {
	n, k int // n = size of x*, k = number of active rows
	mat  *mat.Dense
	rhs  *mat.VecDense
	rows []int // active row indices, matches ActiveSet.Rows
}

// symmetrize mirrors the upper-triangular storage of pFull into a full
// dense n×n matrix.
func symmetrize(pFull *la.CSC) []float64 {
	n := pFull.Rows
	dense := pFull.ToDense() // upper triangle only, row-major n×n
	full := make([]float64, n*n)
	copy(full, dense)
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			full[j*n+i] = dense[i*n+j]
		}
	}
	return full
}

// BuildReduced assembles the reduced system for active set `as` using
// the upper-triangular sparse P (n×n), sparse A (m×n), q, and the bound
// vectors, with Tikhonov regularization δ on both diagonal blocks.
func BuildReduced(pFull, aFull *la.CSC, q, l, u []float64, as *ActiveSet, delta float64) *ReducedSystem {
	n := pFull.Rows
	k := len(as.Rows)
	aDense := aFull.ToDense() // m×n, row-major

	size := n + k
	sys := mat.NewDense(size, size, nil)

	pDense := symmetrize(pFull)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			v := pDense[i*n+j]
			if i == j {
				v += delta
			}
			sys.Set(i, j, v)
		}
	}

	rhs := mat.NewVecDense(size, nil)
	for i := 0; i < n; i++ {
		rhs.SetVec(i, -q[i])
	}

	for r, row := range as.Rows {
		for j := 0; j < n; j++ {
			v := aDense[row*n+j]
			sys.Set(n+r, j, v)
			sys.Set(j, n+r, v)
		}
		sys.Set(n+r, n+r, -delta)

		b := l[row]
		if as.UpperActive[row] {
			b = u[row]
		}
		rhs.SetVec(n+r, b)
	}

	return &ReducedSystem{n: n, k: k, mat: sys, rhs: rhs, rows: as.Rows}
}

// Solution holds the direct-solve result, before and after iterative
// refinement.
type Solution struct {
	X      []float64 // length n
	Lambda []float64 // length k, aligned with ReducedSystem.rows
	Y      []float64 // length m, expanded: zero on inactive rows, Lambda on active rows
}

// solve performs a single dense LU factor-and-solve of the reduced
// system, returning false if the factorization is singular. The
// symmetric-indefinite KKT block is solved via LU over its dense,
// Tikhonov-regularized form rather than a dedicated indefinite solver.
func (rs *ReducedSystem) solve() (*mat.VecDense, *mat.LU, bool) {
	var lu mat.LU
	lu.Factorize(rs.mat)
	if cond := lu.Cond(); math.IsInf(cond, 1) || math.IsNaN(cond) {
		return nil, nil, false
	}
	sol := mat.NewVecDense(rs.n+rs.k, nil)
	if err := lu.SolveVecTo(sol, false, rs.rhs); err != nil {
		return nil, nil, false
	}
	if !allFiniteVec(sol) {
		return nil, nil, false
	}
	return sol, &lu, true
}

func allFiniteVec(v *mat.VecDense) bool {
	for i := 0; i < v.Len(); i++ {
		if x := v.AtVec(i); math.IsNaN(x) || math.IsInf(x, 0) {
			return false
		}
	}
	return true
}

// refine performs `iters` rounds of iterative refinement on the
// already-factorized system: r ← rhs - mat*sol; δ ← lu.Solve(r);
// sol ← sol + δ, reusing the same factorization each round.
func (rs *ReducedSystem) refine(sol *mat.VecDense, lu *mat.LU, iters int) {
	n := rs.n + rs.k
	resid := mat.NewVecDense(n, nil)
	delta := mat.NewVecDense(n, nil)
	for it := 0; it < iters; it++ {
		resid.MulVec(rs.mat, sol)
		resid.SubVec(rs.rhs, resid)
		if floats.Norm(resid.RawVector().Data, 2) == 0 {
			break
		}
		if err := lu.SolveVecTo(delta, false, resid); err != nil {
			break
		}
		sol.AddVec(sol, delta)
	}
}

// Run solves the reduced system built from BuildReduced, applies
// `refineIters` rounds of iterative refinement, and expands the result
// into full-length X/Y vectors. The second return is false when the
// factorization failed (singular or produced non-finite values); a
// failed polish is never an error — callers simply keep the
// un-polished ADMM iterate.
func Run(rs *ReducedSystem, m int, refineIters int) (*Solution, bool) {
	sol, lu, ok := rs.solve()
	if !ok {
		return nil, false
	}
	rs.refine(sol, lu, refineIters)

	out := &Solution{
		X:      make([]float64, rs.n),
		Lambda: make([]float64, rs.k),
		Y:      make([]float64, m),
	}
	for i := 0; i < rs.n; i++ {
		out.X[i] = sol.AtVec(i)
	}
	for r := 0; r < rs.k; r++ {
		lam := sol.AtVec(rs.n + r)
		out.Lambda[r] = lam
		out.Y[rs.rows[r]] = lam
	}
	return out, true
}
