// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package linsys implements the per-iteration linear-system subproblem of
// the ADMM engine: given P (upper-triangular), A and the current
// ρ-vector, solve the (n+m) augmented KKT system by eliminating the dual
// block and running matrix-free preconditioned conjugate gradients on
// the resulting n×n reduced SPD system. Alternative backends can
// implement Backend directly; PCG is the only backend this module
// ships.
package linsys

import (
	"fmt"
	"math"

	"github.com/embedqp/qpsolve/la"
)

// Backend is the linear-system interface PCG implements: a backend is
// constructed once from the problem data and then driven through
// Solve/UpdateRho/UpdateMatrices/Free across the ADMM iteration. The
// qpsolve engine holds a *PCG directly (it also calls PCG.SetTolerance,
// which is not part of Backend), so another Backend cannot be plugged
// into it.
type Backend interface {
	// Solve computes x̃, z̃ for the given RHS σx−q (length n) and
	// Rz−y (length m), writing x̃ to xOut (length n) and
	// z̃ to nuOut (length m).
	Solve(rhsX, rhsZ, xOut, nuOut []float64) error
	UpdateRho(rhoVec []float64)
	UpdateMatrices(pVal, aVal []float64)
	Free()
}

// PCG is the default matrix-free Backend: preconditioned conjugate
// gradients over (P + σI + AᵀRA) x̃ = σx − q + Aᵀ(Rz − y), with a
// Jacobi (diagonal) preconditioner recomputed whenever ρ or the matrix
// values change.
type PCG struct {
	p, a *la.CSC
	n, m int
	sigma float64
	rho   []float64

	precond []float64 // diagonal preconditioner M, length n

	// scratch buffers, allocated once in Init.
	r, zz, pp, ap []float64
	ax            []float64 // length m, scratch for A*p
	aTrAx         []float64 // length n, scratch for Aᵀ(R(A*p))

	// epsPCG is the current PCG relative-tolerance floor, driven by the
	// engine via SetTolerance ahead of each call to Solve, following a
	// schedule tied to the ADMM iteration's scaled residuals.
	epsPCG    float64
	epsPCGAbs float64
	maxIter   int

	closed bool
}

const minPCGTolFraction = 1e-12

// NewPCG builds a PCG backend for the given (upper-triangular) P, A,
// Tikhonov term σ, and initial ρ-vector (length m).
func NewPCG(p, a *la.CSC, sigma float64, rhoVec []float64) (*PCG, error) {
	if !p.IsUpperTriangular() || p.Rows != p.Cols {
		return nil, fmt.Errorf("linsys: P must be square upper-triangular")
	}
	n, m := p.Rows, a.Rows
	if a.Cols != n {
		return nil, fmt.Errorf("linsys: A has %d columns, want %d", a.Cols, n)
	}
	if len(rhoVec) != m {
		return nil, fmt.Errorf("linsys: rho_vec has length %d, want %d", len(rhoVec), m)
	}
	if sigma <= 0 {
		return nil, fmt.Errorf("linsys: sigma must be > 0")
	}

	cg := &PCG{
		p: p, a: a, n: n, m: m, sigma: sigma,
		rho:       append([]float64(nil), rhoVec...),
		precond:   make([]float64, n),
		r:         make([]float64, n),
		zz:        make([]float64, n),
		pp:        make([]float64, n),
		ap:        make([]float64, n),
		ax:        make([]float64, m),
		aTrAx:     make([]float64, n),
		epsPCG:    0.1,
		epsPCGAbs: 1e-10,
		maxIter:   max(n, 20),
	}
	cg.rebuildPreconditioner()
	return cg, nil
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}

// SetTolerance sets the relative/absolute PCG stopping tolerance for the
// next call to Solve, following the schedule:
//
//	epsPCG ← min(0.1, 0.1 * max(scaledPrimRes, scaledDualRes) / max(||rhs||2, eps))
//
// The caller (the ADMM engine) computes the ratio; SetTolerance clamps
// the relative tolerance to [1e-12, 0.1].
func (cg *PCG) SetTolerance(epsRel, epsAbs float64) {
	if epsRel < minPCGTolFraction {
		epsRel = minPCGTolFraction
	}
	if epsRel > 0.1 {
		epsRel = 0.1
	}
	cg.epsPCG = epsRel
	cg.epsPCGAbs = epsAbs
}

func (cg *PCG) rebuildPreconditioner() {
	// diag(P + σI + AᵀRA).
	diagP := make([]float64, cg.n)
	cg.p.Diagonal(diagP)

	diagAtRA := make([]float64, cg.n)
	for j := 0; j < cg.a.Cols; j++ {
		var s float64
		for k := cg.a.ColPtr[j]; k < cg.a.ColPtr[j+1]; k++ {
			row := cg.a.RowIdx[k]
			v := cg.a.Val[k]
			s += v * v * cg.rho[row]
		}
		diagAtRA[j] = s
	}

	for i := 0; i < cg.n; i++ {
		d := diagP[i] + cg.sigma + diagAtRA[i]
		if d <= 0 {
			// Non-positive diagonal (can happen with an indefinite P):
			// fall back to σ rather than dividing by a bad preconditioner.
			d = cg.sigma
		}
		cg.precond[i] = d
	}
}

// applyReduced computes y ← (P + σI + AᵀRA) x without materializing the
// reduced matrix.
func (cg *PCG) applyReduced(x, y []float64) {
	la.SymSpMV(cg.p, 1, x, 0, y)
	la.AXPY(cg.sigma, x, y)
	cg.a.SpMV(1, x, 0, cg.ax)
	for i, v := range cg.ax {
		cg.ax[i] = v * cg.rho[i]
	}
	cg.a.SpMVTrans(1, cg.ax, 0, cg.aTrAx)
	la.AXPY(1, cg.aTrAx, y)
}

// Solve implements Backend.Solve. The engine passes rhsX = σx − q and
// rhsZ = Rz − y, keeping this package matrix-free and unaware of the
// ADMM state; Solve assembles the full reduced-system RHS
// rhsX + Aᵀ rhsZ internally, runs PCG for x̃, and returns A x̃ (which
// equals the updated z̃) in nuOut.
func (cg *PCG) Solve(rhsX, rhsZ, xOut, nuOut []float64) error {
	if cg.closed {
		return fmt.Errorf("linsys: backend is closed")
	}
	if len(rhsX) != cg.n || len(xOut) != cg.n {
		return fmt.Errorf("linsys: rhsX/xOut dimension mismatch")
	}
	if len(rhsZ) != cg.m || len(nuOut) != cg.m {
		return fmt.Errorf("linsys: rhsZ/nuOut dimension mismatch")
	}

	// Full RHS = rhsX + Aᵀ rhsZ.
	rhs := make([]float64, cg.n)
	cg.a.SpMVTrans(1, rhsZ, 0, rhs)
	la.AXPY(1, rhsX, rhs)

	if err := cg.pcg(rhs, xOut); err != nil {
		return err
	}

	cg.a.SpMV(1, xOut, 0, nuOut)
	return nil
}

func (cg *PCG) pcg(rhs, x []float64) error {
	n := cg.n
	if !la.AllFinite(rhs) {
		return fmt.Errorf("linsys: non-finite RHS")
	}

	rhsNorm := la.Norm2(rhs)
	tol := cg.epsPCG*rhsNorm + cg.epsPCGAbs

	// x0 = current xOut contents (the engine seeds xOut with the previous
	// x so PCG warm-starts from the last iterate).
	r, zz, pp, ap := cg.r, cg.zz, cg.pp, cg.ap

	cg.applyReduced(x, ap)
	la.Copy(r, rhs)
	la.AXPY(-1, ap, r)

	if la.Norm2(r) <= tol {
		return nil
	}

	la.EwiseDiv(zz, r, cg.precond)
	la.Copy(pp, zz)
	rz := la.Dot(r, zz)

	for iter := 0; iter < cg.maxIter; iter++ {
		cg.applyReduced(pp, ap)
		denom := la.Dot(pp, ap)
		if denom == 0 || math.IsNaN(denom) {
			return fmt.Errorf("linsys: PCG breakdown (pᵀAp = %v)", denom)
		}
		alpha := rz / denom
		la.AXPY(alpha, pp, x)
		la.AXPY(-alpha, ap, r)

		if la.Norm2(r) <= tol {
			return nil
		}

		la.EwiseDiv(zz, r, cg.precond)
		rzNew := la.Dot(r, zz)
		beta := rzNew / rz
		for i := 0; i < n; i++ {
			pp[i] = zz[i] + beta*pp[i]
		}
		rz = rzNew
	}

	if la.Norm2(r) <= 10*tol {
		// Loosened tolerance tolerated; report success since the caller
		// will re-check true residuals at the ADMM level.
		return nil
	}
	return fmt.Errorf("linsys: PCG exceeded %d iterations without converging", cg.maxIter)
}

// UpdateRho implements Backend.UpdateRho: replaces ρ_vec and refreshes
// the Jacobi preconditioner.
func (cg *PCG) UpdateRho(rhoVec []float64) {
	if len(rhoVec) != cg.m {
		panic("bound check error")
	}
	copy(cg.rho, rhoVec)
	cg.rebuildPreconditioner()
}

// UpdateMatrices implements Backend.UpdateMatrices: overwrites P/A
// values in place (same sparsity pattern) and refreshes the
// preconditioner.
func (cg *PCG) UpdateMatrices(pVal, aVal []float64) {
	if pVal != nil {
		if len(pVal) != len(cg.p.Val) {
			panic("bound check error")
		}
		copy(cg.p.Val, pVal)
	}
	if aVal != nil {
		if len(aVal) != len(cg.a.Val) {
			panic("bound check error")
		}
		copy(cg.a.Val, aVal)
	}
	cg.rebuildPreconditioner()
}

// Free releases the backend. Idempotent: safe to call more than once.
func (cg *PCG) Free() {
	cg.closed = true
}
