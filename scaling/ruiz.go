// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package scaling implements Ruiz equilibration of the QP data: it
// computes diagonal matrices D (size n), E (size m) and a scalar cost
// factor c so that the composite symmetric matrix [P̂ Âᵀ; Â 0] has
// row/column infinity-norms close to 1, then applies the scaling to
// P, A, q, lA, uA in place.
package scaling

import (
	"math"

	"github.com/embedqp/qpsolve/la"
)

// Scaling holds the diagonal equilibration matrices and their inverses,
// plus the scalar cost factor c.
type Scaling struct {
	D, Dinv []float64 // length n
	E, Einv []float64 // length m
	C       float64
}

// Identity returns a no-op scaling for the given dimensions, used when
// Settings.Scaling == 0 (scaling disabled).
func Identity(n, m int) *Scaling {
	s := &Scaling{
		D: make([]float64, n), Dinv: make([]float64, n),
		E: make([]float64, m), Einv: make([]float64, m),
		C: 1,
	}
	la.Fill(s.D, 1)
	la.Fill(s.Dinv, 1)
	la.Fill(s.E, 1)
	la.Fill(s.Einv, 1)
	return s
}

// Valid reports whether D, E, c are all strictly positive and finite.
func (s *Scaling) Valid() bool {
	if s.C <= 0 || math.IsInf(s.C, 0) || math.IsNaN(s.C) {
		return false
	}
	for _, v := range s.D {
		if v <= 0 || math.IsInf(v, 0) || math.IsNaN(v) {
			return false
		}
	}
	for _, v := range s.E {
		if v <= 0 || math.IsInf(v, 0) || math.IsNaN(v) {
			return false
		}
	}
	return true
}

// Ruiz runs up to iters rounds of Ruiz equilibration on [P, Aᵀ; A, 0] and
// rescales p (upper-triangular), a, q, l, u in place. p and a must already
// be validated CSC matrices; p is overwritten with its rescaled values
// (sparsity pattern preserved), as is a.
//
// iters == 0 disables scaling and returns the identity scaling without
// touching p, a, q, l, u.
func Ruiz(p, a *la.CSC, q, l, u []float64, iters int) *Scaling {
	n, m := p.Rows, a.Rows

	s := Identity(n, m)
	if iters <= 0 {
		return s
	}

	colNorm := make([]float64, n)
	rowNorm := make([]float64, m)
	dScale := make([]float64, n)
	eScale := make([]float64, m)

	for iter := 0; iter < iters; iter++ {
		// Column infinity-norms of [P; A] (length n): the symmetric P
		// contributes via SymColNormInf, A contributes its own ColNormInf.
		la.SymColNormInf(p, colNorm)
		aCol := make([]float64, n)
		a.ColNormInf(aCol)
		for i := range colNorm {
			if aCol[i] > colNorm[i] {
				colNorm[i] = aCol[i]
			}
		}
		// Row infinity-norms of A (length m); there is no P contribution
		// to the row block since P only occupies the top-left corner of
		// the composite matrix.
		a.RowNormInf(rowNorm)

		guardedRecipSqrt(dScale, colNorm)
		guardedRecipSqrt(eScale, rowNorm)

		rescaleColsSym(p, dScale)
		rescaleRows(a, eScale, dScale)
		for i := range q {
			q[i] *= dScale[i]
		}
		for i := range l {
			l[i] = scaleBound(l[i], eScale[i])
			u[i] = scaleBound(u[i], eScale[i])
		}

		for i := range s.D {
			s.D[i] *= dScale[i]
		}
		for i := range s.E {
			s.E[i] *= eScale[i]
		}
	}

	// Cost scaling: c = 1 / max(mean column-inf-norm of P, ||q||_inf, 1).
	la.SymColNormInf(p, colNorm)
	meanColNorm := 0.0
	for _, v := range colNorm {
		meanColNorm += v
	}
	if n > 0 {
		meanColNorm /= float64(n)
	}
	qInf := la.NormInf(q)
	c := math.Max(meanColNorm, math.Max(qInf, 1))
	if c <= 0 || math.IsNaN(c) || math.IsInf(c, 0) {
		c = 1
	} else {
		c = 1 / c
	}
	rescaleValsSym(p, c)
	la.Scale(c, q)
	s.C = c

	for i := range s.D {
		s.Dinv[i] = invOrOne(s.D[i])
	}
	for i := range s.E {
		s.Einv[i] = invOrOne(s.E[i])
	}
	return s
}

func invOrOne(v float64) float64 {
	if v == 0 {
		return 1
	}
	return 1 / v
}

func scaleBound(v, e float64) float64 {
	if math.IsInf(v, 0) {
		return v
	}
	return v * e
}

// guardedRecipSqrt writes 1/sqrt(v) to dst, guarding zero/non-finite
// inputs by leaving the corresponding multiplier at 1 (skip that
// coordinate's update rather than propagate a NaN/Inf).
func guardedRecipSqrt(dst, v []float64) {
	for i, x := range v {
		if x <= 0 || math.IsNaN(x) || math.IsInf(x, 0) {
			dst[i] = 1
			continue
		}
		dst[i] = 1 / math.Sqrt(x)
	}
}

// rescaleColsSym rescales the upper-triangular P in place: P ← D P D.
func rescaleColsSym(p *la.CSC, d []float64) {
	for j := 0; j < p.Cols; j++ {
		for k := p.ColPtr[j]; k < p.ColPtr[j+1]; k++ {
			i := p.RowIdx[k]
			p.Val[k] *= d[i] * d[j]
		}
	}
}

func rescaleValsSym(p *la.CSC, c float64) {
	la.Scale(c, p.Val)
}

// rescaleRows rescales A in place: A ← E A D.
func rescaleRows(a *la.CSC, e, d []float64) {
	for j := 0; j < a.Cols; j++ {
		for k := a.ColPtr[j]; k < a.ColPtr[j+1]; k++ {
			i := a.RowIdx[k]
			a.Val[k] *= e[i] * d[j]
		}
	}
}

// Apply rescales x (length n) and y (length m) from unscaled to scaled
// coordinates: x̂ = D⁻¹x, ŷ = c·E⁻¹·y, the inverse of UnscaleX/UnscaleY
// below. Used by WarmStart to bring a caller-supplied unscaled iterate
// into the engine's internal scaled coordinates.
func (s *Scaling) Apply(x, y []float64) {
	la.EwiseMul(x, x, s.Dinv)
	for i := range y {
		y[i] *= s.C * s.Einv[i]
	}
}

// UnscaleX maps a solution vector from scaled to unscaled x-coordinates:
// x = D x̂.
func (s *Scaling) UnscaleX(dst, xHat []float64) {
	la.EwiseMul(dst, xHat, s.D)
}

// UnscaleY maps a solution vector from scaled to unscaled y-coordinates:
// y = E ŷ / c.
func (s *Scaling) UnscaleY(dst, yHat []float64) {
	la.EwiseMul(dst, yHat, s.E)
	la.Scale(1/s.C, dst)
}

// UnscaleZ maps z from scaled to unscaled coordinates: z = E⁻¹ ẑ.
func (s *Scaling) UnscaleZ(dst, zHat []float64) {
	la.EwiseMul(dst, zHat, s.Einv)
}
