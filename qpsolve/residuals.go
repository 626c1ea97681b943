// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package qpsolve

import (
	"math"

	"github.com/embedqp/qpsolve/la"
)

// residuals bundles both the unscaled values used for termination and
// reporting and the scaled values used to drive the PCG tolerance
// schedule and the adaptive-ρ trigger.
type residuals struct {
	prim, dual             float64 // unscaled
	epsPrim, epsDual       float64 // unscaled tolerances
	scaledPrim, scaledDual float64
}

// computeResiduals recomputes P x̂, A x̂ and Aᵀ ŷ from the current scaled
// iterate (e.x, e.y) rather than reusing stale per-iteration scratch,
// so it is safe to call at any point after a step.
func (e *Engine) computeResiduals() residuals {
	la.SymSpMV(e.p, 1, e.x, 0, e.pHatX)
	e.a.SpMV(1, e.x, 0, e.aHatX)
	e.a.SpMVTrans(1, e.y, 0, e.aHatTy)

	scaledPrim := 0.0
	for i := 0; i < e.m; i++ {
		if d := math.Abs(e.aHatX[i] - e.z[i]); d > scaledPrim {
			scaledPrim = d
		}
	}
	scaledDual := 0.0
	for i := 0; i < e.n; i++ {
		if d := math.Abs(e.pHatX[i] + e.q[i] + e.aHatTy[i]); d > scaledDual {
			scaledDual = d
		}
	}

	// Unscale: Ax = Einv.*(A x̂), z = Einv.*ẑ, Px = (Dinv/c).*(P x̂),
	// Aᵀy = (Dinv/c).*(Aᵀŷ), q = (Dinv/c).*q̂.
	c := e.scale.C
	primMax := 0.0
	prim := 0.0
	for i := 0; i < e.m; i++ {
		axU := e.scale.Einv[i] * e.aHatX[i]
		zU := e.scale.Einv[i] * e.z[i]
		if d := math.Abs(axU - zU); d > prim {
			prim = d
		}
		if a := math.Abs(axU); a > primMax {
			primMax = a
		}
		if a := math.Abs(zU); a > primMax {
			primMax = a
		}
	}

	dualMax := 0.0
	dual := 0.0
	for i := 0; i < e.n; i++ {
		pxU := e.scale.Dinv[i] / c * e.pHatX[i]
		atyU := e.scale.Dinv[i] / c * e.aHatTy[i]
		qU := e.scale.Dinv[i] / c * e.q[i]
		if d := math.Abs(pxU + qU + atyU); d > dual {
			dual = d
		}
		for _, v := range [...]float64{pxU, atyU, qU} {
			if a := math.Abs(v); a > dualMax {
				dualMax = a
			}
		}
	}

	return residuals{
		prim: prim, dual: dual,
		epsPrim: e.settings.EpsAbs + e.settings.EpsRel*primMax,
		epsDual: e.settings.EpsAbs + e.settings.EpsRel*dualMax,
		scaledPrim: scaledPrim, scaledDual: scaledDual,
	}
}

// checkPrimalInfeasible runs the primal infeasibility certificate test
// over the Δy window captured between checkpoints.
func (e *Engine) checkPrimalInfeasible() (Status, bool) {
	dy := make([]float64, e.m)
	for i := range dy {
		dy[i] = e.y[i] - e.yCheckpoint[i]
	}
	dyNorm := la.NormInf(dy)
	if dyNorm <= tinyGuard {
		return Unsolved, false
	}

	atDy := make([]float64, e.n)
	e.a.SpMVTrans(1, dy, 0, atDy)
	if la.NormInf(atDy) > e.settings.EpsPrimInf*dyNorm {
		return Unsolved, false
	}

	support := 0.0
	for i, dyi := range dy {
		switch {
		case dyi > tinyGuard:
			if math.IsInf(e.u[i], 1) {
				return Unsolved, false
			}
			support += e.u[i] * dyi
		case dyi < -tinyGuard:
			if math.IsInf(e.l[i], -1) {
				return Unsolved, false
			}
			support += e.l[i] * dyi
		}
	}
	if support > e.settings.EpsPrimInf*dyNorm {
		return Unsolved, false
	}
	return PrimalInfeasible, true
}

// checkDualInfeasible runs the dual infeasibility certificate test over
// the Δx window captured between checkpoints.
func (e *Engine) checkDualInfeasible() (Status, bool) {
	dx := make([]float64, e.n)
	for i := range dx {
		dx[i] = e.x[i] - e.xCheckpoint[i]
	}
	dxNorm := la.NormInf(dx)
	if dxNorm <= tinyGuard {
		return Unsolved, false
	}

	pDx := make([]float64, e.n)
	la.SymSpMV(e.p, 1, dx, 0, pDx)
	if la.NormInf(pDx) > e.settings.EpsDualInf*dxNorm {
		return Unsolved, false
	}
	if la.Dot(e.q, dx) > -e.settings.EpsDualInf*dxNorm {
		return Unsolved, false
	}

	aDx := make([]float64, e.m)
	e.a.SpMV(1, dx, 0, aDx)
	eps := e.settings.EpsDualInf * dxNorm
	for i := 0; i < e.m; i++ {
		lowerFinite := !math.IsInf(e.l[i], -1)
		upperFinite := !math.IsInf(e.u[i], 1)
		switch {
		case lowerFinite && upperFinite:
			if math.Abs(aDx[i]) > eps {
				return Unsolved, false
			}
		case upperFinite && !lowerFinite:
			if aDx[i] < -eps {
				return Unsolved, false
			}
		case lowerFinite && !upperFinite:
			if aDx[i] > eps {
				return Unsolved, false
			}
		}
	}
	return DualInfeasible, true
}

// maybeAdaptRho checks the adaptive-ρ trigger and, if it fires, rescales
// ρ from the ratio of scaled primal to scaled dual residual. The
// heuristic schedule used when AdaptiveRhoInterval == 0 checks at
// iteration 25, then doubles the interval after each check.
func (e *Engine) maybeAdaptRho(res residuals) {
	trigger := false
	if e.settings.AdaptiveRhoInterval > 0 {
		trigger = e.iter%e.settings.AdaptiveRhoInterval == 0
	} else if e.iter >= e.nextAdaptiveCheck {
		trigger = true
		e.nextAdaptiveCheck *= 2
	}
	if !trigger {
		return
	}

	primDenom := math.Max(la.NormInf(e.aHatX), la.NormInf(e.z))
	dualDenom := math.Max(la.NormInf(e.pHatX), math.Max(la.NormInf(e.aHatTy), la.NormInf(e.q)))
	if primDenom < tinyGuard || dualDenom < tinyGuard {
		return
	}

	ratio := (res.scaledPrim / primDenom) / (res.scaledDual / dualDenom)
	if ratio <= 0 || math.IsNaN(ratio) || math.IsInf(ratio, 0) {
		return
	}
	rhoNew := e.rho * math.Sqrt(ratio)
	rhoNew = math.Max(1e-6, math.Min(1e6, rhoNew))

	if rhoNew/e.rho > e.settings.AdaptiveRhoTolerance || e.rho/rhoNew > e.settings.AdaptiveRhoTolerance {
		e.rho = rhoNew
		e.rebuildRhoVec()
		e.backend.UpdateRho(e.rhoVec)
		e.rhoUpdates++
		if e.logger.enable(LogTrace) {
			e.logger.log("iter=%d rho updated to %.3e\n", e.iter, e.rho)
		}
	}
}
