// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package qpsolve

import (
	"github.com/embedqp/qpsolve/la"
	"github.com/embedqp/qpsolve/polish"
)

// runPolish identifies the active set from the (scaled) ADMM iterate,
// solves the reduced KKT system, iteratively refines, and commits only
// if the refined residuals do not exceed the ADMM ones. Polishing runs
// entirely in the engine's internal scaled coordinates and never
// escalates to NumericalError: a failed polish just leaves the ADMM
// iterate in place.
func (e *Engine) runPolish() {
	preRes := e.computeResiduals()

	as := polish.IdentifyActiveSet(e.y, e.z, e.l, e.u)
	rs := polish.BuildReduced(e.p, e.a, e.q, e.l, e.u, as, e.settings.Delta)
	sol, ok := polish.Run(rs, e.m, e.settings.PolishRefineIter)
	if !ok {
		e.info.PolishStatus = PolishUnsuccessful
		return
	}
	if !la.AllFinite(sol.X) || !la.AllFinite(sol.Y) {
		e.info.PolishStatus = PolishUnsuccessful
		return
	}

	savedX, savedY, savedZ := append([]float64(nil), e.x...), append([]float64(nil), e.y...), append([]float64(nil), e.z...)

	copy(e.x, sol.X)
	copy(e.y, sol.Y)
	e.a.SpMV(1, e.x, 0, e.z)

	postRes := e.computeResiduals()

	if postRes.prim <= preRes.prim && postRes.dual <= preRes.dual {
		e.info.PolishStatus = PolishSuccessful
		e.info.PrimRes, e.info.DualRes = postRes.prim, postRes.dual
		e.info.Objective = e.objective()
	} else {
		copy(e.x, savedX)
		copy(e.y, savedY)
		copy(e.z, savedZ)
		e.info.PolishStatus = PolishUnsuccessful
	}
}
