// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package qpsolve

import (
	"errors"
	"math"

	"github.com/embedqp/qpsolve/la"
)

// UpdateLinCost replaces q with qNew (unscaled), rescaling it with the
// stored D, c.
func (e *Engine) UpdateLinCost(qNew []float64) error {
	if e.closed {
		return errors.New("qpsolve: engine is closed")
	}
	if len(qNew) != e.n {
		return errors.New("qpsolve: q has wrong dimension")
	}
	if !la.AllFinite(qNew) {
		return errors.New("qpsolve: q must be finite")
	}
	for i := 0; i < e.n; i++ {
		e.q[i] = e.scale.C * e.scale.D[i] * qNew[i]
	}
	return nil
}

// UpdateBounds replaces lA and/or uA (unscaled; nil leaves that side
// unchanged), rescaling with the stored E and refreshing which rows
// count as equality rows for the ρ_vec multiplier.
func (e *Engine) UpdateBounds(lNew, uNew []float64) error {
	if e.closed {
		return errors.New("qpsolve: engine is closed")
	}
	if lNew != nil && len(lNew) != e.m {
		return errors.New("qpsolve: l has wrong dimension")
	}
	if uNew != nil && len(uNew) != e.m {
		return errors.New("qpsolve: u has wrong dimension")
	}
	l, u := e.l, e.u
	if lNew != nil {
		l = make([]float64, e.m)
		for i := range l {
			l[i] = scaleBoundValue(lNew[i], e.scale.E[i])
		}
	}
	if uNew != nil {
		u = make([]float64, e.m)
		for i := range u {
			u[i] = scaleBoundValue(uNew[i], e.scale.E[i])
		}
	}
	for i := 0; i < e.m; i++ {
		if l[i] > u[i] {
			return errors.New("qpsolve: l[i] > u[i] after update")
		}
	}
	e.l, e.u = l, u
	for i := 0; i < e.m; i++ {
		e.equalityRow[i] = e.l[i] == e.u[i] && !math.IsInf(e.l[i], 0)
	}
	e.rebuildRhoVec()
	e.backend.UpdateRho(e.rhoVec)
	return nil
}

func scaleBoundValue(v, e float64) float64 {
	if math.IsInf(v, 0) {
		return v
	}
	return v * e
}

// UpdateRho sets ρ directly, outside the adaptive schedule.
func (e *Engine) UpdateRho(rho float64) error {
	if e.closed {
		return errors.New("qpsolve: engine is closed")
	}
	if rho <= 0 {
		return errors.New("qpsolve: rho must be > 0")
	}
	e.rho = rho
	e.rebuildRhoVec()
	e.backend.UpdateRho(e.rhoVec)
	return nil
}

// UpdateSettings replaces the non-structural subset of Settings. Sigma
// and Scaling cannot be changed after Setup (see
// structuralFieldsChanged).
func (e *Engine) UpdateSettings(subset Settings) error {
	if e.closed {
		return errors.New("qpsolve: engine is closed")
	}
	if err := subset.validate(); err != nil {
		return err
	}
	if structuralFieldsChanged(e.settings, subset) {
		return errors.New("qpsolve: sigma and scaling cannot be changed after setup")
	}
	rhoChanged := subset.Rho != e.settings.Rho
	e.settings = subset
	if rhoChanged {
		return e.UpdateRho(subset.Rho)
	}
	return nil
}

// UpdateP overwrites P's stored values (same sparsity pattern) with
// caller-supplied unscaled values, either for every stored entry
// (idx == nil) or only the entries named by idx, rescaling with c·D·D
// and refreshing the LinSys preconditioner.
func (e *Engine) UpdateP(vals []float64, idx []int) error {
	if e.closed {
		return errors.New("qpsolve: engine is closed")
	}
	if !la.AllFinite(vals) {
		return errors.New("qpsolve: P values must be finite")
	}
	if idx == nil {
		if len(vals) != len(e.p.Val) {
			return errors.New("qpsolve: P values length mismatch")
		}
		for k, v := range vals {
			row, col := e.p.RowIdx[k], e.pColOf[k]
			e.p.Val[k] = e.scale.C * e.scale.D[row] * e.scale.D[col] * v
		}
	} else {
		if len(vals) != len(idx) {
			return errors.New("qpsolve: P values/idx length mismatch")
		}
		for j, k := range idx {
			if k < 0 || k >= len(e.p.Val) {
				return errors.New("qpsolve: P idx out of range")
			}
			row, col := e.p.RowIdx[k], e.pColOf[k]
			e.p.Val[k] = e.scale.C * e.scale.D[row] * e.scale.D[col] * vals[j]
		}
	}
	e.backend.UpdateMatrices(e.p.Val, nil)
	return nil
}

// UpdateA overwrites A's stored values (same sparsity pattern), per the
// same contract as UpdateP, rescaling with E·D.
func (e *Engine) UpdateA(vals []float64, idx []int) error {
	if e.closed {
		return errors.New("qpsolve: engine is closed")
	}
	if !la.AllFinite(vals) {
		return errors.New("qpsolve: A values must be finite")
	}
	if idx == nil {
		if len(vals) != len(e.a.Val) {
			return errors.New("qpsolve: A values length mismatch")
		}
		for k, v := range vals {
			row, col := e.a.RowIdx[k], e.aColOf[k]
			e.a.Val[k] = e.scale.E[row] * v * e.scale.D[col]
		}
	} else {
		if len(vals) != len(idx) {
			return errors.New("qpsolve: A values/idx length mismatch")
		}
		for j, k := range idx {
			if k < 0 || k >= len(e.a.Val) {
				return errors.New("qpsolve: A idx out of range")
			}
			row, col := e.a.RowIdx[k], e.aColOf[k]
			e.a.Val[k] = e.scale.E[row] * vals[j] * e.scale.D[col]
		}
	}
	e.backend.UpdateMatrices(nil, e.a.Val)
	return nil
}
