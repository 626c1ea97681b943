// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package qpsolve

import "errors"

// Settings configures the ADMM engine.
type Settings struct {
	Sigma               float64 // > 0, default 1e-6
	Rho                 float64 // > 0, default 0.1
	MaxIter             int     // >= 1, default 4000
	EpsAbs              float64 // >= 0, default 1e-3
	EpsRel              float64 // >= 0, default 1e-3 (at least one of EpsAbs/EpsRel > 0)
	EpsPrimInf          float64 // > 0, default 1e-4
	EpsDualInf          float64 // > 0, default 1e-4
	Alpha               float64 // in (0, 2), default 1.6
	Scaling             int     // Ruiz iterations; 0 disables; default 10
	AdaptiveRho         bool    // default true
	AdaptiveRhoInterval int     // >= 0; 0 = heuristic schedule
	AdaptiveRhoTolerance float64 // >= 1, default 5
	WarmStart           bool
	Polishing           bool
	Delta               float64 // > 0, polish regularization, default 1e-6
	PolishRefineIter    int     // >= 0, default 3
	Verbose             bool
	CheckTermination    int // >= 0; 0 = every iteration
	// Cancel, if non-nil, is consulted at the top of every iteration; a
	// true return stops the solve and reports Interrupted with the
	// current iterate left intact.
	Cancel func() bool
}

// DefaultSettings returns the documented defaults.
func DefaultSettings() Settings {
	return Settings{
		Sigma:                1e-6,
		Rho:                  0.1,
		MaxIter:              4000,
		EpsAbs:               1e-3,
		EpsRel:               1e-3,
		EpsPrimInf:           1e-4,
		EpsDualInf:           1e-4,
		Alpha:                1.6,
		Scaling:              10,
		AdaptiveRho:          true,
		AdaptiveRhoInterval:  0,
		AdaptiveRhoTolerance: 5,
		WarmStart:            true,
		Polishing:            false,
		Delta:                1e-6,
		PolishRefineIter:     3,
		Verbose:              false,
		CheckTermination:     25,
	}
}

// validate checks the admitted ranges for every field, following the
// teacher's switch-of-guard-clauses style.
func (s *Settings) validate() error {
	switch {
	case s.Sigma <= 0:
		return errors.New("qpsolve: sigma must be > 0")
	case s.Rho <= 0:
		return errors.New("qpsolve: rho must be > 0")
	case s.MaxIter < 1:
		return errors.New("qpsolve: max_iter must be >= 1")
	case s.EpsAbs < 0 || s.EpsRel < 0:
		return errors.New("qpsolve: eps_abs/eps_rel must be >= 0")
	case s.EpsAbs == 0 && s.EpsRel == 0:
		return errors.New("qpsolve: at least one of eps_abs/eps_rel must be > 0")
	case s.EpsPrimInf <= 0:
		return errors.New("qpsolve: eps_prim_inf must be > 0")
	case s.EpsDualInf <= 0:
		return errors.New("qpsolve: eps_dual_inf must be > 0")
	case s.Alpha <= 0 || s.Alpha >= 2:
		return errors.New("qpsolve: alpha must be in (0, 2)")
	case s.Scaling < 0:
		return errors.New("qpsolve: scaling must be >= 0")
	case s.AdaptiveRhoInterval < 0:
		return errors.New("qpsolve: adaptive_rho_interval must be >= 0")
	case s.AdaptiveRhoTolerance < 1:
		return errors.New("qpsolve: adaptive_rho_tolerance must be >= 1")
	case s.Delta <= 0:
		return errors.New("qpsolve: delta must be > 0")
	case s.PolishRefineIter < 0:
		return errors.New("qpsolve: polish_refine_iter must be >= 0")
	case s.CheckTermination < 0:
		return errors.New("qpsolve: check_termination must be >= 0")
	}
	return nil
}

// structuralFieldsChanged reports whether two Settings differ in a field
// that UpdateSettings is not permitted to change. Sigma and Scaling
// affect factors baked into the LinSys preconditioner and the Ruiz
// scaling at setup time; changing them after the fact would silently
// desynchronize the scaled problem from the stored D/E/c, so they stay
// structural.
func structuralFieldsChanged(old, new Settings) bool {
	return old.Sigma != new.Sigma || old.Scaling != new.Scaling
}
