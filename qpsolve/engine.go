// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package qpsolve is the public API of the ADMM QP solver core: a
// warm-startable, matrix-free operator-splitting solver for convex QPs
// of the form
//
//	minimize    ½xᵀPx + qᵀx
//	subject to  lA ≤ Ax ≤ uA
//
// Setup allocates an Engine once; every other method mutates the
// returned *Engine in place until Cleanup releases it.
package qpsolve

import (
	"errors"
	"math"
	"os"
	"time"

	"github.com/embedqp/qpsolve/la"
	"github.com/embedqp/qpsolve/linsys"
	"github.com/embedqp/qpsolve/scaling"
)

// equalityRhoMultiplier is the factor applied to rho_vec on rows with
// lA_i == uA_i, matching OSQP's original choice. It is hard-coded
// rather than exposed as a Settings field, the same way the teacher
// hard-codes comparable magic constants for its own penalty bounds.
const equalityRhoMultiplier = 1e3

const tinyGuard = 1e-12

// Info reports the outcome of a Solve call.
type Info struct {
	Status       Status
	PolishStatus PolishStatus
	Objective    float64
	PrimRes      float64 // unscaled
	DualRes      float64 // unscaled
	Iter         int
	RhoUpdates   int
	SolveTime    time.Duration
}

// Engine owns the scaled problem data, the iterate state and the LinSys
// backend; the polish pass allocates its own buffers on each call. It is not safe for
// concurrent use by multiple goroutines: a single Engine is
// single-threaded and synchronous.
type Engine struct {
	n, m int

	p, a *la.CSC   // scaled in place
	q, l, u []float64 // scaled in place

	scale *scaling.Scaling

	settings Settings
	logger   Logger

	// iterate state, all in scaled coordinates.
	x, z, y []float64
	zPrev   []float64

	// scratch, reused every iteration.
	xTilde, zTilde []float64
	pHatX, aHatX, aHatTy, rhsX, rhsZ []float64

	rho          float64
	rhoVec       []float64
	rhoInv       []float64
	equalityRow  []bool

	backend *linsys.PCG

	// checkpoints for the infeasibility-certificate window: Δx/Δy are
	// measured against these, captured before the over-relaxed update
	// touches x/y within the checked iteration.
	xCheckpoint, yCheckpoint []float64

	// for Update{P,A} value-only updates: the column each nnz entry
	// belongs to, precomputed once at Setup.
	pColOf, aColOf []int

	iter              int
	rhoUpdates        int
	nextAdaptiveCheck int

	lastScaledPrimRes, lastScaledDualRes float64
	lastRHSNormHint                      float64

	info   Info
	closed bool
}

// Setup validates data and settings, builds the scaled problem and the
// PCG LinSys backend, and cold-starts the iterate at x = y = z = 0. It
// is the only function that allocates the engine's structural buffers.
func Setup(data Data, settings Settings, logger *Logger) (*Engine, error) {
	if err := data.validate(); err != nil {
		return nil, err
	}
	if err := settings.validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = &Logger{Level: LogNoop}
	}
	if settings.Verbose && logger.Level < LogLast {
		logger.Level = LogLast
	}
	if logger.Msg == nil {
		logger.Msg = os.Stdout
	}
	if logger.Out == nil {
		logger.Out = os.Stdout
	}

	n, m := data.P.Rows, data.A.Rows

	e := &Engine{
		n: n, m: m,
		p: data.P.Clone(), a: data.A.Clone(),
		q: append([]float64(nil), data.Q...),
		l: append([]float64(nil), data.L...),
		u: append([]float64(nil), data.U...),
		settings: settings,
		logger:   *logger,

		x: make([]float64, n), z: make([]float64, m), y: make([]float64, m),
		zPrev:  make([]float64, m),
		xTilde: make([]float64, n), zTilde: make([]float64, m),
		pHatX: make([]float64, n), aHatX: make([]float64, m), aHatTy: make([]float64, n),
		rhsX: make([]float64, n), rhsZ: make([]float64, m),
		rhoVec: make([]float64, m), rhoInv: make([]float64, m),
		equalityRow: make([]bool, m),
		xCheckpoint: make([]float64, n), yCheckpoint: make([]float64, m),
		nextAdaptiveCheck: 25,
	}

	e.scale = scaling.Ruiz(e.p, e.a, e.q, e.l, e.u, settings.Scaling)
	if !e.scale.Valid() {
		return nil, errors.New("qpsolve: Ruiz scaling produced a non-positive or non-finite factor")
	}

	for i := 0; i < m; i++ {
		e.equalityRow[i] = e.l[i] == e.u[i] && !math.IsInf(e.l[i], 0)
	}
	e.rho = settings.Rho
	e.rebuildRhoVec()

	e.pColOf = columnIndex(e.p)
	e.aColOf = columnIndex(e.a)

	backend, err := linsys.NewPCG(e.p, e.a, settings.Sigma, e.rhoVec)
	if err != nil {
		return nil, err
	}
	e.backend = backend
	e.lastRHSNormHint = 1

	return e, nil
}

// columnIndex returns, for every stored nnz entry k, the column it
// belongs to — used by UpdateP/UpdateA to rescale caller-supplied
// values without re-deriving the CSC structure on every call.
func columnIndex(m *la.CSC) []int {
	col := make([]int, len(m.Val))
	for j := 0; j < m.Cols; j++ {
		for k := m.ColPtr[j]; k < m.ColPtr[j+1]; k++ {
			col[k] = j
		}
	}
	return col
}

func (e *Engine) rebuildRhoVec() {
	for i := 0; i < e.m; i++ {
		if e.equalityRow[i] {
			e.rhoVec[i] = e.rho * equalityRhoMultiplier
		} else {
			e.rhoVec[i] = e.rho
		}
		e.rhoInv[i] = 1 / e.rhoVec[i]
	}
}

// WarmStart sets the initial iterate from caller-supplied unscaled x
// and/or y (either may be nil to leave that half untouched), and sets
// z ← Ax. Must be called before Solve (or between Solve calls to
// override the automatic carry-over Settings.WarmStart provides). With
// Settings.WarmStart false, Solve cold-starts at x = y = z = 0 and these
// values are discarded.
func (e *Engine) WarmStart(x, y []float64) error {
	if e.closed {
		return errors.New("qpsolve: engine is closed")
	}
	if x != nil {
		if len(x) != e.n {
			return errors.New("qpsolve: warm-start x has wrong dimension")
		}
		copy(e.x, x)
		e.scale.Apply(e.x, nil)
	}
	if y != nil {
		if len(y) != e.m {
			return errors.New("qpsolve: warm-start y has wrong dimension")
		}
		copy(e.y, y)
		for i := range e.y {
			e.y[i] *= e.scale.C * e.scale.Einv[i]
		}
	}
	e.a.SpMV(1, e.x, 0, e.z)
	return nil
}

// Cleanup releases the engine's owned resources. Idempotent: safe to
// call more than once.
func (e *Engine) Cleanup() {
	if e.closed {
		return
	}
	if e.backend != nil {
		e.backend.Free()
	}
	e.closed = true
}

// Solution returns the last computed primal/dual solution (in unscaled
// coordinates) and the Info record from the most recent Solve call.
func (e *Engine) Solution() ([]float64, []float64, Info) {
	x := make([]float64, e.n)
	y := make([]float64, e.m)
	e.scale.UnscaleX(x, e.x)
	e.scale.UnscaleY(y, e.y)
	return x, y, e.info
}

// Solve runs the ADMM iteration to termination and returns the
// terminal Status.
func (e *Engine) Solve() Status {
	if e.closed {
		return NumericalError
	}
	start := time.Now()
	e.iter = 0
	status := Unsolved

	if !e.settings.WarmStart {
		la.Zero(e.x)
		la.Zero(e.z)
		la.Zero(e.y)
	}

	copy(e.xCheckpoint, e.x)
	copy(e.yCheckpoint, e.y)

	checkEvery := e.settings.CheckTermination
	if checkEvery == 0 {
		checkEvery = 1
	}

loop:
	for e.iter = 1; e.iter <= e.settings.MaxIter; e.iter++ {
		if e.settings.Cancel != nil && e.settings.Cancel() {
			status = Interrupted
			e.iter--
			break loop
		}

		if err := e.step(); err != nil {
			status = NumericalError
			if e.logger.enable(LogLast) {
				e.logger.log("qpsolve: iter %d: %v\n", e.iter, err)
			}
			break loop
		}

		if e.iter%checkEvery != 0 {
			continue
		}

		res := e.computeResiduals()
		e.lastScaledPrimRes, e.lastScaledDualRes = res.scaledPrim, res.scaledDual

		if e.logger.enable(LogIter) {
			e.logger.log("iter=%d prim=%.3e dual=%.3e rho=%.3e\n", e.iter, res.prim, res.dual, e.rho)
		}

		if res.prim <= res.epsPrim && res.dual <= res.epsDual {
			status = Solved
			break loop
		}

		if pf, certified := e.checkPrimalInfeasible(); certified {
			status = pf
			break loop
		}
		if df, certified := e.checkDualInfeasible(); certified {
			status = df
			break loop
		}

		if e.settings.AdaptiveRho {
			e.maybeAdaptRho(res)
		}

		copy(e.xCheckpoint, e.x)
		copy(e.yCheckpoint, e.y)
	}

	if status == Unsolved {
		res := e.computeResiduals()
		if res.prim <= 10*res.epsPrim && res.dual <= 10*res.epsDual {
			status = SolvedInaccurate
		} else {
			status = MaxIterReached
		}
	}

	// The loop's counter overshoots by one once it runs to exhaustion
	// (the increment that fails the bound still executes); clamp the
	// reported count to the number of iterations actually performed.
	if e.iter > e.settings.MaxIter {
		e.iter = e.settings.MaxIter
	}

	e.info = e.buildInfo(status)

	if e.settings.Polishing && (status == Solved || status == SolvedInaccurate) {
		e.runPolish()
	} else {
		e.info.PolishStatus = PolishSkipped
	}

	e.info.SolveTime = time.Since(start)
	if e.logger.enable(LogLast) {
		e.logger.out("status=%s iter=%d obj=%.6e prim=%.3e dual=%.3e\n",
			e.info.Status, e.info.Iter, e.info.Objective, e.info.PrimRes, e.info.DualRes)
	}
	return e.info.Status
}

// step performs one ADMM iteration: solve the linearized KKT subproblem,
// over-relax x, project z onto the box, then update y.
func (e *Engine) step() error {
	alpha := e.settings.Alpha

	copy(e.zPrev, e.z)

	// RHS: σx − q (length n), Rz − y (length m).
	copy(e.rhsX, e.x)
	la.Scale(e.settings.Sigma, e.rhsX)
	la.AXPY(-1, e.q, e.rhsX)
	for i := 0; i < e.m; i++ {
		e.rhsZ[i] = e.rhoVec[i]*e.z[i] - e.y[i]
	}

	ratio := math.Max(e.lastScaledPrimRes, e.lastScaledDualRes)
	epsFrac := 0.1 * ratio / math.Max(e.lastRHSNormHint, tinyGuard)
	e.backend.SetTolerance(epsFrac, 1e-10)

	copy(e.xTilde, e.x)
	if err := e.backend.Solve(e.rhsX, e.rhsZ, e.xTilde, e.zTilde); err != nil {
		return err
	}
	e.lastRHSNormHint = la.Norm2(e.rhsX) + la.Norm2(e.rhsZ)

	// Over-relaxation on x.
	for i := 0; i < e.n; i++ {
		e.x[i] = alpha*e.xTilde[i] + (1-alpha)*e.x[i]
	}

	// z ← Π( α z̃ + (1−α) z_prev + R⁻¹ y ).
	for i := 0; i < e.m; i++ {
		v := alpha*e.zTilde[i] + (1-alpha)*e.zPrev[i] + e.rhoInv[i]*e.y[i]
		if v < e.l[i] {
			v = e.l[i]
		} else if v > e.u[i] {
			v = e.u[i]
		}
		e.z[i] = v
	}

	// y ← y + R( α z̃ + (1−α) z_prev − z ).
	for i := 0; i < e.m; i++ {
		e.y[i] += e.rhoVec[i] * (alpha*e.zTilde[i] + (1-alpha)*e.zPrev[i] - e.z[i])
	}

	if !la.AllFinite(e.x) || !la.AllFinite(e.y) || !la.AllFinite(e.z) {
		return errors.New("non-finite iterate")
	}
	return nil
}

func (e *Engine) buildInfo(status Status) Info {
	res := e.computeResiduals()
	obj := e.objective()
	if status == PrimalInfeasible || status == PrimalInfeasibleInaccurate ||
		status == DualInfeasible || status == DualInfeasibleInaccurate {
		obj = math.NaN()
	}
	return Info{
		Status:     status,
		Objective:  obj,
		PrimRes:    res.prim,
		DualRes:    res.dual,
		Iter:       e.iter,
		RhoUpdates: e.rhoUpdates,
	}
}

func (e *Engine) objective() float64 {
	la.SymSpMV(e.p, 1, e.x, 0, e.pHatX)
	obj := 0.5*la.Dot(e.x, e.pHatX) + la.Dot(e.q, e.x)
	return obj / e.scale.C
}
