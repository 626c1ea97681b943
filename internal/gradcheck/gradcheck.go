// Package gradcheck is a trimmed, test-only adaptation of the teacher's
// numdiff package: central-difference verification that a
// hand-written analytic gradient or residual matches a finite-
// difference approximation, used by the qpsolve tests to confirm Px+q
// really is the gradient of ½xᵀPx+qᵀx.
package gradcheck

import "math"

var cubeEps = math.Pow(math.Nextafter(1, 2)-1, 1.0/3)

// Gradient returns a central-difference approximation of the gradient
// of f at x, using the teacher's step-size convention
// h = cubeEps * sign(x_i) * max(1, |x_i|).
func Gradient(f func([]float64) float64, x []float64) []float64 {
	n := len(x)
	g := make([]float64, n)
	xm := append([]float64(nil), x...)
	for i := 0; i < n; i++ {
		h := math.Copysign(cubeEps, x[i]) * math.Max(1, math.Abs(x[i]))
		orig := xm[i]
		xm[i] = orig + h
		fPlus := f(xm)
		xm[i] = orig - h
		fMinus := f(xm)
		xm[i] = orig
		g[i] = (fPlus - fMinus) / (2 * h)
	}
	return g
}

// MaxAbsDiff reports max(|a_i - b_i|), the metric the property tests
// compare against a tolerance.
func MaxAbsDiff(a, b []float64) float64 {
	if len(a) != len(b) {
		panic("bound check error")
	}
	m := 0.0
	for i := range a {
		if d := math.Abs(a[i] - b[i]); d > m {
			m = d
		}
	}
	return m
}
