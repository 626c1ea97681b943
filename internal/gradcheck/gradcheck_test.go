package gradcheck

import "testing"

func TestGradientMatchesQuadratic(t *testing.T) {
	// f(x) = x0^2 + 2*x0*x1 + 3*x1^2, grad = [2x0+2x1, 2x0+6x1].
	f := func(x []float64) float64 {
		return x[0]*x[0] + 2*x[0]*x[1] + 3*x[1]*x[1]
	}
	x := []float64{1.5, -2.0}
	want := []float64{2*x[0] + 2*x[1], 2*x[0] + 6*x[1]}
	got := Gradient(f, x)
	if d := MaxAbsDiff(got, want); d > 1e-4 {
		t.Fatalf("gradient diff = %v, want <= 1e-4 (got=%v want=%v)", d, got, want)
	}
}
