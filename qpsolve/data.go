// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package qpsolve

import (
	"errors"
	"fmt"

	"github.com/embedqp/qpsolve/la"
)

// Data is the caller-supplied problem: minimize ½xᵀPx + qᵀx subject to
// lA <= Ax <= uA.
type Data struct {
	P       *la.CSC // n x n, upper-triangular storage
	Q       []float64
	A       *la.CSC // m x n
	L, U    []float64
}

// validate checks the structural requirements Setup requires of Data,
// including l[i] <= u[i] per row.
func (d *Data) validate() error {
	if d.P == nil || d.A == nil {
		return errors.New("qpsolve: P and A must be non-nil")
	}
	n := d.P.Rows
	m := d.A.Rows
	switch {
	case n <= 0:
		return errors.New("qpsolve: n must be > 0")
	case m < 0:
		return errors.New("qpsolve: m must be >= 0")
	case d.P.Cols != n:
		return errors.New("qpsolve: P must be square")
	case d.A.Cols != n:
		return fmt.Errorf("qpsolve: A has %d columns, want %d", d.A.Cols, n)
	case len(d.Q) != n:
		return fmt.Errorf("qpsolve: q has length %d, want %d", len(d.Q), n)
	case len(d.L) != m || len(d.U) != m:
		return fmt.Errorf("qpsolve: l/u must have length %d", m)
	case !d.P.IsUpperTriangular():
		return errors.New("qpsolve: P must be supplied in upper-triangular storage")
	case !d.P.AllFinite() || !d.A.AllFinite():
		return errors.New("qpsolve: P and A must contain only finite values")
	case !la.AllFinite(d.Q):
		return errors.New("qpsolve: q must contain only finite values")
	}
	for i := 0; i < m; i++ {
		if d.L[i] > d.U[i] {
			return fmt.Errorf("qpsolve: l[%d] > u[%d]", i, i)
		}
	}
	return nil
}
