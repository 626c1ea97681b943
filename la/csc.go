// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package la

import (
	"fmt"
	"math"
)

// CSC is an immutable sparse matrix stored in compressed-sparse-column
// format. Once built, a CSC's shape and sparsity pattern never change;
// only value updates made outside this package (Ruiz scaling, the
// engine's UpdateP/UpdateA) overwrite Val in place, preserving
// ColPtr/RowIdx.
//
// When a CSC stores the symmetric matrix P of a QP, only the upper
// triangle (entries with RowIdx[k] <= column index) is kept.
type CSC struct {
	Rows, Cols int
	ColPtr     []int // length Cols+1
	RowIdx     []int
	Val        []float64
}

// NewCSC validates and wraps the given CSC arrays. It does not copy them.
func NewCSC(rows, cols int, colPtr, rowIdx []int, val []float64) (*CSC, error) {
	if rows < 0 || cols < 0 {
		return nil, fmt.Errorf("la: negative dimension (%d, %d)", rows, cols)
	}
	if len(colPtr) != cols+1 {
		return nil, fmt.Errorf("la: colPtr length %d, want %d", len(colPtr), cols+1)
	}
	if len(rowIdx) != len(val) {
		return nil, fmt.Errorf("la: rowIdx/val length mismatch %d != %d", len(rowIdx), len(val))
	}
	if colPtr[0] != 0 {
		return nil, fmt.Errorf("la: colPtr[0] must be 0")
	}
	for j := 0; j < cols; j++ {
		if colPtr[j+1] < colPtr[j] {
			return nil, fmt.Errorf("la: colPtr not non-decreasing at column %d", j)
		}
		prev := -1
		for k := colPtr[j]; k < colPtr[j+1]; k++ {
			r := rowIdx[k]
			if r < 0 || r >= rows {
				return nil, fmt.Errorf("la: row index %d out of range in column %d", r, j)
			}
			if r <= prev {
				return nil, fmt.Errorf("la: row indices must be strictly increasing within column %d", j)
			}
			prev = r
		}
	}
	if colPtr[cols] != len(val) {
		return nil, fmt.Errorf("la: colPtr[cols]=%d does not match nnz=%d", colPtr[cols], len(val))
	}
	return &CSC{Rows: rows, Cols: cols, ColPtr: colPtr, RowIdx: rowIdx, Val: val}, nil
}

// NNZ returns the number of stored entries.
func (m *CSC) NNZ() int { return len(m.Val) }

// Clone returns a deep copy sharing no backing arrays with m.
func (m *CSC) Clone() *CSC {
	colPtr := append([]int(nil), m.ColPtr...)
	rowIdx := append([]int(nil), m.RowIdx...)
	val := append([]float64(nil), m.Val...)
	return &CSC{Rows: m.Rows, Cols: m.Cols, ColPtr: colPtr, RowIdx: rowIdx, Val: val}
}

// IsUpperTriangular reports whether every stored entry has RowIdx <= column.
// Used to validate that P is supplied in upper-triangular storage.
func (m *CSC) IsUpperTriangular() bool {
	if m.Rows != m.Cols {
		return false
	}
	for j := 0; j < m.Cols; j++ {
		for k := m.ColPtr[j]; k < m.ColPtr[j+1]; k++ {
			if m.RowIdx[k] > j {
				return false
			}
		}
	}
	return true
}

// AllFinite reports whether every stored value is finite.
func (m *CSC) AllFinite() bool {
	return AllFinite(m.Val)
}

// SpMV computes y ← alpha*M*x + beta*y.
func (m *CSC) SpMV(alpha float64, x []float64, beta float64, y []float64) {
	if len(x) != m.Cols || len(y) != m.Rows {
		panic("bound check error")
	}
	if beta == 0 {
		Zero(y)
	} else {
		Scale(beta, y)
	}
	if alpha == 0 {
		return
	}
	for j := 0; j < m.Cols; j++ {
		xj := alpha * x[j]
		if xj == 0 {
			continue
		}
		for k := m.ColPtr[j]; k < m.ColPtr[j+1]; k++ {
			y[m.RowIdx[k]] += xj * m.Val[k]
		}
	}
}

// SpMVTrans computes y ← alpha*Mᵀ*x + beta*y without materializing Mᵀ.
func (m *CSC) SpMVTrans(alpha float64, x []float64, beta float64, y []float64) {
	if len(x) != m.Rows || len(y) != m.Cols {
		panic("bound check error")
	}
	if beta == 0 {
		Zero(y)
	} else {
		Scale(beta, y)
	}
	if alpha == 0 {
		return
	}
	for j := 0; j < m.Cols; j++ {
		var s float64
		for k := m.ColPtr[j]; k < m.ColPtr[j+1]; k++ {
			s += m.Val[k] * x[m.RowIdx[k]]
		}
		y[j] += alpha * s
	}
}

// SymSpMV computes y ← alpha*P*x + beta*y where P is stored as its upper
// triangle only: off-diagonal stored entries contribute to both their row
// and their (mirrored) column.
func SymSpMV(p *CSC, alpha float64, x []float64, beta float64, y []float64) {
	if p.Rows != p.Cols || len(x) != p.Cols || len(y) != p.Rows {
		panic("bound check error")
	}
	if beta == 0 {
		Zero(y)
	} else {
		Scale(beta, y)
	}
	if alpha == 0 {
		return
	}
	for j := 0; j < p.Cols; j++ {
		for k := p.ColPtr[j]; k < p.ColPtr[j+1]; k++ {
			i, v := p.RowIdx[k], p.Val[k]
			y[i] += alpha * v * x[j]
			if i != j {
				y[j] += alpha * v * x[i]
			}
		}
	}
}

// ColNormInf returns, for each column, the infinity norm (max abs value)
// of that column's stored entries.
func (m *CSC) ColNormInf(dst []float64) {
	if len(dst) != m.Cols {
		panic("bound check error")
	}
	for j := 0; j < m.Cols; j++ {
		mx := 0.0
		for k := m.ColPtr[j]; k < m.ColPtr[j+1]; k++ {
			if a := math.Abs(m.Val[k]); a > mx {
				mx = a
			}
		}
		dst[j] = mx
	}
}

// RowNormInf returns, for each row, the infinity norm of that row's
// stored entries.
func (m *CSC) RowNormInf(dst []float64) {
	if len(dst) != m.Rows {
		panic("bound check error")
	}
	Zero(dst)
	for j := 0; j < m.Cols; j++ {
		for k := m.ColPtr[j]; k < m.ColPtr[j+1]; k++ {
			i := m.RowIdx[k]
			if a := math.Abs(m.Val[k]); a > dst[i] {
				dst[i] = a
			}
		}
	}
}

// SymColNormInf returns, for each column j, the infinity norm over the
// full symmetric matrix represented by the upper-triangular storage p
// (i.e. max over both the stored column and the mirrored row).
func SymColNormInf(p *CSC, dst []float64) {
	if len(dst) != p.Cols {
		panic("bound check error")
	}
	Zero(dst)
	for j := 0; j < p.Cols; j++ {
		for k := p.ColPtr[j]; k < p.ColPtr[j+1]; k++ {
			i, v := p.RowIdx[k], math.Abs(p.Val[k])
			if v > dst[j] {
				dst[j] = v
			}
			if i != j && v > dst[i] {
				dst[i] = v
			}
		}
	}
}

// Diagonal returns the diagonal entries of m (0 where absent).
func (m *CSC) Diagonal(dst []float64) {
	n := m.Rows
	if m.Cols < n {
		n = m.Cols
	}
	if len(dst) < n {
		panic("bound check error")
	}
	Zero(dst[:n])
	for j := 0; j < n; j++ {
		for k := m.ColPtr[j]; k < m.ColPtr[j+1]; k++ {
			if m.RowIdx[k] == j {
				dst[j] = m.Val[k]
				break
			}
		}
	}
}

// FromTriplets builds a CSC matrix from (row, col, val) triplets, summing
// duplicate entries. Used by tests and by callers assembling small
// problems without hand-building column pointers.
func FromTriplets(rows, cols int, row, col []int, val []float64) (*CSC, error) {
	if len(row) != len(col) || len(col) != len(val) {
		return nil, fmt.Errorf("la: triplet length mismatch")
	}
	counts := make([]int, cols+1)
	for _, c := range col {
		if c < 0 || c >= cols {
			return nil, fmt.Errorf("la: column index %d out of range", c)
		}
		counts[c+1]++
	}
	for j := 0; j < cols; j++ {
		counts[j+1] += counts[j]
	}
	colPtr := append([]int(nil), counts...)
	nnz := colPtr[cols]
	rowIdx := make([]int, nnz)
	values := make([]float64, nnz)
	cursor := append([]int(nil), colPtr...)
	for k := range row {
		r, c, v := row[k], col[k], val[k]
		if r < 0 || r >= rows {
			return nil, fmt.Errorf("la: row index %d out of range", r)
		}
		pos := cursor[c]
		rowIdx[pos] = r
		values[pos] = v
		cursor[c]++
	}
	// sort each column by row index and coalesce duplicates.
	for j := 0; j < cols; j++ {
		lo, hi := colPtr[j], colPtr[j+1]
		insertionSort(rowIdx[lo:hi], values[lo:hi])
	}
	return coalesce(rows, cols, colPtr, rowIdx, values)
}

func insertionSort(idx []int, val []float64) {
	for i := 1; i < len(idx); i++ {
		j := i
		for j > 0 && idx[j-1] > idx[j] {
			idx[j-1], idx[j] = idx[j], idx[j-1]
			val[j-1], val[j] = val[j], val[j-1]
			j--
		}
	}
}

func coalesce(rows, cols int, colPtr, rowIdx []int, val []float64) (*CSC, error) {
	outPtr := make([]int, cols+1)
	outIdx := make([]int, 0, len(rowIdx))
	outVal := make([]float64, 0, len(val))
	for j := 0; j < cols; j++ {
		lo, hi := colPtr[j], colPtr[j+1]
		for k := lo; k < hi; {
			r, v := rowIdx[k], val[k]
			k++
			for k < hi && rowIdx[k] == r {
				v += val[k]
				k++
			}
			outIdx = append(outIdx, r)
			outVal = append(outVal, v)
		}
		outPtr[j+1] = len(outIdx)
	}
	return NewCSC(rows, cols, outPtr, outIdx, outVal)
}

// UpperTriOf extracts the upper triangle (row <= col) of a general CSC
// matrix, symmetrizing off-diagonal pairs by averaging before keeping the
// upper entry. A caller building P from a full or nearly-symmetric
// source (e.g. a dense Hessian) can use this to produce the
// upper-triangular storage Setup requires; Setup itself does not call
// it and rejects a non-upper-triangular P outright.
func UpperTriOf(m *CSC) (*CSC, error) {
	if m.Rows != m.Cols {
		return nil, fmt.Errorf("la: UpperTriOf requires a square matrix")
	}
	n := m.Rows
	dense := make([]float64, n*n)
	for j := 0; j < n; j++ {
		for k := m.ColPtr[j]; k < m.ColPtr[j+1]; k++ {
			dense[m.RowIdx[k]*n+j] = m.Val[k]
		}
	}
	var row, col []int
	var val []float64
	for j := 0; j < n; j++ {
		for i := 0; i <= j; i++ {
			v := dense[i*n+j]
			if i != j {
				v = (v + dense[j*n+i]) / 2
			}
			if v != 0 {
				row = append(row, i)
				col = append(col, j)
				val = append(val, v)
			}
		}
	}
	return FromTriplets(n, n, row, col, val)
}

// ToDense materializes m as a row-major dense slice, for use by the
// polish package's small, already-reduced systems.
func (m *CSC) ToDense() []float64 {
	dense := make([]float64, m.Rows*m.Cols)
	for j := 0; j < m.Cols; j++ {
		for k := m.ColPtr[j]; k < m.ColPtr[j+1]; k++ {
			dense[m.RowIdx[k]*m.Cols+j] = m.Val[k]
		}
	}
	return dense
}
