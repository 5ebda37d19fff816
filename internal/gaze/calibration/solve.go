package calibration

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/banshee-data/gazepoint/internal/gaze"
)

// fitTransform solves the per-axis least-squares problem mapping raw points
// onto targets for the mode's basis. Both axes share the normal matrix AᵀA.
func fitTransform(mode gaze.CalibrationMode, raw, targets []gaze.Vec2, eps float64) (tx, ty []float64, err error) {
	n := mode.Coefficients()
	if n == 0 {
		return nil, nil, fmt.Errorf("unsupported calibration mode %v", mode)
	}
	if len(raw) != len(targets) || len(raw) < n {
		return nil, nil, fmt.Errorf("%w: %d points for %d unknowns", gaze.ErrSingularSystem, len(raw), n)
	}

	design := mat.NewDense(len(raw), n, nil)
	bx := mat.NewVecDense(len(raw), nil)
	by := mat.NewVecDense(len(raw), nil)
	for i, p := range raw {
		design.SetRow(i, mode.Basis(p.X, p.Y))
		bx.SetVec(i, targets[i].X)
		by.SetVec(i, targets[i].Y)
	}

	var ata mat.Dense
	ata.Mul(design.T(), design)
	var atbx, atby mat.VecDense
	atbx.MulVec(design.T(), bx)
	atby.MulVec(design.T(), by)

	if tx, err = solveLinear(&ata, &atbx, eps); err != nil {
		return nil, nil, fmt.Errorf("x axis: %w", err)
	}
	if ty, err = solveLinear(&ata, &atby, eps); err != nil {
		return nil, nil, fmt.Errorf("y axis: %w", err)
	}
	return tx, ty, nil
}

// solveLinear solves a·x = b by Gauss-Jordan elimination with partial
// pivoting. A pivot smaller than eps times the largest entry of a marks the
// system singular. a and b are not modified.
func solveLinear(a mat.Matrix, b mat.Vector, eps float64) ([]float64, error) {
	n, c := a.Dims()
	if n != c || b.Len() != n {
		return nil, fmt.Errorf("dimension mismatch %dx%d with %d", n, c, b.Len())
	}

	matrix := make([][]float64, n)
	vector := make([]float64, n)
	scale := 0.0
	for i := 0; i < n; i++ {
		matrix[i] = make([]float64, n)
		for j := 0; j < n; j++ {
			matrix[i][j] = a.At(i, j)
			scale = math.Max(scale, math.Abs(matrix[i][j]))
		}
		vector[i] = b.AtVec(i)
	}
	if scale == 0 || math.IsNaN(scale) || math.IsInf(scale, 0) {
		return nil, gaze.ErrSingularSystem
	}
	threshold := eps * scale

	for col := 0; col < n; col++ {
		pivotRow := findPivotRow(matrix, col)
		if math.Abs(matrix[pivotRow][col]) < threshold {
			return nil, fmt.Errorf("%w: pivot %g at column %d", gaze.ErrSingularSystem, matrix[pivotRow][col], col)
		}
		if pivotRow != col {
			matrix[col], matrix[pivotRow] = matrix[pivotRow], matrix[col]
			vector[col], vector[pivotRow] = vector[pivotRow], vector[col]
		}
		normalizeRow(matrix, vector, col)
		eliminateColumn(matrix, vector, col)
	}
	return vector, nil
}

func findPivotRow(matrix [][]float64, col int) int {
	pivotRow := col
	maxAbs := math.Abs(matrix[col][col])
	for r := col + 1; r < len(matrix); r++ {
		if v := math.Abs(matrix[r][col]); v > maxAbs {
			maxAbs = v
			pivotRow = r
		}
	}
	return pivotRow
}

func normalizeRow(matrix [][]float64, vector []float64, row int) {
	div := matrix[row][row]
	for c := row; c < len(matrix); c++ {
		matrix[row][c] /= div
	}
	vector[row] /= div
}

func eliminateColumn(matrix [][]float64, vector []float64, col int) {
	for r := range matrix {
		if r == col {
			continue
		}
		factor := matrix[r][col]
		if factor == 0 {
			continue
		}
		for c := col; c < len(matrix); c++ {
			matrix[r][c] -= factor * matrix[col][c]
		}
		vector[r] -= factor * vector[col]
	}
}
