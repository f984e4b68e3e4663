package metrics

import (
	"math"

	"github.com/YuminosukeSato/connectome/pkg/errors"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// ResidualSumOfSquares は残差平方和 Σ(yTrue - yPred)² を計算する
func ResidualSumOfSquares(yTrue, yPred []float64) (float64, error) {
	n := len(yTrue)
	if n == 0 {
		return 0, errors.NewValueError("ResidualSumOfSquares", "empty vector")
	}
	if len(yPred) != n {
		return 0, errors.NewDimensionError("ResidualSumOfSquares", n, len(yPred), 0)
	}

	var sum float64
	for i, v := range yTrue {
		diff := v - yPred[i]
		sum += diff * diff
	}
	return sum, nil
}

// ColumnResidualSumOfSquares は列ごとの残差平方和を計算する。
// 各列は独立した目的変数として扱う。
func ColumnResidualSumOfSquares(yTrue, yPred mat.Matrix) ([]float64, error) {
	rTrue, cTrue := yTrue.Dims()
	rPred, cPred := yPred.Dims()

	if rTrue == 0 || cTrue == 0 {
		return nil, errors.NewValueError("ColumnResidualSumOfSquares", "empty matrix")
	}
	if rTrue != rPred || cTrue != cPred {
		return nil, errors.NewShapeError("ColumnResidualSumOfSquares",
			[]int{rTrue, cTrue}, []int{rPred, cPred}, "")
	}

	var resid mat.Dense
	resid.Sub(yTrue, yPred)

	rss := make([]float64, cTrue)
	col := make([]float64, rTrue)
	for j := range rss {
		mat.Col(col, j, &resid)
		rss[j] = floats.Dot(col, col)
	}
	return rss, nil
}

// DefaultRtol と DefaultAtol は AllClose の既定の許容誤差
const (
	DefaultRtol = 1e-8
	DefaultAtol = 1e-8
)

// AllClose は全要素が |a - b| <= atol + rtol·|b| を満たすかどうかを返す。
// NaN を含む要素は一致しないものとして扱う。形状が異なる場合は ShapeError。
func AllClose(a, b mat.Matrix, rtol, atol float64) (bool, error) {
	if err := sameShape("AllClose", a, b); err != nil {
		return false, err
	}

	r, c := a.Dims()
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			av, bv := a.At(i, j), b.At(i, j)
			if av == bv {
				// 同符号の無限大を含む
				continue
			}
			if !(math.Abs(av-bv) <= atol+rtol*math.Abs(bv)) {
				return false, nil
			}
		}
	}
	return true, nil
}

// MaxAbsDiff は要素ごとの差の絶対値の最大値を返す。
// NaN を含む場合は NaN を返す。
func MaxAbsDiff(a, b mat.Matrix) (float64, error) {
	if err := sameShape("MaxAbsDiff", a, b); err != nil {
		return 0, err
	}

	var maxDiff float64
	r, c := a.Dims()
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			d := math.Abs(a.At(i, j) - b.At(i, j))
			if math.IsNaN(d) {
				return math.NaN(), nil
			}
			if d > maxDiff {
				maxDiff = d
			}
		}
	}
	return maxDiff, nil
}

func sameShape(op string, a, b mat.Matrix) error {
	ra, ca := a.Dims()
	rb, cb := b.Dims()
	if ra != rb || ca != cb {
		return errors.NewShapeError(op, []int{ra, ca}, []int{rb, cb}, "")
	}
	return nil
}
