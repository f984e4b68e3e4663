package linear

import (
	"math"

	"github.com/YuminosukeSato/connectome/core/model"
	"github.com/YuminosukeSato/connectome/pkg/errors"
	"github.com/YuminosukeSato/connectome/preprocessing"
	"gonum.org/v1/gonum/mat"
)

// LinearRegression は通常の最小二乗法による線形回帰モデル。
// 複数の目的変数（y の各列）を同じ計画行列に対して一度に解く。
type LinearRegression struct {
	model.BaseEstimator

	fitIntercept bool
	rcond        float64

	coef      *mat.Dense // (n_features × n_targets)
	intercept []float64  // 目的変数ごとの切片
	singular  []float64  // X の特異値
	rank      int        // X の実効ランク
	nFeatures int
}

// NewLinearRegression は新しい線形回帰モデルを作成する
//
// 使用例:
//
//	lr := linear.NewLinearRegression(linear.WithFitIntercept(false))
//	err := lr.Fit(X, Y)
func NewLinearRegression(opts ...Option) *LinearRegression {
	lr := &LinearRegression{fitIntercept: true}
	for _, opt := range opts {
		opt(lr)
	}
	return lr
}

// Fit はモデルを訓練データで学習させる。
// 特異値分解による最小ノルム最小二乗解 w = X⁺ y を求めるため、
// ランク落ちした計画行列でも解が一意に定まる。
func (lr *LinearRegression) Fit(X, y mat.Matrix) error {
	r, c := X.Dims()
	ry, cy := y.Dims()

	if r == 0 || c == 0 || cy == 0 {
		return errors.NewModelError("LinearRegression.Fit", "empty data", errors.ErrEmptyData)
	}
	if ry != r {
		return errors.NewDimensionError("LinearRegression.Fit", r, ry, 0)
	}

	XFit, yFit := X, y
	var xMean, yMean []float64
	if lr.fitIntercept {
		xc, xm := centeredCopy(X)
		yc, ym := centeredCopy(y)
		XFit, yFit, xMean, yMean = xc, yc, xm, ym
	}

	var svd mat.SVD
	if ok := svd.Factorize(XFit, mat.SVDThin); !ok {
		return errors.NewModelError("LinearRegression.Fit", "SVD factorization failed", errors.ErrSingularMatrix)
	}
	lr.singular = svd.Values(nil)

	rcond := lr.rcond
	if rcond <= 0 {
		rcond = machineEpsilon * float64(max(r, c))
	}
	lr.rank = svd.Rank(rcond)

	coef := mat.NewDense(c, cy, nil)
	if lr.rank > 0 {
		var sol mat.Dense
		svd.SolveTo(&sol, yFit, lr.rank)
		coef.Copy(&sol)
	}

	lr.coef = coef
	lr.nFeatures = c
	lr.intercept = interceptFrom(coef, xMean, yMean, cy)
	lr.SetFitted()
	return nil
}

// Predict は入力データに対する予測 X·coef + intercept を返す
func (lr *LinearRegression) Predict(X mat.Matrix) (mat.Matrix, error) {
	if !lr.IsFitted() {
		return nil, errors.NewNotFittedError("LinearRegression", "Predict")
	}
	return predict(X, lr.coef, lr.intercept, lr.nFeatures, "LinearRegression.Predict")
}

// Coef は学習された係数 (n_features × n_targets) を返す
func (lr *LinearRegression) Coef() *mat.Dense {
	return lr.coef
}

// Intercept は目的変数ごとの切片を返す
func (lr *LinearRegression) Intercept() []float64 {
	return lr.intercept
}

// Rank は計画行列の実効ランクを返す
func (lr *LinearRegression) Rank() int {
	return lr.rank
}

// SingularValues は計画行列の特異値を返す
func (lr *LinearRegression) SingularValues() []float64 {
	return lr.singular
}

var machineEpsilon = math.Nextafter(1, 2) - 1

func centeredCopy(m mat.Matrix) (*mat.Dense, []float64) {
	c := mat.DenseCopyOf(m)
	means := preprocessing.CenterColumns(c)
	return c, means
}

// interceptFrom は中心化したデータで得た係数から切片 ȳ - x̄·w を計算する
func interceptFrom(coef *mat.Dense, xMean, yMean []float64, targets int) []float64 {
	intercept := make([]float64, targets)
	if xMean == nil {
		return intercept
	}
	for t := 0; t < targets; t++ {
		b := yMean[t]
		for j, xm := range xMean {
			b -= xm * coef.At(j, t)
		}
		intercept[t] = b
	}
	return intercept
}

func predict(X mat.Matrix, coef *mat.Dense, intercept []float64, nFeatures int, op string) (mat.Matrix, error) {
	r, c := X.Dims()
	if c != nFeatures {
		return nil, errors.NewDimensionError(op, nFeatures, c, 1)
	}

	var pred mat.Dense
	pred.Mul(X, coef)
	for i := 0; i < r; i++ {
		for t, b := range intercept {
			if b != 0 {
				pred.Set(i, t, pred.At(i, t)+b)
			}
		}
	}
	return &pred, nil
}

var _ model.LinearModel = (*LinearRegression)(nil)
