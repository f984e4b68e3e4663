package linear

import (
	"math"

	"github.com/YuminosukeSato/connectome/core/model"
	"github.com/YuminosukeSato/connectome/pkg/errors"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// Lasso は L1 正則化付き線形回帰モデル。目的関数は
//
//	(1 / (2 n_samples)) ||y - Xw||²₂ + alpha ||w||₁
//
// で、座標降下法と双対ギャップによる収束判定で解く。
// y の各列は独立に解かれる。
type Lasso struct {
	model.BaseEstimator

	alpha        float64
	maxIter      int
	tol          float64
	fitIntercept bool

	coef        *mat.Dense // (n_features × n_targets)
	intercept   []float64
	nIter       []int
	unconverged int
	nFeatures   int
}

// NewLasso は新しいLassoモデルを作成する。
// デフォルトは alpha=1.0, max_iter=1000, tol=1e-4, 切片あり。
func NewLasso(opts ...LassoOption) *Lasso {
	l := &Lasso{
		alpha:        1.0,
		maxIter:      1000,
		tol:          1e-4,
		fitIntercept: true,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Fit はモデルを訓練データで学習させる
func (l *Lasso) Fit(X, y mat.Matrix) error {
	r, c := X.Dims()
	ry, cy := y.Dims()

	if r == 0 || c == 0 || cy == 0 {
		return errors.NewModelError("Lasso.Fit", "empty data", errors.ErrEmptyData)
	}
	if ry != r {
		return errors.NewDimensionError("Lasso.Fit", r, ry, 0)
	}
	if l.alpha < 0 || math.IsNaN(l.alpha) {
		return errors.NewValidationError("alpha", "must be non-negative", l.alpha)
	}
	if l.maxIter < 1 {
		return errors.NewValidationError("max_iter", "must be at least 1", l.maxIter)
	}

	XFit, yFit := X, y
	var xMean, yMean []float64
	if l.fitIntercept {
		xc, xm := centeredCopy(X)
		yc, ym := centeredCopy(y)
		XFit, yFit, xMean, yMean = xc, yc, xm, ym
	}

	// 列ごとのスライスにしておくと内積が連続メモリ上で計算できる
	xcols := make([][]float64, c)
	norms := make([]float64, c)
	for j := range xcols {
		xcols[j] = mat.Col(nil, j, XFit)
		norms[j] = floats.Dot(xcols[j], xcols[j])
	}

	coef := mat.NewDense(c, cy, nil)
	l.nIter = make([]int, cy)
	l.unconverged = 0

	target := make([]float64, r)
	w := make([]float64, c)
	for t := 0; t < cy; t++ {
		mat.Col(target, t, yFit)
		for j := range w {
			w[j] = 0
		}
		iters, converged := l.coordinateDescent(xcols, norms, target, w)
		l.nIter[t] = iters
		if !converged {
			l.unconverged++
		}
		coef.SetCol(t, w)
	}

	l.coef = coef
	l.nFeatures = c
	l.intercept = interceptFrom(coef, xMean, yMean, cy)
	l.SetFitted()
	return nil
}

// coordinateDescent は w をその場で更新し、反復回数と収束したかどうかを返す
func (l *Lasso) coordinateDescent(xcols [][]float64, norms, y, w []float64) (int, bool) {
	n := float64(len(y))
	l1 := l.alpha * n

	yNorm2 := floats.Dot(y, y)
	if yNorm2 == 0 {
		return 0, true
	}
	gapTol := l.tol * yNorm2

	// 残差 R = y - Xw（w は 0 から開始）
	resid := make([]float64, len(y))
	copy(resid, y)

	for iter := 0; iter < l.maxIter; iter++ {
		var wMax, dwMax float64
		for j, xj := range xcols {
			if norms[j] == 0 {
				continue
			}
			wj := w[j]
			if wj != 0 {
				floats.AddScaled(resid, wj, xj)
			}

			rho := floats.Dot(xj, resid)
			w[j] = softThreshold(rho, l1) / norms[j]

			if w[j] != 0 {
				floats.AddScaled(resid, -w[j], xj)
			}

			dwMax = math.Max(dwMax, math.Abs(w[j]-wj))
			wMax = math.Max(wMax, math.Abs(w[j]))
		}

		if wMax == 0 || dwMax/wMax < l.tol || iter == l.maxIter-1 {
			if dualityGap(xcols, resid, y, w, l1) <= gapTol {
				return iter + 1, true
			}
		}
	}
	return l.maxIter, false
}

// dualityGap は現在の解の双対ギャップを計算する
func dualityGap(xcols [][]float64, resid, y, w []float64, l1 float64) float64 {
	var dualNorm float64
	for _, xj := range xcols {
		dualNorm = math.Max(dualNorm, math.Abs(floats.Dot(xj, resid)))
	}

	rNorm2 := floats.Dot(resid, resid)
	scale := 1.0
	gap := rNorm2
	if dualNorm > l1 {
		scale = l1 / dualNorm
		gap = 0.5 * (rNorm2 + rNorm2*scale*scale)
	}

	var wL1 float64
	for _, v := range w {
		wL1 += math.Abs(v)
	}
	return gap + l1*wL1 - scale*floats.Dot(resid, y)
}

func softThreshold(x, threshold float64) float64 {
	switch {
	case x > threshold:
		return x - threshold
	case x < -threshold:
		return x + threshold
	default:
		return 0
	}
}

// Predict は入力データに対する予測を行う
func (l *Lasso) Predict(X mat.Matrix) (mat.Matrix, error) {
	if !l.IsFitted() {
		return nil, errors.NewNotFittedError("Lasso", "Predict")
	}
	return predict(X, l.coef, l.intercept, l.nFeatures, "Lasso.Predict")
}

// Coef は学習された係数 (n_features × n_targets) を返す
func (l *Lasso) Coef() *mat.Dense {
	return l.coef
}

// Intercept は目的変数ごとの切片を返す
func (l *Lasso) Intercept() []float64 {
	return l.intercept
}

// NIter は目的変数ごとの座標降下の反復回数を返す
func (l *Lasso) NIter() []int {
	return l.nIter
}

// Unconverged は max_iter までに収束しなかった目的変数の数を返す
func (l *Lasso) Unconverged() int {
	return l.unconverged
}

// MaxIter は反復回数の上限を返す
func (l *Lasso) MaxIter() int {
	return l.maxIter
}

var _ model.LinearModel = (*Lasso)(nil)
