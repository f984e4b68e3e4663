package model

import "gonum.org/v1/gonum/mat"

// Fitter は学習可能なモデルのインターフェース。
// y は (n_samples × n_targets) の行列で、各列を独立した目的変数として扱う。
type Fitter interface {
	Fit(X, y mat.Matrix) error
}

// Predictor は予測可能なモデルのインターフェース
type Predictor interface {
	Predict(X mat.Matrix) (mat.Matrix, error)
}

// LinearModel は線形モデルのインターフェース
type LinearModel interface {
	Fitter
	Predictor
	// Coef は学習された係数 (n_features × n_targets) を返す
	Coef() *mat.Dense
	// Intercept は目的変数ごとの切片を返す
	Intercept() []float64
}
