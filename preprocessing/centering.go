package preprocessing

import (
	"fmt"

	"github.com/YuminosukeSato/connectome/core/model"
	"github.com/YuminosukeSato/connectome/pkg/errors"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// ColumnCenterer は各列から平均を引いて平均0に変換する（標準化なし）。
// 全要素が同一の列（定数列）は浮動小数点誤差を残さず厳密に0へ変換する。
type ColumnCenterer struct {
	model.BaseEstimator

	// Mean は各列の平均値
	Mean []float64

	// Constant は列の全要素が同一かどうか
	Constant []bool

	// NFeatures は列数
	NFeatures int
}

// NewColumnCenterer は新しいColumnCentererを作成する
//
// 使用例:
//
//	c := preprocessing.NewColumnCenterer()
//	XCentered, err := c.FitTransform(X)
func NewColumnCenterer() *ColumnCenterer {
	return &ColumnCenterer{}
}

// Fit は各列の平均値を計算する
func (c *ColumnCenterer) Fit(X mat.Matrix) error {
	r, cols := X.Dims()
	if r == 0 || cols == 0 {
		return errors.NewModelError("ColumnCenterer.Fit", "empty data", errors.ErrEmptyData)
	}

	c.NFeatures = cols
	c.Mean = make([]float64, cols)
	c.Constant = make([]bool, cols)

	col := make([]float64, r)
	for j := 0; j < cols; j++ {
		mat.Col(col, j, X)
		c.Mean[j] = stat.Mean(col, nil)
		c.Constant[j] = isConstant(col)
	}

	c.SetFitted()
	return nil
}

// Transform は学習済みの平均を使ってデータを中心化した新しい行列を返す
func (c *ColumnCenterer) Transform(X mat.Matrix) (*mat.Dense, error) {
	if !c.IsFitted() {
		return nil, errors.NewNotFittedError("ColumnCenterer", "Transform")
	}

	r, cols := X.Dims()
	if cols != c.NFeatures {
		return nil, errors.NewDimensionError("ColumnCenterer.Transform", c.NFeatures, cols, 1)
	}

	result := mat.NewDense(r, cols, nil)
	for i := 0; i < r; i++ {
		for j := 0; j < cols; j++ {
			result.Set(i, j, X.At(i, j)-c.Mean[j])
		}
	}
	for j, constant := range c.Constant {
		if constant {
			zeroColumn(result, j)
		}
	}
	return result, nil
}

// FitTransform はFitとTransformを同時に実行する
func (c *ColumnCenterer) FitTransform(X mat.Matrix) (*mat.Dense, error) {
	if err := c.Fit(X); err != nil {
		return nil, err
	}
	return c.Transform(X)
}

// String は文字列表現を返す
func (c *ColumnCenterer) String() string {
	if !c.IsFitted() {
		return "ColumnCenterer()"
	}
	return fmt.Sprintf("ColumnCenterer(n_features=%d)", c.NFeatures)
}

// CenterColumns は m の各列をその場で中心化し、引いた平均値を返す。
// 定数列は厳密に0になる。
func CenterColumns(m *mat.Dense) []float64 {
	r, cols := m.Dims()
	means := make([]float64, cols)
	if r == 0 {
		return means
	}

	col := make([]float64, r)
	for j := 0; j < cols; j++ {
		mat.Col(col, j, m)
		means[j] = stat.Mean(col, nil)
		if isConstant(col) {
			for i := range col {
				col[i] = 0
			}
		} else {
			for i := range col {
				col[i] -= means[j]
			}
		}
		m.SetCol(j, col)
	}
	return means
}

func isConstant(col []float64) bool {
	for _, v := range col[1:] {
		if v != col[0] {
			return false
		}
	}
	return true
}

func zeroColumn(m *mat.Dense, j int) {
	r, _ := m.Dims()
	for i := 0; i < r; i++ {
		m.Set(i, j, 0)
	}
}
