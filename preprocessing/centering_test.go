package preprocessing

import (
	"math"
	"testing"

	"github.com/YuminosukeSato/connectome/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

func TestColumnCenterer_FitTransform(t *testing.T) {
	X := mat.NewDense(4, 2, []float64{
		1, 10,
		2, 20,
		3, 30,
		4, 40,
	})

	c := NewColumnCenterer()
	Xc, err := c.FitTransform(X)
	require.NoError(t, err)

	assert.InDeltaSlice(t, []float64{2.5, 25}, c.Mean, 1e-12)
	assert.Equal(t, []float64{-1.5, -0.5, 0.5, 1.5}, mat.Col(nil, 0, Xc))
	assert.Equal(t, []float64{-15, -5, 5, 15}, mat.Col(nil, 1, Xc))

	// 入力は変更されない
	assert.Equal(t, 1.0, X.At(0, 0))
}

func TestColumnCenterer_Errors(t *testing.T) {
	c := NewColumnCenterer()

	_, err := c.Transform(mat.NewDense(1, 1, nil))
	var notFitted *errors.NotFittedError
	assert.True(t, errors.As(err, &notFitted))

	require.NoError(t, c.Fit(mat.NewDense(2, 2, []float64{1, 2, 3, 4})))
	_, err = c.Transform(mat.NewDense(2, 3, nil))
	var dimErr *errors.DimensionError
	assert.True(t, errors.As(err, &dimErr))

	assert.Equal(t, "ColumnCenterer(n_features=2)", c.String())
}

func TestCenterColumns_Idempotent(t *testing.T) {
	data := []float64{
		0.3, -7.1, 12.5,
		1.7, 2.2, 13.5,
		-4.4, 0.9, 11.0,
		2.9, 5.5, 10.25,
		0.1, -1.3, 12.0,
	}
	m := mat.NewDense(5, 3, data)

	CenterColumns(m)
	once := mat.DenseCopyOf(m)
	CenterColumns(m)

	assert.True(t, mat.EqualApprox(once, m, 1e-12), "centering twice must not change the matrix")
	for j := 0; j < 3; j++ {
		assert.InDelta(t, 0, stat.Mean(mat.Col(nil, j, m), nil), 1e-12)
	}
}

func TestCenterColumns_ConstantColumnIsExactlyZero(t *testing.T) {
	// 0.1 の平均は浮動小数点では厳密に 0.1 にならないことがある
	m := mat.NewDense(10, 2, nil)
	for i := 0; i < 10; i++ {
		m.Set(i, 0, 0.1)
		m.Set(i, 1, float64(i))
	}

	means := CenterColumns(m)

	assert.InDelta(t, 0.1, means[0], 1e-15)
	for i := 0; i < 10; i++ {
		assert.Equal(t, 0.0, m.At(i, 0))
	}
	assert.InDelta(t, 0, floats.Sum(mat.Col(nil, 1, m)), 1e-12)
}

func TestCenterColumns_NaNPropagates(t *testing.T) {
	m := mat.NewDense(3, 1, []float64{1, math.NaN(), 3})
	CenterColumns(m)
	assert.True(t, math.IsNaN(m.At(0, 0)))
}
