package errors

import (
	"bytes"
	"fmt"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewModelError(t *testing.T) {
	tests := []struct {
		name    string
		op      string
		kind    string
		err     error
		wantMsg string
	}{
		{
			name:    "with original error",
			op:      "Fit",
			kind:    "invalid input",
			err:     fmt.Errorf("test error"),
			wantMsg: "connectome: Fit: invalid input: test error",
		},
		{
			name:    "without original error",
			op:      "Predict",
			kind:    "not fitted",
			err:     nil,
			wantMsg: "connectome: Predict: not fitted",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := NewModelError(tt.op, tt.kind, tt.err)
			assert.Equal(t, tt.wantMsg, err.Error())

			// スタックトレースの存在確認
			formatted := fmt.Sprintf("%+v", err)
			assert.Contains(t, formatted, "errors_test.go")

			var modelErr *ModelError
			assert.True(t, As(err, &modelErr))
		})
	}
}

func TestNewParseError(t *testing.T) {
	tests := []struct {
		name    string
		path    string
		line    int
		column  int
		wantMsg string
	}{
		{
			name:    "full location",
			path:    "contrast_annotation.txt",
			line:    3,
			column:  2,
			wantMsg: "connectome: parse error at contrast_annotation.txt:3:2: bad cell",
		},
		{
			name:    "line only",
			path:    "contrast_annotation.txt",
			line:    1,
			wantMsg: "connectome: parse error at contrast_annotation.txt:1: bad cell",
		},
		{
			name:    "no path",
			wantMsg: "connectome: parse error at <input>: bad cell",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := NewParseError(tt.path, tt.line, tt.column, "bad cell")
			assert.Equal(t, tt.wantMsg, err.Error())

			var parseErr *ParseError
			require.True(t, As(err, &parseErr))
			assert.Equal(t, tt.line, parseErr.Line)
		})
	}
}

func TestNewIOError(t *testing.T) {
	cause := fmt.Errorf("no such file or directory")
	err := NewIOError("read", "/data/a.R.func.gii", cause)

	assert.Equal(t, "connectome: read /data/a.R.func.gii: no such file or directory", err.Error())
	assert.True(t, Is(err, cause), "IOError should unwrap to its cause")

	var ioErr *IOError
	require.True(t, As(err, &ioErr))
	assert.Equal(t, "/data/a.R.func.gii", ioErr.Path)
}

func TestNewShapeError(t *testing.T) {
	err := NewShapeError("LoadResponses", []int{32492}, []int{100}, "left hemisphere")
	assert.Equal(t,
		"connectome: LoadResponses: shape mismatch. Expected [32492], got [100] (left hemisphere)",
		err.Error())

	var shapeErr *ShapeError
	assert.True(t, As(err, &shapeErr))
}

func TestNewDimensionError(t *testing.T) {
	err := NewDimensionError("Predict", 10, 9, 0)

	want := "connectome: Predict: dimension mismatch on axis 0 (rows). Expected 10, got 9"
	assert.Equal(t, want, err.Error())

	var dimErr *DimensionError
	assert.True(t, As(err, &dimErr))
}

func TestNewNotFittedError(t *testing.T) {
	err := NewNotFittedError("Lasso", "Predict")

	want := "connectome: Lasso: this model is not fitted yet. Call Fit() before using Predict()"
	assert.Equal(t, want, err.Error())

	var notFittedErr *NotFittedError
	assert.True(t, As(err, &notFittedErr))
}

func TestNewValidationError(t *testing.T) {
	err := NewValidationError("lasso_alpha", "must be non-negative", -0.5)
	assert.Equal(t,
		"connectome: validation failed for parameter 'lasso_alpha': must be non-negative (got: -0.5)",
		err.Error())
}

func TestWarningsAsStructuredEvents(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf)

	SetZerologWarnFunc(func(w error) {
		if m, ok := w.(zerolog.LogObjectMarshaler); ok {
			logger.Warn().EmbedObject(m).Msg(w.Error())
			return
		}
		logger.Warn().Msg(w.Error())
	})
	defer SetZerologWarnFunc(nil)

	Warn(NewConvergenceWarning("Lasso", 1000, "12 of 64984 vertices"))
	Warn(NewDegeneracyWarning("ols", 3, 64984, "zero"))

	out := buf.String()
	assert.Contains(t, out, `"type":"ConvergenceWarning"`)
	assert.Contains(t, out, `"type":"DegeneracyWarning"`)
	assert.Contains(t, out, `"vertices":3`)
}

func TestWarnFallsBackToHandler(t *testing.T) {
	var got []error
	prev := warningHandler
	SetWarningHandler(func(w error) { got = append(got, w) })
	defer SetWarningHandler(prev)

	Warn(NewConvergenceWarning("Lasso", 10, ""))

	require.Len(t, got, 1)
	assert.Contains(t, got[0].Error(), "Consider increasing max_iter")
}

func TestWrapAndIs(t *testing.T) {
	wrapped := Wrap(ErrEmptyData, "in Fitter.Fit")

	assert.True(t, Is(wrapped, ErrEmptyData))
	assert.True(t, strings.Contains(wrapped.Error(), "in Fitter.Fit"))

	wrappedf := Wrapf(ErrSingularMatrix, "vertex range [%d, %d)", 0, 128)
	assert.True(t, Is(wrappedf, ErrSingularMatrix))
	assert.Contains(t, wrappedf.Error(), "vertex range [0, 128)")
}

func TestStacktrace(t *testing.T) {
	err := NewValueError("BuildDesignMatrix", "unknown contrast")
	assert.NotEmpty(t, Stacktrace(err))
	assert.Empty(t, Stacktrace(fmt.Errorf("plain")))
}

func TestCheckMatrix(t *testing.T) {
	assert.NoError(t, CheckMatrix("design", gridMatrix{{1, 2}, {3, 4}}, 2, 2))

	err := CheckMatrix("design", gridMatrix{{1, 2}, {nanValue(), 4}}, 2, 2)
	require.Error(t, err)

	var instab *NumericalInstabilityError
	require.True(t, As(err, &instab))
	assert.Equal(t, 1, instab.Iteration)
	assert.Equal(t, "design", instab.Operation)
}

func TestCheckScalar(t *testing.T) {
	assert.NoError(t, CheckScalar("alpha", 0.01, 0))
	assert.Error(t, CheckScalar("alpha", nanValue(), 0))
	assert.False(t, IsFinite(nanValue()))
	assert.True(t, IsFinite(-3))
}

type gridMatrix [][]float64

func (g gridMatrix) At(i, j int) float64 { return g[i][j] }

func nanValue() float64 {
	zero := 0.0
	return zero / zero
}
