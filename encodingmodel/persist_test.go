package encodingmodel

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/YuminosukeSato/connectome/gifti"
	"github.com/YuminosukeSato/connectome/npy"
	"github.com/YuminosukeSato/connectome/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func TestWriteResults(t *testing.T) {
	root := t.TempDir()
	result := &FitResult{
		OLS: mat.NewDense(2, 6, []float64{
			1, 2, 3, 4, 5, 6,
			-1, -2, -3, -4, -5, -6,
		}),
		Lasso: mat.NewDense(2, 6, []float64{
			0.5, 0, 0, 0, 0, 0.25,
			0, 0, 0, 0, 0, 0,
		}),
	}
	labels := []string{"motor", "visual task"}

	summary, err := WriteResults(root, result, labels, 3)
	require.NoError(t, err)
	assert.Len(t, summary.Files, 2+2*2*2)
	assert.Positive(t, summary.Bytes)

	dir := filepath.Join(root, "task")
	for _, m := range Models {
		got, err := npy.ReadFile(filepath.Join(dir, ResultBaseName(m)+".npy"))
		require.NoError(t, err)
		assert.True(t, mat.Equal(result.Stats(m), got), string(m))
	}

	left, err := gifti.ReadFile(filepath.Join(dir, "encoding_tstat_visual_task.L.func.gii"))
	require.NoError(t, err)
	assert.Equal(t, []float64{-1, -2, -3}, left.Arrays[0].Data)
	assert.Equal(t, "visual task", left.Arrays[0].Name())
	assert.Equal(t, gifti.CortexLeft, left.Structure())

	right, err := gifti.ReadFile(filepath.Join(dir, "encoding_tstat_lasso_motor.R.func.gii"))
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 0, 0.25}, right.Arrays[0].Data)
	assert.Equal(t, gifti.CortexRight, right.Structure())
}

func TestWriteResultsShapeMismatch(t *testing.T) {
	root := t.TempDir()
	result := &FitResult{OLS: mat.NewDense(2, 6, nil), Lasso: mat.NewDense(2, 6, nil)}

	_, err := WriteResults(root, result, []string{"only"}, 3)
	var shapeErr *errors.ShapeError
	require.True(t, errors.As(err, &shapeErr))

	_, err = WriteResults(root, result, []string{"a", "b"}, 4)
	require.True(t, errors.As(err, &shapeErr))

	// 何も書き出されていない
	_, err = os.Stat(filepath.Join(root, "task"))
	assert.True(t, os.IsNotExist(err))
}

func TestWriteResultsLabelCollision(t *testing.T) {
	tests := []struct {
		name   string
		labels []string
	}{
		{"same label", []string{"motor", "motor"}},
		{"same file name", []string{"a b", "a_b"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			root := t.TempDir()
			result := &FitResult{OLS: mat.NewDense(2, 4, nil), Lasso: mat.NewDense(2, 4, nil)}

			_, err := WriteResults(root, result, tt.labels, 2)
			var valueErr *errors.ValueError
			require.True(t, errors.As(err, &valueErr), "got %v", err)

			_, err = os.Stat(filepath.Join(root, "task"))
			assert.True(t, os.IsNotExist(err))
		})
	}
}

func TestSanitizeLabel(t *testing.T) {
	assert.Equal(t, "working_memory", SanitizeLabel(" working memory "))
	assert.Equal(t, "a_b_c", SanitizeLabel("a/b\\c"))
	assert.Equal(t, "encoding_tstat", ResultBaseName(ModelOLS))
	assert.Equal(t, "encoding_tstat_lasso", ResultBaseName(ModelLasso))
}
