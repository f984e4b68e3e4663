package report

import (
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/YuminosukeSato/connectome/pkg/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/plot/vg"
)

func TestWriteHistograms(t *testing.T) {
	dir := t.TempDir()
	stats := mat.NewDense(3, 6, []float64{
		0.5, -1, 2, 3.5, math.NaN(), 1,
		0, 0, 0, 0, 0, 0,
		1, 2, 3, 4, 5, math.Inf(1),
	})
	logger, _ := log.NewTestLogger(log.LevelDebug)

	paths, err := WriteHistograms(dir, "encoding_tstat", stats, []string{"motor", "flat", "visual"},
		WithBins(4), WithSize(3*vg.Inch, 2*vg.Inch), WithLogger(logger))
	require.NoError(t, err)

	assert.Equal(t, []string{
		filepath.Join(dir, "encoding_tstat_motor_hist.png"),
		filepath.Join(dir, "encoding_tstat_visual_hist.png"),
	}, paths)
	for _, p := range paths {
		info, err := os.Stat(p)
		require.NoError(t, err)
		assert.Positive(t, info.Size())
	}
	assert.True(t, logger.ContainsField(log.VariableKey, "flat"))
}

func TestWriteHistogramsLabelMismatch(t *testing.T) {
	_, err := WriteHistograms(t.TempDir(), "x", mat.NewDense(2, 2, nil), []string{"only"})
	assert.Error(t, err)
}

func TestHasSpread(t *testing.T) {
	assert.False(t, hasSpread(nil))
	assert.False(t, hasSpread([]float64{3}))
	assert.False(t, hasSpread([]float64{3, 3, 3}))
	assert.True(t, hasSpread([]float64{3, 3, 4}))
}
