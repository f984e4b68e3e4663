package encodingmodel

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/YuminosukeSato/connectome/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func threeContrastTable(t *testing.T) *ContrastTable {
	t.Helper()
	table, err := ParseContrastTable(strings.NewReader(
		"task\tcontrast\tname\tmotor\tvisual\n" +
			"1\t1\tnback\t1\t0\n" +
			"1\t2\tnback\t0\t1\n" +
			"3\t1\tfaces\t1\t1\n"))
	require.NoError(t, err)
	return table
}

func TestStatMapPatternAndLeftPath(t *testing.T) {
	pattern := StatMapPattern("sub*/model", ContrastKey{Task: 4, Contrast: 12})
	assert.Equal(t, filepath.Join("sub*/model", "model004", "task004*333.feat", "stats_pipeline", "zstat012.R.smoothed.func.gii"), pattern)

	assert.Equal(t,
		filepath.Join("/data", "sub.R.01", "zstat001.L.smoothed.func.gii"),
		LeftHemispherePath(filepath.Join("/data", "sub.R.01", "zstat001.R.smoothed.func.gii")))
}

func TestDiscoverObservations(t *testing.T) {
	root := t.TempDir()
	table := threeContrastTable(t)
	v := []float64{0, 0}

	writeStatMap(t, root, "sub02", ContrastKey{1, 1}, "_run1_", v, v)
	writeStatMap(t, root, "sub01", ContrastKey{1, 1}, "_run1_", v, v)
	writeStatMap(t, root, "sub01", ContrastKey{3, 1}, "_", v, v)
	// テーブルにない contrast は無視される
	writeStatMap(t, root, "sub01", ContrastKey{2, 1}, "_", v, v)
	// subject パターンに合わないディレクトリも無視される
	writeStatMap(t, root, "pilot01", ContrastKey{1, 2}, "_", v, v)

	obs, err := DiscoverObservations(root, "sub*/model", table)
	require.NoError(t, err)
	require.Len(t, obs, 3)

	assert.Equal(t, ContrastKey{1, 1}, obs[0].Key)
	assert.Contains(t, obs[0].RightPath, "sub01")
	assert.Equal(t, ContrastKey{1, 1}, obs[1].Key)
	assert.Contains(t, obs[1].RightPath, "sub02")
	assert.Equal(t, ContrastKey{3, 1}, obs[2].Key)

	for _, o := range obs {
		assert.FileExists(t, o.RightPath)
		assert.FileExists(t, o.LeftPath)
		assert.True(t, strings.HasSuffix(o.LeftPath, ".L.smoothed.func.gii"))
	}

	// 該当ファイルがなくてもエラーではない
	obs, err = DiscoverObservations(t.TempDir(), "sub*/model", table)
	require.NoError(t, err)
	assert.Empty(t, obs)
}

func TestLoadResponses(t *testing.T) {
	root := t.TempDir()
	table := threeContrastTable(t)

	writeStatMap(t, root, "sub01", ContrastKey{1, 1}, "_", []float64{1, 2, 3}, []float64{4, 5, 6})
	writeStatMap(t, root, "sub01", ContrastKey{1, 2}, "_", []float64{-1, -2, -3}, []float64{0.5, 0.25, 0})
	writeStatMap(t, root, "sub01", ContrastKey{3, 1}, "_", []float64{7, 8, 9}, []float64{10, 11, 12})

	obs, err := DiscoverObservations(root, "sub*/model", table)
	require.NoError(t, err)

	for _, workers := range []int{1, 2, 8} {
		responses, err := LoadResponses(obs, 3, workers)
		require.NoError(t, err)

		want := mat.NewDense(3, 6, []float64{
			1, 2, 3, 4, 5, 6,
			-1, -2, -3, 0.5, 0.25, 0,
			7, 8, 9, 10, 11, 12,
		})
		assert.True(t, mat.Equal(want, responses), "workers=%d", workers)
	}
}

func TestLoadResponsesErrors(t *testing.T) {
	root := t.TempDir()
	table := threeContrastTable(t)

	t.Run("missing left hemisphere", func(t *testing.T) {
		right := writeStatMap(t, root, "sub01", ContrastKey{1, 1}, "_", nil, []float64{1, 2})
		_, err := LoadResponses([]Observation{{Key: ContrastKey{1, 1}, RightPath: right, LeftPath: LeftHemispherePath(right)}}, 2, 1)

		var ioErr *errors.IOError
		require.True(t, errors.As(err, &ioErr), "got %v", err)
		assert.Equal(t, LeftHemispherePath(right), ioErr.Path)
	})

	t.Run("vertex count mismatch", func(t *testing.T) {
		writeStatMap(t, root, "sub02", ContrastKey{1, 2}, "_", []float64{1, 2}, []float64{1, 2, 3})
		obs, err := DiscoverObservations(root, "sub02/model", table)
		require.NoError(t, err)

		_, err = LoadResponses(obs, 2, 1)
		var shapeErr *errors.ShapeError
		require.True(t, errors.As(err, &shapeErr), "got %v", err)
		assert.Equal(t, []int{2}, shapeErr.Expected)
		assert.Equal(t, []int{3}, shapeErr.Got)
	})

	t.Run("corrupt file", func(t *testing.T) {
		right := writeStatMap(t, root, "sub03", ContrastKey{3, 1}, "_", []float64{1}, []float64{1})
		require.NoError(t, os.WriteFile(right, []byte("<GIFTI>"), 0o600))

		_, err := LoadResponses([]Observation{{RightPath: right, LeftPath: LeftHemispherePath(right)}}, 1, 1)
		var ioErr *errors.IOError
		assert.True(t, errors.As(err, &ioErr), "got %v", err)
	})

	t.Run("no observations", func(t *testing.T) {
		_, err := LoadResponses(nil, 2, 1)
		assert.Error(t, err)
	})
}

func TestBuildDesignMatrix(t *testing.T) {
	table := threeContrastTable(t)
	obs := []Observation{
		{Key: ContrastKey{3, 1}},
		{Key: ContrastKey{1, 1}},
		{Key: ContrastKey{3, 1}},
		{Key: ContrastKey{1, 2}},
	}

	design, err := BuildDesignMatrix(table, obs)
	require.NoError(t, err)

	r, c := design.Dims()
	assert.Equal(t, 4, r)
	assert.Equal(t, 2, c)
	for i, o := range obs {
		entry, _ := table.Entry(o.Key)
		assert.Equal(t, entry.Codes, mat.Row(nil, i, design), "row %d", i)
	}

	_, err = BuildDesignMatrix(table, []Observation{{Key: ContrastKey{9, 9}}})
	var valueErr *errors.ValueError
	assert.True(t, errors.As(err, &valueErr))

	_, err = BuildDesignMatrix(table, nil)
	assert.Error(t, err)
}
