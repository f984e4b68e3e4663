package encodingmodel

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/YuminosukeSato/connectome/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleTable = "task\tcontrast\tname\tmotor\tvisual\tverbal\n" +
	"2\t1\tobject\t0\t1\t0\n" +
	"1\t2\tnback\t1\t\t1\n" +
	"\n" +
	"1\t1\tnback\t1\tx\n"

func TestParseContrastTable(t *testing.T) {
	table, err := ParseContrastTable(strings.NewReader(sampleTable))
	require.NoError(t, err)

	assert.Equal(t, []string{"motor", "visual", "verbal"}, table.Variables)
	assert.Equal(t, 3, table.Len())
	assert.Equal(t, []ContrastKey{{1, 1}, {1, 2}, {2, 1}}, table.Keys())

	e, ok := table.Entry(ContrastKey{Task: 2, Contrast: 1})
	require.True(t, ok)
	assert.Equal(t, "object", e.TaskName)
	assert.Equal(t, []float64{0, 1, 0}, e.Codes)
	assert.Equal(t, 0, e.Defaulted())

	// 空セルは 0 として補われる
	e, _ = table.Entry(ContrastKey{Task: 1, Contrast: 2})
	assert.Equal(t, []float64{1, 0, 1}, e.Codes)
	assert.Equal(t, []CodeStatus{CodePresent, CodeDefaulted, CodePresent}, e.Status)

	// 解析できないセルと足りない列も同様
	e, _ = table.Entry(ContrastKey{Task: 1, Contrast: 1})
	assert.Equal(t, []float64{1, 0, 0}, e.Codes)
	assert.Equal(t, 2, e.Defaulted())

	assert.Equal(t, 3, table.Defaulted())
	assert.Equal(t, "defaulted", CodeDefaulted.String())

	_, ok = table.Entry(ContrastKey{Task: 9, Contrast: 9})
	assert.False(t, ok)
}

func TestParseContrastTableStrict(t *testing.T) {
	_, err := ParseContrastTable(strings.NewReader(sampleTable), WithStrictCodes(true))

	var parseErr *errors.ParseError
	require.True(t, errors.As(err, &parseErr))
	assert.Equal(t, 3, parseErr.Line)
	assert.Equal(t, 5, parseErr.Column)
	assert.Contains(t, parseErr.Reason, "visual")
}

func TestParseContrastTableErrors(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		line   int
		column int
	}{
		{"empty", "", 1, 0},
		{"too few header columns", "task\tcontrast\tname\n", 1, 0},
		{"wrong leading column", "task\tcope\tname\tmotor\n", 1, 2},
		{"empty variable name", "task\tcontrast\tname\tmotor\t \tvisual\n", 1, 5},
		{"duplicate variable name", "task\tcontrast\tname\tmotor\tvisual\tmotor\n", 1, 6},
		{"variable names collide as file names", "task\tcontrast\tname\tworking memory\tworking_memory\n", 1, 5},
		{"task not integer", "task\tcontrast\tname\tmotor\nA\t1\tx\t1\n", 2, 1},
		{"contrast not integer", "task\tcontrast\tname\tmotor\n1\t1.5\tx\t1\n", 2, 2},
		{"short row", "task\tcontrast\tname\tmotor\n1\t1\n", 2, 0},
		{"duplicate key", "task\tcontrast\tname\tmotor\n1\t1\tx\t1\n1\t1\ty\t0\n", 3, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseContrastTable(strings.NewReader(tt.input))

			var parseErr *errors.ParseError
			require.True(t, errors.As(err, &parseErr), "got %v", err)
			assert.Equal(t, tt.line, parseErr.Line)
			assert.Equal(t, tt.column, parseErr.Column)
		})
	}
}

func TestLoadContrastTable(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "contrast_annotation.txt")
	writeFile(t, path, sampleTable)

	table, err := LoadContrastTable(path)
	require.NoError(t, err)
	assert.Equal(t, 3, table.Len())

	writeFile(t, path, "task\tcontrast\n")
	_, err = LoadContrastTable(path)
	var parseErr *errors.ParseError
	require.True(t, errors.As(err, &parseErr))
	assert.Equal(t, path, parseErr.Path)

	_, err = LoadContrastTable(filepath.Join(dir, "missing.txt"))
	var ioErr *errors.IOError
	assert.True(t, errors.As(err, &ioErr))
}

func TestNewContrastTable(t *testing.T) {
	table, err := NewContrastTable([]string{"a", "b"}, map[ContrastKey]*ContrastEntry{
		{1, 1}: {Codes: []float64{1, 0}},
	})
	require.NoError(t, err)
	e, _ := table.Entry(ContrastKey{1, 1})
	assert.Equal(t, []CodeStatus{CodePresent, CodePresent}, e.Status)

	_, err = NewContrastTable([]string{"a", "b"}, map[ContrastKey]*ContrastEntry{
		{1, 1}: {Codes: []float64{1}},
	})
	var shapeErr *errors.ShapeError
	assert.True(t, errors.As(err, &shapeErr))
}
