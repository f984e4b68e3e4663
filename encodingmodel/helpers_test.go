package encodingmodel

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/YuminosukeSato/connectome/gifti"
	"github.com/YuminosukeSato/connectome/pkg/errors"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
}

// writeStatMap は左右半球の GIfTI を書き出し、右半球のパスを返す。left が nil なら左半球は書かない。
func writeStatMap(t *testing.T, root, subject string, key ContrastKey, run string, left, right []float64) string {
	t.Helper()
	dir := filepath.Join(root, subject, "model",
		fmt.Sprintf("model%03d", key.Task),
		fmt.Sprintf("task%03d%s333.feat", key.Task, run),
		"stats_pipeline")
	rightPath := filepath.Join(dir, fmt.Sprintf("zstat%03d.R.smoothed.func.gii", key.Contrast))

	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, gifti.WriteFile(rightPath, gifti.NewScalarImage(gifti.CortexRight, "zstat", right)))
	if left != nil {
		leftPath := filepath.Join(dir, fmt.Sprintf("zstat%03d.L.smoothed.func.gii", key.Contrast))
		require.NoError(t, gifti.WriteFile(leftPath, gifti.NewScalarImage(gifti.CortexLeft, "zstat", left)))
	}
	return rightPath
}

// captureWarnings は errors.Warn に渡された警告を記録する
func captureWarnings(t *testing.T) func() []error {
	t.Helper()
	var (
		mu       sync.Mutex
		warnings []error
	)
	errors.SetZerologWarnFunc(func(w error) {
		mu.Lock()
		defer mu.Unlock()
		warnings = append(warnings, w)
	})
	t.Cleanup(func() { errors.SetZerologWarnFunc(nil) })

	return func() []error {
		mu.Lock()
		defer mu.Unlock()
		return append([]error(nil), warnings...)
	}
}
