package encodingmodel

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"unicode"

	"github.com/YuminosukeSato/connectome/gifti"
	"github.com/YuminosukeSato/connectome/npy"
	"github.com/YuminosukeSato/connectome/pkg/errors"
	"github.com/YuminosukeSato/connectome/pkg/log"
	"github.com/c2h5oh/datasize"
	"gonum.org/v1/gonum/mat"
)

// OutputDir は出力ルート直下の結果ディレクトリ名
const OutputDir = "task"

// ResultBaseName returns the file name stem of a model's outputs:
// "encoding_tstat" for OLS and "encoding_tstat_lasso" for Lasso.
func ResultBaseName(m Model) string {
	if m == ModelLasso {
		return "encoding_tstat_lasso"
	}
	return "encoding_tstat"
}

// SanitizeLabel makes a variable name safe to embed in a file name.
func SanitizeLabel(label string) string {
	return strings.Map(func(r rune) rune {
		if r == '/' || r == '\\' || unicode.IsSpace(r) {
			return '_'
		}
		return r
	}, strings.TrimSpace(label))
}

// PersistSummary lists what WriteResults produced.
type PersistSummary struct {
	Files []string
	Bytes int64
}

// WriteResults writes, under outputRoot/task:
//
//	encoding_tstat.npy, encoding_tstat_lasso.npy          (variables × vertices, float64)
//	encoding_tstat[_lasso]_{label}.{L,R}.func.gii         (one pair per variable)
//
// Shapes and label uniqueness (after SanitizeLabel) are checked before
// anything is written.
func WriteResults(outputRoot string, result *FitResult, labels []string, verticesPerHemisphere int) (*PersistSummary, error) {
	for _, m := range Models {
		stats := result.Stats(m)
		if stats == nil {
			return nil, errors.NewValueError("WriteResults", "missing "+string(m)+" statistics")
		}
		r, c := stats.Dims()
		if r != len(labels) || c != 2*verticesPerHemisphere {
			return nil, errors.NewShapeError("WriteResults",
				[]int{len(labels), 2 * verticesPerHemisphere}, []int{r, c}, string(m)+" statistics")
		}
	}

	stems := make(map[string]string, len(labels))
	for _, label := range labels {
		stem := SanitizeLabel(label)
		if prev, ok := stems[stem]; ok {
			return nil, errors.NewValueError("WriteResults",
				"labels "+strconv.Quote(prev)+" and "+strconv.Quote(label)+" share the output file name "+strconv.Quote(stem))
		}
		stems[stem] = label
	}

	dir := filepath.Join(outputRoot, OutputDir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.NewIOError("mkdir", dir, err)
	}

	logger := log.GetLogger().With(log.ComponentKey, "encodingmodel", log.OperationKey, log.OperationPersist)
	summary := &PersistSummary{}
	record := func(path string) error {
		info, err := os.Stat(path)
		if err != nil {
			return errors.NewIOError("stat", path, err)
		}
		summary.Files = append(summary.Files, path)
		summary.Bytes += info.Size()
		return nil
	}

	for _, m := range Models {
		stats := result.Stats(m)
		base := ResultBaseName(m)

		path := filepath.Join(dir, base+".npy")
		if err := npy.WriteFile(path, stats); err != nil {
			return nil, err
		}
		if err := record(path); err != nil {
			return nil, err
		}

		for v, label := range labels {
			paths, err := writeSurfacePair(dir, base, label, stats, v, verticesPerHemisphere)
			if err != nil {
				return nil, err
			}
			for _, p := range paths {
				if err := record(p); err != nil {
					return nil, err
				}
			}
		}
		logger.Debug("wrote statistic maps", log.ModelNameKey, string(m), log.PathKey, path)
	}

	logger.Info("results written",
		log.PathKey, dir,
		"files", len(summary.Files),
		log.DataSizeKey, datasize.ByteSize(summary.Bytes).HumanReadable(),
	)
	return summary, nil
}

// writeSurfacePair は統計量の1行を左右半球の GIfTI に分けて書き出す
func writeSurfacePair(dir, base, label string, stats *mat.Dense, variable, verticesPerHemisphere int) ([]string, error) {
	row := mat.Row(nil, variable, stats)
	stem := filepath.Join(dir, base+"_"+SanitizeLabel(label))

	halves := []struct {
		suffix    string
		structure gifti.Structure
		values    []float64
	}{
		{".L.func.gii", gifti.CortexLeft, row[:verticesPerHemisphere]},
		{".R.func.gii", gifti.CortexRight, row[verticesPerHemisphere:]},
	}

	paths := make([]string, 0, len(halves))
	for _, h := range halves {
		path := stem + h.suffix
		if err := gifti.WriteFile(path, gifti.NewScalarImage(h.structure, label, h.values)); err != nil {
			return nil, err
		}
		paths = append(paths, path)
	}
	return paths, nil
}
