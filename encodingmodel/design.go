package encodingmodel

import (
	"strconv"

	"github.com/YuminosukeSato/connectome/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// BuildDesignMatrix stacks the code vector of each observation's contrast
// into an (observations × variables) matrix. Row i belongs to obs[i].
// The matrix is not centered; the Fitter centers a copy.
func BuildDesignMatrix(table *ContrastTable, obs []Observation) (*mat.Dense, error) {
	if len(obs) == 0 {
		return nil, errors.NewValueError("BuildDesignMatrix", "no observations")
	}
	if len(table.Variables) == 0 {
		return nil, errors.NewValueError("BuildDesignMatrix", "table has no variables")
	}

	design := mat.NewDense(len(obs), len(table.Variables), nil)
	for i, o := range obs {
		entry, ok := table.Entry(o.Key)
		if !ok {
			return nil, errors.NewValueError("BuildDesignMatrix",
				"no codes for task "+strconv.Itoa(o.Key.Task)+" contrast "+strconv.Itoa(o.Key.Contrast))
		}
		design.SetRow(i, entry.Codes)
	}
	return design, nil
}
