package encodingmodel

import (
	"github.com/YuminosukeSato/connectome/core/parallel"
	"github.com/YuminosukeSato/connectome/gifti"
	"github.com/YuminosukeSato/connectome/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// LoadResponses reads every observation's hemisphere pair into one row
// [left | right] of a (len(obs) × 2·verticesPerHemisphere) matrix.
// Files are read by up to workers goroutines, each filling its own rows.
//
// A missing or unreadable file is an IOError; a hemisphere whose first
// data array does not hold exactly verticesPerHemisphere values is a
// ShapeError.
func LoadResponses(obs []Observation, verticesPerHemisphere, workers int) (*mat.Dense, error) {
	if len(obs) == 0 {
		return nil, errors.NewValueError("LoadResponses", "no observations")
	}
	if verticesPerHemisphere <= 0 {
		return nil, errors.NewValidationError("vertices_per_hemisphere", "must be positive", verticesPerHemisphere)
	}

	responses := mat.NewDense(len(obs), 2*verticesPerHemisphere, nil)
	err := parallel.ParallelizeErr(len(obs), workers, func(start, end int) error {
		for i := start; i < end; i++ {
			left, err := readHemisphere(obs[i].LeftPath, verticesPerHemisphere)
			if err != nil {
				return err
			}
			right, err := readHemisphere(obs[i].RightPath, verticesPerHemisphere)
			if err != nil {
				return err
			}

			row := responses.RawRowView(i)
			copy(row[:verticesPerHemisphere], left)
			copy(row[verticesPerHemisphere:], right)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return responses, nil
}

func readHemisphere(path string, vertices int) ([]float64, error) {
	img, err := gifti.ReadFile(path)
	if err != nil {
		var parseErr *errors.ParseError
		if errors.As(err, &parseErr) {
			// 壊れたファイルも読めないファイルとして扱う
			return nil, errors.NewIOError("decode", path, err)
		}
		return nil, err
	}
	if len(img.Arrays) == 0 {
		return nil, errors.NewShapeError("LoadResponses", []int{vertices}, []int{0}, path+": no data arrays")
	}
	data := img.Arrays[0].Data
	if len(data) != vertices {
		return nil, errors.NewShapeError("LoadResponses", []int{vertices}, []int{len(data)}, path)
	}
	return data, nil
}
