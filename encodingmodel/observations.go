package encodingmodel

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/YuminosukeSato/connectome/pkg/errors"
)

// Observation is one subject statistic map: a right/left hemisphere file
// pair and the contrast it belongs to.
type Observation struct {
	Key       ContrastKey
	RightPath string
	LeftPath  string
}

// StatMapPattern returns the glob, relative to the data root, matching the
// right-hemisphere statistic maps of one contrast.
func StatMapPattern(subjectGlob string, key ContrastKey) string {
	return filepath.Join(
		subjectGlob,
		fmt.Sprintf("model%03d", key.Task),
		fmt.Sprintf("task%03d*333.feat", key.Task),
		"stats_pipeline",
		fmt.Sprintf("zstat%03d.R.smoothed.func.gii", key.Contrast),
	)
}

// LeftHemispherePath derives the left-hemisphere file from a right one by
// replacing ".R." with ".L." in the file name. Directories are untouched.
func LeftHemispherePath(rightPath string) string {
	dir, base := filepath.Split(rightPath)
	return dir + strings.ReplaceAll(base, ".R.", ".L.")
}

// DiscoverObservations globs the data tree for every key of the table.
// Keys are visited in sorted order and matches are sorted lexically, so
// the result is deterministic for a given tree. A key without matches
// contributes nothing.
func DiscoverObservations(dataRoot, subjectGlob string, table *ContrastTable) ([]Observation, error) {
	var obs []Observation
	for _, key := range table.Keys() {
		pattern := filepath.Join(dataRoot, StatMapPattern(subjectGlob, key))
		matches, err := filepath.Glob(pattern)
		if err != nil {
			return nil, errors.NewValidationError("subject_glob", err.Error(), subjectGlob)
		}
		sort.Strings(matches)

		for _, m := range matches {
			obs = append(obs, Observation{
				Key:       key,
				RightPath: m,
				LeftPath:  LeftHemispherePath(m),
			})
		}
	}
	return obs, nil
}
