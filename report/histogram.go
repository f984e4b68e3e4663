// Package report renders diagnostic plots of fitted statistic maps.
package report

import (
	"path/filepath"

	"github.com/YuminosukeSato/connectome/pkg/errors"
	"github.com/YuminosukeSato/connectome/pkg/log"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

// HistogramOption configures WriteHistograms.
type HistogramOption func(*histogramConfig)

type histogramConfig struct {
	bins   int
	width  vg.Length
	height vg.Length
	logger log.Logger
}

// WithBins sets the number of histogram bins (default 50).
func WithBins(n int) HistogramOption {
	return func(c *histogramConfig) {
		if n > 0 {
			c.bins = n
		}
	}
}

// WithSize sets the image size.
func WithSize(width, height vg.Length) HistogramOption {
	return func(c *histogramConfig) {
		c.width = width
		c.height = height
	}
}

// WithLogger sets the logger.
func WithLogger(l log.Logger) HistogramOption {
	return func(c *histogramConfig) {
		c.logger = l
	}
}

// WriteHistograms writes one PNG per row of stats (one row per variable)
// to dir/{prefix}_{label}_hist.png and returns the written paths.
// Non-finite values are left out. A row with fewer than two distinct
// finite values has no meaningful histogram and is skipped.
func WriteHistograms(dir, prefix string, stats mat.Matrix, labels []string, opts ...HistogramOption) ([]string, error) {
	cfg := &histogramConfig{
		bins:   50,
		width:  6 * vg.Inch,
		height: 4 * vg.Inch,
	}
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.logger == nil {
		cfg.logger = log.GetLogger().With(log.ComponentKey, "report")
	}
	logger := cfg.logger.With(log.OperationKey, log.OperationReport)

	rows, _ := stats.Dims()
	if rows != len(labels) {
		return nil, errors.NewDimensionError("WriteHistograms", rows, len(labels), 0)
	}

	var paths []string
	for i, label := range labels {
		values := finiteRow(stats, i)
		if !hasSpread(values) {
			logger.Debug("skipping histogram without spread", log.VariableKey, label)
			continue
		}

		p := plot.New()
		p.Title.Text = prefix + ": " + label
		p.X.Label.Text = "statistic"
		p.Y.Label.Text = "vertices"

		h, err := plotter.NewHist(values, cfg.bins)
		if err != nil {
			return nil, errors.Wrapf(err, "histogram for %s", label)
		}
		p.Add(h)

		path := filepath.Join(dir, prefix+"_"+label+"_hist.png")
		if err := p.Save(cfg.width, cfg.height, path); err != nil {
			return nil, errors.NewIOError("save", path, err)
		}
		paths = append(paths, path)
	}

	logger.Info("histograms written", log.PathKey, dir, "files", len(paths))
	return paths, nil
}

func finiteRow(m mat.Matrix, i int) plotter.Values {
	_, c := m.Dims()
	values := make(plotter.Values, 0, c)
	for j := 0; j < c; j++ {
		if v := m.At(i, j); errors.IsFinite(v) {
			values = append(values, v)
		}
	}
	return values
}

func hasSpread(values []float64) bool {
	for _, v := range values[min(1, len(values)):] {
		if v != values[0] {
			return true
		}
	}
	return false
}
