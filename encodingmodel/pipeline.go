package encodingmodel

import (
	"context"
	"path/filepath"
	"time"

	"github.com/YuminosukeSato/connectome/config"
	"github.com/YuminosukeSato/connectome/pkg/errors"
	"github.com/YuminosukeSato/connectome/pkg/log"
	"github.com/YuminosukeSato/connectome/report"
)

// Peak is the strongest vertex of one variable's statistic map.
type Peak struct {
	Variable string
	Vertex   int
	Stat     float64
}

// RunSummary describes a completed pipeline run.
type RunSummary struct {
	Observations     int
	Variables        []string
	Vertices         int
	DegreesOfFreedom int
	DefaultedCodes   int
	Degenerate       map[Model]int
	Unconverged      int
	Peaks            map[Model][]Peak
	Outputs          []string
	BytesWritten     int64
	Duration         time.Duration
}

// Pipeline runs load → discover → build → fit → persist for one config.
type Pipeline struct {
	cfg    config.Config
	logger log.Logger
}

// NewPipeline returns a pipeline for cfg. A nil logger uses log.GetLogger.
func NewPipeline(cfg config.Config, logger log.Logger) *Pipeline {
	if logger == nil {
		logger = log.GetLogger()
	}
	return &Pipeline{cfg: cfg, logger: logger.With(log.ComponentKey, "encodingmodel")}
}

// Run executes the pipeline. Parse, IO and shape errors abort the run
// before any output file is written.
func (p *Pipeline) Run(ctx context.Context) (*RunSummary, error) {
	started := time.Now()
	cfg := p.cfg
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	policy, err := ParseDegeneracyPolicy(cfg.Degeneracy)
	if err != nil {
		return nil, err
	}

	table, err := LoadContrastTable(cfg.ContrastTable, WithStrictCodes(cfg.StrictCodes))
	if err != nil {
		return nil, err
	}
	if d := table.Defaulted(); d > 0 {
		p.logger.Warn("contrast codes defaulted to 0", log.PathKey, cfg.ContrastTable, "cells", d)
	}

	obs, err := DiscoverObservations(cfg.DataRoot, cfg.SubjectGlob, table)
	if err != nil {
		return nil, err
	}
	p.logger.Info("observations discovered",
		log.OperationKey, log.OperationDiscover,
		log.PathKey, cfg.DataRoot,
		log.SamplesKey, len(obs),
		"contrasts", table.Len(),
	)
	if len(obs) == 0 {
		return nil, errors.NewValueError("Pipeline.Run", "no statistic maps found under "+cfg.DataRoot)
	}

	loadStarted := time.Now()
	responses, err := LoadResponses(obs, cfg.VerticesPerHemisphere, cfg.Workers)
	if err != nil {
		return nil, err
	}
	p.logger.Info("responses loaded",
		log.OperationKey, log.OperationLoad,
		log.SamplesKey, len(obs),
		log.VerticesKey, cfg.VertexCount(),
		log.DurationMsKey, time.Since(loadStarted).Milliseconds(),
	)

	design, err := BuildDesignMatrix(table, obs)
	if err != nil {
		return nil, err
	}

	fitter := NewFitter(
		WithLassoAlpha(cfg.LassoAlpha),
		WithLassoMaxIter(cfg.LassoMaxIter),
		WithLassoTol(cfg.LassoTol),
		WithWorkers(cfg.Workers),
		WithDegeneracyPolicy(policy),
		WithLogger(p.logger),
	)
	result, err := fitter.Fit(ctx, design, responses)
	if err != nil {
		return nil, err
	}

	persisted, err := WriteResults(cfg.OutputRoot, result, table.Variables, cfg.VerticesPerHemisphere)
	if err != nil {
		return nil, err
	}

	summary := &RunSummary{
		Observations:     len(obs),
		Variables:        table.Variables,
		Vertices:         cfg.VertexCount(),
		DegreesOfFreedom: result.DegreesOfFreedom,
		DefaultedCodes:   table.Defaulted(),
		Degenerate:       result.Degenerate,
		Unconverged:      result.Unconverged,
		Peaks:            map[Model][]Peak{},
		Outputs:          persisted.Files,
		BytesWritten:     persisted.Bytes,
	}

	if cfg.Plots {
		labels := make([]string, len(table.Variables))
		for i, v := range table.Variables {
			labels[i] = SanitizeLabel(v)
		}
		for _, m := range Models {
			paths, err := report.WriteHistograms(filepath.Join(cfg.OutputRoot, OutputDir), ResultBaseName(m),
				result.Stats(m), labels, report.WithLogger(p.logger))
			if err != nil {
				return nil, err
			}
			summary.Outputs = append(summary.Outputs, paths...)
		}
	}

	for _, m := range Models {
		stats := result.Stats(m)
		for v, name := range table.Variables {
			top, err := result.PeakVertices(m, v, 1)
			if err != nil {
				return nil, err
			}
			peak := Peak{Variable: name, Vertex: top[0], Stat: stats.At(v, top[0])}
			summary.Peaks[m] = append(summary.Peaks[m], peak)
			p.logger.Debug("peak vertex",
				log.ModelNameKey, string(m),
				log.VariableKey, name,
				log.PeakVertexKey, peak.Vertex,
				log.PeakStatKey, peak.Stat,
			)
		}
	}

	summary.Duration = time.Since(started)
	p.logger.Info("run completed",
		log.SamplesKey, summary.Observations,
		log.FeaturesKey, len(summary.Variables),
		log.DurationMsKey, summary.Duration.Milliseconds(),
		"outputs", len(summary.Outputs),
	)
	return summary, nil
}
