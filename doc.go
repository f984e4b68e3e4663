// Package connectome fits per-vertex task encoding models on cortical
// surface data and writes the resulting statistic maps.
//
// For every surface vertex the condition codes of each (task, contrast)
// pair are regressed against the vertex's statistic values across all
// runs, once by ordinary least squares and once by Lasso. The fitted
// coefficients are scaled by the residual variance to give one pseudo
// t-statistic per condition variable and vertex.
//
// # Quick Start
//
//	cfg := config.Default()
//	cfg.DataRoot = "/data/selftracking"
//	cfg.OutputRoot = "/data/results"
//
//	summary, err := encodingmodel.NewPipeline(cfg, nil).Run(ctx)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println("df:", summary.DegreesOfFreedom)
//
// The same run from the command line:
//
//	encodingmodel fit -config fit.yaml
//	encodingmodel verify -reference /data/reference
//
// # Packages
//
//   - encodingmodel: contrast table, observation discovery, the fitter and output writing
//   - linear: multi-target least squares (SVD) and Lasso (coordinate descent)
//   - preprocessing: column centering
//   - metrics: residual sums of squares and allclose-style comparison
//   - gifti: GIfTI surface data reader and writer
//   - npy: NumPy .npy reader and writer
//   - verify: comparison of result arrays against reference copies
//   - report: statistic histograms
//   - config: YAML configuration
//   - core/model: estimator interfaces and base types
//   - core/parallel: range-splitting worker helpers
//   - pkg/errors, pkg/log: structured errors and zerolog-backed logging
package connectome
