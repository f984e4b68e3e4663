// Package log defines standard attribute keys for the encoding-model pipeline.
//
// Keys follow a hierarchical naming convention (e.g. "model.name",
// "data.samples") so that the JSON output of a run can be filtered per
// stage.

package log

// Model and Operation Context
const (
	// ModelNameKey identifies the estimator ("ols", "lasso").
	ModelNameKey = "model.name"

	// OperationKey specifies the pipeline operation being performed.
	// Standard values are the Operation* constants below.
	OperationKey = "ml.operation"

	// ComponentKey identifies which package is logging.
	// Examples: "encodingmodel", "verify", "report"
	ComponentKey = "ml.component"
)

// Data Shape and Characteristics
const (
	// SamplesKey is the number of observations (rows of the design matrix).
	SamplesKey = "data.samples"

	// FeaturesKey is the number of condition variables.
	FeaturesKey = "data.features"

	// VerticesKey is the number of surface vertices (response columns).
	VerticesKey = "data.vertices"

	// VariableKey names one condition variable.
	VariableKey = "data.variable"

	// DataSizeKey is a human-readable size of data written or read.
	DataSizeKey = "data.size"

	// PathKey is a file or directory path.
	PathKey = "io.path"
)

// Performance and Fit Diagnostics
const (
	// DurationMsKey records the execution time of an operation in milliseconds.
	DurationMsKey = "perf.duration_ms"

	// IterationKey records an iteration count of an iterative solver.
	IterationKey = "training.iteration"

	// RegularizationKey records the L1 penalty strength.
	RegularizationKey = "hyperparams.regularization"

	// DegreesOfFreedomKey records observations minus condition variables.
	DegreesOfFreedomKey = "fit.df"

	// DegenerateKey counts vertices whose statistics were non-finite.
	DegenerateKey = "fit.degenerate_vertices"

	// UnconvergedKey counts vertices where the Lasso solver hit max_iter.
	UnconvergedKey = "fit.unconverged_vertices"

	// PeakVertexKey and PeakStatKey describe the strongest vertex of a map.
	PeakVertexKey = "fit.peak_vertex"
	PeakStatKey   = "fit.peak_stat"
)

// Error Context
const (
	// ErrorKey holds the error message when the first field is an error.
	ErrorKey = "error"

	// ErrorTypeKey categorizes the type of error encountered.
	ErrorTypeKey = "error.type"

	// StacktraceKey contains the stack trace recorded by cockroachdb/errors.
	StacktraceKey = "error.stacktrace"
)

// Infrastructure
const (
	// WorkersKey is the number of goroutines used by a parallel stage.
	WorkersKey = "infra.workers"
)

// Standard attribute values.
const (
	OperationDiscover = "discover"
	OperationLoad     = "load"
	OperationFit      = "fit"
	OperationPersist  = "persist"
	OperationReport   = "report"
	OperationVerify   = "verify"
)
