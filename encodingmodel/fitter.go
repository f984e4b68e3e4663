package encodingmodel

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/YuminosukeSato/connectome/core/model"
	"github.com/YuminosukeSato/connectome/core/parallel"
	"github.com/YuminosukeSato/connectome/linear"
	"github.com/YuminosukeSato/connectome/metrics"
	"github.com/YuminosukeSato/connectome/pkg/errors"
	"github.com/YuminosukeSato/connectome/pkg/log"
	"github.com/YuminosukeSato/connectome/preprocessing"
	"github.com/mkmik/argsort"
	"gonum.org/v1/gonum/mat"
)

// Model names one of the two fitted model types.
type Model string

const (
	ModelOLS   Model = "ols"
	ModelLasso Model = "lasso"
)

// Models lists the fitted model types in output order.
var Models = []Model{ModelOLS, ModelLasso}

// DegeneracyPolicy は統計量が非有限値（NaN, ±Inf）になった頂点の扱い
type DegeneracyPolicy int

const (
	// DegeneracyZero は非有限値を 0 に置き換える
	DegeneracyZero DegeneracyPolicy = iota
	// DegeneracyPropagate は非有限値をそのまま出力する
	DegeneracyPropagate
)

func (p DegeneracyPolicy) String() string {
	switch p {
	case DegeneracyZero:
		return "zero"
	case DegeneracyPropagate:
		return "propagate"
	default:
		return fmt.Sprintf("DegeneracyPolicy(%d)", int(p))
	}
}

// ParseDegeneracyPolicy accepts "zero" or "propagate".
func ParseDegeneracyPolicy(s string) (DegeneracyPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "zero", "":
		return DegeneracyZero, nil
	case "propagate":
		return DegeneracyPropagate, nil
	default:
		return DegeneracyZero, errors.NewValidationError("degeneracy", "must be zero or propagate", s)
	}
}

const defaultBlockSize = 512

// Fitter fits OLS and Lasso at every vertex against one shared design.
type Fitter struct {
	alpha     float64
	maxIter   int
	tol       float64
	workers   int
	blockSize int
	policy    DegeneracyPolicy
	logger    log.Logger
}

// FitterOption configures a Fitter.
type FitterOption func(*Fitter)

// WithLassoAlpha sets the L1 penalty strength.
func WithLassoAlpha(alpha float64) FitterOption {
	return func(f *Fitter) {
		f.alpha = alpha
	}
}

// WithLassoMaxIter sets the coordinate descent sweep limit.
func WithLassoMaxIter(n int) FitterOption {
	return func(f *Fitter) {
		f.maxIter = n
	}
}

// WithLassoTol sets the Lasso convergence tolerance.
func WithLassoTol(tol float64) FitterOption {
	return func(f *Fitter) {
		f.tol = tol
	}
}

// WithWorkers sets the number of goroutines; n <= 0 uses one per CPU.
func WithWorkers(n int) FitterOption {
	return func(f *Fitter) {
		f.workers = n
	}
}

// WithBlockSize sets how many vertices are fitted together. Cancellation
// is checked between blocks.
func WithBlockSize(n int) FitterOption {
	return func(f *Fitter) {
		if n > 0 {
			f.blockSize = n
		}
	}
}

// WithDegeneracyPolicy sets how non-finite statistics are reported.
func WithDegeneracyPolicy(p DegeneracyPolicy) FitterOption {
	return func(f *Fitter) {
		f.policy = p
	}
}

// WithLogger sets the logger used for progress and summaries.
func WithLogger(l log.Logger) FitterOption {
	return func(f *Fitter) {
		f.logger = l
	}
}

// NewFitter returns a Fitter with alpha 0.01, max_iter 1000, tol 1e-4,
// one worker per CPU and DegeneracyZero.
func NewFitter(opts ...FitterOption) *Fitter {
	f := &Fitter{
		alpha:     0.01,
		maxIter:   1000,
		tol:       1e-4,
		blockSize: defaultBlockSize,
		policy:    DegeneracyZero,
	}
	for _, opt := range opts {
		opt(f)
	}
	if f.logger == nil {
		f.logger = log.GetLogger().With(log.ComponentKey, "encodingmodel")
	}
	return f
}

// FitResult holds one (variables × vertices) statistic map per model.
type FitResult struct {
	OLS   *mat.Dense
	Lasso *mat.Dense

	// DegreesOfFreedom は observations - variables
	DegreesOfFreedom int
	// Degenerate はモデルごとの非有限値を含んだ頂点数（ポリシー適用前）
	Degenerate map[Model]int
	// Unconverged は max_iter までに収束しなかった Lasso の頂点数
	Unconverged int
	Policy      DegeneracyPolicy
}

// Stats returns the statistic map of model m, or nil for an unknown model.
func (r *FitResult) Stats(m Model) *mat.Dense {
	switch m {
	case ModelOLS:
		return r.OLS
	case ModelLasso:
		return r.Lasso
	default:
		return nil
	}
}

// PeakVertices returns the indices of the k vertices with the largest
// |stat| for one variable, strongest first. Non-finite values rank last
// and ties keep vertex order.
func (r *FitResult) PeakVertices(m Model, variable, k int) ([]int, error) {
	stats := r.Stats(m)
	if stats == nil {
		return nil, errors.NewValueError("PeakVertices", "unknown model "+string(m))
	}
	p, vertices := stats.Dims()
	if variable < 0 || variable >= p {
		return nil, errors.NewDimensionError("PeakVertices", p, variable, 0)
	}
	if k <= 0 {
		return []int{}, nil
	}

	row := mat.Row(nil, variable, stats)
	strength := make([]float64, vertices)
	for i, v := range row {
		if errors.IsFinite(v) {
			strength[i] = math.Abs(v)
		} else {
			strength[i] = -1
		}
	}
	order := argsort.SortSlice(strength, func(i, j int) bool {
		if strength[i] != strength[j] {
			return strength[i] > strength[j]
		}
		return i < j
	})

	if k > vertices {
		k = vertices
	}
	return order[:k], nil
}

// blockStats は1ブロック分の集計
type blockStats struct {
	degenerateOLS   int
	degenerateLasso int
	unconverged     int
}

// Fit centers the design columns and, for every response column, centers
// the column and fits OLS and Lasso without intercept. Each coefficient
// becomes coef / (RSS/df). design and responses are not modified.
//
// Rows of design and responses must match and df = n - p must be
// positive, otherwise a ShapeError is returned before any fitting.
// Degenerate vertices never fail the fit; they are counted, handled by the
// policy and reported through errors.Warn.
func (f *Fitter) Fit(ctx context.Context, design, responses mat.Matrix) (*FitResult, error) {
	n, p := design.Dims()
	rows, vertices := responses.Dims()

	if n == 0 || p == 0 || vertices == 0 {
		return nil, errors.NewModelError("Fitter.Fit", "empty data", errors.ErrEmptyData)
	}
	if rows != n {
		return nil, errors.NewShapeError("Fitter.Fit", []int{n, vertices}, []int{rows, vertices},
			"responses need one row per design row")
	}
	df := n - p
	if df <= 0 {
		return nil, errors.NewShapeError("Fitter.Fit", []int{p + 1, p}, []int{n, p},
			"degrees of freedom (observations - variables) must be positive")
	}
	if err := errors.CheckMatrix("Fitter.Fit", design, n, p); err != nil {
		return nil, err
	}
	if f.alpha < 0 || !errors.IsFinite(f.alpha) {
		return nil, errors.NewValidationError("lasso_alpha", "must be finite and non-negative", f.alpha)
	}

	started := time.Now()
	workers := parallel.Workers(f.workers)
	logger := f.logger.With(log.OperationKey, log.OperationFit)
	logger.Info("fitting encoding models",
		log.SamplesKey, n,
		log.FeaturesKey, p,
		log.VerticesKey, vertices,
		log.DegreesOfFreedomKey, df,
		log.RegularizationKey, f.alpha,
		log.WorkersKey, workers,
	)

	centerer := preprocessing.NewColumnCenterer()
	X, err := centerer.FitTransform(design)
	if err != nil {
		return nil, err
	}
	for j, constant := range centerer.Constant {
		if constant {
			// 定数列の係数はどちらのモデルでも 0 になる
			logger.Warn("design column has no variation", log.VariableKey, j)
		}
	}

	result := &FitResult{
		OLS:              mat.NewDense(p, vertices, nil),
		Lasso:            mat.NewDense(p, vertices, nil),
		DegreesOfFreedom: df,
		Policy:           f.policy,
	}

	nBlocks := (vertices + f.blockSize - 1) / f.blockSize
	perBlock := make([]blockStats, nBlocks)

	err = parallel.ParallelizeErr(nBlocks, workers, func(start, end int) error {
		for b := start; b < end; b++ {
			if err := ctx.Err(); err != nil {
				return errors.WithStack(err)
			}
			lo := b * f.blockSize
			hi := min(lo+f.blockSize, vertices)

			stats, err := f.fitBlock(X, responses, lo, hi, df, result)
			if err != nil {
				return err
			}
			perBlock[b] = stats
			logger.Debug("fitted vertex block", log.VerticesKey, hi, log.UnconvergedKey, stats.unconverged)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	result.Degenerate = map[Model]int{}
	for _, s := range perBlock {
		result.Degenerate[ModelOLS] += s.degenerateOLS
		result.Degenerate[ModelLasso] += s.degenerateLasso
		result.Unconverged += s.unconverged
	}

	for _, m := range Models {
		if d := result.Degenerate[m]; d > 0 {
			errors.Warn(errors.NewDegeneracyWarning(string(m), d, vertices, f.policy.String()))
		}
	}
	if result.Unconverged > 0 {
		errors.Warn(errors.NewConvergenceWarning("Lasso", f.maxIter,
			fmt.Sprintf("%d of %d vertices did not converge; consider increasing lasso_max_iter", result.Unconverged, vertices)))
	}

	logger.Info("fit completed",
		log.DurationMsKey, time.Since(started).Milliseconds(),
		log.DegenerateKey, result.Degenerate[ModelOLS]+result.Degenerate[ModelLasso],
		log.UnconvergedKey, result.Unconverged,
	)
	return result, nil
}

// fitBlock は頂点 [lo, hi) を当てはめ、結果を result の同じ列に書き込む。
// 列範囲はブロックごとに重ならないのでロックは不要。
func (f *Fitter) fitBlock(X *mat.Dense, responses mat.Matrix, lo, hi, df int, result *FitResult) (blockStats, error) {
	n, _ := X.Dims()
	width := hi - lo

	Y := mat.NewDense(n, width, nil)
	nonFinite := make([]bool, width)
	for j := 0; j < width; j++ {
		for i := 0; i < n; i++ {
			v := responses.At(i, lo+j)
			if !errors.IsFinite(v) {
				nonFinite[j] = true
				v = 0
			}
			Y.Set(i, j, v)
		}
	}
	preprocessing.CenterColumns(Y)

	ols := linear.NewLinearRegression(linear.WithFitIntercept(false))
	if err := ols.Fit(X, Y); err != nil {
		return blockStats{}, err
	}
	lasso := linear.NewLasso(
		linear.WithAlpha(f.alpha),
		linear.WithMaxIter(f.maxIter),
		linear.WithTol(f.tol),
		linear.WithLassoFitIntercept(false),
	)
	if err := lasso.Fit(X, Y); err != nil {
		return blockStats{}, err
	}

	var stats blockStats
	var err error
	stats.degenerateOLS, err = f.writeStats(ols, X, Y, df, lo, nonFinite, result.OLS)
	if err != nil {
		return blockStats{}, err
	}
	stats.degenerateLasso, err = f.writeStats(lasso, X, Y, df, lo, nonFinite, result.Lasso)
	if err != nil {
		return blockStats{}, err
	}
	stats.unconverged = lasso.Unconverged()
	return stats, nil
}

// writeStats は stat = coef / (RSS/df) を out の列 lo 以降に書き込み、
// 非有限値を含んだ頂点数を返す
func (f *Fitter) writeStats(est model.LinearModel, X, Y *mat.Dense, df, lo int, nonFinite []bool, out *mat.Dense) (int, error) {
	pred, err := est.Predict(X)
	if err != nil {
		return 0, err
	}
	rss, err := metrics.ColumnResidualSumOfSquares(Y, pred)
	if err != nil {
		return 0, err
	}

	coef := est.Coef()
	p, _ := coef.Dims()
	degenerate := 0
	for j, r := range rss {
		sse := r / float64(df)
		bad := false
		for v := 0; v < p; v++ {
			stat := coef.At(v, j) / sse
			if nonFinite[j] {
				stat = math.NaN()
			}
			if !errors.IsFinite(stat) {
				bad = true
				if f.policy == DegeneracyZero {
					stat = 0
				}
			}
			out.Set(v, lo+j, stat)
		}
		if bad {
			degenerate++
		}
	}
	return degenerate, nil
}
