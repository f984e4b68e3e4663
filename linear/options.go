package linear

// Option は LinearRegression を設定する関数
type Option func(*LinearRegression)

// WithFitIntercept sets whether to calculate the intercept
func WithFitIntercept(fit bool) Option {
	return func(lr *LinearRegression) {
		lr.fitIntercept = fit
	}
}

// WithRcond sets the relative cutoff below which singular values are treated
// as zero. Non-positive values select machine epsilon × max(n_samples, n_features).
func WithRcond(rcond float64) Option {
	return func(lr *LinearRegression) {
		lr.rcond = rcond
	}
}

// LassoOption は Lasso を設定する関数
type LassoOption func(*Lasso)

// WithAlpha sets the L1 penalty strength
func WithAlpha(alpha float64) LassoOption {
	return func(l *Lasso) {
		l.alpha = alpha
	}
}

// WithMaxIter sets the maximum number of coordinate descent sweeps
func WithMaxIter(n int) LassoOption {
	return func(l *Lasso) {
		l.maxIter = n
	}
}

// WithTol sets the tolerance for the optimization
func WithTol(tol float64) LassoOption {
	return func(l *Lasso) {
		l.tol = tol
	}
}

// WithLassoFitIntercept sets whether to calculate the intercept
func WithLassoFitIntercept(fit bool) LassoOption {
	return func(l *Lasso) {
		l.fitIntercept = fit
	}
}
