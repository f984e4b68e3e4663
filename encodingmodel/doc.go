// Package encodingmodel fits per-vertex encoding models over brain-surface
// contrast maps.
//
// A run loads a table of condition codes per (task, contrast) pair,
// discovers one right/left hemisphere GIfTI pair per subject statistic
// map, stacks the maps into a response matrix (observations × vertices)
// and the codes into a design matrix (observations × variables), and
// then fits ordinary least squares and Lasso at every vertex.
//
// Each fitted coefficient is reported as
//
//	stat = coef / (RSS / df),   df = observations - variables
//
// This "pseudo t-statistic" divides by the residual variance of the whole
// fit, not by the standard error of the coefficient, so it is NOT a
// classical t-statistic and has no t distribution. It is kept exactly in
// this form so the maps stay comparable with earlier results.
//
// Vertices whose statistics are not finite (for example zero-variance
// vertices, where RSS is 0) are handled by an explicit DegeneracyPolicy.
package encodingmodel
