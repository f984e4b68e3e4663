// Package verify compares locally computed result arrays with reference
// copies on disk, reporting PASS or FAIL per file.
package verify

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"

	"github.com/YuminosukeSato/connectome/metrics"
	"github.com/YuminosukeSato/connectome/pkg/errors"
	"github.com/YuminosukeSato/connectome/pkg/log"
	"gonum.org/v1/gonum/mat"
	"gopkg.in/yaml.v3"
)

// Check names one local file and the reference it must match. Relative
// paths are resolved against the local and reference roots.
type Check struct {
	Name      string `yaml:"name"`
	Local     string `yaml:"local"`
	Reference string `yaml:"reference"`
	SkipRows  int    `yaml:"skip_rows,omitempty"`
}

// Manifest is the YAML list of checks.
type Manifest struct {
	Rtol   float64 `yaml:"rtol,omitempty"`
	Atol   float64 `yaml:"atol,omitempty"`
	Checks []Check `yaml:"checks"`
}

// DefaultChecks compares the two encoding-model statistic arrays.
func DefaultChecks() []Check {
	return []Check{
		{Name: "task/encoding_tstat.npy", Local: "task/encoding_tstat.npy", Reference: "task/encoding_tstat.npy"},
		{Name: "task/encoding_tstat_lasso.npy", Local: "task/encoding_tstat_lasso.npy", Reference: "task/encoding_tstat_lasso.npy"},
	}
}

// LoadManifest reads a manifest file. Missing tolerances default to
// metrics.DefaultRtol and metrics.DefaultAtol.
func LoadManifest(path string) (*Manifest, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.NewIOError("open", path, err)
	}
	defer f.Close()

	m, err := decodeManifest(f)
	if err != nil {
		return nil, errors.NewParseError(path, 0, 0, err.Error())
	}
	return m, nil
}

func decodeManifest(r io.Reader) (*Manifest, error) {
	m := &Manifest{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(m); err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}
	if m.Rtol == 0 {
		m.Rtol = metrics.DefaultRtol
	}
	if m.Atol == 0 {
		m.Atol = metrics.DefaultAtol
	}
	for i, c := range m.Checks {
		if c.Local == "" || c.Reference == "" {
			return nil, errors.Newf("check %d needs local and reference paths", i)
		}
		if c.Name == "" {
			m.Checks[i].Name = c.Local
		}
	}
	return m, nil
}

// Status is the outcome of one check.
type Status string

const (
	StatusPass Status = "PASS"
	StatusFail Status = "FAIL"
)

// Result is the outcome of comparing one file pair.
type Result struct {
	Name           string
	Status         Status
	MaxDiff        float64
	LocalShape     []int
	ReferenceShape []int
	Err            error
}

// String renders the result in the PASS/FAIL line format.
func (r Result) String() string {
	switch {
	case r.Status == StatusPass:
		return fmt.Sprintf("PASS: %s", r.Name)
	case r.Err != nil:
		return fmt.Sprintf("FAIL: %s %v", r.Name, r.Err)
	case !slices.Equal(r.LocalShape, r.ReferenceShape):
		return fmt.Sprintf("FAIL: %s data shapes differ %v %v", r.Name, r.ReferenceShape, r.LocalShape)
	default:
		return fmt.Sprintf("FAIL: %s maxdiff = %g", r.Name, r.MaxDiff)
	}
}

// Verifier runs checks relative to a local and a reference root.
type Verifier struct {
	LocalRoot     string
	ReferenceRoot string
	Rtol          float64
	Atol          float64
	Logger        log.Logger
}

// NewVerifier returns a Verifier with the default tolerances.
func NewVerifier(localRoot, referenceRoot string) *Verifier {
	return &Verifier{
		LocalRoot:     localRoot,
		ReferenceRoot: referenceRoot,
		Rtol:          metrics.DefaultRtol,
		Atol:          metrics.DefaultAtol,
		Logger:        log.GetLogger().With(log.ComponentKey, "verify"),
	}
}

// Run compares every check and returns one result per check in order.
// Failures to read a file are reported as FAIL results, not errors.
func (v *Verifier) Run(checks []Check) []Result {
	results := make([]Result, 0, len(checks))
	for _, c := range checks {
		r := v.Compare(c)
		fields := []any{log.OperationKey, log.OperationVerify, log.PathKey, c.Name, "status", string(r.Status)}
		if r.Status == StatusPass {
			v.Logger.Info("check passed", fields...)
		} else if r.Err != nil {
			v.Logger.Warn("check failed", append([]any{r.Err}, fields...)...)
		} else {
			v.Logger.Warn("check failed", append(fields, "maxdiff", r.MaxDiff)...)
		}
		results = append(results, r)
	}
	return results
}

// Compare loads one file pair and compares it element-wise with
// |local - reference| <= atol + rtol·|reference|.
func (v *Verifier) Compare(c Check) Result {
	res := Result{Name: c.Name, Status: StatusFail}

	ref, err := LoadArray(v.resolve(v.ReferenceRoot, c.Reference), c.SkipRows)
	if err != nil {
		res.Err = err
		return res
	}
	local, err := LoadArray(v.resolve(v.LocalRoot, c.Local), c.SkipRows)
	if err != nil {
		res.Err = err
		return res
	}

	lr, lc := local.Dims()
	rr, rc := ref.Dims()
	res.LocalShape = []int{lr, lc}
	res.ReferenceShape = []int{rr, rc}
	if lr != rr || lc != rc {
		return res
	}

	v.compareValues(&res, local, ref)
	return res
}

// compareValues は値を比較して res を更新する。比較自体の失敗は FAIL として Err に残す。
func (v *Verifier) compareValues(res *Result, local, ref mat.Matrix) {
	res.Status = StatusFail
	maxDiff, err := metrics.MaxAbsDiff(local, ref)
	if err != nil {
		res.Err = err
		return
	}
	res.MaxDiff = maxDiff

	ok, err := metrics.AllClose(local, ref, v.Rtol, v.Atol)
	if err != nil {
		res.Err = err
		return
	}
	if ok {
		res.Status = StatusPass
	}
}

func (v *Verifier) resolve(root, path string) string {
	if filepath.IsAbs(path) || root == "" {
		return path
	}
	return filepath.Join(root, path)
}

// Passed reports whether every result passed.
func Passed(results []Result) bool {
	for _, r := range results {
		if r.Status != StatusPass {
			return false
		}
	}
	return true
}
