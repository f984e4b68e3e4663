package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/YuminosukeSato/connectome/config"
	"github.com/YuminosukeSato/connectome/encodingmodel"
	"github.com/YuminosukeSato/connectome/pkg/errors"
	"github.com/YuminosukeSato/connectome/pkg/log"
	"github.com/YuminosukeSato/connectome/verify"
	"github.com/c2h5oh/datasize"
)

// 終了コード
const (
	exitOK      = 0
	exitFailure = 1
	exitUsage   = 2
)

// envDataDir は output_root が未指定のときだけ参照される
const envDataDir = "MYCONNECTOME_DIR"

const usage = `usage: encodingmodel <command> [flags]

commands:
  fit      fit OLS and Lasso at every vertex and write statistic maps
  verify   compare result arrays against reference copies
`

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		fmt.Fprint(stderr, usage)
		return exitUsage
	}
	switch args[0] {
	case "fit":
		return runFit(ctx, args[1:], stdout, stderr)
	case "verify":
		return runVerify(args[1:], stdout, stderr)
	case "help", "-h", "-help", "--help":
		fmt.Fprint(stdout, usage)
		return exitOK
	default:
		fmt.Fprintf(stderr, "unknown command %q\n\n%s", args[0], usage)
		return exitUsage
	}
}

// fitFlags はコマンドラインで上書きできる設定値
type fitFlags struct {
	configPath    string
	dataRoot      string
	outputRoot    string
	contrastTable string
	subjectGlob   string
	vertices      int
	alpha         float64
	maxIter       int
	tol           float64
	workers       int
	degeneracy    string
	strictCodes   bool
	plots         bool
	logLevel      string
	console       bool
}

func newFitFlagSet(f *fitFlags, stderr io.Writer) *flag.FlagSet {
	def := config.Default()
	fs := flag.NewFlagSet("fit", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&f.configPath, "config", "", "YAML config file")
	fs.StringVar(&f.dataRoot, "data-root", "", "root of the subject directories")
	fs.StringVar(&f.outputRoot, "output-root", "", "output root (falls back to $"+envDataDir+")")
	fs.StringVar(&f.contrastTable, "contrast-table", def.ContrastTable, "contrast annotation table")
	fs.StringVar(&f.subjectGlob, "subject-glob", def.SubjectGlob, "glob selecting subject model directories")
	fs.IntVar(&f.vertices, "vertices", def.VerticesPerHemisphere, "vertices per hemisphere")
	fs.Float64Var(&f.alpha, "alpha", def.LassoAlpha, "Lasso L1 penalty")
	fs.IntVar(&f.maxIter, "max-iter", def.LassoMaxIter, "Lasso iteration limit")
	fs.Float64Var(&f.tol, "tol", def.LassoTol, "Lasso tolerance")
	fs.IntVar(&f.workers, "workers", def.Workers, "worker goroutines (0 = all CPUs)")
	fs.StringVar(&f.degeneracy, "degeneracy", def.Degeneracy, "degenerate vertex policy: zero or propagate")
	fs.BoolVar(&f.strictCodes, "strict-codes", def.StrictCodes, "reject missing or non-integer condition codes")
	fs.BoolVar(&f.plots, "plots", def.Plots, "write statistic histograms")
	fs.StringVar(&f.logLevel, "log-level", def.LogLevel, "debug, info, warn or error")
	fs.BoolVar(&f.console, "console", false, "human-readable log output")
	return fs
}

// fitConfig は設定ファイル → 明示されたフラグ → 環境変数の順に設定を組み立てる
func fitConfig(fs *flag.FlagSet, f *fitFlags) (config.Config, error) {
	cfg := config.Default()
	if f.configPath != "" {
		loaded, err := config.Load(f.configPath)
		if err != nil {
			return cfg, err
		}
		cfg = loaded
	}

	fs.Visit(func(fl *flag.Flag) {
		switch fl.Name {
		case "data-root":
			cfg.DataRoot = f.dataRoot
		case "output-root":
			cfg.OutputRoot = f.outputRoot
		case "contrast-table":
			cfg.ContrastTable = f.contrastTable
		case "subject-glob":
			cfg.SubjectGlob = f.subjectGlob
		case "vertices":
			cfg.VerticesPerHemisphere = f.vertices
		case "alpha":
			cfg.LassoAlpha = f.alpha
		case "max-iter":
			cfg.LassoMaxIter = f.maxIter
		case "tol":
			cfg.LassoTol = f.tol
		case "workers":
			cfg.Workers = f.workers
		case "degeneracy":
			cfg.Degeneracy = f.degeneracy
		case "strict-codes":
			cfg.StrictCodes = f.strictCodes
		case "plots":
			cfg.Plots = f.plots
		case "log-level":
			cfg.LogLevel = f.logLevel
		}
	})

	if cfg.OutputRoot == "" {
		cfg.OutputRoot = os.Getenv(envDataDir)
	}
	return cfg, cfg.Validate()
}

func runFit(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	var f fitFlags
	fs := newFitFlagSet(&f, stderr)
	if err := fs.Parse(args); err != nil {
		return exitUsage
	}
	if fs.NArg() > 0 {
		fmt.Fprintf(stderr, "fit: unexpected arguments %v\n", fs.Args())
		return exitUsage
	}

	cfg, err := fitConfig(fs, &f)
	if err != nil {
		fmt.Fprintf(stderr, "fit: %v\n", err)
		var valErr *errors.ValidationError
		if errors.As(err, &valErr) {
			return exitUsage
		}
		return exitFailure
	}

	logger, err := log.SetupLogger(cfg.LogLevel, f.console)
	if err != nil {
		fmt.Fprintf(stderr, "fit: %v\n", err)
		return exitUsage
	}

	summary, err := encodingmodel.NewPipeline(cfg, logger).Run(ctx)
	if err != nil {
		logger.Error("fit failed", err)
		fmt.Fprintf(stderr, "fit: %v\n", err)
		return exitFailure
	}

	fmt.Fprintf(stdout, "observations: %d  variables: %d  vertices: %d  df: %d\n",
		summary.Observations, len(summary.Variables), summary.Vertices, summary.DegreesOfFreedom)
	for _, m := range encodingmodel.Models {
		fmt.Fprintf(stdout, "%-6s degenerate vertices: %d\n", m, summary.Degenerate[m])
		for _, p := range summary.Peaks[m] {
			fmt.Fprintf(stdout, "       peak %-20s vertex %6d  stat %g\n", p.Variable, p.Vertex, p.Stat)
		}
	}
	if summary.Unconverged > 0 {
		fmt.Fprintf(stdout, "lasso unconverged vertices: %d\n", summary.Unconverged)
	}
	fmt.Fprintf(stdout, "wrote %d files (%s) in %s\n", len(summary.Outputs),
		datasize.ByteSize(summary.BytesWritten).HumanReadable(), summary.Duration.Round(time.Millisecond))
	return exitOK
}

func runVerify(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("verify", flag.ContinueOnError)
	fs.SetOutput(stderr)
	local := fs.String("local", os.Getenv(envDataDir), "root of the locally computed results")
	reference := fs.String("reference", "", "root of the reference results")
	manifest := fs.String("manifest", "", "YAML list of checks (default: the two statistic arrays)")
	rtol := fs.Float64("rtol", 0, "relative tolerance (overrides the manifest)")
	atol := fs.Float64("atol", 0, "absolute tolerance (overrides the manifest)")
	logLevel := fs.String("log-level", "warn", "debug, info, warn or error")
	if err := fs.Parse(args); err != nil {
		return exitUsage
	}
	if *reference == "" || *local == "" {
		fmt.Fprintln(stderr, "verify: -reference and -local (or $"+envDataDir+") are required")
		return exitUsage
	}

	if _, err := log.SetupLogger(*logLevel, false); err != nil {
		fmt.Fprintf(stderr, "verify: %v\n", err)
		return exitUsage
	}

	v := verify.NewVerifier(*local, *reference)
	checks := verify.DefaultChecks()
	if *manifest != "" {
		m, err := verify.LoadManifest(*manifest)
		if err != nil {
			fmt.Fprintf(stderr, "verify: %v\n", err)
			return exitFailure
		}
		v.Rtol, v.Atol, checks = m.Rtol, m.Atol, m.Checks
	}
	if *rtol > 0 {
		v.Rtol = *rtol
	}
	if *atol > 0 {
		v.Atol = *atol
	}

	results := v.Run(checks)
	for _, r := range results {
		fmt.Fprintln(stdout, r.String())
	}
	if !verify.Passed(results) {
		return exitFailure
	}
	return exitOK
}
