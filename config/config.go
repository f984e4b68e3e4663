// Package config holds the explicit run configuration of the encoding-model
// pipeline. Values come from defaults, an optional YAML file and command
// line overrides, in that order.
package config

import (
	"bytes"
	"io"
	"os"
	"strings"

	"github.com/YuminosukeSato/connectome/pkg/errors"
	"gopkg.in/yaml.v3"
)

// VerticesPerHemisphere は fs_LR 32k メッシュの片半球あたりの頂点数
const VerticesPerHemisphere = 32492

// DefaultSubjectGlob はデータルート直下でモデルディレクトリを探すパターン
const DefaultSubjectGlob = "sub*/model"

// Degeneracy policy names accepted in the degeneracy field.
const (
	DegeneracyZero      = "zero"
	DegeneracyPropagate = "propagate"
)

// Config はパイプライン1回分の設定
type Config struct {
	DataRoot              string  `yaml:"data_root"`
	OutputRoot            string  `yaml:"output_root"`
	ContrastTable         string  `yaml:"contrast_table"`
	SubjectGlob           string  `yaml:"subject_glob"`
	VerticesPerHemisphere int     `yaml:"vertices_per_hemisphere"`
	LassoAlpha            float64 `yaml:"lasso_alpha"`
	LassoMaxIter          int     `yaml:"lasso_max_iter"`
	LassoTol              float64 `yaml:"lasso_tol"`
	Workers               int     `yaml:"workers"`      // <= 0: CPU 数
	Degeneracy            string  `yaml:"degeneracy"`   // zero | propagate
	StrictCodes           bool    `yaml:"strict_codes"` // 解析できないコードをエラーにする
	Plots                 bool    `yaml:"plots"`        // 統計量ヒストグラムを出力する
	LogLevel              string  `yaml:"log_level"`
}

// Default returns the configuration used when nothing else is given.
func Default() Config {
	return Config{
		ContrastTable:         "contrast_annotation.txt",
		SubjectGlob:           DefaultSubjectGlob,
		VerticesPerHemisphere: VerticesPerHemisphere,
		LassoAlpha:            0.01,
		LassoMaxIter:          1000,
		LassoTol:              1e-4,
		Degeneracy:            DegeneracyZero,
		LogLevel:              "info",
	}
}

// Load reads a YAML file on top of Default. Unknown keys are rejected.
func Load(path string) (Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return Config{}, errors.NewIOError("open", path, err)
	}
	defer f.Close()

	cfg, err := Decode(f)
	if err != nil {
		var perr *errors.ParseError
		if errors.As(err, &perr) {
			perr.Path = path
		}
		return Config{}, err
	}
	return cfg, nil
}

// Decode parses YAML from r on top of Default.
func Decode(r io.Reader) (Config, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return Config{}, errors.NewIOError("read", "", err)
	}

	cfg := Default()
	if len(bytes.TrimSpace(data)) == 0 {
		return cfg, nil
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return Config{}, errors.NewParseError("", yamlErrorLine(err), 0, err.Error())
	}
	return cfg, nil
}

// yamlErrorLine は "yaml: line N: ..." 形式のメッセージから行番号を取り出す
func yamlErrorLine(err error) int {
	var line int
	msg := err.Error()
	if i := strings.Index(msg, "line "); i >= 0 {
		for _, ch := range msg[i+len("line "):] {
			if ch < '0' || ch > '9' {
				break
			}
			line = line*10 + int(ch-'0')
		}
	}
	return line
}

// Validate checks every field and returns the first problem found as a
// ValidationError.
func (c Config) Validate() error {
	if strings.TrimSpace(c.DataRoot) == "" {
		return errors.NewValidationError("data_root", "must be set", c.DataRoot)
	}
	if strings.TrimSpace(c.OutputRoot) == "" {
		return errors.NewValidationError("output_root", "must be set", c.OutputRoot)
	}
	if strings.TrimSpace(c.ContrastTable) == "" {
		return errors.NewValidationError("contrast_table", "must be set", c.ContrastTable)
	}
	if strings.TrimSpace(c.SubjectGlob) == "" {
		return errors.NewValidationError("subject_glob", "must be set", c.SubjectGlob)
	}
	if c.VerticesPerHemisphere <= 0 {
		return errors.NewValidationError("vertices_per_hemisphere", "must be positive", c.VerticesPerHemisphere)
	}
	if err := errors.CheckScalar("lasso_alpha", c.LassoAlpha, 0); err != nil {
		return errors.NewValidationError("lasso_alpha", "must be finite", c.LassoAlpha)
	}
	if c.LassoAlpha < 0 {
		return errors.NewValidationError("lasso_alpha", "must be non-negative", c.LassoAlpha)
	}
	if c.LassoMaxIter < 1 {
		return errors.NewValidationError("lasso_max_iter", "must be at least 1", c.LassoMaxIter)
	}
	if !(c.LassoTol > 0) {
		return errors.NewValidationError("lasso_tol", "must be positive", c.LassoTol)
	}
	switch c.Degeneracy {
	case DegeneracyZero, DegeneracyPropagate:
	default:
		return errors.NewValidationError("degeneracy", "must be zero or propagate", c.Degeneracy)
	}
	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "warning", "error":
	default:
		return errors.NewValidationError("log_level", "must be one of debug, info, warn, error", c.LogLevel)
	}
	return nil
}

// VertexCount is the number of columns of the response matrix.
func (c Config) VertexCount() int {
	return 2 * c.VerticesPerHemisphere
}

// String renders the configuration as YAML for logs.
func (c Config) String() string {
	out, err := yaml.Marshal(c)
	if err != nil {
		return "config: " + err.Error()
	}
	return string(out)
}
