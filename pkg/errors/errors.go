// Package errors はプロジェクト全体のエラーハンドリングと警告システムを提供します。
// パイプラインの各段階（解析・読み込み・形状検証・フィッティング）に対応する
// 構造化されたエラー型と、処理を中断しない警告の通知経路を持ちます。
package errors

import (
	"fmt"
	"log"
	"strings"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog"
)

// ===========================================================================
//
//	グローバル警告ハンドリング
//
// ===========================================================================
var (
	warningMutex   sync.Mutex
	warningHandler = func(w error) {
		// デフォルトのハンドラは標準エラー出力にログを出す
		log.Printf("connectome-warning: %v\n", w)
	}
	// zerologロガー（循環importを避けるため遅延初期化）
	zerologWarnFunc func(warning error)
)

// SetWarningHandler は警告ハンドラを設定します。
//
// 例:
//
//	errors.SetWarningHandler(func(w error) {
//	    // 警告を無視する
//	})
func SetWarningHandler(handler func(w error)) {
	warningMutex.Lock()
	defer warningMutex.Unlock()
	warningHandler = handler
}

// SetZerologWarnFunc はzerolog警告関数を設定します（循環importを避けるため）。
// nil を渡すと従来のハンドラに戻ります。
func SetZerologWarnFunc(warnFunc func(warning error)) {
	warningMutex.Lock()
	defer warningMutex.Unlock()
	zerologWarnFunc = warnFunc
}

// Warn は警告を発生させます。
// zerologが設定されている場合は構造化ログとして出力し、そうでなければ従来のハンドラを使用します。
func Warn(w error) {
	warningMutex.Lock()
	defer warningMutex.Unlock()

	if zerologWarnFunc != nil {
		zerologWarnFunc(w)
		return
	}

	if warningHandler != nil {
		warningHandler(w)
	}
}

// ===========================================================================
//
//	警告型
//
// ===========================================================================

// ConvergenceWarning は最適化アルゴリズムが収束しなかった場合に発生する警告です。
type ConvergenceWarning struct {
	Algorithm  string
	Iterations int
	Message    string
}

func (w *ConvergenceWarning) Error() string {
	if w.Message != "" {
		return fmt.Sprintf("%s failed to converge after %d iterations: %s", w.Algorithm, w.Iterations, w.Message)
	}
	return fmt.Sprintf("%s failed to converge after %d iterations. Consider increasing max_iter or adjusting parameters.", w.Algorithm, w.Iterations)
}

// MarshalZerologObject はzerologのイベントに構造化された警告情報を追加します。
func (w *ConvergenceWarning) MarshalZerologObject(e *zerolog.Event) {
	e.Str("algorithm", w.Algorithm).
		Int("iterations", w.Iterations).
		Str("message", w.Message).
		Str("type", "ConvergenceWarning")
}

// NewConvergenceWarning は新しいConvergenceWarningを作成します。
func NewConvergenceWarning(algorithm string, iterations int, message string) *ConvergenceWarning {
	return &ConvergenceWarning{Algorithm: algorithm, Iterations: iterations, Message: message}
}

// DegeneracyWarning は統計量が非有限値（NaN, Inf）になった頂点があったことを示す警告です。
// 実行は中断されず、Policy に従って値がゼロ化またはそのまま残されます。
type DegeneracyWarning struct {
	Model    string
	Vertices int
	Total    int
	Policy   string
}

func (w *DegeneracyWarning) Error() string {
	return fmt.Sprintf("%s: %d of %d vertices produced non-finite statistics (policy: %s)",
		w.Model, w.Vertices, w.Total, w.Policy)
}

// MarshalZerologObject はzerologのイベントに構造化された警告情報を追加します。
func (w *DegeneracyWarning) MarshalZerologObject(e *zerolog.Event) {
	e.Str("model", w.Model).
		Int("vertices", w.Vertices).
		Int("total", w.Total).
		Str("policy", w.Policy).
		Str("type", "DegeneracyWarning")
}

// NewDegeneracyWarning は新しいDegeneracyWarningを作成します。
func NewDegeneracyWarning(model string, vertices, total int, policy string) *DegeneracyWarning {
	return &DegeneracyWarning{Model: model, Vertices: vertices, Total: total, Policy: policy}
}

// ===========================================================================
//
//	パイプラインのエラー型
//
// ===========================================================================

// ParseError は入力テーブル（コントラスト注釈など）の解析に失敗した場合のエラーです。
// Line と Column は1始まりで、不明な場合は0です。
type ParseError struct {
	Path   string
	Line   int
	Column int
	Reason string
}

func (e *ParseError) Error() string {
	var loc strings.Builder
	if e.Path != "" {
		loc.WriteString(e.Path)
	} else {
		loc.WriteString("<input>")
	}
	if e.Line > 0 {
		fmt.Fprintf(&loc, ":%d", e.Line)
		if e.Column > 0 {
			fmt.Fprintf(&loc, ":%d", e.Column)
		}
	}
	return fmt.Sprintf("connectome: parse error at %s: %s", loc.String(), e.Reason)
}

// MarshalZerologObject はzerologのイベントに構造化されたエラー情報を追加します。
func (e *ParseError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("path", e.Path).
		Int("line", e.Line).
		Int("column", e.Column).
		Str("reason", e.Reason).
		Str("type", "ParseError")
}

// NewParseError は新しいParseErrorを作成し、スタックトレースを付与します。
func NewParseError(path string, line, column int, reason string) error {
	err := &ParseError{Path: path, Line: line, Column: column, Reason: reason}
	return errors.WithStack(err)
}

// IOError はサーフェスファイルなどの入出力に失敗した場合のエラーです。
type IOError struct {
	Op   string
	Path string
	Err  error
}

func (e *IOError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("connectome: %s %s: %v", e.Op, e.Path, e.Err)
	}
	return fmt.Sprintf("connectome: %s %s", e.Op, e.Path)
}

func (e *IOError) Unwrap() error {
	return e.Err
}

// MarshalZerologObject はzerologのイベントに構造化されたエラー情報を追加します。
func (e *IOError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("operation", e.Op).
		Str("path", e.Path).
		Str("type", "IOError")
	if e.Err != nil {
		event.Str("cause", e.Err.Error())
	}
}

// NewIOError は新しいIOErrorを作成し、スタックトレースを付与します。
func NewIOError(op, path string, err error) error {
	ioErr := &IOError{Op: op, Path: path, Err: err}
	return errors.WithStack(ioErr)
}

// ShapeError は配列の形状が期待と異なる場合のエラーです。
// 頂点数の不一致や、応答行列と計画行列の行数の不一致を表します。
type ShapeError struct {
	Op       string
	Expected []int
	Got      []int
	Detail   string
}

func (e *ShapeError) Error() string {
	msg := fmt.Sprintf("connectome: %s: shape mismatch. Expected %v, got %v", e.Op, e.Expected, e.Got)
	if e.Detail != "" {
		msg += " (" + e.Detail + ")"
	}
	return msg
}

// MarshalZerologObject はzerologのイベントに構造化されたエラー情報を追加します。
func (e *ShapeError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("operation", e.Op).
		Ints("expected", e.Expected).
		Ints("got", e.Got).
		Str("detail", e.Detail).
		Str("type", "ShapeError")
}

// NewShapeError は新しいShapeErrorを作成し、スタックトレースを付与します。
func NewShapeError(op string, expected, got []int, detail string) error {
	err := &ShapeError{Op: op, Expected: expected, Got: got, Detail: detail}
	return errors.WithStack(err)
}

// ===========================================================================
//
//	モデルのエラー型
//
// ===========================================================================

// NotFittedError はモデルが未学習の状態で `Predict` を呼び出した場合のエラーです。
type NotFittedError struct {
	ModelName string
	Method    string
}

func (e *NotFittedError) Error() string {
	return fmt.Sprintf("connectome: %s: this model is not fitted yet. Call Fit() before using %s()", e.ModelName, e.Method)
}

// MarshalZerologObject はzerologのイベントに構造化されたエラー情報を追加します。
func (e *NotFittedError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("model_name", e.ModelName).
		Str("method", e.Method).
		Str("type", "NotFittedError")
}

// NewNotFittedError は新しいNotFittedErrorを作成し、スタックトレースを付与します。
func NewNotFittedError(modelName, method string) error {
	err := &NotFittedError{ModelName: modelName, Method: method}
	return errors.WithStack(err)
}

// DimensionError は入力データの次元が期待値と異なる場合のエラーです。
type DimensionError struct {
	Op       string
	Expected int
	Got      int
	Axis     int // 0 for rows, 1 for columns/features
}

func (e *DimensionError) Error() string {
	axisName := "features"
	if e.Axis == 0 {
		axisName = "rows"
	}
	return fmt.Sprintf("connectome: %s: dimension mismatch on axis %d (%s). Expected %d, got %d", e.Op, e.Axis, axisName, e.Expected, e.Got)
}

// MarshalZerologObject はzerologのイベントに構造化されたエラー情報を追加します。
func (e *DimensionError) MarshalZerologObject(event *zerolog.Event) {
	axisName := "features"
	if e.Axis == 0 {
		axisName = "rows"
	}
	event.Str("operation", e.Op).
		Int("expected", e.Expected).
		Int("got", e.Got).
		Int("axis", e.Axis).
		Str("axis_name", axisName).
		Str("type", "DimensionError")
}

// NewDimensionError は新しいDimensionErrorを作成し、スタックトレースを付与します。
func NewDimensionError(op string, expected, got, axis int) error {
	err := &DimensionError{Op: op, Expected: expected, Got: got, Axis: axis}
	return errors.WithStack(err)
}

// ValidationError は設定値などの検証に失敗した場合のエラーです。
type ValidationError struct {
	ParamName string
	Reason    string
	Value     interface{}
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("connectome: validation failed for parameter '%s': %s (got: %v)", e.ParamName, e.Reason, e.Value)
}

// MarshalZerologObject はzerologのイベントに構造化されたエラー情報を追加します。
func (e *ValidationError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("param_name", e.ParamName).
		Str("reason", e.Reason).
		Interface("value", e.Value).
		Str("type", "ValidationError")
}

// NewValidationError は新しいValidationErrorを作成し、スタックトレースを付与します。
func NewValidationError(param, reason string, value interface{}) error {
	err := &ValidationError{ParamName: param, Reason: reason, Value: value}
	return errors.WithStack(err)
}

// ValueError は引数の値が不適切または不正な場合に発生するエラーです。
type ValueError struct {
	Op      string
	Message string
}

func (e *ValueError) Error() string {
	return fmt.Sprintf("connectome: %s: %s", e.Op, e.Message)
}

// NewValueError は新しいValueErrorを作成し、スタックトレースを付与します。
func NewValueError(op, message string) error {
	err := &ValueError{Op: op, Message: message}
	return errors.WithStack(err)
}

// ModelError はモデルのフィッティングに関する一般的なエラーです。
type ModelError struct {
	Op   string
	Kind string
	Err  error
}

func (e *ModelError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("connectome: %s: %s: %v", e.Op, e.Kind, e.Err)
	}
	return fmt.Sprintf("connectome: %s: %s", e.Op, e.Kind)
}

func (e *ModelError) Unwrap() error {
	return e.Err
}

// NewModelError は新しいModelErrorを作成し、スタックトレースを付与します。
func NewModelError(op, kind string, err error) error {
	modelErr := &ModelError{Op: op, Kind: kind, Err: err}
	return errors.WithStack(modelErr)
}

// NumericalInstabilityError は数値計算が不安定になった場合のエラーです。
// NaN、Inf を検出します。
type NumericalInstabilityError struct {
	Operation string                 // 発生した操作（例: "design_matrix"）
	Values    []float64              // 問題のある値
	Context   map[string]interface{} // デバッグ用の追加コンテキスト情報
	Iteration int                    // 発生したイテレーション番号（行番号など）
}

func (e *NumericalInstabilityError) Error() string {
	var valStr strings.Builder
	for i, v := range e.Values {
		if i > 0 {
			valStr.WriteString(", ")
		}
		if i >= 5 {
			valStr.WriteString("...")
			break
		}
		fmt.Fprintf(&valStr, "%.6g", v)
	}
	return fmt.Sprintf("connectome: numerical instability detected in %s at iteration %d. Values: [%s]",
		e.Operation, e.Iteration, valStr.String())
}

// NewNumericalInstabilityError は新しいNumericalInstabilityErrorを作成します。
func NewNumericalInstabilityError(operation string, values []float64, iteration int) error {
	err := &NumericalInstabilityError{
		Operation: operation,
		Values:    values,
		Iteration: iteration,
		Context:   make(map[string]interface{}),
	}
	return errors.WithStack(err)
}

// ===========================================================================
//
//	cockroachdb/errors ラッパー関数
//
// ===========================================================================

// Is はエラーが特定のターゲットエラーかどうかを判定します。
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As はエラーが特定の型にキャスト可能かどうかを判定します。
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}

// Wrap は既存のエラーをメッセージ付きでラップします。
func Wrap(err error, message string) error {
	return errors.Wrap(err, message)
}

// Wrapf は既存のエラーをフォーマット文字列でラップします。
func Wrapf(err error, format string, args ...interface{}) error {
	return errors.Wrapf(err, format, args...)
}

// New は新しいエラーを作成します。
func New(message string) error {
	return errors.New(message)
}

// Newf は新しいフォーマット済みエラーを作成します。
func Newf(format string, args ...interface{}) error {
	return errors.Newf(format, args...)
}

// WithStack はエラーにスタックトレースを付与します。
func WithStack(err error) error {
	return errors.WithStack(err)
}

// Stacktrace はcockroachdb/errorsが記録したスタックトレースを返します。
// 記録がない場合は空文字列です。
func Stacktrace(err error) string {
	safeDetails := errors.GetSafeDetails(err).SafeDetails
	if len(safeDetails) > 0 {
		return safeDetails[0]
	}
	return ""
}

// ===========================================================================
//
//	共通エラー変数
//
// ===========================================================================

var (
	// ErrEmptyData は空のデータが渡された場合のエラーです。
	ErrEmptyData = New("empty data")

	// ErrSingularMatrix は特異値分解に失敗した場合のエラーです。
	ErrSingularMatrix = New("singular matrix")
)
