// Package errors はプロジェクト全体のエラーハンドリングと警告システムを提供します。
// 学習ループ内で回復可能な数値的問題（勾配オーバーフローなど）は警告として、
// 構成エラーやチェックポイント失敗は構造化されたエラーとして表現されます。
package errors

import (
	"fmt"
	"log"
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
		log.Printf("godet-warning: %v\n", w)
	}
	// zerologロガー（循環importを避けるため遅延初期化）
	zerologWarnFunc func(warning error)
)

// SetWarningHandler はライブラリ全体の警告ハンドラを設定します。
// GradientOverflowWarningなどの学習時警告の処理方法を制御できます。
func SetWarningHandler(handler func(w error)) {
	warningMutex.Lock()
	defer warningMutex.Unlock()
	warningHandler = handler
}

// SetZerologWarnFunc はzerolog警告関数を設定します（循環importを避けるため）。
func SetZerologWarnFunc(warnFunc func(warning error)) {
	warningMutex.Lock()
	defer warningMutex.Unlock()
	zerologWarnFunc = warnFunc
}

// Warn は警告を発生させます。
// zerologが利用可能な場合は構造化ログとして出力し、そうでなければ従来のハンドラを使用します。
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
//	学習ループの警告型
//
// ===========================================================================

// GradientOverflowWarning は混合精度学習で非有限勾配が検出され、
// そのステップのオプティマイザ更新がスキップされた場合に発生する警告です。
type GradientOverflowWarning struct {
	GlobalStep int
	OldScale   float64
	NewScale   float64
}

func (w *GradientOverflowWarning) Error() string {
	return fmt.Sprintf("non-finite gradients at step %d: optimizer update skipped, loss scale %.1f -> %.1f",
		w.GlobalStep, w.OldScale, w.NewScale)
}

// MarshalZerologObject はzerologのイベントに構造化された警告情報を追加します。
func (w *GradientOverflowWarning) MarshalZerologObject(e *zerolog.Event) {
	e.Int("global_step", w.GlobalStep).
		Float64("old_scale", w.OldScale).
		Float64("new_scale", w.NewScale).
		Str("type", "GradientOverflowWarning")
}

// NewGradientOverflowWarning は新しいGradientOverflowWarningを作成します。
func NewGradientOverflowWarning(globalStep int, oldScale, newScale float64) *GradientOverflowWarning {
	return &GradientOverflowWarning{GlobalStep: globalStep, OldScale: oldScale, NewScale: newScale}
}

// EmptyTargetWarning はフィルタリングの結果、画像内の全ボックスが
// 最小サイズ未満で破棄された場合に発生する警告です。
type EmptyTargetWarning struct {
	ImageIndex int
	MinBoxSize float64
}

func (w *EmptyTargetWarning) Error() string {
	return fmt.Sprintf("all target boxes of image %d dropped by min_box_size=%.1f filter", w.ImageIndex, w.MinBoxSize)
}

// MarshalZerologObject はzerologのイベントに構造化された警告情報を追加します。
func (w *EmptyTargetWarning) MarshalZerologObject(e *zerolog.Event) {
	e.Int("image_index", w.ImageIndex).
		Float64("min_box_size", w.MinBoxSize).
		Str("type", "EmptyTargetWarning")
}

// ===========================================================================
//
//	構造化されたエラー型
//
// ===========================================================================

// UnknownTrainerError は未知のディテクタファミリが指定された場合のエラーです。
// 構成エラーであり、リトライされることはありません。
type UnknownTrainerError struct {
	Family string
}

func (e *UnknownTrainerError) Error() string {
	return fmt.Sprintf("godet: unknown trainer family %q (supported: yolo, rtmdet, detr)", e.Family)
}

// MarshalZerologObject はzerologのイベントに構造化されたエラー情報を追加します。
func (e *UnknownTrainerError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("family", e.Family).
		Str("type", "UnknownTrainerError")
}

// NewUnknownTrainerError は新しいUnknownTrainerErrorを作成し、スタックトレースを付与します。
func NewUnknownTrainerError(family string) error {
	err := &UnknownTrainerError{Family: family}
	return errors.WithStack(err)
}

// DimensionError はテンソルの次元が期待値と異なる場合のエラーです。
type DimensionError struct {
	Op       string
	Expected int
	Got      int
	Axis     int // 0 for rows, 1 for columns
}

func (e *DimensionError) Error() string {
	return fmt.Sprintf("godet: %s: dimension mismatch on axis %d. Expected %d, got %d", e.Op, e.Axis, e.Expected, e.Got)
}

// MarshalZerologObject はzerologのイベントに構造化されたエラー情報を追加します。
func (e *DimensionError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("operation", e.Op).
		Int("expected", e.Expected).
		Int("got", e.Got).
		Int("axis", e.Axis).
		Str("type", "DimensionError")
}

// NewDimensionError は新しいDimensionErrorを作成し、スタックトレースを付与します。
func NewDimensionError(op string, expected, got, axis int) error {
	err := &DimensionError{Op: op, Expected: expected, Got: got, Axis: axis}
	return errors.WithStack(err)
}

// ValidationError は学習構成の検証に失敗した場合のエラーです。
type ValidationError struct {
	ParamName string
	Reason    string
	Value     interface{}
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("godet: validation failed for parameter '%s': %s (got: %v)", e.ParamName, e.Reason, e.Value)
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

// CheckpointError はチェックポイントの保存・読み込みに失敗した場合のエラーです。
// チェックポイントは低頻度であり、失敗時はリトライせず学習を停止させます。
type CheckpointError struct {
	Op   string // "save", "load"
	Path string
	Err  error
}

func (e *CheckpointError) Error() string {
	return fmt.Sprintf("godet: checkpoint %s failed for %s: %v", e.Op, e.Path, e.Err)
}

func (e *CheckpointError) Unwrap() error {
	return e.Err
}

// MarshalZerologObject はzerologのイベントに構造化されたエラー情報を追加します。
func (e *CheckpointError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("operation", e.Op).
		Str("path", e.Path).
		Str("type", "CheckpointError")
}

// NewCheckpointError は新しいCheckpointErrorを作成し、スタックトレースを付与します。
func NewCheckpointError(op, path string, err error) error {
	ckptErr := &CheckpointError{Op: op, Path: path, Err: err}
	return errors.WithStack(ckptErr)
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

// ===========================================================================
//
//	数値的不安定性のエラー型
//
// ===========================================================================

// NumericalInstabilityError は数値計算が不安定になった場合のエラーです。
// NaN、Inf、オーバーフロー、アンダーフローなどを検出します。
type NumericalInstabilityError struct {
	Operation string    // 発生した操作（例: "unscale_gradients", "loss"）
	Values    []float64 // 問題のある値
	Step      int       // 発生したグローバルステップ番号
}

func (e *NumericalInstabilityError) Error() string {
	valStr := ""
	for i, v := range e.Values {
		if i > 0 {
			valStr += ", "
		}
		if i >= 5 {
			valStr += "..."
			break
		}
		valStr += fmt.Sprintf("%.6g", v)
	}
	return fmt.Sprintf("godet: numerical instability detected in %s at step %d. Values: [%s]",
		e.Operation, e.Step, valStr)
}

// MarshalZerologObject はzerologのイベントに構造化されたエラー情報を追加します。
func (e *NumericalInstabilityError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("operation", e.Operation).
		Int("global_step", e.Step).
		Floats64("values", e.Values).
		Str("type", "NumericalInstabilityError")
}

// NewNumericalInstabilityError は新しいNumericalInstabilityErrorを作成します。
func NewNumericalInstabilityError(operation string, values []float64, step int) error {
	err := &NumericalInstabilityError{
		Operation: operation,
		Values:    values,
		Step:      step,
	}
	return errors.WithStack(err)
}

// ===========================================================================
//
//	共通エラー変数
//
// ===========================================================================

var (
	// ErrNotImplemented は機能が未実装の場合のエラーです。
	ErrNotImplemented = New("not implemented")

	// ErrEmptyBatch は空のバッチが渡された場合のエラーです。
	ErrEmptyBatch = New("empty batch")

	// ErrNoParameters はパラメータグループが空の場合のエラーです。
	ErrNoParameters = New("no trainable parameters")
)
