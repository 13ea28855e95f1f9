package model

import "fmt"

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: validation, presence, message, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeInvalidArgument     = "INVALID_ARGUMENT"
	ErrCodeParticipantConflict = "PARTICIPANT_CONFLICT"
	ErrCodeParticipantNotFound = "PARTICIPANT_NOT_FOUND"
	ErrCodeUnknownSender       = "UNKNOWN_SENDER"
	ErrCodeInternal            = "INTERNAL_ERROR"
)

// NewInvalidArgumentError は入力不正エラーを生成する。
func NewInvalidArgumentError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidArgument,
		Message:  fmt.Sprintf("入力が不正です: %s", reason),
		Category: "validation",
		Action:   "リクエストの内容を確認してください。",
	}
}

// NewParticipantConflictError は同名の参加者が既に在室している場合のエラーを生成する。
func NewParticipantConflictError(name string) *APIError {
	return &APIError{
		Code:     ErrCodeParticipantConflict,
		Message:  fmt.Sprintf("同じ名前の参加者が既に在室しています: %s", name),
		Category: "presence",
		Action:   "別の名前で入室してください。",
	}
}

// NewParticipantNotFoundError は参加者が在室していない場合のエラーを生成する。
func NewParticipantNotFoundError(name string) *APIError {
	return &APIError{
		Code:     ErrCodeParticipantNotFound,
		Message:  fmt.Sprintf("参加者が見つかりません: %s", name),
		Category: "presence",
		Action:   "もう一度入室してください。",
	}
}

// NewUnknownSenderError は送信者が在室していない場合のエラーを生成する。
func NewUnknownSenderError(name string) *APIError {
	return &APIError{
		Code:     ErrCodeUnknownSender,
		Message:  fmt.Sprintf("送信者が在室していません: %s", name),
		Category: "message",
		Action:   "入室してからメッセージを送信してください。",
	}
}

// NewInternalError は内部エラーを生成する。
// 詳細はログのみに記録し、利用者には一般的なメッセージを返す。
func NewInternalError() *APIError {
	return &APIError{
		Code:     ErrCodeInternal,
		Message:  "内部エラーが発生しました。",
		Category: "system",
		Action:   "しばらく待ってから再度お試しください。",
	}
}
