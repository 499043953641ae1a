package model

import "fmt"

// CommandError はコマンド実行の失敗を表す統一エラーフォーマット。
// クライアントに返す失敗エンベロープの原因カテゴリと対処方法を含む。
type CommandError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: command, auth, validation, storage
	Action   string // クライアント向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *CommandError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeUnknownCommand   = "UNKNOWN_COMMAND"
	ErrCodeInvalidPayload   = "INVALID_PAYLOAD"
	ErrCodeProjectNotFound  = "PROJECT_NOT_FOUND"
	ErrCodeUserNotFound     = "USER_NOT_FOUND"
	ErrCodeObjectNotFound   = "OBJECT_NOT_FOUND"
	ErrCodeBehaviorNotFound = "BEHAVIOR_NOT_FOUND"
	ErrCodeAuthFailed       = "AUTH_FAILED"
	ErrCodeUserExists       = "USER_EXISTS"
	ErrCodeStorageError     = "STORAGE_ERROR"
)

// NewUnknownCommandError は未登録コマンドエラーを生成する。
func NewUnknownCommandError(name string) *CommandError {
	return &CommandError{
		Code:     ErrCodeUnknownCommand,
		Message:  fmt.Sprintf("未登録のコマンドです: %s", name),
		Category: "command",
		Action:   "コマンド名を確認してください。",
	}
}

// NewInvalidPayloadError は不正なペイロードエラーを生成する。
func NewInvalidPayloadError(reason string) *CommandError {
	return &CommandError{
		Code:     ErrCodeInvalidPayload,
		Message:  fmt.Sprintf("ペイロードを解釈できません: %s", reason),
		Category: "validation",
		Action:   "送信メッセージの形式を確認してください。",
	}
}

// NewProjectNotFoundError はプロジェクト未検出エラーを生成する。
func NewProjectNotFoundError(projectID string) *CommandError {
	return &CommandError{
		Code:     ErrCodeProjectNotFound,
		Message:  fmt.Sprintf("指定されたプロジェクトが見つかりません: %s", projectID),
		Category: "command",
		Action:   "プロジェクトIDを確認してください。",
	}
}

// NewUserNotFoundError はユーザー未検出エラーを生成する。
func NewUserNotFoundError(username string) *CommandError {
	return &CommandError{
		Code:     ErrCodeUserNotFound,
		Message:  fmt.Sprintf("指定されたユーザーが見つかりません: %s", username),
		Category: "auth",
		Action:   "ユーザー名を確認してください。",
	}
}

// NewObjectNotFoundError はオブジェクト未検出エラーを生成する。
func NewObjectNotFoundError(objectID string) *CommandError {
	return &CommandError{
		Code:     ErrCodeObjectNotFound,
		Message:  fmt.Sprintf("指定されたオブジェクトが見つかりません: %s", objectID),
		Category: "command",
		Action:   "オブジェクトIDを確認してください。",
	}
}

// NewBehaviorNotFoundError はビヘイビア未検出エラーを生成する。
func NewBehaviorNotFoundError(behaviorID string) *CommandError {
	return &CommandError{
		Code:     ErrCodeBehaviorNotFound,
		Message:  fmt.Sprintf("指定されたビヘイビアが見つかりません: %s", behaviorID),
		Category: "command",
		Action:   "ビヘイビアIDを確認してください。",
	}
}

// NewAuthFailedError は認証失敗エラーを生成する。
// ユーザー不在とパスワード不一致を区別しない（列挙攻撃対策）。
func NewAuthFailedError() *CommandError {
	return &CommandError{
		Code:     ErrCodeAuthFailed,
		Message:  "ユーザー名またはパスワードが正しくありません。",
		Category: "auth",
		Action:   "資格情報を確認して再度ログインしてください。",
	}
}

// NewUserExistsError はユーザー名重複エラーを生成する。
func NewUserExistsError(username string) *CommandError {
	return &CommandError{
		Code:     ErrCodeUserExists,
		Message:  fmt.Sprintf("このユーザー名は既に使われています: %s", username),
		Category: "auth",
		Action:   "別のユーザー名を指定してください。",
	}
}

// NewStorageError はストア障害エラーを生成する。
// 元エラーの詳細はログにのみ残し、クライアントには一般的なメッセージを返す。
func NewStorageError() *CommandError {
	return &CommandError{
		Code:     ErrCodeStorageError,
		Message:  "ストレージ操作に失敗しました。",
		Category: "storage",
		Action:   "しばらく待ってから再度お試しください。",
	}
}
