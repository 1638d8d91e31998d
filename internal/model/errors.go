// Package model はドメインモデルを定義する。
package model

import "fmt"

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string            // エラーコード
	Message  string            // エラーメッセージ
	Category string            // カテゴリ: auth, validation, note, system
	Action   string            // ユーザー向け対処方法
	Fields   map[string]string // フィールド単位のバリデーションメッセージ
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeInvalidInput         = "INVALID_INPUT"
	ErrCodeDuplicateUsername    = "DUPLICATE_USERNAME"
	ErrCodeAuthenticationFailed = "AUTHENTICATION_FAILED"
	ErrCodeLoginRequired        = "LOGIN_REQUIRED"
	ErrCodeForbidden            = "FORBIDDEN"
	ErrCodeNotFound             = "NOT_FOUND"
	ErrCodeRateLimited          = "RATE_LIMITED"
	ErrCodeCSRFFailed           = "CSRF_FAILED"
	ErrCodePayloadTooLarge      = "PAYLOAD_TOO_LARGE"
	ErrCodeInternal             = "INTERNAL_ERROR"
)

// NewInvalidInputError は入力値エラーを生成する。
// fieldsにはフィールド名をキーとしたメッセージを渡す。
func NewInvalidInputError(fields map[string]string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidInput,
		Message:  "入力内容に誤りがあります。",
		Category: "validation",
		Action:   "各項目のメッセージを確認して再入力してください。",
		Fields:   fields,
	}
}

// NewDuplicateUsernameError はユーザー名重複エラーを生成する。
func NewDuplicateUsernameError() *APIError {
	return &APIError{
		Code:     ErrCodeDuplicateUsername,
		Message:  "このユーザー名は既に使用されています。",
		Category: "validation",
		Action:   "別のユーザー名を選んでください。",
		Fields:   map[string]string{"username": "このユーザー名は既に使用されています。"},
	}
}

// NewAuthenticationFailedError は認証失敗エラーを生成する。
// ユーザー名の存在有無を推測されないよう、原因は区別しない。
func NewAuthenticationFailedError() *APIError {
	return &APIError{
		Code:     ErrCodeAuthenticationFailed,
		Message:  "ユーザー名またはパスワードが正しくありません。",
		Category: "auth",
		Action:   "入力内容を確認して再度ログインしてください。",
	}
}

// NewLoginRequiredError はログインが必要な操作を未認証で行った場合のエラーを生成する。
func NewLoginRequiredError() *APIError {
	return &APIError{
		Code:     ErrCodeLoginRequired,
		Message:  "認証が必要です。",
		Category: "auth",
		Action:   "ログインしてください。",
	}
}

// NewForbiddenError はアクセス権限がない場合のエラーを生成する。
func NewForbiddenError() *APIError {
	return &APIError{
		Code:     ErrCodeForbidden,
		Message:  "この操作を行う権限がありません。",
		Category: "auth",
		Action:   "自分が作成したメモのみ操作できます。",
	}
}

// NewNoteNotFoundError はメモが見つからない場合のエラーを生成する。
func NewNoteNotFoundError(noteID string) *APIError {
	return &APIError{
		Code:     ErrCodeNotFound,
		Message:  fmt.Sprintf("指定されたメモが見つかりません: %s", noteID),
		Category: "note",
		Action:   "メモIDを確認してください。",
	}
}

// NewUserNotFoundError はユーザーが見つからない場合のエラーを生成する。
func NewUserNotFoundError() *APIError {
	return &APIError{
		Code:     ErrCodeNotFound,
		Message:  "ユーザーが見つかりません。",
		Category: "auth",
		Action:   "ユーザー名を確認してください。",
	}
}

// NewRateLimitedError はレート制限超過エラーを生成する。
func NewRateLimitedError() *APIError {
	return &APIError{
		Code:     ErrCodeRateLimited,
		Message:  "リクエストが多すぎます。",
		Category: "system",
		Action:   "しばらく待ってから再度お試しください。",
	}
}

// NewCSRFFailedError はCSRFトークン検証失敗エラーを生成する。
func NewCSRFFailedError() *APIError {
	return &APIError{
		Code:     ErrCodeCSRFFailed,
		Message:  "CSRFトークンの検証に失敗しました。",
		Category: "auth",
		Action:   "ページを再読み込みしてから再度お試しください。",
	}
}

// NewPayloadTooLargeError はリクエストボディが上限を超えた場合のエラーを生成する。
func NewPayloadTooLargeError() *APIError {
	return &APIError{
		Code:     ErrCodePayloadTooLarge,
		Message:  "リクエストが大きすぎます。",
		Category: "validation",
		Action:   "タイトルと本文の長さを確認してください。",
	}
}

// NewInternalError は内部エラーを生成する。
// 詳細はログのみに記録し、ユーザーには一般的なメッセージを返す。
func NewInternalError() *APIError {
	return &APIError{
		Code:     ErrCodeInternal,
		Message:  "内部エラーが発生しました。",
		Category: "system",
		Action:   "しばらく待ってから再度お試しください。",
	}
}
