package auth

import (
	"fmt"
	"unicode/utf8"
)

// ユーザー名・パスワードの長さ制約
const (
	UsernameMinLength = 3
	UsernameMaxLength = 20
	PasswordMinLength = 6
	// bcryptが扱える入力の上限（バイト数）
	PasswordMaxBytes = 72
)

// ValidateCredentials は登録時のユーザー名とパスワードを検証する。
// エラーがあればフィールド名をキーとしたメッセージを返す。
func ValidateCredentials(username, password string) map[string]string {
	fields := make(map[string]string)

	if n := utf8.RuneCountInString(username); n < UsernameMinLength || n > UsernameMaxLength {
		fields["username"] = fmt.Sprintf("ユーザー名は%d〜%d文字で入力してください。", UsernameMinLength, UsernameMaxLength)
	}

	switch {
	case utf8.RuneCountInString(password) < PasswordMinLength:
		fields["password"] = fmt.Sprintf("パスワードは%d文字以上で入力してください。", PasswordMinLength)
	case len(password) > PasswordMaxBytes:
		fields["password"] = fmt.Sprintf("パスワードは%dバイト以内で入力してください。", PasswordMaxBytes)
	}

	return fields
}
