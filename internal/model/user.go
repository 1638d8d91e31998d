// Package model はドメインモデルを定義する。
package model

import "time"

// User はサービス利用ユーザーを表す。
// PasswordHashはbcryptハッシュであり、平文パスワードは保持しない。
type User struct {
	ID           int64
	Username     string
	PasswordHash string
	IsAdmin      bool
	CreatedAt    time.Time
}

// Session はユーザーのログインセッションを表す。
// ExpiresAtは絶対有効期限、LastSeenAtはアイドルタイムアウト判定に使用する。
type Session struct {
	ID         string
	UserID     int64
	ExpiresAt  time.Time
	LastSeenAt time.Time
	CreatedAt  time.Time
}
