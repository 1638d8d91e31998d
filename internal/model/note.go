package model

import "time"

// Note はユーザーが作成したメモを表す。
// OwnerIDは作成時に設定され、以降変更されない。
type Note struct {
	ID        int64
	Title     string
	Content   string
	OwnerID   int64
	CreatedAt time.Time
	UpdatedAt time.Time
}

// メモの入力制約（文字数はルーン単位）
const (
	NoteTitleMaxLength   = 200
	NoteContentMaxLength = 10000
)
