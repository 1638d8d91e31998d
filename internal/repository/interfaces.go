// Package repository はデータ永続化のインターフェースを定義する。
// すべてのクエリはプレースホルダ（$1, $2, ...）によるパラメータバインドを使用し、
// ユーザー入力を文字列連結でSQLに埋め込まない。
package repository

import (
	"context"
	"errors"
	"time"

	"github.com/hitoshi/securenotes/internal/model"
)

var (
	// ErrNotFound は更新・削除対象の行が存在しない場合に返される。
	ErrNotFound = errors.New("record not found")

	// ErrDuplicateUsername はusersテーブルのユニーク制約違反時に返される。
	ErrDuplicateUsername = errors.New("username already exists")
)

// UserRepository はユーザーデータの永続化インターフェース。
type UserRepository interface {
	// Create はユーザーを作成し、採番されたIDとcreated_atをuserに設定する。
	// ユーザー名が既に存在する場合はErrDuplicateUsernameを返す。
	Create(ctx context.Context, user *model.User) error

	// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id int64) (*model.User, error)

	// FindByUsername はユーザー名の完全一致（大文字小文字を区別）で検索する。
	// 見つからない場合はnilを返す。
	FindByUsername(ctx context.Context, username string) (*model.User, error)

	// List は全ユーザーをID昇順で返す。
	List(ctx context.Context) ([]*model.User, error)

	// SetAdmin は管理者フラグを更新する。対象がない場合はErrNotFoundを返す。
	SetAdmin(ctx context.Context, username string, isAdmin bool) error
}

// SessionRepository はセッションデータの永続化インターフェース。
type SessionRepository interface {
	// Create はセッションを作成する。
	Create(ctx context.Context, session *model.Session) error
	// FindByID は指定IDのセッションを取得する。期限切れの場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Session, error)
	// Touch はセッションの最終アクセス時刻を更新する。
	Touch(ctx context.Context, id string, seenAt time.Time) error
	// DeleteByID は指定IDのセッションを削除する。
	DeleteByID(ctx context.Context, id string) error
}

// NoteRepository はメモデータの永続化インターフェース。
// 所有者チェックは行わない。認可はaccessパッケージの責務とする。
type NoteRepository interface {
	// Create はメモを作成し、採番されたIDとタイムスタンプをnoteに設定する。
	Create(ctx context.Context, note *model.Note) error

	// FindByID は指定IDのメモを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id int64) (*model.Note, error)

	// ListByOwner は所有者のメモをcreated_at降順で返す。
	ListByOwner(ctx context.Context, ownerID int64) ([]*model.Note, error)

	// ListAll は全メモをcreated_at降順で返す。管理者用。
	ListAll(ctx context.Context) ([]*model.Note, error)

	// Update はタイトルと本文を更新する。owner_idは変更しない。
	// 対象がない場合はErrNotFoundを返す。
	Update(ctx context.Context, id int64, title, content string) error

	// Delete はメモを削除する。対象がない場合はErrNotFoundを返す。
	Delete(ctx context.Context, id int64) error
}
