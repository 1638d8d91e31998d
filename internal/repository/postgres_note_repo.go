package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/hitoshi/securenotes/internal/model"
)

// PostgresNoteRepo はPostgreSQLを使用したメモリポジトリ。
type PostgresNoteRepo struct {
	db *sql.DB
}

// NewPostgresNoteRepo はPostgresNoteRepoを生成する。
func NewPostgresNoteRepo(db *sql.DB) *PostgresNoteRepo {
	return &PostgresNoteRepo{db: db}
}

const noteColumns = `id, title, content, owner_id, created_at, updated_at`

// Create はメモを作成する。
func (r *PostgresNoteRepo) Create(ctx context.Context, note *model.Note) error {
	err := r.db.QueryRowContext(ctx,
		`INSERT INTO notes (title, content, owner_id)
		 VALUES ($1, $2, $3)
		 RETURNING id, created_at, updated_at`,
		note.Title, note.Content, note.OwnerID,
	).Scan(&note.ID, &note.CreatedAt, &note.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert note: %w", err)
	}
	return nil
}

// FindByID は指定IDのメモを取得する。見つからない場合はnilを返す。
func (r *PostgresNoteRepo) FindByID(ctx context.Context, id int64) (*model.Note, error) {
	note := &model.Note{}
	err := r.db.QueryRowContext(ctx,
		`SELECT `+noteColumns+` FROM notes WHERE id = $1`,
		id,
	).Scan(&note.ID, &note.Title, &note.Content, &note.OwnerID, &note.CreatedAt, &note.UpdatedAt)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find note by ID: %w", err)
	}

	return note, nil
}

// ListByOwner は所有者のメモをcreated_at降順で返す。
func (r *PostgresNoteRepo) ListByOwner(ctx context.Context, ownerID int64) ([]*model.Note, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+noteColumns+` FROM notes
		 WHERE owner_id = $1
		 ORDER BY created_at DESC, id DESC`,
		ownerID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list notes by owner: %w", err)
	}
	defer rows.Close()

	return scanNotes(rows)
}

// ListAll は全メモをcreated_at降順で返す。
func (r *PostgresNoteRepo) ListAll(ctx context.Context) ([]*model.Note, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+noteColumns+` FROM notes ORDER BY created_at DESC, id DESC`,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list notes: %w", err)
	}
	defer rows.Close()

	return scanNotes(rows)
}

// Update はタイトルと本文を更新する。
func (r *PostgresNoteRepo) Update(ctx context.Context, id int64, title, content string) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE notes SET title = $1, content = $2, updated_at = now() WHERE id = $3`,
		title, content, id,
	)
	if err != nil {
		return fmt.Errorf("failed to update note: %w", err)
	}
	return requireAffected(result)
}

// Delete はメモを削除する。
func (r *PostgresNoteRepo) Delete(ctx context.Context, id int64) error {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM notes WHERE id = $1`,
		id,
	)
	if err != nil {
		return fmt.Errorf("failed to delete note: %w", err)
	}
	return requireAffected(result)
}

func scanNotes(rows *sql.Rows) ([]*model.Note, error) {
	notes := make([]*model.Note, 0)
	for rows.Next() {
		n := &model.Note{}
		if err := rows.Scan(&n.ID, &n.Title, &n.Content, &n.OwnerID, &n.CreatedAt, &n.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan note: %w", err)
		}
		notes = append(notes, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate notes: %w", err)
	}
	return notes, nil
}

// requireAffected は更新件数が0件の場合にErrNotFoundを返す。
func requireAffected(result sql.Result) error {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// compile-time interface check
var _ NoteRepository = (*PostgresNoteRepo)(nil)
