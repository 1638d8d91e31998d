// Package note はメモ管理のドメインロジックを提供する。
// 入力検証、アクセス制御、永続化の順に処理し、認可されない操作はストアに到達しない。
package note

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/hitoshi/securenotes/internal/access"
	"github.com/hitoshi/securenotes/internal/model"
	"github.com/hitoshi/securenotes/internal/repository"
)

// Service はメモ管理のサービス層。
type Service struct {
	noteRepo repository.NoteRepository
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(noteRepo repository.NoteRepository) *Service {
	return &Service{noteRepo: noteRepo}
}

// Create は認証済みユーザーを所有者としてメモを作成する。
func (s *Service) Create(ctx context.Context, p model.Principal, in Input) (*model.Note, error) {
	in = in.Normalize()
	if err := Validate(in); err != nil {
		return nil, err
	}

	owner, err := access.RequireAuthenticated(p)
	if err != nil {
		return nil, err
	}

	note := &model.Note{
		Title:   in.Title,
		Content: in.Content,
		OwnerID: owner.UserID,
	}
	if err := s.noteRepo.Create(ctx, note); err != nil {
		return nil, fmt.Errorf("メモの作成に失敗しました: %w", err)
	}

	slog.Info("note created",
		slog.Int64("user_id", owner.UserID),
		slog.Int64("note_id", note.ID),
	)
	return note, nil
}

// Get はメモを取得する。閲覧権限がない場合はFORBIDDENを返す。
func (s *Service) Get(ctx context.Context, p model.Principal, id int64) (*model.Note, error) {
	note, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := s.require(access.CanView, p, note); err != nil {
		return nil, err
	}
	return note, nil
}

// ListMine は認証済みユーザー自身のメモをcreated_at降順で返す。
func (s *Service) ListMine(ctx context.Context, p model.Principal) ([]*model.Note, error) {
	owner, err := access.RequireAuthenticated(p)
	if err != nil {
		return nil, err
	}

	notes, err := s.noteRepo.ListByOwner(ctx, owner.UserID)
	if err != nil {
		return nil, fmt.Errorf("メモ一覧の取得に失敗しました: %w", err)
	}
	return notes, nil
}

// Update はメモのタイトルと本文を更新する。所有者は変更されない。
// 権限の判定を入力検証より先に行う。
func (s *Service) Update(ctx context.Context, p model.Principal, id int64, in Input) (*model.Note, error) {
	note, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := s.require(access.CanModify, p, note); err != nil {
		return nil, err
	}

	in = in.Normalize()
	if err := Validate(in); err != nil {
		return nil, err
	}

	if err := s.noteRepo.Update(ctx, id, in.Title, in.Content); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, model.NewNoteNotFoundError(strconv.FormatInt(id, 10))
		}
		return nil, fmt.Errorf("メモの更新に失敗しました: %w", err)
	}

	note.Title = in.Title
	note.Content = in.Content
	note.UpdatedAt = time.Now()
	return note, nil
}

// Delete はメモを削除する。存在しないIDの場合はNOT_FOUNDを返す。
func (s *Service) Delete(ctx context.Context, p model.Principal, id int64) error {
	note, err := s.find(ctx, id)
	if err != nil {
		return err
	}

	if err := s.require(access.CanModify, p, note); err != nil {
		return err
	}

	if err := s.noteRepo.Delete(ctx, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return model.NewNoteNotFoundError(strconv.FormatInt(id, 10))
		}
		return fmt.Errorf("メモの削除に失敗しました: %w", err)
	}

	slog.Info("note deleted", slog.Int64("note_id", id))
	return nil
}

func (s *Service) find(ctx context.Context, id int64) (*model.Note, error) {
	note, err := s.noteRepo.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("メモの取得に失敗しました: %w", err)
	}
	if note == nil {
		return nil, model.NewNoteNotFoundError(strconv.FormatInt(id, 10))
	}
	return note, nil
}

// require はアクセス制御を行い、拒否した場合はセキュリティイベントとして記録する。
func (s *Service) require(pred access.Predicate, p model.Principal, note *model.Note) error {
	if err := access.Require(pred, p, note); err != nil {
		attrs := []any{slog.Int64("note_id", note.ID)}
		if auth, ok := model.AsAuthenticated(p); ok {
			attrs = append(attrs, slog.Int64("user_id", auth.UserID))
		}
		slog.Warn("forbidden note access", attrs...)
		return err
	}
	return nil
}
