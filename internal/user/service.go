// Package user はユーザー管理（管理者向け機能）のドメインロジックを提供する。
package user

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/hitoshi/securenotes/internal/access"
	"github.com/hitoshi/securenotes/internal/model"
	"github.com/hitoshi/securenotes/internal/repository"
)

// NoteLister は全メモ一覧取得インターフェース。
type NoteLister interface {
	ListAll(ctx context.Context) ([]*model.Note, error)
}

// Service はユーザー管理のサービス層。
// 管理者によるユーザー・メモの一覧取得と管理者権限の付与を提供する。
type Service struct {
	userRepo   repository.UserRepository
	noteLister NoteLister
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(userRepo repository.UserRepository, noteLister NoteLister) *Service {
	return &Service{
		userRepo:   userRepo,
		noteLister: noteLister,
	}
}

// ListUsers は全ユーザーを返す。管理者のみ実行できる。
func (s *Service) ListUsers(ctx context.Context, p model.Principal) ([]*model.User, error) {
	if err := access.RequireAdmin(p); err != nil {
		return nil, err
	}

	users, err := s.userRepo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("ユーザー一覧の取得に失敗しました: %w", err)
	}
	return users, nil
}

// ListAllNotes は全ユーザーのメモを返す。管理者のみ実行できる。
func (s *Service) ListAllNotes(ctx context.Context, p model.Principal) ([]*model.Note, error) {
	if err := access.RequireAdmin(p); err != nil {
		return nil, err
	}

	notes, err := s.noteLister.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("メモ一覧の取得に失敗しました: %w", err)
	}
	return notes, nil
}

// Promote はユーザーに管理者権限を付与する。CLIからのみ呼び出される。
func (s *Service) Promote(ctx context.Context, username string) error {
	if err := s.userRepo.SetAdmin(ctx, username, true); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return model.NewUserNotFoundError()
		}
		return fmt.Errorf("管理者権限の付与に失敗しました: %w", err)
	}

	slog.Info("user promoted to admin", slog.String("username", username))
	return nil
}

// ListUsersUnchecked はアクセス制御なしで全ユーザーを返す。CLIの users コマンド用。
func (s *Service) ListUsersUnchecked(ctx context.Context) ([]*model.User, error) {
	users, err := s.userRepo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("ユーザー一覧の取得に失敗しました: %w", err)
	}
	return users, nil
}
