// Package auth はユーザー登録、パスワード検証、セッション管理を提供する。
package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/hitoshi/securenotes/internal/model"
	"github.com/hitoshi/securenotes/internal/repository"
	"golang.org/x/crypto/bcrypt"
)

// ServiceConfig は認証サービスの設定。
type ServiceConfig struct {
	BcryptCost    int           // bcryptのコスト係数
	SessionMaxAge int           // セッション有効期間（秒）
	IdleTimeout   time.Duration // 最終アクセスからの無操作タイムアウト。0で無効
	Secret        []byte        // セッショントークンの署名鍵
}

// Service は認証に関するビジネスロジックを提供する。
type Service struct {
	userRepo    repository.UserRepository
	sessionRepo repository.SessionRepository
	config      ServiceConfig
	tokens      *TokenCodec
	now         func() time.Time

	dummyOnce sync.Once
	dummyHash []byte
}

// NewService はServiceを生成する。
func NewService(
	userRepo repository.UserRepository,
	sessionRepo repository.SessionRepository,
	config ServiceConfig,
) *Service {
	if config.BcryptCost == 0 {
		config.BcryptCost = DefaultBcryptCost
	}
	return &Service{
		userRepo:    userRepo,
		sessionRepo: sessionRepo,
		config:      config,
		tokens:      NewTokenCodec(config.Secret),
		now:         time.Now,
	}
}

// Register はユーザーを登録し、採番されたユーザーIDを返す。
// ユーザー名の前後の空白は取り除いて保存する。
// 入力不備はINVALID_INPUT、ユーザー名重複はDUPLICATE_USERNAMEのAPIErrorを返す。
func (s *Service) Register(ctx context.Context, username, password string) (int64, error) {
	return s.register(ctx, username, password, false)
}

// RegisterAdmin は管理者権限付きでユーザーを登録する。
// 権限は作成と同じ書き込みで保存される。
func (s *Service) RegisterAdmin(ctx context.Context, username, password string) (int64, error) {
	return s.register(ctx, username, password, true)
}

func (s *Service) register(ctx context.Context, username, password string, isAdmin bool) (int64, error) {
	username = strings.TrimSpace(username)
	if fields := ValidateCredentials(username, password); len(fields) > 0 {
		return 0, model.NewInvalidInputError(fields)
	}

	hash, err := hashPassword(password, s.config.BcryptCost)
	if err != nil {
		return 0, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &model.User{
		Username:     username,
		PasswordHash: hash,
		IsAdmin:      isAdmin,
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicateUsername) {
			return 0, model.NewDuplicateUsernameError()
		}
		return 0, fmt.Errorf("failed to create user: %w", err)
	}

	slog.Info("user registered",
		slog.Int64("user_id", user.ID),
		slog.String("username", user.Username),
		slog.Bool("is_admin", user.IsAdmin),
	)
	return user.ID, nil
}

// Verify はユーザー名とパスワードを照合する。ユーザー名は完全一致で検索する。
// ユーザーが存在しない場合もダミーハッシュと比較し、応答時間の差を生じさせない。
func (s *Service) Verify(ctx context.Context, username, password string) (int64, bool, error) {
	user, err := s.userRepo.FindByUsername(ctx, username)
	if err != nil {
		return 0, false, fmt.Errorf("failed to find user: %w", err)
	}

	if user == nil {
		_ = bcrypt.CompareHashAndPassword(s.dummy(), []byte(password))
		return 0, false, nil
	}

	if !checkPassword(user.PasswordHash, password) {
		return 0, false, nil
	}
	return user.ID, true, nil
}

// Login はパスワードを検証し、成功すればセッションを開始してトークンを返す。
// 失敗理由にかかわらずAUTHENTICATION_FAILEDを返す。
func (s *Service) Login(ctx context.Context, username, password string) (string, error) {
	userID, ok, err := s.Verify(ctx, username, password)
	if err != nil {
		return "", err
	}
	if !ok {
		slog.Warn("login failed", slog.String("username", strings.TrimSpace(username)))
		return "", model.NewAuthenticationFailedError()
	}

	token, err := s.StartSession(ctx, userID)
	if err != nil {
		return "", err
	}

	slog.Info("user logged in", slog.Int64("user_id", userID))
	return token, nil
}

// StartSession はセッションを作成し、署名済みトークンを返す。
// トークンに含まれるのはセッションIDのみで、ユーザーIDは含まれない。
func (s *Service) StartSession(ctx context.Context, userID int64) (string, error) {
	sessionID, err := generateSessionID()
	if err != nil {
		return "", fmt.Errorf("failed to generate session ID: %w", err)
	}

	now := s.now()
	session := &model.Session{
		ID:         sessionID,
		UserID:     userID,
		ExpiresAt:  now.Add(time.Duration(s.config.SessionMaxAge) * time.Second),
		LastSeenAt: now,
		CreatedAt:  now,
	}

	if err := s.sessionRepo.Create(ctx, session); err != nil {
		return "", fmt.Errorf("failed to save session: %w", err)
	}

	token, err := s.tokens.Sign(session.ID, now, session.ExpiresAt)
	if err != nil {
		return "", fmt.Errorf("failed to sign session token: %w", err)
	}
	return token, nil
}

// Resolve はトークンからPrincipalを解決する。
// トークンが無効、セッションが存在しない・期限切れ、ユーザーが存在しない場合はAnonymousを返す。
// エラーを返すのはストアの障害時のみ。
func (s *Service) Resolve(ctx context.Context, token string) (model.Principal, error) {
	if token == "" {
		return model.Anonymous{}, nil
	}

	sessionID, err := s.tokens.Parse(token)
	if err != nil {
		slog.Debug("invalid session token", slog.String("error", err.Error()))
		return model.Anonymous{}, nil
	}

	session, err := s.sessionRepo.FindByID(ctx, sessionID)
	if err != nil {
		return model.Anonymous{}, fmt.Errorf("failed to find session: %w", err)
	}
	if session == nil {
		return model.Anonymous{}, nil
	}

	now := s.now()
	if s.config.IdleTimeout > 0 && now.Sub(session.LastSeenAt) > s.config.IdleTimeout {
		if err := s.sessionRepo.DeleteByID(ctx, session.ID); err != nil {
			return model.Anonymous{}, fmt.Errorf("failed to delete idle session: %w", err)
		}
		slog.Info("session expired by idle timeout", slog.Int64("user_id", session.UserID))
		return model.Anonymous{}, nil
	}

	user, err := s.userRepo.FindByID(ctx, session.UserID)
	if err != nil {
		return model.Anonymous{}, fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil {
		return model.Anonymous{}, nil
	}

	if err := s.sessionRepo.Touch(ctx, session.ID, now); err != nil {
		slog.Warn("failed to touch session",
			slog.Int64("user_id", user.ID),
			slog.String("error", err.Error()),
		)
	}

	return model.Authenticated{
		UserID:   user.ID,
		Username: user.Username,
		IsAdmin:  user.IsAdmin,
	}, nil
}

// EndSession はトークンが指すセッションを破棄する。
// 無効なトークンの場合は何もしない。
func (s *Service) EndSession(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}

	sessionID, err := s.tokens.Parse(token)
	if err != nil {
		return nil
	}

	if err := s.sessionRepo.DeleteByID(ctx, sessionID); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}

	slog.Info("user logged out")
	return nil
}

// dummy はユーザー不在時の比較に使うハッシュを返す。
func (s *Service) dummy() []byte {
	s.dummyOnce.Do(func() {
		hash, err := bcrypt.GenerateFromPassword([]byte("dummy-password-for-timing"), s.config.BcryptCost)
		if err != nil {
			slog.Error("failed to generate dummy hash", slog.String("error", err.Error()))
			return
		}
		s.dummyHash = hash
	})
	return s.dummyHash
}

// generateSessionID は暗号的に安全なセッションIDを生成する。
func generateSessionID() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
