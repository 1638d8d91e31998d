// Package handler はHTTPハンドラーを提供する。
package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/hitoshi/securenotes/internal/metrics"
	"github.com/hitoshi/securenotes/internal/middleware"
	"github.com/hitoshi/securenotes/internal/model"
)

// AuthServiceInterface は認証ハンドラーが必要とするサービスインターフェース。
type AuthServiceInterface interface {
	Register(ctx context.Context, username, password string) (int64, error)
	Login(ctx context.Context, username, password string) (string, error)
	EndSession(ctx context.Context, token string) error
}

// AuthHandlerConfig は認証ハンドラーの設定。
type AuthHandlerConfig struct {
	CookieDomain  string
	CookieSecure  bool
	SessionMaxAge int // セッションCookieの有効期間（秒）
}

// AuthHandler はユーザー登録・ログイン関連のHTTPハンドラー。
type AuthHandler struct {
	service AuthServiceInterface
	config  AuthHandlerConfig
	metrics metrics.MetricsCollector
}

// NewAuthHandler はAuthHandlerを生成する。
func NewAuthHandler(service AuthServiceInterface, config AuthHandlerConfig, collector metrics.MetricsCollector) *AuthHandler {
	if collector == nil {
		collector = metrics.Nop{}
	}
	return &AuthHandler{
		service: service,
		config:  config,
		metrics: collector,
	}
}

// credentialsRequest は登録・ログインリクエストのボディ。
type credentialsRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (c *credentialsRequest) bindForm(r *http.Request) {
	c.Username = r.PostForm.Get("username")
	c.Password = r.PostForm.Get("password")
}

// userResponse はユーザー情報のAPIレスポンス。
type userResponse struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	IsAdmin  bool   `json:"is_admin"`
}

// Register はユーザー登録を処理する。
// POST /auth/register
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := decodeRequest(r, &req); err != nil {
		handleServiceError(w, r, err)
		return
	}

	userID, err := h.service.Register(r.Context(), req.Username, req.Password)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	h.metrics.RecordRegistration()
	writeJSON(w, http.StatusCreated, successResponse{
		Message:  "登録が完了しました。ログインしてください。",
		Redirect: "/auth/login",
		Data:     map[string]int64{"id": userID},
	})
}

// Login はログインを処理し、HTTP Only Cookieにセッショントークンを設定する。
// POST /auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := decodeRequest(r, &req); err != nil {
		handleServiceError(w, r, err)
		return
	}

	token, err := h.service.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		if isErrorCode(err, model.ErrCodeAuthenticationFailed) {
			h.metrics.RecordLogin(false)
		}
		handleServiceError(w, r, err)
		return
	}
	h.metrics.RecordLogin(true)

	// ログイン前のセッションは引き継がない
	if cookie, cookieErr := r.Cookie(middleware.SessionCookieName); cookieErr == nil && cookie.Value != "" {
		if endErr := h.service.EndSession(r.Context(), cookie.Value); endErr != nil {
			slog.Warn("failed to end previous session", slog.String("error", endErr.Error()))
		}
	}

	h.setSessionCookie(w, token, h.config.SessionMaxAge)
	writeJSON(w, http.StatusOK, successResponse{
		Message:  "ログインしました。",
		Redirect: "/notes",
	})
}

// Logout はセッションを破棄する。
// POST /auth/logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	cookie, err := r.Cookie(middleware.SessionCookieName)
	if err == nil && cookie.Value != "" {
		if logoutErr := h.service.EndSession(r.Context(), cookie.Value); logoutErr != nil {
			slog.Error("failed to logout", slog.String("error", logoutErr.Error()))
			// ログアウト失敗してもCookieはクリアする
		}
	}

	h.setSessionCookie(w, "", -1)
	writeJSON(w, http.StatusOK, successResponse{
		Message:  "ログアウトしました。",
		Redirect: "/",
	})
}

// Me は現在のログインユーザー情報を返す。
// GET /auth/me
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	auth, ok := model.AsAuthenticated(middleware.PrincipalFromContext(r.Context()))
	if !ok {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewLoginRequiredError())
		return
	}

	writeJSON(w, http.StatusOK, successResponse{
		Data: userResponse{
			ID:       auth.UserID,
			Username: auth.Username,
			IsAdmin:  auth.IsAdmin,
		},
	})
}

// setSessionCookie はセッションCookieを設定する。maxAgeが負の場合は削除する。
func (h *AuthHandler) setSessionCookie(w http.ResponseWriter, token string, maxAge int) {
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookieName,
		Value:    token,
		Path:     "/",
		Domain:   h.config.CookieDomain,
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   h.config.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}
