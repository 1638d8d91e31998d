package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/hitoshi/securenotes/internal/metrics"
	"github.com/hitoshi/securenotes/internal/middleware"
	"github.com/hitoshi/securenotes/internal/model"
	"github.com/hitoshi/securenotes/internal/security"
)

// AdminServiceInterface は管理者ハンドラーが必要とするサービスインターフェース。
type AdminServiceInterface interface {
	ListUsers(ctx context.Context, p model.Principal) ([]*model.User, error)
	ListAllNotes(ctx context.Context, p model.Principal) ([]*model.Note, error)
}

// AdminHandler は管理者向けのHTTPハンドラー。
type AdminHandler struct {
	service  AdminServiceInterface
	renderer security.NoteRenderer
	metrics  metrics.MetricsCollector
}

// NewAdminHandler はAdminHandlerを生成する。
func NewAdminHandler(service AdminServiceInterface, renderer security.NoteRenderer, collector metrics.MetricsCollector) *AdminHandler {
	if collector == nil {
		collector = metrics.Nop{}
	}
	return &AdminHandler{
		service:  service,
		renderer: renderer,
		metrics:  collector,
	}
}

// adminUserResponse は管理者向けユーザー一覧の要素。パスワードハッシュは含めない。
type adminUserResponse struct {
	ID        int64     `json:"id"`
	Username  string    `json:"username"`
	IsAdmin   bool      `json:"is_admin"`
	CreatedAt time.Time `json:"created_at"`
}

// ListUsers は全ユーザーを返す。
// GET /admin/users
func (h *AdminHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.service.ListUsers(r.Context(), middleware.PrincipalFromContext(r.Context()))
	if err != nil {
		h.fail(w, r, err)
		return
	}

	resp := make([]adminUserResponse, 0, len(users))
	for _, u := range users {
		resp = append(resp, adminUserResponse{
			ID:        u.ID,
			Username:  u.Username,
			IsAdmin:   u.IsAdmin,
			CreatedAt: u.CreatedAt,
		})
	}
	writeJSON(w, http.StatusOK, successResponse{Data: resp})
}

// ListNotes は全ユーザーのメモを返す。
// GET /admin/notes
func (h *AdminHandler) ListNotes(w http.ResponseWriter, r *http.Request) {
	notes, err := h.service.ListAllNotes(r.Context(), middleware.PrincipalFromContext(r.Context()))
	if err != nil {
		h.fail(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, successResponse{Data: toNoteResponses(h.renderer, notes)})
}

func (h *AdminHandler) fail(w http.ResponseWriter, r *http.Request, err error) {
	if isErrorCode(err, model.ErrCodeForbidden) {
		h.metrics.RecordForbidden()
	}
	handleServiceError(w, r, err)
}
