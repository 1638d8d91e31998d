package handler

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/securenotes/internal/metrics"
	"github.com/hitoshi/securenotes/internal/middleware"
	"github.com/hitoshi/securenotes/internal/model"
	"github.com/hitoshi/securenotes/internal/note"
	"github.com/hitoshi/securenotes/internal/security"
)

// NoteServiceInterface はメモハンドラーが必要とするサービスインターフェース。
type NoteServiceInterface interface {
	Create(ctx context.Context, p model.Principal, in note.Input) (*model.Note, error)
	Get(ctx context.Context, p model.Principal, id int64) (*model.Note, error)
	ListMine(ctx context.Context, p model.Principal) ([]*model.Note, error)
	Update(ctx context.Context, p model.Principal, id int64, in note.Input) (*model.Note, error)
	Delete(ctx context.Context, p model.Principal, id int64) error
}

// NoteHandler はメモ管理のHTTPハンドラー。
type NoteHandler struct {
	service  NoteServiceInterface
	renderer security.NoteRenderer
	metrics  metrics.MetricsCollector
}

// NewNoteHandler はNoteHandlerを生成する。
func NewNoteHandler(service NoteServiceInterface, renderer security.NoteRenderer, collector metrics.MetricsCollector) *NoteHandler {
	if collector == nil {
		collector = metrics.Nop{}
	}
	return &NoteHandler{
		service:  service,
		renderer: renderer,
		metrics:  collector,
	}
}

// noteRequest はメモ作成・更新リクエストのボディ。
type noteRequest struct {
	Title   string `json:"title"`
	Content string `json:"content"`
}

func (n *noteRequest) bindForm(r *http.Request) {
	n.Title = r.PostForm.Get("title")
	n.Content = r.PostForm.Get("content")
}

func (n noteRequest) input() note.Input {
	return note.Input{Title: n.Title, Content: n.Content}
}

// noteResponse はメモのAPIレスポンス。
// contentは入力されたままの文字列、content_htmlはサニタイズ済みの表示用HTML。
type noteResponse struct {
	ID          int64     `json:"id"`
	Title       string    `json:"title"`
	Content     string    `json:"content"`
	ContentHTML string    `json:"content_html"`
	OwnerID     int64     `json:"owner_id"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// ListNotes は自分のメモ一覧を新しい順に返す。
// GET /notes
func (h *NoteHandler) ListNotes(w http.ResponseWriter, r *http.Request) {
	notes, err := h.service.ListMine(r.Context(), middleware.PrincipalFromContext(r.Context()))
	if err != nil {
		h.fail(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, successResponse{Data: toNoteResponses(h.renderer, notes)})
}

// CreateNote はメモを作成する。
// POST /notes
func (h *NoteHandler) CreateNote(w http.ResponseWriter, r *http.Request) {
	var req noteRequest
	if err := decodeRequest(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}

	created, err := h.service.Create(r.Context(), middleware.PrincipalFromContext(r.Context()), req.input())
	if err != nil {
		h.fail(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, successResponse{
		Message:  "メモを作成しました。",
		Redirect: noteURL(created.ID),
		Data:     toNoteResponse(h.renderer, created),
	})
}

// GetNote はメモを1件返す。
// GET /notes/{id}
func (h *NoteHandler) GetNote(w http.ResponseWriter, r *http.Request) {
	id, ok := parseNoteID(w, r)
	if !ok {
		return
	}

	n, err := h.service.Get(r.Context(), middleware.PrincipalFromContext(r.Context()), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, successResponse{Data: toNoteResponse(h.renderer, n)})
}

// UpdateNote はメモのタイトルと本文を更新する。
// PUT /notes/{id}, POST /notes/{id}, POST /notes/{id}/edit
func (h *NoteHandler) UpdateNote(w http.ResponseWriter, r *http.Request) {
	id, ok := parseNoteID(w, r)
	if !ok {
		return
	}

	var req noteRequest
	if err := decodeRequest(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}

	updated, err := h.service.Update(r.Context(), middleware.PrincipalFromContext(r.Context()), id, req.input())
	if err != nil {
		h.fail(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, successResponse{
		Message:  "メモを更新しました。",
		Redirect: noteURL(updated.ID),
		Data:     toNoteResponse(h.renderer, updated),
	})
}

// DeleteNote はメモを削除する。
// DELETE /notes/{id}, POST /notes/{id}/delete
func (h *NoteHandler) DeleteNote(w http.ResponseWriter, r *http.Request) {
	id, ok := parseNoteID(w, r)
	if !ok {
		return
	}

	if err := h.service.Delete(r.Context(), middleware.PrincipalFromContext(r.Context()), id); err != nil {
		h.fail(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, successResponse{
		Message:  "メモを削除しました。",
		Redirect: "/notes",
	})
}

// fail はエラーレスポンスを返す。権限エラーはメトリクスに記録する。
func (h *NoteHandler) fail(w http.ResponseWriter, r *http.Request, err error) {
	if isErrorCode(err, model.ErrCodeForbidden) {
		h.metrics.RecordForbidden()
	}
	handleServiceError(w, r, err)
}

func toNoteResponse(renderer security.NoteRenderer, n *model.Note) noteResponse {
	return noteResponse{
		ID:          n.ID,
		Title:       n.Title,
		Content:     n.Content,
		ContentHTML: renderer.Render(n.Content),
		OwnerID:     n.OwnerID,
		CreatedAt:   n.CreatedAt,
		UpdatedAt:   n.UpdatedAt,
	}
}

func toNoteResponses(renderer security.NoteRenderer, notes []*model.Note) []noteResponse {
	resp := make([]noteResponse, 0, len(notes))
	for _, n := range notes {
		resp = append(resp, toNoteResponse(renderer, n))
	}
	return resp
}

// parseNoteID はURLパスのメモIDを解析する。
// 正の整数でない場合は存在しないメモとして404を書き込み、falseを返す。
func parseNoteID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		writeAPIErrorResponse(w, http.StatusNotFound, model.NewNoteNotFoundError(raw))
		return 0, false
	}
	return id, true
}

func noteURL(id int64) string {
	return "/notes/" + strconv.FormatInt(id, 10)
}
