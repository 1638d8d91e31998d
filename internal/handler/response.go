package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"mime"
	"net/http"

	"github.com/hitoshi/securenotes/internal/middleware"
	"github.com/hitoshi/securenotes/internal/model"
)

// maxRequestBodyBytes はリクエストボディの上限。
// 1文字あたりの最大符号化長は12バイト（フォームの%XX×4、JSONのサロゲートペア\uXXXX×2）。
// 本文10000文字とタイトル200文字を最悪の符号化で送っても収まるよう、
// 10200×12 = 122400バイトに余裕を加えた値とする。
const maxRequestBodyBytes = 128 << 10

// successResponse は成功時の統一レスポンス。
// redirectにはフォーム送信後の遷移先を入れる。
type successResponse struct {
	Message  string `json:"message,omitempty"`
	Redirect string `json:"redirect,omitempty"`
	Data     any    `json:"data,omitempty"`
}

// formBinder はフォーム送信からリクエスト値を読み取れる型。
// bindFormはParseForm済みのリクエストに対して呼ばれる。
type formBinder interface {
	bindForm(r *http.Request)
}

// decodeRequest はContent-Typeに応じてJSONまたはフォームからリクエスト値を読み取る。
// ボディが上限を超えた場合はPAYLOAD_TOO_LARGE、解析に失敗した場合はINVALID_INPUTのAPIErrorを返す。
func decodeRequest(r *http.Request, dst formBinder) error {
	if isJSONRequest(r) {
		if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
			return bodyError(err, "リクエストボディの解析に失敗しました。正しいJSON形式で送信してください。")
		}
		return nil
	}

	if err := r.ParseForm(); err != nil {
		return bodyError(err, "フォームの解析に失敗しました。")
	}
	dst.bindForm(r)
	return nil
}

// bodyError はボディ読み取りエラーをAPIErrorに変換する。
func bodyError(err error, message string) *model.APIError {
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		return model.NewPayloadTooLargeError()
	}
	return model.NewInvalidInputError(map[string]string{"body": message})
}

func isJSONRequest(r *http.Request) bool {
	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	return err == nil && mediaType == "application/json"
}

// writeJSON はJSONレスポンスを書き込む。
func writeJSON(w http.ResponseWriter, statusCode int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode response", slog.String("error", err.Error()))
	}
}

// writeAPIErrorResponse は統一エラーフォーマットでレスポンスを書き込む。
func writeAPIErrorResponse(w http.ResponseWriter, statusCode int, apiErr *model.APIError) {
	middleware.WriteErrorResponse(w, statusCode, apiErr)
}

// handleServiceError はサービス層のエラーをHTTPレスポンスに変換する。
// APIError以外のエラーは詳細をログにのみ記録し、500を返す。
func handleServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		writeAPIErrorResponse(w, mapAPIErrorToHTTPStatus(apiErr), apiErr)
		return
	}

	// APIError以外のエラーは内部サーバーエラーとして扱う
	slog.Error("internal server error",
		slog.String("request_id", middleware.RequestIDFromContext(r.Context())),
		slog.String("method", r.Method),
		slog.String("path", r.URL.Path),
		slog.String("error", err.Error()),
	)
	middleware.WriteInternalServerError(w)
}

// mapAPIErrorToHTTPStatus はAPIErrorコードからHTTPステータスコードにマッピングする。
func mapAPIErrorToHTTPStatus(apiErr *model.APIError) int {
	switch apiErr.Code {
	case model.ErrCodeInvalidInput:
		return http.StatusBadRequest
	case model.ErrCodeDuplicateUsername:
		return http.StatusConflict
	case model.ErrCodeAuthenticationFailed, model.ErrCodeLoginRequired:
		return http.StatusUnauthorized
	case model.ErrCodeForbidden, model.ErrCodeCSRFFailed:
		return http.StatusForbidden
	case model.ErrCodeNotFound:
		return http.StatusNotFound
	case model.ErrCodeRateLimited:
		return http.StatusTooManyRequests
	case model.ErrCodePayloadTooLarge:
		return http.StatusRequestEntityTooLarge
	default:
		return http.StatusInternalServerError
	}
}

// isErrorCode はerrがcodeを持つAPIErrorかどうかを判定する。
func isErrorCode(err error, code string) bool {
	var apiErr *model.APIError
	return errors.As(err, &apiErr) && apiErr.Code == code
}
