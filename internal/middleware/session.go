// Package middleware はHTTPミドルウェアを提供する。
package middleware

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/hitoshi/securenotes/internal/model"
)

// SessionCookieName はセッショントークンを保持するCookieの名前。
const SessionCookieName = "session"

// contextKey はコンテキストに値を格納するための型安全なキー。
type contextKey string

var (
	// principalContextKey はリクエストコンテキストにPrincipalを格納するためのキー。
	principalContextKey = contextKey("principal")
	// requestIDContextKey はリクエストIDを格納するためのキー。
	requestIDContextKey = contextKey("request_id")
	// principalHolderContextKey は外側のミドルウェアへPrincipalを伝えるためのキー。
	principalHolderContextKey = contextKey("principal_holder")
)

// principalHolder はセッション解決結果を外側のミドルウェア（ログ出力など）へ渡す。
type principalHolder struct {
	principal model.Principal
}

func contextWithPrincipalHolder(ctx context.Context, h *principalHolder) context.Context {
	return context.WithValue(ctx, principalHolderContextKey, h)
}

// PrincipalResolver はセッショントークンからPrincipalを解決するインターフェース。
// auth.Serviceが実装する。
type PrincipalResolver interface {
	Resolve(ctx context.Context, token string) (model.Principal, error)
}

// NewSessionMiddleware はHTTP Only Cookieからセッショントークンを読み取り、
// Principalをリクエストコンテキストに注入するミドルウェアを返す。
// 無効なトークンはAnonymousとして扱い、リクエストは拒否しない。
// 認証が必要かどうかの判断はハンドラー側で行う。
// ストア障害時のみ500を返す。
func NewSessionMiddleware(resolver PrincipalResolver) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var token string
			if cookie, err := r.Cookie(SessionCookieName); err == nil {
				token = cookie.Value
			}

			principal, err := resolver.Resolve(r.Context(), token)
			if err != nil {
				slog.Error("failed to resolve session",
					slog.String("request_id", RequestIDFromContext(r.Context())),
					slog.String("error", err.Error()),
				)
				WriteInternalServerError(w)
				return
			}

			if h, ok := r.Context().Value(principalHolderContextKey).(*principalHolder); ok {
				h.principal = principal
			}

			ctx := ContextWithPrincipal(r.Context(), principal)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// PrincipalFromContext はリクエストコンテキストからPrincipalを取得する。
// セッションミドルウェアを通過していない場合はAnonymousを返す。
func PrincipalFromContext(ctx context.Context) model.Principal {
	p, ok := ctx.Value(principalContextKey).(model.Principal)
	if !ok || p == nil {
		return model.Anonymous{}
	}
	return p
}

// ContextWithPrincipal はコンテキストにPrincipalを注入する。
// テストやミドルウェア以外のコンテキスト生成で使用する。
func ContextWithPrincipal(ctx context.Context, p model.Principal) context.Context {
	return context.WithValue(ctx, principalContextKey, p)
}

// RequestIDFromContext はリクエストIDを取得する。未設定の場合は空文字列を返す。
func RequestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(requestIDContextKey).(string)
	return id
}
