package middleware

import (
	"fmt"
	"net/http"
	"time"
)

// timingWriter は最初の書き込み直前に処理時間ヘッダーを設定する。
type timingWriter struct {
	http.ResponseWriter
	start       time.Time
	path        string
	wroteHeader bool
}

func (tw *timingWriter) WriteHeader(code int) {
	if !tw.wroteHeader {
		tw.wroteHeader = true
		elapsed := time.Since(tw.start)
		tw.Header().Set("X-Response-Time", fmt.Sprintf("%.3fms", float64(elapsed.Microseconds())/1000.0))
		tw.Header().Set("X-Request-Path", tw.path)
	}
	tw.ResponseWriter.WriteHeader(code)
}

func (tw *timingWriter) Write(b []byte) (int, error) {
	if !tw.wroteHeader {
		tw.WriteHeader(http.StatusOK)
	}
	return tw.ResponseWriter.Write(b)
}

func (tw *timingWriter) Unwrap() http.ResponseWriter {
	return tw.ResponseWriter
}

// NewTimingMiddleware はレスポンスヘッダーに処理時間とリクエストパスを付与するミドルウェアを返す。
// ヘッダーはステータス送信前に設定する必要があるため、書き込みをフックする。
func NewTimingMiddleware() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tw := &timingWriter{
				ResponseWriter: w,
				start:          time.Now(),
				path:           r.URL.Path,
			}
			next.ServeHTTP(tw, r)
			if !tw.wroteHeader {
				tw.WriteHeader(http.StatusOK)
			}
		})
	}
}
