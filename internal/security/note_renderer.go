// Package security はアプリケーションのセキュリティ機能を提供する。
//
// NoteRenderer はメモ本文を表示用の安全なHTMLに変換する。
// 保存される本文は入力どおりのまま変更せず、レスポンス生成時にのみ変換する。
// bluemondayライブラリを使用した許可リストベースのポリシーで、
// 安全なタグと属性のみを通過させる。
package security

import (
	"net/url"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// NoteRenderer はメモ本文のHTML変換のインターフェースを定義する。
type NoteRenderer interface {
	// Render はメモ本文をサニタイズし、改行を<br>に変換したHTMLを返す。
	// 許可タグ（p, br, a, ul, ol, li, blockquote, pre, code, strong, em）のみを通過させ、
	// script, iframe, style, imgタグおよびon*イベント属性を除去する。
	// 許可外の文字（<, >, &, 引用符）はエスケープされる。
	Render(content string) string
}

// noteRenderer はNoteRendererの実装。
// bluemondayのポリシーはスレッドセーフに共有できる。
type noteRenderer struct {
	policy *bluemonday.Policy
}

// NewNoteRenderer はNoteRendererの新しいインスタンスを生成する。
// ポリシーの内容:
//   - 許可タグ: p, br, a, ul, ol, li, blockquote, pre, code, strong, em
//   - aタグのhref: http/httpsのみ。target="_blank" と rel="noopener noreferrer" を自動付与
//   - 画像は外部リソースの読み込みになるため許可しない
func NewNoteRenderer() NoteRenderer {
	p := bluemonday.NewPolicy()

	p.AllowElements(
		"p", "br", "ul", "ol", "li",
		"blockquote", "pre", "code",
		"strong", "em",
	)

	p.AllowAttrs("href").OnElements("a")
	p.AllowRelativeURLs(false)
	p.AllowURLSchemeWithCustomPolicy("https", func(u *url.URL) bool { return true })
	p.AllowURLSchemeWithCustomPolicy("http", func(u *url.URL) bool { return true })
	p.AddTargetBlankToFullyQualifiedLinks(true)
	p.RequireNoReferrerOnLinks(true)

	return &noteRenderer{policy: p}
}

// Render はメモ本文を表示用HTMLに変換する。
func (r *noteRenderer) Render(content string) string {
	if content == "" {
		return ""
	}
	normalized := strings.ReplaceAll(content, "\r\n", "\n")
	sanitized := r.policy.Sanitize(normalized)
	return strings.ReplaceAll(sanitized, "\n", "<br>")
}
