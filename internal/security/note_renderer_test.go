package security

import (
	"strings"
	"testing"
)

// TestRender_AllowedTags は許可タグが通過することを検証する。
func TestRender_AllowedTags(t *testing.T) {
	renderer := NewNoteRenderer()

	tests := []struct {
		name         string
		input        string
		wantContains []string
	}{
		{
			name:         "strongとemが許可される",
			input:        "<strong>太字</strong>と<em>強調</em>",
			wantContains: []string{"<strong>太字</strong>", "<em>強調</em>"},
		},
		{
			name:         "リストが許可される",
			input:        "<ul><li>牛乳</li><li>卵</li></ul>",
			wantContains: []string{"<ul>", "<li>牛乳</li>", "</ul>"},
		},
		{
			name:         "httpsリンクにtargetとrelが付与される",
			input:        `<a href="https://example.com">link</a>`,
			wantContains: []string{`href="https://example.com"`, `target="_blank"`, "noopener", "noreferrer"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := renderer.Render(tt.input)
			for _, want := range tt.wantContains {
				if !strings.Contains(got, want) {
					t.Errorf("Render(%q) = %q, want to contain %q", tt.input, got, want)
				}
			}
		})
	}
}

// TestRender_DangerousContentRemoved はXSSにつながる要素が除去されることを検証する。
func TestRender_DangerousContentRemoved(t *testing.T) {
	renderer := NewNoteRenderer()

	tests := []struct {
		name       string
		input      string
		notContain []string
	}{
		{"scriptタグ", `<script>alert('xss')</script>hello`, []string{"<script", "alert("}},
		{"onイベント属性", `<p onclick="steal()">x</p>`, []string{"onclick", "steal"}},
		{"javascriptスキーム", `<a href="javascript:alert(1)">x</a>`, []string{"javascript:"}},
		{"iframe", `<iframe src="https://evil.example"></iframe>`, []string{"<iframe"}},
		{"img", `<img src="https://evil.example/x.png" onerror="x()">`, []string{"<img", "onerror"}},
		{"style", `<style>body{display:none}</style>`, []string{"<style"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := renderer.Render(tt.input)
			for _, bad := range tt.notContain {
				if strings.Contains(got, bad) {
					t.Errorf("Render(%q) = %q, must not contain %q", tt.input, got, bad)
				}
			}
		})
	}
}

func TestRender_NewlinesBecomeBreaks(t *testing.T) {
	got := NewNoteRenderer().Render("Milk\r\nEggs\nBread")
	want := "Milk<br>Eggs<br>Bread"
	if got != want {
		t.Errorf("Render() = %q, want %q", got, want)
	}
}

func TestRender_PlainTextIsEscaped(t *testing.T) {
	got := NewNoteRenderer().Render(`1 < 2 & "quoted"`)
	if strings.Contains(got, "< 2") {
		t.Errorf("Render() = %q, want '<' escaped", got)
	}
	if !strings.Contains(got, "&lt;") || !strings.Contains(got, "&amp;") {
		t.Errorf("Render() = %q, want HTML entities", got)
	}
}

func TestRender_EmptyAndIdempotentPlainText(t *testing.T) {
	renderer := NewNoteRenderer()
	if got := renderer.Render(""); got != "" {
		t.Errorf("Render(\"\") = %q, want empty", got)
	}
	if got := renderer.Render("Milk, eggs"); got != "Milk, eggs" {
		t.Errorf("Render() = %q, want unchanged plain text", got)
	}
}
