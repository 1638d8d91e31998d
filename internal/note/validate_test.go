package note

import (
	"errors"
	"strings"
	"testing"

	"github.com/hitoshi/securenotes/internal/model"
)

func TestValidate_ReportsAllFields(t *testing.T) {
	err := Validate(Input{Title: "", Content: strings.Repeat("x", 10001)})

	var apiErr *model.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("error = %v, want APIError", err)
	}
	if _, ok := apiErr.Fields["title"]; !ok {
		t.Error("expected title field error")
	}
	if _, ok := apiErr.Fields["content"]; !ok {
		t.Error("expected content field error")
	}
}

func TestNormalize_TrimsSurroundingWhitespace(t *testing.T) {
	got := Input{Title: "  hello \n", Content: "\tbody  "}.Normalize()
	if got.Title != "hello" || got.Content != "body" {
		t.Errorf("Normalize() = %+v", got)
	}
}
