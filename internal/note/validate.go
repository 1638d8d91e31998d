package note

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/hitoshi/securenotes/internal/model"
)

// Input はメモの作成・更新時の入力値。
type Input struct {
	Title   string
	Content string
}

// Normalize は前後の空白を除去した入力値を返す。
func (in Input) Normalize() Input {
	return Input{
		Title:   strings.TrimSpace(in.Title),
		Content: strings.TrimSpace(in.Content),
	}
}

// Validate はタイトルと本文の長さを検証する。長さは文字数（rune数）で数える。
// エラーがあればINVALID_INPUTのAPIErrorを返す。
func Validate(in Input) error {
	fields := make(map[string]string)

	if n := utf8.RuneCountInString(in.Title); n == 0 {
		fields["title"] = "タイトルを入力してください。"
	} else if n > model.NoteTitleMaxLength {
		fields["title"] = fmt.Sprintf("タイトルは%d文字以内で入力してください。", model.NoteTitleMaxLength)
	}

	if n := utf8.RuneCountInString(in.Content); n == 0 {
		fields["content"] = "本文を入力してください。"
	} else if n > model.NoteContentMaxLength {
		fields["content"] = fmt.Sprintf("本文は%d文字以内で入力してください。", model.NoteContentMaxLength)
	}

	if len(fields) > 0 {
		return model.NewInvalidInputError(fields)
	}
	return nil
}
