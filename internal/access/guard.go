// Package access はメモに対するアクセス制御を提供する。
// すべての関数は副作用を持たず、Principalとメモのみから判定する。
package access

import (
	"github.com/hitoshi/securenotes/internal/model"
)

// Predicate はPrincipalがメモに対して操作可能かを判定する関数。
type Predicate func(p model.Principal, note *model.Note) bool

// CanView はPrincipalがメモを閲覧できるかを判定する。
// 所有者本人または管理者のみ閲覧できる。Anonymousは常にfalse。
func CanView(p model.Principal, note *model.Note) bool {
	return isOwnerOrAdmin(p, note)
}

// CanModify はPrincipalがメモを編集・削除できるかを判定する。
func CanModify(p model.Principal, note *model.Note) bool {
	return isOwnerOrAdmin(p, note)
}

// Require は判定結果がfalseの場合にFORBIDDENのAPIErrorを返す。
func Require(pred Predicate, p model.Principal, note *model.Note) error {
	if !pred(p, note) {
		return model.NewForbiddenError()
	}
	return nil
}

// RequireAuthenticated は認証済みPrincipalを取り出す。
// Anonymousの場合はLOGIN_REQUIREDのAPIErrorを返す。
func RequireAuthenticated(p model.Principal) (model.Authenticated, error) {
	auth, ok := model.AsAuthenticated(p)
	if !ok {
		return model.Authenticated{}, model.NewLoginRequiredError()
	}
	return auth, nil
}

// RequireAdmin はAnonymousにLOGIN_REQUIRED、管理者以外の認証済みユーザーにFORBIDDENのAPIErrorを返す。
func RequireAdmin(p model.Principal) error {
	auth, ok := model.AsAuthenticated(p)
	if !ok {
		return model.NewLoginRequiredError()
	}
	if !auth.IsAdmin {
		return model.NewForbiddenError()
	}
	return nil
}

func isOwnerOrAdmin(p model.Principal, note *model.Note) bool {
	if note == nil {
		return false
	}
	auth, ok := model.AsAuthenticated(p)
	if !ok {
		return false
	}
	return auth.IsAdmin || auth.UserID == note.OwnerID
}
