package model

// Principal はリクエストが評価される主体を表す。
// 実装はAnonymousとAuthenticatedの2つのみ。
type Principal interface {
	principal()
}

// Anonymous は有効なセッションを持たない主体。
// メモの所有権に基づく権限を一切持たない。
type Anonymous struct{}

func (Anonymous) principal() {}

// Authenticated はセッションにより認証済みの主体。
type Authenticated struct {
	UserID   int64
	Username string
	IsAdmin  bool
}

func (Authenticated) principal() {}

// AsAuthenticated はPrincipalが認証済みであればその値とtrueを返す。
// nilおよびAnonymousの場合はfalseを返す。
func AsAuthenticated(p Principal) (Authenticated, bool) {
	switch v := p.(type) {
	case Authenticated:
		return v, true
	case *Authenticated:
		if v != nil {
			return *v, true
		}
	}
	return Authenticated{}, false
}
