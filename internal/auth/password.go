package auth

import (
	"golang.org/x/crypto/bcrypt"
)

// DefaultBcryptCost はBCRYPT_COST未指定時のコスト係数。
const DefaultBcryptCost = 12

func hashPassword(password string, cost int) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// checkPassword はbcryptハッシュとパスワードを比較する。比較は定数時間で行われる。
func checkPassword(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}
