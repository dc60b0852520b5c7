package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// secretBytes はメールで送るシークレットのバイト長。
const secretBytes = 32

// NewSecret はメール送付用のシークレットと、保存用のハッシュを生成する。
// データベースにはハッシュのみを保存する。
func NewSecret() (plain, hash string, err error) {
	b := make([]byte, secretBytes)
	if _, err := rand.Read(b); err != nil {
		return "", "", fmt.Errorf("failed to generate secret: %w", err)
	}
	plain = hex.EncodeToString(b)
	return plain, HashSecret(plain), nil
}

// HashSecret はシークレットのsha256ハッシュを16進文字列で返す。
func HashSecret(plain string) string {
	sum := sha256.Sum256([]byte(plain))
	return hex.EncodeToString(sum[:])
}
