// Package model はドメインモデルを定義する。
package model

import "time"

// Role はユーザーの権限ロール。
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// Valid はロールが既知の値かを返す。
func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAdmin
}

// User はサービス利用ユーザーを表す。
// VerificationToken はメール認証用シークレットのsha256ハッシュで、認証完了後は空になる。
type User struct {
	ID                int64     `json:"user_id"`
	Email             string    `json:"email"`
	PasswordHash      string    `json:"-"`
	DisplayName       string    `json:"display_name"`
	Role              Role      `json:"role"`
	IsActive          bool      `json:"is_active"`
	VerificationToken string    `json:"-"`
	CreatedAt         time.Time `json:"created_at"`
}

// IsAdmin は管理者ロールかを返す。
func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// PendingVerification はメール認証待ちかを返す。
func (u *User) PendingVerification() bool {
	return !u.IsActive && u.VerificationToken != ""
}

// PasswordReset はパスワードリセット要求を表す。
// TokenHash はメールで送ったシークレットのsha256ハッシュ。
type PasswordReset struct {
	ID        int64
	UserID    int64
	TokenHash string
	ExpiresAt time.Time
	CreatedAt time.Time
}

// Expired は指定時刻において期限切れかを返す。
func (p *PasswordReset) Expired(now time.Time) bool {
	return now.After(p.ExpiresAt)
}
