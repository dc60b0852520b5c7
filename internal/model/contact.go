package model

import "time"

// ContactSubmission はお問い合わせフォームの送信内容。
// 追記のみで、更新・削除はしない。
type ContactSubmission struct {
	ID           int64
	Name         string
	Email        string
	Message      string
	Reason       string
	BusinessName string
	Phone        string
	CreatedAt    time.Time
}

