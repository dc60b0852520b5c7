package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/burlingtondeals/dealsapi/internal/model"
)

// PostgresContactRepo はPostgreSQLを使用した問い合わせリポジトリ。
type PostgresContactRepo struct {
	db *sql.DB
}

// NewPostgresContactRepo はPostgresContactRepoを生成する。
func NewPostgresContactRepo(db *sql.DB) *PostgresContactRepo {
	return &PostgresContactRepo{db: db}
}

func optional(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// Create は問い合わせを保存する。
func (r *PostgresContactRepo) Create(ctx context.Context, c *model.ContactSubmission) error {
	err := r.db.QueryRowContext(ctx,
		`INSERT INTO contacts (name, email, message, reason, business_name, phone)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING contact_id, created_at`,
		c.Name, c.Email, c.Message, optional(c.Reason), optional(c.BusinessName), optional(c.Phone),
	).Scan(&c.ID, &c.CreatedAt)
	if err != nil {
		return fmt.Errorf("問い合わせの保存に失敗しました: %w", err)
	}
	return nil
}

// PostgresNewsletterRepo はPostgreSQLを使用したニュースレター購読リポジトリ。
type PostgresNewsletterRepo struct {
	db *sql.DB
}

// NewPostgresNewsletterRepo はPostgresNewsletterRepoを生成する。
func NewPostgresNewsletterRepo(db *sql.DB) *PostgresNewsletterRepo {
	return &PostgresNewsletterRepo{db: db}
}

// Subscribe はメールアドレスを登録する。登録済みの場合はcreated=falseを返す。
func (r *PostgresNewsletterRepo) Subscribe(ctx context.Context, email string) (bool, error) {
	var id int64
	err := r.db.QueryRowContext(ctx,
		`INSERT INTO newsletter_subscribers (email) VALUES ($1)
		 ON CONFLICT (email) DO NOTHING
		 RETURNING subscriber_id`,
		email,
	).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("購読者の登録に失敗しました: %w", err)
	}
	return true, nil
}

var (
	_ ContactRepository    = (*PostgresContactRepo)(nil)
	_ NewsletterRepository = (*PostgresNewsletterRepo)(nil)
)
