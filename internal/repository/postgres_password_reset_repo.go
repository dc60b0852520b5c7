package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/burlingtondeals/dealsapi/internal/model"
)

// PostgresPasswordResetRepo はPostgreSQLを使用したパスワードリセットリポジトリ。
type PostgresPasswordResetRepo struct {
	db *sql.DB
}

// NewPostgresPasswordResetRepo はPostgresPasswordResetRepoを生成する。
func NewPostgresPasswordResetRepo(db *sql.DB) *PostgresPasswordResetRepo {
	return &PostgresPasswordResetRepo{db: db}
}

// ReplaceForUser はユーザーの既存要求を削除して新しい要求を作成する。
// 以前に送ったリンクはこの時点で無効になる。
func (r *PostgresPasswordResetRepo) ReplaceForUser(ctx context.Context, reset *model.PasswordReset) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM password_resets WHERE user_id = $1`, reset.UserID,
	); err != nil {
		return fmt.Errorf("既存のリセット要求の削除に失敗しました: %w", err)
	}

	if err := tx.QueryRowContext(ctx,
		`INSERT INTO password_resets (user_id, token, expires_at)
		 VALUES ($1, $2, $3)
		 RETURNING reset_id, created_at`,
		reset.UserID, reset.TokenHash, reset.ExpiresAt,
	).Scan(&reset.ID, &reset.CreatedAt); err != nil {
		return fmt.Errorf("リセット要求の作成に失敗しました: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// FindByTokenHash はトークンハッシュでリセット要求を検索する。見つからない場合はnilを返す。
func (r *PostgresPasswordResetRepo) FindByTokenHash(ctx context.Context, tokenHash string) (*model.PasswordReset, error) {
	p := &model.PasswordReset{}
	err := r.db.QueryRowContext(ctx,
		`SELECT reset_id, user_id, token, expires_at, created_at
		 FROM password_resets WHERE token = $1`,
		tokenHash,
	).Scan(&p.ID, &p.UserID, &p.TokenHash, &p.ExpiresAt, &p.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("リセット要求の取得に失敗しました: %w", err)
	}
	return p, nil
}

// Consume はリセット要求を削除し、同じトランザクションでパスワードを更新する。
// 並行リクエストで先に消費された場合はErrNotFoundを返す。
func (r *PostgresPasswordResetRepo) Consume(ctx context.Context, reset *model.PasswordReset, passwordHash string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx,
		`DELETE FROM password_resets WHERE reset_id = $1`, reset.ID)
	if err != nil {
		return fmt.Errorf("リセット要求の削除に失敗しました: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE users SET password_hash = $2 WHERE user_id = $1`,
		reset.UserID, passwordHash,
	); err != nil {
		return fmt.Errorf("パスワードの更新に失敗しました: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

var _ PasswordResetRepository = (*PostgresPasswordResetRepo)(nil)
