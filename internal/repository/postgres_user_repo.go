package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/burlingtondeals/dealsapi/internal/model"
)

const userColumns = `user_id, email, password_hash, display_name, role, is_active, verification_token, created_at`

// PostgresUserRepo はPostgreSQLを使用したユーザーリポジトリ。
type PostgresUserRepo struct {
	db *sql.DB
}

// NewPostgresUserRepo はPostgresUserRepoを生成する。
func NewPostgresUserRepo(db *sql.DB) *PostgresUserRepo {
	return &PostgresUserRepo{db: db}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*model.User, error) {
	u := &model.User{}
	var token sql.NullString
	if err := row.Scan(
		&u.ID, &u.Email, &u.PasswordHash, &u.DisplayName,
		&u.Role, &u.IsActive, &token, &u.CreatedAt,
	); err != nil {
		return nil, err
	}
	u.VerificationToken = token.String
	return u, nil
}

// findOne は1行を返すクエリを実行する。行がない場合はnilを返す。
func (r *PostgresUserRepo) findOne(ctx context.Context, op, query string, args ...any) (*model.User, error) {
	u, err := scanUser(r.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return u, nil
}

// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
func (r *PostgresUserRepo) FindByID(ctx context.Context, id int64) (*model.User, error) {
	return r.findOne(ctx, "ユーザーの取得に失敗しました",
		`SELECT `+userColumns+` FROM users WHERE user_id = $1`, id)
}

// FindByEmail はメールアドレスでユーザーを検索する。見つからない場合はnilを返す。
func (r *PostgresUserRepo) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	return r.findOne(ctx, "メールアドレスによるユーザーの検索に失敗しました",
		`SELECT `+userColumns+` FROM users WHERE email = $1`, email)
}

// Create はユーザーを作成する。メールアドレスが重複する場合はErrDuplicateを返す。
func (r *PostgresUserRepo) Create(ctx context.Context, user *model.User) error {
	var token sql.NullString
	if user.VerificationToken != "" {
		token = sql.NullString{String: user.VerificationToken, Valid: true}
	}

	err := r.db.QueryRowContext(ctx,
		`INSERT INTO users (email, password_hash, display_name, role, is_active, verification_token)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING user_id, created_at`,
		user.Email, user.PasswordHash, user.DisplayName, user.Role, user.IsActive, token,
	).Scan(&user.ID, &user.CreatedAt)
	if isUniqueViolation(err) {
		return ErrDuplicate
	}
	if err != nil {
		return fmt.Errorf("ユーザーの作成に失敗しました: %w", err)
	}
	return nil
}

// ActivateByVerificationToken は認証トークンに一致するユーザーを1文で有効化する。
// 同じトークンでの2回目以降の呼び出しは一致せずnilを返す。
func (r *PostgresUserRepo) ActivateByVerificationToken(ctx context.Context, tokenHash string) (*model.User, error) {
	return r.findOne(ctx, "ユーザーの有効化に失敗しました",
		`UPDATE users SET is_active = TRUE, verification_token = NULL
		 WHERE verification_token = $1
		 RETURNING `+userColumns, tokenHash)
}

// List は全ユーザーをID順で返す。
func (r *PostgresUserRepo) List(ctx context.Context) ([]*model.User, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+userColumns+` FROM users ORDER BY user_id`)
	if err != nil {
		return nil, fmt.Errorf("ユーザー一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	users := []*model.User{}
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("ユーザーのスキャンに失敗しました: %w", err)
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ユーザー一覧の走査に失敗しました: %w", err)
	}
	return users, nil
}

// UpdateRole はロールを変更する。見つからない場合はnilを返す。
func (r *PostgresUserRepo) UpdateRole(ctx context.Context, id int64, role model.Role) (*model.User, error) {
	return r.findOne(ctx, "ロールの更新に失敗しました",
		`UPDATE users SET role = $2 WHERE user_id = $1 RETURNING `+userColumns, id, role)
}

// ToggleActive は有効フラグを反転する。見つからない場合はnilを返す。
func (r *PostgresUserRepo) ToggleActive(ctx context.Context, id int64) (*model.User, error) {
	return r.findOne(ctx, "有効フラグの更新に失敗しました",
		`UPDATE users SET is_active = NOT is_active WHERE user_id = $1 RETURNING `+userColumns, id)
}

// compile-time interface check
var _ UserRepository = (*PostgresUserRepo)(nil)
