// Package repository はデータ永続化のインターフェースとPostgreSQL実装を提供する。
package repository

import (
	"context"
	"time"

	"github.com/burlingtondeals/dealsapi/internal/model"
)

// UserRepository はユーザーデータの永続化インターフェース。
type UserRepository interface {
	// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id int64) (*model.User, error)

	// FindByEmail はメールアドレスでユーザーを検索する。見つからない場合はnilを返す。
	FindByEmail(ctx context.Context, email string) (*model.User, error)

	// Create はユーザーを作成し、採番されたIDと作成日時をuserに設定する。
	// メールアドレスが重複する場合はErrDuplicateを返す。
	Create(ctx context.Context, user *model.User) error

	// ActivateByVerificationToken は認証トークンに一致するユーザーを有効化し、
	// トークンを消去する。一致するユーザーがいない場合はnilを返す。
	ActivateByVerificationToken(ctx context.Context, tokenHash string) (*model.User, error)

	// List は全ユーザーをID順で返す。
	List(ctx context.Context) ([]*model.User, error)

	// UpdateRole はロールを変更する。見つからない場合はnilを返す。
	UpdateRole(ctx context.Context, id int64, role model.Role) (*model.User, error)

	// ToggleActive は有効フラグを反転する。見つからない場合はnilを返す。
	ToggleActive(ctx context.Context, id int64) (*model.User, error)
}

// PasswordResetRepository はパスワードリセット要求の永続化インターフェース。
type PasswordResetRepository interface {
	// ReplaceForUser はユーザーの既存リセット要求を削除し、新しい要求を作成する。
	ReplaceForUser(ctx context.Context, reset *model.PasswordReset) error

	// FindByTokenHash はトークンハッシュでリセット要求を検索する。
	// 期限切れでも返す。見つからない場合はnilを返す。
	FindByTokenHash(ctx context.Context, tokenHash string) (*model.PasswordReset, error)

	// Consume はパスワードハッシュの更新とリセット要求の削除を同一トランザクションで行う。
	// 要求がすでに消費されている場合はErrNotFoundを返す。
	Consume(ctx context.Context, reset *model.PasswordReset, passwordHash string) error
}

// RestaurantRepository は店舗データの永続化インターフェース。
type RestaurantRepository interface {
	// ListActive は有効な店舗を名前順で返す。
	ListActive(ctx context.Context) ([]*model.Restaurant, error)

	// Search は名前の部分一致で有効な店舗を検索する。
	Search(ctx context.Context, query string, limit int) ([]model.RestaurantSummary, error)

	// FindByID は指定IDの店舗を取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id int64) (*model.Restaurant, error)

	// Create は店舗を作成し、採番されたIDと作成日時を設定する。
	Create(ctx context.Context, restaurant *model.Restaurant) error

	// SetStatus は店舗の状態と有効フラグを更新する。見つからない場合はfalseを返す。
	SetStatus(ctx context.Context, id int64, status model.RestaurantStatus, active bool) (bool, error)

	// UpsertImported は外部IDで重複を除外して店舗を登録する。
	// 既存の場合はそのIDとcreated=falseを返す。
	UpsertImported(ctx context.Context, restaurant *model.Restaurant) (id int64, created bool, err error)
}

// DealAssignment は部分更新の1項目。Columnは許可済みカラム名に限る。
type DealAssignment struct {
	Column string
	Value  any
}

// DealRepository はディールデータの永続化インターフェース。
type DealRepository interface {
	// ListApproved は承認済みディールを店舗情報付きで表示順に返す。
	ListApproved(ctx context.Context, filter model.DealFilter) ([]*model.DealListing, error)

	// ListAll は全ディールを店舗情報付きで表示順に返す。
	ListAll(ctx context.Context) ([]*model.DealListing, error)

	// FindByID は指定IDのディールを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id int64) (*model.Deal, error)

	// Create はディールを作成し、採番されたIDとタイムスタンプを設定する。
	Create(ctx context.Context, deal *model.Deal) error

	// Update は指定カラムのみを更新し、更新後のディールを返す。
	// 見つからない場合はnilを返す。
	Update(ctx context.Context, id int64, assignments []DealAssignment) (*model.Deal, error)

	// Delete はディールを削除する。見つからない場合はfalseを返す。
	Delete(ctx context.Context, id int64) (bool, error)

	// ExpirePromotions は掲載期限を過ぎたプロモーションを解除し、件数を返す。
	ExpirePromotions(ctx context.Context, now time.Time) (int64, error)
}

// ContactRepository は問い合わせの永続化インターフェース。
type ContactRepository interface {
	// Create は問い合わせを保存し、採番されたIDと作成日時を設定する。
	Create(ctx context.Context, contact *model.ContactSubmission) error
}

// NewsletterRepository はニュースレター購読者の永続化インターフェース。
type NewsletterRepository interface {
	// Subscribe はメールアドレスを登録する。登録済みの場合はcreated=falseを返す。
	Subscribe(ctx context.Context, email string) (created bool, err error)
}
