package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/burlingtondeals/dealsapi/internal/model"
)

// dealColumns はdealsテーブルの取得カラム。時刻型はテキストとして読む。
const dealColumns = `d.deal_id, d.restaurant_id, d.title, d.description, d.price, d.day_of_week,
	d.category, d.second_category, d.start_time::text, d.end_time::text,
	d.is_approved, d.is_promoted, d.promoted_until, d.promotion_tier, d.deal_type,
	d.flat_price, d.percentage_discount, d.price_per_wing, d.created_at, d.updated_at`

const listingColumns = dealColumns + `,
	r.name, r.address, r.city, r.place_id, r.geometry_location_lat, r.geometry_location_lng,
	r.website, r.rating, r.user_ratings_total`

// listingOrder は一覧の表示順。ティア、プロモーション有無、新しい順。
const listingOrder = `ORDER BY d.promotion_tier DESC, d.is_promoted DESC, d.created_at DESC`

// updatableDealColumns は部分更新で書き換えを許可するカラム。
// ここにないカラム名を含む更新は実行しない。
var updatableDealColumns = map[string]bool{
	"title":               true,
	"description":         true,
	"price":               true,
	"day_of_week":         true,
	"category":            true,
	"second_category":     true,
	"start_time":          true,
	"end_time":            true,
	"is_approved":         true,
	"is_promoted":         true,
	"promoted_until":      true,
	"promotion_tier":      true,
	"deal_type":           true,
	"flat_price":          true,
	"percentage_discount": true,
	"price_per_wing":      true,
}

// PostgresDealRepo はPostgreSQLを使用したディールリポジトリ。
type PostgresDealRepo struct {
	db *sql.DB
}

// NewPostgresDealRepo はPostgresDealRepoを生成する。
func NewPostgresDealRepo(db *sql.DB) *PostgresDealRepo {
	return &PostgresDealRepo{db: db}
}

// dealNulls はNULL許容カラムのスキャン先。
type dealNulls struct {
	secondCategory, startTime, endTime sql.NullString
	promotedUntil                      sql.NullTime
	flatPrice, percentage, perWing     sql.NullFloat64
}

func (n *dealNulls) targets(d *model.Deal) []any {
	return []any{
		&d.ID, &d.RestaurantID, &d.Title, &d.Description, &d.Price, &d.DayOfWeek,
		&d.Category, &n.secondCategory, &n.startTime, &n.endTime,
		&d.IsApproved, &d.IsPromoted, &n.promotedUntil, &d.PromotionTier, &d.DealType,
		&n.flatPrice, &n.percentage, &n.perWing, &d.CreatedAt, &d.UpdatedAt,
	}
}

func (n *dealNulls) apply(d *model.Deal) {
	d.SecondCategory = stringPtr(n.secondCategory)
	d.StartTime = stringPtr(n.startTime)
	d.EndTime = stringPtr(n.endTime)
	if n.promotedUntil.Valid {
		t := n.promotedUntil.Time
		d.PromotedUntil = &t
	}
	d.FlatPrice = floatPtr(n.flatPrice)
	d.PercentageDiscount = floatPtr(n.percentage)
	d.PricePerWing = floatPtr(n.perWing)
}

func scanDeal(row rowScanner) (*model.Deal, error) {
	d := &model.Deal{}
	var n dealNulls
	if err := row.Scan(n.targets(d)...); err != nil {
		return nil, err
	}
	n.apply(d)
	return d, nil
}

func scanListing(row rowScanner) (*model.DealListing, error) {
	l := &model.DealListing{}
	var (
		n                            dealNulls
		address, city, placeID, site sql.NullString
		lat, lng, rating             sql.NullFloat64
		ratingsTotal                 sql.NullInt64
	)
	dest := append(n.targets(&l.Deal),
		&l.RestaurantName, &address, &city, &placeID, &lat, &lng, &site, &rating, &ratingsTotal,
	)
	if err := row.Scan(dest...); err != nil {
		return nil, err
	}
	n.apply(&l.Deal)
	l.Address = stringPtr(address)
	l.City = stringPtr(city)
	l.PlaceID = stringPtr(placeID)
	l.Lat = floatPtr(lat)
	l.Lng = floatPtr(lng)
	l.Website = stringPtr(site)
	l.Rating = floatPtr(rating)
	l.UserRatingsTotal = intPtr(ratingsTotal)
	return l, nil
}

func (r *PostgresDealRepo) queryListings(ctx context.Context, query string, args ...any) ([]*model.DealListing, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("ディール一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	listings := []*model.DealListing{}
	for rows.Next() {
		l, err := scanListing(rows)
		if err != nil {
			return nil, fmt.Errorf("ディールのスキャンに失敗しました: %w", err)
		}
		listings = append(listings, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ディール一覧の走査に失敗しました: %w", err)
	}
	return listings, nil
}

// ListApproved は承認済みディールを返す。フィルタの空文字は条件なしとして扱う。
func (r *PostgresDealRepo) ListApproved(ctx context.Context, filter model.DealFilter) ([]*model.DealListing, error) {
	return r.queryListings(ctx,
		`SELECT `+listingColumns+`
		 FROM deals d
		 JOIN restaurants r ON r.restaurant_id = d.restaurant_id
		 WHERE d.is_approved
		   AND ($1 = '' OR d.day_of_week = $1)
		   AND ($2 = '' OR d.category ILIKE $2 OR d.second_category ILIKE $2)
		 `+listingOrder,
		filter.DayOfWeek, escapeLike(filter.Category),
	)
}

// ListAll は承認状態に関係なく全ディールを返す。
func (r *PostgresDealRepo) ListAll(ctx context.Context) ([]*model.DealListing, error) {
	return r.queryListings(ctx,
		`SELECT `+listingColumns+`
		 FROM deals d
		 JOIN restaurants r ON r.restaurant_id = d.restaurant_id
		 `+listingOrder,
	)
}

// FindByID は指定IDのディールを取得する。見つからない場合はnilを返す。
func (r *PostgresDealRepo) FindByID(ctx context.Context, id int64) (*model.Deal, error) {
	d, err := scanDeal(r.db.QueryRowContext(ctx,
		`SELECT `+dealColumns+` FROM deals d WHERE d.deal_id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("ディールの取得に失敗しました: %w", err)
	}
	return d, nil
}

// Create はディールを作成し、保存後の値でdealを更新する。
func (r *PostgresDealRepo) Create(ctx context.Context, deal *model.Deal) error {
	created, err := scanDeal(r.db.QueryRowContext(ctx,
		`INSERT INTO deals AS d (restaurant_id, title, description, price, day_of_week, category,
		                         second_category, start_time, end_time, is_approved, is_promoted,
		                         promotion_tier, deal_type, flat_price, percentage_discount, price_per_wing)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
		 RETURNING `+dealColumns,
		deal.RestaurantID, deal.Title, deal.Description, deal.Price, deal.DayOfWeek, deal.Category,
		nullString(deal.SecondCategory), nullString(deal.StartTime), nullString(deal.EndTime),
		deal.IsApproved, deal.IsPromoted, deal.PromotionTier, deal.DealType,
		nullFloat(deal.FlatPrice), nullFloat(deal.PercentageDiscount), nullFloat(deal.PricePerWing),
	))
	if err != nil {
		return fmt.Errorf("ディールの作成に失敗しました: %w", err)
	}
	*deal = *created
	return nil
}

// Update は許可済みカラムのみでUPDATE文を組み立てて実行する。
// updated_at は常に現在時刻に更新される。
func (r *PostgresDealRepo) Update(ctx context.Context, id int64, assignments []DealAssignment) (*model.Deal, error) {
	if len(assignments) == 0 {
		return nil, errors.New("ディールの更新項目がありません")
	}

	sets := make([]string, 0, len(assignments)+1)
	args := make([]any, 0, len(assignments)+1)
	args = append(args, id)
	for _, a := range assignments {
		if !updatableDealColumns[a.Column] {
			return nil, fmt.Errorf("更新できないカラムです: %q", a.Column)
		}
		args = append(args, a.Value)
		sets = append(sets, fmt.Sprintf("%s = $%d", a.Column, len(args)))
	}
	sets = append(sets, "updated_at = now()")

	d, err := scanDeal(r.db.QueryRowContext(ctx,
		`UPDATE deals AS d SET `+strings.Join(sets, ", ")+`
		 WHERE d.deal_id = $1
		 RETURNING `+dealColumns,
		args...,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("ディールの更新に失敗しました: %w", err)
	}
	return d, nil
}

// Delete はディールを削除する。見つからない場合はfalseを返す。
func (r *PostgresDealRepo) Delete(ctx context.Context, id int64) (bool, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM deals WHERE deal_id = $1`, id)
	if err != nil {
		return false, fmt.Errorf("ディールの削除に失敗しました: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return n > 0, nil
}

// ExpirePromotions は promoted_until を過ぎたプロモーションを解除する。
func (r *PostgresDealRepo) ExpirePromotions(ctx context.Context, now time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx,
		`UPDATE deals
		 SET is_promoted = FALSE, promoted_until = NULL, updated_at = now()
		 WHERE is_promoted AND promoted_until IS NOT NULL AND promoted_until < $1`,
		now,
	)
	if err != nil {
		return 0, fmt.Errorf("期限切れプロモーションの解除に失敗しました: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return n, nil
}

var _ DealRepository = (*PostgresDealRepo)(nil)
