package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/burlingtondeals/dealsapi/internal/model"
)

const restaurantColumns = `restaurant_id, master_business_id, name, address, city, province, website,
	place_id, geometry_location_lat, geometry_location_lng, rating, user_ratings_total,
	status, is_active, created_at`

// PostgresRestaurantRepo はPostgreSQLを使用した店舗リポジトリ。
type PostgresRestaurantRepo struct {
	db *sql.DB
}

// NewPostgresRestaurantRepo はPostgresRestaurantRepoを生成する。
func NewPostgresRestaurantRepo(db *sql.DB) *PostgresRestaurantRepo {
	return &PostgresRestaurantRepo{db: db}
}

func scanRestaurant(row rowScanner) (*model.Restaurant, error) {
	r := &model.Restaurant{}
	var (
		externalID, address, city, province, website, placeID sql.NullString
		lat, lng, rating                                      sql.NullFloat64
		ratingsTotal                                          sql.NullInt64
	)
	if err := row.Scan(
		&r.ID, &externalID, &r.Name, &address, &city, &province, &website,
		&placeID, &lat, &lng, &rating, &ratingsTotal,
		&r.Status, &r.IsActive, &r.CreatedAt,
	); err != nil {
		return nil, err
	}
	r.ExternalID = stringPtr(externalID)
	r.Address = stringPtr(address)
	r.City = stringPtr(city)
	r.Province = stringPtr(province)
	r.Website = stringPtr(website)
	r.PlaceID = stringPtr(placeID)
	r.Lat = floatPtr(lat)
	r.Lng = floatPtr(lng)
	r.Rating = floatPtr(rating)
	r.UserRatingsTotal = intPtr(ratingsTotal)
	return r, nil
}

// ListActive は有効な店舗を名前順で返す。
func (r *PostgresRestaurantRepo) ListActive(ctx context.Context) ([]*model.Restaurant, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+restaurantColumns+` FROM restaurants WHERE is_active ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("店舗一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	restaurants := []*model.Restaurant{}
	for rows.Next() {
		rest, err := scanRestaurant(rows)
		if err != nil {
			return nil, fmt.Errorf("店舗のスキャンに失敗しました: %w", err)
		}
		restaurants = append(restaurants, rest)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("店舗一覧の走査に失敗しました: %w", err)
	}
	return restaurants, nil
}

// Search は名前の部分一致（大文字小文字を区別しない）で有効な店舗を検索する。
func (r *PostgresRestaurantRepo) Search(ctx context.Context, query string, limit int) ([]model.RestaurantSummary, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT restaurant_id, name FROM restaurants
		 WHERE is_active AND name ILIKE '%' || $1 || '%'
		 ORDER BY name
		 LIMIT $2`,
		escapeLike(query), limit,
	)
	if err != nil {
		return nil, fmt.Errorf("店舗の検索に失敗しました: %w", err)
	}
	defer rows.Close()

	results := []model.RestaurantSummary{}
	for rows.Next() {
		var s model.RestaurantSummary
		if err := rows.Scan(&s.ID, &s.Name); err != nil {
			return nil, fmt.Errorf("検索結果のスキャンに失敗しました: %w", err)
		}
		results = append(results, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("検索結果の走査に失敗しました: %w", err)
	}
	return results, nil
}

// FindByID は指定IDの店舗を取得する。見つからない場合はnilを返す。
func (r *PostgresRestaurantRepo) FindByID(ctx context.Context, id int64) (*model.Restaurant, error) {
	rest, err := scanRestaurant(r.db.QueryRowContext(ctx,
		`SELECT `+restaurantColumns+` FROM restaurants WHERE restaurant_id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("店舗の取得に失敗しました: %w", err)
	}
	return rest, nil
}

// Create は店舗を作成する。
func (r *PostgresRestaurantRepo) Create(ctx context.Context, rest *model.Restaurant) error {
	err := r.db.QueryRowContext(ctx,
		`INSERT INTO restaurants (master_business_id, name, address, city, province, website,
		                          place_id, geometry_location_lat, geometry_location_lng,
		                          rating, user_ratings_total, status, is_active)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		 RETURNING restaurant_id, created_at`,
		nullString(rest.ExternalID), rest.Name, nullString(rest.Address), nullString(rest.City),
		nullString(rest.Province), nullString(rest.Website), nullString(rest.PlaceID),
		nullFloat(rest.Lat), nullFloat(rest.Lng), nullFloat(rest.Rating), nullInt(rest.UserRatingsTotal),
		rest.Status, rest.IsActive,
	).Scan(&rest.ID, &rest.CreatedAt)
	if isUniqueViolation(err) {
		return ErrDuplicate
	}
	if err != nil {
		return fmt.Errorf("店舗の作成に失敗しました: %w", err)
	}
	return nil
}

// SetStatus は店舗の状態と有効フラグを更新する。見つからない場合はfalseを返す。
func (r *PostgresRestaurantRepo) SetStatus(ctx context.Context, id int64, status model.RestaurantStatus, active bool) (bool, error) {
	result, err := r.db.ExecContext(ctx,
		`UPDATE restaurants SET status = $2, is_active = $3 WHERE restaurant_id = $1`,
		id, status, active,
	)
	if err != nil {
		return false, fmt.Errorf("店舗状態の更新に失敗しました: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return n > 0, nil
}

// UpsertImported は外部IDをキーに店舗を登録する。
// 既に同じ外部IDの店舗がある場合は挿入せず、既存のIDを返す。
func (r *PostgresRestaurantRepo) UpsertImported(ctx context.Context, rest *model.Restaurant) (int64, bool, error) {
	var id int64
	err := r.db.QueryRowContext(ctx,
		`INSERT INTO restaurants (master_business_id, name, address, city, province, website,
		                          place_id, geometry_location_lat, geometry_location_lng,
		                          rating, user_ratings_total, status, is_active)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, 'active', TRUE)
		 ON CONFLICT (master_business_id) DO NOTHING
		 RETURNING restaurant_id`,
		nullString(rest.ExternalID), rest.Name, nullString(rest.Address), nullString(rest.City),
		nullString(rest.Province), nullString(rest.Website), nullString(rest.PlaceID),
		nullFloat(rest.Lat), nullFloat(rest.Lng), nullFloat(rest.Rating), nullInt(rest.UserRatingsTotal),
	).Scan(&id)
	if err == nil {
		return id, true, nil
	}
	if isUniqueViolation(err) {
		// place_id の重複はスキップ扱い
		return 0, false, ErrDuplicate
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return 0, false, fmt.Errorf("店舗のインポートに失敗しました: %w", err)
	}

	if err := r.db.QueryRowContext(ctx,
		`SELECT restaurant_id FROM restaurants WHERE master_business_id = $1`,
		nullString(rest.ExternalID),
	).Scan(&id); err != nil {
		return 0, false, fmt.Errorf("既存店舗IDの取得に失敗しました: %w", err)
	}
	return id, false, nil
}

var _ RestaurantRepository = (*PostgresRestaurantRepo)(nil)
