package model

import "time"

// RestaurantStatus はレストランの登録状態。
type RestaurantStatus string

const (
	// RestaurantStatusActive は一括インポートまたは承認済みの状態。
	RestaurantStatusActive RestaurantStatus = "active"
	// RestaurantStatusPending は一般ユーザーからの登録申請で、承認待ちの状態。
	RestaurantStatusPending RestaurantStatus = "pending"
)

// Restaurant は店舗情報を表す。
// ExternalID はインポート元データの識別子で、再インポート時の重複防止に使う。
type Restaurant struct {
	ID               int64            `json:"restaurant_id"`
	ExternalID       *string          `json:"master_business_id"`
	Name             string           `json:"name"`
	Address          *string          `json:"address"`
	City             *string          `json:"city"`
	Province         *string          `json:"province"`
	Website          *string          `json:"website"`
	PlaceID          *string          `json:"place_id"`
	Lat              *float64         `json:"geometry_location_lat"`
	Lng              *float64         `json:"geometry_location_lng"`
	Rating           *float64         `json:"rating"`
	UserRatingsTotal *int             `json:"user_ratings_total"`
	Status           RestaurantStatus `json:"status"`
	IsActive         bool             `json:"is_active"`
	CreatedAt        time.Time        `json:"created_at"`
}

// RestaurantSummary は検索候補用の最小表現。
type RestaurantSummary struct {
	ID   int64  `json:"restaurant_id"`
	Name string `json:"name"`
}
