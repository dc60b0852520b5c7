package model

import (
	"strings"
	"time"
)

// DealType は価格の表し方を表す閉じた列挙。
type DealType string

const (
	// DealTypeFlat は固定価格。flat_price が必須で percentage_discount は常にnull。
	DealTypeFlat DealType = "flat"
	// DealTypePercentage は割引率。0 < percentage_discount <= 100 が必須で flat_price は常にnull。
	DealTypePercentage DealType = "percentage"
	// DealTypeEvent はイベント告知。価格フィールドはどちらもnull。
	DealTypeEvent DealType = "event"
)

// DealTypes は有効なDealTypeの一覧。
var DealTypes = []DealType{DealTypeFlat, DealTypePercentage, DealTypeEvent}

// Valid はDealTypeが既知の値かを返す。
func (t DealType) Valid() bool {
	for _, v := range DealTypes {
		if t == v {
			return true
		}
	}
	return false
}

// Weekdays はday_of_weekとして受け付ける曜日名。
var Weekdays = []string{"Monday", "Tuesday", "Wednesday", "Thursday", "Friday", "Saturday", "Sunday"}

// NormalizeWeekday は大文字小文字を無視して曜日名を正規化する。
// 該当しない場合は false を返す。
func NormalizeWeekday(s string) (string, bool) {
	s = strings.TrimSpace(s)
	for _, d := range Weekdays {
		if strings.EqualFold(s, d) {
			return d, true
		}
	}
	return "", false
}

// Deal は店舗が提供する1曜日分のディールを表す。
// 複数曜日にまたがるディールは曜日ごとに別レコードとなる。
type Deal struct {
	ID                 int64      `json:"deal_id"`
	RestaurantID       int64      `json:"restaurant_id"`
	Title              string     `json:"title"`
	Description        string     `json:"description"`
	Price              float64    `json:"price"`
	DayOfWeek          string     `json:"day_of_week"`
	Category           string     `json:"category"`
	SecondCategory     *string    `json:"second_category"`
	StartTime          *string    `json:"start_time"`
	EndTime            *string    `json:"end_time"`
	IsApproved         bool       `json:"is_approved"`
	IsPromoted         bool       `json:"is_promoted"`
	PromotedUntil      *time.Time `json:"promoted_until"`
	PromotionTier      int        `json:"promotion_tier"`
	DealType           DealType   `json:"deal_type"`
	FlatPrice          *float64   `json:"flat_price"`
	PercentageDiscount *float64   `json:"percentage_discount"`
	PricePerWing       *float64   `json:"price_per_wing"`
	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at"`
}

// DealListing は一覧表示用に店舗情報を結合したディール。
type DealListing struct {
	Deal
	RestaurantName   string   `json:"restaurant_name"`
	Address          *string  `json:"address"`
	City             *string  `json:"city"`
	PlaceID          *string  `json:"place_id"`
	Lat              *float64 `json:"geometry_location_lat"`
	Lng              *float64 `json:"geometry_location_lng"`
	Website          *string  `json:"website"`
	Rating           *float64 `json:"rating"`
	UserRatingsTotal *int     `json:"user_ratings_total"`
}

// DealFilter は公開一覧の絞り込み条件。空文字は条件なし。
type DealFilter struct {
	DayOfWeek string
	Category  string
}
