package deal

import (
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/burlingtondeals/dealsapi/internal/model"
)

// Decimal はJSONの数値と数値文字列の両方を受け付ける価格値。
// 解釈できない値はエラーにせず OK=false として保持し、検証時に報告する。
type Decimal struct {
	Value float64
	OK    bool
}

// UnmarshalJSON はjson.Unmarshalerを実装する。
func (d *Decimal) UnmarshalJSON(b []byte) error {
	s := strings.TrimSpace(string(b))
	if unquoted, err := strconv.Unquote(s); err == nil {
		s = strings.TrimSpace(unquoted)
	}
	f, err := strconv.ParseFloat(s, 64)
	d.Value = f
	d.OK = err == nil && !math.IsNaN(f) && !math.IsInf(f, 0)
	return nil
}

// Dec は有効なDecimalを生成する。
func Dec(v float64) *Decimal {
	return &Decimal{Value: v, OK: true}
}

// CreateInput はディール作成の入力。
type CreateInput struct {
	Title              string         `json:"title"`
	Description        string         `json:"description"`
	Price              *Decimal       `json:"price"`
	DayOfWeek          string         `json:"day_of_week"`
	Category           string         `json:"category"`
	SecondCategory     string         `json:"second_category"`
	RestaurantID       int64          `json:"restaurant_id"`
	StartTime          string         `json:"start_time"`
	EndTime            string         `json:"end_time"`
	PricePerWing       *Decimal       `json:"price_per_wing"`
	DealType           model.DealType `json:"deal_type"`
	PercentageDiscount *Decimal       `json:"percentage_discount"`
}

// timeOfDayLayouts は start_time / end_time として受け付ける形式。
var timeOfDayLayouts = []string{"15:04", "15:04:05"}

// parseTimeOfDay は時刻文字列を検証して正規化する。空文字はnilを返す。
func parseTimeOfDay(field, s string) (*string, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	for _, layout := range timeOfDayLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			v := t.Format("15:04:05")
			return &v, nil
		}
	}
	return nil, model.NewValidationError("Invalid " + field + ". Use HH:MM.")
}

// promotedUntilLayouts は promoted_until として受け付ける形式。
// タイムゾーンのない形式はUTCとして解釈する。
var promotedUntilLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
}

const dateOnlyLayout = "2006-01-02"

// parsePromotedUntil は promoted_until を解釈する。
// 日付のみの指定はその日の終わり(UTC)までとする。
func parsePromotedUntil(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	for _, layout := range promotedUntilLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	if d, err := time.Parse(dateOnlyLayout, s); err == nil {
		return d.AddDate(0, 0, 1).Add(-time.Nanosecond), true
	}
	return time.Time{}, false
}

// parseTier はJSONの数値として整数値のティアを解釈する。
// 文字列や小数は受け付けない。
func parseTier(raw []byte) (int, bool) {
	s := strings.TrimSpace(string(raw))
	if s == "" || s[0] == '"' {
		return 0, false
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f != math.Trunc(f) || f > math.MaxInt32 || f < math.MinInt32 {
		return 0, false
	}
	return int(f), true
}

func optionalString(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}
