// Package deal はディールの作成・更新・承認・プロモーションなどのライフサイクル操作を提供する。
package deal

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/burlingtondeals/dealsapi/internal/model"
	"github.com/burlingtondeals/dealsapi/internal/repository"
)

// RestaurantFinder はディール作成時の店舗存在確認に使う。
type RestaurantFinder interface {
	FindByID(ctx context.Context, id int64) (*model.Restaurant, error)
}

// Service はディールのビジネスロジックを提供する。
type Service struct {
	deals       repository.DealRepository
	restaurants RestaurantFinder
	logger      *slog.Logger
	now         func() time.Time
}

// NewService はServiceを生成する。
func NewService(deals repository.DealRepository, restaurants RestaurantFinder, logger *slog.Logger) *Service {
	return &Service{
		deals:       deals,
		restaurants: restaurants,
		logger:      logger,
		now:         time.Now,
	}
}

func notFound() error {
	return model.NewNotFoundError("Deal")
}

// ListApproved は公開一覧を返す。曜日フィルタは正規化し、不正な曜日はエラーとする。
func (s *Service) ListApproved(ctx context.Context, filter model.DealFilter) ([]*model.DealListing, error) {
	if filter.DayOfWeek != "" {
		day, ok := model.NormalizeWeekday(filter.DayOfWeek)
		if !ok {
			return nil, model.NewValidationError("Invalid day.")
		}
		filter.DayOfWeek = day
	}
	filter.Category = strings.TrimSpace(filter.Category)
	return s.deals.ListApproved(ctx, filter)
}

// ListAll は管理者向けに全ディールを返す。
func (s *Service) ListAll(ctx context.Context) ([]*model.DealListing, error) {
	return s.deals.ListAll(ctx)
}

// Create はディールを未承認で作成する。
func (s *Service) Create(ctx context.Context, in CreateInput) (*model.Deal, error) {
	title := strings.TrimSpace(in.Title)
	description := strings.TrimSpace(in.Description)
	category := strings.TrimSpace(in.Category)
	if title == "" || description == "" || in.Price == nil || strings.TrimSpace(in.DayOfWeek) == "" ||
		category == "" || in.RestaurantID == 0 || in.DealType == "" {
		return nil, model.NewValidationError("Missing required fields.")
	}
	if !in.DealType.Valid() {
		return nil, model.NewValidationError(invalidDealTypeMessage)
	}
	day, ok := model.NormalizeWeekday(in.DayOfWeek)
	if !ok {
		return nil, model.NewValidationError("Invalid day_of_week.")
	}

	if !in.Price.OK {
		return nil, model.NewValidationError("Invalid price for flat deal.")
	}
	var percentage *float64
	if in.PercentageDiscount != nil {
		if !in.PercentageDiscount.OK {
			return nil, model.NewValidationError("Invalid percentage_discount. Must be between 0 and 100.")
		}
		percentage = &in.PercentageDiscount.Value
	}
	priced, err := resolvePricing(in.DealType, in.Price.Value, percentage)
	if err != nil {
		return nil, err
	}

	startTime, err := parseTimeOfDay("start_time", in.StartTime)
	if err != nil {
		return nil, err
	}
	endTime, err := parseTimeOfDay("end_time", in.EndTime)
	if err != nil {
		return nil, err
	}
	var perWing *float64
	if in.PricePerWing != nil {
		if !in.PricePerWing.OK || in.PricePerWing.Value < 0 {
			return nil, model.NewValidationError("Invalid value for price_per_wing.")
		}
		perWing = &in.PricePerWing.Value
	}

	restaurant, err := s.restaurants.FindByID(ctx, in.RestaurantID)
	if err != nil {
		return nil, fmt.Errorf("failed to find restaurant: %w", err)
	}
	if restaurant == nil {
		return nil, model.NewValidationError("Invalid restaurant_id.")
	}

	d := &model.Deal{
		RestaurantID:       in.RestaurantID,
		Title:              title,
		Description:        description,
		Price:              priced.price,
		DayOfWeek:          day,
		Category:           category,
		SecondCategory:     optionalString(in.SecondCategory),
		StartTime:          startTime,
		EndTime:            endTime,
		IsApproved:         false,
		PromotionTier:      0,
		DealType:           in.DealType,
		FlatPrice:          priced.flatPrice,
		PercentageDiscount: priced.percentage,
		PricePerWing:       perWing,
	}
	if err := s.deals.Create(ctx, d); err != nil {
		return nil, err
	}

	s.logger.Info("deal created",
		slog.Int64("deal_id", d.ID),
		slog.Int64("restaurant_id", d.RestaurantID),
		slog.String("deal_type", string(d.DealType)),
	)
	return d, nil
}

// Update は許可されたフィールドのみを部分更新する。
// 更新後の価格モードを再検証し、モードに合わない価格フィールドはnullにする。
func (s *Service) Update(ctx context.Context, id int64, body map[string]json.RawMessage) (*model.Deal, error) {
	patch, err := ParseUpdate(body)
	if err != nil {
		return nil, err
	}

	current, err := s.deals.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if current == nil {
		return nil, notFound()
	}

	if err := reconcilePricing(patch, current); err != nil {
		return nil, err
	}
	return s.apply(ctx, id, patch.Assignments())
}

// reconcilePricing は価格関連のフィールドが更新される場合に、
// 更新後の状態が価格モードの不変条件を満たすようPatchを補正する。
func reconcilePricing(p *Patch, current *model.Deal) error {
	if !p.Has("deal_type") && !p.Has("price") && !p.Has("percentage_discount") {
		return nil
	}

	dealType := current.DealType
	if v, ok := p.values["deal_type"].(model.DealType); ok {
		dealType = v
	}
	price := current.Price
	if v, ok := p.values["price"].(float64); ok {
		price = v
	}
	var percentage *float64
	switch {
	case p.Has("percentage_discount"):
		percentage = floatValue(p.values["percentage_discount"])
	case dealType == model.DealTypePercentage:
		percentage = current.PercentageDiscount
	}

	priced, err := resolvePricing(dealType, price, percentage)
	if err != nil {
		return err
	}

	if p.Has("price") || dealType == model.DealTypeEvent {
		p.set("price", priced.price)
	}
	p.set("flat_price", nullableFloat(priced.flatPrice))
	p.set("percentage_discount", nullableFloat(priced.percentage))
	return nil
}

func nullableFloat(f *float64) any {
	if f == nil {
		return nil
	}
	return *f
}

func (s *Service) apply(ctx context.Context, id int64, assignments []repository.DealAssignment) (*model.Deal, error) {
	d, err := s.deals.Update(ctx, id, assignments)
	if err != nil {
		return nil, err
	}
	if d == nil {
		return nil, notFound()
	}
	return d, nil
}

// Approve はディールを公開状態にする。
func (s *Service) Approve(ctx context.Context, id int64) (*model.Deal, error) {
	return s.apply(ctx, id, []repository.DealAssignment{{Column: "is_approved", Value: true}})
}

// Reject はディールを非公開状態に戻す。
func (s *Service) Reject(ctx context.Context, id int64) (*model.Deal, error) {
	return s.apply(ctx, id, []repository.DealAssignment{{Column: "is_approved", Value: false}})
}

// PromoteInput はプロモーション設定の入力。
type PromoteInput struct {
	PromotedUntil string          `json:"promoted_until"`
	PromotionTier json.RawMessage `json:"promotion_tier"`
}

// Promote はディールを期限付きでプロモーション表示にする。過去の日時は受け付けない。
func (s *Service) Promote(ctx context.Context, id int64, in PromoteInput) (*model.Deal, error) {
	if strings.TrimSpace(in.PromotedUntil) == "" {
		return nil, model.NewValidationError("Missing promoted_until field.")
	}
	until, ok := parsePromotedUntil(in.PromotedUntil)
	if !ok {
		return nil, model.NewValidationError("Invalid promoted_until date.")
	}
	if until.Before(s.now()) {
		return nil, model.NewValidationError("promoted_until must not be in the past.")
	}

	assignments := []repository.DealAssignment{
		{Column: "is_promoted", Value: true},
		{Column: "promoted_until", Value: until},
	}
	if len(in.PromotionTier) > 0 && !isNull(in.PromotionTier) {
		tier, ok := parseTier(in.PromotionTier)
		if !ok {
			return nil, model.NewValidationError("Invalid promotion_tier, must be a number.")
		}
		assignments = append(assignments, repository.DealAssignment{Column: "promotion_tier", Value: tier})
	}
	return s.apply(ctx, id, assignments)
}

// Unfeature はプロモーション表示を解除する。
func (s *Service) Unfeature(ctx context.Context, id int64) (*model.Deal, error) {
	return s.apply(ctx, id, []repository.DealAssignment{
		{Column: "is_promoted", Value: false},
		{Column: "promoted_until", Value: nil},
	})
}

// SetPromotionTier は表示順の重みを設定する。値はJSONの整数でなければならない。
func (s *Service) SetPromotionTier(ctx context.Context, id int64, raw json.RawMessage) (*model.Deal, error) {
	tier, ok := parseTier(raw)
	if !ok {
		return nil, model.NewValidationError("Invalid promotion_tier, must be a number.")
	}
	return s.apply(ctx, id, []repository.DealAssignment{{Column: "promotion_tier", Value: tier}})
}

// Delete はディールを削除する。
func (s *Service) Delete(ctx context.Context, id int64) error {
	deleted, err := s.deals.Delete(ctx, id)
	if err != nil {
		return err
	}
	if !deleted {
		return notFound()
	}
	s.logger.Info("deal deleted", slog.Int64("deal_id", id))
	return nil
}
