// Package restaurant は店舗の検索・登録申請・モデレーションを提供する。
package restaurant

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/burlingtondeals/dealsapi/internal/model"
	"github.com/burlingtondeals/dealsapi/internal/repository"
	"github.com/burlingtondeals/dealsapi/internal/security"
)

const (
	// minSearchLength 未満のクエリは検索せずに空の結果を返す。
	minSearchLength = 2
	// searchLimit は検索候補の最大件数。
	searchLimit = 15
	// maxNameLength は店舗名の最大文字数。
	maxNameLength = 255
)

// SubmitInput は一般ユーザーからの店舗登録申請。
type SubmitInput struct {
	Name     string `json:"name"`
	Address  string `json:"address"`
	City     string `json:"city"`
	Province string `json:"province"`
	Website  string `json:"website"`
}

// Service は店舗のビジネスロジックを提供する。
type Service struct {
	repo      repository.RestaurantRepository
	sanitizer security.TextSanitizer
	logger    *slog.Logger
}

// NewService はServiceを生成する。
func NewService(repo repository.RestaurantRepository, sanitizer security.TextSanitizer, logger *slog.Logger) *Service {
	return &Service{repo: repo, sanitizer: sanitizer, logger: logger}
}

func notFound() error {
	return model.NewNotFoundError("Restaurant")
}

// ListActive は有効な店舗を名前順で返す。
func (s *Service) ListActive(ctx context.Context) ([]*model.Restaurant, error) {
	return s.repo.ListActive(ctx)
}

// Search は店舗名の部分一致検索を行う。
func (s *Service) Search(ctx context.Context, query string) ([]model.RestaurantSummary, error) {
	query = strings.TrimSpace(query)
	if utf8.RuneCountInString(query) < minSearchLength {
		return []model.RestaurantSummary{}, nil
	}
	results, err := s.repo.Search(ctx, query, searchLimit)
	if err != nil {
		return nil, err
	}
	if results == nil {
		results = []model.RestaurantSummary{}
	}
	return results, nil
}

// Get は店舗を1件返す。
func (s *Service) Get(ctx context.Context, id int64) (*model.Restaurant, error) {
	r, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if r == nil {
		return nil, notFound()
	}
	return r, nil
}

// Submit は店舗の登録申請を承認待ちとして保存する。
// 入力はすべてタグを除去してから保存する。
func (s *Service) Submit(ctx context.Context, in SubmitInput) (*model.Restaurant, error) {
	name := s.sanitizer.Clean(in.Name)
	if name == "" {
		return nil, model.NewValidationError("Restaurant name is required.")
	}
	if utf8.RuneCountInString(name) > maxNameLength {
		return nil, model.NewValidationError("Restaurant name is too long.")
	}

	r := &model.Restaurant{
		Name:     name,
		Address:  s.optional(in.Address),
		City:     s.optional(in.City),
		Province: s.optional(in.Province),
		Status:   model.RestaurantStatusPending,
		IsActive: false,
	}
	if strings.TrimSpace(in.Website) != "" {
		website, err := security.NormalizeWebsite(in.Website)
		if err != nil {
			return nil, model.NewValidationError("Invalid website URL.")
		}
		r.Website = &website
	}

	if err := s.repo.Create(ctx, r); err != nil {
		return nil, err
	}
	s.logger.Info("restaurant submitted",
		slog.Int64("restaurant_id", r.ID),
		slog.String("name", r.Name),
	)
	return r, nil
}

func (s *Service) optional(v string) *string {
	v = s.sanitizer.Clean(v)
	if v == "" {
		return nil
	}
	return &v
}

// Deactivate は店舗を非表示にする。レコードは削除しない。
func (s *Service) Deactivate(ctx context.Context, id int64) (*model.Restaurant, error) {
	r, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if r == nil {
		return nil, notFound()
	}
	if err := s.setStatus(ctx, id, r.Status, false); err != nil {
		return nil, err
	}
	r.IsActive = false
	s.logger.Info("restaurant deactivated", slog.Int64("restaurant_id", id))
	return r, nil
}

// Activate は承認待ちの申請を承認し、有効な店舗として公開する。
func (s *Service) Activate(ctx context.Context, id int64) (*model.Restaurant, error) {
	r, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if r == nil {
		return nil, notFound()
	}
	if err := s.setStatus(ctx, id, model.RestaurantStatusActive, true); err != nil {
		return nil, err
	}
	r.Status = model.RestaurantStatusActive
	r.IsActive = true
	s.logger.Info("restaurant activated", slog.Int64("restaurant_id", id))
	return r, nil
}

func (s *Service) setStatus(ctx context.Context, id int64, status model.RestaurantStatus, active bool) error {
	updated, err := s.repo.SetStatus(ctx, id, status, active)
	if err != nil {
		return fmt.Errorf("failed to update restaurant status: %w", err)
	}
	if !updated {
		return notFound()
	}
	return nil
}
