// Package user は管理者向けのユーザー管理を提供する。
package user

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/burlingtondeals/dealsapi/internal/model"
	"github.com/burlingtondeals/dealsapi/internal/repository"
)

// Service はユーザー管理のサービス層。
// ロール変更と有効フラグの切り替えは次のリクエストから認可ミドルウェアに反映される。
type Service struct {
	userRepo repository.UserRepository
	logger   *slog.Logger
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(userRepo repository.UserRepository, logger *slog.Logger) *Service {
	return &Service{
		userRepo: userRepo,
		logger:   logger,
	}
}

func notFound() error {
	return model.NewNotFoundError("User")
}

// List は全ユーザーをID順で返す。
func (s *Service) List(ctx context.Context) ([]*model.User, error) {
	users, err := s.userRepo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("ユーザー一覧の取得に失敗しました: %w", err)
	}
	if users == nil {
		users = []*model.User{}
	}
	return users, nil
}

// ChangeRole はユーザーのロールを変更する。
func (s *Service) ChangeRole(ctx context.Context, actor *model.User, id int64, role string) (*model.User, error) {
	role = strings.TrimSpace(role)
	if role == "" {
		return nil, model.NewValidationError("Role is required.")
	}
	r := model.Role(role)
	if !r.Valid() {
		return nil, model.NewValidationError("Invalid role.")
	}

	u, err := s.userRepo.UpdateRole(ctx, id, r)
	if err != nil {
		return nil, fmt.Errorf("ロールの更新に失敗しました: %w", err)
	}
	if u == nil {
		return nil, notFound()
	}

	s.logger.Info("ユーザーのロールを変更しました",
		slog.Int64("user_id", id),
		slog.String("role", string(r)),
		slog.Int64("actor_id", actorID(actor)),
	)
	return u, nil
}

// ToggleActive はユーザーの有効フラグを反転する。
func (s *Service) ToggleActive(ctx context.Context, actor *model.User, id int64) (*model.User, error) {
	u, err := s.userRepo.ToggleActive(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("有効フラグの更新に失敗しました: %w", err)
	}
	if u == nil {
		return nil, notFound()
	}

	s.logger.Info("ユーザーの有効フラグを切り替えました",
		slog.Int64("user_id", id),
		slog.Bool("is_active", u.IsActive),
		slog.Int64("actor_id", actorID(actor)),
	)
	return u, nil
}

func actorID(actor *model.User) int64 {
	if actor == nil {
		return 0
	}
	return actor.ID
}
