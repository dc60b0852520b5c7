package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/burlingtondeals/dealsapi/internal/middleware"
	"github.com/burlingtondeals/dealsapi/internal/model"
)

// UserServiceInterface は管理者向けユーザー管理ハンドラーが必要とするサービスインターフェース。
type UserServiceInterface interface {
	List(ctx context.Context) ([]*model.User, error)
	ChangeRole(ctx context.Context, actor *model.User, id int64, role string) (*model.User, error)
	ToggleActive(ctx context.Context, actor *model.User, id int64) (*model.User, error)
}

// UserHandler は管理者向けユーザー管理のHTTPハンドラー。
type UserHandler struct {
	service UserServiceInterface
	logger  *slog.Logger
}

// NewUserHandler はUserHandlerを生成する。
func NewUserHandler(service UserServiceInterface, logger *slog.Logger) *UserHandler {
	return &UserHandler{
		service: service,
		logger:  logger,
	}
}

type changeRoleRequest struct {
	Role string `json:"role"`
}

// List は全ユーザーをID順で返す。
// GET /api/admin/users
func (h *UserHandler) List(w http.ResponseWriter, r *http.Request) {
	users, err := h.service.List(r.Context())
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, users)
}

// ChangeRole はユーザーのロールを変更する。
// PUT /api/admin/users/{id}/role
func (h *UserHandler) ChangeRole(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "User")
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}
	var req changeRoleRequest
	if err := decodeJSON(w, r, &req); err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}

	actor, _ := middleware.UserFromContext(r.Context())
	user, err := h.service.ChangeRole(r.Context(), actor, id, req.Role)
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// ToggleActive はユーザーの有効フラグを反転する。
// PUT /api/admin/users/{id}/deactivate
func (h *UserHandler) ToggleActive(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "User")
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}

	actor, _ := middleware.UserFromContext(r.Context())
	user, err := h.service.ToggleActive(r.Context(), actor, id)
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}
