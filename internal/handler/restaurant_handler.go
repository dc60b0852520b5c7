package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/burlingtondeals/dealsapi/internal/model"
	"github.com/burlingtondeals/dealsapi/internal/restaurant"
)

// RestaurantServiceInterface は店舗ハンドラーが必要とするサービスインターフェース。
type RestaurantServiceInterface interface {
	ListActive(ctx context.Context) ([]*model.Restaurant, error)
	Search(ctx context.Context, query string) ([]model.RestaurantSummary, error)
	Get(ctx context.Context, id int64) (*model.Restaurant, error)
	Submit(ctx context.Context, in restaurant.SubmitInput) (*model.Restaurant, error)
	Deactivate(ctx context.Context, id int64) (*model.Restaurant, error)
	Activate(ctx context.Context, id int64) (*model.Restaurant, error)
}

// RestaurantHandler は店舗のHTTPハンドラー。
type RestaurantHandler struct {
	service RestaurantServiceInterface
	logger  *slog.Logger
}

// NewRestaurantHandler はRestaurantHandlerを生成する。
func NewRestaurantHandler(service RestaurantServiceInterface, logger *slog.Logger) *RestaurantHandler {
	return &RestaurantHandler{
		service: service,
		logger:  logger,
	}
}

// List は有効な店舗を名前順で返す。
// GET /api/restaurants
func (h *RestaurantHandler) List(w http.ResponseWriter, r *http.Request) {
	restaurants, err := h.service.ListActive(r.Context())
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, restaurants)
}

// Search は店舗名の候補を返す。2文字未満のクエリには空配列を返す。
// GET /api/restaurants/search?q=xxx
func (h *RestaurantHandler) Search(w http.ResponseWriter, r *http.Request) {
	results, err := h.service.Search(r.Context(), r.URL.Query().Get("q"))
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, results)
}

// Get は店舗の詳細を返す。
// GET /api/restaurants/{id}
func (h *RestaurantHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "Restaurant")
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}
	rest, err := h.service.Get(r.Context(), id)
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, rest)
}

// Submit は一般ユーザーからの店舗登録申請を受け付ける。
// POST /api/restaurants
func (h *RestaurantHandler) Submit(w http.ResponseWriter, r *http.Request) {
	var in restaurant.SubmitInput
	if err := decodeJSON(w, r, &in); err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}
	created, err := h.service.Submit(r.Context(), in)
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

// Deactivate は店舗を無効化する。
// PUT /api/restaurants/{id}/deactivate
func (h *RestaurantHandler) Deactivate(w http.ResponseWriter, r *http.Request) {
	h.moderate(w, r, h.service.Deactivate)
}

// Activate は承認待ちの店舗を有効化する。
// PUT /api/restaurants/{id}/activate
func (h *RestaurantHandler) Activate(w http.ResponseWriter, r *http.Request) {
	h.moderate(w, r, h.service.Activate)
}

func (h *RestaurantHandler) moderate(w http.ResponseWriter, r *http.Request, op func(ctx context.Context, id int64) (*model.Restaurant, error)) {
	id, err := pathID(r, "Restaurant")
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}
	rest, err := op(r.Context(), id)
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, rest)
}
