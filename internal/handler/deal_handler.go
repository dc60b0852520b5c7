package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/burlingtondeals/dealsapi/internal/deal"
	"github.com/burlingtondeals/dealsapi/internal/model"
)

const dealDeletedMessage = "Deal deleted successfully."

// DealServiceInterface はディールハンドラーが必要とするサービスインターフェース。
type DealServiceInterface interface {
	ListApproved(ctx context.Context, filter model.DealFilter) ([]*model.DealListing, error)
	ListAll(ctx context.Context) ([]*model.DealListing, error)
	Create(ctx context.Context, in deal.CreateInput) (*model.Deal, error)
	Update(ctx context.Context, id int64, body map[string]json.RawMessage) (*model.Deal, error)
	Approve(ctx context.Context, id int64) (*model.Deal, error)
	Reject(ctx context.Context, id int64) (*model.Deal, error)
	Promote(ctx context.Context, id int64, in deal.PromoteInput) (*model.Deal, error)
	Unfeature(ctx context.Context, id int64) (*model.Deal, error)
	SetPromotionTier(ctx context.Context, id int64, raw json.RawMessage) (*model.Deal, error)
	Delete(ctx context.Context, id int64) error
}

// DealHandler はディールのHTTPハンドラー。
type DealHandler struct {
	service DealServiceInterface
	feed    FeedConfig
	logger  *slog.Logger
}

// NewDealHandler はDealHandlerを生成する。
func NewDealHandler(service DealServiceInterface, feed FeedConfig, logger *slog.Logger) *DealHandler {
	return &DealHandler{
		service: service,
		feed:    feed,
		logger:  logger,
	}
}

type promotionTierRequest struct {
	PromotionTier json.RawMessage `json:"promotion_tier"`
}

// ListApproved は公開中のディールを表示順で返す。
// GET /api/deals/approved?day=Monday&category=Wings
func (h *DealHandler) ListApproved(w http.ResponseWriter, r *http.Request) {
	deals, err := h.service.ListApproved(r.Context(), filterFromQuery(r))
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, deals)
}

// Feed は公開中のディールをRSS 2.0で返す。
// GET /api/deals/feed.rss
func (h *DealHandler) Feed(w http.ResponseWriter, r *http.Request) {
	deals, err := h.service.ListApproved(r.Context(), filterFromQuery(r))
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}
	if err := writeRSS(w, h.feed, deals); err != nil {
		h.logger.ErrorContext(r.Context(), "failed to write rss feed", slog.String("error", err.Error()))
	}
}

// ListAll は未承認を含む全ディールを返す。
// GET /api/deals
func (h *DealHandler) ListAll(w http.ResponseWriter, r *http.Request) {
	deals, err := h.service.ListAll(r.Context())
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, deals)
}

// Create はディールを未承認で作成する。
// POST /api/deals
func (h *DealHandler) Create(w http.ResponseWriter, r *http.Request) {
	var in deal.CreateInput
	if err := decodeJSON(w, r, &in); err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}

	created, err := h.service.Create(r.Context(), in)
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

// Update は許可されたフィールドのみを部分更新する。
// PUT /api/deals/{id}
func (h *DealHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "Deal")
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}
	var body map[string]json.RawMessage
	if err := decodeJSON(w, r, &body); err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}

	h.respondDeal(w, r, func(ctx context.Context) (*model.Deal, error) {
		return h.service.Update(ctx, id, body)
	})
}

// Approve はディールを公開する。
// PUT /api/deals/{id}/approve
func (h *DealHandler) Approve(w http.ResponseWriter, r *http.Request) {
	h.withID(w, r, h.service.Approve)
}

// Reject はディールを非公開に戻す。
// PUT /api/deals/{id}/reject
func (h *DealHandler) Reject(w http.ResponseWriter, r *http.Request) {
	h.withID(w, r, h.service.Reject)
}

// Unfeature はプロモーションを解除する。
// PUT /api/deals/{id}/unfeature
func (h *DealHandler) Unfeature(w http.ResponseWriter, r *http.Request) {
	h.withID(w, r, h.service.Unfeature)
}

// Promote はディールを期限付きでプロモーション表示にする。
// PUT /api/deals/{id}/promote
func (h *DealHandler) Promote(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "Deal")
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}
	var in deal.PromoteInput
	if err := decodeJSON(w, r, &in); err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}

	h.respondDeal(w, r, func(ctx context.Context) (*model.Deal, error) {
		return h.service.Promote(ctx, id, in)
	})
}

// SetPromotionTier は表示順の重みを設定する。
// PUT /api/deals/{id}/setPromotionTier
func (h *DealHandler) SetPromotionTier(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "Deal")
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}
	var req promotionTierRequest
	if err := decodeJSON(w, r, &req); err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}

	h.respondDeal(w, r, func(ctx context.Context) (*model.Deal, error) {
		return h.service.SetPromotionTier(ctx, id, req.PromotionTier)
	})
}

// Delete はディールを削除する。
// DELETE /api/deals/{id}
func (h *DealHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "Deal")
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}
	if err := h.service.Delete(r.Context(), id); err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, messageResponse{Message: dealDeletedMessage})
}

func (h *DealHandler) withID(w http.ResponseWriter, r *http.Request, op func(ctx context.Context, id int64) (*model.Deal, error)) {
	id, err := pathID(r, "Deal")
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}
	h.respondDeal(w, r, func(ctx context.Context) (*model.Deal, error) {
		return op(ctx, id)
	})
}

func (h *DealHandler) respondDeal(w http.ResponseWriter, r *http.Request, op func(ctx context.Context) (*model.Deal, error)) {
	d, err := op(r.Context())
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

func filterFromQuery(r *http.Request) model.DealFilter {
	q := r.URL.Query()
	return model.DealFilter{
		DayOfWeek: q.Get("day"),
		Category:  q.Get("category"),
	}
}
