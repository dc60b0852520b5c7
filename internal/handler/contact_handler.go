package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/burlingtondeals/dealsapi/internal/contact"
	"github.com/burlingtondeals/dealsapi/internal/middleware"
)

// ContactServiceInterface はお問い合わせハンドラーが必要とするサービスインターフェース。
type ContactServiceInterface interface {
	Submit(ctx context.Context, in contact.Submission, remoteIP string) (*contact.Result, error)
}

// NewsletterServiceInterface はニュースレター登録に必要なサービスインターフェース。
type NewsletterServiceInterface interface {
	Subscribe(ctx context.Context, email string) (string, error)
}

// ContactHandler はお問い合わせとニュースレター登録のHTTPハンドラー。
type ContactHandler struct {
	contacts   ContactServiceInterface
	newsletter NewsletterServiceInterface
	logger     *slog.Logger
}

// NewContactHandler はContactHandlerを生成する。
func NewContactHandler(contacts ContactServiceInterface, newsletter NewsletterServiceInterface, logger *slog.Logger) *ContactHandler {
	return &ContactHandler{
		contacts:   contacts,
		newsletter: newsletter,
		logger:     logger,
	}
}

type contactResponse struct {
	Message   string `json:"message"`
	ContactID int64  `json:"contact_id,omitempty"`
}

type subscribeRequest struct {
	Email string `json:"email"`
}

// Submit はお問い合わせを受け付ける。
// ハニーポットに掛かった場合も通常と同じ200を返す。
// POST /api/contact
func (h *ContactHandler) Submit(w http.ResponseWriter, r *http.Request) {
	var in contact.Submission
	if err := decodeJSON(w, r, &in); err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}

	result, err := h.contacts.Submit(r.Context(), in, middleware.ClientIP(r))
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, contactResponse{Message: result.Message, ContactID: result.ID})
}

// Subscribe はニュースレターに登録する。
// POST /api/newsletter/subscribe
func (h *ContactHandler) Subscribe(w http.ResponseWriter, r *http.Request) {
	var req subscribeRequest
	if err := decodeJSON(w, r, &req); err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}

	msg, err := h.newsletter.Subscribe(r.Context(), req.Email)
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, messageResponse{Message: msg})
}
