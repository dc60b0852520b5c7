package contact

import (
	"context"
	"log/slog"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/burlingtondeals/dealsapi/internal/model"
	"github.com/burlingtondeals/dealsapi/internal/repository"
)

const (
	subscribedMessage        = "You've been subscribed to our newsletter!"
	alreadySubscribedMessage = "You're already subscribed to our newsletter."
)

// NewsletterService はニュースレターの購読登録を行う。
type NewsletterService struct {
	repo     repository.NewsletterRepository
	validate *validator.Validate
	logger   *slog.Logger
}

// NewNewsletterService はNewsletterServiceを生成する。
func NewNewsletterService(repo repository.NewsletterRepository, logger *slog.Logger) *NewsletterService {
	return &NewsletterService{repo: repo, validate: newValidator(), logger: logger}
}

// Subscribe はメールアドレスを登録する。登録済みでも成功として扱う。
func (s *NewsletterService) Subscribe(ctx context.Context, email string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return "", model.NewValidationError("Email is required.")
	}
	if err := s.validate.Var(email, "email,max=255"); err != nil {
		return "", model.NewValidationError("Please enter a valid email address.")
	}

	created, err := s.repo.Subscribe(ctx, email)
	if err != nil {
		return "", err
	}
	if !created {
		return alreadySubscribedMessage, nil
	}
	s.logger.Info("newsletter subscriber added")
	return subscribedMessage, nil
}
