// Package contact はお問い合わせフォームとニュースレター登録を扱う。
package contact

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/burlingtondeals/dealsapi/internal/model"
	"github.com/burlingtondeals/dealsapi/internal/notify"
	"github.com/burlingtondeals/dealsapi/internal/recaptcha"
	"github.com/burlingtondeals/dealsapi/internal/repository"
	"github.com/burlingtondeals/dealsapi/internal/security"
)

// SuccessMessage は問い合わせ受付時の応答メッセージ。ハニーポットに掛かった場合も同じ。
const SuccessMessage = "Thank you for contacting us! We will get back to you soon."

// NotificationKind は運営者宛て通知の種別。
const NotificationKind = "contact"

// Notifier は送信後の通知をバックグラウンドに渡す。
type Notifier interface {
	Enqueue(kind string, msg notify.Message) bool
}

// Submission はフォームの入力。
type Submission struct {
	Name           string `json:"name" validate:"required,max=255"`
	Email          string `json:"email" validate:"required,email,max=255"`
	Message        string `json:"message" validate:"required,max=5000"`
	Reason         string `json:"reason" validate:"max=100"`
	BusinessName   string `json:"businessName" validate:"max=255"`
	Phone          string `json:"phone" validate:"max=50"`
	RecaptchaToken string `json:"recaptchaToken"`
	Honeypot       string `json:"honeypot"`
}

// Result は受付結果。Storedは保存したかどうかで、ハニーポットの場合はfalse。
type Result struct {
	Message string
	ID      int64
	Stored  bool
}

// Config は問い合わせ処理の設定。
type Config struct {
	// Recipient は運営者の受信アドレス。
	Recipient string
}

// Service はお問い合わせの受付を行う。
type Service struct {
	repo      repository.ContactRepository
	verifier  recaptcha.Verifier
	notifier  Notifier
	sanitizer security.TextSanitizer
	validate  *validator.Validate
	config    Config
	logger    *slog.Logger
	now       func() time.Time
}

// NewService はServiceを生成する。verifierがnilの場合はreCAPTCHAトークンを検証しない。
func NewService(
	repo repository.ContactRepository,
	verifier recaptcha.Verifier,
	notifier Notifier,
	sanitizer security.TextSanitizer,
	config Config,
	logger *slog.Logger,
) *Service {
	return &Service{
		repo:      repo,
		verifier:  verifier,
		notifier:  notifier,
		sanitizer: sanitizer,
		validate:  newValidator(),
		config:    config,
		logger:    logger,
		now:       time.Now,
	}
}

func newValidator() *validator.Validate {
	return validator.New(validator.WithRequiredStructEnabled())
}

// Submit はハニーポット判定、入力検証、reCAPTCHA検証の順に処理し、
// 受け付けた問い合わせを保存してから運営者への通知を依頼する。
// 通知の失敗は呼び出し元に返さない。
func (s *Service) Submit(ctx context.Context, in Submission, remoteIP string) (*Result, error) {
	if strings.TrimSpace(in.Honeypot) != "" {
		s.logger.Info("contact honeypot triggered", slog.String("remote_ip", remoteIP))
		return &Result{Message: SuccessMessage}, nil
	}

	in.Name = s.sanitizer.Clean(in.Name)
	in.Email = strings.TrimSpace(in.Email)
	in.Message = s.sanitizer.Clean(in.Message)
	in.Reason = s.sanitizer.Clean(in.Reason)
	in.BusinessName = s.sanitizer.Clean(in.BusinessName)
	in.Phone = s.sanitizer.Clean(in.Phone)

	if in.Name == "" || in.Email == "" || in.Message == "" {
		return nil, model.NewValidationError("Name, email, and message are required.")
	}
	if err := s.validate.Struct(in); err != nil {
		return nil, model.NewValidationError(validationMessage(err))
	}

	if token := strings.TrimSpace(in.RecaptchaToken); token != "" && s.verifier != nil {
		ok, err := s.verifier.Verify(ctx, token, remoteIP)
		switch {
		case errors.Is(err, recaptcha.ErrTransport):
			s.logger.Warn("recaptcha unavailable, accepting submission", slog.String("error", err.Error()))
		case err != nil:
			return nil, err
		case !ok:
			return nil, model.NewValidationError("reCAPTCHA verification failed.")
		}
	}

	c := &model.ContactSubmission{
		Name:         in.Name,
		Email:        in.Email,
		Message:      in.Message,
		Reason:       in.Reason,
		BusinessName: in.BusinessName,
		Phone:        in.Phone,
	}
	if err := s.repo.Create(ctx, c); err != nil {
		return nil, err
	}

	submittedAt := c.CreatedAt
	if submittedAt.IsZero() {
		submittedAt = s.now()
	}
	s.notifier.Enqueue(NotificationKind, notify.ContactEmail(s.config.Recipient, notify.ContactDetails{
		Name:         c.Name,
		Email:        c.Email,
		Reason:       c.Reason,
		BusinessName: c.BusinessName,
		Phone:        c.Phone,
		Message:      c.Message,
		SubmittedAt:  submittedAt,
	}))

	s.logger.Info("contact submission stored", slog.Int64("contact_id", c.ID))
	return &Result{Message: SuccessMessage, ID: c.ID, Stored: true}, nil
}

// validationMessage は最初に失敗したフィールドを利用者向けのメッセージにする。
func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return "Invalid input."
	}
	fe := verrs[0]
	field := strings.ToLower(fe.Field())
	switch fe.Tag() {
	case "email":
		return "Please provide a valid email address."
	case "max":
		return "The " + field + " field is too long."
	default:
		return "Invalid " + field + "."
	}
}
