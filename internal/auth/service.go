// Package auth はアカウント登録、メール認証、ログイン、パスワードリセットと
// アクセストークンの発行・検証を提供する。
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/burlingtondeals/dealsapi/internal/model"
	"github.com/burlingtondeals/dealsapi/internal/notify"
	"github.com/burlingtondeals/dealsapi/internal/repository"
)

// BcryptCost はパスワードハッシュのコスト。
const BcryptCost = 10

// Notifier は通知をバックグラウンド配送に渡す。notify.Dispatcherが実装する。
type Notifier interface {
	Enqueue(kind string, msg notify.Message) bool
}

// ServiceConfig は認証サービスの設定。
type ServiceConfig struct {
	FrontendURL   string        // メール内リンクのベースURL
	ResetTokenTTL time.Duration // リセットリンクの有効期間
}

// Service は認証に関するビジネスロジックを提供する。
type Service struct {
	users    repository.UserRepository
	resets   repository.PasswordResetRepository
	tokens   *TokenService
	notifier Notifier
	config   ServiceConfig
	logger   *slog.Logger
	now      func() time.Time
}

// NewService はServiceを生成する。
func NewService(
	users repository.UserRepository,
	resets repository.PasswordResetRepository,
	tokens *TokenService,
	notifier Notifier,
	config ServiceConfig,
	logger *slog.Logger,
) *Service {
	return &Service{
		users:    users,
		resets:   resets,
		tokens:   tokens,
		notifier: notifier,
		config:   config,
		logger:   logger,
		now:      time.Now,
	}
}

// RegisterInput はアカウント登録の入力。
type RegisterInput struct {
	Email       string
	Password    string
	DisplayName string
}

// Register は認証待ちのアカウントを作成し、認証メールを送る。
func (s *Service) Register(ctx context.Context, in RegisterInput) (*model.User, error) {
	email := strings.TrimSpace(in.Email)
	displayName := strings.TrimSpace(in.DisplayName)
	if email == "" || in.Password == "" || displayName == "" {
		return nil, model.NewValidationError("Missing required fields.")
	}

	existing, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("failed to look up user: %w", err)
	}
	if existing != nil {
		return nil, model.NewDuplicateIdentityError()
	}

	hash, err := HashPassword(in.Password)
	if err != nil {
		return nil, err
	}
	secret, secretHash, err := NewSecret()
	if err != nil {
		return nil, err
	}

	user := &model.User{
		Email:             email,
		PasswordHash:      hash,
		DisplayName:       displayName,
		Role:              model.RoleUser,
		IsActive:          false,
		VerificationToken: secretHash,
	}
	if err := s.users.Create(ctx, user); err != nil {
		// 同時登録は一意制約で検出する
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, model.NewDuplicateIdentityError()
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	link := s.link("/verify-email", secret)
	s.notifier.Enqueue("verification", notify.VerificationEmail(user.Email, user.DisplayName, link))

	s.logger.Info("user registered", slog.Int64("user_id", user.ID))
	return user, nil
}

// Verify はメール認証シークレットを消費してアカウントを有効化する。
// 同じシークレットは2回使えない。
func (s *Service) Verify(ctx context.Context, token string) (*model.User, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, model.NewValidationError("Verification token is required.")
	}

	user, err := s.users.ActivateByVerificationToken(ctx, HashSecret(token))
	if err != nil {
		return nil, fmt.Errorf("failed to activate user: %w", err)
	}
	if user == nil {
		return nil, model.NewInvalidOrConsumedTokenError("Invalid verification token.")
	}

	s.logger.Info("user verified", slog.Int64("user_id", user.ID))
	return user, nil
}

// Login は資格情報を検証してアクセストークンを発行する。
// 未登録のメールアドレスとパスワード不一致は区別しない。
func (s *Service) Login(ctx context.Context, email, password string) (string, *model.User, error) {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return "", nil, model.NewValidationError("Email and password are required.")
	}

	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		return "", nil, fmt.Errorf("failed to look up user: %w", err)
	}
	if user == nil {
		// 応答時間でアカウントの有無が分からないようにハッシュ比較を行う
		_ = bcrypt.CompareHashAndPassword(dummyHash(), []byte(password))
		return "", nil, model.NewInvalidLoginError()
	}
	if !CheckPassword(user.PasswordHash, password) {
		return "", nil, model.NewInvalidLoginError()
	}
	if user.PendingVerification() {
		return "", nil, model.NewAccountNotVerifiedError()
	}
	if !user.IsActive {
		return "", nil, model.NewAccountInactiveError()
	}

	token, err := s.tokens.Issue(user)
	if err != nil {
		return "", nil, err
	}
	return token, user, nil
}

// ForgotPassword はパスワードリセットリンクを送る。
// 未登録のメールアドレスでも成功として扱い、呼び出し元には区別させない。
func (s *Service) ForgotPassword(ctx context.Context, email string) error {
	email = strings.TrimSpace(email)
	if email == "" {
		return model.NewValidationError("Email is required.")
	}

	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		return fmt.Errorf("failed to look up user: %w", err)
	}
	if user == nil {
		s.logger.Info("password reset requested for unknown email")
		return nil
	}

	secret, secretHash, err := NewSecret()
	if err != nil {
		return err
	}
	reset := &model.PasswordReset{
		UserID:    user.ID,
		TokenHash: secretHash,
		ExpiresAt: s.now().Add(s.config.ResetTokenTTL),
	}
	if err := s.resets.ReplaceForUser(ctx, reset); err != nil {
		return fmt.Errorf("failed to store reset request: %w", err)
	}

	link := s.link("/reset-password", secret)
	s.notifier.Enqueue("password_reset", notify.PasswordResetEmail(user.Email, link, s.config.ResetTokenTTL))

	s.logger.Info("password reset requested", slog.Int64("user_id", user.ID))
	return nil
}

// ResetPassword はリセットシークレットを消費してパスワードを更新する。
// 期限切れの要求は削除せずに残す。
func (s *Service) ResetPassword(ctx context.Context, token, newPassword string) error {
	token = strings.TrimSpace(token)
	if token == "" || newPassword == "" {
		return model.NewValidationError("Token and new password are required.")
	}

	reset, err := s.resets.FindByTokenHash(ctx, HashSecret(token))
	if err != nil {
		return fmt.Errorf("failed to look up reset request: %w", err)
	}
	if reset == nil {
		return model.NewInvalidOrConsumedTokenError("Invalid or expired token.")
	}
	if reset.Expired(s.now()) {
		return model.NewExpiredTokenError()
	}

	hash, err := HashPassword(newPassword)
	if err != nil {
		return err
	}
	if err := s.resets.Consume(ctx, reset, hash); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return model.NewInvalidOrConsumedTokenError("Invalid or expired token.")
		}
		return fmt.Errorf("failed to reset password: %w", err)
	}

	s.logger.Info("password reset completed", slog.Int64("user_id", reset.UserID))
	return nil
}

func (s *Service) link(path, secret string) string {
	return s.config.FrontendURL + path + "?token=" + url.QueryEscape(secret)
}

// HashPassword はbcryptでパスワードをハッシュ化する。
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), BcryptCost)
	if errors.Is(err, bcrypt.ErrPasswordTooLong) {
		return "", model.NewValidationError("Password must be at most 72 bytes.")
	}
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hash), nil
}

// CheckPassword はパスワードがハッシュと一致するかを返す。
func CheckPassword(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

var (
	dummyOnce sync.Once
	dummy     []byte
)

func dummyHash() []byte {
	dummyOnce.Do(func() {
		dummy, _ = bcrypt.GenerateFromPassword([]byte("dummy-password"), BcryptCost)
	})
	return dummy
}
