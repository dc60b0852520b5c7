package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/burlingtondeals/dealsapi/internal/auth"
	"github.com/burlingtondeals/dealsapi/internal/middleware"
	"github.com/burlingtondeals/dealsapi/internal/model"
)

// 認証エンドポイントの応答メッセージ
const (
	registeredMessage    = "Registration successful! Please check your email to verify your account."
	verifiedMessage      = "Email verified successfully! You can now log in to your account."
	resetRequestMessage  = "If that email exists, a reset link has been sent."
	passwordResetMessage = "Password successfully updated."
)

// AuthServiceInterface は認証ハンドラーが必要とするサービスインターフェース。
type AuthServiceInterface interface {
	Register(ctx context.Context, in auth.RegisterInput) (*model.User, error)
	Verify(ctx context.Context, token string) (*model.User, error)
	Login(ctx context.Context, email, password string) (string, *model.User, error)
	ForgotPassword(ctx context.Context, email string) error
	ResetPassword(ctx context.Context, token, newPassword string) error
}

// AuthHandler はアカウント登録・ログイン・パスワードリセットのHTTPハンドラー。
type AuthHandler struct {
	service AuthServiceInterface
	logger  *slog.Logger
}

// NewAuthHandler はAuthHandlerを生成する。
func NewAuthHandler(service AuthServiceInterface, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{
		service: service,
		logger:  logger,
	}
}

type registerRequest struct {
	Email       string `json:"email"`
	Password    string `json:"password"`
	DisplayName string `json:"display_name"`
}

type registerResponse struct {
	Message              string `json:"message"`
	RequiresVerification bool   `json:"requiresVerification"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token string `json:"token"`
}

type forgotRequest struct {
	Email string `json:"email"`
}

type resetRequest struct {
	Token       string `json:"token"`
	NewPassword string `json:"newPassword"`
}

// Register は認証待ちのアカウントを作成する。
// POST /api/auth/register
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeJSON(w, r, &req); err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}

	_, err := h.service.Register(r.Context(), auth.RegisterInput{
		Email:       req.Email,
		Password:    req.Password,
		DisplayName: req.DisplayName,
	})
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusCreated, registerResponse{
		Message:              registeredMessage,
		RequiresVerification: true,
	})
}

// Verify はメール認証リンクのシークレットでアカウントを有効化する。
// GET /api/auth/verify?token=xxx
func (h *AuthHandler) Verify(w http.ResponseWriter, r *http.Request) {
	if _, err := h.service.Verify(r.Context(), r.URL.Query().Get("token")); err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, messageResponse{Message: verifiedMessage})
}

// Login はアクセストークンを発行する。
// POST /api/auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}

	token, _, err := h.service.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, loginResponse{Token: token})
}

// Forgot はパスワードリセットリンクを送る。
// 登録の有無にかかわらず同じ応答を返す。
// POST /api/auth/forgot
func (h *AuthHandler) Forgot(w http.ResponseWriter, r *http.Request) {
	var req forgotRequest
	if err := decodeJSON(w, r, &req); err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}

	if err := h.service.ForgotPassword(r.Context(), req.Email); err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, messageResponse{Message: resetRequestMessage})
}

// Reset はリセットシークレットを消費して新しいパスワードを設定する。
// POST /api/auth/reset
func (h *AuthHandler) Reset(w http.ResponseWriter, r *http.Request) {
	var req resetRequest
	if err := decodeJSON(w, r, &req); err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}

	if err := h.service.ResetPassword(r.Context(), req.Token, req.NewPassword); err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, messageResponse{Message: passwordResetMessage})
}

// Me は現在のユーザー情報を返す。認証ミドルウェアが取得したユーザーをそのまま使う。
// GET /api/auth/me
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.UserFromContext(r.Context())
	if !ok {
		middleware.WriteErrorResponse(w, model.NewMissingCredentialError())
		return
	}
	writeJSON(w, http.StatusOK, user)
}
