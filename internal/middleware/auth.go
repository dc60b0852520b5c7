package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/burlingtondeals/dealsapi/internal/auth"
	"github.com/burlingtondeals/dealsapi/internal/model"
)

var userContextKey = contextKey("user")

// TokenVerifier はベアラートークンを検証する。
type TokenVerifier interface {
	Verify(token string) (*auth.Claims, error)
}

// UserFinder はトークンの主体を引き直すためのインターフェース。
// repository.UserRepositoryの部分集合として定義する。
type UserFinder interface {
	FindByID(ctx context.Context, id int64) (*model.User, error)
}

// NewAuthMiddleware はAuthorizationヘッダーのベアラートークンを検証し、
// 主体のアカウントを毎回ストアから取得してコンテキストに注入する。
// ロール変更や無効化はトークンの有効期限内でも次のリクエストから反映される。
func NewAuthMiddleware(verifier TokenVerifier, users UserFinder, logger *slog.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := bearerToken(r)
			if !ok {
				WriteErrorResponse(w, model.NewMissingCredentialError())
				return
			}

			claims, err := verifier.Verify(token)
			if err != nil {
				WriteErrorResponse(w, model.NewInvalidCredentialError())
				return
			}

			user, err := users.FindByID(r.Context(), claims.UserID)
			if err != nil {
				WriteServiceError(w, r, logger, err)
				return
			}
			if user == nil {
				WriteErrorResponse(w, model.NewSubjectNotFoundError())
				return
			}
			if !user.IsActive {
				WriteErrorResponse(w, model.NewAccountInactiveError())
				return
			}

			if s := stateFromContext(r.Context()); s != nil {
				s.userID = user.ID
			}
			next.ServeHTTP(w, r.WithContext(ContextWithUser(r.Context(), user)))
		})
	}
}

// RequireAdmin は認証済みユーザーが管理者であることを要求する。
// NewAuthMiddlewareの後に配置し、トークンは再検証しない。
func RequireAdmin() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, ok := UserFromContext(r.Context())
			if !ok {
				WriteErrorResponse(w, model.NewMissingCredentialError())
				return
			}
			if !user.IsAdmin() {
				WriteErrorResponse(w, model.NewInsufficientPrivilegeError())
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func bearerToken(r *http.Request) (string, bool) {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

// UserFromContext は認証ミドルウェアが注入したユーザーを返す。
func UserFromContext(ctx context.Context) (*model.User, bool) {
	u, ok := ctx.Value(userContextKey).(*model.User)
	return u, ok && u != nil
}

// ContextWithUser はコンテキストにユーザーを注入する。
// テストやミドルウェア以外のコンテキスト生成で使用する。
func ContextWithUser(ctx context.Context, user *model.User) context.Context {
	return context.WithValue(ctx, userContextKey, user)
}
