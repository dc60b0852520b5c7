package middleware

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/burlingtondeals/dealsapi/internal/model"
)

// ErrorResponseBody はAPIエラーレスポンスの統一フォーマット。
// 未認証アカウントのログイン拒否のみ requiresVerification を付ける。
type ErrorResponseBody struct {
	Error                string `json:"error"`
	RequiresVerification bool   `json:"requiresVerification,omitempty"`
}

// statusByCode はエラーコードとHTTPステータスの対応。
var statusByCode = map[string]int{
	model.ErrCodeValidation:            http.StatusBadRequest,
	model.ErrCodeMissingCredential:     http.StatusUnauthorized,
	model.ErrCodeInvalidCredential:     http.StatusForbidden,
	model.ErrCodeSubjectNotFound:       http.StatusForbidden,
	model.ErrCodeAccountInactive:       http.StatusForbidden,
	model.ErrCodeInsufficientPrivilege: http.StatusForbidden,
	model.ErrCodeDuplicateIdentity:     http.StatusBadRequest,
	model.ErrCodeNotFound:              http.StatusNotFound,
	model.ErrCodeRateLimited:           http.StatusTooManyRequests,
	model.ErrCodeExpiredToken:          http.StatusBadRequest,
	model.ErrCodeInvalidOrConsumed:     http.StatusBadRequest,
	model.ErrCodeInvalidLogin:          http.StatusBadRequest,
	model.ErrCodeAccountNotVerified:    http.StatusBadRequest,
	model.ErrCodeInternal:              http.StatusInternalServerError,
}

// StatusFor はAPIErrorに対応するHTTPステータスを返す。未知のコードは500。
func StatusFor(apiErr *model.APIError) int {
	if status, ok := statusByCode[apiErr.Code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// WriteJSON はJSONレスポンスを書き込む。
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// WriteErrorResponse は統一エラーフォーマットでHTTPエラーレスポンスを書き込む。
func WriteErrorResponse(w http.ResponseWriter, apiErr *model.APIError) {
	WriteJSON(w, StatusFor(apiErr), ErrorResponseBody{
		Error:                apiErr.Message,
		RequiresVerification: apiErr.Code == model.ErrCodeAccountNotVerified,
	})
}

// WriteInternalServerError は内部サーバーエラーの統一レスポンスを書き込む。
// 詳細はログのみに記録し、ユーザーには一般的なメッセージを返す。
func WriteInternalServerError(w http.ResponseWriter) {
	WriteErrorResponse(w, model.NewInternalError())
}

// WriteServiceError はサービス層のエラーをレスポンスに変換する。
// APIError以外はストア由来の詳細を含み得るため、ログに残して500を返す。
func WriteServiceError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		WriteErrorResponse(w, apiErr)
		return
	}
	logger.ErrorContext(r.Context(), "request failed",
		slog.String("error", err.Error()),
		slog.String("method", r.Method),
		slog.String("path", r.URL.Path),
		slog.String("request_id", RequestIDFromContext(r.Context())),
	)
	WriteInternalServerError(w)
}
