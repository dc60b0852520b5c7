// Package model はドメインモデルを定義する。
package model

import "fmt"

// APIError は統一エラーフォーマットを表す。
// Messageはそのままレスポンスの error フィールドとして返る。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, validation, resource, system
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeValidation            = "VALIDATION_ERROR"
	ErrCodeMissingCredential     = "MISSING_CREDENTIAL"
	ErrCodeInvalidCredential     = "INVALID_CREDENTIAL"
	ErrCodeSubjectNotFound       = "SUBJECT_NOT_FOUND"
	ErrCodeAccountInactive       = "ACCOUNT_INACTIVE"
	ErrCodeInsufficientPrivilege = "INSUFFICIENT_PRIVILEGE"
	ErrCodeDuplicateIdentity     = "DUPLICATE_IDENTITY"
	ErrCodeNotFound              = "NOT_FOUND"
	ErrCodeRateLimited           = "RATE_LIMITED"
	ErrCodeExpiredToken          = "EXPIRED_TOKEN"
	ErrCodeInvalidOrConsumed     = "INVALID_OR_CONSUMED_TOKEN"
	ErrCodeInvalidLogin          = "INVALID_LOGIN"
	ErrCodeAccountNotVerified    = "ACCOUNT_NOT_VERIFIED"
	ErrCodeInternal              = "INTERNAL_ERROR"
)

// NewValidationError は入力不備エラーを生成する。
func NewValidationError(message string) *APIError {
	return &APIError{
		Code:     ErrCodeValidation,
		Message:  message,
		Category: "validation",
	}
}

// NewMissingCredentialError はトークン未指定エラーを生成する。
func NewMissingCredentialError() *APIError {
	return &APIError{
		Code:     ErrCodeMissingCredential,
		Message:  "Missing token",
		Category: "auth",
	}
}

// NewInvalidCredentialError は署名不一致・期限切れ・形式不正のトークンに対するエラーを生成する。
func NewInvalidCredentialError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidCredential,
		Message:  "Invalid token",
		Category: "auth",
	}
}

// NewSubjectNotFoundError はトークンの主体が存在しない場合のエラーを生成する。
func NewSubjectNotFoundError() *APIError {
	return &APIError{
		Code:     ErrCodeSubjectNotFound,
		Message:  "User not found",
		Category: "auth",
	}
}

// NewAccountInactiveError は無効化されたアカウントに対するエラーを生成する。
func NewAccountInactiveError() *APIError {
	return &APIError{
		Code:     ErrCodeAccountInactive,
		Message:  "Account is deactivated",
		Category: "auth",
	}
}

// NewInsufficientPrivilegeError は管理者権限が必要な操作のエラーを生成する。
func NewInsufficientPrivilegeError() *APIError {
	return &APIError{
		Code:     ErrCodeInsufficientPrivilege,
		Message:  "Admin privileges required",
		Category: "auth",
	}
}

// NewDuplicateIdentityError はメールアドレス重複エラーを生成する。
func NewDuplicateIdentityError() *APIError {
	return &APIError{
		Code:     ErrCodeDuplicateIdentity,
		Message:  "User already exists.",
		Category: "auth",
	}
}

// NewNotFoundError はリソース未検出エラーを生成する。resourceは "Deal" などの表示名。
func NewNotFoundError(resource string) *APIError {
	return &APIError{
		Code:     ErrCodeNotFound,
		Message:  fmt.Sprintf("%s not found.", resource),
		Category: "resource",
	}
}

// NewRateLimitedError はレート制限超過エラーを生成する。
func NewRateLimitedError() *APIError {
	return &APIError{
		Code:     ErrCodeRateLimited,
		Message:  "Too many requests. Please try again later.",
		Category: "system",
	}
}

// NewExpiredTokenError は期限切れのリセットトークンに対するエラーを生成する。
func NewExpiredTokenError() *APIError {
	return &APIError{
		Code:     ErrCodeExpiredToken,
		Message:  "Token has expired.",
		Category: "auth",
	}
}

// NewInvalidOrConsumedTokenError は一致するシークレットがない場合のエラーを生成する。
// 使用済みのトークンもこれに含まれる。
func NewInvalidOrConsumedTokenError(message string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidOrConsumed,
		Message:  message,
		Category: "auth",
	}
}

// NewInvalidLoginError はメールアドレスまたはパスワード不一致のエラーを生成する。
func NewInvalidLoginError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidLogin,
		Message:  "Invalid email or password.",
		Category: "auth",
	}
}

// NewAccountNotVerifiedError はメール認証が未完了のアカウントに対するエラーを生成する。
func NewAccountNotVerifiedError() *APIError {
	return &APIError{
		Code:     ErrCodeAccountNotVerified,
		Message:  "Your account has not been verified.",
		Category: "auth",
	}
}

// NewInternalError は内部エラーを生成する。詳細はログにのみ残す。
func NewInternalError() *APIError {
	return &APIError{
		Code:     ErrCodeInternal,
		Message:  "Internal server error.",
		Category: "system",
	}
}
