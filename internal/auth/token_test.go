package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/burlingtondeals/dealsapi/internal/model"
)

func TestTokenService_IssueAndVerify(t *testing.T) {
	svc := NewTokenService("secret", time.Hour)
	user := &model.User{ID: 5, Email: "a@example.com", Role: model.RoleAdmin}

	token, err := svc.Issue(user)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	claims, err := svc.Verify(token)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if claims.UserID != 5 || claims.Email != "a@example.com" || claims.Role != model.RoleAdmin {
		t.Errorf("claims = %+v", claims)
	}
	if claims.ExpiresAt == nil || claims.IssuedAt == nil {
		t.Fatal("iat and exp must be set")
	}
	if got := claims.ExpiresAt.Sub(claims.IssuedAt.Time); got != time.Hour {
		t.Errorf("exp - iat = %v, want 1h", got)
	}
}

func TestTokenService_Verify_Rejects(t *testing.T) {
	issued := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	svc := NewTokenService("secret", time.Hour)
	svc.now = func() time.Time { return issued }
	valid, err := svc.Issue(&model.User{ID: 1})
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	expiredSvc := NewTokenService("secret", time.Hour)
	expiredSvc.now = func() time.Time { return issued.Add(2 * time.Hour) }

	otherSecret := NewTokenService("other", time.Hour)
	otherSecret.now = svc.now

	noneToken, err := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{UserID: 1}).
		SignedString(jwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatalf("sign none: %v", err)
	}

	noExp, err := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{UserID: 1}).SignedString([]byte("secret"))
	if err != nil {
		t.Fatalf("sign no exp: %v", err)
	}

	tests := []struct {
		name  string
		svc   *TokenService
		token string
	}{
		{"expired", expiredSvc, valid},
		{"wrong secret", otherSecret, valid},
		{"malformed", svc, "not.a.token"},
		{"alg none", svc, noneToken},
		{"missing exp", svc, noExp},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := tt.svc.Verify(tt.token); !errors.Is(err, ErrInvalidToken) {
				t.Errorf("err = %v, want ErrInvalidToken", err)
			}
		})
	}
}

func TestNewSecret(t *testing.T) {
	plain, hash, err := NewSecret()
	if err != nil {
		t.Fatalf("NewSecret: %v", err)
	}
	if len(plain) != 64 {
		t.Errorf("len(plain) = %d, want 64", len(plain))
	}
	if hash != HashSecret(plain) || hash == plain {
		t.Error("hash must be sha256 of plain")
	}

	other, _, _ := NewSecret()
	if other == plain {
		t.Error("secrets must be random")
	}
}
