package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/burlingtondeals/dealsapi/internal/auth"
	"github.com/burlingtondeals/dealsapi/internal/contact"
	"github.com/burlingtondeals/dealsapi/internal/deal"
	"github.com/burlingtondeals/dealsapi/internal/middleware"
	"github.com/burlingtondeals/dealsapi/internal/model"
	"github.com/burlingtondeals/dealsapi/internal/restaurant"
)

// --- モック定義 ---

type mockAuthService struct {
	registerFn func(ctx context.Context, in auth.RegisterInput) (*model.User, error)
	verifyFn   func(ctx context.Context, token string) (*model.User, error)
	loginFn    func(ctx context.Context, email, password string) (string, *model.User, error)
	forgotFn   func(ctx context.Context, email string) error
	resetFn    func(ctx context.Context, token, newPassword string) error
}

func (m *mockAuthService) Register(ctx context.Context, in auth.RegisterInput) (*model.User, error) {
	if m.registerFn != nil {
		return m.registerFn(ctx, in)
	}
	return &model.User{ID: 1}, nil
}

func (m *mockAuthService) Verify(ctx context.Context, token string) (*model.User, error) {
	if m.verifyFn != nil {
		return m.verifyFn(ctx, token)
	}
	return &model.User{ID: 1, IsActive: true}, nil
}

func (m *mockAuthService) Login(ctx context.Context, email, password string) (string, *model.User, error) {
	if m.loginFn != nil {
		return m.loginFn(ctx, email, password)
	}
	return "token", &model.User{ID: 1}, nil
}

func (m *mockAuthService) ForgotPassword(ctx context.Context, email string) error {
	if m.forgotFn != nil {
		return m.forgotFn(ctx, email)
	}
	return nil
}

func (m *mockAuthService) ResetPassword(ctx context.Context, token, newPassword string) error {
	if m.resetFn != nil {
		return m.resetFn(ctx, token, newPassword)
	}
	return nil
}

type mockDealService struct {
	listApprovedFn     func(ctx context.Context, filter model.DealFilter) ([]*model.DealListing, error)
	listAllFn          func(ctx context.Context) ([]*model.DealListing, error)
	createFn           func(ctx context.Context, in deal.CreateInput) (*model.Deal, error)
	updateFn           func(ctx context.Context, id int64, body map[string]json.RawMessage) (*model.Deal, error)
	approveFn          func(ctx context.Context, id int64) (*model.Deal, error)
	rejectFn           func(ctx context.Context, id int64) (*model.Deal, error)
	promoteFn          func(ctx context.Context, id int64, in deal.PromoteInput) (*model.Deal, error)
	unfeatureFn        func(ctx context.Context, id int64) (*model.Deal, error)
	setPromotionTierFn func(ctx context.Context, id int64, raw json.RawMessage) (*model.Deal, error)
	deleteFn           func(ctx context.Context, id int64) error
}

func (m *mockDealService) ListApproved(ctx context.Context, filter model.DealFilter) ([]*model.DealListing, error) {
	if m.listApprovedFn != nil {
		return m.listApprovedFn(ctx, filter)
	}
	return []*model.DealListing{}, nil
}

func (m *mockDealService) ListAll(ctx context.Context) ([]*model.DealListing, error) {
	if m.listAllFn != nil {
		return m.listAllFn(ctx)
	}
	return []*model.DealListing{}, nil
}

func (m *mockDealService) Create(ctx context.Context, in deal.CreateInput) (*model.Deal, error) {
	if m.createFn != nil {
		return m.createFn(ctx, in)
	}
	return &model.Deal{ID: 1}, nil
}

func (m *mockDealService) Update(ctx context.Context, id int64, body map[string]json.RawMessage) (*model.Deal, error) {
	if m.updateFn != nil {
		return m.updateFn(ctx, id, body)
	}
	return &model.Deal{ID: id}, nil
}

func (m *mockDealService) Approve(ctx context.Context, id int64) (*model.Deal, error) {
	if m.approveFn != nil {
		return m.approveFn(ctx, id)
	}
	return &model.Deal{ID: id, IsApproved: true}, nil
}

func (m *mockDealService) Reject(ctx context.Context, id int64) (*model.Deal, error) {
	if m.rejectFn != nil {
		return m.rejectFn(ctx, id)
	}
	return &model.Deal{ID: id}, nil
}

func (m *mockDealService) Promote(ctx context.Context, id int64, in deal.PromoteInput) (*model.Deal, error) {
	if m.promoteFn != nil {
		return m.promoteFn(ctx, id, in)
	}
	return &model.Deal{ID: id, IsPromoted: true}, nil
}

func (m *mockDealService) Unfeature(ctx context.Context, id int64) (*model.Deal, error) {
	if m.unfeatureFn != nil {
		return m.unfeatureFn(ctx, id)
	}
	return &model.Deal{ID: id}, nil
}

func (m *mockDealService) SetPromotionTier(ctx context.Context, id int64, raw json.RawMessage) (*model.Deal, error) {
	if m.setPromotionTierFn != nil {
		return m.setPromotionTierFn(ctx, id, raw)
	}
	return &model.Deal{ID: id}, nil
}

func (m *mockDealService) Delete(ctx context.Context, id int64) error {
	if m.deleteFn != nil {
		return m.deleteFn(ctx, id)
	}
	return nil
}

type mockRestaurantService struct {
	listActiveFn func(ctx context.Context) ([]*model.Restaurant, error)
	searchFn     func(ctx context.Context, query string) ([]model.RestaurantSummary, error)
	getFn        func(ctx context.Context, id int64) (*model.Restaurant, error)
	submitFn     func(ctx context.Context, in restaurant.SubmitInput) (*model.Restaurant, error)
	deactivateFn func(ctx context.Context, id int64) (*model.Restaurant, error)
	activateFn   func(ctx context.Context, id int64) (*model.Restaurant, error)
}

func (m *mockRestaurantService) ListActive(ctx context.Context) ([]*model.Restaurant, error) {
	if m.listActiveFn != nil {
		return m.listActiveFn(ctx)
	}
	return []*model.Restaurant{}, nil
}

func (m *mockRestaurantService) Search(ctx context.Context, query string) ([]model.RestaurantSummary, error) {
	if m.searchFn != nil {
		return m.searchFn(ctx, query)
	}
	return []model.RestaurantSummary{}, nil
}

func (m *mockRestaurantService) Get(ctx context.Context, id int64) (*model.Restaurant, error) {
	if m.getFn != nil {
		return m.getFn(ctx, id)
	}
	return &model.Restaurant{ID: id}, nil
}

func (m *mockRestaurantService) Submit(ctx context.Context, in restaurant.SubmitInput) (*model.Restaurant, error) {
	if m.submitFn != nil {
		return m.submitFn(ctx, in)
	}
	return &model.Restaurant{ID: 1, Name: in.Name, Status: model.RestaurantStatusPending}, nil
}

func (m *mockRestaurantService) Deactivate(ctx context.Context, id int64) (*model.Restaurant, error) {
	if m.deactivateFn != nil {
		return m.deactivateFn(ctx, id)
	}
	return &model.Restaurant{ID: id}, nil
}

func (m *mockRestaurantService) Activate(ctx context.Context, id int64) (*model.Restaurant, error) {
	if m.activateFn != nil {
		return m.activateFn(ctx, id)
	}
	return &model.Restaurant{ID: id, IsActive: true}, nil
}

type mockUserService struct {
	listFn         func(ctx context.Context) ([]*model.User, error)
	changeRoleFn   func(ctx context.Context, actor *model.User, id int64, role string) (*model.User, error)
	toggleActiveFn func(ctx context.Context, actor *model.User, id int64) (*model.User, error)
}

func (m *mockUserService) List(ctx context.Context) ([]*model.User, error) {
	if m.listFn != nil {
		return m.listFn(ctx)
	}
	return []*model.User{}, nil
}

func (m *mockUserService) ChangeRole(ctx context.Context, actor *model.User, id int64, role string) (*model.User, error) {
	if m.changeRoleFn != nil {
		return m.changeRoleFn(ctx, actor, id, role)
	}
	return &model.User{ID: id, Role: model.Role(role)}, nil
}

func (m *mockUserService) ToggleActive(ctx context.Context, actor *model.User, id int64) (*model.User, error) {
	if m.toggleActiveFn != nil {
		return m.toggleActiveFn(ctx, actor, id)
	}
	return &model.User{ID: id}, nil
}

type mockContactService struct {
	submitFn func(ctx context.Context, in contact.Submission, remoteIP string) (*contact.Result, error)
}

func (m *mockContactService) Submit(ctx context.Context, in contact.Submission, remoteIP string) (*contact.Result, error) {
	if m.submitFn != nil {
		return m.submitFn(ctx, in, remoteIP)
	}
	return &contact.Result{Message: contact.SuccessMessage, ID: 1, Stored: true}, nil
}

type mockNewsletterService struct {
	subscribeFn func(ctx context.Context, email string) (string, error)
}

func (m *mockNewsletterService) Subscribe(ctx context.Context, email string) (string, error) {
	if m.subscribeFn != nil {
		return m.subscribeFn(ctx, email)
	}
	return "You've been subscribed to our newsletter!", nil
}

type mockHealthChecker struct {
	err error
}

func (m *mockHealthChecker) PingContext(context.Context) error {
	return m.err
}

// tokenVerifier はトークン文字列 "user-<id>" をそのIDのクレームとして受け付ける。
type tokenVerifier struct{}

func (tokenVerifier) Verify(token string) (*auth.Claims, error) {
	switch token {
	case "user-1":
		return &auth.Claims{UserID: 1}, nil
	case "user-2":
		return &auth.Claims{UserID: 2}, nil
	case "user-3":
		return &auth.Claims{UserID: 3}, nil
	}
	return nil, auth.ErrInvalidToken
}

// userStore は認証ミドルウェア用のユーザー一覧。
// 1: 一般ユーザー、2: 管理者、3: 無効化済み
type userStore map[int64]*model.User

func defaultUsers() userStore {
	return userStore{
		1: {ID: 1, Email: "user@example.com", Role: model.RoleUser, IsActive: true},
		2: {ID: 2, Email: "admin@example.com", Role: model.RoleAdmin, IsActive: true},
		3: {ID: 3, Email: "gone@example.com", Role: model.RoleUser, IsActive: false},
	}
}

func (s userStore) FindByID(_ context.Context, id int64) (*model.User, error) {
	u, ok := s[id]
	if !ok {
		return nil, nil
	}
	copied := *u
	return &copied, nil
}

// allowAll は常に許可するKeyLimiter。
type allowAll struct{}

func (allowAll) Allow(context.Context, string) (bool, time.Duration, error) {
	return true, 0, nil
}

// --- テストヘルパー ---

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// testDeps は全サービスをモックにしたRouterDepsを返す。
func testDeps() *RouterDeps {
	return &RouterDeps{
		Logger:            discardLogger(),
		CORSAllowedOrigin: "https://burlingtondeals.ca",
		HealthChecker:     &mockHealthChecker{},
		TokenVerifier:     tokenVerifier{},
		UserFinder:        defaultUsers(),
		AuthService:       &mockAuthService{},
		FormLimiter:       allowAll{},
		DealService:       &mockDealService{},
		Feed:              FeedConfig{Title: "Burlington Deals", Link: "https://burlingtondeals.ca", Description: "Food and drink specials"},
		RestaurantService: &mockRestaurantService{},
		UserService:       &mockUserService{},
		ContactService:    &mockContactService{},
		NewsletterService: &mockNewsletterService{},
	}
}

// doRequest はルーターにリクエストを送る。tokenが空でなければベアラートークンを付与する。
func doRequest(t *testing.T, h http.Handler, method, path, token, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.Unmarshal(w.Body.Bytes(), v); err != nil {
		t.Fatalf("failed to decode body %q: %v", w.Body.String(), err)
	}
}

func errorMessage(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var body middleware.ErrorResponseBody
	decodeBody(t, w, &body)
	return body.Error
}

var errStoreDown = errors.New("pq: connection refused")

