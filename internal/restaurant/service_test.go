package restaurant

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/burlingtondeals/dealsapi/internal/model"
	"github.com/burlingtondeals/dealsapi/internal/security"
)

// --- モック ---

type mockRestaurantRepo struct {
	listActiveFn func(ctx context.Context) ([]*model.Restaurant, error)
	searchFn     func(ctx context.Context, query string, limit int) ([]model.RestaurantSummary, error)
	findByIDFn   func(ctx context.Context, id int64) (*model.Restaurant, error)
	createFn     func(ctx context.Context, r *model.Restaurant) error
	setStatusFn  func(ctx context.Context, id int64, status model.RestaurantStatus, active bool) (bool, error)
}

func (m *mockRestaurantRepo) ListActive(ctx context.Context) ([]*model.Restaurant, error) {
	if m.listActiveFn != nil {
		return m.listActiveFn(ctx)
	}
	return nil, nil
}

func (m *mockRestaurantRepo) Search(ctx context.Context, query string, limit int) ([]model.RestaurantSummary, error) {
	if m.searchFn != nil {
		return m.searchFn(ctx, query, limit)
	}
	return nil, nil
}

func (m *mockRestaurantRepo) FindByID(ctx context.Context, id int64) (*model.Restaurant, error) {
	if m.findByIDFn != nil {
		return m.findByIDFn(ctx, id)
	}
	return nil, nil
}

func (m *mockRestaurantRepo) Create(ctx context.Context, r *model.Restaurant) error {
	if m.createFn != nil {
		return m.createFn(ctx, r)
	}
	r.ID = 1
	return nil
}

func (m *mockRestaurantRepo) SetStatus(ctx context.Context, id int64, status model.RestaurantStatus, active bool) (bool, error) {
	if m.setStatusFn != nil {
		return m.setStatusFn(ctx, id, status, active)
	}
	return true, nil
}

func (m *mockRestaurantRepo) UpsertImported(context.Context, *model.Restaurant) (int64, bool, error) {
	return 0, false, nil
}

func newTestService(repo *mockRestaurantRepo) *Service {
	return NewService(repo, security.NewTextSanitizer(), slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func assertAPIErrorCode(t *testing.T, err error, code string) *model.APIError {
	t.Helper()
	var apiErr *model.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *model.APIError, got %T: %v", err, err)
	}
	if apiErr.Code != code {
		t.Errorf("Code = %q, want %q", apiErr.Code, code)
	}
	return apiErr
}

// --- Search ---

func TestSearch_ShortQueryReturnsEmptyWithoutQuery(t *testing.T) {
	called := false
	svc := newTestService(&mockRestaurantRepo{
		searchFn: func(context.Context, string, int) ([]model.RestaurantSummary, error) {
			called = true
			return nil, nil
		},
	})

	for _, q := range []string{"", "a", " b "} {
		got, err := svc.Search(context.Background(), q)
		if err != nil {
			t.Fatalf("Search(%q) failed: %v", q, err)
		}
		if got == nil || len(got) != 0 {
			t.Errorf("Search(%q) = %#v, want empty non-nil slice", q, got)
		}
	}
	if called {
		t.Error("repository must not be queried for short input")
	}
}

func TestSearch_PassesLimit(t *testing.T) {
	var gotQuery string
	var gotLimit int
	svc := newTestService(&mockRestaurantRepo{
		searchFn: func(_ context.Context, q string, limit int) ([]model.RestaurantSummary, error) {
			gotQuery, gotLimit = q, limit
			return []model.RestaurantSummary{{ID: 1, Name: "Wing Shack"}}, nil
		},
	})

	got, err := svc.Search(context.Background(), "  wi ")
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if gotQuery != "wi" || gotLimit != 15 {
		t.Errorf("query = %q limit = %d, want wi/15", gotQuery, gotLimit)
	}
	if len(got) != 1 {
		t.Errorf("len = %d, want 1", len(got))
	}
}

func TestSearch_NoResultsIsEmptySlice(t *testing.T) {
	svc := newTestService(&mockRestaurantRepo{})
	got, err := svc.Search(context.Background(), "zzz")
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if got == nil {
		t.Error("expected non-nil slice")
	}
}

// --- Get ---

func TestGet_NotFound(t *testing.T) {
	svc := newTestService(&mockRestaurantRepo{})
	_, err := svc.Get(context.Background(), 9)
	apiErr := assertAPIErrorCode(t, err, model.ErrCodeNotFound)
	if apiErr.Message != "Restaurant not found." {
		t.Errorf("Message = %q", apiErr.Message)
	}
}

// --- Submit ---

func TestSubmit_StoresPendingSanitized(t *testing.T) {
	var stored *model.Restaurant
	svc := newTestService(&mockRestaurantRepo{
		createFn: func(_ context.Context, r *model.Restaurant) error {
			stored = r
			r.ID = 12
			return nil
		},
	})

	r, err := svc.Submit(context.Background(), SubmitInput{
		Name:     "<b>Pho</b> & Co",
		Address:  "1 Brant St<script>x</script>",
		City:     "Burlington",
		Province: "  ",
		Website:  "phoandco.ca",
	})
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	if r.ID != 12 || stored == nil {
		t.Fatal("repository Create was not called")
	}
	if r.Name != "Pho & Co" {
		t.Errorf("Name = %q, want %q", r.Name, "Pho & Co")
	}
	if r.Address == nil || *r.Address != "1 Brant St" {
		t.Errorf("Address = %v", r.Address)
	}
	if r.Province != nil {
		t.Errorf("Province = %q, want nil", *r.Province)
	}
	if r.Website == nil || *r.Website != "https://phoandco.ca" {
		t.Errorf("Website = %v", r.Website)
	}
	if r.Status != model.RestaurantStatusPending || r.IsActive {
		t.Errorf("Status = %q IsActive = %v, want pending/false", r.Status, r.IsActive)
	}
}

func TestSubmit_Validation(t *testing.T) {
	tests := []struct {
		name string
		in   SubmitInput
		want string
	}{
		{"missing name", SubmitInput{City: "Burlington"}, "Restaurant name is required."},
		{"markup only name", SubmitInput{Name: "<img src=x>"}, "Restaurant name is required."},
		{"bad website", SubmitInput{Name: "Pho", Website: "ftp://pho.ca"}, "Invalid website URL."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := newTestService(&mockRestaurantRepo{
				createFn: func(context.Context, *model.Restaurant) error {
					t.Error("Create must not be called")
					return nil
				},
			})
			_, err := svc.Submit(context.Background(), tt.in)
			apiErr := assertAPIErrorCode(t, err, model.ErrCodeValidation)
			if apiErr.Message != tt.want {
				t.Errorf("Message = %q, want %q", apiErr.Message, tt.want)
			}
		})
	}
}

// --- モデレーション ---

func TestDeactivate_KeepsStatusAndClearsActive(t *testing.T) {
	var gotStatus model.RestaurantStatus
	var gotActive = true
	svc := newTestService(&mockRestaurantRepo{
		findByIDFn: func(_ context.Context, id int64) (*model.Restaurant, error) {
			return &model.Restaurant{ID: id, Status: model.RestaurantStatusActive, IsActive: true}, nil
		},
		setStatusFn: func(_ context.Context, _ int64, status model.RestaurantStatus, active bool) (bool, error) {
			gotStatus, gotActive = status, active
			return true, nil
		},
	})

	r, err := svc.Deactivate(context.Background(), 3)
	if err != nil {
		t.Fatalf("Deactivate failed: %v", err)
	}
	if r.IsActive || gotActive {
		t.Error("restaurant should be inactive")
	}
	if gotStatus != model.RestaurantStatusActive {
		t.Errorf("status = %q, want unchanged active", gotStatus)
	}
}

func TestDeactivate_NotFound(t *testing.T) {
	svc := newTestService(&mockRestaurantRepo{})
	_, err := svc.Deactivate(context.Background(), 3)
	assertAPIErrorCode(t, err, model.ErrCodeNotFound)
}

func TestActivate_PromotesPending(t *testing.T) {
	svc := newTestService(&mockRestaurantRepo{
		findByIDFn: func(_ context.Context, id int64) (*model.Restaurant, error) {
			return &model.Restaurant{ID: id, Status: model.RestaurantStatusPending}, nil
		},
		setStatusFn: func(_ context.Context, _ int64, status model.RestaurantStatus, active bool) (bool, error) {
			if status != model.RestaurantStatusActive || !active {
				t.Errorf("SetStatus(%q, %v), want active/true", status, active)
			}
			return true, nil
		},
	})

	r, err := svc.Activate(context.Background(), 4)
	if err != nil {
		t.Fatalf("Activate failed: %v", err)
	}
	if r.Status != model.RestaurantStatusActive || !r.IsActive {
		t.Errorf("restaurant = %+v", r)
	}
}

func TestActivate_RepositoryError(t *testing.T) {
	boom := errors.New("db down")
	svc := newTestService(&mockRestaurantRepo{
		findByIDFn: func(_ context.Context, id int64) (*model.Restaurant, error) {
			return &model.Restaurant{ID: id}, nil
		},
		setStatusFn: func(context.Context, int64, model.RestaurantStatus, bool) (bool, error) {
			return false, boom
		},
	})
	if _, err := svc.Activate(context.Background(), 4); !errors.Is(err, boom) {
		t.Errorf("err = %v, want wrapped %v", err, boom)
	}
}
