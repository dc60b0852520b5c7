package handler

import (
	"context"
	"net/http"
	"testing"

	"github.com/burlingtondeals/dealsapi/internal/model"
	"github.com/burlingtondeals/dealsapi/internal/restaurant"
)

func TestRestaurantHandler_Search(t *testing.T) {
	var gotQuery string
	deps := testDeps()
	deps.RestaurantService = &mockRestaurantService{
		searchFn: func(ctx context.Context, query string) ([]model.RestaurantSummary, error) {
			gotQuery = query
			return []model.RestaurantSummary{{ID: 1, Name: "Pub"}}, nil
		},
	}

	w := doRequest(t, NewRouter(deps), http.MethodGet, "/api/restaurants/search?q=pu", "", "")

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if gotQuery != "pu" {
		t.Errorf("query = %q", gotQuery)
	}
	var results []model.RestaurantSummary
	decodeBody(t, w, &results)
	if len(results) != 1 || results[0].Name != "Pub" {
		t.Errorf("results = %+v", results)
	}
}

func TestRestaurantHandler_Get_NotFound(t *testing.T) {
	deps := testDeps()
	deps.RestaurantService = &mockRestaurantService{
		getFn: func(context.Context, int64) (*model.Restaurant, error) {
			return nil, model.NewNotFoundError("Restaurant")
		},
	}

	w := doRequest(t, NewRouter(deps), http.MethodGet, "/api/restaurants/99", "", "")

	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
	if msg := errorMessage(t, w); msg != "Restaurant not found." {
		t.Errorf("error = %q", msg)
	}
}

func TestRestaurantHandler_Submit(t *testing.T) {
	var got restaurant.SubmitInput
	deps := testDeps()
	deps.RestaurantService = &mockRestaurantService{
		submitFn: func(ctx context.Context, in restaurant.SubmitInput) (*model.Restaurant, error) {
			got = in
			return &model.Restaurant{ID: 20, Name: in.Name, Status: model.RestaurantStatusPending}, nil
		},
	}

	w := doRequest(t, NewRouter(deps), http.MethodPost, "/api/restaurants", "",
		`{"name":"Corner Cafe","address":"1 Main St","city":"Burlington","province":"ON","website":"cornercafe.ca"}`)

	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201", w.Code)
	}
	want := restaurant.SubmitInput{Name: "Corner Cafe", Address: "1 Main St", City: "Burlington", Province: "ON", Website: "cornercafe.ca"}
	if got != want {
		t.Errorf("input = %+v, want %+v", got, want)
	}
	var body model.Restaurant
	decodeBody(t, w, &body)
	if body.Status != model.RestaurantStatusPending {
		t.Errorf("status = %q", body.Status)
	}
}

func TestRestaurantHandler_Moderation(t *testing.T) {
	var calls []string
	deps := testDeps()
	deps.RestaurantService = &mockRestaurantService{
		deactivateFn: func(ctx context.Context, id int64) (*model.Restaurant, error) {
			calls = append(calls, "deactivate")
			return &model.Restaurant{ID: id}, nil
		},
		activateFn: func(ctx context.Context, id int64) (*model.Restaurant, error) {
			if id == 404 {
				return nil, model.NewNotFoundError("Restaurant")
			}
			calls = append(calls, "activate")
			return &model.Restaurant{ID: id, IsActive: true, Status: model.RestaurantStatusActive}, nil
		},
	}
	router := NewRouter(deps)

	if w := doRequest(t, router, http.MethodPut, "/api/restaurants/4/deactivate", "user-2", ""); w.Code != http.StatusOK {
		t.Errorf("deactivate status = %d", w.Code)
	}
	if w := doRequest(t, router, http.MethodPut, "/api/restaurants/4/activate", "user-2", ""); w.Code != http.StatusOK {
		t.Errorf("activate status = %d", w.Code)
	}
	if w := doRequest(t, router, http.MethodPut, "/api/restaurants/404/activate", "user-2", ""); w.Code != http.StatusNotFound {
		t.Errorf("missing status = %d, want 404", w.Code)
	}
	if len(calls) != 2 {
		t.Errorf("calls = %v", calls)
	}
}
