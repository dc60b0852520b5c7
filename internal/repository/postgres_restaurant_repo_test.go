package repository

import (
	"context"
	"testing"

	"github.com/burlingtondeals/dealsapi/internal/model"
)

func TestPostgresRestaurantRepo_SearchAndList(t *testing.T) {
	db := setupTestDB(t)
	repo := NewPostgresRestaurantRepo(db)
	ctx := context.Background()

	createRestaurant(t, repo, "Wing Shack")
	createRestaurant(t, repo, "Alehouse Wings")
	pending := &model.Restaurant{Name: "Wingz Pending", Status: model.RestaurantStatusPending}
	if err := repo.Create(ctx, pending); err != nil {
		t.Fatalf("Create pending: %v", err)
	}

	results, err := repo.Search(ctx, "wing", 15)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("Search len = %d, want 2 (pending excluded)", len(results))
	}
	if results[0].Name != "Alehouse Wings" {
		t.Errorf("first result = %q, want Alehouse Wings", results[0].Name)
	}

	// % はリテラルとして扱われる
	literal, err := repo.Search(ctx, "%", 15)
	if err != nil {
		t.Fatalf("Search(%%): %v", err)
	}
	if len(literal) != 0 {
		t.Errorf("Search(%%) len = %d, want 0", len(literal))
	}

	active, err := repo.ListActive(ctx)
	if err != nil {
		t.Fatalf("ListActive: %v", err)
	}
	if len(active) != 2 {
		t.Errorf("ListActive len = %d, want 2", len(active))
	}

	ok, err := repo.SetStatus(ctx, pending.ID, model.RestaurantStatusActive, true)
	if err != nil || !ok {
		t.Fatalf("SetStatus = %v, %v", ok, err)
	}
	ok, err = repo.SetStatus(ctx, 9999, model.RestaurantStatusActive, false)
	if err != nil || ok {
		t.Errorf("SetStatus(missing) = %v, %v; want false", ok, err)
	}
}

func TestPostgresRestaurantRepo_UpsertImported_Dedupes(t *testing.T) {
	db := setupTestDB(t)
	repo := NewPostgresRestaurantRepo(db)
	ctx := context.Background()

	r := &model.Restaurant{ExternalID: strPtr("MB-1"), Name: "Imported", City: strPtr("Burlington")}
	id, created, err := repo.UpsertImported(ctx, r)
	if err != nil || !created {
		t.Fatalf("first UpsertImported = %d, %v, %v", id, created, err)
	}

	again, created, err := repo.UpsertImported(ctx, r)
	if err != nil {
		t.Fatalf("second UpsertImported: %v", err)
	}
	if created || again != id {
		t.Errorf("second UpsertImported = %d, %v; want %d, false", again, created, id)
	}
}

func TestPostgresContactAndNewsletterRepos(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	c := &model.ContactSubmission{Name: "A", Email: "a@example.com", Message: "hi"}
	if err := NewPostgresContactRepo(db).Create(ctx, c); err != nil {
		t.Fatalf("Create contact: %v", err)
	}
	if c.ID == 0 {
		t.Error("contact ID not assigned")
	}

	news := NewPostgresNewsletterRepo(db)
	created, err := news.Subscribe(ctx, "n@example.com")
	if err != nil || !created {
		t.Fatalf("Subscribe = %v, %v", created, err)
	}
	created, err = news.Subscribe(ctx, "n@example.com")
	if err != nil || created {
		t.Errorf("re-Subscribe = %v, %v; want false, nil", created, err)
	}
}
