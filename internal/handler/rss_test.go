package handler

import (
	"context"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/mmcdole/gofeed"

	"github.com/burlingtondeals/dealsapi/internal/model"
)

func ptr[T any](v T) *T { return &v }

func TestDealHandler_Feed_ParsesAsRSS(t *testing.T) {
	created := time.Date(2025, 4, 1, 15, 0, 0, 0, time.UTC)
	updated := time.Date(2025, 4, 3, 9, 30, 0, 0, time.UTC)
	deps := testDeps()
	deps.DealService = &mockDealService{
		listApprovedFn: func(ctx context.Context, filter model.DealFilter) ([]*model.DealListing, error) {
			return []*model.DealListing{
				{
					Deal: model.Deal{
						ID: 7, Title: "Wing Night", Description: "Half price wings & beer",
						DayOfWeek: "Tuesday", Category: "Wings", SecondCategory: ptr("Beer"),
						DealType: model.DealTypePercentage, PercentageDiscount: ptr(50.0),
						StartTime: ptr("17:00"), EndTime: ptr("21:00"),
						CreatedAt: created, UpdatedAt: updated,
					},
					RestaurantName: "The <Pub>",
				},
				{
					Deal: model.Deal{
						ID: 8, Title: "Taco Tuesday", DayOfWeek: "Tuesday", Category: "Tacos",
						DealType: model.DealTypeFlat, FlatPrice: ptr(2.5),
						CreatedAt: created, UpdatedAt: created,
					},
					RestaurantName: "Cantina",
				},
			}, nil
		},
	}

	w := doRequest(t, NewRouter(deps), http.MethodGet, "/api/deals/feed.rss", "", "")

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); !strings.HasPrefix(ct, "application/rss+xml") {
		t.Errorf("Content-Type = %q", ct)
	}

	feed, err := gofeed.NewParser().ParseString(w.Body.String())
	if err != nil {
		t.Fatalf("failed to parse feed: %v\n%s", err, w.Body.String())
	}
	if feed.FeedType != "rss" || feed.FeedVersion != "2.0" {
		t.Errorf("feed type = %s %s", feed.FeedType, feed.FeedVersion)
	}
	if feed.Title != "Burlington Deals" || feed.Link != "https://burlingtondeals.ca" {
		t.Errorf("channel = %q %q", feed.Title, feed.Link)
	}
	if len(feed.Items) != 2 {
		t.Fatalf("items = %d, want 2", len(feed.Items))
	}

	first := feed.Items[0]
	if first.Title != "The <Pub>: Wing Night" {
		t.Errorf("title = %q", first.Title)
	}
	if first.GUID != "deal-7" {
		t.Errorf("guid = %q", first.GUID)
	}
	if first.PublishedParsed == nil || !first.PublishedParsed.Equal(created) {
		t.Errorf("published = %v, want %v", first.PublishedParsed, created)
	}
	if len(first.Categories) != 2 || first.Categories[0] != "Wings" || first.Categories[1] != "Beer" {
		t.Errorf("categories = %v", first.Categories)
	}
	for _, want := range []string{"Tuesday", "50% off", "17:00-21:00", "Half price wings & beer"} {
		if !strings.Contains(first.Description, want) {
			t.Errorf("description %q should contain %q", first.Description, want)
		}
	}
	if !strings.Contains(feed.Items[1].Description, "$2.50") {
		t.Errorf("flat description = %q", feed.Items[1].Description)
	}
	if feed.UpdatedParsed == nil || !feed.UpdatedParsed.Equal(updated) {
		t.Errorf("lastBuildDate = %v, want %v", feed.UpdatedParsed, updated)
	}
}

func TestDealHandler_Feed_Empty(t *testing.T) {
	w := doRequest(t, NewRouter(testDeps()), http.MethodGet, "/api/deals/feed.rss", "", "")

	feed, err := gofeed.NewParser().ParseString(w.Body.String())
	if err != nil {
		t.Fatalf("failed to parse feed: %v", err)
	}
	if len(feed.Items) != 0 {
		t.Errorf("items = %d, want 0", len(feed.Items))
	}
}
