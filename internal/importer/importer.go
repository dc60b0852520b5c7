// Package importer はCSVから店舗とディールを一括登録する。
// 店舗は外部ID（master_business_id）で重複を除外し、ディールは未承認で登録する。
package importer

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"

	"github.com/burlingtondeals/dealsapi/internal/model"
	"github.com/burlingtondeals/dealsapi/internal/repository"
)

// defaultCity は都市が空の店舗に設定する値。
const defaultCity = "Burlington"

// RestaurantStore はインポート用の店舗登録を抽象化する。
type RestaurantStore interface {
	UpsertImported(ctx context.Context, restaurant *model.Restaurant) (id int64, created bool, err error)
}

// DealStore はディール登録を抽象化する。
type DealStore interface {
	Create(ctx context.Context, deal *model.Deal) error
}

// Summary はインポート結果の件数。
type Summary struct {
	RestaurantsCreated  int
	RestaurantsExisting int
	RestaurantsSkipped  int
	DealsCreated        int
	DealsSkipped        int
}

// Importer は店舗CSVとディールCSVを順に取り込む。
type Importer struct {
	restaurants RestaurantStore
	deals       DealStore
	logger      *slog.Logger

	// 外部ID -> restaurant_id
	ids map[string]int64
}

// New は新しいImporterを生成する。
func New(restaurants RestaurantStore, deals DealStore, logger *slog.Logger) *Importer {
	return &Importer{
		restaurants: restaurants,
		deals:       deals,
		logger:      logger,
		ids:         make(map[string]int64),
	}
}

// Run は店舗、ディールの順に取り込む。dealsがnilの場合は店舗のみ。
// 行単位の不備はスキップしてログに残し、ストアのエラーでのみ中断する。
func (im *Importer) Run(ctx context.Context, restaurants, deals io.Reader) (Summary, error) {
	var sum Summary
	if err := im.importRestaurants(ctx, restaurants, &sum); err != nil {
		return sum, err
	}
	if deals != nil {
		if err := im.importDeals(ctx, deals, &sum); err != nil {
			return sum, err
		}
	}
	im.logger.Info("インポートが完了しました",
		slog.Int("restaurants_created", sum.RestaurantsCreated),
		slog.Int("restaurants_existing", sum.RestaurantsExisting),
		slog.Int("restaurants_skipped", sum.RestaurantsSkipped),
		slog.Int("deals_created", sum.DealsCreated),
		slog.Int("deals_skipped", sum.DealsSkipped),
	)
	return sum, nil
}

func (im *Importer) importRestaurants(ctx context.Context, r io.Reader, sum *Summary) error {
	return eachRow(r, func(line int, row record) error {
		externalID := row.first("master_business_id", "master_id")
		if externalID == "" {
			im.logger.Warn("master_business_idがない店舗をスキップしました", slog.Int("line", line))
			sum.RestaurantsSkipped++
			return nil
		}

		name := row.get("name")
		if name == "" {
			name = "Unknown Name"
		}
		city := row.get("city")
		if city == "" {
			city = defaultCity
		}
		rest := &model.Restaurant{
			ExternalID:       &externalID,
			Name:             name,
			Address:          optional(row.first("formatted_address", "address")),
			City:             &city,
			Province:         optional(row.get("province")),
			Website:          optional(row.get("website")),
			PlaceID:          optional(row.get("place_id")),
			Lat:              optionalFloat(row.get("geometry_location_lat")),
			Lng:              optionalFloat(row.get("geometry_location_lng")),
			Rating:           optionalFloat(row.get("rating")),
			UserRatingsTotal: optionalInt(row.get("user_ratings_total")),
		}

		id, created, err := im.restaurants.UpsertImported(ctx, rest)
		if errors.Is(err, repository.ErrDuplicate) {
			im.logger.Warn("place_idが重複する店舗をスキップしました",
				slog.Int("line", line),
				slog.String("master_business_id", externalID),
			)
			sum.RestaurantsSkipped++
			return nil
		}
		if err != nil {
			return fmt.Errorf("店舗の登録に失敗しました (line %d): %w", line, err)
		}

		im.ids[externalID] = id
		if created {
			sum.RestaurantsCreated++
		} else {
			sum.RestaurantsExisting++
		}
		return nil
	})
}

func (im *Importer) importDeals(ctx context.Context, r io.Reader, sum *Summary) error {
	return eachRow(r, func(line int, row record) error {
		externalID := row.first("master_id", "master_business_id")
		restaurantID, ok := im.ids[externalID]
		if externalID == "" || !ok {
			im.logger.Warn("対応する店舗がないディールをスキップしました",
				slog.Int("line", line),
				slog.String("master_id", externalID),
			)
			sum.DealsSkipped++
			return nil
		}

		day, ok := model.NormalizeWeekday(row.first("day", "day_of_week"))
		if !ok {
			im.logger.Warn("曜日が不正なディールをスキップしました", slog.Int("line", line))
			sum.DealsSkipped++
			return nil
		}
		category := row.get("category")
		if category == "" {
			im.logger.Warn("カテゴリがないディールをスキップしました", slog.Int("line", line))
			sum.DealsSkipped++
			return nil
		}

		title := row.first("title", "details")
		if title == "" {
			title = "No Title"
		}

		d := &model.Deal{
			RestaurantID:   restaurantID,
			Title:          title,
			Description:    row.get("description"),
			DayOfWeek:      day,
			Category:       category,
			SecondCategory: optional(row.get("second_category")),
			StartTime:      optional(row.get("start_time")),
			EndTime:        optional(row.get("end_time")),
			DealType:       model.DealTypeEvent,
		}
		if price := optionalFloat(strings.TrimPrefix(row.get("price"), "$")); price != nil && *price > 0 {
			d.DealType = model.DealTypeFlat
			d.Price = *price
			d.FlatPrice = price
		}

		if err := im.deals.Create(ctx, d); err != nil {
			return fmt.Errorf("ディールの登録に失敗しました (line %d): %w", line, err)
		}
		sum.DealsCreated++
		return nil
	})
}

// record はヘッダー名で列を引ける1行。
type record struct {
	header map[string]int
	fields []string
}

func (r record) get(name string) string {
	i, ok := r.header[name]
	if !ok || i >= len(r.fields) {
		return ""
	}
	return strings.TrimSpace(r.fields[i])
}

// first は候補の列のうち最初に値があるものを返す。
func (r record) first(names ...string) string {
	for _, n := range names {
		if v := r.get(n); v != "" {
			return v
		}
	}
	return ""
}

// eachRow はヘッダー行を読み、以降の各行でfnを呼ぶ。lineはヘッダーを1行目とした行番号。
func eachRow(r io.Reader, fn func(line int, row record) error) error {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	head, err := cr.Read()
	if err == io.EOF {
		return nil
	}
	if err != nil {
		return fmt.Errorf("CSVヘッダーの読み込みに失敗しました: %w", err)
	}
	header := make(map[string]int, len(head))
	for i, h := range head {
		header[strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))] = i
	}

	for line := 2; ; line++ {
		fields, err := cr.Read()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("CSVの読み込みに失敗しました (line %d): %w", line, err)
		}
		if err := fn(line, record{header: header, fields: fields}); err != nil {
			return err
		}
	}
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func optionalFloat(s string) *float64 {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil
	}
	return &f
}

func optionalInt(s string) *int {
	i, err := strconv.Atoi(s)
	if err != nil {
		return nil
	}
	return &i
}
