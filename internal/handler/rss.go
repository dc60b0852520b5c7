package handler

import (
	"encoding/xml"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/burlingtondeals/dealsapi/internal/model"
)

// FeedConfig はRSSチャンネルの情報。
type FeedConfig struct {
	Title       string
	Link        string // フロントエンドのURL
	Description string
}

type rssDocument struct {
	XMLName xml.Name   `xml:"rss"`
	Version string     `xml:"version,attr"`
	Channel rssChannel `xml:"channel"`
}

type rssChannel struct {
	Title         string    `xml:"title"`
	Link          string    `xml:"link"`
	Description   string    `xml:"description"`
	LastBuildDate string    `xml:"lastBuildDate,omitempty"`
	Items         []rssItem `xml:"item"`
}

type rssItem struct {
	Title       string   `xml:"title"`
	Link        string   `xml:"link"`
	Description string   `xml:"description"`
	Categories  []string `xml:"category"`
	GUID        rssGUID  `xml:"guid"`
	PubDate     string   `xml:"pubDate"`
}

type rssGUID struct {
	Value       string `xml:",chardata"`
	IsPermaLink bool   `xml:"isPermaLink,attr"`
}

// writeRSS は公開リストをRSS 2.0として書き込む。
// 並び順は一覧APIと同じで、lastBuildDateは最新の更新日時とする。
func writeRSS(w http.ResponseWriter, cfg FeedConfig, deals []*model.DealListing) error {
	doc := rssDocument{
		Version: "2.0",
		Channel: rssChannel{
			Title:       cfg.Title,
			Link:        cfg.Link,
			Description: cfg.Description,
			Items:       make([]rssItem, 0, len(deals)),
		},
	}

	var latest time.Time
	for _, d := range deals {
		if d.UpdatedAt.After(latest) {
			latest = d.UpdatedAt
		}
		categories := []string{d.Category}
		if d.SecondCategory != nil && *d.SecondCategory != "" {
			categories = append(categories, *d.SecondCategory)
		}
		doc.Channel.Items = append(doc.Channel.Items, rssItem{
			Title:       fmt.Sprintf("%s: %s", d.RestaurantName, d.Title),
			Link:        cfg.Link,
			Description: rssDescription(d),
			Categories:  categories,
			GUID:        rssGUID{Value: "deal-" + strconv.FormatInt(d.ID, 10)},
			PubDate:     d.CreatedAt.UTC().Format(time.RFC1123Z),
		})
	}
	if !latest.IsZero() {
		doc.Channel.LastBuildDate = latest.UTC().Format(time.RFC1123Z)
	}

	w.Header().Set("Content-Type", "application/rss+xml; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte(xml.Header)); err != nil {
		return err
	}
	enc := xml.NewEncoder(w)
	enc.Indent("", "  ")
	return enc.Encode(doc)
}

// rssDescription は曜日・価格・説明を1行にまとめる。
func rssDescription(d *model.DealListing) string {
	parts := []string{d.DayOfWeek}
	switch d.DealType {
	case model.DealTypeFlat:
		if d.FlatPrice != nil {
			parts = append(parts, fmt.Sprintf("$%.2f", *d.FlatPrice))
		}
	case model.DealTypePercentage:
		if d.PercentageDiscount != nil {
			parts = append(parts, strconv.FormatFloat(*d.PercentageDiscount, 'f', -1, 64)+"% off")
		}
	}
	if d.StartTime != nil && d.EndTime != nil {
		parts = append(parts, *d.StartTime+"-"+*d.EndTime)
	}
	if d.Description != "" {
		parts = append(parts, d.Description)
	}
	return strings.Join(parts, " | ")
}
