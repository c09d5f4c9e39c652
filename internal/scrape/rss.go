package scrape

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/mmcdole/gofeed"

	"github.com/hitoshi/ideascout/internal/config"
	"github.com/hitoshi/ideascout/internal/model"
)

// FeedScraper はRSS/Atomフィードから議論を収集する。
// MediumのタグフィードやDiscourseフォーラムのlatest.rssを
// 同じ仕組みで扱えるよう、ソース種別は設定から受け取る。
type FeedScraper struct {
	cfg        config.FeedSourceConfig
	sourceType model.SourceType
	guard      SafeClientBuilder
	client     *http.Client
	sanitizer  Sanitizer
	logger     *slog.Logger
}

var _ Scraper = (*FeedScraper)(nil)

// NewFeedScraper はFeedScraperを生成する。
// 設定のtypeが未知の値の場合は汎用のrss種別として扱う。
func NewFeedScraper(cfg config.FeedSourceConfig, guard SafeClientBuilder, sanitizer Sanitizer, timeout time.Duration, maxSize int64, logger *slog.Logger) *FeedScraper {
	sourceType := model.SourceType(cfg.Type)
	if !model.ValidSourceType(sourceType) {
		sourceType = model.SourceTypeRSS
	}

	return &FeedScraper{
		cfg:        cfg,
		sourceType: sourceType,
		guard:      guard,
		client:     guard.NewSafeClient(timeout, maxSize),
		sanitizer:  sanitizer,
		logger:     logger,
	}
}

// Name はソース名を返す。
func (s *FeedScraper) Name() string { return s.cfg.Name }

// Type はソース種別を返す。
func (s *FeedScraper) Type() model.SourceType { return s.sourceType }

// Fetch はフィードを取得・パースし、最大limit件の議論を返す。
// フィードURLはSSRF検証を通過したもののみフェッチする。
func (s *FeedScraper) Fetch(ctx context.Context, limit int) ([]model.ScrapedItem, error) {
	if err := s.guard.ValidateURL(s.cfg.URL); err != nil {
		return nil, fmt.Errorf("フィードURLの検証に失敗しました: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.cfg.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("リクエストの生成に失敗しました: %w", err)
	}
	req.Header.Set("User-Agent", "IdeaScout/1.0")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("フィードの取得に失敗しました: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("フィードの取得でエラー応答を受信しました: %s", resp.Status)
	}

	feed, err := gofeed.NewParser().Parse(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("フィードのパースに失敗しました: %w", err)
	}

	max := capLimit(limit, s.cfg.MaxItems)

	var items []model.ScrapedItem
	for _, entry := range feed.Items {
		if len(items) >= max {
			break
		}
		if entry.Link == "" {
			continue
		}

		items = append(items, s.normalize(entry))
	}

	return items, nil
}

// normalize はフィードエントリをScrapedItemに変換する。
// 本文はdescriptionよりcontentを優先し、サニタイズ後に保存する。
func (s *FeedScraper) normalize(entry *gofeed.Item) model.ScrapedItem {
	content := entry.Content
	if content == "" {
		content = entry.Description
	}

	author := ""
	if len(entry.Authors) > 0 {
		author = entry.Authors[0].Name
	}

	item := model.ScrapedItem{
		URL:        entry.Link,
		ExternalID: entry.GUID,
		Title:      entry.Title,
		Content:    s.sanitizer.Sanitize(content),
		Author:     author,
	}
	if entry.PublishedParsed != nil {
		published := *entry.PublishedParsed
		item.PostedAt = &published
	}

	return item
}
