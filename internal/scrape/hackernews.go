package scrape

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/time/rate"

	"github.com/hitoshi/ideascout/internal/config"
	"github.com/hitoshi/ideascout/internal/model"
)

// algoliaSearchURL はHacker NewsのAlgolia検索APIのエンドポイント。
const algoliaSearchURL = "https://hn.algolia.com/api/v1/search"

// HackerNewsScraper はAlgolia検索APIを通じてHacker Newsの議論を収集する。
// 設定されたキーワードごとに検索を行い、objectIDで重複を排除する。
type HackerNewsScraper struct {
	cfg       config.HackerNewsConfig
	searchURL string
	client    *http.Client
	sanitizer Sanitizer
	limiter   *rate.Limiter
	logger    *slog.Logger
}

// コンパイル時のインターフェース実装チェック
var _ Scraper = (*HackerNewsScraper)(nil)

// NewHackerNewsScraper はHackerNewsScraperを生成する。
func NewHackerNewsScraper(cfg config.HackerNewsConfig, guard SafeClientBuilder, sanitizer Sanitizer, timeout time.Duration, maxSize int64, logger *slog.Logger) *HackerNewsScraper {
	return &HackerNewsScraper{
		cfg:       cfg,
		searchURL: algoliaSearchURL,
		client:    guard.NewSafeClient(timeout, maxSize),
		sanitizer: sanitizer,
		// Algolia APIへのリクエストはキーワードごとに1秒1回まで
		limiter: rate.NewLimiter(rate.Limit(1), 1),
		logger:  logger,
	}
}

// Name はソース名を返す。
func (s *HackerNewsScraper) Name() string { return "hackernews" }

// Type はソース種別を返す。
func (s *HackerNewsScraper) Type() model.SourceType { return model.SourceTypeHackerNews }

// algoliaHit はAlgolia検索結果の1件を表す。
type algoliaHit struct {
	ObjectID    string    `json:"objectID"`
	Title       string    `json:"title"`
	URL         string    `json:"url"`
	Author      string    `json:"author"`
	Points      int       `json:"points"`
	NumComments int       `json:"num_comments"`
	StoryText   string    `json:"story_text"`
	CreatedAt   time.Time `json:"created_at"`
}

// algoliaResponse はAlgolia検索APIの応答を表す。
type algoliaResponse struct {
	Hits []algoliaHit `json:"hits"`
}

// Fetch は設定されたキーワードでAlgolia検索を行い、
// 正規化済みの議論を最大limit件返す。
func (s *HackerNewsScraper) Fetch(ctx context.Context, limit int) ([]model.ScrapedItem, error) {
	max := capLimit(limit, s.cfg.MaxItems)

	seen := map[string]bool{}
	var items []model.ScrapedItem

	for _, keyword := range s.cfg.Keywords {
		if len(items) >= max {
			break
		}

		if err := s.limiter.Wait(ctx); err != nil {
			return items, fmt.Errorf("レート制限待機が中断されました: %w", err)
		}

		hits, err := s.search(ctx, keyword)
		if err != nil {
			s.logger.Warn("キーワード検索に失敗しました",
				slog.String("keyword", keyword),
				slog.String("error", err.Error()),
			)
			continue
		}

		for _, hit := range hits {
			if len(items) >= max {
				break
			}
			if hit.ObjectID == "" || seen[hit.ObjectID] {
				continue
			}
			seen[hit.ObjectID] = true

			items = append(items, s.normalize(hit))
		}
	}

	return items, nil
}

// search は1キーワード分のAlgolia検索を実行する。
func (s *HackerNewsScraper) search(ctx context.Context, keyword string) ([]algoliaHit, error) {
	query := url.Values{}
	query.Set("query", keyword)
	query.Set("tags", "story")
	if s.cfg.MinScore > 0 {
		query.Set("numericFilters", fmt.Sprintf("points>=%d", s.cfg.MinScore))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.searchURL+"?"+query.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("リクエストの生成に失敗しました: %w", err)
	}
	req.Header.Set("User-Agent", "IdeaScout/1.0")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("検索リクエストに失敗しました: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("検索APIがエラーを返しました: %s", resp.Status)
	}

	var parsed algoliaResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("検索結果のデコードに失敗しました: %w", err)
	}

	return parsed.Hits, nil
}

// normalize はAlgoliaのヒットをScrapedItemに変換する。
// 外部URLのないテキスト投稿（Ask HNなど）はHN上の議論ページURLを使用する。
func (s *HackerNewsScraper) normalize(hit algoliaHit) model.ScrapedItem {
	itemURL := hit.URL
	if itemURL == "" {
		itemURL = "https://news.ycombinator.com/item?id=" + hit.ObjectID
	}

	postedAt := hit.CreatedAt
	item := model.ScrapedItem{
		URL:           itemURL,
		ExternalID:    hit.ObjectID,
		Title:         hit.Title,
		Content:       s.sanitizer.Sanitize(hit.StoryText),
		Author:        hit.Author,
		Upvotes:       hit.Points,
		CommentsCount: hit.NumComments,
	}
	if !postedAt.IsZero() {
		item.PostedAt = &postedAt
	}

	return item
}
