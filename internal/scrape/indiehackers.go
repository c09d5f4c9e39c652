package scrape

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/time/rate"

	"github.com/hitoshi/ideascout/internal/config"
	"github.com/hitoshi/ideascout/internal/model"
)

// indieHackersBaseURL はIndie Hackersのベース URL。
const indieHackersBaseURL = "https://www.indiehackers.com"

// IndieHackersScraper はIndie Hackersのグループページを巡回して議論を収集する。
// 公開APIがないためHTMLをパースする。ページ構造の変化には弱いので、
// セレクタが一致しないグループは警告ログを出して続行する。
type IndieHackersScraper struct {
	cfg       config.IndieHackersConfig
	baseURL   string
	guard     SafeClientBuilder
	client    *http.Client
	sanitizer Sanitizer
	limiter   *rate.Limiter
	logger    *slog.Logger
}

var _ Scraper = (*IndieHackersScraper)(nil)

// NewIndieHackersScraper はIndieHackersScraperを生成する。
func NewIndieHackersScraper(cfg config.IndieHackersConfig, guard SafeClientBuilder, sanitizer Sanitizer, timeout time.Duration, maxSize int64, logger *slog.Logger) *IndieHackersScraper {
	return &IndieHackersScraper{
		cfg:       cfg,
		baseURL:   indieHackersBaseURL,
		guard:     guard,
		client:    guard.NewSafeClient(timeout, maxSize),
		sanitizer: sanitizer,
		// グループページの取得は1秒1回まで
		limiter: rate.NewLimiter(rate.Limit(1), 1),
		logger:  logger,
	}
}

// Name はソース名を返す。
func (s *IndieHackersScraper) Name() string { return "indiehackers" }

// Type はソース種別を返す。
func (s *IndieHackersScraper) Type() model.SourceType { return model.SourceTypeIndieHackers }

// Fetch は設定されたグループを順に巡回し、最大limit件の議論を返す。
// 議論の重複はURLで排除する。
func (s *IndieHackersScraper) Fetch(ctx context.Context, limit int) ([]model.ScrapedItem, error) {
	max := capLimit(limit, s.cfg.MaxItems)

	seen := map[string]bool{}
	var items []model.ScrapedItem

	for _, group := range s.cfg.Groups {
		if len(items) >= max {
			break
		}

		if err := s.limiter.Wait(ctx); err != nil {
			return items, fmt.Errorf("レート制限待機が中断されました: %w", err)
		}

		groupItems, err := s.fetchGroup(ctx, group)
		if err != nil {
			s.logger.Warn("グループの取得に失敗しました",
				slog.String("group", group),
				slog.String("error", err.Error()),
			)
			continue
		}

		for _, item := range groupItems {
			if len(items) >= max {
				break
			}
			if seen[item.URL] {
				continue
			}
			seen[item.URL] = true
			items = append(items, item)
		}
	}

	return items, nil
}

// fetchGroup は1グループ分のページを取得してパースする。
func (s *IndieHackersScraper) fetchGroup(ctx context.Context, group string) ([]model.ScrapedItem, error) {
	pageURL := s.baseURL + "/group/" + group

	if err := s.guard.ValidateURL(pageURL); err != nil {
		return nil, fmt.Errorf("グループURLの検証に失敗しました: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("リクエストの生成に失敗しました: %w", err)
	}
	req.Header.Set("User-Agent", "IdeaScout/1.0")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("ページの取得に失敗しました: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("ページの取得でエラー応答を受信しました: %s", resp.Status)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("ページのパースに失敗しました: %w", err)
	}

	var items []model.ScrapedItem
	doc.Find(".feed-item--post").Each(func(_ int, sel *goquery.Selection) {
		item, ok := s.parsePost(sel)
		if !ok {
			return
		}
		items = append(items, item)
	})

	if len(items) == 0 {
		s.logger.Warn("グループページから投稿を抽出できませんでした",
			slog.String("group", group),
		)
	}

	return items, nil
}

// parsePost はフィード内の1投稿をScrapedItemに変換する。
// タイトルとリンクのない要素（広告枠など）は無視する。
func (s *IndieHackersScraper) parsePost(sel *goquery.Selection) (model.ScrapedItem, bool) {
	link := sel.Find("a.feed-item__title-link").First()
	href, exists := link.Attr("href")
	title := strings.TrimSpace(link.Text())
	if !exists || title == "" {
		return model.ScrapedItem{}, false
	}

	postURL := href
	if strings.HasPrefix(postURL, "/") {
		postURL = s.baseURL + postURL
	}

	content := sel.Find(".feed-item__summary-text").First().Text()
	author := strings.TrimSpace(sel.Find("a.user-link__name").First().Text())

	return model.ScrapedItem{
		URL:           postURL,
		ExternalID:    externalIDFromPath(href),
		Title:         title,
		Content:       s.sanitizer.Sanitize(content),
		Author:        author,
		Upvotes:       parseCount(sel.Find(".feed-item__likes-count").First().Text()),
		CommentsCount: parseCount(sel.Find(".reply-count__full-count").First().Text()),
	}, true
}

// externalIDFromPath は投稿パスの末尾セグメントをソース固有IDとして取り出す。
// 例: "/post/my-struggle-abc123" → "my-struggle-abc123"
func externalIDFromPath(path string) string {
	trimmed := strings.TrimSuffix(path, "/")
	idx := strings.LastIndex(trimmed, "/")
	if idx < 0 || idx == len(trimmed)-1 {
		return ""
	}
	return trimmed[idx+1:]
}

// parseCount は "12 comments" のような表記から先頭の数値を取り出す。
func parseCount(text string) int {
	fields := strings.Fields(strings.TrimSpace(text))
	if len(fields) == 0 {
		return 0
	}
	n, err := strconv.Atoi(strings.ReplaceAll(fields[0], ",", ""))
	if err != nil {
		return 0
	}
	return n
}
