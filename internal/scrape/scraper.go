package scrape

import (
	"context"
	"net/http"
	"time"

	"github.com/hitoshi/ideascout/internal/model"
)

// Scraper はソースコラボレータの契約を定義する。
// 実装は対象ソースから議論を取得し、正規化済みのScrapedItemとして返す。
// 戻り値はupvotesやURLを含む一覧レベルのデータであり、
// 重複排除や保存はランナー側の責務となる。
type Scraper interface {
	// Name はソース名を返す。sourcesテーブルのnameカラムに対応する。
	Name() string

	// Type はソース種別を返す。
	Type() model.SourceType

	// Fetch は最大limit件の議論を取得する。
	// limitが0以下の場合は実装側の上限設定に従う。
	Fetch(ctx context.Context, limit int) ([]model.ScrapedItem, error)
}

// SafeClientBuilder はSSRF防止付きHTTPクライアントの生成インターフェース。
type SafeClientBuilder interface {
	NewSafeClient(timeout time.Duration, maxResponseSize int64) *http.Client
	ValidateURL(rawURL string) error
}

// Sanitizer は取得コンテンツのサニタイズインターフェース。
type Sanitizer interface {
	Sanitize(raw string) string
}

// capLimit はlimitと設定上の上限から実際の取得件数を決める。
func capLimit(limit, maxItems int) int {
	if maxItems <= 0 {
		maxItems = 30
	}
	if limit <= 0 || limit > maxItems {
		return maxItems
	}
	return limit
}
