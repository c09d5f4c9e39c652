// Package model はドメインモデルを定義する。
package model

import "time"

// SourceType は監視対象ソースの種別を表す。
type SourceType string

const (
	// SourceTypeReddit はRedditのソース種別。
	SourceTypeReddit SourceType = "reddit"
	// SourceTypeHackerNews はHacker Newsのソース種別。
	SourceTypeHackerNews SourceType = "hackernews"
	// SourceTypeTwitter はTwitter/Xのソース種別。
	SourceTypeTwitter SourceType = "twitter"
	// SourceTypeProductHunt はProduct Huntのソース種別。
	SourceTypeProductHunt SourceType = "producthunt"
	// SourceTypeIndieHackers はIndie Hackersのソース種別。
	SourceTypeIndieHackers SourceType = "indiehackers"
	// SourceTypeQuora はQuoraのソース種別。
	SourceTypeQuora SourceType = "quora"
	// SourceTypeYouTube はYouTubeのソース種別。
	SourceTypeYouTube SourceType = "youtube"
	// SourceTypeMedium はMediumのソース種別。
	SourceTypeMedium SourceType = "medium"
	// SourceTypeDiscourse はDiscourseフォーラムのソース種別。
	SourceTypeDiscourse SourceType = "discourse"
	// SourceTypeRSS は汎用RSS/Atomフィードのソース種別。
	SourceTypeRSS SourceType = "rss"
	// SourceTypeAppStore はApp Storeレビューのソース種別。
	SourceTypeAppStore SourceType = "appstore"
	// SourceTypeWebSearch はWeb検索ベースのソース種別。
	SourceTypeWebSearch SourceType = "websearch"
)

// ValidSourceType はソース種別が定義済みの値かどうかを返す。
func ValidSourceType(t SourceType) bool {
	switch t {
	case SourceTypeReddit, SourceTypeHackerNews, SourceTypeTwitter,
		SourceTypeProductHunt, SourceTypeIndieHackers, SourceTypeQuora,
		SourceTypeYouTube, SourceTypeMedium, SourceTypeDiscourse,
		SourceTypeRSS, SourceTypeAppStore, SourceTypeWebSearch:
		return true
	}
	return false
}

// Source は監視対象のコンテンツソースを表す。
// 名前が安定した識別子であり、参照されている間は削除されない。
type Source struct {
	ID          string
	Name        string // 例: "hackernews", "medium_startups"
	Type        SourceType
	IsActive    bool
	LastScraped *time.Time
	CreatedAt   time.Time
}
