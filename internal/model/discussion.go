package model

import "time"

// Discussion はソースから収集した正規化済みの議論（取り込みレコード）を表す。
// URLがグローバルな同一性キーであり、同一URLの再発見は上書きではなく無視される。
// 作成後に変化するのはPassedFilterとIsAnalyzedの2つのフラグのみ。
type Discussion struct {
	ID            string
	SourceID      string
	URL           string // グローバル一意キー
	ExternalID    string // ソース固有ID（Reddit ID、HN item IDなど）
	Title         string
	Content       string // サニタイズ済みテキスト（本文+上位コメント）
	Author        string
	Upvotes       int
	CommentsCount int
	PostedAt      *time.Time
	ScrapedAt     time.Time
	PassedFilter  bool // 一次フィルタ（安価パス）の結果
	IsAnalyzed    bool // 処理済みフラグ（成否を問わない）
}

// ScrapedItem はスクレイパーが取得した未保存の議論データを表す。
// 各ソースコラボレータはこの形に正規化してランナーへ渡す。
type ScrapedItem struct {
	URL           string
	ExternalID    string
	Title         string
	Content       string
	Author        string
	Upvotes       int
	CommentsCount int
	PostedAt      *time.Time
}

// ThreadHistory はスレッド再クロール抑制のための履歴台帳エントリを表す。
// (SourceID, ThreadKey) が一意。スキップ判定と無関係に、観測のたびに
// LastSeenAtとSeenCountが更新される。
type ThreadHistory struct {
	ID          string
	SourceID    string
	ThreadKey   string // external_id、なければURL
	ExternalID  string
	URL         string
	FirstSeenAt time.Time
	LastSeenAt  time.Time
	SeenCount   int
}
