package model

import "time"

// ScheduleConfig は定期スクレイプの設定を表すシングルトンレコード。
// 有効なインスタンスは常に最大1つで、置き換えは古い定義の削除を伴う。
// プロセス再起動後もDBから復元される。
type ScheduleConfig struct {
	ID            string
	Enabled       bool
	IntervalHours int
	Source        string // 対象ソースセレクタ（"hackernews" など、"all" で全ソース）
	Limit         int    // 1回の実行あたりの処理上限
	CreatedAt     time.Time
	LastRunAt     *time.Time
}

// ScrapeStatus はスクレイプ実行の状態を表す。
type ScrapeStatus string

const (
	// ScrapeStatusRunning は実行中。
	ScrapeStatusRunning ScrapeStatus = "running"
	// ScrapeStatusCompleted は正常完了。
	ScrapeStatusCompleted ScrapeStatus = "completed"
	// ScrapeStatusFailed は失敗。
	ScrapeStatusFailed ScrapeStatus = "failed"
)

// ScrapeLog はスクレイプ＋分析実行の履歴を表す。
type ScrapeLog struct {
	ID               string
	Source           string
	Status           ScrapeStatus
	DiscussionsFound int
	ProblemsCreated  int
	ErrorMessage     string
	StartedAt        time.Time
	CompletedAt      *time.Time
	TriggeredBy      string // "manual" または "schedule"
}
