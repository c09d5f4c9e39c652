// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/hitoshi/ideascout/internal/model"
)

// SourceRepository はソースデータの永続化インターフェース。
type SourceRepository interface {
	// FindByID は指定IDのソースを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Source, error)

	// FindByName はソース名でソースを検索する。見つからない場合はnilを返す。
	FindByName(ctx context.Context, name string) (*model.Source, error)

	// Create はソースを作成する。
	Create(ctx context.Context, source *model.Source) error

	// List は全ソースを作成日時昇順で返す。
	List(ctx context.Context) ([]*model.Source, error)

	// UpdateLastScraped はソースの最終スクレイプ日時を更新する。
	UpdateLastScraped(ctx context.Context, id string, scrapedAt time.Time) error
}

// DiscussionRepository は議論データの永続化インターフェース。
type DiscussionRepository interface {
	// FindByID は指定IDの議論を取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Discussion, error)

	// FindByURL はURLで議論を検索する。見つからない場合はnilを返す。
	FindByURL(ctx context.Context, url string) (*model.Discussion, error)

	// Create は議論を作成する。
	// 同一URLが既に存在する場合は何もせずfalseを返す（再発見は無視）。
	Create(ctx context.Context, discussion *model.Discussion) (created bool, err error)

	// ListUnanalyzed は未分析の議論をupvotes降順（同値はコメント数降順）で
	// 最大limit件取得する。
	ListUnanalyzed(ctx context.Context, limit int) ([]*model.Discussion, error)

	// UpdateFilterResult は一次フィルタの結果を記録する。
	UpdateFilterResult(ctx context.Context, id string, passed bool) error

	// MarkAnalyzed は議論を処理済みにする。成否を問わず呼ばれる。
	MarkAnalyzed(ctx context.Context, id string) error
}

// ThreadHistoryRepository はスレッド再クロール抑制台帳の永続化インターフェース。
type ThreadHistoryRepository interface {
	// FindBySourceAndKey は(source_id, thread_key)で履歴を検索する。
	// 見つからない場合はnilを返す。
	FindBySourceAndKey(ctx context.Context, sourceID, threadKey string) (*model.ThreadHistory, error)

	// RecordSeen はスレッドの観測を記録する。
	// 既存エントリがあればlast_seen_atを更新しseen_countを加算、
	// なければ新規エントリを作成する。
	RecordSeen(ctx context.Context, sourceID, threadKey, externalID, url string) error
}

// ProblemListQuery は問題カード一覧の絞り込み条件を表す。
// ポインタフィールドはnilの場合フィルタ対象外。
type ProblemListQuery struct {
	Status          *model.CardStatus
	AudienceType    *model.AudienceType
	Tier            *model.AnalysisTier
	IsStarred       *bool
	MinScore        *int // overall_confidence の下限
	Tags            []string
	SourceType      *model.SourceType
	ExtractedAfter  *time.Time
	ExtractedBefore *time.Time

	// IncludeArchived がfalseの場合、archived/rejectedを除外する。
	// Statusによる明示指定はこの除外より優先される。
	IncludeArchived bool

	SortBy string // extracted_at（デフォルト）, score, severity
	Skip   int
	Limit  int
}

// ProblemRepository は問題カードデータの永続化インターフェース。
type ProblemRepository interface {
	// FindByID は指定IDの問題カードを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Problem, error)

	// FindByDiscussionID は議論IDで問題カードを検索する。見つからない場合はnilを返す。
	FindByDiscussionID(ctx context.Context, discussionID string) (*model.Problem, error)

	// CreateWithIdeas は問題カードとアイデア群を同一トランザクションで作成する。
	CreateWithIdeas(ctx context.Context, problem *model.Problem, ideas []*model.StartupIdea) error

	// List は絞り込み条件に合致する問題カードの一覧を返す。
	List(ctx context.Context, query ProblemListQuery) ([]*model.Problem, error)

	// Count は絞り込み条件に合致する問題カードの件数を返す。
	Count(ctx context.Context, query ProblemListQuery) (int, error)

	// RecordView は閲覧を記録する。view_countを加算し、
	// first_viewed_at（初回のみ）とlast_viewed_atを更新する。
	RecordView(ctx context.Context, id string, viewedAt time.Time) error

	// UpdateCardStatus はカード状態と到達日時スタンプを更新する。
	// archivedAt/verifiedAtはnilの場合その列を変更しない。
	UpdateCardStatus(ctx context.Context, id string, status model.CardStatus, archivedAt, verifiedAt *time.Time) error

	// UpdateStarred はスターフラグを更新する。
	UpdateStarred(ctx context.Context, id string, starred bool) error

	// UpdateNotes はユーザーメモを更新する。
	UpdateNotes(ctx context.Context, id string, notes string) error

	// UpdateTags はユーザータグを更新する。
	UpdateTags(ctx context.Context, id string, tags []string) error

	// UpdateAnalysisTier は分析到達深度を更新する。
	UpdateAnalysisTier(ctx context.Context, id string, tier model.AnalysisTier) error
}

// StartupIdeaRepository はスタートアップアイデアの永続化インターフェース。
type StartupIdeaRepository interface {
	// ListByProblemID は問題カードに紐づくアイデア一覧を生成日時昇順で返す。
	ListByProblemID(ctx context.Context, problemID string) ([]*model.StartupIdea, error)
}

// AnalysisRepository は分析結果（市場分析・ステージ結果・総合スコア）の
// 永続化インターフェース。再実行はすべて追記ではなく置き換えになる。
type AnalysisRepository interface {
	// FindMarketByProblemID は問題カードの市場分析を取得する。見つからない場合はnilを返す。
	FindMarketByProblemID(ctx context.Context, problemID string) (*model.MarketAnalysis, error)

	// UpsertMarket は市場分析を保存する。既存の分析は置き換えられる。
	UpsertMarket(ctx context.Context, analysis *model.MarketAnalysis) error

	// ListStagesByProblemID は問題カードのステージ結果一覧を返す。
	ListStagesByProblemID(ctx context.Context, problemID string) ([]*model.StageResult, error)

	// UpsertStage はステージ結果を保存する。同一(problem_id, stage)の既存結果は置き換えられる。
	UpsertStage(ctx context.Context, result *model.StageResult) error

	// FindOverallByProblemID は問題カードの総合スコアを取得する。見つからない場合はnilを返す。
	FindOverallByProblemID(ctx context.Context, problemID string) (*model.OverallScore, error)

	// UpsertOverall は総合スコアを保存する。既存のスコアは置き換えられる。
	UpsertOverall(ctx context.Context, score *model.OverallScore) error
}

// ScrapeLogRepository はスクレイプ実行履歴の永続化インターフェース。
type ScrapeLogRepository interface {
	// Create は実行中ステータスのログを作成する。
	Create(ctx context.Context, log *model.ScrapeLog) error

	// Complete はログを完了状態に更新する。
	Complete(ctx context.Context, id string, status model.ScrapeStatus, found, created int, errorMessage string, completedAt time.Time) error

	// ListRecent は開始日時降順で最大limit件のログを返す。
	ListRecent(ctx context.Context, limit int) ([]*model.ScrapeLog, error)
}

// ScheduleRepository は定期実行設定の永続化インターフェース。
// 設定はシングルトンであり、Replaceは既存設定の削除を伴う。
type ScheduleRepository interface {
	// Get は現在の設定を取得する。未設定の場合はnilを返す。
	Get(ctx context.Context) (*model.ScheduleConfig, error)

	// Replace は既存の設定をすべて削除し、新しい設定を保存する。
	Replace(ctx context.Context, config *model.ScheduleConfig) error

	// TryClaimRun は定期実行1回分の実行権の獲得を試みる。
	// 指定IDの設定が有効で、かつ前回実行から間隔が経過している場合のみ
	// last_run_atを更新してtrueを返す。複数プロセスが同じ設定に対して
	// 同時にtickしても、実行権を獲得できるのは1つだけ。
	TryClaimRun(ctx context.Context, id string, runAt time.Time) (bool, error)

	// Delete は設定を削除する。
	Delete(ctx context.Context) error
}

// StatsSummary はダッシュボード向けの集計値を表す。
type StatsSummary struct {
	TotalDiscussions int
	TotalProblems    int
	ProblemsToday    int

	ByTier     map[string]int
	ByStatus   map[string]int
	BySource   map[string]int
	ByAudience map[string]int

	// overall_confidenceの分布（0-24, 25-49, 50-69, 70-100）
	ScoreDistribution map[string]int

	HighConfidenceCount int
}

// StatsRepository は統計集計のインターフェース。
type StatsRepository interface {
	// Summary は各種集計値を取得する。
	// highConfidenceThresholdは高信頼度カウントの下限スコア。
	Summary(ctx context.Context, highConfidenceThreshold int) (*StatsSummary, error)
}

// TxBeginner はトランザクション開始用のインターフェース。
type TxBeginner interface {
	BeginTx(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error)
}
