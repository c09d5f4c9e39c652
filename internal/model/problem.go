package model

import "time"

// AnalysisTier はAI分析の到達深度を表す。
// none → basic → deep の順にのみ遷移し、後退しない。
type AnalysisTier string

const (
	// TierNone は未分析の状態。
	TierNone AnalysisTier = "none"
	// TierBasic は市場分析までの基本分析が完了した状態。
	TierBasic AnalysisTier = "basic"
	// TierDeep は全ステージの深層分析が完了した状態。
	TierDeep AnalysisTier = "deep"
)

// AudienceType は問題の対象オーディエンス分類を表す。
type AudienceType string

const (
	// AudienceConsumers は一般消費者向け。
	AudienceConsumers AudienceType = "consumers"
	// AudienceEntrepreneurs は起業家・スモールビジネス向け。
	AudienceEntrepreneurs AudienceType = "entrepreneurs"
	// AudienceMixed は両方が明確に対象となる場合。
	AudienceMixed AudienceType = "mixed"
	// AudienceUnknown は判定不能。
	AudienceUnknown AudienceType = "unknown"
)

// CardStatus はカードのワークフロー状態を表す。
type CardStatus string

const (
	// CardStatusNew は未閲覧の新規カード。
	CardStatusNew CardStatus = "new"
	// CardStatusViewed は閲覧済みのカード。
	CardStatusViewed CardStatus = "viewed"
	// CardStatusInReview はレビュー中のカード。
	CardStatusInReview CardStatus = "in_review"
	// CardStatusVerified は検証済みのカード。
	CardStatusVerified CardStatus = "verified"
	// CardStatusArchived はアーカイブされたカード。デフォルト一覧から除外される。
	CardStatusArchived CardStatus = "archived"
	// CardStatusRejected は却下されたカード。デフォルト一覧から除外される。
	CardStatusRejected CardStatus = "rejected"
)

// ValidCardStatus はカード状態が定義済みの6値のいずれかであるかを返す。
func ValidCardStatus(s CardStatus) bool {
	switch s {
	case CardStatusNew, CardStatusViewed, CardStatusInReview,
		CardStatusVerified, CardStatusArchived, CardStatusRejected:
		return true
	}
	return false
}

// Problem は議論から抽出された事業機会（問題）を表す。
// 1つのDiscussionからは最大1つのProblemが作られる。
// 分析フィールドはパイプラインのみが、カード管理フィールドは
// 人間の操作のみが変更する（statusは人間のみ）。
type Problem struct {
	ID           string
	DiscussionID string

	ProblemStatement string
	Severity         *int // 1-10
	TargetAudience   string
	AudienceType     AudienceType
	CurrentSolutions string
	WhyTheyFail      string

	AnalysisTier AnalysisTier
	ExtractedAt  time.Time

	// カード管理フィールド
	CardStatus    CardStatus
	IsStarred     bool
	UserNotes     string
	UserTags      []string
	ViewCount     int
	FirstViewedAt *time.Time
	LastViewedAt  *time.Time
	ArchivedAt    *time.Time
	VerifiedAt    *time.Time
}

// StartupIdea は問題から生成されたスタートアップのアイデアを表す。
// 1つのProblemが複数のアイデアを持つ。作成後は不変。
type StartupIdea struct {
	ID               string
	ProblemID        string
	Title            string
	Description      string
	Approach         string // SaaS, marketplace, tool, API, mobile_app, community, browser_extension
	BusinessModel    string // B2C subscription, B2B SaaS, freemium など
	ValueProposition string
	CoreFeatures     []string
	Monetization     string
	GeneratedAt      time.Time
}
