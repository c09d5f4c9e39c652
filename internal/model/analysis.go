package model

import (
	"encoding/json"
	"time"
)

// AnalysisStage は深層分析のステージ種別を表す。
// 市場分析は独立したMarketAnalysisテーブルを持つため、ここには含まれない。
type AnalysisStage string

const (
	// StageDesign はUXコンセプト分析ステージ。
	StageDesign AnalysisStage = "design"
	// StageTech は技術実現性分析ステージ。
	StageTech AnalysisStage = "tech"
	// StageValidation は既存ソリューション検証ステージ。
	StageValidation AnalysisStage = "validation"
	// StageTrend はトレンド・モメンタム分析ステージ。
	StageTrend AnalysisStage = "trend"
)

// Competitor は市場分析で発見された競合の情報を表す。
type Competitor struct {
	Name        string `json:"name"`
	URL         string `json:"url,omitempty"`
	Description string `json:"description,omitempty"`
}

// MarketAnalysis は市場規模・競合・GTM戦略の分析結果を表す。
// Problemごとに最大1件。ステージの再実行は追記ではなく置き換えになる。
type MarketAnalysis struct {
	ID        string
	ProblemID string

	TAM               string
	SAM               string
	SOM               string
	MarketDescription string

	Competitors     []Competitor
	Positioning     string
	CompetitiveMoat string

	PricingModel   string
	TargetSegments []string
	GTMChannels    []string

	MarketScore    *int // 0-100、失敗時はnil
	ScoreReasoning string

	AnalyzedAt time.Time
}

// StageResult は深層分析の1ステージの結果を表す。
// (ProblemID, Stage) が一意。再実行時は置き換えられる。
// Detailにはステージ固有の構造化データをそのまま保持する。
type StageResult struct {
	ID         string
	ProblemID  string
	Stage      AnalysisStage
	Score      *int // 0-100、失敗時はnil
	Detail     json.RawMessage
	AnalyzedAt time.Time
}

// OverallScore は集約スコアを表す。Problemごとに最大1件。
// 総合信頼度スコアは常に保存済みステージスコアからの決定的な再計算であり、
// 手動で編集されることはない。
type OverallScore struct {
	ID        string
	ProblemID string

	MarketScore     *int
	DesignScore     *int
	TechScore       *int
	ValidationScore *int
	TrendScore      *int

	OverallConfidence *int
	AnalysisTier      AnalysisTier

	GeneratedAt time.Time
	UpdatedAt   time.Time
}
