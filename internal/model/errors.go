package model

import "fmt"

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: validation, scrape, analysis, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeProblemNotFound  = "PROBLEM_NOT_FOUND"
	ErrCodeInvalidStatus    = "INVALID_STATUS"
	ErrCodeInvalidSource    = "INVALID_SOURCE"
	ErrCodeInvalidSchedule  = "INVALID_SCHEDULE"
	ErrCodeScheduleNotFound = "SCHEDULE_NOT_FOUND"
	ErrCodeAnalysisNotFound = "ANALYSIS_NOT_FOUND"
	ErrCodeScrapeFailed     = "SCRAPE_FAILED"
)

// NewProblemNotFoundError は問題カード未検出エラーを生成する。
func NewProblemNotFoundError(problemID string) *APIError {
	return &APIError{
		Code:     ErrCodeProblemNotFound,
		Message:  fmt.Sprintf("指定された問題カードが見つかりません: %s", problemID),
		Category: "validation",
		Action:   "問題カードのIDを確認してください。",
	}
}

// NewInvalidStatusError は無効なカード状態エラーを生成する。
func NewInvalidStatusError(status string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidStatus,
		Message:  fmt.Sprintf("無効なカード状態です: %s", status),
		Category: "validation",
		Action:   "状態には new、viewed、in_review、verified、archived、rejected のいずれかを指定してください。",
	}
}

// NewInvalidSourceError は未知のソース指定エラーを生成する。
func NewInvalidSourceError(source string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidSource,
		Message:  fmt.Sprintf("未知のソースです: %s", source),
		Category: "validation",
		Action:   "登録済みのソース名、または all を指定してください。",
	}
}

// NewInvalidScheduleError は無効なスケジュール設定エラーを生成する。
func NewInvalidScheduleError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidSchedule,
		Message:  fmt.Sprintf("無効なスケジュール設定です: %s", reason),
		Category: "validation",
		Action:   "実行間隔は1〜168時間、処理上限は1〜200件の範囲で指定してください。",
	}
}

// NewScheduleNotFoundError はスケジュール未設定エラーを生成する。
func NewScheduleNotFoundError() *APIError {
	return &APIError{
		Code:     ErrCodeScheduleNotFound,
		Message:  "スケジュールが設定されていません。",
		Category: "validation",
		Action:   "先にスケジュールを設定してください。",
	}
}

// NewAnalysisNotFoundError は分析結果未検出エラーを生成する。
func NewAnalysisNotFoundError(problemID string) *APIError {
	return &APIError{
		Code:     ErrCodeAnalysisNotFound,
		Message:  fmt.Sprintf("指定された問題カードの市場分析が見つかりません: %s", problemID),
		Category: "analysis",
		Action:   "分析が完了してから再度お試しください。",
	}
}

// NewScrapeFailedError はスクレイプ起動失敗エラーを生成する。
func NewScrapeFailedError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeScrapeFailed,
		Message:  fmt.Sprintf("スクレイプの起動に失敗しました: %s", reason),
		Category: "scrape",
		Action:   "しばらく待ってから再度お試しください。",
	}
}
