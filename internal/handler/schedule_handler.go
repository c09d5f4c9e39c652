package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/hitoshi/ideascout/internal/middleware"
	"github.com/hitoshi/ideascout/internal/model"
)

// ScheduleControllerInterface はスケジュール管理のインターフェース。
type ScheduleControllerInterface interface {
	// Get は現在のスケジュール設定を返す。未設定の場合はnilを返す。
	Get(ctx context.Context) (*model.ScheduleConfig, error)
	// Set はスケジュール設定を置き換える。
	Set(ctx context.Context, intervalHours int, source string, limit int) (*model.ScheduleConfig, error)
	// Remove はスケジュール設定とcronエントリを削除する。
	Remove(ctx context.Context) error
}

// ScheduleHandler は定期スクレイプ設定のHTTPハンドラー。
type ScheduleHandler struct {
	controller ScheduleControllerInterface
}

// NewScheduleHandler はScheduleHandlerを生成する。
func NewScheduleHandler(controller ScheduleControllerInterface) *ScheduleHandler {
	return &ScheduleHandler{controller: controller}
}

// scheduleRequest はスケジュール設定リクエストのボディ。
type scheduleRequest struct {
	IntervalHours int    `json:"interval_hours"`
	Source        string `json:"source"`
	Limit         int    `json:"limit"`
}

// scheduleResponse はスケジュール設定のレスポンス。
type scheduleResponse struct {
	ID            string     `json:"id"`
	Enabled       bool       `json:"enabled"`
	IntervalHours int        `json:"interval_hours"`
	Source        string     `json:"source"`
	Limit         int        `json:"limit"`
	CreatedAt     time.Time  `json:"created_at"`
	LastRunAt     *time.Time `json:"last_run_at,omitempty"`
}

func toScheduleResponse(c *model.ScheduleConfig) scheduleResponse {
	return scheduleResponse{
		ID:            c.ID,
		Enabled:       c.Enabled,
		IntervalHours: c.IntervalHours,
		Source:        c.Source,
		Limit:         c.Limit,
		CreatedAt:     c.CreatedAt,
		LastRunAt:     c.LastRunAt,
	}
}

// GetSchedule は現在のスケジュール設定を取得する。
// 未設定の場合はenabled=falseのレスポンスを返す。
// GET /api/schedule
func (h *ScheduleHandler) GetSchedule(w http.ResponseWriter, r *http.Request) {
	config, err := h.controller.Get(r.Context())
	if err != nil {
		middleware.WriteError(w, err)
		return
	}

	if config == nil {
		writeJSON(w, http.StatusOK, map[string]any{"enabled": false})
		return
	}

	writeJSON(w, http.StatusOK, toScheduleResponse(config))
}

// SetSchedule はスケジュール設定を置き換える。
// POST /api/schedule
func (h *ScheduleHandler) SetSchedule(w http.ResponseWriter, r *http.Request) {
	var req scheduleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, invalidRequestError("リクエストボディの解析に失敗しました。"))
		return
	}
	if req.Source == "" {
		req.Source = "all"
	}

	config, err := h.controller.Set(r.Context(), req.IntervalHours, req.Source, req.Limit)
	if err != nil {
		middleware.WriteError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toScheduleResponse(config))
}

// RemoveSchedule はスケジュール設定を削除する。
// DELETE /api/schedule
func (h *ScheduleHandler) RemoveSchedule(w http.ResponseWriter, r *http.Request) {
	if err := h.controller.Remove(r.Context()); err != nil {
		middleware.WriteError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
