// Package scrape はソースからの議論収集と再クロール抑制を提供する。
package scrape

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/hitoshi/ideascout/internal/repository"
)

// Tracker はスレッド履歴台帳に基づく再クロール抑制を提供する。
// 判定と観測記録の読み書きはプロセス内mutexで直列化される。
// 複数プロセスが同時に同じスレッドを判定した場合は二重処理になり得るが、
// 議論のURL一意制約により重複保存は発生しない。
type Tracker struct {
	historyRepo repository.ThreadHistoryRepository
	cooldown    time.Duration

	mu sync.Mutex
}

// NewTracker はTrackerを生成する。
// cooldownHoursが0以下の場合、スキップ判定は常にfalseになる
// （観測記録は引き続き行われる）。
func NewTracker(historyRepo repository.ThreadHistoryRepository, cooldownHours int) *Tracker {
	return &Tracker{
		historyRepo: historyRepo,
		cooldown:    time.Duration(cooldownHours) * time.Hour,
	}
}

// ShouldSkip はスレッドを処理すべきかを判定し、観測を台帳に記録する。
//
// スレッドキーはexternalIDを優先し、空の場合はurlを使用する。
// 両方が空の場合は台帳に書き込まず、スキップしない。
//
// 判定は記録前のlast_seen_atに基づく: 前回観測からの経過時間が
// クールダウン未満であればスキップする。観測記録（last_seen_atの更新と
// seen_countの加算）は判定結果にかかわらず必ず行われる。
func (t *Tracker) ShouldSkip(ctx context.Context, sourceID, externalID, url string) (bool, error) {
	threadKey := externalID
	if threadKey == "" {
		threadKey = url
	}
	if threadKey == "" {
		return false, nil
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	history, err := t.historyRepo.FindBySourceAndKey(ctx, sourceID, threadKey)
	if err != nil {
		return false, fmt.Errorf("スレッド履歴の検索に失敗しました: %w", err)
	}

	if err := t.historyRepo.RecordSeen(ctx, sourceID, threadKey, externalID, url); err != nil {
		return false, fmt.Errorf("スレッド観測の記録に失敗しました: %w", err)
	}

	if history == nil {
		return false, nil
	}
	if t.cooldown <= 0 {
		return false, nil
	}

	elapsed := time.Since(history.LastSeenAt)
	return elapsed < t.cooldown, nil
}
