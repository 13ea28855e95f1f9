// Package cleanup はメッセージログの保持期間ジョブを提供する。
// 保持期間を超過したメッセージを定期的に削除する。保持日数が0の場合は何もしない。
package cleanup

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// MessagePruner は指定時刻より前に作成されたメッセージを削除する。
type MessagePruner interface {
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// CleanupJob は保持期間を超過したメッセージの自動削除ジョブ。
// 冪等であり、削除対象がない場合もエラーにならない。
type CleanupJob struct {
	pruner        MessagePruner
	logger        *slog.Logger
	now           func() time.Time
	RetentionDays int // メッセージの保持日数（0: 無効）
}

// NewCleanupJob は新しいCleanupJobを生成する。
func NewCleanupJob(pruner MessagePruner, logger *slog.Logger, retentionDays int) *CleanupJob {
	return &CleanupJob{
		pruner:        pruner,
		logger:        logger,
		now:           time.Now,
		RetentionDays: retentionDays,
	}
}

// Enabled は保持期間が設定されている場合にtrueを返す。
func (j *CleanupJob) Enabled() bool {
	return j.RetentionDays > 0
}

// Run は作成からRetentionDays日を超過したメッセージを削除する。
func (j *CleanupJob) Run(ctx context.Context) error {
	if !j.Enabled() {
		return nil
	}

	start := time.Now()
	cutoff := j.now().AddDate(0, 0, -j.RetentionDays)

	deletedCount, err := j.pruner.DeleteOlderThan(ctx, cutoff)
	if err != nil {
		j.logger.Error("メッセージクリーンアップジョブの実行に失敗しました",
			slog.String("error", err.Error()),
			slog.Int("retention_days", j.RetentionDays),
		)
		return fmt.Errorf("メッセージクリーンアップの実行に失敗: %w", err)
	}

	duration := time.Since(start)
	j.logger.Info("メッセージクリーンアップジョブが完了しました",
		slog.Int64("deleted_count", deletedCount),
		slog.Int("retention_days", j.RetentionDays),
		slog.Float64("duration_ms", float64(duration.Milliseconds())),
	)

	return nil
}

// Start はinterval間隔でRunを繰り返す。無効な場合は即座に戻る。
func (j *CleanupJob) Start(ctx context.Context, interval time.Duration) {
	if !j.Enabled() {
		j.logger.Info("メッセージ保持期間が未設定のためクリーンアップジョブは起動しません")
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	// 失敗はRun内でログ出力済み
	_ = j.Run(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_ = j.Run(ctx)
		}
	}
}
