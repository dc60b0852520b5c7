// Package cleanup は掲載期限を過ぎたプロモーションを定期的に解除するジョブを提供する。
// promoted_until を過ぎたディールは is_promoted を落とし、表示順を通常に戻す。
package cleanup

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// PromotionExpirer は期限切れプロモーションの解除を抽象化する。
// repository.DealRepository が満たす。
type PromotionExpirer interface {
	ExpirePromotions(ctx context.Context, now time.Time) (int64, error)
}

// ExpiryRecorder は解除件数を記録する。
type ExpiryRecorder interface {
	RecordPromotionsExpired(count int64)
}

// PromotionJob は期限切れプロモーションの解除ジョブ。
// 何度実行しても結果は変わらない。
type PromotionJob struct {
	deals    PromotionExpirer
	recorder ExpiryRecorder
	logger   *slog.Logger
	now      func() time.Time
}

// NewPromotionJob は新しいPromotionJobを生成する。recorderはnilでもよい。
func NewPromotionJob(deals PromotionExpirer, recorder ExpiryRecorder, logger *slog.Logger) *PromotionJob {
	return &PromotionJob{
		deals:    deals,
		recorder: recorder,
		logger:   logger,
		now:      time.Now,
	}
}

// Run は現在時刻より前に期限が切れたプロモーションを解除する。
func (j *PromotionJob) Run(ctx context.Context) error {
	start := j.now()

	expired, err := j.deals.ExpirePromotions(ctx, start.UTC())
	if err != nil {
		j.logger.Error("プロモーション期限切れ処理に失敗しました",
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("プロモーション期限切れ処理に失敗: %w", err)
	}

	if j.recorder != nil && expired > 0 {
		j.recorder.RecordPromotionsExpired(expired)
	}

	j.logger.Info("プロモーション期限切れ処理が完了しました",
		slog.Int64("expired_count", expired),
		slog.Float64("duration_ms", float64(time.Since(start).Milliseconds())),
	)
	return nil
}

// Start はintervalごとにRunを実行する。起動直後にも1回実行する。
// コンテキストがキャンセルされるまで戻らない。
func (j *PromotionJob) Start(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	j.logger.Info("プロモーション期限切れジョブを開始しました",
		slog.Duration("interval", interval),
	)

	_ = j.Run(ctx)

	for {
		select {
		case <-ctx.Done():
			j.logger.Info("プロモーション期限切れジョブを停止しました")
			return
		case <-ticker.C:
			_ = j.Run(ctx)
		}
	}
}
