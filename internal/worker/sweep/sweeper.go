// Package sweep は無応答の参加者を定期的に退室させるスイーパーを提供する。
package sweep

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/larissaalvesm/projeto13-batepapo-uol-api/internal/model"
)

// ErrSweepInProgress は前回のスイープが実行中のためスキップしたことを示す。
var ErrSweepInProgress = errors.New("sweep already in progress")

// StaleFinder はlastStatusがcutoffより古い参加者を列挙する。
type StaleFinder interface {
	ListStale(ctx context.Context, cutoff time.Time) ([]*model.Participant, error)
}

// Expirer は参加者を条件付きで退室させる。
type Expirer interface {
	Expire(ctx context.Context, name string, cutoff time.Time) (bool, error)
}

// Recorder はスイープ結果のメトリクス記録インターフェース。
type Recorder interface {
	RecordSweep(duration time.Duration, expired, failed int)
}

// Config はスイーパーの設定。
type Config struct {
	Interval       time.Duration // スイープ間隔（デフォルト: 15秒）
	StaleThreshold time.Duration // 無応答とみなすまでの時間（デフォルト: 10秒）
	MaxConcurrency int           // 退室処理の最大並列数（デフォルト: 4）
}

// Result はスイープ1回分の結果。
type Result struct {
	Scanned int
	Expired int
	Failed  int
}

// Sweeper は一定間隔で無応答の参加者を検出し退室させる。
// 1件の退室処理の失敗は他の参加者の処理を妨げない。
type Sweeper struct {
	finder   StaleFinder
	expirer  Expirer
	logger   *slog.Logger
	recorder Recorder
	cfg      Config
	now      func() time.Time
	running  atomic.Bool
}

// NewSweeper はSweeperの新しいインスタンスを生成する。
// Configの各値が0以下の場合はデフォルト値を使用する。
func NewSweeper(finder StaleFinder, expirer Expirer, logger *slog.Logger, cfg Config) *Sweeper {
	if cfg.Interval <= 0 {
		cfg.Interval = 15 * time.Second
	}
	if cfg.StaleThreshold <= 0 {
		cfg.StaleThreshold = 10 * time.Second
	}
	if cfg.MaxConcurrency <= 0 {
		cfg.MaxConcurrency = 4
	}
	return &Sweeper{
		finder:  finder,
		expirer: expirer,
		logger:  logger,
		cfg:     cfg,
		now:     time.Now,
	}
}

// SetRecorder はメトリクスの記録先を設定する。
func (s *Sweeper) SetRecorder(r Recorder) {
	s.recorder = r
}

// Start は起動直後に1回スイープし、以降Interval間隔で繰り返す。
// コンテキストがキャンセルされるまで実行を継続する。
func (s *Sweeper) Start(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	s.logger.Info("スイーパーを開始しました",
		slog.Duration("interval", s.cfg.Interval),
		slog.Duration("stale_threshold", s.cfg.StaleThreshold),
		slog.Int("max_concurrency", s.cfg.MaxConcurrency),
	)

	s.runAndLog(ctx)

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("スイーパーを停止しました")
			return
		case <-ticker.C:
			s.runAndLog(ctx)
		}
	}
}

func (s *Sweeper) runAndLog(ctx context.Context) {
	if _, err := s.RunOnce(ctx); err != nil {
		if errors.Is(err, ErrSweepInProgress) {
			s.logger.Warn("前回のスイープが実行中のためスキップしました")
			return
		}
		s.logger.Error("スイープの実行に失敗しました",
			slog.String("error", err.Error()),
		)
	}
}

// RunOnce は無応答の参加者を1回だけ検出し、並列で退室させる。
// 前回の呼び出しが実行中の場合は何もせずErrSweepInProgressを返す。
func (s *Sweeper) RunOnce(ctx context.Context) (Result, error) {
	if !s.running.CompareAndSwap(false, true) {
		return Result{}, ErrSweepInProgress
	}
	defer s.running.Store(false)

	start := time.Now()
	cutoff := s.now().Add(-s.cfg.StaleThreshold)

	stale, err := s.finder.ListStale(ctx, cutoff)
	if err != nil {
		return Result{}, err
	}

	result := Result{Scanned: len(stale)}
	if len(stale) == 0 {
		return result, nil
	}

	var expired, failed atomic.Int64
	sem := make(chan struct{}, s.cfg.MaxConcurrency)
	var wg sync.WaitGroup

	for _, p := range stale {
		wg.Add(1)
		sem <- struct{}{}

		go func(name string) {
			defer wg.Done()
			defer func() { <-sem }()

			removed, err := s.expirer.Expire(ctx, name, cutoff)
			if err != nil {
				failed.Add(1)
				s.logger.Error("参加者の退室処理に失敗しました",
					slog.String("name", name),
					slog.String("error", err.Error()),
				)
				return
			}
			if removed {
				expired.Add(1)
			}
		}(p.Name)
	}

	wg.Wait()

	result.Expired = int(expired.Load())
	result.Failed = int(failed.Load())
	duration := time.Since(start)

	if s.recorder != nil {
		s.recorder.RecordSweep(duration, result.Expired, result.Failed)
	}

	s.logger.Info("スイープが完了しました",
		slog.Int("stale_count", result.Scanned),
		slog.Int("expired_count", result.Expired),
		slog.Int("failed_count", result.Failed),
		slog.Float64("duration_ms", float64(duration.Milliseconds())),
	)

	return result, nil
}
