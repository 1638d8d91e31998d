package cleanup

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/robfig/cron/v3"
)

// Job はスケジューラから実行されるジョブ。
type Job interface {
	Run(ctx context.Context) error
}

// Scheduler はcron式に従ってジョブを定期実行する。
type Scheduler struct {
	job    Job
	logger *slog.Logger
}

// NewScheduler はSchedulerの新しいインスタンスを生成する。
func NewScheduler(job Job, logger *slog.Logger) *Scheduler {
	return &Scheduler{job: job, logger: logger}
}

// Start はスケジュールを登録し、コンテキストがキャンセルされるまで実行を継続する。
// cron式が不正な場合は即座にエラーを返す。
// 起動直後に1回実行する。
func (s *Scheduler) Start(ctx context.Context, schedule string) error {
	c := cron.New()
	if _, err := c.AddFunc(schedule, func() { s.runOnce(ctx) }); err != nil {
		return fmt.Errorf("invalid cleanup schedule %q: %w", schedule, err)
	}

	s.logger.Info("cleanup scheduler started", slog.String("schedule", schedule))

	s.runOnce(ctx)
	c.Start()

	<-ctx.Done()

	// 実行中のジョブの完了を待つ
	<-c.Stop().Done()
	s.logger.Info("cleanup scheduler stopped")
	return nil
}

func (s *Scheduler) runOnce(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	if err := s.job.Run(ctx); err != nil {
		s.logger.Error("cleanup job failed", slog.String("error", err.Error()))
	}
}
