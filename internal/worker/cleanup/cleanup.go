// Package cleanup はセッションデータの自動削除ジョブを提供する。
// 絶対有効期限を過ぎたセッションと、アイドルタイムアウトを超過したセッションを
// 定期的に削除する。
package cleanup

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/hitoshi/securenotes/internal/metrics"
)

// Executor はSQLのExecContextを抽象化するインターフェース。
// *sql.DB や *sql.Tx を受け付けることができる。
type Executor interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

// SessionCleanupJob は無効になったセッションの削除ジョブ。
// 冪等な削除処理であり、何度実行しても結果は変わらない。
type SessionCleanupJob struct {
	db          Executor
	logger      *slog.Logger
	metrics     metrics.MetricsCollector
	IdleTimeout time.Duration // 0の場合はアイドル判定を行わない
	now         func() time.Time
}

// NewSessionCleanupJob は新しいSessionCleanupJobを生成する。
func NewSessionCleanupJob(db Executor, logger *slog.Logger, collector metrics.MetricsCollector) *SessionCleanupJob {
	if collector == nil {
		collector = metrics.Nop{}
	}
	return &SessionCleanupJob{
		db:      db,
		logger:  logger,
		metrics: collector,
		now:     time.Now,
	}
}

// Run は期限切れセッションを削除する。
// 削除対象がない場合でもエラーにならない。
func (j *SessionCleanupJob) Run(ctx context.Context) error {
	start := time.Now()

	var (
		result sql.Result
		err    error
	)
	if j.IdleTimeout > 0 {
		cutoff := j.now().Add(-j.IdleTimeout)
		result, err = j.db.ExecContext(ctx,
			`DELETE FROM sessions WHERE expires_at < now() OR last_seen_at < $1`,
			cutoff,
		)
	} else {
		result, err = j.db.ExecContext(ctx, `DELETE FROM sessions WHERE expires_at < now()`)
	}
	if err != nil {
		j.logger.Error("session cleanup failed",
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("セッションクリーンアップの実行に失敗: %w", err)
	}

	deletedCount, err := result.RowsAffected()
	if err != nil {
		j.logger.Error("failed to get deleted session count",
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("削除件数の取得に失敗: %w", err)
	}

	j.metrics.RecordSessionsCleaned(deletedCount)

	j.logger.Info("session cleanup completed",
		slog.Int64("deleted_count", deletedCount),
		slog.Duration("idle_timeout", j.IdleTimeout),
		slog.Float64("duration_ms", float64(time.Since(start).Milliseconds())),
	)

	return nil
}
