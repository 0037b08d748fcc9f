// Package overdue は延滞中の貸出を定期的に集計するバックグラウンドジョブを提供する。
// 延滞料は返却時にのみ確定するため、このジョブは貸出を更新しない。
package overdue

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/hitoshi/libman/internal/model"
)

const defaultBatchSize = 200

// LoanLister は延滞中の貸出を取得するインターフェース。
type LoanLister interface {
	ListOverdue(ctx context.Context, today time.Time, page model.Page) ([]*model.Loan, error)
}

// GaugeRecorder は集計結果をメトリクスに反映するインターフェース。
type GaugeRecorder interface {
	SetOverdueLoans(count int, accrued decimal.Decimal)
}

// Summary は1回の集計結果。
type Summary struct {
	Count          int
	Accrued        decimal.Decimal
	MaxDaysOverdue int
}

// Scanner は延滞中の貸出を集計する。
type Scanner struct {
	loans     LoanLister
	dailyRate decimal.Decimal
	clock     model.Clock
	metrics   GaugeRecorder
	logger    *slog.Logger
	batchSize int
}

// NewScanner はScannerの新しいインスタンスを生成する。
// metricsがnilの場合はメトリクスを更新しない。
func NewScanner(loans LoanLister, dailyRate decimal.Decimal, clock model.Clock, metrics GaugeRecorder, logger *slog.Logger) *Scanner {
	return &Scanner{
		loans:     loans,
		dailyRate: dailyRate,
		clock:     clock,
		metrics:   metrics,
		logger:    logger,
		batchSize: defaultBatchSize,
	}
}

// Start はintervalごとに集計を実行する。
// コンテキストがキャンセルされるまで実行を継続する。
func (s *Scanner) Start(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.logger.Info("延滞集計ジョブを開始しました", slog.Duration("interval", interval))

	// 起動直後に1回実行
	s.runAndLog(ctx)

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("延滞集計ジョブを停止しました")
			return
		case <-ticker.C:
			s.runAndLog(ctx)
		}
	}
}

func (s *Scanner) runAndLog(ctx context.Context) {
	if _, err := s.RunOnce(ctx); err != nil {
		s.logger.Error("延滞集計の実行に失敗しました", slog.String("error", err.Error()))
	}
}

// RunOnce は延滞中の貸出を全件走査し、現時点の延滞料合計を集計する。
func (s *Scanner) RunOnce(ctx context.Context) (Summary, error) {
	start := time.Now()
	now := s.clock()
	today := model.DateOf(now)

	summary := Summary{Accrued: decimal.Zero}
	for offset := 0; ; offset += s.batchSize {
		batch, err := s.loans.ListOverdue(ctx, today, model.Page{Offset: offset, Limit: s.batchSize})
		if err != nil {
			return Summary{}, fmt.Errorf("延滞貸出の取得に失敗しました: %w", err)
		}
		for _, l := range batch {
			summary.Count++
			summary.Accrued = summary.Accrued.Add(l.CurrentFine(now, s.dailyRate))
			if days := l.DaysOverdue(now); days > summary.MaxDaysOverdue {
				summary.MaxDaysOverdue = days
			}
		}
		if len(batch) < s.batchSize {
			break
		}
	}

	if s.metrics != nil {
		s.metrics.SetOverdueLoans(summary.Count, summary.Accrued)
	}

	s.logger.Info("延滞集計が完了しました",
		slog.Int("overdue_count", summary.Count),
		slog.String("accrued_fines", summary.Accrued.StringFixed(2)),
		slog.Int("max_days_overdue", summary.MaxDaysOverdue),
		slog.Float64("duration_ms", float64(time.Since(start).Milliseconds())),
	)
	return summary, nil
}
