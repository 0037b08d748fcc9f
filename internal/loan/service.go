// Package loan は貸出・返却と延滞金計算を行う貸出ライフサイクルエンジンを提供する。
//
// 貸出の作成と返却はそれぞれ1つのトランザクションで実行する。
// 書籍行は行ロック付きで読み込むため、最後の1冊に対する同時貸出は直列化される。
package loan

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/hitoshi/libman/internal/model"
	"github.com/hitoshi/libman/internal/repository"
)

// Policy は貸出ルールのパラメータ。
type Policy struct {
	LoanPeriodDays int
	MaxActiveLoans int
	DailyFineRate  decimal.Decimal
	MinimumAge     int
}

// DefaultPolicy は標準の貸出ルールを返す。
// 貸出期間14日、同時貸出5冊まで、延滞金は1日2.50、最低年齢12歳。
func DefaultPolicy() Policy {
	return Policy{
		LoanPeriodDays: 14,
		MaxActiveLoans: 5,
		DailyFineRate:  decimal.RequireFromString("2.50"),
		MinimumAge:     12,
	}
}

// Recorder は貸出エンジンが記録するメトリクスのインターフェース。
type Recorder interface {
	RecordLoanCreated()
	RecordLoanReturned(overdue bool)
	RecordLoanRejected(reason string)
	RecordFineAssessed(amount decimal.Decimal)
	RecordOperationLatency(operation string, duration time.Duration)
}

type noopRecorder struct{}

func (noopRecorder) RecordLoanCreated()                           {}
func (noopRecorder) RecordLoanReturned(bool)                      {}
func (noopRecorder) RecordLoanRejected(string)                    {}
func (noopRecorder) RecordFineAssessed(decimal.Decimal)           {}
func (noopRecorder) RecordOperationLatency(string, time.Duration) {}

// Service は貸出ライフサイクルのサービス層。
type Service struct {
	store   repository.Store
	policy  Policy
	clock   model.Clock
	metrics Recorder
	logger  *slog.Logger
}

// NewService はServiceの新しいインスタンスを生成する。
// metricsがnilの場合はメトリクスを記録しない。
func NewService(store repository.Store, policy Policy, clock model.Clock, metrics Recorder, logger *slog.Logger) *Service {
	if metrics == nil {
		metrics = noopRecorder{}
	}
	return &Service{
		store:   store,
		policy:  policy,
		clock:   clock,
		metrics: metrics,
		logger:  logger,
	}
}

// Policy は現在の貸出ルールを返す。
func (s *Service) Policy() Policy {
	return s.policy
}

// CreateLoan は書籍を利用者に貸し出す。
//
// 前提条件は次の順に検査し、最初に失敗したものを返す。失敗時は何も変更しない。
//  1. 書籍が存在する（NotFound(Book)）
//  2. 利用者が存在する（NotFound(User)）
//  3. 書籍が貸出可能（BookUnavailable）
//  4. 利用者の未返却貸出数が上限未満（LoanLimitExceeded）
//  5. 利用者が最低年齢以上（AgeTooLow）
//  6. 利用者が有効（NotFound(User)）
func (s *Service) CreateLoan(ctx context.Context, bookID, userID string) (*model.Loan, error) {
	start := time.Now()
	now := s.clock()
	today := model.DateOf(now)

	var created *model.Loan
	err := s.store.WithinTx(ctx, func(ctx context.Context, repos repository.Repositories) error {
		book, err := repos.Books.FindByIDForUpdate(ctx, bookID)
		if err != nil {
			return fmt.Errorf("書籍の取得に失敗しました: %w", err)
		}
		if book == nil {
			return model.NewNotFoundError(model.EntityBook, bookID)
		}

		// 利用者行もロックし、同一利用者の貸出数チェックと登録を直列化する
		user, err := repos.Users.FindByIDForUpdate(ctx, userID)
		if err != nil {
			return fmt.Errorf("利用者の取得に失敗しました: %w", err)
		}
		if user == nil {
			return model.NewNotFoundError(model.EntityUser, userID)
		}

		if !book.IsAvailable() {
			return model.NewBookUnavailableError(bookID)
		}

		active, err := repos.Loans.CountActiveByUser(ctx, userID)
		if err != nil {
			return fmt.Errorf("貸出数の取得に失敗しました: %w", err)
		}
		if active >= s.policy.MaxActiveLoans {
			return model.NewLoanLimitExceededError(userID, s.policy.MaxActiveLoans)
		}

		if age := user.Age(today); age < s.policy.MinimumAge {
			return model.NewAgeTooLowError(age, s.policy.MinimumAge)
		}

		// 無効な利用者は存在しない利用者と同じ扱いにする
		if !user.Active {
			s.logger.Warn("無効な利用者による貸出要求を拒否しました",
				slog.String("user_id", userID),
				slog.String("book_id", bookID),
			)
			return model.NewNotFoundError(model.EntityUser, userID)
		}

		if !book.Checkout() {
			return model.NewBookUnavailableError(bookID)
		}
		book.UpdatedAt = now
		if err := repos.Books.Update(ctx, book); err != nil {
			return fmt.Errorf("書籍の在庫更新に失敗しました: %w", err)
		}

		loan := model.NewLoan(uuid.New().String(), bookID, userID, today, s.policy.LoanPeriodDays)
		loan.CreatedAt = now
		loan.UpdatedAt = now
		if err := repos.Loans.Create(ctx, loan); err != nil {
			return fmt.Errorf("貸出の登録に失敗しました: %w", err)
		}
		created = loan
		return nil
	})
	s.metrics.RecordOperationLatency("create", time.Since(start))
	if err != nil {
		s.logRejection("貸出を拒否しました", err,
			slog.String("book_id", bookID),
			slog.String("user_id", userID),
		)
		return nil, err
	}

	s.metrics.RecordLoanCreated()
	s.logger.Info("貸出を作成しました",
		slog.String("loan_id", created.ID),
		slog.String("book_id", bookID),
		slog.String("user_id", userID),
		slog.Time("due_date", created.DueDate),
	)
	return created, nil
}

// ReturnLoan は貸出を返却済みにし、延滞金を確定する。
// 延滞金は返却済みにする前に計算し、書籍の在庫を1冊戻す。
func (s *Service) ReturnLoan(ctx context.Context, loanID string) (*model.Loan, error) {
	start := time.Now()
	now := s.clock()
	today := model.DateOf(now)

	var (
		returned *model.Loan
		overdue  bool
		days     int
	)
	err := s.store.WithinTx(ctx, func(ctx context.Context, repos repository.Repositories) error {
		loan, err := repos.Loans.FindByIDForUpdate(ctx, loanID)
		if err != nil {
			return fmt.Errorf("貸出の取得に失敗しました: %w", err)
		}
		if loan == nil {
			return model.NewLoanNotFoundError(loanID)
		}
		if loan.Returned {
			return model.NewLoanAlreadyReturnedError(loanID)
		}

		overdue = loan.IsOverdue(today)
		days = loan.DaysOverdue(today)
		loan.MarkReturned(today, s.policy.DailyFineRate)
		loan.UpdatedAt = now

		book, err := repos.Books.FindByIDForUpdate(ctx, loan.BookID)
		if err != nil {
			return fmt.Errorf("書籍の取得に失敗しました: %w", err)
		}
		if book == nil {
			return model.NewNotFoundError(model.EntityBook, loan.BookID)
		}
		book.Return()
		book.UpdatedAt = now
		if err := repos.Books.Update(ctx, book); err != nil {
			return fmt.Errorf("書籍の在庫更新に失敗しました: %w", err)
		}

		if err := repos.Loans.Update(ctx, loan); err != nil {
			return fmt.Errorf("貸出の更新に失敗しました: %w", err)
		}
		returned = loan
		return nil
	})
	s.metrics.RecordOperationLatency("return", time.Since(start))
	if err != nil {
		s.logRejection("返却を拒否しました", err, slog.String("loan_id", loanID))
		return nil, err
	}

	s.metrics.RecordLoanReturned(overdue)
	s.metrics.RecordFineAssessed(returned.Fine)
	if overdue {
		s.logger.Warn("延滞中の貸出が返却されました",
			slog.String("loan_id", loanID),
			slog.Int("days_overdue", days),
			slog.String("fine", returned.Fine.StringFixed(2)),
		)
	}
	s.logger.Info("貸出を返却しました",
		slog.String("loan_id", loanID),
		slog.String("fine", returned.Fine.StringFixed(2)),
	)
	return returned, nil
}

// ComputeFine は貸出の延滞金を返す。
// 返却済みなら確定済みの金額、未返却なら今日時点の金額（延滞していなければ0）。
func (s *Service) ComputeFine(ctx context.Context, loanID string) (decimal.Decimal, error) {
	loan, err := s.GetLoan(ctx, loanID)
	if err != nil {
		return decimal.Zero, err
	}
	return loan.CurrentFine(s.clock(), s.policy.DailyFineRate), nil
}

// GetLoan は指定IDの貸出を返す。
func (s *Service) GetLoan(ctx context.Context, loanID string) (*model.Loan, error) {
	loan, err := s.store.Repositories().Loans.FindByID(ctx, loanID)
	if err != nil {
		return nil, fmt.Errorf("貸出の取得に失敗しました: %w", err)
	}
	if loan == nil {
		return nil, model.NewLoanNotFoundError(loanID)
	}
	return loan, nil
}

// ListLoans は全貸出を返す。
func (s *Service) ListLoans(ctx context.Context, page model.Page) ([]*model.Loan, error) {
	loans, err := s.store.Repositories().Loans.List(ctx, page)
	if err != nil {
		return nil, fmt.Errorf("貸出一覧の取得に失敗しました: %w", err)
	}
	return loans, nil
}

// ListByUser は利用者の貸出履歴を返す。
func (s *Service) ListByUser(ctx context.Context, userID string, page model.Page) ([]*model.Loan, error) {
	loans, err := s.store.Repositories().Loans.ListByUser(ctx, userID, page)
	if err != nil {
		return nil, fmt.Errorf("利用者の貸出履歴の取得に失敗しました: %w", err)
	}
	return loans, nil
}

// ListByBook は書籍の貸出履歴を返す。
func (s *Service) ListByBook(ctx context.Context, bookID string, page model.Page) ([]*model.Loan, error) {
	loans, err := s.store.Repositories().Loans.ListByBook(ctx, bookID, page)
	if err != nil {
		return nil, fmt.Errorf("書籍の貸出履歴の取得に失敗しました: %w", err)
	}
	return loans, nil
}

// ListActive は未返却の貸出を返す。
func (s *Service) ListActive(ctx context.Context, page model.Page) ([]*model.Loan, error) {
	loans, err := s.store.Repositories().Loans.ListActive(ctx, page)
	if err != nil {
		return nil, fmt.Errorf("貸出中一覧の取得に失敗しました: %w", err)
	}
	return loans, nil
}

// ListOverdue は未返却かつ返却期限が今日より前の貸出を返す。
func (s *Service) ListOverdue(ctx context.Context, page model.Page) ([]*model.Loan, error) {
	loans, err := s.store.Repositories().Loans.ListOverdue(ctx, model.DateOf(s.clock()), page)
	if err != nil {
		return nil, fmt.Errorf("延滞一覧の取得に失敗しました: %w", err)
	}
	return loans, nil
}

// logRejection は業務ルール違反を警告として記録する。
// それ以外のエラーは呼び出し元で記録する。
func (s *Service) logRejection(msg string, err error, attrs ...any) {
	var apiErr *model.APIError
	if !errors.As(err, &apiErr) || apiErr.Category != model.CategoryBusinessRule {
		return
	}
	s.metrics.RecordLoanRejected(apiErr.Code)
	s.logger.Warn(msg, append(attrs,
		slog.String("code", apiErr.Code),
		slog.String("reason", apiErr.Message),
	)...)
}
