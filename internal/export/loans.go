// Package export は貸出履歴のJSONエクスポートとインポート、蔵書一覧のCSV出力を提供する。
package export

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/shopspring/decimal"

	"github.com/hitoshi/libman/internal/model"
	"github.com/hitoshi/libman/internal/repository"
)

// FormatVersion はエクスポートファイルの形式バージョン。
const FormatVersion = 1

const defaultBatchSize = 500

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// LoanRecord はエクスポートファイル内の貸出1件。
type LoanRecord struct {
	ID         string          `json:"id"`
	BookID     string          `json:"book_id"`
	UserID     string          `json:"user_id"`
	LoanDate   string          `json:"loan_date"`
	DueDate    string          `json:"due_date"`
	ReturnDate *string         `json:"return_date"`
	Returned   bool            `json:"returned"`
	Fine       decimal.Decimal `json:"fine"`
	CreatedAt  time.Time       `json:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at"`
}

// Document はエクスポートファイル全体。
type Document struct {
	Version    int          `json:"version"`
	ExportedAt time.Time    `json:"exported_at"`
	Loans      []LoanRecord `json:"loans"`
}

// ImportResult はインポートの結果件数。
type ImportResult struct {
	Created int
	// Skipped は同じIDの貸出が既に存在したため取り込まなかった件数。
	Skipped int
}

// LoanTransfer は貸出履歴のエクスポートとインポートを行う。
type LoanTransfer struct {
	store     repository.Store
	clock     model.Clock
	logger    *slog.Logger
	batchSize int
}

// NewLoanTransfer はLoanTransferを生成する。
func NewLoanTransfer(store repository.Store, clock model.Clock, logger *slog.Logger) *LoanTransfer {
	return &LoanTransfer{store: store, clock: clock, logger: logger, batchSize: defaultBatchSize}
}

// Export は全貸出をJSONとしてwに書き出し、件数を返す。
func (t *LoanTransfer) Export(ctx context.Context, w io.Writer) (int, error) {
	loans := t.store.Repositories().Loans
	doc := Document{
		Version:    FormatVersion,
		ExportedAt: t.clock().UTC(),
		Loans:      []LoanRecord{},
	}

	for offset := 0; ; offset += t.batchSize {
		batch, err := loans.List(ctx, model.Page{Offset: offset, Limit: t.batchSize})
		if err != nil {
			return 0, fmt.Errorf("貸出一覧の取得に失敗しました: %w", err)
		}
		for _, l := range batch {
			doc.Loans = append(doc.Loans, toRecord(l))
		}
		if len(batch) < t.batchSize {
			break
		}
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return 0, fmt.Errorf("エクスポートの書き込みに失敗しました: %w", err)
	}

	t.logger.Info("貸出履歴をエクスポートしました", slog.Int("count", len(doc.Loans)))
	return len(doc.Loans), nil
}

// Import はrから読み込んだ貸出を記録どおりに登録する。
// 未返却の貸出は書籍の在庫を1冊減らし、在庫がなければBookUnavailableErrorを返す。
// 全件を単一トランザクションで取り込み、1件でも失敗すれば何も登録しない。
func (t *LoanTransfer) Import(ctx context.Context, r io.Reader) (ImportResult, error) {
	var doc Document
	if err := json.NewDecoder(r).Decode(&doc); err != nil {
		return ImportResult{}, fmt.Errorf("インポートファイルの読み込みに失敗しました: %w", err)
	}
	if doc.Version != FormatVersion {
		return ImportResult{}, model.NewValidationError("version",
			fmt.Sprintf("未対応の形式バージョンです: %d", doc.Version))
	}

	loans := make([]*model.Loan, 0, len(doc.Loans))
	for i, rec := range doc.Loans {
		l, err := rec.toLoan()
		if err != nil {
			return ImportResult{}, fmt.Errorf("%d件目の記録が不正です: %w", i+1, err)
		}
		loans = append(loans, l)
	}

	now := t.clock()
	var result ImportResult
	err := t.store.WithinTx(ctx, func(ctx context.Context, repos repository.Repositories) error {
		result = ImportResult{}
		for _, l := range loans {
			existing, err := repos.Loans.FindByID(ctx, l.ID)
			if err != nil {
				return fmt.Errorf("貸出の確認に失敗しました: %w", err)
			}
			if existing != nil {
				result.Skipped++
				continue
			}
			if err := reserveReferences(ctx, repos, l, now); err != nil {
				return err
			}
			if err := repos.Loans.Create(ctx, l); err != nil {
				return fmt.Errorf("貸出の登録に失敗しました: %w", err)
			}
			result.Created++
		}
		return nil
	})
	if err != nil {
		return ImportResult{}, err
	}

	t.logger.Info("貸出履歴をインポートしました",
		slog.Int("created", result.Created),
		slog.Int("skipped", result.Skipped),
	)
	return result, nil
}

// reserveReferences は貸出の参照先を確認し、未返却なら書籍の在庫を1冊確保する。
func reserveReferences(ctx context.Context, repos repository.Repositories, l *model.Loan, now time.Time) error {
	b, err := repos.Books.FindByIDForUpdate(ctx, l.BookID)
	if err != nil {
		return fmt.Errorf("書籍の確認に失敗しました: %w", err)
	}
	if b == nil {
		return model.NewNotFoundError(model.EntityBook, l.BookID)
	}
	if !l.Returned {
		if !b.Checkout() {
			return model.NewBookUnavailableError(l.BookID)
		}
		b.UpdatedAt = now
		if err := repos.Books.Update(ctx, b); err != nil {
			return fmt.Errorf("書籍在庫の更新に失敗しました: %w", err)
		}
	}
	u, err := repos.Users.FindByID(ctx, l.UserID)
	if err != nil {
		return fmt.Errorf("利用者の確認に失敗しました: %w", err)
	}
	if u == nil {
		return model.NewNotFoundError(model.EntityUser, l.UserID)
	}
	return nil
}

const dateLayout = "2006-01-02"

func toRecord(l *model.Loan) LoanRecord {
	rec := LoanRecord{
		ID:        l.ID,
		BookID:    l.BookID,
		UserID:    l.UserID,
		LoanDate:  l.LoanDate.Format(dateLayout),
		DueDate:   l.DueDate.Format(dateLayout),
		Returned:  l.Returned,
		Fine:      l.Fine,
		CreatedAt: l.CreatedAt,
		UpdatedAt: l.UpdatedAt,
	}
	if l.ReturnDate != nil {
		d := l.ReturnDate.Format(dateLayout)
		rec.ReturnDate = &d
	}
	return rec
}

// toLoan は記録を検証してmodel.Loanに変換する。
func (rec LoanRecord) toLoan() (*model.Loan, error) {
	if rec.ID == "" {
		return nil, model.NewValidationError("id", "必須です")
	}
	if rec.BookID == "" {
		return nil, model.NewValidationError("book_id", "必須です")
	}
	if rec.UserID == "" {
		return nil, model.NewValidationError("user_id", "必須です")
	}

	loanDate, err := time.Parse(dateLayout, rec.LoanDate)
	if err != nil {
		return nil, model.NewValidationError("loan_date", "YYYY-MM-DD形式ではありません")
	}
	dueDate, err := time.Parse(dateLayout, rec.DueDate)
	if err != nil {
		return nil, model.NewValidationError("due_date", "YYYY-MM-DD形式ではありません")
	}
	if dueDate.Before(loanDate) {
		return nil, model.NewValidationError("due_date", "貸出日より前の日付です")
	}
	if rec.Fine.IsNegative() {
		return nil, model.NewValidationError("fine", "負の値は指定できません")
	}

	l := &model.Loan{
		ID:        rec.ID,
		BookID:    rec.BookID,
		UserID:    rec.UserID,
		LoanDate:  loanDate,
		DueDate:   dueDate,
		Returned:  rec.Returned,
		Fine:      rec.Fine.Round(2),
		CreatedAt: rec.CreatedAt,
		UpdatedAt: rec.UpdatedAt,
	}

	switch {
	case rec.Returned && rec.ReturnDate == nil:
		return nil, model.NewValidationError("return_date", "返却済みの貸出には返却日が必要です")
	case !rec.Returned && rec.ReturnDate != nil:
		return nil, model.NewValidationError("return_date", "未返却の貸出に返却日は指定できません")
	case !rec.Returned && !rec.Fine.IsZero():
		return nil, model.NewValidationError("fine", "未返却の貸出の延滞料は0である必要があります")
	}
	if rec.ReturnDate != nil {
		returnDate, err := time.Parse(dateLayout, *rec.ReturnDate)
		if err != nil {
			return nil, model.NewValidationError("return_date", "YYYY-MM-DD形式ではありません")
		}
		if returnDate.Before(loanDate) {
			return nil, model.NewValidationError("return_date", "貸出日より前の日付です")
		}
		l.ReturnDate = &returnDate
	}
	return l, nil
}
