package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/doug-martin/goqu/v9"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"github.com/hitoshi/libman/internal/model"
)

const tableLoans = "loans"

var loanColumns = []string{
	"id", "book_id", "user_id", "loan_date", "due_date", "return_date", "returned", "fine", "created_at", "updated_at",
}

const selectLoanSQL = `SELECT id, book_id, user_id, loan_date, due_date, return_date, returned, fine,
	created_at, updated_at
	FROM loans WHERE id = $1`

// loanRow はloansテーブルの1行。
type loanRow struct {
	ID         string          `db:"id"`
	BookID     string          `db:"book_id"`
	UserID     string          `db:"user_id"`
	LoanDate   time.Time       `db:"loan_date"`
	DueDate    time.Time       `db:"due_date"`
	ReturnDate sql.NullTime    `db:"return_date"`
	Returned   bool            `db:"returned"`
	Fine       decimal.Decimal `db:"fine"`
	CreatedAt  time.Time       `db:"created_at"`
	UpdatedAt  time.Time       `db:"updated_at"`
}

func newLoanRow(l *model.Loan) loanRow {
	row := loanRow{
		ID:        l.ID,
		BookID:    l.BookID,
		UserID:    l.UserID,
		LoanDate:  model.DateOf(l.LoanDate),
		DueDate:   model.DateOf(l.DueDate),
		Returned:  l.Returned,
		Fine:      l.Fine,
		CreatedAt: l.CreatedAt,
		UpdatedAt: l.UpdatedAt,
	}
	if l.ReturnDate != nil {
		row.ReturnDate = sql.NullTime{Time: model.DateOf(*l.ReturnDate), Valid: true}
	}
	return row
}

func (r loanRow) toModel() *model.Loan {
	l := &model.Loan{
		ID:        r.ID,
		BookID:    r.BookID,
		UserID:    r.UserID,
		LoanDate:  model.DateOf(r.LoanDate),
		DueDate:   model.DateOf(r.DueDate),
		Returned:  r.Returned,
		Fine:      r.Fine,
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
	if r.ReturnDate.Valid {
		d := model.DateOf(r.ReturnDate.Time)
		l.ReturnDate = &d
	}
	return l
}

// PostgresLoanRepo はPostgreSQLを使用した貸出リポジトリ。
type PostgresLoanRepo struct {
	db sqlx.ExtContext
}

// NewPostgresLoanRepo はPostgresLoanRepoを生成する。
func NewPostgresLoanRepo(db sqlx.ExtContext) *PostgresLoanRepo {
	return &PostgresLoanRepo{db: db}
}

// Create は貸出を作成する。
func (r *PostgresLoanRepo) Create(ctx context.Context, loan *model.Loan) error {
	_, err := sqlx.NamedExecContext(ctx, r.db,
		`INSERT INTO loans (id, book_id, user_id, loan_date, due_date, return_date, returned, fine,
			created_at, updated_at)
		 VALUES (:id, :book_id, :user_id, :loan_date, :due_date, :return_date, :returned, :fine,
			:created_at, :updated_at)`,
		newLoanRow(loan),
	)
	if err != nil {
		return fmt.Errorf("failed to insert loan: %w", err)
	}
	return nil
}

// FindByID は指定IDの貸出を取得する。見つからない場合はnilを返す。
func (r *PostgresLoanRepo) FindByID(ctx context.Context, id string) (*model.Loan, error) {
	return r.findOne(ctx, selectLoanSQL, id)
}

// FindByIDForUpdate は指定IDの貸出をSELECT ... FOR UPDATEで取得する。
func (r *PostgresLoanRepo) FindByIDForUpdate(ctx context.Context, id string) (*model.Loan, error) {
	return r.findOne(ctx, selectLoanSQL+` FOR UPDATE`, id)
}

func (r *PostgresLoanRepo) findOne(ctx context.Context, query, id string) (*model.Loan, error) {
	var row loanRow
	found, err := getOne(ctx, r.db, &row, query, id)
	if err != nil {
		return nil, fmt.Errorf("failed to find loan by ID: %w", err)
	}
	if !found {
		return nil, nil
	}
	return row.toModel(), nil
}

// List は全貸出を貸出日の新しい順で返す。
func (r *PostgresLoanRepo) List(ctx context.Context, page model.Page) ([]*model.Loan, error) {
	return r.list(ctx, nil, page)
}

// ListByUser は利用者の貸出履歴を返す。
func (r *PostgresLoanRepo) ListByUser(ctx context.Context, userID string, page model.Page) ([]*model.Loan, error) {
	return r.list(ctx, goqu.C("user_id").Eq(userID), page)
}

// ListByBook は書籍の貸出履歴を返す。
func (r *PostgresLoanRepo) ListByBook(ctx context.Context, bookID string, page model.Page) ([]*model.Loan, error) {
	return r.list(ctx, goqu.C("book_id").Eq(bookID), page)
}

// ListActive は未返却の貸出を返す。
func (r *PostgresLoanRepo) ListActive(ctx context.Context, page model.Page) ([]*model.Loan, error) {
	return r.list(ctx, goqu.C("returned").Eq(false), page)
}

// ListOverdue は未返却かつ返却期限がtodayより前の貸出を返却期限順で返す。
func (r *PostgresLoanRepo) ListOverdue(ctx context.Context, today time.Time, page model.Page) ([]*model.Loan, error) {
	ds := dialect.From(tableLoans).
		Select(columns(loanColumns...)...).
		Where(
			goqu.C("returned").Eq(false),
			goqu.C("due_date").Lt(model.DateOf(today)),
		).
		Order(goqu.I("due_date").Asc(), goqu.I("id").Asc())

	var rows []loanRow
	if err := selectDataset(ctx, r.db, &rows, paged(ds, page)); err != nil {
		return nil, fmt.Errorf("failed to list overdue loans: %w", err)
	}
	return loansFromRows(rows), nil
}

func (r *PostgresLoanRepo) list(ctx context.Context, where goqu.Expression, page model.Page) ([]*model.Loan, error) {
	ds := dialect.From(tableLoans).Select(columns(loanColumns...)...)
	if where != nil {
		ds = ds.Where(where)
	}
	ds = ds.Order(goqu.I("loan_date").Desc(), goqu.I("created_at").Desc(), goqu.I("id").Asc())

	var rows []loanRow
	if err := selectDataset(ctx, r.db, &rows, paged(ds, page)); err != nil {
		return nil, fmt.Errorf("failed to list loans: %w", err)
	}
	return loansFromRows(rows), nil
}

func loansFromRows(rows []loanRow) []*model.Loan {
	loans := make([]*model.Loan, 0, len(rows))
	for _, row := range rows {
		loans = append(loans, row.toModel())
	}
	return loans
}

// CountActiveByUser は利用者の未返却貸出数を返す。
func (r *PostgresLoanRepo) CountActiveByUser(ctx context.Context, userID string) (int, error) {
	var count int
	err := sqlx.GetContext(ctx, r.db, &count,
		`SELECT count(*) FROM loans WHERE user_id = $1 AND returned = FALSE`,
		userID,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to count active loans: %w", err)
	}
	return count, nil
}

// Update は貸出情報を上書き更新する。
func (r *PostgresLoanRepo) Update(ctx context.Context, loan *model.Loan) error {
	err := namedExecAffecting(ctx, r.db,
		`UPDATE loans SET return_date = :return_date, returned = :returned, fine = :fine,
			updated_at = :updated_at
		 WHERE id = :id`,
		newLoanRow(loan),
	)
	if err != nil {
		return fmt.Errorf("failed to update loan: %w", err)
	}
	return nil
}

// compile-time interface check
var _ LoanRepository = (*PostgresLoanRepo)(nil)
