package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// LoanStatus は貸出の状態。ACTIVE → RETURNED の一方向にのみ遷移する。
type LoanStatus string

const (
	// LoanStatusActive は貸出中。
	LoanStatusActive LoanStatus = "active"
	// LoanStatusReturned は返却済み（終端状態）。
	LoanStatusReturned LoanStatus = "returned"
)

// Loan は書籍と利用者を結ぶ貸出記録を表す。
// DueDate は作成時に確定し、以後再計算しない。
type Loan struct {
	ID         string
	BookID     string
	UserID     string
	LoanDate   time.Time
	DueDate    time.Time
	ReturnDate *time.Time
	Returned   bool
	Fine       decimal.Decimal
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// NewLoan はtodayを貸出日とする新しい貸出を生成する。
// 返却期限は貸出日からperiodDays日後。
func NewLoan(id, bookID, userID string, today time.Time, periodDays int) *Loan {
	loanDate := DateOf(today)
	return &Loan{
		ID:       id,
		BookID:   bookID,
		UserID:   userID,
		LoanDate: loanDate,
		DueDate:  loanDate.AddDate(0, 0, periodDays),
		Returned: false,
		Fine:     decimal.Zero,
	}
}

// Status は貸出の状態を返す。
func (l *Loan) Status() LoanStatus {
	if l.Returned {
		return LoanStatusReturned
	}
	return LoanStatusActive
}

// IsOverdue は未返却かつtodayが返却期限を過ぎているかを返す。
func (l *Loan) IsOverdue(today time.Time) bool {
	if l.Returned {
		return false
	}
	return DateOf(today).After(DateOf(l.DueDate))
}

// DaysOverdue は延滞日数を返す。延滞していない場合は0。
func (l *Loan) DaysOverdue(today time.Time) int {
	if !l.IsOverdue(today) {
		return 0
	}
	return DaysBetween(l.DueDate, today)
}

// CalculateFine はtoday時点の延滞金（延滞日数 × 日額）を返す。
func (l *Loan) CalculateFine(today time.Time, dailyRate decimal.Decimal) decimal.Decimal {
	days := l.DaysOverdue(today)
	if days == 0 {
		return decimal.Zero
	}
	return dailyRate.Mul(decimal.NewFromInt(int64(days))).Round(2)
}

// CurrentFine は返却済みなら確定済みの延滞金を、未返却ならtoday時点の延滞金を返す。
func (l *Loan) CurrentFine(today time.Time, dailyRate decimal.Decimal) decimal.Decimal {
	if l.Returned {
		return l.Fine
	}
	return l.CalculateFine(today, dailyRate)
}

// MarkReturned は貸出を返却済みにし、延滞金を確定する。
// 延滞判定は返却済みにする前に行う必要がある。
// 既に返却済みの場合はfalseを返し、何も変更しない。
func (l *Loan) MarkReturned(today time.Time, dailyRate decimal.Decimal) bool {
	if l.Returned {
		return false
	}
	l.Fine = l.CalculateFine(today, dailyRate)
	returnDate := DateOf(today)
	l.Returned = true
	l.ReturnDate = &returnDate
	return true
}
