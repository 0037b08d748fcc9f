// Package model はドメインモデルを定義する。
package model

import (
	"errors"
	"fmt"
)

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: not_found, validation, business_rule, system
	Action   string // 利用者向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// エラーカテゴリ
const (
	CategoryNotFound     = "not_found"
	CategoryValidation   = "validation"
	CategoryBusinessRule = "business_rule"
	CategorySystem       = "system"
)

// 定義済みエラーコード
const (
	ErrCodeBookNotFound        = "BOOK_NOT_FOUND"
	ErrCodeUserNotFound        = "USER_NOT_FOUND"
	ErrCodeLoanNotFound        = "LOAN_NOT_FOUND"
	ErrCodeAuthorNotFound      = "AUTHOR_NOT_FOUND"
	ErrCodeCategoryNotFound    = "CATEGORY_NOT_FOUND"
	ErrCodeValidationFailed    = "VALIDATION_FAILED"
	ErrCodeBookUnavailable     = "BOOK_UNAVAILABLE"
	ErrCodeLoanLimitExceeded   = "LOAN_LIMIT_EXCEEDED"
	ErrCodeAgeTooLow           = "AGE_TOO_LOW"
	ErrCodeLoanAlreadyReturned = "LOAN_ALREADY_RETURNED"
	ErrCodeInternal            = "INTERNAL_ERROR"
)

// EntityKind はエラーが参照するエンティティの種別。
type EntityKind string

const (
	EntityBook     EntityKind = "Book"
	EntityUser     EntityKind = "User"
	EntityLoan     EntityKind = "Loan"
	EntityAuthor   EntityKind = "Author"
	EntityCategory EntityKind = "Category"
)

var notFoundCodes = map[EntityKind]string{
	EntityBook:     ErrCodeBookNotFound,
	EntityUser:     ErrCodeUserNotFound,
	EntityLoan:     ErrCodeLoanNotFound,
	EntityAuthor:   ErrCodeAuthorNotFound,
	EntityCategory: ErrCodeCategoryNotFound,
}

// NotFoundError は参照されたエンティティが存在しないことを表す。
type NotFoundError struct {
	*APIError
	Entity EntityKind
	ID     string
}

// Unwrap は共通のAPIErrorを返す。
func (e *NotFoundError) Unwrap() error { return e.APIError }

// NewNotFoundError はエンティティ未検出エラーを生成する。
func NewNotFoundError(entity EntityKind, id string) *NotFoundError {
	code, ok := notFoundCodes[entity]
	if !ok {
		code = "NOT_FOUND"
	}
	return &NotFoundError{
		APIError: &APIError{
			Code:     code,
			Message:  fmt.Sprintf("%s が見つかりません: %s", entity, id),
			Category: CategoryNotFound,
			Action:   "IDを確認してください。",
		},
		Entity: entity,
		ID:     id,
	}
}

// NewLoanNotFoundError は貸出未検出エラーを生成する。
func NewLoanNotFoundError(loanID string) *NotFoundError {
	return NewNotFoundError(EntityLoan, loanID)
}

// ValidationError は入力値の検証失敗を表す。
type ValidationError struct {
	*APIError
	Field  string
	Reason string
}

// Unwrap は共通のAPIErrorを返す。
func (e *ValidationError) Unwrap() error { return e.APIError }

// NewValidationError は入力検証エラーを生成する。
func NewValidationError(field, reason string) *ValidationError {
	return &ValidationError{
		APIError: &APIError{
			Code:     ErrCodeValidationFailed,
			Message:  fmt.Sprintf("%s: %s", field, reason),
			Category: CategoryValidation,
			Action:   "入力内容を確認してください。",
		},
		Field:  field,
		Reason: reason,
	}
}

// BookUnavailableError は貸出可能な在庫がないことを表す。
type BookUnavailableError struct {
	*APIError
	BookID string
}

// Unwrap は共通のAPIErrorを返す。
func (e *BookUnavailableError) Unwrap() error { return e.APIError }

// NewBookUnavailableError は貸出不可エラーを生成する。
func NewBookUnavailableError(bookID string) *BookUnavailableError {
	return &BookUnavailableError{
		APIError: &APIError{
			Code:     ErrCodeBookUnavailable,
			Message:  fmt.Sprintf("書籍 %s は貸出可能な在庫がありません", bookID),
			Category: CategoryBusinessRule,
			Action:   "返却されるまでお待ちください。",
		},
		BookID: bookID,
	}
}

// LoanLimitExceededError は利用者の同時貸出上限超過を表す。
type LoanLimitExceededError struct {
	*APIError
	UserID string
	Max    int
}

// Unwrap は共通のAPIErrorを返す。
func (e *LoanLimitExceededError) Unwrap() error { return e.APIError }

// NewLoanLimitExceededError は貸出上限超過エラーを生成する。
func NewLoanLimitExceededError(userID string, maxActive int) *LoanLimitExceededError {
	return &LoanLimitExceededError{
		APIError: &APIError{
			Code:     ErrCodeLoanLimitExceeded,
			Message:  fmt.Sprintf("利用者 %s は同時貸出上限（%d冊）に達しています", userID, maxActive),
			Category: CategoryBusinessRule,
			Action:   "貸出中の書籍を返却してから再度お試しください。",
		},
		UserID: userID,
		Max:    maxActive,
	}
}

// AgeTooLowError は利用者が最低年齢に達していないことを表す。
type AgeTooLowError struct {
	*APIError
	Age     int
	Minimum int
}

// Unwrap は共通のAPIErrorを返す。
func (e *AgeTooLowError) Unwrap() error { return e.APIError }

// NewAgeTooLowError は年齢制限エラーを生成する。
func NewAgeTooLowError(age, minimum int) *AgeTooLowError {
	return &AgeTooLowError{
		APIError: &APIError{
			Code:     ErrCodeAgeTooLow,
			Message:  fmt.Sprintf("%d歳の利用者は最低年齢（%d歳）に達していません", age, minimum),
			Category: CategoryBusinessRule,
			Action:   "保護者の方にご相談ください。",
		},
		Age:     age,
		Minimum: minimum,
	}
}

// LoanAlreadyReturnedError は返却済みの貸出を再度返却しようとしたことを表す。
type LoanAlreadyReturnedError struct {
	*APIError
	LoanID string
}

// Unwrap は共通のAPIErrorを返す。
func (e *LoanAlreadyReturnedError) Unwrap() error { return e.APIError }

// NewLoanAlreadyReturnedError は返却済みエラーを生成する。
func NewLoanAlreadyReturnedError(loanID string) *LoanAlreadyReturnedError {
	return &LoanAlreadyReturnedError{
		APIError: &APIError{
			Code:     ErrCodeLoanAlreadyReturned,
			Message:  fmt.Sprintf("貸出 %s は既に返却されています", loanID),
			Category: CategoryBusinessRule,
			Action:   "貸出履歴を確認してください。",
		},
		LoanID: loanID,
	}
}

// NewInternalError は内部エラーの利用者向け表現を生成する。
// 詳細はログのみに記録する。
func NewInternalError() *APIError {
	return &APIError{
		Code:     ErrCodeInternal,
		Message:  "内部エラーが発生しました。",
		Category: CategorySystem,
		Action:   "しばらく待ってから再度お試しください。",
	}
}

// IsNotFound はerrが未検出エラーかどうかを返す。
func IsNotFound(err error) bool {
	return hasCategory(err, CategoryNotFound)
}

// IsValidation はerrが入力検証エラーかどうかを返す。
func IsValidation(err error) bool {
	return hasCategory(err, CategoryValidation)
}

// IsBusinessRuleViolation はerrが業務ルール違反かどうかを返す。
func IsBusinessRuleViolation(err error) bool {
	return hasCategory(err, CategoryBusinessRule)
}

func hasCategory(err error, category string) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Category == category
}
