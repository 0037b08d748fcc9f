package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/hitoshi/libman/internal/model"
)

// LoanServiceInterface は貸出ハンドラーが必要とするサービスインターフェース。
type LoanServiceInterface interface {
	// CreateLoan は書籍を利用者に貸し出す。
	CreateLoan(ctx context.Context, bookID, userID string) (*loanResponse, error)
	// ReturnLoan は貸出を返却し、延滞料を確定する。
	ReturnLoan(ctx context.Context, loanID string) (*loanResponse, error)
	// ComputeFine は現時点の延滞料を返す。返却済みの場合は確定額を返す。
	ComputeFine(ctx context.Context, loanID string) (decimal.Decimal, error)
	GetLoan(ctx context.Context, loanID string) (*loanResponse, error)
	ListLoans(ctx context.Context, page model.Page) ([]loanResponse, error)
	ListByUser(ctx context.Context, userID string, page model.Page) ([]loanResponse, error)
	ListByBook(ctx context.Context, bookID string, page model.Page) ([]loanResponse, error)
	ListActive(ctx context.Context, page model.Page) ([]loanResponse, error)
	ListOverdue(ctx context.Context, page model.Page) ([]loanResponse, error)
}

// LoanHandler は貸出管理のHTTPハンドラー。
type LoanHandler struct {
	service LoanServiceInterface
	errs    errorResponder
	pager   pager
}

// NewLoanHandler はLoanHandlerを生成する。
func NewLoanHandler(service LoanServiceInterface, logger *slog.Logger, pages PageConfig) *LoanHandler {
	return &LoanHandler{
		service: service,
		errs:    errorResponder{logger: logger},
		pager:   newPager(pages.DefaultLimit, pages.MaxLimit),
	}
}

// createLoanRequest は貸出作成リクエストのボディ。
type createLoanRequest struct {
	BookID string `json:"book_id"`
	UserID string `json:"user_id"`
}

// loanResponse は貸出情報のAPIレスポンス。
type loanResponse struct {
	ID         string          `json:"id"`
	BookID     string          `json:"book_id"`
	UserID     string          `json:"user_id"`
	LoanDate   string          `json:"loan_date"`
	DueDate    string          `json:"due_date"`
	ReturnDate *string         `json:"return_date"`
	Returned   bool            `json:"returned"`
	Status     string          `json:"status"`
	Fine       decimal.Decimal `json:"fine"`
}

// fineResponse は延滞料照会のAPIレスポンス。
type fineResponse struct {
	LoanID string          `json:"loan_id"`
	Fine   decimal.Decimal `json:"fine"`
}

// CreateLoan は貸出を作成する。
// POST /api/loans
func (h *LoanHandler) CreateLoan(w http.ResponseWriter, r *http.Request) {
	var req createLoanRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.BookID == "" {
		h.errs.handleServiceError(w, r, model.NewValidationError("book_id", "必須項目です"))
		return
	}
	if req.UserID == "" {
		h.errs.handleServiceError(w, r, model.NewValidationError("user_id", "必須項目です"))
		return
	}

	resp, err := h.service.CreateLoan(r.Context(), req.BookID, req.UserID)
	if err != nil {
		h.errs.handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, resp)
}

// ReturnLoan は貸出を返却する。
// POST /api/loans/{id}/return
func (h *LoanHandler) ReturnLoan(w http.ResponseWriter, r *http.Request) {
	resp, err := h.service.ReturnLoan(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.errs.handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// GetFine は貸出の延滞料を返す。
// GET /api/loans/{id}/fine
func (h *LoanHandler) GetFine(w http.ResponseWriter, r *http.Request) {
	loanID := chi.URLParam(r, "id")
	fine, err := h.service.ComputeFine(r.Context(), loanID)
	if err != nil {
		h.errs.handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, fineResponse{LoanID: loanID, Fine: fine})
}

// GetLoan は貸出を取得する。
// GET /api/loans/{id}
func (h *LoanHandler) GetLoan(w http.ResponseWriter, r *http.Request) {
	resp, err := h.service.GetLoan(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.errs.handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// ListLoans は全貸出を返す。
// GET /api/loans
func (h *LoanHandler) ListLoans(w http.ResponseWriter, r *http.Request) {
	h.list(w, r, h.service.ListLoans)
}

// ListActiveLoans は未返却の貸出を返す。
// GET /api/loans/active
func (h *LoanHandler) ListActiveLoans(w http.ResponseWriter, r *http.Request) {
	h.list(w, r, h.service.ListActive)
}

// ListOverdueLoans は延滞中の貸出を返す。
// GET /api/loans/overdue
func (h *LoanHandler) ListOverdueLoans(w http.ResponseWriter, r *http.Request) {
	h.list(w, r, h.service.ListOverdue)
}

// ListUserLoans は利用者の貸出履歴を返す。
// GET /api/users/{id}/loans
func (h *LoanHandler) ListUserLoans(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "id")
	h.list(w, r, func(ctx context.Context, page model.Page) ([]loanResponse, error) {
		return h.service.ListByUser(ctx, userID, page)
	})
}

// ListBookLoans は書籍の貸出履歴を返す。
// GET /api/books/{id}/loans
func (h *LoanHandler) ListBookLoans(w http.ResponseWriter, r *http.Request) {
	bookID := chi.URLParam(r, "id")
	h.list(w, r, func(ctx context.Context, page model.Page) ([]loanResponse, error) {
		return h.service.ListByBook(ctx, bookID, page)
	})
}

func (h *LoanHandler) list(w http.ResponseWriter, r *http.Request, fetch func(context.Context, model.Page) ([]loanResponse, error)) {
	page, err := h.pager.parse(r)
	if err != nil {
		h.errs.handleServiceError(w, r, err)
		return
	}
	loans, err := fetch(r.Context(), page)
	if err != nil {
		h.errs.handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newListResponse(loans, page))
}
