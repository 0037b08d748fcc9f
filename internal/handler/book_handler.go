package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/hitoshi/libman/internal/book"
	"github.com/hitoshi/libman/internal/model"
)

// BookServiceInterface は書籍ハンドラーが必要とするサービスインターフェース。
type BookServiceInterface interface {
	Create(ctx context.Context, in book.CreateInput) (*bookResponse, error)
	Get(ctx context.Context, id string) (*bookResponse, error)
	List(ctx context.Context, page model.Page) ([]bookResponse, error)
	// Search は条件に一致する書籍を返す。
	Search(ctx context.Context, filter model.BookFilter, page model.Page) ([]bookResponse, error)
	// ListAvailable は貸出可能な書籍のみを返す。
	ListAvailable(ctx context.Context, page model.Page) ([]bookResponse, error)
	Update(ctx context.Context, id string, patch model.BookPatch) (*bookResponse, error)
	Delete(ctx context.Context, id string) error
}

// PageConfig は一覧APIのページサイズ設定。
type PageConfig struct {
	DefaultLimit int
	MaxLimit     int
}

// BookHandler は書籍管理のHTTPハンドラー。
type BookHandler struct {
	service BookServiceInterface
	errs    errorResponder
	pager   pager
}

// NewBookHandler はBookHandlerを生成する。
func NewBookHandler(service BookServiceInterface, logger *slog.Logger, pages PageConfig) *BookHandler {
	return &BookHandler{
		service: service,
		errs:    errorResponder{logger: logger},
		pager:   newPager(pages.DefaultLimit, pages.MaxLimit),
	}
}

// createBookRequest は書籍登録リクエストのボディ。
type createBookRequest struct {
	Title             string           `json:"title"`
	Year              *int             `json:"year"`
	Publisher         string           `json:"publisher"`
	Pages             *int             `json:"pages"`
	Synopsis          string           `json:"synopsis"`
	Price             *decimal.Decimal `json:"price"`
	TotalQuantity     *int             `json:"total_quantity"`
	AvailableQuantity *int             `json:"available_quantity"`
	AuthorID          string           `json:"author_id"`
	CategoryID        *string          `json:"category_id"`
}

// updateBookRequest は書籍更新リクエストのボディ。指定された項目のみ更新する。
type updateBookRequest struct {
	Title             *string          `json:"title"`
	Year              *int             `json:"year"`
	Publisher         *string          `json:"publisher"`
	Pages             *int             `json:"pages"`
	Synopsis          *string          `json:"synopsis"`
	Price             *decimal.Decimal `json:"price"`
	Available         *bool            `json:"available"`
	TotalQuantity     *int             `json:"total_quantity"`
	AvailableQuantity *int             `json:"available_quantity"`
	AuthorID          *string          `json:"author_id"`
	CategoryID        *string          `json:"category_id"`
	// ClearCategory がtrueの場合は分類を外す。
	ClearCategory bool `json:"clear_category"`
}

// bookResponse は書籍情報のAPIレスポンス。
type bookResponse struct {
	ID                string           `json:"id"`
	Title             string           `json:"title"`
	Year              *int             `json:"year,omitempty"`
	Publisher         string           `json:"publisher"`
	Pages             *int             `json:"pages,omitempty"`
	Synopsis          string           `json:"synopsis"`
	Price             *decimal.Decimal `json:"price,omitempty"`
	Available         bool             `json:"available"`
	IsAvailable       bool             `json:"is_available"`
	TotalQuantity     int              `json:"total_quantity"`
	AvailableQuantity int              `json:"available_quantity"`
	AuthorID          string           `json:"author_id"`
	CategoryID        *string          `json:"category_id,omitempty"`
	CreatedAt         time.Time        `json:"created_at"`
	UpdatedAt         time.Time        `json:"updated_at"`
}

// CreateBook は書籍登録を処理する。
// POST /api/books
func (h *BookHandler) CreateBook(w http.ResponseWriter, r *http.Request) {
	var req createBookRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	resp, err := h.service.Create(r.Context(), book.CreateInput{
		Title:             req.Title,
		Year:              req.Year,
		Publisher:         req.Publisher,
		Pages:             req.Pages,
		Synopsis:          req.Synopsis,
		Price:             req.Price,
		TotalQuantity:     req.TotalQuantity,
		AvailableQuantity: req.AvailableQuantity,
		AuthorID:          req.AuthorID,
		CategoryID:        req.CategoryID,
	})
	if err != nil {
		h.errs.handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, resp)
}

// GetBook は書籍を取得する。
// GET /api/books/{id}
func (h *BookHandler) GetBook(w http.ResponseWriter, r *http.Request) {
	resp, err := h.service.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.errs.handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// ListBooks は書籍一覧を返す。
// GET /api/books?offset=&limit=
func (h *BookHandler) ListBooks(w http.ResponseWriter, r *http.Request) {
	page, err := h.pager.parse(r)
	if err != nil {
		h.errs.handleServiceError(w, r, err)
		return
	}

	books, err := h.service.List(r.Context(), page)
	if err != nil {
		h.errs.handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newListResponse(books, page))
}

// SearchBooks は条件を指定して書籍を検索する。
// GET /api/books/search?title=&author_id=&category_id=&available=&year_from=&year_to=&sort_by=&order=
func (h *BookHandler) SearchBooks(w http.ResponseWriter, r *http.Request) {
	page, err := h.pager.parse(r)
	if err != nil {
		h.errs.handleServiceError(w, r, err)
		return
	}
	filter, err := parseBookFilter(r)
	if err != nil {
		h.errs.handleServiceError(w, r, err)
		return
	}

	books, err := h.service.Search(r.Context(), filter, page)
	if err != nil {
		h.errs.handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newListResponse(books, page))
}

// ListAvailableBooks は貸出可能な書籍一覧を返す。
// GET /api/books/available
func (h *BookHandler) ListAvailableBooks(w http.ResponseWriter, r *http.Request) {
	page, err := h.pager.parse(r)
	if err != nil {
		h.errs.handleServiceError(w, r, err)
		return
	}

	books, err := h.service.ListAvailable(r.Context(), page)
	if err != nil {
		h.errs.handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newListResponse(books, page))
}

// UpdateBook は書籍情報を部分更新する。
// PUT /api/books/{id}
func (h *BookHandler) UpdateBook(w http.ResponseWriter, r *http.Request) {
	var req updateBookRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	resp, err := h.service.Update(r.Context(), chi.URLParam(r, "id"), model.BookPatch{
		Title:             req.Title,
		Year:              req.Year,
		Publisher:         req.Publisher,
		Pages:             req.Pages,
		Synopsis:          req.Synopsis,
		Price:             req.Price,
		Available:         req.Available,
		TotalQuantity:     req.TotalQuantity,
		AvailableQuantity: req.AvailableQuantity,
		AuthorID:          req.AuthorID,
		CategoryID:        req.CategoryID,
		ClearCategory:     req.ClearCategory,
	})
	if err != nil {
		h.errs.handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// DeleteBook は書籍を削除する。
// DELETE /api/books/{id}
func (h *BookHandler) DeleteBook(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.errs.handleServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// parseBookFilter はクエリパラメータから検索条件を組み立てる。
// sort_byの値の検証はサービス層で行う。
func parseBookFilter(r *http.Request) (model.BookFilter, error) {
	q := r.URL.Query()
	filter := model.BookFilter{
		TitleContains: q.Get("title"),
		AuthorID:      q.Get("author_id"),
		CategoryID:    q.Get("category_id"),
		SortBy:        model.BookSortField(q.Get("sort_by")),
	}

	available, err := queryBool(r, "available")
	if err != nil {
		return model.BookFilter{}, err
	}
	if available != nil {
		filter.AvailableOnly = *available
	}

	if filter.YearFrom, err = queryInt(r, "year_from"); err != nil {
		return model.BookFilter{}, err
	}
	if filter.YearTo, err = queryInt(r, "year_to"); err != nil {
		return model.BookFilter{}, err
	}

	switch q.Get("order") {
	case "", "asc":
	case "desc":
		filter.Descending = true
	default:
		return model.BookFilter{}, model.NewValidationError("order", "asc または desc で指定してください")
	}

	return filter, nil
}
