package handler

import (
	"context"
	"io"
	"log/slog"
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/hitoshi/libman/internal/author"
	"github.com/hitoshi/libman/internal/book"
	"github.com/hitoshi/libman/internal/model"
	"github.com/hitoshi/libman/internal/user"
)

// --- モック定義 ---

func discardLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

var testPages = PageConfig{DefaultLimit: 100, MaxLimit: 500}

// mockBookService はBookServiceInterfaceのモック実装。
type mockBookService struct {
	createFn        func(ctx context.Context, in book.CreateInput) (*bookResponse, error)
	getFn           func(ctx context.Context, id string) (*bookResponse, error)
	listFn          func(ctx context.Context, page model.Page) ([]bookResponse, error)
	searchFn        func(ctx context.Context, filter model.BookFilter, page model.Page) ([]bookResponse, error)
	listAvailableFn func(ctx context.Context, page model.Page) ([]bookResponse, error)
	updateFn        func(ctx context.Context, id string, patch model.BookPatch) (*bookResponse, error)
	deleteFn        func(ctx context.Context, id string) error
}

func (m *mockBookService) Create(ctx context.Context, in book.CreateInput) (*bookResponse, error) {
	if m.createFn != nil {
		return m.createFn(ctx, in)
	}
	return &bookResponse{}, nil
}

func (m *mockBookService) Get(ctx context.Context, id string) (*bookResponse, error) {
	if m.getFn != nil {
		return m.getFn(ctx, id)
	}
	return &bookResponse{ID: id}, nil
}

func (m *mockBookService) List(ctx context.Context, page model.Page) ([]bookResponse, error) {
	if m.listFn != nil {
		return m.listFn(ctx, page)
	}
	return nil, nil
}

func (m *mockBookService) Search(ctx context.Context, filter model.BookFilter, page model.Page) ([]bookResponse, error) {
	if m.searchFn != nil {
		return m.searchFn(ctx, filter, page)
	}
	return nil, nil
}

func (m *mockBookService) ListAvailable(ctx context.Context, page model.Page) ([]bookResponse, error) {
	if m.listAvailableFn != nil {
		return m.listAvailableFn(ctx, page)
	}
	return nil, nil
}

func (m *mockBookService) Update(ctx context.Context, id string, patch model.BookPatch) (*bookResponse, error) {
	if m.updateFn != nil {
		return m.updateFn(ctx, id, patch)
	}
	return &bookResponse{ID: id}, nil
}

func (m *mockBookService) Delete(ctx context.Context, id string) error {
	if m.deleteFn != nil {
		return m.deleteFn(ctx, id)
	}
	return nil
}

// mockUserService はUserServiceInterfaceのモック実装。
type mockUserService struct {
	createFn func(ctx context.Context, in user.CreateInput) (*userResponse, error)
	getFn    func(ctx context.Context, id string) (*userResponse, error)
	searchFn func(ctx context.Context, filter model.UserFilter, page model.Page) ([]userResponse, error)
	updateFn func(ctx context.Context, id string, patch model.UserPatch) (*userResponse, error)
	deleteFn func(ctx context.Context, id string) error
}

func (m *mockUserService) Create(ctx context.Context, in user.CreateInput) (*userResponse, error) {
	if m.createFn != nil {
		return m.createFn(ctx, in)
	}
	return &userResponse{}, nil
}

func (m *mockUserService) Get(ctx context.Context, id string) (*userResponse, error) {
	if m.getFn != nil {
		return m.getFn(ctx, id)
	}
	return &userResponse{ID: id}, nil
}

func (m *mockUserService) List(ctx context.Context, page model.Page) ([]userResponse, error) {
	return nil, nil
}

func (m *mockUserService) Search(ctx context.Context, filter model.UserFilter, page model.Page) ([]userResponse, error) {
	if m.searchFn != nil {
		return m.searchFn(ctx, filter, page)
	}
	return nil, nil
}

func (m *mockUserService) Update(ctx context.Context, id string, patch model.UserPatch) (*userResponse, error) {
	if m.updateFn != nil {
		return m.updateFn(ctx, id, patch)
	}
	return &userResponse{ID: id}, nil
}

func (m *mockUserService) Delete(ctx context.Context, id string) error {
	if m.deleteFn != nil {
		return m.deleteFn(ctx, id)
	}
	return nil
}

// mockAuthorService はAuthorServiceInterfaceのモック実装。
type mockAuthorService struct {
	createFn func(ctx context.Context, in author.CreateInput) (*authorResponse, error)
	updateFn func(ctx context.Context, id string, patch model.AuthorPatch) (*authorResponse, error)
}

func (m *mockAuthorService) Create(ctx context.Context, in author.CreateInput) (*authorResponse, error) {
	if m.createFn != nil {
		return m.createFn(ctx, in)
	}
	return &authorResponse{}, nil
}

func (m *mockAuthorService) Get(ctx context.Context, id string) (*authorResponse, error) {
	return &authorResponse{ID: id}, nil
}

func (m *mockAuthorService) List(ctx context.Context, page model.Page) ([]authorResponse, error) {
	return nil, nil
}

func (m *mockAuthorService) SearchByName(ctx context.Context, name string, page model.Page) ([]authorResponse, error) {
	return nil, nil
}

func (m *mockAuthorService) Update(ctx context.Context, id string, patch model.AuthorPatch) (*authorResponse, error) {
	if m.updateFn != nil {
		return m.updateFn(ctx, id, patch)
	}
	return &authorResponse{ID: id}, nil
}

func (m *mockAuthorService) Delete(ctx context.Context, id string) error {
	return nil
}

// mockCategoryService はCategoryServiceInterfaceのモック実装。
type mockCategoryService struct {
	getByNameFn func(ctx context.Context, name string) (*categoryResponse, error)
}

func (m *mockCategoryService) Create(ctx context.Context, name, description string) (*categoryResponse, error) {
	return &categoryResponse{Name: name, Description: description}, nil
}

func (m *mockCategoryService) Get(ctx context.Context, id string) (*categoryResponse, error) {
	return &categoryResponse{ID: id}, nil
}

func (m *mockCategoryService) GetByName(ctx context.Context, name string) (*categoryResponse, error) {
	if m.getByNameFn != nil {
		return m.getByNameFn(ctx, name)
	}
	return &categoryResponse{Name: name}, nil
}

func (m *mockCategoryService) List(ctx context.Context, page model.Page) ([]categoryResponse, error) {
	return nil, nil
}

func (m *mockCategoryService) Update(ctx context.Context, id string, patch model.CategoryPatch) (*categoryResponse, error) {
	return &categoryResponse{ID: id}, nil
}

func (m *mockCategoryService) Delete(ctx context.Context, id string) error {
	return nil
}

// mockLoanService はLoanServiceInterfaceのモック実装。
type mockLoanService struct {
	createLoanFn  func(ctx context.Context, bookID, userID string) (*loanResponse, error)
	returnLoanFn  func(ctx context.Context, loanID string) (*loanResponse, error)
	computeFineFn func(ctx context.Context, loanID string) (decimal.Decimal, error)
	getLoanFn     func(ctx context.Context, loanID string) (*loanResponse, error)
	listLoansFn   func(ctx context.Context, page model.Page) ([]loanResponse, error)
	listByUserFn  func(ctx context.Context, userID string, page model.Page) ([]loanResponse, error)
	listByBookFn  func(ctx context.Context, bookID string, page model.Page) ([]loanResponse, error)
	listActiveFn  func(ctx context.Context, page model.Page) ([]loanResponse, error)
	listOverdueFn func(ctx context.Context, page model.Page) ([]loanResponse, error)
}

func (m *mockLoanService) CreateLoan(ctx context.Context, bookID, userID string) (*loanResponse, error) {
	if m.createLoanFn != nil {
		return m.createLoanFn(ctx, bookID, userID)
	}
	return &loanResponse{BookID: bookID, UserID: userID}, nil
}

func (m *mockLoanService) ReturnLoan(ctx context.Context, loanID string) (*loanResponse, error) {
	if m.returnLoanFn != nil {
		return m.returnLoanFn(ctx, loanID)
	}
	return &loanResponse{ID: loanID, Returned: true}, nil
}

func (m *mockLoanService) ComputeFine(ctx context.Context, loanID string) (decimal.Decimal, error) {
	if m.computeFineFn != nil {
		return m.computeFineFn(ctx, loanID)
	}
	return decimal.Zero, nil
}

func (m *mockLoanService) GetLoan(ctx context.Context, loanID string) (*loanResponse, error) {
	if m.getLoanFn != nil {
		return m.getLoanFn(ctx, loanID)
	}
	return &loanResponse{ID: loanID}, nil
}

func (m *mockLoanService) ListLoans(ctx context.Context, page model.Page) ([]loanResponse, error) {
	if m.listLoansFn != nil {
		return m.listLoansFn(ctx, page)
	}
	return nil, nil
}

func (m *mockLoanService) ListByUser(ctx context.Context, userID string, page model.Page) ([]loanResponse, error) {
	if m.listByUserFn != nil {
		return m.listByUserFn(ctx, userID, page)
	}
	return nil, nil
}

func (m *mockLoanService) ListByBook(ctx context.Context, bookID string, page model.Page) ([]loanResponse, error) {
	if m.listByBookFn != nil {
		return m.listByBookFn(ctx, bookID, page)
	}
	return nil, nil
}

func (m *mockLoanService) ListActive(ctx context.Context, page model.Page) ([]loanResponse, error) {
	if m.listActiveFn != nil {
		return m.listActiveFn(ctx, page)
	}
	return nil, nil
}

func (m *mockLoanService) ListOverdue(ctx context.Context, page model.Page) ([]loanResponse, error) {
	if m.listOverdueFn != nil {
		return m.listOverdueFn(ctx, page)
	}
	return nil, nil
}

// mockHealthChecker はHealthCheckerのモック実装。
type mockHealthChecker struct {
	err error
}

func (m *mockHealthChecker) Ping(ctx context.Context) error {
	return m.err
}

// newTestRouter はモックサービスで構成したルーターを返す。
func newTestRouter(loans *mockLoanService, books *mockBookService) http.Handler {
	if loans == nil {
		loans = &mockLoanService{}
	}
	if books == nil {
		books = &mockBookService{}
	}
	return NewRouter(&RouterDeps{
		Logger:            discardLogger(),
		CORSAllowedOrigin: "http://localhost:3000",
		HealthChecker:     &mockHealthChecker{},
		Pages:             testPages,
		BookService:       books,
		UserService:       &mockUserService{},
		AuthorService:     &mockAuthorService{},
		CategoryService:   &mockCategoryService{},
		LoanService:       loans,
	})
}
