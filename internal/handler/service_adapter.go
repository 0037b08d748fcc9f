package handler

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/hitoshi/libman/internal/author"
	"github.com/hitoshi/libman/internal/book"
	"github.com/hitoshi/libman/internal/category"
	"github.com/hitoshi/libman/internal/loan"
	"github.com/hitoshi/libman/internal/model"
	"github.com/hitoshi/libman/internal/user"
)

// mapAll はドメインモデルのスライスをレスポンス型に変換する。
func mapAll[M any, R any](items []*M, convert func(*M) R) []R {
	results := make([]R, len(items))
	for i, item := range items {
		results[i] = convert(item)
	}
	return results
}

// withResponse は単一のドメインモデルを返すサービス呼び出しの結果を変換する。
func withResponse[M any, R any](m *M, err error, convert func(*M) R) (*R, error) {
	if err != nil {
		return nil, err
	}
	resp := convert(m)
	return &resp, nil
}

// withResponses は一覧を返すサービス呼び出しの結果を変換する。
func withResponses[M any, R any](items []*M, err error, convert func(*M) R) ([]R, error) {
	if err != nil {
		return nil, err
	}
	return mapAll(items, convert), nil
}

// --- 書籍 ---

// BookServiceAdapter は book.Service を BookServiceInterface に適合させるアダプタ。
type BookServiceAdapter struct {
	svc *book.Service
}

// NewBookServiceAdapter はBookServiceAdapterを生成する。
func NewBookServiceAdapter(svc *book.Service) *BookServiceAdapter {
	return &BookServiceAdapter{svc: svc}
}

func (a *BookServiceAdapter) Create(ctx context.Context, in book.CreateInput) (*bookResponse, error) {
	b, err := a.svc.Create(ctx, in)
	return withResponse(b, err, toBookResponse)
}

func (a *BookServiceAdapter) Get(ctx context.Context, id string) (*bookResponse, error) {
	b, err := a.svc.Get(ctx, id)
	return withResponse(b, err, toBookResponse)
}

func (a *BookServiceAdapter) List(ctx context.Context, page model.Page) ([]bookResponse, error) {
	books, err := a.svc.List(ctx, page)
	return withResponses(books, err, toBookResponse)
}

func (a *BookServiceAdapter) Search(ctx context.Context, filter model.BookFilter, page model.Page) ([]bookResponse, error) {
	books, err := a.svc.Search(ctx, filter, page)
	return withResponses(books, err, toBookResponse)
}

func (a *BookServiceAdapter) ListAvailable(ctx context.Context, page model.Page) ([]bookResponse, error) {
	books, err := a.svc.ListAvailable(ctx, page)
	return withResponses(books, err, toBookResponse)
}

func (a *BookServiceAdapter) Update(ctx context.Context, id string, patch model.BookPatch) (*bookResponse, error) {
	b, err := a.svc.Update(ctx, id, patch)
	return withResponse(b, err, toBookResponse)
}

func (a *BookServiceAdapter) Delete(ctx context.Context, id string) error {
	return a.svc.Delete(ctx, id)
}

// toBookResponse はmodel.BookからAPIレスポンスに変換する。
func toBookResponse(b *model.Book) bookResponse {
	return bookResponse{
		ID:                b.ID,
		Title:             b.Title,
		Year:              b.Year,
		Publisher:         b.Publisher,
		Pages:             b.Pages,
		Synopsis:          b.Synopsis,
		Price:             b.Price,
		Available:         b.Available,
		IsAvailable:       b.IsAvailable(),
		TotalQuantity:     b.TotalQuantity,
		AvailableQuantity: b.AvailableQuantity,
		AuthorID:          b.AuthorID,
		CategoryID:        b.CategoryID,
		CreatedAt:         b.CreatedAt,
		UpdatedAt:         b.UpdatedAt,
	}
}

// --- 利用者 ---

// UserServiceAdapter は user.Service を UserServiceInterface に適合させるアダプタ。
type UserServiceAdapter struct {
	svc *user.Service
}

// NewUserServiceAdapter はUserServiceAdapterを生成する。
func NewUserServiceAdapter(svc *user.Service) *UserServiceAdapter {
	return &UserServiceAdapter{svc: svc}
}

func (a *UserServiceAdapter) Create(ctx context.Context, in user.CreateInput) (*userResponse, error) {
	u, err := a.svc.Create(ctx, in)
	return withResponse(u, err, toUserResponse)
}

func (a *UserServiceAdapter) Get(ctx context.Context, id string) (*userResponse, error) {
	u, err := a.svc.Get(ctx, id)
	return withResponse(u, err, toUserResponse)
}

func (a *UserServiceAdapter) List(ctx context.Context, page model.Page) ([]userResponse, error) {
	users, err := a.svc.List(ctx, page)
	return withResponses(users, err, toUserResponse)
}

func (a *UserServiceAdapter) Search(ctx context.Context, filter model.UserFilter, page model.Page) ([]userResponse, error) {
	users, err := a.svc.Search(ctx, filter, page)
	return withResponses(users, err, toUserResponse)
}

func (a *UserServiceAdapter) Update(ctx context.Context, id string, patch model.UserPatch) (*userResponse, error) {
	u, err := a.svc.Update(ctx, id, patch)
	return withResponse(u, err, toUserResponse)
}

func (a *UserServiceAdapter) Delete(ctx context.Context, id string) error {
	return a.svc.Delete(ctx, id)
}

func toUserResponse(u *model.User) userResponse {
	return userResponse{
		ID:        u.ID,
		Name:      u.Name,
		Email:     u.Email,
		BirthDate: formatDate(u.BirthDate),
		Active:    u.Active,
		CreatedAt: u.CreatedAt,
		UpdatedAt: u.UpdatedAt,
	}
}

// --- 著者 ---

// AuthorServiceAdapter は author.Service を AuthorServiceInterface に適合させるアダプタ。
type AuthorServiceAdapter struct {
	svc *author.Service
}

// NewAuthorServiceAdapter はAuthorServiceAdapterを生成する。
func NewAuthorServiceAdapter(svc *author.Service) *AuthorServiceAdapter {
	return &AuthorServiceAdapter{svc: svc}
}

func (a *AuthorServiceAdapter) Create(ctx context.Context, in author.CreateInput) (*authorResponse, error) {
	au, err := a.svc.Create(ctx, in)
	return withResponse(au, err, toAuthorResponse)
}

func (a *AuthorServiceAdapter) Get(ctx context.Context, id string) (*authorResponse, error) {
	au, err := a.svc.Get(ctx, id)
	return withResponse(au, err, toAuthorResponse)
}

func (a *AuthorServiceAdapter) List(ctx context.Context, page model.Page) ([]authorResponse, error) {
	authors, err := a.svc.List(ctx, page)
	return withResponses(authors, err, toAuthorResponse)
}

func (a *AuthorServiceAdapter) SearchByName(ctx context.Context, name string, page model.Page) ([]authorResponse, error) {
	authors, err := a.svc.SearchByName(ctx, name, page)
	return withResponses(authors, err, toAuthorResponse)
}

func (a *AuthorServiceAdapter) Update(ctx context.Context, id string, patch model.AuthorPatch) (*authorResponse, error) {
	au, err := a.svc.Update(ctx, id, patch)
	return withResponse(au, err, toAuthorResponse)
}

func (a *AuthorServiceAdapter) Delete(ctx context.Context, id string) error {
	return a.svc.Delete(ctx, id)
}

func toAuthorResponse(au *model.Author) authorResponse {
	return authorResponse{
		ID:          au.ID,
		Name:        au.Name,
		Nationality: au.Nationality,
		BirthDate:   formatOptionalDate(au.BirthDate),
		Biography:   au.Biography,
	}
}

// --- 分類 ---

// CategoryServiceAdapter は category.Service を CategoryServiceInterface に適合させるアダプタ。
type CategoryServiceAdapter struct {
	svc *category.Service
}

// NewCategoryServiceAdapter はCategoryServiceAdapterを生成する。
func NewCategoryServiceAdapter(svc *category.Service) *CategoryServiceAdapter {
	return &CategoryServiceAdapter{svc: svc}
}

func (a *CategoryServiceAdapter) Create(ctx context.Context, name, description string) (*categoryResponse, error) {
	c, err := a.svc.Create(ctx, name, description)
	return withResponse(c, err, toCategoryResponse)
}

func (a *CategoryServiceAdapter) Get(ctx context.Context, id string) (*categoryResponse, error) {
	c, err := a.svc.Get(ctx, id)
	return withResponse(c, err, toCategoryResponse)
}

func (a *CategoryServiceAdapter) GetByName(ctx context.Context, name string) (*categoryResponse, error) {
	c, err := a.svc.GetByName(ctx, name)
	return withResponse(c, err, toCategoryResponse)
}

func (a *CategoryServiceAdapter) List(ctx context.Context, page model.Page) ([]categoryResponse, error) {
	categories, err := a.svc.List(ctx, page)
	return withResponses(categories, err, toCategoryResponse)
}

func (a *CategoryServiceAdapter) Update(ctx context.Context, id string, patch model.CategoryPatch) (*categoryResponse, error) {
	c, err := a.svc.Update(ctx, id, patch)
	return withResponse(c, err, toCategoryResponse)
}

func (a *CategoryServiceAdapter) Delete(ctx context.Context, id string) error {
	return a.svc.Delete(ctx, id)
}

func toCategoryResponse(c *model.Category) categoryResponse {
	return categoryResponse{ID: c.ID, Name: c.Name, Description: c.Description}
}

// --- 貸出 ---

// LoanServiceAdapter は loan.Service を LoanServiceInterface に適合させるアダプタ。
type LoanServiceAdapter struct {
	svc *loan.Service
}

// NewLoanServiceAdapter はLoanServiceAdapterを生成する。
func NewLoanServiceAdapter(svc *loan.Service) *LoanServiceAdapter {
	return &LoanServiceAdapter{svc: svc}
}

func (a *LoanServiceAdapter) CreateLoan(ctx context.Context, bookID, userID string) (*loanResponse, error) {
	l, err := a.svc.CreateLoan(ctx, bookID, userID)
	return withResponse(l, err, toLoanResponse)
}

func (a *LoanServiceAdapter) ReturnLoan(ctx context.Context, loanID string) (*loanResponse, error) {
	l, err := a.svc.ReturnLoan(ctx, loanID)
	return withResponse(l, err, toLoanResponse)
}

func (a *LoanServiceAdapter) ComputeFine(ctx context.Context, loanID string) (decimal.Decimal, error) {
	return a.svc.ComputeFine(ctx, loanID)
}

func (a *LoanServiceAdapter) GetLoan(ctx context.Context, loanID string) (*loanResponse, error) {
	l, err := a.svc.GetLoan(ctx, loanID)
	return withResponse(l, err, toLoanResponse)
}

func (a *LoanServiceAdapter) ListLoans(ctx context.Context, page model.Page) ([]loanResponse, error) {
	loans, err := a.svc.ListLoans(ctx, page)
	return withResponses(loans, err, toLoanResponse)
}

func (a *LoanServiceAdapter) ListByUser(ctx context.Context, userID string, page model.Page) ([]loanResponse, error) {
	loans, err := a.svc.ListByUser(ctx, userID, page)
	return withResponses(loans, err, toLoanResponse)
}

func (a *LoanServiceAdapter) ListByBook(ctx context.Context, bookID string, page model.Page) ([]loanResponse, error) {
	loans, err := a.svc.ListByBook(ctx, bookID, page)
	return withResponses(loans, err, toLoanResponse)
}

func (a *LoanServiceAdapter) ListActive(ctx context.Context, page model.Page) ([]loanResponse, error) {
	loans, err := a.svc.ListActive(ctx, page)
	return withResponses(loans, err, toLoanResponse)
}

func (a *LoanServiceAdapter) ListOverdue(ctx context.Context, page model.Page) ([]loanResponse, error) {
	loans, err := a.svc.ListOverdue(ctx, page)
	return withResponses(loans, err, toLoanResponse)
}

// toLoanResponse はmodel.LoanからAPIレスポンスに変換する。
func toLoanResponse(l *model.Loan) loanResponse {
	return loanResponse{
		ID:         l.ID,
		BookID:     l.BookID,
		UserID:     l.UserID,
		LoanDate:   formatDate(l.LoanDate),
		DueDate:    formatDate(l.DueDate),
		ReturnDate: formatOptionalDate(l.ReturnDate),
		Returned:   l.Returned,
		Status:     string(l.Status()),
		Fine:       l.Fine,
	}
}

var (
	_ BookServiceInterface     = (*BookServiceAdapter)(nil)
	_ UserServiceInterface     = (*UserServiceAdapter)(nil)
	_ AuthorServiceInterface   = (*AuthorServiceAdapter)(nil)
	_ CategoryServiceInterface = (*CategoryServiceAdapter)(nil)
	_ LoanServiceInterface     = (*LoanServiceAdapter)(nil)
)
