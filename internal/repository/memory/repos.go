package memory

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/hitoshi/libman/internal/model"
	"github.com/hitoshi/libman/internal/repository"
)

// paginate はoffset/limitを適用した部分スライスを返す。limitが0以下の場合は上限なし。
func paginate[T any](items []T, page model.Page) []T {
	if page.Offset >= len(items) {
		return []T{}
	}
	if page.Offset > 0 {
		items = items[page.Offset:]
	}
	if page.Limit > 0 && page.Limit < len(items) {
		items = items[:page.Limit]
	}
	return items
}

func containsFold(s, sub string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(sub))
}

type bookRepo struct{ access accessor }

func (r *bookRepo) Create(ctx context.Context, book *model.Book) error {
	return r.access(func(st *state) error {
		if _, ok := st.books[book.ID]; ok {
			return fmt.Errorf("failed to insert book: %w", ErrDuplicate)
		}
		st.books[book.ID] = *book
		return nil
	})
}

func (r *bookRepo) FindByID(ctx context.Context, id string) (*model.Book, error) {
	var found *model.Book
	err := r.access(func(st *state) error {
		if b, ok := st.books[id]; ok {
			found = &b
		}
		return nil
	})
	return found, err
}

// FindByIDForUpdate はトランザクション自体が直列化されているためFindByIDと同じ。
func (r *bookRepo) FindByIDForUpdate(ctx context.Context, id string) (*model.Book, error) {
	return r.FindByID(ctx, id)
}

func (r *bookRepo) List(ctx context.Context, page model.Page) ([]*model.Book, error) {
	return r.Search(ctx, model.BookFilter{}, page)
}

func (r *bookRepo) Search(ctx context.Context, filter model.BookFilter, page model.Page) ([]*model.Book, error) {
	var result []*model.Book
	err := r.access(func(st *state) error {
		for _, b := range st.books {
			if matchBook(b, filter) {
				book := b
				result = append(result, &book)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	slices.SortFunc(result, bookComparator(filter))
	return paginate(result, page), nil
}

func matchBook(b model.Book, f model.BookFilter) bool {
	if f.TitleContains != "" && !containsFold(b.Title, f.TitleContains) {
		return false
	}
	if f.AuthorID != "" && b.AuthorID != f.AuthorID {
		return false
	}
	if f.CategoryID != "" && (b.CategoryID == nil || *b.CategoryID != f.CategoryID) {
		return false
	}
	if f.AvailableOnly && !b.IsAvailable() {
		return false
	}
	if f.YearFrom != nil && (b.Year == nil || *b.Year < *f.YearFrom) {
		return false
	}
	if f.YearTo != nil && (b.Year == nil || *b.Year > *f.YearTo) {
		return false
	}
	return true
}

// bookComparator はPostgreSQL実装と同じくNULLを末尾に並べる比較関数を返す。
func bookComparator(f model.BookFilter) func(a, b *model.Book) int {
	dir := 1
	if f.Descending {
		dir = -1
	}
	return func(a, b *model.Book) int {
		var c int
		switch f.SortBy {
		case model.BookSortYear:
			c = nullsLast(a.Year == nil, b.Year == nil)
			if c == 0 && a.Year != nil {
				c = dir * cmp.Compare(*a.Year, *b.Year)
			}
		case model.BookSortPrice:
			c = nullsLast(a.Price == nil, b.Price == nil)
			if c == 0 && a.Price != nil {
				c = dir * a.Price.Cmp(*b.Price)
			}
		default:
			c = dir * cmp.Compare(a.Title, b.Title)
		}
		if c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	}
}

func nullsLast(aNil, bNil bool) int {
	switch {
	case aNil == bNil:
		return 0
	case aNil:
		return 1
	default:
		return -1
	}
}

func (r *bookRepo) Update(ctx context.Context, book *model.Book) error {
	return r.access(func(st *state) error {
		if _, ok := st.books[book.ID]; !ok {
			return fmt.Errorf("failed to update book: %w", repository.ErrNotFound)
		}
		st.books[book.ID] = *book
		return nil
	})
}

func (r *bookRepo) Delete(ctx context.Context, id string) error {
	return r.access(func(st *state) error {
		if _, ok := st.books[id]; !ok {
			return fmt.Errorf("failed to delete book: %w", repository.ErrNotFound)
		}
		deleteBook(st, id)
		return nil
	})
}

// deleteBook は書籍と関連する貸出を削除する。
func deleteBook(st *state, id string) {
	delete(st.books, id)
	for loanID, l := range st.loans {
		if l.BookID == id {
			delete(st.loans, loanID)
		}
	}
}

type userRepo struct{ access accessor }

func (r *userRepo) Create(ctx context.Context, user *model.User) error {
	return r.access(func(st *state) error {
		for _, u := range st.users {
			if u.ID == user.ID || u.Email == user.Email {
				return fmt.Errorf("failed to insert user: %w", ErrDuplicate)
			}
		}
		st.users[user.ID] = *user
		return nil
	})
}

func (r *userRepo) FindByID(ctx context.Context, id string) (*model.User, error) {
	var found *model.User
	err := r.access(func(st *state) error {
		if u, ok := st.users[id]; ok {
			found = &u
		}
		return nil
	})
	return found, err
}

// FindByIDForUpdate はトランザクション自体が直列化されているためFindByIDと同じ。
func (r *userRepo) FindByIDForUpdate(ctx context.Context, id string) (*model.User, error) {
	return r.FindByID(ctx, id)
}

func (r *userRepo) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	var found *model.User
	err := r.access(func(st *state) error {
		for _, u := range st.users {
			if u.Email == email {
				found = &u
				return nil
			}
		}
		return nil
	})
	return found, err
}

func (r *userRepo) List(ctx context.Context, page model.Page) ([]*model.User, error) {
	return r.Search(ctx, model.UserFilter{}, page)
}

func (r *userRepo) Search(ctx context.Context, filter model.UserFilter, page model.Page) ([]*model.User, error) {
	var result []*model.User
	err := r.access(func(st *state) error {
		for _, u := range st.users {
			if filter.NameContains != "" && !containsFold(u.Name, filter.NameContains) {
				continue
			}
			if filter.Active != nil && u.Active != *filter.Active {
				continue
			}
			user := u
			result = append(result, &user)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	slices.SortFunc(result, func(a, b *model.User) int {
		return cmp.Or(cmp.Compare(a.Name, b.Name), cmp.Compare(a.ID, b.ID))
	})
	return paginate(result, page), nil
}

func (r *userRepo) Update(ctx context.Context, user *model.User) error {
	return r.access(func(st *state) error {
		if _, ok := st.users[user.ID]; !ok {
			return fmt.Errorf("failed to update user: %w", repository.ErrNotFound)
		}
		for _, u := range st.users {
			if u.ID != user.ID && u.Email == user.Email {
				return fmt.Errorf("failed to update user: %w", ErrDuplicate)
			}
		}
		st.users[user.ID] = *user
		return nil
	})
}

func (r *userRepo) Delete(ctx context.Context, id string) error {
	return r.access(func(st *state) error {
		if _, ok := st.users[id]; !ok {
			return fmt.Errorf("failed to delete user: %w", repository.ErrNotFound)
		}
		delete(st.users, id)
		for loanID, l := range st.loans {
			if l.UserID == id {
				delete(st.loans, loanID)
			}
		}
		return nil
	})
}

type authorRepo struct{ access accessor }

func (r *authorRepo) Create(ctx context.Context, author *model.Author) error {
	return r.access(func(st *state) error {
		if _, ok := st.authors[author.ID]; ok {
			return fmt.Errorf("failed to insert author: %w", ErrDuplicate)
		}
		st.authors[author.ID] = *author
		return nil
	})
}

func (r *authorRepo) FindByID(ctx context.Context, id string) (*model.Author, error) {
	var found *model.Author
	err := r.access(func(st *state) error {
		if a, ok := st.authors[id]; ok {
			found = &a
		}
		return nil
	})
	return found, err
}

func (r *authorRepo) List(ctx context.Context, page model.Page) ([]*model.Author, error) {
	return r.SearchByName(ctx, "", page)
}

func (r *authorRepo) SearchByName(ctx context.Context, name string, page model.Page) ([]*model.Author, error) {
	var result []*model.Author
	err := r.access(func(st *state) error {
		for _, a := range st.authors {
			if name != "" && !containsFold(a.Name, name) {
				continue
			}
			author := a
			result = append(result, &author)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	slices.SortFunc(result, func(a, b *model.Author) int {
		return cmp.Or(cmp.Compare(a.Name, b.Name), cmp.Compare(a.ID, b.ID))
	})
	return paginate(result, page), nil
}

func (r *authorRepo) Update(ctx context.Context, author *model.Author) error {
	return r.access(func(st *state) error {
		if _, ok := st.authors[author.ID]; !ok {
			return fmt.Errorf("failed to update author: %w", repository.ErrNotFound)
		}
		st.authors[author.ID] = *author
		return nil
	})
}

func (r *authorRepo) Delete(ctx context.Context, id string) error {
	return r.access(func(st *state) error {
		if _, ok := st.authors[id]; !ok {
			return fmt.Errorf("failed to delete author: %w", repository.ErrNotFound)
		}
		delete(st.authors, id)
		for bookID, b := range st.books {
			if b.AuthorID == id {
				deleteBook(st, bookID)
			}
		}
		return nil
	})
}

type categoryRepo struct{ access accessor }

func (r *categoryRepo) Create(ctx context.Context, category *model.Category) error {
	return r.access(func(st *state) error {
		for _, c := range st.categories {
			if c.ID == category.ID || c.Name == category.Name {
				return fmt.Errorf("failed to insert category: %w", ErrDuplicate)
			}
		}
		st.categories[category.ID] = *category
		return nil
	})
}

func (r *categoryRepo) FindByID(ctx context.Context, id string) (*model.Category, error) {
	var found *model.Category
	err := r.access(func(st *state) error {
		if c, ok := st.categories[id]; ok {
			found = &c
		}
		return nil
	})
	return found, err
}

func (r *categoryRepo) FindByName(ctx context.Context, name string) (*model.Category, error) {
	var found *model.Category
	err := r.access(func(st *state) error {
		for _, c := range st.categories {
			if c.Name == name {
				found = &c
				return nil
			}
		}
		return nil
	})
	return found, err
}

func (r *categoryRepo) List(ctx context.Context, page model.Page) ([]*model.Category, error) {
	var result []*model.Category
	err := r.access(func(st *state) error {
		for _, c := range st.categories {
			category := c
			result = append(result, &category)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	slices.SortFunc(result, func(a, b *model.Category) int { return cmp.Compare(a.Name, b.Name) })
	return paginate(result, page), nil
}

func (r *categoryRepo) Update(ctx context.Context, category *model.Category) error {
	return r.access(func(st *state) error {
		if _, ok := st.categories[category.ID]; !ok {
			return fmt.Errorf("failed to update category: %w", repository.ErrNotFound)
		}
		for _, c := range st.categories {
			if c.ID != category.ID && c.Name == category.Name {
				return fmt.Errorf("failed to update category: %w", ErrDuplicate)
			}
		}
		st.categories[category.ID] = *category
		return nil
	})
}

// Delete は分類を削除し、所属書籍の分類をクリアする。
func (r *categoryRepo) Delete(ctx context.Context, id string) error {
	return r.access(func(st *state) error {
		if _, ok := st.categories[id]; !ok {
			return fmt.Errorf("failed to delete category: %w", repository.ErrNotFound)
		}
		delete(st.categories, id)
		for bookID, b := range st.books {
			if b.CategoryID != nil && *b.CategoryID == id {
				b.CategoryID = nil
				st.books[bookID] = b
			}
		}
		return nil
	})
}

type loanRepo struct{ access accessor }

func (r *loanRepo) Create(ctx context.Context, loan *model.Loan) error {
	return r.access(func(st *state) error {
		if _, ok := st.loans[loan.ID]; ok {
			return fmt.Errorf("failed to insert loan: %w", ErrDuplicate)
		}
		if _, ok := st.books[loan.BookID]; !ok {
			return fmt.Errorf("failed to insert loan: unknown book %s", loan.BookID)
		}
		if _, ok := st.users[loan.UserID]; !ok {
			return fmt.Errorf("failed to insert loan: unknown user %s", loan.UserID)
		}
		st.loans[loan.ID] = *loan
		return nil
	})
}

func (r *loanRepo) FindByID(ctx context.Context, id string) (*model.Loan, error) {
	var found *model.Loan
	err := r.access(func(st *state) error {
		if l, ok := st.loans[id]; ok {
			found = &l
		}
		return nil
	})
	return found, err
}

func (r *loanRepo) FindByIDForUpdate(ctx context.Context, id string) (*model.Loan, error) {
	return r.FindByID(ctx, id)
}

func (r *loanRepo) List(ctx context.Context, page model.Page) ([]*model.Loan, error) {
	return r.filter(func(model.Loan) bool { return true }, byLoanDateDesc, page)
}

func (r *loanRepo) ListByUser(ctx context.Context, userID string, page model.Page) ([]*model.Loan, error) {
	return r.filter(func(l model.Loan) bool { return l.UserID == userID }, byLoanDateDesc, page)
}

func (r *loanRepo) ListByBook(ctx context.Context, bookID string, page model.Page) ([]*model.Loan, error) {
	return r.filter(func(l model.Loan) bool { return l.BookID == bookID }, byLoanDateDesc, page)
}

func (r *loanRepo) ListActive(ctx context.Context, page model.Page) ([]*model.Loan, error) {
	return r.filter(func(l model.Loan) bool { return !l.Returned }, byLoanDateDesc, page)
}

func (r *loanRepo) ListOverdue(ctx context.Context, today time.Time, page model.Page) ([]*model.Loan, error) {
	day := model.DateOf(today)
	return r.filter(func(l model.Loan) bool {
		return !l.Returned && l.DueDate.Before(day)
	}, func(a, b *model.Loan) int {
		return cmp.Or(a.DueDate.Compare(b.DueDate), cmp.Compare(a.ID, b.ID))
	}, page)
}

func (r *loanRepo) CountActiveByUser(ctx context.Context, userID string) (int, error) {
	count := 0
	err := r.access(func(st *state) error {
		for _, l := range st.loans {
			if l.UserID == userID && !l.Returned {
				count++
			}
		}
		return nil
	})
	return count, err
}

func (r *loanRepo) Update(ctx context.Context, loan *model.Loan) error {
	return r.access(func(st *state) error {
		if _, ok := st.loans[loan.ID]; !ok {
			return fmt.Errorf("failed to update loan: %w", repository.ErrNotFound)
		}
		st.loans[loan.ID] = *loan
		return nil
	})
}

func byLoanDateDesc(a, b *model.Loan) int {
	return cmp.Or(
		b.LoanDate.Compare(a.LoanDate),
		b.CreatedAt.Compare(a.CreatedAt),
		cmp.Compare(a.ID, b.ID),
	)
}

func (r *loanRepo) filter(match func(model.Loan) bool, order func(a, b *model.Loan) int, page model.Page) ([]*model.Loan, error) {
	var result []*model.Loan
	err := r.access(func(st *state) error {
		for _, l := range st.loans {
			if match(l) {
				loan := l
				result = append(result, &loan)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	slices.SortFunc(result, order)
	return paginate(result, page), nil
}

// compile-time interface check
var (
	_ repository.BookRepository     = (*bookRepo)(nil)
	_ repository.UserRepository     = (*userRepo)(nil)
	_ repository.AuthorRepository   = (*authorRepo)(nil)
	_ repository.CategoryRepository = (*categoryRepo)(nil)
	_ repository.LoanRepository     = (*loanRepo)(nil)
)
