// Package book は蔵書管理のドメインロジックを提供する。
package book

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/hitoshi/libman/internal/model"
	"github.com/hitoshi/libman/internal/repository"
	"github.com/hitoshi/libman/internal/security"
	"github.com/hitoshi/libman/internal/validator"
)

const (
	minYear         = 1000
	maxYear         = 2100
	maxTitleLen     = 300
	maxPublisherLen = 200
)

// CreateInput は書籍登録の入力。
type CreateInput struct {
	Title     string
	Year      *int
	Publisher string
	Pages     *int
	Synopsis  string
	Price     *decimal.Decimal
	// TotalQuantity が未指定の場合は1冊として登録する。
	TotalQuantity *int
	// AvailableQuantity が未指定の場合はTotalQuantityと同数になる。
	AvailableQuantity *int
	AuthorID          string
	CategoryID        *string
}

// Service は蔵書管理のサービス層。
type Service struct {
	store     repository.Store
	sanitizer security.Sanitizer
	clock     model.Clock
	logger    *slog.Logger
}

// NewService はServiceの新しいインスタンスを生成する。
// storeのうちBooks、Authors、Categoriesを使用する。
func NewService(store repository.Store, sanitizer security.Sanitizer, clock model.Clock, logger *slog.Logger) *Service {
	return &Service{store: store, sanitizer: sanitizer, clock: clock, logger: logger}
}

// Create は書籍を登録する。
// 著者は必須で存在している必要がある。分類は指定された場合のみ存在を確認する。
func (s *Service) Create(ctx context.Context, in CreateInput) (*model.Book, error) {
	total := 1
	if in.TotalQuantity != nil {
		total = *in.TotalQuantity
	}
	available := total
	if in.AvailableQuantity != nil {
		available = *in.AvailableQuantity
	}

	now := s.clock()
	book := &model.Book{
		ID:                uuid.New().String(),
		Title:             strings.TrimSpace(in.Title),
		Year:              in.Year,
		Publisher:         strings.TrimSpace(in.Publisher),
		Pages:             in.Pages,
		Synopsis:          s.sanitizer.Sanitize(in.Synopsis),
		Price:             in.Price,
		Available:         true,
		TotalQuantity:     total,
		AvailableQuantity: available,
		AuthorID:          in.AuthorID,
		CategoryID:        in.CategoryID,
		CreatedAt:         now,
		UpdatedAt:         now,
	}

	repos := s.store.Repositories()
	if err := ensureReferences(ctx, repos, book.AuthorID, book.CategoryID); err != nil {
		return nil, err
	}
	if err := validate(book); err != nil {
		return nil, err
	}
	if book.AvailableQuantity == 0 {
		book.Available = false
	}

	if err := repos.Books.Create(ctx, book); err != nil {
		return nil, fmt.Errorf("書籍の登録に失敗しました: %w", err)
	}

	s.logger.Info("書籍を登録しました",
		slog.String("book_id", book.ID),
		slog.Int("total_quantity", book.TotalQuantity),
	)
	return book, nil
}

// Get は指定IDの書籍を返す。
func (s *Service) Get(ctx context.Context, id string) (*model.Book, error) {
	book, err := s.store.Repositories().Books.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("書籍の取得に失敗しました: %w", err)
	}
	if book == nil {
		return nil, model.NewNotFoundError(model.EntityBook, id)
	}
	return book, nil
}

// List は書籍一覧を返す。
func (s *Service) List(ctx context.Context, page model.Page) ([]*model.Book, error) {
	books, err := s.store.Repositories().Books.List(ctx, page)
	if err != nil {
		return nil, fmt.Errorf("書籍一覧の取得に失敗しました: %w", err)
	}
	return books, nil
}

// Search は条件に一致する書籍を返す。
func (s *Service) Search(ctx context.Context, filter model.BookFilter, page model.Page) ([]*model.Book, error) {
	v := validator.New()
	v.Check(filter.SortBy == "" || validator.In(string(filter.SortBy),
		string(model.BookSortTitle), string(model.BookSortYear), string(model.BookSortPrice)),
		"sort_by", "title, year, price のいずれかを指定してください")
	if filter.YearFrom != nil && filter.YearTo != nil {
		v.Check(*filter.YearFrom <= *filter.YearTo, "year_from", "year_to以下である必要があります")
	}
	if err := v.Err(); err != nil {
		return nil, err
	}

	filter.TitleContains = strings.TrimSpace(filter.TitleContains)
	books, err := s.store.Repositories().Books.Search(ctx, filter, page)
	if err != nil {
		return nil, fmt.Errorf("書籍の検索に失敗しました: %w", err)
	}
	return books, nil
}

// ListAvailable は貸出可能な書籍を返す。
func (s *Service) ListAvailable(ctx context.Context, page model.Page) ([]*model.Book, error) {
	return s.Search(ctx, model.BookFilter{AvailableOnly: true}, page)
}

// Update は指定フィールドのみを更新する。
// 総数のみが変更され現在の在庫数が新しい総数を超える場合、在庫数を新しい総数に切り詰める。
// 書籍行をロックしたトランザクション内で読み書きするため、同時に行われた貸出・返却の在庫変更を上書きしない。
func (s *Service) Update(ctx context.Context, id string, patch model.BookPatch) (*model.Book, error) {
	if patch.TotalQuantity != nil && *patch.TotalQuantity < 1 {
		return nil, model.NewValidationError("total_quantity", "1以上である必要があります")
	}
	if patch.Title != nil {
		title := strings.TrimSpace(*patch.Title)
		patch.Title = &title
	}
	if patch.Synopsis != nil {
		synopsis := s.sanitizer.Sanitize(*patch.Synopsis)
		patch.Synopsis = &synopsis
	}
	now := s.clock()

	var updated *model.Book
	err := s.store.WithinTx(ctx, func(ctx context.Context, repos repository.Repositories) error {
		book, err := repos.Books.FindByIDForUpdate(ctx, id)
		if err != nil {
			return fmt.Errorf("書籍の取得に失敗しました: %w", err)
		}
		if book == nil {
			return model.NewNotFoundError(model.EntityBook, id)
		}

		p := patch
		if p.TotalQuantity != nil && p.AvailableQuantity == nil && book.AvailableQuantity > *p.TotalQuantity {
			clamped := *p.TotalQuantity
			p.AvailableQuantity = &clamped
		}

		if p.AuthorID != nil || (p.CategoryID != nil && !p.ClearCategory) {
			authorID := book.AuthorID
			if p.AuthorID != nil {
				authorID = *p.AuthorID
			}
			categoryID := p.CategoryID
			if p.ClearCategory {
				categoryID = nil
			}
			if err := ensureReferences(ctx, repos, authorID, categoryID); err != nil {
				return err
			}
		}

		p.Apply(book)
		if err := validate(book); err != nil {
			return err
		}
		switch {
		case book.AvailableQuantity == 0:
			book.Available = false
		case p.Available == nil && p.AvailableQuantity != nil:
			book.Available = true
		}
		book.UpdatedAt = now

		if err := repos.Books.Update(ctx, book); err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return model.NewNotFoundError(model.EntityBook, id)
			}
			return fmt.Errorf("書籍の更新に失敗しました: %w", err)
		}
		updated = book
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// Delete は書籍を削除する。書籍の貸出履歴も削除される。
func (s *Service) Delete(ctx context.Context, id string) error {
	if err := s.store.Repositories().Books.Delete(ctx, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return model.NewNotFoundError(model.EntityBook, id)
		}
		return fmt.Errorf("書籍の削除に失敗しました: %w", err)
	}
	s.logger.Info("書籍を削除しました", slog.String("book_id", id))
	return nil
}

// ensureReferences は著者と分類（指定時のみ）の存在を確認する。
func ensureReferences(ctx context.Context, repos repository.Repositories, authorID string, categoryID *string) error {
	if authorID == "" {
		return model.NewValidationError("author_id", "必須です")
	}
	author, err := repos.Authors.FindByID(ctx, authorID)
	if err != nil {
		return fmt.Errorf("著者の取得に失敗しました: %w", err)
	}
	if author == nil {
		return model.NewNotFoundError(model.EntityAuthor, authorID)
	}

	if categoryID == nil {
		return nil
	}
	category, err := repos.Categories.FindByID(ctx, *categoryID)
	if err != nil {
		return fmt.Errorf("分類の取得に失敗しました: %w", err)
	}
	if category == nil {
		return model.NewNotFoundError(model.EntityCategory, *categoryID)
	}
	return nil
}

func validate(b *model.Book) error {
	v := validator.New()
	v.Check(b.Title != "", "title", "必須です")
	v.Check(len([]rune(b.Title)) <= maxTitleLen, "title", fmt.Sprintf("%d文字以内で入力してください", maxTitleLen))
	if b.Year != nil {
		v.Check(*b.Year >= minYear && *b.Year <= maxYear, "year",
			fmt.Sprintf("%dから%dの範囲で指定してください", minYear, maxYear))
	}
	v.Check(len([]rune(b.Publisher)) <= maxPublisherLen, "publisher",
		fmt.Sprintf("%d文字以内で入力してください", maxPublisherLen))
	if b.Pages != nil {
		v.Check(*b.Pages > 0, "pages", "1以上である必要があります")
	}
	if b.Price != nil {
		v.Check(!b.Price.IsNegative(), "price", "0以上である必要があります")
	}
	v.Check(b.TotalQuantity >= 1, "total_quantity", "1以上である必要があります")
	v.Check(b.AvailableQuantity >= 0, "available_quantity", "0以上である必要があります")
	v.Check(b.AvailableQuantity <= b.TotalQuantity, "available_quantity", "総数以下である必要があります")
	return v.Err()
}
