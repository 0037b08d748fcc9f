package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/doug-martin/goqu/v9"
	"github.com/doug-martin/goqu/v9/exp"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"github.com/hitoshi/libman/internal/model"
)

const tableBooks = "books"

var bookColumns = []string{
	"id", "title", "year", "publisher", "pages", "synopsis", "price", "available",
	"total_quantity", "available_quantity", "author_id", "category_id", "created_at", "updated_at",
}

const selectBookSQL = `SELECT id, title, year, publisher, pages, synopsis, price, available,
	total_quantity, available_quantity, author_id, category_id, created_at, updated_at
	FROM books WHERE id = $1`

// bookRow はbooksテーブルの1行。
type bookRow struct {
	ID                string              `db:"id"`
	Title             string              `db:"title"`
	Year              sql.NullInt64       `db:"year"`
	Publisher         string              `db:"publisher"`
	Pages             sql.NullInt64       `db:"pages"`
	Synopsis          string              `db:"synopsis"`
	Price             decimal.NullDecimal `db:"price"`
	Available         bool                `db:"available"`
	TotalQuantity     int                 `db:"total_quantity"`
	AvailableQuantity int                 `db:"available_quantity"`
	AuthorID          string              `db:"author_id"`
	CategoryID        sql.NullString      `db:"category_id"`
	CreatedAt         time.Time           `db:"created_at"`
	UpdatedAt         time.Time           `db:"updated_at"`
}

func newBookRow(b *model.Book) bookRow {
	row := bookRow{
		ID:                b.ID,
		Title:             b.Title,
		Publisher:         b.Publisher,
		Synopsis:          b.Synopsis,
		Available:         b.Available,
		TotalQuantity:     b.TotalQuantity,
		AvailableQuantity: b.AvailableQuantity,
		AuthorID:          b.AuthorID,
		CreatedAt:         b.CreatedAt,
		UpdatedAt:         b.UpdatedAt,
	}
	if b.Year != nil {
		row.Year = sql.NullInt64{Int64: int64(*b.Year), Valid: true}
	}
	if b.Pages != nil {
		row.Pages = sql.NullInt64{Int64: int64(*b.Pages), Valid: true}
	}
	if b.Price != nil {
		row.Price = decimal.NullDecimal{Decimal: *b.Price, Valid: true}
	}
	if b.CategoryID != nil {
		row.CategoryID = sql.NullString{String: *b.CategoryID, Valid: true}
	}
	return row
}

func (r bookRow) toModel() *model.Book {
	b := &model.Book{
		ID:                r.ID,
		Title:             r.Title,
		Publisher:         r.Publisher,
		Synopsis:          r.Synopsis,
		Available:         r.Available,
		TotalQuantity:     r.TotalQuantity,
		AvailableQuantity: r.AvailableQuantity,
		AuthorID:          r.AuthorID,
		CreatedAt:         r.CreatedAt,
		UpdatedAt:         r.UpdatedAt,
	}
	if r.Year.Valid {
		y := int(r.Year.Int64)
		b.Year = &y
	}
	if r.Pages.Valid {
		p := int(r.Pages.Int64)
		b.Pages = &p
	}
	if r.Price.Valid {
		price := r.Price.Decimal
		b.Price = &price
	}
	if r.CategoryID.Valid {
		id := r.CategoryID.String
		b.CategoryID = &id
	}
	return b
}

func booksFromRows(rows []bookRow) []*model.Book {
	books := make([]*model.Book, 0, len(rows))
	for _, row := range rows {
		books = append(books, row.toModel())
	}
	return books
}

// PostgresBookRepo はPostgreSQLを使用した書籍リポジトリ。
// dbには*sqlx.DBと*sqlx.Txのどちらも渡せる。
type PostgresBookRepo struct {
	db sqlx.ExtContext
}

// NewPostgresBookRepo はPostgresBookRepoを生成する。
func NewPostgresBookRepo(db sqlx.ExtContext) *PostgresBookRepo {
	return &PostgresBookRepo{db: db}
}

// Create は書籍を作成する。
func (r *PostgresBookRepo) Create(ctx context.Context, book *model.Book) error {
	_, err := sqlx.NamedExecContext(ctx, r.db,
		`INSERT INTO books (id, title, year, publisher, pages, synopsis, price, available,
			total_quantity, available_quantity, author_id, category_id, created_at, updated_at)
		 VALUES (:id, :title, :year, :publisher, :pages, :synopsis, :price, :available,
			:total_quantity, :available_quantity, :author_id, :category_id, :created_at, :updated_at)`,
		newBookRow(book),
	)
	if err != nil {
		return fmt.Errorf("failed to insert book: %w", err)
	}
	return nil
}

// FindByID は指定IDの書籍を取得する。見つからない場合はnilを返す。
func (r *PostgresBookRepo) FindByID(ctx context.Context, id string) (*model.Book, error) {
	return r.findOne(ctx, selectBookSQL, id)
}

// FindByIDForUpdate は指定IDの書籍をSELECT ... FOR UPDATEで取得する。
func (r *PostgresBookRepo) FindByIDForUpdate(ctx context.Context, id string) (*model.Book, error) {
	return r.findOne(ctx, selectBookSQL+` FOR UPDATE`, id)
}

func (r *PostgresBookRepo) findOne(ctx context.Context, query, id string) (*model.Book, error) {
	var row bookRow
	found, err := getOne(ctx, r.db, &row, query, id)
	if err != nil {
		return nil, fmt.Errorf("failed to find book by ID: %w", err)
	}
	if !found {
		return nil, nil
	}
	return row.toModel(), nil
}

// List は書籍一覧をタイトル順で返す。
func (r *PostgresBookRepo) List(ctx context.Context, page model.Page) ([]*model.Book, error) {
	return r.Search(ctx, model.BookFilter{}, page)
}

// Search は条件に一致する書籍を返す。
// 並び替えキーが未指定の場合はタイトル順。同値の場合はIDで順序を安定させる。
func (r *PostgresBookRepo) Search(ctx context.Context, filter model.BookFilter, page model.Page) ([]*model.Book, error) {
	var rows []bookRow
	if err := selectDataset(ctx, r.db, &rows, paged(bookSearchDataset(filter), page)); err != nil {
		return nil, fmt.Errorf("failed to search books: %w", err)
	}
	return booksFromRows(rows), nil
}

func bookSearchDataset(filter model.BookFilter) *goqu.SelectDataset {
	ds := dialect.From(tableBooks).Select(columns(bookColumns...)...)

	if filter.TitleContains != "" {
		ds = ds.Where(goqu.C("title").ILike(containsPattern(filter.TitleContains)))
	}
	if filter.AuthorID != "" {
		ds = ds.Where(goqu.C("author_id").Eq(filter.AuthorID))
	}
	if filter.CategoryID != "" {
		ds = ds.Where(goqu.C("category_id").Eq(filter.CategoryID))
	}
	if filter.AvailableOnly {
		ds = ds.Where(goqu.C("available").Eq(true), goqu.C("available_quantity").Gt(0))
	}
	if filter.YearFrom != nil {
		ds = ds.Where(goqu.C("year").Gte(*filter.YearFrom))
	}
	if filter.YearTo != nil {
		ds = ds.Where(goqu.C("year").Lte(*filter.YearTo))
	}

	return ds.Order(bookOrder(filter), goqu.I("id").Asc())
}

func bookOrder(filter model.BookFilter) exp.OrderedExpression {
	col := goqu.I(string(model.BookSortTitle))
	switch filter.SortBy {
	case model.BookSortYear, model.BookSortPrice:
		col = goqu.I(string(filter.SortBy))
	}
	if filter.Descending {
		return col.Desc().NullsLast()
	}
	return col.Asc().NullsLast()
}

// Update は書籍情報を上書き更新する。
func (r *PostgresBookRepo) Update(ctx context.Context, book *model.Book) error {
	err := namedExecAffecting(ctx, r.db,
		`UPDATE books SET title = :title, year = :year, publisher = :publisher, pages = :pages,
			synopsis = :synopsis, price = :price, available = :available,
			total_quantity = :total_quantity, available_quantity = :available_quantity,
			author_id = :author_id, category_id = :category_id, updated_at = :updated_at
		 WHERE id = :id`,
		newBookRow(book),
	)
	if err != nil {
		return fmt.Errorf("failed to update book: %w", err)
	}
	return nil
}

// Delete は指定IDの書籍を削除する。
func (r *PostgresBookRepo) Delete(ctx context.Context, id string) error {
	if err := deleteByID(ctx, r.db, tableBooks, id); err != nil {
		return fmt.Errorf("failed to delete book: %w", err)
	}
	return nil
}

// compile-time interface check
var _ BookRepository = (*PostgresBookRepo)(nil)
