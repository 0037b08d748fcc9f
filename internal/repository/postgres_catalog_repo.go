package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/doug-martin/goqu/v9"
	"github.com/jmoiron/sqlx"

	"github.com/hitoshi/libman/internal/model"
)

const (
	tableAuthors    = "authors"
	tableCategories = "categories"
)

var (
	authorColumns   = []string{"id", "name", "nationality", "birth_date", "biography", "created_at", "updated_at"}
	categoryColumns = []string{"id", "name", "description", "created_at", "updated_at"}
)

type authorRow struct {
	ID          string       `db:"id"`
	Name        string       `db:"name"`
	Nationality string       `db:"nationality"`
	BirthDate   sql.NullTime `db:"birth_date"`
	Biography   string       `db:"biography"`
	CreatedAt   time.Time    `db:"created_at"`
	UpdatedAt   time.Time    `db:"updated_at"`
}

func newAuthorRow(a *model.Author) authorRow {
	row := authorRow{
		ID:          a.ID,
		Name:        a.Name,
		Nationality: a.Nationality,
		Biography:   a.Biography,
		CreatedAt:   a.CreatedAt,
		UpdatedAt:   a.UpdatedAt,
	}
	if a.BirthDate != nil {
		row.BirthDate = sql.NullTime{Time: model.DateOf(*a.BirthDate), Valid: true}
	}
	return row
}

func (r authorRow) toModel() *model.Author {
	a := &model.Author{
		ID:          r.ID,
		Name:        r.Name,
		Nationality: r.Nationality,
		Biography:   r.Biography,
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
	}
	if r.BirthDate.Valid {
		d := model.DateOf(r.BirthDate.Time)
		a.BirthDate = &d
	}
	return a
}

// PostgresAuthorRepo はPostgreSQLを使用した著者リポジトリ。
type PostgresAuthorRepo struct {
	db sqlx.ExtContext
}

// NewPostgresAuthorRepo はPostgresAuthorRepoを生成する。
func NewPostgresAuthorRepo(db sqlx.ExtContext) *PostgresAuthorRepo {
	return &PostgresAuthorRepo{db: db}
}

// Create は著者を作成する。
func (r *PostgresAuthorRepo) Create(ctx context.Context, author *model.Author) error {
	_, err := sqlx.NamedExecContext(ctx, r.db,
		`INSERT INTO authors (id, name, nationality, birth_date, biography, created_at, updated_at)
		 VALUES (:id, :name, :nationality, :birth_date, :biography, :created_at, :updated_at)`,
		newAuthorRow(author),
	)
	if err != nil {
		return fmt.Errorf("failed to insert author: %w", err)
	}
	return nil
}

// FindByID は指定IDの著者を取得する。見つからない場合はnilを返す。
func (r *PostgresAuthorRepo) FindByID(ctx context.Context, id string) (*model.Author, error) {
	var row authorRow
	found, err := getOne(ctx, r.db, &row,
		`SELECT id, name, nationality, birth_date, biography, created_at, updated_at
		 FROM authors WHERE id = $1`,
		id,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to find author by ID: %w", err)
	}
	if !found {
		return nil, nil
	}
	return row.toModel(), nil
}

// List は著者一覧を名前順で返す。
func (r *PostgresAuthorRepo) List(ctx context.Context, page model.Page) ([]*model.Author, error) {
	return r.SearchByName(ctx, "", page)
}

// SearchByName は名前の部分一致で著者を検索する。nameが空の場合は全件を対象とする。
func (r *PostgresAuthorRepo) SearchByName(ctx context.Context, name string, page model.Page) ([]*model.Author, error) {
	ds := dialect.From(tableAuthors).Select(columns(authorColumns...)...)
	if name != "" {
		ds = ds.Where(goqu.C("name").ILike(containsPattern(name)))
	}
	ds = ds.Order(goqu.I("name").Asc(), goqu.I("id").Asc())

	var rows []authorRow
	if err := selectDataset(ctx, r.db, &rows, paged(ds, page)); err != nil {
		return nil, fmt.Errorf("failed to search authors: %w", err)
	}
	authors := make([]*model.Author, 0, len(rows))
	for _, row := range rows {
		authors = append(authors, row.toModel())
	}
	return authors, nil
}

// Update は著者情報を上書き更新する。
func (r *PostgresAuthorRepo) Update(ctx context.Context, author *model.Author) error {
	err := namedExecAffecting(ctx, r.db,
		`UPDATE authors SET name = :name, nationality = :nationality, birth_date = :birth_date,
			biography = :biography, updated_at = :updated_at
		 WHERE id = :id`,
		newAuthorRow(author),
	)
	if err != nil {
		return fmt.Errorf("failed to update author: %w", err)
	}
	return nil
}

// Delete は指定IDの著者を削除する。著者の書籍はCASCADE削除される。
func (r *PostgresAuthorRepo) Delete(ctx context.Context, id string) error {
	if err := deleteByID(ctx, r.db, tableAuthors, id); err != nil {
		return fmt.Errorf("failed to delete author: %w", err)
	}
	return nil
}

type categoryRow struct {
	ID          string    `db:"id"`
	Name        string    `db:"name"`
	Description string    `db:"description"`
	CreatedAt   time.Time `db:"created_at"`
	UpdatedAt   time.Time `db:"updated_at"`
}

func (r categoryRow) toModel() *model.Category {
	return &model.Category{
		ID:          r.ID,
		Name:        r.Name,
		Description: r.Description,
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
	}
}

func newCategoryRow(c *model.Category) categoryRow {
	return categoryRow{
		ID:          c.ID,
		Name:        c.Name,
		Description: c.Description,
		CreatedAt:   c.CreatedAt,
		UpdatedAt:   c.UpdatedAt,
	}
}

// PostgresCategoryRepo はPostgreSQLを使用した分類リポジトリ。
type PostgresCategoryRepo struct {
	db sqlx.ExtContext
}

// NewPostgresCategoryRepo はPostgresCategoryRepoを生成する。
func NewPostgresCategoryRepo(db sqlx.ExtContext) *PostgresCategoryRepo {
	return &PostgresCategoryRepo{db: db}
}

// Create は分類を作成する。
func (r *PostgresCategoryRepo) Create(ctx context.Context, category *model.Category) error {
	_, err := sqlx.NamedExecContext(ctx, r.db,
		`INSERT INTO categories (id, name, description, created_at, updated_at)
		 VALUES (:id, :name, :description, :created_at, :updated_at)`,
		newCategoryRow(category),
	)
	if err != nil {
		return fmt.Errorf("failed to insert category: %w", translateWriteError(err))
	}
	return nil
}

// FindByID は指定IDの分類を取得する。見つからない場合はnilを返す。
func (r *PostgresCategoryRepo) FindByID(ctx context.Context, id string) (*model.Category, error) {
	return r.findBy(ctx, "id", id)
}

// FindByName は名前で分類を検索する。見つからない場合はnilを返す。
func (r *PostgresCategoryRepo) FindByName(ctx context.Context, name string) (*model.Category, error) {
	return r.findBy(ctx, "name", name)
}

func (r *PostgresCategoryRepo) findBy(ctx context.Context, column, value string) (*model.Category, error) {
	query, args, err := dialect.From(tableCategories).
		Select(columns(categoryColumns...)...).
		Where(goqu.C(column).Eq(value)).
		Prepared(true).ToSQL()
	if err != nil {
		return nil, fmt.Errorf("failed to build query: %w", err)
	}

	var row categoryRow
	found, err := getOne(ctx, r.db, &row, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to find category by %s: %w", column, err)
	}
	if !found {
		return nil, nil
	}
	return row.toModel(), nil
}

// List は分類一覧を名前順で返す。
func (r *PostgresCategoryRepo) List(ctx context.Context, page model.Page) ([]*model.Category, error) {
	ds := dialect.From(tableCategories).
		Select(columns(categoryColumns...)...).
		Order(goqu.I("name").Asc())

	var rows []categoryRow
	if err := selectDataset(ctx, r.db, &rows, paged(ds, page)); err != nil {
		return nil, fmt.Errorf("failed to list categories: %w", err)
	}
	categories := make([]*model.Category, 0, len(rows))
	for _, row := range rows {
		categories = append(categories, row.toModel())
	}
	return categories, nil
}

// Update は分類情報を上書き更新する。
func (r *PostgresCategoryRepo) Update(ctx context.Context, category *model.Category) error {
	err := namedExecAffecting(ctx, r.db,
		`UPDATE categories SET name = :name, description = :description, updated_at = :updated_at
		 WHERE id = :id`,
		newCategoryRow(category),
	)
	if err != nil {
		return fmt.Errorf("failed to update category: %w", translateWriteError(err))
	}
	return nil
}

// Delete は指定IDの分類を削除する。所属書籍のcategory_idはNULLになる。
func (r *PostgresCategoryRepo) Delete(ctx context.Context, id string) error {
	if err := deleteByID(ctx, r.db, tableCategories, id); err != nil {
		return fmt.Errorf("failed to delete category: %w", err)
	}
	return nil
}

// compile-time interface check
var (
	_ AuthorRepository   = (*PostgresAuthorRepo)(nil)
	_ CategoryRepository = (*PostgresCategoryRepo)(nil)
)
