package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/doug-martin/goqu/v9"
	"github.com/doug-martin/goqu/v9/exp"
	"github.com/jmoiron/sqlx"

	"github.com/hitoshi/libman/internal/model"
)

const tableUsers = "users"

var userColumns = []string{"id", "name", "email", "birth_date", "active", "created_at", "updated_at"}

// userRow はusersテーブルの1行。
type userRow struct {
	ID        string    `db:"id"`
	Name      string    `db:"name"`
	Email     string    `db:"email"`
	BirthDate time.Time `db:"birth_date"`
	Active    bool      `db:"active"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

func newUserRow(u *model.User) userRow {
	return userRow{
		ID:        u.ID,
		Name:      u.Name,
		Email:     u.Email,
		BirthDate: model.DateOf(u.BirthDate),
		Active:    u.Active,
		CreatedAt: u.CreatedAt,
		UpdatedAt: u.UpdatedAt,
	}
}

func (r userRow) toModel() *model.User {
	return &model.User{
		ID:        r.ID,
		Name:      r.Name,
		Email:     r.Email,
		BirthDate: model.DateOf(r.BirthDate),
		Active:    r.Active,
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
}

// PostgresUserRepo はPostgreSQLを使用した利用者リポジトリ。
type PostgresUserRepo struct {
	db sqlx.ExtContext
}

// NewPostgresUserRepo はPostgresUserRepoを生成する。
func NewPostgresUserRepo(db sqlx.ExtContext) *PostgresUserRepo {
	return &PostgresUserRepo{db: db}
}

// Create は利用者を作成する。
func (r *PostgresUserRepo) Create(ctx context.Context, user *model.User) error {
	_, err := sqlx.NamedExecContext(ctx, r.db,
		`INSERT INTO users (id, name, email, birth_date, active, created_at, updated_at)
		 VALUES (:id, :name, :email, :birth_date, :active, :created_at, :updated_at)`,
		newUserRow(user),
	)
	if err != nil {
		return fmt.Errorf("failed to insert user: %w", translateWriteError(err))
	}
	return nil
}

// FindByID は指定IDの利用者を取得する。見つからない場合はnilを返す。
func (r *PostgresUserRepo) FindByID(ctx context.Context, id string) (*model.User, error) {
	return r.findBy(ctx, "id", id)
}

// FindByIDForUpdate は指定IDの利用者をSELECT ... FOR UPDATEで取得する。
func (r *PostgresUserRepo) FindByIDForUpdate(ctx context.Context, id string) (*model.User, error) {
	return r.findOne(ctx, userForUpdateDataset(id), "id")
}

func userForUpdateDataset(id string) *goqu.SelectDataset {
	return dialect.From(tableUsers).
		Select(columns(userColumns...)...).
		Where(goqu.C("id").Eq(id)).
		ForUpdate(exp.Wait)
}

// FindByEmail はメールアドレスで利用者を検索する。見つからない場合はnilを返す。
func (r *PostgresUserRepo) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	return r.findBy(ctx, "email", email)
}

func (r *PostgresUserRepo) findBy(ctx context.Context, column, value string) (*model.User, error) {
	ds := dialect.From(tableUsers).
		Select(columns(userColumns...)...).
		Where(goqu.C(column).Eq(value))
	return r.findOne(ctx, ds, column)
}

func (r *PostgresUserRepo) findOne(ctx context.Context, ds *goqu.SelectDataset, column string) (*model.User, error) {
	query, args, err := ds.Prepared(true).ToSQL()
	if err != nil {
		return nil, fmt.Errorf("failed to build query: %w", err)
	}

	var row userRow
	found, err := getOne(ctx, r.db, &row, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to find user by %s: %w", column, err)
	}
	if !found {
		return nil, nil
	}
	return row.toModel(), nil
}

// List は利用者一覧を名前順で返す。
func (r *PostgresUserRepo) List(ctx context.Context, page model.Page) ([]*model.User, error) {
	return r.Search(ctx, model.UserFilter{}, page)
}

// Search は名前の部分一致と有効フラグで利用者を検索する。
func (r *PostgresUserRepo) Search(ctx context.Context, filter model.UserFilter, page model.Page) ([]*model.User, error) {
	ds := dialect.From(tableUsers).Select(columns(userColumns...)...)
	if filter.NameContains != "" {
		ds = ds.Where(goqu.C("name").ILike(containsPattern(filter.NameContains)))
	}
	if filter.Active != nil {
		ds = ds.Where(goqu.C("active").Eq(*filter.Active))
	}
	ds = ds.Order(goqu.I("name").Asc(), goqu.I("id").Asc())

	var rows []userRow
	if err := selectDataset(ctx, r.db, &rows, paged(ds, page)); err != nil {
		return nil, fmt.Errorf("failed to search users: %w", err)
	}
	users := make([]*model.User, 0, len(rows))
	for _, row := range rows {
		users = append(users, row.toModel())
	}
	return users, nil
}

// Update は利用者情報を上書き更新する。
func (r *PostgresUserRepo) Update(ctx context.Context, user *model.User) error {
	err := namedExecAffecting(ctx, r.db,
		`UPDATE users SET name = :name, email = :email, birth_date = :birth_date,
			active = :active, updated_at = :updated_at
		 WHERE id = :id`,
		newUserRow(user),
	)
	if err != nil {
		return fmt.Errorf("failed to update user: %w", translateWriteError(err))
	}
	return nil
}

// Delete は指定IDの利用者を削除する。
// 関連するloansはCASCADE削除される。
func (r *PostgresUserRepo) Delete(ctx context.Context, id string) error {
	if err := deleteByID(ctx, r.db, tableUsers, id); err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}
	return nil
}

// compile-time interface check
var _ UserRepository = (*PostgresUserRepo)(nil)
