package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/hitoshi/libman/internal/model"
)

// dialect は動的クエリの組み立てに使用するgoquのPostgreSQL方言。
var dialect = goqu.Dialect("postgres")

// uniqueViolation はPostgreSQLの一意制約違反のエラーコード。
const uniqueViolation = "23505"

// translateWriteError は一意制約違反をErrDuplicateに変換する。それ以外はそのまま返す。
func translateWriteError(err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
		return fmt.Errorf("%w: %s", ErrDuplicate, pqErr.Constraint)
	}
	return err
}

// getOne は1行を取得する。行が存在しない場合はfalseを返す。
func getOne(ctx context.Context, db sqlx.QueryerContext, dest any, query string, args ...any) (bool, error) {
	err := sqlx.GetContext(ctx, db, dest, query, args...)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// selectDataset はgoquのデータセットをプレースホルダ付きSQLに変換して実行する。
func selectDataset(ctx context.Context, db sqlx.QueryerContext, dest any, ds *goqu.SelectDataset) error {
	query, args, err := ds.Prepared(true).ToSQL()
	if err != nil {
		return fmt.Errorf("failed to build query: %w", err)
	}
	return sqlx.SelectContext(ctx, db, dest, query, args...)
}

// namedExecAffecting は名前付きパラメータのSQLを実行し、影響行数が0ならErrNotFoundを返す。
func namedExecAffecting(ctx context.Context, db sqlx.ExtContext, query string, arg any) error {
	result, err := sqlx.NamedExecContext(ctx, db, query, arg)
	if err != nil {
		return err
	}
	return checkAffected(result)
}

// deleteByID は指定テーブルから1行を削除する。
func deleteByID(ctx context.Context, db sqlx.ExecerContext, table, id string) error {
	query, args, err := dialect.Delete(table).Where(goqu.C("id").Eq(id)).Prepared(true).ToSQL()
	if err != nil {
		return fmt.Errorf("failed to build query: %w", err)
	}
	result, err := db.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	return checkAffected(result)
}

func checkAffected(result sql.Result) error {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// paged はデータセットにOFFSET/LIMITを適用する。
func paged(ds *goqu.SelectDataset, page model.Page) *goqu.SelectDataset {
	if page.Offset > 0 {
		ds = ds.Offset(uint(page.Offset))
	}
	if page.Limit > 0 {
		ds = ds.Limit(uint(page.Limit))
	}
	return ds
}

// containsPattern はILIKE用の部分一致パターンを返す。ワイルドカード文字はエスケープする。
func containsPattern(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + r.Replace(s) + "%"
}

func columns(names ...string) []any {
	cols := make([]any, len(names))
	for i, n := range names {
		cols[i] = n
	}
	return cols
}
