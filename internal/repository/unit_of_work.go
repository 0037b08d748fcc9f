package repository

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jmoiron/sqlx"
)

// PostgresStore はPostgreSQLを使用したStore実装。
type PostgresStore struct {
	db          *sqlx.DB
	logger      *slog.Logger
	maxAttempts int
}

// NewPostgresStore はPostgresStoreを生成する。
// maxAttemptsは一時的なエラー発生時のトランザクション最大実行回数。
func NewPostgresStore(db *sqlx.DB, logger *slog.Logger, maxAttempts int) *PostgresStore {
	return &PostgresStore{db: db, logger: logger, maxAttempts: maxAttempts}
}

// Repositories はコネクションプールに束縛されたリポジトリを返す。
func (s *PostgresStore) Repositories() Repositories {
	return newPostgresRepositories(s.db)
}

func newPostgresRepositories(db sqlx.ExtContext) Repositories {
	return Repositories{
		Books:      NewPostgresBookRepo(db),
		Users:      NewPostgresUserRepo(db),
		Authors:    NewPostgresAuthorRepo(db),
		Categories: NewPostgresCategoryRepo(db),
		Loans:      NewPostgresLoanRepo(db),
	}
}

// Ping はデータベースへの疎通を確認する。
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// WithinTx はfnを単一トランザクション内で実行する。
// fnがエラーを返した場合はロールバックし、成功した場合はコミットする。
// シリアライズ失敗やデッドロックなどの一時的なエラーはトランザクションごと再実行する。
func (s *PostgresStore) WithinTx(ctx context.Context, fn TxFunc) error {
	return withRetry(ctx, s.maxAttempts, func(ctx context.Context) error {
		return s.runTx(ctx, fn)
	}, func(attempt int, err error) {
		s.logger.Warn("トランザクションを再実行します",
			slog.Int("attempt", attempt),
			slog.String("error", err.Error()),
		)
	})
}

func (s *PostgresStore) runTx(ctx context.Context, fn TxFunc) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(ctx, newPostgresRepositories(tx)); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// compile-time interface check
var _ Store = (*PostgresStore)(nil)
