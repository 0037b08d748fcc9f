// Package memory はプロセス内メモリ上のStore実装を提供する。
// 開発用のSTORAGE_DRIVER=memoryとテストで使用する。
package memory

import (
	"context"
	"maps"
	"sync"

	"github.com/hitoshi/libman/internal/model"
	"github.com/hitoshi/libman/internal/repository"
)

// ErrDuplicate は一意制約に違反する書き込みを表す。
var ErrDuplicate = repository.ErrDuplicate

type state struct {
	books      map[string]model.Book
	users      map[string]model.User
	authors    map[string]model.Author
	categories map[string]model.Category
	loans      map[string]model.Loan
}

func newState() *state {
	return &state{
		books:      make(map[string]model.Book),
		users:      make(map[string]model.User),
		authors:    make(map[string]model.Author),
		categories: make(map[string]model.Category),
		loans:      make(map[string]model.Loan),
	}
}

func (s *state) clone() *state {
	return &state{
		books:      maps.Clone(s.books),
		users:      maps.Clone(s.users),
		authors:    maps.Clone(s.authors),
		categories: maps.Clone(s.categories),
		loans:      maps.Clone(s.loans),
	}
}

// accessor は状態への排他アクセスを提供する。
type accessor func(fn func(st *state) error) error

// Store はメモリ上のStore実装。
// トランザクションはストア全体のミューテックスで直列化され、
// 状態のコピーに対して実行した結果をコミット時に置き換える。
type Store struct {
	mu   sync.Mutex
	data *state
}

// NewStore は空のStoreを生成する。
func NewStore() *Store {
	return &Store{data: newState()}
}

func (s *Store) lockedAccess(fn func(st *state) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(s.data)
}

// Repositories は操作ごとにロックを取得するリポジトリを返す。
func (s *Store) Repositories() repository.Repositories {
	return newRepositories(s.lockedAccess)
}

// Ping は常に成功する。
func (s *Store) Ping(ctx context.Context) error {
	return ctx.Err()
}

// WithinTx はfnをストア全体のロック下で実行する。
// fnがエラーを返した場合、fn内の変更は全て破棄される。
func (s *Store) WithinTx(ctx context.Context, fn repository.TxFunc) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	work := s.data.clone()
	txAccess := func(f func(st *state) error) error { return f(work) }
	if err := fn(ctx, newRepositories(txAccess)); err != nil {
		return err
	}
	s.data = work
	return nil
}

func newRepositories(access accessor) repository.Repositories {
	return repository.Repositories{
		Books:      &bookRepo{access: access},
		Users:      &userRepo{access: access},
		Authors:    &authorRepo{access: access},
		Categories: &categoryRepo{access: access},
		Loans:      &loanRepo{access: access},
	}
}

// compile-time interface check
var _ repository.Store = (*Store)(nil)
