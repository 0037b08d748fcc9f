// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"
	"errors"
	"time"

	"github.com/hitoshi/libman/internal/model"
)

// ErrNotFound は更新・削除対象の行が存在しないことを表す。
// 取得系メソッドは未検出時にエラーではなくnilを返す。
var ErrNotFound = errors.New("record not found")

// ErrDuplicate は一意制約（ID、メールアドレス、分類名）に違反する書き込みを表す。
var ErrDuplicate = errors.New("duplicate key")

// BookRepository は書籍データの永続化インターフェース。
type BookRepository interface {
	// Create は書籍を作成する。
	Create(ctx context.Context, book *model.Book) error

	// FindByID は指定IDの書籍を取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Book, error)

	// FindByIDForUpdate は指定IDの書籍を行ロック付きで取得する。
	// トランザクション内でのみ意味を持つ。見つからない場合はnilを返す。
	FindByIDForUpdate(ctx context.Context, id string) (*model.Book, error)

	// List は書籍一覧をタイトル順で返す。
	List(ctx context.Context, page model.Page) ([]*model.Book, error)

	// Search は条件に一致する書籍を返す。
	Search(ctx context.Context, filter model.BookFilter, page model.Page) ([]*model.Book, error)

	// Update は書籍情報を上書き更新する。
	Update(ctx context.Context, book *model.Book) error

	// Delete は指定IDの書籍を削除する。関連する貸出はCASCADE削除される。
	Delete(ctx context.Context, id string) error
}

// UserRepository は利用者データの永続化インターフェース。
type UserRepository interface {
	// Create は利用者を作成する。
	Create(ctx context.Context, user *model.User) error

	// FindByID は指定IDの利用者を取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.User, error)

	// FindByIDForUpdate は指定IDの利用者を行ロック付きで取得する。
	// 同一利用者の貸出作成を直列化するために使用する。見つからない場合はnilを返す。
	FindByIDForUpdate(ctx context.Context, id string) (*model.User, error)

	// FindByEmail はメールアドレスで利用者を検索する。見つからない場合はnilを返す。
	FindByEmail(ctx context.Context, email string) (*model.User, error)

	// List は利用者一覧を名前順で返す。
	List(ctx context.Context, page model.Page) ([]*model.User, error)

	// Search は名前の部分一致と有効フラグで利用者を検索する。
	Search(ctx context.Context, filter model.UserFilter, page model.Page) ([]*model.User, error)

	// Update は利用者情報を上書き更新する。
	Update(ctx context.Context, user *model.User) error

	// Delete は指定IDの利用者を削除する。関連する貸出はCASCADE削除される。
	Delete(ctx context.Context, id string) error
}

// AuthorRepository は著者データの永続化インターフェース。
type AuthorRepository interface {
	Create(ctx context.Context, author *model.Author) error
	// FindByID は見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Author, error)
	List(ctx context.Context, page model.Page) ([]*model.Author, error)
	// SearchByName は名前の部分一致（大文字小文字を区別しない）で検索する。
	SearchByName(ctx context.Context, name string, page model.Page) ([]*model.Author, error)
	Update(ctx context.Context, author *model.Author) error
	Delete(ctx context.Context, id string) error
}

// CategoryRepository は分類データの永続化インターフェース。
type CategoryRepository interface {
	Create(ctx context.Context, category *model.Category) error
	// FindByID は見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Category, error)
	// FindByName は名前の完全一致で検索する。見つからない場合はnilを返す。
	FindByName(ctx context.Context, name string) (*model.Category, error)
	List(ctx context.Context, page model.Page) ([]*model.Category, error)
	Update(ctx context.Context, category *model.Category) error
	// Delete は分類を削除する。所属する書籍の分類はNULLになる。
	Delete(ctx context.Context, id string) error
}

// LoanRepository は貸出データの永続化インターフェース。
type LoanRepository interface {
	// Create は貸出を作成する。
	Create(ctx context.Context, loan *model.Loan) error

	// FindByID は指定IDの貸出を取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Loan, error)

	// FindByIDForUpdate は指定IDの貸出を行ロック付きで取得する。見つからない場合はnilを返す。
	FindByIDForUpdate(ctx context.Context, id string) (*model.Loan, error)

	// List は全貸出を貸出日の新しい順で返す。
	List(ctx context.Context, page model.Page) ([]*model.Loan, error)

	// ListByUser は利用者の貸出履歴を返す。
	ListByUser(ctx context.Context, userID string, page model.Page) ([]*model.Loan, error)

	// ListByBook は書籍の貸出履歴を返す。
	ListByBook(ctx context.Context, bookID string, page model.Page) ([]*model.Loan, error)

	// ListActive は未返却の貸出を返す。
	ListActive(ctx context.Context, page model.Page) ([]*model.Loan, error)

	// ListOverdue は未返却かつ返却期限がtodayより前の貸出を返却期限順で返す。
	ListOverdue(ctx context.Context, today time.Time, page model.Page) ([]*model.Loan, error)

	// CountActiveByUser は利用者の未返却貸出数を返す。
	CountActiveByUser(ctx context.Context, userID string) (int, error)

	// Update は貸出情報を上書き更新する。
	Update(ctx context.Context, loan *model.Loan) error
}

// Repositories はエンティティごとのリポジトリをまとめたもの。
type Repositories struct {
	Books      BookRepository
	Users      UserRepository
	Authors    AuthorRepository
	Categories CategoryRepository
	Loans      LoanRepository
}

// TxFunc はトランザクション内で実行される処理。
// reposはトランザクションに束縛されたリポジトリ。
type TxFunc func(ctx context.Context, repos Repositories) error

// UnitOfWork は複数リポジトリへの変更を単一のトランザクションとして実行する。
// fnがエラーを返した場合は全ての変更が破棄される。
type UnitOfWork interface {
	WithinTx(ctx context.Context, fn TxFunc) error
}

// Store は非トランザクションのリポジトリとUnitOfWorkを提供する。
type Store interface {
	UnitOfWork
	Repositories() Repositories
	// Ping はストレージへの疎通を確認する。
	Ping(ctx context.Context) error
}
