package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/hitoshi/libman/internal/metrics"
	"github.com/hitoshi/libman/internal/middleware"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	Logger *slog.Logger

	// ミドルウェア依存
	CORSAllowedOrigin string
	RateLimiter       *middleware.RateLimiter
	Metrics           middleware.HTTPStatusRecorder
	// Gatherer が指定された場合は /metrics を公開する。
	Gatherer prometheus.Gatherer

	HealthChecker HealthChecker
	Pages         PageConfig

	BookService     BookServiceInterface
	UserService     UserServiceInterface
	AuthorService   AuthorServiceInterface
	CategoryService CategoryServiceInterface
	LoanService     LoanServiceInterface
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	Recovery → RequestID → RealIP → SecurityHeaders → CORS → Logging → Metrics
//
// /api 以下にはさらに RateLimit(General) を適用し、貸出作成・返却には
// RateLimit(LoanOperation) を追加する。
func NewRouter(deps *RouterDeps) http.Handler {
	logger := deps.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	r := chi.NewRouter()

	r.Use(middleware.NewRecoveryMiddleware(logger))
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))
	r.Use(middleware.NewLoggingMiddleware(logger))
	if deps.Metrics != nil {
		r.Use(middleware.NewMetricsMiddleware(deps.Metrics))
	}

	bookHandler := NewBookHandler(deps.BookService, logger, deps.Pages)
	userHandler := NewUserHandler(deps.UserService, logger, deps.Pages)
	authorHandler := NewAuthorHandler(deps.AuthorService, logger, deps.Pages)
	categoryHandler := NewCategoryHandler(deps.CategoryService, logger, deps.Pages)
	loanHandler := NewLoanHandler(deps.LoanService, logger, deps.Pages)

	if deps.HealthChecker != nil {
		r.Get("/health", NewHealthHandler(deps.HealthChecker, logger))
	}
	if deps.Gatherer != nil {
		r.Handle("/metrics", metrics.Handler(deps.Gatherer))
	}

	r.Route("/api", func(r chi.Router) {
		if deps.RateLimiter != nil {
			r.Use(deps.RateLimiter.GeneralMiddleware())
		}

		// 書籍
		r.Route("/books", func(r chi.Router) {
			r.Post("/", bookHandler.CreateBook)
			r.Get("/", bookHandler.ListBooks)
			r.Get("/search", bookHandler.SearchBooks)
			r.Get("/available", bookHandler.ListAvailableBooks)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", bookHandler.GetBook)
				r.Put("/", bookHandler.UpdateBook)
				r.Delete("/", bookHandler.DeleteBook)
				r.Get("/loans", loanHandler.ListBookLoans)
			})
		})

		// 利用者
		r.Route("/users", func(r chi.Router) {
			r.Post("/", userHandler.CreateUser)
			r.Get("/", userHandler.ListUsers)
			r.Get("/search", userHandler.SearchUsers)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", userHandler.GetUser)
				r.Put("/", userHandler.UpdateUser)
				r.Delete("/", userHandler.DeleteUser)
				r.Get("/loans", loanHandler.ListUserLoans)
			})
		})

		// 著者
		r.Route("/authors", func(r chi.Router) {
			r.Post("/", authorHandler.CreateAuthor)
			r.Get("/", authorHandler.ListAuthors)
			r.Get("/search", authorHandler.SearchAuthors)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", authorHandler.GetAuthor)
				r.Put("/", authorHandler.UpdateAuthor)
				r.Delete("/", authorHandler.DeleteAuthor)
			})
		})

		// 分類
		r.Route("/categories", func(r chi.Router) {
			r.Post("/", categoryHandler.CreateCategory)
			r.Get("/", categoryHandler.ListCategories)
			r.Get("/search", categoryHandler.FindCategoryByName)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", categoryHandler.GetCategory)
				r.Put("/", categoryHandler.UpdateCategory)
				r.Delete("/", categoryHandler.DeleteCategory)
			})
		})

		// 貸出
		r.Route("/loans", func(r chi.Router) {
			loanOps := func(h http.HandlerFunc) http.Handler {
				if deps.RateLimiter == nil {
					return h
				}
				return deps.RateLimiter.LoanOperationMiddleware()(h)
			}

			r.Method(http.MethodPost, "/", loanOps(loanHandler.CreateLoan))
			r.Get("/", loanHandler.ListLoans)
			r.Get("/active", loanHandler.ListActiveLoans)
			r.Get("/overdue", loanHandler.ListOverdueLoans)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", loanHandler.GetLoan)
				r.Method(http.MethodPost, "/return", loanOps(loanHandler.ReturnLoan))
				r.Get("/fine", loanHandler.GetFine)
			})
		})
	})

	return r
}
