package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/libman/internal/author"
	"github.com/hitoshi/libman/internal/model"
)

// AuthorServiceInterface は著者ハンドラーが必要とするサービスインターフェース。
type AuthorServiceInterface interface {
	Create(ctx context.Context, in author.CreateInput) (*authorResponse, error)
	Get(ctx context.Context, id string) (*authorResponse, error)
	List(ctx context.Context, page model.Page) ([]authorResponse, error)
	SearchByName(ctx context.Context, name string, page model.Page) ([]authorResponse, error)
	Update(ctx context.Context, id string, patch model.AuthorPatch) (*authorResponse, error)
	Delete(ctx context.Context, id string) error
}

// AuthorHandler は著者管理のHTTPハンドラー。
type AuthorHandler struct {
	service AuthorServiceInterface
	errs    errorResponder
	pager   pager
}

// NewAuthorHandler はAuthorHandlerを生成する。
func NewAuthorHandler(service AuthorServiceInterface, logger *slog.Logger, pages PageConfig) *AuthorHandler {
	return &AuthorHandler{
		service: service,
		errs:    errorResponder{logger: logger},
		pager:   newPager(pages.DefaultLimit, pages.MaxLimit),
	}
}

type authorRequest struct {
	Name        *string `json:"name"`
	Nationality *string `json:"nationality"`
	BirthDate   *string `json:"birth_date"`
	Biography   *string `json:"biography"`
}

// authorResponse は著者情報のAPIレスポンス。
type authorResponse struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Nationality string  `json:"nationality"`
	BirthDate   *string `json:"birth_date,omitempty"`
	Biography   string  `json:"biography"`
}

// CreateAuthor は著者登録を処理する。
// POST /api/authors
func (h *AuthorHandler) CreateAuthor(w http.ResponseWriter, r *http.Request) {
	var req authorRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	birthDate, err := parseOptionalDate("birth_date", req.BirthDate)
	if err != nil {
		h.errs.handleServiceError(w, r, err)
		return
	}

	resp, err := h.service.Create(r.Context(), author.CreateInput{
		Name:        deref(req.Name),
		Nationality: deref(req.Nationality),
		BirthDate:   birthDate,
		Biography:   deref(req.Biography),
	})
	if err != nil {
		h.errs.handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, resp)
}

// GetAuthor は著者を取得する。
// GET /api/authors/{id}
func (h *AuthorHandler) GetAuthor(w http.ResponseWriter, r *http.Request) {
	resp, err := h.service.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.errs.handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// ListAuthors は著者一覧を返す。
// GET /api/authors
func (h *AuthorHandler) ListAuthors(w http.ResponseWriter, r *http.Request) {
	page, err := h.pager.parse(r)
	if err != nil {
		h.errs.handleServiceError(w, r, err)
		return
	}
	authors, err := h.service.List(r.Context(), page)
	if err != nil {
		h.errs.handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newListResponse(authors, page))
}

// SearchAuthors は名前の部分一致で著者を検索する。
// GET /api/authors/search?name=
func (h *AuthorHandler) SearchAuthors(w http.ResponseWriter, r *http.Request) {
	page, err := h.pager.parse(r)
	if err != nil {
		h.errs.handleServiceError(w, r, err)
		return
	}
	authors, err := h.service.SearchByName(r.Context(), r.URL.Query().Get("name"), page)
	if err != nil {
		h.errs.handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newListResponse(authors, page))
}

// UpdateAuthor は著者情報を部分更新する。
// PUT /api/authors/{id}
func (h *AuthorHandler) UpdateAuthor(w http.ResponseWriter, r *http.Request) {
	var req authorRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	birthDate, err := parseOptionalDate("birth_date", req.BirthDate)
	if err != nil {
		h.errs.handleServiceError(w, r, err)
		return
	}

	resp, err := h.service.Update(r.Context(), chi.URLParam(r, "id"), model.AuthorPatch{
		Name:        req.Name,
		Nationality: req.Nationality,
		BirthDate:   birthDate,
		Biography:   req.Biography,
	})
	if err != nil {
		h.errs.handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// DeleteAuthor は著者を削除する。
// DELETE /api/authors/{id}
func (h *AuthorHandler) DeleteAuthor(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.errs.handleServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
