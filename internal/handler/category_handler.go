package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/libman/internal/model"
)

// CategoryServiceInterface は分類ハンドラーが必要とするサービスインターフェース。
type CategoryServiceInterface interface {
	Create(ctx context.Context, name, description string) (*categoryResponse, error)
	Get(ctx context.Context, id string) (*categoryResponse, error)
	// GetByName は名前の完全一致で分類を取得する。
	GetByName(ctx context.Context, name string) (*categoryResponse, error)
	List(ctx context.Context, page model.Page) ([]categoryResponse, error)
	Update(ctx context.Context, id string, patch model.CategoryPatch) (*categoryResponse, error)
	// Delete は分類を削除する。所属していた書籍は分類なしになる。
	Delete(ctx context.Context, id string) error
}

// CategoryHandler は分類管理のHTTPハンドラー。
type CategoryHandler struct {
	service CategoryServiceInterface
	errs    errorResponder
	pager   pager
}

// NewCategoryHandler はCategoryHandlerを生成する。
func NewCategoryHandler(service CategoryServiceInterface, logger *slog.Logger, pages PageConfig) *CategoryHandler {
	return &CategoryHandler{
		service: service,
		errs:    errorResponder{logger: logger},
		pager:   newPager(pages.DefaultLimit, pages.MaxLimit),
	}
}

type categoryRequest struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
}

// categoryResponse は分類情報のAPIレスポンス。
type categoryResponse struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// CreateCategory は分類登録を処理する。
// POST /api/categories
func (h *CategoryHandler) CreateCategory(w http.ResponseWriter, r *http.Request) {
	var req categoryRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	resp, err := h.service.Create(r.Context(), deref(req.Name), deref(req.Description))
	if err != nil {
		h.errs.handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, resp)
}

// GetCategory は分類を取得する。
// GET /api/categories/{id}
func (h *CategoryHandler) GetCategory(w http.ResponseWriter, r *http.Request) {
	resp, err := h.service.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.errs.handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// FindCategoryByName は名前で分類を取得する。
// GET /api/categories/search?name=
func (h *CategoryHandler) FindCategoryByName(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Query().Get("name")
	if name == "" {
		h.errs.handleServiceError(w, r, model.NewValidationError("name", "検索する名前を指定してください"))
		return
	}
	resp, err := h.service.GetByName(r.Context(), name)
	if err != nil {
		h.errs.handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// ListCategories は分類一覧を返す。
// GET /api/categories
func (h *CategoryHandler) ListCategories(w http.ResponseWriter, r *http.Request) {
	page, err := h.pager.parse(r)
	if err != nil {
		h.errs.handleServiceError(w, r, err)
		return
	}
	categories, err := h.service.List(r.Context(), page)
	if err != nil {
		h.errs.handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newListResponse(categories, page))
}

// UpdateCategory は分類を部分更新する。
// PUT /api/categories/{id}
func (h *CategoryHandler) UpdateCategory(w http.ResponseWriter, r *http.Request) {
	var req categoryRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	resp, err := h.service.Update(r.Context(), chi.URLParam(r, "id"), model.CategoryPatch{
		Name:        req.Name,
		Description: req.Description,
	})
	if err != nil {
		h.errs.handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// DeleteCategory は分類を削除する。
// DELETE /api/categories/{id}
func (h *CategoryHandler) DeleteCategory(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.errs.handleServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
