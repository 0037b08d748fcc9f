package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/libman/internal/model"
	"github.com/hitoshi/libman/internal/user"
)

// UserServiceInterface は利用者ハンドラーが必要とするサービスインターフェース。
type UserServiceInterface interface {
	Create(ctx context.Context, in user.CreateInput) (*userResponse, error)
	Get(ctx context.Context, id string) (*userResponse, error)
	List(ctx context.Context, page model.Page) ([]userResponse, error)
	// Search は名前の部分一致と有効フラグで利用者を検索する。
	Search(ctx context.Context, filter model.UserFilter, page model.Page) ([]userResponse, error)
	Update(ctx context.Context, id string, patch model.UserPatch) (*userResponse, error)
	// Delete は利用者を削除する。貸出履歴も削除される。
	Delete(ctx context.Context, id string) error
}

// UserHandler は利用者管理のHTTPハンドラー。
type UserHandler struct {
	service UserServiceInterface
	errs    errorResponder
	pager   pager
}

// NewUserHandler はUserHandlerを生成する。
func NewUserHandler(service UserServiceInterface, logger *slog.Logger, pages PageConfig) *UserHandler {
	return &UserHandler{
		service: service,
		errs:    errorResponder{logger: logger},
		pager:   newPager(pages.DefaultLimit, pages.MaxLimit),
	}
}

// createUserRequest は利用者登録リクエストのボディ。
type createUserRequest struct {
	Name      string `json:"name"`
	Email     string `json:"email"`
	BirthDate string `json:"birth_date"`
	Active    *bool  `json:"active"`
}

// updateUserRequest は利用者更新リクエストのボディ。
type updateUserRequest struct {
	Name      *string `json:"name"`
	Email     *string `json:"email"`
	BirthDate *string `json:"birth_date"`
	Active    *bool   `json:"active"`
}

// userResponse は利用者情報のAPIレスポンス。
type userResponse struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	BirthDate string    `json:"birth_date"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// CreateUser は利用者登録を処理する。
// POST /api/users
func (h *UserHandler) CreateUser(w http.ResponseWriter, r *http.Request) {
	var req createUserRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	birthDate, err := parseDate("birth_date", req.BirthDate)
	if err != nil {
		h.errs.handleServiceError(w, r, err)
		return
	}

	resp, err := h.service.Create(r.Context(), user.CreateInput{
		Name:      req.Name,
		Email:     req.Email,
		BirthDate: birthDate,
		Active:    req.Active,
	})
	if err != nil {
		h.errs.handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, resp)
}

// GetUser は利用者を取得する。
// GET /api/users/{id}
func (h *UserHandler) GetUser(w http.ResponseWriter, r *http.Request) {
	resp, err := h.service.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.errs.handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// ListUsers は利用者一覧を返す。
// GET /api/users?offset=&limit=
func (h *UserHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	page, err := h.pager.parse(r)
	if err != nil {
		h.errs.handleServiceError(w, r, err)
		return
	}

	users, err := h.service.List(r.Context(), page)
	if err != nil {
		h.errs.handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newListResponse(users, page))
}

// SearchUsers は名前と有効フラグで利用者を検索する。
// GET /api/users/search?name=&active=
func (h *UserHandler) SearchUsers(w http.ResponseWriter, r *http.Request) {
	page, err := h.pager.parse(r)
	if err != nil {
		h.errs.handleServiceError(w, r, err)
		return
	}
	active, err := queryBool(r, "active")
	if err != nil {
		h.errs.handleServiceError(w, r, err)
		return
	}

	users, err := h.service.Search(r.Context(), model.UserFilter{
		NameContains: r.URL.Query().Get("name"),
		Active:       active,
	}, page)
	if err != nil {
		h.errs.handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newListResponse(users, page))
}

// UpdateUser は利用者情報を部分更新する。
// PUT /api/users/{id}
func (h *UserHandler) UpdateUser(w http.ResponseWriter, r *http.Request) {
	var req updateUserRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	patch := model.UserPatch{
		Name:   req.Name,
		Email:  req.Email,
		Active: req.Active,
	}
	if req.BirthDate != nil {
		birthDate, err := parseDate("birth_date", *req.BirthDate)
		if err != nil {
			h.errs.handleServiceError(w, r, err)
			return
		}
		patch.BirthDate = &birthDate
	}

	resp, err := h.service.Update(r.Context(), chi.URLParam(r, "id"), patch)
	if err != nil {
		h.errs.handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// DeleteUser は利用者を削除する。
// DELETE /api/users/{id}
func (h *UserHandler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.errs.handleServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
