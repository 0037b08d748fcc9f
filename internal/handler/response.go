// Package handler は図書館APIのHTTPハンドラーを提供する。
package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/hitoshi/libman/internal/middleware"
	"github.com/hitoshi/libman/internal/model"
)

// dateLayout はAPIで扱う日付の形式。
const dateLayout = "2006-01-02"

// listResponse は一覧系APIの共通レスポンス。
type listResponse[T any] struct {
	Items  []T `json:"items"`
	Offset int `json:"offset"`
	Limit  int `json:"limit"`
}

func newListResponse[T any](items []T, page model.Page) listResponse[T] {
	if items == nil {
		items = []T{}
	}
	return listResponse[T]{Items: items, Offset: page.Offset, Limit: page.Limit}
}

// writeJSON はJSONレスポンスを書き込む。
func writeJSON(w http.ResponseWriter, statusCode int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(body)
}

// decodeJSON はリクエストボディをdstにデコードする。
// 失敗した場合はINVALID_REQUESTのレスポンスを書き込みfalseを返す。
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, &model.APIError{
			Code:     "INVALID_REQUEST",
			Message:  "リクエストの形式が不正です。",
			Category: model.CategoryValidation,
			Action:   "リクエストボディを確認してください。",
		})
		return false
	}
	return true
}

// errorResponder はサービス層のエラーをHTTPレスポンスに変換する。
type errorResponder struct {
	logger *slog.Logger
}

// handleServiceError はサービス層から返されたエラーを適切なHTTPステータスコードに変換する。
// 分類できないエラーはリクエスト情報付きでログに記録し、利用者には詳細を返さない。
func (e errorResponder) handleServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var vErr *model.ValidationError
	if errors.As(err, &vErr) {
		middleware.WriteValidationErrorResponse(w, vErr)
		return
	}

	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		if status, ok := statusForCategory(apiErr.Category); ok {
			middleware.WriteErrorResponse(w, status, apiErr)
			return
		}
	}

	e.logger.Error("internal server error",
		slog.String("method", r.Method),
		slog.String("path", r.URL.Path),
		slog.String("request_id", chimw.GetReqID(r.Context())),
		slog.String("error", err.Error()),
	)
	middleware.WriteInternalServerError(w)
}

// statusForCategory はエラーカテゴリからHTTPステータスコードにマッピングする。
func statusForCategory(category string) (int, bool) {
	switch category {
	case model.CategoryNotFound:
		return http.StatusNotFound, true
	case model.CategoryValidation, model.CategoryBusinessRule:
		return http.StatusBadRequest, true
	default:
		return 0, false
	}
}

// pager はクエリパラメータoffset, limitからページ指定を組み立てる。
type pager struct {
	defaultLimit int
	maxLimit     int
}

func newPager(defaultLimit, maxLimit int) pager {
	if defaultLimit <= 0 {
		defaultLimit = 100
	}
	if maxLimit <= 0 {
		maxLimit = 500
	}
	return pager{defaultLimit: defaultLimit, maxLimit: maxLimit}
}

// parse はページ指定を解析する。負数や数値以外は入力検証エラーになる。
func (p pager) parse(r *http.Request) (model.Page, error) {
	offset, err := queryInt(r, "offset")
	if err != nil {
		return model.Page{}, err
	}
	limit, err := queryInt(r, "limit")
	if err != nil {
		return model.Page{}, err
	}
	page := model.Page{}
	if offset != nil {
		page.Offset = *offset
	}
	if limit != nil {
		page.Limit = *limit
	}
	return page.Normalize(p.defaultLimit, p.maxLimit), nil
}

// queryInt は0以上の整数のクエリパラメータを解析する。未指定の場合はnilを返す。
func queryInt(r *http.Request, name string) (*int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return nil, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return nil, model.NewValidationError(name, "0以上の整数で指定してください")
	}
	return &n, nil
}

// queryBool は真偽値のクエリパラメータを解析する。未指定の場合はnilを返す。
func queryBool(r *http.Request, name string) (*bool, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return nil, nil
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		return nil, model.NewValidationError(name, "true または false で指定してください")
	}
	return &b, nil
}

// parseDate はYYYY-MM-DD形式の日付を解析する。
func parseDate(field, raw string) (time.Time, error) {
	t, err := time.Parse(dateLayout, raw)
	if err != nil {
		return time.Time{}, model.NewValidationError(field, "YYYY-MM-DD形式で指定してください")
	}
	return t, nil
}

// parseOptionalDate はnilまたは空文字の場合にnilを返すparseDate。
func parseOptionalDate(field string, raw *string) (*time.Time, error) {
	if raw == nil || *raw == "" {
		return nil, nil
	}
	t, err := parseDate(field, *raw)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func formatDate(t time.Time) string {
	return t.Format(dateLayout)
}

func formatOptionalDate(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := formatDate(*t)
	return &s
}
