package utils

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/KAsare1/slotbook-server/apperror"
	"github.com/gorilla/mux"
)

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
	// MaxPage keeps (page-1)*page_size far from integer overflow.
	MaxPage = 100000
)

func WriteJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// WriteError renders err as {error, kind, fields}. Internal errors are logged and their detail hidden.
func WriteError(w http.ResponseWriter, r *http.Request, err error) {
	var appErr *apperror.Error
	if !errors.As(err, &appErr) {
		appErr = apperror.Internal(err, "internal server error")
	}
	if appErr.Kind == apperror.KindInternal {
		slog.ErrorContext(r.Context(), "request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		appErr = &apperror.Error{Kind: apperror.KindInternal, Message: "internal server error"}
	}
	WriteJSON(w, apperror.HTTPStatus(appErr.Kind), appErr)
}

func ParseJSON(r *http.Request, v interface{}) error {
	if r.Body == nil {
		return apperror.Validation("request body is required")
	}
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return apperror.Validation("request body is required")
		}
		return apperror.Validation("invalid request body: %v", err)
	}
	return nil
}

func PathID(r *http.Request, name string) (uint, error) {
	id, err := strconv.ParseUint(mux.Vars(r)[name], 10, 64)
	if err != nil || id == 0 {
		return 0, apperror.Validation("invalid %s", name).WithField(name, "must be a positive integer")
	}
	return uint(id), nil
}

// Pagination reads page and page_size, clamping both to sane bounds.
func Pagination(r *http.Request) (page, pageSize int) {
	page, _ = strconv.Atoi(r.URL.Query().Get("page"))
	if page < 1 {
		page = 1
	}
	if page > MaxPage {
		page = MaxPage
	}
	pageSize, _ = strconv.Atoi(r.URL.Query().Get("page_size"))
	if pageSize < 1 {
		pageSize = DefaultPageSize
	}
	if pageSize > MaxPageSize {
		pageSize = MaxPageSize
	}
	return page, pageSize
}

func TotalPages(total int64, pageSize int) int64 {
	return (total + int64(pageSize) - 1) / int64(pageSize)
}
