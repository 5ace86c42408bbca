package web

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	domainerrors "github.com/justestif/go-record-collection/internal/errors"
	"github.com/justestif/go-record-collection/internal/models"
)

// maxBodyBytes bounds JSON request bodies.
const maxBodyBytes = 1 << 20

type errorBody struct {
	Error *domainerrors.Error `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encoding response", "error", err)
	}
}

// writeError maps err to its status and JSON body. Causes of internal
// errors are logged and never sent.
func writeError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	var de *domainerrors.Error
	if !errors.As(err, &de) {
		de = domainerrors.Internal("internal error", err)
	}

	if de.Code == domainerrors.CodeInternal {
		logger.ErrorContext(r.Context(), "request failed",
			"method", r.Method,
			"path", r.URL.Path,
			"request_id", middleware.GetReqID(r.Context()),
			"error", err,
		)
	}

	writeJSON(w, de.HTTPStatus(), errorBody{Error: de})
}

// decodeJSON reads a JSON body into v, rejecting unknown fields.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()

	if err := dec.Decode(v); err != nil {
		var maxErr *http.MaxBytesError
		switch {
		case errors.As(err, &maxErr):
			return domainerrors.Validation("request body too large")
		case errors.Is(err, io.EOF):
			return domainerrors.Validation("request body is empty")
		default:
			return domainerrors.Validation(fmt.Sprintf("invalid JSON: %v", err))
		}
	}
	return nil
}

// parseFilter reads the owned and wanted query parameters.
func parseFilter(r *http.Request) (models.RecordFilter, error) {
	var filter models.RecordFilter
	q := r.URL.Query()

	for name, dst := range map[string]**bool{"owned": &filter.Owned, "wanted": &filter.Wanted} {
		v := q.Get(name)
		if v == "" {
			continue
		}
		b, err := strconv.ParseBool(v)
		if err != nil {
			return filter, domainerrors.ValidationWithDetails("invalid filter",
				map[string]string{name: "must be true or false"})
		}
		*dst = &b
	}
	return filter, nil
}

func parseID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, domainerrors.Validation("record id must be a positive integer")
	}
	return id, nil
}

func parsePositiveInt(r *http.Request, name string) (int, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, domainerrors.ValidationWithDetails("invalid query parameter",
			map[string]string{name: "must be a non-negative integer"})
	}
	return n, nil
}
