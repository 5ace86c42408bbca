package web

import (
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/justestif/go-record-collection/internal/auth"
	domainerrors "github.com/justestif/go-record-collection/internal/errors"
	"github.com/justestif/go-record-collection/internal/importer"
	"github.com/justestif/go-record-collection/internal/models"
)

// maxImportBytes bounds uploaded import files.
const maxImportBytes = 10 << 20

// Handlers contains HTTP handlers for the API.
type Handlers struct {
	deps   Deps
	logger *slog.Logger
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(deps Deps, logger *slog.Logger) *Handlers {
	return &Handlers{deps: deps, logger: logger}
}

func (h *Handlers) fail(w http.ResponseWriter, r *http.Request, err error) {
	writeError(w, r, h.logger, err)
}

// userID returns the authenticated user. Routes using it sit behind
// auth.Middleware, so a missing id is a wiring bug.
func (h *Handlers) userID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, ok := auth.UserID(r.Context())
	if !ok {
		h.fail(w, r, domainerrors.Unauthorized("authentication required"))
	}
	return id, ok
}

// HealthCheck handles GET /health-check.
func (h *Handlers) HealthCheck(w http.ResponseWriter, r *http.Request) {
	if h.deps.Ping != nil {
		if err := h.deps.Ping(r.Context()); err != nil {
			h.logger.ErrorContext(r.Context(), "health check failed", "error", err)
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Register handles POST /auth/register.
func (h *Handlers) Register(w http.ResponseWriter, r *http.Request) {
	var req auth.RegisterRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.fail(w, r, err)
		return
	}

	sess, err := h.deps.Auth.Register(r.Context(), req)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, sess)
}

// Login handles POST /auth/login.
func (h *Handlers) Login(w http.ResponseWriter, r *http.Request) {
	var req auth.LoginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.fail(w, r, err)
		return
	}

	sess, err := h.deps.Auth.Login(r.Context(), req)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

// Me handles GET /auth/me.
func (h *Handlers) Me(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}

	user, err := h.deps.Auth.Me(r.Context(), userID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// ListRecords handles GET /records.
func (h *Handlers) ListRecords(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}
	filter, err := parseFilter(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	recs, err := h.deps.Records.List(r.Context(), userID, filter)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, recs)
}

// CreateRecord handles POST /records.
func (h *Handlers) CreateRecord(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}

	var in models.RecordInput
	if err := decodeJSON(w, r, &in); err != nil {
		h.fail(w, r, err)
		return
	}

	rec, err := h.deps.Records.Create(r.Context(), userID, in)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, rec)
}

// CreateRecords handles POST /records/batch. The body is a JSON array.
func (h *Handlers) CreateRecords(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}

	var inputs []models.RecordInput
	if err := decodeJSON(w, r, &inputs); err != nil {
		h.fail(w, r, err)
		return
	}

	recs, err := h.deps.Records.CreateMany(r.Context(), userID, inputs)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, recs)
}

// ImportRecords handles POST /records/import. The file comes either as the
// multipart field "file" or as the raw body.
func (h *Handlers) ImportRecords(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}

	body, filename, contentType, err := importSource(w, r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	defer body.Close()

	format, err := importer.DetectFormat(filename, contentType)
	if err != nil {
		h.fail(w, r, domainerrors.Validation(err.Error()))
		return
	}

	inputs, err := importer.Parse(body, format)
	if err != nil {
		var pe *importer.ParseError
		if errors.As(err, &pe) {
			h.fail(w, r, domainerrors.ValidationWithDetails("import failed", pe.Details()))
			return
		}
		h.fail(w, r, domainerrors.Validation(err.Error()))
		return
	}

	recs, err := h.deps.Records.CreateMany(r.Context(), userID, inputs)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	h.logger.InfoContext(r.Context(), "records imported", "user_id", userID, "format", format, "count", len(recs))
	writeJSON(w, http.StatusCreated, recs)
}

func importSource(w http.ResponseWriter, r *http.Request) (io.ReadCloser, string, string, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxImportBytes)

	if err := r.ParseMultipartForm(maxImportBytes); err == nil {
		file, header, err := r.FormFile("file")
		if err != nil {
			return nil, "", "", domainerrors.Validation("multipart field \"file\" is required")
		}
		return file, header.Filename, header.Header.Get("Content-Type"), nil
	} else if !errors.Is(err, http.ErrNotMultipart) {
		return nil, "", "", domainerrors.Validation("invalid multipart body")
	}

	return r.Body, r.URL.Query().Get("filename"), r.Header.Get("Content-Type"), nil
}

// RandomRecord handles GET /records/random. 204 when nothing matches.
func (h *Handlers) RandomRecord(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}
	filter, err := parseFilter(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	rec, err := h.deps.Records.Random(r.Context(), userID, filter)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if rec == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// SearchCatalog handles GET /records/search.
func (h *Handlers) SearchCatalog(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.userID(w, r); !ok {
		return
	}
	limit, err := parsePositiveInt(r, "limit")
	if err != nil {
		h.fail(w, r, err)
		return
	}

	results, err := h.deps.Catalog.Search(r.Context(), r.URL.Query().Get("q"), limit)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, results)
}

// Eras handles GET /records/eras.
func (h *Handlers) Eras(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}
	filter, err := parseFilter(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	k, err := parsePositiveInt(r, "k")
	if err != nil {
		h.fail(w, r, err)
		return
	}

	res, err := h.deps.Eras.ForUser(r.Context(), userID, filter, k)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// GetRecord handles GET /records/{id}.
func (h *Handlers) GetRecord(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}
	id, err := parseID(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	rec, err := h.deps.Records.Get(r.Context(), userID, id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// DeleteRecord handles DELETE /records/{id}.
func (h *Handlers) DeleteRecord(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}
	id, err := parseID(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	if err := h.deps.Records.Delete(r.Context(), userID, id); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GetToken handles GET /records/collection/tokens.
func (h *Handlers) GetToken(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}

	tok, err := h.deps.Collection.UserToken(r.Context(), userID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, tok)
}

// CreateToken handles POST /records/collection/tokens.
func (h *Handlers) CreateToken(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}

	tok, err := h.deps.Collection.CreateToken(r.Context(), userID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, tok)
}

// DeleteToken handles DELETE /records/collection/tokens/{token}.
func (h *Handlers) DeleteToken(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}

	if err := h.deps.Collection.DeleteToken(r.Context(), userID, chi.URLParam(r, "token")); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// RevokeTokens handles DELETE /records/collection/tokens, removing every
// token the user holds.
func (h *Handlers) RevokeTokens(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}

	if err := h.deps.Collection.RevokeAll(r.Context(), userID); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GetCollection handles GET /records/collection/{token}. No account needed.
func (h *Handlers) GetCollection(w http.ResponseWriter, r *http.Request) {
	filter, err := parseFilter(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	recs, err := h.deps.Collection.GetCollection(r.Context(), chi.URLParam(r, "token"), filter)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, recs)
}

// ListTags handles GET /tags.
func (h *Handlers) ListTags(w http.ResponseWriter, r *http.Request) {
	tags, err := h.deps.Tags.List(r.Context())
	if err != nil {
		h.fail(w, r, domainerrors.Internal("internal error", err))
		return
	}
	writeJSON(w, http.StatusOK, tags)
}
