package files

import (
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/wisbric/chatowl/internal/auth"
	"github.com/wisbric/chatowl/internal/httpserver"
)

// maxUploadSize bounds file uploads (20 MiB).
const maxUploadSize = 20 << 20

// Handler provides HTTP handlers for the files API.
type Handler struct {
	storage Storage
	logger  *slog.Logger
}

// NewHandler creates a files Handler.
func NewHandler(storage Storage, logger *slog.Logger) *Handler {
	return &Handler{storage: storage, logger: logger}
}

// Routes returns a chi.Router with all file routes mounted.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/", h.handleUpload)
	r.Get("/{id}", h.handleDownload)
	return r
}

func (h *Handler) handleUpload(w http.ResponseWriter, r *http.Request) {
	id := auth.FromContext(r.Context())

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize)
	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		httpserver.RespondError(w, http.StatusBadRequest, "bad_request", "invalid multipart body")
		return
	}

	part, header, err := r.FormFile("file")
	if err != nil {
		httpserver.RespondError(w, http.StatusBadRequest, "bad_request", "missing file field")
		return
	}
	defer part.Close()

	content, err := io.ReadAll(part)
	if err != nil {
		httpserver.RespondError(w, http.StatusBadRequest, "bad_request", "reading file content")
		return
	}

	contentType := header.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	f, err := h.storage.Create(r.Context(), id.UserID, header.Filename, contentType, content)
	if err != nil {
		h.logger.Error("storing file", "error", err, "user_id", id.UserID)
		httpserver.RespondError(w, http.StatusInternalServerError, "internal_error", "failed to store file")
		return
	}

	httpserver.Respond(w, http.StatusCreated, map[string]any{
		"id":           f.ID,
		"name":         f.Name,
		"content_type": f.ContentType,
		"size":         f.Size,
	})
}

func (h *Handler) handleDownload(w http.ResponseWriter, r *http.Request) {
	fileID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpserver.RespondError(w, http.StatusBadRequest, "bad_request", "invalid file ID")
		return
	}

	id := auth.FromContext(r.Context())
	f, err := h.storage.Get(r.Context(), id.UserID, fileID)
	if err != nil {
		switch {
		case errors.Is(err, ErrNotFound):
			httpserver.RespondError(w, http.StatusNotFound, "not_found", "file not found")
		case errors.Is(err, ErrNotPermitted):
			httpserver.RespondError(w, http.StatusForbidden, "forbidden", "file access not permitted")
		default:
			h.logger.Error("getting file", "error", err, "file_id", fileID)
			httpserver.RespondError(w, http.StatusInternalServerError, "internal_error", "failed to get file")
		}
		return
	}

	w.Header().Set("Content-Type", f.ContentType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+f.Name+`"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(f.Content)
}
