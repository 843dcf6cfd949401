package share

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/wisbric/chatowl/internal/httpserver"
	"github.com/wisbric/chatowl/pkg/files"
)

// Handler serves public share links. It is mounted outside the
// authenticated API; possession of the token grants access.
type Handler struct {
	service *Service
	logger  *slog.Logger
}

// NewHandler creates a share Handler.
func NewHandler(service *Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Routes returns a chi.Router with the public share route mounted.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/{token}", h.handleGet)
	return r
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	token := chi.URLParam(r, "token")
	password := r.URL.Query().Get("password")

	f, err := h.service.Resolve(r.Context(), token, password)
	if err != nil {
		switch {
		case errors.Is(err, ErrNotFound), errors.Is(err, files.ErrNotFound):
			httpserver.RespondError(w, http.StatusNotFound, "not_found", "share not found")
		case errors.Is(err, ErrExpired):
			httpserver.RespondError(w, http.StatusGone, "gone", "share link expired")
		case errors.Is(err, ErrPasswordRequired):
			httpserver.RespondError(w, http.StatusUnauthorized, "unauthorized", "password required or incorrect")
		default:
			h.logger.Error("resolving share", "error", err)
			httpserver.RespondError(w, http.StatusInternalServerError, "internal_error", "failed to resolve share")
		}
		return
	}

	w.Header().Set("Content-Type", f.ContentType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+f.Name+`"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(f.Content)
}
