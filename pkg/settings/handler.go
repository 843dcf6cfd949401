// Package settings exposes the per-user integration settings the web UI
// reads and writes.
package settings

import (
	"crypto/subtle"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/wisbric/chatowl/internal/auth"
	"github.com/wisbric/chatowl/internal/httpserver"
	"github.com/wisbric/chatowl/pkg/hostconfig"
)

// AdminTokenHeader authorizes instance-level settings writes.
const AdminTokenHeader = "X-Admin-Token"

// Handler serves the personal and admin settings endpoints.
type Handler struct {
	cfg        hostconfig.Store
	adminToken string
	logger     *slog.Logger
}

// NewHandler creates a settings Handler. adminToken guards the admin routes;
// when empty, admin writes are rejected outright.
func NewHandler(cfg hostconfig.Store, adminToken string, logger *slog.Logger) *Handler {
	return &Handler{cfg: cfg, adminToken: adminToken, logger: logger}
}

// Routes returns the settings routes.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/", h.handleGet)
	r.Put("/", h.handlePut)
	r.Put("/admin", h.handlePutAdmin)
	return r
}

// Settings is the personal settings document. The API token is write-only;
// reads report only whether one is stored.
type Settings struct {
	URL                    string `json:"url"`
	UserName               string `json:"user_name"`
	TokenSet               bool   `json:"token_set"`
	WebhooksEnabled        bool   `json:"webhooks_enabled"`
	CalendarCreatedWebhook string `json:"calendar_event_created_webhook"`
	CalendarUpdatedWebhook string `json:"calendar_event_updated_webhook"`
	WebhookSecret          string `json:"webhook_secret"`
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	id := auth.FromContext(r.Context())
	ctx := r.Context()

	var s Settings
	var err error
	read := func(key string) string {
		if err != nil {
			return ""
		}
		var v string
		v, err = h.cfg.GetUserValue(ctx, id.UserID, key)
		return v
	}

	s.URL = read(hostconfig.KeyURL)
	s.UserName = read(hostconfig.KeyUserName)
	s.TokenSet = read(hostconfig.KeyToken) != ""
	s.WebhooksEnabled = read(hostconfig.KeyWebhooksEnabled) == "1"
	s.CalendarCreatedWebhook = read(hostconfig.KeyCalendarCreatedWebhook)
	s.CalendarUpdatedWebhook = read(hostconfig.KeyCalendarUpdatedWebhook)
	s.WebhookSecret = read(hostconfig.KeyWebhookSecret)
	if err != nil {
		h.logger.Error("reading settings", "error", err, "user_id", id.UserID)
		httpserver.RespondError(w, http.StatusInternalServerError, "internal_error", "reading settings failed")
		return
	}

	httpserver.Respond(w, http.StatusOK, s)
}

// UpdateRequest carries a partial settings write. Absent fields are left
// untouched; an empty string clears the value.
type UpdateRequest struct {
	URL                    *string `json:"url"`
	UserName               *string `json:"user_name"`
	Token                  *string `json:"token"`
	WebhooksEnabled        *bool   `json:"webhooks_enabled"`
	CalendarCreatedWebhook *string `json:"calendar_event_created_webhook"`
	CalendarUpdatedWebhook *string `json:"calendar_event_updated_webhook"`
	WebhookSecret          *string `json:"webhook_secret"`
}

func (h *Handler) handlePut(w http.ResponseWriter, r *http.Request) {
	id := auth.FromContext(r.Context())
	ctx := r.Context()

	var req UpdateRequest
	if !httpserver.DecodeAndValidate(w, r, &req) {
		return
	}

	writes := map[string]*string{
		hostconfig.KeyUserName:               req.UserName,
		hostconfig.KeyToken:                  req.Token,
		hostconfig.KeyCalendarCreatedWebhook: req.CalendarCreatedWebhook,
		hostconfig.KeyCalendarUpdatedWebhook: req.CalendarUpdatedWebhook,
		hostconfig.KeyWebhookSecret:          req.WebhookSecret,
	}
	if req.URL != nil {
		trimmed := strings.TrimRight(*req.URL, "/")
		writes[hostconfig.KeyURL] = &trimmed
	}
	if req.WebhooksEnabled != nil {
		v := "0"
		if *req.WebhooksEnabled {
			v = "1"
		}
		writes[hostconfig.KeyWebhooksEnabled] = &v
	}

	for key, value := range writes {
		if value == nil {
			continue
		}
		if err := h.cfg.SetUserValue(ctx, id.UserID, key, *value); err != nil {
			h.logger.Error("writing setting", "error", err, "key", key, "user_id", id.UserID)
			httpserver.RespondError(w, http.StatusInternalServerError, "internal_error", "writing settings failed")
			return
		}
	}

	h.handleGet(w, r)
}

// AdminUpdateRequest carries instance-level settings.
type AdminUpdateRequest struct {
	OAuthInstanceURL *string `json:"oauth_instance_url"`
}

func (h *Handler) handlePutAdmin(w http.ResponseWriter, r *http.Request) {
	if !h.authorizeAdmin(r) {
		httpserver.RespondError(w, http.StatusForbidden, "forbidden", "admin token required")
		return
	}

	var req AdminUpdateRequest
	if !httpserver.DecodeAndValidate(w, r, &req) {
		return
	}

	if req.OAuthInstanceURL != nil {
		trimmed := strings.TrimRight(*req.OAuthInstanceURL, "/")
		if err := h.cfg.SetAppValue(r.Context(), hostconfig.KeyOAuthInstanceURL, trimmed); err != nil {
			h.logger.Error("writing app setting", "error", err, "key", hostconfig.KeyOAuthInstanceURL)
			httpserver.RespondError(w, http.StatusInternalServerError, "internal_error", "writing settings failed")
			return
		}
	}

	value, err := h.cfg.GetAppValue(r.Context(), hostconfig.KeyOAuthInstanceURL)
	if err != nil {
		httpserver.RespondError(w, http.StatusInternalServerError, "internal_error", "reading settings failed")
		return
	}
	httpserver.Respond(w, http.StatusOK, map[string]string{"oauth_instance_url": value})
}

func (h *Handler) authorizeAdmin(r *http.Request) bool {
	if h.adminToken == "" {
		return false
	}
	got := r.Header.Get(AdminTokenHeader)
	return subtle.ConstantTimeCompare([]byte(got), []byte(h.adminToken)) == 1
}
