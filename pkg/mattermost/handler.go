package mattermost

import (
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/wisbric/chatowl/internal/auth"
	"github.com/wisbric/chatowl/internal/httpserver"
	"github.com/wisbric/chatowl/pkg/share"
)

// avatarCacheSeconds is the cache lifetime for served avatars (24 hours).
const avatarCacheSeconds = 60 * 60 * 24

// expirationDateLayout is the host's date grammar for share expiration.
const expirationDateLayout = "2006-01-02"

// Handler maps inbound web requests to Mattermost service operations.
type Handler struct {
	service       *Service
	publicBaseURL string
	logger        *slog.Logger
}

// NewHandler creates a Mattermost Handler. publicBaseURL is used to build
// fallback avatar redirect URLs.
func NewHandler(service *Service, publicBaseURL string, logger *slog.Logger) *Handler {
	return &Handler{service: service, publicBaseURL: publicBaseURL, logger: logger}
}

// Routes returns a chi.Router with all Mattermost bridge routes mounted.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/url", h.handleGetURL)
	r.Get("/users/{username}/avatar", h.handleUserAvatar)
	r.Get("/teams/{teamName}/avatar", h.handleTeamAvatar)
	r.Get("/notifications", h.handleNotifications)
	r.Get("/channels", h.handleChannels)
	r.Post("/messages", h.handleSendMessage)
	r.Post("/files", h.handleSendFile)
	r.Post("/links", h.handleSendLinks)
	return r
}

func (h *Handler) handleGetURL(w http.ResponseWriter, r *http.Request) {
	id := auth.FromContext(r.Context())

	instanceURL, err := h.service.InstanceURL(r.Context(), id.UserID)
	if err != nil {
		h.logger.Error("resolving instance URL", "error", err, "user_id", id.UserID)
		httpserver.RespondError(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}

	httpserver.Respond(w, http.StatusOK, map[string]string{"url": instanceURL})
}

// useFallback reads the useFallback query flag; anything except "0" enables
// the generated-avatar redirect.
func useFallback(r *http.Request) bool {
	return r.URL.Query().Get("useFallback") != "0"
}

func (h *Handler) writeAvatar(w http.ResponseWriter, r *http.Request, avatar Avatar, err error) {
	if err != nil {
		// Avatar endpoints answer not-found rather than surfacing error
		// detail; browsers request them as bare image URLs.
		h.logger.Debug("avatar fetch failed", "error", err)
		w.WriteHeader(http.StatusNotFound)
		return
	}

	if avatar.Content != nil {
		contentType := avatar.ContentType
		if contentType == "" {
			contentType = "application/octet-stream"
		}
		w.Header().Set("Content-Type", contentType)
		w.Header().Set("Cache-Control", "public, max-age="+strconv.Itoa(avatarCacheSeconds))
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(avatar.Content)
		return
	}

	if avatar.FallbackName != "" && useFallback(r) {
		redirect := h.publicBaseURL + "/avatar/guest/" + url.PathEscape(avatar.FallbackName) + "?size=44"
		http.Redirect(w, r, redirect, http.StatusSeeOther)
		return
	}

	w.WriteHeader(http.StatusNotFound)
}

func (h *Handler) handleUserAvatar(w http.ResponseWriter, r *http.Request) {
	id := auth.FromContext(r.Context())
	username := chi.URLParam(r, "username")

	avatar, err := h.service.GetUserAvatar(r.Context(), id.UserID, username)
	h.writeAvatar(w, r, avatar, err)
}

func (h *Handler) handleTeamAvatar(w http.ResponseWriter, r *http.Request) {
	id := auth.FromContext(r.Context())
	teamName := chi.URLParam(r, "teamName")

	avatar, err := h.service.GetTeamAvatar(r.Context(), id.UserID, teamName)
	h.writeAvatar(w, r, avatar, err)
}

func (h *Handler) handleNotifications(w http.ResponseWriter, r *http.Request) {
	id := auth.FromContext(r.Context())

	var since *int64
	if raw := r.URL.Query().Get("since"); raw != "" {
		v, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			httpserver.RespondError(w, http.StatusBadRequest, "bad_request", "invalid since timestamp")
			return
		}
		since = &v
	}

	posts, err := h.service.GetMentionsMe(r.Context(), id.UserID, since)
	if err != nil {
		httpserver.RespondError(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}

	httpserver.Respond(w, http.StatusOK, posts)
}

func (h *Handler) handleChannels(w http.ResponseWriter, r *http.Request) {
	id := auth.FromContext(r.Context())

	channels, err := h.service.GetMyChannels(r.Context(), id.UserID)
	if err != nil {
		httpserver.RespondError(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}

	httpserver.Respond(w, http.StatusOK, channels)
}

// SendMessageRequest is the body for POST /messages.
type SendMessageRequest struct {
	Message   string `json:"message" validate:"required"`
	ChannelID string `json:"channel_id" validate:"required"`
}

func (h *Handler) handleSendMessage(w http.ResponseWriter, r *http.Request) {
	id := auth.FromContext(r.Context())

	var req SendMessageRequest
	if !httpserver.DecodeAndValidate(w, r, &req) {
		return
	}

	post, err := h.service.SendMessage(r.Context(), id.UserID, req.Message, req.ChannelID)
	if err != nil {
		httpserver.RespondError(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}

	httpserver.Respond(w, http.StatusOK, post)
}

// SendFileRequest is the body for POST /files.
type SendFileRequest struct {
	FileID    uuid.UUID `json:"file_id" validate:"required"`
	ChannelID string    `json:"channel_id" validate:"required"`
}

func (h *Handler) handleSendFile(w http.ResponseWriter, r *http.Request) {
	id := auth.FromContext(r.Context())

	var req SendFileRequest
	if !httpserver.DecodeAndValidate(w, r, &req) {
		return
	}

	result, err := h.service.SendFile(r.Context(), id.UserID, req.FileID, req.ChannelID)
	if err != nil {
		var orphaned *OrphanedUploadError
		if errors.As(err, &orphaned) {
			// The upload went through; tell the caller which remote file is
			// now orphaned instead of reporting a total failure.
			httpserver.Respond(w, http.StatusBadRequest, map[string]any{
				"error":          "message_post_failed",
				"message":        orphaned.Error(),
				"remote_file_id": orphaned.RemoteFileID,
				"file_id":        result.FileID,
				"channel_id":     result.ChannelID,
			})
			return
		}
		httpserver.RespondError(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}

	httpserver.Respond(w, http.StatusOK, result)
}

// SendLinksRequestBody is the body for POST /links.
type SendLinksRequestBody struct {
	FileIDs        []uuid.UUID `json:"file_ids" validate:"required,min=1"`
	ChannelID      string      `json:"channel_id" validate:"required"`
	ChannelName    string      `json:"channel_name"`
	Comment        string      `json:"comment"`
	Permission     string      `json:"permission" validate:"required,oneof=view edit"`
	ExpirationDate string      `json:"expiration_date,omitempty" validate:"omitempty,datetime=2006-01-02"`
	Password       string      `json:"password,omitempty"`
}

func (h *Handler) handleSendLinks(w http.ResponseWriter, r *http.Request) {
	id := auth.FromContext(r.Context())

	var body SendLinksRequestBody
	if !httpserver.DecodeAndValidate(w, r, &body) {
		return
	}

	permission, err := share.ParsePermission(body.Permission)
	if err != nil {
		httpserver.RespondError(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}

	req := SendLinksRequest{
		FileIDs:     body.FileIDs,
		ChannelID:   body.ChannelID,
		ChannelName: body.ChannelName,
		Comment:     body.Comment,
		Permission:  permission,
		Password:    body.Password,
	}
	if body.ExpirationDate != "" {
		t, err := time.Parse(expirationDateLayout, body.ExpirationDate)
		if err != nil {
			httpserver.RespondError(w, http.StatusBadRequest, "bad_request", "invalid expiration date")
			return
		}
		req.ExpirationDate = &t
	}

	result, err := h.service.SendLinks(r.Context(), id.UserID, req)
	if err != nil {
		httpserver.RespondError(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}

	httpserver.Respond(w, http.StatusOK, result)
}
