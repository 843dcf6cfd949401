package mattermost

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/wisbric/chatowl/internal/auth"
	"github.com/wisbric/chatowl/pkg/hostconfig"
)

// newHandlerRouter mounts the handler behind a middleware that injects the
// given identity, the way the API server does after session validation.
func newHandlerRouter(env *testEnv, userID string) chi.Router {
	h := NewHandler(env.svc, "https://cloud.example.com", slog.Default())

	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			ctx := auth.NewContext(req.Context(), &auth.Identity{UserID: userID, Method: auth.MethodSession})
			next.ServeHTTP(w, req.WithContext(ctx))
		})
	})
	r.Mount("/", h.Routes())
	return r
}

func TestHandlerGetURL(t *testing.T) {
	env := newTestEnv(t, nil)
	router := newHandlerRouter(env, "alice")

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/url", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decoding body: %v", err)
	}
	if !strings.HasPrefix(body["url"], "http://127.0.0.1") {
		t.Errorf("url = %q, want the configured instance URL", body["url"])
	}
}

func TestHandlerAvatarServesImage(t *testing.T) {
	env := newTestEnv(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/v4/users/username/alice_mm":
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"id":"u1","username":"alice_mm"}`))
		case "/api/v4/users/u1/image":
			w.Header().Set("Content-Type", "image/png")
			_, _ = w.Write([]byte("png-bytes"))
		default:
			http.NotFound(w, r)
		}
	})
	router := newHandlerRouter(env, "alice")

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/users/alice_mm/avatar", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if got := rec.Header().Get("Cache-Control"); got != "public, max-age=86400" {
		t.Errorf("Cache-Control = %q", got)
	}
	if rec.Body.String() != "png-bytes" {
		t.Errorf("body = %q", rec.Body.String())
	}
}

func TestHandlerAvatarFallbackRedirect(t *testing.T) {
	env := newTestEnv(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"message":"Unable to find the user.","status_code":404}`))
	})
	router := newHandlerRouter(env, "alice")

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/users/ghost/avatar", nil))

	if rec.Code != http.StatusSeeOther {
		t.Fatalf("status = %d, want 303", rec.Code)
	}
	want := "https://cloud.example.com/avatar/guest/ghost?size=44"
	if got := rec.Header().Get("Location"); got != want {
		t.Errorf("Location = %q, want %q", got, want)
	}
}

func TestHandlerAvatarFallbackDisabled(t *testing.T) {
	env := newTestEnv(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	router := newHandlerRouter(env, "alice")

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/users/ghost/avatar?useFallback=0", nil))

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

func TestHandlerAvatarUnreachableIs404(t *testing.T) {
	env := newTestEnv(t, nil)
	_ = env.cfg.SetUserValue(context.Background(), "alice", hostconfig.KeyURL, "http://127.0.0.1:1")
	router := newHandlerRouter(env, "alice")

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/users/alice_mm/avatar", nil))

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404 (avatars never leak error detail)", rec.Code)
	}
}

func TestHandlerNotificationsInvalidSince(t *testing.T) {
	env := newTestEnv(t, nil)
	router := newHandlerRouter(env, "alice")

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/notifications?since=yesterday", nil))

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestHandlerSendMessageValidation(t *testing.T) {
	env := newTestEnv(t, nil)
	router := newHandlerRouter(env, "alice")

	tests := []struct {
		name string
		body string
		want int
	}{
		{"missing message", `{"channel_id":"ch1"}`, http.StatusUnprocessableEntity},
		{"missing channel", `{"message":"hi"}`, http.StatusUnprocessableEntity},
		{"malformed json", `{"message":`, http.StatusBadRequest},
		{"unknown field", `{"message":"hi","channel_id":"ch1","bogus":true}`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/messages", strings.NewReader(tt.body))
			req.Header.Set("Content-Type", "application/json")
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)

			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d, body %s", rec.Code, tt.want, rec.Body.String())
			}
		})
	}
}

func TestHandlerSendMessageUpstreamFailureIs400(t *testing.T) {
	env := newTestEnv(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"message":"You do not have the appropriate permissions.","status_code":403}`))
	})
	router := newHandlerRouter(env, "alice")

	req := httptest.NewRequest(http.MethodPost, "/messages", strings.NewReader(`{"message":"hi","channel_id":"ch1"}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestHandlerSendFileOrphanedUploadBody(t *testing.T) {
	env := newTestEnv(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/api/v4/files":
			_, _ = w.Write([]byte(`{"file_infos":[{"id":"rf1","name":"doc.txt"}]}`))
		case "/api/v4/posts":
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"message":"Invalid channel.","status_code":400}`))
		default:
			http.NotFound(w, r)
		}
	})
	router := newHandlerRouter(env, "alice")

	f, _ := env.storage.Create(context.Background(), "alice", "doc.txt", "text/plain", []byte("hi"))

	payload := `{"file_id":"` + f.ID.String() + `","channel_id":"bad"}`
	req := httptest.NewRequest(http.MethodPost, "/files", strings.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decoding body: %v", err)
	}
	if body["remote_file_id"] != "rf1" {
		t.Errorf("remote_file_id = %v, want rf1", body["remote_file_id"])
	}
}

func TestHandlerSendLinks(t *testing.T) {
	env := newTestEnv(t, func(w http.ResponseWriter, r *http.Request) {
		var post Post
		_ = json.NewDecoder(r.Body).Decode(&post)
		post.ID = "post1"
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(post)
	})
	router := newHandlerRouter(env, "alice")

	f, _ := env.storage.Create(context.Background(), "alice", "a.txt", "text/plain", []byte("a"))

	payload := `{"file_ids":["` + f.ID.String() + `"],"channel_id":"ch1","permission":"edit","expiration_date":"2026-12-31","comment":"here"}`
	req := httptest.NewRequest(http.MethodPost, "/links", strings.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	var result SendLinksResult
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatalf("decoding body: %v", err)
	}
	if len(result.Links) != 1 || result.Links[0].FileID != f.ID {
		t.Errorf("links = %+v", result.Links)
	}
	if result.PostID != "post1" {
		t.Errorf("post_id = %q", result.PostID)
	}
}

func TestHandlerSendLinksValidation(t *testing.T) {
	env := newTestEnv(t, nil)
	router := newHandlerRouter(env, "alice")

	id := uuid.New().String()
	tests := []struct {
		name string
		body string
	}{
		{"empty file list", `{"file_ids":[],"channel_id":"ch1","permission":"view"}`},
		{"bad permission", `{"file_ids":["` + id + `"],"channel_id":"ch1","permission":"admin"}`},
		{"bad expiration date", `{"file_ids":["` + id + `"],"channel_id":"ch1","permission":"view","expiration_date":"31-12-2026"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/links", strings.NewReader(tt.body))
			req.Header.Set("Content-Type", "application/json")
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)

			if rec.Code != http.StatusUnprocessableEntity {
				t.Errorf("status = %d, want 422, body %s", rec.Code, rec.Body.String())
			}
		})
	}
}
