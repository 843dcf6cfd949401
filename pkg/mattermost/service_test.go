package mattermost

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/wisbric/chatowl/pkg/credentials"
	"github.com/wisbric/chatowl/pkg/files"
	"github.com/wisbric/chatowl/pkg/hostconfig"
)

// stubCreator implements share.Creator with a per-test function.
type stubCreator struct {
	createLink func(fileID uuid.UUID) (string, error)
}

func (s *stubCreator) CreateLink(_ context.Context, _ string, fileID uuid.UUID, _ int, _ *time.Time, _ string) (string, error) {
	return s.createLink(fileID)
}

type testEnv struct {
	svc           *Service
	cfg           *hostconfig.MemoryStore
	storage       *files.MemoryStorage
	shares        *stubCreator
	upstreamCalls *atomic.Int64
}

// newTestEnv wires a Service against a fake upstream and configures user
// "alice" with a token, instance URL, and Mattermost username.
func newTestEnv(t *testing.T, upstream http.HandlerFunc) *testEnv {
	t.Helper()

	env := &testEnv{
		cfg:           hostconfig.NewMemoryStore(),
		storage:       files.NewMemoryStorage(),
		shares:        &stubCreator{createLink: func(uuid.UUID) (string, error) { return "https://cloud.example.com/s/t", nil }},
		upstreamCalls: &atomic.Int64{},
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		env.upstreamCalls.Add(1)
		if upstream != nil {
			upstream(w, r)
			return
		}
		http.NotFound(w, r)
	}))
	t.Cleanup(srv.Close)

	ctx := context.Background()
	_ = env.cfg.SetUserValue(ctx, "alice", hostconfig.KeyURL, srv.URL)
	_ = env.cfg.SetUserValue(ctx, "alice", hostconfig.KeyToken, "tok-alice")
	_ = env.cfg.SetUserValue(ctx, "alice", hostconfig.KeyUserName, "alice_mm")

	env.svc = NewService(
		credentials.NewResolver(env.cfg),
		NewClient(slog.Default(), nil),
		env.storage,
		env.shares,
		slog.Default(),
	)
	return env
}

func TestOperationsShortCircuitWithoutToken(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()

	// "bob" has no stored configuration at all.
	ops := map[string]func() error{
		"GetUserAvatar": func() error { _, err := env.svc.GetUserAvatar(ctx, "bob", "x"); return err },
		"GetTeamAvatar": func() error { _, err := env.svc.GetTeamAvatar(ctx, "bob", "x"); return err },
		"GetMentionsMe": func() error { _, err := env.svc.GetMentionsMe(ctx, "bob", nil); return err },
		"GetMyChannels": func() error { _, err := env.svc.GetMyChannels(ctx, "bob"); return err },
		"SendMessage":   func() error { _, err := env.svc.SendMessage(ctx, "bob", "hi", "ch"); return err },
		"SendFile":      func() error { _, err := env.svc.SendFile(ctx, "bob", uuid.New(), "ch"); return err },
		"SendLinks": func() error {
			_, err := env.svc.SendLinks(ctx, "bob", SendLinksRequest{FileIDs: []uuid.UUID{uuid.New()}})
			return err
		},
	}

	for name, op := range ops {
		t.Run(name, func(t *testing.T) {
			err := op()
			if err == nil {
				t.Fatal("expected error for unconfigured user")
			}
			if ErrorKind(err) != KindConfigurationMissing {
				t.Errorf("kind = %v, want KindConfigurationMissing", ErrorKind(err))
			}
		})
	}

	if n := env.upstreamCalls.Load(); n != 0 {
		t.Errorf("upstream calls = %d, want 0 (credential resolution must short-circuit)", n)
	}
}

func TestGetMentionsMeSinceAndOrder(t *testing.T) {
	env := newTestEnv(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v4/search/messages" {
			t.Errorf("path = %q", r.URL.Path)
		}
		if got := r.URL.Query().Get("terms"); got != "@alice_mm" {
			t.Errorf("terms = %q, want @alice_mm", got)
		}
		w.Header().Set("Content-Type", "application/json")
		// Unordered by time on purpose; p2 sits exactly on the since bound.
		_ = json.NewEncoder(w).Encode(PostList{
			Order: []string{"p1", "p2", "p3", "p4"},
			Posts: map[string]Post{
				"p1": {ID: "p1", Message: "old", CreateAt: 50},
				"p2": {ID: "p2", Message: "on the bound", CreateAt: 100},
				"p3": {ID: "p3", Message: "newer", CreateAt: 150},
				"p4": {ID: "p4", Message: "newest", CreateAt: 200},
			},
		})
	})

	since := int64(100)
	posts, err := env.svc.GetMentionsMe(context.Background(), "alice", &since)
	if err != nil {
		t.Fatalf("GetMentionsMe: %v", err)
	}

	if len(posts) != 2 {
		t.Fatalf("len(posts) = %d, want 2 (since is a strict bound)", len(posts))
	}
	if posts[0].ID != "p4" || posts[1].ID != "p3" {
		t.Errorf("order = [%s %s], want [p4 p3] (most recent first)", posts[0].ID, posts[1].ID)
	}
}

func TestGetMentionsMeRequiresUsername(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()
	_ = env.cfg.DeleteUserValue(ctx, "alice", hostconfig.KeyUserName)

	_, err := env.svc.GetMentionsMe(ctx, "alice", nil)
	if ErrorKind(err) != KindConfigurationMissing {
		t.Errorf("kind = %v, want KindConfigurationMissing", ErrorKind(err))
	}
}

func TestGetMyChannelsAggregatesTeams(t *testing.T) {
	env := newTestEnv(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/api/v4/users/me/teams/members":
			_, _ = w.Write([]byte(`[{"team_id":"t1","user_id":"u1"},{"team_id":"t2","user_id":"u1"}]`))
		case "/api/v4/users/me/teams/t1/channels":
			_, _ = w.Write([]byte(`[{"id":"c1","team_id":"t1","name":"town-square"}]`))
		case "/api/v4/users/me/teams/t2/channels":
			_, _ = w.Write([]byte(`[{"id":"c2","team_id":"t2","name":"dev"},{"id":"c3","team_id":"t2","name":"ops"}]`))
		default:
			t.Errorf("unexpected path %q", r.URL.Path)
			http.NotFound(w, r)
		}
	})

	channels, err := env.svc.GetMyChannels(context.Background(), "alice")
	if err != nil {
		t.Fatalf("GetMyChannels: %v", err)
	}

	want := []string{"c1", "c2", "c3"}
	if len(channels) != len(want) {
		t.Fatalf("len(channels) = %d, want %d", len(channels), len(want))
	}
	for i, id := range want {
		if channels[i].ID != id {
			t.Errorf("channels[%d].ID = %q, want %q (upstream order preserved)", i, channels[i].ID, id)
		}
	}
}

func TestGetUserAvatarSuccess(t *testing.T) {
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

	avatar, err := env.svc.GetUserAvatar(context.Background(), "alice", "alice_mm")
	if err != nil {
		t.Fatalf("GetUserAvatar: %v", err)
	}
	if string(avatar.Content) != "png-bytes" || avatar.ContentType != "image/png" {
		t.Errorf("avatar = %+v", avatar)
	}
}

func TestGetUserAvatarUnknownUserFallsBack(t *testing.T) {
	env := newTestEnv(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"message":"Unable to find the user.","status_code":404}`))
	})

	avatar, err := env.svc.GetUserAvatar(context.Background(), "alice", "ghost")
	if err != nil {
		t.Fatalf("GetUserAvatar: %v", err)
	}
	if avatar.Content != nil {
		t.Error("expected no content")
	}
	if avatar.FallbackName != "ghost" {
		t.Errorf("FallbackName = %q, want the requested username", avatar.FallbackName)
	}
}

func TestGetUserAvatarUnreachableIsError(t *testing.T) {
	env := newTestEnv(t, nil)
	// Point alice at a dead address.
	_ = env.cfg.SetUserValue(context.Background(), "alice", hostconfig.KeyURL, "http://127.0.0.1:1")

	_, err := env.svc.GetUserAvatar(context.Background(), "alice", "alice_mm")
	if ErrorKind(err) != KindUnreachable {
		t.Errorf("kind = %v, want KindUnreachable", ErrorKind(err))
	}
}

func TestGetTeamAvatarFallbackUsesDisplayName(t *testing.T) {
	env := newTestEnv(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/v4/teams/name/core":
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"id":"t1","name":"core","display_name":"Core Team"}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})

	avatar, err := env.svc.GetTeamAvatar(context.Background(), "alice", "core")
	if err != nil {
		t.Fatalf("GetTeamAvatar: %v", err)
	}
	if avatar.FallbackName != "Core Team" {
		t.Errorf("FallbackName = %q, want team display name", avatar.FallbackName)
	}
}

func TestSendMessage(t *testing.T) {
	env := newTestEnv(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v4/posts" || r.Method != http.MethodPost {
			t.Errorf("%s %s", r.Method, r.URL.Path)
		}
		var post Post
		_ = json.NewDecoder(r.Body).Decode(&post)
		if post.ChannelID != "ch1" || post.Message != "hello" {
			t.Errorf("post = %+v", post)
		}
		post.ID = "post1"
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(post)
	})

	post, err := env.svc.SendMessage(context.Background(), "alice", "hello", "ch1")
	if err != nil {
		t.Fatalf("SendMessage: %v", err)
	}
	if post.ID != "post1" {
		t.Errorf("post.ID = %q", post.ID)
	}
}

func TestSendFileSuccessEchoesRequest(t *testing.T) {
	env := newTestEnv(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/api/v4/files":
			_, _ = w.Write([]byte(`{"file_infos":[{"id":"rf1","name":"doc.txt"}]}`))
		case "/api/v4/posts":
			_, _ = w.Write([]byte(`{"id":"post1","channel_id":"ch1","message":""}`))
		default:
			http.NotFound(w, r)
		}
	})

	f, _ := env.storage.Create(context.Background(), "alice", "doc.txt", "text/plain", []byte("hi"))

	result, err := env.svc.SendFile(context.Background(), "alice", f.ID, "ch1")
	if err != nil {
		t.Fatalf("SendFile: %v", err)
	}
	if result.FileID != f.ID || result.ChannelID != "ch1" {
		t.Errorf("result does not echo the request: %+v", result)
	}
	if result.RemoteFileID != "rf1" || result.PostID != "post1" {
		t.Errorf("result = %+v", result)
	}
}

func TestSendFileOrphanedUpload(t *testing.T) {
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

	f, _ := env.storage.Create(context.Background(), "alice", "doc.txt", "text/plain", []byte("hi"))

	result, err := env.svc.SendFile(context.Background(), "alice", f.ID, "bad-channel")
	var orphaned *OrphanedUploadError
	if !errors.As(err, &orphaned) {
		t.Fatalf("error = %v, want *OrphanedUploadError", err)
	}
	if orphaned.RemoteFileID != "rf1" {
		t.Errorf("RemoteFileID = %q", orphaned.RemoteFileID)
	}
	if result.RemoteFileID != "rf1" {
		t.Errorf("result.RemoteFileID = %q, want uploaded id preserved", result.RemoteFileID)
	}
}

func TestSendFileMissingFile(t *testing.T) {
	env := newTestEnv(t, nil)

	_, err := env.svc.SendFile(context.Background(), "alice", uuid.New(), "ch1")
	if !errors.Is(err, files.ErrNotFound) {
		t.Errorf("error = %v, want files.ErrNotFound", err)
	}
	if n := env.upstreamCalls.Load(); n != 0 {
		t.Errorf("upstream calls = %d, want 0", n)
	}
}

func TestSendLinksPartialFailure(t *testing.T) {
	var posted []Post
	env := newTestEnv(t, func(w http.ResponseWriter, r *http.Request) {
		var post Post
		_ = json.NewDecoder(r.Body).Decode(&post)
		post.ID = "post1"
		posted = append(posted, post)
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(post)
	})

	ctx := context.Background()
	fa, _ := env.storage.Create(ctx, "alice", "a.txt", "text/plain", []byte("a"))
	fb, _ := env.storage.Create(ctx, "alice", "b.txt", "text/plain", []byte("b"))
	fc, _ := env.storage.Create(ctx, "alice", "c.txt", "text/plain", []byte("c"))

	env.shares.createLink = func(fileID uuid.UUID) (string, error) {
		if fileID == fb.ID {
			return "", fmt.Errorf("quota exceeded")
		}
		return "https://cloud.example.com/s/" + fileID.String(), nil
	}

	result, err := env.svc.SendLinks(ctx, "alice", SendLinksRequest{
		FileIDs:   []uuid.UUID{fa.ID, fb.ID, fc.ID},
		ChannelID: "ch1",
		Comment:   "docs",
	})
	if err != nil {
		t.Fatalf("SendLinks: %v", err)
	}

	if len(result.Links) != 2 || result.Links[0].FileID != fa.ID || result.Links[1].FileID != fc.ID {
		t.Errorf("links = %+v, want A and C in order", result.Links)
	}
	if len(result.Failed) != 1 || result.Failed[0] != fb.ID {
		t.Errorf("failed = %v, want [B]", result.Failed)
	}
	if len(posted) != 1 {
		t.Fatalf("posted %d messages, want exactly 1", len(posted))
	}
	msg := posted[0].Message
	for _, want := range []string{"docs", fa.ID.String(), fc.ID.String()} {
		if !strings.Contains(msg, want) {
			t.Errorf("message missing %q: %q", want, msg)
		}
	}
	if strings.Contains(msg, fb.ID.String()) {
		t.Errorf("message contains a link for the failed file: %q", msg)
	}
}

func TestSendLinksAllFail(t *testing.T) {
	env := newTestEnv(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("no message must be posted when every share creation fails")
	})

	ctx := context.Background()
	fa, _ := env.storage.Create(ctx, "alice", "a.txt", "text/plain", []byte("a"))
	fb, _ := env.storage.Create(ctx, "alice", "b.txt", "text/plain", []byte("b"))

	env.shares.createLink = func(uuid.UUID) (string, error) {
		return "", fmt.Errorf("sharing disabled")
	}

	result, err := env.svc.SendLinks(ctx, "alice", SendLinksRequest{
		FileIDs:   []uuid.UUID{fa.ID, fb.ID},
		ChannelID: "ch1",
	})
	if !errors.Is(err, ErrAllSharesFailed) {
		t.Errorf("error = %v, want ErrAllSharesFailed", err)
	}
	if len(result.Failed) != 2 {
		t.Errorf("failed = %v, want both files", result.Failed)
	}
	if n := env.upstreamCalls.Load(); n != 0 {
		t.Errorf("upstream calls = %d, want 0", n)
	}
}
