package mattermost

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/wisbric/chatowl/pkg/credentials"
	"github.com/wisbric/chatowl/pkg/files"
	"github.com/wisbric/chatowl/pkg/share"
)

// Service exposes one operation per domain action. Every operation resolves
// the acting user's credentials fresh, fails soft when configuration is
// missing, and normalizes upstream failures into *APIError.
type Service struct {
	resolver *credentials.Resolver
	client   *Client
	storage  files.Storage
	shares   share.Creator
	logger   *slog.Logger
}

// NewService creates the Mattermost API service.
func NewService(resolver *credentials.Resolver, client *Client, storage files.Storage, shares share.Creator, logger *slog.Logger) *Service {
	return &Service{
		resolver: resolver,
		client:   client,
		storage:  storage,
		shares:   shares,
		logger:   logger,
	}
}

// resolve reads the user's credential and fails when URL or token is missing.
func (s *Service) resolve(ctx context.Context, userID string) (credentials.Credential, error) {
	cred, err := s.resolver.Resolve(ctx, userID)
	if err != nil {
		return credentials.Credential{}, fmt.Errorf("resolving credentials: %w", err)
	}
	if cred.InstanceURL == "" {
		return credentials.Credential{}, errConfigurationMissing("Mattermost instance URL")
	}
	if cred.Token == "" {
		return credentials.Credential{}, errConfigurationMissing("access token")
	}
	return cred, nil
}

// InstanceURL returns the user's effective Mattermost instance URL, which may
// be empty when nothing is configured.
func (s *Service) InstanceURL(ctx context.Context, userID string) (string, error) {
	cred, err := s.resolver.Resolve(ctx, userID)
	if err != nil {
		return "", fmt.Errorf("resolving credentials: %w", err)
	}
	return cred.InstanceURL, nil
}

// Avatar is the result of an avatar fetch. Exactly one of Content or
// FallbackName is populated; when both are empty the caller should answer
// not-found.
type Avatar struct {
	Content      []byte
	ContentType  string
	FallbackName string
}

// GetUserAvatar fetches the avatar of the Mattermost user with the given
// username. When the user does not exist upstream, or exists but has no
// fetchable avatar, the result carries a fallback display name instead of
// image bytes.
func (s *Service) GetUserAvatar(ctx context.Context, userID, username string) (Avatar, error) {
	cred, err := s.resolve(ctx, userID)
	if err != nil {
		return Avatar{}, err
	}

	user, err := s.client.GetUserByUsername(ctx, cred.InstanceURL, cred.Token, username)
	if err != nil {
		if ErrorKind(err) == KindNotFound {
			// Unknown upstream user: let the caller render a generated
			// avatar labeled with the requested name.
			return Avatar{FallbackName: username}, nil
		}
		return Avatar{}, err
	}

	content, contentType, err := s.client.GetUserImage(ctx, cred.InstanceURL, cred.Token, user.ID)
	if err != nil {
		s.logger.Debug("user avatar fetch failed, using fallback",
			"username", username, "kind", ErrorKind(err).String())
		return Avatar{FallbackName: user.Username}, nil
	}

	return Avatar{Content: content, ContentType: contentType}, nil
}

// GetTeamAvatar fetches the icon of the Mattermost team with the given name,
// with the team display name as fallback label.
func (s *Service) GetTeamAvatar(ctx context.Context, userID, teamName string) (Avatar, error) {
	cred, err := s.resolve(ctx, userID)
	if err != nil {
		return Avatar{}, err
	}

	team, err := s.client.GetTeamByName(ctx, cred.InstanceURL, cred.Token, teamName)
	if err != nil {
		if ErrorKind(err) == KindNotFound {
			return Avatar{FallbackName: teamName}, nil
		}
		return Avatar{}, err
	}

	content, contentType, err := s.client.GetTeamImage(ctx, cred.InstanceURL, cred.Token, team.ID)
	if err != nil {
		s.logger.Debug("team avatar fetch failed, using fallback",
			"team", teamName, "kind", ErrorKind(err).String())
		return Avatar{FallbackName: team.DisplayName}, nil
	}

	return Avatar{Content: content, ContentType: contentType}, nil
}

// GetMentionsMe returns messages mentioning the user's configured Mattermost
// username, most recent first. since, when non-nil, is a strict lower bound:
// only messages with create_at > since are returned.
func (s *Service) GetMentionsMe(ctx context.Context, userID string, since *int64) ([]Post, error) {
	cred, err := s.resolve(ctx, userID)
	if err != nil {
		return nil, err
	}
	if cred.Username == "" {
		return nil, errConfigurationMissing("Mattermost username")
	}

	list, err := s.client.SearchMessages(ctx, cred.InstanceURL, cred.Token, "@"+cred.Username, since)
	if err != nil {
		return nil, err
	}

	posts := make([]Post, 0, len(list.Order))
	for _, id := range list.Order {
		post, ok := list.Posts[id]
		if !ok {
			continue
		}
		if since != nil && post.CreateAt <= *since {
			continue
		}
		posts = append(posts, post)
	}

	sort.SliceStable(posts, func(i, j int) bool {
		return posts[i].CreateAt > posts[j].CreateAt
	})

	return posts, nil
}

// GetMyChannels lists the channels the user's token can see, across all its
// teams, in the order the upstream returns them.
func (s *Service) GetMyChannels(ctx context.Context, userID string) ([]Channel, error) {
	cred, err := s.resolve(ctx, userID)
	if err != nil {
		return nil, err
	}

	members, err := s.client.GetMyTeamMembers(ctx, cred.InstanceURL, cred.Token)
	if err != nil {
		return nil, err
	}

	var channels []Channel
	for _, m := range members {
		teamChannels, err := s.client.GetMyTeamChannels(ctx, cred.InstanceURL, cred.Token, m.TeamID)
		if err != nil {
			return nil, err
		}
		channels = append(channels, teamChannels...)
	}

	return channels, nil
}

// SendMessage posts a chat message to the given channel as the user.
// Message content is forwarded as-is; upstream validation errors surface as
// *APIError.
func (s *Service) SendMessage(ctx context.Context, userID, message, channelID string) (*Post, error) {
	cred, err := s.resolve(ctx, userID)
	if err != nil {
		return nil, err
	}

	return s.client.CreatePost(ctx, cred.InstanceURL, cred.Token, Post{
		ChannelID: channelID,
		Message:   message,
	})
}

// SendFileResult reports a completed sendFile operation. The FileID and
// ChannelID always echo the request. RemoteFileID is set as soon as the
// upload succeeds, even when the follow-up post fails.
type SendFileResult struct {
	FileID       uuid.UUID `json:"file_id"`
	ChannelID    string    `json:"channel_id"`
	RemoteFileID string    `json:"remote_file_id"`
	PostID       string    `json:"post_id,omitempty"`
}

// SendFile uploads a stored file to Mattermost and posts a message
// referencing it. The two steps run sequentially; when the upload succeeds
// but the post fails, the returned *OrphanedUploadError names the uploaded
// remote file instead of pretending the whole operation failed.
func (s *Service) SendFile(ctx context.Context, userID string, fileID uuid.UUID, channelID string) (SendFileResult, error) {
	result := SendFileResult{FileID: fileID, ChannelID: channelID}

	cred, err := s.resolve(ctx, userID)
	if err != nil {
		return result, err
	}

	f, err := s.storage.Get(ctx, userID, fileID)
	if err != nil {
		return result, fmt.Errorf("loading file: %w", err)
	}

	uploaded, err := s.client.UploadFile(ctx, cred.InstanceURL, cred.Token, channelID, f.Name, f.Content)
	if err != nil {
		return result, err
	}
	if len(uploaded.FileInfos) == 0 {
		return result, &APIError{Kind: KindRejected, Message: "upload returned no file info"}
	}
	result.RemoteFileID = uploaded.FileInfos[0].ID

	post, err := s.client.CreatePost(ctx, cred.InstanceURL, cred.Token, Post{
		ChannelID: channelID,
		FileIDs:   []string{result.RemoteFileID},
	})
	if err != nil {
		return result, &OrphanedUploadError{RemoteFileID: result.RemoteFileID, Err: err}
	}
	result.PostID = post.ID

	return result, nil
}

// SendLinksRequest describes a sendLinks operation.
type SendLinksRequest struct {
	FileIDs        []uuid.UUID
	ChannelID      string
	ChannelName    string
	Comment        string
	Permission     int
	ExpirationDate *time.Time
	Password       string
}

// LinkResult pairs a file with its created public link.
type LinkResult struct {
	FileID uuid.UUID `json:"file_id"`
	Name   string    `json:"name"`
	URL    string    `json:"url"`
}

// SendLinksResult reports which links were created, which file IDs failed,
// and the post that was sent (empty PostID when nothing was posted).
type SendLinksResult struct {
	Links  []LinkResult `json:"links"`
	Failed []uuid.UUID  `json:"failed,omitempty"`
	PostID string       `json:"post_id,omitempty"`
}

// ErrAllSharesFailed is returned when no public link could be created; in
// that case no message is posted.
var ErrAllSharesFailed = errors.New("all share creations failed")

// SendLinks creates one public share link per file, in order, then posts a
// single message to the channel combining the comment and every link that
// could be created. Per-file failures are collected: as long as at least one
// link succeeds the message is still sent, and the result names the failed
// file IDs.
func (s *Service) SendLinks(ctx context.Context, userID string, req SendLinksRequest) (SendLinksResult, error) {
	var result SendLinksResult

	cred, err := s.resolve(ctx, userID)
	if err != nil {
		return result, err
	}

	for _, fileID := range req.FileIDs {
		f, err := s.storage.Get(ctx, userID, fileID)
		if err != nil {
			s.logger.Warn("sendLinks: loading file failed", "file_id", fileID, "error", err)
			result.Failed = append(result.Failed, fileID)
			continue
		}

		linkURL, err := s.shares.CreateLink(ctx, userID, fileID, req.Permission, req.ExpirationDate, req.Password)
		if err != nil {
			s.logger.Warn("sendLinks: creating share failed", "file_id", fileID, "error", err)
			result.Failed = append(result.Failed, fileID)
			continue
		}

		result.Links = append(result.Links, LinkResult{FileID: fileID, Name: f.Name, URL: linkURL})
	}

	if len(result.Links) == 0 {
		return result, ErrAllSharesFailed
	}

	post, err := s.client.CreatePost(ctx, cred.InstanceURL, cred.Token, Post{
		ChannelID: req.ChannelID,
		Message:   buildLinksMessage(req.Comment, result.Links),
	})
	if err != nil {
		return result, fmt.Errorf("posting links message: %w", err)
	}
	result.PostID = post.ID

	return result, nil
}

// buildLinksMessage combines the comment and the created links into one
// message body, one link per line.
func buildLinksMessage(comment string, links []LinkResult) string {
	var b strings.Builder
	if comment != "" {
		b.WriteString(comment)
		b.WriteString("\n\n")
	}
	for i, l := range links {
		if i > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "%s: %s", l.Name, l.URL)
	}
	return b.String()
}
