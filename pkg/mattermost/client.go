// Package mattermost implements the credential-scoped bridge to the
// Mattermost REST API v4.
package mattermost

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// userAgent identifies ChatOwl on every outbound request.
const userAgent = "ChatOwl Mattermost integration"

// requestTimeout bounds every outbound call. No retries are attempted; a
// failed call surfaces immediately as an *APIError.
const requestTimeout = 10 * time.Second

// apiBasePath is the Mattermost REST API prefix.
const apiBasePath = "/api/v4/"

// Client wraps outbound Mattermost API calls. It holds no credentials;
// every method takes the instance URL and token of the acting user.
type Client struct {
	httpClient *http.Client
	logger     *slog.Logger
	requests   *prometheus.CounterVec // by endpoint label and status class
}

// NewClient creates a Mattermost API client. requests may be nil to disable
// call metrics.
func NewClient(logger *slog.Logger, requests *prometheus.CounterVec) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: requestTimeout},
		logger:     logger,
		requests:   requests,
	}
}

type requestSpec struct {
	method   string
	baseURL  string
	token    string
	path     string // relative to /api/v4/, e.g. "posts"
	label    string // metric label, constant per endpoint
	query    url.Values
	jsonBody any
	rawBody  io.Reader
	// contentType is set for rawBody requests (multipart uploads).
	contentType string
}

// send issues the request and normalizes transport failures and non-2xx
// statuses into *APIError. On success the caller owns the response body.
func (c *Client) send(ctx context.Context, spec requestSpec) (*http.Response, error) {
	u := strings.TrimRight(spec.baseURL, "/") + apiBasePath + spec.path
	if len(spec.query) > 0 {
		u += "?" + spec.query.Encode()
	}

	var body io.Reader
	contentType := spec.contentType
	if spec.jsonBody != nil {
		b, err := json.Marshal(spec.jsonBody)
		if err != nil {
			return nil, fmt.Errorf("marshalling request body: %w", err)
		}
		body = bytes.NewReader(b)
		contentType = "application/json"
	} else if spec.rawBody != nil {
		body = spec.rawBody
	}

	req, err := http.NewRequestWithContext(ctx, spec.method, u, body)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Authorization", "Bearer "+spec.token)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.count(spec.label, "transport_error")
		return nil, &APIError{Kind: KindUnreachable, Message: err.Error()}
	}

	if resp.StatusCode >= 400 {
		defer func() { _ = resp.Body.Close() }()
		c.count(spec.label, strconv.Itoa(resp.StatusCode))
		return nil, normalizeHTTPError(resp)
	}

	c.count(spec.label, strconv.Itoa(resp.StatusCode))
	return resp, nil
}

// doJSON issues the request and decodes a JSON response into result.
func (c *Client) doJSON(ctx context.Context, spec requestSpec, result any) error {
	resp, err := c.send(ctx, spec)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if result == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}

// doBinary issues the request and returns the raw body with its content type.
func (c *Client) doBinary(ctx context.Context, spec requestSpec) ([]byte, string, error) {
	resp, err := c.send(ctx, spec)
	if err != nil {
		return nil, "", err
	}
	defer func() { _ = resp.Body.Close() }()

	content, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", fmt.Errorf("reading response body: %w", err)
	}
	return content, resp.Header.Get("Content-Type"), nil
}

// normalizeHTTPError maps a non-2xx response to an *APIError, extracting the
// upstream message when the body matches the Mattermost error schema.
func normalizeHTTPError(resp *http.Response) *APIError {
	kind := KindRejected
	if resp.StatusCode == http.StatusNotFound {
		kind = KindNotFound
	}

	message := fmt.Sprintf("unexpected status %d", resp.StatusCode)
	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
	if err == nil {
		var ue upstreamError
		if json.Unmarshal(body, &ue) == nil && ue.Message != "" {
			message = ue.Message
		}
	}

	return &APIError{Kind: kind, StatusCode: resp.StatusCode, Message: message}
}

func (c *Client) count(endpoint, status string) {
	if c.requests != nil {
		c.requests.WithLabelValues(endpoint, status).Inc()
	}
}

// --- Users ---

// GetUserByUsername looks up a user by their Mattermost username.
func (c *Client) GetUserByUsername(ctx context.Context, baseURL, token, username string) (*User, error) {
	var user User
	err := c.doJSON(ctx, requestSpec{
		method:  http.MethodGet,
		baseURL: baseURL,
		token:   token,
		path:    "users/username/" + url.PathEscape(username),
		label:   "get_user_by_username",
	}, &user)
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// GetUserImage fetches a user's avatar image.
func (c *Client) GetUserImage(ctx context.Context, baseURL, token, userID string) ([]byte, string, error) {
	return c.doBinary(ctx, requestSpec{
		method:  http.MethodGet,
		baseURL: baseURL,
		token:   token,
		path:    "users/" + url.PathEscape(userID) + "/image",
		label:   "get_user_image",
	})
}

// --- Teams ---

// GetTeamByName looks up a team by name.
func (c *Client) GetTeamByName(ctx context.Context, baseURL, token, name string) (*Team, error) {
	var team Team
	err := c.doJSON(ctx, requestSpec{
		method:  http.MethodGet,
		baseURL: baseURL,
		token:   token,
		path:    "teams/name/" + url.PathEscape(name),
		label:   "get_team_by_name",
	}, &team)
	if err != nil {
		return nil, err
	}
	return &team, nil
}

// GetTeamImage fetches a team's icon image.
func (c *Client) GetTeamImage(ctx context.Context, baseURL, token, teamID string) ([]byte, string, error) {
	return c.doBinary(ctx, requestSpec{
		method:  http.MethodGet,
		baseURL: baseURL,
		token:   token,
		path:    "teams/" + url.PathEscape(teamID) + "/image",
		label:   "get_team_image",
	})
}

// GetMyTeamMembers lists the team memberships of the authenticated user.
func (c *Client) GetMyTeamMembers(ctx context.Context, baseURL, token string) ([]TeamMember, error) {
	var members []TeamMember
	err := c.doJSON(ctx, requestSpec{
		method:  http.MethodGet,
		baseURL: baseURL,
		token:   token,
		path:    "users/me/teams/members",
		label:   "get_my_team_members",
	}, &members)
	if err != nil {
		return nil, err
	}
	return members, nil
}

// GetMyTeamChannels lists the authenticated user's channels in one team.
func (c *Client) GetMyTeamChannels(ctx context.Context, baseURL, token, teamID string) ([]Channel, error) {
	var channels []Channel
	err := c.doJSON(ctx, requestSpec{
		method:  http.MethodGet,
		baseURL: baseURL,
		token:   token,
		path:    "users/me/teams/" + url.PathEscape(teamID) + "/channels",
		label:   "get_my_team_channels",
	}, &channels)
	if err != nil {
		return nil, err
	}
	return channels, nil
}

// --- Search ---

// SearchMessages queries the message search endpoint. since, when non-nil,
// is the exclusive lower bound in milliseconds since epoch.
func (c *Client) SearchMessages(ctx context.Context, baseURL, token, terms string, since *int64) (*PostList, error) {
	query := url.Values{"terms": {terms}}
	if since != nil {
		query.Set("since", strconv.FormatInt(*since, 10))
	}

	var list PostList
	err := c.doJSON(ctx, requestSpec{
		method:  http.MethodGet,
		baseURL: baseURL,
		token:   token,
		path:    "search/messages",
		label:   "search_messages",
		query:   query,
	}, &list)
	if err != nil {
		return nil, err
	}
	return &list, nil
}

// --- Posts ---

// CreatePost sends a post to a channel as the authenticated user.
func (c *Client) CreatePost(ctx context.Context, baseURL, token string, post Post) (*Post, error) {
	var created Post
	err := c.doJSON(ctx, requestSpec{
		method:   http.MethodPost,
		baseURL:  baseURL,
		token:    token,
		path:     "posts",
		label:    "create_post",
		jsonBody: post,
	}, &created)
	if err != nil {
		return nil, err
	}
	return &created, nil
}

// --- Files ---

// UploadFile uploads file content for the given channel and returns the
// remote file descriptor.
func (c *Client) UploadFile(ctx context.Context, baseURL, token, channelID, filename string, content []byte) (*FileUploadResponse, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	if err := mw.WriteField("channel_id", channelID); err != nil {
		return nil, fmt.Errorf("writing channel_id field: %w", err)
	}
	part, err := mw.CreateFormFile("files", filename)
	if err != nil {
		return nil, fmt.Errorf("creating file part: %w", err)
	}
	if _, err := part.Write(content); err != nil {
		return nil, fmt.Errorf("writing file content: %w", err)
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("finalizing multipart body: %w", err)
	}

	var uploaded FileUploadResponse
	err = c.doJSON(ctx, requestSpec{
		method:      http.MethodPost,
		baseURL:     baseURL,
		token:       token,
		path:        "files",
		label:       "upload_file",
		rawBody:     &buf,
		contentType: mw.FormDataContentType(),
	}, &uploaded)
	if err != nil {
		return nil, err
	}
	return &uploaded, nil
}
