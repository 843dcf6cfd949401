package mattermost

// Mattermost REST API v4 shapes, reduced to the fields this integration reads.

// User is a Mattermost user (partial).
type User struct {
	ID       string `json:"id"`
	Username string `json:"username"`
}

// Team is a Mattermost team (partial).
type Team struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	DisplayName string `json:"display_name"`
}

// TeamMember links the authenticated user to a team.
type TeamMember struct {
	TeamID string `json:"team_id"`
	UserID string `json:"user_id"`
}

// Channel is a Mattermost channel (partial).
type Channel struct {
	ID          string `json:"id"`
	TeamID      string `json:"team_id"`
	Name        string `json:"name"`
	DisplayName string `json:"display_name"`
	Type        string `json:"type"`
}

// Post is a Mattermost post.
type Post struct {
	ID        string   `json:"id,omitempty"`
	ChannelID string   `json:"channel_id"`
	UserID    string   `json:"user_id,omitempty"`
	Message   string   `json:"message"`
	CreateAt  int64    `json:"create_at,omitempty"` // milliseconds since epoch
	FileIDs   []string `json:"file_ids,omitempty"`
}

// PostList is the search result shape: ordered post IDs plus a posts map.
type PostList struct {
	Order []string        `json:"order"`
	Posts map[string]Post `json:"posts"`
}

// FileInfo describes an uploaded file.
type FileInfo struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// FileUploadResponse is returned by the file upload endpoint.
type FileUploadResponse struct {
	FileInfos []FileInfo `json:"file_infos"`
}

// upstreamError is the error schema Mattermost returns for failed requests.
type upstreamError struct {
	ID         string `json:"id"`
	Message    string `json:"message"`
	StatusCode int    `json:"status_code"`
}
