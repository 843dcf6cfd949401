// Package hostconfig provides the groupware platform's key/value
// configuration store: per-app global values and per-user values.
package hostconfig

import "context"

// Per-user configuration keys.
const (
	KeyToken                  = "token"
	KeyURL                    = "url"
	KeyUserName               = "user_name"
	KeyWebhooksEnabled        = "webhooks_enabled"
	KeyWebhookSecret          = "webhook_secret"
	KeyCalendarCreatedWebhook = "calendar_event_created_webhook"
	KeyCalendarUpdatedWebhook = "calendar_event_updated_webhook"
)

// App-level configuration keys.
const (
	KeyOAuthInstanceURL = "oauth_instance_url"
)

// Store reads and writes configuration values. Values are plain strings; an
// unset key reads as the empty string, never an error.
type Store interface {
	GetAppValue(ctx context.Context, key string) (string, error)
	SetAppValue(ctx context.Context, key, value string) error
	GetUserValue(ctx context.Context, userID, key string) (string, error)
	SetUserValue(ctx context.Context, userID, key, value string) error
	DeleteUserValue(ctx context.Context, userID, key string) error
}
