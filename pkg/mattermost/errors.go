package mattermost

import (
	"errors"
	"fmt"
)

// Kind classifies an API failure. Every error leaving this package is either
// an *APIError or wraps one; callers branch on Kind, never on string matching
// or optional-field presence.
type Kind int

const (
	// KindConfigurationMissing means no instance URL or token is configured
	// for the user; no network call was attempted.
	KindConfigurationMissing Kind = iota
	// KindUnreachable means a transport-level failure (DNS, refused, timeout).
	KindUnreachable
	// KindRejected means the upstream answered with a non-2xx status.
	KindRejected
	// KindNotFound means the upstream answered 404 for the requested entity.
	KindNotFound
)

func (k Kind) String() string {
	switch k {
	case KindConfigurationMissing:
		return "configuration_missing"
	case KindUnreachable:
		return "unreachable"
	case KindRejected:
		return "rejected"
	case KindNotFound:
		return "not_found"
	default:
		return "unknown"
	}
}

// APIError is the normalized failure shape for all Mattermost operations.
type APIError struct {
	Kind       Kind
	StatusCode int    // upstream HTTP status, 0 for transport errors
	Message    string // parsed upstream message or a generic description
}

func (e *APIError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("mattermost: %s (status %d): %s", e.Kind, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("mattermost: %s: %s", e.Kind, e.Message)
}

// errConfigurationMissing builds the early-return error for unconfigured users.
func errConfigurationMissing(what string) *APIError {
	return &APIError{Kind: KindConfigurationMissing, Message: "no " + what + " configured"}
}

// ErrorKind extracts the Kind from err, or KindRejected if err carries no
// APIError.
func ErrorKind(err error) Kind {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Kind
	}
	return KindRejected
}

// OrphanedUploadError reports that a file was uploaded to Mattermost but the
// follow-up message post failed, leaving the upload orphaned server-side.
type OrphanedUploadError struct {
	RemoteFileID string
	Err          error
}

func (e *OrphanedUploadError) Error() string {
	return fmt.Sprintf("file uploaded (remote id %s) but message post failed: %v", e.RemoteFileID, e.Err)
}

func (e *OrphanedUploadError) Unwrap() error { return e.Err }
