package tracker

import (
	"errors"
	"fmt"
)

var (
	// ErrUpstream marks a failed or non-success call to GitHub.
	ErrUpstream = errors.New("upstream request failed")
	// ErrManifest marks a manifest that is malformed or lacks the expected entry.
	ErrManifest = errors.New("manifest parse error")
	// ErrNotEnoughReleases marks a lineage whose repository has too few releases to diff.
	ErrNotEnoughReleases = errors.New("not enough releases")
	// ErrNotificationsDisabled is returned by Notify when no webhook is configured.
	ErrNotificationsDisabled = errors.New("notifications are not configured")
)

func upstreamError(err error, format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s: %w", ErrUpstream, fmt.Sprintf(format, args...), err)
}

func manifestError(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrManifest, fmt.Sprintf(format, args...))
}
