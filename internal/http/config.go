package http

import (
	"time"

	"github.com/mrlokans/bookkeeper/internal/auth"
	"github.com/mrlokans/bookkeeper/internal/covers"
	"github.com/mrlokans/bookkeeper/internal/session"
)

// RouterConfig contains all dependencies needed to create the HTTP router.
type RouterConfig struct {
	Session   *session.Session
	Database  Pinger
	TaskQueue Pinger        // optional, reported by /health when set
	Covers    *covers.Store // optional, cover routes are skipped when nil
	Notices   NoticeSource  // optional
	Throttle  *auth.LoginThrottle

	// StreamHeartbeat overrides DefaultStreamHeartbeat.
	StreamHeartbeat time.Duration

	// Access log toggle, off in tests
	AccessLog bool

	Version string
}
