package sandbox

import (
	"errors"
	"time"
)

var (
	// ErrRenderTimeout means no completion arrived within the render
	// timeout. The pending entry is gone; the caller decides whether to
	// retry.
	ErrRenderTimeout = errors.New("render timed out")

	// ErrContextUnavailable means the isolated context does not exist:
	// the controller was destroyed or never started.
	ErrContextUnavailable = errors.New("sandbox context unavailable")
)

// Config defines sandbox configuration.
type Config struct {
	// RenderTimeout bounds each render or height round trip.
	RenderTimeout time.Duration

	// SettleDelay is how long the executor waits after injected scripts
	// ran before measuring, so their DOM mutations are included.
	SettleDelay time.Duration

	// ScriptTimeout bounds a single injected script's execution.
	ScriptTimeout time.Duration
}

// DefaultConfig returns production defaults.
func DefaultConfig() Config {
	return Config{
		RenderTimeout: 5 * time.Second,
		SettleDelay:   50 * time.Millisecond,
		ScriptTimeout: 2 * time.Second,
	}
}

// frameInterval approximates one rendering frame at 60fps. The executor
// waits one frame plus SettleDelay before measuring interactive content.
const frameInterval = 16 * time.Millisecond

// channelBuffer sizes the message link in each direction. The link is FIFO
// per direction; a small buffer keeps the two sides loosely coupled.
const channelBuffer = 16
