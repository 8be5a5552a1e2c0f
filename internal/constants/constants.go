package constants

import "time"

// Engine timing constants
const (
	// NotifySlowReportInterval is how often an outstanding ISON check is
	// reported as taking too long. Informational only, the wait is never
	// aborted.
	NotifySlowReportInterval = 5 * time.Second

	// LagCheckInterval is the delay between server PINGs used for lag
	// measurement.
	LagCheckInterval = 60 * time.Second

	// AutoConnectDelay is the initial delay before starting auto-connect
	AutoConnectDelay = 1 * time.Second

	// ConnectionStaggerDelay is the delay between each auto-connected
	// server group
	ConnectionStaggerDelay = 500 * time.Millisecond

	// MaxChannelHistory caps the per-group recently-joined channel list
	MaxChannelHistory = 10
)

// EngineVersion is the reply text for version requests.
const EngineVersion = "irc-engine 1.0.0"
