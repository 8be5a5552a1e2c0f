package irc

// Event types emitted on the engine bus. Payloads are map[string]interface{}
// keyed by the names documented next to each constant.
const (
	// connection lifecycle: "connection_id", "name", "state", "reason"
	EventStateChanged = "connection.state"
	// "connection_id", "host", "port", "ssl"
	EventConnecting = "connection.connecting"
	// "connection_id", "nick"
	EventConnected = "connection.connected"
	// "connection_id", "deliberate"
	EventDisconnected = "connection.disconnected"
	// "connection_id", "attempt", "max", "host", "port"
	EventReconnecting = "connection.reconnecting"
	// "connection_id", "reason"
	EventReconnectAbandoned = "connection.reconnect_abandoned"

	// session traffic: "connection_id", "target", "nick", "message"
	EventMessage = "session.message"
	// "connection_id", "target", "nick", "message"
	EventNotice = "session.notice"
	// server text lines: "connection_id", "text"
	EventServerText = "session.server_text"
	// "connection_id", "old_nick", "new_nick", "own"
	EventNickChanged = "session.nick_changed"
	// "connection_id", "channel", "nick"
	EventJoined = "session.joined"
	// "connection_id", "channel", "nick", "reason"
	EventParted = "session.parted"
	// "connection_id", "channel", "nick", "by", "reason"
	EventKicked = "session.kicked"
	// "connection_id", "nick", "reason"
	EventQuit = "session.quit"
	// "connection_id", "channel", "topic", "by"
	EventTopic = "session.topic"
	// "connection_id", "channel", "mode", "by"
	EventChannelMode = "session.channel_mode"
	// "connection_id", "query"
	EventQueryOpened = "session.query_opened"

	// away state: "connection_id", "away", "message"
	EventAwayChanged = "away.changed"

	// notify/watch list: "connection_id", "nick"
	EventWatchedNickOnline  = "notify.online"
	EventWatchedNickOffline = "notify.offline"
	// "connection_id", "elapsed"
	EventNotifyResponseSlow = "notify.slow"

	// "connection_id", "lag_ms"
	EventLagMeasured = "session.lag"
)
