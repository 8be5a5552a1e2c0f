package storage

// Identity is the database row for a user profile.
type Identity struct {
	ID              int    `db:"id"`
	Name            string `db:"name"`
	RealName        string `db:"real_name"`
	Ident           string `db:"ident"`
	Nicknames       string `db:"nicknames"` // JSON array, fallback order
	AuthType        string `db:"auth_type"`
	SASLAccount     string `db:"sasl_account"`
	QuitReason      string `db:"quit_reason"`
	PartReason      string `db:"part_reason"`
	KickReason      string `db:"kick_reason"`
	AutomaticAway   bool   `db:"automatic_away"`
	AwayInactivity  int    `db:"away_inactivity"`
	AutomaticUnaway bool   `db:"automatic_unaway"`
	AwayMessage     string `db:"away_message"`
	ReturnMessage   string `db:"return_message"`
	AwayNickname    string `db:"away_nickname"`
}

// ServerGroup is the database row for a named group of fallback servers.
type ServerGroup struct {
	ID              int    `db:"id"`
	Name            string `db:"name"`
	IdentityID      int    `db:"identity_id"`
	ConnectCommands string `db:"connect_commands"`
	AutoConnect     bool   `db:"auto_connect"`
	Notifications   bool   `db:"notifications"`
}

// Server is one server address within a group, ordered for fallback.
type Server struct {
	ID        int    `db:"id"`
	GroupID   int    `db:"group_id"`
	Host      string `db:"host"`
	Port      int    `db:"port"`
	SSL       bool   `db:"ssl"`
	SortOrder int    `db:"sort_order"`
}

// Channel is an auto-join channel attached to a group.
type Channel struct {
	ID        int    `db:"id"`
	GroupID   int    `db:"group_id"`
	Name      string `db:"name"`
	Password  string `db:"password"`
	SortOrder int    `db:"sort_order"`
}

// HistoryChannel is a recently joined channel, position 0 most recent.
type HistoryChannel struct {
	GroupID  int    `db:"group_id"`
	Name     string `db:"name"`
	Password string `db:"password"`
	Position int    `db:"position"`
}

// NotifyEntry is one watched nickname on a group's notify list.
type NotifyEntry struct {
	GroupID int    `db:"group_id"`
	Nick    string `db:"nick"`
}
