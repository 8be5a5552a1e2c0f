package storage

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/matt0x6f/irc-engine/internal/config"
	"github.com/matt0x6f/irc-engine/internal/logger"
	_ "github.com/mattn/go-sqlite3"
)

// Storage is the sqlite-backed preferences store: identities, server
// groups with their servers and channels, notify and ignore lists, and
// global settings.
type Storage struct {
	db *sqlx.DB
}

// NewStorage opens (creating if needed) the preferences database and runs
// migrations.
func NewStorage(dbPath string) (*Storage, error) {
	// WAL mode for better concurrent access
	db, err := sqlx.Connect("sqlite3", dbPath+"?_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite works best with a single connection in WAL mode
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	if err := Migrate(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migration failed: %w", err)
	}

	return &Storage{db: db}, nil
}

// Close closes the database.
func (s *Storage) Close() error {
	return s.db.Close()
}

// SaveIdentity inserts or replaces an identity.
func (s *Storage) SaveIdentity(identity *config.Identity) error {
	nicknames, err := json.Marshal(identity.Nicknames)
	if err != nil {
		return fmt.Errorf("failed to encode nicknames: %w", err)
	}
	row := Identity{
		ID:              identity.ID,
		Name:            identity.Name,
		RealName:        identity.RealName,
		Ident:           identity.Ident,
		Nicknames:       string(nicknames),
		AuthType:        identity.AuthType,
		SASLAccount:     identity.SASLAccount,
		QuitReason:      identity.QuitReason,
		PartReason:      identity.PartReason,
		KickReason:      identity.KickReason,
		AutomaticAway:   identity.AutomaticAway,
		AwayInactivity:  identity.AwayInactivity,
		AutomaticUnaway: identity.AutomaticUnaway,
		AwayMessage:     identity.AwayMessage,
		ReturnMessage:   identity.ReturnMessage,
		AwayNickname:    identity.AwayNickname,
	}
	_, err = s.db.NamedExec(`
		INSERT OR REPLACE INTO identities (
			id, name, real_name, ident, nicknames, auth_type, sasl_account,
			quit_reason, part_reason, kick_reason, automatic_away,
			away_inactivity, automatic_unaway, away_message, return_message,
			away_nickname
		) VALUES (
			:id, :name, :real_name, :ident, :nicknames, :auth_type, :sasl_account,
			:quit_reason, :part_reason, :kick_reason, :automatic_away,
			:away_inactivity, :automatic_unaway, :away_message, :return_message,
			:away_nickname
		)`, row)
	if err != nil {
		return fmt.Errorf("failed to save identity: %w", err)
	}
	return nil
}

// Identities loads all stored identities.
func (s *Storage) Identities() ([]*config.Identity, error) {
	var rows []Identity
	if err := s.db.Select(&rows, "SELECT * FROM identities ORDER BY id"); err != nil {
		return nil, fmt.Errorf("failed to load identities: %w", err)
	}

	out := make([]*config.Identity, 0, len(rows))
	for _, row := range rows {
		identity := &config.Identity{
			ID:              row.ID,
			Name:            row.Name,
			RealName:        row.RealName,
			Ident:           row.Ident,
			AuthType:        row.AuthType,
			SASLAccount:     row.SASLAccount,
			QuitReason:      row.QuitReason,
			PartReason:      row.PartReason,
			KickReason:      row.KickReason,
			AutomaticAway:   row.AutomaticAway,
			AwayInactivity:  row.AwayInactivity,
			AutomaticUnaway: row.AutomaticUnaway,
			AwayMessage:     row.AwayMessage,
			ReturnMessage:   row.ReturnMessage,
			AwayNickname:    row.AwayNickname,
		}
		if err := json.Unmarshal([]byte(row.Nicknames), &identity.Nicknames); err != nil {
			logger.Log.Warn().Err(err).Str("identity", row.Name).Msg("Corrupt nickname list, skipping")
		}
		out = append(out, identity)
	}
	return out, nil
}

// SaveServerGroup inserts or replaces a group together with its server
// list, auto-join channels and notify list.
func (s *Storage) SaveServerGroup(group *config.ServerGroupSettings) error {
	tx, err := s.db.Beginx()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(`
		INSERT OR REPLACE INTO server_groups
			(id, name, identity_id, connect_commands, auto_connect, notifications)
		VALUES (?, ?, ?, ?, ?, ?)`,
		group.ID, group.Name, group.IdentityID, group.ConnectCommands,
		group.AutoConnect, group.Notifications)
	if err != nil {
		return fmt.Errorf("failed to save server group: %w", err)
	}

	for _, table := range []string{"servers", "autojoin_channels", "channel_history", "notify_list"} {
		if _, err := tx.Exec("DELETE FROM "+table+" WHERE group_id = ?", group.ID); err != nil {
			return fmt.Errorf("failed to clear %s: %w", table, err)
		}
	}

	for i, server := range group.ServerList {
		_, err := tx.Exec(`
			INSERT INTO servers (group_id, host, port, ssl, sort_order)
			VALUES (?, ?, ?, ?, ?)`,
			group.ID, server.Host, server.Port, server.SSL, i)
		if err != nil {
			return fmt.Errorf("failed to save server: %w", err)
		}
	}
	for i, channel := range group.AutoJoin {
		_, err := tx.Exec(`
			INSERT INTO autojoin_channels (group_id, name, password, sort_order)
			VALUES (?, ?, ?, ?)`,
			group.ID, channel.Name, channel.Password, i)
		if err != nil {
			return fmt.Errorf("failed to save auto-join channel: %w", err)
		}
	}
	for i, channel := range group.History {
		_, err := tx.Exec(`
			INSERT INTO channel_history (group_id, name, password, position)
			VALUES (?, ?, ?, ?)`,
			group.ID, channel.Name, channel.Password, i)
		if err != nil {
			return fmt.Errorf("failed to save channel history: %w", err)
		}
	}
	for _, nick := range group.NotifyList {
		_, err := tx.Exec(`
			INSERT INTO notify_list (group_id, nick) VALUES (?, ?)`,
			group.ID, nick)
		if err != nil {
			return fmt.Errorf("failed to save notify entry: %w", err)
		}
	}

	return tx.Commit()
}

// ServerGroups loads all stored groups, fully assembled.
func (s *Storage) ServerGroups() ([]*config.ServerGroupSettings, error) {
	var rows []ServerGroup
	if err := s.db.Select(&rows, "SELECT * FROM server_groups ORDER BY id"); err != nil {
		return nil, fmt.Errorf("failed to load server groups: %w", err)
	}

	out := make([]*config.ServerGroupSettings, 0, len(rows))
	for _, row := range rows {
		group := &config.ServerGroupSettings{
			ID:              row.ID,
			Name:            row.Name,
			IdentityID:      row.IdentityID,
			ConnectCommands: row.ConnectCommands,
			AutoConnect:     row.AutoConnect,
			Notifications:   row.Notifications,
		}

		var servers []Server
		err := s.db.Select(&servers,
			"SELECT * FROM servers WHERE group_id = ? ORDER BY sort_order", row.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to load servers for group %d: %w", row.ID, err)
		}
		for _, server := range servers {
			group.ServerList = append(group.ServerList, config.ServerSettings{
				Host: server.Host, Port: server.Port, SSL: server.SSL,
			})
		}

		var channels []Channel
		err = s.db.Select(&channels,
			"SELECT * FROM autojoin_channels WHERE group_id = ? ORDER BY sort_order", row.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to load channels for group %d: %w", row.ID, err)
		}
		for _, channel := range channels {
			group.AutoJoin = append(group.AutoJoin, config.ChannelSettings{
				Name: channel.Name, Password: channel.Password,
			})
		}

		var history []HistoryChannel
		err = s.db.Select(&history,
			"SELECT * FROM channel_history WHERE group_id = ? ORDER BY position", row.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to load history for group %d: %w", row.ID, err)
		}
		for _, channel := range history {
			group.History = append(group.History, config.ChannelSettings{
				Name: channel.Name, Password: channel.Password,
			})
		}

		var notify []string
		err = s.db.Select(&notify,
			"SELECT nick FROM notify_list WHERE group_id = ? ORDER BY nick", row.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to load notify list for group %d: %w", row.ID, err)
		}
		group.NotifyList = notify

		out = append(out, group)
	}
	return out, nil
}

// SaveChannelHistory persists a group's recently-joined list.
func (s *Storage) SaveChannelHistory(groupID int, history []config.ChannelSettings) error {
	tx, err := s.db.Beginx()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM channel_history WHERE group_id = ?", groupID); err != nil {
		return fmt.Errorf("failed to clear channel history: %w", err)
	}
	for i, channel := range history {
		_, err := tx.Exec(`
			INSERT INTO channel_history (group_id, name, password, position)
			VALUES (?, ?, ?, ?)`,
			groupID, channel.Name, channel.Password, i)
		if err != nil {
			return fmt.Errorf("failed to save channel history: %w", err)
		}
	}
	return tx.Commit()
}

// SaveIgnoreList replaces the global ignore patterns.
func (s *Storage) SaveIgnoreList(patterns []string) error {
	tx, err := s.db.Beginx()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM ignore_list"); err != nil {
		return fmt.Errorf("failed to clear ignore list: %w", err)
	}
	for _, pattern := range patterns {
		if _, err := tx.Exec("INSERT INTO ignore_list (pattern) VALUES (?)", pattern); err != nil {
			return fmt.Errorf("failed to save ignore pattern: %w", err)
		}
	}
	return tx.Commit()
}

// IgnoreList loads the global ignore patterns.
func (s *Storage) IgnoreList() ([]string, error) {
	var patterns []string
	if err := s.db.Select(&patterns, "SELECT pattern FROM ignore_list ORDER BY pattern"); err != nil {
		return nil, fmt.Errorf("failed to load ignore list: %w", err)
	}
	return patterns, nil
}

// SetSetting stores one global setting.
func (s *Storage) SetSetting(key, value string) error {
	_, err := s.db.Exec(
		"INSERT OR REPLACE INTO settings (key, value) VALUES (?, ?)", key, value)
	if err != nil {
		return fmt.Errorf("failed to save setting %q: %w", key, err)
	}
	return nil
}

// Setting retrieves one global setting, empty when unset.
func (s *Storage) Setting(key string) (string, error) {
	var value string
	err := s.db.Get(&value, "SELECT value FROM settings WHERE key = ?", key)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", nil
		}
		return "", fmt.Errorf("failed to load setting %q: %w", key, err)
	}
	return value, nil
}

// LoadPreferences assembles a full preferences object from the store.
// Global knobs not present in the settings table keep their defaults.
func (s *Storage) LoadPreferences() (*config.Preferences, error) {
	prefs := config.NewPreferences()

	identities, err := s.Identities()
	if err != nil {
		return nil, err
	}
	for _, identity := range identities {
		prefs.AddIdentity(identity)
	}

	groups, err := s.ServerGroups()
	if err != nil {
		return nil, err
	}
	for _, group := range groups {
		prefs.AddServerGroup(group)
	}

	patterns, err := s.IgnoreList()
	if err != nil {
		return nil, err
	}
	for _, pattern := range patterns {
		prefs.AddIgnore(pattern)
	}

	if commandChar, err := s.Setting("command_char"); err == nil && commandChar != "" {
		prefs.CommandChar = commandChar
	}

	return prefs, nil
}

// SavePreferences persists the identity set, server groups and ignore
// list back to the store.
func (s *Storage) SavePreferences(prefs *config.Preferences) error {
	for _, identity := range prefs.Identities() {
		if err := s.SaveIdentity(identity); err != nil {
			return err
		}
	}
	for _, group := range prefs.ServerGroups() {
		if err := s.SaveServerGroup(group); err != nil {
			return err
		}
	}
	if err := s.SaveIgnoreList(prefs.IgnoreList()); err != nil {
		return err
	}
	return s.SetSetting("command_char", prefs.CommandChar)
}
