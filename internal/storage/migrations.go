package storage

import (
	"fmt"

	"github.com/jmoiron/sqlx"
)

const createIdentitiesTable = `
CREATE TABLE IF NOT EXISTS identities (
	id INTEGER PRIMARY KEY,
	name TEXT NOT NULL,
	real_name TEXT NOT NULL DEFAULT '',
	ident TEXT NOT NULL DEFAULT '',
	nicknames TEXT NOT NULL DEFAULT '[]',
	auth_type TEXT NOT NULL DEFAULT '',
	sasl_account TEXT NOT NULL DEFAULT '',
	quit_reason TEXT NOT NULL DEFAULT '',
	part_reason TEXT NOT NULL DEFAULT '',
	kick_reason TEXT NOT NULL DEFAULT '',
	automatic_away BOOLEAN NOT NULL DEFAULT 0,
	away_inactivity INTEGER NOT NULL DEFAULT 10,
	automatic_unaway BOOLEAN NOT NULL DEFAULT 0,
	away_message TEXT NOT NULL DEFAULT '',
	return_message TEXT NOT NULL DEFAULT '',
	away_nickname TEXT NOT NULL DEFAULT ''
);`

const createServerGroupsTable = `
CREATE TABLE IF NOT EXISTS server_groups (
	id INTEGER PRIMARY KEY,
	name TEXT NOT NULL UNIQUE,
	identity_id INTEGER NOT NULL DEFAULT 0,
	connect_commands TEXT NOT NULL DEFAULT '',
	auto_connect BOOLEAN NOT NULL DEFAULT 0,
	notifications BOOLEAN NOT NULL DEFAULT 1,
	FOREIGN KEY (identity_id) REFERENCES identities(id)
);`

const createServersTable = `
CREATE TABLE IF NOT EXISTS servers (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	group_id INTEGER NOT NULL,
	host TEXT NOT NULL,
	port INTEGER NOT NULL DEFAULT 6667,
	ssl BOOLEAN NOT NULL DEFAULT 0,
	sort_order INTEGER NOT NULL DEFAULT 0,
	FOREIGN KEY (group_id) REFERENCES server_groups(id) ON DELETE CASCADE
);`

const createChannelsTable = `
CREATE TABLE IF NOT EXISTS autojoin_channels (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	group_id INTEGER NOT NULL,
	name TEXT NOT NULL,
	password TEXT NOT NULL DEFAULT '',
	sort_order INTEGER NOT NULL DEFAULT 0,
	FOREIGN KEY (group_id) REFERENCES server_groups(id) ON DELETE CASCADE
);`

const createChannelHistoryTable = `
CREATE TABLE IF NOT EXISTS channel_history (
	group_id INTEGER NOT NULL,
	name TEXT NOT NULL,
	password TEXT NOT NULL DEFAULT '',
	position INTEGER NOT NULL DEFAULT 0,
	PRIMARY KEY (group_id, name),
	FOREIGN KEY (group_id) REFERENCES server_groups(id) ON DELETE CASCADE
);`

const createNotifyListTable = `
CREATE TABLE IF NOT EXISTS notify_list (
	group_id INTEGER NOT NULL,
	nick TEXT NOT NULL,
	PRIMARY KEY (group_id, nick),
	FOREIGN KEY (group_id) REFERENCES server_groups(id) ON DELETE CASCADE
);`

const createIgnoreListTable = `
CREATE TABLE IF NOT EXISTS ignore_list (
	pattern TEXT PRIMARY KEY
);`

const createSettingsTable = `
CREATE TABLE IF NOT EXISTS settings (
	key TEXT PRIMARY KEY,
	value TEXT NOT NULL
);`

const createIndexes = `
CREATE INDEX IF NOT EXISTS idx_servers_group ON servers(group_id, sort_order);
CREATE INDEX IF NOT EXISTS idx_autojoin_group ON autojoin_channels(group_id, sort_order);
CREATE INDEX IF NOT EXISTS idx_history_group ON channel_history(group_id, position);`

// Migrate runs all database migrations.
func Migrate(db *sqlx.DB) error {
	migrations := []string{
		createIdentitiesTable,
		createServerGroupsTable,
		createServersTable,
		createChannelsTable,
		createChannelHistoryTable,
		createNotifyListTable,
		createIgnoreListTable,
		createSettingsTable,
		createIndexes,
	}

	for i, migration := range migrations {
		if _, err := db.Exec(migration); err != nil {
			return fmt.Errorf("migration %d failed: %w", i+1, err)
		}
	}
	return nil
}
