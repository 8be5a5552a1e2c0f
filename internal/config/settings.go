package config

import (
	"fmt"
	"strings"

	"github.com/matt0x6f/irc-engine/internal/constants"
)

// ServerSettings describes one candidate server within a group or an
// ad-hoc connection target.
type ServerSettings struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Password string `yaml:"password"`
	SSL      bool   `yaml:"ssl"`
}

// String renders the settings as host:port.
func (s ServerSettings) String() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// Equal compares host, port and SSL flag. Password differences do not make
// two servers distinct for deduplication purposes.
func (s ServerSettings) Equal(other ServerSettings) bool {
	return strings.EqualFold(s.Host, other.Host) && s.Port == other.Port && s.SSL == other.SSL
}

// ChannelSettings is a channel to join, with an optional key.
type ChannelSettings struct {
	Name     string `yaml:"name"`
	Password string `yaml:"password"`
}

// ServerGroupSettings is a named group of redundant servers sharing one
// identity, used for fallback and reconnection.
type ServerGroupSettings struct {
	ID              int               `yaml:"id"`
	Name            string            `yaml:"name"`
	ServerList      []ServerSettings  `yaml:"servers"`
	IdentityID      int               `yaml:"identity_id"`
	AutoJoin        []ChannelSettings `yaml:"auto_join"`
	History         []ChannelSettings `yaml:"history"` // recently joined, most recent first
	ConnectCommands string            `yaml:"connect_commands"`
	AutoConnect     bool              `yaml:"auto_connect"`
	Notifications   bool              `yaml:"notifications"`
	NotifyList      []string          `yaml:"notify_list"`
}

// AppendToHistory records a joined channel at the front of the history
// list, deduplicating by name and keeping only the most recent entries.
func (g *ServerGroupSettings) AppendToHistory(channel ChannelSettings) {
	out := make([]ChannelSettings, 0, len(g.History)+1)
	out = append(out, channel)
	for _, c := range g.History {
		if !strings.EqualFold(c.Name, channel.Name) {
			out = append(out, c)
		}
	}
	if len(out) > constants.MaxChannelHistory {
		out = out[:constants.MaxChannelHistory]
	}
	g.History = out
}

// ConnectionSettings is the resolved parameters for one connection
// attempt: a concrete server plus an optional backing group and one-shot
// join list.
type ConnectionSettings struct {
	Server      ServerSettings
	Group       *ServerGroupSettings
	InitialNick string

	// OneShot channels are joined once on this connection and then cleared.
	OneShot []ChannelSettings

	// ReconnectCount tracks how many reconnect attempts have been made
	// since the last successful connect.
	ReconnectCount int
}

// IsValid reports whether the settings carry a resolved server. Invalid
// settings must never produce a connection attempt.
func (c ConnectionSettings) IsValid() bool {
	return c.Server.Host != "" && c.Server.Port > 0
}

// Name returns the group name when backed by a group, host:port otherwise.
func (c ConnectionSettings) Name() string {
	if c.Group != nil {
		return c.Group.Name
	}
	return c.Server.String()
}

// IdentityID returns the group's identity reference, or the default
// identity for ad-hoc connections.
func (c ConnectionSettings) IdentityID() int {
	if c.Group != nil {
		return c.Group.IdentityID
	}
	return DefaultIdentityID
}
