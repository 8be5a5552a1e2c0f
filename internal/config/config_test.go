package config_test

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/matt0x6f/irc-engine/internal/config"
	"github.com/matt0x6f/irc-engine/internal/constants"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleConfig = `
command_char: "!"
reconnect_attempts: 3
reconnect_delay: 5s
queue_interval: 1s
ignore_list:
  - troll
  - "*!*@spam.example"
identities:
  - id: 1
    name: Work
    real_name: Working Account
    ident: work
    nicknames: [worker, worker_]
    auth_type: saslplain
    sasl_account: worker
server_groups:
  - id: 1
    name: libera
    identity_id: 1
    auto_connect: true
    servers:
      - host: irc.libera.chat
        ssl: true
      - host: irc.eu.libera.chat
        port: 6667
    auto_join:
      - name: "#go-nuts"
`

func TestLoadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sampleConfig), 0644))

	prefs, err := config.Load(path)
	require.NoError(t, err)

	assert.Equal(t, "!", prefs.CommandChar)
	assert.Equal(t, 3, prefs.ReconnectAttempts)
	assert.Equal(t, 5*time.Second, prefs.ReconnectDelay)
	assert.Equal(t, time.Second, prefs.QueueInterval)
	// Unset knobs keep their defaults
	assert.Equal(t, 20*time.Second, prefs.NotifyDelay)
	assert.True(t, prefs.AutoReconnect)

	// Plain nicknames on the ignore list are widened to masks
	assert.Equal(t, []string{"troll!*@*", "*!*@spam.example"}, prefs.IgnoreList())

	identity := prefs.IdentityByID(1)
	assert.Equal(t, "Work", identity.Name)
	assert.Equal(t, []string{"worker", "worker_"}, identity.Nicknames)

	group := prefs.ServerGroupByName("LIBERA")
	require.NotNil(t, group, "group lookup is case-insensitive")
	require.Len(t, group.ServerList, 2)
	// Missing ports default by SSL flag
	assert.Equal(t, 6697, group.ServerList[0].Port)
	assert.Equal(t, 6667, group.ServerList[1].Port)
}

func TestLoadRejectsBadDuration(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("reconnect_delay: soon\n"), 0644))

	_, err := config.Load(path)
	assert.Error(t, err)
}

func TestIdentityByIDFallsBack(t *testing.T) {
	prefs := config.NewPreferences()
	identity := prefs.IdentityByID(999)
	require.NotNil(t, identity)
	assert.Equal(t, config.DefaultIdentityID, identity.ID)
}

func TestNicknameFallbackOrder(t *testing.T) {
	identity := config.DefaultIdentity()

	assert.Equal(t, "ircengine", identity.Nickname(0))
	assert.Equal(t, "ircengine_", identity.Nickname(1))
	assert.Empty(t, identity.Nickname(99))
	assert.Empty(t, identity.Nickname(-1))

	assert.Equal(t, 1, identity.NicknameIndex("IRCENGINE_"))
	assert.Equal(t, -1, identity.NicknameIndex("stranger"))
}

func TestAppendToHistory(t *testing.T) {
	group := &config.ServerGroupSettings{}

	group.AppendToHistory(config.ChannelSettings{Name: "#a"})
	group.AppendToHistory(config.ChannelSettings{Name: "#b"})
	require.Len(t, group.History, 2)
	assert.Equal(t, "#b", group.History[0].Name, "most recent first")

	// Rejoining moves a channel to the front instead of duplicating it
	group.AppendToHistory(config.ChannelSettings{Name: "#A", Password: "key"})
	require.Len(t, group.History, 2)
	assert.Equal(t, "#A", group.History[0].Name)
	assert.Equal(t, "key", group.History[0].Password)

	for i := 0; i < constants.MaxChannelHistory+5; i++ {
		group.AppendToHistory(config.ChannelSettings{Name: fmt.Sprintf("#c%d", i)})
	}
	assert.Len(t, group.History, constants.MaxChannelHistory)
}

func TestServerSettingsEqual(t *testing.T) {
	a := config.ServerSettings{Host: "irc.example.org", Port: 6667}
	b := config.ServerSettings{Host: "IRC.EXAMPLE.ORG", Port: 6667, Password: "different"}
	assert.True(t, a.Equal(b), "password differences do not distinguish servers")

	b.Port = 6697
	assert.False(t, a.Equal(b))
}

func TestNotifyListMutation(t *testing.T) {
	prefs := config.NewPreferences()
	prefs.AddServerGroup(&config.ServerGroupSettings{ID: 1, Name: "net"})

	assert.True(t, prefs.AddNotify(1, "alice"))
	assert.False(t, prefs.AddNotify(1, "ALICE"), "watch list is case-insensitive")
	assert.True(t, prefs.IsNotify(1, "Alice"))

	assert.True(t, prefs.RemoveNotify(1, "alice"))
	assert.False(t, prefs.RemoveNotify(1, "alice"))
	assert.False(t, prefs.AddNotify(99, "bob"), "unknown group")
}

func TestConnectionSettingsHelpers(t *testing.T) {
	var settings config.ConnectionSettings
	assert.False(t, settings.IsValid())

	settings.Server = config.ServerSettings{Host: "irc.example.org", Port: 6667}
	assert.True(t, settings.IsValid())
	assert.Equal(t, "irc.example.org:6667", settings.Name())
	assert.Equal(t, config.DefaultIdentityID, settings.IdentityID())

	settings.Group = &config.ServerGroupSettings{Name: "net", IdentityID: 7}
	assert.Equal(t, "net", settings.Name())
	assert.Equal(t, 7, settings.IdentityID())
}
