package storage_test

import (
	"testing"

	"github.com/matt0x6f/irc-engine/internal/config"
	"github.com/matt0x6f/irc-engine/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStorage(t *testing.T) *storage.Storage {
	t.Helper()
	s, err := storage.NewStorage(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func testIdentity() *config.Identity {
	return &config.Identity{
		ID:              1,
		Name:            "Work",
		RealName:        "Working Account",
		Ident:           "work",
		Nicknames:       []string{"worker", "worker_", "worker__"},
		AuthType:        "saslplain",
		SASLAccount:     "worker",
		QuitReason:      "Gone.",
		PartReason:      "Later.",
		KickReason:      "Out.",
		AutomaticAway:   true,
		AwayInactivity:  15,
		AutomaticUnaway: true,
		AwayMessage:     "afk",
		ReturnMessage:   "back",
		AwayNickname:    "worker|away",
	}
}

func testGroup() *config.ServerGroupSettings {
	return &config.ServerGroupSettings{
		ID:         1,
		Name:       "libera",
		IdentityID: 1,
		ServerList: []config.ServerSettings{
			{Host: "irc.libera.chat", Port: 6697, SSL: true},
			{Host: "irc.eu.libera.chat", Port: 6667},
		},
		AutoJoin: []config.ChannelSettings{
			{Name: "#go-nuts"},
			{Name: "#private", Password: "key"},
		},
		History: []config.ChannelSettings{
			{Name: "#recent"},
		},
		ConnectCommands: "/msg NickServ IDENTIFY hunter2",
		AutoConnect:     true,
		Notifications:   true,
		NotifyList:      []string{"alice", "bob"},
	}
}

func TestIdentityRoundtrip(t *testing.T) {
	s := newTestStorage(t)
	want := testIdentity()
	require.NoError(t, s.SaveIdentity(want))

	identities, err := s.Identities()
	require.NoError(t, err)
	require.Len(t, identities, 1)
	assert.Equal(t, want, identities[0])

	// Saving again replaces, not duplicates
	want.RealName = "Renamed"
	require.NoError(t, s.SaveIdentity(want))
	identities, err = s.Identities()
	require.NoError(t, err)
	require.Len(t, identities, 1)
	assert.Equal(t, "Renamed", identities[0].RealName)
}

func TestServerGroupRoundtrip(t *testing.T) {
	s := newTestStorage(t)
	want := testGroup()
	require.NoError(t, s.SaveServerGroup(want))

	groups, err := s.ServerGroups()
	require.NoError(t, err)
	require.Len(t, groups, 1)
	got := groups[0]

	assert.Equal(t, want.Name, got.Name)
	assert.Equal(t, want.IdentityID, got.IdentityID)
	assert.Equal(t, want.ConnectCommands, got.ConnectCommands)
	assert.True(t, got.AutoConnect)
	assert.Equal(t, want.ServerList, got.ServerList, "server order survives")
	assert.Equal(t, want.AutoJoin, got.AutoJoin)
	assert.Equal(t, want.History, got.History)
	assert.Equal(t, want.NotifyList, got.NotifyList)
}

func TestSaveServerGroupReplacesChildren(t *testing.T) {
	s := newTestStorage(t)
	group := testGroup()
	require.NoError(t, s.SaveServerGroup(group))

	group.ServerList = group.ServerList[:1]
	group.NotifyList = []string{"carol"}
	require.NoError(t, s.SaveServerGroup(group))

	groups, err := s.ServerGroups()
	require.NoError(t, err)
	require.Len(t, groups, 1)
	assert.Len(t, groups[0].ServerList, 1)
	assert.Equal(t, []string{"carol"}, groups[0].NotifyList)
}

func TestSaveChannelHistory(t *testing.T) {
	s := newTestStorage(t)
	require.NoError(t, s.SaveServerGroup(testGroup()))

	history := []config.ChannelSettings{
		{Name: "#newest"},
		{Name: "#older", Password: "key"},
	}
	require.NoError(t, s.SaveChannelHistory(1, history))

	groups, err := s.ServerGroups()
	require.NoError(t, err)
	require.Len(t, groups, 1)
	assert.Equal(t, history, groups[0].History, "position order survives")
}

func TestIgnoreListRoundtrip(t *testing.T) {
	s := newTestStorage(t)

	require.NoError(t, s.SaveIgnoreList([]string{"troll!*@*", "*!*@spam.example"}))
	patterns, err := s.IgnoreList()
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"troll!*@*", "*!*@spam.example"}, patterns)

	require.NoError(t, s.SaveIgnoreList(nil))
	patterns, err = s.IgnoreList()
	require.NoError(t, err)
	assert.Empty(t, patterns)
}

func TestSettings(t *testing.T) {
	s := newTestStorage(t)

	value, err := s.Setting("command_char")
	require.NoError(t, err)
	assert.Empty(t, value, "unset settings read as empty")

	require.NoError(t, s.SetSetting("command_char", "!"))
	value, err = s.Setting("command_char")
	require.NoError(t, err)
	assert.Equal(t, "!", value)
}

func TestPreferencesRoundtrip(t *testing.T) {
	s := newTestStorage(t)

	prefs := config.NewPreferences()
	prefs.CommandChar = "!"
	prefs.AddIdentity(testIdentity())
	prefs.AddServerGroup(testGroup())
	prefs.AddIgnore("troll")

	require.NoError(t, s.SavePreferences(prefs))

	loaded, err := s.LoadPreferences()
	require.NoError(t, err)

	assert.Equal(t, "!", loaded.CommandChar)
	assert.Equal(t, "Work", loaded.IdentityByID(1).Name)
	require.NotNil(t, loaded.ServerGroupByName("libera"))
	assert.Equal(t, []string{"troll!*@*"}, loaded.IgnoreList())
}
