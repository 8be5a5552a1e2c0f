package away_test

import (
	"testing"

	"github.com/matt0x6f/irc-engine/internal/away"
	"github.com/matt0x6f/irc-engine/internal/config"
	"github.com/matt0x6f/irc-engine/internal/events"
	"github.com/matt0x6f/irc-engine/internal/irc"
	"github.com/stretchr/testify/assert"
)

type fakeSessions struct {
	servers []*irc.Server
}

func (f *fakeSessions) Connections() []*irc.Server { return f.servers }

func awayFixture(t *testing.T) (*away.Manager, *irc.Server, *config.Preferences) {
	t.Helper()

	prefs := config.NewPreferences()
	identity := config.DefaultIdentity()
	identity.ID = 1
	identity.AutomaticAway = true
	identity.AutomaticUnaway = true
	identity.AwayMessage = "idle too long"
	prefs.AddIdentity(identity)

	group := &config.ServerGroupSettings{
		ID:         1,
		Name:       "testnet",
		IdentityID: 1,
		ServerList: []config.ServerSettings{{Host: "irc.example.org", Port: 6667}},
	}
	prefs.AddServerGroup(group)

	server := irc.NewServer(1, config.ConnectionSettings{
		Group:  group,
		Server: group.ServerList[0],
	}, prefs, events.NewEventBus())
	server.HandleConnected("tester")
	t.Cleanup(func() { server.Shutdown("") })

	m := away.NewManager(prefs, &fakeSessions{servers: []*irc.Server{server}})
	t.Cleanup(m.Stop)
	return m, server, prefs
}

func TestIdleTimeoutRequestsAway(t *testing.T) {
	m, server, _ := awayFixture(t)

	m.IdleTimeoutReached(1)
	assert.Equal(t, "idle too long", server.AwayMessage())
}

func TestIdleTimeoutIgnoredWhenDisabled(t *testing.T) {
	m, server, prefs := awayFixture(t)
	prefs.IdentityByID(1).AutomaticAway = false

	m.IdleTimeoutReached(1)
	assert.Empty(t, server.AwayMessage())
}

func TestActivityReturnsFromAway(t *testing.T) {
	m, server, _ := awayFixture(t)

	m.IdleTimeoutReached(1)
	server.HandleAwayStateChanged(true)
	assert.True(t, server.IsAway())

	m.RecordActivity()
	// The unaway request is confirmed by the server in due course
	server.HandleAwayStateChanged(false)
	assert.False(t, server.IsAway())
	assert.Empty(t, server.AwayMessage())
}

func TestRequestAllAwayAndBack(t *testing.T) {
	m, server, _ := awayFixture(t)

	m.RequestAllAway("meeting")
	assert.Equal(t, "meeting", server.AwayMessage())

	server.HandleAwayStateChanged(true)
	m.RequestAllUnaway()
	server.HandleAwayStateChanged(false)
	assert.False(t, server.IsAway())
}
