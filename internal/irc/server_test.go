package irc_test

import (
	"testing"

	"github.com/matt0x6f/irc-engine/internal/config"
	"github.com/matt0x6f/irc-engine/internal/events"
	"github.com/matt0x6f/irc-engine/internal/irc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T) (*irc.Server, *config.Preferences) {
	t.Helper()

	prefs := config.NewPreferences()
	identity := config.DefaultIdentity()
	identity.ID = 1
	identity.Nicknames = []string{"primary", "secondary", "tertiary"}
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
	t.Cleanup(func() { server.Shutdown("") })
	return server, prefs
}

func TestInitialNicknameFromIdentity(t *testing.T) {
	server, _ := newTestServer(t)
	assert.Equal(t, "primary", server.Nickname())
}

func TestNicknameInUseAdvancesCandidates(t *testing.T) {
	server, _ := newTestServer(t)

	server.HandleNicknameInUse("primary")
	assert.Equal(t, "secondary", server.Nickname())

	server.HandleNicknameInUse("secondary")
	assert.Equal(t, "tertiary", server.Nickname())

	// List exhausted: underscores from here on
	server.HandleNicknameInUse("tertiary")
	assert.Equal(t, "tertiary_", server.Nickname())

	server.HandleNicknameInUse("tertiary_")
	assert.Equal(t, "tertiary__", server.Nickname())
}

func TestIsAChannel(t *testing.T) {
	server, _ := newTestServer(t)

	assert.True(t, server.IsAChannel("#chan"))
	assert.True(t, server.IsAChannel("&local"))
	assert.True(t, server.IsAChannel("+modeless"))
	assert.True(t, server.IsAChannel("!secure"))
	assert.False(t, server.IsAChannel("nick"))
	assert.False(t, server.IsAChannel(""))
}

func TestOwnJoinRecordsHistory(t *testing.T) {
	server, prefs := newTestServer(t)

	server.HandleJoin("#go-nuts", "primary", "user@host")

	assert.True(t, server.Membership.IsJoinedChannel("#go-nuts"))
	group := prefs.ServerGroupByID(1)
	require.Len(t, group.History, 1)
	assert.Equal(t, "#go-nuts", group.History[0].Name)

	// Someone else joining leaves the history alone
	server.HandleJoin("#go-nuts", "alice", "alice@host")
	assert.Len(t, group.History, 1)
	assert.Equal(t, 2, server.Membership.MemberCount("#go-nuts"))
}

func TestOwnPartRetiresChannel(t *testing.T) {
	server, _ := newTestServer(t)

	server.HandleJoin("#chan", "primary", "")
	server.HandleJoin("#chan", "alice", "")

	server.HandlePart("#chan", "alice", "bye")
	assert.Equal(t, 1, server.Membership.MemberCount("#chan"))

	server.HandlePart("#chan", "primary", "leaving")
	assert.False(t, server.Membership.IsJoinedChannel("#chan"))
}

func TestOwnNickChange(t *testing.T) {
	server, _ := newTestServer(t)
	server.HandleJoin("#chan", "primary", "")

	server.HandleNick("primary", "renamed")
	assert.Equal(t, "renamed", server.Nickname())
	assert.NotNil(t, server.Membership.GetChannelNick("#chan", "renamed"))
	assert.Nil(t, server.Membership.GetChannelNick("#chan", "primary"))
}

func TestChannelMessageStampsMemberActivity(t *testing.T) {
	server, _ := newTestServer(t)
	server.HandleJoin("#chan", "alice", "")

	member := server.Membership.GetChannelNick("#chan", "alice")
	require.NotNil(t, member)
	assert.Zero(t, member.TimeStamp())

	server.HandlePrivmsg("#chan", "alice", "hello")
	assert.NotZero(t, member.TimeStamp())
}

func TestQuitRemovesFromEverywhere(t *testing.T) {
	server, _ := newTestServer(t)
	server.HandleJoin("#one", "alice", "")
	server.HandleJoin("#two", "alice", "")

	server.HandleQuit("alice", "client quit")
	assert.Nil(t, server.Membership.GetNickInfo("alice"))
	assert.Equal(t, 0, server.Membership.MemberCount("#one"))
}

func TestUpdateChannelModeMembership(t *testing.T) {
	server, _ := newTestServer(t)
	server.HandleJoin("#chan", "alice", "")

	server.UpdateChannelMode("oper", "#chan", 'o', true, "alice")
	member := server.Membership.GetChannelNick("#chan", "alice")
	require.NotNil(t, member)
	assert.True(t, member.IsOp())
	assert.Equal(t, 1, server.Membership.PrivilegedCount("#chan"))

	server.UpdateChannelMode("oper", "#chan", 'o', false, "alice")
	assert.False(t, member.IsOp())
	assert.Equal(t, 0, server.Membership.PrivilegedCount("#chan"))
}

func TestUpdateChannelModeBans(t *testing.T) {
	server, _ := newTestServer(t)
	server.HandleJoin("#chan", "primary", "")

	server.UpdateChannelMode("oper", "#chan", 'b', true, "*!*@bad.example")
	assert.Equal(t, []string{"*!*@bad.example"}, server.Membership.Bans("#chan"))

	server.UpdateChannelMode("oper", "#chan", 'b', false, "*!*@bad.example")
	assert.Empty(t, server.Membership.Bans("#chan"))
}

func TestNamesReplySetsModes(t *testing.T) {
	server, _ := newTestServer(t)

	server.HandleNamesReply("#chan", "alice", "ov")
	server.HandleNamesReply("#chan", "bob", "")

	alice := server.Membership.GetChannelNick("#chan", "alice")
	require.NotNil(t, alice)
	assert.True(t, alice.IsOp())
	assert.True(t, alice.HasVoice())
	assert.Equal(t, 1, server.Membership.PrivilegedCount("#chan"))
	assert.Equal(t, 2, server.Membership.MemberCount("#chan"))
}

func TestWhoReplyUpdatesNickInfo(t *testing.T) {
	server, _ := newTestServer(t)
	server.HandleJoin("#chan", "alice", "")

	server.HandleWhoReply("alice", "ident", "host.example", "Alice Example", true)
	info := server.Membership.GetNickInfo("alice")
	require.NotNil(t, info)
	assert.Equal(t, "ident@host.example", info.Hostmask())
	assert.Equal(t, "Alice Example", info.RealName())
	assert.True(t, info.IsAway())
}

func TestPreLengthAccountsForHeader(t *testing.T) {
	server, _ := newTestServer(t)

	// :nick!user@host PRIVMSG #chan :
	pre := server.PreLength("PRIVMSG", "#chan")
	assert.Equal(t, len("PRIVMSG")+len("#chan")+len(server.Nickname())+8, pre)

	server.HandleJoin("#chan", "primary", "user@some.long.host.example")
	longer := server.PreLength("PRIVMSG", "#chan")
	assert.Greater(t, longer, pre, "a known hostmask lengthens the implicit header")
}

func TestDeliberateDisconnectSkipsHook(t *testing.T) {
	server, _ := newTestServer(t)

	var hookDeliberate []bool
	server.SetDisconnectHook(func(deliberate bool) {
		hookDeliberate = append(hookDeliberate, deliberate)
	})

	// Socket loss without a pending deliberate quit
	server.HandleDisconnected(nil)
	require.Equal(t, []bool{false}, hookDeliberate)

	server.Disconnect("bye")
	server.HandleDisconnected(nil)
	assert.Equal(t, []bool{false, true}, hookDeliberate)
}

func TestAwayStateTracking(t *testing.T) {
	server, _ := newTestServer(t)

	assert.False(t, server.IsAway())
	server.HandleAwayStateChanged(true)
	assert.True(t, server.IsAway())
	server.HandleAwayStateChanged(false)
	assert.False(t, server.IsAway())
}
