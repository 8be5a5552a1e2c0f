package outputfilter_test

import (
	"strings"
	"testing"

	"github.com/matt0x6f/irc-engine/internal/config"
	"github.com/matt0x6f/irc-engine/internal/outputfilter"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeSession is a minimal command context for filter tests.
type fakeSession struct {
	nickname  string
	identity  *config.Identity
	away      bool
	connected bool
	groupID   int
	preLength int
}

func newFakeSession() *fakeSession {
	return &fakeSession{
		nickname:  "tester",
		identity:  config.DefaultIdentity(),
		connected: true,
		groupID:   1,
		preLength: 60,
	}
}

func (s *fakeSession) Nickname() string { return s.nickname }
func (s *fakeSession) IsAChannel(name string) bool {
	return name != "" && strings.ContainsAny(name[:1], "#&+!")
}
func (s *fakeSession) Identity() *config.Identity { return s.identity }
func (s *fakeSession) IsAway() bool               { return s.away }
func (s *fakeSession) IsConnected() bool          { return s.connected }
func (s *fakeSession) ServerGroupID() int         { return s.groupID }
func (s *fakeSession) PreLength(command, dest string) int {
	return s.preLength + len(command) + len(dest)
}

func newTestFilter() (*outputfilter.OutputFilter, *config.Preferences) {
	prefs := config.NewPreferences()
	prefs.AddServerGroup(&config.ServerGroupSettings{ID: 1, Name: "testnet"})
	return outputfilter.NewOutputFilter(prefs), prefs
}

func TestResultIsEmpty(t *testing.T) {
	assert.True(t, outputfilter.Result{}.IsEmpty())

	f, _ := newTestFilter()
	result := f.Parse(newFakeSession(), "/join #chan", "")
	assert.False(t, result.IsEmpty())
}

func TestPlainTextBecomesPrivmsg(t *testing.T) {
	f, _ := newTestFilter()
	result := f.Parse(newFakeSession(), "hello there", "#chan")

	assert.Equal(t, []string{"PRIVMSG #chan :hello there"}, result.ToServer)
	assert.Equal(t, "hello there", result.Output)
	assert.Equal(t, outputfilter.TypeMessage, result.Type)
}

func TestPlainTextWithoutDestination(t *testing.T) {
	f, _ := newTestFilter()
	result := f.Parse(newFakeSession(), "hello", "")
	assert.NotEmpty(t, result.Error)
}

func TestDoubledCommandCharIsLiteral(t *testing.T) {
	f, _ := newTestFilter()
	result := f.Parse(newFakeSession(), "//slash commands are neat", "#chan")

	assert.Equal(t, []string{"PRIVMSG #chan :/slash commands are neat"}, result.ToServer)
	assert.Equal(t, outputfilter.TypeMessage, result.Type)
}

func TestUnknownCommandGoesVerbatim(t *testing.T) {
	f, _ := newTestFilter()
	result := f.Parse(newFakeSession(), "/whois alice", "#chan")

	assert.Equal(t, []string{"WHOIS alice"}, result.ToServer)
	assert.Equal(t, outputfilter.TypeCommand, result.Type)
}

func TestJoinNormalizesChannelName(t *testing.T) {
	f, _ := newTestFilter()

	result := f.Parse(newFakeSession(), "/join lobby", "")
	assert.Equal(t, []string{"JOIN #lobby"}, result.ToServer)

	result = f.Parse(newFakeSession(), "/j #go-nuts secretkey", "")
	assert.Equal(t, []string{"JOIN #go-nuts secretkey"}, result.ToServer)

	result = f.Parse(newFakeSession(), "/join", "")
	assert.NotEmpty(t, result.Usage)

	result = f.Parse(newFakeSession(), "/join #bad,name", "")
	assert.NotEmpty(t, result.Error)
}

func TestPartDefaultsReasonAndChannel(t *testing.T) {
	f, _ := newTestFilter()
	session := newFakeSession()

	result := f.Parse(session, "/part", "#chan")
	assert.Equal(t, []string{"PART #chan :" + session.identity.PartReason}, result.ToServer)

	result = f.Parse(session, "/part #other see ya", "#chan")
	assert.Equal(t, []string{"PART #other :see ya"}, result.ToServer)

	result = f.Parse(session, "/part", "")
	assert.NotEmpty(t, result.Error)
}

func TestKickDefaultsIdentityReason(t *testing.T) {
	f, _ := newTestFilter()
	session := newFakeSession()
	session.identity.KickReason = "Out you go"

	result := f.Parse(session, "/kick troll", "#chan")
	assert.Equal(t, []string{"KICK #chan troll :Out you go"}, result.ToServer)

	result = f.Parse(session, "/kick troll enough of that", "#chan")
	assert.Equal(t, []string{"KICK #chan troll :enough of that"}, result.ToServer)

	result = f.Parse(session, "/kick troll", "alice")
	assert.NotEmpty(t, result.Error, "kick outside a channel fails")
}

func TestKickbanCompletesMask(t *testing.T) {
	f, _ := newTestFilter()
	session := newFakeSession()
	session.identity.KickReason = "Begone."

	result := f.Parse(session, "/kickban troll", "#chan")
	require.Len(t, result.ToServer, 2)
	assert.Equal(t, "MODE #chan +b troll!*@*", result.ToServer[0])
	assert.Equal(t, "KICK #chan troll :Begone.", result.ToServer[1])
}

func TestQuitCarriesIdentityReason(t *testing.T) {
	f, _ := newTestFilter()
	session := newFakeSession()
	session.identity.QuitReason = "Gone fishing"

	result := f.Parse(session, "/quit", "#chan")
	assert.True(t, result.Action.Disconnect)
	assert.Equal(t, "Gone fishing", result.Action.DisconnectReason)

	result = f.Parse(session, "/quit bye all", "#chan")
	assert.Equal(t, "bye all", result.Action.DisconnectReason)
}

func TestModeBatchingThreePerLine(t *testing.T) {
	f, _ := newTestFilter()

	result := f.Parse(newFakeSession(), "/op a b c d", "#chan")
	assert.Equal(t, []string{
		"MODE #chan +ooo a b c",
		"MODE #chan +o d",
	}, result.ToServer)

	result = f.Parse(newFakeSession(), "/deop #other a b", "#chan")
	assert.Equal(t, []string{"MODE #other -oo a b"}, result.ToServer)

	result = f.Parse(newFakeSession(), "/voice x", "#chan")
	assert.Equal(t, []string{"MODE #chan +v x"}, result.ToServer)

	result = f.Parse(newFakeSession(), "/op", "#chan")
	assert.NotEmpty(t, result.Usage)
}

func TestAwayAndBackActions(t *testing.T) {
	f, _ := newTestFilter()

	result := f.Parse(newFakeSession(), "/away grabbing lunch", "")
	assert.True(t, result.Action.AwayChanged)
	assert.True(t, result.Action.Away)
	assert.Equal(t, "grabbing lunch", result.Action.AwayMessage)

	result = f.Parse(newFakeSession(), "/back", "")
	assert.True(t, result.Action.AwayChanged)
	assert.False(t, result.Action.Away)
}

func TestQueryOpensAndOptionallyMessages(t *testing.T) {
	f, _ := newTestFilter()

	result := f.Parse(newFakeSession(), "/query alice", "")
	assert.Equal(t, "alice", result.Action.OpenQuery)
	assert.Empty(t, result.ToServer)

	result = f.Parse(newFakeSession(), "/query alice hi there", "")
	assert.Equal(t, "alice", result.Action.OpenQuery)
	assert.Equal(t, []string{"PRIVMSG alice :hi there"}, result.ToServer)
}

func TestIgnoreCompletesPlainNicks(t *testing.T) {
	f, prefs := newTestFilter()

	result := f.Parse(newFakeSession(), "/ignore troll", "")
	assert.Contains(t, result.Output, "troll!*@*")
	assert.Equal(t, []string{"troll!*@*"}, prefs.IgnoreList())

	result = f.Parse(newFakeSession(), "/unignore troll", "")
	assert.Contains(t, result.Output, "Removed")
	assert.Empty(t, prefs.IgnoreList())

	result = f.Parse(newFakeSession(), "/unignore nobody", "")
	assert.NotEmpty(t, result.Error)
}

func TestNotifyTogglesWatchList(t *testing.T) {
	f, prefs := newTestFilter()
	session := newFakeSession()

	result := f.Parse(session, "/notify alice", "")
	assert.True(t, result.Action.NotifyCheck)
	assert.Equal(t, []string{"alice"}, prefs.NotifyListByGroup(1))

	result = f.Parse(session, "/notify alice", "")
	assert.False(t, result.Action.NotifyCheck)
	assert.Empty(t, prefs.NotifyListByGroup(1))
	assert.Contains(t, result.Output, "empty")
}

func TestServerAndReconnectActions(t *testing.T) {
	f, _ := newTestFilter()

	result := f.Parse(newFakeSession(), "/server irc.example.org:6697", "")
	assert.Equal(t, "irc.example.org:6697", result.Action.ConnectTo)

	result = f.Parse(newFakeSession(), "/reconnect", "")
	assert.True(t, result.Action.Reconnect)
}

func TestMultiServerCommands(t *testing.T) {
	f, _ := newTestFilter()

	result := f.Parse(newFakeSession(), "/amsg hello everyone", "")
	require.NotNil(t, result.Action.MultiServer)
	assert.Equal(t, "msg", result.Action.MultiServer.Command)
	assert.Equal(t, "hello everyone", result.Action.MultiServer.Payload)

	result = f.Parse(newFakeSession(), "/aback", "")
	require.NotNil(t, result.Action.MultiServer)
	assert.Equal(t, "back", result.Action.MultiServer.Command)
}

func TestAliasExpansion(t *testing.T) {
	f, prefs := newTestFilter()
	prefs.Aliases = []string{
		"hi msg %p :)",
		"brb away be right back",
		"pct say 100%% sure",
	}

	// %p substitutes the rest of the line
	result := f.Parse(newFakeSession(), "/hi alice hello", "#chan")
	assert.Equal(t, []string{"PRIVMSG alice :hello :)"}, result.ToServer)

	// Without %p the rest is appended
	result = f.Parse(newFakeSession(), "/brb", "#chan")
	assert.True(t, result.Action.Away)
	assert.Equal(t, "be right back", result.Action.AwayMessage)

	// %% is a literal percent
	result = f.Parse(newFakeSession(), "/pct", "#chan")
	assert.Equal(t, []string{"PRIVMSG #chan :100% sure"}, result.ToServer)
}

func TestPayloadSplitting(t *testing.T) {
	f, _ := newTestFilter()
	session := newFakeSession()

	long := strings.Repeat("word ", 300) // 1500 chars
	result := f.Parse(session, long, "#chan")

	require.Greater(t, len(result.ToServer), 1)
	maxLen := 512 - session.PreLength("PRIVMSG", "#chan")
	for _, line := range result.ToServer {
		payload := strings.TrimPrefix(line, "PRIVMSG #chan :")
		assert.LessOrEqual(t, len(payload), maxLen)
		assert.True(t, strings.HasPrefix(line, "PRIVMSG #chan :"))
		// Splitting at spaces never cuts a word
		assert.NotContains(t, payload, "wo rd")
	}

	// Nothing lost across the split
	var rebuilt []string
	for _, line := range result.ToServer {
		rebuilt = append(rebuilt, strings.TrimSuffix(strings.TrimPrefix(line, "PRIVMSG #chan :"), " "))
	}
	assert.Equal(t, strings.Fields(long), strings.Fields(strings.Join(rebuilt, " ")))
}

func TestUnbreakablePayloadHardCut(t *testing.T) {
	f, _ := newTestFilter()
	session := newFakeSession()
	session.preLength = 440 // leaves room for tiny payloads

	result := f.Parse(session, strings.Repeat("x", 200), "#c")
	maxLen := 512 - session.PreLength("PRIVMSG", "#c")
	require.Greater(t, len(result.ToServer), 1)
	for _, line := range result.ToServer {
		assert.LessOrEqual(t, len(strings.TrimPrefix(line, "PRIVMSG #c :")), maxLen)
	}
}

func TestCTCPAndPing(t *testing.T) {
	f, _ := newTestFilter()

	result := f.Parse(newFakeSession(), "/ctcp alice version", "")
	require.Len(t, result.ToServer, 1)
	assert.Equal(t, "PRIVMSG alice :\x01VERSION\x01", result.ToServer[0])

	result = f.Parse(newFakeSession(), "/ping alice", "")
	require.Len(t, result.ToServer, 1)
	assert.True(t, strings.HasPrefix(result.ToServer[0], "PRIVMSG alice :\x01PING "))
}

func TestDCCUnsupported(t *testing.T) {
	f, _ := newTestFilter()
	result := f.Parse(newFakeSession(), "/dcc send alice file.txt", "")
	assert.NotEmpty(t, result.Error)
}

func TestCycle(t *testing.T) {
	f, _ := newTestFilter()
	session := newFakeSession()

	result := f.Parse(session, "/cycle", "#chan")
	assert.Equal(t, []string{
		"PART #chan :" + session.identity.PartReason,
		"JOIN #chan",
	}, result.ToServer)
}

func TestUmodeAndOper(t *testing.T) {
	f, _ := newTestFilter()

	result := f.Parse(newFakeSession(), "/umode +i", "")
	assert.Equal(t, []string{"MODE tester +i"}, result.ToServer)

	result = f.Parse(newFakeSession(), "/oper secret", "")
	assert.Equal(t, []string{"OPER tester secret"}, result.ToServer)

	result = f.Parse(newFakeSession(), "/oper admin secret", "")
	assert.Equal(t, []string{"OPER admin secret"}, result.ToServer)
}
