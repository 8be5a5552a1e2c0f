package irc

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSplitPrefixesDefaults(t *testing.T) {
	caps := defaultCapabilities()

	nick, modes := caps.splitPrefixes("@+alice")
	assert.Equal(t, "alice", nick)
	assert.Equal(t, "ov", modes)

	nick, modes = caps.splitPrefixes("bob")
	assert.Equal(t, "bob", nick)
	assert.Empty(t, modes)

	nick, modes = caps.splitPrefixes("~carol")
	assert.Equal(t, "carol", nick)
	assert.Equal(t, "q", modes)
}

func TestParsePrefixReplacesTable(t *testing.T) {
	caps := defaultCapabilities()
	caps.parsePrefix("(ov)@+")

	nick, modes := caps.splitPrefixes("~alice")
	assert.Equal(t, "~alice", nick, "owner prefix no longer advertised")
	assert.Empty(t, modes)

	nick, modes = caps.splitPrefixes("@bob")
	assert.Equal(t, "bob", nick)
	assert.Equal(t, "o", modes)
}

func TestParsePrefixIgnoresMalformed(t *testing.T) {
	caps := defaultCapabilities()
	for _, value := range []string{"", "qaohv", "(qaohv", "(qaohv)", "(qa)~&@"} {
		caps.parsePrefix(value)
		nick, modes := caps.splitPrefixes("@alice")
		assert.Equal(t, "alice", nick, "value %q must not clobber the table", value)
		assert.Equal(t, "o", modes)
	}
}

func TestParseModeDeltas(t *testing.T) {
	deltas := parseModeDeltas("+oo-v", []string{"alice", "bob", "carol"})
	assert.Equal(t, []modeDelta{
		{mode: 'o', plus: true, parameter: "alice"},
		{mode: 'o', plus: true, parameter: "bob"},
		{mode: 'v', plus: false, parameter: "carol"},
	}, deltas)
}

func TestParseModeDeltasParameterConsumption(t *testing.T) {
	// +l takes an argument, -l does not, +n never does
	deltas := parseModeDeltas("+ln-l", []string{"50"})
	assert.Equal(t, []modeDelta{
		{mode: 'l', plus: true, parameter: "50"},
		{mode: 'n', plus: true},
		{mode: 'l', plus: false},
	}, deltas)

	// A ban mask is consumed even when mixed with flag-only modes
	deltas = parseModeDeltas("+bm", []string{"*!*@host"})
	assert.Equal(t, []modeDelta{
		{mode: 'b', plus: true, parameter: "*!*@host"},
		{mode: 'm', plus: true},
	}, deltas)
}

func TestParseModeDeltasMissingArgs(t *testing.T) {
	deltas := parseModeDeltas("+oo", []string{"alice"})
	assert.Equal(t, []modeDelta{
		{mode: 'o', plus: true, parameter: "alice"},
		{mode: 'o', plus: true},
	}, deltas)
}

func TestMatchMask(t *testing.T) {
	assert.True(t, matchMask("troll!*@*", "troll!ident@host.example"))
	assert.True(t, matchMask("*!*@*.example", "anyone!x@bad.example"))
	assert.True(t, matchMask("TROLL!*@*", "troll!x@y"), "matching is case-insensitive")
	assert.True(t, matchMask("tr?ll!*@*", "trOll!x@y"))
	assert.False(t, matchMask("troll!*@*", "trolled!x@y"))
	assert.False(t, matchMask("*!*@good.example", "x!y@bad.example"))
}
