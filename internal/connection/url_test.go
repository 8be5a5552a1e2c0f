package connection_test

import (
	"testing"

	"github.com/matt0x6f/irc-engine/internal/config"
	"github.com/matt0x6f/irc-engine/internal/connection"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeAddress(t *testing.T) {
	server := connection.DecodeAddress("irc.example.org", false)
	assert.Equal(t, "irc.example.org", server.Host)
	assert.Equal(t, 6667, server.Port)
	assert.False(t, server.SSL)

	server = connection.DecodeAddress("irc.example.org", true)
	assert.Equal(t, 6697, server.Port)
	assert.True(t, server.SSL)

	server = connection.DecodeAddress("irc.example.org:7000", false)
	assert.Equal(t, "irc.example.org", server.Host)
	assert.Equal(t, 7000, server.Port)
}

func TestDecodeAddressIPv6(t *testing.T) {
	// Full-form address, all eight groups, no port
	server := connection.DecodeAddress("2001:0db8:0000:0000:0000:0000:0000:0001:6667", false)
	assert.Equal(t, "2001:0db8:0000:0000:0000:0000:0000:0001:6667", server.Host)

	full := "fe80:0:0:0:0:0:0:1"
	server = connection.DecodeAddress(full, false)
	assert.Equal(t, full, server.Host)
	assert.Equal(t, 6667, server.Port)

	server = connection.DecodeAddress("[::1]:7000", false)
	assert.Equal(t, "::1", server.Host)
	assert.Equal(t, 7000, server.Port)

	server = connection.DecodeAddress("[::1]", true)
	assert.Equal(t, "::1", server.Host)
	assert.Equal(t, 6697, server.Port)
}

func TestDecodeIrcURLBasics(t *testing.T) {
	prefs := config.NewPreferences()

	_, ok := connection.DecodeIrcURL("https://example.org", prefs)
	assert.False(t, ok)

	settings, ok := connection.DecodeIrcURL("irc://irc.example.org", prefs)
	require.True(t, ok)
	assert.Equal(t, "irc.example.org", settings.Server.Host)
	assert.Equal(t, 6667, settings.Server.Port)
	assert.False(t, settings.Server.SSL)

	settings, ok = connection.DecodeIrcURL("ircs://irc.example.org", prefs)
	require.True(t, ok)
	assert.Equal(t, 6697, settings.Server.Port)
	assert.True(t, settings.Server.SSL)
}

func TestDecodeIrcURLChannelAndParams(t *testing.T) {
	prefs := config.NewPreferences()

	settings, ok := connection.DecodeIrcURL("irc://irc.example.org/gonuts?pass=abc&key=def", prefs)
	require.True(t, ok)
	assert.Equal(t, "abc", settings.Server.Password)
	require.Len(t, settings.OneShot, 1)
	assert.Equal(t, "#gonuts", settings.OneShot[0].Name, "bare channel names get a # prefix")
	assert.Equal(t, "def", settings.OneShot[0].Password)

	settings, ok = connection.DecodeIrcURL("irc://irc.example.org/&local", prefs)
	require.True(t, ok)
	require.Len(t, settings.OneShot, 1)
	assert.Equal(t, "&local", settings.OneShot[0].Name)
}

func TestDecodeIrcURLGroupLookup(t *testing.T) {
	prefs := config.NewPreferences()
	prefs.AddServerGroup(&config.ServerGroupSettings{
		ID:   1,
		Name: "libera",
		ServerList: []config.ServerSettings{
			{Host: "irc.libera.chat", Port: 6697, SSL: true},
		},
	})

	// A matching group name resolves to the group's first server
	settings, ok := connection.DecodeIrcURL("irc://libera", prefs)
	require.True(t, ok)
	require.NotNil(t, settings.Group)
	assert.Equal(t, "irc.libera.chat", settings.Server.Host)

	// ",isserver" forces literal address interpretation
	settings, ok = connection.DecodeIrcURL("irc://libera,isserver", prefs)
	require.True(t, ok)
	assert.Nil(t, settings.Group)
	assert.Equal(t, "libera", settings.Server.Host)
}
