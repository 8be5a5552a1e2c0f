package validation_test

import (
	"strings"
	"testing"

	"github.com/matt0x6f/irc-engine/internal/config"
	"github.com/matt0x6f/irc-engine/internal/validation"
	"github.com/stretchr/testify/assert"
)

func TestValidateIdentity(t *testing.T) {
	assert.Error(t, validation.ValidateIdentity(nil))
	assert.NoError(t, validation.ValidateIdentity(config.DefaultIdentity()))

	identity := config.DefaultIdentity()
	identity.Nicknames = nil
	assert.Error(t, validation.ValidateIdentity(identity))

	identity = config.DefaultIdentity()
	identity.Ident = "  "
	assert.Error(t, validation.ValidateIdentity(identity))
}

func TestValidateServerGroup(t *testing.T) {
	assert.Error(t, validation.ValidateServerGroup(nil))
	assert.Error(t, validation.ValidateServerGroup(&config.ServerGroupSettings{Name: "empty"}))
	assert.NoError(t, validation.ValidateServerGroup(&config.ServerGroupSettings{
		Name:       "ok",
		ServerList: []config.ServerSettings{{Host: "irc.example.org", Port: 6667}},
	}))
}

func TestValidateChannelName(t *testing.T) {
	assert.NoError(t, validation.ValidateChannelName("#go-nuts"))
	assert.NoError(t, validation.ValidateChannelName("&local"))
	assert.Error(t, validation.ValidateChannelName(""))
	assert.Error(t, validation.ValidateChannelName("nochanprefix"))
	assert.Error(t, validation.ValidateChannelName("#has space"))
	assert.Error(t, validation.ValidateChannelName("#has,comma"))
	assert.Error(t, validation.ValidateChannelName("#"+strings.Repeat("x", 200)))
}

func TestValidateServerAddress(t *testing.T) {
	assert.NoError(t, validation.ValidateServerAddress("irc.example.org", 6667))
	assert.Error(t, validation.ValidateServerAddress("", 6667))
	assert.Error(t, validation.ValidateServerAddress("irc.example.org", 0))
	assert.Error(t, validation.ValidateServerAddress("irc.example.org", 70000))
}
