package validation

import (
	"fmt"
	"strings"

	"github.com/matt0x6f/irc-engine/internal/config"
)

// ValidateIdentity checks that an identity is complete enough to connect
// with: non-empty ident, non-empty real name and at least one candidate
// nickname.
func ValidateIdentity(identity *config.Identity) error {
	if identity == nil {
		return fmt.Errorf("identity is required")
	}
	if strings.TrimSpace(identity.Ident) == "" {
		return fmt.Errorf("identity %q: ident is required", identity.Name)
	}
	if strings.TrimSpace(identity.RealName) == "" {
		return fmt.Errorf("identity %q: real name is required", identity.Name)
	}
	if identity.Nickname(0) == "" {
		return fmt.Errorf("identity %q: at least one nickname is required", identity.Name)
	}
	return nil
}

// ValidateServerGroup rejects groups without any server entry. The UI is
// supposed to prevent these, but the engine must tolerate them at connect
// time.
func ValidateServerGroup(group *config.ServerGroupSettings) error {
	if group == nil {
		return fmt.Errorf("server group is required")
	}
	if len(group.ServerList) == 0 {
		return fmt.Errorf("server group %q has no servers", group.Name)
	}
	return nil
}

// ValidateChannelName validates an IRC channel name
func ValidateChannelName(channel string) error {
	channel = strings.TrimSpace(channel)
	if channel == "" {
		return fmt.Errorf("channel name is required")
	}
	// IRC channels must start with #, &, +, or !
	if channel[0] != '#' && channel[0] != '&' && channel[0] != '+' && channel[0] != '!' {
		return fmt.Errorf("channel name must start with #, &, +, or !")
	}
	if len(channel) > 200 {
		return fmt.Errorf("channel name too long (max 200 characters)")
	}
	if strings.ContainsAny(channel, " \x00\x07\x0A\x0D,") {
		return fmt.Errorf("channel name contains invalid characters")
	}
	return nil
}

// ValidateServerAddress validates a server address and port
func ValidateServerAddress(address string, port int) error {
	if strings.TrimSpace(address) == "" {
		return fmt.Errorf("server address is required")
	}
	if port <= 0 || port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535")
	}
	return nil
}
