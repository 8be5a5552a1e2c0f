package irc

import (
	"encoding/base64"
	"strings"
	"sync"

	"github.com/ergochat/irc-go/ircevent"
	"github.com/ergochat/irc-go/ircmsg"
	"github.com/matt0x6f/irc-engine/internal/config"
	"github.com/matt0x6f/irc-engine/internal/logger"
)

// Identity auth types.
const (
	AuthNone         = ""
	AuthSASLPlain    = "saslplain"
	AuthSASLExternal = "saslexternal"
	AuthSCRAMSHA256  = "scram-sha-256"
	AuthSCRAMSHA512  = "scram-sha-512"
	AuthNickServ     = "nickserv"
)

// saslState tracks registration-time SASL negotiation for one connection
// attempt.
type saslState struct {
	mu           sync.Mutex
	enabled      bool
	authType     string
	mechanism    string
	username     string
	password     string
	inProgress   bool
	capRequested bool
	capBuffer    strings.Builder
	scram        *scramState
}

func mechanismFor(authType string) string {
	switch authType {
	case AuthSASLPlain:
		return "PLAIN"
	case AuthSASLExternal:
		return "EXTERNAL"
	case AuthSCRAMSHA256:
		return "SCRAM-SHA-256"
	case AuthSCRAMSHA512:
		return "SCRAM-SHA-512"
	}
	return ""
}

// prepareSASL resolves the identity's auth settings into negotiation
// state, fetching the password from the secret store when one is needed.
func (b *Binding) prepareSASL(identity *config.Identity) {
	b.sasl.mu.Lock()
	defer b.sasl.mu.Unlock()

	b.sasl.authType = identity.AuthType
	b.sasl.mechanism = mechanismFor(identity.AuthType)
	b.sasl.enabled = b.sasl.mechanism != ""
	b.sasl.username = identity.SASLAccount
	b.sasl.password = ""
	b.sasl.inProgress = false
	b.sasl.capRequested = false
	b.sasl.capBuffer.Reset()
	b.sasl.scram = nil

	needsPassword := b.sasl.enabled && b.sasl.mechanism != "EXTERNAL" || identity.AuthType == AuthNickServ
	if needsPassword && b.secrets != nil {
		password, err := b.secrets.SASLPassword(identity.SASLAccount)
		if err != nil {
			logger.Log.Warn().Err(err).Str("account", identity.SASLAccount).Msg("No stored auth password")
		} else {
			b.sasl.password = password
		}
	}

	if b.sasl.enabled {
		logger.Log.Debug().
			Str("mechanism", b.sasl.mechanism).
			Str("account", b.sasl.username).
			Msg("SASL enabled")
	}
}

// capContains checks whether a capability list mentions cap, tolerating
// cap=value forms.
func capContains(capabilities, cap string) bool {
	for _, c := range strings.Fields(capabilities) {
		name := c
		if idx := strings.Index(c, "="); idx != -1 {
			name = c[:idx]
		}
		if name == cap {
			return true
		}
	}
	return false
}

func (b *Binding) installSASLHandlers(conn *ircevent.Connection) {
	if b.sasl.authType == AuthNickServ {
		conn.AddConnectCallback(func(e ircmsg.Message) {
			b.sasl.mu.Lock()
			password := b.sasl.password
			b.sasl.mu.Unlock()
			if password != "" {
				b.sendRaw("PRIVMSG NickServ :IDENTIFY " + password)
			}
		})
	}

	if !b.sasl.enabled {
		return
	}

	conn.AddCallback("CAP", func(e ircmsg.Message) {
		if len(e.Params) < 2 {
			return
		}
		switch e.Params[1] {
		case "LS":
			b.handleCapLS(e)
		case "ACK":
			if len(e.Params) >= 3 && capContains(e.Params[2], "sasl") {
				b.startSASLAuth()
			} else {
				b.sendRaw("CAP END")
			}
		case "NAK":
			if len(e.Params) >= 3 && capContains(e.Params[2], "sasl") {
				b.sendRaw("CAP END")
			}
		}
	})

	conn.AddCallback("AUTHENTICATE", func(e ircmsg.Message) {
		if len(e.Params) == 0 {
			return
		}
		b.handleAuthenticate(e.Params[0])
	})

	// RPL_LOGGEDIN
	conn.AddCallback("900", func(e ircmsg.Message) {
		b.sasl.mu.Lock()
		b.sasl.inProgress = false
		b.sasl.scram = nil
		b.sasl.mu.Unlock()
		logger.Log.Info().Msg("SASL authentication successful")
		b.sendRaw("CAP END")
	})

	// RPL_LOGGEDOUT and ERR_SASLFAIL
	for _, numeric := range []string{"901", "904"} {
		conn.AddCallback(numeric, func(e ircmsg.Message) {
			b.sasl.mu.Lock()
			b.sasl.inProgress = false
			b.sasl.scram = nil
			b.sasl.mu.Unlock()
			logger.Log.Warn().Msg("SASL authentication failed")
			b.sendRaw("CAP END")
		})
	}
}

// handleCapLS accumulates possibly multi-line CAP LS output and requests
// the sasl capability once the final line arrives.
func (b *Binding) handleCapLS(e ircmsg.Message) {
	if len(e.Params) < 3 {
		return
	}

	b.sasl.mu.Lock()
	defer b.sasl.mu.Unlock()

	// CAP * LS * :caps means more lines follow.
	if len(e.Params) > 3 && e.Params[2] == "*" {
		b.sasl.capBuffer.WriteString(e.Params[3])
		b.sasl.capBuffer.WriteString(" ")
		return
	}
	b.sasl.capBuffer.WriteString(e.Params[2])
	allCaps := b.sasl.capBuffer.String()
	b.sasl.capBuffer.Reset()

	if capContains(allCaps, "sasl") && !b.sasl.capRequested {
		b.sasl.capRequested = true
		b.sendRaw("CAP REQ sasl")
	} else if !capContains(allCaps, "sasl") {
		b.sendRaw("CAP END")
	}
}

func (b *Binding) startSASLAuth() {
	b.sasl.mu.Lock()
	if b.sasl.inProgress {
		b.sasl.mu.Unlock()
		return
	}
	b.sasl.inProgress = true
	mechanism := b.sasl.mechanism
	b.sasl.mu.Unlock()

	logger.Log.Debug().Str("mechanism", mechanism).Msg("Starting SASL authentication")
	b.sendRaw("AUTHENTICATE " + mechanism)
}

func (b *Binding) handleAuthenticate(response string) {
	switch b.sasl.mechanism {
	case "PLAIN":
		b.handlePlainAuth(response)
	case "EXTERNAL":
		b.handleExternalAuth(response)
	case "SCRAM-SHA-256", "SCRAM-SHA-512":
		b.handleSCRAMAuth(response)
	default:
		b.abortSASL("unknown mechanism")
	}
}

func (b *Binding) handlePlainAuth(response string) {
	switch response {
	case "+":
		b.sasl.mu.Lock()
		payload := "\x00" + b.sasl.username + "\x00" + b.sasl.password
		b.sasl.mu.Unlock()
		b.sendRaw("AUTHENTICATE " + base64.StdEncoding.EncodeToString([]byte(payload)))
	case "*":
		b.abortSASL("server aborted")
	}
}

func (b *Binding) handleExternalAuth(response string) {
	switch response {
	case "+":
		b.sendRaw("AUTHENTICATE +")
	case "*":
		b.abortSASL("server aborted")
	}
}

func (b *Binding) abortSASL(reason string) {
	b.sasl.mu.Lock()
	b.sasl.inProgress = false
	b.sasl.scram = nil
	b.sasl.mu.Unlock()

	logger.Log.Warn().Str("reason", reason).Msg("SASL authentication aborted")
	b.sendRaw("AUTHENTICATE *")
	b.sendRaw("CAP END")
}
