package irc

import (
	"errors"
	"strings"
	"sync"

	"github.com/ergochat/irc-go/ircevent"
	"github.com/ergochat/irc-go/ircmsg"
	"github.com/matt0x6f/irc-engine/internal/config"
	"github.com/matt0x6f/irc-engine/internal/logger"
)

var errNotConnected = errors.New("not connected")

// PasswordSource supplies stored SASL passwords, keeping them out of the
// configuration files.
type PasswordSource interface {
	SASLPassword(account string) (string, error)
}

// serverCapabilities holds parsed ISUPPORT information, most importantly
// the membership prefix translation table.
type serverCapabilities struct {
	mu     sync.RWMutex
	prefix map[rune]rune // prefix char -> mode char, e.g. '@' -> 'o'
}

func defaultCapabilities() *serverCapabilities {
	return &serverCapabilities{
		prefix: map[rune]rune{'~': 'q', '&': 'a', '@': 'o', '%': 'h', '+': 'v'},
	}
}

// parsePrefix ingests an ISUPPORT PREFIX value like "(qaohv)~&@%+".
func (c *serverCapabilities) parsePrefix(value string) {
	if !strings.HasPrefix(value, "(") {
		return
	}
	closing := strings.Index(value, ")")
	if closing < 0 || len(value) <= closing+1 {
		return
	}
	modes := value[1:closing]
	prefixes := value[closing+1:]
	if len(modes) != len(prefixes) {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.prefix = make(map[rune]rune, len(modes))
	for i, p := range prefixes {
		c.prefix[p] = rune(modes[i])
	}
}

// splitPrefixes separates a NAMES entry like "@+nick" into the nick and
// its membership modes ("ov").
func (c *serverCapabilities) splitPrefixes(entry string) (nick, modes string) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for len(entry) > 0 {
		mode, ok := c.prefix[rune(entry[0])]
		if !ok {
			break
		}
		modes += string(mode)
		entry = entry[1:]
	}
	return entry, modes
}

// Binding bridges an ircevent.Connection to a Server: inbound parsed
// messages fan into the Server's discrete Handle methods, outbound queued
// lines go out SendRaw. It also owns registration-time CAP/SASL
// negotiation.
type Binding struct {
	server  *Server
	secrets PasswordSource

	mu   sync.Mutex
	conn *ircevent.Connection

	caps *serverCapabilities
	sasl saslState
}

// NewBinding creates the transport for a session and installs it. secrets
// may be nil when no SASL authentication is configured.
func NewBinding(server *Server, secrets PasswordSource) *Binding {
	b := &Binding{
		server:  server,
		secrets: secrets,
		caps:    defaultCapabilities(),
	}
	server.SetTransport(b)
	return b
}

// Connect dials the target and starts the read loop. Registration
// (NICK/USER, optional CAP/SASL) is handled here; the Server learns of
// completion through HandleConnected.
func (b *Binding) Connect(target config.ServerSettings, nick string) error {
	identity := b.server.Identity()

	conn := &ircevent.Connection{
		Server:        target.String(),
		Nick:          nick,
		User:          identity.Ident,
		RealName:      identity.RealName,
		UseTLS:        target.SSL,
		Password:      target.Password,
		ReconnectFreq: 0, // reconnection is the connection manager's job
	}

	b.mu.Lock()
	b.conn = conn
	b.caps = defaultCapabilities()
	b.mu.Unlock()
	b.prepareSASL(identity)

	b.installHandlers(conn)

	if err := conn.Connect(); err != nil {
		return err
	}
	if b.sasl.enabled {
		conn.SendRaw("CAP LS 302")
	}
	go conn.Loop()
	return nil
}

// Disconnect closes the connection. The disconnect callback delivers the
// closure back to the Server.
func (b *Binding) Disconnect() {
	b.mu.Lock()
	conn := b.conn
	b.mu.Unlock()
	if conn != nil {
		conn.Quit()
	}
}

// SendLine transmits one raw protocol line.
func (b *Binding) SendLine(line string) error {
	b.mu.Lock()
	conn := b.conn
	b.mu.Unlock()
	if conn == nil {
		return errNotConnected
	}
	return conn.SendRaw(line)
}

func (b *Binding) sendRaw(line string) {
	if err := b.SendLine(line); err != nil {
		logger.Log.Debug().Err(err).Msg("Failed to send during registration")
	}
}

// hostmaskOf extracts the user@host portion from a message source prefix.
func hostmaskOf(source string) string {
	if idx := strings.Index(source, "!"); idx >= 0 {
		return source[idx+1:]
	}
	return ""
}

func lastParam(e ircmsg.Message) string {
	if len(e.Params) == 0 {
		return ""
	}
	return e.Params[len(e.Params)-1]
}

func (b *Binding) installHandlers(conn *ircevent.Connection) {
	s := b.server

	conn.AddConnectCallback(func(e ircmsg.Message) {
		s.HandleConnected(conn.CurrentNick())
	})

	conn.AddDisconnectCallback(func(e ircmsg.Message) {
		s.HandleDisconnected(nil)
	})

	conn.AddCallback("433", func(e ircmsg.Message) {
		if len(e.Params) > 1 {
			s.HandleNicknameInUse(e.Params[1])
		}
	})

	conn.AddCallback("PRIVMSG", func(e ircmsg.Message) {
		if len(e.Params) < 2 {
			return
		}
		s.HandlePrivmsg(e.Params[0], e.Nick(), e.Params[1])
	})

	conn.AddCallback("NOTICE", func(e ircmsg.Message) {
		if len(e.Params) < 2 {
			return
		}
		message := e.Params[1]
		// CTCP VERSION replies arrive as \x01VERSION ...\x01 notices.
		if strings.HasPrefix(message, "\x01VERSION ") && strings.HasSuffix(message, "\x01") {
			if info := s.Membership.GetNickInfo(e.Nick()); info != nil {
				info.SetVersionInfo(strings.Trim(message[len("\x01VERSION "):], "\x01"))
			}
		}
		s.HandleNotice(e.Params[0], e.Nick(), message)
	})

	conn.AddCallback("JOIN", func(e ircmsg.Message) {
		if len(e.Params) < 1 {
			return
		}
		s.HandleJoin(e.Params[0], e.Nick(), hostmaskOf(e.Source))
	})

	conn.AddCallback("PART", func(e ircmsg.Message) {
		if len(e.Params) < 1 {
			return
		}
		reason := ""
		if len(e.Params) > 1 {
			reason = e.Params[1]
		}
		s.HandlePart(e.Params[0], e.Nick(), reason)
	})

	conn.AddCallback("KICK", func(e ircmsg.Message) {
		if len(e.Params) < 2 {
			return
		}
		reason := ""
		if len(e.Params) > 2 {
			reason = e.Params[2]
		}
		s.HandleKick(e.Params[0], e.Params[1], e.Nick(), reason)
	})

	conn.AddCallback("QUIT", func(e ircmsg.Message) {
		s.HandleQuit(e.Nick(), lastParam(e))
	})

	conn.AddCallback("NICK", func(e ircmsg.Message) {
		if len(e.Params) < 1 {
			return
		}
		s.HandleNick(e.Nick(), e.Params[0])
	})

	conn.AddCallback("TOPIC", func(e ircmsg.Message) {
		if len(e.Params) < 2 {
			return
		}
		s.HandleTopic(e.Params[0], e.Nick(), e.Params[1])
	})

	// RPL_TOPIC
	conn.AddCallback("332", func(e ircmsg.Message) {
		if len(e.Params) < 3 {
			return
		}
		s.HandleTopic(e.Params[1], "", e.Params[2])
	})

	conn.AddCallback("MODE", func(e ircmsg.Message) {
		if len(e.Params) < 2 {
			return
		}
		target := e.Params[0]
		if !s.IsAChannel(target) {
			return
		}
		for _, delta := range parseModeDeltas(e.Params[1], e.Params[2:]) {
			s.UpdateChannelMode(e.Nick(), target, delta.mode, delta.plus, delta.parameter)
		}
	})

	// RPL_NAMREPLY
	conn.AddCallback("353", func(e ircmsg.Message) {
		if len(e.Params) < 4 {
			return
		}
		channel := e.Params[2]
		for _, entry := range strings.Fields(e.Params[3]) {
			nick, modes := b.caps.splitPrefixes(entry)
			if nick == "" {
				continue
			}
			s.HandleNamesReply(channel, nick, modes)
		}
	})

	// RPL_WHOREPLY
	conn.AddCallback("352", func(e ircmsg.Message) {
		if len(e.Params) < 8 {
			return
		}
		ident, host, nick, flags := e.Params[2], e.Params[3], e.Params[5], e.Params[6]
		realName := e.Params[7]
		if idx := strings.Index(realName, " "); idx >= 0 {
			realName = realName[idx+1:] // drop the hop count
		}
		s.HandleWhoReply(nick, ident, host, realName, strings.Contains(flags, "G"))
	})

	// RPL_ISON
	conn.AddCallback("303", func(e ircmsg.Message) {
		s.HandleISONReply(strings.Fields(lastParam(e)))
	})

	// RPL_UNAWAY / RPL_NOWAWAY
	conn.AddCallback("305", func(e ircmsg.Message) {
		s.HandleAwayStateChanged(false)
	})
	conn.AddCallback("306", func(e ircmsg.Message) {
		s.HandleAwayStateChanged(true)
	})

	conn.AddCallback("PONG", func(e ircmsg.Message) {
		s.HandlePong(lastParam(e))
	})

	// RPL_ISUPPORT
	conn.AddCallback("005", func(e ircmsg.Message) {
		for _, token := range e.Params[1:] {
			if value, ok := strings.CutPrefix(token, "PREFIX="); ok {
				b.caps.parsePrefix(value)
			}
		}
	})

	// MOTD and friends surface as plain server text.
	for _, numeric := range []string{"372", "375", "376", "251", "255", "265", "266"} {
		conn.AddCallback(numeric, func(e ircmsg.Message) {
			s.HandleServerText(lastParam(e))
		})
	}

	b.installSASLHandlers(conn)
}

type modeDelta struct {
	mode      rune
	plus      bool
	parameter string
}

// modeTakesParameter reports whether a channel mode consumes an argument
// in the given direction. Membership modes always take the target nick.
func modeTakesParameter(mode rune, plus bool) bool {
	if strings.ContainsRune(membershipModes, mode) {
		return true
	}
	switch mode {
	case 'b', 'e', 'I', 'k':
		return true
	case 'l':
		return plus
	}
	return false
}

// parseModeDeltas expands a compound mode string like "+oo-v a b c" into
// discrete deltas.
func parseModeDeltas(modes string, args []string) []modeDelta {
	var out []modeDelta
	plus := true
	next := 0
	for _, mode := range modes {
		switch mode {
		case '+':
			plus = true
		case '-':
			plus = false
		default:
			parameter := ""
			if modeTakesParameter(mode, plus) && next < len(args) {
				parameter = args[next]
				next++
			}
			out = append(out, modeDelta{mode: mode, plus: plus, parameter: parameter})
		}
	}
	return out
}
