package irc

import (
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/matt0x6f/irc-engine/internal/config"
	"github.com/matt0x6f/irc-engine/internal/constants"
	"github.com/matt0x6f/irc-engine/internal/events"
	"github.com/matt0x6f/irc-engine/internal/logger"
	"github.com/rs/zerolog"
)

// ConnectionState is the session lifecycle state.
type ConnectionState int

const (
	Disconnected ConnectionState = iota
	Connecting
	Connected
)

func (s ConnectionState) String() string {
	switch s {
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	default:
		return "disconnected"
	}
}

// Transport is the wire seam. Implementations own the socket, registration
// and inbound line parsing, and deliver tokenized events back into the
// Server's Handle methods.
type Transport interface {
	Connect(server config.ServerSettings, nick string) error
	Disconnect()
	SendLine(line string) error
}

// Server is one session: the connection lifecycle state machine, the
// nickname/channel membership model, the paced outbound queue, away state,
// notify polling and lag measurement.
type Server struct {
	id    int
	bus   *events.EventBus
	prefs *config.Preferences
	log   zerolog.Logger

	mu        sync.RWMutex
	settings  config.ConnectionSettings
	state     ConnectionState
	nickname  string
	nickIndex int

	away        bool
	awayMessage string

	deliberateQuit bool
	connectedAt    time.Time
	lag            time.Duration

	reconnectTimer *time.Timer

	transport Transport
	queue     *OutboundQueue

	Membership *Membership

	// notify polling
	notifyTimer      *time.Timer
	notifySlowTimer  *time.Timer
	notifySentAt     time.Time
	notifyOnline     map[string]bool
	notifyInProgress bool

	lagTimer  *time.Timer
	lagSentAt time.Time

	disconnectHook func(deliberate bool)
	commandParser  func(line string) []string
}

// NewServer creates a session for the given resolved settings. The session
// starts Disconnected; call SetTransport then Connect.
func NewServer(id int, settings config.ConnectionSettings, prefs *config.Preferences, bus *events.EventBus) *Server {
	s := &Server{
		id:           id,
		bus:          bus,
		prefs:        prefs,
		settings:     settings,
		state:        Disconnected,
		notifyOnline: make(map[string]bool),
		log:          logger.With("server").With().Str("name", settings.Name()).Logger(),
	}
	s.nickname = s.initialNickname()
	s.Membership = NewMembership(s.Nickname, s.isWatchedNick)
	s.queue = NewOutboundQueue(prefs.QueueInterval, s.sendLine)
	s.queue.Start()
	return s
}

func (s *Server) initialNickname() string {
	if s.settings.InitialNick != "" {
		return s.settings.InitialNick
	}
	return s.Identity().Nickname(0)
}

// ID returns the session id assigned by the connection manager.
func (s *Server) ID() int { return s.id }

// Settings returns a copy of the current connection settings.
func (s *Server) Settings() config.ConnectionSettings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.settings
}

// UpdateSettings swaps the connection target, used when reconnecting to the
// next server in a group.
func (s *Server) UpdateSettings(settings config.ConnectionSettings) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.settings = settings
}

// Group returns the backing server group, or nil for ad-hoc connections.
func (s *Server) Group() *config.ServerGroupSettings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.settings.Group
}

// ServerGroupID returns the backing group id, or -1 for ad-hoc connections.
func (s *Server) ServerGroupID() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.settings.Group == nil {
		return -1
	}
	return s.settings.Group.ID
}

// Identity returns the identity this session connects with. Never nil.
func (s *Server) Identity() *config.Identity {
	return s.prefs.IdentityByID(s.settings.IdentityID())
}

// SetTransport installs the wire implementation. Must be called before
// Connect.
func (s *Server) SetTransport(t Transport) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.transport = t
}

// State returns the current lifecycle state.
func (s *Server) State() ConnectionState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// IsConnected reports whether registration has completed.
func (s *Server) IsConnected() bool { return s.State() == Connected }

// IsConnecting reports whether a connection attempt is in flight.
func (s *Server) IsConnecting() bool { return s.State() == Connecting }

// Nickname returns the session's current nickname, which can differ from
// every identity nickname after collision renegotiation.
func (s *Server) Nickname() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.nickname
}

// LoweredNickname returns the lowercased current nickname.
func (s *Server) LoweredNickname() string {
	return strings.ToLower(s.Nickname())
}

func (s *Server) setState(state ConnectionState, reason string) {
	s.mu.Lock()
	if s.state == state {
		s.mu.Unlock()
		return
	}
	s.state = state
	name := s.settings.Name()
	s.mu.Unlock()

	s.log.Debug().Str("state", state.String()).Str("reason", reason).Msg("Connection state changed")
	s.bus.Emit(events.Event{
		Type:   EventStateChanged,
		Source: events.SourceConnection,
		Data: map[string]interface{}{
			"connection_id": s.id,
			"name":          name,
			"state":         state.String(),
			"reason":        reason,
		},
	})
}

// Connect begins the Connecting state and dials the current server.
// Involuntary failures surface through HandleDisconnected, not the return
// value; an error here means the attempt could not even start.
func (s *Server) Connect() error {
	s.mu.Lock()
	if s.state != Disconnected {
		s.mu.Unlock()
		return fmt.Errorf("already %s", s.state)
	}
	if !s.settings.IsValid() {
		s.mu.Unlock()
		return fmt.Errorf("connection settings carry no resolved server")
	}
	transport := s.transport
	server := s.settings.Server
	s.deliberateQuit = false
	s.cancelReconnectLocked()
	s.mu.Unlock()

	if transport == nil {
		return fmt.Errorf("no transport installed")
	}

	s.setState(Connecting, "")
	s.bus.Emit(events.Event{
		Type:   EventConnecting,
		Source: events.SourceConnection,
		Data: map[string]interface{}{
			"connection_id": s.id,
			"host":          server.Host,
			"port":          server.Port,
			"ssl":           server.SSL,
		},
	})

	s.log.Info().Str("host", server.Host).Int("port", server.Port).Bool("ssl", server.SSL).Msg("Connecting")
	if err := transport.Connect(server, s.Nickname()); err != nil {
		s.setState(Disconnected, err.Error())
		return fmt.Errorf("failed to connect to %s: %w", server.String(), err)
	}
	return nil
}

// ConnectIn schedules a single-shot connection attempt after the given
// delay. A previously scheduled attempt is replaced. The timer is
// cancelled by Disconnect or a successful connect.
func (s *Server) ConnectIn(delay time.Duration) {
	s.mu.Lock()
	s.cancelReconnectLocked()
	s.reconnectTimer = time.AfterFunc(delay, func() {
		if err := s.Connect(); err != nil {
			s.log.Warn().Err(err).Msg("Scheduled reconnect failed to start")
		}
	})
	s.mu.Unlock()
	s.log.Debug().Dur("delay", delay).Msg("Reconnect scheduled")
}

func (s *Server) cancelReconnectLocked() {
	if s.reconnectTimer != nil {
		s.reconnectTimer.Stop()
		s.reconnectTimer = nil
	}
}

// Disconnect performs a deliberate quit: flushes a QUIT through the wire,
// tears the socket down and cancels any pending reconnect. Deliberate
// disconnects never trigger reconnection policy.
func (s *Server) Disconnect(reason string) {
	if reason == "" {
		reason = s.Identity().QuitReason
	}

	s.mu.Lock()
	s.deliberateQuit = true
	s.cancelReconnectLocked()
	transport := s.transport
	state := s.state
	s.mu.Unlock()

	if state == Connected {
		s.queue.Enqueue("QUIT :" + reason)
		s.queue.Flush()
	} else {
		s.queue.Clear()
	}
	if transport != nil && state != Disconnected {
		transport.Disconnect()
	}
	s.setState(Disconnected, reason)
}

// ReconnectServer tears down the current connection (if any) and
// immediately dials again. Used by /reconnect and by same-group server
// switching.
func (s *Server) ReconnectServer(quitReason string) error {
	if s.State() != Disconnected {
		s.Disconnect(quitReason)
	}
	return s.Connect()
}

// Shutdown stops all timers and the outbound queue. The session is
// unusable afterwards.
func (s *Server) Shutdown(reason string) {
	s.Disconnect(reason)
	s.stopNotifyTimer()
	s.stopLagTimer()
	s.queue.Stop()
}

func (s *Server) sendLine(line string) error {
	s.mu.RLock()
	transport := s.transport
	s.mu.RUnlock()
	if transport == nil {
		return fmt.Errorf("no transport installed")
	}
	return transport.SendLine(line)
}

// Queue appends one raw protocol command to the flood-controlled outbound
// buffer.
func (s *Server) Queue(command string) {
	if command == "" {
		return
	}
	s.queue.Enqueue(command)
}

// QueueList appends raw protocol commands in order, preserving FIFO with
// respect to prior Queue calls.
func (s *Server) QueueList(commands []string) {
	for _, c := range commands {
		s.Queue(c)
	}
}

// QueueUrgent puts a command ahead of everything already buffered. Used
// for protocol replies like PONG.
func (s *Server) QueueUrgent(command string) {
	if command == "" {
		return
	}
	s.queue.EnqueueFront(command)
}

// Lag returns the last measured round-trip time.
func (s *Server) Lag() time.Duration {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lag
}

// IsAway reports the session away flag.
func (s *Server) IsAway() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.away
}

// AwayMessage returns the current away message, if away.
func (s *Server) AwayMessage() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.awayMessage
}

// RequestAway queues an AWAY command. An empty message falls back to the
// identity's configured away message.
func (s *Server) RequestAway(message string) {
	if message == "" {
		message = s.Identity().AwayMessage
	}
	if message == "" {
		message = "Gone away for now"
	}
	s.mu.Lock()
	s.awayMessage = message
	s.mu.Unlock()
	s.Queue("AWAY :" + message)
}

// RequestUnaway queues the return from away.
func (s *Server) RequestUnaway() {
	s.Queue("AWAY")
}

// IsAChannel reports whether name looks like a channel on this session.
func (s *Server) IsAChannel(name string) bool {
	if name == "" {
		return false
	}
	switch name[0] {
	case '#', '&', '+', '!':
		return true
	}
	return false
}

// PreLength returns the byte length of the implicit message header the
// server prepends when relaying command to dest: our nick!user@host prefix
// plus command, destination and protocol punctuation. Payload room per
// line is 512 minus this.
func (s *Server) PreLength(command, dest string) int {
	hostmaskLen := 0
	if info := s.Membership.GetNickInfo(s.Nickname()); info != nil {
		hostmaskLen = len(info.Hostmask())
	}
	return len(command) + len(dest) + len(s.Nickname()) + hostmaskLen + 8
}

func (s *Server) isWatchedNick(nick string) bool {
	return s.prefs.IsNotify(s.ServerGroupID(), nick)
}

// --- inbound event handlers (called by the transport binding) ---

// HandleConnected processes the protocol welcome: transitions to
// Connected, resets the reconnect counter, kicks off notify and lag timers
// and runs the group's connect commands and auto-join list.
func (s *Server) HandleConnected(ownNick string) {
	s.mu.Lock()
	if ownNick != "" {
		s.nickname = ownNick
	}
	s.settings.ReconnectCount = 0
	s.connectedAt = time.Now()
	s.cancelReconnectLocked()
	nick := s.nickname
	s.mu.Unlock()

	s.Membership.ObtainNickInfo(nick)
	s.setState(Connected, "")
	s.log.Info().Str("nick", nick).Msg("Connected and registered")
	s.bus.Emit(events.Event{
		Type:   EventConnected,
		Source: events.SourceConnection,
		Data: map[string]interface{}{
			"connection_id": s.id,
			"nick":          nick,
		},
	})

	s.startNotifyTimer()
	s.startLagTimer()
	s.autoCommandsAndChannels()
}

// HandleDisconnected processes socket closure. Membership state is reset;
// whether reconnection policy runs depends on whether the disconnect was
// deliberate.
func (s *Server) HandleDisconnected(err error) {
	s.mu.Lock()
	deliberate := s.deliberateQuit
	hook := s.disconnectHook
	s.mu.Unlock()

	reason := ""
	if err != nil {
		reason = err.Error()
	}

	s.stopNotifyTimer()
	s.stopLagTimer()
	s.queue.Clear()
	s.Membership.Reset()
	s.setState(Disconnected, reason)

	s.log.Info().Bool("deliberate", deliberate).Str("reason", reason).Msg("Disconnected")
	s.bus.Emit(events.Event{
		Type:   EventDisconnected,
		Source: events.SourceConnection,
		Data: map[string]interface{}{
			"connection_id": s.id,
			"deliberate":    deliberate,
		},
	})
	if hook != nil {
		hook(deliberate)
	}
}

// SetDisconnectHook installs the connection manager's reconnect policy
// callback, invoked after every disconnect with the deliberate flag.
func (s *Server) SetDisconnectHook(hook func(deliberate bool)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.disconnectHook = hook
}

// SetCommandParser installs the slash-command translator applied to the
// group's connect commands, turning lines like "/msg NickServ IDENTIFY x"
// into wire protocol. Without one, commands are queued with only the
// command character stripped.
func (s *Server) SetCommandParser(parse func(line string) []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.commandParser = parse
}

// HandleNicknameInUse reacts to a registration-time nickname collision by
// advancing through the identity's candidate list, appending an underscore
// once the list is exhausted.
func (s *Server) HandleNicknameInUse(taken string) {
	identity := s.Identity()

	s.mu.Lock()
	next := ""
	if idx := identity.NicknameIndex(taken); idx >= 0 && identity.Nickname(idx+1) != "" {
		s.nickIndex = idx + 1
		next = identity.Nickname(s.nickIndex)
	} else {
		next = taken + "_"
	}
	s.nickname = next
	s.mu.Unlock()

	s.log.Debug().Str("taken", taken).Str("next", next).Msg("Nickname in use, trying fallback")
	s.QueueUrgent("NICK " + next)
}

// HandleJoin processes a JOIN for any nick, including our own.
func (s *Server) HandleJoin(channel, nick, hostmask string) {
	member := s.Membership.AddNickToJoinedChannel(channel, nick)
	member.Info().SetHostmask(hostmask)

	if strings.EqualFold(nick, s.Nickname()) {
		if group := s.Group(); group != nil {
			group.AppendToHistory(config.ChannelSettings{Name: channel})
		}
		if s.prefs.AutoUserhost {
			s.Queue("WHO " + channel)
		}
	}

	s.bus.Emit(events.Event{
		Type:   EventJoined,
		Source: events.SourceSession,
		Data: map[string]interface{}{
			"connection_id": s.id,
			"channel":       channel,
			"nick":          nick,
		},
	})
}

// HandlePart processes a PART. Our own part retires the whole channel to
// the unjoined list; another nick's part removes just that member.
func (s *Server) HandlePart(channel, nick, reason string) {
	if strings.EqualFold(nick, s.Nickname()) {
		s.Membership.RemoveJoinedChannel(channel)
	} else {
		s.Membership.RemoveChannelNick(channel, nick)
	}
	s.bus.Emit(events.Event{
		Type:   EventParted,
		Source: events.SourceSession,
		Data: map[string]interface{}{
			"connection_id": s.id,
			"channel":       channel,
			"nick":          nick,
			"reason":        reason,
		},
	})
}

// HandleKick processes a KICK, using the same removal paths as PART.
func (s *Server) HandleKick(channel, nick, by, reason string) {
	if strings.EqualFold(nick, s.Nickname()) {
		s.Membership.RemoveJoinedChannel(channel)
	} else {
		s.Membership.RemoveChannelNick(channel, nick)
	}
	s.bus.Emit(events.Event{
		Type:   EventKicked,
		Source: events.SourceSession,
		Data: map[string]interface{}{
			"connection_id": s.id,
			"channel":       channel,
			"nick":          nick,
			"by":            by,
			"reason":        reason,
		},
	})
}

// HandleQuit removes a quitting nick from every channel at once.
func (s *Server) HandleQuit(nick, reason string) {
	info, wasKnown := s.Membership.SetNickOffline(nick)
	if !wasKnown {
		s.log.Debug().Str("nick", nick).Msg("Quit for unknown nick")
		return
	}
	if s.isWatchedNick(nick) && info.PrintedOnline() {
		s.emitWatchedOffline(nick)
	}
	s.bus.Emit(events.Event{
		Type:   EventQuit,
		Source: events.SourceSession,
		Data: map[string]interface{}{
			"connection_id": s.id,
			"nick":          nick,
			"reason":        reason,
		},
	})
}

// HandleNick processes a rename, ours or anyone else's. NickInfo identity
// survives; all membership keys are re-keyed atomically.
func (s *Server) HandleNick(oldNick, newNick string) {
	own := strings.EqualFold(oldNick, s.Nickname())
	if own {
		s.mu.Lock()
		s.nickname = newNick
		s.mu.Unlock()
	}

	info := s.Membership.GetNickInfo(oldNick)
	if info == nil {
		info = s.Membership.ObtainNickInfo(newNick)
	} else {
		s.Membership.RenameNickInfo(info, newNick)
	}

	s.bus.Emit(events.Event{
		Type:   EventNickChanged,
		Source: events.SourceSession,
		Data: map[string]interface{}{
			"connection_id": s.id,
			"old_nick":      oldNick,
			"new_nick":      newNick,
			"own":           own,
		},
	})
}

// HandleTopic records a topic change.
func (s *Server) HandleTopic(channel, by, topic string) {
	s.Membership.SetTopic(channel, topic, by)
	s.bus.Emit(events.Event{
		Type:   EventTopic,
		Source: events.SourceSession,
		Data: map[string]interface{}{
			"connection_id": s.id,
			"channel":       channel,
			"topic":         topic,
			"by":            by,
		},
	})
}

// HandleNamesReply seeds a channel's membership from one RPL_NAMREPLY
// entry: a nickname with its membership prefix already translated to mode
// letters ("ov" etc).
func (s *Server) HandleNamesReply(channel, nick, modes string) {
	s.Membership.AddNickToJoinedChannel(channel, nick)
	s.Membership.SetChannelNickModes(channel, nick, modes)
}

// HandleWhoReply updates a nick's hostmask, real name and away flag from
// one RPL_WHOREPLY entry.
func (s *Server) HandleWhoReply(nick, ident, host, realName string, away bool) {
	info := s.Membership.GetNickInfo(nick)
	if info == nil {
		return
	}
	info.SetHostmask(ident + "@" + host)
	info.SetIdent(ident)
	info.SetRealName(realName)
	info.SetAway(away)
}

// UpdateChannelMode applies one mode delta from the wire. Membership modes
// (v h o q a) flow through the privileged counter bookkeeping; ban modes
// maintain the channel ban list; everything else is surfaced as channel
// mode state on the bus.
func (s *Server) UpdateChannelMode(sourceNick, channel string, mode rune, plus bool, parameter string) {
	switch mode {
	case 'v', 'h', 'o', 'q', 'a':
		if parameter == "" {
			s.log.Warn().Str("channel", channel).Str("mode", string(mode)).Msg("Membership mode without a target")
			return
		}
		s.Membership.ApplyMemberMode(channel, parameter, mode, plus)
	case 'b':
		if plus {
			s.Membership.AddBan(channel, parameter)
		} else {
			s.Membership.RemoveBan(channel, parameter)
		}
	}

	sign := "+"
	if !plus {
		sign = "-"
	}
	s.bus.Emit(events.Event{
		Type:   EventChannelMode,
		Source: events.SourceSession,
		Data: map[string]interface{}{
			"connection_id": s.id,
			"channel":       channel,
			"mode":          sign + string(mode) + " " + parameter,
			"by":            sourceNick,
		},
	})
}

// HandleAwayStateChanged reflects the server's RPL_NOWAWAY / RPL_UNAWAY
// confirmation into session state.
func (s *Server) HandleAwayStateChanged(away bool) {
	s.mu.Lock()
	changed := s.away != away
	s.away = away
	message := s.awayMessage
	if !away {
		s.awayMessage = ""
		message = ""
	}
	s.mu.Unlock()
	if !changed {
		return
	}

	s.log.Debug().Bool("away", away).Msg("Away state changed")
	s.bus.Emit(events.Event{
		Type:   EventAwayChanged,
		Source: events.SourceAway,
		Data: map[string]interface{}{
			"connection_id": s.id,
			"away":          away,
			"message":       message,
		},
	})
}

// HandlePrivmsg surfaces a channel or private message and opens an implied
// query for direct messages.
func (s *Server) HandlePrivmsg(target, nick, message string) {
	if s.isIgnored(nick) {
		return
	}
	if s.IsAChannel(target) {
		if member := s.Membership.GetChannelNick(target, nick); member != nil {
			member.SetTimeStamp(time.Now().Unix())
		}
	} else if !strings.EqualFold(nick, s.Nickname()) {
		if !s.Membership.IsQuery(nick) {
			s.Membership.AddQuery(nick)
			s.bus.Emit(events.Event{
				Type:   EventQueryOpened,
				Source: events.SourceSession,
				Data: map[string]interface{}{
					"connection_id": s.id,
					"query":         nick,
				},
			})
		}
	}
	s.bus.Emit(events.Event{
		Type:   EventMessage,
		Source: events.SourceSession,
		Data: map[string]interface{}{
			"connection_id": s.id,
			"target":        target,
			"nick":          nick,
			"message":       message,
		},
	})
}

// HandleNotice surfaces a notice without opening a query.
func (s *Server) HandleNotice(target, nick, message string) {
	if s.isIgnored(nick) {
		return
	}
	s.bus.Emit(events.Event{
		Type:   EventNotice,
		Source: events.SourceSession,
		Data: map[string]interface{}{
			"connection_id": s.id,
			"target":        target,
			"nick":          nick,
			"message":       message,
		},
	})
}

// HandleServerText surfaces untargeted server output (MOTD, numerics).
func (s *Server) HandleServerText(text string) {
	s.bus.Emit(events.Event{
		Type:   EventServerText,
		Source: events.SourceSession,
		Data: map[string]interface{}{
			"connection_id": s.id,
			"text":          text,
		},
	})
}

func (s *Server) isIgnored(nick string) bool {
	hostmask := nick
	if info := s.Membership.GetNickInfo(nick); info != nil && info.Hostmask() != "" {
		hostmask = nick + "!" + info.Hostmask()
	} else {
		hostmask = nick + "!*@*"
	}
	for _, pattern := range s.prefs.IgnoreList() {
		if matchMask(pattern, hostmask) {
			return true
		}
	}
	return false
}

// matchMask matches an irc mask pattern (* and ? wildcards) against a
// nick!user@host string, case-insensitively.
func matchMask(pattern, s string) bool {
	pattern = strings.ToLower(pattern)
	s = strings.ToLower(s)
	return matchWild(pattern, s)
}

func matchWild(p, s string) bool {
	for len(p) > 0 {
		switch p[0] {
		case '*':
			for i := 0; i <= len(s); i++ {
				if matchWild(p[1:], s[i:]) {
					return true
				}
			}
			return false
		case '?':
			if len(s) == 0 {
				return false
			}
		default:
			if len(s) == 0 || p[0] != s[0] {
				return false
			}
		}
		p = p[1:]
		s = s[1:]
	}
	return len(s) == 0
}

// autoCommandsAndChannels runs the group's connect commands and joins its
// auto-join channels plus any one-shot list, after a short settle delay.
func (s *Server) autoCommandsAndChannels() {
	group := s.Group()

	s.mu.Lock()
	oneShot := s.settings.OneShot
	s.settings.OneShot = nil
	s.mu.Unlock()

	time.AfterFunc(constants.AutoConnectDelay, func() {
		if !s.IsConnected() {
			return
		}
		s.runConnectCommands(group)
		var channels []config.ChannelSettings
		if group != nil {
			channels = append(channels, group.AutoJoin...)
		}
		channels = append(channels, oneShot...)
		for _, ch := range channels {
			if ch.Password != "" {
				s.Queue("JOIN " + ch.Name + " " + ch.Password)
			} else {
				s.Queue("JOIN " + ch.Name)
			}
		}
	})
}

// runConnectCommands queues the group's connect commands, translating each
// through the installed command parser so they hit the wire as protocol
// rather than raw slash commands.
func (s *Server) runConnectCommands(group *config.ServerGroupSettings) {
	if group == nil || group.ConnectCommands == "" {
		return
	}
	s.mu.RLock()
	parse := s.commandParser
	s.mu.RUnlock()

	for _, raw := range strings.Split(group.ConnectCommands, ";") {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		if parse != nil {
			s.QueueList(parse(raw))
			continue
		}
		s.Queue(strings.TrimPrefix(raw, s.prefs.CommandChar))
	}
}

// --- lag measurement ---

func (s *Server) startLagTimer() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lagTimer != nil {
		s.lagTimer.Stop()
	}
	s.lagTimer = time.AfterFunc(constants.LagCheckInterval, s.sendLagPing)
}

func (s *Server) stopLagTimer() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lagTimer != nil {
		s.lagTimer.Stop()
		s.lagTimer = nil
	}
}

func (s *Server) sendLagPing() {
	if !s.IsConnected() {
		return
	}
	now := time.Now()
	s.mu.Lock()
	s.lagSentAt = now
	s.mu.Unlock()
	s.QueueUrgent("PING LAG" + strconv.FormatInt(now.UnixNano(), 10))
	s.startLagTimer()
}

// HandlePong completes a lag measurement round when the payload carries
// our LAG marker.
func (s *Server) HandlePong(payload string) {
	if !strings.HasPrefix(payload, "LAG") {
		return
	}
	ns, err := strconv.ParseInt(strings.TrimPrefix(payload, "LAG"), 10, 64)
	if err != nil {
		return
	}
	lag := time.Since(time.Unix(0, ns))

	s.mu.Lock()
	s.lag = lag
	s.mu.Unlock()

	s.bus.Emit(events.Event{
		Type:   EventLagMeasured,
		Source: events.SourceSession,
		Data: map[string]interface{}{
			"connection_id": s.id,
			"lag_ms":        lag.Milliseconds(),
		},
	})
}
