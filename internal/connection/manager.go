package connection

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/matt0x6f/irc-engine/internal/config"
	"github.com/matt0x6f/irc-engine/internal/constants"
	"github.com/matt0x6f/irc-engine/internal/events"
	"github.com/matt0x6f/irc-engine/internal/irc"
	"github.com/matt0x6f/irc-engine/internal/logger"
	"github.com/matt0x6f/irc-engine/internal/outputfilter"
	"github.com/matt0x6f/irc-engine/internal/validation"
	"github.com/rs/zerolog"
)

// ConnectionFlag controls what happens when a connect request matches an
// existing session.
type ConnectionFlag int

const (
	// PromptToReuseConnection would ask the user; without an interactive
	// surface attached it behaves like silent reuse.
	PromptToReuseConnection ConnectionFlag = iota
	SilentlyReuseConnection
	CreateNewConnection
)

// Manager owns the set of live sessions: it brokers connect requests into
// new or reused sessions and runs the reconnection policy for involuntary
// disconnects.
type Manager struct {
	prefs   *config.Preferences
	bus     *events.EventBus
	secrets irc.PasswordSource
	log     zerolog.Logger

	mu            sync.Mutex
	connections   map[int]*irc.Server
	nextID        int
	commandParser func(server *irc.Server, line string) []string
}

// NewManager creates an empty session manager. secrets may be nil when no
// SASL credentials are stored.
func NewManager(prefs *config.Preferences, bus *events.EventBus, secrets irc.PasswordSource) *Manager {
	return &Manager{
		prefs:       prefs,
		bus:         bus,
		secrets:     secrets,
		log:         logger.With("connection-manager"),
		connections: make(map[int]*irc.Server),
		nextID:      1,
	}
}

// SetCommandParser installs the slash-command translator sessions use for
// their group's connect commands. Applies to sessions created afterwards.
func (m *Manager) SetCommandParser(parse func(server *irc.Server, line string) []string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.commandParser = parse
}

// Connections returns a snapshot of all sessions, ordered by id.
func (m *Manager) Connections() []*irc.Server {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*irc.Server, 0, len(m.connections))
	for _, server := range m.connections {
		out = append(out, server)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID() < out[j].ID() })
	return out
}

// ConnectedServers returns only the sessions that completed registration.
func (m *Manager) ConnectedServers() []*irc.Server {
	var out []*irc.Server
	for _, server := range m.Connections() {
		if server.IsConnected() {
			out = append(out, server)
		}
	}
	return out
}

// ServerByID returns the session with the given id, or nil.
func (m *Manager) ServerByID(id int) *irc.Server {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.connections[id]
}

// serverByGroup finds an existing session backed by the given group id.
func (m *Manager) serverByGroup(groupID int) *irc.Server {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, server := range m.connections {
		if server.ServerGroupID() == groupID && groupID >= 0 {
			return server
		}
	}
	return nil
}

// serverByHostPort finds an existing session connected (or connecting) to
// the literal host and port.
func (m *Manager) serverByHostPort(host string, port int) *irc.Server {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, server := range m.connections {
		target := server.Settings().Server
		if strings.EqualFold(target.Host, host) && target.Port == port {
			return server
		}
	}
	return nil
}

// ResolveTarget turns a connect target — a known server group name, an
// irc:// / ircs:// URL, or a bare host[:port] — into connection settings.
func (m *Manager) ResolveTarget(target string, ssl bool) config.ConnectionSettings {
	target = strings.TrimSpace(target)

	if group := m.prefs.ServerGroupByName(target); group != nil {
		settings := config.ConnectionSettings{Group: group}
		if len(group.ServerList) > 0 {
			settings.Server = group.ServerList[0]
		}
		return settings
	}

	if settings, ok := DecodeIrcURL(target, m.prefs); ok {
		return settings
	}

	settings := config.ConnectionSettings{Server: DecodeAddress(target, ssl)}
	// An ad-hoc address may still belong to a configured group.
	if group := m.prefs.ServerGroupByServer(settings.Server.Host); group != nil {
		settings.Group = group
	}
	return settings
}

// ConnectTo resolves target and either creates a new session or reuses an
// existing one per the flag.
func (m *Manager) ConnectTo(flag ConnectionFlag, target string, ssl bool) (*irc.Server, error) {
	return m.connect(flag, m.ResolveTarget(target, ssl))
}

// ConnectToGroup starts (or reuses) a session for a configured group.
func (m *Manager) ConnectToGroup(flag ConnectionFlag, groupID int) (*irc.Server, error) {
	group := m.prefs.ServerGroupByID(groupID)
	if group == nil {
		return nil, fmt.Errorf("unknown server group %d", groupID)
	}
	if err := validation.ValidateServerGroup(group); err != nil {
		return nil, err
	}
	settings := config.ConnectionSettings{Group: group, Server: group.ServerList[0]}
	return m.connect(flag, settings)
}

func (m *Manager) connect(flag ConnectionFlag, settings config.ConnectionSettings) (*irc.Server, error) {
	if !settings.IsValid() {
		return nil, fmt.Errorf("no server to connect to")
	}
	if err := validation.ValidateServerAddress(settings.Server.Host, settings.Server.Port); err != nil {
		return nil, err
	}

	identity := m.prefs.IdentityByID(settings.IdentityID())
	if err := validation.ValidateIdentity(identity); err != nil {
		return nil, fmt.Errorf("cannot connect with identity %q: %w", identity.Name, err)
	}

	if flag != CreateNewConnection {
		if existing := m.findReusable(settings); existing != nil {
			return existing, m.reuse(existing, settings)
		}
	}

	m.mu.Lock()
	id := m.nextID
	m.nextID++
	server := irc.NewServer(id, settings, m.prefs, m.bus)
	m.connections[id] = server
	parse := m.commandParser
	m.mu.Unlock()

	if parse != nil {
		server.SetCommandParser(func(line string) []string {
			return parse(server, line)
		})
	}
	irc.NewBinding(server, m.secrets)
	server.SetDisconnectHook(func(deliberate bool) {
		if !deliberate {
			m.handleReconnect(server)
		}
	})

	m.log.Info().Int("connection_id", id).Str("name", settings.Name()).Msg("Creating connection")
	if err := server.Connect(); err != nil {
		return server, err
	}
	return server, nil
}

func (m *Manager) findReusable(settings config.ConnectionSettings) *irc.Server {
	if settings.Group != nil {
		if existing := m.serverByGroup(settings.Group.ID); existing != nil {
			return existing
		}
	}
	return m.serverByHostPort(settings.Server.Host, settings.Server.Port)
}

// reuse applies a connect request to an existing matching session: a live
// session just joins the requested channels; a dormant one is redialed
// with the requested one-shot channels attached.
func (m *Manager) reuse(server *irc.Server, settings config.ConnectionSettings) error {
	m.log.Debug().Int("connection_id", server.ID()).Str("name", settings.Name()).Msg("Reusing existing connection")

	if server.IsConnected() {
		for _, channel := range settings.OneShot {
			if channel.Password != "" {
				server.Queue("JOIN " + channel.Name + " " + channel.Password)
			} else {
				server.Queue("JOIN " + channel.Name)
			}
		}
		return nil
	}

	if len(settings.OneShot) > 0 {
		current := server.Settings()
		current.OneShot = append(current.OneShot, settings.OneShot...)
		server.UpdateSettings(current)
	}
	if server.IsConnecting() {
		return nil
	}
	return server.Connect()
}

// handleReconnect runs the retry policy after an involuntary disconnect.
// The effective budget is the configured attempt count multiplied by the
// group's server-list length, so one full cycle through the fallback list
// counts as a single attempt. Zero configured attempts means unlimited.
func (m *Manager) handleReconnect(server *irc.Server) {
	if !m.prefs.AutoReconnect {
		return
	}

	settings := server.Settings()
	budget := m.prefs.ReconnectAttempts
	if settings.Group != nil {
		budget *= len(settings.Group.ServerList)
	}

	if budget != 0 && settings.ReconnectCount >= budget {
		m.log.Warn().
			Int("connection_id", server.ID()).
			Int("attempts", settings.ReconnectCount).
			Msg("Reconnection attempts exceeded")
		settings.ReconnectCount = 0
		server.UpdateSettings(settings)
		m.bus.Emit(events.Event{
			Type:   irc.EventReconnectAbandoned,
			Source: events.SourceConnection,
			Data: map[string]interface{}{
				"connection_id": server.ID(),
				"reason":        "reconnection attempts exceeded",
			},
		})
		return
	}

	// Advance to the next server in the group, wrapping after the last.
	if settings.Group != nil && len(settings.Group.ServerList) > 1 {
		serverList := settings.Group.ServerList
		index := -1
		for i, candidate := range serverList {
			if candidate.Equal(settings.Server) {
				index = i
				break
			}
		}
		if index < 0 || index == len(serverList)-1 {
			settings.Server = serverList[0]
		} else {
			settings.Server = serverList[index+1]
		}
	}
	settings.ReconnectCount++
	server.UpdateSettings(settings)

	m.log.Info().
		Int("connection_id", server.ID()).
		Int("attempt", settings.ReconnectCount).
		Str("server", settings.Server.String()).
		Msg("Scheduling reconnection attempt")
	m.bus.Emit(events.Event{
		Type:   irc.EventReconnecting,
		Source: events.SourceConnection,
		Data: map[string]interface{}{
			"connection_id": server.ID(),
			"attempt":       settings.ReconnectCount,
			"max":           budget,
			"host":          settings.Server.Host,
			"port":          settings.Server.Port,
		},
	})
	server.ConnectIn(m.prefs.ReconnectDelay)
}

// AutoConnect starts a session for every group flagged auto-connect,
// staggered so a large configuration does not dial everything at once.
func (m *Manager) AutoConnect() {
	delay := time.Duration(0)
	for _, group := range m.prefs.ServerGroups() {
		if !group.AutoConnect {
			continue
		}
		groupID := group.ID
		time.AfterFunc(delay, func() {
			if _, err := m.ConnectToGroup(SilentlyReuseConnection, groupID); err != nil {
				m.log.Error().Err(err).Int("group_id", groupID).Msg("Auto-connect failed")
			}
		})
		delay += constants.ConnectionStaggerDelay
	}
}

// ExecuteAction runs the side effects a parsed command requested against
// the session it was entered on.
func (m *Manager) ExecuteAction(server *irc.Server, action outputfilter.Action) error {
	if action.Disconnect {
		server.Disconnect(action.DisconnectReason)
	}
	if action.Reconnect {
		if err := server.ReconnectServer(action.DisconnectReason); err != nil {
			return err
		}
	}
	if action.ConnectTo != "" {
		if _, err := m.ConnectTo(PromptToReuseConnection, action.ConnectTo, false); err != nil {
			return err
		}
	}
	if action.OpenQuery != "" {
		server.Membership.AddQuery(action.OpenQuery)
	}
	if action.AwayChanged {
		if action.Away {
			server.RequestAway(action.AwayMessage)
		} else {
			server.RequestUnaway()
		}
	}
	if action.NotifyCheck {
		server.NotifyCheckNow()
	}
	if action.MultiServer != nil {
		m.broadcast(*action.MultiServer)
	}
	return nil
}

// broadcast replays a multi-server command (/amsg, /ame, /aaway, /aback)
// on every connected session. Messages go to every joined channel.
func (m *Manager) broadcast(command outputfilter.MultiServerCommand) {
	for _, server := range m.ConnectedServers() {
		switch command.Command {
		case "msg":
			for _, channel := range server.Membership.JoinedChannels() {
				server.Queue("PRIVMSG " + channel + " :" + command.Payload)
			}
		case "me":
			for _, channel := range server.Membership.JoinedChannels() {
				server.Queue("PRIVMSG " + channel + " :\x01ACTION " + command.Payload + "\x01")
			}
		case "away":
			server.RequestAway(command.Payload)
		case "back":
			server.RequestUnaway()
		}
	}
}

// DisconnectAll performs a deliberate quit on every session, used at
// shutdown.
func (m *Manager) DisconnectAll(reason string) {
	for _, server := range m.Connections() {
		server.Shutdown(reason)
	}
}
