package away

import (
	"sync"
	"time"

	"github.com/matt0x6f/irc-engine/internal/config"
	"github.com/matt0x6f/irc-engine/internal/irc"
	"github.com/matt0x6f/irc-engine/internal/logger"
	"github.com/rs/zerolog"
)

// SessionList is the view of the connection manager the away policy
// needs.
type SessionList interface {
	Connections() []*irc.Server
}

// Manager implements automatic away: when an identity with auto-away
// enabled has been idle past its inactivity threshold, every connected
// session using that identity is marked away; activity marks them back if
// the identity has auto-return enabled. Idle detection is driven by
// RecordActivity calls from whatever input surface hosts the engine;
// timers here only measure the gaps between them.
type Manager struct {
	prefs    *config.Preferences
	sessions SessionList
	log      zerolog.Logger

	mu     sync.Mutex
	timers map[int]*time.Timer // identity id -> idle timer
}

// NewManager creates the away policy layer over a session list.
func NewManager(prefs *config.Preferences, sessions SessionList) *Manager {
	return &Manager{
		prefs:    prefs,
		sessions: sessions,
		log:      logger.With("away-manager"),
		timers:   make(map[int]*time.Timer),
	}
}

// managedIdentities returns the identities that have auto-away enabled
// and at least one session online.
func (m *Manager) managedIdentities() []*config.Identity {
	seen := make(map[int]bool)
	var out []*config.Identity
	for _, server := range m.sessions.Connections() {
		if !server.IsConnected() {
			continue
		}
		identity := server.Identity()
		if !identity.AutomaticAway || seen[identity.ID] {
			continue
		}
		seen[identity.ID] = true
		out = append(out, identity)
	}
	return out
}

// IdentitiesChanged re-registers the idle timers after identity settings
// change or a session goes online or offline.
func (m *Manager) IdentitiesChanged() {
	managed := m.managedIdentities()

	m.mu.Lock()
	defer m.mu.Unlock()

	keep := make(map[int]bool, len(managed))
	for _, identity := range managed {
		keep[identity.ID] = true
		if _, ok := m.timers[identity.ID]; !ok {
			m.armTimerLocked(identity)
		}
	}
	for id, timer := range m.timers {
		if !keep[id] {
			timer.Stop()
			delete(m.timers, id)
		}
	}
}

func (m *Manager) armTimerLocked(identity *config.Identity) {
	threshold := time.Duration(identity.AwayInactivity) * time.Minute
	if threshold <= 0 {
		return
	}
	id := identity.ID
	m.timers[id] = time.AfterFunc(threshold, func() {
		m.IdleTimeoutReached(id)
	})
}

// RecordActivity resets every idle timer and, for identities with
// auto-return enabled, marks their away sessions back.
func (m *Manager) RecordActivity() {
	managed := m.managedIdentities()

	m.mu.Lock()
	for _, identity := range managed {
		if timer, ok := m.timers[identity.ID]; ok {
			timer.Stop()
		}
		m.armTimerLocked(identity)
	}
	m.mu.Unlock()

	for _, identity := range managed {
		if identity.AutomaticUnaway {
			m.setIdentityAway(identity.ID, false, "")
		}
	}
}

// IdleTimeoutReached marks all connected sessions using the identity
// away, unless they already are.
func (m *Manager) IdleTimeoutReached(identityID int) {
	identity := m.prefs.IdentityByID(identityID)
	if !identity.AutomaticAway {
		return
	}
	m.log.Debug().Int("identity_id", identityID).Msg("Idle threshold reached, going away")
	m.setIdentityAway(identityID, true, identity.AwayMessage)
}

func (m *Manager) setIdentityAway(identityID int, away bool, message string) {
	for _, server := range m.sessions.Connections() {
		if !server.IsConnected() || server.Identity().ID != identityID {
			continue
		}
		if away && !server.IsAway() {
			server.RequestAway(message)
		} else if !away && server.IsAway() {
			server.RequestUnaway()
		}
	}
}

// RequestAllAway marks every connected session away, used by /aaway.
func (m *Manager) RequestAllAway(message string) {
	for _, server := range m.sessions.Connections() {
		if server.IsConnected() && !server.IsAway() {
			server.RequestAway(message)
		}
	}
}

// RequestAllUnaway marks every connected session back.
func (m *Manager) RequestAllUnaway() {
	for _, server := range m.sessions.Connections() {
		if server.IsConnected() && server.IsAway() {
			server.RequestUnaway()
		}
	}
}

// Stop cancels all idle timers.
func (m *Manager) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, timer := range m.timers {
		timer.Stop()
		delete(m.timers, id)
	}
}
