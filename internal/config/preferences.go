package config

import (
	"strings"
	"sync"
	"time"
)

// Preferences is the explicit configuration object threaded through the
// engine: the identity set, the server group set and global settings.
// It replaces the preferences singleton of typical desktop clients.
type Preferences struct {
	mu sync.RWMutex

	identities   map[int]*Identity
	serverGroups map[int]*ServerGroupSettings

	// Command parsing
	CommandChar string
	Aliases     []string

	// Reconnection policy
	AutoReconnect     bool
	ReconnectAttempts int // 0 means unlimited
	ReconnectDelay    time.Duration

	// Notify/watch polling
	UseNotify   bool
	NotifyDelay time.Duration

	// Outbound flood control
	QueueInterval time.Duration

	// Request userhost info for joining nicks
	AutoUserhost bool

	ignoreList []string
}

// NewPreferences returns preferences with engine defaults and the
// always-present default identity.
func NewPreferences() *Preferences {
	p := &Preferences{
		identities:        make(map[int]*Identity),
		serverGroups:      make(map[int]*ServerGroupSettings),
		CommandChar:       "/",
		AutoReconnect:     true,
		ReconnectAttempts: 10,
		ReconnectDelay:    10 * time.Second,
		UseNotify:         true,
		NotifyDelay:       20 * time.Second,
		QueueInterval:     2 * time.Second,
		AutoUserhost:      true,
	}
	p.identities[DefaultIdentityID] = DefaultIdentity()
	return p
}

// AddIdentity registers an identity, overwriting any previous one with the
// same id.
func (p *Preferences) AddIdentity(identity *Identity) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.identities[identity.ID] = identity
}

// IdentityByID returns the identity for the given id, falling back to the
// default identity when unknown. Never returns nil.
func (p *Preferences) IdentityByID(id int) *Identity {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if identity, ok := p.identities[id]; ok {
		return identity
	}
	return p.identities[DefaultIdentityID]
}

// Identities returns a snapshot of all identities.
func (p *Preferences) Identities() []*Identity {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]*Identity, 0, len(p.identities))
	for _, identity := range p.identities {
		out = append(out, identity)
	}
	return out
}

// AddServerGroup registers a server group.
func (p *Preferences) AddServerGroup(group *ServerGroupSettings) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.serverGroups[group.ID] = group
}

// ServerGroupByID returns the group for an id, or nil.
func (p *Preferences) ServerGroupByID(id int) *ServerGroupSettings {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.serverGroups[id]
}

// ServerGroupByName returns the group with the given name
// (case-insensitive), or nil.
func (p *Preferences) ServerGroupByName(name string) *ServerGroupSettings {
	p.mu.RLock()
	defer p.mu.RUnlock()
	for _, group := range p.serverGroups {
		if strings.EqualFold(group.Name, name) {
			return group
		}
	}
	return nil
}

// ServerGroupByServer returns the first group whose server list contains
// the given host, or nil.
func (p *Preferences) ServerGroupByServer(host string) *ServerGroupSettings {
	p.mu.RLock()
	defer p.mu.RUnlock()
	for _, group := range p.serverGroups {
		for _, server := range group.ServerList {
			if strings.EqualFold(server.Host, host) {
				return group
			}
		}
	}
	return nil
}

// ServerGroups returns a snapshot of all server groups.
func (p *Preferences) ServerGroups() []*ServerGroupSettings {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]*ServerGroupSettings, 0, len(p.serverGroups))
	for _, group := range p.serverGroups {
		out = append(out, group)
	}
	return out
}

// NotifyListByGroup returns the watch list for a server group id.
func (p *Preferences) NotifyListByGroup(groupID int) []string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	group := p.serverGroups[groupID]
	if group == nil {
		return nil
	}
	out := make([]string, len(group.NotifyList))
	copy(out, group.NotifyList)
	return out
}

// IsNotify reports whether nick is on the group's watch list.
func (p *Preferences) IsNotify(groupID int, nick string) bool {
	for _, n := range p.NotifyListByGroup(groupID) {
		if strings.EqualFold(n, nick) {
			return true
		}
	}
	return false
}

// AddNotify adds nick to the group's watch list. Returns false if the
// group is unknown or the nick is already present.
func (p *Preferences) AddNotify(groupID int, nick string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	group := p.serverGroups[groupID]
	if group == nil {
		return false
	}
	for _, n := range group.NotifyList {
		if strings.EqualFold(n, nick) {
			return false
		}
	}
	group.NotifyList = append(group.NotifyList, nick)
	return true
}

// RemoveNotify removes nick from the group's watch list. Returns false if
// it was not present.
func (p *Preferences) RemoveNotify(groupID int, nick string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	group := p.serverGroups[groupID]
	if group == nil {
		return false
	}
	for i, n := range group.NotifyList {
		if strings.EqualFold(n, nick) {
			group.NotifyList = append(group.NotifyList[:i], group.NotifyList[i+1:]...)
			return true
		}
	}
	return false
}

// IgnoreList returns a snapshot of the global ignore patterns.
func (p *Preferences) IgnoreList() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]string, len(p.ignoreList))
	copy(out, p.ignoreList)
	return out
}

// AddIgnore adds a pattern to the ignore list. Plain nicknames are
// completed to nick!*@* masks. Returns the stored pattern and whether it
// was newly added.
func (p *Preferences) AddIgnore(pattern string) (string, bool) {
	if !strings.ContainsAny(pattern, "!@*") {
		pattern += "!*@*"
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, existing := range p.ignoreList {
		if strings.EqualFold(existing, pattern) {
			return pattern, false
		}
	}
	p.ignoreList = append(p.ignoreList, pattern)
	return pattern, true
}

// RemoveIgnore removes a pattern from the ignore list.
func (p *Preferences) RemoveIgnore(pattern string) bool {
	if !strings.ContainsAny(pattern, "!@*") {
		pattern += "!*@*"
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	for i, existing := range p.ignoreList {
		if strings.EqualFold(existing, pattern) {
			p.ignoreList = append(p.ignoreList[:i], p.ignoreList[i+1:]...)
			return true
		}
	}
	return false
}
