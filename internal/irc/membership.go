package irc

import (
	"sort"
	"strings"
	"sync"
)

// channelMembers is the per-channel membership map plus channel state that
// travels with it when a channel migrates between the joined and unjoined
// lists. Keys are lowercased nicknames.
type channelMembers struct {
	name       string // case-preserved channel name
	members    map[string]*ChannelNick
	privileged int // members holding any op-type mode

	topic   string
	topicBy string
	bans    []string
}

func newChannelMembers(name string) *channelMembers {
	return &channelMembers{
		name:    name,
		members: make(map[string]*ChannelNick),
	}
}

// Membership tracks every nickname the session knows about and which
// channels it shares with them. Channels we are currently in live in the
// joined list; channels we left but still track nicks for (watched nicks)
// live in the unjoined list. All map keys are lowercased.
type Membership struct {
	mu sync.RWMutex

	allNicks         map[string]*NickInfo
	joinedChannels   map[string]*channelMembers
	unjoinedChannels map[string]*channelMembers
	queryNicks       map[string]*NickInfo

	ownNick   func() string
	isWatched func(nick string) bool
}

// NewMembership creates an empty membership store. ownNick must return the
// session's current nickname; isWatched reports whether a nick is on the
// watch list. Both may be called with any casing.
func NewMembership(ownNick func() string, isWatched func(nick string) bool) *Membership {
	if ownNick == nil {
		ownNick = func() string { return "" }
	}
	if isWatched == nil {
		isWatched = func(string) bool { return false }
	}
	return &Membership{
		allNicks:         make(map[string]*NickInfo),
		joinedChannels:   make(map[string]*channelMembers),
		unjoinedChannels: make(map[string]*channelMembers),
		queryNicks:       make(map[string]*NickInfo),
		ownNick:          ownNick,
		isWatched:        isWatched,
	}
}

// GetNickInfo returns the shared record for nickname, or nil.
func (m *Membership) GetNickInfo(nickname string) *NickInfo {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.allNicks[strings.ToLower(nickname)]
}

// ObtainNickInfo returns the record for nickname, creating it if absent.
// An existing record has its case-preserved nickname refreshed.
func (m *Membership) ObtainNickInfo(nickname string) *NickInfo {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.obtainNickInfoLocked(nickname)
}

func (m *Membership) obtainNickInfoLocked(nickname string) *NickInfo {
	lc := strings.ToLower(nickname)
	info := m.allNicks[lc]
	if info == nil {
		info = NewNickInfo(nickname)
		m.allNicks[lc] = info
	} else {
		info.SetNickname(nickname)
	}
	return info
}

// IsJoinedChannel reports whether we are currently in channelName.
func (m *Membership) IsJoinedChannel(channelName string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.joinedChannels[strings.ToLower(channelName)]
	return ok
}

// JoinedChannels returns the lowercased names of all joined channels.
func (m *Membership) JoinedChannels() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, 0, len(m.joinedChannels))
	for name := range m.joinedChannels {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// UnjoinedChannels returns the lowercased names of all unjoined channels.
func (m *Membership) UnjoinedChannels() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, 0, len(m.unjoinedChannels))
	for name := range m.unjoinedChannels {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// AddNickToJoinedChannel records nickname as a member of a channel we are
// in, creating the NickInfo and channel entry as needed. A channel present
// in the unjoined list migrates to the joined list, members intact.
func (m *Membership) AddNickToJoinedChannel(channelName, nickname string) *ChannelNick {
	m.mu.Lock()
	defer m.mu.Unlock()

	info := m.obtainNickInfoLocked(nickname)

	lcChannel := strings.ToLower(channelName)
	channel, ok := m.unjoinedChannels[lcChannel]
	if ok {
		delete(m.unjoinedChannels, lcChannel)
		m.joinedChannels[lcChannel] = channel
	} else if channel, ok = m.joinedChannels[lcChannel]; !ok {
		channel = newChannelMembers(channelName)
		m.joinedChannels[lcChannel] = channel
	}

	lcNick := strings.ToLower(nickname)
	member, ok := channel.members[lcNick]
	if !ok {
		member = NewChannelNick(info)
		channel.members[lcNick] = member
	}
	return member
}

// AddNickToUnjoinedChannel records nickname as a member of a channel we
// are not in, used when tracking watched nicks via WHOIS. A channel
// present in the joined list migrates to the unjoined list.
func (m *Membership) AddNickToUnjoinedChannel(channelName, nickname string) *ChannelNick {
	m.mu.Lock()
	defer m.mu.Unlock()

	info := m.obtainNickInfoLocked(nickname)

	lcChannel := strings.ToLower(channelName)
	channel, ok := m.joinedChannels[lcChannel]
	if ok {
		delete(m.joinedChannels, lcChannel)
		m.unjoinedChannels[lcChannel] = channel
	} else if channel, ok = m.unjoinedChannels[lcChannel]; !ok {
		channel = newChannelMembers(channelName)
		m.unjoinedChannels[lcChannel] = channel
	}

	lcNick := strings.ToLower(nickname)
	member, ok := channel.members[lcNick]
	if !ok {
		member = NewChannelNick(info)
		channel.members[lcNick] = member
	}
	return member
}

// GetChannelNick returns the membership record for nickname on
// channelName, searching joined then unjoined channels. Returns nil when
// the pair is unknown.
func (m *Membership) GetChannelNick(channelName, nickname string) *ChannelNick {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.getChannelNickLocked(channelName, nickname)
}

func (m *Membership) getChannelNickLocked(channelName, nickname string) *ChannelNick {
	lcChannel := strings.ToLower(channelName)
	lcNick := strings.ToLower(nickname)
	if channel, ok := m.joinedChannels[lcChannel]; ok {
		if member, ok := channel.members[lcNick]; ok {
			return member
		}
	}
	if channel, ok := m.unjoinedChannels[lcChannel]; ok {
		if member, ok := channel.members[lcNick]; ok {
			return member
		}
	}
	return nil
}

// ChannelMembers returns the membership records for a channel, joined or
// unjoined, sorted by lowercased nickname.
func (m *Membership) ChannelMembers(channelName string) []*ChannelNick {
	m.mu.RLock()
	defer m.mu.RUnlock()
	channel := m.channelLocked(channelName)
	if channel == nil {
		return nil
	}
	keys := make([]string, 0, len(channel.members))
	for k := range channel.members {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]*ChannelNick, 0, len(keys))
	for _, k := range keys {
		out = append(out, channel.members[k])
	}
	return out
}

// MemberCount returns how many members a channel has, 0 when unknown.
func (m *Membership) MemberCount(channelName string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	channel := m.channelLocked(channelName)
	if channel == nil {
		return 0
	}
	return len(channel.members)
}

// PrivilegedCount returns how many members of a channel hold any op-type
// mode. The count is maintained incrementally as modes change.
func (m *Membership) PrivilegedCount(channelName string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	channel := m.channelLocked(channelName)
	if channel == nil {
		return 0
	}
	return channel.privileged
}

func (m *Membership) channelLocked(channelName string) *channelMembers {
	lc := strings.ToLower(channelName)
	if channel, ok := m.joinedChannels[lc]; ok {
		return channel
	}
	return m.unjoinedChannels[lc]
}

// NickChannels returns the lowercased channels (joined and unjoined) that
// nickname is known to be in.
func (m *Membership) NickChannels(nickname string) []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.nickChannelsLocked(strings.ToLower(nickname))
}

func (m *Membership) nickChannelsLocked(lcNick string) []string {
	var out []string
	for name, channel := range m.joinedChannels {
		if _, ok := channel.members[lcNick]; ok {
			out = append(out, name)
		}
	}
	for name, channel := range m.unjoinedChannels {
		if _, ok := channel.members[lcNick]; ok {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}

// RemoveChannelNick removes nickname from channelName (joined or
// unjoined), then drops the NickInfo entirely if nothing else references
// it. An emptied unjoined channel is discarded.
func (m *Membership) RemoveChannelNick(channelName, nickname string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.removeChannelNickLocked(channelName, nickname)
}

func (m *Membership) removeChannelNickLocked(channelName, nickname string) {
	lcChannel := strings.ToLower(channelName)
	lcNick := strings.ToLower(nickname)

	if channel, ok := m.joinedChannels[lcChannel]; ok {
		if member, ok := channel.members[lcNick]; ok {
			if member.IsAnyTypeOfOp() {
				channel.privileged--
			}
			delete(channel.members, lcNick)
		}
	} else if channel, ok := m.unjoinedChannels[lcChannel]; ok {
		if member, ok := channel.members[lcNick]; ok {
			if member.IsAnyTypeOfOp() {
				channel.privileged--
			}
			delete(channel.members, lcNick)
		}
		if len(channel.members) == 0 {
			delete(m.unjoinedChannels, lcChannel)
		}
	}

	m.deleteNickIfUnlistedLocked(lcNick)
}

// RemoveJoinedChannel handles us leaving a channel. Members that are not
// on the watch list are dropped (and their NickInfos garbage collected);
// watched members keep the channel alive in the unjoined list with their
// membership modes cleared.
func (m *Membership) RemoveJoinedChannel(channelName string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	lcChannel := strings.ToLower(channelName)
	channel, ok := m.joinedChannels[lcChannel]
	if !ok {
		return
	}
	delete(m.joinedChannels, lcChannel)

	for lcNick, member := range channel.members {
		if !m.isWatched(lcNick) {
			delete(channel.members, lcNick)
			m.deleteNickIfUnlistedLocked(lcNick)
		} else {
			member.SetPrefixModes("")
		}
	}
	channel.privileged = 0
	channel.topic = ""
	channel.topicBy = ""
	channel.bans = nil

	if len(channel.members) > 0 {
		m.unjoinedChannels[lcChannel] = channel
	}
}

// RenameNickInfo re-keys a nickname across every map after a NICK change.
// The NickInfo and all ChannelNicks referencing it survive the rename.
func (m *Membership) RenameNickInfo(info *NickInfo, newname string) {
	if info == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	lcOld := info.LoweredNickname()
	info.SetNickname(newname)
	lcNew := strings.ToLower(newname)
	if lcOld == lcNew {
		return
	}

	delete(m.allNicks, lcOld)
	m.allNicks[lcNew] = info

	for _, channel := range m.joinedChannels {
		if member, ok := channel.members[lcOld]; ok {
			delete(channel.members, lcOld)
			channel.members[lcNew] = member
		}
	}
	for _, channel := range m.unjoinedChannels {
		if member, ok := channel.members[lcOld]; ok {
			delete(channel.members, lcOld)
			channel.members[lcNew] = member
		}
	}
	if query, ok := m.queryNicks[lcOld]; ok {
		delete(m.queryNicks, lcOld)
		m.queryNicks[lcNew] = query
	}
}

// SetNickOffline removes every trace of nickname: query list, all channel
// memberships, and the NickInfo itself. It returns the removed record and
// whether the nick was known at all.
func (m *Membership) SetNickOffline(nickname string) (*NickInfo, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	lcNick := strings.ToLower(nickname)
	info := m.allNicks[lcNick]
	if info == nil {
		return nil, false
	}

	delete(m.queryNicks, lcNick)
	for _, channelName := range m.nickChannelsLocked(lcNick) {
		m.removeChannelNickLocked(channelName, lcNick)
	}
	delete(m.allNicks, lcNick)
	return info, true
}

// AddQuery records an open query with nickname, creating the NickInfo as
// needed.
func (m *Membership) AddQuery(nickname string) *NickInfo {
	m.mu.Lock()
	defer m.mu.Unlock()
	info := m.obtainNickInfoLocked(nickname)
	m.queryNicks[strings.ToLower(nickname)] = info
	return info
}

// RemoveQuery closes a query and garbage collects the NickInfo if nothing
// else references it.
func (m *Membership) RemoveQuery(nickname string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	lcNick := strings.ToLower(nickname)
	delete(m.queryNicks, lcNick)
	m.deleteNickIfUnlistedLocked(lcNick)
}

// IsQuery reports whether a query is open with nickname.
func (m *Membership) IsQuery(nickname string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.queryNicks[strings.ToLower(nickname)]
	return ok
}

// DeleteNickIfUnlisted drops the NickInfo for nickname when it appears in
// no channel, no query and no watch entry. The session's own nick is
// never dropped. Returns whether the record was deleted.
func (m *Membership) DeleteNickIfUnlisted(nickname string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.deleteNickIfUnlistedLocked(strings.ToLower(nickname))
}

func (m *Membership) deleteNickIfUnlistedLocked(lcNick string) bool {
	if lcNick == strings.ToLower(m.ownNick()) {
		return false
	}
	if _, ok := m.queryNicks[lcNick]; ok {
		return false
	}
	if m.isWatched(lcNick) {
		return false
	}
	if len(m.nickChannelsLocked(lcNick)) > 0 {
		return false
	}
	if _, ok := m.allNicks[lcNick]; !ok {
		return false
	}
	delete(m.allNicks, lcNick)
	return true
}

// SetChannelNickModes replaces a member's modes from a NAMES-style prefix
// translation, keeping the privileged counter exact.
func (m *Membership) SetChannelNickModes(channelName, nickname, modes string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	member := m.getChannelNickLocked(channelName, nickname)
	if member == nil {
		return
	}
	channel := m.channelLocked(channelName)
	wasOp := member.IsAnyTypeOfOp()
	member.SetPrefixModes(modes)
	m.adjustPrivileged(channel, wasOp, member.IsAnyTypeOfOp())
}

// ApplyMemberMode applies a single membership mode change (+o, -v, ...)
// to nickname on channelName, keeping the privileged counter exact. The
// member record is created if missing; the channel keeps its joined or
// unjoined placement either way. Returns whether the flag actually
// changed.
func (m *Membership) ApplyMemberMode(channelName, nickname string, mode rune, plus bool) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	channel := m.channelLocked(channelName)
	if channel == nil {
		channel = newChannelMembers(channelName)
		m.joinedChannels[strings.ToLower(channelName)] = channel
	}

	lcNick := strings.ToLower(nickname)
	member, ok := channel.members[lcNick]
	if !ok {
		member = NewChannelNick(m.obtainNickInfoLocked(nickname))
		channel.members[lcNick] = member
	}

	wasOp := member.IsAnyTypeOfOp()
	changed := member.SetMode(mode, plus)
	if changed {
		m.adjustPrivileged(channel, wasOp, member.IsAnyTypeOfOp())
	}
	return changed
}

func (m *Membership) adjustPrivileged(channel *channelMembers, wasOp, isOp bool) {
	if channel == nil || wasOp == isOp {
		return
	}
	if isOp {
		channel.privileged++
	} else {
		channel.privileged--
	}
}

// SetTopic records a channel's topic and who set it.
func (m *Membership) SetTopic(channelName, topic, by string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if channel := m.channelLocked(channelName); channel != nil {
		channel.topic = topic
		channel.topicBy = by
	}
}

// Topic returns a channel's topic and who set it.
func (m *Membership) Topic(channelName string) (topic, by string) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if channel := m.channelLocked(channelName); channel != nil {
		return channel.topic, channel.topicBy
	}
	return "", ""
}

// AddBan records a ban mask on a channel, deduplicated case-insensitively.
func (m *Membership) AddBan(channelName, mask string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	channel := m.channelLocked(channelName)
	if channel == nil {
		return
	}
	for _, b := range channel.bans {
		if strings.EqualFold(b, mask) {
			return
		}
	}
	channel.bans = append(channel.bans, mask)
}

// RemoveBan removes a ban mask from a channel.
func (m *Membership) RemoveBan(channelName, mask string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	channel := m.channelLocked(channelName)
	if channel == nil {
		return
	}
	for i, b := range channel.bans {
		if strings.EqualFold(b, mask) {
			channel.bans = append(channel.bans[:i], channel.bans[i+1:]...)
			return
		}
	}
}

// Bans returns the known ban masks for a channel.
func (m *Membership) Bans(channelName string) []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	channel := m.channelLocked(channelName)
	if channel == nil {
		return nil
	}
	out := make([]string, len(channel.bans))
	copy(out, channel.bans)
	return out
}

// Reset clears all membership state, used when a connection is lost.
func (m *Membership) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.allNicks = make(map[string]*NickInfo)
	m.joinedChannels = make(map[string]*channelMembers)
	m.unjoinedChannels = make(map[string]*channelMembers)
	m.queryNicks = make(map[string]*NickInfo)
}
