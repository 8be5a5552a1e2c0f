package irc

import (
	"strings"
	"sync"
	"time"
)

// NickInfo is the per-session shared record for one nickname. A session
// holds exactly one NickInfo per nick; every ChannelNick for that nick on
// any channel references the same record, so updates to hostmask or away
// state are visible everywhere at once.
type NickInfo struct {
	mu sync.RWMutex

	nickname    string
	hostmask    string
	realName    string
	ident       string
	versionInfo string

	away        bool
	awayMessage string

	onlineSince   time.Time
	printedOnline bool
}

// NewNickInfo creates a record for a newly seen nickname.
func NewNickInfo(nickname string) *NickInfo {
	return &NickInfo{nickname: nickname}
}

// Nickname returns the current (case-preserved) nickname.
func (n *NickInfo) Nickname() string {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.nickname
}

// LoweredNickname returns the lowercased nickname used as map key.
func (n *NickInfo) LoweredNickname() string {
	return strings.ToLower(n.Nickname())
}

// SetNickname renames the record in place. Renames preserve identity: all
// ChannelNicks referencing this record follow along.
func (n *NickInfo) SetNickname(nickname string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.nickname = nickname
}

// Hostmask returns the user@host mask, if known.
func (n *NickInfo) Hostmask() string {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.hostmask
}

// SetHostmask records the user@host mask. Empty masks are ignored.
func (n *NickInfo) SetHostmask(hostmask string) {
	if hostmask == "" {
		return
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	n.hostmask = hostmask
}

// RealName returns the real name reported by WHOIS/WHO.
func (n *NickInfo) RealName() string {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.realName
}

// SetRealName records the real name.
func (n *NickInfo) SetRealName(realName string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.realName = realName
}

// Ident returns the ident/username portion, if known.
func (n *NickInfo) Ident() string {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.ident
}

// SetIdent records the ident/username portion.
func (n *NickInfo) SetIdent(ident string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.ident = ident
}

// VersionInfo returns the CTCP VERSION reply, if one was seen.
func (n *NickInfo) VersionInfo() string {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.versionInfo
}

// SetVersionInfo records a CTCP VERSION reply.
func (n *NickInfo) SetVersionInfo(info string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.versionInfo = info
}

// IsAway reports the away flag.
func (n *NickInfo) IsAway() bool {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.away
}

// AwayMessage returns the away message, if any.
func (n *NickInfo) AwayMessage() string {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.awayMessage
}

// SetAway updates the away flag. Returning from away clears the message.
func (n *NickInfo) SetAway(away bool) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.away == away {
		return false
	}
	n.away = away
	if !away {
		n.awayMessage = ""
	}
	return true
}

// SetAwayMessage records the away message and implies away.
func (n *NickInfo) SetAwayMessage(message string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.awayMessage = message
	if message != "" {
		n.away = true
	}
}

// OnlineSince returns when the nick was first seen online, zero if unknown.
func (n *NickInfo) OnlineSince() time.Time {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.onlineSince
}

// SetOnlineSince records the sign-on time.
func (n *NickInfo) SetOnlineSince(t time.Time) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.onlineSince = t
}

// PrintedOnline reports whether a watched-nick-online transition has been
// surfaced for this record.
func (n *NickInfo) PrintedOnline() bool {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.printedOnline
}

// SetPrintedOnline marks the watched-online transition as surfaced.
func (n *NickInfo) SetPrintedOnline(printed bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.printedOnline = printed
}
