package irc

import "sync"

// Membership mode letters in rank order, highest first. These mirror the
// letters servers report in NAMES prefixes and MODE changes.
const membershipModes = "qaohv"

// ChannelNick binds a shared NickInfo to one channel together with the
// per-channel membership modes. The same NickInfo may be referenced by
// many ChannelNicks, one per channel the nick shares with us.
type ChannelNick struct {
	mu sync.RWMutex

	info *NickInfo

	owner     bool // +q
	admin     bool // +a
	op        bool // +o
	halfOp    bool // +h
	voice     bool // +v
	timeStamp int64
}

// NewChannelNick creates a membership record for info on some channel.
func NewChannelNick(info *NickInfo) *ChannelNick {
	return &ChannelNick{info: info}
}

// Info returns the shared nick record.
func (c *ChannelNick) Info() *NickInfo {
	return c.info
}

// Nickname returns the current nickname of the underlying record.
func (c *ChannelNick) Nickname() string {
	return c.info.Nickname()
}

// IsOwner reports channel owner status (+q).
func (c *ChannelNick) IsOwner() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.owner
}

// IsAdmin reports channel admin status (+a).
func (c *ChannelNick) IsAdmin() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.admin
}

// IsOp reports operator status (+o).
func (c *ChannelNick) IsOp() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.op
}

// IsHalfOp reports half-operator status (+h).
func (c *ChannelNick) IsHalfOp() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.halfOp
}

// HasVoice reports voice status (+v).
func (c *ChannelNick) HasVoice() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.voice
}

// IsAnyTypeOfOp reports whether the nick holds any operator-like mode
// (owner, admin, op or half-op). Voice does not count.
func (c *ChannelNick) IsAnyTypeOfOp() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.owner || c.admin || c.op || c.halfOp
}

// SetMode applies one membership mode letter. It returns whether the flag
// actually changed; repeated identical mode changes report false so
// callers can keep derived counters exact.
func (c *ChannelNick) SetMode(mode rune, on bool) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	var flag *bool
	switch mode {
	case 'q':
		flag = &c.owner
	case 'a':
		flag = &c.admin
	case 'o':
		flag = &c.op
	case 'h':
		flag = &c.halfOp
	case 'v':
		flag = &c.voice
	default:
		return false
	}
	if *flag == on {
		return false
	}
	*flag = on
	return true
}

// SetPrefixModes applies a NAMES-style prefix set ("@+" etc) translated to
// mode letters, replacing all current flags.
func (c *ChannelNick) SetPrefixModes(modes string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.owner, c.admin, c.op, c.halfOp, c.voice = false, false, false, false, false
	for _, m := range modes {
		switch m {
		case 'q':
			c.owner = true
		case 'a':
			c.admin = true
		case 'o':
			c.op = true
		case 'h':
			c.halfOp = true
		case 'v':
			c.voice = true
		}
	}
}

// TimeStamp returns the opaque activity timestamp.
func (c *ChannelNick) TimeStamp() int64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.timeStamp
}

// SetTimeStamp records an opaque activity timestamp.
func (c *ChannelNick) SetTimeStamp(ts int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.timeStamp = ts
}
