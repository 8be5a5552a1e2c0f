package config

import "strings"

// DefaultIdentityID is the id of the fallback identity that always exists.
const DefaultIdentityID = 0

// Identity is a named user profile referenced by server groups. Value
// semantics: the engine reads it at connect time and never mutates it.
type Identity struct {
	ID       int      `yaml:"id"`
	Name     string   `yaml:"name"`
	RealName string   `yaml:"real_name"`
	Ident    string   `yaml:"ident"`

	// Candidate nicknames in fallback order
	Nicknames []string `yaml:"nicknames"`

	// SASL / services authentication
	AuthType    string `yaml:"auth_type"` // "", "saslplain", "saslexternal", "scram-sha-256", "scram-sha-512", "nickserv"
	SASLAccount string `yaml:"sasl_account"`

	QuitReason string `yaml:"quit_reason"`
	PartReason string `yaml:"part_reason"`
	KickReason string `yaml:"kick_reason"`

	// Away automation
	AutomaticAway   bool   `yaml:"automatic_away"`
	AwayInactivity  int    `yaml:"away_inactivity"` // minutes
	AutomaticUnaway bool   `yaml:"automatic_unaway"`
	AwayMessage     string `yaml:"away_message"`
	ReturnMessage   string `yaml:"return_message"`
	AwayNickname    string `yaml:"away_nickname"`
}

// DefaultIdentity returns the built-in fallback identity.
func DefaultIdentity() *Identity {
	return &Identity{
		ID:              DefaultIdentityID,
		Name:            "Default",
		RealName:        "IRC Engine User",
		Ident:           "ircengine",
		Nicknames:       []string{"ircengine", "ircengine_", "ircengine__"},
		QuitReason:      "Leaving.",
		PartReason:      "Leaving.",
		KickReason:      "Begone.",
		AwayInactivity:  10,
		AutomaticUnaway: true,
		AwayMessage:     "Gone away for now",
		ReturnMessage:   "Back again",
	}
}

// Nickname returns the candidate nickname at the given index, or "" when
// the index is out of range.
func (id *Identity) Nickname(index int) string {
	if index < 0 || index >= len(id.Nicknames) {
		return ""
	}
	return id.Nicknames[index]
}

// NicknameIndex returns the position of nick in the candidate list, or -1.
func (id *Identity) NicknameIndex(nick string) int {
	for i, n := range id.Nicknames {
		if strings.EqualFold(n, nick) {
			return i
		}
	}
	return -1
}
