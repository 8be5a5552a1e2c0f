package connection

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/matt0x6f/irc-engine/internal/config"
)

var (
	ircSchemeRe = regexp.MustCompile(`^ircs?:/+`)
	passParamRe = regexp.MustCompile(`^pass=([^&]+)`)
	keyParamRe  = regexp.MustCompile(`^key=([^&]+)`)
)

// DecodeAddress parses a host[:port] string into ServerSettings,
// tolerating the IPv6 forms: a full 8-group address without port, a
// bracketed address, and a bracketed address with port.
func DecodeAddress(address string, ssl bool) config.ServerSettings {
	host := address
	port := 0

	switch {
	case strings.Count(address, ":") == 8:
		// Full-form IPv6 address, no port attached.
		host = address
	case strings.HasPrefix(address, "["):
		if end := strings.Index(address, "]"); end > 0 {
			host = address[1:end]
			if rest := address[end+1:]; strings.HasPrefix(rest, ":") {
				if p, err := strconv.Atoi(rest[1:]); err == nil {
					port = p
				}
			}
		}
	case strings.Count(address, ":") == 1:
		h, p, _ := strings.Cut(address, ":")
		host = h
		if parsed, err := strconv.Atoi(p); err == nil {
			port = parsed
		}
	}

	if port == 0 {
		if ssl {
			port = 6697
		} else {
			port = 6667
		}
	}
	return config.ServerSettings{Host: host, Port: port, SSL: ssl}
}

// DecodeIrcURL parses an irc:// or ircs:// URL into connection settings.
// The first path segment is either a known server group name or a server
// address; the second an initial channel, with pass= and key= query
// parameters carrying the server password and channel key. Returns false
// when the string is not an IRC URL.
func DecodeIrcURL(url string, prefs *config.Preferences) (config.ConnectionSettings, bool) {
	var settings config.ConnectionSettings

	if !strings.HasPrefix(url, "irc://") && !strings.HasPrefix(url, "ircs://") {
		return settings, false
	}
	ssl := strings.HasPrefix(url, "ircs://")

	mangled := ircSchemeRe.ReplaceAllString(url, "")
	if mangled == "" {
		return settings, false
	}

	var segments []string
	for _, segment := range strings.Split(mangled, "/") {
		if segment != "" {
			segments = append(segments, segment)
		}
	}
	if len(segments) == 0 {
		return settings, false
	}

	// A ",isserver" suffix forces address interpretation even when a
	// group of the same name exists.
	address := segments[0]
	forceServer := false
	if trimmed, ok := strings.CutSuffix(address, ",isserver"); ok {
		address = trimmed
		forceServer = true
	}

	if group := prefs.ServerGroupByName(address); group != nil && !forceServer {
		settings.Group = group
		if len(group.ServerList) > 0 {
			settings.Server = group.ServerList[0]
		}
	} else {
		settings.Server = DecodeAddress(address, ssl)
	}

	if ssl {
		settings.Server.SSL = true
		if settings.Server.Port == 0 {
			settings.Server.Port = 6697
		}
	}

	if len(segments) > 1 {
		channel := segments[1]
		key := ""
		if queryStart := strings.Index(channel, "?"); queryStart >= 0 {
			query := channel[queryStart+1:]
			channel = channel[:queryStart]
			for _, param := range strings.Split(query, "&") {
				if m := passParamRe.FindStringSubmatch(param); m != nil {
					settings.Server.Password = m[1]
				}
				if m := keyParamRe.FindStringSubmatch(param); m != nil {
					key = m[1]
				}
			}
		}
		if channel != "" {
			if !strings.ContainsAny(channel[:1], "#+&") {
				channel = "#" + channel
			}
			settings.OneShot = append(settings.OneShot, config.ChannelSettings{Name: channel, Password: key})
		}
	}

	return settings, true
}
