package outputfilter

import (
	"strings"

	"github.com/matt0x6f/irc-engine/internal/config"
)

// Context is what a command handler may ask of the session it runs
// against. *irc.Server satisfies it.
type Context interface {
	Nickname() string
	IsAChannel(name string) bool
	Identity() *config.Identity
	IsAway() bool
	IsConnected() bool
	ServerGroupID() int

	// PreLength returns the implicit header length the server prepends
	// when relaying command to dest, used for payload splitting.
	PreLength(command, dest string) int
}

// OutputFilter translates user input lines into wire protocol commands.
// It is a pure translator: handlers build a Result and never touch the
// network. The only state it reads is the preferences object.
type OutputFilter struct {
	prefs    *config.Preferences
	handlers map[string]handlerFunc
}

// request is one parse invocation: the session context, the destination
// (current channel/query, may be empty) and the parameter rest-of-line.
type request struct {
	ctx       Context
	dest      string
	parameter string
}

type handlerFunc func(f *OutputFilter, r request) Result

// NewOutputFilter creates a filter reading the command character and
// aliases from prefs.
func NewOutputFilter(prefs *config.Preferences) *OutputFilter {
	f := &OutputFilter{prefs: prefs}
	f.handlers = map[string]handlerFunc{
		"join":       (*OutputFilter).commandJoin,
		"j":          (*OutputFilter).commandJoin,
		"part":       (*OutputFilter).commandPart,
		"leave":      (*OutputFilter).commandPart,
		"quit":       (*OutputFilter).commandQuit,
		"msg":        (*OutputFilter).commandMsg,
		"query":      (*OutputFilter).commandQuery,
		"notice":     (*OutputFilter).commandNotice,
		"me":         (*OutputFilter).commandMe,
		"say":        (*OutputFilter).commandSay,
		"op":         (*OutputFilter).commandOp,
		"deop":       (*OutputFilter).commandDeop,
		"hop":        (*OutputFilter).commandHop,
		"dehop":      (*OutputFilter).commandDehop,
		"voice":      (*OutputFilter).commandVoice,
		"unvoice":    (*OutputFilter).commandUnvoice,
		"devoice":    (*OutputFilter).commandUnvoice,
		"kick":       (*OutputFilter).commandKick,
		"kickban":    (*OutputFilter).commandKickban,
		"topic":      (*OutputFilter).commandTopic,
		"away":       (*OutputFilter).commandAway,
		"back":       (*OutputFilter).commandBack,
		"unaway":     (*OutputFilter).commandBack,
		"invite":     (*OutputFilter).commandInvite,
		"ban":        (*OutputFilter).commandBan,
		"unban":      (*OutputFilter).commandUnban,
		"ignore":     (*OutputFilter).commandIgnore,
		"unignore":   (*OutputFilter).commandUnignore,
		"notify":     (*OutputFilter).commandNotify,
		"names":      (*OutputFilter).commandNames,
		"list":       (*OutputFilter).commandList,
		"raw":        (*OutputFilter).commandRaw,
		"quote":      (*OutputFilter).commandRaw,
		"ctcp":       (*OutputFilter).commandCTCP,
		"ping":       (*OutputFilter).commandPing,
		"dcc":        (*OutputFilter).commandDCC,
		"server":     (*OutputFilter).commandServer,
		"reconnect":  (*OutputFilter).commandReconnect,
		"disconnect": (*OutputFilter).commandDisconnect,
		"nick":       (*OutputFilter).commandNick,
		"mode":       (*OutputFilter).commandMode,
		"umode":      (*OutputFilter).commandUmode,
		"oper":       (*OutputFilter).commandOper,
		"omsg":       (*OutputFilter).commandOmsg,
		"onotice":    (*OutputFilter).commandOnotice,
		"cycle":      (*OutputFilter).commandCycle,
		"sayversion": (*OutputFilter).commandSayversion,
		"amsg":       (*OutputFilter).commandAmsg,
		"ame":        (*OutputFilter).commandAme,
		"aaway":      (*OutputFilter).commandAaway,
		"aback":      (*OutputFilter).commandAback,
	}
	return f
}

// Parse translates one input line entered at destination into a Result.
// It never returns an error: diagnostics ride in the result.
func (f *OutputFilter) Parse(ctx Context, line, destination string) Result {
	commandChar := f.prefs.CommandChar
	if commandChar == "" {
		commandChar = "/"
	}

	line = strings.TrimRight(line, "\r\n")
	if line == "" {
		return Result{}
	}

	// A doubled command character is a literal message starting with the
	// command character.
	if strings.HasPrefix(line, commandChar+commandChar) {
		return f.messageResult(ctx, line[len(commandChar):], destination)
	}

	if !strings.HasPrefix(line, commandChar) {
		return f.messageResult(ctx, line, destination)
	}

	if expanded, ok := f.replaceAliases(line); ok {
		line = expanded
	}

	body := line[len(commandChar):]
	command := body
	parameter := ""
	if idx := strings.IndexByte(body, ' '); idx >= 0 {
		command = body[:idx]
		parameter = strings.TrimSpace(body[idx+1:])
	}
	command = strings.ToLower(command)

	if handler, ok := f.handlers[command]; ok {
		return handler(f, request{ctx: ctx, dest: destination, parameter: parameter})
	}

	// Unknown commands go to the server verbatim, the escape hatch for
	// protocol commands without a dedicated handler.
	raw := strings.ToUpper(command)
	if parameter != "" {
		raw += " " + parameter
	}
	return Result{ToServer: []string{raw}, Output: raw, Type: TypeCommand}
}

// replaceAliases expands the first matching alias. An alias entry is
// "pattern replacement"; %p substitutes the rest of the input line (which
// is otherwise appended), %% escapes a literal percent.
func (f *OutputFilter) replaceAliases(line string) (string, bool) {
	commandChar := f.prefs.CommandChar
	if commandChar == "" {
		commandChar = "/"
	}

	for _, alias := range f.prefs.Aliases {
		pattern, replacement, found := strings.Cut(alias, " ")
		if !found || pattern == "" {
			continue
		}
		prefix := commandChar + strings.ToLower(pattern)
		lower := strings.ToLower(line)
		if lower != prefix && !strings.HasPrefix(lower, prefix+" ") {
			continue
		}

		rest := ""
		if idx := strings.IndexByte(line, ' '); idx >= 0 {
			rest = strings.TrimSpace(line[idx+1:])
		}

		const placeholder = "\x00pct\x00"
		replacement = strings.ReplaceAll(replacement, "%%", placeholder)
		if strings.Contains(replacement, "%p") {
			replacement = strings.ReplaceAll(replacement, "%p", rest)
		} else if rest != "" {
			replacement += " " + rest
		}
		replacement = strings.ReplaceAll(replacement, placeholder, "%")

		return commandChar + replacement, true
	}
	return line, false
}

// messageResult turns plain text into PRIVMSG lines to the current
// destination, splitting oversized payloads.
func (f *OutputFilter) messageResult(ctx Context, text, destination string) Result {
	if destination == "" {
		return errorResult("No destination to send a message to")
	}
	result := Result{Output: text, Type: TypeMessage}
	result.ToServer = splitPayload(ctx, "PRIVMSG", destination, text)
	return result
}

// splitPayload chops text into wire lines, none exceeding the 512-byte
// protocol limit once the server has prepended our message header. Breaks
// prefer the last space or punctuation inside the limit.
func splitPayload(ctx Context, command, destination, text string) []string {
	maxLen := 512 - ctx.PreLength(command, destination)
	if maxLen < 1 {
		maxLen = 1
	}
	prefix := command + " " + destination + " :"

	var lines []string
	for len(text) > maxLen {
		cut := lastBreak(text[:maxLen])
		if cut <= 0 {
			cut = maxLen
		}
		lines = append(lines, prefix+text[:cut])
		text = strings.TrimLeft(text[cut:], " ")
	}
	if text != "" {
		lines = append(lines, prefix+text)
	}
	return lines
}

// lastBreak finds the best split point in a chunk: the position after the
// last space or punctuation character.
func lastBreak(chunk string) int {
	best := -1
	for i, r := range chunk {
		switch r {
		case ' ', ',', ';', '.', ':', '-', '!', '?':
			best = i + 1
		}
	}
	return best
}
