package outputfilter

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/matt0x6f/irc-engine/internal/constants"
	"github.com/matt0x6f/irc-engine/internal/validation"
)

func normalizeChannel(ctx Context, name string) string {
	if name != "" && !ctx.IsAChannel(name) {
		return "#" + name
	}
	return name
}

// completeMask widens a plain nickname into a nick!*@* hostmask pattern.
func completeMask(mask string) string {
	if !strings.ContainsAny(mask, "!@*") {
		return mask + "!*@*"
	}
	return mask
}

func (f *OutputFilter) commandJoin(r request) Result {
	if r.parameter == "" {
		return usage("Usage: /JOIN <channel> [password]")
	}
	fields := strings.Fields(r.parameter)
	channel := normalizeChannel(r.ctx, fields[0])
	if err := validation.ValidateChannelName(channel); err != nil {
		return errorResult(err.Error())
	}
	if len(fields) > 1 {
		return toServer("JOIN " + channel + " " + fields[1])
	}
	return toServer("JOIN " + channel)
}

func (f *OutputFilter) commandPart(r request) Result {
	channel := r.dest
	reason := r.parameter

	if r.parameter != "" {
		fields := strings.SplitN(r.parameter, " ", 2)
		if r.ctx.IsAChannel(fields[0]) {
			channel = fields[0]
			reason = ""
			if len(fields) > 1 {
				reason = fields[1]
			}
		}
	}
	if channel == "" || !r.ctx.IsAChannel(channel) {
		return errorResult("/PART works only from within a channel, or give the channel name")
	}
	if reason == "" {
		reason = r.ctx.Identity().PartReason
	}
	return toServer("PART " + channel + " :" + reason)
}

func (f *OutputFilter) commandQuit(r request) Result {
	reason := r.parameter
	if reason == "" {
		reason = r.ctx.Identity().QuitReason
	}
	return Result{Action: Action{Disconnect: true, DisconnectReason: reason}}
}

func (f *OutputFilter) commandMsg(r request) Result {
	target, message, found := strings.Cut(r.parameter, " ")
	if !found || strings.TrimSpace(message) == "" {
		return usage("Usage: /MSG <user|channel> <message>")
	}
	result := Result{Output: message, Type: TypeMessage}
	result.ToServer = splitPayload(r.ctx, "PRIVMSG", target, message)
	return result
}

func (f *OutputFilter) commandQuery(r request) Result {
	if r.parameter == "" {
		return usage("Usage: /QUERY <user> [message]")
	}
	target, message, _ := strings.Cut(r.parameter, " ")
	result := Result{Action: Action{OpenQuery: target}}
	if strings.TrimSpace(message) != "" {
		result.ToServer = splitPayload(r.ctx, "PRIVMSG", target, message)
		result.Output = message
		result.Type = TypeMessage
	}
	return result
}

func (f *OutputFilter) commandNotice(r request) Result {
	target, message, found := strings.Cut(r.parameter, " ")
	if !found || strings.TrimSpace(message) == "" {
		return usage("Usage: /NOTICE <recipient> <message>")
	}
	result := Result{
		Output: fmt.Sprintf("Sending notice %q to %s", message, target),
		Type:   TypeProgram,
	}
	result.ToServer = splitPayload(r.ctx, "NOTICE", target, message)
	return result
}

func (f *OutputFilter) commandMe(r request) Result {
	if r.dest == "" {
		return errorResult("/ME needs a channel or query to act in")
	}
	if r.parameter == "" {
		return usage("Usage: /ME <message>")
	}
	return Result{
		ToServer: []string{"PRIVMSG " + r.dest + " :\x01ACTION " + r.parameter + "\x01"},
		Output:   r.parameter,
		Type:     TypeAction,
	}
}

func (f *OutputFilter) commandSay(r request) Result {
	if r.parameter == "" {
		return Result{}
	}
	return f.messageResult(r.ctx, r.parameter, r.dest)
}

// changeMode expands a convenience privilege command into MODE lines,
// batching at most three targets per line.
func (f *OutputFilter) changeMode(r request, mode, sign byte, usageText string) Result {
	fields := strings.Fields(r.parameter)
	channel := r.dest
	if len(fields) > 0 && r.ctx.IsAChannel(fields[0]) {
		channel = fields[0]
		fields = fields[1:]
	}
	if len(fields) == 0 {
		return usage(usageText)
	}
	if channel == "" || !r.ctx.IsAChannel(channel) {
		return errorResult("Mode changes need a channel")
	}

	var commands []string
	for i := 0; i < len(fields); i += 3 {
		batch := fields[i:min(i+3, len(fields))]
		modes := strings.Repeat(string(mode), len(batch))
		commands = append(commands, "MODE "+channel+" "+string(sign)+modes+" "+strings.Join(batch, " "))
	}
	return Result{ToServer: commands}
}

func (f *OutputFilter) commandOp(r request) Result {
	return f.changeMode(r, 'o', '+', "Usage: /OP <nick> [<nick>...]")
}

func (f *OutputFilter) commandDeop(r request) Result {
	return f.changeMode(r, 'o', '-', "Usage: /DEOP <nick> [<nick>...]")
}

func (f *OutputFilter) commandHop(r request) Result {
	return f.changeMode(r, 'h', '+', "Usage: /HOP <nick> [<nick>...]")
}

func (f *OutputFilter) commandDehop(r request) Result {
	return f.changeMode(r, 'h', '-', "Usage: /DEHOP <nick> [<nick>...]")
}

func (f *OutputFilter) commandVoice(r request) Result {
	return f.changeMode(r, 'v', '+', "Usage: /VOICE <nick> [<nick>...]")
}

func (f *OutputFilter) commandUnvoice(r request) Result {
	return f.changeMode(r, 'v', '-', "Usage: /UNVOICE <nick> [<nick>...]")
}

func (f *OutputFilter) commandKick(r request) Result {
	if r.dest == "" || !r.ctx.IsAChannel(r.dest) {
		return errorResult("/KICK works only from within a channel")
	}
	if r.parameter == "" {
		return usage("Usage: /KICK <nick> [reason]")
	}
	nick, reason, _ := strings.Cut(r.parameter, " ")
	if strings.TrimSpace(reason) == "" {
		reason = r.ctx.Identity().KickReason
	}
	return toServer("KICK " + r.dest + " " + nick + " :" + reason)
}

func (f *OutputFilter) commandKickban(r request) Result {
	if r.dest == "" || !r.ctx.IsAChannel(r.dest) {
		return errorResult("/KICKBAN works only from within a channel")
	}
	if r.parameter == "" {
		return usage("Usage: /KICKBAN <nick> [reason]")
	}
	nick, reason, _ := strings.Cut(r.parameter, " ")
	if strings.TrimSpace(reason) == "" {
		reason = r.ctx.Identity().KickReason
	}
	return toServer(
		"MODE "+r.dest+" +b "+completeMask(nick),
		"KICK "+r.dest+" "+nick+" :"+reason,
	)
}

func (f *OutputFilter) commandTopic(r request) Result {
	channel := r.dest
	text := r.parameter
	if r.parameter != "" {
		fields := strings.SplitN(r.parameter, " ", 2)
		if r.ctx.IsAChannel(fields[0]) {
			channel = fields[0]
			text = ""
			if len(fields) > 1 {
				text = fields[1]
			}
		}
	}
	if channel == "" || !r.ctx.IsAChannel(channel) {
		return errorResult("/TOPIC needs a channel")
	}
	if text == "" {
		return toServer("TOPIC " + channel)
	}
	return toServer("TOPIC " + channel + " :" + text)
}

func (f *OutputFilter) commandAway(r request) Result {
	return Result{Action: Action{AwayChanged: true, Away: true, AwayMessage: r.parameter}}
}

func (f *OutputFilter) commandBack(r request) Result {
	return Result{Action: Action{AwayChanged: true, Away: false}}
}

func (f *OutputFilter) commandInvite(r request) Result {
	fields := strings.Fields(r.parameter)
	if len(fields) == 0 {
		return usage("Usage: /INVITE <nick> [channel]")
	}
	channel := r.dest
	if len(fields) > 1 {
		channel = fields[1]
	}
	if channel == "" || !r.ctx.IsAChannel(channel) {
		return errorResult("/INVITE needs a channel")
	}
	return toServer("INVITE " + fields[0] + " " + channel)
}

func (f *OutputFilter) commandBan(r request) Result {
	if r.dest == "" || !r.ctx.IsAChannel(r.dest) {
		return errorResult("/BAN works only from within a channel")
	}
	if r.parameter == "" {
		return usage("Usage: /BAN <mask|nick>")
	}
	return toServer("MODE " + r.dest + " +b " + completeMask(strings.Fields(r.parameter)[0]))
}

func (f *OutputFilter) commandUnban(r request) Result {
	if r.dest == "" || !r.ctx.IsAChannel(r.dest) {
		return errorResult("/UNBAN works only from within a channel")
	}
	if r.parameter == "" {
		return usage("Usage: /UNBAN <mask|nick>")
	}
	return toServer("MODE " + r.dest + " -b " + completeMask(strings.Fields(r.parameter)[0]))
}

func (f *OutputFilter) commandIgnore(r request) Result {
	if r.parameter == "" {
		return usage("Usage: /IGNORE <nick|mask> [<nick|mask>...]")
	}
	var added []string
	for _, field := range strings.Fields(r.parameter) {
		pattern, _ := f.prefs.AddIgnore(field)
		added = append(added, pattern)
	}
	return Result{
		Output: "Added " + strings.Join(added, ", ") + " to your ignore list.",
		Type:   TypeProgram,
	}
}

func (f *OutputFilter) commandUnignore(r request) Result {
	if r.parameter == "" {
		return usage("Usage: /UNIGNORE <nick|mask> [<nick|mask>...]")
	}
	var removed, missing []string
	for _, field := range strings.Fields(r.parameter) {
		if f.prefs.RemoveIgnore(field) {
			removed = append(removed, completeMask(field))
		} else {
			missing = append(missing, field)
		}
	}
	if len(missing) > 0 {
		return errorResult("No ignore list entries matching " + strings.Join(missing, ", "))
	}
	return Result{
		Output: "Removed " + strings.Join(removed, ", ") + " from your ignore list.",
		Type:   TypeProgram,
	}
}

func (f *OutputFilter) commandNotify(r request) Result {
	groupID := r.ctx.ServerGroupID()
	if groupID < 0 {
		return errorResult("/NOTIFY needs a connection backed by a configured network")
	}

	check := false
	for _, nick := range strings.Fields(r.parameter) {
		if f.prefs.IsNotify(groupID, nick) {
			f.prefs.RemoveNotify(groupID, nick)
		} else if f.prefs.AddNotify(groupID, nick) {
			check = true
		}
	}

	watchList := f.prefs.NotifyListByGroup(groupID)
	output := "Current notify list is empty."
	if len(watchList) > 0 {
		output = "Current notify list: " + strings.Join(watchList, ", ")
	}
	return Result{
		Output: output,
		Type:   TypeProgram,
		Action: Action{NotifyCheck: check},
	}
}

func (f *OutputFilter) commandNames(r request) Result {
	channel := r.parameter
	if channel == "" {
		channel = r.dest
	}
	if channel == "" || !r.ctx.IsAChannel(channel) {
		return toServer("NAMES")
	}
	return toServer("NAMES " + channel)
}

func (f *OutputFilter) commandList(r request) Result {
	if r.parameter == "" {
		return toServer("LIST")
	}
	return toServer("LIST " + r.parameter)
}

func (f *OutputFilter) commandRaw(r request) Result {
	if r.parameter == "" {
		return usage("Usage: /RAW <protocol string>")
	}
	return toServer(r.parameter)
}

func (f *OutputFilter) commandCTCP(r request) Result {
	fields := strings.Fields(r.parameter)
	if len(fields) < 2 {
		return usage("Usage: /CTCP <target> <command> [arguments]")
	}
	target := fields[0]
	ctcpCommand := strings.ToUpper(fields[1])
	args := strings.Join(fields[2:], " ")

	payload := ctcpCommand
	if ctcpCommand == "PING" {
		payload += " " + strconv.FormatInt(time.Now().Unix(), 10)
	} else if args != "" {
		payload += " " + args
	}
	return Result{
		ToServer: []string{"PRIVMSG " + target + " :\x01" + payload + "\x01"},
		Output:   fmt.Sprintf("Sending CTCP-%s request to %s", ctcpCommand, target),
		Type:     TypeProgram,
	}
}

func (f *OutputFilter) commandPing(r request) Result {
	target := r.parameter
	if target == "" {
		target = r.dest
	}
	if target == "" {
		return usage("Usage: /PING <target>")
	}
	return f.commandCTCP(request{ctx: r.ctx, dest: r.dest, parameter: target + " ping"})
}

func (f *OutputFilter) commandDCC(r request) Result {
	return errorResult("DCC file transfer is not supported")
}

func (f *OutputFilter) commandServer(r request) Result {
	if r.parameter == "" {
		return usage("Usage: /SERVER <host[:port]|url|network> [password]")
	}
	return Result{Action: Action{ConnectTo: r.parameter}}
}

func (f *OutputFilter) commandReconnect(r request) Result {
	return Result{Action: Action{Reconnect: true, DisconnectReason: r.parameter}}
}

func (f *OutputFilter) commandDisconnect(r request) Result {
	reason := r.parameter
	if reason == "" {
		reason = r.ctx.Identity().QuitReason
	}
	return Result{Action: Action{Disconnect: true, DisconnectReason: reason}}
}

func (f *OutputFilter) commandNick(r request) Result {
	if r.parameter == "" {
		return usage("Usage: /NICK <new nickname>")
	}
	return toServer("NICK " + strings.Fields(r.parameter)[0])
}

func (f *OutputFilter) commandMode(r request) Result {
	if r.parameter == "" {
		return usage("Usage: /MODE <target> [modes]")
	}
	return toServer("MODE " + r.parameter)
}

func (f *OutputFilter) commandUmode(r request) Result {
	if r.parameter == "" {
		return usage("Usage: /UMODE <modes>")
	}
	return toServer("MODE " + r.ctx.Nickname() + " " + r.parameter)
}

func (f *OutputFilter) commandOper(r request) Result {
	fields := strings.Fields(r.parameter)
	switch len(fields) {
	case 1:
		return toServer("OPER " + r.ctx.Nickname() + " " + fields[0])
	case 2:
		return toServer("OPER " + fields[0] + " " + fields[1])
	}
	return usage("Usage: /OPER [login] <password>")
}

func (f *OutputFilter) commandOmsg(r request) Result {
	if r.dest == "" || !r.ctx.IsAChannel(r.dest) {
		return errorResult("/OMSG works only from within a channel")
	}
	if r.parameter == "" {
		return usage("Usage: /OMSG <message>")
	}
	return Result{
		ToServer: splitPayload(r.ctx, "PRIVMSG", "@"+r.dest, r.parameter),
		Output:   r.parameter,
		Type:     TypeMessage,
	}
}

func (f *OutputFilter) commandOnotice(r request) Result {
	if r.dest == "" || !r.ctx.IsAChannel(r.dest) {
		return errorResult("/ONOTICE works only from within a channel")
	}
	if r.parameter == "" {
		return usage("Usage: /ONOTICE <message>")
	}
	return Result{
		ToServer: splitPayload(r.ctx, "NOTICE", "@"+r.dest, r.parameter),
		Output:   fmt.Sprintf("Sending notice %q to channel operators", r.parameter),
		Type:     TypeProgram,
	}
}

func (f *OutputFilter) commandCycle(r request) Result {
	if r.dest == "" || !r.ctx.IsAChannel(r.dest) {
		return errorResult("/CYCLE works only from within a channel")
	}
	return toServer(
		"PART "+r.dest+" :"+r.ctx.Identity().PartReason,
		"JOIN "+r.dest,
	)
}

func (f *OutputFilter) commandSayversion(r request) Result {
	return f.messageResult(r.ctx, constants.EngineVersion, r.dest)
}

func (f *OutputFilter) commandAmsg(r request) Result {
	if r.parameter == "" {
		return usage("Usage: /AMSG <message>")
	}
	return Result{Action: Action{MultiServer: &MultiServerCommand{Command: "msg", Payload: r.parameter}}}
}

func (f *OutputFilter) commandAme(r request) Result {
	if r.parameter == "" {
		return usage("Usage: /AME <message>")
	}
	return Result{Action: Action{MultiServer: &MultiServerCommand{Command: "me", Payload: r.parameter}}}
}

func (f *OutputFilter) commandAaway(r request) Result {
	return Result{Action: Action{MultiServer: &MultiServerCommand{Command: "away", Payload: r.parameter}}}
}

func (f *OutputFilter) commandAback(r request) Result {
	return Result{Action: Action{MultiServer: &MultiServerCommand{Command: "back"}}}
}
