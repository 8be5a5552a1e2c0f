package outputfilter

// Display categories for Result.Output.
const (
	TypeMessage = "message"
	TypeAction  = "action"
	TypeCommand = "command"
	TypeProgram = "program"
)

// MultiServerCommand asks the caller to replay a command on every
// connected session.
type MultiServerCommand struct {
	Command string // "msg", "me", "away" or "back"
	Payload string
}

// Action carries the side effects a command requests. OutputFilter itself
// never touches the network or the session list; the caller executes
// these.
type Action struct {
	// Reconnect tears down and redials the current session.
	Reconnect bool
	// Disconnect quits the current session deliberately.
	Disconnect       bool
	DisconnectReason string

	// ConnectTo is a /server target (host[:port], URL or group name) for
	// the connection manager to resolve.
	ConnectTo string

	// OpenQuery names a nick to open a query window with.
	OpenQuery string

	// Away requests an away-state change on the current session.
	Away        bool
	AwayChanged bool
	AwayMessage string

	// NotifyCheck forces an immediate watch-list poll.
	NotifyCheck bool

	// MultiServer broadcasts across all connected sessions.
	MultiServer *MultiServerCommand
}

// Result is what every parse produces. It is always returned by value and
// never accompanied by an error return: usage and semantic problems ride
// in the Usage and Error fields.
type Result struct {
	// ToServer holds zero or more raw wire commands, in send order.
	ToServer []string

	// Output is local display text with its category.
	Output string
	Type   string

	// Usage is a malformed-arguments hint; Error a semantic failure.
	// Either being set means nothing was produced for the wire.
	Usage string
	Error string

	Action Action
}

// IsEmpty reports whether the result carries nothing at all.
func (r Result) IsEmpty() bool {
	return len(r.ToServer) == 0 && r.Output == "" && r.Usage == "" && r.Error == "" && r.Action == (Action{})
}

func usage(text string) Result {
	return Result{Usage: text}
}

func errorResult(text string) Result {
	return Result{Error: text}
}

func toServer(commands ...string) Result {
	return Result{ToServer: commands}
}
