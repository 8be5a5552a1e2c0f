package main

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/matt0x6f/irc-engine/internal/away"
	"github.com/matt0x6f/irc-engine/internal/config"
	"github.com/matt0x6f/irc-engine/internal/connection"
	"github.com/matt0x6f/irc-engine/internal/events"
	"github.com/matt0x6f/irc-engine/internal/irc"
	"github.com/matt0x6f/irc-engine/internal/logger"
	"github.com/matt0x6f/irc-engine/internal/notification"
	"github.com/matt0x6f/irc-engine/internal/outputfilter"
	"github.com/matt0x6f/irc-engine/internal/security"
	"github.com/matt0x6f/irc-engine/internal/storage"
)

// App wires the engine together and drives it from a console loop. It is
// the stand-in presentation layer: input lines go through the output
// filter into the focused session, bus events come back out as text.
type App struct {
	prefs    *config.Preferences
	storage  *storage.Storage
	eventBus *events.EventBus
	keychain *security.Keychain
	manager  *connection.Manager
	awayMgr  *away.Manager
	notifier *notification.Notifier
	filter   *outputfilter.OutputFilter

	mu          sync.RWMutex
	focusedID   int
	destination string

	shutdownOnce sync.Once
}

// AppOptions selects the configuration sources for NewApp.
type AppOptions struct {
	// ConfigPath is an optional YAML preferences file. When set it takes
	// precedence over the database-stored preferences.
	ConfigPath string

	// DataDir holds the preferences database. Defaults to ~/.irc-engine.
	DataDir string
}

// NewApp builds the engine: storage, preferences, event bus, keychain,
// connection manager, away automation and desktop notifications.
func NewApp(opts AppOptions) (*App, error) {
	dataDir := opts.DataDir
	if dataDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get home directory: %w", err)
		}
		dataDir = filepath.Join(homeDir, ".irc-engine")
	}
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	stor, err := storage.NewStorage(filepath.Join(dataDir, "irc-engine.db"))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	var prefs *config.Preferences
	if opts.ConfigPath != "" {
		prefs, err = config.Load(opts.ConfigPath)
		if err != nil {
			stor.Close()
			return nil, err
		}
	} else {
		prefs, err = stor.LoadPreferences()
		if err != nil {
			stor.Close()
			return nil, err
		}
	}

	eventBus := events.NewEventBus()
	keychain := security.NewKeychain()
	manager := connection.NewManager(prefs, eventBus, keychain)
	notifier := notification.NewNotifier(eventBus)

	app := &App{
		prefs:    prefs,
		storage:  stor,
		eventBus: eventBus,
		keychain: keychain,
		manager:  manager,
		awayMgr:  away.NewManager(prefs, manager),
		notifier: notifier,
		filter:   outputfilter.NewOutputFilter(prefs),
	}

	manager.SetCommandParser(func(server *irc.Server, line string) []string {
		return app.filter.Parse(server, line, "").ToServer
	})
	notifier.Start()
	app.subscribeDisplay()

	return app, nil
}

// Run starts auto-connect and blocks on the console input loop until
// stdin closes.
func (a *App) Run() error {
	logger.Log.Info().Msg("Engine starting")
	a.manager.AutoConnect()

	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 0, 4096), 64*1024)
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r\n")
		if line == "" {
			continue
		}
		a.processLine(line)
	}
	return scanner.Err()
}

// processLine runs one console line through the engine. App-level control
// commands are handled here; everything else goes through the output
// filter against the focused session.
func (a *App) processLine(line string) {
	a.awayMgr.RecordActivity()

	if a.handleControl(line) {
		return
	}

	server := a.focusedServer()
	if server == nil {
		a.display("program", "Not connected. Use "+a.prefs.CommandChar+"server <host[:port]|group> first.")
		return
	}

	result := a.filter.Parse(server, line, a.currentDestination())
	a.applyResult(server, result)
}

// handleControl intercepts the console-only session switching commands
// before IRC command parsing. Returns true when the line was consumed.
func (a *App) handleControl(line string) bool {
	if !strings.HasPrefix(line, a.prefs.CommandChar) {
		return false
	}
	fields := strings.Fields(line[len(a.prefs.CommandChar):])
	if len(fields) == 0 {
		return false
	}

	switch strings.ToLower(fields[0]) {
	case "sessions":
		servers := a.manager.Connections()
		if len(servers) == 0 {
			a.display("program", "No sessions.")
			return true
		}
		for _, server := range servers {
			marker := " "
			if server.ID() == a.focusedSessionID() {
				marker = "*"
			}
			a.display("program", fmt.Sprintf("%s [%d] %s (%s) as %s",
				marker, server.ID(), server.Settings().Name(),
				server.State(), server.Nickname()))
		}
		return true
	case "focus":
		if len(fields) < 2 {
			a.display("program", "Usage: "+a.prefs.CommandChar+"focus <session id> [destination]")
			return true
		}
		id, err := strconv.Atoi(fields[1])
		if err != nil || a.manager.ServerByID(id) == nil {
			a.display("program", "No such session: "+fields[1])
			return true
		}
		a.mu.Lock()
		a.focusedID = id
		if len(fields) > 2 {
			a.destination = fields[2]
		}
		a.mu.Unlock()
		return true
	case "dest":
		if len(fields) < 2 {
			a.display("program", "Usage: "+a.prefs.CommandChar+"dest <channel|nick>")
			return true
		}
		a.mu.Lock()
		a.destination = fields[1]
		a.mu.Unlock()
		return true
	}
	return false
}

// applyResult executes a parse result against a session: wire commands go
// to the queue, side effects to the connection manager, local text to the
// console.
func (a *App) applyResult(server *irc.Server, result outputfilter.Result) {
	if result.IsEmpty() {
		return
	}
	if result.Usage != "" {
		a.display("program", result.Usage)
		return
	}
	if result.Error != "" {
		a.display("program", result.Error)
		return
	}

	if len(result.ToServer) > 0 {
		server.QueueList(result.ToServer)
	}
	if result.Output != "" {
		a.display(result.Type, result.Output)
	}
	if result.Action != (outputfilter.Action{}) {
		if err := a.manager.ExecuteAction(server, result.Action); err != nil {
			a.display("program", err.Error())
		}
		if result.Action.OpenQuery != "" {
			a.mu.Lock()
			a.destination = result.Action.OpenQuery
			a.mu.Unlock()
		}
	}
}

func (a *App) focusedSessionID() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.focusedID
}

func (a *App) currentDestination() string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.destination
}

// focusedServer returns the focused session, falling back to the first
// live one when the focus is stale or unset.
func (a *App) focusedServer() *irc.Server {
	if server := a.manager.ServerByID(a.focusedSessionID()); server != nil {
		return server
	}
	servers := a.manager.Connections()
	if len(servers) == 0 {
		return nil
	}
	a.mu.Lock()
	a.focusedID = servers[0].ID()
	a.mu.Unlock()
	return servers[0]
}

// subscribeDisplay renders engine events as console lines.
func (a *App) subscribeDisplay() {
	a.eventBus.SubscribeFunc(irc.EventMessage, func(e events.Event) {
		a.display("message", fmt.Sprintf("[%v] <%v> %v", e.Data["target"], e.Data["nick"], e.Data["message"]))
	})
	a.eventBus.SubscribeFunc(irc.EventNotice, func(e events.Event) {
		a.display("message", fmt.Sprintf("-%v- %v", e.Data["nick"], e.Data["message"]))
	})
	a.eventBus.SubscribeFunc(irc.EventServerText, func(e events.Event) {
		a.display("message", fmt.Sprintf("%v", e.Data["text"]))
	})
	a.eventBus.SubscribeFunc(irc.EventStateChanged, func(e events.Event) {
		a.display("program", fmt.Sprintf("%v: %v", e.Data["name"], e.Data["state"]))
	})
	a.eventBus.SubscribeFunc(irc.EventConnected, func(e events.Event) {
		a.awayMgr.IdentitiesChanged()
	})
	a.eventBus.SubscribeFunc(irc.EventDisconnected, func(e events.Event) {
		a.awayMgr.IdentitiesChanged()
	})
	a.eventBus.SubscribeFunc(irc.EventJoined, func(e events.Event) {
		a.display("program", fmt.Sprintf("%v joined %v", e.Data["nick"], e.Data["channel"]))
	})
	a.eventBus.SubscribeFunc(irc.EventParted, func(e events.Event) {
		a.display("program", fmt.Sprintf("%v left %v", e.Data["nick"], e.Data["channel"]))
	})
	a.eventBus.SubscribeFunc(irc.EventKicked, func(e events.Event) {
		a.display("program", fmt.Sprintf("%v was kicked from %v by %v (%v)",
			e.Data["nick"], e.Data["channel"], e.Data["by"], e.Data["reason"]))
	})
	a.eventBus.SubscribeFunc(irc.EventQuit, func(e events.Event) {
		a.display("program", fmt.Sprintf("%v quit (%v)", e.Data["nick"], e.Data["reason"]))
	})
	a.eventBus.SubscribeFunc(irc.EventNickChanged, func(e events.Event) {
		a.display("program", fmt.Sprintf("%v is now known as %v", e.Data["old_nick"], e.Data["new_nick"]))
	})
	a.eventBus.SubscribeFunc(irc.EventTopic, func(e events.Event) {
		a.display("program", fmt.Sprintf("Topic for %v: %v", e.Data["channel"], e.Data["topic"]))
	})
	a.eventBus.SubscribeFunc(irc.EventWatchedNickOnline, func(e events.Event) {
		a.display("program", fmt.Sprintf("%v is online", e.Data["nick"]))
	})
	a.eventBus.SubscribeFunc(irc.EventWatchedNickOffline, func(e events.Event) {
		a.display("program", fmt.Sprintf("%v went offline", e.Data["nick"]))
	})
}

func (a *App) display(kind, text string) {
	if kind == "program" {
		fmt.Println("*** " + text)
		return
	}
	fmt.Println(text)
}

// Shutdown disconnects everything, persists preferences and releases
// resources. Safe to call more than once.
func (a *App) Shutdown() {
	a.shutdownOnce.Do(func() {
		logger.Log.Info().Msg("Engine shutting down")

		a.awayMgr.Stop()
		a.notifier.Stop()
		a.manager.DisconnectAll("")

		if a.storage != nil {
			if err := a.storage.SavePreferences(a.prefs); err != nil {
				logger.Log.Error().Err(err).Msg("Failed to save preferences")
			}
			if err := a.storage.Close(); err != nil {
				logger.Log.Error().Err(err).Msg("Failed to close storage")
			}
		}
	})
}
