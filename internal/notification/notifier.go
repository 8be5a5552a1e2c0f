package notification

import (
	"fmt"

	"github.com/gen2brain/beeep"
	"github.com/matt0x6f/irc-engine/internal/events"
	"github.com/matt0x6f/irc-engine/internal/irc"
	"github.com/matt0x6f/irc-engine/internal/logger"
)

// Notifier surfaces watched-nick transitions as desktop notifications. It
// subscribes to the engine bus and is otherwise passive.
type Notifier struct {
	bus     *events.EventBus
	online  *watchSubscriber
	offline *watchSubscriber
}

type watchSubscriber struct {
	notifier *Notifier
	online   bool
}

func (w *watchSubscriber) OnEvent(event events.Event) {
	nick := fmt.Sprintf("%v", event.Data["nick"])
	if w.online {
		w.notifier.notify("Nick online", nick+" is online")
	} else {
		w.notifier.notify("Nick offline", nick+" went offline")
	}
}

// NewNotifier creates a notifier attached to the bus. Call Start to begin
// listening.
func NewNotifier(bus *events.EventBus) *Notifier {
	n := &Notifier{bus: bus}
	n.online = &watchSubscriber{notifier: n, online: true}
	n.offline = &watchSubscriber{notifier: n}
	return n
}

// Start subscribes to the watched-nick events.
func (n *Notifier) Start() {
	n.bus.Subscribe(irc.EventWatchedNickOnline, n.online)
	n.bus.Subscribe(irc.EventWatchedNickOffline, n.offline)
}

// Stop unsubscribes from the bus.
func (n *Notifier) Stop() {
	n.bus.Unsubscribe(irc.EventWatchedNickOnline, n.online)
	n.bus.Unsubscribe(irc.EventWatchedNickOffline, n.offline)
}

// notify sends one desktop notification, best-effort.
func (n *Notifier) notify(title, body string) {
	if err := beeep.Notify(title, body, ""); err != nil {
		logger.Log.Debug().Err(err).Msg("Failed to send desktop notification")
	}
}
