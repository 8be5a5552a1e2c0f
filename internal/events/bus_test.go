package events_test

import (
	"testing"

	"github.com/matt0x6f/irc-engine/internal/events"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingSubscriber struct {
	seen []events.Event
}

func (r *recordingSubscriber) OnEvent(event events.Event) {
	r.seen = append(r.seen, event)
}

func TestEmitSyncRoutesByType(t *testing.T) {
	bus := events.NewEventBus()
	matched := &recordingSubscriber{}
	other := &recordingSubscriber{}

	bus.Subscribe("session.message", matched)
	bus.Subscribe("session.notice", other)

	bus.EmitSync(events.Event{Type: "session.message", Source: events.SourceSession})

	require.Len(t, matched.seen, 1)
	assert.Empty(t, other.seen)
	assert.False(t, matched.seen[0].Timestamp.IsZero(), "timestamp is filled in")
}

func TestWildcardSubscriberSeesEverything(t *testing.T) {
	bus := events.NewEventBus()
	all := &recordingSubscriber{}
	bus.Subscribe("*", all)

	bus.EmitSync(events.Event{Type: "a"})
	bus.EmitSync(events.Event{Type: "b"})

	assert.Len(t, all.seen, 2)
}

func TestUnsubscribe(t *testing.T) {
	bus := events.NewEventBus()
	sub := &recordingSubscriber{}

	bus.Subscribe("x", sub)
	bus.EmitSync(events.Event{Type: "x"})
	bus.Unsubscribe("x", sub)
	bus.EmitSync(events.Event{Type: "x"})

	assert.Len(t, sub.seen, 1)
}

func TestSubscribeFunc(t *testing.T) {
	bus := events.NewEventBus()
	var got []string
	bus.SubscribeFunc("x", func(event events.Event) {
		got = append(got, event.Type)
	})

	bus.EmitSync(events.Event{Type: "x"})
	assert.Equal(t, []string{"x"}, got)
}
