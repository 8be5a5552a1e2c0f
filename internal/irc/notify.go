package irc

import (
	"strings"
	"time"

	"github.com/matt0x6f/irc-engine/internal/constants"
	"github.com/matt0x6f/irc-engine/internal/events"
)

// Notify polling: the watch list is checked with a batched ISON on a
// timer. The reply is diffed against the previous online set to produce
// watched-nick online/offline transitions. While a reply is outstanding a
// periodic informational "taking too long" report fires; it never aborts
// the wait.

func (s *Server) startNotifyTimer() {
	if !s.prefs.UseNotify {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.notifyTimer != nil {
		s.notifyTimer.Stop()
	}
	s.notifyTimer = time.AfterFunc(s.prefs.NotifyDelay, s.notifyCheck)
}

func (s *Server) stopNotifyTimer() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.notifyTimer != nil {
		s.notifyTimer.Stop()
		s.notifyTimer = nil
	}
	if s.notifySlowTimer != nil {
		s.notifySlowTimer.Stop()
		s.notifySlowTimer = nil
	}
	s.notifyInProgress = false
}

// notifyCheck issues one batched ISON for the watch list. Nicks already
// visible in a joined channel are known online and excluded from the
// query; their transitions are reported directly.
func (s *Server) notifyCheck() {
	defer s.startNotifyTimer()
	if !s.IsConnected() {
		return
	}

	watchList := s.prefs.NotifyListByGroup(s.ServerGroupID())
	if len(watchList) == 0 {
		return
	}

	var query []string
	for _, nick := range watchList {
		if s.nickVisibleInJoinedChannel(nick) {
			s.markWatchedOnline(nick)
			continue
		}
		query = append(query, nick)
	}
	if len(query) == 0 {
		return
	}

	s.mu.Lock()
	if s.notifyInProgress {
		s.mu.Unlock()
		return
	}
	s.notifyInProgress = true
	s.notifySentAt = time.Now()
	if s.notifySlowTimer != nil {
		s.notifySlowTimer.Stop()
	}
	s.notifySlowTimer = time.AfterFunc(constants.NotifySlowReportInterval, s.notifySlowReport)
	s.mu.Unlock()

	s.Queue("ISON " + strings.Join(query, " "))
}

func (s *Server) nickVisibleInJoinedChannel(nick string) bool {
	lcNick := strings.ToLower(nick)
	for _, channel := range s.Membership.JoinedChannels() {
		if s.Membership.GetChannelNick(channel, lcNick) != nil {
			return true
		}
	}
	return false
}

// notifySlowReport surfaces a still-waiting report every interval until
// the ISON reply lands. Informational only.
func (s *Server) notifySlowReport() {
	s.mu.Lock()
	if !s.notifyInProgress {
		s.mu.Unlock()
		return
	}
	elapsed := time.Since(s.notifySentAt)
	s.notifySlowTimer = time.AfterFunc(constants.NotifySlowReportInterval, s.notifySlowReport)
	s.mu.Unlock()

	s.log.Warn().Dur("elapsed", elapsed).Msg("Notify check is taking unusually long")
	s.bus.Emit(events.Event{
		Type:   EventNotifyResponseSlow,
		Source: events.SourceSession,
		Data: map[string]interface{}{
			"connection_id": s.id,
			"elapsed":       elapsed.String(),
		},
	})
}

// HandleISONReply diffs the server's online list against the previous
// poll, reporting transitions both ways. Watched nicks absent from the
// reply that we believed online go offline.
func (s *Server) HandleISONReply(onlineNicks []string) {
	s.mu.Lock()
	s.notifyInProgress = false
	if s.notifySlowTimer != nil {
		s.notifySlowTimer.Stop()
		s.notifySlowTimer = nil
	}
	s.mu.Unlock()

	online := make(map[string]bool, len(onlineNicks))
	for _, nick := range onlineNicks {
		online[strings.ToLower(nick)] = true
	}

	for _, nick := range s.prefs.NotifyListByGroup(s.ServerGroupID()) {
		if online[strings.ToLower(nick)] {
			s.markWatchedOnline(nick)
		} else if !s.nickVisibleInJoinedChannel(nick) {
			s.markWatchedOffline(nick)
		}
	}
}

// markWatchedOnline flips a watched nick to online, once per transition.
func (s *Server) markWatchedOnline(nick string) {
	info := s.Membership.ObtainNickInfo(nick)
	if info.PrintedOnline() {
		return
	}
	info.SetPrintedOnline(true)
	info.SetOnlineSince(time.Now())

	s.log.Debug().Str("nick", nick).Msg("Watched nick came online")
	s.bus.Emit(events.Event{
		Type:   EventWatchedNickOnline,
		Source: events.SourceSession,
		Data: map[string]interface{}{
			"connection_id": s.id,
			"nick":          nick,
		},
	})
}

// markWatchedOffline flips a watched nick to offline if it was reported
// online, removing every trace of it from the membership model.
func (s *Server) markWatchedOffline(nick string) {
	info := s.Membership.GetNickInfo(nick)
	if info == nil || !info.PrintedOnline() {
		return
	}
	s.Membership.SetNickOffline(nick)
	s.emitWatchedOffline(nick)
}

func (s *Server) emitWatchedOffline(nick string) {
	s.log.Debug().Str("nick", nick).Msg("Watched nick went offline")
	s.bus.Emit(events.Event{
		Type:   EventWatchedNickOffline,
		Source: events.SourceSession,
		Data: map[string]interface{}{
			"connection_id": s.id,
			"nick":          nick,
		},
	})
}

// NotifyCheckNow forces an immediate watch-list poll, used by /notify.
func (s *Server) NotifyCheckNow() {
	go s.notifyCheck()
}
