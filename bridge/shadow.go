package bridge

import (
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/ahti123/slack-irc/internal/nickpolicy"
)

// IRCConn is the subset of *ircconn.Conn (and, through it, go-ircevo's
// *irc.Connection) a Shadow needs. Declaring it here rather than taking a
// concrete *ircconn.Conn lets tests exercise ShadowRegistry against a
// fake, no-socket connection.
type IRCConn interface {
	Quit()
	Join(channel string)
	Part(channel string)
	Privmsg(target, message string)
	Action(target, message string)
	Notice(target, message string)
	Nick(newnick string)
}

// Shadow is one Chat user's real IRC client: its own nickname, its own
// connection, its own channel memberships. This is the architectural
// requirement spec.md §4.3 states plainly ("one real IRC nickname per
// Chat user") and the teacher's RELAYMSG-based puppeteer
// (irc_puppeteer.go) does not satisfy, since RELAYMSG decorates a single
// shared connection's messages rather than opening one connection per
// user. Grounded instead on other_examples' findoslice fork of the same
// upstream project, whose IRCManager keeps one *irc.Connection per
// Discord user in ircConnections.
type Shadow struct {
	UserID      string
	DisplayName string
	Nick        string
	Conn        IRCConn

	mu     sync.Mutex
	joined map[string]struct{}
	away   *time.Timer
}

// Joined reports whether the shadow has joined ircChannel.
func (s *Shadow) Joined(ircChannel string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.joined[ircChannel]
	return ok
}

// MarkJoined records that the shadow has joined ircChannel (called from
// the JOIN callback, once the server confirms it).
func (s *Shadow) MarkJoined(ircChannel string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.joined[ircChannel] = struct{}{}
}

// MarkParted records that the shadow has left ircChannel.
func (s *Shadow) MarkParted(ircChannel string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.joined, ircChannel)
}

// ConnFactory dials a fresh IRC connection for a shadow with the given
// nick, wiring whatever callbacks the caller needs before returning. It
// is injected so ShadowRegistry stays testable without real sockets.
type ConnFactory func(userID, nick string) (IRCConn, error)

// ShadowRegistry is the single owner of every shadow client, mutated
// only from the Bridge's event-router goroutine (spec.md §7).
type ShadowRegistry struct {
	mu        sync.Mutex
	byUser    map[string]*Shadow
	byNick    map[string]string // nick -> userID
	suffix    string
	graceTime time.Duration
	connect   ConnFactory
}

// NewShadowRegistry constructs an empty registry.
func NewShadowRegistry(suffix string, graceTime time.Duration, connect ConnFactory) *ShadowRegistry {
	return &ShadowRegistry{
		byUser:    make(map[string]*Shadow),
		byNick:    make(map[string]string),
		suffix:    suffix,
		graceTime: graceTime,
		connect:   connect,
	}
}

// Get returns the shadow for userID, if one currently exists.
func (r *ShadowRegistry) Get(userID string) (*Shadow, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.byUser[userID]
	return s, ok
}

// ByNick returns the shadow whose current IRC nick is nick.
func (r *ShadowRegistry) ByNick(nick string) (*Shadow, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	userID, ok := r.byNick[nick]
	if !ok {
		return nil, false
	}
	s := r.byUser[userID]
	return s, s != nil
}

// Ensure returns the existing shadow for userID or creates and connects
// a new one derived from displayName, cancelling any pending away-timer
// destruction.
func (r *ShadowRegistry) Ensure(userID, displayName string) (*Shadow, error) {
	r.mu.Lock()
	if s, ok := r.byUser[userID]; ok {
		r.mu.Unlock()
		r.CancelAway(userID)
		return s, nil
	}
	r.mu.Unlock()

	nick := nickpolicy.Derive(displayName, r.suffix)
	conn, err := r.connect(userID, nick)
	if err != nil {
		return nil, err
	}

	s := &Shadow{
		UserID:      userID,
		DisplayName: displayName,
		Nick:        nick,
		Conn:        conn,
		joined:      make(map[string]struct{}),
	}

	r.mu.Lock()
	r.byUser[userID] = s
	r.byNick[nick] = userID
	r.mu.Unlock()

	return s, nil
}

// Rename updates a shadow's tracked nick after a successful IRC NICK
// change (e.g. on collision, the bot appends a digit; spec.md §4.2).
func (r *ShadowRegistry) Rename(userID, newNick string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.byUser[userID]
	if !ok {
		return
	}
	delete(r.byNick, s.Nick)
	s.Nick = newNick
	r.byNick[newNick] = userID
}

// ScheduleAway starts the grace-period timer that destroys userID's
// shadow if it is not cancelled first, run when Chat reports the user
// has gone offline.
func (r *ShadowRegistry) ScheduleAway(userID string, onExpire func(userID string)) {
	r.mu.Lock()
	s, ok := r.byUser[userID]
	r.mu.Unlock()
	if !ok {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.away != nil {
		s.away.Stop()
	}
	s.away = time.AfterFunc(r.graceTime, func() {
		onExpire(userID)
	})
}

// CancelAway stops a pending away-timer, e.g. because the user came back
// online or sent another message before the grace period elapsed.
func (r *ShadowRegistry) CancelAway(userID string) {
	r.mu.Lock()
	s, ok := r.byUser[userID]
	r.mu.Unlock()
	if !ok {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.away != nil {
		s.away.Stop()
		s.away = nil
	}
}

// Destroy disconnects and removes userID's shadow. Safe to call when no
// shadow exists.
func (r *ShadowRegistry) Destroy(userID string) {
	r.mu.Lock()
	s, ok := r.byUser[userID]
	if ok {
		delete(r.byUser, userID)
		delete(r.byNick, s.Nick)
	}
	r.mu.Unlock()

	if !ok {
		return
	}

	s.mu.Lock()
	if s.away != nil {
		s.away.Stop()
	}
	s.mu.Unlock()

	if s.Conn != nil {
		s.Conn.Quit()
	}

	log.WithFields(log.Fields{"user": userID, "nick": s.Nick}).Info("shadow: destroyed")
}

// Len reports the number of live shadows, used by tests.
func (r *ShadowRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.byUser)
}

// snapshot returns every currently live shadow. Used by command handlers
// that need to scan all shadows (e.g. /online), which are rare enough
// not to warrant a dedicated index.
func (r *ShadowRegistry) snapshot() []*Shadow {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*Shadow, 0, len(r.byUser))
	for _, s := range r.byUser {
		out = append(out, s)
	}
	return out
}
