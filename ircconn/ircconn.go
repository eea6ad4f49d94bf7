// Package ircconn wraps a github.com/kofany/go-ircevo connection with the
// ReconnectPolicy and flood-pacing behavior spec.md §4.8 requires of
// every IRC connection the bridge owns, whether it is the single
// BridgeBot connection or one of many per-user shadow connections.
//
// Grounded on rtk0c-go-discord-irc's SetupIRCConnection (TLS/SASL/
// password wiring, KICK-rejoin callback) and directly on
// _examples/kofany-go-ircevo's Connection API for the fields and methods
// being configured.
package ircconn

import (
	"crypto/tls"
	"strings"
	"sync"
	"time"

	irc "github.com/kofany/go-ircevo"
	"github.com/muesli/reflow/wordwrap"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// ReconnectPolicy bounds how a Conn responds to a lost connection and how
// fast it is willing to send, so a single misbehaving shadow client can't
// flood the IRC network or hammer it with reconnect attempts.
type ReconnectPolicy struct {
	// InitialDelay and MaxDelay are carried on the policy but not applied
	// by Conn: the wait between reconnect attempts is whatever go-ircevo's
	// own Loop uses.
	InitialDelay time.Duration
	MaxDelay     time.Duration
	// MaxRetries is the number of reconnect attempts tolerated before
	// giving up entirely (0 leaves go-ircevo's own limit in place).
	MaxRetries int
	// FloodDelay is the minimum spacing enforced between outgoing lines.
	FloodDelay time.Duration
}

// DefaultReconnectPolicy matches spec.md §4.8: 500ms flood pacing, up to
// 10 reconnect attempts.
func DefaultReconnectPolicy() ReconnectPolicy {
	return ReconnectPolicy{
		InitialDelay: 500 * time.Millisecond,
		MaxDelay:     60 * time.Second,
		MaxRetries:   10,
		FloodDelay:   500 * time.Millisecond,
	}
}

// Options configures a new Conn.
type Options struct {
	Nick         string
	User         string
	RealName     string
	Server       string
	Password     string
	UseTLS       bool
	TLSConfig    *tls.Config
	UseSASL      bool
	SASLLogin    string
	SASLPassword string
	RequestCaps  []string
	Debug        bool
	Reconnect    ReconnectPolicy
}

// Conn is a single IRC connection carrying spec.md's ReconnectPolicy.
type Conn struct {
	*irc.Connection

	opts ReconnectPolicy
	mu   sync.Mutex
	last time.Time
}

// New constructs a Conn from opts, applying TLS/SASL/capability settings
// to the underlying go-ircevo connection but not yet dialing.
func New(opts Options) *Conn {
	inner := irc.IRC(opts.Nick, opts.User)
	inner.RealName = opts.RealName
	inner.Password = opts.Password
	inner.UseTLS = opts.UseTLS
	inner.TLSConfig = opts.TLSConfig
	inner.UseSASL = opts.UseSASL
	inner.SASLLogin = opts.SASLLogin
	inner.SASLPassword = opts.SASLPassword
	inner.Debug = opts.Debug
	if len(opts.RequestCaps) > 0 {
		inner.RequestCaps = opts.RequestCaps
	}
	if opts.Reconnect.MaxRetries > 0 {
		inner.MaxRecoverableReconnects = opts.Reconnect.MaxRetries
	}

	return &Conn{Connection: inner, opts: opts.Reconnect}
}

// Connect dials the configured server.
func (c *Conn) Connect(server string) error {
	if err := c.Connection.Connect(server); err != nil {
		return errors.Wrap(err, "ircconn: connect")
	}
	return nil
}

// pace blocks until FloodDelay has elapsed since the last paced send.
func (c *Conn) pace() {
	if c.opts.FloodDelay <= 0 {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if wait := c.opts.FloodDelay - time.Since(c.last); wait > 0 {
		time.Sleep(wait)
	}
	c.last = time.Now()
}

// maxLineLen is the wrap width applied before a line is sent to IRC,
// matching vmiklos-matterircd's MsgSpoofUser use of
// muesli/reflow/wordwrap to keep relayed lines under typical IRC
// line-length limits.
const maxLineLen = 400

// Privmsg sends message to target, word-wrapping long lines and pacing
// each resulting line to respect the flood policy.
func (c *Conn) Privmsg(target, message string) {
	for _, line := range wrapLines(message) {
		c.pace()
		c.Connection.Privmsg(target, line)
	}
}

// Action sends a CTCP ACTION to target, word-wrapping long lines and
// pacing each resulting line to respect the flood policy.
func (c *Conn) Action(target, message string) {
	for _, line := range wrapLines(message) {
		c.pace()
		c.Connection.Action(target, line)
	}
}

// Notice sends a NOTICE to target, pacing to respect the flood policy.
func (c *Conn) Notice(target, message string) {
	c.pace()
	c.Connection.Notice(target, message)
}

// wrapLines splits message on existing newlines, then word-wraps each
// resulting line to maxLineLen, so a single Chat message never produces
// an IRC line the server or client would truncate.
func wrapLines(message string) []string {
	var out []string
	for _, raw := range strings.Split(message, "\n") {
		if raw == "" {
			continue
		}
		wrapped := wordwrap.String(raw, maxLineLen)
		out = append(out, strings.Split(wrapped, "\n")...)
	}
	if len(out) == 0 {
		out = append(out, message)
	}
	return out
}

// RunWithReconnect drives the connection's own event loop (which already
// retries recoverable errors internally, per go-ircevo's Loop) and, if
// the loop exits without the connection ending up reconnected, invokes
// onAbort so the caller can react: the bot connection terminates the
// process (spec.md §4.6), a shadow connection is silently removed from
// the registry (spec.md §4.3), both per the abort semantics spec.md
// §4.8 requires of every ReconnectPolicy-bound connection.
func (c *Conn) RunWithReconnect(label string, onAbort func()) {
	c.Connection.Loop()

	if !c.Connection.Connected() {
		log.WithField("conn", label).Warn("ircconn: connection loop exited without reconnecting")
		if onAbort != nil {
			onAbort()
		}
	}
}
