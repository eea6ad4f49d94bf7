// Package bridge implements the Chat<->IRC relay: one real IRC shadow
// client per active Chat user, a single always-on bot connection for
// channel-wide bookkeeping, and a single event-router goroutine that owns
// all shared state. Adapted from rtk0c-go-discord-irc's bridge package,
// generalized from a one-guild Discord relay to the Chat/IRC shape of
// this spec.
package bridge

import (
	"sync"

	"github.com/hashicorp/go-multierror"
	irc "github.com/kofany/go-ircevo"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/ahti123/slack-irc/internal/queue"
	"github.com/ahti123/slack-irc/ircconn"
)

// Bridge owns the Chat client, the bot IRC connection, the shadow
// registry, the channel map, and the outbound message queues, and is
// the sole object the event router mutates.
type Bridge struct {
	Config *Config

	Chat     ChatClient
	Bot      *BridgeBot
	Channels *ChannelMap
	Shadows  *ShadowRegistry

	queues     *queue.MessageQueues
	dispatcher *queue.Dispatcher

	topicsMu sync.Mutex
	topics   map[string]string // ircChannel -> last observed topic

	done      chan struct{}
	closeOnce sync.Once
}

// New validates cfg and wires together a Bridge, but does not connect to
// either service; call Open for that.
func New(cfg *Config) (*Bridge, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	channels, err := NewChannelMap(cfg.ChannelMappings)
	if err != nil {
		return nil, errors.Wrap(err, "bridge: channel mappings")
	}

	b := &Bridge{
		Config:   cfg,
		Chat:     NewSlackChatClient(cfg.ChatToken),
		Channels: channels,
		queues:   queue.New(),
		topics:   make(map[string]string),
		done:     make(chan struct{}),
	}

	b.Shadows = NewShadowRegistry(cfg.NickSuffix, cfg.AwayGracePeriod, b.connectShadow)
	b.Bot = NewBridgeBot(cfg, channels, b.isShadowNick)
	b.dispatcher = queue.NewDispatcher(b.queues, b.isJoined, b.sendToIRC)

	return b, nil
}

// Open connects both services and starts the event router.
func (b *Bridge) Open() error {
	if err := b.Chat.Connect(); err != nil {
		return errors.Wrap(err, "bridge: connect chat")
	}
	if err := b.Bot.Connect(); err != nil {
		return errors.Wrap(err, "bridge: connect irc bot")
	}

	go b.loop()
	return nil
}

// Close tears down the bridge: every shadow is disconnected, the bot
// connection is closed, and the chat client is disconnected. Errors from
// each step are aggregated rather than short-circuited, the way
// ocf-discordbridge's discord.Close does with hashicorp/go-multierror.
func (b *Bridge) Close() error {
	var result *multierror.Error

	b.closeOnce.Do(func() {
		close(b.done)
	})

	for _, s := range b.Shadows.snapshot() {
		b.Shadows.Destroy(s.UserID)
	}
	if err := b.Bot.Close(); err != nil {
		result = multierror.Append(result, err)
	}
	if err := b.Chat.Close(); err != nil {
		result = multierror.Append(result, err)
	}

	return result.ErrorOrNil()
}

func (b *Bridge) isShadowNick(nick string) bool {
	_, ok := b.Shadows.ByNick(nick)
	return ok
}

func (b *Bridge) isJoined(userID, ircChannel string) bool {
	s, ok := b.Shadows.Get(userID)
	if !ok {
		return false
	}
	return s.Joined(ircChannel)
}

func (b *Bridge) sendToIRC(userID string, msg queue.Message) error {
	s, ok := b.Shadows.Get(userID)
	if !ok {
		return errors.Errorf("bridge: no shadow for user %s", userID)
	}
	if msg.Action {
		s.Conn.Action(msg.Channel, msg.Text)
	} else {
		s.Conn.Privmsg(msg.Channel, msg.Text)
	}
	return nil
}

// connectShadow is the ShadowRegistry's ConnFactory: it dials a fresh IRC
// connection for one Chat user and wires the callbacks that feed nick
// collisions and join confirmations back into the registry. Grounded on
// rtk0c-go-discord-irc's SetupIRCConnection, generalized from a single
// bot connection to one instantiated per shadow.
func (b *Bridge) connectShadow(userID, nick string) (IRCConn, error) {
	cfg := b.Config
	conn := ircconn.New(ircconn.Options{
		Nick:      nick,
		User:      nick,
		RealName:  nick,
		UseTLS:    cfg.IRCUseTLS,
		TLSConfig: cfg.IRCTLSConfig,
		Reconnect: cfg.Reconnect,
	})

	conn.AddCallback("JOIN", func(e *irc.Event) {
		if e.Nick != conn.GetNick() || len(e.Arguments) == 0 {
			return
		}
		if s, ok := b.Shadows.Get(userID); ok {
			s.MarkJoined(e.Arguments[0])
		}
		b.drainShadow(userID)
	})

	// 366 (RPL_ENDOFNAMES) is the more spec-faithful join-confirmation
	// point: it's the server's signal that the NAMES exchange for this
	// channel is complete, so drain again here in case a message was
	// queued between the JOIN callback and the names reply.
	conn.AddCallback("366", func(e *irc.Event) {
		b.drainShadow(userID)
	})

	conn.AddCallback("433", func(e *irc.Event) {
		retried := conn.GetNick() + "1"
		conn.Nick(retried)
		b.Shadows.Rename(userID, retried)
		log.WithFields(log.Fields{"user": userID, "nick": retried}).Warn("shadow: nick in use, retrying")
	})

	// 432 (ERR_ERRONEUSNICKNAME) means the server will never accept this
	// nick; unlike 433 there is nothing to retry, so the shadow is torn
	// down and the user is told via DM that relaying stopped.
	conn.AddCallback("432", func(e *irc.Event) {
		log.WithField("user", userID).Warn("shadow: erroneous nickname, destroying shadow")
		b.Shadows.Destroy(userID)
		b.queues.Drop(userID)

		dm, err := b.Chat.OpenDirectMessage(userID)
		if err != nil {
			log.WithError(err).Warn("bridge: failed to open dm for erroneous nickname notice")
			return
		}
		msg := "your IRC nickname was rejected by the server, so your messages will not be relayed"
		if err := b.Chat.PostMessage(dm, msg); err != nil {
			log.WithError(err).Warn("bridge: failed to post erroneous nickname notice")
		}
	})

	conn.AddCallback("KICK", func(e *irc.Event) {
		if len(e.Arguments) < 2 || e.Arguments[1] != conn.GetNick() {
			return
		}
		if s, ok := b.Shadows.Get(userID); ok {
			s.MarkParted(e.Arguments[0])
		}
	})

	if err := conn.Connect(cfg.IRCServer); err != nil {
		return nil, err
	}
	go conn.RunWithReconnect("shadow:"+nick, func() {
		b.Shadows.Destroy(userID)
		b.queues.Drop(userID)
	})

	return conn, nil
}

// drainShadow re-runs the dispatcher for userID, logging (rather than
// propagating) any send failure since it runs off an IRC callback
// goroutine with no caller to return an error to.
func (b *Bridge) drainShadow(userID string) {
	if _, err := b.dispatcher.Drain(userID); err != nil {
		log.WithError(err).Warn("bridge: failed to drain message queue on join")
	}
}
