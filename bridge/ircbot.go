package bridge

import (
	"strings"

	"github.com/gobwas/glob"
	irc "github.com/kofany/go-ircevo"
	log "github.com/sirupsen/logrus"

	"github.com/ahti123/slack-irc/ircconn"
)

// IRCEventKind discriminates the events BridgeBot.Events delivers.
type IRCEventKind string

const (
	IRCEventWelcome   IRCEventKind = "welcome"
	IRCEventMessage   IRCEventKind = "privmsg"
	IRCEventJoin      IRCEventKind = "join"
	IRCEventPart      IRCEventKind = "part"
	IRCEventQuit      IRCEventKind = "quit"
	IRCEventKick      IRCEventKind = "kick"
	IRCEventTopic     IRCEventKind = "topic"
	IRCEventNickInUse IRCEventKind = "nick_in_use"
)

// IRCEvent is one item off the BridgeBot's event stream.
type IRCEvent struct {
	Kind     IRCEventKind
	Nick     string
	Host     string
	Channel  string
	Text     string
	IsAction bool
	Target   string // kicked nick, for IRCEventKick
}

// BridgeBot is the single IRC connection the bridge always keeps open,
// independent of any shadow: it joins every mapped channel up front,
// relays messages from real (non-shadow) IRC users into Chat, and
// reports channel membership/topic changes. Adapted from
// rtk0c-go-discord-irc's irc_listener.go, stripped of RELAYMSG/puppet
// concerns now owned by ShadowRegistry.
type BridgeBot struct {
	conn         *ircconn.Conn
	cfg          *Config
	channels     *ChannelMap
	isShadowNick func(nick string) bool
	events       chan IRCEvent
}

// NewBridgeBot constructs a BridgeBot. isShadowNick reports whether a
// nick belongs to one of the bridge's own shadow clients, so their
// traffic isn't echoed back into Chat a second time.
func NewBridgeBot(cfg *Config, channels *ChannelMap, isShadowNick func(string) bool) *BridgeBot {
	return &BridgeBot{
		cfg:          cfg,
		channels:     channels,
		isShadowNick: isShadowNick,
		events:       make(chan IRCEvent, 64),
	}
}

// Events returns the bot's event stream.
func (b *BridgeBot) Events() <-chan IRCEvent {
	return b.events
}

// Connect dials the IRC server and starts the bot's event loop in the
// background.
func (b *BridgeBot) Connect() error {
	b.conn = ircconn.New(ircconn.Options{
		Nick:         b.cfg.IRCBotNick,
		User:         b.cfg.IRCBotNick,
		RealName:     b.cfg.IRCBotNick,
		Password:     b.cfg.IRCServerPass,
		UseTLS:       b.cfg.IRCUseTLS,
		TLSConfig:    b.cfg.IRCTLSConfig,
		UseSASL:      b.cfg.SASLLogin != "",
		SASLLogin:    b.cfg.SASLLogin,
		SASLPassword: b.cfg.SASLPassword,
		Reconnect:    b.cfg.Reconnect,
	})

	b.registerCallbacks()

	if err := b.conn.Connect(b.cfg.IRCServer); err != nil {
		return err
	}

	go b.conn.RunWithReconnect("bot", func() {
		log.Fatalln("bridge: bot connection aborted, terminating")
	})
	return nil
}

// Close disconnects the bot.
func (b *BridgeBot) Close() error {
	if b.conn != nil {
		b.conn.Quit()
	}
	return nil
}

func (b *BridgeBot) registerCallbacks() {
	b.conn.AddCallback("001", func(e *irc.Event) {
		b.events <- IRCEvent{Kind: IRCEventWelcome}
		b.joinAllChannels()
	})

	b.conn.AddCallback("433", func(e *irc.Event) {
		b.events <- IRCEvent{Kind: IRCEventNickInUse, Nick: b.cfg.IRCBotNick}
	})

	b.conn.AddCallback("PRIVMSG", func(e *irc.Event) {
		b.handleMessage(e, false)
	})
	b.conn.AddCallback("CTCP_ACTION", func(e *irc.Event) {
		b.handleMessage(e, true)
	})

	b.conn.AddCallback("JOIN", func(e *irc.Event) {
		if b.isOwnOrShadow(e.Nick) {
			return
		}
		b.events <- IRCEvent{Kind: IRCEventJoin, Nick: e.Nick, Host: e.Host, Channel: firstArg(e)}
	})
	b.conn.AddCallback("PART", func(e *irc.Event) {
		if b.isOwnOrShadow(e.Nick) {
			return
		}
		b.events <- IRCEvent{Kind: IRCEventPart, Nick: e.Nick, Host: e.Host, Channel: firstArg(e)}
	})
	b.conn.AddCallback("QUIT", func(e *irc.Event) {
		if b.isOwnOrShadow(e.Nick) {
			return
		}
		b.events <- IRCEvent{Kind: IRCEventQuit, Nick: e.Nick, Host: e.Host, Text: e.Message()}
	})
	b.conn.AddCallback("KICK", func(e *irc.Event) {
		if len(e.Arguments) < 2 {
			return
		}
		b.events <- IRCEvent{Kind: IRCEventKick, Nick: e.Nick, Channel: e.Arguments[0], Target: e.Arguments[1], Text: e.Message()}
	})
	b.conn.AddCallback("TOPIC", func(e *irc.Event) {
		b.events <- IRCEvent{Kind: IRCEventTopic, Nick: e.Nick, Channel: firstArg(e), Text: e.Message()}
	})

	b.conn.AddCallback("INVITE", func(e *irc.Event) {
		if len(e.Arguments) < 2 {
			return
		}
		channel := e.Arguments[1]
		if _, ok := b.channels.ChatChannel(channel); !ok {
			log.WithField("channel", channel).Debug("bridge: ignoring invite to unmapped channel")
			return
		}
		b.conn.Join(channel)
	})
}

func (b *BridgeBot) joinAllChannels() {
	for _, m := range b.channels.All() {
		if m.IRCKey != "" {
			b.conn.Join(m.IRCChannel + " " + m.IRCKey)
		} else {
			b.conn.Join(m.IRCChannel)
		}
	}
}

func (b *BridgeBot) handleMessage(e *irc.Event, isAction bool) {
	if len(e.Arguments) == 0 {
		return
	}
	channel := e.Arguments[0]
	if !strings.HasPrefix(channel, "#") {
		return // private messages to the bot are not relayed as channel traffic
	}
	if b.isOwnOrShadow(e.Nick) {
		return
	}
	if b.isIgnoredHostmask(e.Nick + "!" + e.Host) {
		return
	}

	b.events <- IRCEvent{
		Kind:     IRCEventMessage,
		Nick:     e.Nick,
		Host:     e.Host,
		Channel:  channel,
		Text:     e.MessageWithoutFormat(),
		IsAction: isAction,
	}
}

func (b *BridgeBot) isOwnOrShadow(nick string) bool {
	if nick == b.cfg.IRCBotNick {
		return true
	}
	return b.isShadowNick != nil && b.isShadowNick(nick)
}

func (b *BridgeBot) isIgnoredHostmask(hostmask string) bool {
	for _, g := range b.cfg.IgnoredHostmasks {
		if matchHostmask(g, hostmask) {
			log.WithField("hostmask", hostmask).Debug("bridge: ignoring message from ignored hostmask")
			return true
		}
	}
	return false
}

func matchHostmask(g glob.Glob, hostmask string) bool {
	return g != nil && g.Match(hostmask)
}

func firstArg(e *irc.Event) string {
	if len(e.Arguments) == 0 {
		return ""
	}
	return e.Arguments[0]
}
