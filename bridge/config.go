package bridge

import (
	"crypto/tls"
	"time"

	"github.com/gobwas/glob"
	"github.com/pkg/errors"

	"github.com/ahti123/slack-irc/internal/nickpolicy"
	"github.com/ahti123/slack-irc/ircconn"
)

// Config is the full set of knobs the bridge needs, loaded by
// cmd/chat-irc/main.go via viper and handed to New. Field layout mirrors
// rtk0c-go-discord-irc's Config, generalized from a single Discord guild
// to a Chat workspace and from a puppeted-relay IRC bot to the shadow
// architecture spec.md requires.
type Config struct {
	// ChatToken authenticates the Chat RTM/Web API client.
	ChatToken string

	// ChannelMappings maps a Chat channel key ("#"+name for channels, the
	// bare name otherwise; never the channel ID) to "irc_channel[ key]".
	ChannelMappings map[string]string

	IRCServer     string
	IRCServerPass string
	IRCBotNick    string
	IRCUseTLS     bool
	IRCTLSConfig  *tls.Config

	SASLLogin    string
	SASLPassword string

	// NickSuffix is appended to every derived shadow nickname.
	NickSuffix string

	// IgnoredHostmasks lists IRC hostmask globs whose PRIVMSGs/actions the
	// bridge never relays to Chat, e.g. other bots. Supplemental to
	// spec.md, grounded on rtk0c-go-discord-irc's IgnoreHostmasks /
	// gobwas/glob usage.
	IgnoredHostmasks []glob.Glob

	// AwayGracePeriod is how long a shadow client lingers, marked away,
	// after its Chat user goes offline before being destroyed.
	AwayGracePeriod time.Duration

	// Reconnect governs every IRC connection the bridge owns (bot and
	// shadows alike).
	Reconnect ircconn.ReconnectPolicy

	// ShowJoinQuit relays IRC join/part/quit lines into Chat as system
	// messages when true.
	ShowJoinQuit bool

	DevMode bool
}

// MakeDefaultConfig returns a Config with the same defaults the teacher
// ships, translated to this bridge's fields.
func MakeDefaultConfig() *Config {
	return &Config{
		IRCBotNick:      "chat-bridge",
		NickSuffix:      nickpolicy.DefaultSuffix,
		AwayGracePeriod: 120 * time.Second,
		Reconnect:       ircconn.DefaultReconnectPolicy(),
		ShowJoinQuit:    true,
	}
}

func (c *Config) validate() error {
	if c.ChatToken == "" {
		return errors.New("config: ChatToken is required")
	}
	if c.IRCServer == "" {
		return errors.New("config: IRCServer is required")
	}
	if c.IRCBotNick == "" {
		return errors.New("config: IRCBotNick is required")
	}
	return nil
}
