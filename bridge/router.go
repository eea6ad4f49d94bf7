package bridge

import (
	log "github.com/sirupsen/logrus"

	"github.com/ahti123/slack-irc/internal/command"
	"github.com/ahti123/slack-irc/internal/emoji"
	"github.com/ahti123/slack-irc/internal/queue"
	"github.com/ahti123/slack-irc/internal/texttransform"
)

// loop is the EventRouter (spec.md §4.6): the single goroutine that
// subscribes to both services and is the only mutator of Shadows,
// Channels, and queues. Generalized from rtk0c-go-discord-irc's
// bridge.go loop(), which drains exactly two channels
// (discordMessagesChan/discordMessageEventsChan); here the same
// single-owner discipline drains the Chat and IRC event streams instead.
func (b *Bridge) loop() {
	chatEvents := b.Chat.Events()
	ircEvents := b.Bot.Events()

	for {
		select {
		case ev, ok := <-chatEvents:
			if !ok {
				return
			}
			b.handleChatEvent(ev)

		case ev, ok := <-ircEvents:
			if !ok {
				return
			}
			b.handleIRCEvent(ev)

		case <-b.done:
			return
		}
	}
}

func (b *Bridge) handleChatEvent(ev ChatEvent) {
	switch ev.Kind {
	case ChatEventConnected:
		log.Info("bridge: chat connected")
		b.reconcileChannels()

	case ChatEventMessage:
		b.handleChatMessage(ev)

	case ChatEventPresenceChange:
		b.handlePresenceChange(ev)

	case ChatEventUserChange:
		b.handleUserChange(ev)

	case ChatEventError:
		log.WithError(ev.Err).Warn("bridge: chat error")
	}
}

// reconcileChannels runs once Chat reports itself connected (the "open"
// RTM event): for every configured Chat channel it reads the member
// list and ensures a shadow for every currently-active, non-bot member,
// per spec.md §4.6's startup half of the ShadowClient lifecycle.
func (b *Bridge) reconcileChannels() {
	for _, m := range b.Channels.All() {
		chatChannel, ok := b.Chat.ChannelByName(m.ChatChannel)
		if !ok {
			log.WithField("channel", m.ChatChannel).Warn("bridge: could not resolve configured chat channel")
			continue
		}

		members, err := b.Chat.Members(chatChannel.ID)
		if err != nil {
			log.WithError(err).WithField("channel", m.ChatChannel).Warn("bridge: failed to list channel members")
			continue
		}

		for _, user := range members {
			if user.IsBot || user.Presence != "active" {
				continue
			}
			if _, err := b.Shadows.Ensure(user.ID, user.DisplayName); err != nil {
				log.WithError(err).WithField("user", user.ID).Warn("bridge: failed to ensure shadow during reconciliation")
			}
		}
	}
}

func (b *Bridge) handleChatMessage(ev ChatEvent) {
	chatChannel, ok := b.Chat.ChannelByID(ev.ChannelID)
	if !ok {
		log.WithField("channel", ev.ChannelID).Warn("bridge: unknown chat channel, dropping message")
		return
	}
	key := channelKey(chatChannel)

	ircChannel, ok := b.Channels.IRCChannel(key)
	if !ok {
		return
	}

	if reply, handled, err := command.Dispatch(b, key, ev.Text); handled {
		if err != nil {
			log.WithError(err).Warn("bridge: command dispatch failed")
			return
		}
		if err := b.Chat.PostMessage(ev.ChannelID, reply); err != nil {
			log.WithError(err).Warn("bridge: failed to post command reply")
		}
		return
	}

	user, ok := b.Chat.UserByID(ev.UserID)
	if !ok {
		log.WithField("user", ev.UserID).Warn("bridge: unknown chat user, dropping message")
		return
	}

	shadow, err := b.Shadows.Ensure(user.ID, user.DisplayName)
	if err != nil {
		log.WithError(err).Warn("bridge: failed to ensure shadow")
		return
	}
	b.Shadows.CancelAway(user.ID)

	if !shadow.Joined(ircChannel) {
		shadow.Conn.Join(ircChannel)
	}

	var text string
	if ev.File != nil {
		text = formatFileShare(ev.File)
	} else {
		text = texttransform.ParseText(ev.Text, texttransform.Deps{
			Channel: func(id string) (string, bool) {
				ch, ok := b.Chat.ChannelByID(id)
				return ch.Name, ok
			},
			User: func(id string) (string, bool) {
				u, ok := b.Chat.UserByID(id)
				return u.DisplayName, ok
			},
			Shadow: func(word string) (string, bool) {
				if s, ok := b.shadowForDisplayName(word); ok {
					return s.Nick, true
				}
				return "", false
			},
			Emoji: emoji.Table,
		})
	}

	if text == "" {
		// Nothing left to relay after transformation (e.g. a message
		// that was pure markup); spec.md §11 leaves this case open,
		// resolved here by dropping rather than sending an empty line.
		return
	}

	b.queues.Enqueue(user.ID, queue.Message{Channel: ircChannel, Text: text, Action: ev.IsAction})
	if _, err := b.dispatcher.Drain(user.ID); err != nil {
		log.WithError(err).Warn("bridge: failed to drain message queue")
	}
}

// formatFileShare renders a file_share message as spec.md §4.4 requires:
// the initial comment (if any) followed by the permalink on its own
// line, or a bare permalink otherwise.
func formatFileShare(f *ChatFile) string {
	if f.InitialComment == "" {
		return f.Permalink
	}
	return f.InitialComment + ":\r\n" + f.Permalink
}

func (b *Bridge) shadowForDisplayName(displayName string) (*Shadow, bool) {
	for _, s := range b.allShadows() {
		if s.DisplayName == displayName {
			return s, true
		}
	}
	return nil, false
}

func (b *Bridge) allShadows() []*Shadow {
	return b.Shadows.snapshot()
}

func (b *Bridge) handlePresenceChange(ev ChatEvent) {
	if ev.Presence == "away" {
		b.Shadows.ScheduleAway(ev.UserID, func(userID string) {
			b.Shadows.Destroy(userID)
			b.queues.Drop(userID)
		})
		return
	}
	b.Shadows.CancelAway(ev.UserID)
}

// handleUserChange re-reads the user from Chat's data store rather than
// trusting any presence embedded in the event itself (SPEC_FULL.md §11
// open-question decision), since user_change does not guarantee the
// embedded presence reflects the latest state by the time it's handled.
func (b *Bridge) handleUserChange(ev ChatEvent) {
	user, ok := b.Chat.UserByID(ev.UserID)
	if !ok {
		return
	}

	if _, ok := b.Shadows.Get(user.ID); !ok {
		return
	}

	if user.Presence == "away" {
		b.Shadows.ScheduleAway(user.ID, func(userID string) {
			b.Shadows.Destroy(userID)
			b.queues.Drop(userID)
		})
		return
	}

	b.Shadows.CancelAway(user.ID)
}

func (b *Bridge) handleIRCEvent(ev IRCEvent) {
	switch ev.Kind {
	case IRCEventMessage:
		b.relayIRCMessageToChat(ev)

	case IRCEventJoin, IRCEventPart, IRCEventQuit:
		b.relayIRCPresenceToChat(ev)

	case IRCEventKick:
		b.relayIRCKickToChat(ev)

	case IRCEventTopic:
		b.handleIRCTopic(ev)

	case IRCEventNickInUse:
		log.WithField("nick", ev.Nick).Warn("bridge: bot nick in use")
	}
}

// resolveChatChannelID maps an IRC-side channel back to a live Slack
// channel ID that PostMessage can actually target, since ChannelMap
// only stores the configured Chat-side key (e.g. "#general"), not an ID.
func (b *Bridge) resolveChatChannelID(ircChannel string) (string, bool) {
	key, ok := b.Channels.ChatChannel(ircChannel)
	if !ok {
		return "", false
	}
	ch, ok := b.Chat.ChannelByName(key)
	if !ok {
		return "", false
	}
	return ch.ID, true
}

func (b *Bridge) relayIRCMessageToChat(ev IRCEvent) {
	chatChannelID, ok := b.resolveChatChannelID(ev.Channel)
	if !ok {
		return
	}

	text := texttransform.ReplaceUsernames(ev.Text, b.Config.NickSuffix, func(nick string) (string, bool) {
		s, ok := b.Shadows.ByNick(nick)
		if !ok {
			return "", false
		}
		return s.DisplayName, true
	})

	formatted := ev.Nick + ": " + text
	if ev.IsAction {
		formatted = "_" + ev.Nick + " " + text + "_"
	}

	if err := b.Chat.PostMessage(chatChannelID, formatted); err != nil {
		log.WithError(err).Warn("bridge: failed to relay irc message to chat")
	}
}

func (b *Bridge) relayIRCPresenceToChat(ev IRCEvent) {
	if !b.Config.ShowJoinQuit {
		return
	}

	chatChannelID, ok := b.resolveChatChannelID(ev.Channel)
	if !ok {
		return
	}

	var text string
	switch ev.Kind {
	case IRCEventJoin:
		text = "_" + ev.Nick + " has joined" + "_"
	case IRCEventPart:
		text = "_" + ev.Nick + " has left" + "_"
	case IRCEventQuit:
		text = "_" + ev.Nick + " has quit (" + ev.Text + ")_"
	}

	if err := b.Chat.PostMessage(chatChannelID, text); err != nil {
		log.WithError(err).Warn("bridge: failed to relay irc presence to chat")
	}
}

func (b *Bridge) relayIRCKickToChat(ev IRCEvent) {
	chatChannelID, ok := b.resolveChatChannelID(ev.Channel)
	if !ok {
		return
	}
	text := "_" + ev.Target + " was kicked by " + ev.Nick + " (" + ev.Text + ")_"
	if err := b.Chat.PostMessage(chatChannelID, text); err != nil {
		log.WithError(err).Warn("bridge: failed to relay kick to chat")
	}
}

// handleIRCTopic records the IRC side's current topic so command.Context's
// Topic (the /topic command) can answer from it without asking Chat,
// since Chat's own topic field is not the thing being bridged here.
func (b *Bridge) handleIRCTopic(ev IRCEvent) {
	b.topicsMu.Lock()
	b.topics[ev.Channel] = ev.Text
	b.topicsMu.Unlock()
}

// command.Context implementation.

// OnlineUsers implements command.Context.
func (b *Bridge) OnlineUsers(channel string) ([]string, error) {
	var out []string
	for _, s := range b.allShadows() {
		if ircChannel, ok := b.Channels.IRCChannel(channel); ok && s.Joined(ircChannel) {
			out = append(out, s.DisplayName)
		}
	}
	return out, nil
}

// Topic implements command.Context. channel is the Chat-side key
// (e.g. "#general"); it resolves to the IRC channel and returns the
// topic last observed over IRC, cached by handleIRCTopic.
func (b *Bridge) Topic(channel string) (string, error) {
	ircChannel, ok := b.Channels.IRCChannel(channel)
	if !ok {
		return "", nil
	}
	b.topicsMu.Lock()
	defer b.topicsMu.Unlock()
	return b.topics[ircChannel], nil
}
