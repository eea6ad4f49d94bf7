package bridge

import (
	"strings"
	"sync"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/slack-go/slack"
)

// ChatUser is the subset of a Chat user's profile the bridge cares
// about.
type ChatUser struct {
	ID          string
	DisplayName string
	Presence    string // "active" or "away"
	IsBot       bool
}

// ChatChannel is the subset of a Chat channel's metadata the bridge
// cares about.
type ChatChannel struct {
	ID        string
	Name      string
	IsChannel bool
}

// channelKey is the ChannelMap/Config key a ChatChannel is addressed by:
// "#"+name for real channels, the bare name otherwise (spec.md §3's
// Chat-channel-name side of the mapping). Grounded on the fact that
// spec.md's examples always show channel mappings written with a
// leading "#" on the Chat side.
func channelKey(ch ChatChannel) string {
	if ch.IsChannel {
		return "#" + ch.Name
	}
	return ch.Name
}

// ChatEventKind discriminates the events ChatClient.Events delivers,
// named after the RTM events spec.md §6 lists verbatim.
type ChatEventKind string

const (
	ChatEventConnected      ChatEventKind = "open"
	ChatEventMessage        ChatEventKind = "message"
	ChatEventPresenceChange ChatEventKind = "presence_change"
	ChatEventUserChange     ChatEventKind = "user_change"
	ChatEventError          ChatEventKind = "error"
)

// ChatFile carries the file-share fields spec.md §4.4/§6 name:
// file.permalink and the optional initial_comment.comment.
type ChatFile struct {
	Permalink      string
	InitialComment string
}

// ChatEvent is one item off a ChatClient's event stream.
type ChatEvent struct {
	Kind ChatEventKind

	// Message fields, set when Kind == ChatEventMessage.
	ChannelID string
	UserID    string
	Text      string
	IsAction  bool
	File      *ChatFile

	// UserID is also set for presence/user change events; Presence
	// carries the new presence for ChatEventPresenceChange.
	Presence string

	Err error
}

// ChatClient is the bridge's view of the Chat service: an RTM-style
// event stream plus the Web API calls spec.md §6 names. Grounded on
// Peter4825-matterircd/bridge/slack/slack.go's use of slack-go/slack
// (sc.NewRTM, rtm.ManageConnection, rtm.IncomingEvents, sc.PostMessage,
// sc.GetUserInfo, sc.GetConversationInfo, sc.GetConversations,
// sc.GetUsersInConversation) and insomniacslk-irc-slack/event_handler.go's
// event-loop shape.
type ChatClient interface {
	Connect() error
	Close() error
	Events() <-chan ChatEvent

	PostMessage(channelID, text string) error
	UserByID(id string) (ChatUser, bool)
	ChannelByID(id string) (ChatChannel, bool)
	ChannelByName(key string) (ChatChannel, bool)
	Members(channelID string) ([]ChatUser, error)
	Topic(channelID string) (string, error)
	OpenDirectMessage(userID string) (string, error)
}

// slackChatClient is the slack-go/slack-backed ChatClient implementation.
type slackChatClient struct {
	api *slack.Client
	rtm *slack.RTM

	events chan ChatEvent

	mu       sync.RWMutex
	users    map[string]ChatUser
	channels map[string]ChatChannel
	byName   map[string]string // channelKey(ch) -> id
}

// NewSlackChatClient constructs a ChatClient backed by slack-go/slack.
func NewSlackChatClient(token string) ChatClient {
	api := slack.New(token, slack.OptionDebug(false))
	return &slackChatClient{
		api:      api,
		rtm:      api.NewRTM(),
		events:   make(chan ChatEvent, 64),
		users:    make(map[string]ChatUser),
		channels: make(map[string]ChatChannel),
		byName:   make(map[string]string),
	}
}

func (c *slackChatClient) Connect() error {
	go c.rtm.ManageConnection()
	go c.pump()
	return nil
}

func (c *slackChatClient) Close() error {
	return errors.Wrap(c.rtm.Disconnect(), "chat: disconnect")
}

func (c *slackChatClient) Events() <-chan ChatEvent {
	return c.events
}

// allowedSubtype gates which MessageEvent subtypes are relayed at all,
// per spec.md §4.4: "subtype is absent or in the allowed set {me_message,
// file_share}". Everything else (bot_message, channel_join,
// message_changed, ...) is dropped.
func allowedSubtype(subtype string) bool {
	switch subtype {
	case "", "me_message", "file_share":
		return true
	default:
		return false
	}
}

func (c *slackChatClient) pump() {
	for msg := range c.rtm.IncomingEvents {
		switch ev := msg.Data.(type) {
		case *slack.ConnectedEvent:
			c.events <- ChatEvent{Kind: ChatEventConnected}

		case *slack.MessageEvent:
			if ev.SubMessage != nil || ev.User == "" || !allowedSubtype(ev.SubType) {
				continue
			}

			event := ChatEvent{
				Kind:      ChatEventMessage,
				ChannelID: ev.Channel,
				UserID:    ev.User,
				Text:      ev.Text,
				IsAction:  ev.SubType == "me_message",
			}

			if ev.SubType == "file_share" && len(ev.Files) > 0 {
				f := ev.Files[0]
				event.File = &ChatFile{
					Permalink:      f.Permalink,
					InitialComment: f.InitialComment.Comment,
				}
			}

			c.events <- event

		case *slack.PresenceChangeEvent:
			c.events <- ChatEvent{
				Kind:     ChatEventPresenceChange,
				UserID:   ev.User,
				Presence: ev.Presence,
			}

		case *slack.UserChangeEvent:
			c.cacheUser(ev.User)
			c.events <- ChatEvent{Kind: ChatEventUserChange, UserID: ev.User.ID}

		case *slack.RTMError:
			log.WithError(ev).Warn("chat: rtm error")
			c.events <- ChatEvent{Kind: ChatEventError, Err: ev}

		case *slack.DisconnectedEvent:
			log.Warn("chat: disconnected")
		}
	}
}

func (c *slackChatClient) cacheUser(u slack.User) {
	c.mu.Lock()
	defer c.mu.Unlock()
	name := u.Profile.DisplayName
	if name == "" {
		name = u.Name
	}
	c.users[u.ID] = ChatUser{ID: u.ID, DisplayName: name, Presence: u.Presence, IsBot: u.IsBot}
}

func (c *slackChatClient) cacheChannel(info *slack.Channel) ChatChannel {
	ch := ChatChannel{ID: info.ID, Name: info.Name, IsChannel: info.IsChannel}
	c.mu.Lock()
	c.channels[ch.ID] = ch
	c.byName[channelKey(ch)] = ch.ID
	c.mu.Unlock()
	return ch
}

func (c *slackChatClient) PostMessage(channelID, text string) error {
	_, _, err := c.api.PostMessage(channelID, slack.MsgOptionText(text, false))
	return errors.Wrap(err, "chat: post message")
}

func (c *slackChatClient) UserByID(id string) (ChatUser, bool) {
	c.mu.RLock()
	u, ok := c.users[id]
	c.mu.RUnlock()
	if ok {
		return u, true
	}

	info, err := c.api.GetUserInfo(id)
	if err != nil {
		return ChatUser{}, false
	}
	c.cacheUser(*info)
	c.mu.RLock()
	defer c.mu.RUnlock()
	u, ok = c.users[id]
	return u, ok
}

func (c *slackChatClient) ChannelByID(id string) (ChatChannel, bool) {
	c.mu.RLock()
	ch, ok := c.channels[id]
	c.mu.RUnlock()
	if ok {
		return ch, true
	}

	info, err := c.api.GetConversationInfo(&slack.GetConversationInfoInput{ChannelID: id})
	if err != nil {
		return ChatChannel{}, false
	}

	return c.cacheChannel(info), true
}

// ChannelByName resolves key (the canonical channelKey form, e.g.
// "#general") to a ChatChannel, searching the workspace's conversation
// list via sc.GetConversations when the channel hasn't been seen yet.
// Grounded on Peter4825-matterircd's paginated GetConversations usage.
func (c *slackChatClient) ChannelByName(key string) (ChatChannel, bool) {
	c.mu.RLock()
	id, ok := c.byName[key]
	c.mu.RUnlock()
	if ok {
		return c.ChannelByID(id)
	}

	name := strings.TrimPrefix(key, "#")
	cursor := ""
	for {
		channels, nextCursor, err := c.api.GetConversations(&slack.GetConversationsParameters{
			Cursor: cursor,
			Limit:  200,
		})
		if err != nil {
			return ChatChannel{}, false
		}

		for i := range channels {
			if channels[i].Name == name {
				return c.cacheChannel(&channels[i]), true
			}
		}

		if nextCursor == "" {
			return ChatChannel{}, false
		}
		cursor = nextCursor
	}
}

// Members lists every user currently in channelID, resolved to
// ChatUsers, grounded on Peter4825-matterircd's paginated
// GetUsersInConversation usage.
func (c *slackChatClient) Members(channelID string) ([]ChatUser, error) {
	var out []ChatUser
	cursor := ""
	for {
		ids, nextCursor, err := c.api.GetUsersInConversation(&slack.GetUsersInConversationParameters{
			ChannelID: channelID,
			Cursor:    cursor,
			Limit:     200,
		})
		if err != nil {
			return nil, errors.Wrap(err, "chat: list channel members")
		}

		for _, id := range ids {
			if u, ok := c.UserByID(id); ok {
				out = append(out, u)
			}
		}

		if nextCursor == "" {
			return out, nil
		}
		cursor = nextCursor
	}
}

func (c *slackChatClient) Topic(channelID string) (string, error) {
	info, err := c.api.GetConversationInfo(&slack.GetConversationInfoInput{ChannelID: channelID})
	if err != nil {
		return "", errors.Wrap(err, "chat: get topic")
	}
	return info.Topic.Value, nil
}

func (c *slackChatClient) OpenDirectMessage(userID string) (string, error) {
	_, _, channelID, err := c.api.OpenConversation(&slack.OpenConversationParameters{Users: []string{userID}})
	if err != nil {
		return "", errors.Wrap(err, "chat: open direct message")
	}
	return channelID, nil
}
