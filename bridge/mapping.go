package bridge

import (
	"strings"
	"sync"
)

// Mapping pairs one Chat channel with one IRC channel, with an optional
// IRC channel key. Grounded on rtk0c-go-discord-irc's inline
// []Mapping/ircChannelKeys handling in bridge.go, extracted into its own
// type per spec.md §3's ChannelMap.
type Mapping struct {
	ChatChannel string
	IRCChannel  string
	IRCKey      string
}

// ChannelMap is an injective mapping between Chat channels and IRC
// channels: no Chat channel maps to more than one IRC channel and vice
// versa. IRC channel keys are retained for joining but never relayed
// back to Chat.
type ChannelMap struct {
	mu        sync.RWMutex
	mappings  []Mapping
	byChat    map[string]int
	byIRC     map[string]int
}

// NewChannelMap builds a ChannelMap from raw config entries shaped
// "chat_channel": "irc_channel[ key]", matching the teacher's
// space-separated key convention for SetChannelMappings.
func NewChannelMap(raw map[string]string) (*ChannelMap, error) {
	cm := &ChannelMap{
		byChat: make(map[string]int),
		byIRC:  make(map[string]int),
	}

	for chat, ircSpec := range raw {
		ircChannel, key, _ := strings.Cut(ircSpec, " ")
		if err := cm.Set(chat, ircChannel, key); err != nil {
			return nil, err
		}
	}

	return cm, nil
}

// Set installs or replaces the mapping for chat, enforcing injectivity:
// it is an error to map chat to an IRC channel another Chat channel
// already owns.
func (cm *ChannelMap) Set(chat, ircChannel, ircKey string) error {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	if existing, ok := cm.byIRC[ircChannel]; ok && cm.mappings[existing].ChatChannel != chat {
		return errDuplicateIRCChannel(ircChannel)
	}

	m := Mapping{ChatChannel: chat, IRCChannel: ircChannel, IRCKey: ircKey}
	if idx, ok := cm.byChat[chat]; ok {
		delete(cm.byIRC, cm.mappings[idx].IRCChannel)
		cm.mappings[idx] = m
		cm.byIRC[ircChannel] = idx
		return nil
	}

	cm.mappings = append(cm.mappings, m)
	idx := len(cm.mappings) - 1
	cm.byChat[chat] = idx
	cm.byIRC[ircChannel] = idx
	return nil
}

// IRCChannel returns the IRC channel mapped to a Chat channel.
func (cm *ChannelMap) IRCChannel(chatChannel string) (string, bool) {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	idx, ok := cm.byChat[chatChannel]
	if !ok {
		return "", false
	}
	return cm.mappings[idx].IRCChannel, true
}

// ChatChannel returns the Chat channel mapped to an IRC channel.
func (cm *ChannelMap) ChatChannel(ircChannel string) (string, bool) {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	idx, ok := cm.byIRC[ircChannel]
	if !ok {
		return "", false
	}
	return cm.mappings[idx].ChatChannel, true
}

// Key returns the IRC channel key configured for ircChannel, if any. The
// key is never surfaced to Chat.
func (cm *ChannelMap) Key(ircChannel string) string {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	idx, ok := cm.byIRC[ircChannel]
	if !ok {
		return ""
	}
	return cm.mappings[idx].IRCKey
}

// All returns every configured Mapping.
func (cm *ChannelMap) All() []Mapping {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	out := make([]Mapping, len(cm.mappings))
	copy(out, cm.mappings)
	return out
}

type duplicateIRCChannelError string

func (e duplicateIRCChannelError) Error() string {
	return "channel map: irc channel already mapped: " + string(e)
}

func errDuplicateIRCChannel(ircChannel string) error {
	return duplicateIRCChannelError(ircChannel)
}
