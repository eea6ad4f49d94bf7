package texttransform

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func channelLookup(m map[string]string) ChannelLookup {
	return func(id string) (string, bool) {
		v, ok := m[id]
		return v, ok
	}
}

func userLookup(m map[string]string) UserLookup {
	return func(id string) (string, bool) {
		v, ok := m[id]
		return v, ok
	}
}

func TestParseTextBroadcastTokens(t *testing.T) {
	got := ParseText("<!channel> heads up", Deps{})
	assert.Equal(t, "@channel heads up", got)
}

func TestParseTextHTMLEntities(t *testing.T) {
	// Entities are decoded before the raw-link rule runs, so the decoded
	// "<3 >" is then read as a bracketed link and unwrapped to "3 ".
	got := ParseText("Tom &amp; Jerry &lt;3 &gt;9000", Deps{})
	assert.Equal(t, "Tom & Jerry 3 9000", got)
}

func TestParseTextChannelReference(t *testing.T) {
	deps := Deps{Channel: channelLookup(map[string]string{"C123": "general"})}
	assert.Equal(t, "see #general", ParseText("see <#C123>", deps))
	assert.Equal(t, "see #random", ParseText("see <#C999|random>", deps))
}

func TestParseTextUserReference(t *testing.T) {
	deps := Deps{User: userLookup(map[string]string{"U1": "alice"})}
	assert.Equal(t, "ping @alice", ParseText("ping <@U1>", deps))
	assert.Equal(t, "ping @bob", ParseText("ping <@U2|bob>", deps))
}

func TestParseTextRawLink(t *testing.T) {
	got := ParseText("see <https://example.com/x>", Deps{})
	assert.Equal(t, "see https://example.com/x", got)
}

func TestParseTextEmojiShortcode(t *testing.T) {
	deps := Deps{Emoji: map[string]string{"+1": "👍"}}
	assert.Equal(t, "nice 👍", ParseText("nice :+1:", deps))
}

func TestParseTextUnknownEmojiLeftAlone(t *testing.T) {
	deps := Deps{Emoji: map[string]string{"+1": "👍"}}
	assert.Equal(t, "weird :notreal:", ParseText("weird :notreal:", deps))
}

func TestParseTextMentionRewrittenToShadowNick(t *testing.T) {
	deps := Deps{Shadow: func(word string) (string, bool) {
		if word == "alice" {
			return "alice-slack", true
		}
		return "", false
	}}
	assert.Equal(t, "hi alice-slack", ParseText("hi @alice", deps))
}

func TestParseTextResidualPipePass(t *testing.T) {
	got := ParseText("go read <docs|the docs>", Deps{})
	assert.Equal(t, "go read the docs", got)
}

func TestParseTextIdempotent(t *testing.T) {
	deps := Deps{
		Channel: channelLookup(map[string]string{"C1": "general"}),
		User:    userLookup(map[string]string{"U1": "alice"}),
		Emoji:   map[string]string{"+1": "👍"},
	}
	input := "hey <#C1> <@U1> :+1: <https://example.com>"
	once := ParseText(input, deps)
	twice := ParseText(once, deps)
	assert.Equal(t, once, twice)
}

func TestReplaceUsernamesRoundTrip(t *testing.T) {
	lookup := func(nick string) (string, bool) {
		if nick == "alice-slack" {
			return "alice", true
		}
		return "", false
	}
	got := ReplaceUsernames("hi alice-slack, welcome", "-slack", lookup)
	assert.Equal(t, "hi alice, welcome", got)
}

func TestReplaceUsernamesNoSuffixMatch(t *testing.T) {
	lookup := func(nick string) (string, bool) {
		t.Fatalf("lookup should not be called for unrelated text")
		return "", false
	}
	got := ReplaceUsernames("hi bob, welcome", "-slack", lookup)
	assert.Equal(t, "hi bob, welcome", got)
}

func TestMapSlackUsersHighlightsMembers(t *testing.T) {
	got := MapSlackUsers("alice said hi to bob", []string{"alice", "bob"}, func(name string) string {
		return "@" + name
	})
	assert.Equal(t, "@alice said hi to @bob", got)
}

func TestRoundTripChatToIRCAndBack(t *testing.T) {
	toIRC := Deps{User: userLookup(map[string]string{"U1": "alice"})}
	irc := ParseText("hello <@U1>", toIRC)
	assert.Equal(t, "hello @alice", irc)

	back := ReplaceUsernames("hello alice-slack: hi", "-slack", func(nick string) (string, bool) {
		if nick == "alice-slack" {
			return "alice", true
		}
		return "", false
	})
	assert.Equal(t, "hello alice: hi", back)
}
