package bridge

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewChannelMapParsesKey(t *testing.T) {
	cm, err := NewChannelMap(map[string]string{
		"#general": "#irc-general secretkey",
	})
	require.NoError(t, err)

	irc, ok := cm.IRCChannel("#general")
	require.True(t, ok)
	assert.Equal(t, "#irc-general", irc)
	assert.Equal(t, "secretkey", cm.Key("#irc-general"))

	chat, ok := cm.ChatChannel("#irc-general")
	require.True(t, ok)
	assert.Equal(t, "#general", chat)
}

func TestChannelMapRejectsDuplicateIRCChannel(t *testing.T) {
	cm, err := NewChannelMap(map[string]string{"#a": "#shared"})
	require.NoError(t, err)

	err = cm.Set("#b", "#shared", "")
	assert.Error(t, err)
}

func TestChannelMapSetReplacesExistingMapping(t *testing.T) {
	cm, err := NewChannelMap(map[string]string{"#a": "#first"})
	require.NoError(t, err)

	require.NoError(t, cm.Set("#a", "#second", ""))

	_, ok := cm.ChatChannel("#first")
	assert.False(t, ok)

	chat, ok := cm.ChatChannel("#second")
	require.True(t, ok)
	assert.Equal(t, "#a", chat)
}

func TestChannelMapUnknownLookups(t *testing.T) {
	cm, err := NewChannelMap(nil)
	require.NoError(t, err)

	_, ok := cm.IRCChannel("#nope")
	assert.False(t, ok)
	_, ok = cm.ChatChannel("#nope")
	assert.False(t, ok)
	assert.Equal(t, "", cm.Key("#nope"))
}

func TestChannelMapAll(t *testing.T) {
	cm, err := NewChannelMap(map[string]string{
		"#a": "#irc-a",
		"#b": "#irc-b",
	})
	require.NoError(t, err)
	assert.Len(t, cm.All(), 2)
}
