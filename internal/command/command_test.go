package command

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeContext struct {
	online map[string][]string
	topics map[string]string
	err    error
}

func (f *fakeContext) OnlineUsers(channel string) ([]string, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.online[channel], nil
}

func (f *fakeContext) Topic(channel string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return f.topics[channel], nil
}

func TestIsCommand(t *testing.T) {
	name, arg, ok := IsCommand("/online")
	assert.True(t, ok)
	assert.Equal(t, "online", name)
	assert.Equal(t, "", arg)

	name, arg, ok = IsCommand("/topic general")
	assert.True(t, ok)
	assert.Equal(t, "topic", name)
	assert.Equal(t, "general", arg)

	_, _, ok = IsCommand("hello there")
	assert.False(t, ok)
}

func TestDispatchOnline(t *testing.T) {
	ctx := &fakeContext{online: map[string][]string{"#general": {"alice", "bob"}}}
	reply, ok, err := Dispatch(ctx, "#general", "/online")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "online: alice, bob", reply)
}

func TestDispatchOnlineEmpty(t *testing.T) {
	ctx := &fakeContext{}
	reply, ok, err := Dispatch(ctx, "#general", "/online")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "no one else is online in this channel", reply)
}

func TestDispatchTopic(t *testing.T) {
	ctx := &fakeContext{topics: map[string]string{"#general": "welcome"}}
	reply, ok, err := Dispatch(ctx, "#general", "/topic")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "topic: welcome", reply)
}

func TestDispatchHelp(t *testing.T) {
	ctx := &fakeContext{}
	reply, ok, err := Dispatch(ctx, "#general", "/help")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Contains(t, reply, "/online")
}

func TestDispatchUnknownCommandFallsBackToHelp(t *testing.T) {
	ctx := &fakeContext{}
	reply, ok, err := Dispatch(ctx, "#general", "/nosuchcommand")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Contains(t, reply, "/online")
}

func TestDispatchNonCommandNotHandled(t *testing.T) {
	ctx := &fakeContext{}
	reply, ok, err := Dispatch(ctx, "#general", "just chatting")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, "", reply)
}

func TestDispatchPropagatesContextError(t *testing.T) {
	boom := errors.New("registry unavailable")
	ctx := &fakeContext{err: boom}
	_, ok, err := Dispatch(ctx, "#general", "/online")
	assert.True(t, ok)
	assert.ErrorIs(t, err, boom)
}
