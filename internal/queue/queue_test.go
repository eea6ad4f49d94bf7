package queue

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDrainDeliversAllWhenAllJoined(t *testing.T) {
	q := New()
	q.Enqueue("alice", Message{Channel: "#general", Text: "hi"})
	q.Enqueue("alice", Message{Channel: "#random", Text: "yo"})

	var sent []Message
	d := NewDispatcher(q, func(user, channel string) bool { return true }, func(user string, msg Message) error {
		sent = append(sent, msg)
		return nil
	})

	n, err := d.Drain("alice")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Len(t, sent, 2)
	assert.Empty(t, q.Pending("alice"))
}

func TestDrainStopsAtFirstUnjoinedChannel(t *testing.T) {
	q := New()
	q.Enqueue("alice", Message{Channel: "#general", Text: "hi"})
	q.Enqueue("alice", Message{Channel: "#secret", Text: "psst"})
	q.Enqueue("alice", Message{Channel: "#general", Text: "still queued behind #secret"})

	joined := map[string]bool{"#general": true}
	var sent []Message
	d := NewDispatcher(q, func(user, channel string) bool { return joined[channel] }, func(user string, msg Message) error {
		sent = append(sent, msg)
		return nil
	})

	n, err := d.Drain("alice")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	require.Len(t, sent, 1)
	assert.Equal(t, "#general", sent[0].Channel)

	remaining := q.Pending("alice")
	require.Len(t, remaining, 2)
	assert.Equal(t, "#secret", remaining[0].Channel)
}

func TestDrainNonStrictDropsBlockedMessage(t *testing.T) {
	q := New()
	q.Enqueue("alice", Message{Channel: "#secret", Text: "psst"})
	q.Enqueue("alice", Message{Channel: "#general", Text: "hi"})

	joined := map[string]bool{"#general": true}
	var sent []Message
	d := NewDispatcher(q, func(user, channel string) bool { return joined[channel] }, func(user string, msg Message) error {
		sent = append(sent, msg)
		return nil
	})
	d.StrictHeadOfLine = false

	n, err := d.Drain("alice")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	require.Len(t, sent, 1)
	assert.Equal(t, "#general", sent[0].Channel)
	assert.Empty(t, q.Pending("alice"))
}

func TestDrainStopsOnSendError(t *testing.T) {
	q := New()
	q.Enqueue("alice", Message{Channel: "#general", Text: "hi"})
	q.Enqueue("alice", Message{Channel: "#general", Text: "second"})

	boom := errors.New("connection reset")
	calls := 0
	d := NewDispatcher(q, func(user, channel string) bool { return true }, func(user string, msg Message) error {
		calls++
		return boom
	})

	n, err := d.Drain("alice")
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 0, n)
	assert.Equal(t, 1, calls)
	assert.Len(t, q.Pending("alice"), 2)
}

func TestDropDiscardsQueue(t *testing.T) {
	q := New()
	q.Enqueue("alice", Message{Channel: "#general", Text: "hi"})
	q.Drop("alice")
	assert.Empty(t, q.Pending("alice"))
}
