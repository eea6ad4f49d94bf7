// Package queue implements the per-user FIFO message queue and the
// dispatch logic that drains it towards IRC (spec.md §4.4). Each queued
// message carries its IRC channel, but messages are not grouped by
// channel: one user's messages for all channels share a single FIFO, so
// a message for a channel the shadow has not joined also holds back that
// user's later messages for channels it has joined.
//
// Grounded on the channel-pump style of rtk0c-go-discord-irc's
// bridge.go loop() (discordMessagesChan/discordMessageEventsChan single-
// owner draining), generalized here into an explicit per-user queue with
// head-of-line blocking instead of an unbounded Go channel, since the
// spec requires queued messages to wait for their destination channel to
// be joined rather than being dropped or reordered.
package queue

import "sync"

// Message is one unit of outbound text queued for a shadow client.
type Message struct {
	Channel string
	Text    string
	Action  bool
}

// JoinChecker reports whether user's shadow client has currently joined
// channel. The Dispatcher calls this before draining a queued message.
type JoinChecker func(user, channel string) bool

// Sender delivers one message to IRC on behalf of user. An error aborts
// the current drain pass for that user without consuming the message.
type Sender func(user string, msg Message) error

// MessageQueues holds one FIFO per Chat user of messages awaiting
// delivery to that user's shadow client.
type MessageQueues struct {
	mu   sync.Mutex
	byUser map[string][]Message
}

// New returns an empty MessageQueues.
func New() *MessageQueues {
	return &MessageQueues{byUser: make(map[string][]Message)}
}

// Enqueue appends msg to user's queue.
func (q *MessageQueues) Enqueue(user string, msg Message) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.byUser[user] = append(q.byUser[user], msg)
}

// Pending returns a copy of user's current queue, oldest first.
func (q *MessageQueues) Pending(user string) []Message {
	q.mu.Lock()
	defer q.mu.Unlock()
	src := q.byUser[user]
	out := make([]Message, len(src))
	copy(out, src)
	return out
}

// Drop discards every queued message for user, e.g. on shadow destruction.
func (q *MessageQueues) Drop(user string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	delete(q.byUser, user)
}

// consume removes the first n messages from user's queue.
func (q *MessageQueues) consume(user string, n int) {
	q.mu.Lock()
	defer q.mu.Unlock()
	remaining := q.byUser[user]
	if n >= len(remaining) {
		delete(q.byUser, user)
		return
	}
	q.byUser[user] = remaining[n:]
}

// Dispatcher drains MessageQueues towards IRC, respecting head-of-line
// blocking: by default, draining a user's queue stops at the first
// message whose destination channel the shadow has not yet joined,
// rather than skipping ahead and reordering delivery. Setting
// StrictHeadOfLine to false instead drops the blocked message and
// continues with the rest of the queue (spec.md §11 leaves this an open
// question; the default here preserves per-channel ordering, which the
// spec's examples assume).
type Dispatcher struct {
	Queues           *MessageQueues
	Joined           JoinChecker
	Send             Sender
	StrictHeadOfLine bool
}

// NewDispatcher returns a Dispatcher with strict head-of-line blocking.
func NewDispatcher(queues *MessageQueues, joined JoinChecker, send Sender) *Dispatcher {
	return &Dispatcher{
		Queues:           queues,
		Joined:           joined,
		Send:             send,
		StrictHeadOfLine: true,
	}
}

// Drain attempts to deliver every queued message for user, in order. It
// returns the number of messages removed from the queue: those sent, plus
// (when StrictHeadOfLine is false) those dropped for an unjoined channel.
func (d *Dispatcher) Drain(user string) (int, error) {
	pending := d.Queues.Pending(user)
	delivered := 0

	for _, msg := range pending {
		if d.Joined != nil && !d.Joined(user, msg.Channel) {
			if d.StrictHeadOfLine {
				break
			}
			delivered++
			continue
		}

		if err := d.Send(user, msg); err != nil {
			d.Queues.consume(user, delivered)
			return delivered, err
		}
		delivered++
	}

	d.Queues.consume(user, delivered)
	return delivered, nil
}
