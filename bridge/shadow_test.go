package bridge

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeConn struct {
	quit    bool
	nick    string
	joined  []string
	privmsg []string
}

func (f *fakeConn) Quit()                                { f.quit = true }
func (f *fakeConn) Join(channel string)                  { f.joined = append(f.joined, channel) }
func (f *fakeConn) Part(channel string)                  {}
func (f *fakeConn) Privmsg(target, message string)       { f.privmsg = append(f.privmsg, message) }
func (f *fakeConn) Action(target, message string)        {}
func (f *fakeConn) Notice(target, message string)        {}
func (f *fakeConn) Nick(newnick string)                  { f.nick = newnick }

func newTestRegistry() (*ShadowRegistry, map[string]*fakeConn) {
	conns := make(map[string]*fakeConn)
	factory := func(userID, nick string) (IRCConn, error) {
		c := &fakeConn{nick: nick}
		conns[userID] = c
		return c, nil
	}
	return NewShadowRegistry("-slack", 50*time.Millisecond, factory), conns
}

func TestEnsureCreatesShadow(t *testing.T) {
	r, conns := newTestRegistry()

	s, err := r.Ensure("U1", "alice")
	require.NoError(t, err)
	assert.Equal(t, "alice-slack", s.Nick)
	assert.Equal(t, 1, r.Len())
	assert.NotNil(t, conns["U1"])
}

func TestEnsureReturnsExistingShadow(t *testing.T) {
	r, conns := newTestRegistry()

	s1, err := r.Ensure("U1", "alice")
	require.NoError(t, err)
	s2, err := r.Ensure("U1", "alice")
	require.NoError(t, err)

	assert.Same(t, s1, s2)
	assert.Len(t, conns, 1)
}

func TestByNickLookup(t *testing.T) {
	r, _ := newTestRegistry()
	s, err := r.Ensure("U1", "alice")
	require.NoError(t, err)

	found, ok := r.ByNick(s.Nick)
	require.True(t, ok)
	assert.Equal(t, "U1", found.UserID)
}

func TestRenameUpdatesNickIndex(t *testing.T) {
	r, _ := newTestRegistry()
	s, err := r.Ensure("U1", "alice")
	require.NoError(t, err)

	r.Rename("U1", s.Nick+"1")
	_, ok := r.ByNick(s.Nick)
	assert.False(t, ok)

	found, ok := r.ByNick(s.Nick + "1")
	require.True(t, ok)
	assert.Equal(t, "U1", found.UserID)
}

func TestDestroyRemovesShadowAndQuits(t *testing.T) {
	r, conns := newTestRegistry()
	_, err := r.Ensure("U1", "alice")
	require.NoError(t, err)

	r.Destroy("U1")
	assert.Equal(t, 0, r.Len())
	assert.True(t, conns["U1"].quit)

	_, ok := r.Get("U1")
	assert.False(t, ok)
}

func TestScheduleAwayDestroysAfterGracePeriod(t *testing.T) {
	r, _ := newTestRegistry()
	_, err := r.Ensure("U1", "alice")
	require.NoError(t, err)

	expired := make(chan string, 1)
	r.ScheduleAway("U1", func(userID string) {
		expired <- userID
	})

	select {
	case userID := <-expired:
		assert.Equal(t, "U1", userID)
	case <-time.After(time.Second):
		t.Fatal("away timer never fired")
	}
}

func TestCancelAwayPreventsDestruction(t *testing.T) {
	r, _ := newTestRegistry()
	_, err := r.Ensure("U1", "alice")
	require.NoError(t, err)

	expired := make(chan string, 1)
	r.ScheduleAway("U1", func(userID string) {
		expired <- userID
	})
	r.CancelAway("U1")

	select {
	case <-expired:
		t.Fatal("away timer fired despite cancellation")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestJoinedTracking(t *testing.T) {
	r, _ := newTestRegistry()
	s, err := r.Ensure("U1", "alice")
	require.NoError(t, err)

	assert.False(t, s.Joined("#general"))
	s.MarkJoined("#general")
	assert.True(t, s.Joined("#general"))
	s.MarkParted("#general")
	assert.False(t, s.Joined("#general"))
}
