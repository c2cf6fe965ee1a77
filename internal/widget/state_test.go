package widget

import (
	"testing"

	"github.com/soyeahso/dmschat/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMessageLog_AddIsIdempotentByMid(t *testing.T) {
	l := NewMessageLog()

	first, added := l.Add(domain.Message{Mid: "a_1", Role: domain.RoleAgent, Text: "hi"})
	require.True(t, added)
	assert.Equal(t, domain.StatusSent, first.Message.Status, "status defaults to sent")

	again, added := l.Add(domain.Message{Mid: "a_1", Role: domain.RoleAgent, Text: "hi again"})
	assert.False(t, added)
	assert.Same(t, first, again)
	assert.Equal(t, 1, l.Len())

	// messages without a mid cannot be deduplicated
	l.Add(domain.Message{Role: domain.RoleAgent, Text: "x"})
	l.Add(domain.Message{Role: domain.RoleAgent, Text: "x"})
	assert.Equal(t, 3, l.Len())
}

func TestMessageLog_AdvanceIsMonotonic(t *testing.T) {
	l := NewMessageLog()
	l.Add(domain.Message{Mid: "tmp_1", Role: domain.RoleUser, Status: domain.StatusPending})

	_, changed := l.Advance("tmp_1", domain.StatusSeen)
	assert.True(t, changed)

	e, changed := l.Advance("tmp_1", domain.StatusSent)
	assert.False(t, changed)
	assert.Equal(t, domain.StatusSeen, e.Message.Status)

	_, changed = l.Advance("tmp_1", domain.StatusPending)
	assert.False(t, changed)

	_, changed = l.Advance("missing", domain.StatusSeen)
	assert.False(t, changed)
}

func TestMessageLog_Retarget(t *testing.T) {
	l := NewMessageLog()
	l.Add(domain.Message{Mid: "tmp_abc", TempID: "abc", Role: domain.RoleUser, Status: domain.StatusPending})

	e, removed, ok := l.Retarget("tmp_abc", "u_1")
	require.True(t, ok)
	assert.Nil(t, removed)
	assert.Equal(t, "u_1", e.Message.Mid)
	assert.Empty(t, e.Message.TempID)
	assert.Equal(t, "b_u_1", e.Bubble().ID)

	_, ok = l.Get("tmp_abc")
	assert.False(t, ok)
	got, ok := l.Get("u_1")
	require.True(t, ok)
	assert.Same(t, e, got)

	_, _, ok = l.Retarget("tmp_gone", "u_2")
	assert.False(t, ok)
}

func TestMessageLog_RetargetOntoExistingMid(t *testing.T) {
	l := NewMessageLog()
	echo, _ := l.Add(domain.Message{Mid: "u_1", Role: domain.RoleUser, Text: "hello"})
	tmp, _ := l.Add(domain.Message{Mid: "tmp_abc", Role: domain.RoleUser, Text: "hello", Status: domain.StatusPending})

	e, removed, ok := l.Retarget("tmp_abc", "u_1")
	require.True(t, ok)
	assert.Same(t, echo, e)
	assert.Same(t, tmp, removed)
	assert.Equal(t, 1, l.Len())
}

func TestMessageLog_RemoteMids(t *testing.T) {
	l := NewMessageLog()
	l.Add(domain.Message{Mid: "u_1", Role: domain.RoleUser})
	l.Add(domain.Message{Mid: "a_1", Role: domain.RoleAgent})
	l.Add(domain.Message{Role: domain.RoleAgent})
	l.Add(domain.Message{Mid: "b_1", Role: domain.RoleBot})

	assert.Equal(t, []string{"a_1", "b_1"}, l.RemoteMids())

	l.Reset()
	assert.Empty(t, l.RemoteMids())
	assert.Equal(t, 0, l.Len())

	e, _ := l.Add(domain.Message{Mid: "a_2", Role: domain.RoleAgent})
	assert.Equal(t, 5, e.Seq, "sequence numbers survive a reset")
}

func TestEntry_BubbleWhileRevealing(t *testing.T) {
	e := &Entry{Seq: 3, Message: domain.Message{Mid: "a_1", Role: domain.RoleAgent, Text: "héllo", Status: domain.StatusSent}}
	e.Revealing = true
	e.Shown = 2

	b := e.Bubble()
	assert.Equal(t, "hé", b.Text)
	assert.True(t, b.Caret)
	assert.Equal(t, "b_a_1", b.ID)

	e.Revealing = false
	assert.Equal(t, "héllo", e.Bubble().Text)
	assert.False(t, e.Bubble().Caret)
}

func TestBadge(t *testing.T) {
	var b Badge
	b.Increment("first message", 5)
	assert.Equal(t, 1, b.Count)
	assert.Equal(t, "first", b.Preview)

	b.Increment("second", 60)
	assert.Equal(t, 2, b.Count)
	assert.Equal(t, "second", b.Preview)

	b.HidePreview()
	assert.Equal(t, 2, b.Count)
	assert.Empty(t, b.Preview)

	b.Reset()
	assert.Equal(t, Badge{}, b)
}

func TestLocalTyping(t *testing.T) {
	var lt LocalTyping
	assert.True(t, lt.Keystroke())
	assert.False(t, lt.Keystroke())
	assert.True(t, lt.Signaled())

	lt.Stop()
	assert.False(t, lt.Signaled())
	assert.True(t, lt.Keystroke())
}

func TestPresenceLabel(t *testing.T) {
	assert.Equal(t, "Admin Online", PresenceLabel(true))
	assert.Equal(t, "AI Assistant", PresenceLabel(false))
}
