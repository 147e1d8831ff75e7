package interactions

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/Pincer-org/Pincer-sub000/src/structs"
)

func fixedClock(start time.Time) (*time.Time, func() time.Time) {
	now := start
	return &now, func() time.Time { return now }
}

func userInteraction(userID string) *structs.Interaction {
	return &structs.Interaction{
		GuildID:   "g1",
		ChannelID: "c1",
		Member:    &structs.Member{User: structs.User{ID: userID}},
	}
}

func TestCooldownSlidingWindow(t *testing.T) {
	cl := newCooldownLimiter()
	now, clock := fixedClock(time.Unix(1000, 0))
	cl.now = clock
	cd := &Cooldown{Limit: 2, Window: 10 * time.Second, Scope: ScopeUser}
	i := userInteraction("u1")

	ok, _ := cl.Allow("ping", cd, i)
	assert.True(t, ok)
	ok, _ = cl.Allow("ping", cd, i)
	assert.True(t, ok)

	ok, retry := cl.Allow("ping", cd, i)
	assert.False(t, ok)
	assert.Equal(t, 10*time.Second, retry)

	// Denied attempts never consume quota, so the wait stays put.
	*now = now.Add(3 * time.Second)
	ok, retry = cl.Allow("ping", cd, i)
	assert.False(t, ok)
	assert.Equal(t, 7*time.Second, retry)

	// The first invocation falls out of the window.
	*now = now.Add(8 * time.Second)
	ok, _ = cl.Allow("ping", cd, i)
	assert.True(t, ok)
}

func TestCooldownScopesAreIndependent(t *testing.T) {
	cl := newCooldownLimiter()
	_, clock := fixedClock(time.Unix(1000, 0))
	cl.now = clock
	cd := &Cooldown{Limit: 1, Window: time.Minute, Scope: ScopeUser}

	ok, _ := cl.Allow("ping", cd, userInteraction("u1"))
	assert.True(t, ok)
	ok, _ = cl.Allow("ping", cd, userInteraction("u1"))
	assert.False(t, ok)

	// A different user has their own window.
	ok, _ = cl.Allow("ping", cd, userInteraction("u2"))
	assert.True(t, ok)
}

func TestCooldownCommandsAreIndependent(t *testing.T) {
	cl := newCooldownLimiter()
	_, clock := fixedClock(time.Unix(1000, 0))
	cl.now = clock
	cd := &Cooldown{Limit: 1, Window: time.Minute, Scope: ScopeGlobal}

	ok, _ := cl.Allow("ping", cd, userInteraction("u1"))
	assert.True(t, ok)
	ok, _ = cl.Allow("echo", cd, userInteraction("u1"))
	assert.True(t, ok)
	ok, _ = cl.Allow("ping", cd, userInteraction("u2"))
	assert.False(t, ok)
}

func TestCooldownGuildAndChannelScopes(t *testing.T) {
	cl := newCooldownLimiter()
	_, clock := fixedClock(time.Unix(1000, 0))
	cl.now = clock

	guildCd := &Cooldown{Limit: 1, Window: time.Minute, Scope: ScopeGuild}
	a := &structs.Interaction{GuildID: "g1", Member: &structs.Member{User: structs.User{ID: "u1"}}}
	b := &structs.Interaction{GuildID: "g1", Member: &structs.Member{User: structs.User{ID: "u2"}}}
	c := &structs.Interaction{GuildID: "g2", Member: &structs.Member{User: structs.User{ID: "u1"}}}

	ok, _ := cl.Allow("ping", guildCd, a)
	assert.True(t, ok)
	ok, _ = cl.Allow("ping", guildCd, b)
	assert.False(t, ok, "same guild shares the window")
	ok, _ = cl.Allow("ping", guildCd, c)
	assert.True(t, ok, "other guild has its own window")

	chanCd := &Cooldown{Limit: 1, Window: time.Minute, Scope: ScopeChannel}
	x := &structs.Interaction{ChannelID: "c1"}
	y := &structs.Interaction{ChannelID: "c2"}
	ok, _ = cl.Allow("echo", chanCd, x)
	assert.True(t, ok)
	ok, _ = cl.Allow("echo", chanCd, x)
	assert.False(t, ok)
	ok, _ = cl.Allow("echo", chanCd, y)
	assert.True(t, ok)
}

func TestNilCooldownAlwaysAllows(t *testing.T) {
	cl := newCooldownLimiter()
	for i := 0; i < 100; i++ {
		ok, _ := cl.Allow("ping", nil, userInteraction("u1"))
		assert.True(t, ok)
	}
}
