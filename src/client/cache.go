package client

import (
	"context"
	"sync"

	"github.com/Pincer-org/Pincer-sub000/src/dispatch"
	"github.com/Pincer-org/Pincer-sub000/src/structs"
)

// Caches hold the guilds and channels the bot currently sees, keyed
// by id and maintained from the CREATE/UPDATE/DELETE events. Other
// entities stay transient.
type Caches struct {
	mu       sync.RWMutex
	guilds   map[string]*structs.Guild
	channels map[string]*structs.Channel
}

func newCaches() *Caches {
	return &Caches{
		guilds:   make(map[string]*structs.Guild),
		channels: make(map[string]*structs.Channel),
	}
}

func (c *Caches) Guild(id string) (*structs.Guild, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	g, ok := c.guilds[id]
	return g, ok
}

func (c *Caches) Channel(id string) (*structs.Channel, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	ch, ok := c.channels[id]
	return ch, ok
}

// GuildIDs lists every cached guild id.
func (c *Caches) GuildIDs() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	ids := make([]string, 0, len(c.guilds))
	for id := range c.guilds {
		ids = append(ids, id)
	}
	return ids
}

func (c *Caches) putGuild(g *structs.Guild) {
	c.mu.Lock()
	c.guilds[g.ID] = g
	for i := range g.Channels {
		ch := g.Channels[i]
		if ch.GuildID == "" {
			ch.GuildID = g.ID
		}
		c.channels[ch.ID] = &ch
	}
	c.mu.Unlock()
}

func (c *Caches) dropGuild(id string) {
	c.mu.Lock()
	delete(c.guilds, id)
	for chID, ch := range c.channels {
		if ch.GuildID == id {
			delete(c.channels, chID)
		}
	}
	c.mu.Unlock()
}

func (c *Caches) putChannel(ch *structs.Channel) {
	c.mu.Lock()
	c.channels[ch.ID] = ch
	c.mu.Unlock()
}

func (c *Caches) dropChannel(id string) {
	c.mu.Lock()
	delete(c.channels, id)
	c.mu.Unlock()
}

// hook wires the cache maintenance handlers into the dispatcher.
func (c *Caches) hook(d *dispatch.Dispatcher) {
	d.Register(dispatch.EventGuildCreate, func(_ context.Context, args ...interface{}) error {
		if g, ok := first[structs.Guild](args); ok {
			c.putGuild(g)
		}
		return nil
	})
	d.Register(dispatch.EventGuildUpdate, func(_ context.Context, args ...interface{}) error {
		if g, ok := first[structs.Guild](args); ok {
			c.putGuild(g)
		}
		return nil
	})
	d.Register(dispatch.EventGuildDelete, func(_ context.Context, args ...interface{}) error {
		if g, ok := first[structs.UnavailableGuild](args); ok {
			c.dropGuild(g.ID)
		}
		return nil
	})
	d.Register(dispatch.EventChannelCreate, func(_ context.Context, args ...interface{}) error {
		if ch, ok := first[structs.Channel](args); ok {
			c.putChannel(ch)
		}
		return nil
	})
	d.Register(dispatch.EventChannelUpdate, func(_ context.Context, args ...interface{}) error {
		if ch, ok := first[structs.Channel](args); ok {
			c.putChannel(ch)
		}
		return nil
	})
	d.Register(dispatch.EventChannelDelete, func(_ context.Context, args ...interface{}) error {
		if ch, ok := first[structs.Channel](args); ok {
			c.dropChannel(ch.ID)
		}
		return nil
	})
}

func first[T any](args []interface{}) (*T, bool) {
	if len(args) == 0 {
		return nil, false
	}
	v, ok := args[0].(*T)
	return v, ok
}
