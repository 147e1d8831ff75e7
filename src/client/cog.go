package client

import (
	"fmt"
	"sync"

	"github.com/Pincer-org/Pincer-sub000/src/dispatch"
	"github.com/Pincer-org/Pincer-sub000/src/interactions"
)

// Cog bundles commands and event handlers so they load and unload as
// one unit.
type Cog struct {
	name      string
	commands  []*interactions.Command
	listeners []cogListener

	mu     sync.Mutex
	tokens []cogToken
	loaded bool
}

type cogListener struct {
	event   string
	handler dispatch.Handler
}

type cogToken struct {
	event string
	id    string
}

func NewCog(name string) *Cog {
	return &Cog{name: name}
}

func (c *Cog) Name() string { return c.name }

// Command adds a command to the bundle.
func (c *Cog) Command(cmd *interactions.Command) *Cog {
	c.commands = append(c.commands, cmd)
	return c
}

// Listen adds an event handler to the bundle.
func (c *Cog) Listen(event string, h dispatch.Handler) *Cog {
	c.listeners = append(c.listeners, cogListener{event: event, handler: h})
	return c
}

// LoadCog registers everything the cog declares. A command collision
// rolls the whole load back.
func (cl *Client) LoadCog(cog *Cog) error {
	cog.mu.Lock()
	defer cog.mu.Unlock()
	if cog.loaded {
		return fmt.Errorf("cog %q is already loaded", cog.name)
	}
	cl.cogMu.Lock()
	if _, exists := cl.cogs[cog.name]; exists {
		cl.cogMu.Unlock()
		return fmt.Errorf("cog %q name is taken", cog.name)
	}
	cl.cogMu.Unlock()

	var registered []*interactions.Command
	for _, cmd := range cog.commands {
		if err := cl.registry.Register(cmd); err != nil {
			for _, done := range registered {
				cl.registry.Remove(done)
			}
			return fmt.Errorf("load cog %q: %w", cog.name, err)
		}
		registered = append(registered, cmd)
	}
	for _, l := range cog.listeners {
		id := cl.dispatcher.Register(l.event, l.handler)
		cog.tokens = append(cog.tokens, cogToken{event: l.event, id: id})
	}
	cog.loaded = true
	cl.cogMu.Lock()
	cl.cogs[cog.name] = cog
	cl.cogMu.Unlock()
	cl.log.Info().Str("cog", cog.name).Int("commands", len(cog.commands)).Msg("cog loaded")
	return nil
}

// UnloadCog removes every command and handler the cog registered.
func (cl *Client) UnloadCog(name string) error {
	cl.cogMu.Lock()
	cog, ok := cl.cogs[name]
	if ok {
		delete(cl.cogs, name)
	}
	cl.cogMu.Unlock()
	if !ok {
		return fmt.Errorf("cog %q is not loaded", name)
	}
	cog.mu.Lock()
	defer cog.mu.Unlock()
	for _, cmd := range cog.commands {
		cl.registry.Remove(cmd)
	}
	for _, t := range cog.tokens {
		cl.dispatcher.Unregister(t.event, t.id)
	}
	cog.tokens = nil
	cog.loaded = false
	cl.log.Info().Str("cog", name).Msg("cog unloaded")
	return nil
}
