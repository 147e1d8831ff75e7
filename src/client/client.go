package client

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/Pincer-org/Pincer-sub000/src/dispatch"
	"github.com/Pincer-org/Pincer-sub000/src/gateway"
	"github.com/Pincer-org/Pincer-sub000/src/interactions"
	"github.com/Pincer-org/Pincer-sub000/src/rest"
	"github.com/Pincer-org/Pincer-sub000/src/structs"
)

const (
	// Spacing between shard identifies; the gateway allows one
	// identify per five seconds per bucket.
	identifySpacing = 5 * time.Second

	shutdownDrainTimeout = 10 * time.Second
)

type Options struct {
	BotToken      string
	ApplicationID string // derived from READY when empty
	Intents       gateway.GatewayIntent

	// ShardCount of zero runs a single unsharded connection.
	// ShardIDs selects which shards this process runs; empty means
	// all of them.
	ShardCount uint
	ShardIDs   []uint

	Compress    bool
	GatewayURL  string
	APIBaseURL  string
	RESTTimeout time.Duration
	RESTMaxTTL  int

	Logger zerolog.Logger
}

// Client is the facade wiring gateway shards, the event dispatcher,
// the REST client and the command registry together. One Client is
// one bot; nothing is process-global, so several can coexist.
type Client struct {
	opts       Options
	rest       *rest.REST
	api        *interactions.InteractionAPI
	dispatcher *dispatch.Dispatcher
	registry   *interactions.Registry
	router     *interactions.Router
	caches     *Caches
	shards     []*gateway.Gateway
	log        zerolog.Logger

	cogMu sync.Mutex
	cogs  map[string]*Cog

	appIDMu sync.RWMutex
	appID   string

	syncOnce sync.Once
	syncDone chan struct{}
}

func New(opts Options) *Client {
	log := opts.Logger
	c := &Client{
		opts: opts,
		rest: rest.NewREST(rest.RESTOptions{
			BotToken: opts.BotToken,
			BaseURL:  opts.APIBaseURL,
			MaxTTL:   opts.RESTMaxTTL,
			Timeout:  opts.RESTTimeout,
			Logger:   log,
		}),
		dispatcher: dispatch.NewDispatcher(log),
		registry:   interactions.NewRegistry(),
		caches:     newCaches(),
		cogs:       make(map[string]*Cog),
		appID:      opts.ApplicationID,
		syncDone:   make(chan struct{}),
		log:        log.With().Str("component", "client").Logger(),
	}
	c.api = interactions.NewInteractionAPI(c.rest)
	c.router = interactions.NewRouter(c.registry, c.api, c.rest, c.dispatcher, c.syncDone, log)
	c.dispatcher.Override("interaction_create", c.router.Middleware)
	c.caches.hook(c.dispatcher)
	c.dispatcher.Register(dispatch.EventReady, c.onReady)
	return c
}

// REST exposes the rate-limited HTTP client for handler code.
func (c *Client) REST() *rest.REST { return c.rest }

// Caches exposes the guild/channel caches.
func (c *Client) Caches() *Caches { return c.caches }

// Router exposes the interaction router; the webhook ingress feeds
// it directly.
func (c *Client) Router() *interactions.Router { return c.router }

// Event registers a handler, e.g. Event("on_message_create", h).
func (c *Client) Event(name string, h dispatch.Handler) string {
	return c.dispatcher.Register(name, h)
}

// Command registers a command definition. Collisions and invalid
// definitions fail here, before anything touches the network.
func (c *Client) Command(cmd *interactions.Command) error {
	return c.registry.Register(cmd)
}

// WaitFor suspends until an event matching the predicate arrives.
func (c *Client) WaitFor(ctx context.Context, event string, pred dispatch.Predicate, timeout time.Duration) ([]interface{}, error) {
	return c.dispatcher.WaitFor(ctx, event, pred, timeout)
}

// LoopFor yields matches until the cumulative timeout elapses.
func (c *Client) LoopFor(ctx context.Context, event string, pred dispatch.Predicate, timeout time.Duration) <-chan []interface{} {
	return c.dispatcher.LoopFor(ctx, event, pred, timeout)
}

// ApplicationID returns the configured or READY-derived application
// id.
func (c *Client) ApplicationID() string {
	c.appIDMu.RLock()
	defer c.appIDMu.RUnlock()
	return c.appID
}

// Run connects every shard and blocks until the context is cancelled
// or all sessions terminate, then shuts down gracefully.
func (c *Client) Run(ctx context.Context) error {
	// Handler and command goroutines derive from the run context so
	// cancellation reaches in-flight REST calls.
	c.dispatcher.Bind(ctx)
	ids := c.opts.ShardIDs
	count := c.opts.ShardCount
	if count == 0 {
		count = 1
	}
	if len(ids) == 0 {
		for i := uint(0); i < count; i++ {
			ids = append(ids, i)
		}
	}
	for _, id := range ids {
		g := gateway.New(gateway.Options{
			BotToken:   c.opts.BotToken,
			Intents:    c.opts.Intents,
			ShardID:    id,
			ShardCount: c.opts.ShardCount,
			Compress:   c.opts.Compress,
			GatewayURL: c.opts.GatewayURL,
			Sink:       c.dispatcher,
			Logger:     c.opts.Logger,
		})
		c.shards = append(c.shards, g)
	}

	for n, g := range c.shards {
		if n > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(identifySpacing):
			}
		}
		if err := g.Open(ctx); err != nil {
			return err
		}
	}
	c.log.Info().Int("shards", len(c.shards)).Msg("client running")

	allDone := make(chan struct{})
	go func() {
		for _, g := range c.shards {
			<-g.Done()
		}
		close(allDone)
	}()
	select {
	case <-ctx.Done():
	case <-allDone:
	}
	c.shutdown(allDone)
	return ctx.Err()
}

// shutdown closes every session, waits for their loops, then drains
// handler goroutines up to a bound.
func (c *Client) shutdown(allDone <-chan struct{}) {
	c.log.Info().Msg("shutting down")
	for _, g := range c.shards {
		g.Close()
	}
	select {
	case <-allDone:
	case <-time.After(shutdownDrainTimeout):
	}
	c.dispatcher.Drain(shutdownDrainTimeout)
	c.log.Info().Msg("client stopped")
}

// onReady runs on every shard READY: it learns the application id on
// the first one and triggers command reconciliation exactly once.
// Shards reaching READY later wait on the same barrier before any
// interaction is routed.
func (c *Client) onReady(ctx context.Context, args ...interface{}) error {
	ready, ok := first[structs.ReadyEvent](args)
	if ok {
		for _, g := range ready.Guilds {
			c.caches.putGuild(&structs.Guild{ID: g.ID, Unavailable: g.Unavailable})
		}
		c.appIDMu.Lock()
		if c.appID == "" {
			c.appID = ready.Application.ID
		}
		c.appIDMu.Unlock()
	}
	c.syncOnce.Do(func() {
		go func() {
			defer close(c.syncDone)
			rc := interactions.NewReconciler(c.registry, c.rest, c.ApplicationID(), c.caches.GuildIDs(), c.opts.Logger)
			if err := rc.Run(ctx); err != nil {
				c.log.Error().Err(err).Msg("command reconciliation failed")
				c.dispatcher.EmitError(ctx, err)
			}
		}()
	})
	return nil
}
