package interactions

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/Pincer-org/Pincer-sub000/src/dispatch"
	"github.com/Pincer-org/Pincer-sub000/src/rest"
	"github.com/Pincer-org/Pincer-sub000/src/structs"
)

// Router turns INTERACTION_CREATE frames into command invocations:
// lookup, option binding, throttling, handler execution and the
// reply/followup plumbing. Failures funnel into on_command_error.
type Router struct {
	registry   *Registry
	cooldowns  *cooldownLimiter
	api        *InteractionAPI
	restc      *rest.REST
	dispatcher *dispatch.Dispatcher
	barrier    <-chan struct{} // closed once reconciliation finished
	log        zerolog.Logger
}

func NewRouter(registry *Registry, api *InteractionAPI, restc *rest.REST, dispatcher *dispatch.Dispatcher, barrier <-chan struct{}, log zerolog.Logger) *Router {
	return &Router{
		registry:   registry,
		cooldowns:  newCooldownLimiter(),
		api:        api,
		restc:      restc,
		dispatcher: dispatcher,
		barrier:    barrier,
		log:        log.With().Str("component", "interactions").Logger(),
	}
}

// Middleware replaces the default interaction_create lowering. The
// command invocation runs on its own goroutine so the shard's receive
// loop is never blocked; the typed interaction still reaches
// on_interaction_create handlers.
func (rt *Router) Middleware(ctx context.Context, e *structs.RawEvent) (string, []interface{}, error) {
	i := &structs.Interaction{}
	if err := json.Unmarshal(e.D, i); err != nil {
		return "", nil, err
	}
	if i.Type == structs.InteractionTypeApplicationCommand {
		// Spawn through the dispatcher so shutdown cancels the
		// invocation's context and Drain waits for it.
		if rt.dispatcher != nil {
			rt.dispatcher.Spawn(func(ctx context.Context) {
				rt.Handle(ctx, i)
			})
		} else {
			go rt.Handle(context.Background(), i)
		}
	}
	return dispatch.EventInteractionCreate, []interface{}{i}, nil
}

// Handle runs one application command end to end.
func (rt *Router) Handle(ctx context.Context, i *structs.Interaction) {
	cc, err := rt.prepare(ctx, i)
	if err != nil {
		rt.commandError(ctx, i, err)
		return
	}
	if cc == nil {
		return
	}
	rt.invoke(ctx, cc)
}

// HandleHTTP is the webhook ingress path: the command runs inline and
// the initial response is returned to be written on the HTTP reply.
func (rt *Router) HandleHTTP(ctx context.Context, i *structs.Interaction) (*structs.InteractionResponse, error) {
	cc, err := rt.prepare(ctx, i)
	if err != nil {
		rt.commandError(ctx, i, err)
		return nil, err
	}
	if cc == nil {
		return nil, ErrUnknownCommand
	}
	cc.inline = true
	rt.invoke(ctx, cc)
	cc.mu.Lock()
	defer cc.mu.Unlock()
	if cc.captured == nil {
		return nil, ErrEmptyCommandReturn
	}
	return cc.captured, nil
}

// prepare resolves the command and applies throttling. A nil context
// with nil error means "no matching command": logged, never replied.
func (rt *Router) prepare(ctx context.Context, i *structs.Interaction) (*CommandContext, error) {
	if rt.barrier != nil {
		select {
		case <-rt.barrier:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if i.Data == nil {
		return nil, fmt.Errorf("interaction %s carries no command data", i.ID)
	}
	name, group, subGroup, opts := unwrapCommand(i.Data)
	typ := i.Data.Type
	if typ == 0 {
		typ = structs.AppCmdTypeChatInput
	}
	cmd, ok := rt.registry.Lookup(name, i.Data.GuildID, typ, group, subGroup)
	if !ok {
		rt.log.Warn().
			Str("command", name).
			Str("group", group).
			Str("guild", i.Data.GuildID).
			Msg("interaction for unknown command")
		return nil, nil
	}
	if allowed, retry := rt.cooldowns.Allow(cmd.Name, cmd.Cooldown, i); !allowed {
		return nil, &CooldownError{Command: cmd.Name, RetryAfter: retry}
	}
	return newCommandContext(i, cmd, rt.api, rt.restc, opts), nil
}

// invoke calls the handler inside an error boundary and turns its
// return value into replies and followups.
func (rt *Router) invoke(ctx context.Context, cc *CommandContext) {
	result, err := callHandler(ctx, cc)
	if err != nil {
		rt.commandError(ctx, cc.Interaction, err)
		return
	}
	if err := rt.deliver(ctx, cc, result); err != nil {
		rt.commandError(ctx, cc.Interaction, err)
	}
}

func callHandler(ctx context.Context, cc *CommandContext) (result interface{}, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("command %q panicked: %v", cc.Command.Name, r)
		}
	}()
	return cc.Command.Handler(ctx, cc)
}

// deliver maps handler return values onto the reply surface. The
// first message replies (unless the handler already did), every
// following one becomes a followup.
func (rt *Router) deliver(ctx context.Context, cc *CommandContext, result interface{}) error {
	var messages []*structs.InteractionResponseDataMessage
	switch v := result.(type) {
	case nil:
	case string:
		messages = append(messages, &structs.InteractionResponseDataMessage{Content: v})
	case *structs.InteractionResponseDataMessage:
		messages = append(messages, v)
	case structs.InteractionResponseDataMessage:
		messages = append(messages, &v)
	case []interface{}:
		for _, item := range v {
			switch m := item.(type) {
			case string:
				messages = append(messages, &structs.InteractionResponseDataMessage{Content: m})
			case *structs.InteractionResponseDataMessage:
				messages = append(messages, m)
			case structs.InteractionResponseDataMessage:
				messages = append(messages, &m)
			default:
				return fmt.Errorf("command %q returned unsupported type %T", cc.Command.Name, item)
			}
		}
	default:
		return fmt.Errorf("command %q returned unsupported type %T", cc.Command.Name, result)
	}

	if len(messages) == 0 {
		if !cc.Replied() {
			return fmt.Errorf("%w: %q", ErrEmptyCommandReturn, cc.Command.Name)
		}
		return nil
	}
	for _, msg := range messages {
		if !cc.Replied() {
			if err := cc.Reply(ctx, msg); err != nil {
				return err
			}
			continue
		}
		if _, err := cc.Followup(ctx, msg); err != nil {
			return err
		}
	}
	return nil
}

// commandError routes a failure to on_command_error; with nobody
// registered there it falls through to the dispatcher's on_error
// handling.
func (rt *Router) commandError(ctx context.Context, i *structs.Interaction, err error) {
	if err == nil || rt.dispatcher == nil {
		return
	}
	if !rt.dispatcher.HasHandlers(dispatch.EventCommandError) {
		rt.dispatcher.EmitError(ctx, err)
		return
	}
	rt.dispatcher.Emit(ctx, dispatch.EventCommandError, err, i)
}

// unwrapCommand walks Discord's nested option tree back to the flat
// (group, sub_group, name) identity plus the leaf value options.
func unwrapCommand(d *structs.InteractionApplicationCommandData) (name string, group string, subGroup string, opts []structs.InteractionDataOption) {
	name = d.Name
	opts = d.Options
	if len(d.Options) != 1 {
		return
	}
	switch top := d.Options[0]; top.Type {
	case structs.AppCmdOptionTypeSubCommand:
		group = d.Name
		name = top.Name
		opts = top.Options
	case structs.AppCmdOptionTypeSubCommandGroup:
		group = d.Name
		subGroup = top.Name
		if len(top.Options) == 1 && top.Options[0].Type == structs.AppCmdOptionTypeSubCommand {
			name = top.Options[0].Name
			opts = top.Options[0].Options
		}
	}
	return
}
