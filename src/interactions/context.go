package interactions

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/Pincer-org/Pincer-sub000/src/rest"
	"github.com/Pincer-org/Pincer-sub000/src/structs"
)

// CommandContext is handed to every command handler. It exposes the
// interaction, typed access to its options, and the reply surface.
type CommandContext struct {
	Interaction *structs.Interaction
	Command     *Command

	api   *InteractionAPI
	restc *rest.REST
	opts  map[string]structs.InteractionDataOption

	mu       sync.Mutex
	replied  bool
	inline   bool
	captured *structs.InteractionResponse
}

func newCommandContext(i *structs.Interaction, cmd *Command, api *InteractionAPI, restc *rest.REST, opts []structs.InteractionDataOption) *CommandContext {
	m := make(map[string]structs.InteractionDataOption, len(opts))
	for _, o := range opts {
		m[o.Name] = o
	}
	return &CommandContext{
		Interaction: i,
		Command:     cmd,
		api:         api,
		restc:       restc,
		opts:        m,
	}
}

func (cc *CommandContext) option(name string) (structs.InteractionDataOption, bool) {
	o, ok := cc.opts[name]
	return o, ok
}

func (cc *CommandContext) StringOption(name string) (string, bool) {
	o, ok := cc.option(name)
	if !ok {
		return "", false
	}
	var v string
	if json.Unmarshal(o.Value, &v) != nil {
		return "", false
	}
	return v, true
}

func (cc *CommandContext) IntOption(name string) (int64, bool) {
	o, ok := cc.option(name)
	if !ok {
		return 0, false
	}
	var v int64
	if json.Unmarshal(o.Value, &v) != nil {
		return 0, false
	}
	return v, true
}

func (cc *CommandContext) FloatOption(name string) (float64, bool) {
	o, ok := cc.option(name)
	if !ok {
		return 0, false
	}
	var v float64
	if json.Unmarshal(o.Value, &v) != nil {
		return 0, false
	}
	return v, true
}

func (cc *CommandContext) BoolOption(name string) (bool, bool) {
	o, ok := cc.option(name)
	if !ok {
		return false, false
	}
	var v bool
	if json.Unmarshal(o.Value, &v) != nil {
		return false, false
	}
	return v, true
}

func (cc *CommandContext) optionID(name string) (string, bool) {
	o, ok := cc.option(name)
	if !ok {
		return "", false
	}
	var id string
	if json.Unmarshal(o.Value, &id) != nil {
		return "", false
	}
	return id, true
}

func (cc *CommandContext) resolved() *structs.ResolvedData {
	if cc.Interaction.Data == nil {
		return nil
	}
	return cc.Interaction.Data.Resolved
}

// UserOption resolves a user option: the interaction's resolved data
// first, a REST fetch as fallback.
func (cc *CommandContext) UserOption(ctx context.Context, name string) (*structs.User, error) {
	id, ok := cc.optionID(name)
	if !ok {
		return nil, fmt.Errorf("no user option %q", name)
	}
	if r := cc.resolved(); r != nil {
		if u, ok := r.Users[id]; ok {
			return &u, nil
		}
	}
	return cc.restc.GetUser(ctx, id)
}

// ChannelOption resolves a channel option the same way.
func (cc *CommandContext) ChannelOption(ctx context.Context, name string) (*structs.Channel, error) {
	id, ok := cc.optionID(name)
	if !ok {
		return nil, fmt.Errorf("no channel option %q", name)
	}
	if r := cc.resolved(); r != nil {
		if ch, ok := r.Channels[id]; ok {
			return &ch, nil
		}
	}
	return cc.restc.GetChannel(ctx, id)
}

// RoleOption resolves from the interaction payload only; there is no
// single-role fetch endpoint.
func (cc *CommandContext) RoleOption(name string) (*structs.Role, error) {
	id, ok := cc.optionID(name)
	if !ok {
		return nil, fmt.Errorf("no role option %q", name)
	}
	if r := cc.resolved(); r != nil {
		if role, ok := r.Roles[id]; ok {
			return &role, nil
		}
	}
	return nil, fmt.Errorf("role %s not present in resolved data", id)
}

// TargetUser returns the resolved target of a user context menu
// command.
func (cc *CommandContext) TargetUser() (*structs.User, bool) {
	d := cc.Interaction.Data
	if d == nil || d.TargetID == "" {
		return nil, false
	}
	if r := cc.resolved(); r != nil {
		if u, ok := r.Users[d.TargetID]; ok {
			return &u, true
		}
	}
	return nil, false
}

// TargetMessage returns the resolved target of a message context
// menu command.
func (cc *CommandContext) TargetMessage() (*structs.Message, bool) {
	d := cc.Interaction.Data
	if d == nil || d.TargetID == "" {
		return nil, false
	}
	if r := cc.resolved(); r != nil {
		if m, ok := r.Messages[d.TargetID]; ok {
			return &m, true
		}
	}
	return nil, false
}

// Replied reports whether an initial response has been sent.
func (cc *CommandContext) Replied() bool {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	return cc.replied
}

// Reply sends the initial interaction response. On the webhook ingress
// path the response is captured and returned inline instead of being
// posted back.
func (cc *CommandContext) Reply(ctx context.Context, data *structs.InteractionResponseDataMessage) error {
	return cc.respond(ctx, &structs.InteractionResponse{
		Type: structs.InteractionResponseTypeChannelMessageWithSource,
		Data: data,
	})
}

// ReplyContent replies with plain text.
func (cc *CommandContext) ReplyContent(ctx context.Context, content string) error {
	return cc.Reply(ctx, &structs.InteractionResponseDataMessage{Content: content})
}

// Defer acknowledges the interaction so a slow handler can follow up
// later.
func (cc *CommandContext) Defer(ctx context.Context) error {
	return cc.respond(ctx, &structs.InteractionResponse{
		Type: structs.InteractionResponseTypeDeferredChannelMessageWithSource,
	})
}

func (cc *CommandContext) respond(ctx context.Context, res *structs.InteractionResponse) error {
	cc.mu.Lock()
	if cc.replied {
		cc.mu.Unlock()
		return fmt.Errorf("interaction %s already replied", cc.Interaction.ID)
	}
	cc.replied = true
	inline := cc.inline
	if inline {
		cc.captured = res
	}
	cc.mu.Unlock()
	if inline {
		return nil
	}
	return cc.api.Reply(ctx, cc.Interaction.ID, cc.Interaction.Token, CreateInteractionResponse{InteractionResponse: res})
}

// Followup posts an additional message after the initial response.
func (cc *CommandContext) Followup(ctx context.Context, data *structs.InteractionResponseDataMessage) (*structs.Message, error) {
	return cc.api.Followup(ctx, cc.Interaction.ApplicationID, cc.Interaction.Token, data)
}
