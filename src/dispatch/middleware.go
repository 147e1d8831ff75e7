package dispatch

import (
	"context"
	"encoding/json"

	"github.com/Pincer-org/Pincer-sub000/src/structs"
)

// Default middlewares: one per known gateway event, lowering the raw
// payload into the typed argument its handlers receive. Each can be
// replaced with Override.
func (d *Dispatcher) registerDefaults() {
	d.middlewares["ready"] = decodeInto[structs.ReadyEvent](EventReady)
	d.middlewares["resumed"] = passthrough(EventResumed)
	d.middlewares["guild_create"] = decodeInto[structs.Guild](EventGuildCreate)
	d.middlewares["guild_update"] = decodeInto[structs.Guild](EventGuildUpdate)
	d.middlewares["guild_delete"] = decodeInto[structs.UnavailableGuild](EventGuildDelete)
	d.middlewares["channel_create"] = decodeInto[structs.Channel](EventChannelCreate)
	d.middlewares["channel_update"] = decodeInto[structs.Channel](EventChannelUpdate)
	d.middlewares["channel_delete"] = decodeInto[structs.Channel](EventChannelDelete)
	d.middlewares["message_create"] = decodeInto[structs.Message](EventMessageCreate)
	d.middlewares["interaction_create"] = decodeInto[structs.Interaction](EventInteractionCreate)
}

// decodeInto builds a middleware that unmarshals the frame data into
// T and emits a pointer to it.
func decodeInto[T any](emit string) Middleware {
	return func(_ context.Context, e *structs.RawEvent) (string, []interface{}, error) {
		v := new(T)
		if len(e.D) > 0 {
			if err := json.Unmarshal(e.D, v); err != nil {
				return "", nil, err
			}
		}
		return emit, []interface{}{v}, nil
	}
}

// passthrough emits the raw frame unchanged.
func passthrough(emit string) Middleware {
	return func(_ context.Context, e *structs.RawEvent) (string, []interface{}, error) {
		return emit, []interface{}{e}, nil
	}
}
