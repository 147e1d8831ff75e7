package interactions

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/Pincer-org/Pincer-sub000/src/rest"
	"github.com/Pincer-org/Pincer-sub000/src/structs"
)

// InteractionAPI provides the responding half of the interactions
// surface: callbacks, followups and original-response management.
// Source: https://discord.com/developers/docs/interactions/receiving-and-responding
type InteractionAPI struct {
	rest *rest.REST
}

func NewInteractionAPI(r *rest.REST) *InteractionAPI {
	return &InteractionAPI{rest: r}
}

// Routes

func callbackRoute(interactionID string, interactionToken string, withResponse bool) string {
	route := fmt.Sprintf("/interactions/%s/%s/callback", interactionID, interactionToken)
	if withResponse {
		q := url.Values{}
		q.Set("with_response", "true")
		route += "?" + q.Encode()
	}
	return route
}

func followupRoute(applicationID string, interactionToken string) string {
	return fmt.Sprintf("/webhooks/%s/%s", applicationID, interactionToken)
}

func originalRoute(applicationID string, interactionToken string, threadID string) string {
	route := fmt.Sprintf("/webhooks/%s/%s/messages/@original", applicationID, interactionToken)
	if threadID != "" {
		q := url.Values{}
		q.Set("thread_id", threadID)
		route += "?" + q.Encode()
	}
	return route
}

type CreateInteractionResponse struct {
	InteractionResponse *structs.InteractionResponse
	WithResponse        bool
}

// Methods

func (i *InteractionAPI) Reply(ctx context.Context, interactionID string, interactionToken string, options CreateInteractionResponse) error {
	route := callbackRoute(interactionID, interactionToken, options.WithResponse)
	_, err := i.rest.Post(ctx, route, options.InteractionResponse)
	return err
}

// Followup posts an additional message after the initial response.
func (i *InteractionAPI) Followup(ctx context.Context, applicationID string, interactionToken string, data *structs.InteractionResponseDataMessage) (*structs.Message, error) {
	raw, err := i.rest.Post(ctx, followupRoute(applicationID, interactionToken), data)
	if err != nil {
		return nil, err
	}
	msg := &structs.Message{}
	if err := json.Unmarshal(raw, msg); err != nil {
		return nil, err
	}
	return msg, nil
}

type GetOriginalOptions struct {
	ThreadID string
}

func (i *InteractionAPI) GetOriginal(ctx context.Context, applicationID string, interactionToken string, options GetOriginalOptions) (*structs.Message, error) {
	raw, err := i.rest.Get(ctx, originalRoute(applicationID, interactionToken, options.ThreadID))
	if err != nil {
		return nil, err
	}
	msg := &structs.Message{}
	if err := json.Unmarshal(raw, msg); err != nil {
		return nil, err
	}
	return msg, nil
}

func (i *InteractionAPI) EditOriginal(ctx context.Context, applicationID string, interactionToken string, data *structs.InteractionResponseDataMessage) (*structs.Message, error) {
	raw, err := i.rest.Request(ctx, http.MethodPatch, originalRoute(applicationID, interactionToken, ""), data)
	if err != nil {
		return nil, err
	}
	msg := &structs.Message{}
	if err := json.Unmarshal(raw, msg); err != nil {
		return nil, err
	}
	return msg, nil
}

func (i *InteractionAPI) DeleteOriginal(ctx context.Context, applicationID string, interactionToken string) error {
	_, err := i.rest.Delete(ctx, originalRoute(applicationID, interactionToken, ""))
	return err
}
