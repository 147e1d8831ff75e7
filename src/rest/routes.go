package rest

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/Pincer-org/Pincer-sub000/src/structs"
)

// Typed endpoints for the routes the core flows exercise.
// https://discord.com/developers/docs/reference#http-api

type GatewayBotResponse struct {
	URL               string `json:"url"`
	Shards            uint   `json:"shards"`
	SessionStartLimit struct {
		Total          int `json:"total"`
		Remaining      int `json:"remaining"`
		ResetAfter     int `json:"reset_after"`
		MaxConcurrency int `json:"max_concurrency"`
	} `json:"session_start_limit"`
}

// GetGateway returns the plain gateway URL; no auth required.
func (r *REST) GetGateway(ctx context.Context) (string, error) {
	data, err := r.Get(ctx, "/gateway")
	if err != nil {
		return "", err
	}
	var res struct {
		URL string `json:"url"`
	}
	if err := json.Unmarshal(data, &res); err != nil {
		return "", err
	}
	return res.URL, nil
}

func (r *REST) GetGatewayBot(ctx context.Context) (*GatewayBotResponse, error) {
	data, err := r.Get(ctx, "/gateway/bot")
	if err != nil {
		return nil, err
	}
	res := &GatewayBotResponse{}
	if err := json.Unmarshal(data, res); err != nil {
		return nil, err
	}
	return res, nil
}

func (r *REST) GetCurrentUser(ctx context.Context) (*structs.User, error) {
	data, err := r.Get(ctx, "/users/@me")
	if err != nil {
		return nil, err
	}
	u := &structs.User{}
	if err := json.Unmarshal(data, u); err != nil {
		return nil, err
	}
	return u, nil
}

func (r *REST) GetUser(ctx context.Context, userID string) (*structs.User, error) {
	data, err := r.Get(ctx, fmt.Sprintf("/users/%s", userID))
	if err != nil {
		return nil, err
	}
	u := &structs.User{}
	if err := json.Unmarshal(data, u); err != nil {
		return nil, err
	}
	return u, nil
}

func (r *REST) GetChannel(ctx context.Context, channelID string) (*structs.Channel, error) {
	data, err := r.Get(ctx, fmt.Sprintf("/channels/%s", channelID))
	if err != nil {
		return nil, err
	}
	ch := &structs.Channel{}
	if err := json.Unmarshal(data, ch); err != nil {
		return nil, err
	}
	return ch, nil
}

type CreateMessageParams struct {
	Content string        `json:"content,omitempty"`
	TTS     bool          `json:"tts,omitempty"`
	Embeds  []interface{} `json:"embeds,omitempty"`
	Nonce   string        `json:"nonce,omitempty"`
	Files   []File        `json:"-"`
}

func (r *REST) CreateMessage(ctx context.Context, channelID string, params CreateMessageParams) (*structs.Message, error) {
	route := fmt.Sprintf("/channels/%s/messages", channelID)
	var data []byte
	var err error
	if len(params.Files) > 0 {
		data, err = r.RequestMultipart(ctx, http.MethodPost, route, params, params.Files)
	} else {
		data, err = r.Post(ctx, route, params)
	}
	if err != nil {
		return nil, err
	}
	msg := &structs.Message{}
	if err := json.Unmarshal(data, msg); err != nil {
		return nil, err
	}
	return msg, nil
}

// Application command endpoints. The guildID discriminates the
// guild-scoped routes from the global ones.

func appCmdsRoute(applicationID string, guildID string) string {
	if guildID == "" {
		return fmt.Sprintf("/applications/%s/commands", applicationID)
	}
	return fmt.Sprintf("/applications/%s/guilds/%s/commands", applicationID, guildID)
}

func (r *REST) GetApplicationCommands(ctx context.Context, applicationID string, guildID string) ([]structs.AppCmd, error) {
	data, err := r.Get(ctx, appCmdsRoute(applicationID, guildID))
	if err != nil {
		return nil, err
	}
	var cmds []structs.AppCmd
	if err := json.Unmarshal(data, &cmds); err != nil {
		return nil, err
	}
	return cmds, nil
}

// CreateApplicationCommand upserts: Discord treats a POST whose name
// matches an existing command as a full update.
func (r *REST) CreateApplicationCommand(ctx context.Context, applicationID string, guildID string, cmd structs.AppCmd) (*structs.AppCmd, error) {
	data, err := r.Post(ctx, appCmdsRoute(applicationID, guildID), cmd)
	if err != nil {
		return nil, err
	}
	created := &structs.AppCmd{}
	if err := json.Unmarshal(data, created); err != nil {
		return nil, err
	}
	return created, nil
}

func (r *REST) DeleteApplicationCommand(ctx context.Context, applicationID string, guildID string, commandID string) error {
	_, err := r.Delete(ctx, fmt.Sprintf("%s/%s", appCmdsRoute(applicationID, guildID), commandID))
	return err
}
