package structs

import "encoding/json"

type InteractionType = uint8

const (
	InteractionTypePing                           InteractionType = 1
	InteractionTypeApplicationCommand             InteractionType = 2
	InteractionTypeMessageComponent               InteractionType = 3
	InteractionTypeApplicationCommandAutocomplete InteractionType = 4
	InteractionTypeModalSubmit                    InteractionType = 5
)

type InteractionContextType = uint8

const (
	InteractionContextTypeGuild          InteractionContextType = 0
	InteractionContextTypeBotDM          InteractionContextType = 1
	InteractionContextTypePrivateChannel InteractionContextType = 2
)

// InteractionDataOption mirrors Discord's nested option tree. For
// subcommand invocations the value options live under one or two
// levels of SUB_COMMAND_GROUP / SUB_COMMAND wrappers.
type InteractionDataOption struct {
	Name    string                  `json:"name"`
	Type    AppCmdOptionType        `json:"type"`
	Value   json.RawMessage         `json:"value,omitempty"`
	Options []InteractionDataOption `json:"options,omitempty"`
	Focused bool                    `json:"focused,omitempty"`
}

// ResolvedData carries full objects for ids referenced by options.
type ResolvedData struct {
	Users    map[string]User    `json:"users,omitempty"`
	Members  map[string]Member  `json:"members,omitempty"`
	Roles    map[string]Role    `json:"roles,omitempty"`
	Channels map[string]Channel `json:"channels,omitempty"`
	Messages map[string]Message `json:"messages,omitempty"`
}

type InteractionApplicationCommandData struct {
	ID       string                  `json:"id"`
	Name     string                  `json:"name"`
	Type     AppCmdType              `json:"type"`
	Resolved *ResolvedData           `json:"resolved,omitempty"`
	Options  []InteractionDataOption `json:"options,omitempty"`
	GuildID  string                  `json:"guild_id,omitempty"`
	TargetID string                  `json:"target_id,omitempty"`
}

type Interaction struct {
	ID             string                             `json:"id"`
	ApplicationID  string                             `json:"application_id"`
	Type           InteractionType                    `json:"type"`
	Data           *InteractionApplicationCommandData `json:"data,omitempty"`
	GuildID        string                             `json:"guild_id,omitempty"`
	ChannelID      string                             `json:"channel_id,omitempty"`
	Channel        *Channel                           `json:"channel,omitempty"`
	Member         *Member                            `json:"member,omitempty"`
	User           *User                              `json:"user,omitempty"`
	Token          string                             `json:"token"`
	Version        uint                               `json:"version,omitempty"`
	Message        *Message                           `json:"message,omitempty"`
	AppPermissions string                             `json:"app_permissions,omitempty"`
	Locale         string                             `json:"locale,omitempty"`
	GuildLocale    string                             `json:"guild_locale,omitempty"`
	Context        InteractionContextType             `json:"context,omitempty"`
}

// Invoker returns the user behind the interaction regardless of
// whether it arrived from a guild (member) or a DM (user).
func (i *Interaction) Invoker() User {
	if i.Member != nil {
		return i.Member.User
	}
	if i.User != nil {
		return *i.User
	}
	return User{}
}

type InteractionResponseType = uint

const (
	InteractionResponseTypePong                             InteractionResponseType = 1
	InteractionResponseTypeChannelMessageWithSource         InteractionResponseType = 4
	InteractionResponseTypeDeferredChannelMessageWithSource InteractionResponseType = 5
	InteractionResponseTypeDeferredUpdateMessage            InteractionResponseType = 6
	InteractionResponseTypeUpdateMessage                    InteractionResponseType = 7
	InteractionResponseTypeAutoCompleteResult               InteractionResponseType = 8
	InteractionResponseTypeModal                            InteractionResponseType = 9
)

type InteractionResponseDataMessage struct {
	TTS             bool          `json:"tts,omitempty"`
	Content         string        `json:"content,omitempty"`
	Flags           uint          `json:"flags,omitempty"`
	Embeds          []interface{} `json:"embeds,omitempty"`
	AllowedMentions interface{}   `json:"allowed_mentions,omitempty"`
	Components      []interface{} `json:"components,omitempty"`
	Attachments     []Attachment  `json:"attachments,omitempty"`
}

type InteractionResponse struct {
	Type InteractionResponseType         `json:"type"`
	Data *InteractionResponseDataMessage `json:"data,omitempty"`
}
