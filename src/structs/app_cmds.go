package structs

import "encoding/json"

type AppCmdType = uint8

const (
	AppCmdTypeChatInput AppCmdType = 1
	AppCmdTypeUser      AppCmdType = 2
	AppCmdTypeMessage   AppCmdType = 3
)

type AppCmdOptionType = uint8

const (
	AppCmdOptionTypeSubCommand      AppCmdOptionType = 1
	AppCmdOptionTypeSubCommandGroup AppCmdOptionType = 2
	AppCmdOptionTypeString          AppCmdOptionType = 3
	AppCmdOptionTypeInteger         AppCmdOptionType = 4
	AppCmdOptionTypeBoolean         AppCmdOptionType = 5
	AppCmdOptionTypeUser            AppCmdOptionType = 6
	AppCmdOptionTypeChannel         AppCmdOptionType = 7
	AppCmdOptionTypeRole            AppCmdOptionType = 8
	AppCmdOptionTypeMentionable     AppCmdOptionType = 9
	AppCmdOptionTypeNumber          AppCmdOptionType = 10
)

type AppCmdOptionChoice struct {
	Name  string      `json:"name"`
	Value interface{} `json:"value"`
}

type AppCmdOption struct {
	Type         AppCmdOptionType     `json:"type"`
	Name         string               `json:"name"`
	Description  string               `json:"description"`
	Required     bool                 `json:"required,omitempty"`
	Choices      []AppCmdOptionChoice `json:"choices,omitempty"`
	Options      []AppCmdOption       `json:"options,omitempty"`
	ChannelTypes []ChannelType        `json:"channel_types,omitempty"`
	MinValue     *float64             `json:"min_value,omitempty"`
	MaxValue     *float64             `json:"max_value,omitempty"`
}

// AppCmd is the wire shape for application command registration.
type AppCmd struct {
	ID                string         `json:"id,omitempty"`
	Type              AppCmdType     `json:"type,omitempty"`
	ApplicationID     string         `json:"application_id,omitempty"`
	GuildID           string         `json:"guild_id,omitempty"`
	Name              string         `json:"name"`
	Description       string         `json:"description,omitempty"`
	Options           []AppCmdOption `json:"options,omitempty"`
	DefaultPermission *bool          `json:"default_permission,omitempty"`
	NSFW              bool           `json:"nsfw,omitempty"`
	Version           string         `json:"version,omitempty"`
}

// Equivalent reports whether two commands agree on everything the
// client controls. Server-assigned fields (id, application id,
// version) are ignored so a reconciled remote compares equal to its
// local definition.
func (c AppCmd) Equivalent(other AppCmd) bool {
	if c.Name != other.Name || c.normalizedType() != other.normalizedType() ||
		c.Description != other.Description || c.GuildID != other.GuildID ||
		c.NSFW != other.NSFW {
		return false
	}
	if (c.DefaultPermission == nil) != (other.DefaultPermission == nil) {
		return false
	}
	if c.DefaultPermission != nil && *c.DefaultPermission != *other.DefaultPermission {
		return false
	}
	a, _ := json.Marshal(c.Options)
	b, _ := json.Marshal(other.Options)
	return string(a) == string(b)
}

func (c AppCmd) normalizedType() AppCmdType {
	if c.Type == 0 {
		return AppCmdTypeChatInput
	}
	return c.Type
}
