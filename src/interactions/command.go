package interactions

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"github.com/Pincer-org/Pincer-sub000/src/structs"
)

// Command name shapes per type.
// https://discord.com/developers/docs/interactions/application-commands
var (
	chatInputNameRe = regexp.MustCompile(`^[a-z0-9_-]{1,32}$`)
	contextNameRe   = regexp.MustCompile(`^[\w\- ]{1,32}$`)
	snowflakeRe     = regexp.MustCompile(`^[0-9]{15,21}$`)
)

const (
	maxDescriptionLen = 100
	maxOptions        = 25
	maxChoices        = 25
)

type CooldownScope = uint8

const (
	ScopeGlobal  CooldownScope = 0
	ScopeGuild   CooldownScope = 1
	ScopeChannel CooldownScope = 2
	ScopeUser    CooldownScope = 3
)

// Cooldown throttles a command with a sliding window: at most Limit
// invocations per Window for each scope key.
type Cooldown struct {
	Limit  int
	Window time.Duration
	Scope  CooldownScope
}

// CommandHandler is the user function behind a command. The returned
// value becomes the reply: a string or message data replies directly,
// a slice replies with the first element and follows up with the
// rest, nil means the handler replied (or deferred) itself.
type CommandHandler func(ctx context.Context, cc *CommandContext) (interface{}, error)

// Command is the local definition of one interaction command.
// Group/SubGroup are a client-side flattening: the wire shape nests
// them as SUB_COMMAND_GROUP / SUB_COMMAND options at sync time.
type Command struct {
	Name              string
	Type              structs.AppCmdType
	Description       string
	GuildID           string // empty means global
	Group             string
	SubGroup          string
	DefaultPermission *bool
	Options           []Option
	Cooldown          *Cooldown
	Handler           CommandHandler
}

// Option describes one command argument. Use the typed constructors
// plus the With* chain instead of building the struct by hand.
type Option struct {
	Type         structs.AppCmdOptionType
	Name         string
	Description  string
	Required     bool
	Choices      []structs.AppCmdOptionChoice
	ChannelTypes []structs.ChannelType
	MinValue     *float64
	MaxValue     *float64
}

func newOption(t structs.AppCmdOptionType, name string, description string) Option {
	return Option{Type: t, Name: name, Description: description}
}

func StringOption(name, description string) Option {
	return newOption(structs.AppCmdOptionTypeString, name, description)
}

func IntegerOption(name, description string) Option {
	return newOption(structs.AppCmdOptionTypeInteger, name, description)
}

func BooleanOption(name, description string) Option {
	return newOption(structs.AppCmdOptionTypeBoolean, name, description)
}

func NumberOption(name, description string) Option {
	return newOption(structs.AppCmdOptionTypeNumber, name, description)
}

func UserOption(name, description string) Option {
	return newOption(structs.AppCmdOptionTypeUser, name, description)
}

func ChannelOption(name, description string) Option {
	return newOption(structs.AppCmdOptionTypeChannel, name, description)
}

func RoleOption(name, description string) Option {
	return newOption(structs.AppCmdOptionTypeRole, name, description)
}

func MentionableOption(name, description string) Option {
	return newOption(structs.AppCmdOptionTypeMentionable, name, description)
}

func (o Option) WithRequired() Option {
	o.Required = true
	return o
}

func (o Option) WithChoices(choices ...structs.AppCmdOptionChoice) Option {
	o.Choices = choices
	return o
}

func (o Option) WithChannelTypes(types ...structs.ChannelType) Option {
	o.ChannelTypes = types
	return o
}

func (o Option) WithMinValue(v float64) Option {
	o.MinValue = &v
	return o
}

func (o Option) WithMaxValue(v float64) Option {
	o.MaxValue = &v
	return o
}

func (o Option) isNumeric() bool {
	return o.Type == structs.AppCmdOptionTypeInteger || o.Type == structs.AppCmdOptionTypeNumber
}

// validate runs every registration-time constraint.
func (c *Command) validate() error {
	if c.Handler == nil {
		return fmt.Errorf("%w: %q", ErrNilHandler, c.Name)
	}
	switch c.effectiveType() {
	case structs.AppCmdTypeChatInput:
		if !chatInputNameRe.MatchString(c.Name) {
			return fmt.Errorf("%w: %q", ErrInvalidCommandName, c.Name)
		}
		for _, name := range []string{c.Group, c.SubGroup} {
			if name != "" && !chatInputNameRe.MatchString(name) {
				return fmt.Errorf("%w: %q", ErrInvalidCommandName, name)
			}
		}
		if c.SubGroup != "" && c.Group == "" {
			return fmt.Errorf("%w: sub-group without group on %q", ErrInvalidOption, c.Name)
		}
	case structs.AppCmdTypeUser, structs.AppCmdTypeMessage:
		if !contextNameRe.MatchString(c.Name) {
			return fmt.Errorf("%w: %q", ErrInvalidCommandName, c.Name)
		}
		if c.Group != "" || c.SubGroup != "" || len(c.Options) > 0 {
			return fmt.Errorf("%w: context menu commands take no options", ErrInvalidOption)
		}
	default:
		return fmt.Errorf("unknown command type %d", c.Type)
	}
	if c.GuildID != "" && !snowflakeRe.MatchString(c.GuildID) {
		return fmt.Errorf("%w: %q", ErrInvalidCommandGuild, c.GuildID)
	}
	if len(c.Description) > maxDescriptionLen {
		return fmt.Errorf("%w: %q", ErrDescriptionTooLong, c.Name)
	}
	if len(c.Options) > maxOptions {
		return fmt.Errorf("%w: %q", ErrTooManyOptions, c.Name)
	}
	for _, o := range c.Options {
		if err := o.validate(); err != nil {
			return fmt.Errorf("%s: %w", c.Name, err)
		}
	}
	return nil
}

func (o Option) validate() error {
	if !chatInputNameRe.MatchString(o.Name) {
		return fmt.Errorf("%w: option %q", ErrInvalidCommandName, o.Name)
	}
	if len(o.Description) > maxDescriptionLen {
		return fmt.Errorf("%w: option %q", ErrDescriptionTooLong, o.Name)
	}
	if len(o.Choices) > maxChoices {
		return fmt.Errorf("%w: option %q", ErrTooManyChoices, o.Name)
	}
	for _, ch := range o.Choices {
		if !o.choiceMatches(ch.Value) {
			return fmt.Errorf("%w: choice %q does not match option type", ErrInvalidOption, ch.Name)
		}
	}
	if (o.MinValue != nil || o.MaxValue != nil) && !o.isNumeric() {
		return fmt.Errorf("%w: min/max on non-numeric option %q", ErrInvalidOption, o.Name)
	}
	if len(o.ChannelTypes) > 0 && o.Type != structs.AppCmdOptionTypeChannel {
		return fmt.Errorf("%w: channel_types on non-channel option %q", ErrInvalidOption, o.Name)
	}
	return nil
}

// choiceMatches checks a choice value against the option scalar type.
func (o Option) choiceMatches(v interface{}) bool {
	switch o.Type {
	case structs.AppCmdOptionTypeString:
		_, ok := v.(string)
		return ok
	case structs.AppCmdOptionTypeInteger:
		switch v.(type) {
		case int, int32, int64:
			return true
		case float64:
			f := v.(float64)
			return f == float64(int64(f))
		}
		return false
	case structs.AppCmdOptionTypeNumber:
		switch v.(type) {
		case float32, float64, int, int64:
			return true
		}
		return false
	default:
		return false
	}
}

func (c *Command) effectiveType() structs.AppCmdType {
	if c.Type == 0 {
		return structs.AppCmdTypeChatInput
	}
	return c.Type
}

func (o Option) wire() structs.AppCmdOption {
	return structs.AppCmdOption{
		Type:         o.Type,
		Name:         o.Name,
		Description:  o.Description,
		Required:     o.Required,
		Choices:      o.Choices,
		ChannelTypes: o.ChannelTypes,
		MinValue:     o.MinValue,
		MaxValue:     o.MaxValue,
	}
}
