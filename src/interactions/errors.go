package interactions

import (
	"errors"
	"fmt"
	"time"
)

// Registration-time failures. All of these surface when a command is
// registered, never at dispatch time.
var (
	ErrCommandAlreadyRegistered = errors.New("command is already registered")
	ErrInvalidCommandName       = errors.New("invalid command name")
	ErrInvalidCommandGuild      = errors.New("invalid command guild id")
	ErrDescriptionTooLong       = errors.New("command description exceeds 100 characters")
	ErrTooManyOptions           = errors.New("command has more than 25 options")
	ErrTooManyChoices           = errors.New("option has more than 25 choices")
	ErrInvalidOption            = errors.New("invalid option declaration")
	ErrNilHandler               = errors.New("command handler must not be nil")
)

// Runtime failures, routed to on_command_error.
var (
	ErrEmptyCommandReturn = errors.New("command returned nothing and sent no reply")
	ErrUnknownCommand     = errors.New("no matching command registered")
)

// CooldownError reports a throttled invocation. The handler is never
// called for it.
type CooldownError struct {
	Command    string
	RetryAfter time.Duration
}

func (e *CooldownError) Error() string {
	return fmt.Sprintf("command %q is on cooldown, retry in %s", e.Command, e.RetryAfter)
}
