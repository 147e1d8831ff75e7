package structs

import (
	"encoding/json"

	"github.com/rs/zerolog"
)

type EventName = string

const (
	EventNameReady             EventName = "READY"
	EventNameResumed           EventName = "RESUMED"
	EventNameGuildCreate       EventName = "GUILD_CREATE"
	EventNameGuildUpdate       EventName = "GUILD_UPDATE"
	EventNameGuildDelete       EventName = "GUILD_DELETE"
	EventNameChannelCreate     EventName = "CHANNEL_CREATE"
	EventNameChannelUpdate     EventName = "CHANNEL_UPDATE"
	EventNameChannelDelete     EventName = "CHANNEL_DELETE"
	EventNameMessageCreate     EventName = "MESSAGE_CREATE"
	EventNameInteractionCreate EventName = "INTERACTION_CREATE"
)

type EventOpcode = int

// RawEvent is the envelope decoded from every gateway message.
// D stays a RawMessage to delay decoding until the opcode and event
// name have selected the payload struct.
type RawEvent struct {
	Op EventOpcode     `json:"op"`
	D  json.RawMessage `json:"d,omitempty"`
	S  uint64          `json:"s,omitempty"`
	T  EventName       `json:"t,omitempty"`
}

func (re *RawEvent) MarshalZerologObject(e *zerolog.Event) {
	e.Int("op_code", re.Op).
		Uint64("sequence", re.S).
		Str("event_name", re.T)
}

// Event is the envelope for sends.
type Event struct {
	Op EventOpcode `json:"op"`
	D  interface{} `json:"d,omitempty"`
	S  uint64      `json:"s,omitempty"`
	T  EventName   `json:"t,omitempty"`
}

type HelloEvent struct {
	HeartbeatInterval uint `json:"heartbeat_interval"`
}

type IdentifyEventProperties struct {
	Os      string `json:"os"`
	Browser string `json:"browser"`
	Device  string `json:"device"`
}

type IdentifyEvent struct {
	Token          string                  `json:"token"`
	Properties     IdentifyEventProperties `json:"properties"`
	Intents        uint64                  `json:"intents"`
	Compress       bool                    `json:"compress,omitempty"`
	LargeThreshold uint8                   `json:"large_threshold,omitempty"`
	Shard          []uint                  `json:"shard,omitempty"`
	Presence       interface{}             `json:"presence,omitempty"`
}

type ResumeEvent struct {
	Token     string `json:"token"`
	SessionID string `json:"session_id"`
	Seq       uint64 `json:"seq"`
}

type ReadyApplication struct {
	ID    string `json:"id"`
	Flags uint   `json:"flags,omitempty"`
}

type ReadyEvent struct {
	V                int                `json:"v"`
	User             User               `json:"user"`
	Guilds           []UnavailableGuild `json:"guilds"`
	SessionID        string             `json:"session_id"`
	ResumeGatewayURL string             `json:"resume_gateway_url"`
	Shard            []uint             `json:"shard,omitempty"`
	Application      ReadyApplication   `json:"application"`
}

// InvalidSessionEvent carries the bare boolean the server sends with
// opcode 9: true means the session may still be resumed.
type InvalidSessionEvent = bool
