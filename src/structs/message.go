package structs

// Represent a message sent in a channel within Discord.
// https://discord.com/developers/docs/resources/message

type Message struct {
	ID              string        `json:"id,omitempty"`
	ChannelID       string        `json:"channel_id,omitempty"`
	GuildID         string        `json:"guild_id,omitempty"`
	Author          User          `json:"author,omitempty"`
	Content         string        `json:"content,omitempty"`
	Timestamp       string        `json:"timestamp,omitempty"`
	EditedTimestamp string        `json:"edited_timestamp,omitempty"`
	TTS             bool          `json:"tts,omitempty"`
	MentionEveryone bool          `json:"mention_everyone,omitempty"`
	Nonce           string        `json:"nonce,omitempty"`
	Type            int           `json:"type,omitempty"`
	Embeds          []interface{} `json:"embeds,omitempty"`
	Attachments     []Attachment  `json:"attachments,omitempty"`
	Flags           uint          `json:"flags,omitempty"`
	WebhookID       string        `json:"webhook_id,omitempty"`
}

type Attachment struct {
	ID          string `json:"id"`
	Filename    string `json:"filename"`
	Description string `json:"description,omitempty"`
	ContentType string `json:"content_type,omitempty"`
	Size        int    `json:"size,omitempty"`
	URL         string `json:"url,omitempty"`
}
