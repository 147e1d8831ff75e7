package structs

// Only the fields the core flows touch. Full guild objects carry far
// more; everything else stays opaque.
type Guild struct {
	ID          string      `json:"id"`
	Name        string      `json:"name"`
	OwnerID     string      `json:"owner_id,omitempty"`
	Icon        string      `json:"icon,omitempty"`
	Unavailable bool        `json:"unavailable,omitempty"`
	MemberCount int         `json:"member_count,omitempty"`
	Channels    []Channel   `json:"channels,omitempty"`
	Roles       interface{} `json:"roles,omitempty"`
}

// UnavailableGuild is the stub shape READY delivers before the full
// GUILD_CREATE events arrive.
type UnavailableGuild struct {
	ID          string `json:"id"`
	Unavailable bool   `json:"unavailable"`
}

type Role struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Color       int    `json:"color"`
	Position    int    `json:"position"`
	Permissions string `json:"permissions"`
	Managed     bool   `json:"managed"`
	Mentionable bool   `json:"mentionable"`
}
