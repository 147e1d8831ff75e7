package structs

type GuildMemberFlag = int

const (
	GuildMemberFlagDidRejoin        GuildMemberFlag = 1 << 0
	GuildMemberCompletedOnboarding  GuildMemberFlag = 1 << 1
	GuildMemberByPassesVerification GuildMemberFlag = 1 << 2
	GuildMemberStartedOnboarding    GuildMemberFlag = 1 << 3
	GuildMemberIsGuest              GuildMemberFlag = 1 << 4
)

type Member struct {
	User        User            `json:"user,omitempty"`
	Nick        string          `json:"nick,omitempty"`
	Avatar      string          `json:"avatar,omitempty"`
	Roles       []string        `json:"roles,omitempty"`
	Deaf        bool            `json:"deaf,omitempty"`
	Mute        bool            `json:"mute,omitempty"`
	Flags       GuildMemberFlag `json:"flags,omitempty"`
	Pending     bool            `json:"pending,omitempty"`
	Permissions string          `json:"permissions,omitempty"`
}
