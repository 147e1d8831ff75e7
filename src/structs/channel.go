package structs

type ChannelType = uint8

const (
	ChannelTypeGuildText         ChannelType = 0
	ChannelTypeDM                ChannelType = 1
	ChannelTypeGuildVoice        ChannelType = 2
	ChannelTypeGroupDM           ChannelType = 3
	ChannelTypeGuildCategory     ChannelType = 4
	ChannelTypeGuildAnnouncement ChannelType = 5
	ChannelTypeAnnouncementThead ChannelType = 10
	ChannelTypePublicThread      ChannelType = 11
	ChannelTypePrivateThread     ChannelType = 12
	ChannelTypeGuildStageVoice   ChannelType = 13
	ChannelTypeGuildForum        ChannelType = 15
	ChannelTypeGuildMedia        ChannelType = 16
)

type Channel struct {
	ID       string      `json:"id"`
	Type     ChannelType `json:"type"`
	GuildID  string      `json:"guild_id,omitempty"`
	Name     string      `json:"name,omitempty"`
	Topic    string      `json:"topic,omitempty"`
	Position int         `json:"position,omitempty"`
	ParentID string      `json:"parent_id,omitempty"`
	NSFW     bool        `json:"nsfw,omitempty"`
}
