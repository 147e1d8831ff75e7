package gateway

// https://discord.com/developers/docs/events/gateway#gateway-intents
type GatewayIntent = uint64

const (
	IntentNone GatewayIntent = 0

	GuildsIntent                      GatewayIntent = 1 << 0
	GuildMembersIntent                GatewayIntent = 1 << 1
	GuildModerationIntent             GatewayIntent = 1 << 2
	GuildExpressionIntent             GatewayIntent = 1 << 3
	GuildIntegrationsIntent           GatewayIntent = 1 << 4
	GuildWebhooksIntent               GatewayIntent = 1 << 5
	GuildInvitesIntent                GatewayIntent = 1 << 6
	GuildVoiceStatesIntent            GatewayIntent = 1 << 7
	GuildPresencesIntent              GatewayIntent = 1 << 8
	GuildMessagesIntent               GatewayIntent = 1 << 9
	GuildMessageReactionIntent        GatewayIntent = 1 << 10
	GuildMessageTypingIntent          GatewayIntent = 1 << 11
	DirectMessageIntent               GatewayIntent = 1 << 12
	DirectMessageReactionIntent       GatewayIntent = 1 << 13
	DirectMessageTypingIntent         GatewayIntent = 1 << 14
	MessageContentIntent              GatewayIntent = 1 << 15
	GuildScheduledEventsIntent        GatewayIntent = 1 << 16
	AutoModerationConfigurationIntent GatewayIntent = 1 << 20
	AutoModerationExecutionIntent     GatewayIntent = 1 << 21
	GuildMessagePollsIntent           GatewayIntent = 1 << 24
	DirectMessagePollsIntent          GatewayIntent = 1 << 25
)

// CombineIntents folds a list of intent flags into the bitset the
// IDENTIFY payload carries.
func CombineIntents(intents ...GatewayIntent) GatewayIntent {
	var v GatewayIntent
	for _, i := range intents {
		v |= i
	}
	return v
}
