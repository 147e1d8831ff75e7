package gateway

import "strconv"

// ShardForGuild computes which shard receives events for a guild:
// (guild_id >> 22) % shard_count.
// https://discord.com/developers/docs/events/gateway#sharding
func ShardForGuild(guildID string, shardCount uint) uint {
	if shardCount == 0 {
		return 0
	}
	id, err := strconv.ParseUint(guildID, 10, 64)
	if err != nil {
		return 0
	}
	return uint((id >> 22) % uint64(shardCount))
}
