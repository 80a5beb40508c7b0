package gateway

import (
	"sort"

	"github.com/bwmarrin/discordgo"

	"github.com/nidhogg/nuka-bot/internal/command"
)

// discordPermissions maps Discord permission bits to the names command
// descriptors use.
var discordPermissions = map[int64]string{
	discordgo.PermissionCreateInstantInvite:    "CREATE_INSTANT_INVITE",
	discordgo.PermissionKickMembers:            "KICK_MEMBERS",
	discordgo.PermissionBanMembers:             "BAN_MEMBERS",
	discordgo.PermissionAdministrator:          "ADMINISTRATOR",
	discordgo.PermissionManageChannels:         "MANAGE_CHANNELS",
	discordgo.PermissionManageGuild:            "MANAGE_GUILD",
	discordgo.PermissionAddReactions:           "ADD_REACTIONS",
	discordgo.PermissionViewAuditLogs:          "VIEW_AUDIT_LOG",
	discordgo.PermissionViewChannel:            "VIEW_CHANNEL",
	discordgo.PermissionSendMessages:           "SEND_MESSAGES",
	discordgo.PermissionSendTTSMessages:        "SEND_TTS_MESSAGES",
	discordgo.PermissionManageMessages:         "MANAGE_MESSAGES",
	discordgo.PermissionEmbedLinks:             "EMBED_LINKS",
	discordgo.PermissionAttachFiles:            "ATTACH_FILES",
	discordgo.PermissionReadMessageHistory:     "READ_MESSAGE_HISTORY",
	discordgo.PermissionMentionEveryone:        "MENTION_EVERYONE",
	discordgo.PermissionUseExternalEmojis:      "USE_EXTERNAL_EMOJIS",
	discordgo.PermissionUseApplicationCommands: "USE_APPLICATION_COMMANDS",
	discordgo.PermissionManageThreads:          "MANAGE_THREADS",
	discordgo.PermissionCreatePublicThreads:    "CREATE_PUBLIC_THREADS",
	discordgo.PermissionCreatePrivateThreads:   "CREATE_PRIVATE_THREADS",
	discordgo.PermissionUseExternalStickers:    "USE_EXTERNAL_STICKERS",
	discordgo.PermissionSendMessagesInThreads:  "SEND_MESSAGES_IN_THREADS",
	discordgo.PermissionVoicePrioritySpeaker:   "PRIORITY_SPEAKER",
	discordgo.PermissionVoiceStreamVideo:       "STREAM",
	discordgo.PermissionVoiceConnect:           "CONNECT",
	discordgo.PermissionVoiceSpeak:             "SPEAK",
	discordgo.PermissionVoiceMuteMembers:       "MUTE_MEMBERS",
	discordgo.PermissionVoiceDeafenMembers:     "DEAFEN_MEMBERS",
	discordgo.PermissionVoiceMoveMembers:       "MOVE_MEMBERS",
	discordgo.PermissionVoiceUseVAD:            "USE_VAD",
	discordgo.PermissionChangeNickname:         "CHANGE_NICKNAME",
	discordgo.PermissionManageNicknames:        "MANAGE_NICKNAMES",
	discordgo.PermissionManageRoles:            "MANAGE_ROLES",
	discordgo.PermissionManageWebhooks:         "MANAGE_WEBHOOKS",
	discordgo.PermissionManageEvents:           "MANAGE_EVENTS",
	discordgo.PermissionViewGuildInsights:      "VIEW_GUILD_INSIGHTS",
	discordgo.PermissionModerateMembers:        "MODERATE_MEMBERS",
}

// PermissionNames returns every permission name a platform snapshot can hold,
// sorted.
func PermissionNames() []string {
	names := make([]string, 0, len(discordPermissions))
	for _, n := range discordPermissions {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// permissionSet converts a Discord permission bitfield. Administrators hold
// every permission.
func permissionSet(bits int64) command.PermissionSet {
	if bits&discordgo.PermissionAdministrator != 0 {
		return fullPermissions()
	}
	names := make([]string, 0, len(discordPermissions))
	for bit, n := range discordPermissions {
		if bits&bit != 0 {
			names = append(names, n)
		}
	}
	return command.NewPermissionSet(names...)
}

// fullPermissions is the snapshot used where the platform has no channel
// permission model, such as direct messages.
func fullPermissions() command.PermissionSet {
	return command.NewPermissionSet(PermissionNames()...)
}

// memberPermissions is the snapshot given to ordinary members on platforms
// without channel permission bits.
func memberPermissions() command.PermissionSet {
	return command.NewPermissionSet(
		"VIEW_CHANNEL", "SEND_MESSAGES", "READ_MESSAGE_HISTORY", "ADD_REACTIONS",
		"EMBED_LINKS", "ATTACH_FILES", "USE_APPLICATION_COMMANDS", "SEND_MESSAGES_IN_THREADS",
	)
}
