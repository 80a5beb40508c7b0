package command

import (
	"encoding/json"
	"fmt"
)

// StringSet decodes from either a single JSON string or an array of strings.
// "" and [] decode to an empty non-nil set, which clears the field on Apply;
// an absent field stays nil and keeps the declared value.
type StringSet []string

func (s *StringSet) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		return nil
	}
	var one string
	if err := json.Unmarshal(data, &one); err == nil {
		if one == "" {
			*s = StringSet{}
		} else {
			*s = StringSet{one}
		}
		return nil
	}
	var many []string
	if err := json.Unmarshal(data, &many); err != nil {
		return fmt.Errorf("expected string or list of strings: %w", err)
	}
	if many == nil {
		many = []string{}
	}
	*s = many
	return nil
}

// Spec is the load-time configuration of a command as it appears in the
// config file. Nil fields keep whatever the code declared.
type Spec struct {
	Aliases        []string  `json:"aliases,omitempty"`
	Args           *int      `json:"args,omitempty"`
	Usage          *string   `json:"usage,omitempty"`
	Cooldown       *int      `json:"cooldown,omitempty"`
	GuildOnly      *bool     `json:"guildOnly,omitempty"`
	DMsOnly        *bool     `json:"dmsOnly,omitempty"`
	OwnersOnly     *bool     `json:"ownersOnly,omitempty"`
	Permissions    StringSet `json:"permissions,omitempty"`
	BotPermissions StringSet `json:"botPermissions,omitempty"`
	BlockedUsers   []string  `json:"blockedUsers,omitempty"`
	UnblockedUsers []string  `json:"unblockedUsers,omitempty"`
}

// Apply overlays the spec onto d. It must run before d is registered.
func (s Spec) Apply(d *Descriptor) {
	if len(s.Aliases) > 0 {
		d.Aliases = append([]string(nil), s.Aliases...)
	}
	if s.Args != nil {
		d.Args = *s.Args
	}
	if s.Usage != nil {
		d.Usage = *s.Usage
	}
	if s.Cooldown != nil {
		d.Cooldown = *s.Cooldown
	}
	if s.GuildOnly != nil {
		d.GuildOnly = *s.GuildOnly
	}
	if s.DMsOnly != nil {
		d.DMsOnly = *s.DMsOnly
	}
	if s.OwnersOnly != nil {
		d.OwnersOnly = *s.OwnersOnly
	}
	if s.Permissions != nil {
		d.Permissions = append([]string{}, s.Permissions...)
	}
	if s.BotPermissions != nil {
		d.BotPermissions = append([]string{}, s.BotPermissions...)
	}
	if len(s.BlockedUsers) > 0 {
		d.Blocked = NewUserSet(s.BlockedUsers...)
	}
	if len(s.UnblockedUsers) > 0 {
		d.Unblocked = NewUserSet(s.UnblockedUsers...)
	}
}
