package interactions

import (
	"fmt"
	"sort"
	"sync"

	"github.com/Pincer-org/Pincer-sub000/src/structs"
)

// commandKey identifies a local command. Two records collide iff the
// whole five-tuple is equal.
type commandKey struct {
	name     string
	guildID  string
	typ      structs.AppCmdType
	group    string
	subGroup string
}

// wireKey identifies one remote application command: per guild, the
// top-level name plus type.
type wireKey struct {
	name    string
	guildID string
	typ     structs.AppCmdType
}

// Registry stores command definitions flat for O(1) lookup. The
// nested wire shape is rebuilt from the flat index before every
// reconciliation. Writes happen at registration and cog load/unload;
// reads dominate.
type Registry struct {
	mu    sync.RWMutex
	byKey map[commandKey]*Command
}

func NewRegistry() *Registry {
	return &Registry{byKey: make(map[commandKey]*Command)}
}

func (c *Command) key() commandKey {
	return commandKey{
		name:     c.Name,
		guildID:  c.GuildID,
		typ:      c.effectiveType(),
		group:    c.Group,
		subGroup: c.SubGroup,
	}
}

// Register validates and stores a command. Duplicate keys fail fast.
func (r *Registry) Register(cmd *Command) error {
	if err := cmd.validate(); err != nil {
		return err
	}
	k := cmd.key()
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.byKey[k]; exists {
		return fmt.Errorf("%w: %s", ErrCommandAlreadyRegistered, cmd.Name)
	}
	r.byKey[k] = cmd
	return nil
}

// Remove drops a command; used by cog unload.
func (r *Registry) Remove(cmd *Command) {
	r.mu.Lock()
	delete(r.byKey, cmd.key())
	r.mu.Unlock()
}

// Lookup resolves a command from the identity an interaction carries.
func (r *Registry) Lookup(name string, guildID string, typ structs.AppCmdType, group string, subGroup string) (*Command, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	cmd, ok := r.byKey[commandKey{name: name, guildID: guildID, typ: typ, group: group, subGroup: subGroup}]
	return cmd, ok
}

// Len reports the number of registered commands.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byKey)
}

// GuildIDs returns every guild with at least one guild-scoped
// command.
func (r *Registry) GuildIDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	seen := make(map[string]struct{})
	for k := range r.byKey {
		if k.guildID != "" {
			seen[k.guildID] = struct{}{}
		}
	}
	ids := make([]string, 0, len(seen))
	for id := range seen {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// BuildWire expands the flat index into Discord's nested shape:
// (group, sub_group, name) becomes a SUB_COMMAND_GROUP / SUB_COMMAND
// tree under the group's top-level command.
func (r *Registry) BuildWire() map[wireKey]structs.AppCmd {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[wireKey]structs.AppCmd)
	for k, cmd := range r.byKey {
		if cmd.Group == "" {
			wk := wireKey{name: cmd.Name, guildID: cmd.GuildID, typ: k.typ}
			out[wk] = structs.AppCmd{
				Type:              k.typ,
				GuildID:           cmd.GuildID,
				Name:              cmd.Name,
				Description:       cmd.Description,
				Options:           wireOptions(cmd.Options),
				DefaultPermission: cmd.DefaultPermission,
			}
			continue
		}
		wk := wireKey{name: cmd.Group, guildID: cmd.GuildID, typ: k.typ}
		top, exists := out[wk]
		if !exists {
			top = structs.AppCmd{
				Type:        k.typ,
				GuildID:     cmd.GuildID,
				Name:        cmd.Group,
				Description: cmd.Group,
			}
		}
		sub := structs.AppCmdOption{
			Type:        structs.AppCmdOptionTypeSubCommand,
			Name:        cmd.Name,
			Description: cmd.Description,
			Options:     wireOptions(cmd.Options),
		}
		if sub.Description == "" {
			sub.Description = cmd.Name
		}
		if cmd.SubGroup == "" {
			top.Options = append(top.Options, sub)
		} else {
			idx := -1
			for i, o := range top.Options {
				if o.Type == structs.AppCmdOptionTypeSubCommandGroup && o.Name == cmd.SubGroup {
					idx = i
					break
				}
			}
			if idx < 0 {
				top.Options = append(top.Options, structs.AppCmdOption{
					Type:        structs.AppCmdOptionTypeSubCommandGroup,
					Name:        cmd.SubGroup,
					Description: cmd.SubGroup,
				})
				idx = len(top.Options) - 1
			}
			top.Options[idx].Options = append(top.Options[idx].Options, sub)
		}
		out[wk] = top
	}
	// Deterministic option order keeps reconciliation comparisons
	// stable across runs.
	for wk, cmd := range out {
		sortOptionTree(cmd.Options)
		out[wk] = cmd
	}
	return out
}

func sortOptionTree(opts []structs.AppCmdOption) {
	sort.SliceStable(opts, func(i, j int) bool {
		if grouping(opts[i]) != grouping(opts[j]) {
			return grouping(opts[i]) && !grouping(opts[j])
		}
		if grouping(opts[i]) {
			return opts[i].Name < opts[j].Name
		}
		return false
	})
	for i := range opts {
		if grouping(opts[i]) {
			sortOptionTree(opts[i].Options)
		}
	}
}

func grouping(o structs.AppCmdOption) bool {
	return o.Type == structs.AppCmdOptionTypeSubCommand || o.Type == structs.AppCmdOptionTypeSubCommandGroup
}

func wireOptions(opts []Option) []structs.AppCmdOption {
	if len(opts) == 0 {
		return nil
	}
	out := make([]structs.AppCmdOption, 0, len(opts))
	for _, o := range opts {
		out = append(out, o.wire())
	}
	return out
}
