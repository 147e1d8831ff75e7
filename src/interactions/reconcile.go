package interactions

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/rs/zerolog"

	"github.com/Pincer-org/Pincer-sub000/src/rest"
	"github.com/Pincer-org/Pincer-sub000/src/structs"
)

// Reconciler converges the remote command set with the local one:
// commands the server knows but the registry does not are deleted,
// everything local is upserted. It runs once per process, gated by a
// barrier so no shard dispatches interactions against a half-synced
// set.
type Reconciler struct {
	registry      *Registry
	rest          *rest.REST
	applicationID string
	guildIDs      []string
	log           zerolog.Logger

	once sync.Once
	done chan struct{}
	err  error
}

// guildIDs is every guild the bot is in (from READY); guilds carrying
// local definitions are covered either way.
func NewReconciler(registry *Registry, r *rest.REST, applicationID string, guildIDs []string, log zerolog.Logger) *Reconciler {
	return &Reconciler{
		registry:      registry,
		rest:          r,
		applicationID: applicationID,
		guildIDs:      guildIDs,
		log:           log.With().Str("component", "interactions").Logger(),
		done:          make(chan struct{}),
	}
}

// Done is closed once reconciliation has completed (successfully or
// not). Interaction routing waits on it.
func (rc *Reconciler) Done() <-chan struct{} { return rc.done }

// Err reports the outcome after Done is closed.
func (rc *Reconciler) Err() error { return rc.err }

// Run performs the sync exactly once; later calls (from other shards
// reaching READY) return the first outcome.
func (rc *Reconciler) Run(ctx context.Context) error {
	rc.once.Do(func() {
		defer close(rc.done)
		rc.err = rc.sync(ctx)
	})
	<-rc.done
	return rc.err
}

func (rc *Reconciler) sync(ctx context.Context) error {
	local := rc.registry.BuildWire()

	// Remote state: global commands plus every guild the bot is in,
	// unioned with the guilds carrying local definitions. A guild the
	// bot left local commands behind in still gets cleaned up.
	seen := make(map[string]struct{})
	guildScopes := []string{""}
	for _, id := range append(rc.registry.GuildIDs(), rc.guildIDs...) {
		if id == "" {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		guildScopes = append(guildScopes, id)
	}
	sort.Strings(guildScopes[1:])
	remote := make(map[wireKey]structs.AppCmd)
	for _, guildID := range guildScopes {
		cmds, err := rc.rest.GetApplicationCommands(ctx, rc.applicationID, guildID)
		if err != nil {
			return fmt.Errorf("fetch commands (guild %q): %w", guildID, err)
		}
		for _, c := range cmds {
			typ := c.Type
			if typ == 0 {
				typ = structs.AppCmdTypeChatInput
			}
			c.GuildID = guildID
			remote[wireKey{name: c.Name, guildID: guildID, typ: typ}] = c
		}
	}

	// Delete strays first so renames free the name before the upsert.
	for wk, rcmd := range remote {
		if _, keep := local[wk]; keep {
			continue
		}
		rc.log.Info().Str("command", wk.name).Str("guild", wk.guildID).Msg("deleting remote command")
		if err := rc.rest.DeleteApplicationCommand(ctx, rc.applicationID, wk.guildID, rcmd.ID); err != nil {
			return fmt.Errorf("delete %q: %w", wk.name, err)
		}
	}

	// Upsert: POST with an existing name updates in place, so one
	// path covers create and update. Converged commands are skipped,
	// which keeps a second run free of writes.
	for wk, lcmd := range local {
		if rcmd, exists := remote[wk]; exists && lcmd.Equivalent(rcmd) {
			continue
		}
		rc.log.Info().Str("command", wk.name).Str("guild", wk.guildID).Msg("upserting command")
		if _, err := rc.rest.CreateApplicationCommand(ctx, rc.applicationID, wk.guildID, lcmd); err != nil {
			return fmt.Errorf("upsert %q: %w", wk.name, err)
		}
	}
	rc.log.Info().Int("local", len(local)).Int("remote", len(remote)).Msg("command reconciliation complete")
	return nil
}
