package interactions

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Pincer-org/Pincer-sub000/src/rest"
	"github.com/Pincer-org/Pincer-sub000/src/structs"
)

// fakeCommandAPI emulates the application command endpoints with an
// in-memory store keyed by guild (empty key means global).
type fakeCommandAPI struct {
	mu      sync.Mutex
	store   map[string][]structs.AppCmd
	nextID  int
	fetches int
	upserts int
	deletes int
}

func newFakeCommandAPI() *fakeCommandAPI {
	return &fakeCommandAPI{store: make(map[string][]structs.AppCmd)}
}

func normalizeCmdType(t structs.AppCmdType) structs.AppCmdType {
	if t == 0 {
		return structs.AppCmdTypeChatInput
	}
	return t
}

func (f *fakeCommandAPI) seed(guildID string, cmd structs.AppCmd) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	cmd.ID = fmt.Sprintf("%d", f.nextID)
	f.store[guildID] = append(f.store[guildID], cmd)
}

func (f *fakeCommandAPI) list(w http.ResponseWriter, guildID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetches++
	cmds := f.store[guildID]
	if cmds == nil {
		cmds = []structs.AppCmd{}
	}
	json.NewEncoder(w).Encode(cmds)
}

func (f *fakeCommandAPI) upsert(w http.ResponseWriter, r *http.Request, guildID string) {
	var cmd structs.AppCmd
	if err := json.NewDecoder(r.Body).Decode(&cmd); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.upserts++
	for n, existing := range f.store[guildID] {
		if existing.Name == cmd.Name && normalizeCmdType(existing.Type) == normalizeCmdType(cmd.Type) {
			cmd.ID = existing.ID
			f.store[guildID][n] = cmd
			json.NewEncoder(w).Encode(cmd)
			return
		}
	}
	f.nextID++
	cmd.ID = fmt.Sprintf("%d", f.nextID)
	f.store[guildID] = append(f.store[guildID], cmd)
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(cmd)
}

func (f *fakeCommandAPI) remove(w http.ResponseWriter, guildID string, id string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deletes++
	cmds := f.store[guildID]
	for n, c := range cmds {
		if c.ID == id {
			f.store[guildID] = append(cmds[:n], cmds[n+1:]...)
			w.WriteHeader(http.StatusNoContent)
			return
		}
	}
	w.WriteHeader(http.StatusNotFound)
}

func (f *fakeCommandAPI) server(t *testing.T) *rest.REST {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("GET /applications/{app}/commands", func(w http.ResponseWriter, r *http.Request) {
		f.list(w, "")
	})
	mux.HandleFunc("POST /applications/{app}/commands", func(w http.ResponseWriter, r *http.Request) {
		f.upsert(w, r, "")
	})
	mux.HandleFunc("DELETE /applications/{app}/commands/{id}", func(w http.ResponseWriter, r *http.Request) {
		f.remove(w, "", r.PathValue("id"))
	})
	mux.HandleFunc("GET /applications/{app}/guilds/{gid}/commands", func(w http.ResponseWriter, r *http.Request) {
		f.list(w, r.PathValue("gid"))
	})
	mux.HandleFunc("POST /applications/{app}/guilds/{gid}/commands", func(w http.ResponseWriter, r *http.Request) {
		f.upsert(w, r, r.PathValue("gid"))
	})
	mux.HandleFunc("DELETE /applications/{app}/guilds/{gid}/commands/{id}", func(w http.ResponseWriter, r *http.Request) {
		f.remove(w, r.PathValue("gid"), r.PathValue("id"))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return rest.NewREST(rest.RESTOptions{BotToken: "tok", BaseURL: srv.URL, Logger: zerolog.Nop()})
}

func (f *fakeCommandAPI) resetCounters() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetches, f.upserts, f.deletes = 0, 0, 0
}

func TestReconcileConverges(t *testing.T) {
	const guild = "111111111111111111"
	reg := NewRegistry()
	require.NoError(t, reg.Register(&Command{Name: "ping", Description: "pong", Handler: noopHandler}))
	require.NoError(t, reg.Register(&Command{Name: "add", Group: "role", Description: "grant", Handler: noopHandler}))
	require.NoError(t, reg.Register(&Command{Name: "local", GuildID: guild, Description: "guild only", Handler: noopHandler}))

	api := newFakeCommandAPI()
	// Stray remote command the registry no longer knows.
	api.seed("", structs.AppCmd{Type: structs.AppCmdTypeChatInput, Name: "obsolete", Description: "old"})
	// Known command whose remote description drifted.
	api.seed("", structs.AppCmd{Type: structs.AppCmdTypeChatInput, Name: "ping", Description: "stale"})
	r := api.server(t)

	rc := NewReconciler(reg, r, "app-1", nil, zerolog.Nop())
	require.NoError(t, rc.Run(context.Background()))

	assert.Equal(t, 1, api.deletes, "the stray must be deleted")
	assert.Equal(t, 3, api.upserts, "ping update, role create, guild create")
	assert.Len(t, api.store[""], 2)
	assert.Len(t, api.store[guild], 1)

	// A second pass against the converged server makes no writes.
	api.resetCounters()
	rc2 := NewReconciler(reg, r, "app-1", nil, zerolog.Nop())
	require.NoError(t, rc2.Run(context.Background()))
	assert.Equal(t, 0, api.deletes)
	assert.Equal(t, 0, api.upserts)
	assert.Equal(t, 2, api.fetches, "global scope plus one guild")
}

func TestReconcileCoversBotGuildsWithoutLocalCommands(t *testing.T) {
	const guild = "222222222222222222"
	reg := NewRegistry()
	require.NoError(t, reg.Register(&Command{Name: "ping", Description: "pong", Handler: noopHandler}))

	// A guild the bot is in carries a leftover command, but the
	// registry holds nothing scoped to it.
	api := newFakeCommandAPI()
	api.seed(guild, structs.AppCmd{Type: structs.AppCmdTypeChatInput, Name: "old", Description: "left behind"})
	r := api.server(t)

	rc := NewReconciler(reg, r, "app-1", []string{guild}, zerolog.Nop())
	require.NoError(t, rc.Run(context.Background()))

	assert.Equal(t, 1, api.deletes, "the leftover must be deleted")
	assert.Empty(t, api.store[guild])
	assert.Equal(t, 2, api.fetches, "global scope plus the bot's guild")
}

func TestReconcileRunsOnce(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.Register(&Command{Name: "ping", Handler: noopHandler}))
	api := newFakeCommandAPI()
	r := api.server(t)

	rc := NewReconciler(reg, r, "app-1", nil, zerolog.Nop())
	require.NoError(t, rc.Run(context.Background()))
	fetched := api.fetches

	// Later shards reaching READY share the first outcome.
	require.NoError(t, rc.Run(context.Background()))
	require.NoError(t, rc.Run(context.Background()))
	assert.Equal(t, fetched, api.fetches)

	select {
	case <-rc.Done():
	default:
		t.Fatal("done barrier should be closed")
	}
	assert.NoError(t, rc.Err())
}

func TestReconcileSurfacesFetchFailure(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.Register(&Command{Name: "ping", Handler: noopHandler}))

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	t.Cleanup(srv.Close)
	r := rest.NewREST(rest.RESTOptions{BotToken: "tok", BaseURL: srv.URL, Logger: zerolog.Nop()})

	rc := NewReconciler(reg, r, "app-1", nil, zerolog.Nop())
	err := rc.Run(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, rest.ErrUnauthorized)
	assert.ErrorIs(t, rc.Err(), rest.ErrUnauthorized)
}
