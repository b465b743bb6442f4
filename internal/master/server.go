// This file wires persistence and world-module resolution into the Server
// built in clients.go: Bootstrap resolves the world module, loads or
// initializes the world graph and user database, and returns a
// ready-to-run Server plus the persist.Saver it drives on every mutating
// TAKE/DROP/admin-user operation.
package master

import (
	"fmt"
	"log/slog"
	"os"

	"netcosm/internal/persist"
	"netcosm/internal/userdb"
	"netcosm/internal/world"
	"netcosm/internal/worldmod"
)

// BootstrapOptions are the CLI-level inputs: the world module to load,
// the data directory's two file paths, the save interval, and an
// optional non-interactive admin account for first-run setup.
type BootstrapOptions struct {
	ModuleName   string
	WorldPath    string
	UserPath     string
	SaveInterval int
	AdminUser    string
	AdminPass    string
	SendBuf      int
	Log          *slog.Logger

	// Seed populates a freshly built graph's starting objects. Called
	// only when WorldPath does not yet exist; an already-saved world
	// carries its own object placement forward instead.
	Seed func(*world.Graph)
}

// Bootstrap resolves the named world module, then loads both persisted
// files or initializes fresh state: if the user DB file is absent or
// empty, run first-run setup; if the world file is absent, initialize
// from the world-module static description; otherwise load both.
func Bootstrap(opts BootstrapOptions) (*Server, error) {
	mod, ok := worldmod.Lookup(opts.ModuleName)
	if !ok {
		return nil, fmt.Errorf("master: no world module registered under %q", opts.ModuleName)
	}

	graph := worldmod.BuildGraph(mod)
	roomIDs := make([]world.RoomID, 0, len(mod.Rooms()))
	for _, rd := range mod.Rooms() {
		roomIDs = append(roomIDs, rd.ID)
	}
	resolver := worldmod.ClassResolver(mod)
	userHooks := worldmod.UserDataHooksFor(mod)

	if _, err := os.Stat(opts.WorldPath); err == nil {
		if _, err := persist.LoadWorld(opts.WorldPath, graph, resolver); err != nil {
			return nil, fmt.Errorf("master: load world: %w", err)
		}
		opts.Log.Info("world loaded", "path", opts.WorldPath)
	} else {
		opts.Log.Info("world file absent, using module defaults", "module", mod.Name())
		if opts.Seed != nil {
			opts.Seed(graph)
		}
	}

	var users *userdb.DB
	needBootstrapAdmin := false
	if info, err := os.Stat(opts.UserPath); err == nil && info.Size() > 0 {
		users, err = persist.LoadUsers(opts.UserPath, resolver, userHooks)
		if err != nil {
			return nil, fmt.Errorf("master: load users: %w", err)
		}
		opts.Log.Info("user database loaded", "path", opts.UserPath, "count", users.Len())
	} else {
		users = userdb.New()
		needBootstrapAdmin = true
	}

	if needBootstrapAdmin {
		if opts.AdminUser == "" {
			return nil, fmt.Errorf("master: no user database at %q and no -a USER PASS given for first-run setup", opts.UserPath)
		}
		if _, err := users.CreateUser(opts.AdminUser, opts.AdminPass, userdb.PrivAdmin); err != nil {
			return nil, fmt.Errorf("master: first-run admin setup: %w", err)
		}
		// Write immediately so a crash right after setup doesn't lose the
		// admin account.
		if err := persist.SaveUsers(opts.UserPath, users, userHooks); err != nil {
			return nil, fmt.Errorf("master: persist first-run admin: %w", err)
		}
		opts.Log.Info("first-run admin account created", "username", opts.AdminUser)
	}

	saver := persist.NewSaver(opts.SaveInterval, opts.Log)

	srv := New(Config{
		Module:    mod,
		Graph:     graph,
		Users:     users,
		WorldPath: opts.WorldPath,
		UserPath:  opts.UserPath,
		RoomIDs:   roomIDs,
		SendBuf:   opts.SendBuf,
		Log:       opts.Log,
	}, saver)
	return srv, nil
}

// saveState writes both the world file and the user database atomically,
// the callback persist.Saver.Mark invokes on an interval boundary or a
// forced save.
func (s *Server) saveState() error {
	if err := persist.SaveWorld(s.worldPath, s.graph, s.module.Name(), s.roomIDs); err != nil {
		return err
	}
	return persist.SaveUsers(s.userPath, s.users, worldmod.UserDataHooksFor(s.module))
}

// ForceSave triggers an immediate save regardless of the mutation
// counter, for graceful-shutdown paths in cmd/netcosmd.
func (s *Server) ForceSave() error { return s.saveState() }
