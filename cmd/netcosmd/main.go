// netcosmd is the server daemon: it resolves a world module, bootstraps or
// loads persisted state, and serves the single-threaded master loop over a
// TCP listener until SIGINT/SIGTERM requests a graceful shutdown.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"syscall"

	"netcosm/internal/config"
	"netcosm/internal/master"
	"netcosm/internal/obslog"
	"netcosm/internal/world"
	"netcosm/worlds/dunnet"
)

func main() {
	port := flag.Int("p", 1234, "listen port")
	dataDir := flag.String("d", "./data", "data directory (created, then chdir'd into, before opening files)")
	worldMod := flag.String("w", dunnet.Name, "world module to load")
	adminUser := flag.String("a", "", "non-interactive first-run admin username (requires a password as the next arg)")
	saveInterval := flag.Int("save-interval", 10, "mutating operations between autosaves")
	configPath := flag.String("c", "", "optional netcosmd.yaml config file")
	flag.Parse()

	var adminPass string
	if *adminUser != "" {
		if flag.NArg() < 1 {
			fmt.Fprintln(os.Stderr, "netcosmd: -a USER requires PASS as the next argument")
			os.Exit(1)
		}
		adminPass = flag.Arg(0)
	}

	f, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "netcosmd: load config: %v\n", err)
		os.Exit(1)
	}
	explicit := make(map[string]bool)
	flag.Visit(func(fl *flag.Flag) { explicit[fl.Name] = true })
	config.Merge(port, dataDir, worldMod, saveInterval, f, explicit)

	log := obslog.New(obslog.Options{Level: slog.LevelInfo})

	if err := os.MkdirAll(*dataDir, 0o755); err != nil {
		log.Error("create data directory", "dir", *dataDir, "err", err)
		os.Exit(1)
	}
	if err := os.Chdir(*dataDir); err != nil {
		log.Error("chdir to data directory", "dir", *dataDir, "err", err)
		os.Exit(1)
	}

	srv, err := master.Bootstrap(master.BootstrapOptions{
		ModuleName:   *worldMod,
		WorldPath:    "world.dat",
		UserPath:     "users.dat",
		SaveInterval: *saveInterval,
		AdminUser:    *adminUser,
		AdminPass:    adminPass,
		Log:          log,
		Seed:         seedFor(*worldMod),
	})
	if err != nil {
		log.Error("bootstrap", "err", err)
		os.Exit(1)
	}

	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", *port))
	if err != nil {
		log.Error("listen", "port", *port, "err", err)
		os.Exit(1)
	}
	log.Info("netcosmd listening", "port", *port, "world", *worldMod, "data_dir", *dataDir)

	ctx, cancel := context.WithCancel(context.Background())
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-quit
		log.Info("shutting down")
		cancel()
	}()

	if err := srv.Serve(ctx, ln); err != nil {
		log.Error("serve", "err", err)
	}
	if err := srv.ForceSave(); err != nil {
		log.Error("final save", "err", err)
	}
}

// seedFor returns the world module's initial-object placement hook, or nil
// for modules that don't register one. Each world package exposes its own
// Seed function the same way dunnet does; as more modules join the
// registry this grows a case per name.
func seedFor(name string) func(*world.Graph) {
	switch name {
	case dunnet.Name:
		return dunnet.SeedObjects
	default:
		return nil
	}
}
