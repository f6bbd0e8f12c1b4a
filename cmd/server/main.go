// Lobby Platform - process entrypoint.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"lobbyplatform/internal/catalog"
	"lobbyplatform/internal/config"
	"lobbyplatform/internal/devserver"
	"lobbyplatform/internal/lobbyserver"
	"lobbyplatform/internal/presence"
	"lobbyplatform/internal/room"
	"lobbyplatform/internal/session"
	"lobbyplatform/internal/supervisor"
	"lobbyplatform/internal/transfer"
)

const (
	ServerName    = "Lobby Platform"
	ServerVersion = "1.0.0"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	cfg.LogConfig()

	log.Printf("%s v%s starting up...", ServerName, ServerVersion)

	cat, err := openCatalog(cfg)
	if err != nil {
		log.Fatalf("Failed to open catalog: %v", err)
	}
	defer cat.Close()

	presenceMirror, err := openPresence(cfg)
	if err != nil {
		log.Printf("Warning: presence cache disabled: %v", err)
	}
	if presenceMirror != nil {
		defer presenceMirror.Close()
	}

	transfers, err := transfer.NewManager(cfg.TransferTemp, cfg.StorageRoot, cfg.ChunkSize, cat)
	if err != nil {
		log.Fatalf("Failed to initialize transfer manager: %v", err)
	}

	rooms := room.NewRegistry(cat)

	sup := supervisor.New(cfg.StorageRoot, cfg.GameServerHost, time.Duration(cfg.GameSpawnSettleSecs)*time.Second, cat,
		func(roomID string) { rooms.RemoveRoom(roomID) })

	reconciler := session.NewReconciler(rooms, cat, transfers, presenceMirror)

	lobby, err := lobbyserver.New(cfg.LobbyListenAddress(), lobbyserver.Deps{
		Catalog:    cat,
		Rooms:      rooms,
		Transfers:  transfers,
		Supervisor: sup,
		Presence:   presenceMirror,
		Reconciler: reconciler,
		TOTPIssuer: cfg.TOTPIssuer,
	})
	if err != nil {
		log.Fatalf("Failed to bind lobby endpoint on %s: %v", cfg.LobbyListenAddress(), err)
	}

	dev, err := devserver.New(cfg.DevListenAddress(), devserver.Deps{
		Catalog:     cat,
		Transfers:   transfers,
		Reconciler:  reconciler,
		StorageRoot: cfg.StorageRoot,
	})
	if err != nil {
		log.Fatalf("Failed to bind developer endpoint on %s: %v", cfg.DevListenAddress(), err)
	}

	go lobby.Serve()
	go dev.Serve()

	log.Printf("%s v%s ready", ServerName, ServerVersion)
	log.Printf("Lobby endpoint listening on %s", lobby.Addr())
	log.Printf("Developer endpoint listening on %s", dev.Addr())
	log.Println("Press Ctrl+C to shutdown")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	sig := <-sigChan
	log.Printf("Received signal: %v", sig)

	performGracefulShutdown(cfg, lobby, dev, sup)
}

// openCatalog selects the JSON or SQL-backed Catalog per config.DBType
// (spec §9 Design Notes: "the Catalog is the only component that reads or
// writes them ... alternative backends ... can drop in without changing
// callers").
func openCatalog(cfg *config.Config) (catalog.Catalog, error) {
	switch cfg.DBType {
	case "sqlite", "postgres":
		return catalog.NewSQLCatalog(cfg.DBType, cfg.SQLConnectionString(), cfg.DBMaxConnections, cfg.DBMaxIdleConns)
	default:
		return catalog.NewJSONCatalog(cfg.DataDir)
	}
}

func openPresence(cfg *config.Config) (*presence.Mirror, error) {
	if !cfg.RedisEnabled {
		return nil, nil
	}
	return presence.New(cfg.RedisHost, cfg.RedisPort, cfg.RedisDB)
}

// performGracefulShutdown mirrors the teacher's numbered shutdown
// sequence (cmd/server/main.go's performGracefulShutdown), generalized
// from an HTTP server to the two TCP listeners and the supervised game
// server processes this system additionally owns.
func performGracefulShutdown(cfg *config.Config, lobby *lobbyserver.Server, dev *devserver.Server, sup *supervisor.Supervisor) {
	log.Printf("%s v%s shutting down...", ServerName, ServerVersion)

	_, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.ShutdownTimeoutSecs)*time.Second)
	defer cancel()

	log.Println("[1/4] Stopping new connections...")
	lobby.Shutdown()
	dev.Shutdown()

	log.Println("[2/4] Notifying in-progress transfers and sessions...")
	// Each connection's own readPump defers disconnect reconciliation on
	// socket close, so no separate broadcast step is needed here (unlike
	// the teacher's chat banner, there is no player-facing shutdown
	// message in this wire protocol).

	log.Printf("[3/4] Stopping %d supervised game server process(es)...", sup.ActiveCount())
	sup.StopAll()

	log.Println("[4/4] Catalog backend will close on process exit.")

	log.Printf("%s v%s offline.", ServerName, ServerVersion)
}
