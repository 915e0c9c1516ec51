package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dyluth/chalk/internal/backend"
	"github.com/dyluth/chalk/internal/config"
	"github.com/dyluth/chalk/internal/registry"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
)

func main() {
	// 1. Load .env if present; the environment wins over chalk.yml
	if err := godotenv.Load(); err != nil {
		log.Println("[Daemon] No .env file found, using environment variables")
	}

	configPath := os.Getenv("CHALK_CONFIG")
	if configPath == "" {
		configPath = "chalk.yml"
	}

	// 2. Load configuration
	cfg, err := config.LoadOrDefault(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: Failed to load %s: %v\n", configPath, err)
		os.Exit(1)
	}

	// 3. Open the persistence backend
	ctx := context.Background()
	be, err := backend.Open(ctx, cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: Failed to open %s backend: %v\n", cfg.Persistence.Backend, err)
		os.Exit(1)
	}
	defer be.Close()

	// 4. Create the board registry
	instanceID := uuid.New().String()
	reg := registry.New(be.Adapter, registry.Config{
		IdleTimeout:     cfg.Registry.IdleTimeout,
		SaveInterval:    cfg.Registry.SaveInterval,
		MaxDocumentSize: cfg.Limits.MaxDocumentSize,
		MaxImages:       cfg.Limits.MaxImages,
		StoreOptions:    cfg.StoreOptions(),
	}, registry.WithInstance(instanceID))

	fmt.Printf("chalkd starting (instance %s, backend %s)\n", instanceID, be.Name)

	// 5. Start the health endpoint
	health := registry.NewHealthServer(cfg.Health.Addr, reg)
	if err := health.Start(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: Failed to start health server: %v\n", err)
		os.Exit(1)
	}

	// 6. Setup graceful shutdown
	runCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)

	// 7. Consume client operations when the backend carries them
	if bus, err := be.Bus(); err == nil {
		sub, err := bus.SubscribeOperations(runCtx)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: Failed to subscribe to operations: %v\n", err)
			os.Exit(1)
		}
		defer sub.Close()
		go reg.Consume(runCtx, sub)
		fmt.Println("Consuming client operations")
	} else if errors.Is(err, backend.ErrNoOperationBus) {
		fmt.Printf("Warning: %v, no operations will be consumed\n", err)
	}

	// 8. Run maintenance until shutdown
	errCh := make(chan error, 1)
	go func() {
		errCh <- reg.Run(runCtx, cfg.Registry.MaintenanceInterval)
	}()

	exitCode := 0
	select {
	case sig := <-sigCh:
		fmt.Printf("Received signal %v, shutting down gracefully...\n", sig)
		cancel()
		<-errCh
	case runErr := <-errCh:
		if runErr != nil {
			fmt.Fprintf(os.Stderr, "Registry error: %v\n", runErr)
			exitCode = 1
		}
	}

	// 9. Flush every board before the backend closes
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := health.Shutdown(shutdownCtx); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: Health server shutdown: %v\n", err)
	}
	if err := reg.Close(shutdownCtx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: Failed to save boards: %v\n", err)
		exitCode = 1
	}

	fmt.Println("chalkd stopped")
	if exitCode != 0 {
		be.Close()
		os.Exit(exitCode)
	}
}
