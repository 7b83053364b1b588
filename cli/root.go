// Package cli wires the playground service together: configuration, the
// Docker client, group definitions, the operation store, event publishing,
// the lifecycle executor, and the HTTP server with graceful shutdown.
package cli

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"playground.evalgo.org/api"
	"playground.evalgo.org/common"
	"playground.evalgo.org/config"
	"playground.evalgo.org/console"
	"playground.evalgo.org/diagnostics"
	"playground.evalgo.org/events"
	"playground.evalgo.org/groups"
	"playground.evalgo.org/httpserver"
	"playground.evalgo.org/lifecycle"
	"playground.evalgo.org/operations"
)

var cfgFile string

// RootCmd is the playground command-line entry point.
var RootCmd = &cobra.Command{
	Use:   "playground",
	Short: "dev-container playground service",
	Long: `Playground Service

Manages groups of development containers (databases, web servers, caches)
over a REST API with asynchronous, pollable operations:
- start/stop single containers and whole groups with lifecycle scripts
- track operation progress via operation-status polling
- interactive WebSocket consoles into running containers
- container diagnostics and log tailing`,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "start the playground HTTP server",
	RunE:  runServe,
}

func init() {
	RootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default searches ./config.yaml and /etc/playground)")
	RootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfig("PLAYGROUND", cfgFile)
	if err != nil {
		return err
	}

	common.ConfigureLogger(cfg.Logging.Level, cfg.Logging.Format)

	cli, err := common.NewDockerClient(cfg.Docker.Socket)
	if err != nil {
		return err
	}
	defer cli.Close()

	registry := groups.NewRegistry()
	if err := registry.LoadDir(cfg.Groups.Dir); err != nil {
		common.Logger.Warnf("no group definitions loaded from %s: %v", cfg.Groups.Dir, err)
	}

	store, err := buildStore(cfg)
	if err != nil {
		return err
	}

	publisher, err := buildPublisher(cfg)
	if err != nil {
		return err
	}
	defer publisher.Close()

	executor := lifecycle.NewExecutor(cli, store, registry, lifecycle.NewDockerScriptRunner(cli), publisher, lifecycle.Config{
		Network:     cfg.Docker.Network,
		StopTimeout: stopTimeout(cfg),
	})

	consoles := console.NewManager()
	handlers := &api.Handlers{
		Cli:       cli,
		Registry:  registry,
		Store:     store,
		Executor:  executor,
		Inspector: diagnostics.NewInspector(cli, diagnostics.NewDockerCommandRunner(cli)),
		Consoles:  consoles,
		Service:   cfg.Service.Name,
		Version:   cfg.Service.Version,
	}
	if cfg.Server.JWTSecret != "" {
		handlers.Tokens = api.NewTokenService(cfg.Server.JWTSecret)
	}

	e := httpserver.NewEchoServer(cfg.Server)
	api.SetupRoutes(e, handlers, cfg.Server)

	go func() {
		if err := httpserver.Start(e, cfg.Server); err != nil && err != http.ErrServerClosed {
			common.Logger.Fatalf("server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	consoles.CloseAll()
	executor.Wait()
	return httpserver.Shutdown(e, cfg.Server)
}

func stopTimeout(cfg *config.Config) time.Duration {
	return time.Duration(cfg.Docker.StopTimeout) * time.Second
}

func buildStore(cfg *config.Config) (operations.Store, error) {
	switch cfg.Operations.Backend {
	case "redis":
		return operations.NewRedisStore(context.Background(), operations.RedisConfig{
			URL:       cfg.Operations.RedisURL,
			RetainFor: cfg.Operations.RetainFor,
		})
	default:
		return operations.NewMemoryStore(operations.MemoryConfig{
			MaxTracked: cfg.Operations.MaxTracked,
			RetainFor:  cfg.Operations.RetainFor,
		}), nil
	}
}

func buildPublisher(cfg *config.Config) (events.Publisher, error) {
	if !cfg.Events.Enabled {
		return events.NopPublisher{}, nil
	}
	return events.NewRabbitMQPublisher(cfg.Events.AMQPURL, cfg.Events.Queue)
}
