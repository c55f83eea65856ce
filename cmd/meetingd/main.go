// Command meetingd is the CLI for the meeting orchestration engine.
//
// Usage:
//
//	meetingd serve --config config.yaml
//	meetingd validate-config --config config.yaml
//	meetingd version
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"

	"github.com/alecthomas/kong"

	"github.com/conclave-ai/conclave/config"
	"github.com/conclave-ai/conclave/llms"
	"github.com/conclave-ai/conclave/logging"
	"github.com/conclave-ai/conclave/meetingsvc"
	"github.com/conclave-ai/conclave/store"
)

// CLI defines the command-line interface.
type CLI struct {
	Version        VersionCmd        `cmd:"" help:"Show version information."`
	Serve          ServeCmd          `cmd:"" help:"Start the meeting orchestration service."`
	ValidateConfig ValidateConfigCmd `cmd:"" name:"validate-config" help:"Validate a configuration file."`

	Config string `short:"c" help:"Path to config file." type:"path" default:"meetingd.yaml"`
}

// VersionCmd prints build version information.
type VersionCmd struct{}

func (c *VersionCmd) Run() error {
	version := "dev"
	if info, ok := debug.ReadBuildInfo(); ok {
		if info.Main.Version != "(devel)" && info.Main.Version != "" {
			version = info.Main.Version
		}
	}
	fmt.Printf("meetingd version %s\n", version)
	return nil
}

// ValidateConfigCmd loads and validates a configuration file without
// starting the service.
type ValidateConfigCmd struct{}

func (c *ValidateConfigCmd) Run(cli *CLI) error {
	if _, err := config.Load(cli.Config); err != nil {
		return err
	}
	fmt.Printf("%s is valid\n", cli.Config)
	return nil
}

// ServeCmd wires the store, model-adapter factory, and composition root,
// then blocks until interrupted. The HTTP/WebSocket boundary that would
// front this service is out of scope; this command proves the wiring
// and gives embedders a process to run it in.
type ServeCmd struct{}

func (c *ServeCmd) Run(cli *CLI) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	_ = config.LoadEnvFiles()

	cfg, err := config.Load(cli.Config)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	level, err := logging.ParseLevel(cfg.Server.LogLevel)
	if err != nil {
		return fmt.Errorf("invalid log level: %w", err)
	}
	log := logging.New(level, os.Stderr)
	log.Info("starting meetingd", "data_dir", cfg.Server.DataDir)

	fileStore, err := store.NewFileStore(cfg.Server.DataDir)
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}

	factory := llms.NewFactory()
	svc := meetingsvc.New(fileStore, factory, log)

	agents, err := svc.ListAgents()
	if err != nil {
		return fmt.Errorf("failed to load agents: %w", err)
	}
	meetings, err := svc.ListMeetings()
	if err != nil {
		return fmt.Errorf("failed to load meetings: %w", err)
	}
	log.Info("meetingd ready", "agents", len(agents), "meetings", len(meetings))
	<-ctx.Done()
	log.Info("shutting down")
	return nil
}

func main() {
	cli := CLI{}
	ctx := kong.Parse(&cli,
		kong.Name("meetingd"),
		kong.Description("Meeting orchestration engine"),
		kong.UsageOnError(),
	)

	err := ctx.Run(&cli)
	ctx.FatalIfErrorf(err)
}
