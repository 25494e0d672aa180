package main

import (
	"context"
	"fmt"
	"log"
	"meshvpn/application/timing"
	"meshvpn/domain/app"
	"meshvpn/domain/mode"
	nodeConfiguration "meshvpn/infrastructure/PAL/configuration/node"
	"meshvpn/infrastructure/logging"
	"meshvpn/presentation/mode_selection"
	"meshvpn/presentation/runners/keygen"
	nodeRunner "meshvpn/presentation/runners/node"
	"meshvpn/presentation/runners/version"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	appCtx, appCtxCancel := context.WithCancel(context.Background())
	defer appCtxCancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
	go func() {
		<-sigChan
		fmt.Println("\nInterrupt received. Shutting down...")
		appCtxCancel()
	}()

	am := mode_selection.NewArgsAppMode(os.Args)
	selectedMode, selectedModeErr := am.Mode()
	if selectedModeErr != nil {
		fmt.Println(selectedModeErr)
		printUsage()
		os.Exit(1)
	}

	switch selectedMode {
	case mode.Node:
		if err := startNode(appCtx, os.Args[2:]); err != nil {
			log.Fatal(err)
		}
	case mode.Keygen:
		if err := keygen.NewRunner(os.Stdout).Run(appCtx); err != nil {
			log.Fatal(err)
		}
	case mode.Version:
		version.NewRunner().Run(appCtx)
	default:
		printUsage()
		os.Exit(1)
	}
}

func startNode(ctx context.Context, arguments []string) error {
	options, err := nodeRunner.ParseOptions(arguments, os.Stderr)
	if err != nil {
		return err
	}

	resolver := nodeConfiguration.NewResolver(options.ConfigPath)
	configPath, err := resolver.Resolve()
	if err != nil {
		return fmt.Errorf("failed to resolve configuration path: %w", err)
	}
	configurationManager, err := nodeConfiguration.NewManager(resolver)
	if err != nil {
		return fmt.Errorf("failed to create configuration manager: %w", err)
	}
	conf, err := configurationManager.Configuration()
	if err != nil {
		return fmt.Errorf("failed to read configuration: %w", err)
	}

	deps := nodeRunner.NewDependencies(
		conf,
		configurationManager,
		nodeConfiguration.NewX25519KeyManager(configurationManager),
		configPath,
		timing.NewMonotonicClock(),
		logging.NewLogLogger(),
		logging.NewDebugLogger(options.Verbose),
	)
	log.Printf("starting %s %s", app.Name, version.Current())
	return nodeRunner.NewRunner(deps, options).Run(ctx)
}

func printUsage() {
	fmt.Printf(`Usage: %[1]s <mode> [options]
Modes:
  node, n     join the mesh
              -config <path>  configuration file (default /etc/%[1]s/node_configuration.json)
              -tui            show the live status dashboard
              -v              verbose logging
  keygen, k   print a new node key pair
  version, v  print the version
`, app.Name)
}
