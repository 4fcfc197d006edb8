// Package cli implements the st9ctl command-line interface.
package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	st9 "github.com/st9db/st9.go"
	"github.com/st9db/st9.go/pkg/config"
	"github.com/st9db/st9.go/pkg/models"
)

var (
	configPath string
	endpoint   string
	schemaPath string
)

// cmdContext holds what every command talks to.
type cmdContext struct {
	Config   *config.Config
	Registry *models.Registry
	DB       *st9.DB
}

// initContext loads the configuration and the type declarations and opens a
// DB. Commands that read entities need the declarations to decode them.
func initContext(ctx context.Context, needSchema bool) *cmdContext {
	cfg, err := config.Load(configPath)
	if err != nil {
		exitError("%v", err)
	}
	if endpoint != "" {
		cfg.URL = endpoint
	}

	reg := models.NewRegistry()
	if schemaPath != "" {
		if err := registerFile(reg, schemaPath); err != nil {
			exitError("%v", err)
		}
	} else if needSchema {
		exitError("--schema is required to decode entities")
	}

	db, err := st9.FromConfig(ctx, cfg, reg)
	if err != nil {
		exitError("failed to open store: %v", err)
	}
	return &cmdContext{Config: cfg, Registry: reg, DB: db}
}

func registerFile(reg *models.Registry, path string) error {
	specs, err := models.LoadTypeSpecsFile(path)
	if err != nil {
		return fmt.Errorf("failed to read types from %s: %w", path, err)
	}
	if _, err := reg.RegisterAll(specs); err != nil {
		return fmt.Errorf("failed to register types from %s: %w", path, err)
	}
	return nil
}

var rootCmd = &cobra.Command{
	Use:   "st9ctl",
	Short: "ST9 store administration",
	Long: `st9ctl talks to an ST9 indexed key-value store. It publishes type
schemas, reads entities by id or through indexes and counters, and manages
quarantine flags.`,
	SilenceUsage: true,
}

// Execute runs the root command. Interrupts cancel the running request.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&configPath, "config", os.Getenv("ST9_CONFIG"), "Configuration file (.toml or .yaml)")
	flags.StringVar(&endpoint, "url", "", "Store endpoint, overriding the configuration")
	flags.StringVar(&schemaPath, "schema", os.Getenv("ST9_SCHEMA"), "YAML file with the type declarations")

	rootCmd.AddCommand(pingCmd)
	rootCmd.AddCommand(schemaCmd)
	rootCmd.AddCommand(getCmd)
	rootCmd.AddCommand(findCmd)
	rootCmd.AddCommand(countCmd)
	rootCmd.AddCommand(quarantineCmd)
	rootCmd.AddCommand(unquarantineCmd)
	rootCmd.AddCommand(quarantinedCmd)
	rootCmd.AddCommand(nukeCmd)
}

// exitError prints an error and exits
func exitError(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "error: "+format+"\n", args...)
	os.Exit(1)
}
