package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"

	"github.com/felixgeelhaar/theatre/internal/adapters/logging"
	"github.com/felixgeelhaar/theatre/internal/adapters/toolfile"
	"github.com/felixgeelhaar/theatre/internal/domain/config"
	"github.com/felixgeelhaar/theatre/internal/domain/procedure"
	"github.com/felixgeelhaar/theatre/internal/domain/procedure/embedded"
	"github.com/felixgeelhaar/theatre/internal/ports"
	"github.com/spf13/cobra"
)

var (
	// Global flags
	cfgFile string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "theatre",
	Short: "A surgery procedure engine",
	Long: `Theatre runs multi-step surgical procedures against an in-memory world.

Operations are ordered sequences of steps loaded from a catalog; tools are
bound to steps and may take time to apply. Drape a target to begin, use the
right tools in order, and the operation's effect is applied once every
required step is done.`,
	SilenceErrors: true,
	SilenceUsage:  true,
}

// Execute runs the root command, cancelling on interrupt.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: theatre.yaml if present)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	_ = rootCmd.RegisterFlagCompletionFunc("config", func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		return []string{"yaml", "yml"}, cobra.ShellCompDirectiveFilterFileExt
	})

	rootCmd.AddCommand(versionCmd)
}

// runtimeEnv is what every command needs once configuration is resolved.
type runtimeEnv struct {
	cfg    config.Config
	logger ports.Logger
}

// loadRuntime reads configuration and builds the logger. Logs go to stderr
// so command output stays clean.
func loadRuntime(cmd *cobra.Command) (*runtimeEnv, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, err
	}
	if verbose {
		cfg.Log.Level = "debug"
	}
	level, err := ports.ParseLevel(cfg.Log.Level)
	if err != nil {
		return nil, err
	}
	logger, err := logging.New(strings.ToLower(cfg.Log.Format), level, cmd.ErrOrStderr())
	if err != nil {
		return nil, err
	}
	return &runtimeEnv{cfg: cfg, logger: logger}, nil
}

// loadCatalog returns the configured catalog, or the built-in one.
func loadCatalog(cfg config.Config) (*procedure.Catalog, error) {
	if cfg.CatalogPath == "" {
		cat, err := embedded.LoadCatalog()
		if err != nil {
			return nil, config.NewCatalogError("", err)
		}
		return cat, nil
	}
	cat, err := procedure.LoadFile(cfg.CatalogPath)
	if err != nil {
		return nil, config.NewCatalogError(cfg.CatalogPath, err)
	}
	return cat, nil
}

// loadTools returns the configured tool bindings, checked against cat.
func loadTools(cfg config.Config, cat *procedure.Catalog) (*toolfile.Set, error) {
	var (
		set *toolfile.Set
		err error
	)
	if cfg.ToolsPath == "" {
		set, err = toolfile.Default()
	} else {
		set, err = toolfile.Load(cfg.ToolsPath)
	}
	if err == nil {
		err = set.Validate(cat)
	}
	if err != nil {
		return nil, config.NewToolsError(cfg.ToolsPath, err)
	}
	return set, nil
}

// formatError returns a user-friendly error message.
// With verbose=false: shows only the user message and suggestion.
// With verbose=true: also shows the underlying technical error.
func formatError(err error) string {
	var userErr *config.UserError
	if errors.As(err, &userErr) {
		msg := userErr.Message
		if userErr.Context != "" {
			msg += fmt.Sprintf(" (at %s)", userErr.Context)
		}
		if userErr.Suggestion != "" {
			msg += fmt.Sprintf("\n\nSuggestion: %s", userErr.Suggestion)
		}
		if verbose && userErr.Underlying != nil {
			msg += fmt.Sprintf("\n\nTechnical details: %v", userErr.Underlying)
		}
		return msg
	}
	var list *config.ErrorList
	if errors.As(err, &list) {
		return list.Format()
	}
	return err.Error()
}

// printError prints an error message to stderr with proper formatting.
func printError(err error) {
	printErrorTo(os.Stderr, err)
}

// printErrorTo prints an error message to the given writer.
func printErrorTo(w io.Writer, err error) {
	_, _ = fmt.Fprintf(w, "Error: %s\n", formatError(err))
}
