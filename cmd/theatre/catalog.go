package main

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/felixgeelhaar/theatre/internal/adapters/toolfile"
	"github.com/felixgeelhaar/theatre/internal/domain/config"
	"github.com/felixgeelhaar/theatre/internal/domain/procedure"
	"github.com/spf13/cobra"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var catalogCmd = &cobra.Command{
	Use:   "catalog",
	Short: "Inspect the operation catalog",
	Long: `List, show and validate surgical operations.

The built-in catalog is used unless 'catalog' is set in theatre.yaml or
THEATRE_CATALOG points at a YAML or TOML file.

Examples:
  theatre catalog list                  # Visible operations
  theatre catalog list --all            # Include hidden operations
  theatre catalog show amputation       # Steps and tools of one operation
  theatre catalog validate ./ops.yaml   # Check a catalog file`,
}

var catalogListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List operations",
	RunE:    runCatalogList,
}

var catalogShowCmd = &cobra.Command{
	Use:   "show <operation>",
	Short: "Show the steps of an operation",
	Args:  cobra.ExactArgs(1),
	RunE:  runCatalogShow,
}

var catalogValidateCmd = &cobra.Command{
	Use:   "validate [path]",
	Short: "Validate a catalog and the tool bindings against it",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runCatalogValidate,
}

// Flags
var catalogShowAll bool

func init() {
	catalogListCmd.Flags().BoolVar(&catalogShowAll, "all", false, "include hidden operations")

	catalogCmd.AddCommand(catalogListCmd)
	catalogCmd.AddCommand(catalogShowCmd)
	catalogCmd.AddCommand(catalogValidateCmd)
	rootCmd.AddCommand(catalogCmd)
}

func runCatalogList(cmd *cobra.Command, _ []string) error {
	env, err := loadRuntime(cmd)
	if err != nil {
		return err
	}
	cat, err := loadCatalog(env.cfg)
	if err != nil {
		return err
	}

	ops := cat.VisibleOperations()
	if catalogShowAll {
		ops = cat.Operations()
	}
	printOperations(cmd.OutOrStdout(), ops)
	return nil
}

func printOperations(out io.Writer, ops []procedure.Operation) {
	if len(ops) == 0 {
		_, _ = fmt.Fprintln(out, "No operations.")
		return
	}

	caser := cases.Title(language.English)
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tNAME\tSTEPS\tEFFECT")
	for _, op := range ops {
		name := caser.String(op.Name())
		if op.Hidden() {
			name += " (hidden)"
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%d\t%s\n", op.ID(), name, op.StepCount(), op.Effect())
	}
	_ = w.Flush()
}

func runCatalogShow(cmd *cobra.Command, args []string) error {
	env, err := loadRuntime(cmd)
	if err != nil {
		return err
	}
	cat, err := loadCatalog(env.cfg)
	if err != nil {
		return err
	}
	op, ok := cat.FindOperation(args[0])
	if !ok {
		ids := make([]string, 0)
		for _, o := range cat.VisibleOperations() {
			ids = append(ids, o.ID())
		}
		return config.NewOperationUnknownError(args[0], ids)
	}
	tools, err := loadTools(env.cfg, cat)
	if err != nil {
		return err
	}

	printOperation(cmd.OutOrStdout(), op, tools)
	return nil
}

func printOperation(out io.Writer, op procedure.Operation, tools *toolfile.Set) {
	caser := cases.Title(language.English)
	_, _ = fmt.Fprintf(out, "%s (%s)\n", caser.String(op.Name()), op.ID())
	if op.Description() != "" {
		_, _ = fmt.Fprintf(out, "  %s\n", op.Description())
	}
	_, _ = fmt.Fprintf(out, "  effect: %s\n\n", op.Effect())

	byStep := map[procedure.StepID][]string{}
	for _, t := range tools.All() {
		if !t.Step.IsZero() {
			byStep[t.Step] = append(byStep[t.Step], t.Name)
		}
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "#\tSTEP\tTOOLS\tNOTES")
	for i, s := range op.Steps() {
		var notes []string
		if n := s.Necessity(); n.Kind() != procedure.NecessityAlways {
			notes = append(notes, n.String())
		}
		if s.RequiresSelection() {
			notes = append(notes, "needs an organ selection")
		}
		toolNames := strings.Join(byStep[s.ID()], ", ")
		if toolNames == "" {
			toolNames = "-"
		}
		_, _ = fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", i+1, s.ID(), toolNames, strings.Join(notes, "; "))
	}
	_ = w.Flush()
}

func runCatalogValidate(cmd *cobra.Command, args []string) error {
	env, err := loadRuntime(cmd)
	if err != nil {
		return err
	}
	cfg := env.cfg
	if len(args) == 1 {
		cfg.CatalogPath = args[0]
	}

	cat, err := loadCatalog(cfg)
	if err != nil {
		return err
	}
	tools, err := loadTools(cfg, cat)
	if err != nil {
		return err
	}

	source := cfg.CatalogPath
	if source == "" {
		source = "built-in catalog"
	}
	_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s is valid: %d steps, %d operations, %d tools\n",
		source, len(cat.Steps()), len(cat.Operations()), tools.Len())
	return nil
}
