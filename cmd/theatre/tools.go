package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var toolsCmd = &cobra.Command{
	Use:   "tools",
	Short: "Inspect tool bindings",
	Long: `Tools are bound to catalog steps in an INI file.

The built-in bindings are used unless 'tools' is set in theatre.yaml or
THEATRE_TOOLS points at another file.`,
}

var toolsListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List tool bindings",
	RunE:    runToolsList,
}

func init() {
	toolsCmd.AddCommand(toolsListCmd)
	rootCmd.AddCommand(toolsCmd)
}

func runToolsList(cmd *cobra.Command, _ []string) error {
	env, err := loadRuntime(cmd)
	if err != nil {
		return err
	}
	cat, err := loadCatalog(env.cfg)
	if err != nil {
		return err
	}
	tools, err := loadTools(env.cfg, cat)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "TOOL\tBEHAVIOR\tSTEP\tDELAY")
	for _, t := range tools.All() {
		delay := "-"
		if t.Delay > 0 {
			delay = t.Delay.String()
		}
		step := string(t.Step)
		if step == "" {
			step = "-"
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", t.Name, t.Behavior, step, delay)
	}
	return w.Flush()
}
