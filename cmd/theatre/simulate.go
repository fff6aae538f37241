package main

import (
	"fmt"
	"io"
	"time"

	"github.com/felixgeelhaar/theatre/internal/adapters/metrics"
	"github.com/felixgeelhaar/theatre/internal/adapters/notify"
	"github.com/felixgeelhaar/theatre/internal/adapters/world"
	"github.com/felixgeelhaar/theatre/internal/app"
	"github.com/felixgeelhaar/theatre/internal/domain/config"
	"github.com/felixgeelhaar/theatre/internal/domain/surgery"
	"github.com/felixgeelhaar/theatre/internal/ports"
	"github.com/spf13/cobra"
)

var simulateCmd = &cobra.Command{
	Use:   "simulate <scenario.yaml>",
	Short: "Run a scripted surgery scenario",
	Long: `Run a scenario file: spawn bodies, drape targets, use tools, choose
organs, interrupt surgeons and check the results.

Each engine notification is printed as it happens, followed by a report of
every action. The run stops at the first failed expectation.

Examples:
  theatre simulate amputation.yaml
  theatre simulate --delay-scale 0 amputation.yaml   # skip tool delays
  theatre simulate --metrics organ-removal.yaml      # print Prometheus metrics`,
	Args: cobra.ExactArgs(1),
	RunE: runSimulate,
}

// Flags
var (
	simulateDelayScale float64
	simulateMetrics    bool
	simulateQuiet      bool
)

func init() {
	simulateCmd.Flags().Float64Var(&simulateDelayScale, "delay-scale", 1, "multiply tool delays (0 makes every step immediate)")
	simulateCmd.Flags().BoolVar(&simulateMetrics, "metrics", false, "print metrics in Prometheus text format after the run")
	simulateCmd.Flags().BoolVarP(&simulateQuiet, "quiet", "q", false, "do not print notifications")

	rootCmd.AddCommand(simulateCmd)
}

func runSimulate(cmd *cobra.Command, args []string) error {
	env, err := loadRuntime(cmd)
	if err != nil {
		return err
	}
	cfg := env.cfg
	if cmd.Flags().Changed("delay-scale") {
		cfg.DelayScale = simulateDelayScale
		if err := cfg.Validate(); err != nil {
			return err
		}
	}
	if simulateMetrics {
		cfg.Metrics.Enabled = true
	}

	sc, err := app.LoadScenario(args[0])
	if err != nil {
		return config.NewUserError(config.ErrCodeScenarioInvalid, "scenario cannot be loaded").
			WithContext(args[0]).
			WithSuggestion("Every action needs an 'action' key and the fields it uses; see 'theatre simulate --help'.").
			WithUnderlying(err)
	}

	cat, err := loadCatalog(cfg)
	if err != nil {
		return err
	}
	tools, err := loadTools(cfg, cat)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	w := world.New()
	opts := []surgery.Option{surgery.WithDelayScale(cfg.DelayScale)}
	if !simulateQuiet {
		opts = append(opts, surgery.WithNotifier(notify.NewConsole(out, w)))
	}
	var recorder *metrics.PrometheusRecorder
	if cfg.Metrics.Enabled {
		recorder, err = metrics.NewPrometheusRecorder(cfg.Metrics.Namespace)
		if err != nil {
			return err
		}
		opts = append(opts, surgery.WithMetrics(recorder))
	}

	theatre, err := app.New(cat, tools, w, env.logger, opts...)
	if err != nil {
		return err
	}

	ctx := ports.ContextWithLogger(cmd.Context(), env.logger)
	report, runErr := theatre.Run(ctx, sc)
	printReport(out, report)
	if recorder != nil {
		_, _ = fmt.Fprintln(out)
		if err := recorder.WriteText(out); err != nil {
			return err
		}
	}
	if runErr != nil {
		return config.NewUserError(config.ErrCodeScenarioFailed, "scenario failed").
			WithContext(fmt.Sprintf("%s, %v", args[0], runErr)).
			WithSuggestion("Re-run with --verbose to see every engine decision.").
			WithUnderlying(runErr)
	}
	return nil
}

func printReport(out io.Writer, report *app.Report) {
	if report == nil {
		return
	}
	_, _ = fmt.Fprintf(out, "\nScenario: %s\n", report.Scenario)
	for _, e := range report.Entries {
		_, _ = fmt.Fprintln(out, e.String())
	}
	_, _ = fmt.Fprintf(out, "%d actions in %s\n", len(report.Entries), report.Elapsed.Round(time.Millisecond))
}
