package cli

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Swind/go-dispatcher/config"
	"github.com/Swind/go-dispatcher/core"
	"github.com/Swind/go-dispatcher/logging"
)

func newRunCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the demo workload on an affinity goroutine",
		Long: `Run binds a dispatcher to the main goroutine and drives it until the configured
duration elapses or the process is interrupted. A summary is printed on exit.`,
		Args: cobra.NoArgs,
		RunE: runRun,
	}
	cmd.Flags().DurationP("duration", "d", 0, "override demo.run_duration (0 keeps the configured value)")
	cmd.Flags().Bool("metrics", false, "serve Prometheus metrics regardless of metrics.enabled")
	return cmd
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if d, _ := cmd.Flags().GetDuration("duration"); d > 0 {
		cfg.Demo.RunDuration = d
	}
	if m, _ := cmd.Flags().GetBool("metrics"); m {
		cfg.Metrics.Enabled = true
	}

	logger, err := logging.New(cfg.Logging)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer func() { _ = logger.Close() }()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info("demo starting",
		core.F("dispatcher", cfg.Dispatcher.Name),
		core.F("producers", cfg.Demo.Producers),
		core.F("duration", cfg.Demo.RunDuration.String()),
	)

	result, err := RunDemo(ctx, cfg, logger)
	if err != nil {
		return err
	}
	return printSummary(cmd, result)
}

func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, err := cmd.Flags().GetString("config")
	if err != nil {
		return nil, err
	}
	envFiles, err := cmd.Flags().GetStringSlice("env-file")
	if err != nil {
		return nil, err
	}
	cfg, err := config.Load(path, envFiles...)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, nil
}

func printSummary(cmd *cobra.Command, r *DemoResult) error {
	out := cmd.OutOrStdout()
	_, err := fmt.Fprintf(out,
		"dispatcher %s: state=%s posted=%d executed=%d panicked=%d rejected=%d timer_ticks=%d invokes=%d replies=%d\n",
		r.Stats.Name, r.Stats.State, r.Posted, r.Stats.Executed, r.Stats.Panicked,
		r.Stats.Rejected, r.TimerRuns, r.Invokes, r.Replies,
	)
	if err != nil {
		return err
	}
	for name, runs := range r.CronRuns {
		if _, err := fmt.Fprintf(out, "cron %s: runs=%d\n", name, runs); err != nil {
			return err
		}
	}
	return nil
}
