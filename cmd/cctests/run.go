package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"digital.vasic.cctests/pkg/env"
	"digital.vasic.cctests/pkg/harness"
	"digital.vasic.cctests/pkg/logging"
	"digital.vasic.cctests/pkg/metrics"
	"digital.vasic.cctests/pkg/monitor"
)

var runCmd = &cobra.Command{
	Use:   "run [program...]",
	Short: "Run test programs and summarise their results",
	Long: `Runs every program given on the command line or listed in the
configuration file, passing the selection flags through the
environment. The command exits with the combined Automake code.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		code, err := runPrograms(cmd, args)
		if err != nil {
			return err
		}
		exit(code)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringP("config", "c", "", "YAML harness configuration")
	runCmd.Flags().String("file", "", "Regex selecting test programs (cctests_file)")
	runCmd.Flags().String("group", "", "Regex selecting test groups (cctests_group)")
	runCmd.Flags().String("name", "", "Regex selecting tests (cctests_name)")
	runCmd.Flags().Duration("timeout", 0, "Per-program timeout (0 keeps the configured default)")
	runCmd.Flags().IntP("parallel", "j", 0, "Programs run at once")
	runCmd.Flags().String("report-dir", "", "Directory programs save run reports to")
	runCmd.Flags().String("monitor-addr", "", "Serve live events and metrics on this address")
	runCmd.Flags().Bool("no-color", false, "Render the summary without colour")
}

func selectionFlags(cmd *cobra.Command, sel *env.Selection) {
	for flag, dst := range map[string]**string{
		"file":  &sel.File,
		"group": &sel.Group,
		"name":  &sel.Name,
	} {
		if cmd.Flags().Changed(flag) {
			v, _ := cmd.Flags().GetString(flag)
			*dst = &v
		}
	}
}

func runPrograms(cmd *cobra.Command, args []string) (int, error) {
	verbose, _ := cmd.Flags().GetBool("verbose")
	format, _ := cmd.Flags().GetString("log-format")
	logger, err := logging.New(format, verbose, cmd.ErrOrStderr())
	if err != nil {
		return 0, err
	}
	defer logger.Close()

	cfg := &harness.Config{}
	if path, _ := cmd.Flags().GetString("config"); path != "" {
		cfg, err = harness.LoadConfig(path)
		if err != nil {
			return 0, err
		}
	}
	for _, a := range args {
		cfg.Programs = append(cfg.Programs, harness.Program{Path: a})
	}
	selectionFlags(cmd, &cfg.Selection)
	if cmd.Flags().Changed("timeout") {
		cfg.Timeout, _ = cmd.Flags().GetDuration("timeout")
	}
	if cmd.Flags().Changed("parallel") {
		cfg.Parallel, _ = cmd.Flags().GetInt("parallel")
	}
	if cmd.Flags().Changed("report-dir") {
		cfg.ReportDir, _ = cmd.Flags().GetString("report-dir")
	}
	if err := cfg.Validate(); err != nil {
		if errors.Is(err, harness.ErrNoPrograms) {
			return 0, fmt.Errorf("%w: pass programs or --config", err)
		}
		return 0, err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	prom := metrics.NewPrometheusMetrics()
	collector := monitor.NewEventCollector()
	opts := append(cfg.Options(),
		harness.WithLogger(logger),
		harness.WithMetrics(prom),
		harness.WithCollector(collector),
	)

	if addr, _ := cmd.Flags().GetString("monitor-addr"); addr != "" {
		srv := monitor.NewServer(addr, collector,
			monitor.NewDashboardData("harness"),
			monitor.WithMetricsHandler(prom.Handler()),
			monitor.WithServerLogger(logger),
		)
		go func() {
			if err := srv.Start(ctx); err != nil {
				logger.Error("monitor server stopped", logging.ErrorField(err))
			}
		}()
		defer srv.Stop(context.Background())
		logger.Info("monitor listening", logging.StringField("addr", addr))
	}

	summary := harness.New(opts...).Run(ctx, cfg.Programs)

	noColor, _ := cmd.Flags().GetBool("no-color")
	harness.WriteTable(cmd.OutOrStdout(), summary, !noColor)
	return summary.ExitCode, nil
}
