// Command sync runs one scouting stats sync from the command line.
//
// Usage:
//
//	scouting-sync run
//	scouting-sync run --domain physical,passing --season 2024/2025
//	scouting-sync run --domain players --dry-run --fail-on-error
//	scouting-sync domains
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	sonic "github.com/bytedance/sonic"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/riskibarqy/scouting-sync/internal/app"
	"github.com/riskibarqy/scouting-sync/internal/config"
	"github.com/riskibarqy/scouting-sync/internal/observability"
	"github.com/riskibarqy/scouting-sync/internal/platform/logging"
	"github.com/riskibarqy/scouting-sync/internal/usecase"
)

var errCellsFailed = errors.New("one or more cells failed")

type syncRunner interface {
	RunSync(ctx context.Context, input usecase.RunInput) (usecase.RunSummary, error)
	Domains() []usecase.DomainSpec
}

type runtimeHandle struct {
	runner  syncRunner
	metrics http.Handler
	close   func() error
}

type cli struct {
	loadConfig func() (config.Config, error)
	newRuntime func(cfg config.Config, logger *logging.Logger) (runtimeHandle, error)
	logOutput  io.Writer
}

func defaultCLI() cli {
	return cli{
		loadConfig: config.Load,
		newRuntime: func(cfg config.Config, logger *logging.Logger) (runtimeHandle, error) {
			runtime, err := app.NewRuntime(cfg, logger)
			if err != nil {
				return runtimeHandle{}, err
			}
			return runtimeHandle{
				runner:  runtime.Sync,
				metrics: runtime.Metrics.Handler(),
				close:   runtime.Close,
			}, nil
		},
		logOutput: os.Stderr,
	}
}

func main() {
	if err := newRootCmd(defaultCLI()).Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd(c cli) *cobra.Command {
	var envFile string
	root := &cobra.Command{
		Use:          "scouting-sync",
		Short:        "Scouting stats sync CLI",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if envFile == "" {
				return nil
			}
			if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
				return fmt.Errorf("load %s: %w", envFile, err)
			}
			return nil
		},
	}
	root.PersistentFlags().StringVar(&envFile, "env-file", ".env", "Dotenv file loaded before reading config (missing file is ignored)")

	root.AddCommand(runCmd(c))
	root.AddCommand(domainsCmd())
	return root
}

type runOptions struct {
	domains     []string
	season      string
	competition string
	dryRun      bool
	failOnError bool
	metricsAddr string
}

func runCmd(c cli) *cobra.Command {
	var opts runOptions
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Fetch every selected domain for every active team/competition pair and upsert the results",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.run(cmd, opts)
		},
	}
	cmd.Flags().StringSliceVar(&opts.domains, "domain", nil, "Domain to sync, repeatable or comma separated (default SYNC_DOMAINS, else all)")
	cmd.Flags().StringVar(&opts.season, "season", "", "Only sync pairs whose season name matches")
	cmd.Flags().StringVar(&opts.competition, "competition", "", "Only sync pairs whose competition name matches")
	cmd.Flags().BoolVar(&opts.dryRun, "dry-run", false, "Fetch and transform without writing")
	cmd.Flags().BoolVar(&opts.failOnError, "fail-on-error", false, "Exit non-zero when any cell ends in error")
	cmd.Flags().StringVar(&opts.metricsAddr, "metrics-addr", "", "Serve /metrics and pprof on this address while the run is in progress")
	return cmd
}

func (c cli) run(cmd *cobra.Command, opts runOptions) error {
	cfg, err := c.loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	domains := opts.domains
	if len(domains) == 0 {
		domains = cfg.SyncDomains
	}
	if err := app.ValidateDomains(domains); err != nil {
		return err
	}

	logger := logging.NewJSONWriter(c.logOutput, cfg.LogLevel).With("service", cfg.ServiceName, "env", cfg.AppEnv)
	defer func() { _ = logger.Sync() }()

	runtime, err := c.newRuntime(cfg, logger)
	if err != nil {
		return fmt.Errorf("build runtime: %w", err)
	}
	defer func() {
		if runtime.close == nil {
			return
		}
		if err := runtime.close(); err != nil {
			logger.Warn("close runtime failed", "error", err)
		}
	}()

	if opts.metricsAddr != "" {
		mux := observability.NewDebugMux(map[string]http.Handler{"/metrics": runtime.metrics})
		debugServer := observability.StartDebugServer(opts.metricsAddr, mux, logger)
		defer func() {
			if err := observability.StopDebugServer(debugServer, logger, 5*time.Second); err != nil {
				logger.Warn("stop metrics server failed", "error", err)
			}
		}()
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	summary, err := runtime.runner.RunSync(ctx, usecase.RunInput{
		Domains:     domains,
		Season:      opts.season,
		Competition: opts.competition,
		DryRun:      opts.dryRun,
	})
	if err != nil {
		return fmt.Errorf("run sync: %w", err)
	}

	if err := writeSummary(cmd.OutOrStdout(), summary); err != nil {
		return err
	}

	if opts.failOnError && summary.Totals().Error > 0 {
		return fmt.Errorf("%w: %d", errCellsFailed, summary.Totals().Error)
	}
	return nil
}

type summaryOutput struct {
	usecase.RunSummary
	Totals usecase.DomainCounts `json:"totals"`
}

func writeSummary(w io.Writer, summary usecase.RunSummary) error {
	payload, err := sonic.ConfigStd.MarshalIndent(summaryOutput{RunSummary: summary, Totals: summary.Totals()}, "", "  ")
	if err != nil {
		return fmt.Errorf("encode summary: %w", err)
	}
	_, err = fmt.Fprintln(w, string(payload))
	return err
}

func domainsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "domains",
		Short: "List the known sync domains and their storage targets",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			for _, spec := range usecase.DefaultDomainSpecs() {
				paging := "single"
				if spec.Paged {
					paging = "paged"
				}
				if _, err := fmt.Fprintf(out, "%-18s %-24s %-7s %s\n", spec.Name, spec.Target.Table, paging, spec.Endpoint); err != nil {
					return err
				}
			}
			return nil
		},
	}
}
