package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"taskbench/internal/config"
	"taskbench/internal/delivery/eval/bootstrap"
	"taskbench/internal/observability"
	"taskbench/internal/shared/logging"
)

const envPrefix = "TASKBENCH"

// CLI holds the command line interface state
type CLI struct {
	v      *viper.Viper
	out    io.Writer
	errOut io.Writer

	cfg    config.Config
	meta   config.Metadata
	logger logging.Logger
	tracer *observability.TracerProvider
}

// NewCLI builds a CLI writing results to out and diagnostics to errOut.
func NewCLI(out, errOut io.Writer) *CLI {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	return &CLI{v: v, out: out, errOut: errOut}
}

// RootCommand assembles the command tree.
func (cli *CLI) RootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "taskbench",
		Short:         "Discover benchmark tasks and run their verification programs",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return cli.initialize(cmd)
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return cli.shutdown()
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.String("config", "", "Path to taskbench.yaml")
	flags.String("tasks-root", "", "Root of the task tree")
	flags.String("output-dir", "", "Directory for run results")
	flags.Int("concurrency", 0, "Maximum concurrent verifications")
	flags.String("python", "", "Python interpreter for .py verification programs")
	flags.String("log-level", "", "debug, info, warn or error")
	flags.Bool("no-color", false, "Disable colored output")
	_ = cli.v.BindPFlags(flags)

	rootCmd.AddCommand(newServicesCommand(cli))
	rootCmd.AddCommand(newDiscoverCommand(cli))
	rootCmd.AddCommand(newCategoriesCommand(cli))
	rootCmd.AddCommand(newInstructionCommand(cli))
	rootCmd.AddCommand(newVerifyCommand(cli))
	rootCmd.AddCommand(newRunsCommand(cli))
	rootCmd.AddCommand(newServeCommand(cli))
	rootCmd.AddCommand(newConfigCommand(cli))
	return rootCmd
}

func (cli *CLI) initialize(cmd *cobra.Command) error {
	if cli.v.GetBool("no-color") || !isTTY(cli.out) {
		color.NoColor = true
	}

	opts := []config.Option{config.WithOverrides(cli.overrides(cmd))}
	if path := cli.v.GetString("config"); path != "" {
		opts = append(opts, config.WithConfigPath(path))
	}
	cfg, meta, err := config.Load(opts...)
	if err != nil {
		return err
	}
	cli.cfg, cli.meta = cfg, meta

	level, _ := logging.ParseLevel(cfg.LogLevel)
	if logging.LogDirConfigured() {
		cli.logger = logging.NewComponentLogger("taskbench").WithLevel(level)
	} else {
		cli.logger = logging.New(cli.errOut, "taskbench", level)
	}

	tracer, err := observability.NewTracerProvider(cfg.Tracing)
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}
	cli.tracer = tracer
	return nil
}

func (cli *CLI) shutdown() error {
	if cli.tracer == nil {
		return nil
	}
	return cli.tracer.Shutdown(context.Background())
}

// overrides maps explicitly set flags onto config overrides. Environment
// values are applied by config.Load itself.
func (cli *CLI) overrides(cmd *cobra.Command) config.Overrides {
	var o config.Overrides
	changed := func(name string) bool {
		f := cmd.Flags().Lookup(name)
		return f != nil && f.Changed
	}
	str := func(name string) *string {
		if !changed(name) {
			return nil
		}
		v := cli.v.GetString(name)
		return &v
	}
	o.TasksRoot = str("tasks-root")
	o.OutputDir = str("output-dir")
	o.Python = str("python")
	o.LogLevel = str("log-level")
	if changed("concurrency") {
		n := cli.v.GetInt("concurrency")
		o.Concurrency = &n
	}
	return o
}

func (cli *CLI) component(name string) logging.Logger {
	return logging.Named(cli.logger, name)
}

// catalog discovers the named services under a discovery span.
func (cli *CLI) catalog(ctx context.Context, names ...string) (*bootstrap.Catalog, error) {
	_, span := cli.tracer.Tracer().Start(ctx, observability.SpanDiscover,
		trace.WithAttributes(attribute.StringSlice(observability.AttrService, names)))
	defer span.End()

	catalog, err := bootstrap.NewCatalog(cli.cfg, names, cli.component("discovery"))
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	total := 0
	for _, name := range catalog.Services() {
		m, _ := catalog.Manager(name)
		total += len(m.Tasks())
	}
	span.SetAttributes(attribute.Int(observability.AttrCount, total))
	return catalog, nil
}

func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}
