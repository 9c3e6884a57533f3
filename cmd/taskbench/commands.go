package main

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"taskbench/evaluation/results"
	"taskbench/evaluation/services"
	"taskbench/evaluation/task_mgmt"
	"taskbench/internal/config"
	"taskbench/internal/delivery/eval/bootstrap"
)

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func newServicesCommand(cli *CLI) *cobra.Command {
	return &cobra.Command{
		Use:   "services",
		Short: "List supported services",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, name := range services.Names() {
				backend, err := services.New(name, cli.cfg.ServiceSettings(name))
				if err != nil {
					fmt.Fprintf(cli.out, "%s\t%s\n", name, red(err.Error()))
					continue
				}
				fmt.Fprintf(cli.out, "%s\t%s\n", name, gray(backend.Organization()))
			}
			return nil
		},
	}
}

func newDiscoverCommand(cli *CLI) *cobra.Command {
	var (
		filter   string
		asJSON   bool
		warnings bool
	)
	cmd := &cobra.Command{
		Use:   "discover [service...]",
		Short: "List the tasks found for one or more services",
		RunE: func(cmd *cobra.Command, args []string) error {
			catalog, err := cli.catalog(cmd.Context(), args...)
			if err != nil {
				return err
			}
			found := make(map[string][]task_mgmt.Task)
			for _, name := range catalog.Services() {
				m, _ := catalog.Manager(name)
				found[name] = m.Filter(filter)
			}
			if asJSON {
				return writeJSON(cli.out, found)
			}
			for _, name := range catalog.Services() {
				m, _ := catalog.Manager(name)
				fmt.Fprintf(cli.out, "%s %s\n", bold(name), gray(fmt.Sprintf("(%d tasks)", len(found[name]))))
				printTasks(cli.out, found[name])
				if warnings {
					printWarnings(cli.out, m.Warnings())
				}
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&filter, "filter", "f", "", "Category, category/task_id or substring")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print tasks as JSON")
	cmd.Flags().BoolVarP(&warnings, "warnings", "w", false, "Print discovery warnings")
	return cmd
}

func newCategoriesCommand(cli *CLI) *cobra.Command {
	return &cobra.Command{
		Use:   "categories <service>",
		Short: "List the categories of a service",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			catalog, err := cli.catalog(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			m, _ := catalog.Manager(args[0])
			for _, category := range m.Categories() {
				fmt.Fprintln(cli.out, category)
			}
			return nil
		},
	}
}

func newInstructionCommand(cli *CLI) *cobra.Command {
	return &cobra.Command{
		Use:   "instruction <service> <category/task_id>",
		Short: "Print a task's formatted instruction",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			catalog, err := cli.catalog(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			m, _ := catalog.Manager(args[0])
			task, ok := m.Get(args[1])
			if !ok {
				return fmt.Errorf("task %s not found for service %s", args[1], args[0])
			}
			text, err := m.Instruction(task)
			if err != nil {
				return err
			}
			fmt.Fprintln(cli.out, text)
			return nil
		},
	}
}

func newRunsCommand(cli *CLI) *cobra.Command {
	return &cobra.Command{
		Use:   "runs",
		Short: "List stored run summaries, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := results.NewStore(cli.cfg.OutputDir)
			if err != nil {
				return err
			}
			summaries, err := store.ListSummaries()
			if err != nil {
				return err
			}
			for _, s := range summaries {
				fmt.Fprintf(cli.out, "%s\t%s\t%d/%d\t%s\n", s.RunID, s.Service, s.Passed, s.Total,
					gray(s.StartedAt.Local().Format("2006-01-02 15:04:05")))
			}
			return nil
		},
	}
}

func newServeCommand(cli *CLI) *cobra.Command {
	var port int
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the read-only task and results API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := cli.cfg
			if cmd.Flags().Changed("port") {
				cfg.Server.Port = port
			}
			ctx, stop := signalContext(cmd.Context())
			defer stop()
			return bootstrap.RunServer(ctx, cfg, cli.component("server"))
		},
	}
	cmd.Flags().IntVarP(&port, "port", "p", config.DefaultServerPort, "Listen port")
	return cmd
}

func newConfigCommand(cli *CLI) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration management",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show the effective configuration and where each value came from",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := yaml.Marshal(cli.cfg)
			if err != nil {
				return err
			}
			fmt.Fprint(cli.out, string(data))
			if path := cli.meta.Path(); path != "" {
				fmt.Fprintf(cli.out, "# file: %s\n", path)
			}
			fields := []string{"tasks_root", "output_dir", "concurrency", "python", "log_level"}
			sort.Strings(fields)
			for _, field := range fields {
				fmt.Fprintf(cli.out, "# %s: %s\n", field, cli.meta.Source(field))
			}
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "init [path]",
		Short: "Write the default configuration",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := config.DefaultConfigFile
			if len(args) == 1 {
				path = args[0]
			}
			if err := config.Save(config.Default(), path); err != nil {
				return err
			}
			fmt.Fprintf(cli.out, "%s %s\n", green("wrote"), path)
			return nil
		},
	})
	return cmd
}
